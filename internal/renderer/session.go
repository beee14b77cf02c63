package renderer

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"query-visualizer/internal/chart"
	"query-visualizer/internal/record"
	"sync"
)

// Session 可视化会话：持有当前挂载的图表组件与原始记录
// 每次 Mount 都先销毁旧组件再整体替换，任何时刻最多只有一组可视化。
type Session struct {
	mu      sync.RWMutex
	widgets []mounted
	records record.ResultSet
	ready   bool
}

type mounted struct {
	spec   chart.Spec
	widget Widget
}

// NewSession 创建空会话
func NewSession() *Session {
	return &Session{}
}

// Mount 挂载新的图表与表格
func (s *Session) Mount(specs []chart.Spec, rs record.ResultSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardown()

	widgets := make([]mounted, 0, len(specs))
	if !rs.Empty() {
		for i, spec := range specs {
			w, err := newWidget(spec)
			if err != nil {
				return fmt.Errorf("mount chart %d (%s): %w", i, spec.Title, err)
			}
			widgets = append(widgets, mounted{spec: spec, widget: w})
		}
	}

	s.widgets = widgets
	s.records = rs
	s.ready = true
	return nil
}

// Teardown 销毁所有已挂载的组件
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardown()
}

func (s *Session) teardown() {
	s.widgets = nil
	s.records = record.ResultSet{}
	s.ready = false
}

// Specs 当前挂载的图表规格（按挂载顺序）
func (s *Session) Specs() []chart.Spec {
	s.mu.RLock()
	defer s.mu.RUnlock()

	specs := make([]chart.Spec, len(s.widgets))
	for i, m := range s.widgets {
		specs[i] = m.spec
	}
	return specs
}

// Records 当前挂载的原始记录
func (s *Session) Records() record.ResultSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

// Mounted 是否已挂载结果
func (s *Session) Mounted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Render 输出 HTML 报告
func (s *Session) Render(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page := reportPage{Mounted: s.ready}
	if !s.ready {
		return reportTemplate.Execute(w, page)
	}
	if s.records.Empty() {
		page.NoData = true
		return reportTemplate.Execute(w, page)
	}

	for i, m := range s.widgets {
		var buf bytes.Buffer
		if err := m.widget.Render(&buf); err != nil {
			return fmt.Errorf("render chart %d (%s): %w", i, m.spec.Title, err)
		}
		page.Cards = append(page.Cards, card{
			Title:       m.spec.Title,
			Description: m.spec.Description,
			Type:        string(m.spec.Type),
			Document:    buf.String(),
		})
	}
	page.Table = buildTable(s.records)
	return reportTemplate.Execute(w, page)
}

// RenderError 输出错误面板
func RenderError(w io.Writer, msg string) error {
	return reportTemplate.Execute(w, reportPage{Mounted: true, Error: msg})
}

type reportPage struct {
	Mounted bool
	NoData  bool
	Error   string
	Cards   []card
	Table   table
}

type card struct {
	Title       string
	Description string
	Type        string
	Document    string // 图表的完整 HTML 文档，放入 iframe srcdoc
}

type table struct {
	Header []string
	Rows   [][]string
}

// buildTable 表头为第一条记录的字段，表体为每条记录的字符串值（保持原顺序）
func buildTable(rs record.ResultSet) table {
	t := table{Header: rs.Schema()}
	t.Rows = make([][]string, len(rs.Rows))
	for i, row := range rs.Rows {
		cells := make([]string, len(t.Header))
		for j, field := range t.Header {
			cells[j] = record.Format(row[field])
		}
		t.Rows[i] = cells
	}
	return t
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Query results</title>
<style>
body { font-family: system-ui, sans-serif; margin: 0; padding: 16px; background: #f7f7f9; color: #222; }
.charts { display: grid; grid-template-columns: repeat(auto-fit, minmax(420px, 1fr)); gap: 16px; margin-bottom: 24px; }
.card { background: #fff; border-radius: 8px; box-shadow: 0 1px 3px rgba(0,0,0,.12); padding: 12px; }
.card h3 { margin: 0 0 4px; font-size: 16px; }
.card p { margin: 0 0 8px; color: #666; font-size: 13px; }
.card iframe { width: 100%; height: 400px; border: 0; }
table { border-collapse: collapse; width: 100%; background: #fff; }
th, td { border: 1px solid #ddd; padding: 6px 10px; text-align: left; font-size: 13px; }
th { background: #f0f0f3; }
.placeholder { padding: 32px; text-align: center; color: #888; }
.error { padding: 16px; border: 1px solid #e0a0a0; background: #fff0f0; color: #a33; border-radius: 6px; }
</style>
</head>
<body>
{{- if .Error}}
<div class="error" id="error-message">{{.Error}}</div>
{{- else if not .Mounted}}
<div class="placeholder" id="placeholder">Submit a question to see results.</div>
{{- else if .NoData}}
<div class="placeholder" id="placeholder">No data</div>
{{- else}}
{{- if .Cards}}
<section class="charts" id="charts">
{{- range .Cards}}
<div class="card" data-type="{{.Type}}">
<h3>{{.Title}}</h3>
{{- if .Description}}
<p>{{.Description}}</p>
{{- end}}
<iframe srcdoc="{{.Document}}"></iframe>
</div>
{{- end}}
</section>
{{- end}}
<section id="data-table">
<table>
<thead><tr>{{range .Table.Header}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Table.Rows}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
</tbody>
</table>
</section>
{{- end}}
</body>
</html>
`))
