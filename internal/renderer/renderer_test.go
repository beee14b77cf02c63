package renderer

import (
	"bytes"
	"query-visualizer/internal/chart"
	"query-visualizer/internal/record"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func sampleRecords() record.ResultSet {
	return record.ResultSet{
		Columns: []string{"country", "year", "happiness"},
		Rows: []record.Record{
			{"country": "Finland", "year": 2020.0, "happiness": 7.8},
			{"country": "Sweden", "year": 2020.0, "happiness": nil},
		},
	}
}

func sampleSpecs() []chart.Spec {
	return []chart.Spec{
		{
			Type:  chart.TypeBar,
			Title: "Happiness by country",
			Data: chart.Data{
				Labels: []string{"Finland", "Sweden"},
				Datasets: []chart.Dataset{{
					Label:           "happiness",
					Data:            []chart.Value{chart.Number(7.8), chart.Gap()},
					BorderColor:     chart.Paint{"rgb(54, 162, 235)", "rgb(255, 99, 132)"},
					BackgroundColor: chart.Paint{"rgba(54, 162, 235, 0.2)", "rgba(255, 99, 132, 0.2)"},
				}},
			},
		},
		{
			Type:        chart.TypeLine,
			Title:       "Happiness over time",
			Description: "Sorted by year.",
			Data: chart.Data{
				Labels: []string{"2019", "2020"},
				Datasets: []chart.Dataset{{
					Label:    "happiness",
					Data:     []chart.Value{chart.Gap(), chart.Number(7.8)},
					Fill:     true,
					SpanGaps: true,
				}},
			},
		},
		{
			Type:  chart.TypePie,
			Title: "Happiness share by country",
			Data: chart.Data{
				Labels:   []string{"Finland", "Sweden"},
				Datasets: []chart.Dataset{{Label: "happiness", Data: []chart.Value{chart.Number(7.8), chart.Number(7.5)}}},
			},
		},
		{
			Type:  chart.TypeRadar,
			Title: "Country profile",
			Data: chart.Data{
				Labels:   []string{"gdp", "support", "freedom"},
				Datasets: []chart.Dataset{{Label: "Finland", Data: []chart.Value{chart.Number(1.3), chart.Number(1.5), chart.Gap()}}},
			},
		},
		{
			Type:  chart.TypeScatter,
			Title: "Score vs gdp",
			Data: chart.Data{
				Datasets: []chart.Dataset{{Label: "score", Data: []chart.Value{chart.XY(1.2, 7.1), chart.XY(1.5, 7.8)}}},
			},
		},
	}
}

func render(t *testing.T, s *Session) string {
	t.Helper()
	var buf bytes.Buffer
	if err := s.Render(&buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	return buf.String()
}

func TestSessionMount(t *testing.T) {
	s := NewSession()
	if err := s.Mount(sampleSpecs(), sampleRecords()); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	html := render(t, s)
	if got := strings.Count(html, "<iframe srcdoc="); got != 5 {
		t.Errorf("expected 5 chart cards, got %d", got)
	}
	for _, want := range []string{"Happiness by country", "Sorted by year.", "<th>country</th>", "<td>Finland</td>", "<td>7.8</td>"} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}

	// 卡片顺序与规格顺序一致
	first := strings.Index(html, "Happiness by country")
	second := strings.Index(html, "Happiness over time")
	if first < 0 || second < 0 || first > second {
		t.Errorf("cards out of order: %d, %d", first, second)
	}
}

func TestSessionMountReplaces(t *testing.T) {
	s := NewSession()
	if err := s.Mount(sampleSpecs(), sampleRecords()); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	if err := s.Mount(sampleSpecs()[:1], sampleRecords()); err != nil {
		t.Fatalf("second Mount failed: %v", err)
	}
	if got := len(s.Specs()); got != 1 {
		t.Errorf("expected 1 mounted chart after remount, got %d", got)
	}
}

func TestSessionNoCharts(t *testing.T) {
	s := NewSession()
	if err := s.Mount(nil, sampleRecords()); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	html := render(t, s)
	if strings.Contains(html, `id="charts"`) {
		t.Error("chart area should be collapsed when there are no charts")
	}
	if !strings.Contains(html, `id="data-table"`) {
		t.Error("table should still render")
	}
}

func TestSessionNoData(t *testing.T) {
	s := NewSession()
	if err := s.Mount(sampleSpecs(), record.ResultSet{}); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	html := render(t, s)
	if !strings.Contains(html, "No data") {
		t.Error("expected no data placeholder")
	}
	if strings.Contains(html, `id="charts"`) || strings.Contains(html, `id="data-table"`) {
		t.Error("charts and table should be skipped for empty results")
	}
	if len(s.Specs()) != 0 {
		t.Errorf("no widgets should be mounted, got %d", len(s.Specs()))
	}
}

func TestSessionTeardown(t *testing.T) {
	s := NewSession()
	if err := s.Mount(sampleSpecs(), sampleRecords()); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	s.Teardown()
	if s.Mounted() || len(s.Specs()) != 0 || !s.Records().Empty() {
		t.Error("teardown left state behind")
	}
	if html := render(t, s); !strings.Contains(html, `id="placeholder"`) {
		t.Error("expected placeholder after teardown")
	}
}

func TestSessionUnsupportedType(t *testing.T) {
	s := NewSession()
	if err := s.Mount(sampleSpecs(), sampleRecords()); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	err := s.Mount([]chart.Spec{{Type: "heatmap", Title: "x"}}, sampleRecords())
	if err == nil {
		t.Fatal("expected error for unsupported chart type")
	}
	if s.Mounted() || len(s.Specs()) != 0 {
		t.Error("previous widgets should be torn down even when mounting fails")
	}
}

func TestRenderError(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderError(&buf, "fetch failed <timeout>"); err != nil {
		t.Fatalf("RenderError failed: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, "fetch failed &lt;timeout&gt;") {
		t.Errorf("error message not escaped: %s", html)
	}
}

func TestMarkdownTable(t *testing.T) {
	got := MarkdownTable(sampleRecords())
	want := "| country | year | happiness |\n" +
		"|------|------|------|\n" +
		"| Finland | 2020 | 7.8 |\n" +
		"| Sweden | 2020 |  |\n"
	if got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
}

func TestMarkdownRender(t *testing.T) {
	out := NewMarkdownRenderer().Render("MATCH (c:Country) RETURN c", sampleSpecs(), sampleRecords())
	for _, want := range []string{"MATCH (c:Country) RETURN c", "**Happiness by country** (bar)", "```mermaid", "## 数据 (2 行)"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	empty := NewMarkdownRenderer().Render("", nil, record.ResultSet{})
	if !strings.Contains(empty, "No data") {
		t.Errorf("expected no data, got %s", empty)
	}
}

func TestMermaidRender(t *testing.T) {
	m := NewMermaidRenderer()
	specs := sampleSpecs()

	tests := []struct {
		name string
		spec chart.Spec
		want string
		ok   bool
	}{
		{"bar", specs[0], "    x-axis [\"Finland\"]\n    bar [7.8]\n", true},
		{"line", specs[1], "    x-axis [\"2020\"]\n    line [7.8]\n", true},
		{"pie", specs[2], `    "Sweden" : 7.5`, true},
		{"radar", specs[3], "", false},
		{"scatter", specs[4], "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Render(tt.spec)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("expected %q in\n%s", tt.want, got)
			}
		})
	}
}

func TestMermaidSkipsGaps(t *testing.T) {
	m := NewMermaidRenderer()
	multi := chart.Spec{
		Type:  chart.TypeLine,
		Title: "Happiness over time",
		Data: chart.Data{
			Labels: []string{"2019", "2020"},
			Datasets: []chart.Dataset{
				{Label: "Finland", Data: []chart.Value{chart.Number(7.8), chart.Number(7.9)}},
				{Label: "Sweden", Data: []chart.Value{chart.Gap(), chart.Number(7.3)}},
			},
		},
	}
	if got, ok := m.Render(multi); ok {
		t.Errorf("multi-series chart with a gap should not render, got\n%s", got)
	}

	allGaps := chart.Spec{
		Type: chart.TypeBar,
		Data: chart.Data{
			Labels:   []string{"Finland"},
			Datasets: []chart.Dataset{{Data: []chart.Value{chart.Gap()}}},
		},
	}
	if _, ok := m.Render(allGaps); ok {
		t.Error("chart without any value should not render")
	}

	got, ok := m.Render(sampleSpecs()[0])
	if !ok {
		t.Fatal("expected bar chart to render")
	}
	if strings.Contains(got, "Sweden") || strings.Contains(got, ", 0") {
		t.Errorf("gap rendered as a value:\n%s", got)
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleRecords()); err != nil {
		t.Fatalf("WriteXLSX failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != "country,year,happiness" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "Finland" || rows[1][2] != "7.8" {
		t.Errorf("first row = %v", rows[1])
	}
}
