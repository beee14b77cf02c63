package renderer

import (
	"fmt"
	"query-visualizer/internal/chart"
	"query-visualizer/internal/record"
	"strings"
)

// MarkdownRenderer Markdown 报告渲染器（CLI 输出）
type MarkdownRenderer struct {
	// Diagrams 是否为图表附带 Mermaid 代码块
	Diagrams bool
}

// NewMarkdownRenderer 创建渲染器
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{Diagrams: true}
}

// Render 渲染为 Markdown 格式：图表列表 + 数据表
func (m *MarkdownRenderer) Render(query string, specs []chart.Spec, rs record.ResultSet) string {
	var sb strings.Builder

	sb.WriteString("# 查询结果\n\n")
	if query != "" {
		sb.WriteString("```\n")
		sb.WriteString(query)
		sb.WriteString("\n```\n\n")
	}

	if rs.Empty() {
		sb.WriteString("No data\n")
		return sb.String()
	}

	if len(specs) > 0 {
		sb.WriteString("## 图表\n\n")
		mermaid := NewMermaidRenderer()
		for i, spec := range specs {
			sb.WriteString(fmt.Sprintf("%d. **%s** (%s", i+1, spec.Title, spec.Type))
			if spec.Scenario != "" {
				sb.WriteString(", " + spec.Scenario)
			}
			sb.WriteString(")\n")
			if spec.Description != "" {
				sb.WriteString(fmt.Sprintf("   %s\n", spec.Description))
			}
			if !m.Diagrams {
				continue
			}
			if diagram, ok := mermaid.Render(spec); ok {
				sb.WriteString("\n```mermaid\n")
				sb.WriteString(diagram)
				sb.WriteString("```\n")
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("## 数据 (%d 行)\n\n", rs.Len()))
	sb.WriteString(MarkdownTable(rs))
	return sb.String()
}

// MarkdownTable 把结果集渲染为 Markdown 表格
func MarkdownTable(rs record.ResultSet) string {
	if rs.Empty() {
		return ""
	}

	var sb strings.Builder
	header := rs.Schema()

	// 表头
	sb.WriteString("|")
	for _, h := range header {
		sb.WriteString(" " + escapeCell(h) + " |")
	}
	sb.WriteString("\n|")
	for range header {
		sb.WriteString("------|")
	}
	sb.WriteString("\n")

	// 数据行
	for _, row := range rs.Rows {
		sb.WriteString("|")
		for _, h := range header {
			sb.WriteString(" " + escapeCell(record.Format(row[h])) + " |")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
