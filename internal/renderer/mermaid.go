package renderer

import (
	"fmt"
	"query-visualizer/internal/chart"
	"query-visualizer/internal/record"
	"strings"
)

// MermaidRenderer Mermaid 图表渲染器
// 支持 pie 与 xychart-beta（bar/line）；雷达图和散点图没有对应语法。
type MermaidRenderer struct{}

// NewMermaidRenderer 创建渲染器
func NewMermaidRenderer() *MermaidRenderer {
	return &MermaidRenderer{}
}

// Render 渲染为 Mermaid 格式，不支持的图表类型返回 false
func (m *MermaidRenderer) Render(spec chart.Spec) (string, bool) {
	switch spec.Type {
	case chart.TypePie:
		return m.renderPie(spec), true
	case chart.TypeBar, chart.TypeLine:
		return m.renderXY(spec)
	default:
		return "", false
	}
}

func (m *MermaidRenderer) renderPie(spec chart.Spec) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("pie title %s\n", quote(spec.Title)))
	if len(spec.Data.Datasets) == 0 {
		return sb.String()
	}
	for i, v := range spec.Data.Datasets[0].Data {
		if !v.Valid || i >= len(spec.Data.Labels) {
			continue
		}
		sb.WriteString(fmt.Sprintf("    %s : %s\n", quote(spec.Data.Labels[i]), record.FormatNumber(v.Y)))
	}
	return sb.String()
}

// renderXY 每个数据集一条 bar/line
// Mermaid 没有空值：单数据集时跳过缺口类目，多数据集有缺口时不渲染
func (m *MermaidRenderer) renderXY(spec chart.Spec) (string, bool) {
	datasets := spec.Data.Datasets
	keep := make([]int, 0, len(spec.Data.Labels))
	for i := range spec.Data.Labels {
		gap := false
		for _, ds := range datasets {
			if i >= len(ds.Data) || !ds.Data[i].Valid {
				gap = true
				break
			}
		}
		if gap && len(datasets) > 1 {
			return "", false
		}
		if !gap {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return "", false
	}

	var sb strings.Builder
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title %s\n", quote(spec.Title)))

	labels := make([]string, len(keep))
	for j, i := range keep {
		labels[j] = quote(spec.Data.Labels[i])
	}
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))

	kind := "line"
	if spec.Type == chart.TypeBar {
		kind = "bar"
	}
	for _, ds := range datasets {
		values := make([]string, len(keep))
		for j, i := range keep {
			values[j] = record.FormatNumber(ds.Data[i].Y)
		}
		sb.WriteString(fmt.Sprintf("    %s [%s]\n", kind, strings.Join(values, ", ")))
	}
	return sb.String(), true
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, "'") + `"`
}
