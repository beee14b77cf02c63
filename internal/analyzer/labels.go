package analyzer

import (
	"query-visualizer/internal/chart"
	"query-visualizer/internal/palette"
	"query-visualizer/internal/record"
	"sort"
	"strings"
	"unicode"
)

// Humanize 把查询别名转换为可读标签：r.happiness_score -> happiness score
func Humanize(field string) string {
	name := field
	if i := strings.LastIndex(name, "."); i >= 0 && i < len(name)-1 {
		name = name[i+1:]
	}
	name = strings.ReplaceAll(name, "_", " ")
	return strings.Join(strings.Fields(name), " ")
}

// sentence 首字母大写
func sentence(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// valueOf 读取记录中的数值，无法解析时为缺口
func valueOf(row record.Record, field string) chart.Value {
	n, ok := record.Number(row[field])
	if !ok {
		return chart.Gap()
	}
	return chart.Number(n)
}

// sortedTimes 所有时间值的有序并集
func sortedTimes(rs record.ResultSet, field string) []float64 {
	seen := make(map[float64]bool)
	var times []float64
	for _, row := range rs.Rows {
		t, ok := record.Number(row[field])
		if !ok || seen[t] {
			continue
		}
		seen[t] = true
		times = append(times, t)
	}
	sort.Float64s(times)
	return times
}

// rowsByTime 按时间升序排列的记录（稳定排序，无法解析的时间排在最后）
func rowsByTime(rs record.ResultSet, field string) []record.Record {
	rows := make([]record.Record, len(rs.Rows))
	copy(rows, rs.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		ti, okI := record.Number(rows[i][field])
		tj, okJ := record.Number(rows[j][field])
		if okI != okJ {
			return okI
		}
		return ti < tj
	})
	return rows
}

// timeLabels 时间轴标签
func timeLabels(times []float64) []string {
	labels := make([]string, len(times))
	for i, t := range times {
		labels[i] = record.FormatNumber(t)
	}
	return labels
}

// maxByCategory 每个分类下数值字段的最大值；没有有效值的分类保留为缺口
func maxByCategory(rs record.ResultSet, categoryField, valueField string, categories []string) map[string]chart.Value {
	result := make(map[string]chart.Value, len(categories))
	for _, c := range categories {
		result[c] = chart.Gap()
	}
	for _, row := range rs.Rows {
		key := record.Format(row[categoryField])
		n, ok := record.Number(row[valueField])
		if !ok {
			continue
		}
		current := result[key]
		if !current.Valid || n > current.Y {
			result[key] = chart.Number(n)
		}
	}
	return result
}

// sortDescending 按值降序排列分类（缺口排在最后，值相同保持原顺序）
func sortDescending(categories []string, values map[string]chart.Value) []string {
	out := make([]string, len(categories))
	copy(out, categories)
	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := values[out[i]], values[out[j]]
		if vi.Valid != vj.Valid {
			return vi.Valid
		}
		return vi.Y > vj.Y
	})
	return out
}

// paints 边框色（不透明）与填充色（半透明）
func paints(n int) (border, background chart.Paint) {
	border = chart.Paint(palette.Strings(palette.Palette(n)))
	background = make(chart.Paint, n)
	for i := 0; i < n; i++ {
		background[i] = palette.Transparent(i, n).String()
	}
	return border, background
}

// seriesPaint 第 i 个系列的边框色与填充色
func seriesPaint(i, total int) (border, background chart.Paint) {
	return chart.Paint{palette.At(i).String()}, chart.Paint{palette.Transparent(i, total).String()}
}
