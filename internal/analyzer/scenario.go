package analyzer

import (
	"fmt"
	"query-visualizer/internal/chart"
	"query-visualizer/internal/record"
)

// TimeSeries 规则 A：时间序列 -> 折线图
// 有分类字段且不同值不超过 MaxSeries 时每个分类一条线，否则单条面积折线。
type TimeSeries struct {
	MaxSeries int
}

func (s *TimeSeries) Name() string { return "time_series" }

func (s *TimeSeries) Applies(ctx *Context) (bool, string) {
	if len(ctx.Fields.TimeFields) == 0 {
		return false, "no temporal field"
	}
	if len(ctx.Fields.NumericFields) == 0 {
		return false, "no numeric field"
	}
	return true, fmt.Sprintf("%s plotted over %s", ctx.ValueField, ctx.TimeField)
}

func (s *TimeSeries) Build(ctx *Context) []chart.Spec {
	if ctx.CategoryField != "" && len(ctx.Distinct(ctx.CategoryField)) <= s.MaxSeries {
		return []chart.Spec{s.multiSeries(ctx)}
	}
	return []chart.Spec{s.singleSeries(ctx)}
}

// multiSeries 每个分类一条线；某时间点没有记录时留空（不插值、不补 0）
func (s *TimeSeries) multiSeries(ctx *Context) chart.Spec {
	times := sortedTimes(ctx.Records, ctx.TimeField)
	categories := ctx.Distinct(ctx.CategoryField)

	// 分类 -> 时间 -> 第一条匹配记录
	index := make(map[string]map[float64]record.Record, len(categories))
	for _, row := range ctx.Records.Rows {
		t, ok := record.Number(row[ctx.TimeField])
		if !ok {
			continue
		}
		key := record.Format(row[ctx.CategoryField])
		if index[key] == nil {
			index[key] = make(map[float64]record.Record)
		}
		if _, exists := index[key][t]; !exists {
			index[key][t] = row
		}
	}

	datasets := make([]chart.Dataset, 0, len(categories))
	for i, category := range categories {
		data := make([]chart.Value, len(times))
		for j, t := range times {
			row, ok := index[category][t]
			if !ok {
				data[j] = chart.Gap()
				continue
			}
			data[j] = valueOf(row, ctx.ValueField)
		}
		border, background := seriesPaint(i, len(categories))
		datasets = append(datasets, chart.Dataset{
			Label:           category,
			Data:            data,
			BorderColor:     border,
			BackgroundColor: background,
			SpanGaps:        true,
			Tension:         0.3,
		})
	}

	return chart.Spec{
		Type:        chart.TypeLine,
		Title:       sentence(fmt.Sprintf("%s over time by %s", Humanize(ctx.ValueField), Humanize(ctx.CategoryField))),
		Description: fmt.Sprintf("One line per %s; years without data are left as gaps.", Humanize(ctx.CategoryField)),
		Data: chart.Data{
			Labels:   timeLabels(times),
			Datasets: datasets,
		},
	}
}

// singleSeries 单条面积折线，按时间升序
func (s *TimeSeries) singleSeries(ctx *Context) chart.Spec {
	rows := rowsByTime(ctx.Records, ctx.TimeField)
	labels := make([]string, len(rows))
	data := make([]chart.Value, len(rows))
	for i, row := range rows {
		labels[i] = record.Format(row[ctx.TimeField])
		data[i] = valueOf(row, ctx.ValueField)
	}

	border, background := seriesPaint(0, 1)
	return chart.Spec{
		Type:        chart.TypeLine,
		Title:       sentence(fmt.Sprintf("%s over time", Humanize(ctx.ValueField))),
		Description: fmt.Sprintf("Sorted by %s.", Humanize(ctx.TimeField)),
		Data: chart.Data{
			Labels: labels,
			Datasets: []chart.Dataset{{
				Label:           Humanize(ctx.ValueField),
				Data:            data,
				BorderColor:     border,
				BackgroundColor: background,
				Fill:            true,
				SpanGaps:        true,
				Tension:         0.3,
			}},
		},
	}
}

// CategoryComparison 规则 B：分类对比 -> 柱状图（降序），分类较少时追加饼图
// 每个分类取数值字段的最大值。
type CategoryComparison struct {
	MinCategories int
	MaxCategories int
	MaxPieSlices  int
}

func (s *CategoryComparison) Name() string { return "category_comparison" }

func (s *CategoryComparison) Applies(ctx *Context) (bool, string) {
	if ctx.CategoryField == "" {
		return false, "no categorical field"
	}
	if len(ctx.Fields.NumericFields) == 0 {
		return false, "no numeric field"
	}
	n := len(ctx.Distinct(ctx.CategoryField))
	if n < s.MinCategories || n > s.MaxCategories {
		return false, fmt.Sprintf("%d distinct %s values outside [%d, %d]", n, ctx.CategoryField, s.MinCategories, s.MaxCategories)
	}
	return true, fmt.Sprintf("max %s per %s across %d categories", ctx.ValueField, ctx.CategoryField, n)
}

func (s *CategoryComparison) Build(ctx *Context) []chart.Spec {
	categories := ctx.Distinct(ctx.CategoryField)
	maxima := maxByCategory(ctx.Records, ctx.CategoryField, ctx.ValueField, categories)
	ordered := sortDescending(categories, maxima)

	data := make([]chart.Value, len(ordered))
	for i, c := range ordered {
		data[i] = maxima[c]
	}
	value := Humanize(ctx.ValueField)
	category := Humanize(ctx.CategoryField)

	border, background := paints(len(ordered))
	specs := []chart.Spec{{
		Type:        chart.TypeBar,
		Title:       sentence(fmt.Sprintf("%s by %s", value, category)),
		Description: fmt.Sprintf("Highest %s per %s, sorted descending.", value, category),
		Data: chart.Data{
			Labels: ordered,
			Datasets: []chart.Dataset{{
				Label:           value,
				Data:            data,
				BorderColor:     border,
				BackgroundColor: background,
			}},
		},
	}}

	if len(ordered) <= s.MaxPieSlices {
		specs = append(specs, chart.Spec{
			Type:        chart.TypePie,
			Title:       sentence(fmt.Sprintf("%s share by %s", value, category)),
			Description: fmt.Sprintf("Relative size of the highest %s per %s.", value, category),
			Data: chart.Data{
				Labels: append([]string(nil), ordered...),
				Datasets: []chart.Dataset{{
					Label:           value,
					Data:            append([]chart.Value(nil), data...),
					BorderColor:     chart.Paint{"#ffffff"},
					BackgroundColor: border,
				}},
			},
		})
	}
	return specs
}

// SingleEntity 规则 C：只有一个实体（唯一的字符串字段只有一个取值）时画该实体随时间变化的面积图
// 与其他规则叠加，不互斥。
type SingleEntity struct{}

func (s *SingleEntity) Name() string { return "single_entity" }

func (s *SingleEntity) Applies(ctx *Context) (bool, string) {
	if len(ctx.Fields.TimeFields) == 0 || len(ctx.Fields.NumericFields) == 0 {
		return false, "needs temporal and numeric fields"
	}
	if len(ctx.Fields.StringFields) != 1 {
		return false, fmt.Sprintf("%d entity fields, need exactly 1", len(ctx.Fields.StringFields))
	}
	field := ctx.Fields.StringFields[0]
	if n := len(ctx.Distinct(field)); n != 1 {
		return false, fmt.Sprintf("%s has %d distinct values, need exactly 1", field, n)
	}
	return true, fmt.Sprintf("single %s across time", field)
}

func (s *SingleEntity) Build(ctx *Context) []chart.Spec {
	field := ctx.Fields.StringFields[0]
	entity := ctx.Distinct(field)[0]
	rows := rowsByTime(ctx.Records, ctx.TimeField)

	labels := make([]string, len(rows))
	data := make([]chart.Value, len(rows))
	for i, row := range rows {
		labels[i] = record.Format(row[ctx.TimeField])
		data[i] = valueOf(row, ctx.ValueField)
	}

	border, background := seriesPaint(0, 1)
	return []chart.Spec{{
		Type:        chart.TypeLine,
		Title:       sentence(fmt.Sprintf("%s for %s", Humanize(ctx.ValueField), entity)),
		Description: fmt.Sprintf("%s over %s.", entity, Humanize(ctx.TimeField)),
		Data: chart.Data{
			Labels: labels,
			Datasets: []chart.Dataset{{
				Label:           entity,
				Data:            data,
				BorderColor:     border,
				BackgroundColor: background,
				Fill:            true,
				SpanGaps:        true,
				Tension:         0.3,
			}},
		},
	}}
}

// Correlation 规则 D：没有时间字段、至少两个数值字段 -> 散点图
type Correlation struct{}

func (s *Correlation) Name() string { return "correlation" }

func (s *Correlation) Applies(ctx *Context) (bool, string) {
	if len(ctx.Fields.TimeFields) > 0 {
		return false, "temporal field present"
	}
	values := ctx.Fields.ValueFields()
	if len(values) < 2 {
		return false, fmt.Sprintf("%d numeric fields, need at least 2", len(values))
	}
	return true, fmt.Sprintf("%s against %s", values[1], values[0])
}

func (s *Correlation) Build(ctx *Context) []chart.Spec {
	values := ctx.Fields.ValueFields()
	xField, yField := values[0], values[1]

	var points []chart.Value
	for _, row := range ctx.Records.Rows {
		x, okX := record.Number(row[xField])
		y, okY := record.Number(row[yField])
		if !okX || !okY {
			continue
		}
		points = append(points, chart.XY(x, y))
	}

	border, background := seriesPaint(0, 1)
	return []chart.Spec{{
		Type:        chart.TypeScatter,
		Title:       sentence(fmt.Sprintf("%s vs %s", Humanize(yField), Humanize(xField))),
		Description: fmt.Sprintf("One point per row with both %s and %s.", Humanize(xField), Humanize(yField)),
		Data: chart.Data{
			Datasets: []chart.Dataset{{
				Label:           Humanize(yField),
				Data:            points,
				BorderColor:     border,
				BackgroundColor: background,
			}},
		},
	}}
}

// MultiMetric 规则 E：少量分类 + 至少三个数值指标 -> 雷达图，每个分类一个系列，取各指标最大值
type MultiMetric struct {
	MinMetrics    int
	MinCategories int
	MaxCategories int
}

func (s *MultiMetric) Name() string { return "multi_metric" }

func (s *MultiMetric) Applies(ctx *Context) (bool, string) {
	if ctx.CategoryField == "" {
		return false, "no categorical field"
	}
	metrics := ctx.Fields.ValueFields()
	if len(metrics) < s.MinMetrics {
		return false, fmt.Sprintf("%d metrics, need at least %d", len(metrics), s.MinMetrics)
	}
	n := len(ctx.Distinct(ctx.CategoryField))
	if n < s.MinCategories || n > s.MaxCategories {
		return false, fmt.Sprintf("%d distinct %s values outside [%d, %d]", n, ctx.CategoryField, s.MinCategories, s.MaxCategories)
	}
	return true, fmt.Sprintf("%d metrics compared across %d categories", len(metrics), n)
}

func (s *MultiMetric) Build(ctx *Context) []chart.Spec {
	metrics := ctx.Fields.ValueFields()
	categories := ctx.Distinct(ctx.CategoryField)

	labels := make([]string, len(metrics))
	maxima := make([]map[string]chart.Value, len(metrics))
	for i, m := range metrics {
		labels[i] = Humanize(m)
		maxima[i] = maxByCategory(ctx.Records, ctx.CategoryField, m, categories)
	}

	datasets := make([]chart.Dataset, 0, len(categories))
	for i, c := range categories {
		data := make([]chart.Value, len(metrics))
		for j := range metrics {
			data[j] = maxima[j][c]
		}
		border, background := seriesPaint(i, len(categories))
		datasets = append(datasets, chart.Dataset{
			Label:           c,
			Data:            data,
			BorderColor:     border,
			BackgroundColor: background,
			Fill:            true,
		})
	}

	return []chart.Spec{{
		Type:        chart.TypeRadar,
		Title:       sentence(fmt.Sprintf("%s profile", Humanize(ctx.CategoryField))),
		Description: fmt.Sprintf("Highest value of each metric per %s.", Humanize(ctx.CategoryField)),
		Data: chart.Data{
			Labels:   labels,
			Datasets: datasets,
		},
	}}
}
