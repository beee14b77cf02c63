package renderer

import (
	"fmt"
	"io"
	"query-visualizer/internal/chart"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// 缺失数据点在 ECharts 中以 "-" 表示（画缺口，不补 0）
const gapValue = "-"

// Widget 已挂载的图表组件
type Widget interface {
	Render(w io.Writer) error
}

// newWidget 把图表规格转换为 go-echarts 组件
func newWidget(spec chart.Spec) (Widget, error) {
	switch spec.Type {
	case chart.TypeBar:
		return newBar(spec), nil
	case chart.TypeLine:
		return newLine(spec), nil
	case chart.TypePie:
		return newPie(spec), nil
	case chart.TypeRadar:
		return newRadar(spec), nil
	case chart.TypeScatter:
		return newScatter(spec), nil
	default:
		return nil, fmt.Errorf("unsupported chart type %q", spec.Type)
	}
}

func initOpts() charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		Width:  "100%",
		Height: "360px",
	})
}

func titleOpts(spec chart.Spec) charts.GlobalOpts {
	return charts.WithTitleOpts(opts.Title{Title: spec.Title})
}

// seriesColors 每个系列的边框色
func seriesColors(datasets []chart.Dataset) opts.Colors {
	colors := make(opts.Colors, 0, len(datasets))
	for _, ds := range datasets {
		if len(ds.BorderColor) > 0 {
			colors = append(colors, ds.BorderColor[0])
		}
	}
	return colors
}

// pick 取第 i 个颜色，单色时所有点共用
func pick(p chart.Paint, i int) string {
	switch {
	case len(p) == 0:
		return ""
	case len(p) == 1:
		return p[0]
	default:
		return p[i%len(p)]
	}
}

func value(v chart.Value) any {
	if !v.Valid {
		return gapValue
	}
	return v.Y
}

func newBar(spec chart.Spec) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts(),
		titleOpts(spec),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithColorsOpts(seriesColors(spec.Data.Datasets)),
	)
	bar.SetXAxis(spec.Data.Labels)
	for _, ds := range spec.Data.Datasets {
		items := make([]opts.BarData, len(ds.Data))
		for i, v := range ds.Data {
			items[i] = opts.BarData{
				Value: value(v),
				ItemStyle: &opts.ItemStyle{
					Color:       pick(ds.BackgroundColor, i),
					BorderColor: pick(ds.BorderColor, i),
				},
			}
		}
		bar.AddSeries(ds.Label, items)
	}
	return bar
}

func newLine(spec chart.Spec) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		initOpts(),
		titleOpts(spec),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(len(spec.Data.Datasets) > 1)}),
		charts.WithColorsOpts(seriesColors(spec.Data.Datasets)),
	)
	line.SetXAxis(spec.Data.Labels)
	for _, ds := range spec.Data.Datasets {
		items := make([]opts.LineData, len(ds.Data))
		for i, v := range ds.Data {
			items[i] = opts.LineData{Value: value(v)}
		}
		seriesOpts := []charts.SeriesOpts{
			charts.WithLineChartOpts(opts.LineChart{
				Smooth:       opts.Bool(ds.Tension > 0),
				ConnectNulls: opts.Bool(ds.SpanGaps),
			}),
		}
		if ds.Fill {
			seriesOpts = append(seriesOpts, charts.WithAreaStyleOpts(opts.AreaStyle{
				Color:   pick(ds.BackgroundColor, 0),
				Opacity: 1,
			}))
		}
		line.AddSeries(ds.Label, items, seriesOpts...)
	}
	return line
}

func newPie(spec chart.Spec) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		initOpts(),
		titleOpts(spec),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
	)
	for _, ds := range spec.Data.Datasets {
		items := make([]opts.PieData, 0, len(ds.Data))
		for i, v := range ds.Data {
			if !v.Valid || i >= len(spec.Data.Labels) {
				continue
			}
			items = append(items, opts.PieData{
				Name:  spec.Data.Labels[i],
				Value: v.Y,
				ItemStyle: &opts.ItemStyle{
					Color:       pick(ds.BackgroundColor, i),
					BorderColor: pick(ds.BorderColor, i),
				},
			})
		}
		pie.AddSeries(ds.Label, items,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {d}%"}),
		)
	}
	return pie
}

func newRadar(spec chart.Spec) *charts.Radar {
	indicators := make([]*opts.Indicator, len(spec.Data.Labels))
	for i, label := range spec.Data.Labels {
		indicators[i] = &opts.Indicator{Name: label}
	}

	radar := charts.NewRadar()
	radar.SetGlobalOptions(
		initOpts(),
		titleOpts(spec),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
		charts.WithRadarComponentOpts(opts.RadarComponent{Indicator: indicators}),
		charts.WithColorsOpts(seriesColors(spec.Data.Datasets)),
	)
	for _, ds := range spec.Data.Datasets {
		values := make([]any, len(ds.Data))
		for i, v := range ds.Data {
			values[i] = value(v)
		}
		radar.AddSeries(ds.Label, []opts.RadarData{{Name: ds.Label, Value: values}},
			charts.WithAreaStyleOpts(opts.AreaStyle{
				Color:   pick(ds.BackgroundColor, 0),
				Opacity: 1,
			}),
		)
	}
	return radar
}

func newScatter(spec chart.Spec) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		initOpts(),
		titleOpts(spec),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Scale: opts.Bool(true)}),
		charts.WithColorsOpts(seriesColors(spec.Data.Datasets)),
	)
	for _, ds := range spec.Data.Datasets {
		items := make([]opts.ScatterData, 0, len(ds.Data))
		for _, v := range ds.Data {
			if !v.Valid {
				continue
			}
			items = append(items, opts.ScatterData{Value: []float64{v.X, v.Y}})
		}
		scatter.AddSeries(ds.Label, items)
	}
	return scatter
}
