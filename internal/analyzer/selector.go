package analyzer

import (
	"fmt"
	"query-visualizer/internal/chart"
	"query-visualizer/internal/record"
)

// Scenario 一条图表推断规则：根据字段分类判断是否适用，并生成零个或多个图表
type Scenario interface {
	// Name 规则名称（写入 chart.Spec.Scenario）
	Name() string

	// Applies 是否适用，并给出原因
	Applies(ctx *Context) (bool, string)

	// Build 生成图表规格
	Build(ctx *Context) []chart.Spec
}

// Context 一次推断过程共享的上下文（同一份分类结果供所有规则使用）
type Context struct {
	Records record.ResultSet
	Fields  Classification

	ValueField    string // 主数值字段
	CategoryField string // 主分类字段
	TimeField     string // 主时间字段

	distinct map[string][]string
}

// NewContext 对结果集分类并选出主字段
func NewContext(rs record.ResultSet, fields Classification) *Context {
	ctx := &Context{
		Records:  rs,
		Fields:   fields,
		distinct: make(map[string][]string),
	}

	// 主数值字段：第一个非时间数值字段，否则第一个数值字段
	if values := fields.ValueFields(); len(values) > 0 {
		ctx.ValueField = values[0]
	} else if len(fields.NumericFields) > 0 {
		ctx.ValueField = fields.NumericFields[0]
	}
	if len(fields.CategoricalFields) > 0 {
		ctx.CategoryField = fields.CategoricalFields[0]
	}
	if len(fields.TimeFields) > 0 {
		ctx.TimeField = fields.TimeFields[0]
	}
	return ctx
}

// Distinct 字段的不同取值（首次出现顺序，带缓存）
func (c *Context) Distinct(field string) []string {
	if v, ok := c.distinct[field]; ok {
		return v
	}
	v := c.Records.Distinct(field)
	c.distinct[field] = v
	return v
}

// Decision 规则的判定结果，用于解释"为什么出现这张图"
type Decision struct {
	Scenario string `json:"scenario"`
	Applied  bool   `json:"applied"`
	Reason   string `json:"reason"`
	Charts   int    `json:"charts"`
}

// Selector 图表选择器：按固定顺序依次执行各规则，结果拼接
type Selector struct {
	classifier *FieldClassifier
	scenarios  []Scenario
}

// NewSelector 创建选择器；不传规则时使用默认规则链
func NewSelector(scenarios ...Scenario) *Selector {
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}
	return &Selector{
		classifier: NewFieldClassifier(),
		scenarios:  scenarios,
	}
}

// DefaultScenarios 默认规则链：时间序列、分类对比、单实体面积图、相关性散点、多指标雷达
func DefaultScenarios() []Scenario {
	return []Scenario{
		&TimeSeries{MaxSeries: 8},
		&CategoryComparison{MinCategories: 2, MaxCategories: 20, MaxPieSlices: 8},
		&SingleEntity{},
		&Correlation{},
		&MultiMetric{MinMetrics: 3, MinCategories: 2, MaxCategories: 8},
	}
}

// SelectCharts 使用默认规则链推断图表
func SelectCharts(rs record.ResultSet) []chart.Spec {
	return NewSelector().Select(rs)
}

// Select 推断图表规格；空结果集返回空列表
func (s *Selector) Select(rs record.ResultSet) []chart.Spec {
	specs, _ := s.run(rs)
	return specs
}

// Explain 返回每条规则的判定结果
func (s *Selector) Explain(rs record.ResultSet) []Decision {
	_, decisions := s.run(rs)
	return decisions
}

// Classify 使用选择器内部的分类器
func (s *Selector) Classify(rs record.ResultSet) Classification {
	return s.classifier.Classify(rs)
}

func (s *Selector) run(rs record.ResultSet) ([]chart.Spec, []Decision) {
	specs := []chart.Spec{}
	decisions := make([]Decision, 0, len(s.scenarios))
	if rs.Empty() {
		for _, sc := range s.scenarios {
			decisions = append(decisions, Decision{Scenario: sc.Name(), Reason: "empty result set"})
		}
		return specs, decisions
	}

	ctx := NewContext(rs, s.classifier.Classify(rs))
	for _, sc := range s.scenarios {
		ok, reason := sc.Applies(ctx)
		d := Decision{Scenario: sc.Name(), Applied: ok, Reason: reason}
		if ok {
			built := sc.Build(ctx)
			for i := range built {
				built[i].Scenario = sc.Name()
			}
			d.Charts = len(built)
			specs = append(specs, built...)
		}
		decisions = append(decisions, d)
	}
	return specs, decisions
}

// String 便于日志输出
func (d Decision) String() string {
	if d.Applied {
		return fmt.Sprintf("%s: applied (%d charts) - %s", d.Scenario, d.Charts, d.Reason)
	}
	return fmt.Sprintf("%s: skipped - %s", d.Scenario, d.Reason)
}
