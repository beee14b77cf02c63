package analyzer

import (
	"query-visualizer/internal/record"
	"strings"
)

const (
	// MinYear / MaxYear 时间字段取值范围
	MinYear = 1900
	MaxYear = 2100

	// NumericRatio 数值字段需要的可解析比例
	NumericRatio = 0.8

	// MaxCategories 分类字段的最大不同值数量（含）
	MaxCategories = 50
)

// timePatterns 时间字段名标记（不区分大小写）
var timePatterns = []string{"year", "date", "time", "y.year"}

// Classification 字段分类结果，顺序与结果集字段顺序一致
type Classification struct {
	NumericFields     []string `json:"numeric_fields"`
	StringFields      []string `json:"string_fields"`
	TimeFields        []string `json:"time_fields"`
	CategoricalFields []string `json:"categorical_fields"`
}

// FieldClassifier 字段分类器
type FieldClassifier struct {
	MinYear       float64
	MaxYear       float64
	NumericRatio  float64
	MaxCategories int
}

// NewFieldClassifier 创建分类器
func NewFieldClassifier() *FieldClassifier {
	return &FieldClassifier{
		MinYear:       MinYear,
		MaxYear:       MaxYear,
		NumericRatio:  NumericRatio,
		MaxCategories: MaxCategories,
	}
}

// Classify 使用默认阈值分类
func Classify(rs record.ResultSet) Classification {
	return NewFieldClassifier().Classify(rs)
}

// Classify 把字段划分为数值/时间/字符串/分类
// 前提：结果集非空，且所有记录共享第一条记录的字段。空结果集返回空分类。
func (c *FieldClassifier) Classify(rs record.ResultSet) Classification {
	var result Classification
	if rs.Empty() {
		return result
	}

	for _, field := range rs.Schema() {
		values := rs.Values(field)

		// 1. 时间字段：名称匹配 + 所有值都在年份范围内
		if c.isTemporal(field, values) {
			result.TimeFields = append(result.TimeFields, field)
			result.NumericFields = append(result.NumericFields, field)
			continue
		}

		// 2. 数值字段：可解析比例达到阈值
		if c.isNumeric(values) {
			result.NumericFields = append(result.NumericFields, field)
			continue
		}

		// 3. 字符串字段：以第一条记录的值为样本
		if _, ok := rs.Rows[0][field].(string); ok {
			result.StringFields = append(result.StringFields, field)
			distinct := len(rs.Distinct(field))
			if distinct > 1 && distinct <= c.MaxCategories {
				result.CategoricalFields = append(result.CategoricalFields, field)
			}
		}
		// 其他类型（布尔、对象、全空列）直接忽略
	}

	return result
}

// isTemporal 判断是否为时间字段
func (c *FieldClassifier) isTemporal(field string, values []any) bool {
	if !hasTimeName(field) {
		return false
	}
	for _, v := range values {
		n, ok := record.Number(v)
		if !ok || n < c.MinYear || n > c.MaxYear {
			return false
		}
	}
	return len(values) > 0
}

// isNumeric 判断是否为数值字段（nil 计为非数值）
func (c *FieldClassifier) isNumeric(values []any) bool {
	if len(values) == 0 {
		return false
	}
	numeric := 0
	for _, v := range values {
		if _, ok := record.Number(v); ok {
			numeric++
		}
	}
	return float64(numeric)/float64(len(values)) >= c.NumericRatio
}

// hasTimeName 字段名是否包含时间标记
func hasTimeName(field string) bool {
	lower := strings.ToLower(field)
	for _, pattern := range timePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// IsTemporal 字段是否为时间字段
func (c Classification) IsTemporal(field string) bool {
	return indexOf(c.TimeFields, field) >= 0
}

// IsCategorical 字段是否为分类字段
func (c Classification) IsCategorical(field string) bool {
	return indexOf(c.CategoricalFields, field) >= 0
}

// ValueFields 非时间的数值字段
func (c Classification) ValueFields() []string {
	var out []string
	for _, f := range c.NumericFields {
		if !c.IsTemporal(f) {
			out = append(out, f)
		}
	}
	return out
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
