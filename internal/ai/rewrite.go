package ai

import (
	"math"
	"regexp"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// SimilarityThreshold 属性名近似匹配阈值
const SimilarityThreshold = 0.8

// PropertyRewrite 关系属性修正规则
// 模型常把关系上的属性写成节点变量上的属性（y.happiness_score），
// 这里给关系补上变量并把这些属性改写到关系变量上。
type PropertyRewrite struct {
	Relationship string   // 关系类型
	Variable     string   // 关系变量名
	From         string   // 被误用的节点变量
	Properties   []string // 关系上的属性
}

// HappinessRewrite HAS_HAPPINESS_DATA 的修正规则
var HappinessRewrite = PropertyRewrite{
	Relationship: "HAS_HAPPINESS_DATA",
	Variable:     "r",
	From:         "y",
	Properties: []string{
		"happiness_score",
		"happiness_rank",
		"gdp_per_capita",
		"social_support",
		"healthy_life_expectancy",
		"freedom_to_make_life_choices",
		"generosity",
		"perceptions_of_corruption",
	},
}

// EnsureRelationshipProperties 使用默认规则修正查询
func EnsureRelationshipProperties(query string) string {
	return HappinessRewrite.Apply(query)
}

// Apply 执行改写；对已改写的查询再次执行结果不变
func (p PropertyRewrite) Apply(query string) string {
	anonymous := regexp.MustCompile(`-\[:` + regexp.QuoteMeta(p.Relationship) + `\]->`)
	query = anonymous.ReplaceAllString(query, "-["+p.Variable+":"+p.Relationship+"]->")

	access := regexp.MustCompile(`\b` + regexp.QuoteMeta(p.From) + `\.([A-Za-z_][A-Za-z0-9_]*)\b`)
	return access.ReplaceAllStringFunc(query, func(m string) string {
		name := m[len(p.From)+1:]
		if prop, ok := p.match(name); ok {
			return p.Variable + "." + prop
		}
		return m
	})
}

// match 精确匹配或近似匹配关系属性，返回规范属性名
func (p PropertyRewrite) match(name string) (string, bool) {
	best, bestScore := "", 0.0
	for _, prop := range p.Properties {
		score := NameSimilarity(name, prop)
		if score == 1 {
			return prop, true
		}
		if score > bestScore {
			best, bestScore = prop, score
		}
	}
	if bestScore > SimilarityThreshold {
		return best, true
	}
	return "", false
}

// NameSimilarity 计算命名相似度（1 - 编辑距离/最大长度，不区分大小写）
func NameSimilarity(name1, name2 string) float64 {
	n1 := strings.ToLower(name1)
	n2 := strings.ToLower(name2)

	if n1 == n2 {
		return 1.0
	}

	maxLen := math.Max(float64(len([]rune(n1))), float64(len([]rune(n2))))
	if maxLen == 0 {
		return 0
	}

	distance := levenshtein.DistanceForStrings([]rune(n1), []rune(n2), levenshtein.DefaultOptions)
	return 1.0 - float64(distance)/maxLen
}
