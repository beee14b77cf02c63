package ai

import (
	"fmt"
	"regexp"
	"strings"
)

// HappinessSchema 默认的 Neo4j 图结构（世界幸福指数）
const HappinessSchema = `
(:Country{name})
(:Region{name})
(:Year{year})
(:MetricCategory{name})
(:HappinessTier{name})

Relationships:
# Core
(:Country)-[:BELONGS_TO]->(:Region)
(:Country)-[:HAS_HAPPINESS_DATA {happiness_score, happiness_rank, gdp_per_capita, social_support, healthy_life_expectancy, freedom_to_make_life_choices, generosity, perceptions_of_corruption}]->(:Year)

# Performance
(:Country)-[:EXCELS_IN {year, value, percentile}]->(:MetricCategory)
(:Country)-[:STRUGGLES_WITH {year, value, percentile}]->(:MetricCategory)
(:Country)-[:BELONGS_TO_TIER {year}]->(:HappinessTier)

# Temporal
(:Country)-[:IMPROVED_FROM {from_year, to_year, score_change, rank_change}]->(:Year)
(:Country)-[:DECLINED_FROM {from_year, to_year, score_change, rank_change}]->(:Year)

# Comparative
(:Country)-[:SIMILAR_TO {year, score_difference}]->(:Country)
(:Country)-[:ABOVE_REGIONAL_AVERAGE {metric, year, country_value, regional_average, difference}]->(:Region)
(:Country)-[:BELOW_REGIONAL_AVERAGE {metric, year, country_value, regional_average, difference}]->(:Region)
`

// Instruction 构建发给模型的提示词
func Instruction(dialect Dialect, schema, question string) string {
	if dialect == DialectSQL {
		return fmt.Sprintf(`
You are an assistant that translates natural language questions into SQL queries.
Use the schema below.
Write a single read-only SELECT statement. Alias computed columns with readable snake_case names.
Return only the SQL query.
%s
Question: %s
`, schema, question)
	}
	return fmt.Sprintf(`
You are an assistant that translates natural language questions into Cypher queries.
Use the schema below.
Properties like happiness_score, happiness_rank, etc. are on the relationship HAS_HAPPINESS_DATA, not the Year node.
Make sure to always return the country name as `+"`c.name`"+` and any relationship properties requested.
Return only the Cypher query.
%s
Question: %s
`, schema, question)
}

// Clean 去掉模型输出中的转义符与代码块标记
func Clean(raw string) string {
	q := strings.ReplaceAll(raw, `\n`, "\n")
	q = strings.ReplaceAll(q, `\`, "")
	for _, fence := range []string{"```cypher", "```sql", "```"} {
		q = strings.ReplaceAll(q, fence, "")
	}
	return strings.TrimSpace(q)
}

var (
	cypherWrites = []string{"create", "delete", "drop", "set", "merge", "remove", "detach"}
	sqlWrites    = []string{"create", "delete", "drop", "set", "insert", "update", "alter", "truncate", "grant", "replace"}

	cypherGuard = wordPattern(cypherWrites)
	sqlGuard    = wordPattern(sqlWrites)
)

func wordPattern(words []string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `)\b`)
}

// FindUnsafe 查找写操作关键字（整词匹配，不区分大小写）
func FindUnsafe(query string, dialect Dialect) (string, bool) {
	guard := cypherGuard
	if dialect == DialectSQL {
		guard = sqlGuard
	}
	m := guard.FindString(query)
	if m == "" {
		return "", false
	}
	return strings.ToLower(m), true
}
