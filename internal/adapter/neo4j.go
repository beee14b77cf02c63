package adapter

import (
	"context"
	"errors"
	"fmt"
	"query-visualizer/internal/record"
	"sort"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jExecutor Cypher 执行器，会话以只读模式打开
type Neo4jExecutor struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jExecutor 创建 Neo4j 执行器并校验连接
func NewNeo4jExecutor(ctx context.Context, uri, user, password, database string) (*Neo4jExecutor, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connect neo4j %s: %w", uri, err)
	}
	return &Neo4jExecutor{driver: driver, database: database}, nil
}

func (e *Neo4jExecutor) session(ctx context.Context) neo4j.SessionWithContext {
	return e.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: e.database,
	})
}

// Execute 执行 Cypher 查询；节点、关系、路径序列化为 map
func (e *Neo4jExecutor) Execute(ctx context.Context, query string) (record.ResultSet, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	session := e.session(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return record.ResultSet{}, cypherError("run cypher", err)
	}
	keys, err := result.Keys()
	if err != nil {
		return record.ResultSet{}, cypherError("read keys", err)
	}

	rs := record.ResultSet{Columns: keys, Rows: []record.Record{}}
	for result.Next(ctx) {
		rec := result.Record()
		row := make(record.Record, len(rec.Keys))
		for i, key := range rec.Keys {
			row[key] = serializeRow(rec.Values[i])
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := result.Err(); err != nil {
		return record.ResultSet{}, cypherError("iterate", err)
	}
	return rs, nil
}

// cypherError Neo.ClientError.* 视为语句错误（安全类除外）
func cypherError(op string, err error) error {
	wrapped := fmt.Errorf("%s: %w", op, err)
	var ne *neo4j.Neo4jError
	if errors.As(err, &ne) && ne.Classification() == "ClientError" && !ne.HasSecurityCode() {
		return &QueryError{Err: wrapped}
	}
	return wrapped
}

// serializeRow 顶层值：节点和关系完整序列化，其他 map 只保留属性
func serializeRow(v any) any {
	switch val := v.(type) {
	case neo4j.Node, neo4j.Relationship:
		return serialize(val)
	case map[string]any:
		props := make(map[string]any, len(val))
		for k, p := range val {
			props[k] = p
		}
		return props
	default:
		return serialize(v)
	}
}

// serialize 把图类型转换为可 JSON 编码的结构
func serialize(v any) any {
	switch val := v.(type) {
	case neo4j.Node:
		return map[string]any{
			"id":         val.ElementId,
			"labels":     val.Labels,
			"properties": serializeMap(val.Props),
		}
	case neo4j.Relationship:
		return map[string]any{
			"id":         val.ElementId,
			"type":       val.Type,
			"start":      val.StartElementId,
			"end":        val.EndElementId,
			"properties": serializeMap(val.Props),
		}
	case neo4j.Path:
		nodes := make([]any, len(val.Nodes))
		for i, n := range val.Nodes {
			nodes[i] = serialize(n)
		}
		rels := make([]any, len(val.Relationships))
		for i, r := range val.Relationships {
			rels[i] = serialize(r)
		}
		return map[string]any{"nodes": nodes, "relationships": rels}
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = serialize(item)
		}
		return out
	case map[string]any:
		return serializeMap(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case neo4j.Date:
		return val.Time().Format("2006-01-02")
	case neo4j.LocalDateTime:
		return val.Time().Format("2006-01-02T15:04:05")
	case neo4j.Duration:
		return val.String()
	default:
		return v
	}
}

func serializeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = serialize(v)
	}
	return out
}

// Describe 列出节点标签、关系类型与属性键
func (e *Neo4jExecutor) Describe(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	labels, err := e.column(ctx, "CALL db.labels() YIELD label RETURN label")
	if err != nil {
		return "", err
	}
	types, err := e.column(ctx, "CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType")
	if err != nil {
		return "", err
	}
	keys, err := e.column(ctx, "CALL db.propertyKeys() YIELD propertyKey RETURN propertyKey")
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, l := range labels {
		sb.WriteString(fmt.Sprintf("(:%s)\n", l))
	}
	sb.WriteString("\nRelationships:\n")
	for _, t := range types {
		sb.WriteString(fmt.Sprintf("[:%s]\n", t))
	}
	sb.WriteString("\nProperty keys: " + strings.Join(keys, ", ") + "\n")
	return sb.String(), nil
}

// column 执行单列查询并返回排序后的字符串
func (e *Neo4jExecutor) column(ctx context.Context, query string) ([]string, error) {
	rs, err := e.Execute(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(rs.Columns) == 0 {
		return nil, nil
	}
	values := make([]string, 0, rs.Len())
	for _, v := range rs.Values(rs.Columns[0]) {
		values = append(values, record.Format(v))
	}
	sort.Strings(values)
	return values, nil
}

// Close 关闭驱动
func (e *Neo4jExecutor) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}
