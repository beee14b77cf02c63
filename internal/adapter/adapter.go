package adapter

import (
	"context"
	"errors"
	"fmt"
	"query-visualizer/internal/record"
	"strings"
)

// ErrWriteQuery 执行器只接受只读查询
var ErrWriteQuery = errors.New("only read queries are allowed")

// QueryError 语句本身被数据库拒绝（语法、类型、未知标识符），与连接故障区分
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string { return e.Err.Error() }

func (e *QueryError) Unwrap() error { return e.Err }

// IsQueryError 错误是否由查询语句本身引起
func IsQueryError(err error) bool {
	if errors.Is(err, ErrWriteQuery) {
		return true
	}
	var qe *QueryError
	return errors.As(err, &qe)
}

// Executor 查询执行器接口
type Executor interface {
	// Execute 执行只读查询，返回按列顺序排列的结果集
	Execute(ctx context.Context, query string) (record.ResultSet, error)

	// Describe 返回嵌入提示词的库结构描述
	Describe(ctx context.Context) (string, error)

	// Close 关闭连接
	Close(ctx context.Context) error
}

// Config 执行器配置
type Config struct {
	Backend string // neo4j 或 sql

	// Neo4j
	URI      string
	User     string
	Password string
	Database string

	// database/sql
	Driver string // mysql, sqlserver, postgres, sqlite
	DSN    string
}

// Open 按配置创建执行器
func Open(ctx context.Context, cfg Config) (Executor, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "neo4j":
		return NewNeo4jExecutor(ctx, cfg.URI, cfg.User, cfg.Password, cfg.Database)
	case "sql":
		return NewSQLExecutor(ctx, cfg.Driver, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown query backend %q", cfg.Backend)
	}
}

// SchemaMetadata 元数据
type SchemaMetadata struct {
	Tables      []Table
	ForeignKeys []ForeignKey
}

// Table 表信息
type Table struct {
	Schema  string
	Name    string
	Columns []Column
}

// Column 列信息
type Column struct {
	Name         string
	DataType     string
	Nullable     bool
	IsPrimaryKey bool
}

// ForeignKey 外键
type ForeignKey struct {
	FromTable  string
	FromColumn string
	ToTable    string
	ToColumn   string
}

// Describe 渲染为提示词中的结构描述：每表一行，外键单独列出
func (m *SchemaMetadata) Describe() string {
	var sb strings.Builder
	sb.WriteString("Tables:\n")
	for _, t := range m.Tables {
		name := t.Name
		if t.Schema != "" {
			name = t.Schema + "." + t.Name
		}
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			col := c.Name + " " + strings.ToUpper(c.DataType)
			if c.IsPrimaryKey {
				col += " PRIMARY KEY"
			}
			cols[i] = strings.TrimSpace(col)
		}
		sb.WriteString(fmt.Sprintf("%s(%s)\n", name, strings.Join(cols, ", ")))
	}

	if len(m.ForeignKeys) > 0 {
		sb.WriteString("\nForeign keys:\n")
		for _, fk := range m.ForeignKeys {
			sb.WriteString(fmt.Sprintf("%s.%s -> %s.%s\n", fk.FromTable, fk.FromColumn, fk.ToTable, fk.ToColumn))
		}
	}
	return sb.String()
}
