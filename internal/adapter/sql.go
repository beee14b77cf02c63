package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"query-visualizer/internal/record"
	"strings"
	"time"
)

// introspector 各数据库的结构查询
type introspector interface {
	Tables(ctx context.Context, db *sql.DB) ([]Table, error)
	ForeignKeys(ctx context.Context, db *sql.DB) ([]ForeignKey, error)
}

// introspectors 驱动名 -> 结构查询实现（各驱动文件注册）
var introspectors = map[string]introspector{}

// statementErrors 驱动名 -> 判断错误是否来自语句本身
var statementErrors = map[string]func(error) bool{}

// QueryTimeout 单次查询超时
var QueryTimeout = 30 * time.Second

// SQLExecutor database/sql 执行器（MySQL, SQL Server, Postgres, SQLite）
type SQLExecutor struct {
	driver string
	db     *sql.DB
	schema introspector
}

// NewSQLExecutor 创建 SQL 执行器
func NewSQLExecutor(ctx context.Context, driver, dsn string) (*SQLExecutor, error) {
	schema, ok := introspectors[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	return &SQLExecutor{driver: driver, db: db, schema: schema}, nil
}

// isReadQuery 判断是否为只读语句
func isReadQuery(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "EXPLAIN", "PRAGMA", "VALUES"} {
		if strings.HasPrefix(q, prefix) {
			return true
		}
	}
	return false
}

// Execute 执行只读查询
func (e *SQLExecutor) Execute(ctx context.Context, query string) (record.ResultSet, error) {
	if !isReadQuery(query) {
		return record.ResultSet{}, ErrWriteQuery
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return record.ResultSet{}, e.wrap("query", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return record.ResultSet{}, fmt.Errorf("columns: %w", err)
	}
	cols = uniqueColumns(cols)

	rs := record.ResultSet{Columns: cols, Rows: []record.Record{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return record.ResultSet{}, fmt.Errorf("scan row: %w", err)
		}

		row := make(record.Record, len(cols))
		for i, v := range values {
			row[cols[i]] = formatValue(v)
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return record.ResultSet{}, e.wrap("iterate", err)
	}
	return rs, nil
}

// wrap 语句错误包装为 QueryError，连接错误原样返回
func (e *SQLExecutor) wrap(op string, err error) error {
	wrapped := fmt.Errorf("%s: %w", op, err)
	if rejected, ok := statementErrors[e.driver]; ok && rejected(err) {
		return &QueryError{Err: wrapped}
	}
	return wrapped
}

// Describe 查询库结构并渲染为提示词文本
func (e *SQLExecutor) Describe(ctx context.Context) (string, error) {
	meta, err := e.IntrospectSchema(ctx)
	if err != nil {
		return "", err
	}
	return meta.Describe(), nil
}

// IntrospectSchema 获取元数据
func (e *SQLExecutor) IntrospectSchema(ctx context.Context) (*SchemaMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	tables, err := e.schema.Tables(ctx, e.db)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	fks, err := e.schema.ForeignKeys(ctx, e.db)
	if err != nil {
		return nil, fmt.Errorf("list foreign keys: %w", err)
	}
	return &SchemaMetadata{Tables: tables, ForeignKeys: fks}, nil
}

// Close 关闭连接
func (e *SQLExecutor) Close(context.Context) error {
	return e.db.Close()
}

// formatValue 把驱动返回的值转换为可序列化的标量
func formatValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return val
	}
}

// uniqueColumns 重名列追加序号（name, name_2），避免同名字段互相覆盖
func uniqueColumns(cols []string) []string {
	seen := make(map[string]int, len(cols))
	out := make([]string, len(cols))
	for i, c := range cols {
		seen[c]++
		if seen[c] == 1 {
			out[i] = c
			continue
		}
		name := fmt.Sprintf("%s_%d", c, seen[c])
		for seen[name] > 0 {
			seen[c]++
			name = fmt.Sprintf("%s_%d", c, seen[c])
		}
		seen[name] = 1
		out[i] = name
	}
	return out
}

// scanTables 读取 (schema, table) 结果
func scanTables(rows *sql.Rows) ([]Table, error) {
	defer rows.Close()
	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// scanColumns 读取 (name, type, nullable, pk) 结果
func scanColumns(rows *sql.Rows) ([]Column, error) {
	defer rows.Close()
	var columns []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DataType, &c.Nullable, &c.IsPrimaryKey); err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

// scanForeignKeys 读取 (from_table, from_column, to_table, to_column) 结果
func scanForeignKeys(rows *sql.Rows) ([]ForeignKey, error) {
	defer rows.Close()
	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.FromTable, &fk.FromColumn, &fk.ToTable, &fk.ToColumn); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}
