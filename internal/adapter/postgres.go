package adapter

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

func init() {
	introspectors["postgres"] = postgresSchema{}
	statementErrors["postgres"] = postgresStatementError
}

// postgresSchema Postgres 结构查询（current_schema()）
type postgresSchema struct{}

func (postgresSchema) Tables(ctx context.Context, db *sql.DB) ([]Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT '', table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, err
	}
	tables, err := scanTables(rows)
	if err != nil {
		return nil, err
	}

	for i := range tables {
		rows, err := db.QueryContext(ctx, `
			SELECT
				c.column_name,
				c.data_type,
				c.is_nullable = 'YES',
				EXISTS (
					SELECT 1
					FROM information_schema.table_constraints tc
					JOIN information_schema.key_column_usage ku
						ON tc.constraint_name = ku.constraint_name
						AND tc.table_schema = ku.table_schema
					WHERE tc.constraint_type = 'PRIMARY KEY'
						AND ku.table_schema = c.table_schema
						AND ku.table_name = c.table_name
						AND ku.column_name = c.column_name
				)
			FROM information_schema.columns c
			WHERE c.table_schema = current_schema() AND c.table_name = $1
			ORDER BY c.ordinal_position
		`, tables[i].Name)
		if err != nil {
			return nil, err
		}
		if tables[i].Columns, err = scanColumns(rows); err != nil {
			return nil, err
		}
	}
	return tables, nil
}

func (postgresSchema) ForeignKeys(ctx context.Context, db *sql.DB) ([]ForeignKey, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT
			kcu.table_name,
			kcu.column_name,
			ccu.table_name,
			ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = current_schema()
	`)
	if err != nil {
		return nil, err
	}
	return scanForeignKeys(rows)
}

// postgresStatementError 按 SQLSTATE 类别判断：
// 08 连接、28 认证、53 资源、57 运维干预、58 系统错误不算语句错误
func postgresStatementError(err error) bool {
	var pe *pq.Error
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.Code.Class() {
	case "08", "28", "53", "57", "58":
		return false
	}
	return true
}
