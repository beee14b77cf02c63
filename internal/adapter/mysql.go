package adapter

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

func init() {
	introspectors["mysql"] = mysqlSchema{}
	statementErrors["mysql"] = mysqlStatementError
}

// mysqlSchema MySQL 结构查询（当前库 DATABASE()）
type mysqlSchema struct{}

func (mysqlSchema) Tables(ctx context.Context, db *sql.DB) ([]Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT '', TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
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
				COLUMN_NAME,
				DATA_TYPE,
				IS_NULLABLE = 'YES',
				COLUMN_KEY = 'PRI'
			FROM INFORMATION_SCHEMA.COLUMNS
			WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
			ORDER BY ORDINAL_POSITION
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

func (mysqlSchema) ForeignKeys(ctx context.Context, db *sql.DB) ([]ForeignKey, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT
			kcu.TABLE_NAME,
			kcu.COLUMN_NAME,
			kcu.REFERENCED_TABLE_NAME,
			kcu.REFERENCED_COLUMN_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		WHERE kcu.TABLE_SCHEMA = DATABASE()
			AND kcu.REFERENCED_TABLE_NAME IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	return scanForeignKeys(rows)
}

// mysqlStatementError 服务端返回的错误，排除连接数、认证、停机与锁等待
func mysqlStatementError(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	switch me.Number {
	case 1040, 1045, 1053, 1203, 1205:
		return false
	}
	return true
}
