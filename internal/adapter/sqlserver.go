package adapter

import (
	"context"
	"database/sql"
	"errors"

	mssql "github.com/denisenkom/go-mssqldb"
)

func init() {
	introspectors["sqlserver"] = sqlServerSchema{}
	statementErrors["sqlserver"] = sqlServerStatementError
}

// sqlServerSchema SQL Server 结构查询
type sqlServerSchema struct{}

func (sqlServerSchema) Tables(ctx context.Context, db *sql.DB) ([]Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT TABLE_SCHEMA, TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_SCHEMA, TABLE_NAME
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
				c.COLUMN_NAME,
				c.DATA_TYPE,
				CASE WHEN c.IS_NULLABLE = 'YES' THEN 1 ELSE 0 END as NULLABLE,
				CASE WHEN pk.COLUMN_NAME IS NOT NULL THEN 1 ELSE 0 END as IS_PK
			FROM INFORMATION_SCHEMA.COLUMNS c
			LEFT JOIN (
				SELECT ku.TABLE_SCHEMA, ku.TABLE_NAME, ku.COLUMN_NAME
				FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
				JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE ku
					ON tc.CONSTRAINT_NAME = ku.CONSTRAINT_NAME
				WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
			) pk ON c.TABLE_SCHEMA = pk.TABLE_SCHEMA
				AND c.TABLE_NAME = pk.TABLE_NAME
				AND c.COLUMN_NAME = pk.COLUMN_NAME
			WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
			ORDER BY c.ORDINAL_POSITION
		`, tables[i].Schema, tables[i].Name)
		if err != nil {
			return nil, err
		}
		if tables[i].Columns, err = scanColumns(rows); err != nil {
			return nil, err
		}
	}
	return tables, nil
}

func (sqlServerSchema) ForeignKeys(ctx context.Context, db *sql.DB) ([]ForeignKey, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT
			OBJECT_NAME(fk.parent_object_id) as from_table,
			COL_NAME(fkc.parent_object_id, fkc.parent_column_id) as from_column,
			OBJECT_NAME(fk.referenced_object_id) as to_table,
			COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id) as to_column
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
	`)
	if err != nil {
		return nil, err
	}
	return scanForeignKeys(rows)
}

// sqlServerStatementError 服务端错误，登录失败(18456)除外
func sqlServerStatementError(err error) bool {
	var me mssql.Error
	if !errors.As(err, &me) {
		return false
	}
	return me.Number != 18456
}
