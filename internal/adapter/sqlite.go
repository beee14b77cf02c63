package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
)

func init() {
	introspectors["sqlite"] = sqliteSchema{}
	statementErrors["sqlite"] = sqliteStatementError
}

// sqliteSchema SQLite 结构查询（sqlite_master + PRAGMA）
type sqliteSchema struct{}

func (sqliteSchema) tableNames(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s sqliteSchema) Tables(ctx context.Context, db *sql.DB) ([]Table, error) {
	names, err := s.tableNames(ctx, db)
	if err != nil {
		return nil, err
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(name)))
		if err != nil {
			return nil, err
		}

		var cols []Column
		for rows.Next() {
			var cid, notNull, pk int
			var colName, colType string
			var dflt sql.NullString
			if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
				rows.Close()
				return nil, err
			}
			cols = append(cols, Column{
				Name:         colName,
				DataType:     colType,
				Nullable:     notNull == 0,
				IsPrimaryKey: pk > 0,
			})
		}
		rows.Close()
		tables = append(tables, Table{Name: name, Columns: cols})
	}
	return tables, nil
}

func (s sqliteSchema) ForeignKeys(ctx context.Context, db *sql.DB) ([]ForeignKey, error) {
	names, err := s.tableNames(ctx, db)
	if err != nil {
		return nil, err
	}

	var fks []ForeignKey
	for _, name := range names {
		rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(name)))
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id, seq int
			var table, from string
			var to, onUpdate, onDelete, match sql.NullString
			if err := rows.Scan(&id, &seq, &table, &from, &to, &onUpdate, &onDelete, &match); err != nil {
				rows.Close()
				return nil, err
			}
			fks = append(fks, ForeignKey{FromTable: name, FromColumn: from, ToTable: table, ToColumn: to.String})
		}
		rows.Close()
	}
	return fks, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// sqliteStatementError 主结果码为 BUSY/LOCKED/IOERR/FULL/CANTOPEN 时视为环境故障
func sqliteStatementError(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case 5, 6, 10, 13, 14:
		return false
	}
	return true
}
