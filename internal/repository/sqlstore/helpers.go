package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/stoewer/go-strcase"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ============================================================================
// Column Mapping
// ============================================================================
//
// Row structs map to columns through their db tag. Fields without a tag use
// the snake_case form of the field name, matching the mapper installed on the
// sqlx handle, so named inserts and column lists always agree.

// columnName returns the column a struct field maps to, or "" to skip it
func columnName(f reflect.StructField) string {
	if f.PkgPath != "" {
		return ""
	}
	tag, ok := f.Tag.Lookup("db")
	if !ok {
		return strcase.SnakeCase(f.Name)
	}
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	if tag == "-" {
		return ""
	}
	return tag
}

// structColumns lists the columns of a row struct in field order
func structColumns(t reflect.Type) []string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	var cols []string
	for i := 0; i < t.NumField(); i++ {
		if name := columnName(t.Field(i)); name != "" {
			cols = append(cols, name)
		}
	}
	return cols
}

// insertQuery builds a named INSERT for every column of the row type
func insertQuery(table string, rowType reflect.Type) string {
	cols := structColumns(rowType)
	named := make([]string, len(cols))
	for i, c := range cols {
		named[i] = ":" + c
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(named, ", "))
}

// ============================================================================
// Table Replacement
// ============================================================================

// tableSchema is the DDL that recreates one table
type tableSchema struct {
	name    string
	create  string
	indexes []string
}

// recreate drops and recreates the table and its indexes
func (s tableSchema) recreate(ctx context.Context, tx *sqlx.Tx) error {
	stmts := append([]string{"DROP TABLE IF EXISTS " + s.name, s.create}, s.indexes...)
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("recreate %s: %w", s.name, err)
		}
	}
	return nil
}

// replaceTable recreates the table and inserts every row with one prepared statement
func replaceTable[T any](ctx context.Context, tx *sqlx.Tx, schema tableSchema, rows []T) error {
	if err := schema.recreate(ctx, tx); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	stmt, err := tx.PrepareNamedContext(ctx, insertQuery(schema.name, reflect.TypeOf(rows[0])))
	if err != nil {
		return fmt.Errorf("prepare insert into %s: %w", schema.name, err)
	}
	defer stmt.Close()

	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]); err != nil {
			return fmt.Errorf("insert into %s row %d: %w", schema.name, i+1, err)
		}
	}
	return nil
}
