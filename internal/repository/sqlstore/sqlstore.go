// Package sqlstore implements repository.Repository over database/sql via sqlx.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/sirupsen/logrus"
	"github.com/stoewer/go-strcase"

	"lightspeed/internal/domain"

	_ "modernc.org/sqlite"
)

// Driver names
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// MemoryPath opens a private in-memory SQLite database
const MemoryPath = ":memory:"

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Store implements repository.Repository
type Store struct {
	db  *sqlx.DB
	log logrus.FieldLogger
}

// Option configures Open
type Option func(*options)

type options struct {
	busyTimeout time.Duration
	log         logrus.FieldLogger
}

// WithBusyTimeout sets the SQLite lock wait
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// WithLogger sets the store logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// Open connects to the store. source is a file path (or ":memory:") for
// sqlite and a DSN for mysql.
func Open(driver, source string, opts ...Option) (*Store, error) {
	o := options{busyTimeout: 5 * time.Second, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	dsn, err := dataSourceName(driver, source, o.busyTimeout)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.Mapper = reflectx.NewMapperFunc("db", strcase.SnakeCase)

	if driver == DriverSQLite {
		// one connection serializes writers and keeps ":memory:" a single database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, log: o.log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// dataSourceName builds the driver-specific connection string
func dataSourceName(driver, source string, busyTimeout time.Duration) (string, error) {
	switch driver {
	case DriverSQLite:
		if source == MemoryPath {
			return source, nil
		}
		if err := os.MkdirAll(filepath.Dir(source), 0755); err != nil {
			return "", fmt.Errorf("create database dir: %w", err)
		}
		return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
			source, busyTimeout.Milliseconds()), nil
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(source)
		if err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(runSchema)
	return err
}

// ReplaceSystemTables rewrites observability, inventory and ipam in one transaction
func (s *Store) ReplaceSystemTables(ctx context.Context, tables *domain.SystemTables) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := replaceTable(ctx, tx, observabilitySchema, tables.Observability); err != nil {
		return err
	}
	if err := replaceTable(ctx, tx, inventorySchema, tables.Inventory); err != nil {
		return err
	}
	if err := replaceTable(ctx, tx, ipamSchema, tables.IPAM); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"observability": len(tables.Observability),
		"inventory":     len(tables.Inventory),
		"ipam":          len(tables.IPAM),
	}).Debug("Replaced system tables")
	return nil
}

// Counts returns the row count of each system table
func (s *Store) Counts(ctx context.Context) (domain.TableCounts, error) {
	var counts domain.TableCounts
	targets := []struct {
		table string
		dest  *int
	}{
		{domain.TableObservability, &counts.Observability},
		{domain.TableInventory, &counts.Inventory},
		{domain.TableIPAM, &counts.IPAM},
	}
	for _, t := range targets {
		if err := s.db.GetContext(ctx, t.dest, "SELECT COUNT(*) FROM "+t.table); err != nil {
			return domain.TableCounts{}, fmt.Errorf("failed to count %s: %w", t.table, err)
		}
	}
	return counts, nil
}

// JoinSystems left-joins observability with inventory and ipam.
// Returned rows carry no ids.
func (s *Store) JoinSystems(ctx context.Context) ([]domain.UnifiedAsset, error) {
	var rows []domain.UnifiedAsset
	if err := s.db.SelectContext(ctx, &rows, joinQuery); err != nil {
		return nil, fmt.Errorf("failed to join system tables: %w", err)
	}
	return rows, nil
}

// ReplaceUnified rewrites lightspeed_asset
func (s *Store) ReplaceUnified(ctx context.Context, assets []domain.UnifiedAsset) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := replaceTable(ctx, tx, unifiedSchema, assets); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadTable reads a whole table as strings in id order. NULL becomes "".
func (s *Store) LoadTable(ctx context.Context, table string) (*domain.Frame, error) {
	key, ok := tableKeys[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}

	rows, err := s.db.QueryxContext(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY %s", table, key))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s columns: %w", table, err)
	}

	frame := domain.NewFrame(columns...)
	values := make([]sql.NullString, len(columns))
	dest := make([]interface{}, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = nullToString(v)
		}
		frame.Rows = append(frame.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", table, err)
	}
	return frame, nil
}

// runTimeLayout is fixed width so started_at sorts as text
const runTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// runRow is the pipeline_run row; columns come from the snake_case field names
type runRow struct {
	RunID      string
	StartedAt  string
	FinishedAt string
	Seed       int64
	NumAssets  int
	Status     string
	Error      sql.NullString
}

// RecordRun appends a run to the history
func (s *Store) RecordRun(ctx context.Context, run domain.RunRecord) error {
	row := runRow{
		RunID:      run.RunID,
		StartedAt:  run.StartedAt.UTC().Format(runTimeLayout),
		FinishedAt: run.FinishedAt.UTC().Format(runTimeLayout),
		Seed:       run.Seed,
		NumAssets:  run.NumAssets,
		Status:     run.Status,
		Error:      stringToNull(run.Error),
	}
	if _, err := s.db.NamedExecContext(ctx, insertQuery("pipeline_run", reflect.TypeOf(row)), row); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	var rows []runRow
	query := s.db.Rebind(`SELECT run_id, started_at, finished_at, seed, num_assets, status, error
		FROM pipeline_run ORDER BY started_at DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]domain.RunRecord, len(rows))
	for i, r := range rows {
		started, err := time.Parse(runTimeLayout, r.StartedAt)
		if err != nil {
			return nil, fmt.Errorf("run %s: parse started_at: %w", r.RunID, err)
		}
		finished, err := time.Parse(runTimeLayout, r.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("run %s: parse finished_at: %w", r.RunID, err)
		}
		runs[i] = domain.RunRecord{
			RunID:      r.RunID,
			StartedAt:  started,
			FinishedAt: finished,
			Seed:       r.Seed,
			NumAssets:  r.NumAssets,
			Status:     r.Status,
			Error:      nullToString(r.Error),
		}
	}
	return runs, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
