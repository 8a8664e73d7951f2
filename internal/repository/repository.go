package repository

import (
	"context"

	"lightspeed/internal/domain"
)

// Repository defines the interface for relational asset storage
type Repository interface {
	// System-of-record tables
	ReplaceSystemTables(ctx context.Context, tables *domain.SystemTables) error
	Counts(ctx context.Context) (domain.TableCounts, error)

	// Unified table
	JoinSystems(ctx context.Context) ([]domain.UnifiedAsset, error)
	ReplaceUnified(ctx context.Context, assets []domain.UnifiedAsset) error

	// Generic access for feature projection
	LoadTable(ctx context.Context, table string) (*domain.Frame, error)

	// Run history
	RecordRun(ctx context.Context, run domain.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)

	// Close releases resources
	Close() error
}
