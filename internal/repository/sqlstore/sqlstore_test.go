package sqlstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"lightspeed/internal/domain"
	"lightspeed/internal/logging"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestStore creates an in-memory SQLite store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(DriverSQLite, MemoryPath, WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// assertNoError fails the test if err is not nil
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertEqual fails the test if expected != actual
func assertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}

// sampleTables has one asset present everywhere, one missing from inventory
// and one missing from ipam
func sampleTables() *domain.SystemTables {
	return &domain.SystemTables{
		Observability: []domain.ObservabilityRow{
			{ID: 1, IPAddress: "10.30.0.1", Hostname: "SEAWAED01", FQDN: "SEAWAED01.west.lightspeed.net", Status: "active"},
			{ID: 2, IPAddress: "10.10.0.2", Hostname: "DALTXCO02", FQDN: "DALTXCO02.central.lightspeed.net", Status: "down"},
			{ID: 3, IPAddress: "10.20.0.3", Hostname: "NYCNYSW03", FQDN: "NYCNYSW03.east.lightspeed.net", Status: "degraded"},
		},
		Inventory: []domain.InventoryRow{
			{ID: 1, IPAddress: "10.30.0.1", Hostname: "SEAWAED01", Vendor: "Cisco", Model: "ISR4431"},
			{ID: 2, IPAddress: "10.20.0.3", Hostname: "NYCNYSW03", Vendor: "Arista", Model: "7050X3"},
		},
		IPAM: []domain.IPAMRow{
			{ID: 1, IPAddress: "10.30.0.1", FQDN: "SEAWAED01.west.lightspeed.net", Region: "west"},
			{ID: 2, IPAddress: "10.10.0.2", FQDN: "DALTXCO02.central.lightspeed.net", Region: "central"},
		},
	}
}

// ============================================================================
// System Tables
// ============================================================================

func TestReplaceSystemTables(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	assertNoError(t, store.ReplaceSystemTables(ctx, sampleTables()))

	counts, err := store.Counts(ctx)
	assertNoError(t, err)
	assertEqual(t, domain.TableCounts{Observability: 3, Inventory: 2, IPAM: 2}, counts)

	// replacing drops the previous contents
	smaller := sampleTables()
	smaller.Inventory = smaller.Inventory[:1]
	assertNoError(t, store.ReplaceSystemTables(ctx, smaller))

	counts, err = store.Counts(ctx)
	assertNoError(t, err)
	assertEqual(t, 1, counts.Inventory)
}

func TestReplaceSystemTablesEmpty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	assertNoError(t, store.ReplaceSystemTables(ctx, &domain.SystemTables{}))
	counts, err := store.Counts(ctx)
	assertNoError(t, err)
	assertEqual(t, domain.TableCounts{}, counts)
}

func TestReplaceSystemTablesRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	assertNoError(t, store.ReplaceSystemTables(ctx, sampleTables()))

	// duplicate primary key fails the ipam insert after the other tables were rewritten
	bad := sampleTables()
	bad.Observability = bad.Observability[:1]
	bad.IPAM[1].ID = bad.IPAM[0].ID
	if err := store.ReplaceSystemTables(ctx, bad); err == nil {
		t.Fatal("expected duplicate id to fail")
	}

	counts, err := store.Counts(ctx)
	assertNoError(t, err)
	assertEqual(t, domain.TableCounts{Observability: 3, Inventory: 2, IPAM: 2}, counts)
}

// ============================================================================
// Join
// ============================================================================

func TestJoinSystems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	assertNoError(t, store.ReplaceSystemTables(ctx, sampleTables()))

	rows, err := store.JoinSystems(ctx)
	assertNoError(t, err)
	if len(rows) != 3 {
		t.Fatalf("expected 3 joined rows, got %d", len(rows))
	}

	present := rows[0]
	assertEqual(t, "SEAWAED01", present.Hostname)
	assertEqual(t, sql.NullString{String: "ISR4431", Valid: true}, present.Model)
	assertEqual(t, sql.NullString{String: "west", Valid: true}, present.Region)
	assertEqual(t, domain.PresenceFlags{}, present.Flags())

	noInventory := rows[1]
	assertEqual(t, false, noInventory.Vendor.Valid)
	assertEqual(t, false, noInventory.Model.Valid)
	assertEqual(t, "central", noInventory.Region.String)
	assertEqual(t, domain.PresenceFlags{MissingInInventory: true}, noInventory.Flags())

	noIPAM := rows[2]
	assertEqual(t, "Arista", noIPAM.Vendor.String)
	assertEqual(t, false, noIPAM.Region.Valid)
	assertEqual(t, domain.PresenceFlags{MissingInIPAM: true}, noIPAM.Flags())
}

func TestJoinRequiresMatchingKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tables := sampleTables()
	// same ip, different hostname: not the same asset
	tables.Inventory[0].Hostname = "SEAWAED99"
	assertNoError(t, store.ReplaceSystemTables(ctx, tables))

	rows, err := store.JoinSystems(ctx)
	assertNoError(t, err)
	assertEqual(t, true, rows[0].Flags().MissingInInventory)
}

func TestReplaceUnifiedAndLoadTable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	assertNoError(t, store.ReplaceSystemTables(ctx, sampleTables()))

	rows, err := store.JoinSystems(ctx)
	assertNoError(t, err)
	for i := range rows {
		rows[i].ID = int64(i + 1)
	}
	assertNoError(t, store.ReplaceUnified(ctx, rows))

	frame, err := store.LoadTable(ctx, domain.TableLightspeedAsset)
	assertNoError(t, err)
	assertEqual(t, []string{
		"lightspeed_asset_id", "ip_address", "hostname", "fqdn", "status",
		"vendor", "model", "region", "missing_in_inventory", "missing_in_ipam",
	}, frame.Columns)
	assertEqual(t, 3, frame.Len())
	assertEqual(t, []string{
		"2", "10.10.0.2", "DALTXCO02", "DALTXCO02.central.lightspeed.net", "down",
		"", "", "central", "1", "0",
	}, frame.Rows[1])
}

func TestLoadTableRejectsUnknownTable(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.LoadTable(context.Background(), "sqlite_master; DROP TABLE ipam"); err == nil {
		t.Fatal("expected unknown table to fail")
	}
}

// ============================================================================
// Run History
// ============================================================================

func TestRunHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first := domain.RunRecord{
		RunID: "run-1", StartedAt: base, FinishedAt: base.Add(time.Minute),
		Seed: 42, NumAssets: 100, Status: "completed",
	}
	second := domain.RunRecord{
		RunID: "run-2", StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour + time.Second),
		Seed: 7, NumAssets: 10, Status: "failed", Error: "train inventory: boom",
	}
	assertNoError(t, store.RecordRun(ctx, first))
	assertNoError(t, store.RecordRun(ctx, second))

	runs, err := store.ListRuns(ctx, 10)
	assertNoError(t, err)
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	assertEqual(t, "run-2", runs[0].RunID)
	assertEqual(t, "train inventory: boom", runs[0].Error)
	assertEqual(t, "", runs[1].Error)
	if !runs[1].StartedAt.Equal(base) {
		t.Errorf("StartedAt = %s, want %s", runs[1].StartedAt, base)
	}

	runs, err = store.ListRuns(ctx, 1)
	assertNoError(t, err)
	assertEqual(t, 1, len(runs))
}

// ============================================================================
// Open
// ============================================================================

func TestOpenFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sqlite", "lightspeed_assets.db")
	store, err := Open(DriverSQLite, path, WithBusyTimeout(time.Second), WithLogger(logging.Discard()))
	assertNoError(t, err)
	assertNoError(t, store.ReplaceSystemTables(context.Background(), sampleTables()))
	assertNoError(t, store.Close())

	// tables survive reopen
	store, err = Open(DriverSQLite, path, WithLogger(logging.Discard()))
	assertNoError(t, err)
	defer store.Close()
	counts, err := store.Counts(context.Background())
	assertNoError(t, err)
	assertEqual(t, 3, counts.Observability)
}

func TestDataSourceName(t *testing.T) {
	dsn, err := dataSourceName(DriverSQLite, MemoryPath, time.Second)
	assertNoError(t, err)
	assertEqual(t, MemoryPath, dsn)

	dsn, err = dataSourceName(DriverMySQL, "user:pw@tcp(db:3306)/lightspeed", 0)
	assertNoError(t, err)
	if want := "parseTime=true"; !strings.Contains(dsn, want) {
		t.Errorf("dsn %q should contain %q", dsn, want)
	}

	if _, err := dataSourceName("postgres", "x", 0); err == nil {
		t.Error("expected unsupported driver to fail")
	}
}

func TestInsertQueryUsesSnakeCase(t *testing.T) {
	got := insertQuery("pipeline_run", reflect.TypeOf(runRow{}))
	want := "INSERT INTO pipeline_run (run_id, started_at, finished_at, seed, num_assets, status, error) " +
		"VALUES (:run_id, :started_at, :finished_at, :seed, :num_assets, :status, :error)"
	assertEqual(t, want, got)

	assertEqual(t, []string{"obs_asset_id", "obs_ip_address", "obs_hostname", "obs_fqdn", "obs_status"},
		structColumns(reflect.TypeOf(domain.ObservabilityRow{})))
}
