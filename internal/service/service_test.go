package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lightspeed/internal/catalog"
	"lightspeed/internal/domain"
	"lightspeed/internal/logging"
	"lightspeed/internal/noise"
	"lightspeed/internal/repository/sqlstore"
	"lightspeed/internal/synth"
)

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.Open(sqlstore.DriverSQLite, sqlstore.MemoryPath, sqlstore.WithLogger(logging.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func labeledAssets(t *testing.T, n int, seed int64) []domain.LabeledAsset {
	t.Helper()
	log := logging.Discard()
	gen, err := synth.New(catalog.Default(), synth.WithLogger(log))
	require.NoError(t, err)
	assets, err := gen.Generate(context.Background(), n, seed)
	require.NoError(t, err)
	inj, err := noise.NewInjector(noise.DefaultConfig(), catalog.Default(), log)
	require.NoError(t, err)
	labeled, _, err := inj.Inject(assets, seed)
	require.NoError(t, err)
	return labeled
}

func asset(ip, host string, missingInv, missingIPAM bool) domain.LabeledAsset {
	return domain.LabeledAsset{
		Asset: domain.Asset{
			IPAddress: ip, Hostname: host, FQDN: host + ".east.lightspeed.net",
			Region: "east", Status: "active", Vendor: "Cisco", Model: "ISR4431", Role: "edge",
		},
		PresenceFlags: domain.PresenceFlags{MissingInInventory: missingInv, MissingInIPAM: missingIPAM},
	}
}

func TestBuildSystemTables(t *testing.T) {
	labeled := []domain.LabeledAsset{
		asset("10.20.0.1", "ATLGAED01", false, false),
		asset("10.20.0.2", "ATLGAED02", true, false),
		asset("10.20.0.3", "ATLGAED03", false, true),
		asset("10.20.0.1", "ATLGAED01", false, false),
	}
	tables := BuildSystemTables(labeled)

	assert.Equal(t, domain.TableCounts{Observability: 3, Inventory: 2, IPAM: 2}, tables.Counts())
	assert.Equal(t, int64(1), tables.Observability[0].ID)
	assert.Equal(t, int64(3), tables.Observability[2].ID)
	assert.Equal(t, "10.20.0.3", tables.Inventory[1].IPAddress)
	assert.Equal(t, int64(2), tables.IPAM[1].ID)
}

func TestHydrateAndJoin(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	labeled := labeledAssets(t, 500, 7)

	counts, err := NewHydrateService(store, logging.Discard()).Hydrate(ctx, labeled)
	require.NoError(t, err)

	present := countPresent(labeled)
	assert.Equal(t, present, counts)

	summary, err := NewJoinService(store, logging.Discard()).Join(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(labeled), summary.Rows)
	assert.Equal(t, len(labeled)-present.Inventory, summary.MissingInInventory)
	assert.Equal(t, len(labeled)-present.IPAM, summary.MissingInIPAM)

	frame, err := store.LoadTable(ctx, domain.TableLightspeedAsset)
	require.NoError(t, err)
	assert.Equal(t, len(labeled), frame.Len())

	t.Run("flags round-trip per asset", func(t *testing.T) {
		want := make(map[string]domain.PresenceFlags, len(labeled))
		for _, a := range labeled {
			want[a.Hostname] = a.PresenceFlags
		}
		host := frame.Index(domain.ColHostname)
		inv := frame.Index(domain.ColMissingInInventory)
		ipam := frame.Index(domain.ColMissingInIPAM)
		for _, row := range frame.Rows {
			flags := want[row[host]]
			assert.Equal(t, domain.FlagString(flags.MissingInInventory), row[inv], row[host])
			assert.Equal(t, domain.FlagString(flags.MissingInIPAM), row[ipam], row[host])
		}
	})

	t.Run("absent systems leave nulls", func(t *testing.T) {
		vendor := frame.Index(domain.ColVendor)
		region := frame.Index(domain.ColRegion)
		inv := frame.Index(domain.ColMissingInInventory)
		ipam := frame.Index(domain.ColMissingInIPAM)
		for _, row := range frame.Rows {
			assert.Equal(t, row[inv] == "1", row[vendor] == "")
			assert.Equal(t, row[ipam] == "1", row[region] == "")
		}
	})
}

func TestProjectTrainingSet(t *testing.T) {
	t.Run("selects columns in order", func(t *testing.T) {
		f := domain.NewFrame("model", "region", "vendor", "status", "missing_in_inventory", "hostname")
		require.NoError(t, f.Append([]string{"MX204", "east", "Juniper", "active", "0", "ATLGACO01"}))

		out, err := ProjectTrainingSet(f, InventoryTrainingSet)
		require.NoError(t, err)
		assert.Equal(t, InventoryTrainingSet.Columns, out.Columns)
		assert.Equal(t, []string{"east", "active", "Juniper", "MX204", "0"}, out.Rows[0])
		assert.Equal(t, domain.ColMissingInInventory, InventoryTrainingSet.Label())
	})

	t.Run("names every missing column", func(t *testing.T) {
		f := domain.NewFrame("region", "status")
		_, err := ProjectTrainingSet(f, IPAMTrainingSet)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingColumns))
		for _, col := range []string{"fqdn", "ip_address", "missing_in_ipam"} {
			assert.Contains(t, err.Error(), col)
		}
	})
}

func TestEnrich(t *testing.T) {
	svc := NewPrepareService(nil, catalog.Default(), logging.Discard())

	f := domain.NewFrame("hostname", "status")
	require.NoError(t, f.Append([]string{"ATLGAED07", "active"}))
	require.NoError(t, f.Append([]string{"XYZ", "down"}))

	out, err := svc.Enrich(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"hostname", "status", ColSiteCode, ColStateCode, ColRoleCode, ColParsedRole, ColParsedRegion}, out.Columns)
	assert.Equal(t, []string{"ATLGAED07", "active", "ATL", "GA", "ED", "edge", "east"}, out.Rows[0])
	assert.Equal(t, []string{"XYZ", "down", "XYZ", "", "", "", ""}, out.Rows[1])

	_, err = svc.Enrich(domain.NewFrame("status"))
	assert.True(t, errors.Is(err, ErrMissingColumns))
}

func TestPrepareWritesTrainingSets(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	dir := t.TempDir()
	p := newPipeline(t, store, NewEventBus())

	gen, err := newDatasets(t).Generate(ctx, 300, 11, filepath.Join(dir, "raw"))
	require.NoError(t, err)
	_, err = p.Hydrate(ctx, gen.LabeledPath)
	require.NoError(t, err)

	summary, prepared, err := p.Prepare(ctx, filepath.Join(dir, "raw"), filepath.Join(dir, "processed"))
	require.NoError(t, err)
	assert.Equal(t, 300, summary.Rows)
	assert.Equal(t, 300, prepared.Rows)
	for _, name := range []string{"inventory", "ipam", "enriched"} {
		assert.FileExists(t, prepared.Files[name])
	}
}

func newDatasets(t *testing.T) *DatasetService {
	t.Helper()
	log := logging.Discard()
	cat := catalog.Default()
	gen, err := synth.New(cat, synth.WithLogger(log))
	require.NoError(t, err)
	inj, err := noise.NewInjector(noise.DefaultConfig(), cat, log)
	require.NoError(t, err)
	return NewDatasetService(gen, inj, log)
}

func newPipeline(t *testing.T, store *sqlstore.Store, bus *EventBus) *Pipeline {
	t.Helper()
	log := logging.Discard()
	return NewPipeline(store, newDatasets(t), NewPrepareService(store, catalog.Default(), log), bus, log)
}

func writeTrainConfig(t *testing.T, dir, name, input, label string) string {
	t.Helper()
	doc := fmt.Sprintf(`{
  "input_csv": %q,
  "features": [],
  "label": %q,
  "test_size": 0.2,
  "n_estimators": 10,
  "output_model": %q,
  "output_encoder": %q,
  "output_report": %q
}`, input, label,
		filepath.Join(dir, "models", name+"_model.json.xz"),
		filepath.Join(dir, "models", name+"_encoder.json"),
		filepath.Join(dir, "reports", name+"_train_report.json"))
	path := filepath.Join(dir, name+".json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	dir := t.TempDir()
	bus := NewEventBus()
	events := make(chan Event, 64)
	bus.Subscribe(events)

	processed := filepath.Join(dir, "processed")
	opts := PipelineOptions{
		NumAssets:       1000,
		Seed:            42,
		RawDir:          filepath.Join(dir, "raw"),
		ProcessedDir:    processed,
		ModelDir:        filepath.Join(dir, "models"),
		ReportDir:       filepath.Join(dir, "reports"),
		InventoryConfig: writeTrainConfig(t, dir, "inventory", filepath.Join(processed, InventoryTrainingSet.File), domain.ColMissingInInventory),
		IPAMConfig:      writeTrainConfig(t, dir, "ipam", filepath.Join(processed, IPAMTrainingSet.File), domain.ColMissingInIPAM),
	}

	res, err := newPipeline(t, store, bus).Run(ctx, opts)
	require.NoError(t, err)
	bus.Close()

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 1000, res.Tables.Observability)
	assert.Equal(t, 1000, res.Join.Rows)
	assert.Len(t, res.Stages, 8)
	assert.Equal(t, StageReport, res.Stages[7].Name)
	require.Contains(t, res.Training, "inventory")
	require.Contains(t, res.Reports, "ipam")
	assert.FileExists(t, filepath.Join(opts.ReportDir, "inventory", "confusion_matrix.png"))

	var started, completed int
	var last Event
	for e := range events {
		switch e.Type {
		case EventStageStarted:
			started++
		case EventStageCompleted:
			completed++
		}
		last = e
	}
	assert.Equal(t, 8, started)
	assert.Equal(t, 8, completed)
	assert.Equal(t, EventRunCompleted, last.Type)

	var manifest Manifest
	data, err := os.ReadFile(res.ManifestPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, res.RunID, manifest.RunID)
	assert.Equal(t, int64(42), manifest.Seed)
	assert.Contains(t, manifest.Accuracy, "ipam")
	require.NotEmpty(t, manifest.Artifacts)
	for _, a := range manifest.Artifacts {
		assert.Len(t, a.BLAKE2b, 64, a.Path)
	}

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunSucceeded, runs[0].Status)
	assert.Equal(t, res.RunID, runs[0].RunID)
}

func TestPipelineRunRecordsFailure(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	dir := t.TempDir()
	bus := NewEventBus()
	events := make(chan Event, 16)
	bus.Subscribe(events)

	_, err := newPipeline(t, store, bus).Run(ctx, PipelineOptions{
		NumAssets: 0,
		Seed:      1,
		RawDir:    filepath.Join(dir, "raw"),
		ReportDir: filepath.Join(dir, "reports"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), StageGenerate)
	bus.Close()

	var failed []StagePayload
	for e := range events {
		if e.Type == EventStageFailed {
			failed = append(failed, e.Payload.(StagePayload))
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, StageGenerate, failed[0].Stage)

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
	assert.NoFileExists(t, filepath.Join(dir, "reports", ManifestFile))
}

func TestPipelineRunRejectsBadTrainConfig(t *testing.T) {
	store := newStore(t)
	dir := t.TempDir()
	_, err := newPipeline(t, store, NewEventBus()).Run(context.Background(), PipelineOptions{
		NumAssets:       10,
		RawDir:          dir,
		InventoryConfig: filepath.Join(dir, "absent.json"),
		IPAMConfig:      filepath.Join(dir, "also_absent.json"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.json")
	assert.Contains(t, err.Error(), "also_absent.json")
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan Event, 1)
	bus.Subscribe(ch)

	bus.Publish(Event{Type: EventStageStarted})
	bus.Publish(Event{Type: EventStageCompleted}) // dropped, buffer full
	bus.Close()
	bus.Publish(Event{Type: EventStageFailed})

	var got []EventType
	for e := range ch {
		got = append(got, e.Type)
	}
	assert.Equal(t, []EventType{EventStageStarted}, got)
}

func TestDigestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	sum, err := DigestFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8", sum)

	_, err = DigestFile(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
