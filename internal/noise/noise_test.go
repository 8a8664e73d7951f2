package noise

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lightspeed/internal/catalog"
	"lightspeed/internal/domain"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// population builds n assets per (model, region) pair
func population(models, regions []string, n int) []domain.Asset {
	var assets []domain.Asset
	for _, m := range models {
		for _, r := range regions {
			for i := 0; i < n; i++ {
				assets = append(assets, domain.Asset{
					IPAddress: fmt.Sprintf("%s-%s-%d", m, r, i),
					Model:     m,
					Region:    r,
				})
			}
		}
	}
	return assets
}

func TestInjectExactCounts(t *testing.T) {
	cfg := Config{
		InventoryModelMissingProbs: map[string]float64{"ISR4431": 0.12, "MX204": 0.5},
		IPAMRegionMissingProbs:     map[string]float64{"west": 0.15},
		DefaultModelFailureProb:    0.1,
	}
	inj, err := NewInjector(cfg, catalog.Default(), quietLogger())
	require.NoError(t, err)

	// 3 models x 2 regions x 25 rows: 50 rows per model, 75 per region
	assets := population([]string{"ISR4431", "MX204", "7050X3"}, []string{"west", "east"}, 25)
	labeled, summary, err := inj.Inject(assets, 42)
	require.NoError(t, err)
	require.Len(t, labeled, len(assets))

	invByModel := map[string]int{}
	ipamByRegion := map[string]int{}
	for _, a := range labeled {
		if a.MissingInInventory {
			invByModel[a.Model]++
		}
		if a.MissingInIPAM {
			ipamByRegion[a.Region]++
		}
	}

	assert.Equal(t, 6, invByModel["ISR4431"]) // floor(50 * 0.12)
	assert.Equal(t, 25, invByModel["MX204"])
	assert.Equal(t, 5, invByModel["7050X3"]) // default rate
	assert.Equal(t, 11, ipamByRegion["west"])  // floor(75 * 0.15)
	assert.Equal(t, 0, ipamByRegion["east"])   // unlisted region

	var usedDefault []string
	for _, s := range summary.Inventory {
		if s.UsedDefault {
			usedDefault = append(usedDefault, s.Key)
		}
	}
	assert.Equal(t, []string{"7050X3"}, usedDefault)
}

func TestInjectLeavesUnknownModelsPresent(t *testing.T) {
	inj, err := NewInjector(DefaultConfig(), catalog.Default(), quietLogger())
	require.NoError(t, err)

	labeled, summary, err := inj.Inject(population([]string{"HOMEBREW-1"}, []string{"central"}, 40), 5)
	require.NoError(t, err)
	for _, a := range labeled {
		assert.False(t, a.MissingInInventory)
	}
	require.Len(t, summary.Inventory, 1)
	assert.True(t, summary.Inventory[0].Unknown)
	assert.False(t, summary.Inventory[0].UsedDefault)
	assert.Zero(t, summary.Inventory[0].Rate)
}

func TestNewInjectorWarnsForUnlistedCatalogModels(t *testing.T) {
	log, hook := test.NewNullLogger()
	cfg := DefaultConfig()
	c := catalog.Default()

	_, err := NewInjector(cfg, c, log)
	require.NoError(t, err)

	var unlisted []string
	for _, m := range c.AllModels() {
		if _, ok := cfg.InventoryModelMissingProbs[m]; !ok {
			unlisted = append(unlisted, m)
		}
	}
	require.NotEmpty(t, unlisted)
	require.Len(t, hook.AllEntries(), len(unlisted))
	for i, e := range hook.AllEntries() {
		assert.Equal(t, logrus.WarnLevel, e.Level)
		assert.Contains(t, e.Message, unlisted[i])
	}

	_, err = NewInjector(cfg, nil, log)
	assert.Error(t, err)
}

func TestInjectPreservesAssets(t *testing.T) {
	inj, err := NewInjector(DefaultConfig(), catalog.Default(), quietLogger())
	require.NoError(t, err)

	assets := population([]string{"ETX-2"}, []string{"southeast"}, 40)
	labeled, _, err := inj.Inject(assets, 1)
	require.NoError(t, err)

	for i, a := range labeled {
		assert.Equal(t, assets[i], a.Asset)
	}
	// input slice untouched, flags only on the copies
	assert.Equal(t, "ETX-2-southeast-0", assets[0].IPAddress)
}

func TestInjectIsDeterministic(t *testing.T) {
	inj, err := NewInjector(DefaultConfig(), catalog.Default(), quietLogger())
	require.NoError(t, err)
	assets := population([]string{"ISR4431", "FSP150"}, []string{"west", "southeast"}, 30)

	first, _, err := inj.Inject(assets, 42)
	require.NoError(t, err)
	second, _, err := inj.Inject(assets, 42)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestInjectStratumOrderIndependent(t *testing.T) {
	inj, err := NewInjector(DefaultConfig(), catalog.Default(), quietLogger())
	require.NoError(t, err)

	west := population([]string{"SRX345"}, []string{"west"}, 50)
	mixed := append(population([]string{"NCS540"}, []string{"east"}, 50), west...)

	alone, _, err := inj.Inject(west, 7)
	require.NoError(t, err)
	together, _, err := inj.Inject(mixed, 7)
	require.NoError(t, err)

	assert.Equal(t, alone, together[50:])
}

func TestZeroRateFlagsNothing(t *testing.T) {
	cfg := Config{
		InventoryModelMissingProbs: map[string]float64{"MX204": 0},
		IPAMRegionMissingProbs:     map[string]float64{},
	}
	inj, err := NewInjector(cfg, catalog.Default(), quietLogger())
	require.NoError(t, err)

	labeled, _, err := inj.Inject(population([]string{"MX204"}, []string{"central"}, 10), 3)
	require.NoError(t, err)
	for _, a := range labeled {
		assert.False(t, a.MissingInInventory)
		assert.False(t, a.MissingInIPAM)
	}
}

func TestFailCount(t *testing.T) {
	tests := []struct {
		size int
		rate float64
		want int
	}{
		{100, 0.12, 12},
		{9, 0.12, 1},
		{8, 0.12, 0},
		{10, 1, 10},
		{0, 0.5, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d@%v", tt.size, tt.rate), func(t *testing.T) {
			assert.Equal(t, tt.want, FailCount(tt.size, tt.rate))
		})
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InventoryModelMissingProbs["MX204"] = 1.5
	cfg.IPAMRegionMissingProbs["west"] = -0.1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"MX204"`)
	assert.Contains(t, err.Error(), `"west"`)

	_, err = NewInjector(cfg, catalog.Default(), quietLogger())
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generation_params.json")
	content := `{
  "inventory_model_missing_probs": {"ISR4431": 0.2},
  "ipam_region_missing_probs": {"west": 0.3},
  "default_model_failure_prob": 0.05
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.InventoryModelMissingProbs["ISR4431"])
	assert.Equal(t, 0.3, cfg.IPAMRegionMissingProbs["west"])
	assert.Equal(t, 0.05, cfg.DefaultModelFailureProb)

	require.NoError(t, os.WriteFile(path, []byte(`{"default_model_failure_prob": 2}`), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
