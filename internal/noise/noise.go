// Package noise injects presence flags into a synthesized asset population.
//
// Flags are assigned per stratum: inventory absence is stratified by model and IPAM
// absence by region. Within a stratum of n rows at failure rate r exactly floor(n*r)
// rows are flagged, drawn without replacement.
package noise

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"os"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"lightspeed/internal/catalog"
	"lightspeed/internal/domain"
)

// Config holds the per-stratum failure rates
type Config struct {
	InventoryModelMissingProbs map[string]float64 `json:"inventory_model_missing_probs"`
	IPAMRegionMissingProbs     map[string]float64 `json:"ipam_region_missing_probs"`
	DefaultModelFailureProb    float64            `json:"default_model_failure_prob"`
}

// DefaultConfig returns the built-in failure rates.
// Rtr and sw models are unlisted and fall back to the default rate.
func DefaultConfig() Config {
	return Config{
		InventoryModelMissingProbs: map[string]float64{
			"ISR4431":   0.12,
			"SRX345":    0.08,
			"ETX-2":     0.25,
			"MX204":     0.03,
			"NCS540":    0.05,
			"7750 SR-1": 0.04,
			"7280R":     0.06,
			"FSP3000":   0.18,
			"FSP150":    0.22,
			"QFX5120":   0.07,
		},
		IPAMRegionMissingProbs: map[string]float64{
			"central":   0.05,
			"east":      0.08,
			"west":      0.15,
			"southeast": 0.20,
			"southwest": 0.12,
			"northeast": 0.06,
			"northwest": 0.10,
		},
		DefaultModelFailureProb: 0.10,
	}
}

// LoadConfig reads a JSON noise config
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read noise config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse noise config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every rate lies in [0, 1]
func (c Config) Validate() error {
	var result *multierror.Error
	check := func(kind, key string, rate float64) {
		if math.IsNaN(rate) || rate < 0 || rate > 1 {
			result = multierror.Append(result, fmt.Errorf("%s %q: rate %v outside [0, 1]", kind, key, rate))
		}
	}
	for model, rate := range c.InventoryModelMissingProbs {
		check("inventory model", model, rate)
	}
	for region, rate := range c.IPAMRegionMissingProbs {
		check("ipam region", region, rate)
	}
	check("default", "model", c.DefaultModelFailureProb)

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("invalid noise config: %w", err)
	}
	return nil
}

// StratumResult reports the flags assigned in one stratum
type StratumResult struct {
	Key         string  `json:"key"`
	Size        int     `json:"size"`
	Rate        float64 `json:"rate"`
	Flagged     int     `json:"flagged"`
	UsedDefault bool    `json:"used_default,omitempty"`
	Unknown     bool    `json:"unknown_model,omitempty"`
}

// Summary reports the outcome of an injection
type Summary struct {
	Inventory []StratumResult `json:"inventory"`
	IPAM      []StratumResult `json:"ipam"`
}

// Injector assigns presence flags. Catalog models without a configured rate
// fail at the default rate; models outside the catalog are never flagged.
type Injector struct {
	cfg     Config
	catalog *catalog.Catalog
	log     logrus.FieldLogger
}

// NewInjector creates an injector after validating the config
func NewInjector(cfg Config, c *catalog.Catalog, log logrus.FieldLogger) (*Injector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("noise injector needs a catalog")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	for _, model := range c.AllModels() {
		if _, listed := cfg.InventoryModelMissingProbs[model]; !listed {
			log.Warnf("Model %s not in inventory missing probabilities, using default %v", model, cfg.DefaultModelFailureProb)
		}
	}
	return &Injector{cfg: cfg, catalog: c, log: log}, nil
}

// inventoryRate returns a model's failure rate and whether it came from the default
func (i *Injector) inventoryRate(model string) (rate float64, usedDefault, known bool) {
	if rate, listed := i.cfg.InventoryModelMissingProbs[model]; listed {
		return rate, false, true
	}
	if _, inCatalog := i.catalog.RoleForModel(model); inCatalog {
		return i.cfg.DefaultModelFailureProb, true, true
	}
	return 0, false, false
}

// Inject returns labeled copies of the assets. The input is not modified.
func (i *Injector) Inject(assets []domain.Asset, seed int64) ([]domain.LabeledAsset, Summary, error) {
	labeled := make([]domain.LabeledAsset, len(assets))
	for idx, a := range assets {
		labeled[idx] = domain.LabeledAsset{Asset: a}
	}

	var summary Summary

	byModel := stratify(assets, func(a domain.Asset) string { return a.Model })
	for _, model := range sortedKeys(byModel) {
		rate, usedDefault, known := i.inventoryRate(model)
		if !known {
			i.log.Warnf("Model %s is not in the catalog, leaving it present in inventory", model)
		}
		picked := sampleStratum(byModel[model], rate, strataSeed(seed, "inventory", model))
		for _, idx := range picked {
			labeled[idx].MissingInInventory = true
		}
		summary.Inventory = append(summary.Inventory, StratumResult{
			Key: model, Size: len(byModel[model]), Rate: rate, Flagged: len(picked), UsedDefault: usedDefault,
			Unknown: !known,
		})
	}

	byRegion := stratify(assets, func(a domain.Asset) string { return a.Region })
	for _, region := range sortedKeys(byRegion) {
		rate := i.cfg.IPAMRegionMissingProbs[region]
		picked := sampleStratum(byRegion[region], rate, strataSeed(seed, "ipam", region))
		for _, idx := range picked {
			labeled[idx].MissingInIPAM = true
		}
		summary.IPAM = append(summary.IPAM, StratumResult{
			Key: region, Size: len(byRegion[region]), Rate: rate, Flagged: len(picked),
		})
	}

	i.log.WithFields(logrus.Fields{
		"rows":              len(labeled),
		"missing_inventory": summary.flagged(summary.Inventory),
		"missing_ipam":      summary.flagged(summary.IPAM),
	}).Info("Injected presence noise")

	return labeled, summary, nil
}

func (s Summary) flagged(strata []StratumResult) int {
	total := 0
	for _, r := range strata {
		total += r.Flagged
	}
	return total
}

// FailCount is floor(size * rate)
func FailCount(size int, rate float64) int {
	return int(math.Floor(float64(size) * rate))
}

// stratify groups row indexes by key, preserving input order within a group
func stratify(assets []domain.Asset, key func(domain.Asset) string) map[string][]int {
	groups := make(map[string][]int)
	for idx, a := range assets {
		k := key(a)
		groups[k] = append(groups[k], idx)
	}
	return groups
}

// sampleStratum draws FailCount(len(rows), rate) rows without replacement
func sampleStratum(rows []int, rate float64, seed int64) []int {
	n := FailCount(len(rows), rate)
	if n <= 0 {
		return nil
	}

	rng := rand.New(rand.NewSource(seed))
	pool := append([]int{}, rows...)
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// strataSeed derives an order-independent seed for one stratum
func strataSeed(seed int64, target, key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(target))
	h.Write([]byte{0})
	h.Write([]byte(key))
	return seed ^ int64(h.Sum64())
}

func sortedKeys(m map[string][]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
