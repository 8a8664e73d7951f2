// Package synth fabricates synthetic network assets from a catalog.
package synth

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/netip"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"lightspeed/internal/catalog"
	"lightspeed/internal/domain"
)

// DefaultMaxAttempts bounds the draws spent on a single record
const DefaultMaxAttempts = 100000

// ErrSaturated is returned when unique hostnames or addresses run out
var ErrSaturated = errors.New("asset space saturated")

// Generator produces assets with unique hostnames and addresses
type Generator struct {
	catalog     *catalog.Catalog
	log         logrus.FieldLogger
	maxAttempts int
	hosts       *lru.Cache
}

// Option configures a Generator
type Option func(*Generator)

// WithMaxAttempts sets the per-record draw limit
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithLogger sets the progress logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(g *Generator) {
		g.log = l
	}
}

// New creates a generator over the given catalog
func New(c *catalog.Catalog, opts ...Option) (*Generator, error) {
	cache, err := lru.New(len(c.Regions()))
	if err != nil {
		return nil, fmt.Errorf("create host cache: %w", err)
	}

	g := &Generator{
		catalog:     c,
		log:         logrus.StandardLogger(),
		maxAttempts: DefaultMaxAttempts,
		hosts:       cache,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// hostRange is the usable address range of a region
type hostRange struct {
	base  uint32
	count int
}

// Generate produces exactly n assets. The output is fully determined by n, seed and the catalog.
func (g *Generator) Generate(ctx context.Context, n int, seed int64) ([]domain.Asset, error) {
	if n <= 0 {
		return nil, fmt.Errorf("num_assets must be positive, got %d", n)
	}
	if capacity := g.catalog.HostnameCapacity(); n > capacity {
		return nil, fmt.Errorf("%d assets requested, only %d hostnames available: %w", n, capacity, ErrSaturated)
	}
	if capacity := g.catalog.AddressCapacity(); n > capacity {
		return nil, fmt.Errorf("%d assets requested, only %d addresses available: %w", n, capacity, ErrSaturated)
	}

	start := time.Now()
	rng := rand.New(rand.NewSource(seed))
	seenIPs := make(map[string]struct{}, n)
	seenHostnames := make(map[string]struct{}, n)

	regions := g.catalog.RegionWeights()
	roles := g.catalog.RoleWeights()
	statuses := g.catalog.StatusWeights()

	assets := make([]domain.Asset, 0, n)
	for i := 0; i < n; i++ {
		var (
			region, role, hostname, ip string
			found                      bool
		)
		for attempt := 0; attempt < g.maxAttempts; attempt++ {
			region = weightedChoice(rng, regions)
			role = weightedChoice(rng, roles)

			var err error
			hostname, err = g.hostname(rng, region, role)
			if err != nil {
				return nil, err
			}
			ip, err = g.privateIP(rng, region)
			if err != nil {
				return nil, err
			}

			_, dupHost := seenHostnames[hostname]
			_, dupIP := seenIPs[ip]
			if !dupHost && !dupIP {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("record %d: no unique hostname/address after %d attempts: %w", i+1, g.maxAttempts, ErrSaturated)
		}

		seenHostnames[hostname] = struct{}{}
		seenIPs[ip] = struct{}{}

		models := g.catalog.Models(role)
		vm := models[rng.Intn(len(models))]

		assets = append(assets, domain.Asset{
			IPAddress: ip,
			Hostname:  hostname,
			FQDN:      fmt.Sprintf("%s.%s.%s", hostname, region, g.catalog.Domain()),
			Region:    region,
			Status:    weightedChoice(rng, statuses),
			Vendor:    vm.Vendor,
			Model:     vm.Model,
			Role:      role,
		})

		if (i+1)%1000 == 0 {
			g.log.Infof("%d assets generated...", i+1)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}

	g.log.WithFields(logrus.Fields{
		"assets":  len(assets),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("Generated assets")
	return assets, nil
}

// hostname builds {site}{state}{role_code}{NN}
func (g *Generator) hostname(rng *rand.Rand, region, role string) (string, error) {
	sites := g.catalog.Sites(region)
	if len(sites) == 0 {
		return "", fmt.Errorf("region %q has no sites", region)
	}
	site := sites[rng.Intn(len(sites))]
	state, _ := g.catalog.State(site)
	code, _ := g.catalog.RoleCode(role)
	num := rng.Intn(99) + 1
	return fmt.Sprintf("%s%s%s%02d", site, state, code, num), nil
}

// privateIP picks a host address from the region's subnet
func (g *Generator) privateIP(rng *rand.Rand, region string) (string, error) {
	hr, err := g.regionHosts(region)
	if err != nil {
		return "", err
	}
	offset := uint32(rng.Intn(hr.count) + 1)
	return uint32ToAddr(hr.base + offset).String(), nil
}

func (g *Generator) regionHosts(region string) (hostRange, error) {
	if v, ok := g.hosts.Get(region); ok {
		return v.(hostRange), nil
	}
	prefix, ok := g.catalog.Subnet(region)
	if !ok {
		return hostRange{}, fmt.Errorf("region %q has no subnet", region)
	}
	hr := hostRange{
		base:  addrToUint32(prefix.Addr()),
		count: catalog.HostCount(prefix),
	}
	g.hosts.Add(region, hr)
	return hr, nil
}

// weightedChoice draws one name proportionally to its weight
func weightedChoice(rng *rand.Rand, choices []catalog.Weighted) string {
	total := 0.0
	for _, c := range choices {
		total += c.Weight
	}
	r := rng.Float64() * total
	cum := 0.0
	for _, c := range choices {
		cum += c.Weight
		if r < cum {
			return c.Name
		}
	}
	return choices[len(choices)-1].Name
}

func addrToUint32(a netip.Addr) uint32 {
	b := a.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func uint32ToAddr(v uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}
