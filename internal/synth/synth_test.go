package synth

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net/netip"
	"regexp"
	"testing"

	"github.com/sirupsen/logrus"
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

func generate(t *testing.T, c *catalog.Catalog, n int, seed int64, opts ...Option) []domain.Asset {
	t.Helper()
	g, err := New(c, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	assets, err := g.Generate(context.Background(), n, seed)
	require.NoError(t, err)
	return assets
}

func TestGenerateProducesUniqueAssets(t *testing.T) {
	c := catalog.Default()
	assets := generate(t, c, 2000, 7)
	require.Len(t, assets, 2000)

	ips := make(map[string]bool)
	hostnames := make(map[string]bool)
	for _, a := range assets {
		assert.False(t, ips[a.IPAddress], "duplicate ip %s", a.IPAddress)
		assert.False(t, hostnames[a.Hostname], "duplicate hostname %s", a.Hostname)
		ips[a.IPAddress] = true
		hostnames[a.Hostname] = true
	}
}

func TestGenerateRespectsCatalog(t *testing.T) {
	c := catalog.Default()
	hostnamePattern := regexp.MustCompile(`^[A-Z]{3}[A-Z]{2}[A-Z]{2}\d{2}$`)

	for _, a := range generate(t, c, 1000, 42) {
		prefix, ok := c.Subnet(a.Region)
		require.True(t, ok)
		addr, err := netip.ParseAddr(a.IPAddress)
		require.NoError(t, err)
		assert.True(t, prefix.Contains(addr), "%s not in %s", a.IPAddress, prefix)
		assert.NotEqual(t, prefix.Addr(), addr, "network address used")

		assert.Contains(t, c.Models(a.Role), catalog.VendorModel{Vendor: a.Vendor, Model: a.Model})

		assert.Regexp(t, hostnamePattern, a.Hostname)
		parts, err := ParseHostname(c, a.Hostname)
		require.NoError(t, err)
		assert.Equal(t, a.Region, parts.Region)
		assert.Equal(t, a.Role, parts.Role)
		assert.GreaterOrEqual(t, parts.Number, 1)
		assert.LessOrEqual(t, parts.Number, 99)
		state, _ := c.State(parts.SiteCode)
		assert.Equal(t, state, parts.StateCode)

		assert.Equal(t, a.Hostname+"."+a.Region+".lightspeed.net", a.FQDN)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	c := catalog.Default()
	first := generate(t, c, 500, 42)
	second := generate(t, c, 500, 42)
	assert.Equal(t, first, second)

	other := generate(t, c, 500, 43)
	assert.NotEqual(t, first, other)
}

func TestGenerateRegionWeights(t *testing.T) {
	c := catalog.Default()
	west := 0
	for _, a := range generate(t, c, 100, 42) {
		if a.Region == "west" {
			west++
			assert.True(t, netip.MustParsePrefix("10.30.0.0/16").Contains(netip.MustParseAddr(a.IPAddress)))
		}
	}
	// weight 0.2 over 100 draws
	assert.InDelta(t, 20, west, 12)
}

func TestGenerateRejectsNonPositiveCount(t *testing.T) {
	g, err := New(catalog.Default(), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), 0, 1)
	require.Error(t, err)
}

func tinyCatalog(t *testing.T, subnet string) *catalog.Catalog {
	t.Helper()
	spec := catalog.DefaultSpec()
	spec.Regions = []catalog.RegionSpec{{Name: "lab", Weight: 1, Sites: []string{"LAB"}, Subnet: subnet}}
	spec.Roles = spec.Roles[:1]
	spec.SiteStates = map[string]string{"LAB": "XX"}
	c, err := catalog.New(spec)
	require.NoError(t, err)
	return c
}

func TestGenerateFailsFastAboveCapacity(t *testing.T) {
	c := tinyCatalog(t, "192.168.1.0/30")
	g, err := New(c, WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), 3, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSaturated))

	_, err = g.Generate(context.Background(), 100, 1)
	assert.True(t, errors.Is(err, ErrSaturated))
}

func TestGenerateAttemptCap(t *testing.T) {
	c := tinyCatalog(t, "192.168.1.0/30")
	g, err := New(c, WithLogger(quietLogger()), WithMaxAttempts(1))
	require.NoError(t, err)

	saturated := 0
	for seed := int64(1); seed <= 50; seed++ {
		_, err := g.Generate(context.Background(), 2, seed)
		if err != nil {
			require.True(t, errors.Is(err, ErrSaturated), "unexpected error: %v", err)
			saturated++
		}
	}
	assert.Positive(t, saturated)
}

func TestGenerateFillsTinySpace(t *testing.T) {
	c := tinyCatalog(t, "192.168.1.0/30")
	assets := generate(t, c, 2, 5)
	ips := []string{assets[0].IPAddress, assets[1].IPAddress}
	assert.ElementsMatch(t, []string{"192.168.1.1", "192.168.1.2"}, ips)
}

func TestParseHostname(t *testing.T) {
	c := catalog.Default()

	parts, err := ParseHostname(c, "PHXAZCO07")
	require.NoError(t, err)
	assert.Equal(t, HostnameParts{
		SiteCode: "PHX", StateCode: "AZ", RoleCode: "CO", Number: 7,
		Role: "core", Region: "southwest",
	}, parts)

	parts, err = ParseHostname(c, "ZZZQQXX12")
	require.NoError(t, err)
	assert.Empty(t, parts.Role)
	assert.Empty(t, parts.Region)

	_, err = ParseHostname(c, "SEAWA")
	assert.Error(t, err)
	_, err = ParseHostname(c, "SEAWAEDxx")
	assert.Error(t, err)
}

func TestParseHostnameOverrideCatalog(t *testing.T) {
	c := tinyCatalog(t, "192.168.1.0/24")
	for _, a := range generate(t, c, 50, 11) {
		parts, err := ParseHostname(c, a.Hostname)
		require.NoError(t, err, a.Hostname)
		assert.Equal(t, a.Region, parts.Region, a.Hostname)
		assert.Equal(t, a.Role, parts.Role, a.Hostname)
	}
}

func TestWeightedChoice(t *testing.T) {
	choices := []catalog.Weighted{{Name: "never", Weight: 0}, {Name: "always", Weight: 1}}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		assert.Equal(t, "always", weightedChoice(rng, choices))
	}
}
