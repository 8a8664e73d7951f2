// Package catalog holds the fixed lookup tables used to synthesize assets.
//
// A Catalog is built once at startup, either from the built-in defaults or from a
// YAML override, and is read-only afterwards. All lookups return copies so callers
// cannot mutate shared state.
package catalog

import (
	"fmt"
	"net/netip"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Weighted is a categorical value with its sampling weight
type Weighted struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
}

// VendorModel is a (vendor, model) pair a role may be built from
type VendorModel struct {
	Vendor string `yaml:"vendor"`
	Model  string `yaml:"model"`
}

// RegionSpec describes a region, its sites and its address block
type RegionSpec struct {
	Name   string   `yaml:"name"`
	Weight float64  `yaml:"weight"`
	Sites  []string `yaml:"sites"`
	Subnet string   `yaml:"subnet"`
}

// RoleSpec describes a device role
type RoleSpec struct {
	Name   string        `yaml:"name"`
	Code   string        `yaml:"code"`
	Weight float64       `yaml:"weight"`
	Models []VendorModel `yaml:"models"`
}

// Spec is the serialized form of a catalog
type Spec struct {
	Domain     string            `yaml:"domain"`
	Regions    []RegionSpec      `yaml:"regions"`
	Roles      []RoleSpec        `yaml:"roles"`
	Statuses   []Weighted        `yaml:"statuses"`
	SiteStates map[string]string `yaml:"site_states"`
}

// Hostname code widths. A hostname is {site}{state}{role code}{NN}.
const (
	SiteCodeLen  = 3
	StateCodeLen = 2
	RoleCodeLen  = 2
)

// Catalog is the validated, indexed, read-only lookup data
type Catalog struct {
	spec Spec

	regions     map[string]RegionSpec
	subnets     map[string]netip.Prefix
	roles       map[string]RoleSpec
	roleByCode  map[string]string
	siteRegion  map[string]string
	modelRole   map[string]string
	hostnameCap int
}

// New validates a spec and indexes it
func New(spec Spec) (*Catalog, error) {
	c := &Catalog{
		spec:       spec,
		regions:    make(map[string]RegionSpec),
		subnets:    make(map[string]netip.Prefix),
		roles:      make(map[string]RoleSpec),
		roleByCode: make(map[string]string),
		siteRegion: make(map[string]string),
		modelRole:  make(map[string]string),
	}

	var result *multierror.Error
	if spec.Domain == "" {
		result = multierror.Append(result, fmt.Errorf("domain is empty"))
	}
	if len(spec.Regions) == 0 {
		result = multierror.Append(result, fmt.Errorf("no regions defined"))
	}
	if len(spec.Roles) == 0 {
		result = multierror.Append(result, fmt.Errorf("no roles defined"))
	}
	if len(spec.Statuses) == 0 {
		result = multierror.Append(result, fmt.Errorf("no statuses defined"))
	}
	for _, s := range spec.Statuses {
		if s.Weight <= 0 {
			result = multierror.Append(result, fmt.Errorf("status %q: weight must be positive", s.Name))
		}
	}

	for _, r := range spec.Regions {
		if _, dup := c.regions[r.Name]; dup {
			result = multierror.Append(result, fmt.Errorf("region %q defined twice", r.Name))
			continue
		}
		c.regions[r.Name] = r
		if r.Weight <= 0 {
			result = multierror.Append(result, fmt.Errorf("region %q: weight must be positive", r.Name))
		}
		if len(r.Sites) == 0 {
			result = multierror.Append(result, fmt.Errorf("region %q: no sites", r.Name))
		}
		prefix, err := netip.ParsePrefix(r.Subnet)
		switch {
		case err != nil:
			result = multierror.Append(result, fmt.Errorf("region %q: parse subnet: %w", r.Name, err))
		case !prefix.Addr().Is4() || prefix.Bits() > 30:
			result = multierror.Append(result, fmt.Errorf("region %q: subnet %s is not an IPv4 block with host addresses", r.Name, r.Subnet))
		default:
			c.subnets[r.Name] = prefix.Masked()
		}
		for _, site := range r.Sites {
			if owner, dup := c.siteRegion[site]; dup {
				result = multierror.Append(result, fmt.Errorf("site %q belongs to %q and %q", site, owner, r.Name))
				continue
			}
			c.siteRegion[site] = r.Name
			if len(site) != SiteCodeLen {
				result = multierror.Append(result, fmt.Errorf("site %q: code must be %d characters", site, SiteCodeLen))
			}
			switch state := spec.SiteStates[site]; {
			case state == "":
				result = multierror.Append(result, fmt.Errorf("site %q: no state code", site))
			case len(state) != StateCodeLen:
				result = multierror.Append(result, fmt.Errorf("site %q: state code %q must be %d characters", site, state, StateCodeLen))
			}
		}
	}

	for _, r := range spec.Roles {
		if _, dup := c.roles[r.Name]; dup {
			result = multierror.Append(result, fmt.Errorf("role %q defined twice", r.Name))
			continue
		}
		c.roles[r.Name] = r
		if r.Weight <= 0 {
			result = multierror.Append(result, fmt.Errorf("role %q: weight must be positive", r.Name))
		}
		if r.Code == "" {
			result = multierror.Append(result, fmt.Errorf("role %q: empty code", r.Name))
		} else if len(r.Code) != RoleCodeLen {
			result = multierror.Append(result, fmt.Errorf("role %q: code %q must be %d characters", r.Name, r.Code, RoleCodeLen))
		} else if other, dup := c.roleByCode[r.Code]; dup {
			result = multierror.Append(result, fmt.Errorf("role code %q used by %q and %q", r.Code, other, r.Name))
		} else {
			c.roleByCode[r.Code] = r.Name
		}
		if len(r.Models) == 0 {
			result = multierror.Append(result, fmt.Errorf("role %q: no vendor/model pairs", r.Name))
		}
		for _, vm := range r.Models {
			if owner, dup := c.modelRole[vm.Model]; dup && owner != r.Name {
				result = multierror.Append(result, fmt.Errorf("model %q shared by roles %q and %q", vm.Model, owner, r.Name))
				continue
			}
			c.modelRole[vm.Model] = r.Name
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	for _, r := range spec.Regions {
		c.hostnameCap += len(r.Sites) * len(spec.Roles) * 99
	}
	return c, nil
}

// Default returns the built-in catalog
func Default() *Catalog {
	c, err := New(DefaultSpec())
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a YAML catalog override. Sections absent from the file keep their defaults.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	spec.applyDefaults()

	return New(spec)
}

func (s *Spec) applyDefaults() {
	def := DefaultSpec()
	if s.Domain == "" {
		s.Domain = def.Domain
	}
	if len(s.Regions) == 0 {
		s.Regions = def.Regions
	}
	if len(s.Roles) == 0 {
		s.Roles = def.Roles
	}
	if len(s.Statuses) == 0 {
		s.Statuses = def.Statuses
	}
	if len(s.SiteStates) == 0 {
		s.SiteStates = def.SiteStates
	}
}

// Domain returns the DNS suffix used to build fqdns
func (c *Catalog) Domain() string {
	return c.spec.Domain
}

// RegionWeights returns regions in declaration order with their weights
func (c *Catalog) RegionWeights() []Weighted {
	out := make([]Weighted, len(c.spec.Regions))
	for i, r := range c.spec.Regions {
		out[i] = Weighted{Name: r.Name, Weight: r.Weight}
	}
	return out
}

// RoleWeights returns roles in declaration order with their weights
func (c *Catalog) RoleWeights() []Weighted {
	out := make([]Weighted, len(c.spec.Roles))
	for i, r := range c.spec.Roles {
		out[i] = Weighted{Name: r.Name, Weight: r.Weight}
	}
	return out
}

// StatusWeights returns operational states with their weights
func (c *Catalog) StatusWeights() []Weighted {
	return append([]Weighted{}, c.spec.Statuses...)
}

// Regions returns region names in declaration order
func (c *Catalog) Regions() []string {
	out := make([]string, len(c.spec.Regions))
	for i, r := range c.spec.Regions {
		out[i] = r.Name
	}
	return out
}

// Sites returns the site codes of a region
func (c *Catalog) Sites(region string) []string {
	return append([]string{}, c.regions[region].Sites...)
}

// State returns the state code of a site
func (c *Catalog) State(site string) (string, bool) {
	s, ok := c.spec.SiteStates[site]
	return s, ok
}

// SiteRegion maps a site code back to its region
func (c *Catalog) SiteRegion(site string) (string, bool) {
	r, ok := c.siteRegion[site]
	return r, ok
}

// Subnet returns the address block of a region
func (c *Catalog) Subnet(region string) (netip.Prefix, bool) {
	p, ok := c.subnets[region]
	return p, ok
}

// RoleCode returns the hostname code of a role
func (c *Catalog) RoleCode(role string) (string, bool) {
	r, ok := c.roles[role]
	return r.Code, ok
}

// RoleForCode maps a hostname role code back to the role name
func (c *Catalog) RoleForCode(code string) (string, bool) {
	r, ok := c.roleByCode[code]
	return r, ok
}

// Models returns the vendor/model pairs of a role
func (c *Catalog) Models(role string) []VendorModel {
	return append([]VendorModel{}, c.roles[role].Models...)
}

// RoleForModel returns the role a model belongs to
func (c *Catalog) RoleForModel(model string) (string, bool) {
	r, ok := c.modelRole[model]
	return r, ok
}

// AllModels returns every model in role declaration order
func (c *Catalog) AllModels() []string {
	var out []string
	for _, r := range c.spec.Roles {
		for _, vm := range r.Models {
			out = append(out, vm.Model)
		}
	}
	return out
}

// HostnameCapacity is the number of distinct hostnames the catalog can produce
func (c *Catalog) HostnameCapacity() int {
	return c.hostnameCap
}

// AddressCapacity is the number of distinct host addresses across all regions
func (c *Catalog) AddressCapacity() int {
	total := 0
	for _, p := range c.subnets {
		total += HostCount(p)
	}
	return total
}

// HostCount returns the usable host addresses of an IPv4 prefix (network and broadcast excluded)
func HostCount(p netip.Prefix) int {
	return (1 << (32 - p.Bits())) - 2
}
