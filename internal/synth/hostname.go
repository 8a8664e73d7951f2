package synth

import (
	"fmt"
	"strconv"

	"lightspeed/internal/catalog"
)

// HostnameParts is a decoded {site}{state}{role_code}{NN} hostname.
// Role and Region are empty when the codes are unknown to the catalog.
type HostnameParts struct {
	SiteCode  string
	StateCode string
	RoleCode  string
	Number    int
	Role      string
	Region    string
}

// Offsets of the codes inside a hostname
const (
	stateStart  = catalog.SiteCodeLen
	roleStart   = stateStart + catalog.StateCodeLen
	numberStart = roleStart + catalog.RoleCodeLen
)

// ParseHostname decodes a generated hostname
func ParseHostname(c *catalog.Catalog, hostname string) (HostnameParts, error) {
	if len(hostname) < numberStart+2 {
		return HostnameParts{}, fmt.Errorf("hostname %q too short", hostname)
	}
	num, err := strconv.Atoi(hostname[numberStart:])
	if err != nil {
		return HostnameParts{}, fmt.Errorf("hostname %q: parse number: %w", hostname, err)
	}

	parts := HostnameParts{
		SiteCode:  hostname[:stateStart],
		StateCode: hostname[stateStart:roleStart],
		RoleCode:  hostname[roleStart:numberStart],
		Number:    num,
	}
	parts.Role, _ = c.RoleForCode(parts.RoleCode)
	parts.Region, _ = c.SiteRegion(parts.SiteCode)
	return parts, nil
}
