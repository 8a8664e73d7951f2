package domain

import "fmt"

// Column names shared by the CSV artifacts and the unified table
const (
	ColIPAddress          = "ip_address"
	ColHostname           = "hostname"
	ColFQDN               = "fqdn"
	ColRegion             = "region"
	ColStatus             = "status"
	ColVendor             = "vendor"
	ColModel              = "model"
	ColRole               = "role"
	ColMissingInInventory = "missing_in_inventory"
	ColMissingInIPAM      = "missing_in_ipam"
)

// AssetColumns is the column order of the base asset dataset
var AssetColumns = []string{
	ColIPAddress, ColHostname, ColFQDN, ColRegion, ColStatus, ColVendor, ColModel, ColRole,
}

// LabeledColumns is the column order of the labeled asset dataset
var LabeledColumns = append(append([]string{}, AssetColumns...), ColMissingInInventory, ColMissingInIPAM)

// Asset represents a synthetic network device
type Asset struct {
	IPAddress string `json:"ip_address"`
	Hostname  string `json:"hostname"`
	FQDN      string `json:"fqdn"`
	Region    string `json:"region"`
	Status    string `json:"status"`
	Vendor    string `json:"vendor"`
	Model     string `json:"model"`
	Role      string `json:"role"`
}

// Values returns the asset fields in AssetColumns order
func (a Asset) Values() []string {
	return []string{a.IPAddress, a.Hostname, a.FQDN, a.Region, a.Status, a.Vendor, a.Model, a.Role}
}

// PresenceFlags records absence of an asset from each system of record
type PresenceFlags struct {
	MissingInInventory bool `json:"missing_in_inventory"`
	MissingInIPAM      bool `json:"missing_in_ipam"`
}

// LabeledAsset is an asset with its injected presence flags
type LabeledAsset struct {
	Asset
	PresenceFlags
}

// Values returns the labeled asset fields in LabeledColumns order
func (a LabeledAsset) Values() []string {
	return append(a.Asset.Values(), FlagString(a.MissingInInventory), FlagString(a.MissingInIPAM))
}

// FlagString renders a presence flag the way the datasets store it
func FlagString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// ParseFlag parses a 0/1 presence flag
func ParseFlag(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, fmt.Errorf("invalid flag value %q", s)
}
