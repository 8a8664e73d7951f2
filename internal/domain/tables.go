package domain

import (
	"database/sql"
	"time"
)

// Table names in the relational store
const (
	TableObservability   = "observability"
	TableInventory       = "inventory"
	TableIPAM            = "ipam"
	TableLightspeedAsset = "lightspeed_asset"
)

// ObservabilityRow is an asset as reported by the observability feed
type ObservabilityRow struct {
	ID        int64  `db:"obs_asset_id"`
	IPAddress string `db:"obs_ip_address"`
	Hostname  string `db:"obs_hostname"`
	FQDN      string `db:"obs_fqdn"`
	Status    string `db:"obs_status"`
}

// InventoryRow is an asset as recorded by the inventory system
type InventoryRow struct {
	ID        int64  `db:"inv_asset_id"`
	IPAddress string `db:"inv_ip_address"`
	Hostname  string `db:"inv_hostname"`
	Vendor    string `db:"inv_vendor"`
	Model     string `db:"inv_model"`
}

// IPAMRow is an address assignment as recorded by IPAM
type IPAMRow struct {
	ID        int64  `db:"ipam_asset_id"`
	IPAddress string `db:"ipam_ip_address"`
	FQDN      string `db:"ipam_fqdn"`
	Region    string `db:"ipam_region"`
}

// UnifiedAsset is one row of the joined lightspeed_asset table.
// Vendor/Model are null when the asset is missing from inventory, Region when missing from IPAM.
type UnifiedAsset struct {
	ID                 int64          `db:"lightspeed_asset_id"`
	IPAddress          string         `db:"ip_address"`
	Hostname           string         `db:"hostname"`
	FQDN               string         `db:"fqdn"`
	Status             string         `db:"status"`
	Vendor             sql.NullString `db:"vendor"`
	Model              sql.NullString `db:"model"`
	Region             sql.NullString `db:"region"`
	MissingInInventory int64          `db:"missing_in_inventory"`
	MissingInIPAM      int64          `db:"missing_in_ipam"`
}

// Flags returns the presence flags reconstructed by the join
func (u UnifiedAsset) Flags() PresenceFlags {
	return PresenceFlags{
		MissingInInventory: u.MissingInInventory != 0,
		MissingInIPAM:      u.MissingInIPAM != 0,
	}
}

// SystemTables groups the three system-of-record projections
type SystemTables struct {
	Observability []ObservabilityRow
	Inventory     []InventoryRow
	IPAM          []IPAMRow
}

// TableCounts reports row counts per system table
type TableCounts struct {
	Observability int `json:"observability"`
	Inventory     int `json:"inventory"`
	IPAM          int `json:"ipam"`
}

// Counts returns the row count of each table
func (t *SystemTables) Counts() TableCounts {
	return TableCounts{
		Observability: len(t.Observability),
		Inventory:     len(t.Inventory),
		IPAM:          len(t.IPAM),
	}
}

// RunRecord is one pipeline execution in the run history.
// Fields carry no db tags; column names are their snake_case forms.
type RunRecord struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Seed       int64
	NumAssets  int
	Status     string
	Error      string
}
