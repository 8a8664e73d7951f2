package sqlstore

import "lightspeed/internal/domain"

// VARCHAR/INTEGER keep the DDL valid on both SQLite and MySQL.

var observabilitySchema = tableSchema{
	name: domain.TableObservability,
	create: `CREATE TABLE observability (
		obs_asset_id INTEGER PRIMARY KEY,
		obs_ip_address VARCHAR(64) NOT NULL,
		obs_hostname VARCHAR(255) NOT NULL,
		obs_fqdn VARCHAR(255) NOT NULL,
		obs_status VARCHAR(32) NOT NULL
	)`,
	indexes: []string{
		"CREATE INDEX idx_obs_ip_hostname ON observability(obs_ip_address, obs_hostname)",
	},
}

var inventorySchema = tableSchema{
	name: domain.TableInventory,
	create: `CREATE TABLE inventory (
		inv_asset_id INTEGER PRIMARY KEY,
		inv_ip_address VARCHAR(64) NOT NULL,
		inv_hostname VARCHAR(255) NOT NULL,
		inv_vendor VARCHAR(64) NOT NULL,
		inv_model VARCHAR(64) NOT NULL
	)`,
	indexes: []string{
		"CREATE INDEX idx_inv_ip_hostname ON inventory(inv_ip_address, inv_hostname)",
	},
}

var ipamSchema = tableSchema{
	name: domain.TableIPAM,
	create: `CREATE TABLE ipam (
		ipam_asset_id INTEGER PRIMARY KEY,
		ipam_ip_address VARCHAR(64) NOT NULL,
		ipam_fqdn VARCHAR(255) NOT NULL,
		ipam_region VARCHAR(32) NOT NULL
	)`,
	indexes: []string{
		"CREATE INDEX idx_ipam_ip_fqdn ON ipam(ipam_ip_address, ipam_fqdn)",
	},
}

var unifiedSchema = tableSchema{
	name: domain.TableLightspeedAsset,
	create: `CREATE TABLE lightspeed_asset (
		lightspeed_asset_id INTEGER PRIMARY KEY,
		ip_address VARCHAR(64) NOT NULL,
		hostname VARCHAR(255) NOT NULL,
		fqdn VARCHAR(255) NOT NULL,
		status VARCHAR(32) NOT NULL,
		vendor VARCHAR(64),
		model VARCHAR(64),
		region VARCHAR(32),
		missing_in_inventory INTEGER NOT NULL,
		missing_in_ipam INTEGER NOT NULL
	)`,
}

// runSchema is created once and kept across replaces
const runSchema = `CREATE TABLE IF NOT EXISTS pipeline_run (
	run_id VARCHAR(36) PRIMARY KEY,
	started_at VARCHAR(40) NOT NULL,
	finished_at VARCHAR(40) NOT NULL,
	seed BIGINT NOT NULL,
	num_assets INTEGER NOT NULL,
	status VARCHAR(16) NOT NULL,
	error TEXT
)`

// tableKeys maps each loadable table to its ordering column
var tableKeys = map[string]string{
	domain.TableObservability:   "obs_asset_id",
	domain.TableInventory:       "inv_asset_id",
	domain.TableIPAM:            "ipam_asset_id",
	domain.TableLightspeedAsset: "lightspeed_asset_id",
}

const joinQuery = `
	SELECT
		o.obs_ip_address AS ip_address,
		o.obs_hostname AS hostname,
		o.obs_fqdn AS fqdn,
		o.obs_status AS status,
		i.inv_vendor AS vendor,
		i.inv_model AS model,
		p.ipam_region AS region,
		CASE WHEN i.inv_asset_id IS NULL THEN 1 ELSE 0 END AS missing_in_inventory,
		CASE WHEN p.ipam_asset_id IS NULL THEN 1 ELSE 0 END AS missing_in_ipam
	FROM observability o
	LEFT JOIN inventory i
		ON i.inv_ip_address = o.obs_ip_address AND i.inv_hostname = o.obs_hostname
	LEFT JOIN ipam p
		ON p.ipam_ip_address = o.obs_ip_address AND p.ipam_fqdn = o.obs_fqdn
	ORDER BY o.obs_asset_id`
