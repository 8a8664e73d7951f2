// Package domain defines the core types of the lightspeed asset presence pipeline.
//
// This package contains the entities that flow between pipeline stages: synthetic
// network assets, their presence labels, the three system-of-record projections
// and the unified table rebuilt from them.
//
// # Core Types
//
// Asset is a synthetic network device as seen by the observability feed: address,
// hostname, fqdn, region, operational status, vendor/model and device role.
//
// LabeledAsset pairs an Asset with its PresenceFlags. The flags record whether the
// asset was dropped from the inventory system or from IPAM and are ground truth for
// the two classification targets.
//
// # Systems of Record
//
// ObservabilityRow, InventoryRow and IPAMRow are the per-system projections written to
// the relational store. Each carries a 1-based surrogate id. An asset flagged missing
// from a system has no row in that system's table.
//
// UnifiedAsset is the result of left-joining the three tables back together. Fields
// sourced from a system the asset is absent from are empty.
//
// # Frames
//
// Frame is an ordered-column string table used for CSV artifacts and feature
// projection. The empty string is the null value.
//
// # Design Principles
//
// - Values are immutable once produced by a stage
// - No database or external dependencies
// - Column names are constants shared by every stage
package domain
