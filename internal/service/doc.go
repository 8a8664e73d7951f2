// Package service implements the pipeline stages of Lightspeed.
//
// Services coordinate between the CLI and the repository layer: they build the
// system-of-record tables, rebuild the unified asset table and project it into
// training sets.
//
// # Services
//
// HydrateService projects labeled assets into the observability, inventory and
// ipam tables and verifies the stored row counts.
//
// JoinService left-joins the three tables into lightspeed_asset and re-derives
// the presence flags from the join.
//
// PrepareService writes the inventory and ipam training sets and the
// hostname-enriched labeled dataset.
//
// Pipeline chains generation, noise injection, the services above, training
// and reporting into one run, records it in the run history and writes a run
// manifest with artifact digests.
//
// # Event System
//
// Pipeline publishes stage transitions on an EventBus. Subscribers receive
// stage_started, stage_completed and stage_failed events followed by one
// run_completed event; slow subscribers miss events rather than block a run.
package service
