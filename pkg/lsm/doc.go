// Package lsm implements the background maintenance scheduler for an
// LSM-tree storage engine: a small, fixed-size worker pool that drains
// three priority-ordered queues to seal active chunks, flush them to disk,
// build Bloom filters, and merge on-disk chunks back together.
//
// # Architecture
//
//	                    ┌─────────────────────┐
//	   Switch()   ─────▶│   Switch queue       │◀── drained by Switch-capable
//	                    └─────────────────────┘    workers, highest priority
//	                    ┌─────────────────────┐
//	   Flush/Bloom ────▶│   App queue          │◀── popped once per loop by
//	   requests         └─────────────────────┘    Flush/Bloom-capable workers
//	                    ┌─────────────────────┐
//	   Manager Thread ─▶│   Manager queue      │◀── popped once per loop by
//	   (tree scan)       └─────────────────────┘    Merge-capable workers
//
// A Manager owns the three queues and a registry of Workers. The first
// worker it starts, the Manager Thread, has Merge capability like any
// other general worker, but additionally scans every open tree once per
// iteration and enqueues a Merge unit for each one whose chunk count and
// merge throttle say it's due. The Manager Thread then spawns the
// Switch-dedicated worker and the first general worker before entering its
// own steady-state loop; together these three satisfy the pool's "at
// least three workers" invariant.
//
// # Priority
//
// Every worker loop iteration follows a fixed order, skipping each step
// outside the worker's capability: drain the Switch queue completely, then
// attempt one App-queue pop, then attempt one Manager-queue pop. Switch work goes first because
// it unblocks a foreground writer stalled on a full active chunk; Merge
// comes last because it is the least urgent and most expensive.
//
// # Error handling
//
// A failed Switch, Checkpoint, Merge, or BuildBloom call is logged and
// otherwise ignored: the unit is considered dispatched either way, and the
// worker proceeds to its next queue. Only a violated structural invariant
// (a flush candidate that is the tree's primary chunk, a unit of a kind
// its queue does not admit) panics, mirroring the source library's abort
// in a diagnostic build.
package lsm
