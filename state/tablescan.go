package state

// TableScanLocal is the per-partition cursor for a Scan operator. The
// scan itself has no buffering of its own — it just remembers whether
// its producer has already signalled EOF so a second poll_pull after
// Exhausted is cheap to detect as a bug if it ever happens.
type TableScanLocal struct {
	Finished bool
}

// TableScanGlobal is unused by TableScan — partitioning is entirely
// determined by the producer's split count (spec.md §4.3) — but the
// variant exists so init_global bookkeeping stays uniform.
type TableScanGlobal struct{}
