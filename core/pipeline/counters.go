package pipeline

import "sync/atomic"

// counters is the orchestrator's running tally. Atomic so concurrent batch
// workers never contend on a lock for bookkeeping.
type counters struct {
	total      atomic.Int64
	relevant   atomic.Int64
	critical   atomic.Int64
	duplicates atomic.Int64
}

func (c *counters) snapshot() Snapshot {
	return Snapshot{
		Total:      c.total.Load(),
		Relevant:   c.relevant.Load(),
		Critical:   c.critical.Load(),
		Duplicates: c.duplicates.Load(),
	}
}

func (c *counters) reset() {
	c.total.Store(0)
	c.relevant.Store(0)
	c.critical.Store(0)
	c.duplicates.Store(0)
}
