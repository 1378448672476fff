package batchz

import "sync/atomic"

// Counters is the per-instance bookkeeping owned by a processor, stream or
// pipeline. Every counter only ever increases. A Counters value must not be
// copied after first use; read it through Snapshot.
type Counters struct {
	processed      atomic.Int64
	stagesExecuted atomic.Int64
	successes      atomic.Int64
	errors         atomic.Int64
}

// CounterSnapshot is a point-in-time copy of Counters.
type CounterSnapshot struct {
	Processed      int64
	StagesExecuted int64
	Successes      int64
	Errors         int64
}

// AddProcessed records n processed items.
func (c *Counters) AddProcessed(n int) {
	c.processed.Add(int64(n))
}

// IncStage records one completed stage.
func (c *Counters) IncStage() {
	c.stagesExecuted.Add(1)
}

// IncSuccess records one successful run.
func (c *Counters) IncSuccess() {
	c.successes.Add(1)
}

// IncError records one failed run.
func (c *Counters) IncError() {
	c.errors.Add(1)
}

// Snapshot returns the current values.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Processed:      c.processed.Load(),
		StagesExecuted: c.stagesExecuted.Load(),
		Successes:      c.successes.Load(),
		Errors:         c.errors.Load(),
	}
}
