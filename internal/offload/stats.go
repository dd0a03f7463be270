// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package offload

import (
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of a pool.
type Stats struct {
	Workers int // live worker goroutines
	Busy    int // workers currently executing a unit of work
	MaxBusy int // high-water mark of Busy
	Queued  int // admitted or waiting for room, not yet picked up

	Submitted uint64 // admitted into the queue
	Completed uint64 // returned normally (with or without error)
	Rejected  uint64 // refused: closed pool or saturation after retries
	Saturated uint64 // admission attempts that found the queue full
	Panics    uint64
	Aborted   uint64 // runtime.Goexit inside a unit of work
	Abandoned uint64 // dropped from the queue after the caller went away
	Detached  uint64 // caller went away while the unit was running

	TotalWait time.Duration // summed queue wait of executed units
}

type counters struct {
	workers atomic.Int64
	busy    atomic.Int64
	maxBusy atomic.Int64
	queued  atomic.Int64

	submitted atomic.Uint64
	completed atomic.Uint64
	rejected  atomic.Uint64
	saturated atomic.Uint64
	panics    atomic.Uint64
	aborted   atomic.Uint64
	abandoned atomic.Uint64
	detached  atomic.Uint64

	waitNanos atomic.Int64
}

func (c *counters) markBusy() {
	n := c.busy.Add(1)
	for {
		peak := c.maxBusy.Load()
		if n <= peak || c.maxBusy.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (c *counters) observeWait(d time.Duration) {
	c.waitNanos.Add(int64(d))
}

// Stats returns a snapshot of the pool counters. Fields are read individually,
// so the snapshot is not atomic across fields.
func (p *Pool) Stats() Stats {
	c := &p.stats
	return Stats{
		Workers:   int(c.workers.Load()),
		Busy:      int(c.busy.Load()),
		MaxBusy:   int(c.maxBusy.Load()),
		Queued:    int(c.queued.Load()),
		Submitted: c.submitted.Load(),
		Completed: c.completed.Load(),
		Rejected:  c.rejected.Load(),
		Saturated: c.saturated.Load(),
		Panics:    c.panics.Load(),
		Aborted:   c.aborted.Load(),
		Abandoned: c.abandoned.Load(),
		Detached:  c.detached.Load(),
		TotalWait: time.Duration(c.waitNanos.Load()),
	}
}
