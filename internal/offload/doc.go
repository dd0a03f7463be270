// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

// Package offload runs blocking units of work on a bounded worker pool.
//
// A caller hands Submit a no-argument function. The function is queued in FIFO
// order and executed by one of a fixed number of long-lived worker goroutines;
// the caller parks on a completion slot that belongs to that submission alone
// and is written exactly once. The caller's goroutine is the only thing that
// waits: other goroutines keep running, and the number of blocking calls in
// flight never exceeds the worker count however many callers there are.
//
// Outcomes
//   - The function's own error is returned unchanged.
//   - Failures of the pool are *ChannelError values wrapping one of the
//     sentinels (ErrPoolClosed, ErrSaturated, ErrWorkerPanic, ...).
//   - A panicking function yields ErrWorkerPanic with the recovered value and
//     stack; a function calling runtime.Goexit yields ErrWorkerAborted and
//     its worker is replaced.
//
// Admission
//
// When the queue is full Submit waits for room, so a burst larger than the
// queue is absorbed in FIFO order rather than refused. Options.SubmitRetries
// trades that for bounded waiting that ends in ErrSaturated.
//
// Cancellation
//
// Work that has not started when the caller's context ends is never run.
// Work that has started always runs to completion, because interrupting a
// half-applied write is worse than finishing it; the caller gets ErrDetached
// and the outcome is dropped.
//
// Lifecycle
//
// Processes create one pool at startup with Init and stop it with Shutdown.
// Close rejects new submissions, drains the queue and waits for the workers.
package offload
