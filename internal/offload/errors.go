// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package offload

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolClosed is returned for submissions made after Close, and for queued
	// work that Close gave up waiting for.
	ErrPoolClosed = errors.New("offload pool closed")
	// ErrSaturated is returned when the queue stayed full for every admission attempt.
	ErrSaturated = errors.New("offload queue saturated")
	// ErrNotInitialized is returned when no pool was supplied and no default pool exists.
	ErrNotInitialized = errors.New("offload pool not initialized")
	// ErrAlreadyInitialized is returned by Init when the default pool exists.
	ErrAlreadyInitialized = errors.New("offload pool already initialized")
	// ErrWorkerPanic reports a unit of work that panicked.
	ErrWorkerPanic = errors.New("offload worker panicked")
	// ErrWorkerAborted reports a unit of work that called runtime.Goexit.
	ErrWorkerAborted = errors.New("offload worker aborted")
	// ErrCanceled reports a caller whose context ended before its work started.
	// The work is never executed.
	ErrCanceled = errors.New("offload submission canceled")
	// ErrDetached reports a caller whose context ended while its work was running.
	// The work runs to completion and its outcome is discarded.
	ErrDetached = errors.New("offload submission detached")
	// ErrNilWork is returned when Submit is handed a nil function.
	ErrNilWork = errors.New("offload work is nil")
)

// ChannelError is a failure of the offload mechanism itself, as opposed to an
// error returned by the unit of work.
type ChannelError struct {
	Op    string // submit, execute, close
	Err   error  // one of the sentinels above
	Cause error  // context error or recovered panic, if any
	Panic any
	Stack []byte
}

func (e *ChannelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("offload %s: %v: %v", e.Op, e.Err, e.Cause)
	}
	return fmt.Sprintf("offload %s: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *ChannelError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// IsChannelError reports whether err originates from the offload mechanism.
func IsChannelError(err error) bool {
	var ce *ChannelError
	return errors.As(err, &ce)
}

// Retryable reports whether the failure was transient admission pressure.
func (e *ChannelError) Retryable() bool {
	return errors.Is(e.Err, ErrSaturated)
}

func channelError(op string, sentinel, cause error) *ChannelError {
	return &ChannelError{Op: op, Err: sentinel, Cause: cause}
}
