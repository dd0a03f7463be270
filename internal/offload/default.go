// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package offload

import (
	"context"
	"sync"
)

// package-level variables
var (
	defaultMu   sync.Mutex
	defaultPool *Pool
)

// Init creates the process-wide pool. Call it once during startup; there is no
// lazy initialization on first use.
func Init(opts Options) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultPool != nil {
		return ErrAlreadyInitialized
	}
	p, err := New(opts)
	if err != nil {
		return err
	}
	defaultPool = p
	return nil
}

// IsInitialized reports whether the process-wide pool has been created.
func IsInitialized() bool {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultPool != nil
}

// Default returns the process-wide pool, or nil before Init.
func Default() *Pool {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultPool
}

// Shutdown closes the process-wide pool and forgets it once it has drained.
// Calling it without a pool, or more than once, is a no-op.
func Shutdown(ctx context.Context) error {
	defaultMu.Lock()
	p := defaultPool
	defaultMu.Unlock()
	if p == nil {
		return nil
	}
	if err := p.Close(ctx); err != nil {
		return err
	}
	defaultMu.Lock()
	if defaultPool == p {
		defaultPool = nil
	}
	defaultMu.Unlock()
	return nil
}
