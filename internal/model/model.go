// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

// package model defines the payloads carried through the Db capability.
// The dispatch layer never inspects them beyond handing them to a backend.
package model // import "github.com/toeirei/dbdispatch/internal/model"

import "fmt"

// Mode names the execution strategy of a backend adapter.
type Mode string

const (
	// ModeBlocking routes every suspending call through the offload pool.
	ModeBlocking Mode = "blocking"
	// ModeNative runs calls on the caller's goroutine with the caller's context.
	ModeNative Mode = "native"
)

// ParseMode maps a configuration string to a Mode. The empty string yields
// ModeNative, which lets backends with a context-aware driver pick it by default.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeNative:
		return ModeNative, nil
	case ModeBlocking:
		return ModeBlocking, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeBlocking, ModeNative)
	}
}

// Info describes a backend session. Producing it never touches the network.
type Info struct {
	Backend  string // sqlite, mysql, postgres
	Driver   string
	Mode     Mode
	Session  string // unique per handle
	InTx     bool
	ReadOnly bool
}

// String returns a compact single-line description.
func (i Info) String() string {
	s := fmt.Sprintf("%s/%s (%s) session=%s", i.Backend, i.Driver, i.Mode, i.Session)
	if i.InTx {
		if i.ReadOnly {
			return s + " tx=read-only"
		}
		return s + " tx=read-write"
	}
	return s
}

// Params is a single write statement. Statement uses the placeholder syntax of
// the backend it is posted to: `?` for bun-backed sessions, `$n` for pgx.
type Params struct {
	Statement string
	Args      []any
}

// Clone returns a copy whose Args slice does not alias the receiver's.
func (p Params) Clone() Params {
	if p.Args == nil {
		return p
	}
	args := make([]any, len(p.Args))
	copy(args, p.Args)
	return Params{Statement: p.Statement, Args: args}
}

// PostResult is the outcome of a successful Post.
type PostResult struct {
	RowsAffected    int64
	LastInsertID    int64
	HasLastInsertID bool
}
