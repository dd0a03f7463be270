// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/toeirei/dbdispatch/internal/config"
	"github.com/toeirei/dbdispatch/internal/db"
	"github.com/toeirei/dbdispatch/internal/i18n"
	"github.com/toeirei/dbdispatch/internal/logging"
	"github.com/toeirei/dbdispatch/internal/offload"
)

// isolate runs the test from an empty temp dir with its own user config dir,
// so no dbdispatch.yaml on the machine is picked up. It returns a sqlite DSN
// inside that dir.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg"))
	t.Setenv("HOME", tmp)
	t.Chdir(tmp)

	var logBuf bytes.Buffer
	logging.SetOutput(&logBuf)
	t.Cleanup(func() {
		logging.SetOutput(os.Stderr)
		i18n.Init("en")
	})
	return filepath.Join(tmp, "cli.db")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := Run(context.Background(), args, &out, &errOut)
	return out.String(), err
}

// mustRun fails the test if the command errors.
func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("%v failed: %v\noutput:\n%s", args, err, out)
	}
	return out
}

func expectContains(t *testing.T, out string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(out, p) {
			t.Errorf("expected output to contain %q, got:\n%s", p, out)
		}
	}
}

func TestInfo_SQLite(t *testing.T) {
	dsn := isolate(t)

	out := mustRun(t, "info", "--database.dsn", dsn)
	expectContains(t, out, "Backend:", "sqlite", "modernc.org/sqlite", "blocking", "Transaction: none")
	if offload.IsInitialized() {
		t.Fatalf("Run must shut the pool down")
	}
}

func TestInfo_German(t *testing.T) {
	dsn := isolate(t)

	out := mustRun(t, "info", "--database.dsn", dsn, "--language", "de")
	expectContains(t, out, "Treiber:", "keine")
}

func TestExec_CreateAndInsert(t *testing.T) {
	dsn := isolate(t)

	mustRun(t, "exec", "--database.dsn", dsn, "CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT UNIQUE)")

	out := mustRun(t, "exec", "--database.dsn", dsn, "--tx", "INSERT INTO t (v) VALUES (?)", "hello")
	expectContains(t, out, "Rows affected: 1", "Last insert id: 1")

	out = mustRun(t, "exec", "--database.dsn", dsn, "UPDATE t SET v = ? WHERE v = ?", "bye", "hello")
	expectContains(t, out, "Rows affected: 1")
}

func TestExec_FailedPostRollsBack(t *testing.T) {
	dsn := isolate(t)

	mustRun(t, "exec", "--database.dsn", dsn, "CREATE TABLE t (v TEXT UNIQUE)")
	mustRun(t, "exec", "--database.dsn", dsn, "INSERT INTO t (v) VALUES (?)", "x")

	out, err := run(t, "exec", "--database.dsn", dsn, "--tx", "INSERT INTO t (v) VALUES (?)", "x")
	if err == nil {
		t.Fatalf("expected duplicate insert to fail")
	}
	if !errors.Is(err, db.ErrDuplicate) || !errors.Is(err, errRolledBack) {
		t.Fatalf("expected duplicate and rolled-back error, got %v", err)
	}
	expectContains(t, out, "Transaction rolled back")
}

func TestExec_ReadOnlyRefusesWrites(t *testing.T) {
	dsn := isolate(t)

	mustRun(t, "exec", "--database.dsn", dsn, "CREATE TABLE t (v TEXT)")
	out, err := run(t, "exec", "--database.dsn", dsn, "--read-only", "INSERT INTO t (v) VALUES (?)", "x")
	if err == nil {
		t.Fatalf("write inside a read-only transaction succeeded:\n%s", out)
	}
	if !errors.Is(err, errRolledBack) {
		t.Fatalf("expected rollback, got %v", err)
	}

	out = mustRun(t, "exec", "--database.dsn", dsn, "DELETE FROM t")
	expectContains(t, out, "Rows affected: 0")
}

func TestExec_RequiresStatement(t *testing.T) {
	isolate(t)
	if _, err := run(t, "exec"); err == nil {
		t.Fatalf("expected error without a statement")
	}
}

func TestBench_ReportsMetrics(t *testing.T) {
	isolate(t)

	out := mustRun(t, "bench", "--count", "20", "--delay", "1ms", "--pool.workers", "4")
	expectContains(t, out,
		"20 units on 4 workers",
		"Max busy workers:",
		`dbdispatch_offload_submitted_total{pool="default"} 20`,
		`dbdispatch_offload_workers{pool="default"} 4`,
	)
}

// A burst far larger than the queue must wait for room, not fail.
func TestBench_BurstLargerThanQueue(t *testing.T) {
	isolate(t)
	t.Setenv("DBDISPATCH_POOL_QUEUE_SIZE", "8")

	out := mustRun(t, "bench", "--count", "500", "--delay", "0s", "--pool.workers", "2")
	expectContains(t, out,
		`dbdispatch_offload_submitted_total{pool="default"} 500`,
		`dbdispatch_offload_rejected_total{pool="default"} 0`,
	)
}

func TestBench_RejectsNonPositiveCount(t *testing.T) {
	isolate(t)
	if _, err := run(t, "bench", "--count", "0"); err == nil {
		t.Fatalf("expected error for --count 0")
	}
}

func TestRunBench_BoundedByWorkers(t *testing.T) {
	pool, err := offload.New(offload.Options{Workers: 3})
	if err != nil {
		t.Fatalf("offload.New failed: %v", err)
	}
	defer func() { _ = pool.Close(context.Background()) }()

	res, err := runBench(context.Background(), pool, 30, 0)
	if err != nil {
		t.Fatalf("runBench failed: %v", err)
	}
	if res.stats.MaxBusy > 3 {
		t.Fatalf("max busy %d exceeds 3 workers", res.stats.MaxBusy)
	}
	if res.stats.Submitted != 30 || res.stats.Completed != 30 {
		t.Fatalf("expected 30 submitted and completed, got %+v", res.stats)
	}
}

func TestConfigInit_WritesEffectiveConfig(t *testing.T) {
	isolate(t)
	t.Setenv("DBDISPATCH_POOL_WORKERS", "3")

	out := mustRun(t, "config", "init")

	path, err := config.GetConfigPath(false)
	if err != nil {
		t.Fatalf("GetConfigPath failed: %v", err)
	}
	expectContains(t, out, path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read written config: %v", err)
	}
	expectContains(t, string(data), "workers: 3", "type: sqlite")
}

func TestSetup_InvalidConfig(t *testing.T) {
	isolate(t)

	for _, args := range [][]string{
		{"info", "--database.type", "oracle"},
		{"info", "--pool.workers", "0"},
		{"info", "--config", filepath.Join(t.TempDir(), "missing.yaml")},
	} {
		if _, err := run(t, args...); err == nil {
			t.Errorf("expected %v to fail", args)
		}
	}
	if offload.IsInitialized() {
		t.Fatalf("pool left running after failed setup")
	}
}

func TestResolveBuildVersion(t *testing.T) {
	info := &debug.BuildInfo{
		Main: debug.Module{Path: modulePath, Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	}
	v, c, d := resolveBuildVersion(info)
	if v != "v1.2.3" || c != "abc123" || d != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected version info: %q %q %q", v, c, d)
	}

	dep := &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Deps: []*debug.Module{{Path: modulePath, Version: "v0.9.0"}},
	}
	if v, _, _ = resolveBuildVersion(dep); v != "v0.9.0" {
		t.Fatalf("expected dependency version v0.9.0, got %q", v)
	}
}
