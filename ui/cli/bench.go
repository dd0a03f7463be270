// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/toeirei/dbdispatch/internal/i18n"
	"github.com/toeirei/dbdispatch/internal/offload"
	"golang.org/x/sync/errgroup"
)

func newBenchCmd(_ *app) *cobra.Command {
	var (
		count int
		delay time.Duration
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: i18n.T("cli.bench.short"),
		Long: `Submits --count units of work at once; each one blocks its worker for
--delay. With W workers the run takes roughly count/W * delay, and the
caller goroutines stay parked on their completion slots the whole time.
Units that find the queue full wait for room unless pool.submit_retries
is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			pool := offload.Default()
			res, err := runBench(cmd.Context(), pool, count, delay)
			if err != nil {
				return err
			}

			p := newPrinter(cmd)
			p.ok(i18n.T("bench.summary", count, pool.Workers(), res.elapsed.Round(time.Millisecond)))
			p.line(i18n.T("bench.max_busy", res.stats.MaxBusy))

			reg := prometheus.NewRegistry()
			if err := reg.Register(pool.Collector()); err != nil {
				return err
			}
			families, err := reg.Gather()
			if err != nil {
				return err
			}
			p.title(i18n.T("bench.metrics"))
			for _, mf := range families {
				if _, err := expfmt.MetricFamilyToText(p.w, mf); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 100, i18n.T("cli.bench.flag.count"))
	cmd.Flags().DurationVar(&delay, "delay", 10*time.Millisecond, i18n.T("cli.bench.flag.delay"))
	return cmd
}

type benchResult struct {
	elapsed time.Duration
	stats   offload.Stats
}

// runBench submits count sleeping units concurrently and checks that every
// caller got back its own tag.
func runBench(ctx context.Context, pool *offload.Pool, count int, delay time.Duration) (benchResult, error) {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		g.Go(func() error {
			got, err := offload.Submit(gctx, pool, func() (int, error) {
				time.Sleep(delay)
				return i, nil
			})
			if err != nil {
				return err
			}
			if got != i {
				return fmt.Errorf("unit %d received the outcome of unit %d", i, got)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return benchResult{}, err
	}
	return benchResult{elapsed: time.Since(start), stats: pool.Stats()}, nil
}
