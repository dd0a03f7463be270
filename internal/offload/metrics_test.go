// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package offload

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ExportsStats(t *testing.T) {
	p := newTestPool(t, Options{Name: "metrics", Workers: 3})
	col := p.Collector()

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(col))

	for i := 0; i < 5; i++ {
		_, err := Submit(context.Background(), p, func() (int, error) { return i, nil })
		require.NoError(t, err)
	}
	_, err := Submit(context.Background(), p, func() (int, error) { return 0, errors.New("backend") })
	require.Error(t, err)
	_, err = Submit(context.Background(), p, func() (int, error) { panic("x") })
	require.ErrorIs(t, err, ErrWorkerPanic)

	assert.Equal(t, 13, testutil.CollectAndCount(col))

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "reason" {
					name += "/" + lp.GetValue()
				}
				if lp.GetName() == "pool" {
					assert.Equal(t, "metrics", lp.GetValue())
				}
			}
			if m.GetCounter() != nil {
				values[name] = m.GetCounter().GetValue()
			} else {
				values[name] = m.GetGauge().GetValue()
			}
		}
	}

	assert.Equal(t, 3.0, values["dbdispatch_offload_workers"])
	assert.Equal(t, 7.0, values["dbdispatch_offload_submitted_total"])
	assert.Equal(t, 6.0, values["dbdispatch_offload_completed_total"])
	assert.Equal(t, 1.0, values["dbdispatch_offload_failures_total/panic"])
	assert.Equal(t, 0.0, values["dbdispatch_offload_failures_total/detached"])
}
