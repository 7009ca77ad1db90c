package feesd

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lightninglabs/autofees/autofee"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestObserveRun tests that run stats are reflected in our metrics.
func TestObserveRun(t *testing.T) {
	metrics := NewMetrics()

	start := time.Unix(1600000000, 0)
	stats := &autofee.RunStats{
		Start:             start,
		Duration:          time.Second,
		PoliciesProcessed: 2,
		ChannelsProcessed: 5,
		AdjustmentsMade:   3,
		AdjustmentsFailed: 1,
		Policies: []*autofee.PolicyStats{
			{
				PolicyID:          "policy-1",
				ChannelsProcessed: 3,
				AdjustmentsMade:   2,
				AdjustmentsFailed: 1,
				Errors:            []string{"peer offline"},
			},
			{
				PolicyID:          "policy-2",
				ChannelsProcessed: 2,
				AdjustmentsMade:   1,
			},
		},
	}

	metrics.ObserveRun(stats)
	metrics.ObserveRun(&autofee.RunStats{
		Start: start.Add(time.Hour),
		Error: "store closed",
	})

	require.Equal(t, 2.0, testutil.ToFloat64(metrics.runs))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runErrors))
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.policiesProcessed))
	require.Equal(t, 5.0, testutil.ToFloat64(metrics.channelsProcessed))
	require.Equal(t, float64(start.Add(time.Hour).Unix()),
		testutil.ToFloat64(metrics.lastRunTimestamp))
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.lastRunAdjustments))

	require.Equal(t, 2.0, testutil.ToFloat64(
		metrics.adjustmentsMade.WithLabelValues("policy-1"),
	))
	require.Equal(t, 1.0, testutil.ToFloat64(
		metrics.adjustmentsMade.WithLabelValues("policy-2"),
	))
	require.Equal(t, 1.0, testutil.ToFloat64(
		metrics.adjustmentsFailed.WithLabelValues("policy-1"),
	))
	require.Equal(t, 1.0, testutil.ToFloat64(
		metrics.policyErrors.WithLabelValues("policy-1"),
	))

	// Our metrics are served over http.
	recorder := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(
		recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil),
	)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.True(t, strings.Contains(
		recorder.Body.String(), "autofees_manager_runs_total 2",
	))
}
