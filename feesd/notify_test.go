package feesd

import (
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/lightninglabs/autofees/autofee"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestRunReporter tests that queued run results reach our metrics.
func TestRunReporter(t *testing.T) {
	defer leaktest.Check(t)()

	metrics := NewMetrics()
	reporter := newRunReporter(metrics)
	reporter.start()

	for i := 0; i < 3; i++ {
		reporter.notify(&autofee.RunStats{
			Start:             time.Unix(1600000000, 0),
			PoliciesProcessed: 1,
			Policies: []*autofee.PolicyStats{
				{
					PolicyID: "policy-1",
					Errors:   []string{"peer offline"},
				},
			},
		})
	}

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.runs) == 3
	}, time.Second, 10*time.Millisecond)

	require.Equal(t, 3.0, testutil.ToFloat64(metrics.policiesProcessed))

	reporter.stop()

	// Notifications after stop do not block.
	reporter.notify(&autofee.RunStats{})
}
