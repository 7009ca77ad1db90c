package feedb

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lightninglabs/autofees/autofee"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

const testPolicyDocument = `
policies:
  - wallet_id: wallet-1
    name: routing node
    strategy: aggressive
    fee_rate_max_ppm: 2500
    adjustment_interval: 30m
  - wallet_id: wallet-2
    name: defaults only
`

// TestReadPolicies tests that absent fields take our defaults.
func TestReadPolicies(t *testing.T) {
	policies, err := ReadPolicies(strings.NewReader(testPolicyDocument))
	require.NoError(t, err)
	require.Len(t, policies, 2)

	expected := autofee.DefaultPolicy()
	expected.WalletID = "wallet-1"
	expected.Name = "routing node"
	expected.Strategy = autofee.StrategyAggressive
	expected.FeeRateMax = 2500
	expected.AdjustmentInterval = time.Minute * 30
	require.Equal(t, &expected, policies[0])

	defaults := autofee.DefaultPolicy()
	defaults.WalletID = "wallet-2"
	defaults.Name = "defaults only"
	require.Equal(t, &defaults, policies[1])
}

// TestReadPoliciesInvalid tests rejection of invalid documents.
func TestReadPoliciesInvalid(t *testing.T) {
	tests := []struct {
		name     string
		document string
		err      error
	}{
		{
			name: "unknown strategy",
			document: `
policies:
  - wallet_id: wallet-1
    name: typo
    strategy: agressive
`,
			err: autofee.ErrUnknownStrategy,
		},
		{
			name: "invalid bounds",
			document: `
policies:
  - wallet_id: wallet-1
    name: bounds
    fee_rate_default_ppm: 6000
`,
			err: autofee.ErrInvalidFeeRateBounds,
		},
		{
			name: "no wallet",
			document: `
policies:
  - name: orphan
`,
			err: autofee.ErrNoWallet,
		},
		{
			name: "nan threshold",
			document: `
policies:
  - wallet_id: wallet-1
    name: nan
    liquidity_threshold_low: .nan
`,
			err: autofee.ErrInvalidThresholds,
		},
		{
			name: "negative channel size",
			document: `
policies:
  - wallet_id: wallet-1
    name: negative
    min_channel_size_sat: -1
`,
			err: autofee.ErrNegativeChannelSize,
		},
	}

	for _, testCase := range tests {
		testCase := testCase

		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := ReadPolicies(
				strings.NewReader(testCase.document),
			)
			require.ErrorIs(t, err, testCase.err)
		})
	}

	_, err := ReadPolicies(strings.NewReader(`
policies:
  - wallet_id: wallet-1
    name: interval
    adjustment_interval: hourly
`))
	require.Error(t, err)
}

// TestWritePolicies tests that exported policies import unchanged.
func TestWritePolicies(t *testing.T) {
	policy := autofee.DefaultPolicy()
	policy.ID = "policy-1"
	policy.WalletID = "wallet-1"
	policy.Name = "exported"
	policy.Strategy = autofee.StrategyConservative
	policy.ThresholdLow = 12.5
	policy.AutoAdjust = false
	policy.MinChannelSize = 500000

	var b bytes.Buffer
	require.NoError(t, WritePolicies(&b, []*autofee.Policy{&policy}))

	policies, err := ReadPolicies(&b)
	require.NoError(t, err)
	require.Equal(t, []*autofee.Policy{&policy}, policies)
}

// TestImportPolicies tests creating policies from a document.
func TestImportPolicies(t *testing.T) {
	ctx := context.Background()
	testClock := clock.NewTestClock(testTime)

	store, err := NewBoltStore(t.TempDir(), testClock, DefaultOpenTimeout)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, store.Close())
	}()

	created, err := ImportPolicies(
		ctx, store, strings.NewReader(testPolicyDocument),
	)
	require.NoError(t, err)
	require.Len(t, created, 2)

	policies, err := store.ListPolicies(ctx, "")
	require.NoError(t, err)
	require.Len(t, policies, 2)

	// Importing a document with an existing id stops at that policy.
	var b bytes.Buffer
	require.NoError(t, WritePolicies(&b, created[:1]))

	created, err = ImportPolicies(ctx, store, &b)
	require.ErrorIs(t, err, ErrPolicyExists)
	require.Empty(t, created)
}
