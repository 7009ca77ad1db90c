package autofee

import (
	"testing"

	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/stretchr/testify/require"
)

// newTestPolicy returns a valid policy using our default bounds with the
// strategy provided.
func newTestPolicy(strategy Strategy) *Policy {
	policy := DefaultPolicy()
	policy.ID = "policy-1"
	policy.WalletID = "wallet-1"
	policy.Name = "test policy"
	policy.Strategy = strategy

	return &policy
}

// TestLiquidityRatio tests calculation of our liquidity ratio.
func TestLiquidityRatio(t *testing.T) {
	require.Equal(t, 0.0, LiquidityRatio(100, 0))
	require.Equal(t, 0.0, LiquidityRatio(0, 1000))
	require.Equal(t, 25.0, LiquidityRatio(250, 1000))
	require.Equal(t, 100.0, LiquidityRatio(1000, 1000))

	channel := Channel{
		Capacity:     200,
		LocalBalance: 150,
	}
	require.Equal(t, 75.0, channel.LiquidityRatio())
}

// TestCalculateFees tests the fee pairs that each strategy produces.
func TestCalculateFees(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		ratio    float64
		baseFee  lnwire.MilliSatoshi
		feeRate  uint32
	}{
		{
			name:     "aggressive below low threshold",
			strategy: StrategyAggressive,
			ratio:    10,
			baseFee:  10000,
			feeRate:  5000,
		},
		{
			name:     "aggressive above high threshold",
			strategy: StrategyAggressive,
			ratio:    90,
			baseFee:  0,
			feeRate:  1,
		},
		{
			name:     "aggressive midpoint",
			strategy: StrategyAggressive,
			ratio:    50,
			baseFee:  5000,
			feeRate:  2500,
		},
		{
			name:     "aggressive at low threshold",
			strategy: StrategyAggressive,
			ratio:    20,
			baseFee:  10000,
			feeRate:  5000,
		},
		{
			name:     "aggressive at high threshold",
			strategy: StrategyAggressive,
			ratio:    80,
			baseFee:  0,
			feeRate:  1,
		},
		{
			name:     "conservative at low threshold",
			strategy: StrategyConservative,
			ratio:    20,
			baseFee:  1000,
			feeRate:  500,
		},
		{
			name:     "conservative at high threshold",
			strategy: StrategyConservative,
			ratio:    80,
			baseFee:  1000,
			feeRate:  500,
		},
		{
			name:     "conservative depleted",
			strategy: StrategyConservative,
			ratio:    10,
			baseFee:  1750,
			feeRate:  874,
		},
		{
			name:     "conservative empty",
			strategy: StrategyConservative,
			ratio:    0,
			baseFee:  2500,
			feeRate:  1249,
		},
		{
			name:     "conservative saturated",
			strategy: StrategyConservative,
			ratio:    90,
			baseFee:  250,
			feeRate:  125,
		},
		{
			name:     "conservative clamped to minimum",
			strategy: StrategyConservative,
			ratio:    100,
			baseFee:  0,
			feeRate:  1,
		},
		{
			name:     "balanced empty",
			strategy: StrategyBalanced,
			ratio:    0,
			baseFee:  10000,
			feeRate:  5000,
		},
		{
			name:     "balanced depleted",
			strategy: StrategyBalanced,
			ratio:    10,
			baseFee:  9000,
			feeRate:  4500,
		},
		{
			name:     "balanced at 40",
			strategy: StrategyBalanced,
			ratio:    40,
			baseFee:  1000,
			feeRate:  500,
		},
		{
			name:     "balanced at 50",
			strategy: StrategyBalanced,
			ratio:    50,
			baseFee:  1000,
			feeRate:  500,
		},
		{
			name:     "balanced at 60",
			strategy: StrategyBalanced,
			ratio:    60,
			baseFee:  1000,
			feeRate:  500,
		},
		{
			name:     "balanced high",
			strategy: StrategyBalanced,
			ratio:    70,
			baseFee:  3000,
			feeRate:  1500,
		},
		{
			name:     "balanced at high threshold",
			strategy: StrategyBalanced,
			ratio:    80,
			baseFee:  2000,
			feeRate:  1000,
		},
		{
			name:     "balanced full",
			strategy: StrategyBalanced,
			ratio:    100,
			baseFee:  2000,
			feeRate:  1000,
		},
		{
			name:     "unknown strategy falls back to balanced",
			strategy: StrategyUnknown,
			ratio:    10,
			baseFee:  9000,
			feeRate:  4500,
		},
	}

	for _, testCase := range tests {
		testCase := testCase

		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			policy := newTestPolicy(testCase.strategy)

			baseFee, feeRate := CalculateFees(policy, testCase.ratio)
			require.Equal(t, testCase.baseFee, baseFee)
			require.Equal(t, testCase.feeRate, feeRate)
		})
	}
}

// TestCalculateFeesWithinBounds tests that every strategy stays within the
// policy's bounds for the ratios at which its curve changes shape.
func TestCalculateFeesWithinBounds(t *testing.T) {
	policies := []func(p *Policy){
		func(p *Policy) {},
		func(p *Policy) {
			p.ThresholdLow = 0
			p.ThresholdHigh = 100
		},
		func(p *Policy) {
			p.ThresholdLow = 50
			p.ThresholdHigh = 50
		},
		func(p *Policy) {
			p.ThresholdLow = 45
			p.ThresholdHigh = 55
		},
		func(p *Policy) {
			p.BaseFeeMin = 500
			p.BaseFeeDefault = 500
			p.BaseFeeMax = 500
			p.FeeRateMin = 10
			p.FeeRateDefault = 4990
			p.FeeRateMax = 5000
		},
	}

	strategies := []Strategy{
		StrategyUnknown, StrategyBalanced, StrategyAggressive,
		StrategyConservative,
	}

	for i, mutate := range policies {
		for _, strategy := range strategies {
			policy := newTestPolicy(strategy)
			mutate(policy)
			require.NoError(t, policy.Validate())

			ratios := []float64{
				0, 0.5, policy.ThresholdLow, 39.99, 40, 50,
				60, 60.01, policy.ThresholdHigh, 99.5, 100,
			}

			for _, ratio := range ratios {
				baseFee, feeRate := CalculateFees(policy, ratio)

				require.GreaterOrEqual(t, baseFee, policy.BaseFeeMin,
					"policy %v, %v at %v", i, strategy, ratio)
				require.LessOrEqual(t, baseFee, policy.BaseFeeMax,
					"policy %v, %v at %v", i, strategy, ratio)
				require.GreaterOrEqual(t, feeRate, policy.FeeRateMin,
					"policy %v, %v at %v", i, strategy, ratio)
				require.LessOrEqual(t, feeRate, policy.FeeRateMax,
					"policy %v, %v at %v", i, strategy, ratio)
			}
		}
	}
}

// TestBalancedDefaultAtMidpoint tests that the balanced strategy always uses
// the policy defaults for a perfectly balanced channel.
func TestBalancedDefaultAtMidpoint(t *testing.T) {
	thresholds := [][2]float64{
		{0, 100}, {20, 80}, {40, 60}, {50, 50}, {10, 30},
	}

	for _, bounds := range thresholds {
		policy := newTestPolicy(StrategyBalanced)
		policy.ThresholdLow = bounds[0]
		policy.ThresholdHigh = bounds[1]
		policy.BaseFeeDefault = 1234
		policy.FeeRateDefault = 987

		baseFee, feeRate := CalculateFees(policy, 50)
		require.Equal(t, lnwire.MilliSatoshi(1234), baseFee)
		require.Equal(t, uint32(987), feeRate)
	}
}
