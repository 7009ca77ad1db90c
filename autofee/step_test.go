package autofee

import (
	"testing"

	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/stretchr/testify/require"
)

// TestClampFeeRate tests limiting of fee rate changes per step.
func TestClampFeeRate(t *testing.T) {
	tests := []struct {
		name     string
		current  uint32
		target   uint32
		maxStep  uint32
		expected uint32
	}{
		{
			name:     "increase capped",
			current:  500,
			target:   5000,
			maxStep:  100,
			expected: 600,
		},
		{
			name:     "decrease capped",
			current:  500,
			target:   1,
			maxStep:  100,
			expected: 400,
		},
		{
			name:     "exactly one step",
			current:  500,
			target:   600,
			maxStep:  100,
			expected: 600,
		},
		{
			name:     "within step",
			current:  500,
			target:   450,
			maxStep:  100,
			expected: 450,
		},
		{
			name:     "no change",
			current:  500,
			target:   500,
			maxStep:  0,
			expected: 500,
		},
		{
			name:     "zero step holds rate",
			current:  500,
			target:   900,
			maxStep:  0,
			expected: 500,
		},
	}

	for _, testCase := range tests {
		testCase := testCase

		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			actual := ClampFeeRate(
				testCase.current, testCase.target,
				testCase.maxStep,
			)
			require.Equal(t, testCase.expected, actual)
		})
	}
}

// TestClampFeeRateProperties tests that a clamped rate never moves further
// than a step, and that reachable targets are returned unchanged.
func TestClampFeeRateProperties(t *testing.T) {
	values := []uint32{0, 1, 9, 10, 99, 100, 101, 500, 5000}

	for _, current := range values {
		for _, target := range values {
			for _, step := range values {
				actual := ClampFeeRate(current, target, step)

				moved := absDiff(uint64(actual), uint64(current))
				require.LessOrEqual(t, moved, uint64(step))

				if absDiff(uint64(target), uint64(current)) <=
					uint64(step) {

					require.Equal(t, target, actual)
				}
			}
		}
	}
}

// TestShouldAdjust tests our change gate.
func TestShouldAdjust(t *testing.T) {
	tests := []struct {
		name     string
		oldBase  lnwire.MilliSatoshi
		oldRate  uint32
		newBase  lnwire.MilliSatoshi
		newRate  uint32
		expected bool
	}{
		{
			name:     "no change",
			oldBase:  1000,
			oldRate:  500,
			newBase:  1000,
			newRate:  500,
			expected: false,
		},
		{
			name:     "small changes",
			oldBase:  1000,
			oldRate:  500,
			newBase:  1099,
			newRate:  509,
			expected: false,
		},
		{
			name:     "fee rate at threshold",
			oldBase:  1000,
			oldRate:  500,
			newBase:  1000,
			newRate:  510,
			expected: true,
		},
		{
			name:     "base fee at threshold",
			oldBase:  1000,
			oldRate:  500,
			newBase:  900,
			newRate:  500,
			expected: true,
		},
		{
			name:     "fee rate decrease",
			oldBase:  1000,
			oldRate:  500,
			newBase:  1000,
			newRate:  400,
			expected: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase

		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			actual := ShouldAdjust(
				testCase.oldBase, testCase.oldRate,
				testCase.newBase, testCase.newRate,
			)
			require.Equal(t, testCase.expected, actual)

			// Swapping old and new must not change our decision.
			swapped := ShouldAdjust(
				testCase.newBase, testCase.newRate,
				testCase.oldBase, testCase.oldRate,
			)
			require.Equal(t, actual, swapped)
		})
	}
}
