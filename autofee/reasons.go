package autofee

import "fmt"

// Band describes where a channel's liquidity ratio sits relative to a policy's
// thresholds.
type Band uint8

const (
	// BandBalanced indicates that the ratio lies within the thresholds,
	// inclusive.
	BandBalanced Band = iota

	// BandLow indicates that the ratio is below the low threshold, so we
	// are running out of outbound liquidity.
	BandLow

	// BandHigh indicates that the ratio is above the high threshold, so
	// most of the channel sits on our side.
	BandHigh
)

// String returns the string representation of a band.
func (b Band) String() string {
	switch b {
	case BandBalanced:
		return "Balanced liquidity"

	case BandLow:
		return "Low liquidity"

	case BandHigh:
		return "High liquidity"

	default:
		return "unknown"
	}
}

// liquidityBand places a liquidity ratio in one of the policy's bands.
func liquidityBand(p *Policy, ratio float64) Band {
	switch {
	case ratio < p.ThresholdLow:
		return BandLow

	case ratio > p.ThresholdHigh:
		return BandHigh

	default:
		return BandBalanced
	}
}

// adjustmentReason produces the human readable explanation that we store
// with an adjustment.
func adjustmentReason(p *Policy, ratio float64, oldRate,
	newRate uint32) string {

	band := liquidityBand(p, ratio)

	switch band {
	case BandLow:
		direction := "adjusted"
		if newRate > oldRate {
			direction = "increased"
		}

		return fmt.Sprintf("%v (%.1f%%) - fees %v to discourage "+
			"outbound", band, ratio, direction)

	case BandHigh:
		direction := "adjusted"
		if newRate < oldRate {
			direction = "decreased"
		}

		return fmt.Sprintf("%v (%.1f%%) - fees %v to encourage "+
			"outbound", band, ratio, direction)

	default:
		return fmt.Sprintf("%v (%.1f%%) - fees set to optimal level",
			band, ratio)
	}
}
