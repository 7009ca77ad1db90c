package autofee

import (
	"github.com/lightningnetwork/lnd/lnwire"
)

const (
	// balancedLowerMid and balancedUpperMid delimit the band in which the
	// balanced strategy uses the policy's default fees.
	balancedLowerMid = 40
	balancedUpperMid = 60

	// conservativeMaxShift is the largest share of the fee range that the
	// conservative strategy moves away from the default. Half of it is
	// applied, so fees move at most 15% of the range.
	conservativeMaxShift = 0.3
)

// feeBounds holds the bounds of one fee dimension as floats so that the
// strategy curves can be shared between base fee and fee rate.
type feeBounds struct {
	min float64
	def float64
	max float64
}

func (b feeBounds) span() float64 {
	return b.max - b.min
}

// at returns the fee found at a fraction of the range, truncated.
func (b feeBounds) at(fraction float64) int64 {
	return int64(b.min + b.span()*fraction)
}

// clamp restricts a value to the bounds.
func (b feeBounds) clamp(value int64) int64 {
	if value < int64(b.min) {
		return int64(b.min)
	}
	if value > int64(b.max) {
		return int64(b.max)
	}

	return value
}

// curve maps a liquidity ratio to a fee in one dimension.
type curve func(p *Policy, ratio float64, b feeBounds) int64

// CalculateFees returns the base fee and fee rate that a policy targets for a
// channel with the liquidity ratio provided. The results always lie within
// the policy's bounds.
func CalculateFees(p *Policy, ratio float64) (lnwire.MilliSatoshi, uint32) {
	var feeCurve curve
	switch p.Strategy {
	case StrategyAggressive:
		feeCurve = aggressiveFee

	case StrategyConservative:
		feeCurve = conservativeFee

	// Unknown strategies fall back to balanced.
	default:
		feeCurve = balancedFee
	}

	baseBounds := feeBounds{
		min: float64(p.BaseFeeMin),
		def: float64(p.BaseFeeDefault),
		max: float64(p.BaseFeeMax),
	}
	rateBounds := feeBounds{
		min: float64(p.FeeRateMin),
		def: float64(p.FeeRateDefault),
		max: float64(p.FeeRateMax),
	}

	baseFee := feeCurve(p, ratio, baseBounds)
	feeRate := feeCurve(p, ratio, rateBounds)

	return lnwire.MilliSatoshi(baseFee), uint32(feeRate)
}

// balancedFee interpolates across five liquidity bands:
//   - below the low threshold: 80-100% of the range, rising as we deplete.
//   - low threshold to 40%: 60-80% of the range.
//   - 40% to 60% inclusive: the default fee.
//   - above 60% to the high threshold: 40-20% of the range, falling.
//   - above the high threshold: 40-20% of the range, falling, saturating at
//     100% liquidity.
func balancedFee(p *Policy, ratio float64, b feeBounds) int64 {
	low, high := p.ThresholdLow, p.ThresholdHigh

	switch {
	case ratio < low:
		depth := (low - ratio) / low
		return b.at(0.8 + depth*0.2)

	case ratio < balancedLowerMid:
		depth := (balancedLowerMid - ratio) / (balancedLowerMid - low)
		return b.at(0.6 + depth*0.2)

	case ratio <= balancedUpperMid:
		return int64(b.def)

	case ratio <= high:
		excess := (ratio - balancedUpperMid) / (high - balancedUpperMid)
		return b.at(0.4 - excess*0.2)

	default:
		excess := 1.0
		if high < 100 {
			excess = (ratio - high) / (100 - high)
			if excess > 1 {
				excess = 1
			}
		}

		return b.at(0.4 - excess*0.2)
	}
}

// aggressiveFee charges the maximum fee below the low threshold, the minimum
// fee above the high threshold and interpolates linearly in between.
func aggressiveFee(p *Policy, ratio float64, b feeBounds) int64 {
	low, high := p.ThresholdLow, p.ThresholdHigh

	switch {
	case ratio < low:
		return int64(b.max)

	case ratio > high:
		return int64(b.min)
	}

	// With equal thresholds the only ratio that reaches this point is the
	// threshold itself, which we price at the maximum.
	var progress float64
	if high > low {
		progress = (ratio - low) / (high - low)
	}

	return int64(b.max - b.span()*progress)
}

// conservativeFee keeps the default fee inside the threshold band, and moves
// away from it in proportion to how far past the threshold we are. The result
// is clamped to the bounds because the default may sit close to either end.
func conservativeFee(p *Policy, ratio float64, b feeBounds) int64 {
	low, high := p.ThresholdLow, p.ThresholdHigh

	var fee int64
	switch {
	case ratio < low:
		depth := (low - ratio) / low
		shift := depth * conservativeMaxShift
		fee = int64(b.def + b.span()*shift*0.5)

	case ratio > high:
		excess := 1.0
		if high < 100 {
			excess = (ratio - high) / (100 - high)
		}
		shift := excess * conservativeMaxShift
		fee = int64(b.def - b.span()*shift*0.5)

	default:
		fee = int64(b.def)
	}

	return b.clamp(fee)
}
