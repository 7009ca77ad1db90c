package autofee

import (
	"github.com/lightningnetwork/lnd/lnwire"
)

const (
	// MinFeeRateChange is the smallest fee rate change, in ppm, that is
	// worth a channel update.
	MinFeeRateChange = 10

	// MinBaseFeeChange is the smallest base fee change that is worth a
	// channel update.
	MinBaseFeeChange lnwire.MilliSatoshi = 100
)

// ClampFeeRate limits the change from our current fee rate to a target fee
// rate to at most maxStep ppm. If the target is within reach it is returned
// unchanged, otherwise we move exactly maxStep towards it.
func ClampFeeRate(current, target, maxStep uint32) uint32 {
	switch {
	case target > current && target-current > maxStep:
		return current + maxStep

	case current > target && current-target > maxStep:
		return current - maxStep

	default:
		return target
	}
}

// ShouldAdjust returns whether the change from our current fees to a proposed
// pair is large enough to justify a channel update. The check is symmetric in
// the direction of the change.
func ShouldAdjust(oldBase lnwire.MilliSatoshi, oldRate uint32,
	newBase lnwire.MilliSatoshi, newRate uint32) bool {

	return absDiff(uint64(oldRate), uint64(newRate)) >= MinFeeRateChange ||
		absDiff(uint64(oldBase), uint64(newBase)) >=
			uint64(MinBaseFeeChange)
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}

	return b - a
}
