package autofee

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/lnwire"
)

// Adjustment is an audit record of a fee change that we attempted for a
// channel. It is written once and never updated.
type Adjustment struct {
	// ID uniquely identifies the record.
	ID string

	// PolicyID is the policy that produced the change.
	PolicyID string

	// WalletID is the wallet that owns the channel.
	WalletID string

	// ChannelID is the channel that we updated.
	ChannelID lnwire.ShortChannelID

	// ChannelPoint is the funding outpoint of the channel.
	ChannelPoint string

	// OldBaseFee and OldFeeRate are the fees the channel had before the
	// update.
	OldBaseFee lnwire.MilliSatoshi
	OldFeeRate uint32

	// NewBaseFee and NewFeeRate are the fees that we tried to set.
	NewBaseFee lnwire.MilliSatoshi
	NewFeeRate uint32

	// LiquidityRatio is the channel's liquidity ratio at decision time.
	LiquidityRatio float64

	// Reason is a human readable explanation of the change.
	Reason string

	// Success indicates whether the node accepted the update.
	Success bool

	// Error holds the failure reported by the node, if any.
	Error string

	// Timestamp is the time at which the record was created.
	Timestamp time.Time
}

// String returns a short description of an adjustment.
func (a *Adjustment) String() string {
	return fmt.Sprintf("%v: %v + %v ppm -> %v + %v ppm (success: %v)",
		a.ChannelID, a.OldBaseFee, a.OldFeeRate, a.NewBaseFee,
		a.NewFeeRate, a.Success)
}

// FeeRateChange returns the signed change in fee rate.
func (a *Adjustment) FeeRateChange() int64 {
	return int64(a.NewFeeRate) - int64(a.OldFeeRate)
}

// newAdjustment records the outcome of applying a proposal. A non-nil update
// error marks the adjustment as failed and its text is kept.
func newAdjustment(policy *Policy, channel Channel, proposal *Proposal,
	updateErr error, now time.Time) *Adjustment {

	adjustment := &Adjustment{
		ID:             uuid.New().String(),
		PolicyID:       policy.ID,
		WalletID:       policy.WalletID,
		ChannelID:      channel.ChannelID,
		ChannelPoint:   channel.ChannelPoint,
		OldBaseFee:     channel.BaseFee,
		OldFeeRate:     channel.FeeRate,
		NewBaseFee:     proposal.BaseFee,
		NewFeeRate:     proposal.FeeRate,
		LiquidityRatio: proposal.LiquidityRatio,
		Reason:         proposal.Reason,
		Success:        updateErr == nil,
		Timestamp:      now,
	}

	if updateErr != nil {
		adjustment.Error = updateErr.Error()
	}

	return adjustment
}

// AdjustmentStats summarizes the adjustment history of a policy.
type AdjustmentStats struct {
	Total      int
	Successful int
	Failed     int

	// AvgFeeRateChange is the mean signed fee rate change in ppm.
	AvgFeeRateChange float64

	// First and Last are the timestamps of the oldest and newest
	// adjustment. They are zero if there are none.
	First time.Time
	Last  time.Time
}

// NewAdjustmentStats summarizes a set of adjustments.
func NewAdjustmentStats(adjustments []*Adjustment) *AdjustmentStats {
	stats := &AdjustmentStats{}

	var totalChange int64
	for _, adjustment := range adjustments {
		stats.Total++
		if adjustment.Success {
			stats.Successful++
		} else {
			stats.Failed++
		}

		totalChange += adjustment.FeeRateChange()

		ts := adjustment.Timestamp
		if stats.First.IsZero() || ts.Before(stats.First) {
			stats.First = ts
		}
		if ts.After(stats.Last) {
			stats.Last = ts
		}
	}

	if stats.Total > 0 {
		stats.AvgFeeRateChange = float64(totalChange) /
			float64(stats.Total)
	}

	return stats
}
