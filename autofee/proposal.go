package autofee

import (
	"fmt"

	"github.com/lightningnetwork/lnd/lnwire"
)

// Proposal is the fee change that a policy calls for on a channel.
type Proposal struct {
	// Channel is the channel that was evaluated.
	Channel Channel

	// LiquidityRatio is the channel's local balance percentage.
	LiquidityRatio float64

	// BaseFee and FeeRate are the fees the policy would set, with the
	// fee rate already limited to a single step.
	BaseFee lnwire.MilliSatoshi
	FeeRate uint32

	// Adjust is false if the change is too small to be worth an update.
	Adjust bool

	// Reason explains the proposed change.
	Reason string
}

// String returns a short description of a proposal.
func (p *Proposal) String() string {
	return fmt.Sprintf("%v: %.1f%% local, %v + %v ppm -> %v + %v ppm "+
		"(adjust: %v)", p.Channel.ChannelID, p.LiquidityRatio,
		p.Channel.BaseFee, p.Channel.FeeRate, p.BaseFee, p.FeeRate,
		p.Adjust)
}

// Propose evaluates a channel against a policy without applying anything.
func Propose(policy *Policy, channel Channel) *Proposal {
	ratio := channel.LiquidityRatio()
	baseFee, feeRate := CalculateFees(policy, ratio)

	// Only the fee rate is limited per step, the base fee moves directly
	// to its target.
	feeRate = ClampFeeRate(
		channel.FeeRate, feeRate, policy.MaxAdjustmentPerStep,
	)

	return &Proposal{
		Channel:        channel,
		LiquidityRatio: ratio,
		BaseFee:        baseFee,
		FeeRate:        feeRate,
		Adjust: ShouldAdjust(
			channel.BaseFee, channel.FeeRate, baseFee, feeRate,
		),
		Reason: adjustmentReason(
			policy, ratio, channel.FeeRate, feeRate,
		),
	}
}

// ProposeAll evaluates every channel that passes a policy's filters.
func ProposeAll(policy *Policy, channels []Channel) []*Proposal {
	var proposals []*Proposal
	for _, channel := range channels {
		if !policy.eligible(channel) {
			continue
		}

		proposals = append(proposals, Propose(policy, channel))
	}

	return proposals
}
