package main

import (
	"time"

	"github.com/lightninglabs/autofees/autofee"
)

type policyResp struct {
	ID                   string  `json:"id"`
	WalletID             string  `json:"wallet_id"`
	Name                 string  `json:"name"`
	Enabled              bool    `json:"enabled"`
	Strategy             string  `json:"strategy"`
	BaseFeeMinMsat       uint64  `json:"base_fee_min_msat"`
	BaseFeeDefaultMsat   uint64  `json:"base_fee_default_msat"`
	BaseFeeMaxMsat       uint64  `json:"base_fee_max_msat"`
	FeeRateMinPPM        uint32  `json:"fee_rate_min_ppm"`
	FeeRateDefaultPPM    uint32  `json:"fee_rate_default_ppm"`
	FeeRateMaxPPM        uint32  `json:"fee_rate_max_ppm"`
	ThresholdLow         float64 `json:"liquidity_threshold_low"`
	ThresholdHigh        float64 `json:"liquidity_threshold_high"`
	AutoAdjust           bool    `json:"auto_adjust"`
	AdjustmentInterval   string  `json:"adjustment_interval"`
	MaxAdjustmentPerStep uint32  `json:"max_adjustment_per_step_ppm"`
	MinChannelSizeSat    int64   `json:"min_channel_size_sat"`
	OnlyActiveChannels   bool    `json:"only_active_channels"`
	CreatedAt            string  `json:"created_at,omitempty"`
	UpdatedAt            string  `json:"updated_at,omitempty"`
}

func newPolicyResp(p *autofee.Policy) *policyResp {
	return &policyResp{
		ID:                   p.ID,
		WalletID:             p.WalletID,
		Name:                 p.Name,
		Enabled:              p.Enabled,
		Strategy:             p.Strategy.String(),
		BaseFeeMinMsat:       uint64(p.BaseFeeMin),
		BaseFeeDefaultMsat:   uint64(p.BaseFeeDefault),
		BaseFeeMaxMsat:       uint64(p.BaseFeeMax),
		FeeRateMinPPM:        p.FeeRateMin,
		FeeRateDefaultPPM:    p.FeeRateDefault,
		FeeRateMaxPPM:        p.FeeRateMax,
		ThresholdLow:         p.ThresholdLow,
		ThresholdHigh:        p.ThresholdHigh,
		AutoAdjust:           p.AutoAdjust,
		AdjustmentInterval:   p.AdjustmentInterval.String(),
		MaxAdjustmentPerStep: p.MaxAdjustmentPerStep,
		MinChannelSizeSat:    int64(p.MinChannelSize),
		OnlyActiveChannels:   p.OnlyActiveChannels,
		CreatedAt:            formatTime(p.CreatedAt),
		UpdatedAt:            formatTime(p.UpdatedAt),
	}
}

func newPolicyResps(policies []*autofee.Policy) []*policyResp {
	resps := make([]*policyResp, 0, len(policies))
	for _, policy := range policies {
		resps = append(resps, newPolicyResp(policy))
	}

	return resps
}

type adjustmentResp struct {
	ID             string  `json:"id"`
	PolicyID       string  `json:"policy_id"`
	ChannelID      uint64  `json:"chan_id"`
	ChannelPoint   string  `json:"channel_point"`
	OldBaseFeeMsat uint64  `json:"old_base_fee_msat"`
	OldFeeRatePPM  uint32  `json:"old_fee_rate_ppm"`
	NewBaseFeeMsat uint64  `json:"new_base_fee_msat"`
	NewFeeRatePPM  uint32  `json:"new_fee_rate_ppm"`
	LiquidityRatio float64 `json:"liquidity_ratio"`
	Reason         string  `json:"reason"`
	Success        bool    `json:"success"`
	Error          string  `json:"error,omitempty"`
	Timestamp      string  `json:"timestamp"`
}

func newAdjustmentResps(adjustments []*autofee.Adjustment) []*adjustmentResp {
	resps := make([]*adjustmentResp, 0, len(adjustments))
	for _, a := range adjustments {
		resps = append(resps, &adjustmentResp{
			ID:             a.ID,
			PolicyID:       a.PolicyID,
			ChannelID:      a.ChannelID.ToUint64(),
			ChannelPoint:   a.ChannelPoint,
			OldBaseFeeMsat: uint64(a.OldBaseFee),
			OldFeeRatePPM:  a.OldFeeRate,
			NewBaseFeeMsat: uint64(a.NewBaseFee),
			NewFeeRatePPM:  a.NewFeeRate,
			LiquidityRatio: a.LiquidityRatio,
			Reason:         a.Reason,
			Success:        a.Success,
			Error:          a.Error,
			Timestamp:      formatTime(a.Timestamp),
		})
	}

	return resps
}

type statsResp struct {
	PolicyID         string  `json:"policy_id"`
	Total            int     `json:"total_adjustments"`
	Successful       int     `json:"successful_adjustments"`
	Failed           int     `json:"failed_adjustments"`
	AvgFeeRateChange float64 `json:"avg_fee_rate_change_ppm"`
	First            string  `json:"first_adjustment,omitempty"`
	Last             string  `json:"last_adjustment,omitempty"`
}

type proposalResp struct {
	ChannelID      uint64  `json:"chan_id"`
	ChannelPoint   string  `json:"channel_point"`
	LiquidityRatio float64 `json:"liquidity_ratio"`
	BaseFeeMsat    uint64  `json:"base_fee_msat"`
	FeeRatePPM     uint32  `json:"fee_rate_ppm"`
	NewBaseFeeMsat uint64  `json:"new_base_fee_msat"`
	NewFeeRatePPM  uint32  `json:"new_fee_rate_ppm"`
	Adjust         bool    `json:"adjust"`
	Reason         string  `json:"reason"`
}

func newProposalResp(p *autofee.Proposal) *proposalResp {
	return &proposalResp{
		ChannelID:      p.Channel.ChannelID.ToUint64(),
		ChannelPoint:   p.Channel.ChannelPoint,
		LiquidityRatio: p.LiquidityRatio,
		BaseFeeMsat:    uint64(p.Channel.BaseFee),
		FeeRatePPM:     p.Channel.FeeRate,
		NewBaseFeeMsat: uint64(p.BaseFee),
		NewFeeRatePPM:  p.FeeRate,
		Adjust:         p.Adjust,
		Reason:         p.Reason,
	}
}

type policyStatsResp struct {
	PolicyID          string   `json:"policy_id"`
	PolicyName        string   `json:"policy_name"`
	ChannelsProcessed int      `json:"channels_processed"`
	AdjustmentsMade   int      `json:"adjustments_made"`
	AdjustmentsFailed int      `json:"adjustments_failed"`
	Errors            []string `json:"errors"`
}

func newPolicyStatsResp(stats *autofee.PolicyStats) *policyStatsResp {
	errs := stats.Errors
	if errs == nil {
		errs = []string{}
	}

	return &policyStatsResp{
		PolicyID:          stats.PolicyID,
		PolicyName:        stats.PolicyName,
		ChannelsProcessed: stats.ChannelsProcessed,
		AdjustmentsMade:   stats.AdjustmentsMade,
		AdjustmentsFailed: stats.AdjustmentsFailed,
		Errors:            errs,
	}
}

type runStatsResp struct {
	Start             string             `json:"start"`
	Duration          string             `json:"duration"`
	PoliciesProcessed int                `json:"policies_processed"`
	ChannelsProcessed int                `json:"channels_processed"`
	AdjustmentsMade   int                `json:"adjustments_made"`
	AdjustmentsFailed int                `json:"adjustments_failed"`
	Policies          []*policyStatsResp `json:"policies"`
	Error             string             `json:"error,omitempty"`
}

func newRunStatsResp(stats *autofee.RunStats) *runStatsResp {
	policies := make([]*policyStatsResp, 0, len(stats.Policies))
	for _, policy := range stats.Policies {
		policies = append(policies, newPolicyStatsResp(policy))
	}

	return &runStatsResp{
		Start:             formatTime(stats.Start),
		Duration:          stats.Duration.String(),
		PoliciesProcessed: stats.PoliciesProcessed,
		ChannelsProcessed: stats.ChannelsProcessed,
		AdjustmentsMade:   stats.AdjustmentsMade,
		AdjustmentsFailed: stats.AdjustmentsFailed,
		Policies:          policies,
		Error:             stats.Error,
	}
}

// formatTime formats a timestamp as RFC3339, leaving the zero time empty.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(time.RFC3339)
}
