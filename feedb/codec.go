package feedb

import (
	"bytes"
	"math"
	"time"

	"github.com/btcsuite/btcutil"
	"github.com/lightninglabs/autofees/autofee"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/tlv"
)

// Policy record types. New fields must use odd types so that older versions
// can skip them.
const (
	policyIDType             tlv.Type = 0
	policyWalletType         tlv.Type = 2
	policyNameType           tlv.Type = 4
	policyEnabledType        tlv.Type = 6
	policyStrategyType       tlv.Type = 8
	policyBaseFeeMinType     tlv.Type = 10
	policyBaseFeeDefaultType tlv.Type = 12
	policyBaseFeeMaxType     tlv.Type = 14
	policyFeeRateMinType     tlv.Type = 16
	policyFeeRateDefaultType tlv.Type = 18
	policyFeeRateMaxType     tlv.Type = 20
	policyThresholdLowType   tlv.Type = 22
	policyThresholdHighType  tlv.Type = 24
	policyAutoAdjustType     tlv.Type = 26
	policyIntervalType       tlv.Type = 28
	policyMaxStepType        tlv.Type = 30
	policyMinChannelSizeType tlv.Type = 32
	policyOnlyActiveType     tlv.Type = 34
	policyCreatedType        tlv.Type = 36
	policyUpdatedType        tlv.Type = 38
)

// Adjustment record types.
const (
	adjustmentIDType           tlv.Type = 0
	adjustmentPolicyType       tlv.Type = 2
	adjustmentWalletType       tlv.Type = 4
	adjustmentChannelType      tlv.Type = 6
	adjustmentChannelPointType tlv.Type = 8
	adjustmentOldBaseType      tlv.Type = 10
	adjustmentOldRateType      tlv.Type = 12
	adjustmentNewBaseType      tlv.Type = 14
	adjustmentNewRateType      tlv.Type = 16
	adjustmentRatioType        tlv.Type = 18
	adjustmentReasonType       tlv.Type = 20
	adjustmentSuccessType      tlv.Type = 22
	adjustmentErrorType        tlv.Type = 24
	adjustmentTimestampType    tlv.Type = 26
)

// policyRecord holds a policy in its serialized field types.
type policyRecord struct {
	id, wallet, name                          []byte
	enabled, strategy, autoAdjust, onlyActive uint8
	baseMin, baseDefault, baseMax             uint64
	rateMin, rateDefault, rateMax, maxStep    uint32
	thresholdLow, thresholdHigh               uint64
	interval, minChannelSize                  uint64
	created, updated                          uint64
}

func (r *policyRecord) records() []tlv.Record {
	return []tlv.Record{
		tlv.MakePrimitiveRecord(policyIDType, &r.id),
		tlv.MakePrimitiveRecord(policyWalletType, &r.wallet),
		tlv.MakePrimitiveRecord(policyNameType, &r.name),
		tlv.MakePrimitiveRecord(policyEnabledType, &r.enabled),
		tlv.MakePrimitiveRecord(policyStrategyType, &r.strategy),
		tlv.MakePrimitiveRecord(policyBaseFeeMinType, &r.baseMin),
		tlv.MakePrimitiveRecord(
			policyBaseFeeDefaultType, &r.baseDefault,
		),
		tlv.MakePrimitiveRecord(policyBaseFeeMaxType, &r.baseMax),
		tlv.MakePrimitiveRecord(policyFeeRateMinType, &r.rateMin),
		tlv.MakePrimitiveRecord(
			policyFeeRateDefaultType, &r.rateDefault,
		),
		tlv.MakePrimitiveRecord(policyFeeRateMaxType, &r.rateMax),
		tlv.MakePrimitiveRecord(
			policyThresholdLowType, &r.thresholdLow,
		),
		tlv.MakePrimitiveRecord(
			policyThresholdHighType, &r.thresholdHigh,
		),
		tlv.MakePrimitiveRecord(policyAutoAdjustType, &r.autoAdjust),
		tlv.MakePrimitiveRecord(policyIntervalType, &r.interval),
		tlv.MakePrimitiveRecord(policyMaxStepType, &r.maxStep),
		tlv.MakePrimitiveRecord(
			policyMinChannelSizeType, &r.minChannelSize,
		),
		tlv.MakePrimitiveRecord(policyOnlyActiveType, &r.onlyActive),
		tlv.MakePrimitiveRecord(policyCreatedType, &r.created),
		tlv.MakePrimitiveRecord(policyUpdatedType, &r.updated),
	}
}

// serializePolicy encodes a policy as a tlv stream.
func serializePolicy(policy *autofee.Policy) ([]byte, error) {
	record := &policyRecord{
		id:             []byte(policy.ID),
		wallet:         []byte(policy.WalletID),
		name:           []byte(policy.Name),
		enabled:        boolToByte(policy.Enabled),
		strategy:       uint8(policy.Strategy),
		autoAdjust:     boolToByte(policy.AutoAdjust),
		onlyActive:     boolToByte(policy.OnlyActiveChannels),
		baseMin:        uint64(policy.BaseFeeMin),
		baseDefault:    uint64(policy.BaseFeeDefault),
		baseMax:        uint64(policy.BaseFeeMax),
		rateMin:        policy.FeeRateMin,
		rateDefault:    policy.FeeRateDefault,
		rateMax:        policy.FeeRateMax,
		maxStep:        policy.MaxAdjustmentPerStep,
		thresholdLow:   math.Float64bits(policy.ThresholdLow),
		thresholdHigh:  math.Float64bits(policy.ThresholdHigh),
		interval:       uint64(policy.AdjustmentInterval),
		minChannelSize: uint64(policy.MinChannelSize),
		created:        timeToUint64(policy.CreatedAt),
		updated:        timeToUint64(policy.UpdatedAt),
	}

	return encodeStream(record.records())
}

// deserializePolicy decodes a policy from a tlv stream.
func deserializePolicy(value []byte) (*autofee.Policy, error) {
	record := &policyRecord{}
	if err := decodeStream(value, record.records()); err != nil {
		return nil, err
	}

	return &autofee.Policy{
		ID:                   string(record.id),
		WalletID:             string(record.wallet),
		Name:                 string(record.name),
		Enabled:              record.enabled == 1,
		Strategy:             autofee.Strategy(record.strategy),
		BaseFeeMin:           lnwire.MilliSatoshi(record.baseMin),
		BaseFeeDefault:       lnwire.MilliSatoshi(record.baseDefault),
		BaseFeeMax:           lnwire.MilliSatoshi(record.baseMax),
		FeeRateMin:           record.rateMin,
		FeeRateDefault:       record.rateDefault,
		FeeRateMax:           record.rateMax,
		ThresholdLow:         math.Float64frombits(record.thresholdLow),
		ThresholdHigh:        math.Float64frombits(record.thresholdHigh),
		AutoAdjust:           record.autoAdjust == 1,
		AdjustmentInterval:   time.Duration(record.interval),
		MaxAdjustmentPerStep: record.maxStep,
		MinChannelSize:       btcutil.Amount(record.minChannelSize),
		OnlyActiveChannels:   record.onlyActive == 1,
		CreatedAt:            uint64ToTime(record.created),
		UpdatedAt:            uint64ToTime(record.updated),
	}, nil
}

// adjustmentRecord holds an adjustment in its serialized field types.
type adjustmentRecord struct {
	id, policy, wallet, channelPoint []byte
	reason, errMsg                   []byte
	channel, oldBase, newBase, ratio uint64
	oldRate, newRate                 uint32
	success                          uint8
	timestamp                        uint64
}

func (r *adjustmentRecord) records() []tlv.Record {
	return []tlv.Record{
		tlv.MakePrimitiveRecord(adjustmentIDType, &r.id),
		tlv.MakePrimitiveRecord(adjustmentPolicyType, &r.policy),
		tlv.MakePrimitiveRecord(adjustmentWalletType, &r.wallet),
		tlv.MakePrimitiveRecord(adjustmentChannelType, &r.channel),
		tlv.MakePrimitiveRecord(
			adjustmentChannelPointType, &r.channelPoint,
		),
		tlv.MakePrimitiveRecord(adjustmentOldBaseType, &r.oldBase),
		tlv.MakePrimitiveRecord(adjustmentOldRateType, &r.oldRate),
		tlv.MakePrimitiveRecord(adjustmentNewBaseType, &r.newBase),
		tlv.MakePrimitiveRecord(adjustmentNewRateType, &r.newRate),
		tlv.MakePrimitiveRecord(adjustmentRatioType, &r.ratio),
		tlv.MakePrimitiveRecord(adjustmentReasonType, &r.reason),
		tlv.MakePrimitiveRecord(adjustmentSuccessType, &r.success),
		tlv.MakePrimitiveRecord(adjustmentErrorType, &r.errMsg),
		tlv.MakePrimitiveRecord(
			adjustmentTimestampType, &r.timestamp,
		),
	}
}

// serializeAdjustment encodes an adjustment as a tlv stream.
func serializeAdjustment(adjustment *autofee.Adjustment) ([]byte, error) {
	record := &adjustmentRecord{
		id:           []byte(adjustment.ID),
		policy:       []byte(adjustment.PolicyID),
		wallet:       []byte(adjustment.WalletID),
		channelPoint: []byte(adjustment.ChannelPoint),
		reason:       []byte(adjustment.Reason),
		errMsg:       []byte(adjustment.Error),
		channel:      adjustment.ChannelID.ToUint64(),
		oldBase:      uint64(adjustment.OldBaseFee),
		newBase:      uint64(adjustment.NewBaseFee),
		ratio:        math.Float64bits(adjustment.LiquidityRatio),
		oldRate:      adjustment.OldFeeRate,
		newRate:      adjustment.NewFeeRate,
		success:      boolToByte(adjustment.Success),
		timestamp:    timeToUint64(adjustment.Timestamp),
	}

	return encodeStream(record.records())
}

// deserializeAdjustment decodes an adjustment from a tlv stream.
func deserializeAdjustment(value []byte) (*autofee.Adjustment, error) {
	record := &adjustmentRecord{}
	if err := decodeStream(value, record.records()); err != nil {
		return nil, err
	}

	return &autofee.Adjustment{
		ID:             string(record.id),
		PolicyID:       string(record.policy),
		WalletID:       string(record.wallet),
		ChannelID:      lnwire.NewShortChanIDFromInt(record.channel),
		ChannelPoint:   string(record.channelPoint),
		OldBaseFee:     lnwire.MilliSatoshi(record.oldBase),
		OldFeeRate:     record.oldRate,
		NewBaseFee:     lnwire.MilliSatoshi(record.newBase),
		NewFeeRate:     record.newRate,
		LiquidityRatio: math.Float64frombits(record.ratio),
		Reason:         string(record.reason),
		Success:        record.success == 1,
		Error:          string(record.errMsg),
		Timestamp:      uint64ToTime(record.timestamp),
	}, nil
}

func encodeStream(records []tlv.Record) ([]byte, error) {
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	if err := stream.Encode(&b); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func decodeStream(value []byte, records []tlv.Record) error {
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return err
	}

	return stream.Decode(bytes.NewReader(value))
}

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}

	return 0
}

// timeToUint64 stores a time as unix nanoseconds, with the zero time stored
// as zero.
func timeToUint64(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}

	return uint64(t.UnixNano())
}

func uint64ToTime(ns uint64) time.Time {
	if ns == 0 {
		return time.Time{}
	}

	return time.Unix(0, int64(ns)).UTC()
}
