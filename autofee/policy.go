package autofee

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/btcsuite/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
)

var (
	// ErrInvalidBaseFeeBounds is returned when a policy's base fee bounds
	// do not satisfy min <= default <= max.
	ErrInvalidBaseFeeBounds = errors.New("base fee bounds must satisfy " +
		"min <= default <= max")

	// ErrInvalidFeeRateBounds is returned when a policy's fee rate bounds
	// do not satisfy min <= default <= max.
	ErrInvalidFeeRateBounds = errors.New("fee rate bounds must satisfy " +
		"min <= default <= max")

	// ErrInvalidThresholds is returned when liquidity thresholds are not
	// percentages with low <= high.
	ErrInvalidThresholds = errors.New("liquidity thresholds must satisfy " +
		"0 <= low <= high <= 100")

	// ErrNoWallet is returned when a policy is not bound to a wallet.
	ErrNoWallet = errors.New("policy requires a wallet id")

	// ErrNoName is returned when a policy has an empty name.
	ErrNoName = errors.New("policy requires a name")

	// ErrNegativeInterval is returned when a policy has a negative
	// adjustment interval.
	ErrNegativeInterval = errors.New("adjustment interval must not be " +
		"negative")

	// ErrNegativeChannelSize is returned when a policy has a negative
	// minimum channel size.
	ErrNegativeChannelSize = errors.New("minimum channel size must not " +
		"be negative")

	// ErrUnknownStrategy is returned when an operator supplies a strategy
	// tag that we do not recognize.
	ErrUnknownStrategy = errors.New("unknown strategy")
)

const (
	// DefaultAdjustmentInterval is the default minimum time between two
	// automatic passes over the same policy.
	DefaultAdjustmentInterval = time.Hour

	// DefaultMaxAdjustmentPerStep is the default maximum fee rate change,
	// in ppm, that a single pass may apply.
	DefaultMaxAdjustmentPerStep = 100
)

// Policy is an operator supplied configuration that describes how the fees
// of a wallet's channels should track their liquidity.
type Policy struct {
	// ID uniquely identifies the policy.
	ID string

	// WalletID identifies the wallet (node) whose channels this policy
	// manages.
	WalletID string

	// Name is a human readable label.
	Name string

	// Enabled soft-disables a policy without deleting it.
	Enabled bool

	// Strategy selects the fee curve.
	Strategy Strategy

	// BaseFeeMin, BaseFeeDefault and BaseFeeMax bound the base fee we
	// set.
	BaseFeeMin     lnwire.MilliSatoshi
	BaseFeeDefault lnwire.MilliSatoshi
	BaseFeeMax     lnwire.MilliSatoshi

	// FeeRateMin, FeeRateDefault and FeeRateMax bound the proportional
	// fee rate we set, expressed in ppm.
	FeeRateMin     uint32
	FeeRateDefault uint32
	FeeRateMax     uint32

	// ThresholdLow and ThresholdHigh are local balance percentages below
	// and above which the channel is considered depleted or saturated.
	ThresholdLow  float64
	ThresholdHigh float64

	// AutoAdjust indicates whether the policy takes part in scheduled
	// passes. Manual triggers ignore it.
	AutoAdjust bool

	// AdjustmentInterval is the minimum time between two scheduled passes
	// over this policy.
	AdjustmentInterval time.Duration

	// MaxAdjustmentPerStep is the largest fee rate change, in ppm, that a
	// single pass applies to a channel.
	MaxAdjustmentPerStep uint32

	// MinChannelSize excludes channels with a smaller capacity.
	MinChannelSize btcutil.Amount

	// OnlyActiveChannels excludes inactive channels.
	OnlyActiveChannels bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultPolicy returns a policy populated with our default settings. The
// caller is expected to set the id, wallet and name.
func DefaultPolicy() Policy {
	return Policy{
		Enabled:              true,
		Strategy:             StrategyBalanced,
		BaseFeeMin:           0,
		BaseFeeDefault:       1000,
		BaseFeeMax:           10000,
		FeeRateMin:           1,
		FeeRateDefault:       500,
		FeeRateMax:           5000,
		ThresholdLow:         20,
		ThresholdHigh:        80,
		AutoAdjust:           true,
		AdjustmentInterval:   DefaultAdjustmentInterval,
		MaxAdjustmentPerStep: DefaultMaxAdjustmentPerStep,
		MinChannelSize:       0,
		OnlyActiveChannels:   true,
	}
}

// String returns a short description of the policy.
func (p *Policy) String() string {
	return fmt.Sprintf("policy %v (%v): strategy: %v, base fee: "+
		"%v-%v, fee rate: %v-%v ppm, thresholds: %v-%v%%", p.ID,
		p.Name, p.Strategy, p.BaseFeeMin, p.BaseFeeMax, p.FeeRateMin,
		p.FeeRateMax, p.ThresholdLow, p.ThresholdHigh)
}

// Validate checks the invariants that every stored policy must satisfy.
func (p *Policy) Validate() error {
	if p.WalletID == "" {
		return ErrNoWallet
	}

	if p.Name == "" {
		return ErrNoName
	}

	if p.BaseFeeMin > p.BaseFeeDefault || p.BaseFeeDefault > p.BaseFeeMax {
		return ErrInvalidBaseFeeBounds
	}

	if p.FeeRateMin > p.FeeRateDefault || p.FeeRateDefault > p.FeeRateMax {
		return ErrInvalidFeeRateBounds
	}

	if math.IsNaN(p.ThresholdLow) || math.IsNaN(p.ThresholdHigh) ||
		p.ThresholdLow < 0 || p.ThresholdHigh > 100 ||
		p.ThresholdLow > p.ThresholdHigh {

		return ErrInvalidThresholds
	}

	if p.AdjustmentInterval < 0 {
		return ErrNegativeInterval
	}

	if p.MinChannelSize < 0 {
		return ErrNegativeChannelSize
	}

	return nil
}

// eligible returns whether a channel passes the policy's filters.
func (p *Policy) eligible(channel Channel) bool {
	if p.OnlyActiveChannels && !channel.Active {
		return false
	}

	return channel.Capacity >= p.MinChannelSize
}

// PolicyUpdate is a partial update to a policy. Only non-nil fields are
// applied.
type PolicyUpdate struct {
	Name                 *string
	Enabled              *bool
	Strategy             *Strategy
	BaseFeeMin           *lnwire.MilliSatoshi
	BaseFeeDefault       *lnwire.MilliSatoshi
	BaseFeeMax           *lnwire.MilliSatoshi
	FeeRateMin           *uint32
	FeeRateDefault       *uint32
	FeeRateMax           *uint32
	ThresholdLow         *float64
	ThresholdHigh        *float64
	AutoAdjust           *bool
	AdjustmentInterval   *time.Duration
	MaxAdjustmentPerStep *uint32
	MinChannelSize       *btcutil.Amount
	OnlyActiveChannels   *bool
}

// IsEmpty returns true if the update does not set any field.
func (u *PolicyUpdate) IsEmpty() bool {
	return *u == PolicyUpdate{}
}

// Apply returns a copy of the policy with the update's fields set. The copy
// is validated before it is returned and its UpdatedAt is set to now.
func (u *PolicyUpdate) Apply(policy Policy, now time.Time) (Policy, error) {
	if u.Name != nil {
		policy.Name = *u.Name
	}
	if u.Enabled != nil {
		policy.Enabled = *u.Enabled
	}
	if u.Strategy != nil {
		policy.Strategy = *u.Strategy
	}
	if u.BaseFeeMin != nil {
		policy.BaseFeeMin = *u.BaseFeeMin
	}
	if u.BaseFeeDefault != nil {
		policy.BaseFeeDefault = *u.BaseFeeDefault
	}
	if u.BaseFeeMax != nil {
		policy.BaseFeeMax = *u.BaseFeeMax
	}
	if u.FeeRateMin != nil {
		policy.FeeRateMin = *u.FeeRateMin
	}
	if u.FeeRateDefault != nil {
		policy.FeeRateDefault = *u.FeeRateDefault
	}
	if u.FeeRateMax != nil {
		policy.FeeRateMax = *u.FeeRateMax
	}
	if u.ThresholdLow != nil {
		policy.ThresholdLow = *u.ThresholdLow
	}
	if u.ThresholdHigh != nil {
		policy.ThresholdHigh = *u.ThresholdHigh
	}
	if u.AutoAdjust != nil {
		policy.AutoAdjust = *u.AutoAdjust
	}
	if u.AdjustmentInterval != nil {
		policy.AdjustmentInterval = *u.AdjustmentInterval
	}
	if u.MaxAdjustmentPerStep != nil {
		policy.MaxAdjustmentPerStep = *u.MaxAdjustmentPerStep
	}
	if u.MinChannelSize != nil {
		policy.MinChannelSize = *u.MinChannelSize
	}
	if u.OnlyActiveChannels != nil {
		policy.OnlyActiveChannels = *u.OnlyActiveChannels
	}

	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}

	policy.UpdatedAt = now

	return policy, nil
}
