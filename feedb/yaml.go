package feedb

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/btcsuite/btcutil"
	"github.com/lightninglabs/autofees/autofee"
	"github.com/lightningnetwork/lnd/lnwire"
	"gopkg.in/yaml.v3"
)

// policyFile is the document format we import and export policies in.
type policyFile struct {
	Policies []*policyYAML `yaml:"policies"`
}

// policyYAML is the file representation of a policy. Fields that are absent
// from a document take the values of autofee.DefaultPolicy.
type policyYAML struct {
	ID                   string  `yaml:"id,omitempty"`
	WalletID             string  `yaml:"wallet_id"`
	Name                 string  `yaml:"name"`
	Enabled              bool    `yaml:"enabled"`
	Strategy             string  `yaml:"strategy"`
	BaseFeeMinMsat       uint64  `yaml:"base_fee_min_msat"`
	BaseFeeDefaultMsat   uint64  `yaml:"base_fee_default_msat"`
	BaseFeeMaxMsat       uint64  `yaml:"base_fee_max_msat"`
	FeeRateMinPPM        uint32  `yaml:"fee_rate_min_ppm"`
	FeeRateDefaultPPM    uint32  `yaml:"fee_rate_default_ppm"`
	FeeRateMaxPPM        uint32  `yaml:"fee_rate_max_ppm"`
	ThresholdLow         float64 `yaml:"liquidity_threshold_low"`
	ThresholdHigh        float64 `yaml:"liquidity_threshold_high"`
	AutoAdjust           bool    `yaml:"auto_adjust"`
	AdjustmentInterval   string  `yaml:"adjustment_interval"`
	MaxAdjustmentPerStep uint32  `yaml:"max_adjustment_per_step_ppm"`
	MinChannelSizeSat    int64   `yaml:"min_channel_size_sat"`
	OnlyActiveChannels   bool    `yaml:"only_active_channels"`
}

func newPolicyYAML(policy *autofee.Policy) *policyYAML {
	return &policyYAML{
		ID:                   policy.ID,
		WalletID:             policy.WalletID,
		Name:                 policy.Name,
		Enabled:              policy.Enabled,
		Strategy:             policy.Strategy.String(),
		BaseFeeMinMsat:       uint64(policy.BaseFeeMin),
		BaseFeeDefaultMsat:   uint64(policy.BaseFeeDefault),
		BaseFeeMaxMsat:       uint64(policy.BaseFeeMax),
		FeeRateMinPPM:        policy.FeeRateMin,
		FeeRateDefaultPPM:    policy.FeeRateDefault,
		FeeRateMaxPPM:        policy.FeeRateMax,
		ThresholdLow:         policy.ThresholdLow,
		ThresholdHigh:        policy.ThresholdHigh,
		AutoAdjust:           policy.AutoAdjust,
		AdjustmentInterval:   policy.AdjustmentInterval.String(),
		MaxAdjustmentPerStep: policy.MaxAdjustmentPerStep,
		MinChannelSizeSat:    int64(policy.MinChannelSize),
		OnlyActiveChannels:   policy.OnlyActiveChannels,
	}
}

// UnmarshalYAML decodes a policy on top of our defaults.
func (p *policyYAML) UnmarshalYAML(value *yaml.Node) error {
	type plain policyYAML

	defaults := autofee.DefaultPolicy()
	decoded := plain(*newPolicyYAML(&defaults))
	if err := value.Decode(&decoded); err != nil {
		return err
	}

	*p = policyYAML(decoded)
	return nil
}

func (p *policyYAML) policy() (*autofee.Policy, error) {
	strategy, err := autofee.ParseStrategyStrict(p.Strategy)
	if err != nil {
		return nil, err
	}

	interval, err := time.ParseDuration(p.AdjustmentInterval)
	if err != nil {
		return nil, fmt.Errorf("adjustment interval: %w", err)
	}

	policy := &autofee.Policy{
		ID:                   p.ID,
		WalletID:             p.WalletID,
		Name:                 p.Name,
		Enabled:              p.Enabled,
		Strategy:             strategy,
		BaseFeeMin:           lnwire.MilliSatoshi(p.BaseFeeMinMsat),
		BaseFeeDefault:       lnwire.MilliSatoshi(p.BaseFeeDefaultMsat),
		BaseFeeMax:           lnwire.MilliSatoshi(p.BaseFeeMaxMsat),
		FeeRateMin:           p.FeeRateMinPPM,
		FeeRateDefault:       p.FeeRateDefaultPPM,
		FeeRateMax:           p.FeeRateMaxPPM,
		ThresholdLow:         p.ThresholdLow,
		ThresholdHigh:        p.ThresholdHigh,
		AutoAdjust:           p.AutoAdjust,
		AdjustmentInterval:   interval,
		MaxAdjustmentPerStep: p.MaxAdjustmentPerStep,
		MinChannelSize:       btcutil.Amount(p.MinChannelSizeSat),
		OnlyActiveChannels:   p.OnlyActiveChannels,
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}

	return policy, nil
}

// ReadPolicies decodes and validates a YAML policy document.
func ReadPolicies(r io.Reader) ([]*autofee.Policy, error) {
	var file policyFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode policies: %w", err)
	}

	policies := make([]*autofee.Policy, 0, len(file.Policies))
	for i, p := range file.Policies {
		policy, err := p.policy()
		if err != nil {
			return nil, fmt.Errorf("policy %v (%v): %w", i, p.Name,
				err)
		}

		policies = append(policies, policy)
	}

	return policies, nil
}

// WritePolicies encodes policies as a YAML document that ReadPolicies
// accepts.
func WritePolicies(w io.Writer, policies []*autofee.Policy) error {
	file := policyFile{
		Policies: make([]*policyYAML, 0, len(policies)),
	}
	for _, policy := range policies {
		file.Policies = append(file.Policies, newPolicyYAML(policy))
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(&file); err != nil {
		return err
	}

	return encoder.Close()
}

// ImportPolicies reads a YAML policy document and creates each policy in the
// store. Policies are created in document order and we stop at the first
// failure, returning the policies created so far.
func ImportPolicies(ctx context.Context, store Store,
	r io.Reader) ([]*autofee.Policy, error) {

	policies, err := ReadPolicies(r)
	if err != nil {
		return nil, err
	}

	created := make([]*autofee.Policy, 0, len(policies))
	for _, policy := range policies {
		if err := store.CreatePolicy(ctx, policy); err != nil {
			return created, fmt.Errorf("create %v: %w", policy.Name,
				err)
		}

		log.Infof("Imported policy %v", policy)
		created = append(created, policy)
	}

	return created, nil
}
