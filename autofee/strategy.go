package autofee

import (
	"fmt"
	"strings"
)

// Strategy selects the curve used to map a channel's liquidity ratio to a
// target fee pair.
type Strategy uint8

const (
	// StrategyUnknown is a strategy tag that we do not recognize. It is
	// evaluated as StrategyBalanced.
	StrategyUnknown Strategy = iota

	// StrategyBalanced makes moderate adjustments across five liquidity
	// bands, using the policy defaults when the channel is balanced.
	StrategyBalanced

	// StrategyAggressive charges maximum fees when local liquidity is low,
	// minimum fees when it is high and interpolates linearly between the
	// two thresholds.
	StrategyAggressive

	// StrategyConservative stays at the policy defaults inside the
	// threshold band and moves at most 15% of the fee range past it.
	StrategyConservative
)

// String returns the tag used to persist a strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyBalanced:
		return "balanced"

	case StrategyAggressive:
		return "aggressive"

	case StrategyConservative:
		return "conservative"

	default:
		return "unknown"
	}
}

// ParseStrategy maps a strategy tag to its enum value. Unknown tags map to
// StrategyUnknown rather than failing, because stored policies may carry
// tags that this version does not know about.
func ParseStrategy(tag string) Strategy {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "balanced":
		return StrategyBalanced

	case "aggressive":
		return StrategyAggressive

	case "conservative":
		return StrategyConservative

	default:
		return StrategyUnknown
	}
}

// ParseStrategyStrict is like ParseStrategy but fails on unknown tags. It is
// used where an operator supplies the tag directly.
func ParseStrategyStrict(tag string) (Strategy, error) {
	s := ParseStrategy(tag)
	if s == StrategyUnknown {
		return s, fmt.Errorf("%w: %q", ErrUnknownStrategy, tag)
	}

	return s, nil
}

// StrategyInfo describes a strategy for display.
type StrategyInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Strategies returns the catalogue of supported strategies.
func Strategies() []StrategyInfo {
	return []StrategyInfo{
		{
			ID:   StrategyBalanced.String(),
			Name: "Balanced",
			Description: "Moderate fee adjustments to maintain " +
				"balanced liquidity. Good for most nodes.",
		},
		{
			ID:   StrategyAggressive.String(),
			Name: "Aggressive",
			Description: "Large fee swings to quickly rebalance " +
				"channels. Use with caution.",
		},
		{
			ID:   StrategyConservative.String(),
			Name: "Conservative",
			Description: "Small fee adjustments around defaults. " +
				"Safest option with minimal changes.",
		},
	}
}
