package feedb

import (
	"context"
	"errors"

	"github.com/lightninglabs/autofees/autofee"
	"github.com/lightningnetwork/lnd/lnwire"
)

var (
	// ErrPolicyExists is returned when we try to create a policy with an
	// id that is already in use.
	ErrPolicyExists = errors.New("policy already exists")

	// ErrEmptyUpdate is returned when a policy update does not set any
	// fields.
	ErrEmptyUpdate = errors.New("policy update is empty")
)

const (
	// DefaultHistoryLimit is the number of adjustments returned by history
	// queries when the caller does not set a limit.
	DefaultHistoryLimit = 100
)

// Store is the full set of operations our policy and adjustment persistence
// offers. Lookups of unknown policies fail with autofee.ErrPolicyNotFound.
type Store interface {
	autofee.Store

	// CreatePolicy validates and stores a new policy. If the policy has no
	// id, one is assigned. Its creation and update times are set.
	CreatePolicy(ctx context.Context, policy *autofee.Policy) error

	// ListPolicies returns the policies of a wallet, newest first. An
	// empty wallet id lists every policy.
	ListPolicies(ctx context.Context, walletID string) ([]*autofee.Policy,
		error)

	// UpdatePolicy applies a partial update to a policy and returns the
	// result.
	UpdatePolicy(ctx context.Context, id string,
		update *autofee.PolicyUpdate) (*autofee.Policy, error)

	// DeletePolicy removes a policy together with its adjustments.
	DeletePolicy(ctx context.Context, id string) error

	// AdjustmentsByPolicy returns a policy's adjustments, newest first.
	AdjustmentsByPolicy(ctx context.Context, policyID string,
		limit int) ([]*autofee.Adjustment, error)

	// AdjustmentsByChannel returns a channel's adjustments, newest first.
	AdjustmentsByChannel(ctx context.Context,
		channel lnwire.ShortChannelID, limit int) ([]*autofee.Adjustment,
		error)

	// RecentAdjustments returns the adjustments made for a wallet's
	// policies, newest first.
	RecentAdjustments(ctx context.Context, walletID string,
		limit int) ([]*autofee.Adjustment, error)

	// PolicyStats summarizes a policy's adjustment history.
	PolicyStats(ctx context.Context, policyID string) (
		*autofee.AdjustmentStats, error)

	// Close releases the store's resources.
	Close() error
}

// historyLimit returns the limit to apply to a history query.
func historyLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}

	return limit
}
