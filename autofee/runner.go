package autofee

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrUpdateTimeout is recorded when the node does not answer a fee update
// within the configured timeout.
var ErrUpdateTimeout = errors.New("fee update timed out")

// Runner applies policies to channels. It holds no state between passes, so
// a single runner may process several policies at once.
type Runner struct {
	cfg *Config
}

// NewRunner creates a runner.
func NewRunner(cfg *Config) *Runner {
	return &Runner{
		cfg: cfg,
	}
}

// RunOnce processes every enabled policy that has automatic adjustment
// switched on. Failures are reported in the returned stats, never returned,
// so that one policy cannot prevent the others from running.
func (r *Runner) RunOnce(ctx context.Context) *RunStats {
	return r.run(ctx, func(*Policy) bool {
		return true
	})
}

// run processes the enabled, auto adjusting policies that the filter accepts.
func (r *Runner) run(ctx context.Context, due func(*Policy) bool) *RunStats {
	start := r.cfg.Clock.Now()
	stats := &RunStats{
		Start: start,
	}

	policies, err := r.cfg.Store.ListEnabledPolicies(ctx)
	if err != nil {
		log.Errorf("could not list policies: %v", err)
		stats.Error = err.Error()
		stats.Duration = r.cfg.Clock.Now().Sub(start)

		return stats
	}

	var selected []*Policy
	for _, policy := range policies {
		if !policy.Enabled || !policy.AutoAdjust {
			continue
		}

		if !due(policy) {
			continue
		}

		selected = append(selected, policy)
	}

	log.Debugf("starting fee adjustment run with %v policies",
		len(selected))

	results := make([]*PolicyStats, len(selected))

	var group errgroup.Group
	group.SetLimit(r.cfg.policyConcurrency())

	for i, policy := range selected {
		i, policy := i, policy

		group.Go(func() error {
			results[i] = r.ProcessPolicy(ctx, policy)
			return nil
		})
	}

	// Our workers never fail, so the group error is always nil.
	_ = group.Wait()

	for _, result := range results {
		stats.add(result)
	}

	stats.Duration = r.cfg.Clock.Now().Sub(start)

	log.Infof("fee adjustment run completed: %v", stats)

	return stats
}

// ProcessPolicy runs a single pass over the channels of a policy's wallet.
// Update failures are recorded per channel and processing continues. Any
// other failure ends the pass for this policy and is reported in its stats.
func (r *Runner) ProcessPolicy(ctx context.Context,
	policy *Policy) *PolicyStats {

	stats := newPolicyStats(policy)

	channels, err := r.cfg.ListChannels(ctx, policy.WalletID)
	if err != nil {
		log.Errorf("policy %v: could not list channels: %v",
			policy.ID, err)
		stats.addError(err)

		return stats
	}

	for _, channel := range channels {
		if err := ctx.Err(); err != nil {
			stats.addError(err)
			return stats
		}

		if !policy.eligible(channel) {
			continue
		}

		stats.ChannelsProcessed++

		adjustment, err := r.processChannel(ctx, policy, channel)
		if err != nil {
			log.Errorf("policy %v: %v", policy.ID, err)
			stats.addError(err)

			return stats
		}

		// No update was needed.
		if adjustment == nil {
			continue
		}

		if adjustment.Success {
			stats.AdjustmentsMade++

			log.Infof("adjusted fees for channel %v: %v -> %v ppm. "+
				"Reason: %v", channel.ChannelID,
				adjustment.OldFeeRate, adjustment.NewFeeRate,
				adjustment.Reason)

			continue
		}

		stats.AdjustmentsFailed++
		stats.Errors = append(stats.Errors, fmt.Sprintf(
			"channel %v: %v", channel.ChannelID, adjustment.Error,
		))

		log.Errorf("failed to adjust fees for channel %v: %v",
			channel.ChannelID, adjustment.Error)
	}

	return stats
}

// processChannel decides whether a channel's fees need to change, applies
// the change and records it. It returns a nil adjustment if the change is too
// small to be worth an update. An error is only returned if we fail to record
// an attempted update.
func (r *Runner) processChannel(ctx context.Context, policy *Policy,
	channel Channel) (*Adjustment, error) {

	proposal := Propose(policy, channel)
	if !proposal.Adjust {
		log.Tracef("channel %v: change to %v + %v ppm too small",
			channel.ChannelID, proposal.BaseFee, proposal.FeeRate)

		return nil, nil
	}

	update := newFeeUpdate(
		policy.WalletID, channel, proposal.BaseFee, proposal.FeeRate,
	)
	updateErr := r.setFees(ctx, update)

	adjustment := newAdjustment(
		policy, channel, proposal, updateErr, r.cfg.Clock.Now(),
	)

	if err := r.cfg.Store.AppendAdjustment(ctx, adjustment); err != nil {
		return nil, fmt.Errorf("record adjustment for channel %v: %w",
			channel.ChannelID, err)
	}

	return adjustment, nil
}

// setFees delivers a fee update to the node, giving up once our update
// timeout elapses. A timeout is reported like any other update failure.
func (r *Runner) setFees(ctx context.Context, update FeeUpdate) error {
	if r.cfg.UpdateTimeout <= 0 {
		return r.cfg.SetFees(ctx, update)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.UpdateTimeout)
	defer cancel()

	// Buffer the result so that a late answer does not block the sender.
	result := make(chan error, 1)
	go func() {
		result <- r.cfg.SetFees(ctx, update)
	}()

	select {
	case err := <-result:
		return err

	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %v", ErrUpdateTimeout,
				r.cfg.UpdateTimeout)
		}

		return ctx.Err()
	}
}
