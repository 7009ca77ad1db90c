package autofee

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcutil"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2020, 02, 13, 0, 0, 0, 0, time.UTC)

// mockStore is an in-memory store for tests.
type mockStore struct {
	policies    []*Policy
	listErr     error
	appendErr   error
	adjustments []*Adjustment
	mu          sync.Mutex
}

func (s *mockStore) ListEnabledPolicies(_ context.Context) ([]*Policy,
	error) {

	if s.listErr != nil {
		return nil, s.listErr
	}

	var enabled []*Policy
	for _, policy := range s.policies {
		if policy.Enabled {
			enabled = append(enabled, policy)
		}
	}

	return enabled, nil
}

func (s *mockStore) GetPolicy(_ context.Context, id string) (*Policy, error) {
	for _, policy := range s.policies {
		if policy.ID == id {
			return policy, nil
		}
	}

	return nil, ErrPolicyNotFound
}

func (s *mockStore) AppendAdjustment(_ context.Context,
	adjustment *Adjustment) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appendErr != nil {
		return s.appendErr
	}

	s.adjustments = append(s.adjustments, adjustment)
	return nil
}

// mockNode serves channels per wallet and records fee updates.
type mockNode struct {
	channels map[string][]Channel
	listErr  error

	// updateErrs maps channel ids to the error their update returns.
	updateErrs map[lnwire.ShortChannelID]error

	// block makes fee updates wait for context cancellation.
	block bool

	updates []FeeUpdate
	mu      sync.Mutex
}

func (n *mockNode) listChannels(_ context.Context,
	walletID string) ([]Channel, error) {

	if n.listErr != nil {
		return nil, n.listErr
	}

	return n.channels[walletID], nil
}

func (n *mockNode) setFees(ctx context.Context, update FeeUpdate) error {
	if n.block {
		<-ctx.Done()
		return ctx.Err()
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.updates = append(n.updates, update)
	return n.updateErrs[update.ChannelID]
}

func newTestConfig(store *mockStore, node *mockNode) *Config {
	return &Config{
		Store:        store,
		ListChannels: node.listChannels,
		SetFees:      node.setFees,
		Clock:        clock.NewTestClock(testTime),
	}
}

// newTestChannel creates an active channel with 1000 sat capacity and our
// default fees.
func newTestChannel(id uint64, local int64) Channel {
	return Channel{
		ChannelID:     lnwire.NewShortChanIDFromInt(id),
		ChannelPoint:  "txid:0",
		Capacity:      1000,
		LocalBalance:  btcutil.Amount(local),
		RemoteBalance: btcutil.Amount(1000 - local),
		BaseFee:       1000,
		FeeRate:       500,
		TimeLockDelta: 40,
		Active:        true,
	}
}

// TestProcessPolicy tests a single pass over a policy's channels.
func TestProcessPolicy(t *testing.T) {
	chan1 := lnwire.NewShortChanIDFromInt(1)

	depleted := newTestChannel(1, 100)

	inactive := newTestChannel(2, 100)
	inactive.Active = false

	balanced := newTestChannel(3, 500)

	small := newTestChannel(4, 100)
	small.Capacity = 10

	policy := newTestPolicy(StrategyAggressive)
	policy.MinChannelSize = 100

	store := &mockStore{}
	node := &mockNode{
		channels: map[string][]Channel{
			policy.WalletID: {depleted, inactive, balanced, small},
		},
	}

	runner := NewRunner(newTestConfig(store, node))
	stats := runner.ProcessPolicy(context.Background(), policy)

	// The inactive and small channels are filtered out.
	require.Equal(t, &PolicyStats{
		PolicyID:          policy.ID,
		PolicyName:        policy.Name,
		ChannelsProcessed: 2,
		AdjustmentsMade:   2,
	}, stats)

	// Our depleted channel targets the maximum fees, but its fee rate may
	// only rise by one step. Our balanced channel sits at the midpoint.
	require.Equal(t, []FeeUpdate{
		{
			WalletID:      policy.WalletID,
			ChannelID:     chan1,
			ChannelPoint:  "txid:0",
			BaseFee:       10000,
			FeeRate:       600,
			TimeLockDelta: 40,
		},
		{
			WalletID:      policy.WalletID,
			ChannelID:     lnwire.NewShortChanIDFromInt(3),
			ChannelPoint:  "txid:0",
			BaseFee:       5000,
			FeeRate:       600,
			TimeLockDelta: 40,
		},
	}, node.updates)

	require.Len(t, store.adjustments, 2)

	adjustment := store.adjustments[0]
	require.NotEmpty(t, adjustment.ID)
	require.Equal(t, policy.ID, adjustment.PolicyID)
	require.Equal(t, chan1, adjustment.ChannelID)
	require.Equal(t, lnwire.MilliSatoshi(1000), adjustment.OldBaseFee)
	require.Equal(t, uint32(500), adjustment.OldFeeRate)
	require.Equal(t, lnwire.MilliSatoshi(10000), adjustment.NewBaseFee)
	require.Equal(t, uint32(600), adjustment.NewFeeRate)
	require.Equal(t, 10.0, adjustment.LiquidityRatio)
	require.Equal(t, "Low liquidity (10.0%) - fees increased to "+
		"discourage outbound", adjustment.Reason)
	require.True(t, adjustment.Success)
	require.Empty(t, adjustment.Error)
	require.Equal(t, testTime, adjustment.Timestamp)
}

// TestProcessPolicyFailures tests that update failures are recorded and do
// not stop processing, while failures to record end the pass.
func TestProcessPolicyFailures(t *testing.T) {
	var (
		chan1 = lnwire.NewShortChanIDFromInt(1)
		chan2 = lnwire.NewShortChanIDFromInt(2)

		errUpdate = errors.New("peer offline")
		errAppend = errors.New("disk full")
	)

	policy := newTestPolicy(StrategyAggressive)

	newNode := func() *mockNode {
		return &mockNode{
			channels: map[string][]Channel{
				policy.WalletID: {
					newTestChannel(1, 100),
					newTestChannel(2, 100),
				},
			},
			updateErrs: map[lnwire.ShortChannelID]error{
				chan1: errUpdate,
			},
		}
	}

	t.Run("update failure", func(t *testing.T) {
		store := &mockStore{}
		node := newNode()

		runner := NewRunner(newTestConfig(store, node))
		stats := runner.ProcessPolicy(context.Background(), policy)

		require.Equal(t, 2, stats.ChannelsProcessed)
		require.Equal(t, 1, stats.AdjustmentsMade)
		require.Equal(t, 1, stats.AdjustmentsFailed)
		require.Equal(t, []string{
			"channel 0:0:1: peer offline",
		}, stats.Errors)

		require.Len(t, store.adjustments, 2)
		require.False(t, store.adjustments[0].Success)
		require.Equal(t, "peer offline", store.adjustments[0].Error)
		require.True(t, store.adjustments[1].Success)
		require.Equal(t, chan2, store.adjustments[1].ChannelID)
	})

	t.Run("record failure", func(t *testing.T) {
		store := &mockStore{
			appendErr: errAppend,
		}
		node := newNode()

		runner := NewRunner(newTestConfig(store, node))
		stats := runner.ProcessPolicy(context.Background(), policy)

		// We stop after the first channel.
		require.Equal(t, 1, stats.ChannelsProcessed)
		require.Len(t, stats.Errors, 1)
		require.Contains(t, stats.Errors[0], errAppend.Error())
		require.Len(t, node.updates, 1)
	})

	t.Run("list failure", func(t *testing.T) {
		store := &mockStore{}
		node := newNode()
		node.listErr = errors.New("node unreachable")

		runner := NewRunner(newTestConfig(store, node))
		stats := runner.ProcessPolicy(context.Background(), policy)

		require.Equal(t, 0, stats.ChannelsProcessed)
		require.Equal(t, []string{"node unreachable"}, stats.Errors)
		require.Empty(t, store.adjustments)
	})
}

// TestProcessPolicyGate tests that changes below our gate thresholds are
// neither applied nor recorded.
func TestProcessPolicyGate(t *testing.T) {
	policy := newTestPolicy(StrategyBalanced)

	// A balanced channel already at the policy defaults.
	store := &mockStore{}
	node := &mockNode{
		channels: map[string][]Channel{
			policy.WalletID: {newTestChannel(1, 500)},
		},
	}

	runner := NewRunner(newTestConfig(store, node))
	stats := runner.ProcessPolicy(context.Background(), policy)

	require.Equal(t, 1, stats.ChannelsProcessed)
	require.Equal(t, 0, stats.AdjustmentsMade)
	require.Empty(t, node.updates)
	require.Empty(t, store.adjustments)
}

// TestUpdateTimeout tests that a fee update that outlives our timeout is
// recorded as a failure.
func TestUpdateTimeout(t *testing.T) {
	policy := newTestPolicy(StrategyAggressive)

	store := &mockStore{}
	node := &mockNode{
		channels: map[string][]Channel{
			policy.WalletID: {newTestChannel(1, 100)},
		},
		block: true,
	}

	cfg := newTestConfig(store, node)
	cfg.UpdateTimeout = 10 * time.Millisecond

	runner := NewRunner(cfg)
	stats := runner.ProcessPolicy(context.Background(), policy)

	require.Equal(t, 1, stats.AdjustmentsFailed)
	require.Len(t, store.adjustments, 1)
	require.False(t, store.adjustments[0].Success)
	require.Contains(t, store.adjustments[0].Error,
		ErrUpdateTimeout.Error())
}

// TestRunOnce tests a run over all of our policies.
func TestRunOnce(t *testing.T) {
	aggressive := newTestPolicy(StrategyAggressive)

	disabled := newTestPolicy(StrategyAggressive)
	disabled.ID = "disabled"
	disabled.Enabled = false

	manual := newTestPolicy(StrategyAggressive)
	manual.ID = "manual"
	manual.AutoAdjust = false

	broken := newTestPolicy(StrategyAggressive)
	broken.ID = "broken"
	broken.WalletID = "broken-wallet"

	store := &mockStore{
		policies: []*Policy{aggressive, disabled, manual, broken},
	}
	node := &mockNode{
		channels: map[string][]Channel{
			aggressive.WalletID: {newTestChannel(1, 100)},
		},
	}

	// The broken wallet fails to list its channels, which must not affect
	// the other policy.
	listChannels := func(ctx context.Context, walletID string) ([]Channel,
		error) {

		if walletID == broken.WalletID {
			return nil, errors.New("unknown wallet")
		}

		return node.listChannels(ctx, walletID)
	}

	for _, concurrency := range []int{0, 1, 4} {
		store.adjustments = nil
		node.updates = nil

		cfg := newTestConfig(store, node)
		cfg.ListChannels = listChannels
		cfg.PolicyConcurrency = concurrency

		stats := NewRunner(cfg).RunOnce(context.Background())

		require.Empty(t, stats.Error)
		require.Equal(t, 2, stats.PoliciesProcessed)
		require.Equal(t, 1, stats.ChannelsProcessed)
		require.Equal(t, 1, stats.AdjustmentsMade)
		require.Equal(t, 0, stats.AdjustmentsFailed)
		require.Equal(t, testTime, stats.Start)

		// Results are reported in listing order.
		require.Len(t, stats.Policies, 2)
		require.Equal(t, aggressive.ID, stats.Policies[0].PolicyID)
		require.Equal(t, broken.ID, stats.Policies[1].PolicyID)
		require.Equal(t, []string{"unknown wallet"},
			stats.Policies[1].Errors)

		require.Len(t, store.adjustments, 1)
	}

	// A store failure is reported as a run error.
	store.listErr = errors.New("store closed")
	stats := NewRunner(newTestConfig(store, node)).RunOnce(
		context.Background(),
	)
	require.Equal(t, "store closed", stats.Error)
	require.Equal(t, 0, stats.PoliciesProcessed)
}
