package feedb

import (
	"context"
	"testing"
	"time"

	"github.com/lightninglabs/autofees/autofee"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2020, 02, 13, 0, 0, 0, 0, time.UTC)

// newTestPolicy returns a valid default policy for a wallet.
func newTestPolicy(walletID, name string) *autofee.Policy {
	policy := autofee.DefaultPolicy()
	policy.WalletID = walletID
	policy.Name = name

	return &policy
}

func newTestAdjustment(id string, policy *autofee.Policy, channel uint64,
	ts time.Time, success bool) *autofee.Adjustment {

	adjustment := &autofee.Adjustment{
		ID:             id,
		PolicyID:       policy.ID,
		WalletID:       policy.WalletID,
		ChannelID:      lnwire.NewShortChanIDFromInt(channel),
		ChannelPoint:   "txid:1",
		OldBaseFee:     1000,
		OldFeeRate:     500,
		NewBaseFee:     2000,
		NewFeeRate:     600,
		LiquidityRatio: 12.5,
		Reason:         "Low liquidity (12.5%) - fees increased",
		Success:        success,
		Timestamp:      ts,
	}
	if !success {
		adjustment.Error = "peer offline"
	}

	return adjustment
}

// testStore exercises a Store implementation. The store must be empty and
// use the test clock provided.
func testStore(t *testing.T, store Store, testClock *clock.TestClock) {
	ctx := context.Background()

	// Create two policies for one wallet and one for another, a second
	// apart so that their order is well defined.
	first := newTestPolicy("wallet-1", "first")
	require.NoError(t, store.CreatePolicy(ctx, first))
	require.NotEmpty(t, first.ID)
	require.Equal(t, testTime, first.CreatedAt)

	testClock.SetTime(testTime.Add(time.Second))
	second := newTestPolicy("wallet-1", "second")
	second.ID = "second"
	second.Enabled = false
	second.Strategy = autofee.StrategyConservative
	require.NoError(t, store.CreatePolicy(ctx, second))
	require.Equal(t, "second", second.ID)

	testClock.SetTime(testTime.Add(time.Second * 2))
	other := newTestPolicy("wallet-2", "other")
	require.NoError(t, store.CreatePolicy(ctx, other))

	// Duplicate ids and invalid policies are rejected.
	duplicate := newTestPolicy("wallet-1", "duplicate")
	duplicate.ID = second.ID
	require.Equal(t, ErrPolicyExists, store.CreatePolicy(ctx, duplicate))

	invalid := newTestPolicy("wallet-1", "invalid")
	invalid.ThresholdLow = 90
	require.Equal(
		t, autofee.ErrInvalidThresholds,
		store.CreatePolicy(ctx, invalid),
	)

	// Policies read back exactly as written.
	read, err := store.GetPolicy(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, second, read)

	_, err = store.GetPolicy(ctx, "unknown")
	require.Equal(t, autofee.ErrPolicyNotFound, err)

	policies, err := store.ListPolicies(ctx, "wallet-1")
	require.NoError(t, err)
	require.Equal(t, []*autofee.Policy{second, first}, policies)

	policies, err = store.ListPolicies(ctx, "")
	require.NoError(t, err)
	require.Len(t, policies, 3)

	enabled, err := store.ListEnabledPolicies(ctx)
	require.NoError(t, err)
	require.Equal(t, []*autofee.Policy{first, other}, enabled)

	// Update the first policy.
	testClock.SetTime(testTime.Add(time.Minute))

	var (
		name = "renamed"
		step = uint32(25)
	)
	updated, err := store.UpdatePolicy(ctx, first.ID, &autofee.PolicyUpdate{
		Name:                 &name,
		MaxAdjustmentPerStep: &step,
	})
	require.NoError(t, err)
	require.Equal(t, name, updated.Name)
	require.Equal(t, step, updated.MaxAdjustmentPerStep)
	require.Equal(t, first.CreatedAt, updated.CreatedAt)
	require.Equal(t, testTime.Add(time.Minute), updated.UpdatedAt)

	read, err = store.GetPolicy(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, updated, read)

	_, err = store.UpdatePolicy(ctx, first.ID, &autofee.PolicyUpdate{})
	require.Equal(t, ErrEmptyUpdate, err)

	_, err = store.UpdatePolicy(ctx, "unknown", &autofee.PolicyUpdate{
		Name: &name,
	})
	require.Equal(t, autofee.ErrPolicyNotFound, err)

	high := 10.0
	_, err = store.UpdatePolicy(ctx, first.ID, &autofee.PolicyUpdate{
		ThresholdHigh: &high,
	})
	require.Equal(t, autofee.ErrInvalidThresholds, err)

	// Record adjustments for two of our policies.
	adjustments := []*autofee.Adjustment{
		newTestAdjustment("a1", first, 1, testTime, true),
		newTestAdjustment(
			"a2", first, 2, testTime.Add(time.Hour), false,
		),
		newTestAdjustment(
			"a3", first, 1, testTime.Add(time.Hour*2), true,
		),
		newTestAdjustment(
			"a4", other, 1, testTime.Add(time.Hour*3), true,
		),
	}
	for _, adjustment := range adjustments {
		require.NoError(t, store.AppendAdjustment(ctx, adjustment))
	}

	orphan := newTestAdjustment("a5", first, 1, testTime, true)
	orphan.PolicyID = "unknown"
	require.Equal(
		t, autofee.ErrPolicyNotFound,
		store.AppendAdjustment(ctx, orphan),
	)

	byPolicy, err := store.AdjustmentsByPolicy(ctx, first.ID, 0)
	require.NoError(t, err)
	require.Equal(t, []*autofee.Adjustment{
		adjustments[2], adjustments[1], adjustments[0],
	}, byPolicy)

	byPolicy, err = store.AdjustmentsByPolicy(ctx, first.ID, 1)
	require.NoError(t, err)
	require.Equal(t, []*autofee.Adjustment{adjustments[2]}, byPolicy)

	byChannel, err := store.AdjustmentsByChannel(
		ctx, lnwire.NewShortChanIDFromInt(1), 0,
	)
	require.NoError(t, err)
	require.Equal(t, []*autofee.Adjustment{
		adjustments[3], adjustments[2], adjustments[0],
	}, byChannel)

	recent, err := store.RecentAdjustments(ctx, "wallet-1", 2)
	require.NoError(t, err)
	require.Equal(t, []*autofee.Adjustment{
		adjustments[2], adjustments[1],
	}, recent)

	stats, err := store.PolicyStats(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, &autofee.AdjustmentStats{
		Total:            3,
		Successful:       2,
		Failed:           1,
		AvgFeeRateChange: 100,
		First:            testTime,
		Last:             testTime.Add(time.Hour * 2),
	}, stats)

	stats, err = store.PolicyStats(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, &autofee.AdjustmentStats{}, stats)

	_, err = store.PolicyStats(ctx, "unknown")
	require.Equal(t, autofee.ErrPolicyNotFound, err)

	// Deleting a policy removes its adjustments and leaves the others in
	// place.
	require.NoError(t, store.DeletePolicy(ctx, first.ID))
	require.Equal(
		t, autofee.ErrPolicyNotFound, store.DeletePolicy(ctx, first.ID),
	)

	_, err = store.GetPolicy(ctx, first.ID)
	require.Equal(t, autofee.ErrPolicyNotFound, err)

	byPolicy, err = store.AdjustmentsByPolicy(ctx, first.ID, 0)
	require.NoError(t, err)
	require.Empty(t, byPolicy)

	byChannel, err = store.AdjustmentsByChannel(
		ctx, lnwire.NewShortChanIDFromInt(1), 0,
	)
	require.NoError(t, err)
	require.Equal(t, []*autofee.Adjustment{adjustments[3]}, byChannel)

	// Adjustments with the same timestamp are returned in reverse order
	// of recording, within and across policies.
	tied := []*autofee.Adjustment{
		newTestAdjustment("t1", second, 7, testTime, true),
		newTestAdjustment("t2", other, 7, testTime, true),
		newTestAdjustment("t3", second, 7, testTime, true),
	}
	for _, adjustment := range tied {
		require.NoError(t, store.AppendAdjustment(ctx, adjustment))
	}

	byChannel, err = store.AdjustmentsByChannel(
		ctx, lnwire.NewShortChanIDFromInt(7), 0,
	)
	require.NoError(t, err)
	require.Equal(t, []*autofee.Adjustment{
		tied[2], tied[1], tied[0],
	}, byChannel)

	byPolicy, err = store.AdjustmentsByPolicy(ctx, second.ID, 0)
	require.NoError(t, err)
	require.Equal(t, []*autofee.Adjustment{tied[2], tied[0]}, byPolicy)
}
