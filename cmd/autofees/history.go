package main

import (
	"context"
	"errors"

	"github.com/lightninglabs/autofees/autofee"
	"github.com/lightninglabs/autofees/feedb"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/urfave/cli"
)

var historyCommand = cli.Command{
	Name:  "history",
	Usage: "show fee adjustment history",
	Description: "Displays recorded fee adjustments, newest first. " +
		"Adjustments are listed by policy, by channel, or for the " +
		"connected wallet when neither is set.",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "policy",
			Usage: "only show adjustments made by this policy",
		},
		cli.Uint64Flag{
			Name:  "chan_id",
			Usage: "only show adjustments for this channel",
		},
		cli.IntFlag{
			Name:  "limit",
			Usage: "the maximum number of adjustments to show",
			Value: feedb.DefaultHistoryLimit,
		},
	},
	Action: history,
}

func history(ctx *cli.Context) error {
	if ctx.IsSet("policy") && ctx.IsSet("chan_id") {
		return errors.New("policy and chan_id cannot both be set")
	}

	var walletID string
	if !ctx.IsSet("policy") && !ctx.IsSet("chan_id") {
		var err error
		walletID, err = getWalletID(ctx)
		if err != nil {
			return err
		}
	}

	store, cleanup, err := getStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	var (
		adjustments []*autofee.Adjustment
		limit       = ctx.Int("limit")
		rpcCtx      = context.Background()
	)

	switch {
	case ctx.IsSet("policy"):
		adjustments, err = store.AdjustmentsByPolicy(
			rpcCtx, ctx.String("policy"), limit,
		)

	case ctx.IsSet("chan_id"):
		adjustments, err = store.AdjustmentsByChannel(
			rpcCtx, lnwire.NewShortChanIDFromInt(
				ctx.Uint64("chan_id"),
			), limit,
		)

	default:
		adjustments, err = store.RecentAdjustments(
			rpcCtx, walletID, limit,
		)
	}
	if err != nil {
		return err
	}

	printJSON(newAdjustmentResps(adjustments))

	return nil
}

var statsCommand = cli.Command{
	Name:      "stats",
	Usage:     "summarize a policy's adjustments",
	ArgsUsage: "policy_id",
	Action:    stats,
}

func stats(ctx *cli.Context) error {
	id, err := policyIDArg(ctx)
	if err != nil {
		return err
	}

	store, cleanup, err := getStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := store.PolicyStats(context.Background(), id)
	if err != nil {
		return err
	}

	printJSON(&statsResp{
		PolicyID:         id,
		Total:            summary.Total,
		Successful:       summary.Successful,
		Failed:           summary.Failed,
		AvgFeeRateChange: summary.AvgFeeRateChange,
		First:            formatTime(summary.First),
		Last:             formatTime(summary.Last),
	})

	return nil
}

var strategiesCommand = cli.Command{
	Name:  "strategies",
	Usage: "list the available fee strategies",
	Action: func(_ *cli.Context) error {
		printJSON(autofee.Strategies())
		return nil
	},
}

var defaultsCommand = cli.Command{
	Name:  "defaults",
	Usage: "show the settings that new policies start from",
	Action: func(_ *cli.Context) error {
		policy := autofee.DefaultPolicy()
		printJSON(newPolicyResp(&policy))
		return nil
	},
}
