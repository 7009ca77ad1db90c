package main

import (
	"context"
	"fmt"

	"github.com/lightninglabs/autofees/autofee"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/urfave/cli"
)

var channelsCommand = cli.Command{
	Name:  "channels",
	Usage: "show our channels and their liquidity",
	Description: "Displays the channels of the connected node with " +
		"their balances, liquidity ratio and the fees we currently " +
		"advertise.",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "raw",
			Usage: "display lnd's channel listing unmodified",
		},
	},
	Action: listChannels,
}

type channelResp struct {
	ChannelID      uint64  `json:"chan_id"`
	ChannelPoint   string  `json:"channel_point"`
	PeerPubkey     string  `json:"remote_pubkey"`
	Capacity       int64   `json:"capacity"`
	LocalBalance   int64   `json:"local_balance"`
	RemoteBalance  int64   `json:"remote_balance"`
	LiquidityRatio float64 `json:"liquidity_ratio"`
	BaseFeeMsat    uint64  `json:"base_fee_msat"`
	FeeRatePPM     uint32  `json:"fee_rate_ppm"`
	TimeLockDelta  uint32  `json:"time_lock_delta"`
	Active         bool    `json:"active"`
}

func listChannels(ctx *cli.Context) error {
	node, cleanup, err := getLnd(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if ctx.Bool("raw") {
		resp, err := node.lnd.ListChannels(
			context.Background(), &lnrpc.ListChannelsRequest{},
		)
		if err != nil {
			return err
		}

		printRespJSON(resp)
		return nil
	}

	channels, err := node.client.ListChannels(context.Background())
	if err != nil {
		return err
	}

	resps := make([]*channelResp, 0, len(channels))
	for _, channel := range channels {
		resps = append(resps, &channelResp{
			ChannelID:      channel.ChannelID.ToUint64(),
			ChannelPoint:   channel.ChannelPoint,
			PeerPubkey:     channel.PeerPubkey,
			Capacity:       int64(channel.Capacity),
			LocalBalance:   int64(channel.LocalBalance),
			RemoteBalance:  int64(channel.RemoteBalance),
			LiquidityRatio: channel.LiquidityRatio(),
			BaseFeeMsat:    uint64(channel.BaseFee),
			FeeRatePPM:     channel.FeeRate,
			TimeLockDelta:  channel.TimeLockDelta,
			Active:         channel.Active,
		})
	}

	printJSON(resps)

	return nil
}

var previewCommand = cli.Command{
	Name:  "preview",
	Usage: "show the fees a policy would set",
	Description: "Displays the fees that a policy would set for each " +
		"of its channels, without updating them. Channels that are " +
		"marked adjust false are below our change threshold and " +
		"would be left as they are.",
	ArgsUsage: "policy_id",
	Action:    preview,
}

func preview(ctx *cli.Context) error {
	id, err := policyIDArg(ctx)
	if err != nil {
		return err
	}

	store, cleanupStore, err := getStore(ctx)
	if err != nil {
		return err
	}
	defer cleanupStore()

	policy, err := store.GetPolicy(context.Background(), id)
	if err != nil {
		return err
	}

	node, cleanup, err := getLnd(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if node.walletID != policy.WalletID {
		return fmt.Errorf("policy %v belongs to wallet %v, connected "+
			"to %v", policy.ID, policy.WalletID, node.walletID)
	}

	channels, err := node.client.ListChannels(context.Background())
	if err != nil {
		return err
	}

	proposals := autofee.ProposeAll(policy, channels)

	resps := make([]*proposalResp, 0, len(proposals))
	for _, proposal := range proposals {
		resps = append(resps, newProposalResp(proposal))
	}

	printJSON(resps)

	return nil
}

var triggerCommand = cli.Command{
	Name:  "trigger",
	Usage: "run a policy now",
	Description: "Runs a single policy against the connected node, " +
		"regardless of its schedule or auto adjust setting. The " +
		"policy must be enabled.",
	ArgsUsage: "policy_id",
	Action:    trigger,
}

func trigger(ctx *cli.Context) error {
	id, err := policyIDArg(ctx)
	if err != nil {
		return err
	}

	store, cleanupStore, err := getStore(ctx)
	if err != nil {
		return err
	}
	defer cleanupStore()

	node, cleanup, err := getLnd(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	manager := getManager(store, node, ctx.GlobalDuration("updatetimeout"))

	stats, err := manager.TriggerPolicy(context.Background(), id)
	if err != nil {
		return err
	}

	printJSON(newPolicyStatsResp(stats))

	return nil
}

var runCommand = cli.Command{
	Name:  "run",
	Usage: "run every auto adjust policy now",
	Description: "Runs all enabled auto adjust policies of the " +
		"connected wallet once, ignoring their adjustment intervals. " +
		"Use this when the daemon is not running, or query the " +
		"daemon's debug endpoint when it is.",
	Action: run,
}

func run(ctx *cli.Context) error {
	store, cleanupStore, err := getStore(ctx)
	if err != nil {
		return err
	}
	defer cleanupStore()

	node, cleanup, err := getLnd(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	manager := getManager(store, node, ctx.GlobalDuration("updatetimeout"))

	stats := manager.ForceRunWallet(context.Background(), node.walletID)
	printJSON(newRunStatsResp(stats))

	if stats.Error != "" {
		return fmt.Errorf("run failed: %v", stats.Error)
	}

	return nil
}
