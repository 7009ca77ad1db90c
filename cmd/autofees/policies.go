package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/btcsuite/btcutil"
	"github.com/lightninglabs/autofees/autofee"
	"github.com/lightninglabs/autofees/feedb"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/urfave/cli"
)

var errPolicyIDRequired = errors.New("policy id required")

// policyFlags are the policy fields that can be set on creation or update.
var policyFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "name",
		Usage: "a human readable label for the policy",
	},
	cli.StringFlag{
		Name:  "strategy",
		Usage: "the fee strategy: balanced, aggressive or conservative",
	},
	cli.Uint64Flag{
		Name:  "base_fee_min",
		Usage: "the minimum base fee, in msat",
	},
	cli.Uint64Flag{
		Name:  "base_fee_default",
		Usage: "the base fee for balanced channels, in msat",
	},
	cli.Uint64Flag{
		Name:  "base_fee_max",
		Usage: "the maximum base fee, in msat",
	},
	cli.Uint64Flag{
		Name:  "fee_rate_min",
		Usage: "the minimum fee rate, in ppm",
	},
	cli.Uint64Flag{
		Name:  "fee_rate_default",
		Usage: "the fee rate for balanced channels, in ppm",
	},
	cli.Uint64Flag{
		Name:  "fee_rate_max",
		Usage: "the maximum fee rate, in ppm",
	},
	cli.Float64Flag{
		Name: "threshold_low",
		Usage: "the local balance percentage below which a channel " +
			"is considered depleted",
	},
	cli.Float64Flag{
		Name: "threshold_high",
		Usage: "the local balance percentage above which a channel " +
			"is considered saturated",
	},
	cli.BoolFlag{
		Name: "auto_adjust",
		Usage: "whether the daemon adjusts fees on schedule, set " +
			"--auto_adjust=false to only allow manual triggers",
	},
	cli.DurationFlag{
		Name:  "interval",
		Usage: "the minimum time between scheduled adjustments",
	},
	cli.Uint64Flag{
		Name:  "max_step",
		Usage: "the largest fee rate change per adjustment, in ppm",
	},
	cli.Int64Flag{
		Name:  "min_channel_size",
		Usage: "exclude channels smaller than this capacity, in sat",
	},
	cli.BoolFlag{
		Name:  "only_active",
		Usage: "only adjust channels that are currently active",
	},
}

var policyCommands = cli.Command{
	Name:      "policies",
	ShortName: "p",
	Usage:     "manage fee policies",
	Subcommands: []cli.Command{
		addPolicyCommand,
		listPoliciesCommand,
		getPolicyCommand,
		updatePolicyCommand,
		enablePolicyCommand,
		disablePolicyCommand,
		deletePolicyCommand,
		importPoliciesCommand,
		exportPoliciesCommand,
	},
}

var addPolicyCommand = cli.Command{
	Name:  "add",
	Usage: "create a fee policy",
	Description: "Creates a policy for the wallet, starting from our " +
		"default settings and applying the flags provided. The " +
		"policy is enabled on creation.",
	Flags:  append([]cli.Flag{}, policyFlags...),
	Action: addPolicy,
}

func addPolicy(ctx *cli.Context) error {
	update, err := policyUpdate(ctx)
	if err != nil {
		return err
	}

	if update.Name == nil {
		return errors.New("policy name required")
	}

	walletID, err := getWalletID(ctx)
	if err != nil {
		return err
	}

	store, cleanup, err := getStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	policy := autofee.DefaultPolicy()
	policy.WalletID = walletID

	policy, err = update.Apply(policy, time.Now())
	if err != nil {
		return err
	}

	err = store.CreatePolicy(context.Background(), &policy)
	if err != nil {
		return err
	}

	printJSON(newPolicyResp(&policy))

	return nil
}

var listPoliciesCommand = cli.Command{
	Name:  "list",
	Usage: "list fee policies",
	Description: "Lists the policies of the connected wallet, newest " +
		"first.",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "all",
			Usage: "list the policies of every wallet",
		},
	},
	Action: listPolicies,
}

func listPolicies(ctx *cli.Context) error {
	var walletID string
	if !ctx.Bool("all") {
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

	policies, err := store.ListPolicies(context.Background(), walletID)
	if err != nil {
		return err
	}

	printJSON(newPolicyResps(policies))

	return nil
}

var getPolicyCommand = cli.Command{
	Name:      "get",
	Usage:     "show a fee policy",
	ArgsUsage: "policy_id",
	Action:    getPolicy,
}

func getPolicy(ctx *cli.Context) error {
	id, err := policyIDArg(ctx)
	if err != nil {
		return err
	}

	store, cleanup, err := getStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	policy, err := store.GetPolicy(context.Background(), id)
	if err != nil {
		return err
	}

	printJSON(newPolicyResp(policy))

	return nil
}

var updatePolicyCommand = cli.Command{
	Name:      "update",
	Usage:     "update a fee policy",
	ArgsUsage: "policy_id",
	Description: "Updates the fields of a policy that are set on the " +
		"command line, leaving all other fields unchanged.",
	Flags:  append([]cli.Flag{}, policyFlags...),
	Action: updatePolicy,
}

func updatePolicy(ctx *cli.Context) error {
	id, err := policyIDArg(ctx)
	if err != nil {
		return err
	}

	update, err := policyUpdate(ctx)
	if err != nil {
		return err
	}

	return applyUpdate(ctx, id, update)
}

var enablePolicyCommand = cli.Command{
	Name:      "enable",
	Usage:     "enable a fee policy",
	ArgsUsage: "policy_id",
	Action: func(ctx *cli.Context) error {
		return setEnabled(ctx, true)
	},
}

var disablePolicyCommand = cli.Command{
	Name:  "disable",
	Usage: "disable a fee policy",
	Description: "Disables a policy without deleting it. Disabled " +
		"policies are not run, even when triggered manually.",
	ArgsUsage: "policy_id",
	Action: func(ctx *cli.Context) error {
		return setEnabled(ctx, false)
	},
}

func setEnabled(ctx *cli.Context, enabled bool) error {
	id, err := policyIDArg(ctx)
	if err != nil {
		return err
	}

	return applyUpdate(ctx, id, &autofee.PolicyUpdate{
		Enabled: &enabled,
	})
}

func applyUpdate(ctx *cli.Context, id string,
	update *autofee.PolicyUpdate) error {

	store, cleanup, err := getStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	policy, err := store.UpdatePolicy(context.Background(), id, update)
	if err != nil {
		return err
	}

	printJSON(newPolicyResp(policy))

	return nil
}

var deletePolicyCommand = cli.Command{
	Name:  "delete",
	Usage: "delete a fee policy",
	Description: "Deletes a policy along with its adjustment history. " +
		"Fees that the policy set on channels are left in place.",
	ArgsUsage: "policy_id",
	Action:    deletePolicy,
}

func deletePolicy(ctx *cli.Context) error {
	id, err := policyIDArg(ctx)
	if err != nil {
		return err
	}

	store, cleanup, err := getStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	err = store.DeletePolicy(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Printf("Deleted policy %v\n", id)

	return nil
}

var importPoliciesCommand = cli.Command{
	Name:      "import",
	Usage:     "create policies from a yaml file",
	ArgsUsage: "file",
	Description: "Creates every policy listed in a yaml policy file. " +
		"Fields that are not set take our default values. Import " +
		"stops at the first policy that cannot be created.",
	Action: importPolicies,
}

func importPolicies(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "import")
	}

	file, err := os.Open(ctx.Args().First())
	if err != nil {
		return err
	}
	defer file.Close()

	store, cleanup, err := getStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	created, err := feedb.ImportPolicies(
		context.Background(), store, file,
	)
	printJSON(newPolicyResps(created))

	return err
}

var exportPoliciesCommand = cli.Command{
	Name:      "export",
	Usage:     "write policies to a yaml file",
	ArgsUsage: "[file]",
	Description: "Writes the connected wallet's policies as yaml, to " +
		"the file provided or stdout.",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "all",
			Usage: "export the policies of every wallet",
		},
	},
	Action: exportPolicies,
}

func exportPolicies(ctx *cli.Context) error {
	var walletID string
	if !ctx.Bool("all") {
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

	policies, err := store.ListPolicies(context.Background(), walletID)
	if err != nil {
		return err
	}

	if ctx.NArg() == 0 {
		return feedb.WritePolicies(os.Stdout, policies)
	}

	file, err := os.Create(ctx.Args().First())
	if err != nil {
		return err
	}

	if err := feedb.WritePolicies(file, policies); err != nil {
		_ = file.Close()
		return err
	}

	return file.Close()
}

func policyIDArg(ctx *cli.Context) (string, error) {
	if ctx.NArg() != 1 {
		return "", errPolicyIDRequired
	}

	return ctx.Args().First(), nil
}

// policyUpdate creates an update from the policy flags that are set.
func policyUpdate(ctx *cli.Context) (*autofee.PolicyUpdate, error) {
	update := &autofee.PolicyUpdate{}

	if ctx.IsSet("name") {
		name := ctx.String("name")
		update.Name = &name
	}

	if ctx.IsSet("strategy") {
		strategy, err := autofee.ParseStrategyStrict(
			ctx.String("strategy"),
		)
		if err != nil {
			return nil, err
		}
		update.Strategy = &strategy
	}

	msat := func(name string) *lnwire.MilliSatoshi {
		if !ctx.IsSet(name) {
			return nil
		}

		amt := lnwire.MilliSatoshi(ctx.Uint64(name))
		return &amt
	}
	update.BaseFeeMin = msat("base_fee_min")
	update.BaseFeeDefault = msat("base_fee_default")
	update.BaseFeeMax = msat("base_fee_max")

	ppm := func(name string) (*uint32, error) {
		if !ctx.IsSet(name) {
			return nil, nil
		}

		value := ctx.Uint64(name)
		if value > uint64(^uint32(0)) {
			return nil, fmt.Errorf("%v: %v ppm out of range", name,
				value)
		}

		rate := uint32(value)
		return &rate, nil
	}

	var err error
	if update.FeeRateMin, err = ppm("fee_rate_min"); err != nil {
		return nil, err
	}
	if update.FeeRateDefault, err = ppm("fee_rate_default"); err != nil {
		return nil, err
	}
	if update.FeeRateMax, err = ppm("fee_rate_max"); err != nil {
		return nil, err
	}
	if update.MaxAdjustmentPerStep, err = ppm("max_step"); err != nil {
		return nil, err
	}

	if ctx.IsSet("threshold_low") {
		low := ctx.Float64("threshold_low")
		update.ThresholdLow = &low
	}

	if ctx.IsSet("threshold_high") {
		high := ctx.Float64("threshold_high")
		update.ThresholdHigh = &high
	}

	if ctx.IsSet("auto_adjust") {
		auto := ctx.Bool("auto_adjust")
		update.AutoAdjust = &auto
	}

	if ctx.IsSet("interval") {
		interval := ctx.Duration("interval")
		update.AdjustmentInterval = &interval
	}

	if ctx.IsSet("min_channel_size") {
		size := btcutil.Amount(ctx.Int64("min_channel_size"))
		update.MinChannelSize = &size
	}

	if ctx.IsSet("only_active") {
		active := ctx.Bool("only_active")
		update.OnlyActiveChannels = &active
	}

	return update, nil
}
