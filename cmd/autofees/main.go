package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcutil"
	"github.com/golang/protobuf/proto"
	"github.com/lightninglabs/autofees/autofee"
	"github.com/lightninglabs/autofees/feedb"
	"github.com/lightninglabs/autofees/feesd"
	"github.com/lightninglabs/autofees/lndfees"
	"github.com/lightninglabs/protobuf-hex-display/jsonpb"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lncfg"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/urfave/cli"
)

var defaultLndHost = "localhost:10009"

func printJSON(resp interface{}) {
	b, err := json.Marshal(resp)
	if err != nil {
		fatal(err)
	}

	var out bytes.Buffer
	err = json.Indent(&out, b, "", "\t")
	if err != nil {
		fatal(err)
	}
	out.WriteString("\n")
	_, _ = out.WriteTo(os.Stdout)
}

func printRespJSON(resp proto.Message) {
	jsonMarshaler := &jsonpb.Marshaler{
		EmitDefaults: true,
		OrigName:     true,
		Indent:       "\t", // Matches indentation of printJSON.
	}

	jsonStr, err := jsonMarshaler.MarshalToString(resp)
	if err != nil {
		fmt.Println("unable to decode response: ", err)
		return
	}

	fmt.Println(jsonStr)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[autofees] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()

	app.Version = feesd.Version()
	app.Name = "autofees"
	app.Usage = "manage liquidity driven fee policies for your lnd node"
	app.Flags = globalFlags
	app.Commands = []cli.Command{
		policyCommands, strategiesCommand, defaultsCommand,
		channelsCommand, previewCommand, triggerCommand, runCommand,
		historyCommand, statsCommand,
	}

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "datadir",
		Value: feesd.FeesdDirBase,
		Usage: "path to feesd's data directory",
	},
	cli.StringFlag{
		Name:  "network, n",
		Value: feesd.DefaultNetwork,
		Usage: "the network feesd is running on e.g. mainnet, " +
			"testnet, etc.",
	},
	cli.StringFlag{
		Name:  "db",
		Value: feedb.BackendBolt,
		Usage: "the store backend, bolt or postgres",
	},
	cli.StringFlag{
		Name:  "postgres.dsn",
		Usage: "postgres connection string for the postgres backend",
	},
	cli.StringFlag{
		Name:  "lnd.host",
		Value: defaultLndHost,
		Usage: "lnd instance rpc address",
	},
	cli.StringFlag{
		Name:  "lnd.macaroondir",
		Usage: "path to the directory containing lnd's macaroons",
	},
	cli.StringFlag{
		Name:  "lnd.macaroonfile",
		Usage: "name of the macaroon within the macaroon directory",
	},
	cli.StringFlag{
		Name:  "lnd.tlspath",
		Usage: "path to lnd's tls certificate",
	},
	cli.StringFlag{
		Name: "walletid",
		Usage: "the wallet id of the connected lnd node, " +
			"defaults to the node's identity pubkey",
	},
	cli.DurationFlag{
		Name: "updatetimeout",
		Usage: "the maximum time we wait for lnd to apply a " +
			"single channel's fee update",
		Value: feesd.DefaultUpdateTimeout,
	},
}

func lndDefaultDir() string {
	return btcutil.AppDataDir("lnd", false)
}

// getStore opens the policy store. Bolt databases can only be opened by one
// process at a time, so this fails while the daemon is running against the
// same bolt file.
func getStore(ctx *cli.Context) (feedb.Store, func(), error) {
	dataDir := filepath.Join(
		lncfg.CleanAndExpandPath(ctx.GlobalString("datadir")),
		ctx.GlobalString("network"),
	)

	store, err := feedb.Open(context.Background(), &feedb.Config{
		Backend:     ctx.GlobalString("db"),
		DataDir:     dataDir,
		PostgresDSN: ctx.GlobalString("postgres.dsn"),
	}, clock.NewDefaultClock())
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close store: %v\n", err)
		}
	}

	return store, cleanup, nil
}

// lndConn is a connection to the lnd node whose fees we manage.
type lndConn struct {
	// lnd is the raw rpc client, used where we display lnd's own view.
	lnd lnrpc.LightningClient

	client   *lndfees.Client
	walletID string
}

// getLnd connects to lnd and resolves its wallet id.
func getLnd(ctx *cli.Context) (*lndConn, func(), error) {
	network := ctx.GlobalString("network")

	macDir := ctx.GlobalString("lnd.macaroondir")
	if macDir == "" {
		macDir = filepath.Join(
			lndDefaultDir(), "data", "chain", "bitcoin", network,
		)
	}

	tlsPath := ctx.GlobalString("lnd.tlspath")
	if tlsPath == "" {
		tlsPath = filepath.Join(lndDefaultDir(), "tls.cert")
	}

	conn, lnd, err := lndfees.Dial(&lndfees.Config{
		Host:         ctx.GlobalString("lnd.host"),
		Network:      network,
		MacaroonDir:  lncfg.CleanAndExpandPath(macDir),
		MacaroonFile: ctx.GlobalString("lnd.macaroonfile"),
		TLSPath:      lncfg.CleanAndExpandPath(tlsPath),
	})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = conn.Close()
	}

	node := &lndConn{
		lnd:      lnd,
		client:   lndfees.NewClient(lnd),
		walletID: ctx.GlobalString("walletid"),
	}

	if node.walletID == "" {
		node.walletID, err = node.client.NodePubkey(
			context.Background(),
		)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	return node, cleanup, nil
}

// getWalletID returns the wallet id set on the command line, falling back to
// the pubkey of the lnd node we are configured to connect to.
func getWalletID(ctx *cli.Context) (string, error) {
	if walletID := ctx.GlobalString("walletid"); walletID != "" {
		return walletID, nil
	}

	node, cleanup, err := getLnd(ctx)
	if err != nil {
		return "", err
	}
	defer cleanup()

	return node.walletID, nil
}

// getManager returns a fee manager for manual runs over the store and lnd
// node provided.
func getManager(store feedb.Store, node *lndConn,
	updateTimeout time.Duration) *autofee.Manager {

	wallets := lndfees.NewWallets()
	wallets.Add(node.walletID, node.client)

	return autofee.NewManager(&autofee.Config{
		Store:         store,
		ListChannels:  wallets.ListChannels,
		SetFees:       wallets.SetFees,
		Clock:         clock.NewDefaultClock(),
		UpdateTimeout: updateTimeout,
	})
}
