package feesd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/lightninglabs/autofees/autofee"
	"github.com/lightninglabs/autofees/feedb"
	"github.com/lightninglabs/autofees/lndfees"
	"github.com/lightningnetwork/lnd/clock"
)

// Daemon runs the fee manager against a single lnd node.
type Daemon struct {
	cfg *Config

	// manager is set once the daemon has started.
	manager *autofee.Manager
}

// New creates a daemon for the config provided. The config is expected to
// have been validated.
func New(cfg *Config) *Daemon {
	return &Daemon{
		cfg: cfg,
	}
}

// Run starts the daemon and blocks until the context is cancelled or one of
// our subservers fails.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := feedb.Open(
		ctx, d.cfg.storeConfig(), clock.NewDefaultClock(),
	)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Errorf("Could not close store: %v", err)
		}
	}()

	conn, lnd, err := lndfees.Dial(&lndfees.Config{
		Host:         d.cfg.Lnd.Host,
		Network:      d.cfg.Network,
		MacaroonDir:  d.cfg.Lnd.MacaroonDir,
		MacaroonFile: d.cfg.Lnd.MacaroonFile,
		TLSPath:      d.cfg.Lnd.TLSPath,
	})
	if err != nil {
		return fmt.Errorf("connect to lnd: %w", err)
	}
	defer conn.Close()

	client := lndfees.NewClient(lnd)

	walletID := d.cfg.WalletID
	if walletID == "" {
		walletID, err = client.NodePubkey(ctx)
		if err != nil {
			return err
		}
	}
	wallets := lndfees.NewWallets()
	wallets.Add(walletID, client)

	log.Infof("Managing fees for wallets: %v", wallets.IDs())

	tick, err := newScheduleTicker(d.cfg)
	if err != nil {
		return err
	}

	metrics := NewMetrics()

	reporter := newRunReporter(metrics)
	reporter.start()
	defer reporter.stop()

	d.manager = getManager(d.cfg, store, wallets, tick, reporter)

	errChan := make(chan error, 2)

	if d.cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		d.registerDebugHandlers(mux)

		server := newMetricsServer(d.cfg.MetricsListen, mux)
		server.start(errChan)
		defer server.stop()
	}

	if d.cfg.RunOnStart {
		log.Info("Running due policies on startup")
		d.manager.RunDue(ctx)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Info("Fee manager started")
		defer log.Info("Fee manager stopped")

		err := d.manager.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal, stopping")

	case err = <-errChan:
		log.Errorf("Daemon error: %v", err)
	}

	cancel()
	wg.Wait()

	return err
}
