package feesd

import (
	"github.com/lightninglabs/autofees/autofee"
	"github.com/lightninglabs/autofees/feedb"
	"github.com/lightninglabs/autofees/lndfees"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
)

// getManager returns a fee manager that reads policies from the store and
// manages the channels of the wallets provided.
func getManager(cfg *Config, store feedb.Store, wallets *lndfees.Wallets,
	tick ticker.Ticker, reporter *runReporter) *autofee.Manager {

	mngrCfg := &autofee.Config{
		Store:             store,
		ListChannels:      wallets.ListChannels,
		SetFees:           wallets.SetFees,
		Clock:             clock.NewDefaultClock(),
		Ticker:            tick,
		UpdateTimeout:     cfg.UpdateTimeout,
		PolicyConcurrency: cfg.PolicyConcurrency,
		NotifyRun:         reporter.notify,
	}

	return autofee.NewManager(mngrCfg)
}
