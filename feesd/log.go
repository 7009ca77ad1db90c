package feesd

import (
	"github.com/btcsuite/btclog"
	"github.com/lightninglabs/autofees/autofee"
	"github.com/lightninglabs/autofees/feedb"
	"github.com/lightninglabs/autofees/lndfees"
	"github.com/lightninglabs/lndclient"
	"github.com/lightningnetwork/lnd/build"
)

// Subsystem defines the logging code for this subsystem.
const Subsystem = "FEESD"

// log is disabled until SetupLoggers is called.
var log = build.NewSubLogger(Subsystem, nil)

// SetupLoggers initializes all package-global logger variables.
func SetupLoggers(root *build.RotatingLogWriter) {
	log = build.NewSubLogger(Subsystem, root.GenSubLogger)

	setSubLogger(root, Subsystem, log, nil)
	addSubLogger(root, autofee.Subsystem, autofee.UseLogger)
	addSubLogger(root, feedb.Subsystem, feedb.UseLogger)
	addSubLogger(root, lndfees.Subsystem, lndfees.UseLogger)
	addSubLogger(root, "LNDC", lndclient.UseLogger)
}

// addSubLogger is a helper method to conveniently create and register the
// logger of a sub system.
func addSubLogger(root *build.RotatingLogWriter, subsystem string,
	useLogger func(btclog.Logger)) {

	logger := build.NewSubLogger(subsystem, root.GenSubLogger)
	setSubLogger(root, subsystem, logger, useLogger)
}

// setSubLogger is a helper method to conveniently register the logger of a
// sub system.
func setSubLogger(root *build.RotatingLogWriter, subsystem string,
	logger btclog.Logger, useLogger func(btclog.Logger)) {

	root.RegisterSubLogger(subsystem, logger)
	if useLogger != nil {
		useLogger(logger)
	}
}
