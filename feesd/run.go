package feesd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/build"
)

// LoadConfig parses our command line flags and config file. Flags take
// precedence over values from the config file.
func LoadConfig(args []string) (*Config, error) {
	config := DefaultConfig()

	// Parse command line flags first to find the config file location.
	if _, err := flags.ParseArgs(&config, args); err != nil {
		return nil, err
	}

	// If a custom feesd directory was set, we'll update our data, log and
	// config paths to live within it.
	if config.FeesdDir != FeesdDirBase {
		config.DataDir = config.FeesdDir
		config.LogDir = filepath.Join(config.FeesdDir, defaultLogDirname)
		config.ConfigFile = filepath.Join(
			config.FeesdDir, defaultConfigFilename,
		)
	}

	// Parse the ini file. A missing file is fine, a malformed one is not.
	parser := flags.NewParser(&config, flags.Default)
	err := flags.NewIniParser(parser).ParseFile(config.ConfigFile)
	if err != nil {
		if _, ok := err.(*flags.IniError); ok {
			return nil, err
		}
	}

	// Parse command line flags again to restore flags overwritten by the
	// config file.
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Main is the entry point of the fee daemon.
func Main(args []string) error {
	config, err := LoadConfig(args)
	if err != nil {
		// Print help text and exit cleanly if requested.
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil
		}

		return err
	}

	if config.ShowVersion {
		fmt.Println("feesd version", Version())
		return nil
	}

	// Start listening for signals before we set up anything else so that
	// we can always shut down cleanly.
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	logWriter := build.NewRotatingLogWriter()
	SetupLoggers(logWriter)

	err = logWriter.InitLogRotator(
		filepath.Join(config.LogDir, defaultLogFilename),
		config.MaxLogFileSize, config.MaxLogFiles,
	)
	if err != nil {
		return err
	}
	defer logWriter.Close()

	err = build.ParseAndSetDebugLevels(config.DebugLevel, logWriter)
	if err != nil {
		return err
	}

	log.Infof("Version: %v", Version())
	log.Infof("Data directory: %v, store: %v", config.DataDir, config.DB)

	return New(config).Run(ctx)
}
