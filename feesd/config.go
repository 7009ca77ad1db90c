package feesd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcutil"
	"github.com/lightninglabs/autofees/feedb"
	"github.com/lightningnetwork/lnd/lncfg"
	"github.com/robfig/cron/v3"
)

var (
	// FeesdDirBase is the default main directory where feesd stores its
	// data.
	FeesdDirBase = btcutil.AppDataDir("autofees", false)

	// DefaultNetwork is the default bitcoin network feesd runs on.
	DefaultNetwork = "mainnet"

	defaultLogLevel    = "info"
	defaultLogDirname  = "logs"
	defaultLogFilename = "feesd.log"

	defaultLogDir = filepath.Join(FeesdDirBase, defaultLogDirname)

	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10

	defaultConfigFilename = "feesd.conf"
	defaultConfigFile     = filepath.Join(FeesdDirBase, defaultConfigFilename)

	// defaultInterval is how often we check whether any policy is due.
	defaultInterval = time.Minute * 5

	// DefaultUpdateTimeout bounds a single channel's fee update.
	DefaultUpdateTimeout = time.Second * 30

	defaultMetricsListen = "localhost:9330"
)

type lndConfig struct {
	Host string `long:"host" description:"lnd instance rpc address"`

	MacaroonDir string `long:"macaroondir" description:"Path to the directory containing lnd's macaroons, defaults to the network's data directory"`

	MacaroonFile string `long:"macaroonfile" description:"Name of the macaroon within the macaroon directory, defaults to admin.macaroon"`

	TLSPath string `long:"tlspath" description:"Path to lnd tls certificate"`
}

type postgresConfig struct {
	DSN string `long:"dsn" description:"Postgres connection string, required when the postgres backend is used"`
}

// Config contains the configuration of the fee daemon.
type Config struct {
	ShowVersion bool   `long:"version" short:"V" description:"Display version information and exit"`
	FeesdDir    string `long:"feesddir" description:"The directory for all of feesd's data. If set, this option overwrites --datadir, --logdir and --configfile."`
	ConfigFile  string `long:"configfile" description:"Path to configuration file."`
	DataDir     string `long:"datadir" description:"Directory for feesd data."`
	Network     string `long:"network" description:"network to run on" choice:"regtest" choice:"testnet" choice:"mainnet" choice:"simnet"`

	WalletID string `long:"walletid" description:"The wallet id that policies use to refer to the connected lnd node. Defaults to the node's identity pubkey."`

	DB string `long:"db" description:"The backend that stores policies and adjustments" choice:"bolt" choice:"postgres"`

	LogDir         string `long:"logdir" description:"Directory to log output."`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum logfile size in MB"`

	DebugLevel string `long:"debuglevel" short:"d" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems."`

	Interval          time.Duration `long:"interval" description:"How often we check whether any policy is due for adjustment."`
	Schedule          string        `long:"schedule" description:"A cron expression that replaces the check interval, for example '0 */2 * * *'."`
	RunOnStart        bool          `long:"runonstart" description:"Process all due policies as soon as the daemon starts."`
	UpdateTimeout     time.Duration `long:"updatetimeout" description:"The maximum time we wait for lnd to apply a single channel's fee update."`
	PolicyConcurrency int           `long:"policyconcurrency" description:"The number of policies that may be processed at the same time."`

	MetricsListen string `long:"metricslisten" description:"Address to serve prometheus metrics on. Set to an empty string to disable metrics."`

	Lnd      *lndConfig      `group:"lnd" namespace:"lnd"`
	Postgres *postgresConfig `group:"postgres" namespace:"postgres"`
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		Network:           DefaultNetwork,
		FeesdDir:          FeesdDirBase,
		ConfigFile:        defaultConfigFile,
		DataDir:           FeesdDirBase,
		DB:                feedb.BackendBolt,
		LogDir:            defaultLogDir,
		MaxLogFiles:       defaultMaxLogFiles,
		MaxLogFileSize:    defaultMaxLogFileSize,
		DebugLevel:        defaultLogLevel,
		Interval:          defaultInterval,
		UpdateTimeout:     DefaultUpdateTimeout,
		PolicyConcurrency: 1,
		MetricsListen:     defaultMetricsListen,
		Lnd: &lndConfig{
			Host:    "localhost:10009",
			TLSPath: filepath.Join(lndDefaultDir(), "tls.cert"),
		},
		Postgres: &postgresConfig{},
	}
}

// lndDefaultDir returns lnd's default data directory.
func lndDefaultDir() string {
	return btcutil.AppDataDir("lnd", false)
}

// Validate cleans up paths in the config provided and validates it.
func Validate(cfg *Config) error {
	// Cleanup any paths before we use them.
	cfg.FeesdDir = lncfg.CleanAndExpandPath(cfg.FeesdDir)
	cfg.DataDir = lncfg.CleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = lncfg.CleanAndExpandPath(cfg.LogDir)
	cfg.Lnd.MacaroonDir = lncfg.CleanAndExpandPath(cfg.Lnd.MacaroonDir)
	cfg.Lnd.TLSPath = lncfg.CleanAndExpandPath(cfg.Lnd.TLSPath)

	// Append the network type to the data and log directory so they are
	// "namespaced" per network.
	cfg.DataDir = filepath.Join(cfg.DataDir, cfg.Network)
	cfg.LogDir = filepath.Join(cfg.LogDir, cfg.Network)

	// If the user did not set a macaroon directory, we use lnd's default
	// for our network.
	if cfg.Lnd.MacaroonDir == "" {
		cfg.Lnd.MacaroonDir = filepath.Join(
			lndDefaultDir(), "data", "chain", "bitcoin", cfg.Network,
		)
	}

	if err := os.MkdirAll(cfg.DataDir, os.ModePerm); err != nil {
		return err
	}

	if cfg.DB == feedb.BackendPostgres && cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn must be set to use the " +
			"postgres backend")
	}

	if cfg.Schedule == "" && cfg.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got: %v",
			cfg.Interval)
	}

	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %v: %w",
				cfg.Schedule, err)
		}
	}

	if cfg.UpdateTimeout <= 0 {
		return fmt.Errorf("update timeout must be positive, got: %v",
			cfg.UpdateTimeout)
	}

	if cfg.PolicyConcurrency < 1 {
		return fmt.Errorf("policy concurrency must be at least 1, "+
			"got: %v", cfg.PolicyConcurrency)
	}

	return nil
}

// storeConfig returns the store configuration described by our config.
func (c *Config) storeConfig() *feedb.Config {
	return &feedb.Config{
		Backend:     c.DB,
		DataDir:     c.DataDir,
		PostgresDSN: c.Postgres.DSN,
	}
}
