package feesd

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/lightninglabs/autofees/feedb"
	"github.com/stretchr/testify/require"
)

// testConfig returns a default config that keeps its files in a temporary
// directory.
func testConfig(t *testing.T) *Config {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.FeesdDir = dir
	cfg.DataDir = dir
	cfg.LogDir = filepath.Join(dir, defaultLogDirname)

	return &cfg
}

// TestValidate tests validation of our config.
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
		valid  bool
	}{
		{
			name:   "defaults",
			mutate: func(cfg *Config) {},
			valid:  true,
		},
		{
			name: "postgres without dsn",
			mutate: func(cfg *Config) {
				cfg.DB = feedb.BackendPostgres
			},
		},
		{
			name: "postgres with dsn",
			mutate: func(cfg *Config) {
				cfg.DB = feedb.BackendPostgres
				cfg.Postgres.DSN = "postgres://localhost/fees"
			},
			valid: true,
		},
		{
			name: "zero interval",
			mutate: func(cfg *Config) {
				cfg.Interval = 0
			},
		},
		{
			name: "schedule replaces interval",
			mutate: func(cfg *Config) {
				cfg.Interval = 0
				cfg.Schedule = "*/15 * * * *"
			},
			valid: true,
		},
		{
			name: "invalid schedule",
			mutate: func(cfg *Config) {
				cfg.Schedule = "every hour"
			},
		},
		{
			name: "zero update timeout",
			mutate: func(cfg *Config) {
				cfg.UpdateTimeout = 0
			},
		},
		{
			name: "zero concurrency",
			mutate: func(cfg *Config) {
				cfg.PolicyConcurrency = 0
			},
		},
	}

	for _, testCase := range tests {
		testCase := testCase

		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig(t)
			testCase.mutate(cfg)

			err := Validate(cfg)
			if testCase.valid {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
		})
	}
}

// TestValidatePaths tests that our directories are namespaced by network.
func TestValidatePaths(t *testing.T) {
	cfg := testConfig(t)
	cfg.Network = "regtest"
	dir := cfg.DataDir

	require.NoError(t, Validate(cfg))
	require.Equal(t, filepath.Join(dir, "regtest"), cfg.DataDir)
	require.Equal(
		t, filepath.Join(dir, defaultLogDirname, "regtest"), cfg.LogDir,
	)
	require.DirExists(t, cfg.DataDir)

	storeCfg := cfg.storeConfig()
	require.Equal(t, feedb.BackendBolt, storeCfg.Backend)
	require.Equal(t, cfg.DataDir, storeCfg.DataDir)
}

// TestLoadConfig tests that command line flags take precedence over our
// config file.
func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	configFile := "[Application Options]\n" +
		"interval=10m\n" +
		"debuglevel=debug\n" +
		"walletid=node-1\n"

	err := ioutil.WriteFile(
		filepath.Join(dir, defaultConfigFilename), []byte(configFile),
		0600,
	)
	require.NoError(t, err)

	cfg, err := LoadConfig([]string{
		"--feesddir=" + dir,
		"--network=testnet",
		"--debuglevel=trace",
	})
	require.NoError(t, err)

	require.Equal(t, time.Minute*10, cfg.Interval)
	require.Equal(t, "trace", cfg.DebugLevel)
	require.Equal(t, "node-1", cfg.WalletID)
	require.Equal(t, filepath.Join(dir, "testnet"), cfg.DataDir)
	require.Equal(
		t, filepath.Join(dir, defaultLogDirname, "testnet"), cfg.LogDir,
	)

	// A malformed config file is an error.
	err = ioutil.WriteFile(
		filepath.Join(dir, defaultConfigFilename),
		[]byte("[Application Options]\ninterval=soon\n"), 0600,
	)
	require.NoError(t, err)

	_, err = LoadConfig([]string{"--feesddir=" + dir})
	require.Error(t, err)
}
