package lndfees

import (
	"github.com/lightninglabs/lndclient"
	"github.com/lightningnetwork/lnd/lnrpc"
	"google.golang.org/grpc"
)

// Config describes how to connect to an lnd node.
type Config struct {
	// Host is the host:port of lnd's rpc server.
	Host string

	// Network is the bitcoin network lnd runs on, used to locate its
	// macaroons.
	Network string

	// MacaroonDir is the directory that holds lnd's macaroons.
	MacaroonDir string

	// MacaroonFile overrides the macaroon file name within MacaroonDir.
	MacaroonFile string

	// TLSPath is the path to lnd's tls certificate.
	TLSPath string
}

// Dial connects to lnd. The caller is responsible for closing the
// connection.
func Dial(cfg *Config) (*grpc.ClientConn, lnrpc.LightningClient, error) {
	var opts []lndclient.BasicClientOption
	if cfg.MacaroonFile != "" {
		opts = append(opts, lndclient.MacFilename(cfg.MacaroonFile))
	}

	log.Infof("Connecting to lnd at %v", cfg.Host)

	conn, err := lndclient.NewBasicConn(
		cfg.Host, cfg.TLSPath, cfg.MacaroonDir, cfg.Network, opts...,
	)
	if err != nil {
		return nil, nil, err
	}

	return conn, lnrpc.NewLightningClient(conn), nil
}
