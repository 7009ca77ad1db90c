package lndfees

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcutil"
	"github.com/lightninglabs/autofees/autofee"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnwire"
	"google.golang.org/grpc/status"
)

// feeRateScale converts a fee rate in ppm to the proportional rate lnd's
// policy update expects.
const feeRateScale = 1e6

// ErrInvalidChannelPoint is returned when a channel point is not of the form
// txid:index.
var ErrInvalidChannelPoint = errors.New("channel point must be txid:index")

// Client reads channel state from and applies fee updates to a single lnd
// node.
type Client struct {
	lnd lnrpc.LightningClient
}

// NewClient creates a client for the lnd node provided.
func NewClient(lnd lnrpc.LightningClient) *Client {
	return &Client{
		lnd: lnd,
	}
}

// ListChannels returns our node's open channels along with the fees that we
// currently advertise for them. Channels that we cannot look up in the graph
// are skipped, since we do not know their current fees.
func (c *Client) ListChannels(ctx context.Context) ([]autofee.Channel, error) {
	resp, err := c.lnd.ListChannels(ctx, &lnrpc.ListChannelsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list channels: %v", statusMessage(err))
	}

	channels := make([]autofee.Channel, 0, len(resp.Channels))
	for _, channel := range resp.Channels {
		policy, err := c.localPolicy(ctx, channel)
		if err != nil {
			log.Warnf("Skipping channel %v: %v",
				lnwire.NewShortChanIDFromInt(channel.ChanId),
				err)

			continue
		}

		channels = append(channels, autofee.Channel{
			ChannelID: lnwire.NewShortChanIDFromInt(
				channel.ChanId,
			),
			ChannelPoint:  channel.ChannelPoint,
			PeerPubkey:    channel.RemotePubkey,
			Capacity:      btcutil.Amount(channel.Capacity),
			LocalBalance:  btcutil.Amount(channel.LocalBalance),
			RemoteBalance: btcutil.Amount(channel.RemoteBalance),
			BaseFee: lnwire.MilliSatoshi(
				policy.FeeBaseMsat,
			),
			FeeRate:       uint32(policy.FeeRateMilliMsat),
			TimeLockDelta: policy.TimeLockDelta,
			Active:        channel.Active,
		})
	}

	return channels, nil
}

// localPolicy looks up the routing policy that our side of a channel
// advertises.
func (c *Client) localPolicy(ctx context.Context,
	channel *lnrpc.Channel) (*lnrpc.RoutingPolicy, error) {

	edge, err := c.lnd.GetChanInfo(ctx, &lnrpc.ChanInfoRequest{
		ChanId: channel.ChanId,
	})
	if err != nil {
		return nil, fmt.Errorf("get channel info: %v",
			statusMessage(err))
	}

	var policy *lnrpc.RoutingPolicy
	switch channel.RemotePubkey {
	case edge.Node1Pub:
		policy = edge.Node2Policy

	case edge.Node2Pub:
		policy = edge.Node1Policy

	default:
		return nil, fmt.Errorf("peer %v not in channel edge",
			channel.RemotePubkey)
	}

	if policy == nil {
		return nil, errors.New("no local policy advertised")
	}

	return policy, nil
}

// SetFees updates the fees of a single channel. Failures are reduced to the
// message lnd reported.
func (c *Client) SetFees(ctx context.Context, update autofee.FeeUpdate) error {
	chanPoint, err := parseChannelPoint(update.ChannelPoint)
	if err != nil {
		return err
	}

	_, err = c.lnd.UpdateChannelPolicy(ctx, &lnrpc.PolicyUpdateRequest{
		Scope: &lnrpc.PolicyUpdateRequest_ChanPoint{
			ChanPoint: chanPoint,
		},
		BaseFeeMsat:   int64(update.BaseFee),
		FeeRate:       feeRateFloat(update.FeeRate),
		TimeLockDelta: update.TimeLockDelta,
	})
	if err != nil {
		return errors.New(statusMessage(err))
	}

	log.Debugf("Updated channel %v: base fee %v, fee rate %v ppm",
		update.ChannelID, update.BaseFee, update.FeeRate)

	return nil
}

// feeRateFloat converts a fee rate in ppm to lnd's proportional rate. lnd
// truncates the rate back to ppm, so we aim for the middle of the ppm value to
// make sure the rate it applies is the one we sent.
func feeRateFloat(ppm uint32) float64 {
	return (float64(ppm) + 0.5) / feeRateScale
}

// NodePubkey returns the identity pubkey of our node.
func (c *Client) NodePubkey(ctx context.Context) (string, error) {
	info, err := c.lnd.GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		return "", fmt.Errorf("get info: %v", statusMessage(err))
	}

	return info.IdentityPubkey, nil
}

// parseChannelPoint parses a channel point of the form txid:index.
func parseChannelPoint(point string) (*lnrpc.ChannelPoint, error) {
	parts := strings.Split(strings.TrimSpace(point), ":")
	if len(parts) != 2 {
		return nil, ErrInvalidChannelPoint
	}

	hash, err := chainhash.NewHashFromStr(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChannelPoint, err)
	}

	index, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChannelPoint, err)
	}

	return &lnrpc.ChannelPoint{
		FundingTxid: &lnrpc.ChannelPoint_FundingTxidBytes{
			FundingTxidBytes: hash[:],
		},
		OutputIndex: uint32(index),
	}, nil
}

// statusMessage returns the message of a grpc status error, or the error's
// text for any other error.
func statusMessage(err error) string {
	return status.Convert(err).Message()
}
