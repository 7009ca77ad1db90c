package autofee

import (
	"fmt"

	"github.com/btcsuite/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
)

// Channel is a point in time view of one of our channels and the routing
// policy we currently advertise for it. Channel reserve, fees and pending htlc
// balances are not included in the balances.
type Channel struct {
	// ChannelID is the short channel id of the channel.
	ChannelID lnwire.ShortChannelID

	// ChannelPoint is the funding outpoint of the channel, formatted as
	// txid:index.
	ChannelPoint string

	// PeerPubkey is the hex encoded public key of our peer.
	PeerPubkey string

	// Capacity is the total capacity of the channel.
	Capacity btcutil.Amount

	// LocalBalance is our side of the channel.
	LocalBalance btcutil.Amount

	// RemoteBalance is our peer's side of the channel.
	RemoteBalance btcutil.Amount

	// BaseFee is the base fee we currently charge to forward over the
	// channel.
	BaseFee lnwire.MilliSatoshi

	// FeeRate is the proportional fee we currently charge, in ppm.
	FeeRate uint32

	// TimeLockDelta is our current cltv delta, which must be re-sent with
	// every policy update.
	TimeLockDelta uint32

	// Active indicates whether the channel is currently usable.
	Active bool
}

// String returns a short description of a channel.
func (c Channel) String() string {
	return fmt.Sprintf("channel %v (%v): capacity: %v, local: %v, "+
		"remote: %v, fees: %v + %v ppm", c.ChannelID, c.ChannelPoint,
		c.Capacity, c.LocalBalance, c.RemoteBalance, c.BaseFee,
		c.FeeRate)
}

// LiquidityRatio returns the share of the channel's capacity that sits on our
// side, as a percentage.
func (c Channel) LiquidityRatio() float64 {
	return LiquidityRatio(c.LocalBalance, c.Capacity)
}

// LiquidityRatio returns local balance as a percentage of capacity. A channel
// without capacity has a ratio of zero.
func LiquidityRatio(local, capacity btcutil.Amount) float64 {
	if capacity == 0 {
		return 0
	}

	return 100 * float64(local) / float64(capacity)
}

// FeeUpdate is a request to change the routing fees of a single channel.
type FeeUpdate struct {
	// WalletID identifies the wallet that owns the channel.
	WalletID string

	// ChannelID is the short channel id of the channel.
	ChannelID lnwire.ShortChannelID

	// ChannelPoint is the funding outpoint of the channel.
	ChannelPoint string

	// BaseFee is the new base fee.
	BaseFee lnwire.MilliSatoshi

	// FeeRate is the new proportional fee in ppm.
	FeeRate uint32

	// TimeLockDelta is the cltv delta to keep advertising.
	TimeLockDelta uint32
}

// newFeeUpdate creates a fee update for a channel.
func newFeeUpdate(walletID string, channel Channel, baseFee lnwire.MilliSatoshi,
	feeRate uint32) FeeUpdate {

	return FeeUpdate{
		WalletID:      walletID,
		ChannelID:     channel.ChannelID,
		ChannelPoint:  channel.ChannelPoint,
		BaseFee:       baseFee,
		FeeRate:       feeRate,
		TimeLockDelta: channel.TimeLockDelta,
	}
}
