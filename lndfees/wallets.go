package lndfees

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/lightninglabs/autofees/autofee"
)

// ErrUnknownWallet is returned when we have no node for a wallet id.
var ErrUnknownWallet = errors.New("unknown wallet")

// Wallets maps wallet ids to the node that holds their channels. It provides
// the channel source and fee update sink of the fee manager.
type Wallets struct {
	clients map[string]*Client
	mu      sync.RWMutex
}

// NewWallets creates an empty wallet set.
func NewWallets() *Wallets {
	return &Wallets{
		clients: make(map[string]*Client),
	}
}

// Add registers the node for a wallet, replacing any existing entry.
func (w *Wallets) Add(walletID string, client *Client) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.clients[walletID] = client
}

// IDs returns the ids of all registered wallets in sorted order.
func (w *Wallets) IDs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	ids := make([]string, 0, len(w.clients))
	for id := range w.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

func (w *Wallets) client(walletID string) (*Client, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	client, ok := w.clients[walletID]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownWallet, walletID)
	}

	return client, nil
}

// ListChannels lists the channels of a wallet.
func (w *Wallets) ListChannels(ctx context.Context,
	walletID string) ([]autofee.Channel, error) {

	client, err := w.client(walletID)
	if err != nil {
		return nil, err
	}

	return client.ListChannels(ctx)
}

// SetFees applies a fee update to the wallet that owns the channel.
func (w *Wallets) SetFees(ctx context.Context,
	update autofee.FeeUpdate) error {

	client, err := w.client(update.WalletID)
	if err != nil {
		return err
	}

	return client.SetFees(ctx, update)
}
