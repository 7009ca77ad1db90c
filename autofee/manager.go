// Package autofee is responsible for keeping our channel fees in line with
// our channels' liquidity.
package autofee

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
)

var (
	// ErrPolicyNotFound is returned when a policy lookup does not find a
	// policy with the id provided.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrPolicyDisabled is returned when a disabled policy is triggered
	// manually.
	ErrPolicyDisabled = errors.New("policy is disabled")

	// ErrNoTicker is returned when the manager is started without a
	// ticker to drive it.
	ErrNoTicker = errors.New("manager requires a ticker to run")
)

// Store is the persistence that the manager requires.
type Store interface {
	// ListEnabledPolicies returns all policies that are not disabled.
	ListEnabledPolicies(ctx context.Context) ([]*Policy, error)

	// GetPolicy returns the policy with the id provided, or
	// ErrPolicyNotFound.
	GetPolicy(ctx context.Context, id string) (*Policy, error)

	// AppendAdjustment adds a record to the adjustment log.
	AppendAdjustment(ctx context.Context, adjustment *Adjustment) error
}

// Config contains the external functionality required to run the fee
// manager.
type Config struct {
	// Store holds our policies and adjustment history.
	Store Store

	// ListChannels returns the current state of a wallet's channels. It
	// may return an empty set.
	ListChannels func(ctx context.Context, walletID string) ([]Channel,
		error)

	// SetFees updates the routing fees of a channel. A nil error means the
	// node accepted the update.
	SetFees func(ctx context.Context, update FeeUpdate) error

	// Clock provides the time used for scheduling and audit records.
	Clock clock.Clock

	// Ticker drives scheduled runs. It is only required for Run.
	Ticker ticker.Ticker

	// UpdateTimeout bounds every SetFees call. Zero disables the timeout.
	UpdateTimeout time.Duration

	// PolicyConcurrency is the number of policies processed at the same
	// time. Channels of a single policy are always updated one at a time.
	// Values below one are treated as one.
	PolicyConcurrency int

	// NotifyRun is called with the stats of every completed run, if set.
	NotifyRun func(stats *RunStats)
}

func (c *Config) policyConcurrency() int {
	if c.PolicyConcurrency < 1 {
		return 1
	}

	return c.PolicyConcurrency
}

// Manager runs fee policies on a schedule, processing each policy at most
// once per adjustment interval.
type Manager struct {
	started int32 // to be used atomically

	cfg    *Config
	runner *Runner

	// lastRun holds the time at which each policy was last processed.
	lastRun map[string]time.Time
	mu      sync.Mutex
}

// NewManager creates a fee manager.
func NewManager(cfg *Config) *Manager {
	return &Manager{
		cfg:     cfg,
		runner:  NewRunner(cfg),
		lastRun: make(map[string]time.Time),
	}
}

// Run starts the manager, failing if it has already been started. Note that
// this function will block, so should be run in a goroutine.
func (m *Manager) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&m.started, 0, 1) {
		return errors.New("manager already started")
	}

	if m.cfg.Ticker == nil {
		return ErrNoTicker
	}

	m.cfg.Ticker.Resume()
	defer m.cfg.Ticker.Stop()

	for {
		select {
		case <-m.cfg.Ticker.Ticks():
			m.RunDue(ctx)

		// Return a non-nil error if we receive the instruction to exit.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunDue processes the policies whose adjustment interval has elapsed since
// we last processed them.
func (m *Manager) RunDue(ctx context.Context) *RunStats {
	now := m.cfg.Clock.Now()

	stats := m.runner.run(ctx, func(policy *Policy) bool {
		return m.claim(policy, now)
	})
	m.notify(stats)

	return stats
}

// ForceRun processes every enabled, auto adjusting policy regardless of when
// it last ran.
func (m *Manager) ForceRun(ctx context.Context) *RunStats {
	return m.forceRun(ctx, func(*Policy) bool {
		return true
	})
}

// ForceRunWallet processes the enabled, auto adjusting policies of a single
// wallet regardless of when they last ran. Policies of other wallets are
// left untouched.
func (m *Manager) ForceRunWallet(ctx context.Context,
	walletID string) *RunStats {

	return m.forceRun(ctx, func(policy *Policy) bool {
		return policy.WalletID == walletID
	})
}

func (m *Manager) forceRun(ctx context.Context,
	include func(*Policy) bool) *RunStats {

	now := m.cfg.Clock.Now()

	stats := m.runner.run(ctx, func(policy *Policy) bool {
		if !include(policy) {
			return false
		}

		m.markRun(policy.ID, now)
		return true
	})
	m.notify(stats)

	return stats
}

// TriggerPolicy processes a single policy immediately. It does not require
// the policy to have automatic adjustment switched on, but does require it to
// be enabled.
func (m *Manager) TriggerPolicy(ctx context.Context,
	id string) (*PolicyStats, error) {

	policy, err := m.cfg.Store.GetPolicy(ctx, id)
	if err != nil {
		return nil, err
	}

	if !policy.Enabled {
		return nil, ErrPolicyDisabled
	}

	log.Infof("manually triggering adjustment for policy %v", id)

	m.markRun(policy.ID, m.cfg.Clock.Now())

	return m.runner.ProcessPolicy(ctx, policy), nil
}

// claim returns whether a policy is due and, if so, marks it as run at the
// time provided.
func (m *Manager) claim(policy *Policy, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, ok := m.lastRun[policy.ID]
	if ok && now.Sub(last) < policy.AdjustmentInterval {
		return false
	}

	m.lastRun[policy.ID] = now

	return true
}

func (m *Manager) markRun(id string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastRun[id] = now
}

// LastRun returns the time at which a policy was last processed by this
// manager, and false if it has not been processed yet.
func (m *Manager) LastRun(id string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, ok := m.lastRun[id]
	return last, ok
}

func (m *Manager) notify(stats *RunStats) {
	if m.cfg.NotifyRun != nil {
		m.cfg.NotifyRun(stats)
	}
}
