package feesd

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
	"github.com/stretchr/testify/require"
)

// TestScheduleTicker tests selection of our ticker.
func TestScheduleTicker(t *testing.T) {
	cfg := DefaultConfig()

	tick, err := newScheduleTicker(&cfg)
	require.NoError(t, err)
	require.IsType(t, &ticker.T{}, tick)

	cfg.Schedule = "0 * * * *"
	tick, err = newScheduleTicker(&cfg)
	require.NoError(t, err)
	require.IsType(t, &cronTicker{}, tick)

	cfg.Schedule = "hourly"
	_, err = newScheduleTicker(&cfg)
	require.Error(t, err)
}

// TestCronTickerSkips tests that scheduled ticks are delivered to a waiting
// receiver and dropped when nobody is waiting.
func TestCronTickerSkips(t *testing.T) {
	tick, err := newCronTicker("@every 1h")
	require.NoError(t, err)

	// Nobody is receiving, so this tick is dropped without blocking.
	tick.tick()

	received := make(chan time.Time)
	go func() {
		received <- <-tick.Ticks()
	}()

	// Retry until our receiver is waiting on the channel.
	require.Eventually(t, func() bool {
		tick.tick()

		select {
		case <-received:
			return true
		case <-time.After(time.Millisecond * 10):
			return false
		}
	}, time.Second, time.Millisecond)

	tick.Resume()
	tick.Stop()
}
