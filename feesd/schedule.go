package feesd

import (
	"time"

	"github.com/lightningnetwork/lnd/ticker"
	"github.com/robfig/cron/v3"
)

// cronTicker delivers ticks on a cron schedule. Ticks that fire while the
// previous one has not been consumed are dropped.
type cronTicker struct {
	cron  *cron.Cron
	ticks chan time.Time
}

// A compile-time constraint to ensure cronTicker satisfies the ticker.Ticker
// interface.
var _ ticker.Ticker = (*cronTicker)(nil)

// newCronTicker creates a paused ticker for a standard five field cron
// expression.
func newCronTicker(spec string) (*cronTicker, error) {
	t := &cronTicker{
		cron:  cron.New(),
		ticks: make(chan time.Time),
	}

	if _, err := t.cron.AddFunc(spec, t.tick); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *cronTicker) tick() {
	select {
	case t.ticks <- time.Now():
	default:
		log.Warnf("Previous fee run still in progress, skipping " +
			"scheduled run")
	}
}

// Ticks returns the channel that scheduled ticks are delivered on.
func (t *cronTicker) Ticks() <-chan time.Time {
	return t.ticks
}

// Resume starts the cron scheduler.
func (t *cronTicker) Resume() {
	t.cron.Start()
}

// Pause stops scheduling new ticks.
func (t *cronTicker) Pause() {
	t.cron.Stop()
}

// Stop stops the scheduler and waits for any tick in flight to complete.
func (t *cronTicker) Stop() {
	<-t.cron.Stop().Done()
}

// newScheduleTicker returns a cron ticker if a schedule is set, and an
// interval ticker otherwise.
func newScheduleTicker(cfg *Config) (ticker.Ticker, error) {
	if cfg.Schedule != "" {
		log.Infof("Running fee manager on schedule: %v", cfg.Schedule)
		return newCronTicker(cfg.Schedule)
	}

	log.Infof("Running fee manager every %v", cfg.Interval)
	return ticker.New(cfg.Interval), nil
}
