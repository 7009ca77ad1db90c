package feesd

import (
	"sync"

	"github.com/lightninglabs/autofees/autofee"
	"github.com/lightningnetwork/lnd/queue"
)

// runReporter logs and records the results of fee runs off the manager's
// goroutine. Results are buffered in an unbounded queue.
type runReporter struct {
	metrics *Metrics
	queue   *queue.ConcurrentQueue

	wg   sync.WaitGroup
	quit chan struct{}
}

func newRunReporter(metrics *Metrics) *runReporter {
	return &runReporter{
		metrics: metrics,
		queue:   queue.NewConcurrentQueue(10),
		quit:    make(chan struct{}),
	}
}

func (r *runReporter) start() {
	r.queue.Start()

	r.wg.Add(1)
	go r.report()
}

// stop ends reporting. Results that are still queued are dropped.
func (r *runReporter) stop() {
	close(r.quit)
	r.wg.Wait()
	r.queue.Stop()
}

// notify queues a run's results for reporting.
func (r *runReporter) notify(stats *autofee.RunStats) {
	select {
	case r.queue.ChanIn() <- stats:
	case <-r.quit:
	}
}

func (r *runReporter) report() {
	defer r.wg.Done()

	for {
		select {
		case item := <-r.queue.ChanOut():
			r.reportRun(item.(*autofee.RunStats))

		case <-r.quit:
			return
		}
	}
}

func (r *runReporter) reportRun(stats *autofee.RunStats) {
	if stats.Error != "" {
		log.Errorf("Fee run failed: %v", stats.Error)
	} else {
		log.Infof("Fee run complete: %v", stats)
	}

	for _, policy := range stats.Policies {
		log.Debugf("Processed %v", policy)

		for _, err := range policy.Errors {
			log.Warnf("Policy %v: %v", policy.PolicyID, err)
		}
	}

	r.metrics.ObserveRun(stats)
}
