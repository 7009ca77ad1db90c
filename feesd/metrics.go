package feesd

import (
	"context"
	"net/http"
	"time"

	"github.com/lightninglabs/autofees/autofee"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "autofees"

// Metrics exports the outcome of our fee manager's runs to prometheus.
type Metrics struct {
	registry *prometheus.Registry

	runs               prometheus.Counter
	runErrors          prometheus.Counter
	policiesProcessed  prometheus.Counter
	channelsProcessed  prometheus.Counter
	adjustmentsMade    *prometheus.CounterVec
	adjustmentsFailed  *prometheus.CounterVec
	policyErrors       *prometheus.CounterVec
	runDuration        prometheus.Histogram
	lastRunTimestamp   prometheus.Gauge
	lastRunAdjustments prometheus.Gauge
}

// NewMetrics creates our metrics in a registry of their own.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "manager",
			Name:      "runs_total",
			Help:      "Total number of fee manager runs",
		}),
		runErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "manager",
			Name:      "run_errors_total",
			Help:      "Total number of runs that could not list policies",
		}),
		policiesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "manager",
			Name:      "policies_processed_total",
			Help:      "Total number of policy passes",
		}),
		channelsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "manager",
			Name:      "channels_processed_total",
			Help:      "Total number of channels evaluated",
		}),
		adjustmentsMade: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "policy",
			Name:      "adjustments_made_total",
			Help:      "Fee updates accepted by the node, by policy",
		}, []string{"policy"}),
		adjustmentsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "policy",
			Name:      "adjustments_failed_total",
			Help:      "Fee updates rejected by the node, by policy",
		}, []string{"policy"}),
		policyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "policy",
			Name:      "errors_total",
			Help:      "Errors recorded during policy passes, by policy",
		}, []string{"policy"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "manager",
			Name:      "run_duration_seconds",
			Help:      "Duration of fee manager runs",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		lastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "manager",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the last run started",
		}),
		lastRunAdjustments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "manager",
			Name:      "last_run_adjustments",
			Help:      "Number of fee updates made by the last run",
		}),
	}

	m.registry.MustRegister(
		m.runs, m.runErrors, m.policiesProcessed, m.channelsProcessed,
		m.adjustmentsMade, m.adjustmentsFailed, m.policyErrors,
		m.runDuration, m.lastRunTimestamp, m.lastRunAdjustments,
	)

	return m
}

// ObserveRun records the outcome of a fee manager run.
func (m *Metrics) ObserveRun(stats *autofee.RunStats) {
	m.runs.Inc()
	if stats.Error != "" {
		m.runErrors.Inc()
	}

	m.policiesProcessed.Add(float64(stats.PoliciesProcessed))
	m.channelsProcessed.Add(float64(stats.ChannelsProcessed))
	m.runDuration.Observe(stats.Duration.Seconds())
	m.lastRunTimestamp.Set(float64(stats.Start.Unix()))
	m.lastRunAdjustments.Set(float64(stats.AdjustmentsMade))

	for _, policy := range stats.Policies {
		m.ObservePolicy(policy)
	}
}

// ObservePolicy records the outcome of a single policy pass.
func (m *Metrics) ObservePolicy(stats *autofee.PolicyStats) {
	m.adjustmentsMade.WithLabelValues(stats.PolicyID).Add(
		float64(stats.AdjustmentsMade),
	)
	m.adjustmentsFailed.WithLabelValues(stats.PolicyID).Add(
		float64(stats.AdjustmentsFailed),
	)
	m.policyErrors.WithLabelValues(stats.PolicyID).Add(
		float64(len(stats.Errors)),
	)
}

// Handler returns an http handler that serves our metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// metricsServer serves our metrics and any debug endpoints over http.
type metricsServer struct {
	server *http.Server
}

func newMetricsServer(addr string, mux *http.ServeMux) *metricsServer {
	return &metricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: time.Second * 10,
		},
	}
}

// start serves in a goroutine, reporting a failure to serve on the error
// channel provided.
func (s *metricsServer) start(errChan chan<- error) {
	go func() {
		log.Infof("Serving metrics on %v", s.server.Addr)

		err := s.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
}

func (s *metricsServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Errorf("Could not shut down metrics server: %v", err)
	}
}
