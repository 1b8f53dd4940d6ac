// Package metrics instruments the mount lifecycle and checkout engine with
// Prometheus metrics: checkout phase durations, tree/blob fetch counts,
// conflict counts, and mount state as a gauge.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every Prometheus metric scmfs emits and serves them over
// HTTP.
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry

	checkoutTotal        *prometheus.CounterVec
	checkoutPhaseSeconds *prometheus.HistogramVec
	checkoutConflicts    *prometheus.CounterVec
	treesFetched         prometheus.Counter
	blobsFetched         prometheus.Counter
	mountState           prometheus.Gauge
	prefetchesInFlight   prometheus.Gauge
	channelAttachTotal   *prometheus.CounterVec

	checkouts map[string]*CheckoutStats
	lastReset time.Time

	server *http.Server
}

// Config configures the collector and its HTTP endpoint.
type Config struct {
	Enabled        bool              `yaml:"enabled"`
	Port           int               `yaml:"port"`
	Path           string            `yaml:"path"`
	Labels         map[string]string `yaml:"labels"`
	Namespace      string            `yaml:"namespace"`
	Subsystem      string            `yaml:"subsystem"`
	UpdateInterval time.Duration     `yaml:"update_interval"`
}

// CheckoutStats aggregates observed checkout outcomes for a given mode.
type CheckoutStats struct {
	Count         int64
	Failures      int64
	TotalDuration time.Duration
	LastAt        time.Time
}

// NewCollector builds a Collector, registering all metrics with a fresh
// Prometheus registry.
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:        true,
			Port:           8080,
			Path:           "/metrics",
			Namespace:      "scmfs",
			UpdateInterval: 30 * time.Second,
			Labels:         make(map[string]string),
		}
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	registry := prometheus.NewRegistry()
	c := &Collector{
		config:    config,
		registry:  registry,
		checkouts: make(map[string]*CheckoutStats),
		lastReset: time.Now(),
	}

	c.initMetrics()
	if err := c.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return c, nil
}

func (c *Collector) initMetrics() {
	c.checkoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.config.Namespace,
		Subsystem: c.config.Subsystem,
		Name:      "checkout_total",
		Help:      "Total number of checkout attempts by mode and outcome.",
	}, []string{"mode", "status"})

	c.checkoutPhaseSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: c.config.Namespace,
		Subsystem: c.config.Subsystem,
		Name:      "checkout_phase_duration_seconds",
		Help:      "Duration of each checkout phase in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
	}, []string{"phase"})

	c.checkoutConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.config.Namespace,
		Subsystem: c.config.Subsystem,
		Name:      "checkout_conflicts_total",
		Help:      "Total number of conflicts surfaced by checkout.",
	}, []string{"mode"})

	c.treesFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: c.config.Namespace,
		Subsystem: c.config.Subsystem,
		Name:      "object_store_trees_fetched_total",
		Help:      "Total number of tree objects fetched from the object store.",
	})

	c.blobsFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: c.config.Namespace,
		Subsystem: c.config.Subsystem,
		Name:      "object_store_blobs_fetched_total",
		Help:      "Total number of blob objects fetched from the object store.",
	})

	c.mountState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: c.config.Namespace,
		Subsystem: c.config.Subsystem,
		Name:      "mount_state",
		Help:      "Current MountState as an integer (see internal/mount.State).",
	})

	c.prefetchesInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: c.config.Namespace,
		Subsystem: c.config.Subsystem,
		Name:      "tree_prefetches_in_flight",
		Help:      "Number of tree prefetch leases currently held.",
	})

	c.channelAttachTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.config.Namespace,
		Subsystem: c.config.Subsystem,
		Name:      "channel_attach_total",
		Help:      "Total number of channel attach attempts by protocol and outcome.",
	}, []string{"protocol", "status"})
}

func (c *Collector) registerMetrics() error {
	collectors := []prometheus.Collector{
		c.checkoutTotal,
		c.checkoutPhaseSeconds,
		c.checkoutConflicts,
		c.treesFetched,
		c.blobsFetched,
		c.mountState,
		c.prefetchesInFlight,
		c.channelAttachTotal,
	}
	for _, col := range collectors {
		if err := c.registry.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// Start serves /metrics (and a small debug surface) over HTTP.
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/health", c.healthHandler)
	mux.HandleFunc("/debug/checkouts", c.debugCheckoutsHandler)

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the metrics HTTP server.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// RecordCheckout records the outcome and duration of a whole checkout
// attempt (spec.md §4.2 step 11's FinishedCheckout event, expressed as a
// metric rather than a log line).
func (c *Collector) RecordCheckout(mode string, duration time.Duration, success bool, conflicts int) {
	if !c.config.Enabled {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}
	c.checkoutTotal.With(prometheus.Labels{"mode": mode, "status": status}).Inc()
	if conflicts > 0 {
		c.checkoutConflicts.With(prometheus.Labels{"mode": mode}).Add(float64(conflicts))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	stats, ok := c.checkouts[mode]
	if !ok {
		stats = &CheckoutStats{}
		c.checkouts[mode] = stats
	}
	stats.Count++
	if !success {
		stats.Failures++
	}
	stats.TotalDuration += duration
	stats.LastAt = time.Now()
}

// RecordPhase records the duration of a single checkout phase (acquire
// parent lock, fetch trees, diff, acquire rename lock, apply, finish).
func (c *Collector) RecordPhase(phase string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.checkoutPhaseSeconds.With(prometheus.Labels{"phase": phase}).Observe(duration.Seconds())
}

// RecordTreeFetch increments the tree-fetch counter by n.
func (c *Collector) RecordTreeFetch(n int) {
	if !c.config.Enabled || n <= 0 {
		return
	}
	c.treesFetched.Add(float64(n))
}

// RecordBlobFetch increments the blob-fetch counter by n.
func (c *Collector) RecordBlobFetch(n int) {
	if !c.config.Enabled || n <= 0 {
		return
	}
	c.blobsFetched.Add(float64(n))
}

// SetMountState reports the mount's current state as a gauge value.
func (c *Collector) SetMountState(state int) {
	if !c.config.Enabled {
		return
	}
	c.mountState.Set(float64(state))
}

// SetPrefetchesInFlight reports the current prefetch lease count.
func (c *Collector) SetPrefetchesInFlight(n int) {
	if !c.config.Enabled {
		return
	}
	c.prefetchesInFlight.Set(float64(n))
}

// RecordChannelAttach records the outcome of a channel attach attempt.
func (c *Collector) RecordChannelAttach(protocol string, success bool) {
	if !c.config.Enabled {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	c.channelAttachTotal.With(prometheus.Labels{"protocol": protocol, "status": status}).Inc()
}

// Snapshot returns a copy of the accumulated per-mode checkout stats.
func (c *Collector) Snapshot() map[string]CheckoutStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]CheckoutStats, len(c.checkouts))
	for k, v := range c.checkouts {
		out[k] = *v
	}
	return out
}

func (c *Collector) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","service":"scmfs-metrics"}`))
}

func (c *Collector) debugCheckoutsHandler(w http.ResponseWriter, r *http.Request) {
	stats := c.Snapshot()
	w.Header().Set("Content-Type", "text/plain")
	writef := func(format string, args ...interface{}) { _, _ = fmt.Fprintf(w, format, args...) }

	writef("scmfs checkout summary\n")
	writef("=======================\n\n")
	if len(stats) == 0 {
		writef("no checkouts recorded.\n")
		return
	}
	writef("%-10s %8s %8s %10s\n", "Mode", "Count", "Failed", "Last")
	for mode, s := range stats {
		writef("%-10s %8d %8d %10s\n", mode, s.Count, s.Failures, s.LastAt.Format("15:04:05"))
	}
}
