// Package adapter assembles a Daemon from a loaded configuration: the
// object store backend, overlay, inode map, journal, fault injector,
// structured logger, metrics collector, and health checker, wired around a
// mount.Mount. cmd/scmfsd constructs one Daemon per process and drives its
// Start/Stop lifecycle.
package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/scmfs/scmfs/internal/config"
	"github.com/scmfs/scmfs/internal/fault"
	"github.com/scmfs/scmfs/internal/health"
	"github.com/scmfs/scmfs/internal/inode"
	"github.com/scmfs/scmfs/internal/journal"
	"github.com/scmfs/scmfs/internal/metrics"
	"github.com/scmfs/scmfs/internal/mount"
	"github.com/scmfs/scmfs/internal/objectstore"
	"github.com/scmfs/scmfs/internal/overlay"
	"github.com/scmfs/scmfs/internal/privhelper"
	"github.com/scmfs/scmfs/internal/telemetry"
)

const (
	defaultJournalEntries       = 10000
	defaultRemediationThreshold = 3

	// staleAfterFactor scales the configured parent-lock timeout up before
	// treating a held lock as stuck: a checkout that's merely slow shouldn't
	// trip the same alarm as one that's actually deadlocked.
	staleAfterFactor = 10
)

// Daemon owns every long-lived collaborator a running mount needs, and the
// order they start and stop in.
type Daemon struct {
	config    *config.Configuration
	logger    *telemetry.Logger
	metrics   *metrics.Collector
	checker   *health.Checker
	remediate *health.Remediator
	mount     *mount.Mount

	started bool
}

// New validates cfg and wires every collaborator it configures, without
// starting any of them.
func New(ctx context.Context, cfg *config.Configuration) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.Global, cfg.Monitoring.Logging)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	store, err := newStore(ctx, cfg.ObjectStore)
	if err != nil {
		return nil, fmt.Errorf("building object store: %w", err)
	}

	ov := overlay.NewFileOverlay(cfg.Overlay.Type == config.OverlayFile)
	inodes := inode.NewMap(objectstore.ObjectID{})
	jrn := journal.New(defaultJournalEntries)
	injector := fault.NewInjector()

	mcfg := mount.Config{
		MountPath:               cfg.Mount.MountPath,
		ClientDir:               cfg.Mount.ClientDirectory,
		CaseSensitive:           cfg.Mount.CaseSensitive,
		RequireUTF8:             cfg.Mount.RequireUTF8Paths,
		OverlayPersists:         cfg.Overlay.Type == config.OverlayFile,
		Protocol:                protocolFor(cfg.Mount.Protocol),
		ReadOnly:                cfg.Mount.ReadOnly,
		MaxConcurrentPrefetches: int64(cfg.Features.MaxPrefetchLeases),
	}
	owner := mount.Owner{UID: uint32(os.Getuid()), GID: uint32(os.Getgid())}

	m := mount.New(mcfg, owner, store, ov, inodes, jrn, injector, logger, objectstore.ObjectID{})
	m.PrivHelper = privhelper.NewDevHelper()

	d := &Daemon{config: cfg, logger: logger, mount: m}

	if cfg.Monitoring.Metrics.Enabled {
		d.metrics, err = metrics.NewCollector(&metrics.Config{
			Enabled:   true,
			Port:      cfg.Global.MetricsPort,
			Namespace: "scmfs",
			Labels:    cfg.Monitoring.Metrics.CustomLabels,
		})
		if err != nil {
			return nil, fmt.Errorf("building metrics collector: %w", err)
		}
		m.SetMetrics(d.metrics)
	}

	if cfg.Monitoring.HealthChecks.Enabled {
		d.checker, err = health.NewChecker(&health.Config{
			Enabled:       true,
			CheckInterval: cfg.Monitoring.HealthChecks.Interval,
			Timeout:       cfg.Monitoring.HealthChecks.Timeout,
			HTTPEnabled:   true,
			HTTPPort:      cfg.Global.HealthPort,
		})
		if err != nil {
			return nil, fmt.Errorf("building health checker: %w", err)
		}

		staleAfter := cfg.Network.Timeouts.ParentLock * staleAfterFactor
		if err := m.RegisterHealthChecks(d.checker, staleAfter); err != nil {
			return nil, fmt.Errorf("registering health checks: %w", err)
		}

		d.remediate = health.NewRemediator(defaultRemediationThreshold)
		d.remediate.Register("channel_liveness", func(ctx context.Context) error {
			logger.Warn("remediating dead channel by forcing unmount")
			return m.Unmount(ctx)
		})
	}

	return d, nil
}

// Start initializes the mount, attaches its channel, and brings up the
// metrics and health-check servers.
func (d *Daemon) Start(ctx context.Context) error {
	if d.started {
		return fmt.Errorf("adapter: already started")
	}

	if err := d.mount.Initialize(ctx, nil, nil); err != nil {
		return fmt.Errorf("initializing mount: %w", err)
	}
	if err := d.mount.StartChannel(ctx, d.config.Mount.ReadOnly); err != nil {
		return fmt.Errorf("starting channel: %w", err)
	}

	if d.metrics != nil {
		if err := d.metrics.Start(ctx); err != nil {
			return fmt.Errorf("starting metrics server: %w", err)
		}
	}

	if d.checker != nil {
		if err := d.checker.Start(ctx); err != nil {
			return fmt.Errorf("starting health checker: %w", err)
		}
		go d.watchHealth(ctx)
	}

	d.started = true
	d.logger.Info("daemon started", map[string]interface{}{"mount_path": d.config.Mount.MountPath})
	return nil
}

// watchHealth polls the checker on the configured interval and feeds every
// result into the remediator, until ctx is canceled.
func (d *Daemon) watchHealth(ctx context.Context) {
	interval := d.config.Monitoring.HealthChecks.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			results, err := d.checker.RunAllChecks(ctx)
			if err != nil {
				d.logger.Warn("health check round failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			for _, r := range results {
				if err := d.remediate.Observe(ctx, r); err != nil {
					d.logger.Error("remediation failed", map[string]interface{}{"check": r.Check, "error": err.Error()})
				}
			}
		}
	}
}

// Stop detaches the channel, unwinds the mount, and stops the metrics and
// health-check servers. Collaborator failures are collected and returned
// together rather than aborting the rest of shutdown early.
func (d *Daemon) Stop(ctx context.Context) error {
	if !d.started {
		return fmt.Errorf("adapter: not started")
	}

	var errs []error
	if _, err := d.mount.Shutdown(ctx, false, true); err != nil {
		errs = append(errs, fmt.Errorf("mount shutdown: %w", err))
	}
	if d.checker != nil {
		if err := d.checker.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("health checker stop: %w", err))
		}
	}
	if d.metrics != nil {
		if err := d.metrics.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics stop: %w", err))
		}
	}

	d.started = false
	if len(errs) > 0 {
		return fmt.Errorf("adapter: %d error(s) during shutdown: %v", len(errs), errs)
	}
	return nil
}

// Mount returns the daemon's underlying mount, mainly for tests to inspect
// its state.
func (d *Daemon) Mount() *mount.Mount { return d.mount }

func newLogger(g config.GlobalConfig, l config.LoggingConfig) (*telemetry.Logger, error) {
	level, err := telemetry.ParseLevel(g.LogLevel)
	if err != nil {
		level = telemetry.INFO
	}

	format := telemetry.FormatText
	if l.Format == "json" {
		format = telemetry.FormatJSON
	}

	tc := &telemetry.Config{
		Level:         level,
		Output:        os.Stdout,
		Format:        format,
		IncludeCaller: true,
	}

	if g.LogFile != "" {
		f, err := os.OpenFile(g.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file %s: %w", g.LogFile, err)
		}
		tc.Output = f
	}

	return telemetry.New(tc)
}

func newStore(ctx context.Context, oc config.ObjectStoreConfig) (objectstore.Store, error) {
	cfg := objectstore.NewDefaultConfig()
	cfg.Bucket = oc.Bucket
	cfg.Region = oc.Region
	cfg.Endpoint = oc.Endpoint
	cfg.PoolSize = oc.ConnectionPoolSize
	cfg.RequestTimeout = oc.RequestTimeout

	return objectstore.NewS3Backend(ctx, cfg, slog.Default())
}

func protocolFor(p config.MountProtocol) mount.Protocol {
	switch p {
	case config.ProtocolNFS:
		return mount.ProtocolNFS
	case config.ProtocolProjection:
		return mount.ProtocolProjection
	default:
		return mount.ProtocolFUSE
	}
}
