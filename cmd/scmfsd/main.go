// Command scmfsd mounts a source-controlled tree as a local filesystem: it
// loads the daemon configuration, wires up the object store, overlay, and
// mount lifecycle through internal/adapter, and runs until it receives
// SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/scmfs/scmfs/internal/adapter"
	"github.com/scmfs/scmfs/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "scmfsd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to a YAML configuration file")
		mountPath  = flag.String("mount", "", "override mount.mount_path from the config file")
		readOnly   = flag.Bool("read-only", false, "override mount.read_only from the config file")
	)
	flag.Parse()

	cfg := config.NewDefault()
	if *configPath != "" {
		if err := cfg.LoadFromFile(*configPath); err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return fmt.Errorf("loading env overrides: %w", err)
	}
	if *mountPath != "" {
		cfg.Mount.MountPath = *mountPath
	}
	if *readOnly {
		cfg.Mount.ReadOnly = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := adapter.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("building daemon: %w", err)
	}

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}

	<-ctx.Done()

	// Stop with a fresh, unbounded context: ctx is already canceled, and
	// shutdown must run to completion regardless of the signal that woke it.
	if err := d.Stop(context.Background()); err != nil {
		return fmt.Errorf("stopping daemon: %w", err)
	}

	return nil
}
