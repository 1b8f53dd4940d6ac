/*
Package config provides configuration loading and validation for the scmfs
mount daemon.

# Configuration Sources

Configuration layers, in increasing precedence: compiled-in defaults
(NewDefault), a YAML file (LoadFromFile), then environment variables
(LoadFromEnv, prefixed SCMFS_).

# Sections

Global holds process-wide log/metrics/health settings. Mount holds the
immutable per-mount checkout configuration: mount path, client directory,
case-sensitivity and UTF-8 flags, overlay type, and mount protocol
(fuse/nfs/projection). ObjectStore configures the content-addressed backend
connection. Cache tunes the blob/tree cache. Network groups the timeout,
retry, and circuit-breaker settings shared by the object-store client and
the privileged-helper RPC client — including the 500ms ParentCommit lock
timeout, from which the daemon derives the health check's parent-lock
staleness threshold (checkout and diff use a fixed 500ms bound of their
own). Monitoring configures
metrics, health checks, and structured logging. Features holds toggles such
as prefetching, plus DiffHoldParentLock, which no code reads: diff never
holds the parent lock for its full duration.

Usage:

	cfg := config.NewDefault()
	if err := cfg.LoadFromFile("/etc/scmfs/config.yaml"); err != nil {
		log.Fatal(err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
*/
package config
