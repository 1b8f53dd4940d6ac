/*
Package metrics instruments scmfs's mount lifecycle and checkout engine with
Prometheus metrics, served over an HTTP endpoint via
github.com/prometheus/client_golang.

# Metrics

  - checkout_total{mode,status} — checkout attempts by mode (DRY_RUN,
    NORMAL, FORCE) and outcome.
  - checkout_phase_duration_seconds{phase} — per-phase timing matching the
    CheckoutTimes stopwatch (acquire_parent_lock, fetch_trees, diff,
    acquire_rename_lock, apply, finish).
  - checkout_conflicts_total{mode} — conflicts surfaced by checkout.
  - object_store_trees_fetched_total / object_store_blobs_fetched_total —
    fetch-context statistics aggregated across diff and checkout.
  - mount_state — current MountState as a gauge.
  - tree_prefetches_in_flight — current prefetch lease count.
  - channel_attach_total{protocol,status} — channel attach attempts.

Usage:

	collector, err := metrics.NewCollector(&metrics.Config{Enabled: true, Port: 8080})
	if err != nil {
		log.Fatal(err)
	}
	if err := collector.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer collector.Stop(ctx)
*/
package metrics
