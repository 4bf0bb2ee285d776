/*
Package metrics provides Prometheus metrics collection and exposition
for the storage substrate.

Metrics are defined and registered at package init and exposed over
HTTP via Handler() for scraping by a Prometheus server.

# Transaction metrics

	slstore_txn_begun_total{mode}
	slstore_txn_committed_total{mode}
	slstore_txn_aborted_total{mode}
	slstore_txn_duration_seconds
	slstore_commit_duration_seconds
	slstore_staging_index_entries

mode is "read" or "read_write". slstore_commit_duration_seconds times
only the drain-into-persistent-store step of Commit, the part that is
serialized against other committers; slstore_txn_duration_seconds times
the whole Begin-to-Commit/Abort span, most of which runs unserialized.

# Cursor metrics

	slstore_cursor_state_total{state}

state is one of "invalid", "equal", "pending", "persist", incremented
once per merged-cursor resolution. A workload with a healthy staging
index drain should see its "pending"/"equal" share fall after a commit
and rise again as new writes accumulate.

# Session cache metrics

	slstore_sessions_active
	slstore_session_resolutions_total{result}
	slstore_users_created_total

result is "anonymous" (empty or malformed cookie), "resolved" (cookie
matched a live session), or "rejected" (well-formed cookie, wrong key
or unknown session ID).

# Usage

	import "github.com/cuemby/stronglink/pkg/metrics"

	timer := metrics.NewTimer()
	err := txn.Commit()
	timer.ObserveDuration(metrics.CommitDuration)

	metrics.TxnCommittedTotal.WithLabelValues("read_write").Inc()
*/
package metrics
