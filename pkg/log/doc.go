/*
Package log provides structured logging for the storage substrate using
zerolog: a single global Logger initialized via Init, component loggers
via WithComponent, and context loggers scoped to an environment path,
a transaction sequence number, or a session cache entry.

# Usage

	import "github.com/cuemby/stronglink/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	dbLog := log.WithComponent("db")
	dbLog.Debug().Int("writes", n).Msg("transaction committed")

	log.WithEnv(path).Info().Msg("environment opened")
	log.WithTxnID(seq).Warn().Msg("nested read-write commit rejected")
	log.WithSessionID(sessionID).Debug().Msg("session forgotten")

# Log levels

Debug is for per-operation detail (cursor state transitions, staging
index drains); Info is for lifecycle events (environment open/close,
user creation); Warn is for recoverable anomalies (a comparator swap
after the environment already has staged writes); Error is for
operation failures a caller should see in its own return value too,
logged here only for aggregation. Fatal exits the process and is
reserved for startup failures in cmd/slstore.
*/
package log
