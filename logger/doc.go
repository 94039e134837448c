// Package logger provides adapters for popular logging libraries to work
// with emberdb's Logger interface.
//
// The standard library's *slog.Logger already satisfies emberdb.Logger
// directly; these adapters cover zap and logrus:
//
//	zl, _ := zap.NewProduction()
//	db, err := emberdb.Open("data.wal", emberdb.WithLogger(logger.NewZap(zl)))
package logger
