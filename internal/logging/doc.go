// Package logging provides structured logging for orchard runs.
//
// It wraps Go's log/slog with a JSON handler. A run writes to
// {dir}/debug.log, or to stderr when no directory is configured.
//
// Child loggers carry persistent attributes:
//
//	logger, err := logging.NewLogger("/tmp/orchard", logging.LevelInfo)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	chainLogger := logger.WithRun(runID).WithChain(3)
//	chainLogger.Debug("chain finished", "explored", 120, "cut", 80)
//
// Output:
//
//	{"time":"...","level":"DEBUG","msg":"chain finished","run_id":"...","chain":3,"explored":120,"cut":80}
//
// All types in this package are safe for concurrent use.
package logging
