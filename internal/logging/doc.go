// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// Logging wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Dual output (stdout + OpenTelemetry)
//   - Automatic context field injection (trace_id, causality chain)
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
// Create logger from config:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, otelProvider)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx := logging.WithTracker(ctx, trk)
//	logger.Info(ctx, "request processed", zap.Duration("duration", d))
//
// With a tracker on the context, every log line carries the flattened
// causality context of the active chain (causalityChainId, causalityEventId,
// causalityDepth, causalityRootCause, causalityEventCount,
// causalityChainDuration), so log lines can be joined back to the chain
// that caused them.
package logging
