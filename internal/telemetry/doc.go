// Package telemetry provides OpenTelemetry instrumentation for causalityd.
//
// It manages the TracerProvider and MeterProvider lifecycle, OTLP export
// over gRPC or HTTP, and graceful shutdown. Telemetry failures never crash
// the application; the instance degrades to no-op providers.
//
// Usage:
//
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	meter := tel.Meter("github.com/fyrsmithlabs/causalityd/internal/tracker")
//	counter, _ := meter.Int64Counter("causalityd.tracker.chains_started_total")
package telemetry
