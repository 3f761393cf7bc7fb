// Package observability provides OpenTelemetry tracing and metrics setup for
// permgate, plus the instruments recorded by permission gates.
//
// Setup:
//
//	shutdown, err := observability.Setup(ctx, cfg, observability.ServiceInfo{Name: "permgate"})
//	defer shutdown(context.Background())
//
// Gate instruments:
//
//	m, err := observability.NewGateMetrics(observability.Meter("permgate"))
//	m.RecordCheck(ctx)
//
// Spans:
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanGateCheck)
//	defer span.End()
//
// Health:
//
//	health := observability.NewServiceHealth("permgate", version)
//	health.AddComponent(session.CheckHealth(ctx))
package observability
