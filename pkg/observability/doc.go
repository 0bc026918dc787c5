/*
Package observability turns engine events into logs, metrics and traces.

Every observer consumes the event bus and never touches the run itself: a slow
or failing observer cannot change the outcome of an execution.

	metrics, _ := observability.NewMetrics(prometheus.DefaultRegisterer)
	metrics.Attach(engine.Events())
	observability.NewTracer(otel.GetTracerProvider()).Attach(engine.Events())
*/
package observability
