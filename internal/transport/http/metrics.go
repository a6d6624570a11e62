package httptransport

import "expvar"

var (
	metricHTTPEngineErrors = expvar.NewInt("http_engine_errors_total")

	metricSSEConnectionsTotal  = expvar.NewInt("sse_connections_total")
	metricSSEConnectionsActive = expvar.NewInt("sse_connections_active")
)
