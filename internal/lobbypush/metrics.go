package lobbypush

import "expvar"

var (
	metricPushQueuedTotal       = expvar.NewInt("lobby_push_queued_total")
	metricPushDroppedTotal      = expvar.NewInt("lobby_push_dropped_total")
	metricPushRetryTotal        = expvar.NewInt("lobby_push_retry_total")
	metricPushRetryDroppedTotal = expvar.NewInt("lobby_push_retry_dropped_total")
	metricPushSentTotal         = expvar.NewInt("lobby_push_sent_total")
	metricPushFailedTotal       = expvar.NewInt("lobby_push_failed_total")
	metricPushCircuitOpenTotal  = expvar.NewInt("lobby_push_circuit_open_total")
	metricPushQueueLen          = expvar.NewInt("lobby_push_queue_len")
)
