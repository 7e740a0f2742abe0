package udp

import "expvar"

var (
	metricDatagramsIn      = expvar.NewInt("udp_datagrams_in_total")
	metricDatagramsOut     = expvar.NewInt("udp_datagrams_out_total")
	metricDatagramsDropped = expvar.NewInt("udp_datagrams_dropped_total")
	metricUnknownSender    = expvar.NewInt("udp_unknown_sender_total")
	metricConnects         = expvar.NewInt("udp_connects_total")
	metricServerFull       = expvar.NewInt("udp_server_full_total")
	metricSendErrors       = expvar.NewInt("udp_send_errors_total")
	metricSessionsActive   = expvar.NewInt("udp_sessions_active")
)
