package httptransport

import "expvar"

var (
	metricEventStreamsTotal  = expvar.NewInt("admin_event_streams_total")
	metricEventStreamsActive = expvar.NewInt("admin_event_streams_active")

	metricSettingsUpdates = expvar.NewInt("admin_settings_updates_total")
	metricLagResets       = expvar.NewInt("admin_lag_resets_total")
	metricRuleChanges     = expvar.NewInt("admin_access_rule_changes_total")

	metricAuthFailures = expvar.NewInt("admin_auth_failures_total")
)
