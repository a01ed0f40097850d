/*
Package metrics defines brigade's Prometheus metrics and the component
health registry behind /health and /ready.

All metrics are registered with the default registry at init and served by
Handler at /metrics.

# Metrics

Orders:

	brigade_orders{status}                               gauge, sampled by Collector
	brigade_orders_created_total                         counter
	brigade_order_transitions_total{from,to}             counter
	brigade_order_transitions_rejected_total{reason}     counter (unknown_status, not_allowed, conflict)

Inventory:

	brigade_inventory_low_stock_items                    gauge, sampled by Collector
	brigade_inventory_deductions_total{result}           counter (applied, skipped, failed)
	brigade_inventory_stock_clamps_total                 counter
	brigade_inventory_unit_conversion_drops_total        counter
	brigade_inventory_movements_total{kind,origin}       counter

Alerts and transport:

	brigade_alerts_dispatched_total{type,priority}       counter
	brigade_alert_persist_failures_total                 counter
	brigade_websocket_connections                        gauge
	brigade_events_dropped_total                         counter
	brigade_relay_messages_total{direction,result}       counter

Reconciliation:

	brigade_reconciliation_duration_seconds              histogram
	brigade_reconciliation_cycles_total                  counter
	brigade_outbox_pending_effects                       gauge, sampled by Collector
	brigade_outbox_effects_total{kind,result}            counter
	brigade_sweep_repaired_orders_total                  counter

HTTP:

	brigade_api_requests_total{method,path,status}       counter, see GinMiddleware
	brigade_api_request_duration_seconds{method,path}    histogram

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconciliationDuration)

# Health

Components either push their state (RegisterComponent, UpdateComponent) or
register a Probe that runs on every request. Only critical components gate
readiness; /health reports every component.

	metrics.RegisterProbe("storage", true, store.Ping)
	metrics.RegisterComponent("relay", false, false, "connecting")
	metrics.UpdateComponent("relay", true, "connected")
*/
package metrics
