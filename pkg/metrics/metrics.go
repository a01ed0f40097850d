package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Gauges refreshed by the Collector
	OrdersByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "brigade_orders",
			Help: "Number of orders by status",
		},
		[]string{"status"},
	)

	LowStockItems = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "brigade_inventory_low_stock_items",
			Help: "Number of active inventory items at or below their minimum stock",
		},
	)

	PendingEffects = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "brigade_outbox_pending_effects",
			Help: "Number of order side effects waiting in the outbox",
		},
	)

	// Order metrics
	OrdersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brigade_orders_created_total",
			Help: "Total number of orders created",
		},
	)

	OrderTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brigade_order_transitions_total",
			Help: "Total number of order status transitions by source and target status",
		},
		[]string{"from", "to"},
	)

	OrderTransitionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brigade_order_transitions_rejected_total",
			Help: "Total number of rejected order status transitions by reason",
		},
		[]string{"reason"},
	)

	// Inventory metrics
	DeductionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brigade_inventory_deductions_total",
			Help: "Total number of order deductions by result (applied, skipped, empty, failed)",
		},
		[]string{"result"},
	)

	StockClampsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brigade_inventory_stock_clamps_total",
			Help: "Total number of deductions clamped at zero stock",
		},
	)

	UnitConversionDrops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brigade_inventory_unit_conversion_drops_total",
			Help: "Total number of recipe contributions dropped for incompatible units",
		},
	)

	InventoryMovementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brigade_inventory_movements_total",
			Help: "Total number of inventory movements by kind and origin",
		},
		[]string{"kind", "origin"},
	)

	// Alert metrics
	AlertsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brigade_alerts_dispatched_total",
			Help: "Total number of alerts dispatched by type and priority",
		},
		[]string{"type", "priority"},
	)

	AlertPersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brigade_alert_persist_failures_total",
			Help: "Total number of alerts emitted but not persisted",
		},
	)

	// Real-time metrics
	WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "brigade_websocket_connections",
			Help: "Number of open websocket connections",
		},
	)

	EventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brigade_events_dropped_total",
			Help: "Total number of events dropped for slow subscribers",
		},
	)

	RelayMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brigade_relay_messages_total",
			Help: "Total number of events relayed through the message broker by direction and result",
		},
		[]string{"direction", "result"},
	)

	// Reconciler metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "brigade_reconciliation_duration_seconds",
			Help:    "Duration of reconciliation cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brigade_reconciliation_cycles_total",
			Help: "Total number of reconciliation cycles",
		},
	)

	OutboxEffectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brigade_outbox_effects_total",
			Help: "Total number of outbox effect executions by kind and result",
		},
		[]string{"kind", "result"},
	)

	SweepRepairedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brigade_sweep_repaired_orders_total",
			Help: "Total number of fulfilled orders deducted by the reconciliation sweep",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brigade_api_requests_total",
			Help: "Total number of API requests by method, route and status",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brigade_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(OrdersByStatus)
	prometheus.MustRegister(LowStockItems)
	prometheus.MustRegister(PendingEffects)
	prometheus.MustRegister(OrdersCreatedTotal)
	prometheus.MustRegister(OrderTransitionsTotal)
	prometheus.MustRegister(OrderTransitionsRejected)
	prometheus.MustRegister(DeductionsTotal)
	prometheus.MustRegister(StockClampsTotal)
	prometheus.MustRegister(UnitConversionDrops)
	prometheus.MustRegister(InventoryMovementsTotal)
	prometheus.MustRegister(AlertsDispatchedTotal)
	prometheus.MustRegister(AlertPersistFailures)
	prometheus.MustRegister(WebsocketConnections)
	prometheus.MustRegister(EventsDroppedTotal)
	prometheus.MustRegister(RelayMessagesTotal)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(OutboxEffectsTotal)
	prometheus.MustRegister(SweepRepairedTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
