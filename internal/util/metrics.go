package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders committed by the order builder",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of rejected checkout attempts",
	}, []string{"reason"})

	OrderReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_idempotent_replays_total",
		Help: "Total number of checkout requests answered with an existing order",
	})

	PlaceOrderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "place_order_latency_seconds",
		Help:    "Latency of the place order transaction",
		Buckets: prometheus.DefBuckets,
	})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of applied order status transitions",
	}, []string{"track", "status"})

	OrderTransitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_rejected_total",
		Help: "Total number of rejected order status transitions",
	}, []string{"track"})

	StockReservationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservations_failed_total",
		Help: "Total number of failed stock reservations",
	}, []string{"reason"})

	StockMovementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_movements_total",
		Help: "Total number of stock ledger mutations",
	}, []string{"kind"})

	ProductsRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "products_removed_total",
		Help: "Total number of product deletion requests by outcome",
	}, []string{"action"})

	CacheEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_cache_evictions_total",
		Help: "Total number of product cache evictions",
	}, []string{"source"})

	ProductCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_cache_lookups_total",
		Help: "Product snapshot cache lookups by result",
	}, []string{"result"})

	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_consumed_total",
		Help: "Total number of domain events consumed",
	}, []string{"event_type", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
