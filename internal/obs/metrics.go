package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics names and label cardinality are grounded on go/network/metrics.go's
// promauto.NewCounterVec style: one counter per outcome, labels naming the
// dimensions operators actually filter on (service type, escalation type,
// alert severity) rather than every possible field.

var (
	DispatchAssignedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_assigned_total",
		Help: "counter of orders successfully assigned to a driver",
	}, []string{"service_type", "assignment_type"})

	DispatchRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_offer_rejected_total",
		Help: "counter of offers rejected or timed out",
	}, []string{"service_type"})

	DispatchNoDriversTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_no_drivers_total",
		Help: "counter of orders that exhausted the candidate search with no qualifying driver",
	}, []string{"service_type"})

	DispatchScoreHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_candidate_score",
		Help:    "distribution of composite candidate scores considered during dispatch",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"service_type"})

	RouteOptimizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "route_optimized_total",
		Help: "counter of route re-optimizations that activated a new route",
	}, []string{"reason"})

	RouteImprovementHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "route_improvement_ratio",
		Help:    "distribution of distance-improvement ratio for accepted route re-optimizations",
		Buckets: prometheus.LinearBuckets(0, 0.05, 10),
	}, []string{})

	BatchCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "batch_created_total",
		Help: "counter of order batches created by the batching engine",
	}, []string{"service_type"})

	EscalationFiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_fired_total",
		Help: "counter of escalations raised, by type",
	}, []string{"escalation_type"})

	SLABreachTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sla_breach_total",
		Help: "counter of orders that terminated past their SLA deadline",
	}, []string{"service_type", "preventable"})

	DriverPoolGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "driver_pool_size",
		Help: "current number of drivers in each state",
	}, []string{"state"})

	ActiveOffersGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dispatch_active_offers",
		Help: "current number of outstanding (unexpired) offer leases",
	}, []string{})
)
