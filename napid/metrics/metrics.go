// Package metrics holds the daemon's prometheus collectors.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "napi"

// Collector is a prometheus.Collector covering the IP allocator and the
// REST surface. It satisfies the allocator metrics hooks consumed by the
// models layer.
type Collector struct {
	allocations         *prometheus.CounterVec
	allocationConflicts *prometheus.CounterVec
	requests            *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		allocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "ip_allocations_total",
				Help:      "IP allocation attempts by outcome (ok, conflict, subnet_full, pool_full).",
			}, []string{"outcome"},
		),
		allocationConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "ip_allocation_conflicts_total",
				Help:      "Claim races lost during IP allocation, by network.",
			}, []string{"network_uuid"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "api_requests_total",
				Help:      "Completed API requests by endpoint, method and status.",
			}, []string{"endpoint", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "api_request_duration_seconds",
				Help:      "Time taken to serve an API request.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			}, []string{"endpoint"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.allocations.Describe(ch)
	c.allocationConflicts.Describe(ch)
	c.requests.Describe(ch)
	c.requestDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.allocations.Collect(ch)
	c.allocationConflicts.Collect(ch)
	c.requests.Collect(ch)
	c.requestDuration.Collect(ch)
}

// AllocationOutcome counts one finished allocation attempt.
func (c *Collector) AllocationOutcome(outcome string) {
	c.allocations.WithLabelValues(outcome).Inc()
}

// AllocationConflict counts one lost claim race on a network.
func (c *Collector) AllocationConflict(networkUUID string) {
	c.allocationConflicts.WithLabelValues(networkUUID).Inc()
}

// ObserveRequest records one completed API request.
func (c *Collector) ObserveRequest(endpoint string, method string, status int, seconds float64) {
	c.requests.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(endpoint).Observe(seconds)
}
