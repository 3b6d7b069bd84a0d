package occurrences

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the occurrence domain metrics
type Metrics struct {
	Created     *prometheus.CounterVec
	Allocations *prometheus.CounterVec
	Duplicates  prometheus.Gauge
}

// NewMetrics creates and registers the occurrence metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Created: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civil_defense_occurrences_created_total",
			Help: "Total number of occurrences created, by category",
		}, []string{"category"}),
		Allocations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civil_defense_ra_allocations_total",
			Help: "Registration number allocations, by strategy and result",
		}, []string{"strategy", "result"}),
		Duplicates: factory.NewGauge(prometheus.GaugeOpts{
			Name: "civil_defense_ra_duplicates",
			Help: "Registration numbers of the current year held by more than one occurrence, as of the last audit",
		}),
	}
}

// IncrementCreated records a successful creation
func (m *Metrics) IncrementCreated(category string) {
	if m == nil {
		return
	}
	m.Created.WithLabelValues(category).Inc()
}

// SetDuplicates records the result of a registration number audit
func (m *Metrics) SetDuplicates(n int) {
	if m == nil {
		return
	}
	m.Duplicates.Set(float64(n))
}

// InstrumentAllocator counts the allocations made through next under the
// strategy label
func (m *Metrics) InstrumentAllocator(strategy string, next Allocator) Allocator {
	if m == nil {
		return next
	}
	return &instrumentedAllocator{strategy: strategy, next: next, metrics: m}
}

type instrumentedAllocator struct {
	strategy string
	next     Allocator
	metrics  *Metrics
}

func (a *instrumentedAllocator) Next(ctx context.Context) (string, error) {
	ra, err := a.next.Next(ctx)
	result := "ok"
	if err != nil {
		result = "error"
	}
	a.metrics.Allocations.WithLabelValues(a.strategy, result).Inc()
	return ra, err
}
