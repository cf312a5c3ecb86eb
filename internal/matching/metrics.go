// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks matching pipeline outcomes. A nil *Metrics is a no-op so
// tests can run the service without a registry.
type Metrics struct {
	EnrollmentsTotal   prometheus.Counter
	DuplicatesRejected prometheus.Counter
	RevocationsTotal   prometheus.Counter
	StoreErrorsTotal   prometheus.Counter
	SearchDuration     prometheus.Histogram
}

// NewMetrics registers the matching metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EnrollmentsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "vface_enrollments_total",
			Help: "Total number of successful identity enrollments",
		}),
		DuplicatesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "vface_enroll_duplicates_rejected_total",
			Help: "Total number of enrollments rejected by the duplicate-identity check",
		}),
		RevocationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "vface_revocations_total",
			Help: "Total number of identity revocations",
		}),
		StoreErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "vface_store_errors_total",
			Help: "Total number of vector store failures surfaced to callers",
		}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vface_search_duration_seconds",
			Help:    "Wall-clock duration of similarity searches",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) incEnrollments() {
	if m != nil {
		m.EnrollmentsTotal.Inc()
	}
}

func (m *Metrics) incDuplicates() {
	if m != nil {
		m.DuplicatesRejected.Inc()
	}
}

func (m *Metrics) incRevocations() {
	if m != nil {
		m.RevocationsTotal.Inc()
	}
}

func (m *Metrics) incStoreErrors() {
	if m != nil {
		m.StoreErrorsTotal.Inc()
	}
}

func (m *Metrics) observeSearch(seconds float64) {
	if m != nil {
		m.SearchDuration.Observe(seconds)
	}
}
