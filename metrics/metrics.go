// Package metrics provides Prometheus metrics for the pharmacy ledger.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/pharmacy-ledger/pharmacy"
)

// Metrics holds all application metrics
type Metrics struct {
	PrescriptionsFulfilled prometheus.Counter
	FulfillmentsRejected   *prometheus.CounterVec
	PrescriptionsBilled    *prometheus.CounterVec
	SalesAmount            *prometheus.CounterVec
	MedicinesInStock       prometheus.Gauge
	MedicinesLowStock      prometheus.Gauge
	PrescriptionsPending   prometheus.Gauge
	AuditEntries           *prometheus.CounterVec
	RequestDuration        *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them with reg. Pass
// prometheus.NewRegistry() in tests to avoid global state.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		PrescriptionsFulfilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pharmacy_prescriptions_fulfilled_total",
			Help: "Total prescriptions fulfilled",
		}),
		FulfillmentsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pharmacy_fulfillments_rejected_total",
			Help: "Fulfillment attempts rejected, by reason",
		}, []string{"reason"}),
		PrescriptionsBilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pharmacy_prescriptions_billed_total",
			Help: "Total prescriptions billed, by payment type",
		}, []string{"payment_type"}),
		SalesAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pharmacy_sales_amount_total",
			Help: "Billed amount, by payment type",
		}, []string{"payment_type"}),
		MedicinesInStock: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pharmacy_medicines",
			Help: "Medicines on record",
		}),
		MedicinesLowStock: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pharmacy_medicines_low_stock",
			Help: "Medicines below the low-stock threshold",
		}),
		PrescriptionsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pharmacy_prescriptions_pending",
			Help: "Prescriptions not yet filled",
		}),
		AuditEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pharmacy_audit_entries_total",
			Help: "Audit entries by delivery outcome (written, dropped, failed)",
		}, []string{"outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pharmacy_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "route", "status"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.PrescriptionsFulfilled,
		m.FulfillmentsRejected,
		m.PrescriptionsBilled,
		m.SalesAmount,
		m.MedicinesInStock,
		m.MedicinesLowStock,
		m.PrescriptionsPending,
		m.AuditEntries,
		m.RequestDuration,
	)

	return m
}

// Handler returns the Prometheus HTTP handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Fulfilled records the outcome of a fulfillment attempt.
func (m *Metrics) Fulfilled(err error) {
	if err == nil {
		m.PrescriptionsFulfilled.Inc()
		return
	}
	m.FulfillmentsRejected.WithLabelValues(rejectReason(err)).Inc()
}

func (m *Metrics) Billed(tx pharmacy.Transaction) {
	pt := string(tx.PaymentType)
	m.PrescriptionsBilled.WithLabelValues(pt).Inc()
	amount, _ := tx.TotalAmount.Round(2).Float64()
	m.SalesAmount.WithLabelValues(pt).Add(amount)
}

// ObserveInventory refreshes the gauges from current ledger contents.
func (m *Metrics) ObserveInventory(l *pharmacy.Ledger) {
	meds := l.Medicines()
	m.MedicinesInStock.Set(float64(len(meds)))
	m.MedicinesLowStock.Set(float64(len(l.LowStock())))

	pending := 0
	for _, p := range l.Prescriptions() {
		if !p.Filled {
			pending++
		}
	}
	m.PrescriptionsPending.Set(float64(pending))
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.RequestDuration.WithLabelValues(method, route, statusClass(status)).Observe(elapsed.Seconds())
}

// audit.Observer

func (m *Metrics) AuditWritten() { m.AuditEntries.WithLabelValues("written").Inc() }
func (m *Metrics) AuditDropped() { m.AuditEntries.WithLabelValues("dropped").Inc() }
func (m *Metrics) AuditFailed()  { m.AuditEntries.WithLabelValues("failed").Inc() }

func rejectReason(err error) string {
	switch {
	case errors.Is(err, pharmacy.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, pharmacy.ErrNotFound):
		return "not_found"
	case errors.Is(err, pharmacy.ErrInvalidState):
		return "invalid_state"
	}
	return "other"
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	}
	return "2xx"
}
