package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pharmacy-ledger/pharmacy"
)

func TestFulfilled(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Fulfilled(nil)
	m.Fulfilled(nil)
	m.Fulfilled(&pharmacy.InsufficientStockError{MedicineID: 1, Required: 5, Available: 3})
	m.Fulfilled(&pharmacy.NotFoundError{Entity: pharmacy.EntityMedicine, ID: 9})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PrescriptionsFulfilled))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FulfillmentsRejected.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FulfillmentsRejected.WithLabelValues("not_found")))
}

func TestBilled(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Billed(pharmacy.Transaction{PaymentType: pharmacy.PaymentCash, TotalAmount: decimal.RequireFromString("20.00")})
	m.Billed(pharmacy.Transaction{PaymentType: pharmacy.PaymentCash, TotalAmount: decimal.RequireFromString("2.50")})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PrescriptionsBilled.WithLabelValues("cash")))
	assert.InDelta(t, 22.5, testutil.ToFloat64(m.SalesAmount.WithLabelValues("cash")), 1e-9)
}

func TestObserveInventory(t *testing.T) {
	// GIVEN: Two medicines, one of them low, and one pending prescription
	ctx := context.Background()
	l := pharmacy.New(pharmacy.DefaultConfig())
	for _, qty := range []int{2, 50} {
		_, err := l.AddMedicine(ctx, pharmacy.MedicineInput{Name: "A", Quantity: qty, Expiry: pharmacy.MustDate(1, 1, 2030)})
		require.NoError(t, err)
	}
	_, err := l.AddPrescription(ctx, pharmacy.PrescriptionInput{
		PatientName: "P", DoctorName: "D", Date: pharmacy.MustDate(1, 1, 2025),
		Items: []pharmacy.Item{{MedicineID: 1, Quantity: 1}},
	})
	require.NoError(t, err)

	m := New(prometheus.NewRegistry())
	m.ObserveInventory(l)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MedicinesInStock))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MedicinesLowStock))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PrescriptionsPending))
}

func TestAuditObserverAndHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.AuditWritten()
	m.AuditDropped()
	m.ObserveRequest(http.MethodGet, "/api/medicines", http.StatusNotFound, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditEntries.WithLabelValues("written")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditEntries.WithLabelValues("dropped")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pharmacy_http_request_duration_seconds_count{method="GET",route="/api/medicines",status="4xx"} 1`)
}
