/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:

	Tests that each scenario sets up the expected state:
	- Medicines are created with the expected stock
	- Prescriptions are created, filled and billed as described
	- Reports reflect the scenario

These tests double as integration tests of the Ledger through the API.
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pharmacy-ledger/pharmacy"
)

func (s *testServer) loadScenario(token, id string) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/scenarios/load", token, LoadScenarioRequest{ScenarioID: id})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestListScenarios(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin", "admin123")

	rec := s.do(http.MethodGet, "/api/scenarios", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, len(scenarios))
	loaders := (&Handler{}).scenarioLoaders()
	for _, sc := range list {
		assert.Contains(t, loaders, sc.ID, "scenario %s has no loader", sc.ID)
		assert.NotEmpty(t, sc.Name)
	}
}

func TestScenarios_AdminOnly(t *testing.T) {
	s := newTestServer(t)
	pharmacist := s.login("pharmacist", "pharma123")

	rec := s.do(http.MethodGet, "/api/scenarios", pharmacist, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodPost, "/api/scenarios/load", pharmacist, LoadScenarioRequest{ScenarioID: "well-stocked"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoadScenario_Unknown(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin", "admin123")

	rec := s.do(http.MethodPost, "/api/scenarios/load", admin, LoadScenarioRequest{ScenarioID: "black-friday"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/scenarios/current", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "null", rec.Body.String())
}

func TestWellStockedScenario(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin", "admin123")

	s.loadScenario(admin, "well-stocked")

	meds := s.ledger.Medicines()
	assert.Len(t, meds, 6)
	assert.Empty(t, s.ledger.Prescriptions())
	assert.Empty(t, s.ledger.LowStock())
	assert.Empty(t, s.ledger.Expired(testNow))

	rec := s.do(http.MethodGet, "/api/scenarios/current", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "well-stocked", decode[ScenarioDTO](t, rec).ID)
}

func TestLowStockScenario(t *testing.T) {
	// GIVEN: The low-stock scenario
	s := newTestServer(t)
	admin := s.login("admin", "admin123")
	pharmacist := s.login("pharmacist", "pharma123")
	s.loadScenario(admin, "low-stock")

	// THEN: Three of four medicines are under the threshold
	assert.Len(t, s.ledger.LowStock(), 3)
	rxs := s.ledger.Prescriptions()
	require.Len(t, rxs, 2)

	// WHEN: Filling the prescription that needs more amoxicillin than is on hand
	rec := s.do(http.MethodPost, fmt.Sprintf("/api/prescriptions/%d/fulfill", rxs[0].ID), pharmacist, nil)

	// THEN: It is refused and nothing moves
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "required 21, available 3")
	assert.Len(t, s.ledger.LowStock(), 3)

	// The other one fills
	rec = s.do(http.MethodPost, fmt.Sprintf("/api/prescriptions/%d/fulfill", rxs[1].ID), pharmacist, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestExpiredStockScenario(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin", "admin123")
	s.loadScenario(admin, "expired-stock")

	assert.Len(t, s.ledger.Expired(testNow), 3)
	assert.Len(t, s.ledger.Controlled(), 3)

	r, err := s.ledger.Report(pharmacy.ReportExpired, testNow)
	require.NoError(t, err)
	for _, m := range r.Medicines {
		assert.True(t, m.Expiry.Before(pharmacy.DateOf(testNow)), m.Name)
	}
}

func TestBillingDayScenario(t *testing.T) {
	// GIVEN: The billing-day scenario
	s := newTestServer(t)
	admin := s.login("admin", "admin123")
	s.loadScenario(admin, "billing-day")

	// THEN: Three bills, one filled and waiting, one pending
	require.Len(t, s.ledger.Transactions(), 3)
	var filled, pending int
	for _, p := range s.ledger.Prescriptions() {
		switch p.Status() {
		case pharmacy.StatusFilled:
			filled++
		case pharmacy.StatusPending:
			pending++
		}
	}
	assert.Equal(t, 4, filled)
	assert.Equal(t, 1, pending)

	// AND: Sales split by payment type at catalog prices
	sales := s.ledger.SalesSummary()
	assert.Equal(t, "423.15", pharmacy.FormatMoney(sales.Total))
	require.Len(t, sales.ByPayment, 3)
	assert.Equal(t, "183.75", pharmacy.FormatMoney(sales.ByPayment[0].Total))
	assert.Equal(t, "54.40", pharmacy.FormatMoney(sales.ByPayment[1].Total))
	assert.Equal(t, "185.00", pharmacy.FormatMoney(sales.ByPayment[2].Total))

	// AND: Loader actions are attributed to the admin who loaded it
	require.NoError(t, s.recorder.Close())
	entries, err := s.mem.Entries(context.Background(), "", 0)
	require.NoError(t, err)
	var bills int
	for _, e := range entries {
		if e.Action == pharmacy.AuditPrescriptionBilled {
			assert.Equal(t, "admin", e.Actor)
			bills++
		}
	}
	assert.Equal(t, 3, bills)
}

func TestLoadScenario_ResetKeepsUsersAndSequences(t *testing.T) {
	// GIVEN: One scenario loaded on top of another
	s := newTestServer(t)
	admin := s.login("admin", "admin123")
	s.loadScenario(admin, "billing-day")
	firstMax := 0
	for _, m := range s.ledger.Medicines() {
		firstMax = max(firstMax, m.ID)
	}

	// WHEN: Loading a different one
	s.loadScenario(admin, "well-stocked")

	// THEN: Old records are gone, users survive, ids keep climbing
	assert.Empty(t, s.ledger.Transactions())
	assert.Empty(t, s.ledger.Prescriptions())
	assert.Len(t, s.ledger.Users(), 2)
	for _, m := range s.ledger.Medicines() {
		assert.Greater(t, m.ID, firstMax)
	}

	// The old token still works since users were kept
	rec := s.do(http.MethodGet, "/api/scenarios/current", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "well-stocked", decode[ScenarioDTO](t, rec).ID)
}
