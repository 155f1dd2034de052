/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the Ledger with realistic
	data for demos and manual testing. Each scenario creates medicines and
	prescriptions, and moves some of them through fulfill and bill.

AVAILABLE SCENARIOS:

	well-stocked:  Healthy inventory, nothing pending
	low-stock:     Shelves running low; one prescription cannot be filled
	expired-stock: Expired and controlled medicines for the admin reports
	billing-day:   A day of sales across cash, GCash and PayMaya

HOW SCENARIOS WORK:
 1. Reset the Ledger (users and id sequences are kept)
 2. Add medicines
 3. Add prescriptions
 4. Optionally fulfill and bill some of them

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "billing-day"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add it to the loaders map

NOTE:

	Scenarios wipe every medicine, prescription and transaction. Only use
	in development/demo environments.

SEE ALSO:
  - server.go: Scenario routes (admin only)
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/pharmacy-ledger/pharmacy"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "well-stocked",
		Name:        "Well Stocked",
		Description: "Healthy inventory of common medicines, no prescriptions",
		Category:    "inventory",
	},
	{
		ID:          "low-stock",
		Name:        "Low Stock",
		Description: "Several medicines below the threshold; one pending prescription exceeds stock",
		Category:    "inventory",
	},
	{
		ID:          "expired-stock",
		Name:        "Expired Stock",
		Description: "Expired and controlled medicines for the admin reports",
		Category:    "inventory",
	},
	{
		ID:          "billing-day",
		Name:        "Billing Day",
		Description: "Prescriptions filled and billed with every payment type, plus open work",
		Category:    "sales",
	},
}

func (h *Handler) scenarioLoaders() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"well-stocked":  h.loadWellStockedScenario,
		"low-stock":     h.loadLowStockScenario,
		"expired-stock": h.loadExpiredStockScenario,
		"billing-day":   h.loadBillingDayScenario,
	}
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the Ledger and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}
	load, ok := h.scenarioLoaders()[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("%q", req.ScenarioID))
		return
	}

	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	if err := h.resetLedger(); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset ledger", err)
		return
	}
	h.currentScenario = ""

	if err := load(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID
	h.logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// resetLedger drops every record except users. Sequences are kept so ids
// issued before the reset are never handed out again.
func (h *Handler) resetLedger() error {
	snap := h.Ledger.Snapshot()
	return h.Ledger.Restore(pharmacy.Snapshot{Users: snap.Users, Sequences: snap.Sequences})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

type demoMedicine struct {
	name       string
	desc       string
	qty        int
	price      string
	expiry     pharmacy.Date
	controlled bool
}

// addMedicines adds meds in order and returns their ids by name.
func (h *Handler) addMedicines(ctx context.Context, meds []demoMedicine) (map[string]int, error) {
	ids := make(map[string]int, len(meds))
	for _, m := range meds {
		price, err := decimal.NewFromString(m.price)
		if err != nil {
			return nil, fmt.Errorf("medicine %s: %w", m.name, err)
		}
		added, err := h.Ledger.AddMedicine(ctx, pharmacy.MedicineInput{
			Name:        m.name,
			Description: m.desc,
			Quantity:    m.qty,
			Price:       price,
			Expiry:      m.expiry,
			Controlled:  m.controlled,
		})
		if err != nil {
			return nil, fmt.Errorf("medicine %s: %w", m.name, err)
		}
		ids[m.name] = added.ID
	}
	return ids, nil
}

func (h *Handler) addPrescription(ctx context.Context, patient, doctor string, date pharmacy.Date, items ...pharmacy.Item) (pharmacy.Prescription, error) {
	p, err := h.Ledger.AddPrescription(ctx, pharmacy.PrescriptionInput{
		PatientName: patient,
		DoctorName:  doctor,
		Date:        date,
		Items:       items,
	})
	if err != nil {
		return pharmacy.Prescription{}, fmt.Errorf("prescription for %s: %w", patient, err)
	}
	return p, nil
}

// yearsFromNow keeps demo expiry dates valid whenever the scenario is loaded.
func (h *Handler) yearsFromNow(years, month, day int) pharmacy.Date {
	return pharmacy.MustDate(day, month, h.now().Year()+years)
}

func (h *Handler) loadWellStockedScenario(ctx context.Context) error {
	_, err := h.addMedicines(ctx, []demoMedicine{
		{"Paracetamol 500mg", "Analgesic, tablet", 250, "2.50", h.yearsFromNow(2, 6, 30), false},
		{"Amoxicillin 500mg", "Antibiotic, capsule", 120, "8.75", h.yearsFromNow(1, 11, 15), false},
		{"Cetirizine 10mg", "Antihistamine, tablet", 90, "4.20", h.yearsFromNow(2, 3, 1), false},
		{"Losartan 50mg", "Antihypertensive, tablet", 150, "11.00", h.yearsFromNow(1, 9, 30), false},
		{"Metformin 500mg", "Antidiabetic, tablet", 200, "3.60", h.yearsFromNow(2, 1, 31), false},
		{"Salbutamol Inhaler", "Bronchodilator, 100mcg", 35, "185.00", h.yearsFromNow(1, 8, 31), false},
	})
	return err
}

func (h *Handler) loadLowStockScenario(ctx context.Context) error {
	ids, err := h.addMedicines(ctx, []demoMedicine{
		{"Paracetamol 500mg", "Analgesic, tablet", 8, "2.50", h.yearsFromNow(2, 6, 30), false},
		{"Amoxicillin 500mg", "Antibiotic, capsule", 3, "8.75", h.yearsFromNow(1, 11, 15), false},
		{"Cetirizine 10mg", "Antihistamine, tablet", 0, "4.20", h.yearsFromNow(2, 3, 1), false},
		{"Losartan 50mg", "Antihypertensive, tablet", 60, "11.00", h.yearsFromNow(1, 9, 30), false},
	})
	if err != nil {
		return err
	}

	today := pharmacy.DateOf(h.now())
	// Needs 21 capsules with 3 on hand: fulfillment is refused
	if _, err := h.addPrescription(ctx, "Andres Bonifacio", "Dr. Jose Rizal", today,
		pharmacy.Item{MedicineID: ids["Amoxicillin 500mg"], Quantity: 21},
		pharmacy.Item{MedicineID: ids["Paracetamol 500mg"], Quantity: 6},
	); err != nil {
		return err
	}
	_, err = h.addPrescription(ctx, "Gabriela Silang", "Dr. Jose Rizal", today,
		pharmacy.Item{MedicineID: ids["Losartan 50mg"], Quantity: 30},
	)
	return err
}

func (h *Handler) loadExpiredStockScenario(ctx context.Context) error {
	_, err := h.addMedicines(ctx, []demoMedicine{
		{"Ibuprofen 400mg", "NSAID, tablet", 40, "5.25", h.yearsFromNow(-1, 12, 31), false},
		{"Co-amoxiclav 625mg", "Antibiotic, tablet", 14, "32.00", h.yearsFromNow(-1, 6, 30), false},
		{"Paracetamol 500mg", "Analgesic, tablet", 250, "2.50", h.yearsFromNow(2, 6, 30), false},
		{"Tramadol 50mg", "Opioid analgesic, capsule", 30, "18.50", h.yearsFromNow(1, 4, 30), true},
		{"Diazepam 5mg", "Benzodiazepine, tablet", 5, "9.80", h.yearsFromNow(-1, 10, 31), true},
		{"Morphine 10mg/ml", "Opioid, ampoule", 12, "145.00", h.yearsFromNow(1, 2, 28), true},
	})
	return err
}

func (h *Handler) loadBillingDayScenario(ctx context.Context) error {
	ids, err := h.addMedicines(ctx, []demoMedicine{
		{"Paracetamol 500mg", "Analgesic, tablet", 250, "2.50", h.yearsFromNow(2, 6, 30), false},
		{"Amoxicillin 500mg", "Antibiotic, capsule", 120, "8.75", h.yearsFromNow(1, 11, 15), false},
		{"Cetirizine 10mg", "Antihistamine, tablet", 90, "4.20", h.yearsFromNow(2, 3, 1), false},
		{"Salbutamol Inhaler", "Bronchodilator, 100mcg", 35, "185.00", h.yearsFromNow(1, 8, 31), false},
	})
	if err != nil {
		return err
	}

	today := pharmacy.DateOf(h.now())
	billed := []struct {
		patient string
		items   []pharmacy.Item
		payment pharmacy.PaymentType
		details string
	}{
		{"Juan dela Cruz", []pharmacy.Item{{MedicineID: ids["Amoxicillin 500mg"], Quantity: 21}}, pharmacy.PaymentCash, ""},
		{"Maria Clara", []pharmacy.Item{
			{MedicineID: ids["Paracetamol 500mg"], Quantity: 10},
			{MedicineID: ids["Cetirizine 10mg"], Quantity: 7},
		}, pharmacy.PaymentGCash, "GC-0917-5551234"},
		{"Crisostomo Ibarra", []pharmacy.Item{{MedicineID: ids["Salbutamol Inhaler"], Quantity: 1}}, pharmacy.PaymentPayMaya, "PM-7782-0031"},
	}
	for _, b := range billed {
		p, err := h.addPrescription(ctx, b.patient, "Dr. Santos", today, b.items...)
		if err != nil {
			return err
		}
		if _, err := h.Ledger.FulfillPrescription(ctx, p.ID); err != nil {
			return fmt.Errorf("fulfill prescription %d: %w", p.ID, err)
		}
		if _, err := h.Ledger.BillPrescription(ctx, p.ID, b.payment, b.details); err != nil {
			return fmt.Errorf("bill prescription %d: %w", p.ID, err)
		}
	}

	// Filled but waiting at the counter
	p, err := h.addPrescription(ctx, "Elias Salvador", "Dr. Reyes", today,
		pharmacy.Item{MedicineID: ids["Paracetamol 500mg"], Quantity: 20})
	if err != nil {
		return err
	}
	if _, err := h.Ledger.FulfillPrescription(ctx, p.ID); err != nil {
		return fmt.Errorf("fulfill prescription %d: %w", p.ID, err)
	}

	// Still pending
	_, err = h.addPrescription(ctx, "Sisa Narciso", "Dr. Reyes", today,
		pharmacy.Item{MedicineID: ids["Cetirizine 10mg"], Quantity: 14})
	return err
}
