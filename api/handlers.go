/*
handlers.go - HTTP API handlers for the pharmacy ledger

PURPOSE:
  Exposes the pharmacy Ledger via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the Ledger. No business rule lives
  here: stock checks, fill-once and bill-once are all enforced by the Ledger.

ENDPOINTS:
  Auth:
    POST   /api/login                         Exchange credentials for a token
    POST   /api/users                         Create user (admin)

  Medicines:
    GET    /api/medicines                     List medicines (any role)
    GET    /api/medicines/{id}                Get medicine (any role)
    POST   /api/medicines                     Create (admin)
    PATCH  /api/medicines/{id}                Update fields (admin)
    DELETE /api/medicines/{id}                Delete (admin)

  Prescriptions (pharmacist):
    GET    /api/prescriptions                 List
    POST   /api/prescriptions                 Create with items
    GET    /api/prescriptions/{id}            Get
    PATCH  /api/prescriptions/{id}            Update header (pending only)
    DELETE /api/prescriptions/{id}            Delete (pending only)
    POST   /api/prescriptions/{id}/items      Add item (pending only)
    POST   /api/prescriptions/{id}/fulfill    Deduct stock, mark filled
    POST   /api/prescriptions/{id}/bill       Create the transaction
    GET    /api/prescriptions/{id}/transaction Receipt of a billed prescription

  Transactions:
    GET    /api/transactions                  List (admin, pharmacist)
    GET    /api/transactions/{id}             Get

  Admin:
    GET    /api/reports/{kind}                low-stock | expired | controlled | sales
    GET    /api/audit                         Audit trail (?entity=&id=)
    POST   /api/admin/save                    Persist now

  Scenarios (admin, demo data):
    GET    /api/scenarios                     List available scenarios
    GET    /api/scenarios/current             Currently loaded scenario
    POST   /api/scenarios/load                Reset and load a scenario

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, malformed body
  - 401: Bad credentials, missing or invalid token
  - 403: Role lacks the permission
  - 404: Record not found
  - 409: Invalid state, insufficient stock, capacity reached
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Tokens and role gates
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/pharmacy-ledger/metrics"
	"github.com/warp/pharmacy-ledger/pharmacy"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// AuditLog reads back the audit trail. Implemented by the sqlite and memory stores.
type AuditLog interface {
	Entries(ctx context.Context, entity string, id int) ([]pharmacy.AuditEntry, error)
}

// Saver persists the Ledger on demand.
type Saver interface {
	SaveNow(ctx context.Context) error
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger *pharmacy.Ledger

	tokens   *TokenIssuer
	metrics  *metrics.Metrics
	auditLog AuditLog
	saver    Saver
	pinger   Pinger
	logger   *zap.Logger
	now      func() time.Time

	scenarioMu      sync.Mutex
	currentScenario string
}

type HandlerOption func(*Handler)

func WithMetrics(m *metrics.Metrics) HandlerOption { return func(h *Handler) { h.metrics = m } }
func WithAuditLog(a AuditLog) HandlerOption        { return func(h *Handler) { h.auditLog = a } }
func WithSaver(s Saver) HandlerOption              { return func(h *Handler) { h.saver = s } }
func WithPinger(p Pinger) HandlerOption            { return func(h *Handler) { h.pinger = p } }

func WithLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates a new handler over the given ledger.
func NewHandler(ledger *pharmacy.Ledger, tokens *TokenIssuer, opts ...HandlerOption) *Handler {
	h := &Handler{
		Ledger: ledger,
		tokens: tokens,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	u, err := h.Ledger.Authenticate(req.Username, req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	token, expires, err := h.tokens.Issue(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expires.UTC().Format(time.RFC3339),
		User:      toUserDTO(u),
	})
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	role, err := pharmacy.ParseRole(req.Role)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	u, err := h.Ledger.AddUser(r.Context(), req.Username, req.Password, role)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

// =============================================================================
// MEDICINE HANDLERS
// =============================================================================

func (h *Handler) ListMedicines(w http.ResponseWriter, r *http.Request) {
	meds := h.Ledger.Medicines()
	threshold := h.Ledger.Config().LowStockThreshold
	now := h.now()

	dtos := make([]MedicineDTO, len(meds))
	for i, m := range meds {
		dtos[i] = toMedicineDTO(m, threshold, now)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetMedicine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.Ledger.Medicine(id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMedicineDTO(m, h.Ledger.Config().LowStockThreshold, h.now()))
}

func (h *Handler) CreateMedicine(w http.ResponseWriter, r *http.Request) {
	var req CreateMedicineRequest
	if !decodeBody(w, r, &req) {
		return
	}
	expiry, err := pharmacy.ParseDate(req.Expiry)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	m, err := h.Ledger.AddMedicine(r.Context(), pharmacy.MedicineInput{
		Name:        req.Name,
		Description: req.Description,
		Quantity:    req.Quantity,
		Price:       req.Price,
		Expiry:      expiry,
		Controlled:  req.Controlled,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMedicineDTO(m, h.Ledger.Config().LowStockThreshold, h.now()))
}

func (h *Handler) UpdateMedicine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateMedicineRequest
	if !decodeBody(w, r, &req) {
		return
	}
	patch := pharmacy.MedicinePatch{
		Name:        req.Name,
		Description: req.Description,
		Quantity:    req.Quantity,
		Price:       req.Price,
		Controlled:  req.Controlled,
	}
	if req.Expiry != nil {
		expiry, err := pharmacy.ParseDate(*req.Expiry)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		patch.Expiry = &expiry
	}
	if patch.IsEmpty() {
		writeError(w, http.StatusBadRequest, "No fields to update", nil)
		return
	}
	m, err := h.Ledger.UpdateMedicine(r.Context(), id, patch)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMedicineDTO(m, h.Ledger.Config().LowStockThreshold, h.now()))
}

func (h *Handler) DeleteMedicine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Ledger.DeleteMedicine(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PRESCRIPTION HANDLERS
// =============================================================================

func (h *Handler) ListPrescriptions(w http.ResponseWriter, r *http.Request) {
	rxs := h.Ledger.Prescriptions()
	status := r.URL.Query().Get("status")

	dtos := make([]PrescriptionDTO, 0, len(rxs))
	for _, p := range rxs {
		if status != "" && string(p.Status()) != status {
			continue
		}
		dtos = append(dtos, toPrescriptionDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetPrescription(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.Ledger.Prescription(id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPrescriptionDTO(p))
}

func (h *Handler) CreatePrescription(w http.ResponseWriter, r *http.Request) {
	var req CreatePrescriptionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, err := pharmacy.ParseDate(req.Date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	in := pharmacy.PrescriptionInput{
		PatientName: req.PatientName,
		DoctorName:  req.DoctorName,
		Date:        date,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, pharmacy.Item{MedicineID: it.MedicineID, Quantity: it.Quantity})
	}
	p, err := h.Ledger.AddPrescription(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPrescriptionDTO(p))
}

func (h *Handler) UpdatePrescription(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdatePrescriptionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	patch := pharmacy.PrescriptionPatch{PatientName: req.PatientName, DoctorName: req.DoctorName}
	if req.Date != nil {
		date, err := pharmacy.ParseDate(*req.Date)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		patch.Date = &date
	}
	p, err := h.Ledger.UpdatePrescription(r.Context(), id, patch)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPrescriptionDTO(p))
}

func (h *Handler) DeletePrescription(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Ledger.DeletePrescription(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddPrescriptionItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ItemDTO
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.Ledger.AddPrescriptionItem(r.Context(), id, req.MedicineID, req.Quantity)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPrescriptionDTO(p))
}

// FulfillPrescription deducts stock for every item or, on any shortage,
// for none of them.
func (h *Handler) FulfillPrescription(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.Ledger.FulfillPrescription(r.Context(), id)
	if h.metrics != nil {
		h.metrics.Fulfilled(err)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPrescriptionDTO(p))
}

func (h *Handler) BillPrescription(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req BillRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pt, err := pharmacy.ParsePaymentType(req.PaymentType)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	tx, err := h.Ledger.BillPrescription(r.Context(), id, pt, req.PaymentDetails)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.Billed(tx)
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

func (h *Handler) GetPrescriptionTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	tx, err := h.Ledger.TransactionForPrescription(id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs := h.Ledger.Transactions()
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	tx, err := h.Ledger.Transaction(id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// =============================================================================
// REPORT AND ADMIN HANDLERS
// =============================================================================

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	kind, err := pharmacy.ParseReportKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	now := h.now()
	report, err := h.Ledger.Report(kind, now)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dto := ReportDTO{Kind: string(report.Kind), GeneratedAt: now.UTC().Format(time.RFC3339)}
	threshold := h.Ledger.Config().LowStockThreshold
	if report.Sales != nil {
		dto.Sales = toSalesDTO(*report.Sales)
	} else {
		dto.Medicines = make([]MedicineDTO, len(report.Medicines))
		for i, m := range report.Medicines {
			dto.Medicines[i] = toMedicineDTO(m, threshold, now)
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.auditLog == nil {
		writeError(w, http.StatusNotImplemented, "Audit log not configured", nil)
		return
	}
	entity := r.URL.Query().Get("entity")
	id := 0
	if raw := r.URL.Query().Get("id"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid id", err)
			return
		}
		id = v
	}
	entries, err := h.auditLog.Entries(r.Context(), entity, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read audit log", err)
		return
	}
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveNow persists the ledger immediately instead of waiting for autosave or shutdown.
func (h *Handler) SaveNow(w http.ResponseWriter, r *http.Request) {
	if h.saver == nil {
		writeError(w, http.StatusNotImplemented, "Persistence not configured", nil)
		return
	}
	if err := h.saver.SaveNow(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Storage unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Metrics refreshes the inventory gauges before each scrape.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		writeError(w, http.StatusNotImplemented, "Metrics not configured", nil)
		return
	}
	h.metrics.ObserveInventory(h.Ledger)
	h.metrics.Handler().ServeHTTP(w, r)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the pharmacy error kinds to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pharmacy.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, pharmacy.ErrAuth):
		writeError(w, http.StatusUnauthorized, "Authentication failed", err)
	case errors.Is(err, pharmacy.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden", err)
	case errors.Is(err, pharmacy.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, pharmacy.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "Insufficient stock", err)
	case errors.Is(err, pharmacy.ErrInvalidState):
		writeError(w, http.StatusConflict, "Invalid state", err)
	case errors.Is(err, pharmacy.ErrCapacity):
		writeError(w, http.StatusConflict, "Capacity reached", err)
	default:
		h.logger.Error("unhandled ledger error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", fmt.Errorf("%q is not a positive integer", raw))
		return 0, false
	}
	return id, true
}
