/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the pharmacy records from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

WIRE FORMATS:
  Dates:  "YYYY-MM-DD" in both directions; responses add a DD/MM/YYYY display form
  Money:  Requests accept a JSON number or string; responses are strings
          with two fractional digits ("20.00")

VALIDATION:
  Validation is done by the pharmacy package, not in DTOs. Handlers only
  parse wire formats (dates, payment types) before calling the Ledger.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/pharmacy-ledger/pharmacy"
)

// =============================================================================
// AUTH
// =============================================================================

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expires_at"`
	User      UserDTO `json:"user"`
}

type UserDTO struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// =============================================================================
// MEDICINES
// =============================================================================

type MedicineDTO struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Quantity      int    `json:"quantity"`
	Price         string `json:"price"`
	Expiry        string `json:"expiry"`
	ExpiryDisplay string `json:"expiry_display"`
	Controlled    bool   `json:"controlled"`
	LowStock      bool   `json:"low_stock"`
	Expired       bool   `json:"expired"`
}

type CreateMedicineRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Expiry      string          `json:"expiry"`
	Controlled  bool            `json:"controlled"`
}

// UpdateMedicineRequest changes only the fields present in the body.
type UpdateMedicineRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Quantity    *int             `json:"quantity"`
	Price       *decimal.Decimal `json:"price"`
	Expiry      *string          `json:"expiry"`
	Controlled  *bool            `json:"controlled"`
}

// =============================================================================
// PRESCRIPTIONS
// =============================================================================

type ItemDTO struct {
	MedicineID int `json:"medicine_id"`
	Quantity   int `json:"quantity"`
}

type PrescriptionDTO struct {
	ID          int       `json:"id"`
	PatientName string    `json:"patient_name"`
	DoctorName  string    `json:"doctor_name"`
	Date        string    `json:"date"`
	Items       []ItemDTO `json:"items"`
	Status      string    `json:"status"`
}

type CreatePrescriptionRequest struct {
	PatientName string    `json:"patient_name"`
	DoctorName  string    `json:"doctor_name"`
	Date        string    `json:"date"`
	Items       []ItemDTO `json:"items"`
}

type UpdatePrescriptionRequest struct {
	PatientName *string `json:"patient_name"`
	DoctorName  *string `json:"doctor_name"`
	Date        *string `json:"date"`
}

type BillRequest struct {
	PaymentType    string `json:"payment_type"`
	PaymentDetails string `json:"payment_details"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionDTO struct {
	ID             int    `json:"id"`
	Date           string `json:"date"`
	PrescriptionID int    `json:"prescription_id"`
	TotalAmount    string `json:"total_amount"`
	PaymentType    string `json:"payment_type"`
	PaymentLabel   string `json:"payment_label"`
	PaymentDetails string `json:"payment_details"`
}

// =============================================================================
// REPORTS AND AUDIT
// =============================================================================

type PaymentTotalDTO struct {
	PaymentType string `json:"payment_type"`
	Label       string `json:"label"`
	Count       int    `json:"count"`
	Total       string `json:"total"`
}

type SalesDTO struct {
	Count     int               `json:"count"`
	Total     string            `json:"total"`
	ByPayment []PaymentTotalDTO `json:"by_payment"`
}

type ReportDTO struct {
	Kind        string        `json:"kind"`
	GeneratedAt string        `json:"generated_at"`
	Medicines   []MedicineDTO `json:"medicines,omitempty"`
	Sales       *SalesDTO     `json:"sales,omitempty"`
}

type AuditEntryDTO struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Entity    string `json:"entity"`
	EntityID  int    `json:"entity_id"`
	Detail    string `json:"detail,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"` // "inventory" or "sales"
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toUserDTO(u pharmacy.User) UserDTO {
	return UserDTO{Username: u.Username, Role: string(u.Role)}
}

func toMedicineDTO(m pharmacy.Medicine, lowStockThreshold int, now time.Time) MedicineDTO {
	return MedicineDTO{
		ID:            m.ID,
		Name:          m.Name,
		Description:   m.Description,
		Quantity:      m.Quantity,
		Price:         pharmacy.FormatMoney(m.Price),
		Expiry:        m.Expiry.ISO(),
		ExpiryDisplay: m.Expiry.String(),
		Controlled:    m.Controlled,
		LowStock:      m.IsLowStock(lowStockThreshold),
		Expired:       m.IsExpired(now),
	}
}

func toPrescriptionDTO(p pharmacy.Prescription) PrescriptionDTO {
	items := make([]ItemDTO, len(p.Items))
	for i, it := range p.Items {
		items[i] = ItemDTO{MedicineID: it.MedicineID, Quantity: it.Quantity}
	}
	return PrescriptionDTO{
		ID:          p.ID,
		PatientName: p.PatientName,
		DoctorName:  p.DoctorName,
		Date:        p.Date.ISO(),
		Items:       items,
		Status:      string(p.Status()),
	}
}

func toTransactionDTO(t pharmacy.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:             t.ID,
		Date:           t.Date.ISO(),
		PrescriptionID: t.PrescriptionID,
		TotalAmount:    pharmacy.FormatMoney(t.TotalAmount),
		PaymentType:    string(t.PaymentType),
		PaymentLabel:   t.PaymentType.Label(),
		PaymentDetails: t.PaymentDetails,
	}
}

func toSalesDTO(s pharmacy.SalesSummary) *SalesDTO {
	out := &SalesDTO{Count: s.Count, Total: pharmacy.FormatMoney(s.Total)}
	for _, p := range s.ByPayment {
		out.ByPayment = append(out.ByPayment, PaymentTotalDTO{
			PaymentType: string(p.PaymentType),
			Label:       p.PaymentType.Label(),
			Count:       p.Count,
			Total:       pharmacy.FormatMoney(p.Total),
		})
	}
	return out
}

func toAuditEntryDTO(e pharmacy.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:        e.ID,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		Actor:     e.Actor,
		Action:    string(e.Action),
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		Detail:    e.Detail,
	}
}
