package pharmacy

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYMENT TYPE - Closed set of payment variants
// =============================================================================

type PaymentType string

const (
	PaymentCash    PaymentType = "cash"
	PaymentGCash   PaymentType = "gcash"
	PaymentPayMaya PaymentType = "paymaya"
)

// cashDetails is recorded when a cash payment carries no details.
const cashDetails = "Cash payment"

// PaymentTypes lists the variants in report order.
func PaymentTypes() []PaymentType {
	return []PaymentType{PaymentCash, PaymentGCash, PaymentPayMaya}
}

// ParsePaymentType accepts the wire form case-insensitively.
func ParsePaymentType(s string) (PaymentType, error) {
	pt := PaymentType(strings.ToLower(strings.TrimSpace(s)))
	if !pt.Valid() {
		return "", invalid("payment_type", fmt.Sprintf("%q is not one of cash, gcash, paymaya", s))
	}
	return pt, nil
}

func (p PaymentType) Valid() bool {
	switch p {
	case PaymentCash, PaymentGCash, PaymentPayMaya:
		return true
	}
	return false
}

// RequiresDetails is true for e-wallet payments, which need a reference number.
func (p PaymentType) RequiresDetails() bool {
	return p != PaymentCash
}

// Label is the display name.
func (p PaymentType) Label() string {
	switch p {
	case PaymentCash:
		return "Cash"
	case PaymentGCash:
		return "GCash"
	case PaymentPayMaya:
		return "PayMaya"
	}
	return string(p)
}

// =============================================================================
// TRANSACTION - Immutable receipt for one billed prescription
// =============================================================================

// Transaction is append-only: created once per billed prescription, never
// mutated or deleted.
type Transaction struct {
	ID             int
	Date           Date
	PrescriptionID int
	TotalAmount    decimal.Decimal
	PaymentType    PaymentType
	PaymentDetails string
}

func newTransaction(date Date, prescriptionID int, total decimal.Decimal, pt PaymentType, details string) (Transaction, error) {
	if pt == PaymentCash && details == "" {
		details = cashDetails
	}
	tx := Transaction{
		Date:           date,
		PrescriptionID: prescriptionID,
		TotalAmount:    total,
		PaymentType:    pt,
		PaymentDetails: details,
	}
	if err := tx.validate(); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

func (t Transaction) validate() error {
	if !t.PaymentType.Valid() {
		return invalid("payment_type", fmt.Sprintf("%q is not one of cash, gcash, paymaya", t.PaymentType))
	}
	if t.TotalAmount.IsNegative() {
		return invalid("total_amount", "cannot be negative")
	}
	if t.PaymentType.RequiresDetails() && strings.TrimSpace(t.PaymentDetails) == "" {
		return invalid("payment_details", fmt.Sprintf("required for %s payments", t.PaymentType.Label()))
	}
	if t.Date.IsZero() {
		return invalid("date", "is required")
	}
	return nil
}

// FormatMoney renders an amount with two fractional digits for display.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
