package pharmacy

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MEDICINE - Stock-keeping unit
// =============================================================================

// Medicine is a stock-keeping unit. Quantity changes only through
// SetQuantity (admin correction) or ReduceQuantity (fulfillment).
type Medicine struct {
	ID          int
	Name        string
	Description string
	Quantity    int
	Price       decimal.Decimal
	Expiry      Date
	Controlled  bool
}

// MedicineInput carries the fields of a new medicine. The id is assigned by the Ledger.
type MedicineInput struct {
	Name        string
	Description string
	Quantity    int
	Price       decimal.Decimal
	Expiry      Date
	Controlled  bool
}

// NewMedicine validates every field and returns the record without an id.
func NewMedicine(in MedicineInput) (Medicine, error) {
	var m Medicine
	if err := m.SetName(in.Name); err != nil {
		return Medicine{}, err
	}
	if err := m.SetQuantity(in.Quantity); err != nil {
		return Medicine{}, err
	}
	if err := m.SetPrice(in.Price); err != nil {
		return Medicine{}, err
	}
	if err := m.SetExpiry(in.Expiry); err != nil {
		return Medicine{}, err
	}
	m.SetDescription(in.Description)
	m.SetControlled(in.Controlled)
	return m, nil
}

// validate re-checks a record that did not come through NewMedicine (e.g. loaded from storage).
func (m Medicine) validate() error {
	_, err := NewMedicine(MedicineInput{
		Name:       m.Name,
		Quantity:   m.Quantity,
		Price:      m.Price,
		Expiry:     m.Expiry,
		Controlled: m.Controlled,
	})
	return err
}

// Setters validate only their own field and leave it untouched on error.

func (m *Medicine) SetName(name string) error {
	if name == "" {
		return invalid("name", "is required")
	}
	m.Name = name
	return nil
}

func (m *Medicine) SetDescription(desc string) { m.Description = desc }

func (m *Medicine) SetQuantity(qty int) error {
	if qty < 0 {
		return invalid("quantity", "cannot be negative")
	}
	m.Quantity = qty
	return nil
}

func (m *Medicine) SetPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return invalid("price", "cannot be negative")
	}
	m.Price = price
	return nil
}

func (m *Medicine) SetExpiry(expiry Date) error {
	if expiry.IsZero() {
		return invalid("expiry", "is required")
	}
	m.Expiry = expiry
	return nil
}

func (m *Medicine) SetControlled(controlled bool) { m.Controlled = controlled }

// ReduceQuantity deducts amount from stock, failing without change if stock is short.
func (m *Medicine) ReduceQuantity(amount int) error {
	if amount <= 0 {
		return invalid("amount", "must be positive")
	}
	if amount > m.Quantity {
		return invalid("quantity", "insufficient stock")
	}
	m.Quantity -= amount
	return nil
}

func (m Medicine) IsLowStock(threshold int) bool { return m.Quantity < threshold }
func (m Medicine) IsExpired(now time.Time) bool  { return m.Expiry.IsPast(now) }

// =============================================================================
// MEDICINE PATCH - Field-level update; nil fields are kept
// =============================================================================

type MedicinePatch struct {
	Name        *string
	Description *string
	Quantity    *int
	Price       *decimal.Decimal
	Expiry      *Date
	Controlled  *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p MedicinePatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Quantity == nil &&
		p.Price == nil && p.Expiry == nil && p.Controlled == nil
}

// applyTo validates and applies every set field to a copy, so a failing
// field leaves the stored record untouched.
func (p MedicinePatch) applyTo(m Medicine) (Medicine, error) {
	if p.Name != nil {
		if err := m.SetName(*p.Name); err != nil {
			return Medicine{}, err
		}
	}
	if p.Description != nil {
		m.SetDescription(*p.Description)
	}
	if p.Quantity != nil {
		if err := m.SetQuantity(*p.Quantity); err != nil {
			return Medicine{}, err
		}
	}
	if p.Price != nil {
		if err := m.SetPrice(*p.Price); err != nil {
			return Medicine{}, err
		}
	}
	if p.Expiry != nil {
		if err := m.SetExpiry(*p.Expiry); err != nil {
			return Medicine{}, err
		}
	}
	if p.Controlled != nil {
		m.SetControlled(*p.Controlled)
	}
	return m, nil
}
