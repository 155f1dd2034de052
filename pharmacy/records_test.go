package pharmacy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// MEDICINE
// =============================================================================

func validMedicineInput() MedicineInput {
	return MedicineInput{
		Name:     "Paracetamol",
		Quantity: 10,
		Price:    decimal.RequireFromString("5.00"),
		Expiry:   MustDate(1, 1, 2030),
	}
}

func TestNewMedicine_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MedicineInput)
		field  string
	}{
		{"valid", func(*MedicineInput) {}, ""},
		{"empty name", func(in *MedicineInput) { in.Name = "" }, "name"},
		{"negative quantity", func(in *MedicineInput) { in.Quantity = -1 }, "quantity"},
		{"negative price", func(in *MedicineInput) { in.Price = decimal.NewFromInt(-1) }, "price"},
		{"zero expiry", func(in *MedicineInput) { in.Expiry = Date{} }, "expiry"},
		{"zero quantity is fine", func(in *MedicineInput) { in.Quantity = 0 }, ""},
		{"free medicine is fine", func(in *MedicineInput) { in.Price = decimal.Zero }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validMedicineInput()
			tt.mutate(&in)
			_, err := NewMedicine(in)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestMedicine_ReduceQuantity(t *testing.T) {
	m, err := NewMedicine(validMedicineInput())
	require.NoError(t, err)

	require.NoError(t, m.ReduceQuantity(4))
	assert.Equal(t, 6, m.Quantity)

	// Over-deduction fails and leaves stock untouched
	err = m.ReduceQuantity(7)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "insufficient stock")
	assert.Equal(t, 6, m.Quantity)

	require.NoError(t, m.ReduceQuantity(6))
	assert.Equal(t, 0, m.Quantity)

	assert.Error(t, m.ReduceQuantity(0))
}

func TestMedicine_StockAndExpiryFlags(t *testing.T) {
	m, err := NewMedicine(validMedicineInput())
	require.NoError(t, err)
	now := time.Date(2030, time.January, 2, 0, 0, 0, 0, time.UTC)

	assert.False(t, m.IsLowStock(10), "quantity equal to threshold is not low")
	assert.True(t, m.IsLowStock(11))
	assert.True(t, m.IsExpired(now))
	assert.False(t, m.IsExpired(now.AddDate(0, 0, -1)))
}

func TestMedicinePatch_AllOrNothing(t *testing.T) {
	m, err := NewMedicine(validMedicineInput())
	require.NoError(t, err)

	name := "Ibuprofen"
	qty := -5
	_, err = MedicinePatch{Name: &name, Quantity: &qty}.applyTo(m)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Paracetamol", m.Name, "original is untouched")

	qty = 50
	updated, err := MedicinePatch{Name: &name, Quantity: &qty}.applyTo(m)
	require.NoError(t, err)
	assert.Equal(t, "Ibuprofen", updated.Name)
	assert.Equal(t, 50, updated.Quantity)
	assert.True(t, updated.Price.Equal(m.Price))
	assert.True(t, MedicinePatch{}.IsEmpty())
}

// =============================================================================
// PRESCRIPTION
// =============================================================================

func TestNewPrescription_Validation(t *testing.T) {
	date := MustDate(1, 3, 2025)

	_, err := NewPrescription("", "Dr. House", date)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NewPrescription("Juan", "", date)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NewPrescription("Juan", "Dr. House", Date{})
	assert.ErrorIs(t, err, ErrValidation)

	p, err := NewPrescription("Juan", "Dr. House", date)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, p.Status())
	assert.Empty(t, p.Items)
}

func TestPrescription_AddItem(t *testing.T) {
	p, err := NewPrescription("Juan", "Dr. House", MustDate(1, 3, 2025))
	require.NoError(t, err)

	require.NoError(t, p.AddItem(1, 2))
	require.NoError(t, p.AddItem(1, 3), "same medicine twice is allowed")
	assert.ErrorIs(t, p.AddItem(2, 0), ErrValidation)
	assert.ErrorIs(t, p.AddItem(2, -1), ErrValidation)

	assert.Equal(t, []Item{{MedicineID: 1, Quantity: 2}, {MedicineID: 1, Quantity: 3}}, p.Items)
}

func TestPrescription_CloneDoesNotShareItems(t *testing.T) {
	p, err := NewPrescription("Juan", "Dr. House", MustDate(1, 3, 2025))
	require.NoError(t, err)
	require.NoError(t, p.AddItem(1, 2))

	c := p.clone()
	c.Items[0].Quantity = 99

	assert.Equal(t, 2, p.Items[0].Quantity)
}

func TestPrescription_MarkFilled(t *testing.T) {
	p, err := NewPrescription("Juan", "Dr. House", MustDate(1, 3, 2025))
	require.NoError(t, err)

	p.markFilled()

	assert.True(t, p.Filled)
	assert.Equal(t, StatusFilled, p.Status())
}

// =============================================================================
// TRANSACTION
// =============================================================================

func TestNewTransaction(t *testing.T) {
	date := MustDate(1, 3, 2025)
	total := decimal.RequireFromString("20.00")

	t.Run("cash with empty details gets a default", func(t *testing.T) {
		tx, err := newTransaction(date, 1, total, PaymentCash, "")
		require.NoError(t, err)
		assert.Equal(t, "Cash payment", tx.PaymentDetails)
	})

	t.Run("cash keeps given details", func(t *testing.T) {
		tx, err := newTransaction(date, 1, total, PaymentCash, "exact change")
		require.NoError(t, err)
		assert.Equal(t, "exact change", tx.PaymentDetails)
	})

	t.Run("e-wallet requires details", func(t *testing.T) {
		for _, pt := range []PaymentType{PaymentGCash, PaymentPayMaya} {
			_, err := newTransaction(date, 1, total, pt, "")
			var verr *ValidationError
			require.ErrorAs(t, err, &verr, "payment type %s", pt)
			assert.Equal(t, "payment_details", verr.Field)

			_, err = newTransaction(date, 1, total, pt, "   ")
			assert.ErrorIs(t, err, ErrValidation, "whitespace is not details")

			_, err = newTransaction(date, 1, total, pt, "REF-123")
			assert.NoError(t, err)
		}
	})

	t.Run("negative total", func(t *testing.T) {
		_, err := newTransaction(date, 1, decimal.NewFromInt(-1), PaymentCash, "")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown payment type", func(t *testing.T) {
		_, err := newTransaction(date, 1, total, PaymentType("card"), "x")
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestParsePaymentType(t *testing.T) {
	pt, err := ParsePaymentType(" GCash ")
	require.NoError(t, err)
	assert.Equal(t, PaymentGCash, pt)
	assert.Equal(t, "GCash", pt.Label())

	_, err = ParsePaymentType("bitcoin")
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, []PaymentType{PaymentCash, PaymentGCash, PaymentPayMaya}, PaymentTypes())
	assert.Equal(t, "12.50", FormatMoney(decimal.RequireFromString("12.5")))
}

// =============================================================================
// USERS AND PERMISSIONS
// =============================================================================

func TestNewUser_HashesPassword(t *testing.T) {
	u, err := NewUser("admin", "admin123", RoleAdmin)
	require.NoError(t, err)

	assert.NotEqual(t, "admin123", u.PasswordHash)
	assert.True(t, u.checkPassword("admin123"))
	assert.False(t, u.checkPassword("wrong"))

	_, err = NewUser("", "x", RoleAdmin)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NewUser("x", "", RoleAdmin)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NewUser("x", "y", Role("cashier"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPermits(t *testing.T) {
	assert.True(t, Permits(RoleAdmin, PermManageMedicines))
	assert.True(t, Permits(RoleAdmin, PermViewReports))
	assert.False(t, Permits(RoleAdmin, PermFulfill))
	assert.False(t, Permits(RoleAdmin, PermBill))

	assert.True(t, Permits(RolePharmacist, PermFulfill))
	assert.True(t, Permits(RolePharmacist, PermViewMedicines))
	assert.False(t, Permits(RolePharmacist, PermManageMedicines))
	assert.False(t, Permits(RolePharmacist, PermManageUsers))

	err := Authorize(RolePharmacist, PermViewReports)
	var ferr *ForbiddenError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, RolePharmacist, ferr.Role)
	assert.ErrorIs(t, err, ErrForbidden)
}
