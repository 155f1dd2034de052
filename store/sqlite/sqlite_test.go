package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pharmacy-ledger/pharmacy"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// populatedLedger builds a Ledger with one billed prescription, one pending
// prescription that references a deleted medicine, and a gap in medicine ids.
func populatedLedger(t *testing.T) *pharmacy.Ledger {
	t.Helper()
	ctx := context.Background()
	l := pharmacy.New(pharmacy.DefaultConfig())

	_, err := l.EnsureUsers(ctx, pharmacy.DefaultUsers())
	require.NoError(t, err)

	add := func(name, price string, qty int) pharmacy.Medicine {
		m, err := l.AddMedicine(ctx, pharmacy.MedicineInput{
			Name: name, Description: "tablet", Quantity: qty,
			Price: decimal.RequireFromString(price), Expiry: pharmacy.MustDate(31, 12, 2030),
		})
		require.NoError(t, err)
		return m
	}
	a := add("Amoxicillin", "12.35", 10)
	gone := add("Gone", "0.10", 5)
	b := add("Morphine", "99.99", 3)
	_, err = l.UpdateMedicine(ctx, b.ID, pharmacy.MedicinePatch{Controlled: ptr(true)})
	require.NoError(t, err)

	billed, err := l.AddPrescription(ctx, pharmacy.PrescriptionInput{
		PatientName: "Juan", DoctorName: "Dr. Santos", Date: pharmacy.MustDate(1, 3, 2025),
		Items: []pharmacy.Item{{MedicineID: b.ID, Quantity: 1}, {MedicineID: a.ID, Quantity: 3}},
	})
	require.NoError(t, err)
	_, err = l.FulfillPrescription(ctx, billed.ID)
	require.NoError(t, err)
	_, err = l.BillPrescription(ctx, billed.ID, pharmacy.PaymentGCash, "GC-42")
	require.NoError(t, err)

	_, err = l.AddPrescription(ctx, pharmacy.PrescriptionInput{
		PatientName: "Maria", DoctorName: "Dr. Reyes", Date: pharmacy.MustDate(2, 3, 2025),
		Items: []pharmacy.Item{{MedicineID: gone.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, l.DeleteMedicine(ctx, gone.ID))
	return l
}

func ptr[T any](v T) *T { return &v }

func TestStore_SaveLoad_RoundTrip(t *testing.T) {
	// GIVEN: A populated Ledger saved to SQLite
	ctx := context.Background()
	s := newTestStore(t)
	l := populatedLedger(t)
	want := l.Snapshot()
	require.NoError(t, l.Persist(ctx, s))

	// WHEN: Loading it back
	got, err := s.Load(ctx)
	require.NoError(t, err)

	// THEN: Every record and the sequences survive
	assert.Equal(t, want.Sequences, got.Sequences)
	assert.Equal(t, want.Users, got.Users)
	assert.Equal(t, want.Prescriptions, got.Prescriptions, "item order is preserved")

	require.Len(t, got.Medicines, len(want.Medicines))
	for i := range want.Medicines {
		w, g := want.Medicines[i], got.Medicines[i]
		assert.Equal(t, w.ID, g.ID)
		assert.Equal(t, w.Name, g.Name)
		assert.Equal(t, w.Description, g.Description)
		assert.Equal(t, w.Quantity, g.Quantity)
		assert.Equal(t, w.Expiry, g.Expiry)
		assert.Equal(t, w.Controlled, g.Controlled)
		assert.True(t, w.Price.Equal(g.Price), "price %s != %s", w.Price, g.Price)
	}

	require.Len(t, got.Transactions, 1)
	tx := got.Transactions[0]
	assert.Equal(t, "137.04", pharmacy.FormatMoney(tx.TotalAmount))
	assert.Equal(t, pharmacy.PaymentGCash, tx.PaymentType)
	assert.Equal(t, "GC-42", tx.PaymentDetails)
}

func TestStore_OpenFromStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, populatedLedger(t).Persist(ctx, s))

	reopened, err := pharmacy.Open(ctx, s, pharmacy.DefaultConfig())
	require.NoError(t, err)

	assert.Len(t, reopened.Medicines(), 2)
	assert.Len(t, reopened.Transactions(), 1)
	_, err = reopened.Authenticate("admin", "admin123")
	assert.NoError(t, err)

	// The deleted medicine's id stays retired
	m, err := reopened.AddMedicine(ctx, pharmacy.MedicineInput{Name: "New", Expiry: pharmacy.MustDate(1, 1, 2030)})
	require.NoError(t, err)
	assert.Equal(t, 4, m.ID)

	// The pending prescription still references the deleted medicine
	rx := reopened.Prescriptions()[1]
	_, err = reopened.FulfillPrescription(ctx, rx.ID)
	assert.True(t, pharmacy.IsNotFound(err))
}

func TestStore_SaveReplacesPreviousState(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, populatedLedger(t).Persist(ctx, s))

	require.NoError(t, s.Save(ctx, pharmacy.Snapshot{}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
	assert.Equal(t, pharmacy.Sequences{}, got.Sequences)
}

func TestStore_SaveFailureKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, populatedLedger(t).Persist(ctx, s))

	// Two receipts for one prescription violate the UNIQUE constraint
	bad := pharmacy.Snapshot{Transactions: []pharmacy.Transaction{
		{ID: 1, PrescriptionID: 1, Date: pharmacy.MustDate(1, 1, 2025), TotalAmount: decimal.Zero, PaymentType: pharmacy.PaymentCash},
		{ID: 2, PrescriptionID: 1, Date: pharmacy.MustDate(1, 1, 2025), TotalAmount: decimal.Zero, PaymentType: pharmacy.PaymentCash},
	}}
	err := s.Save(ctx, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "billed twice")

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Medicines, 2)
}

func TestStore_AuditLog(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

	entries := []pharmacy.AuditEntry{
		{ID: "2", Timestamp: base.Add(2 * time.Millisecond), Actor: "admin", Action: pharmacy.AuditMedicineUpdated, Entity: pharmacy.EntityMedicine, EntityID: 1},
		{ID: "1", Timestamp: base.Add(time.Millisecond), Actor: "admin", Action: pharmacy.AuditMedicineAdded, Entity: pharmacy.EntityMedicine, EntityID: 1, Detail: "Amoxicillin"},
		{ID: "3", Timestamp: base.Add(10 * time.Second), Actor: "pharmacist", Action: pharmacy.AuditPrescriptionFilled, Entity: pharmacy.EntityPrescription, EntityID: 1},
	}
	for _, e := range entries {
		require.NoError(t, s.Append(ctx, e))
	}

	all, err := s.Entries(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "1", all[0].ID, "oldest first")
	assert.Equal(t, entries[1], all[0])
	assert.Equal(t, "3", all[2].ID)

	med, err := s.Entries(ctx, pharmacy.EntityMedicine, 1)
	require.NoError(t, err)
	assert.Len(t, med, 2)

	// The audit trail is not touched by snapshot saves
	require.NoError(t, s.Save(ctx, pharmacy.Snapshot{}))
	all, err = s.Entries(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Entry ids are unique
	assert.Error(t, s.Append(ctx, entries[0]))
}

func TestStore_AuditLog_MalformedTimestamp(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, timestamp, actor, action, entity, entity_id) VALUES ('x', 'yesterday', 'admin', 'medicine_added', 'medicine', 1)`)
	require.NoError(t, err)

	_, err = s.Entries(ctx, "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yesterday")
}

func TestStore_FileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pharmacy.db")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, populatedLedger(t).Persist(ctx, s))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Prescriptions, 2)
}
