/*
ledger.go - The pharmacy record store

PURPOSE:
  The Ledger owns every Medicine, Prescription, Transaction and User and is
  the only place that mutates them. It is the sole enforcer of the
  cross-entity invariants below.

CRITICAL INVARIANTS:
  1. STOCK NEVER NEGATIVE: quantity is deducted only by fulfillment, only by
     the item quantities, and only after every item has been checked.
  2. FILL ONCE: Prescription PENDING -> FILLED is one-way.
  3. BILL ONCE: at most one Transaction per prescription id, and only for
     a filled prescription.
  4. IDS NEVER REUSED: sequential per collection, surviving deletes.

ALL-OR-NOTHING FULFILLMENT:
  FulfillPrescription runs a full pre-check pass (every medicine exists,
  every aggregated quantity is on hand) before the commit pass deducts
  anything. Deductions are staged on copies and written back together with
  the filled flag, so a failure leaves no partial effect. This is the same
  check-all-then-write shape as an atomic batch append.

CONCURRENCY:
  One RWMutex guards all four collections. Mutations hold the write lock for
  the whole check + commit; reads hold the read lock and return copies.
  No caller ever holds a reference into the collections.

OVERSUBSCRIPTION:
  Pending prescriptions may together ask for more than is on hand. Nothing
  is reserved; fulfillment order resolves contention.

EXAMPLE:
  l := pharmacy.New(pharmacy.DefaultConfig(), pharmacy.WithLogger(logger))
  med, _ := l.AddMedicine(ctx, pharmacy.MedicineInput{Name: "Amoxicillin", Quantity: 10, ...})
  rx, _ := l.AddPrescription(ctx, pharmacy.PrescriptionInput{..., Items: []pharmacy.Item{{MedicineID: med.ID, Quantity: 4}}})
  _, err := l.FulfillPrescription(ctx, rx.ID)
  tx, err := l.BillPrescription(ctx, rx.ID, pharmacy.PaymentCash, "")

SEE ALSO:
  - errors.go:  Error kinds returned here
  - reports.go: Read-only aggregate queries
  - store.go:   Load/save collaborator
*/
package pharmacy

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// CONFIG
// =============================================================================

// Limits caps each collection. Zero or negative fields fall back to the defaults.
type Limits struct {
	Users         int
	Medicines     int
	Prescriptions int
	Transactions  int
}

func DefaultLimits() Limits {
	return Limits{Users: 50, Medicines: 500, Prescriptions: 1000, Transactions: 2000}
}

type Config struct {
	Limits            Limits
	LowStockThreshold int
}

func DefaultConfig() Config {
	return Config{Limits: DefaultLimits(), LowStockThreshold: 10}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Limits.Users <= 0 {
		c.Limits.Users = d.Limits.Users
	}
	if c.Limits.Medicines <= 0 {
		c.Limits.Medicines = d.Limits.Medicines
	}
	if c.Limits.Prescriptions <= 0 {
		c.Limits.Prescriptions = d.Limits.Prescriptions
	}
	if c.Limits.Transactions <= 0 {
		c.Limits.Transactions = d.Limits.Transactions
	}
	if c.LowStockThreshold <= 0 {
		c.LowStockThreshold = d.LowStockThreshold
	}
	return c
}

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	mu sync.RWMutex

	cfg           Config
	users         []User
	medicines     []Medicine
	prescriptions []Prescription
	transactions  []Transaction
	seq           Sequences

	logger  *zap.Logger
	auditor Auditor
	now     func() time.Time
}

type Option func(*Ledger)

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithAuditor(a Auditor) Option {
	return func(l *Ledger) { l.auditor = a }
}

// WithClock replaces time.Now for transaction dates and reports.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New returns an empty Ledger.
func New(cfg Config, opts ...Option) *Ledger {
	l := &Ledger{
		cfg:    cfg.withDefaults(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open builds a Ledger and fills it from p. On a load or restore failure the
// returned Ledger is empty and usable, and the error says why. The caller
// must not save that Ledger back through p: the stored records would be
// replaced by the empty state.
func Open(ctx context.Context, p Persister, cfg Config, opts ...Option) (*Ledger, error) {
	l := New(cfg, opts...)
	snap, err := p.Load(ctx)
	if err != nil {
		return l, fmt.Errorf("load ledger: %w", err)
	}
	if err := l.Restore(snap); err != nil {
		return l, fmt.Errorf("restore ledger: %w", err)
	}
	l.logger.Info("ledger loaded",
		zap.Int("users", len(snap.Users)),
		zap.Int("medicines", len(snap.Medicines)),
		zap.Int("prescriptions", len(snap.Prescriptions)),
		zap.Int("transactions", len(snap.Transactions)),
	)
	return l, nil
}

// Persist saves a snapshot of the current state through p.
func (l *Ledger) Persist(ctx context.Context, p Persister) error {
	snap := l.Snapshot()
	if err := p.Save(ctx, snap); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	l.logger.Info("ledger saved", zap.Int("medicines", len(snap.Medicines)), zap.Int("transactions", len(snap.Transactions)))
	return nil
}

// Snapshot returns a deep copy of every collection.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{
		Users:         l.users,
		Medicines:     l.medicines,
		Prescriptions: l.prescriptions,
		Transactions:  l.transactions,
		Sequences:     l.seq,
	}.Clone()
}

// Restore validates snap and replaces the current state with it. On error the
// current state is unchanged.
func (l *Ledger) Restore(snap Snapshot) error {
	snap = snap.Clone()
	if err := l.checkSnapshot(snap); err != nil {
		return err
	}

	seq := snap.Sequences
	for _, m := range snap.Medicines {
		seq.Medicine = max(seq.Medicine, m.ID)
	}
	for _, p := range snap.Prescriptions {
		seq.Prescription = max(seq.Prescription, p.ID)
	}
	for _, t := range snap.Transactions {
		seq.Transaction = max(seq.Transaction, t.ID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.users = snap.Users
	l.medicines = snap.Medicines
	l.prescriptions = snap.Prescriptions
	l.transactions = snap.Transactions
	l.seq = seq
	return nil
}

func (l *Ledger) checkSnapshot(snap Snapshot) error {
	lim := l.cfg.Limits
	switch {
	case len(snap.Users) > lim.Users:
		return &CapacityError{Collection: "users", Limit: lim.Users}
	case len(snap.Medicines) > lim.Medicines:
		return &CapacityError{Collection: "medicines", Limit: lim.Medicines}
	case len(snap.Prescriptions) > lim.Prescriptions:
		return &CapacityError{Collection: "prescriptions", Limit: lim.Prescriptions}
	case len(snap.Transactions) > lim.Transactions:
		return &CapacityError{Collection: "transactions", Limit: lim.Transactions}
	}

	usernames := make(map[string]bool)
	for _, u := range snap.Users {
		if err := u.validate(); err != nil {
			return fmt.Errorf("user %q: %w", u.Username, err)
		}
		if usernames[u.Username] {
			return fmt.Errorf("user %q: %w", u.Username, invalid("username", "is duplicated"))
		}
		usernames[u.Username] = true
	}
	ids := make(map[int]bool)
	for _, m := range snap.Medicines {
		if err := m.validate(); err != nil {
			return fmt.Errorf("medicine %d: %w", m.ID, err)
		}
		if m.ID <= 0 || ids[m.ID] {
			return fmt.Errorf("medicine %d: %w", m.ID, invalid("id", "must be positive and unique"))
		}
		ids[m.ID] = true
	}
	clear(ids)
	filled := make(map[int]bool)
	for _, p := range snap.Prescriptions {
		if err := p.validate(); err != nil {
			return fmt.Errorf("prescription %d: %w", p.ID, err)
		}
		if p.ID <= 0 || ids[p.ID] {
			return fmt.Errorf("prescription %d: %w", p.ID, invalid("id", "must be positive and unique"))
		}
		ids[p.ID] = true
		filled[p.ID] = p.Filled
	}
	clear(ids)
	billed := make(map[int]bool)
	for _, t := range snap.Transactions {
		if err := t.validate(); err != nil {
			return fmt.Errorf("transaction %d: %w", t.ID, err)
		}
		if t.ID <= 0 || ids[t.ID] {
			return fmt.Errorf("transaction %d: %w", t.ID, invalid("id", "must be positive and unique"))
		}
		ids[t.ID] = true
		if billed[t.PrescriptionID] {
			return fmt.Errorf("transaction %d: %w", t.ID,
				&InvalidStateError{Entity: EntityPrescription, ID: t.PrescriptionID, Reason: ReasonAlreadyBilled})
		}
		billed[t.PrescriptionID] = true
		if isFilled, ok := filled[t.PrescriptionID]; ok && !isFilled {
			return fmt.Errorf("transaction %d: %w", t.ID,
				&InvalidStateError{Entity: EntityPrescription, ID: t.PrescriptionID, Reason: ReasonNotFilled})
		}
	}
	return nil
}

// Config returns the effective configuration.
func (l *Ledger) Config() Config { return l.cfg }

// =============================================================================
// USERS
// =============================================================================

// AddUser hashes password and appends the user. Usernames are unique.
func (l *Ledger) AddUser(ctx context.Context, username, password string, role Role) (User, error) {
	u, err := NewUser(username, password, role)
	if err != nil {
		return User{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.users) >= l.cfg.Limits.Users {
		return User{}, &CapacityError{Collection: "users", Limit: l.cfg.Limits.Users}
	}
	if l.userIndex(username) >= 0 {
		return User{}, invalid("username", fmt.Sprintf("%q already exists", username))
	}
	l.users = append(l.users, u)
	l.record(ctx, AuditUserAdded, EntityUser, 0, fmt.Sprintf("%s (%s)", u.Username, u.Role))
	return u, nil
}

// UserSeed is a plain-text credential used to bootstrap an empty store.
type UserSeed struct {
	Username string
	Password string
	Role     Role
}

// DefaultUsers are the built-in accounts of a fresh installation.
func DefaultUsers() []UserSeed {
	return []UserSeed{
		{Username: "admin", Password: "admin123", Role: RoleAdmin},
		{Username: "pharmacist", Password: "pharma123", Role: RolePharmacist},
	}
}

// EnsureUsers adds seeds only when the Ledger has no users yet. It returns
// how many were added.
func (l *Ledger) EnsureUsers(ctx context.Context, seeds []UserSeed) (int, error) {
	l.mu.RLock()
	empty := len(l.users) == 0
	l.mu.RUnlock()
	if !empty {
		return 0, nil
	}
	for i, s := range seeds {
		if _, err := l.AddUser(ctx, s.Username, s.Password, s.Role); err != nil {
			return i, fmt.Errorf("seed user %q: %w", s.Username, err)
		}
	}
	l.logger.Info("seeded default users", zap.Int("count", len(seeds)))
	return len(seeds), nil
}

// Authenticate checks credentials and returns the matching user.
func (l *Ledger) Authenticate(username, password string) (User, error) {
	l.mu.RLock()
	i := l.userIndex(username)
	var u User
	if i >= 0 {
		u = l.users[i]
	}
	l.mu.RUnlock()

	if i < 0 || !u.checkPassword(password) {
		l.logger.Warn("authentication failed", zap.String("username", username))
		return User{}, &AuthError{Username: username}
	}
	return u, nil
}

func (l *Ledger) Users() []User {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.users)
}

func (l *Ledger) userIndex(username string) int {
	return slices.IndexFunc(l.users, func(u User) bool { return u.Username == username })
}

// =============================================================================
// MEDICINES
// =============================================================================

func (l *Ledger) AddMedicine(ctx context.Context, in MedicineInput) (Medicine, error) {
	m, err := NewMedicine(in)
	if err != nil {
		return Medicine{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.medicines) >= l.cfg.Limits.Medicines {
		return Medicine{}, &CapacityError{Collection: "medicines", Limit: l.cfg.Limits.Medicines}
	}
	l.seq.Medicine++
	m.ID = l.seq.Medicine
	l.medicines = append(l.medicines, m)
	l.record(ctx, AuditMedicineAdded, EntityMedicine, m.ID, m.Name)
	return m, nil
}

// Medicine returns a copy of the medicine with the given id.
func (l *Ledger) Medicine(id int) (Medicine, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := l.medicineIndex(id)
	if i < 0 {
		return Medicine{}, &NotFoundError{Entity: EntityMedicine, ID: id}
	}
	return l.medicines[i], nil
}

// Medicines returns a snapshot in insertion order.
func (l *Ledger) Medicines() []Medicine {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.medicines)
}

// UpdateMedicine applies every set field of patch, or none of them.
func (l *Ledger) UpdateMedicine(ctx context.Context, id int, patch MedicinePatch) (Medicine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.medicineIndex(id)
	if i < 0 {
		return Medicine{}, &NotFoundError{Entity: EntityMedicine, ID: id}
	}
	updated, err := patch.applyTo(l.medicines[i])
	if err != nil {
		return Medicine{}, err
	}
	l.medicines[i] = updated
	l.record(ctx, AuditMedicineUpdated, EntityMedicine, id, updated.Name)
	return updated, nil
}

// DeleteMedicine removes the medicine even if pending prescriptions still
// reference it; those surface NotFound when fulfilled.
func (l *Ledger) DeleteMedicine(ctx context.Context, id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.medicineIndex(id)
	if i < 0 {
		return &NotFoundError{Entity: EntityMedicine, ID: id}
	}
	name := l.medicines[i].Name
	l.medicines = slices.Delete(l.medicines, i, i+1)
	l.record(ctx, AuditMedicineDeleted, EntityMedicine, id, name)
	return nil
}

func (l *Ledger) medicineIndex(id int) int {
	return slices.IndexFunc(l.medicines, func(m Medicine) bool { return m.ID == id })
}

// =============================================================================
// PRESCRIPTIONS
// =============================================================================

// AddPrescription validates the header and every item before inserting.
func (l *Ledger) AddPrescription(ctx context.Context, in PrescriptionInput) (Prescription, error) {
	rx, err := NewPrescription(in.PatientName, in.DoctorName, in.Date)
	if err != nil {
		return Prescription{}, err
	}
	if len(in.Items) == 0 {
		return Prescription{}, invalid("items", "at least one item is required")
	}
	for _, item := range in.Items {
		if err := rx.AddItem(item.MedicineID, item.Quantity); err != nil {
			return Prescription{}, err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.prescriptions) >= l.cfg.Limits.Prescriptions {
		return Prescription{}, &CapacityError{Collection: "prescriptions", Limit: l.cfg.Limits.Prescriptions}
	}
	l.seq.Prescription++
	rx.ID = l.seq.Prescription
	l.prescriptions = append(l.prescriptions, rx)
	l.record(ctx, AuditPrescriptionAdded, EntityPrescription, rx.ID,
		fmt.Sprintf("patient %s, %d item(s)", rx.PatientName, len(rx.Items)))
	return rx.clone(), nil
}

func (l *Ledger) Prescription(id int) (Prescription, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := l.prescriptionIndex(id)
	if i < 0 {
		return Prescription{}, &NotFoundError{Entity: EntityPrescription, ID: id}
	}
	return l.prescriptions[i].clone(), nil
}

func (l *Ledger) Prescriptions() []Prescription {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Prescription, len(l.prescriptions))
	for i, p := range l.prescriptions {
		out[i] = p.clone()
	}
	return out
}

// UpdatePrescription changes header fields of a pending prescription.
func (l *Ledger) UpdatePrescription(ctx context.Context, id int, patch PrescriptionPatch) (Prescription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, err := l.pendingPrescription(id)
	if err != nil {
		return Prescription{}, err
	}
	updated, err := patch.applyTo(l.prescriptions[i])
	if err != nil {
		return Prescription{}, err
	}
	l.prescriptions[i] = updated
	l.record(ctx, AuditPrescriptionUpdated, EntityPrescription, id, "")
	return updated.clone(), nil
}

// AddPrescriptionItem appends a line item to a pending prescription.
func (l *Ledger) AddPrescriptionItem(ctx context.Context, id, medicineID, quantity int) (Prescription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, err := l.pendingPrescription(id)
	if err != nil {
		return Prescription{}, err
	}
	rx := l.prescriptions[i].clone()
	if err := rx.AddItem(medicineID, quantity); err != nil {
		return Prescription{}, err
	}
	l.prescriptions[i] = rx
	l.record(ctx, AuditPrescriptionItem, EntityPrescription, id,
		fmt.Sprintf("medicine %d x%d", medicineID, quantity))
	return rx.clone(), nil
}

// DeletePrescription removes a pending prescription. Filled prescriptions
// are immutable records and cannot be deleted.
func (l *Ledger) DeletePrescription(ctx context.Context, id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, err := l.pendingPrescription(id)
	if err != nil {
		return err
	}
	l.prescriptions = slices.Delete(l.prescriptions, i, i+1)
	l.record(ctx, AuditPrescriptionDeleted, EntityPrescription, id, "")
	return nil
}

func (l *Ledger) prescriptionIndex(id int) int {
	return slices.IndexFunc(l.prescriptions, func(p Prescription) bool { return p.ID == id })
}

func (l *Ledger) pendingPrescription(id int) (int, error) {
	i := l.prescriptionIndex(id)
	if i < 0 {
		return -1, &NotFoundError{Entity: EntityPrescription, ID: id}
	}
	if l.prescriptions[i].Filled {
		return -1, &InvalidStateError{Entity: EntityPrescription, ID: id, Reason: ReasonAlreadyFilled}
	}
	return i, nil
}

// =============================================================================
// FULFILLMENT - PENDING -> FILLED, all or nothing
// =============================================================================

// FulfillPrescription deducts every item's quantity from stock and marks the
// prescription filled. If any medicine is missing or short, nothing changes.
func (l *Ledger) FulfillPrescription(ctx context.Context, id int) (Prescription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pi := l.prescriptionIndex(id)
	if pi < 0 {
		return Prescription{}, &NotFoundError{Entity: EntityPrescription, ID: id}
	}
	rx := l.prescriptions[pi]
	if rx.Filled {
		return Prescription{}, &InvalidStateError{Entity: EntityPrescription, ID: id, Reason: ReasonAlreadyFilled}
	}

	// Resolve every reference; several items may name the same medicine.
	var order []int
	required := make(map[int]int)
	for _, item := range rx.Items {
		if l.medicineIndex(item.MedicineID) < 0 {
			return Prescription{}, &NotFoundError{Entity: EntityMedicine, ID: item.MedicineID}
		}
		if _, seen := required[item.MedicineID]; !seen {
			order = append(order, item.MedicineID)
		}
		required[item.MedicineID] += item.Quantity
	}

	// Pre-check pass. Completes before any deduction.
	for _, medID := range order {
		m := l.medicines[l.medicineIndex(medID)]
		if m.Quantity < required[medID] {
			return Prescription{}, &InsufficientStockError{
				MedicineID: medID,
				Required:   required[medID],
				Available:  m.Quantity,
			}
		}
	}

	// Commit pass: deduct per item on staged copies, then write back.
	staged := make(map[int]Medicine, len(order))
	for _, item := range rx.Items {
		idx := l.medicineIndex(item.MedicineID)
		m, ok := staged[idx]
		if !ok {
			m = l.medicines[idx]
		}
		if err := m.ReduceQuantity(item.Quantity); err != nil {
			return Prescription{}, fmt.Errorf("medicine %d: %w", item.MedicineID, err)
		}
		staged[idx] = m
	}
	for idx, m := range staged {
		l.medicines[idx] = m
	}
	l.prescriptions[pi].markFilled()

	l.record(ctx, AuditPrescriptionFilled, EntityPrescription, id,
		fmt.Sprintf("%d item(s) deducted", len(rx.Items)))
	return l.prescriptions[pi].clone(), nil
}

// =============================================================================
// BILLING - One Transaction per filled prescription
// =============================================================================

// BillPrescription totals the filled prescription at live medicine prices and
// appends a Transaction dated today. A price change between fulfillment and
// billing is reflected in the bill.
func (l *Ledger) BillPrescription(ctx context.Context, id int, pt PaymentType, details string) (Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pi := l.prescriptionIndex(id)
	if pi < 0 {
		return Transaction{}, &NotFoundError{Entity: EntityPrescription, ID: id}
	}
	rx := l.prescriptions[pi]
	if !rx.Filled {
		return Transaction{}, &InvalidStateError{Entity: EntityPrescription, ID: id, Reason: ReasonNotFilled}
	}
	if l.transactionIndexForPrescription(id) >= 0 {
		return Transaction{}, &InvalidStateError{Entity: EntityPrescription, ID: id, Reason: ReasonAlreadyBilled}
	}

	total := decimal.Zero
	for _, item := range rx.Items {
		mi := l.medicineIndex(item.MedicineID)
		if mi < 0 {
			return Transaction{}, &NotFoundError{Entity: EntityMedicine, ID: item.MedicineID}
		}
		total = total.Add(l.medicines[mi].Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	tx, err := newTransaction(DateOf(l.now()), id, total, pt, details)
	if err != nil {
		return Transaction{}, err
	}
	if len(l.transactions) >= l.cfg.Limits.Transactions {
		return Transaction{}, &CapacityError{Collection: "transactions", Limit: l.cfg.Limits.Transactions}
	}
	l.seq.Transaction++
	tx.ID = l.seq.Transaction
	l.transactions = append(l.transactions, tx)

	l.record(ctx, AuditPrescriptionBilled, EntityPrescription, id,
		fmt.Sprintf("transaction %d, %s %s", tx.ID, tx.PaymentType.Label(), FormatMoney(tx.TotalAmount)))
	return tx, nil
}

func (l *Ledger) Transactions() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.transactions)
}

func (l *Ledger) Transaction(id int) (Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := slices.IndexFunc(l.transactions, func(t Transaction) bool { return t.ID == id })
	if i < 0 {
		return Transaction{}, &NotFoundError{Entity: EntityTransaction, ID: id}
	}
	return l.transactions[i], nil
}

// TransactionForPrescription returns the receipt of a billed prescription.
func (l *Ledger) TransactionForPrescription(prescriptionID int) (Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := l.transactionIndexForPrescription(prescriptionID)
	if i < 0 {
		return Transaction{}, &NotFoundError{Entity: EntityTransaction, ID: prescriptionID}
	}
	return l.transactions[i], nil
}

func (l *Ledger) transactionIndexForPrescription(prescriptionID int) int {
	return slices.IndexFunc(l.transactions, func(t Transaction) bool { return t.PrescriptionID == prescriptionID })
}

// =============================================================================
// AUDIT
// =============================================================================

// record is called with the write lock held, after the mutation succeeded.
func (l *Ledger) record(ctx context.Context, action AuditAction, entity string, id int, detail string) {
	entry := AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: l.now().UTC(),
		Actor:     ActorFrom(ctx),
		Action:    action,
		Entity:    entity,
		EntityID:  id,
		Detail:    detail,
	}
	l.logger.Debug("ledger mutation",
		zap.String("actor", entry.Actor),
		zap.String("action", string(action)),
		zap.String("entity", entity),
		zap.Int("id", id),
	)
	if l.auditor != nil {
		l.auditor.Record(ctx, entry)
	}
}
