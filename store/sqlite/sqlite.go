/*
Package sqlite provides a SQLite-backed Persister and audit sink for the
pharmacy Ledger.

PURPOSE:
  Implements pharmacy.Persister (load on start, save on stop) and the audit
  sink using SQLite. The Ledger works in memory; this store only sees whole
  snapshots and individual audit entries.

INTERFACES IMPLEMENTED:
  pharmacy.Persister: Load / Save of the four collections plus id sequences
  audit.Sink:         Append of audit entries

SAVE SEMANTICS:
  Save replaces the stored state in one database transaction: every record
  table is cleared and rewritten. A failed Save leaves the previous state
  intact. The audit_log table is never cleared by Save.

KEY TABLES:
  users:              Credentials (bcrypt hash) and role
  medicines:          Stock records, price as decimal text
  prescriptions:      Headers
  prescription_items: Ordered line items (position keeps insertion order)
  transactions:       Receipts, one per prescription (UNIQUE)
  sequences:          Last id issued per collection
  audit_log:          Append-only trail of mutations

MONEY:
  Prices and totals are stored as decimal strings, never REAL, so a reload
  reproduces the exact amounts.

CONCURRENCY:
  Uses sync.RWMutex plus a single connection. SQLite allows one writer, and
  ":memory:" databases exist per connection.

USAGE:
  store, err := sqlite.New("./data/pharmacy.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger, err := pharmacy.Open(ctx, store, cfg)
  if err != nil {
      log.Fatal(err) // or keep going without saving to store
  }
  defer ledger.Persist(ctx, store)

SEE ALSO:
  - pharmacy/store.go: Persister contract
  - pharmacy/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/pharmacy-ledger/pharmacy"
)

// timestampLayout is fixed width so audit timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements pharmacy.Persister and audit.Sink using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection (for health checks).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS medicines (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		price TEXT NOT NULL,
		expiry TEXT NOT NULL,
		controlled BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS prescriptions (
		id INTEGER PRIMARY KEY,
		patient_name TEXT NOT NULL,
		doctor_name TEXT NOT NULL,
		date TEXT NOT NULL,
		filled BOOLEAN NOT NULL DEFAULT FALSE
	);

	-- medicine_id is a weak reference: medicines may be deleted while a
	-- prescription is pending, so there is no foreign key on it.
	CREATE TABLE IF NOT EXISTS prescription_items (
		prescription_id INTEGER NOT NULL REFERENCES prescriptions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		medicine_id INTEGER NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		PRIMARY KEY (prescription_id, position)
	);

	-- At most one receipt per prescription.
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY,
		date TEXT NOT NULL,
		prescription_id INTEGER NOT NULL UNIQUE,
		total_amount TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		payment_details TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sequences (
		collection TEXT PRIMARY KEY,
		last_id INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		entity TEXT NOT NULL,
		entity_id INTEGER NOT NULL,
		detail TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_entity
		ON audit_log(entity, entity_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp
		ON audit_log(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PERSISTER - Whole-snapshot save and load
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Save replaces the stored records with snap in a single transaction.
func (s *Store) Save(ctx context.Context, snap pharmacy.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, table := range []string{"prescription_items", "transactions", "prescriptions", "medicines", "users", "sequences"} {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := saveUsers(ctx, sqlTx, snap.Users); err != nil {
		return err
	}
	if err := saveMedicines(ctx, sqlTx, snap.Medicines); err != nil {
		return err
	}
	if err := savePrescriptions(ctx, sqlTx, snap.Prescriptions); err != nil {
		return err
	}
	if err := saveTransactions(ctx, sqlTx, snap.Transactions); err != nil {
		return err
	}
	if err := saveSequences(ctx, sqlTx, snap.Sequences); err != nil {
		return err
	}

	return sqlTx.Commit()
}

func saveUsers(ctx context.Context, db execer, users []pharmacy.User) error {
	for _, u := range users {
		_, err := db.ExecContext(ctx,
			`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
			u.Username, u.PasswordHash, string(u.Role),
		)
		if err != nil {
			return fmt.Errorf("failed to save user %q: %w", u.Username, err)
		}
	}
	return nil
}

func saveMedicines(ctx context.Context, db execer, medicines []pharmacy.Medicine) error {
	for _, m := range medicines {
		_, err := db.ExecContext(ctx, `
			INSERT INTO medicines (id, name, description, quantity, price, expiry, controlled)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Name, nullString(m.Description), m.Quantity,
			m.Price.String(), m.Expiry.ISO(), m.Controlled,
		)
		if err != nil {
			return fmt.Errorf("failed to save medicine %d: %w", m.ID, err)
		}
	}
	return nil
}

func savePrescriptions(ctx context.Context, db execer, prescriptions []pharmacy.Prescription) error {
	for _, p := range prescriptions {
		_, err := db.ExecContext(ctx, `
			INSERT INTO prescriptions (id, patient_name, doctor_name, date, filled)
			VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.PatientName, p.DoctorName, p.Date.ISO(), p.Filled,
		)
		if err != nil {
			return fmt.Errorf("failed to save prescription %d: %w", p.ID, err)
		}
		for pos, item := range p.Items {
			_, err := db.ExecContext(ctx, `
				INSERT INTO prescription_items (prescription_id, position, medicine_id, quantity)
				VALUES (?, ?, ?, ?)`,
				p.ID, pos, item.MedicineID, item.Quantity,
			)
			if err != nil {
				return fmt.Errorf("failed to save prescription %d item %d: %w", p.ID, pos, err)
			}
		}
	}
	return nil
}

func saveTransactions(ctx context.Context, db execer, transactions []pharmacy.Transaction) error {
	for _, t := range transactions {
		_, err := db.ExecContext(ctx, `
			INSERT INTO transactions (id, date, prescription_id, total_amount, payment_type, payment_details)
			VALUES (?, ?, ?, ?, ?, ?)`,
			t.ID, t.Date.ISO(), t.PrescriptionID, t.TotalAmount.String(),
			string(t.PaymentType), t.PaymentDetails,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("prescription %d billed twice: %w", t.PrescriptionID, err)
			}
			return fmt.Errorf("failed to save transaction %d: %w", t.ID, err)
		}
	}
	return nil
}

func saveSequences(ctx context.Context, db execer, seq pharmacy.Sequences) error {
	for name, last := range map[string]int{
		pharmacy.EntityMedicine:     seq.Medicine,
		pharmacy.EntityPrescription: seq.Prescription,
		pharmacy.EntityTransaction:  seq.Transaction,
	} {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO sequences (collection, last_id) VALUES (?, ?)`, name, last,
		); err != nil {
			return fmt.Errorf("failed to save sequence %s: %w", name, err)
		}
	}
	return nil
}

// Load reads every stored record. An empty database yields an empty snapshot.
func (s *Store) Load(ctx context.Context) (pharmacy.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		snap pharmacy.Snapshot
		err  error
	)
	if snap.Users, err = s.loadUsers(ctx); err != nil {
		return pharmacy.Snapshot{}, err
	}
	if snap.Medicines, err = s.loadMedicines(ctx); err != nil {
		return pharmacy.Snapshot{}, err
	}
	if snap.Prescriptions, err = s.loadPrescriptions(ctx); err != nil {
		return pharmacy.Snapshot{}, err
	}
	if snap.Transactions, err = s.loadTransactions(ctx); err != nil {
		return pharmacy.Snapshot{}, err
	}
	if snap.Sequences, err = s.loadSequences(ctx); err != nil {
		return pharmacy.Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) loadUsers(ctx context.Context) ([]pharmacy.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, password_hash, role FROM users ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []pharmacy.User
	for rows.Next() {
		var (
			u    pharmacy.User
			role string
		)
		if err := rows.Scan(&u.Username, &u.PasswordHash, &role); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Role = pharmacy.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) loadMedicines(ctx context.Context) ([]pharmacy.Medicine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, quantity, price, expiry, controlled
		FROM medicines ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query medicines: %w", err)
	}
	defer rows.Close()

	var medicines []pharmacy.Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		medicines = append(medicines, m)
	}
	return medicines, rows.Err()
}

func scanMedicine(rows *sql.Rows) (pharmacy.Medicine, error) {
	var (
		m           pharmacy.Medicine
		description sql.NullString
		price       string
		expiry      string
	)
	if err := rows.Scan(&m.ID, &m.Name, &description, &m.Quantity, &price, &expiry, &m.Controlled); err != nil {
		return m, fmt.Errorf("failed to scan medicine: %w", err)
	}
	m.Description = description.String

	var err error
	if m.Price, err = decimal.NewFromString(price); err != nil {
		return m, fmt.Errorf("medicine %d price %q: %w", m.ID, price, err)
	}
	if m.Expiry, err = pharmacy.ParseDate(expiry); err != nil {
		return m, fmt.Errorf("medicine %d expiry: %w", m.ID, err)
	}
	return m, nil
}

func (s *Store) loadPrescriptions(ctx context.Context) ([]pharmacy.Prescription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient_name, doctor_name, date, filled
		FROM prescriptions ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query prescriptions: %w", err)
	}

	var (
		prescriptions []pharmacy.Prescription
		index         = make(map[int]int)
	)
	for rows.Next() {
		var (
			p    pharmacy.Prescription
			date string
		)
		if err := rows.Scan(&p.ID, &p.PatientName, &p.DoctorName, &date, &p.Filled); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan prescription: %w", err)
		}
		if p.Date, err = pharmacy.ParseDate(date); err != nil {
			rows.Close()
			return nil, fmt.Errorf("prescription %d date: %w", p.ID, err)
		}
		index[p.ID] = len(prescriptions)
		prescriptions = append(prescriptions, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Single connection: the header cursor must be closed before the item query.
	rows.Close()

	items, err := s.db.QueryContext(ctx, `
		SELECT prescription_id, medicine_id, quantity
		FROM prescription_items ORDER BY prescription_id, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query prescription items: %w", err)
	}
	defer items.Close()

	for items.Next() {
		var (
			rxID int
			item pharmacy.Item
		)
		if err := items.Scan(&rxID, &item.MedicineID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan prescription item: %w", err)
		}
		i, ok := index[rxID]
		if !ok {
			return nil, fmt.Errorf("item references missing prescription %d", rxID)
		}
		prescriptions[i].Items = append(prescriptions[i].Items, item)
	}
	return prescriptions, items.Err()
}

func (s *Store) loadTransactions(ctx context.Context) ([]pharmacy.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, prescription_id, total_amount, payment_type, payment_details
		FROM transactions ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []pharmacy.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (pharmacy.Transaction, error) {
	var (
		t           pharmacy.Transaction
		date        string
		total       string
		paymentType string
	)
	if err := rows.Scan(&t.ID, &date, &t.PrescriptionID, &total, &paymentType, &t.PaymentDetails); err != nil {
		return t, fmt.Errorf("failed to scan transaction: %w", err)
	}

	var err error
	if t.Date, err = pharmacy.ParseDate(date); err != nil {
		return t, fmt.Errorf("transaction %d date: %w", t.ID, err)
	}
	if t.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return t, fmt.Errorf("transaction %d total %q: %w", t.ID, total, err)
	}
	t.PaymentType = pharmacy.PaymentType(paymentType)
	return t, nil
}

func (s *Store) loadSequences(ctx context.Context) (pharmacy.Sequences, error) {
	var seq pharmacy.Sequences
	rows, err := s.db.QueryContext(ctx, `SELECT collection, last_id FROM sequences`)
	if err != nil {
		return seq, fmt.Errorf("failed to query sequences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name string
			last int
		)
		if err := rows.Scan(&name, &last); err != nil {
			return seq, fmt.Errorf("failed to scan sequence: %w", err)
		}
		switch name {
		case pharmacy.EntityMedicine:
			seq.Medicine = last
		case pharmacy.EntityPrescription:
			seq.Prescription = last
		case pharmacy.EntityTransaction:
			seq.Transaction = last
		}
	}
	return seq, rows.Err()
}

// =============================================================================
// AUDIT LOG - Append-only
// =============================================================================

// Append writes one audit entry.
func (s *Store) Append(ctx context.Context, entry pharmacy.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, actor, action, entity, entity_id, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp.UTC().Format(timestampLayout),
		entry.Actor,
		string(entry.Action),
		entry.Entity,
		entry.EntityID,
		nullString(entry.Detail),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// Entries returns the audit trail oldest first. An empty entity returns
// every entry.
func (s *Store) Entries(ctx context.Context, entity string, id int) ([]pharmacy.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, timestamp, actor, action, entity, entity_id, detail FROM audit_log`
	var args []any
	if entity != "" {
		query += ` WHERE entity = ? AND entity_id = ?`
		args = append(args, entity, id)
	}
	query += ` ORDER BY timestamp ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []pharmacy.AuditEntry
	for rows.Next() {
		var (
			e      pharmacy.AuditEntry
			ts     string
			action string
			detail sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &e.Actor, &action, &e.Entity, &e.EntityID, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if e.Timestamp, err = time.Parse(timestampLayout, ts); err != nil {
			return nil, fmt.Errorf("failed to parse audit timestamp %q: %w", ts, err)
		}
		e.Action = pharmacy.AuditAction(action)
		e.Detail = detail.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
