/*
store.go - Persistence contract between the Ledger and its storage

PURPOSE:
  The Ledger is an in-memory aggregate. A Persister fills it on process start
  and serializes it on process stop (init-on-start / persist-on-stop).
  The encoding on disk is the Persister's concern, not the Ledger's.

KEY TYPES:
  Snapshot:  The four collections plus id sequences, as plain values
  Persister: Load() -> Snapshot, Save(Snapshot)

ID SEQUENCES:
  Ids are never reused after deletion, so the last issued id of each
  collection travels with the snapshot. On restore the Ledger takes
  max(sequence, highest loaded id).

IMPLEMENTATIONS:
  - pharmacy/store/memory.go: In-memory for tests and dev
  - store/sqlite/sqlite.go:   SQLite file

SEE ALSO:
  - ledger.go: Open, Restore, Snapshot, Persist
  - audit.go:  The other collaborator contract
*/
package pharmacy

import "context"

// =============================================================================
// SNAPSHOT - Plain-value copy of every collection
// =============================================================================

// Sequences holds the last id issued per collection.
type Sequences struct {
	Medicine     int
	Prescription int
	Transaction  int
}

// Snapshot is a deep copy; mutating it never affects a Ledger.
type Snapshot struct {
	Users         []User
	Medicines     []Medicine
	Prescriptions []Prescription
	Transactions  []Transaction
	Sequences     Sequences
}

// IsEmpty reports whether the snapshot holds no records at all.
func (s Snapshot) IsEmpty() bool {
	return len(s.Users) == 0 && len(s.Medicines) == 0 &&
		len(s.Prescriptions) == 0 && len(s.Transactions) == 0
}

// Clone deep-copies the snapshot, including prescription items.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Users:        append([]User(nil), s.Users...),
		Medicines:    append([]Medicine(nil), s.Medicines...),
		Transactions: append([]Transaction(nil), s.Transactions...),
		Sequences:    s.Sequences,
	}
	if s.Prescriptions != nil {
		out.Prescriptions = make([]Prescription, len(s.Prescriptions))
		for i, p := range s.Prescriptions {
			out.Prescriptions[i] = p.clone()
		}
	}
	return out
}

// =============================================================================
// PERSISTER - Load on start, save on stop
// =============================================================================

// Persister loads and saves whole snapshots. Save replaces whatever was
// stored before; it is not incremental.
type Persister interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}
