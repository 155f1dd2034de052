package pharmacy

import (
	"context"
	"time"
)

// =============================================================================
// AUDIT - Who did what when. Separate from the records themselves.
// =============================================================================

type AuditAction string

const (
	AuditUserAdded           AuditAction = "user_added"
	AuditMedicineAdded       AuditAction = "medicine_added"
	AuditMedicineUpdated     AuditAction = "medicine_updated"
	AuditMedicineDeleted     AuditAction = "medicine_deleted"
	AuditPrescriptionAdded   AuditAction = "prescription_added"
	AuditPrescriptionUpdated AuditAction = "prescription_updated"
	AuditPrescriptionItem    AuditAction = "prescription_item_added"
	AuditPrescriptionDeleted AuditAction = "prescription_deleted"
	AuditPrescriptionFilled  AuditAction = "prescription_fulfilled"
	AuditPrescriptionBilled  AuditAction = "prescription_billed"
)

// AuditEntry records one successful mutation.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	Actor     string
	Action    AuditAction
	Entity    string
	EntityID  int
	Detail    string
}

// Auditor receives an entry after each successful mutation. Record must not
// block and has no error: a failing audit trail never fails the operation.
type Auditor interface {
	Record(ctx context.Context, entry AuditEntry)
}

// =============================================================================
// ACTOR - Acting user carried in the context
// =============================================================================

type actorKey struct{}

// SystemActor is used when no user is attached to the context.
const SystemActor = "system"

func WithActor(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, actorKey{}, username)
}

func ActorFrom(ctx context.Context) string {
	if u, ok := ctx.Value(actorKey{}).(string); ok && u != "" {
		return u
	}
	return SystemActor
}
