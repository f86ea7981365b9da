package billing

import (
	"context"

	"github.com/google/uuid"
)

// TxManager runs a function inside a storage transaction. Repository
// calls made with the context it passes join that transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Directory answers existence and state questions about CRM records
// that live outside the billing module.
type Directory interface {
	// CustomerInTenant reports whether the customer exists in the tenant
	CustomerInTenant(ctx context.Context, tenantID, customerID uuid.UUID) (bool, error)

	// ProductInTenant reports whether the product exists in the tenant
	ProductInTenant(ctx context.Context, tenantID, productID uuid.UUID) (bool, error)

	// OpportunityIsOpen reports whether the opportunity exists and is
	// still open (not won, lost, or abandoned)
	OpportunityIsOpen(ctx context.Context, tenantID, opportunityID uuid.UUID) (bool, error)
}

// Activity is one timeline entry attached to a CRM record
type Activity struct {
	TenantID    uuid.UUID
	ActorID     uuid.UUID
	EntityKind  string
	EntityID    uuid.UUID
	Kind        string
	Description string
}

// Activity kinds written by the billing services
const (
	ActivityKindStatusChange = "STATUS_CHANGE"
	ActivityKindPayment      = "PAYMENT"
	ActivityKindConversion   = "CONVERSION"
	ActivityKindNote         = "NOTE"
)

// SystemActorID marks timeline entries written by background jobs
// rather than a user.
var SystemActorID = uuid.Nil

// ActivityLogger appends entries to record timelines. Implementations
// that share the caller's transaction make the entry atomic with the
// document write.
type ActivityLogger interface {
	LogActivity(ctx context.Context, activity Activity) error
}
