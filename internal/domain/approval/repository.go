package approval

import (
	"context"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// RequestFilter defines filtering options for approval request queries
type RequestFilter struct {
	shared.Filter
	Status     *ApprovalStatus
	EntityKind string
	EntityID   *uuid.UUID
}

// ProcessRepository defines the interface for approval process persistence
type ProcessRepository interface {
	// FindByIDForTenant finds a process by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ApprovalProcess, error)

	// FindActiveByEntityKind finds active processes applying to an entity kind
	FindActiveByEntityKind(ctx context.Context, tenantID uuid.UUID, entityKind string) ([]ApprovalProcess, error)

	// FindAllForTenant lists all processes for a tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]ApprovalProcess, error)

	// Save creates or updates a process
	Save(ctx context.Context, process *ApprovalProcess) error
}

// RequestRepository defines the interface for approval request persistence
type RequestRepository interface {
	// FindByIDForTenant finds a request by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ApprovalRequest, error)

	// FindByEntity finds requests raised against a document
	FindByEntity(ctx context.Context, tenantID uuid.UUID, entity EntityRef) ([]ApprovalRequest, error)

	// FindAllForTenant lists requests for a tenant with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter RequestFilter) ([]ApprovalRequest, error)

	// Save creates or updates a request
	Save(ctx context.Context, request *ApprovalRequest) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, request *ApprovalRequest) error
}
