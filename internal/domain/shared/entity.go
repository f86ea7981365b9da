package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity identifies a persistent domain object
type Entity interface {
	GetID() uuid.UUID
}

// BaseEntity carries identity and bookkeeping timestamps. Timestamps
// are owned by the domain, not the database; constructors and
// mutating methods keep UpdatedAt current.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetID returns the entity ID
func (e *BaseEntity) GetID() uuid.UUID {
	return e.ID
}

// NewBaseEntity mints an entity with a fresh ID and matching timestamps
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
