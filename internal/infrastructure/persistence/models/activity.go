package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityLogModel is an append-only timeline entry for a CRM record.
type ActivityLogModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index:idx_activity_entity,priority:1"`
	EntityKind  string    `gorm:"type:varchar(50);not null;index:idx_activity_entity,priority:2"`
	EntityID    uuid.UUID `gorm:"type:uuid;not null;index:idx_activity_entity,priority:3"`
	ActorID     uuid.UUID `gorm:"type:uuid;not null"`
	Kind        string    `gorm:"type:varchar(30);not null"`
	Description string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (ActivityLogModel) TableName() string {
	return "activity_logs"
}
