package persistence

import (
	"context"
	"time"

	appbilling "github.com/crm/backend/internal/application/billing"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormActivityLogger appends timeline entries to the activity_logs
// table. Calls made inside a TxManager transaction join it, so the
// entry commits or rolls back with the document write.
type GormActivityLogger struct {
	db *gorm.DB
}

// NewGormActivityLogger creates a new GormActivityLogger
func NewGormActivityLogger(db *gorm.DB) *GormActivityLogger {
	return &GormActivityLogger{db: db}
}

// LogActivity appends one entry to a record's timeline
func (l *GormActivityLogger) LogActivity(ctx context.Context, activity appbilling.Activity) error {
	model := &models.ActivityLogModel{
		ID:          uuid.New(),
		TenantID:    activity.TenantID,
		EntityKind:  activity.EntityKind,
		EntityID:    activity.EntityID,
		ActorID:     activity.ActorID,
		Kind:        activity.Kind,
		Description: activity.Description,
		CreatedAt:   time.Now(),
	}
	return dbFrom(ctx, l.db).Create(model).Error
}

// FindByEntity lists a record's timeline, newest first
func (l *GormActivityLogger) FindByEntity(ctx context.Context, tenantID uuid.UUID, entityKind string, entityID uuid.UUID, limit int) ([]models.ActivityLogModel, error) {
	var entries []models.ActivityLogModel
	query := dbFrom(ctx, l.db).
		Where("tenant_id = ? AND entity_kind = ? AND entity_id = ?", tenantID, entityKind, entityID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Ensure GormActivityLogger implements ActivityLogger
var _ appbilling.ActivityLogger = (*GormActivityLogger)(nil)
