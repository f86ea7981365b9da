package persistence

import (
	"context"

	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/crm/backend/internal/infrastructure/scheduler"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTenantProvider lists the tenants that hold billing documents, for
// tenant-by-tenant background sweeps.
type GormTenantProvider struct {
	db *gorm.DB
}

// NewGormTenantProvider creates a new GormTenantProvider
func NewGormTenantProvider(db *gorm.DB) *GormTenantProvider {
	return &GormTenantProvider{db: db}
}

// GetAllActiveTenantIDs returns the distinct tenants with invoices
func (p *GormTenantProvider) GetAllActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := p.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Distinct("tenant_id").
		Pluck("tenant_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Ensure GormTenantProvider implements TenantProvider
var _ scheduler.TenantProvider = (*GormTenantProvider)(nil)
