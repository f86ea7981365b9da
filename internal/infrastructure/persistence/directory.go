package persistence

import (
	"context"

	appapproval "github.com/crm/backend/internal/application/approval"
	appbilling "github.com/crm/backend/internal/application/billing"
	"github.com/crm/backend/internal/domain/approval"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDirectory answers existence and state questions against the CRM
// tables.
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory creates a new GormDirectory
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

// CustomerInTenant reports whether the customer exists in the tenant
func (d *GormDirectory) CustomerInTenant(ctx context.Context, tenantID, customerID uuid.UUID) (bool, error) {
	var count int64
	if err := dbFrom(ctx, d.db).
		Model(&models.CustomerModel{}).
		Where("tenant_id = ? AND id = ?", tenantID, customerID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ProductInTenant reports whether the product exists in the tenant
func (d *GormDirectory) ProductInTenant(ctx context.Context, tenantID, productID uuid.UUID) (bool, error) {
	var count int64
	if err := dbFrom(ctx, d.db).
		Model(&models.ProductModel{}).
		Where("tenant_id = ? AND id = ?", tenantID, productID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// OpportunityIsOpen reports whether the opportunity exists and is still open
func (d *GormDirectory) OpportunityIsOpen(ctx context.Context, tenantID, opportunityID uuid.UUID) (bool, error) {
	var count int64
	if err := dbFrom(ctx, d.db).
		Model(&models.OpportunityModel{}).
		Where("tenant_id = ? AND id = ? AND stage NOT IN ?", tenantID, opportunityID,
			[]string{models.OpportunityStageWon, models.OpportunityStageLost, models.OpportunityStageAbandoned}).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GormApproverResolver expands approval steps into concrete user sets
// by walking the users table.
type GormApproverResolver struct {
	db *gorm.DB
}

// NewGormApproverResolver creates a new GormApproverResolver
func NewGormApproverResolver(db *gorm.DB) *GormApproverResolver {
	return &GormApproverResolver{db: db}
}

// Resolve returns the active users authorized to decide a step
func (r *GormApproverResolver) Resolve(ctx context.Context, tenantID uuid.UUID, step approval.ApprovalStep, requesterID uuid.UUID) ([]uuid.UUID, error) {
	query := dbFrom(ctx, r.db).
		Model(&models.UserModel{}).
		Where("tenant_id = ? AND is_active = ?", tenantID, true)

	switch step.ApproverType {
	case approval.ApproverTypeRole:
		query = query.Where("role = ?", step.ApproverRole)
	case approval.ApproverTypeUser:
		query = query.Where("id = ?", step.ApproverUserID)
	case approval.ApproverTypeTeam:
		query = query.Where("team_id = ?", step.ApproverTeamID)
	case approval.ApproverTypeManager:
		query = query.Where("id = (?)", dbFrom(ctx, r.db).
			Model(&models.UserModel{}).
			Select("manager_id").
			Where("tenant_id = ? AND id = ?", tenantID, requesterID))
	default:
		return nil, nil
	}

	var ids []uuid.UUID
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Ensure implementations satisfy their ports
var (
	_ appbilling.Directory        = (*GormDirectory)(nil)
	_ appapproval.ApproverResolver = (*GormApproverResolver)(nil)
)
