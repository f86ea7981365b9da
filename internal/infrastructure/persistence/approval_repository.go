package persistence

import (
	"context"
	"errors"

	"github.com/crm/backend/internal/domain/approval"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormProcessRepository implements ProcessRepository using GORM
type GormProcessRepository struct {
	db *gorm.DB
}

// NewGormProcessRepository creates a new GormProcessRepository
func NewGormProcessRepository(db *gorm.DB) *GormProcessRepository {
	return &GormProcessRepository{db: db}
}

// FindByIDForTenant finds a process by ID for a specific tenant
func (r *GormProcessRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*approval.ApprovalProcess, error) {
	var model models.ApprovalProcessModel
	if err := dbFrom(ctx, r.db).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByEntityKind finds active processes applying to an entity kind
func (r *GormProcessRepository) FindActiveByEntityKind(ctx context.Context, tenantID uuid.UUID, entityKind string) ([]approval.ApprovalProcess, error) {
	var processModels []models.ApprovalProcessModel
	if err := dbFrom(ctx, r.db).
		Where("tenant_id = ? AND entity_kind = ? AND is_active = ?", tenantID, entityKind, true).
		Order("created_at ASC").
		Find(&processModels).Error; err != nil {
		return nil, err
	}
	processes := make([]approval.ApprovalProcess, len(processModels))
	for i, model := range processModels {
		processes[i] = *model.ToDomain()
	}
	return processes, nil
}

// FindAllForTenant lists all processes for a tenant
func (r *GormProcessRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]approval.ApprovalProcess, error) {
	var processModels []models.ApprovalProcessModel
	query := dbFrom(ctx, r.db).Model(&models.ApprovalProcessModel{}).
		Where("tenant_id = ?", tenantID)
	query = applyBaseFilter(query, filter)

	if err := query.Find(&processModels).Error; err != nil {
		return nil, err
	}
	processes := make([]approval.ApprovalProcess, len(processModels))
	for i, model := range processModels {
		processes[i] = *model.ToDomain()
	}
	return processes, nil
}

// Save creates or updates a process
func (r *GormProcessRepository) Save(ctx context.Context, process *approval.ApprovalProcess) error {
	model := models.ApprovalProcessModelFromDomain(process)
	return saveError(dbFrom(ctx, r.db).Save(model).Error)
}

// GormRequestRepository implements RequestRepository using GORM
type GormRequestRepository struct {
	db *gorm.DB
}

// NewGormRequestRepository creates a new GormRequestRepository
func NewGormRequestRepository(db *gorm.DB) *GormRequestRepository {
	return &GormRequestRepository{db: db}
}

// FindByIDForTenant finds a request by ID for a specific tenant
func (r *GormRequestRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*approval.ApprovalRequest, error) {
	var model models.ApprovalRequestModel
	if err := dbFrom(ctx, r.db).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByEntity finds requests raised against a document
func (r *GormRequestRepository) FindByEntity(ctx context.Context, tenantID uuid.UUID, entity approval.EntityRef) ([]approval.ApprovalRequest, error) {
	var requestModels []models.ApprovalRequestModel
	if err := dbFrom(ctx, r.db).
		Where("tenant_id = ? AND entity_kind = ? AND entity_id = ?", tenantID, entity.Kind, entity.ID).
		Order("submitted_at DESC").
		Find(&requestModels).Error; err != nil {
		return nil, err
	}
	requests := make([]approval.ApprovalRequest, len(requestModels))
	for i, model := range requestModels {
		requests[i] = *model.ToDomain()
	}
	return requests, nil
}

// FindAllForTenant lists requests for a tenant with filtering
func (r *GormRequestRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter approval.RequestFilter) ([]approval.ApprovalRequest, error) {
	var requestModels []models.ApprovalRequestModel
	query := dbFrom(ctx, r.db).Model(&models.ApprovalRequestModel{}).
		Where("tenant_id = ?", tenantID)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.EntityKind != "" {
		query = query.Where("entity_kind = ?", filter.EntityKind)
	}
	if filter.EntityID != nil {
		query = query.Where("entity_id = ?", *filter.EntityID)
	}
	query = applyBaseFilter(query, filter.Filter)

	if err := query.Find(&requestModels).Error; err != nil {
		return nil, err
	}
	requests := make([]approval.ApprovalRequest, len(requestModels))
	for i, model := range requestModels {
		requests[i] = *model.ToDomain()
	}
	return requests, nil
}

// Save creates or updates a request
func (r *GormRequestRepository) Save(ctx context.Context, request *approval.ApprovalRequest) error {
	model := models.ApprovalRequestModelFromDomain(request)
	return saveError(dbFrom(ctx, r.db).Save(model).Error)
}

// SaveWithLock saves with optimistic locking
func (r *GormRequestRepository) SaveWithLock(ctx context.Context, request *approval.ApprovalRequest) error {
	model := models.ApprovalRequestModelFromDomain(request)
	result := dbFrom(ctx, r.db).
		Model(model).
		Where("id = ? AND version = ?", request.ID, request.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// applyBaseFilter applies ordering and pagination shared by list queries
func applyBaseFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	orderDir := filter.OrderDir
	if orderDir != "asc" && orderDir != "desc" {
		orderDir = "desc"
	}
	query = query.Order(orderBy + " " + orderDir)

	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	return query
}

// Ensure repositories implement their interfaces
var (
	_ approval.ProcessRepository = (*GormProcessRepository)(nil)
	_ approval.RequestRepository = (*GormRequestRepository)(nil)
)
