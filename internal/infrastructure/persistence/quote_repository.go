package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/crm/backend/internal/domain/billing"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormQuoteRepository implements QuoteRepository using GORM
type GormQuoteRepository struct {
	db *gorm.DB
}

// NewGormQuoteRepository creates a new GormQuoteRepository
func NewGormQuoteRepository(db *gorm.DB) *GormQuoteRepository {
	return &GormQuoteRepository{db: db}
}

// FindByIDForTenant finds a quote by ID for a specific tenant
func (r *GormQuoteRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.Quote, error) {
	var model models.QuoteModel
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

// FindByNumber finds a quote by its number for a tenant
func (r *GormQuoteRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, quoteNumber string) (*billing.Quote, error) {
	var model models.QuoteModel
	if err := dbFrom(ctx, r.db).
		Where("tenant_id = ? AND quote_number = ?", tenantID, quoteNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds all quotes for a tenant with filtering
func (r *GormQuoteRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.QuoteFilter) ([]billing.Quote, error) {
	var quoteModels []models.QuoteModel
	query := dbFrom(ctx, r.db).Model(&models.QuoteModel{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyFilter(query, filter)

	if err := query.Find(&quoteModels).Error; err != nil {
		return nil, err
	}
	quotes := make([]billing.Quote, len(quoteModels))
	for i, model := range quoteModels {
		quotes[i] = *model.ToDomain()
	}
	return quotes, nil
}

// FindExpirable finds Sent quotes whose validity window passed before the cutoff
func (r *GormQuoteRepository) FindExpirable(ctx context.Context, cutoff time.Time, limit int) ([]billing.Quote, error) {
	var quoteModels []models.QuoteModel
	query := dbFrom(ctx, r.db).
		Where("status = ? AND valid_until IS NOT NULL AND valid_until < ?", billing.QuoteStatusSent, cutoff).
		Order("valid_until ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&quoteModels).Error; err != nil {
		return nil, err
	}
	quotes := make([]billing.Quote, len(quoteModels))
	for i, model := range quoteModels {
		quotes[i] = *model.ToDomain()
	}
	return quotes, nil
}

// Save creates or updates a quote
func (r *GormQuoteRepository) Save(ctx context.Context, quote *billing.Quote) error {
	model := models.QuoteModelFromDomain(quote)
	return saveError(dbFrom(ctx, r.db).Save(model).Error)
}

// SaveWithLock saves with optimistic locking
func (r *GormQuoteRepository) SaveWithLock(ctx context.Context, quote *billing.Quote) error {
	model := models.QuoteModelFromDomain(quote)
	result := dbFrom(ctx, r.db).
		Model(model).
		Where("id = ? AND version = ?", quote.ID, quote.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// GenerateQuoteNumber generates a unique quote number for a tenant
func (r *GormQuoteRepository) GenerateQuoteNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	return nextDocumentNumber(ctx, dbFrom(ctx, r.db), &models.QuoteModel{}, "quote_number", tenantID, "QT")
}

// applyFilter applies quote filter options to the query
func (r *GormQuoteRepository) applyFilter(query *gorm.DB, filter billing.QuoteFilter) *gorm.DB {
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return applyBaseFilter(query, filter.Filter)
}

// Ensure GormQuoteRepository implements QuoteRepository
var _ billing.QuoteRepository = (*GormQuoteRepository)(nil)
