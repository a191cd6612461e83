package persistence

import (
	"context"
	"time"

	"github.com/agency/backend/internal/domain/finance"
	"github.com/agency/backend/internal/domain/shared"
	"github.com/agency/backend/internal/domain/shared/valueobject"
	"github.com/agency/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCommissionRepository implements finance.CommissionRepository using GORM
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewGormCommissionRepository creates a new GormCommissionRepository
func NewGormCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// FindByID finds a commission by its ID
func (r *GormCommissionRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Commission, error) {
	return r.first(ctx, "find commission", "id = ?", id)
}

// FindBySale finds the commission of a sale
func (r *GormCommissionRepository) FindBySale(ctx context.Context, saleID uuid.UUID) (*finance.Commission, error) {
	return r.first(ctx, "find sale commission", "sale_id = ?", saleID)
}

// FindByContractAndMonth finds the commission of a contract month
func (r *GormCommissionRepository) FindByContractAndMonth(ctx context.Context, contractID uuid.UUID, month time.Time) (*finance.Commission, error) {
	return r.first(ctx, "find contract commission", "contract_id = ? AND reference_month = ?", contractID, valueobject.MonthStart(month))
}

func (r *GormCommissionRepository) first(ctx context.Context, op string, query string, args ...any) (*finance.Commission, error) {
	var model models.CommissionModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
		return nil, translateError(op, err)
	}
	return model.ToDomain(), nil
}

// FindAll finds commissions matching the filter by reference month
func (r *GormCommissionRepository) FindAll(ctx context.Context, filter finance.CommissionFilter) ([]finance.Commission, error) {
	query := r.db.WithContext(ctx).Model(&models.CommissionModel{})
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.SellerID != nil {
		query = query.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.ContractID != nil {
		query = query.Where("contract_id = ?", *filter.ContractID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Unmirrored {
		query = query.Where("NOT EXISTS (SELECT 1 FROM financial_transactions ft WHERE ft.linked_commission_id = commissions.id)")
	}

	var commissionModels []models.CommissionModel
	if err := query.Order("reference_month ASC, created_at ASC").Find(&commissionModels).Error; err != nil {
		return nil, err
	}
	commissions := make([]finance.Commission, len(commissionModels))
	for i, model := range commissionModels {
		commissions[i] = *model.ToDomain()
	}
	return commissions, nil
}

// Create inserts a new commission
func (r *GormCommissionRepository) Create(ctx context.Context, commission *finance.Commission) error {
	model := models.CommissionModelFromDomain(commission)
	return translateError("create commission", r.db.WithContext(ctx).Create(model).Error)
}

// Save creates or updates a commission
func (r *GormCommissionRepository) Save(ctx context.Context, commission *finance.Commission) error {
	model := models.CommissionModelFromDomain(commission)
	return translateError("save commission", r.db.WithContext(ctx).Save(model).Error)
}

// Delete deletes a commission
func (r *GormCommissionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.CommissionModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ finance.CommissionRepository = (*GormCommissionRepository)(nil)
