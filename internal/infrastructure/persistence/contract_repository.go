package persistence

import (
	"context"
	"errors"

	"github.com/agency/backend/internal/domain/shared"
	"github.com/agency/backend/internal/domain/trade"
	"github.com/agency/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormContractRepository implements trade.ContractRepository using GORM
type GormContractRepository struct {
	db *gorm.DB
}

// NewGormContractRepository creates a new GormContractRepository
func NewGormContractRepository(db *gorm.DB) *GormContractRepository {
	return &GormContractRepository{db: db}
}

// FindByID finds a contract by its ID
func (r *GormContractRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.Contract, error) {
	var model models.ContractModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds contracts matching the filter, oldest start first
func (r *GormContractRepository) FindAll(ctx context.Context, filter trade.ContractFilter) ([]trade.Contract, error) {
	query := r.db.WithContext(ctx).Model(&models.ContractModel{})
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.Type != "" {
		query = query.Where("contract_type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.SellerID != nil {
		query = query.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.RequireSeller {
		query = query.Where("seller_id IS NOT NULL")
	}

	var contractModels []models.ContractModel
	if err := query.Order("start_date ASC, id ASC").Find(&contractModels).Error; err != nil {
		return nil, err
	}
	contracts := make([]trade.Contract, len(contractModels))
	for i, model := range contractModels {
		contracts[i] = *model.ToDomain()
	}
	return contracts, nil
}

// Save creates or updates a contract
func (r *GormContractRepository) Save(ctx context.Context, contract *trade.Contract) error {
	return r.db.WithContext(ctx).Save(models.ContractModelFromDomain(contract)).Error
}

// Delete deletes a contract
func (r *GormContractRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.ContractModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ trade.ContractRepository = (*GormContractRepository)(nil)
