package persistence

import (
	"context"

	"github.com/agency/backend/internal/domain/finance"
	"github.com/agency/backend/internal/domain/shared"
	"github.com/agency/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTransactionRepository implements finance.TransactionRepository using GORM
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// FindByID finds a transaction by its ID
func (r *GormTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.FinancialTransaction, error) {
	var model models.FinancialTransactionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError("find transaction", err)
	}
	return model.ToDomain(), nil
}

// FindAll finds transactions matching the filter by transaction date
func (r *GormTransactionRepository) FindAll(ctx context.Context, filter finance.TransactionFilter) ([]finance.FinancialTransaction, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.FinancialTransactionModel{}), filter)

	var transactionModels []models.FinancialTransactionModel
	if err := query.Order("transaction_date ASC, installment_index ASC").Find(&transactionModels).Error; err != nil {
		return nil, err
	}
	transactions := make([]finance.FinancialTransaction, len(transactionModels))
	for i, model := range transactionModels {
		transactions[i] = *model.ToDomain()
	}
	return transactions, nil
}

func (r *GormTransactionRepository) applyFilter(query *gorm.DB, filter finance.TransactionFilter) *gorm.DB {
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.ContractID != nil {
		query = query.Where("linked_contract_id = ?", *filter.ContractID)
	}
	if filter.SaleID != nil {
		query = query.Where("linked_sale_id = ?", *filter.SaleID)
	}
	if filter.ReferenceMonth != nil {
		query = query.Where("reference_month = ?", filter.ReferenceMonth.UTC())
	}
	if filter.CommissionLinked {
		query = query.Where("linked_commission_id IS NOT NULL")
	}
	if filter.SourceLinked {
		query = query.Where("(linked_contract_id IS NOT NULL OR linked_sale_id IS NOT NULL)")
	}
	return query
}

// FindByCommission finds the payable mirroring a commission
func (r *GormTransactionRepository) FindByCommission(ctx context.Context, commissionID uuid.UUID) (*finance.FinancialTransaction, error) {
	var model models.FinancialTransactionModel
	if err := r.db.WithContext(ctx).First(&model, "linked_commission_id = ?", commissionID).Error; err != nil {
		return nil, translateError("find commission payable", err)
	}
	return model.ToDomain(), nil
}

// Create inserts a new transaction
func (r *GormTransactionRepository) Create(ctx context.Context, transaction *finance.FinancialTransaction) error {
	model := models.FinancialTransactionModelFromDomain(transaction)
	return translateError("create transaction", r.db.WithContext(ctx).Create(model).Error)
}

// Save creates or updates a transaction
func (r *GormTransactionRepository) Save(ctx context.Context, transaction *finance.FinancialTransaction) error {
	model := models.FinancialTransactionModelFromDomain(transaction)
	return translateError("save transaction", r.db.WithContext(ctx).Save(model).Error)
}

// Delete deletes a transaction
func (r *GormTransactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.FinancialTransactionModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ finance.TransactionRepository = (*GormTransactionRepository)(nil)
