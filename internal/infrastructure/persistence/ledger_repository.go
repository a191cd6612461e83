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

// GormLedgerRepository implements finance.LedgerRepository using GORM
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// FindByContractAndMonth finds the entry of a contract for a month
func (r *GormLedgerRepository) FindByContractAndMonth(ctx context.Context, contractID uuid.UUID, month time.Time) (*finance.LedgerEntry, error) {
	var model models.LedgerEntryModel
	err := r.db.WithContext(ctx).
		Where("contract_id = ? AND reference_month = ?", contractID, valueobject.MonthStart(month)).
		First(&model).Error
	if err != nil {
		return nil, translateError("find ledger entry", err)
	}
	return model.ToDomain(), nil
}

// FindByContract lists the entries of a contract by month
func (r *GormLedgerRepository) FindByContract(ctx context.Context, contractID uuid.UUID) ([]finance.LedgerEntry, error) {
	var entryModels []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("reference_month ASC").
		Find(&entryModels).Error; err != nil {
		return nil, err
	}
	entries := make([]finance.LedgerEntry, len(entryModels))
	for i, model := range entryModels {
		entries[i] = *model.ToDomain()
	}
	return entries, nil
}

// Create inserts a new ledger entry
func (r *GormLedgerRepository) Create(ctx context.Context, entry *finance.LedgerEntry) error {
	model := models.LedgerEntryModelFromDomain(entry)
	return translateError("create ledger entry", r.db.WithContext(ctx).Create(model).Error)
}

// SaveWithLock saves the entry with optimistic locking. The domain model has
// already bumped the version, so the stored row must hold Version-1.
// The explicit Select keeps Save from falling back to an upsert when the
// version check matches no row.
func (r *GormLedgerRepository) SaveWithLock(ctx context.Context, entry *finance.LedgerEntry) error {
	expectedVersion := entry.GetVersion() - 1
	model := models.LedgerEntryModelFromDomain(entry)
	result := r.db.WithContext(ctx).Model(model).
		Where("id = ? AND version = ?", entry.GetID(), expectedVersion).
		Select("*").
		Save(model)
	if result.Error != nil {
		return translateError("save ledger entry", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("ledger entry has been modified concurrently")
	}
	return nil
}

// DeleteByContract removes every entry of a contract
// Delete removes one ledger entry
func (r *GormLedgerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.LedgerEntryModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormLedgerRepository) DeleteByContract(ctx context.Context, contractID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.LedgerEntryModel{}, "contract_id = ?", contractID).Error
}

var _ finance.LedgerRepository = (*GormLedgerRepository)(nil)
