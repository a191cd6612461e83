package persistence

import (
	"fmt"

	"github.com/agency/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// receivableIndexes are the partial unique indexes GORM tags cannot express.
// They mirror migrations/000001_obligation_engine.up.sql.
var receivableIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_contract_month
		ON financial_transactions (linked_contract_id, reference_month)
		WHERE kind = 'income' AND linked_commission_id IS NULL AND reference_month IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_contract_installment
		ON financial_transactions (linked_contract_id, installment_index)
		WHERE kind = 'income' AND linked_commission_id IS NULL AND reference_month IS NULL AND linked_contract_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_sale_installment
		ON financial_transactions (linked_sale_id, installment_index)
		WHERE kind = 'income' AND linked_commission_id IS NULL AND linked_sale_id IS NOT NULL`,
}

// autoMigrate creates the engine tables from the models plus the partial
// receivable indexes
func autoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("auto-migrate models: %w", err)
	}
	for _, stmt := range receivableIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create receivable index: %w", err)
		}
	}
	return nil
}
