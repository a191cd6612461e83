package persistence

import (
	"context"

	"github.com/agency/backend/internal/domain/finance"
	"github.com/agency/backend/internal/domain/trade"
	"gorm.io/gorm"
)

// GormUnitOfWork implements finance.UnitOfWork. Outside Atomic each
// repository call runs on its own connection; inside Atomic every call goes
// through the same database transaction.
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewGormUnitOfWork creates a new GormUnitOfWork
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// Contracts returns the contract repository
func (u *GormUnitOfWork) Contracts() trade.ContractRepository {
	return NewGormContractRepository(u.db)
}

// Sales returns the sale repository
func (u *GormUnitOfWork) Sales() trade.SaleRepository {
	return NewGormSaleRepository(u.db)
}

// Ledger returns the recurrence ledger repository
func (u *GormUnitOfWork) Ledger() finance.LedgerRepository {
	return NewGormLedgerRepository(u.db)
}

// Transactions returns the financial transaction repository
func (u *GormUnitOfWork) Transactions() finance.TransactionRepository {
	return NewGormTransactionRepository(u.db)
}

// Commissions returns the commission repository
func (u *GormUnitOfWork) Commissions() finance.CommissionRepository {
	return NewGormCommissionRepository(u.db)
}

// Atomic runs fn inside a database transaction, rolling back when fn fails
func (u *GormUnitOfWork) Atomic(ctx context.Context, fn func(ctx context.Context, tx finance.Store) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &GormUnitOfWork{db: tx})
	})
}

var _ finance.UnitOfWork = (*GormUnitOfWork)(nil)
