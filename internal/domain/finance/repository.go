package finance

import (
	"context"
	"time"

	"github.com/agency/backend/internal/domain/trade"
	"github.com/google/uuid"
)

// LedgerRepository persists recurrence ledger entries
type LedgerRepository interface {
	// FindByContractAndMonth returns shared.ErrNotFound when no entry exists
	FindByContractAndMonth(ctx context.Context, contractID uuid.UUID, month time.Time) (*LedgerEntry, error)
	FindByContract(ctx context.Context, contractID uuid.UUID) ([]LedgerEntry, error)
	// Create inserts a new entry; a duplicate (contract, month) yields a CONFLICT error
	Create(ctx context.Context, entry *LedgerEntry) error
	// SaveWithLock updates an entry if its stored version is entry.Version-1,
	// otherwise it returns a CONFLICT error
	SaveWithLock(ctx context.Context, entry *LedgerEntry) error
	// Delete removes one entry; shared.ErrNotFound when it does not exist
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByContract(ctx context.Context, contractID uuid.UUID) error
}

// TransactionFilter narrows transaction queries. Zero-valued fields are ignored.
type TransactionFilter struct {
	IDs            []uuid.UUID
	Kind           TransactionKind
	Statuses       []TransactionStatus
	ContractID     *uuid.UUID
	SaleID         *uuid.UUID
	ReferenceMonth *time.Time
	// CommissionLinked keeps only transactions with a linked commission
	CommissionLinked bool
	// SourceLinked keeps only transactions linked to a contract or a sale
	SourceLinked bool
}

// TransactionRepository persists financial transactions
type TransactionRepository interface {
	// FindByID returns shared.ErrNotFound when the transaction does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*FinancialTransaction, error)
	FindAll(ctx context.Context, filter TransactionFilter) ([]FinancialTransaction, error)
	// FindByCommission returns the payable mirroring a commission, or shared.ErrNotFound
	FindByCommission(ctx context.Context, commissionID uuid.UUID) (*FinancialTransaction, error)
	Create(ctx context.Context, transaction *FinancialTransaction) error
	Save(ctx context.Context, transaction *FinancialTransaction) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CommissionFilter narrows commission queries. Zero-valued fields are ignored.
type CommissionFilter struct {
	IDs        []uuid.UUID
	SellerID   *uuid.UUID
	ContractID *uuid.UUID
	Status     CommissionStatus
	// Unmirrored keeps only commissions without a linked expense transaction
	Unmirrored bool
}

// CommissionRepository persists commissions
type CommissionRepository interface {
	// FindByID returns shared.ErrNotFound when the commission does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*Commission, error)
	// FindBySale returns shared.ErrNotFound when the sale has no commission
	FindBySale(ctx context.Context, saleID uuid.UUID) (*Commission, error)
	// FindByContractAndMonth returns shared.ErrNotFound when the month has no commission
	FindByContractAndMonth(ctx context.Context, contractID uuid.UUID, month time.Time) (*Commission, error)
	FindAll(ctx context.Context, filter CommissionFilter) ([]Commission, error)
	// Create inserts a commission; a duplicate sale or (contract, month) yields a CONFLICT error
	Create(ctx context.Context, commission *Commission) error
	Save(ctx context.Context, commission *Commission) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Store groups the repositories the obligation engine reads and writes
type Store interface {
	Contracts() trade.ContractRepository
	Sales() trade.SaleRepository
	Ledger() LedgerRepository
	Transactions() TransactionRepository
	Commissions() CommissionRepository
}

// UnitOfWork is a Store that can run a group of writes atomically. fn
// receives a Store bound to the unit; returning an error rolls back every
// write made through it.
type UnitOfWork interface {
	Store
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
