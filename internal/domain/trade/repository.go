package trade

import (
	"context"

	"github.com/google/uuid"
)

// ContractFilter narrows contract queries. Zero-valued fields are ignored.
type ContractFilter struct {
	IDs           []uuid.UUID
	Type          ContractType
	Status        ContractStatus
	SellerID      *uuid.UUID
	RequireSeller bool
}

// ContractRepository persists contracts
type ContractRepository interface {
	// FindByID returns shared.ErrNotFound when the contract does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*Contract, error)
	FindAll(ctx context.Context, filter ContractFilter) ([]Contract, error)
	Save(ctx context.Context, contract *Contract) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SaleFilter narrows sale queries. Zero-valued fields are ignored.
type SaleFilter struct {
	IDs    []uuid.UUID
	Status SaleStatus
}

// SaleRepository persists sales
type SaleRepository interface {
	// FindByID returns shared.ErrNotFound when the sale does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*Sale, error)
	FindAll(ctx context.Context, filter SaleFilter) ([]Sale, error)
	Save(ctx context.Context, sale *Sale) error
}
