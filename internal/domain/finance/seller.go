package finance

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SellerProfile carries a seller's commission rates, in percent
type SellerProfile struct {
	SellerID                     uuid.UUID
	CommissionPercentage         decimal.Decimal
	ContractCommissionPercentage decimal.Decimal
}

// SellerProfileLookup resolves seller commission rates
type SellerProfileLookup interface {
	// GetProfile returns shared.ErrNotFound for an unknown seller
	GetProfile(ctx context.Context, sellerID uuid.UUID) (*SellerProfile, error)
	// GetProfiles returns the known profiles among sellerIDs keyed by seller
	GetProfiles(ctx context.Context, sellerIDs []uuid.UUID) (map[uuid.UUID]SellerProfile, error)
}
