package trade

import (
	"fmt"
	"time"

	"github.com/agency/backend/internal/domain/shared"
	"github.com/agency/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleStatus represents the pipeline stage of a sale
type SaleStatus string

const (
	SaleStatusProposal    SaleStatus = "proposal"
	SaleStatusNegotiation SaleStatus = "negotiation"
	SaleStatusClosed      SaleStatus = "closed"
	SaleStatusLost        SaleStatus = "lost"
)

// IsValid checks if the status is valid
func (s SaleStatus) IsValid() bool {
	switch s {
	case SaleStatusProposal, SaleStatusNegotiation, SaleStatusClosed, SaleStatusLost:
		return true
	}
	return false
}

// SalePaymentMethod is how the client pays for a sale
type SalePaymentMethod string

const (
	SalePaymentSingle      SalePaymentMethod = "single"
	SalePaymentInstallment SalePaymentMethod = "installment"
)

// IsValid checks if the payment method is valid
func (m SalePaymentMethod) IsValid() bool {
	return m == SalePaymentSingle || m == SalePaymentInstallment
}

// Sale is a closed or in-progress deal with a client. Only closed sales
// produce receivables and commissions.
type Sale struct {
	shared.BaseAggregateRoot
	OwnerUserID      uuid.UUID
	ClientID         uuid.UUID
	SellerID         *uuid.UUID
	Value            decimal.Decimal
	Status           SaleStatus
	SaleDate         time.Time
	InstallmentCount int
	PaymentMethod    SalePaymentMethod
	Description      string
}

// SaleParams holds the attributes of a new sale
type SaleParams struct {
	OwnerUserID      uuid.UUID
	ClientID         uuid.UUID
	SellerID         *uuid.UUID
	Value            decimal.Decimal
	Status           SaleStatus
	SaleDate         time.Time
	InstallmentCount int
	PaymentMethod    SalePaymentMethod
	Description      string
}

// NewSale creates a sale; status defaults to proposal
func NewSale(p SaleParams) (*Sale, error) {
	if p.OwnerUserID == uuid.Nil {
		return nil, shared.NewValidationError("Owner user ID cannot be empty")
	}
	if p.Status == "" {
		p.Status = SaleStatusProposal
	}
	if p.InstallmentCount == 0 {
		p.InstallmentCount = 1
	}
	if p.PaymentMethod == "" {
		p.PaymentMethod = SalePaymentSingle
		if p.InstallmentCount > 1 {
			p.PaymentMethod = SalePaymentInstallment
		}
	}

	s := &Sale{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OwnerUserID:       p.OwnerUserID,
		ClientID:          p.ClientID,
		SellerID:          p.SellerID,
		Value:             p.Value.Round(valueobject.MinorUnitPlaces),
		Status:            p.Status,
		SaleDate:          p.SaleDate,
		InstallmentCount:  p.InstallmentCount,
		PaymentMethod:     p.PaymentMethod,
		Description:       p.Description,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the sale invariants
func (s *Sale) Validate() error {
	if !s.Status.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("Invalid sale status: %q", s.Status))
	}
	if !s.PaymentMethod.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("Invalid payment method: %q", s.PaymentMethod))
	}
	if s.InstallmentCount < 1 {
		return shared.NewValidationError("Installment count must be at least 1")
	}
	if s.Value.IsNegative() {
		return shared.NewValidationError("Sale value cannot be negative")
	}
	if s.SaleDate.IsZero() {
		return shared.NewValidationError("Sale date is required")
	}
	return nil
}

// IsClosed reports whether the sale was won
func (s *Sale) IsClosed() bool {
	return s.Status == SaleStatusClosed
}

// HasSeller reports whether a seller is attributed to the sale
func (s *Sale) HasSeller() bool {
	return s.SellerID != nil && *s.SellerID != uuid.Nil
}

// Close marks the sale as won
func (s *Sale) Close() error {
	if s.Status == SaleStatusClosed {
		return nil
	}
	if s.Status == SaleStatusLost {
		return shared.NewInvalidStateError("Cannot close a lost sale")
	}
	s.Status = SaleStatusClosed
	s.Touch()
	return nil
}

// MarkLost marks the sale as lost
func (s *Sale) MarkLost() error {
	if s.Status == SaleStatusClosed {
		return shared.NewInvalidStateError("Cannot lose a closed sale")
	}
	s.Status = SaleStatusLost
	s.Touch()
	return nil
}
