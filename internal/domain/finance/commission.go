package finance

import (
	"time"

	"github.com/agency/backend/internal/domain/shared"
	"github.com/agency/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionStatus is the payment status of a commission
type CommissionStatus string

const (
	CommissionStatusPending CommissionStatus = "pending"
	CommissionStatusPaid    CommissionStatus = "paid"
)

// IsValid checks if the status is valid
func (s CommissionStatus) IsValid() bool {
	return s == CommissionStatusPending || s == CommissionStatusPaid
}

// Commission is a seller's share of a closed sale or of one contract month.
// Exactly one of SaleID and ContractID is set.
type Commission struct {
	shared.BaseAggregateRoot
	SellerID        uuid.UUID
	SaleID          *uuid.UUID
	ContractID      *uuid.UUID
	ReferenceMonth  time.Time
	Percentage      decimal.Decimal
	BaseValue       decimal.Decimal
	CommissionValue decimal.Decimal
	Status          CommissionStatus
	PaidAt          *time.Time
}

// ComputeCommissionValue returns base × pct / 100 rounded half-up to cents
func ComputeCommissionValue(base, pct decimal.Decimal) decimal.Decimal {
	return valueobject.NewMoneyBRL(base).Percentage(pct).Amount()
}

// NewSaleCommission creates the commission of a closed sale
func NewSaleCommission(sellerID, saleID uuid.UUID, saleDate time.Time, pct, base decimal.Decimal) (*Commission, error) {
	return newCommission(sellerID, &saleID, nil, saleDate, pct, base)
}

// NewContractCommission creates the commission of one contract month
func NewContractCommission(sellerID, contractID uuid.UUID, month time.Time, pct, base decimal.Decimal) (*Commission, error) {
	return newCommission(sellerID, nil, &contractID, month, pct, base)
}

func newCommission(sellerID uuid.UUID, saleID, contractID *uuid.UUID, month time.Time, pct, base decimal.Decimal) (*Commission, error) {
	if sellerID == uuid.Nil {
		return nil, shared.NewValidationError("Seller ID cannot be empty")
	}
	if !pct.IsPositive() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return nil, shared.NewValidationError("Commission percentage must be greater than 0 and at most 100")
	}
	if base.IsNegative() {
		return nil, shared.NewValidationError("Commission base cannot be negative")
	}

	c := &Commission{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SellerID:          sellerID,
		SaleID:            saleID,
		ContractID:        contractID,
		ReferenceMonth:    valueobject.MonthStart(month),
		Percentage:        pct,
		BaseValue:         base.Round(valueobject.MinorUnitPlaces),
		CommissionValue:   ComputeCommissionValue(base, pct),
		Status:            CommissionStatusPending,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the commission invariants
func (c *Commission) Validate() error {
	if (c.SaleID == nil) == (c.ContractID == nil) {
		return shared.NewValidationError("Commission must reference exactly one of sale or contract")
	}
	if !c.Status.IsValid() {
		return shared.NewValidationError("Invalid commission status")
	}
	return nil
}

// IsPaid reports whether the commission was paid
func (c *Commission) IsPaid() bool {
	return c.Status == CommissionStatusPaid
}

// MarkPaid marks the commission paid at the given time. Paying a paid
// commission keeps the original PaidAt.
func (c *Commission) MarkPaid(at time.Time) {
	if c.Status == CommissionStatusPaid {
		return
	}
	c.Status = CommissionStatusPaid
	c.PaidAt = &at
	c.Touch()
}

// MarkPending reverts a paid commission
func (c *Commission) MarkPending() {
	if c.Status == CommissionStatusPending {
		return
	}
	c.Status = CommissionStatusPending
	c.PaidAt = nil
	c.Touch()
}

// Rebase recomputes a pending commission over a new base value
func (c *Commission) Rebase(base decimal.Decimal) error {
	if c.IsPaid() {
		return shared.NewInvalidStateError("Cannot rebase a paid commission")
	}
	c.BaseValue = base.Round(valueobject.MinorUnitPlaces)
	c.CommissionValue = ComputeCommissionValue(base, c.Percentage)
	c.Touch()
	return nil
}

// NewCommissionPayable builds the expense that mirrors c. A paid
// commission yields a confirmed payable.
func NewCommissionPayable(c *Commission, ownerUserID uuid.UUID, dueDate time.Time, description string) (*FinancialTransaction, error) {
	commissionID := c.ID
	month := c.ReferenceMonth
	p := TransactionParams{
		OwnerUserID:        ownerUserID,
		Kind:               TransactionKindExpense,
		Amount:             c.CommissionValue,
		TransactionDate:    dueDate,
		DueDate:            &dueDate,
		LinkedSaleID:       c.SaleID,
		LinkedContractID:   c.ContractID,
		LinkedCommissionID: &commissionID,
		ReferenceMonth:     &month,
		Description:        description,
	}
	payable, err := NewFinancialTransaction(p)
	if err != nil {
		return nil, err
	}
	if c.IsPaid() {
		paidAt := time.Now()
		if c.PaidAt != nil {
			paidAt = *c.PaidAt
		}
		if err := payable.Confirm(paidAt); err != nil {
			return nil, err
		}
	}
	return payable, nil
}
