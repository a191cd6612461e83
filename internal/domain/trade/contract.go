package trade

import (
	"fmt"
	"time"

	"github.com/agency/backend/internal/domain/shared"
	"github.com/agency/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContractType distinguishes single-payment from recurring contracts
type ContractType string

const (
	ContractTypeSingle    ContractType = "single"
	ContractTypeRecurring ContractType = "recurring"
)

// IsValid checks if the contract type is valid
func (t ContractType) IsValid() bool {
	return t == ContractTypeSingle || t == ContractTypeRecurring
}

// ContractStatus represents the lifecycle status of a contract
type ContractStatus string

const (
	ContractStatusActive    ContractStatus = "active"
	ContractStatusSuspended ContractStatus = "suspended"
	ContractStatusCancelled ContractStatus = "cancelled"
	ContractStatusCompleted ContractStatus = "completed"
)

// IsValid checks if the status is valid
func (s ContractStatus) IsValid() bool {
	switch s {
	case ContractStatusActive, ContractStatusSuspended, ContractStatusCancelled, ContractStatusCompleted:
		return true
	}
	return false
}

// String returns the string representation of ContractStatus
func (s ContractStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s ContractStatus) CanTransitionTo(target ContractStatus) bool {
	switch s {
	case ContractStatusActive:
		return target == ContractStatusSuspended || target == ContractStatusCancelled || target == ContractStatusCompleted
	case ContractStatusSuspended:
		return target == ContractStatusActive || target == ContractStatusCancelled
	case ContractStatusCancelled, ContractStatusCompleted:
		return false
	}
	return false
}

// Contract is an agreement with a client, billed once (in installments) or
// every month on DueDay
type Contract struct {
	shared.BaseAggregateRoot
	OwnerUserID          uuid.UUID
	ClientID             uuid.UUID
	SellerID             *uuid.UUID
	StartDate            time.Time
	EndDate              *time.Time
	ContractType         ContractType
	DueDay               int
	Status               ContractStatus
	TotalValue           decimal.Decimal
	InstallmentCount     int
	CommissionPercentage *decimal.Decimal
	Description          string
}

// ContractParams holds the user-supplied attributes of a new contract
type ContractParams struct {
	OwnerUserID          uuid.UUID
	ClientID             uuid.UUID
	SellerID             *uuid.UUID
	StartDate            time.Time
	EndDate              *time.Time
	ContractType         ContractType
	DueDay               int
	TotalValue           decimal.Decimal
	InstallmentCount     int
	CommissionPercentage *decimal.Decimal
	Description          string
}

// NewContract creates an active contract
func NewContract(p ContractParams) (*Contract, error) {
	if p.OwnerUserID == uuid.Nil {
		return nil, shared.NewValidationError("Owner user ID cannot be empty")
	}
	if p.ClientID == uuid.Nil {
		return nil, shared.NewValidationError("Client ID cannot be empty")
	}
	if p.InstallmentCount == 0 {
		p.InstallmentCount = 1
	}

	c := &Contract{
		BaseAggregateRoot:    shared.NewBaseAggregateRoot(),
		OwnerUserID:          p.OwnerUserID,
		ClientID:             p.ClientID,
		SellerID:             p.SellerID,
		StartDate:            p.StartDate,
		EndDate:              p.EndDate,
		ContractType:         p.ContractType,
		DueDay:               p.DueDay,
		Status:               ContractStatusActive,
		TotalValue:           p.TotalValue.Round(valueobject.MinorUnitPlaces),
		InstallmentCount:     p.InstallmentCount,
		CommissionPercentage: p.CommissionPercentage,
		Description:          p.Description,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the contract invariants
func (c *Contract) Validate() error {
	if !c.ContractType.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("Invalid contract type: %q", c.ContractType))
	}
	if !c.Status.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("Invalid contract status: %q", c.Status))
	}
	if c.StartDate.IsZero() {
		return shared.NewValidationError("Start date is required")
	}
	if c.EndDate != nil && c.EndDate.Before(c.StartDate) {
		return shared.NewValidationError("End date cannot be before start date")
	}
	if c.ContractType == ContractTypeRecurring && (c.DueDay < 1 || c.DueDay > 31) {
		return shared.NewValidationError("Recurring contracts require a due day between 1 and 31")
	}
	if c.TotalValue.IsNegative() {
		return shared.NewValidationError("Total value cannot be negative")
	}
	if c.InstallmentCount < 1 {
		return shared.NewValidationError("Installment count must be at least 1")
	}
	if c.CommissionPercentage != nil && (c.CommissionPercentage.IsNegative() || c.CommissionPercentage.GreaterThan(decimal.NewFromInt(100))) {
		return shared.NewValidationError("Commission percentage must be between 0 and 100")
	}
	return nil
}

// IsRecurring reports whether the contract bills monthly
func (c *Contract) IsRecurring() bool {
	return c.ContractType == ContractTypeRecurring
}

// IsActive reports whether the contract is active
func (c *Contract) IsActive() bool {
	return c.Status == ContractStatusActive
}

// HasSeller reports whether a seller is attributed to the contract
func (c *Contract) HasSeller() bool {
	return c.SellerID != nil && *c.SellerID != uuid.Nil
}

// StartMonth returns the first reference month of the contract
func (c *Contract) StartMonth() time.Time {
	return valueobject.MonthStart(c.StartDate)
}

// EndMonth returns the last reference month, if the contract is bounded
func (c *Contract) EndMonth() (time.Time, bool) {
	if c.EndDate == nil {
		return time.Time{}, false
	}
	return valueobject.MonthStart(*c.EndDate), true
}

// CoversMonth reports whether month lies within the contract's date range
func (c *Contract) CoversMonth(month time.Time) bool {
	m := valueobject.MonthStart(month)
	if m.Before(c.StartMonth()) {
		return false
	}
	if end, ok := c.EndMonth(); ok && m.After(end) {
		return false
	}
	return true
}

// SpansMultipleMonths reports whether a bounded date range crosses a
// calendar month boundary
func (c *Contract) SpansMultipleMonths() bool {
	end, ok := c.EndMonth()
	return ok && valueobject.MonthsBetween(c.StartMonth(), end) > 0
}

// MonthlyValue is the amount billed per reference month of a recurring contract
func (c *Contract) MonthlyValue() decimal.Decimal {
	return c.TotalValue
}

// ChangeStatus moves the contract to status, enforcing the transition table
func (c *Contract) ChangeStatus(status ContractStatus) error {
	if !status.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("Invalid contract status: %q", status))
	}
	if c.Status == status {
		return nil
	}
	if !c.Status.CanTransitionTo(status) {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot change contract from %s to %s", c.Status, status))
	}

	previous := c.Status
	c.Status = status
	c.Touch()
	c.AddDomainEvent(NewContractStatusChangedEvent(c, previous))
	return nil
}

// MonthShares spreads the total value of a bounded contract over the months
// of its range. The first month absorbs the rounding remainder.
func (c *Contract) MonthShares() ([]decimal.Decimal, error) {
	end, ok := c.EndMonth()
	if !ok {
		return nil, shared.NewValidationError("Contract has no end date")
	}
	parts, err := valueobject.NewMoneyBRL(c.TotalValue).Split(valueobject.MonthsBetween(c.StartMonth(), end) + 1)
	if err != nil {
		return nil, shared.NewValidationError(err.Error())
	}
	shares := make([]decimal.Decimal, len(parts))
	for i, p := range parts {
		shares[i] = p.Amount()
	}
	return shares, nil
}

// ConvertToRecurring repairs a single contract whose range spans several
// months. A dueDay of 0 defaults to the start date's day. The total value of
// a bounded contract becomes the even monthly share of that total.
func (c *Contract) ConvertToRecurring(dueDay int) error {
	if c.ContractType == ContractTypeRecurring {
		return shared.NewInvalidStateError("Contract is already recurring")
	}
	if dueDay == 0 {
		dueDay = c.StartDate.Day()
	}
	if dueDay < 1 || dueDay > 31 {
		return shared.NewValidationError("Due day must be between 1 and 31")
	}

	if c.EndDate != nil {
		shares, err := c.MonthShares()
		if err != nil {
			return err
		}
		c.TotalValue = shares[len(shares)-1]
	}

	c.ContractType = ContractTypeRecurring
	c.DueDay = dueDay
	c.Touch()
	c.AddDomainEvent(NewContractConvertedToRecurringEvent(c))
	return nil
}
