package finance

import (
	"fmt"
	"time"

	"github.com/agency/backend/internal/domain/shared"
	"github.com/agency/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerStatus is the processing status of a recurrence ledger entry
type LedgerStatus string

const (
	LedgerStatusPending   LedgerStatus = "pending"
	LedgerStatusProcessed LedgerStatus = "processed"
	LedgerStatusCancelled LedgerStatus = "cancelled"
)

// IsValid checks if the status is valid
func (s LedgerStatus) IsValid() bool {
	switch s {
	case LedgerStatusPending, LedgerStatusProcessed, LedgerStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed
func (s LedgerStatus) IsTerminal() bool {
	return s == LedgerStatusProcessed || s == LedgerStatusCancelled
}

// LedgerEntry records that a recurring contract's month has been (or will be)
// turned into obligations. (ContractID, ReferenceMonth) is unique.
type LedgerEntry struct {
	shared.BaseAggregateRoot
	ContractID     uuid.UUID
	ReferenceMonth time.Time
	MonthlyValue   decimal.Decimal
	Status         LedgerStatus
	ProcessedAt    *time.Time
}

// NewLedgerEntry creates a pending entry for the month containing month
func NewLedgerEntry(contractID uuid.UUID, month time.Time, monthlyValue decimal.Decimal) (*LedgerEntry, error) {
	if contractID == uuid.Nil {
		return nil, shared.NewValidationError("Contract ID cannot be empty")
	}
	if monthlyValue.IsNegative() {
		return nil, shared.NewValidationError("Monthly value cannot be negative")
	}
	return &LedgerEntry{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ContractID:        contractID,
		ReferenceMonth:    valueobject.MonthStart(month),
		MonthlyValue:      monthlyValue.Round(valueobject.MinorUnitPlaces),
		Status:            LedgerStatusPending,
	}, nil
}

// IsPending reports whether the month still awaits materialization
func (e *LedgerEntry) IsPending() bool {
	return e.Status == LedgerStatusPending
}

// MatchesValue reports whether the entry was recorded with monthlyValue
func (e *LedgerEntry) MatchesValue(monthlyValue decimal.Decimal) bool {
	return e.MonthlyValue.Equal(monthlyValue.Round(valueobject.MinorUnitPlaces))
}

// Revalue replaces the monthly value of a pending entry
func (e *LedgerEntry) Revalue(monthlyValue decimal.Decimal) error {
	if e.Status != LedgerStatusPending {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot revalue a %s ledger entry", e.Status))
	}
	e.MonthlyValue = monthlyValue.Round(valueobject.MinorUnitPlaces)
	e.Touch()
	return nil
}

// MarkProcessed records that the month's obligations were written
func (e *LedgerEntry) MarkProcessed(at time.Time) error {
	return e.Settle(e.MonthlyValue, at)
}

// Settle records that the month's obligations were written for
// monthlyValue, revaluing the entry in the same version step
func (e *LedgerEntry) Settle(monthlyValue decimal.Decimal, at time.Time) error {
	if e.Status != LedgerStatusPending {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot process a %s ledger entry", e.Status))
	}
	e.MonthlyValue = monthlyValue.Round(valueobject.MinorUnitPlaces)
	e.Status = LedgerStatusProcessed
	e.ProcessedAt = &at
	e.Touch()
	return nil
}

// Cancel stops the month from being materialized
func (e *LedgerEntry) Cancel() error {
	if e.Status != LedgerStatusPending {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot cancel a %s ledger entry", e.Status))
	}
	e.Status = LedgerStatusCancelled
	e.Touch()
	return nil
}
