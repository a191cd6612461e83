package finance

import (
	"fmt"
	"time"

	"github.com/agency/backend/internal/domain/shared"
	"github.com/agency/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind tells receivables (income) from payables (expense)
type TransactionKind string

const (
	TransactionKindIncome  TransactionKind = "income"
	TransactionKindExpense TransactionKind = "expense"
)

// IsValid checks if the kind is valid
func (k TransactionKind) IsValid() bool {
	return k == TransactionKindIncome || k == TransactionKindExpense
}

// TransactionStatus is the settlement status of a financial transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// IsValid checks if the status is valid
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusConfirmed, TransactionStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo checks if the status can transition to the target status.
// pending and confirmed toggle freely; cancelled is terminal.
func (s TransactionStatus) CanTransitionTo(target TransactionStatus) bool {
	switch s {
	case TransactionStatusPending:
		return target == TransactionStatusConfirmed || target == TransactionStatusCancelled
	case TransactionStatusConfirmed:
		return target == TransactionStatusPending
	}
	return false
}

// PaymentMethod is single payment or installments
type PaymentMethod string

const (
	PaymentMethodSingle      PaymentMethod = "single"
	PaymentMethodInstallment PaymentMethod = "installment"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodSingle || m == PaymentMethodInstallment
}

// FinancialTransaction is a receivable or payable. An expense linked to a
// commission is owned by that commission's lifecycle.
type FinancialTransaction struct {
	shared.BaseAggregateRoot
	OwnerUserID        uuid.UUID
	Kind               TransactionKind
	Amount             decimal.Decimal
	TransactionDate    time.Time
	DueDate            *time.Time
	Status             TransactionStatus
	PaymentMethod      PaymentMethod
	InstallmentCount   int
	InstallmentIndex   int
	LinkedSaleID       *uuid.UUID
	LinkedContractID   *uuid.UUID
	LinkedCommissionID *uuid.UUID
	CategoryID         *uuid.UUID
	ReferenceMonth     *time.Time
	Description        string
	ConfirmedAt        *time.Time
}

// TransactionParams holds the attributes of a new transaction
type TransactionParams struct {
	OwnerUserID        uuid.UUID
	Kind               TransactionKind
	Amount             decimal.Decimal
	TransactionDate    time.Time
	DueDate            *time.Time
	Status             TransactionStatus
	InstallmentCount   int
	InstallmentIndex   int
	LinkedSaleID       *uuid.UUID
	LinkedContractID   *uuid.UUID
	LinkedCommissionID *uuid.UUID
	CategoryID         *uuid.UUID
	ReferenceMonth     *time.Time
	Description        string
}

// NewFinancialTransaction creates a transaction; status defaults to pending
// and a single installment
func NewFinancialTransaction(p TransactionParams) (*FinancialTransaction, error) {
	if p.OwnerUserID == uuid.Nil {
		return nil, shared.NewValidationError("Owner user ID cannot be empty")
	}
	if p.Status == "" {
		p.Status = TransactionStatusPending
	}
	if p.InstallmentCount == 0 {
		p.InstallmentCount = 1
	}
	if p.InstallmentIndex == 0 {
		p.InstallmentIndex = 1
	}
	method := PaymentMethodSingle
	if p.InstallmentCount > 1 {
		method = PaymentMethodInstallment
	}
	var refMonth *time.Time
	if p.ReferenceMonth != nil {
		m := valueobject.MonthStart(*p.ReferenceMonth)
		refMonth = &m
	}

	t := &FinancialTransaction{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		OwnerUserID:        p.OwnerUserID,
		Kind:               p.Kind,
		Amount:             p.Amount.Round(valueobject.MinorUnitPlaces),
		TransactionDate:    p.TransactionDate,
		DueDate:            p.DueDate,
		Status:             p.Status,
		PaymentMethod:      method,
		InstallmentCount:   p.InstallmentCount,
		InstallmentIndex:   p.InstallmentIndex,
		LinkedSaleID:       p.LinkedSaleID,
		LinkedContractID:   p.LinkedContractID,
		LinkedCommissionID: p.LinkedCommissionID,
		CategoryID:         p.CategoryID,
		ReferenceMonth:     refMonth,
		Description:        p.Description,
	}
	if t.Status == TransactionStatusConfirmed {
		now := time.Now()
		t.ConfirmedAt = &now
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the transaction invariants
func (t *FinancialTransaction) Validate() error {
	if !t.Kind.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("Invalid transaction kind: %q", t.Kind))
	}
	if !t.Status.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("Invalid transaction status: %q", t.Status))
	}
	if !t.PaymentMethod.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("Invalid payment method: %q", t.PaymentMethod))
	}
	if t.Amount.IsNegative() {
		return shared.NewValidationError("Amount cannot be negative")
	}
	if t.TransactionDate.IsZero() {
		return shared.NewValidationError("Transaction date is required")
	}
	if t.InstallmentCount < 1 || t.InstallmentIndex < 1 || t.InstallmentIndex > t.InstallmentCount {
		return shared.NewValidationError(fmt.Sprintf("Installment %d/%d is out of range", t.InstallmentIndex, t.InstallmentCount))
	}
	if t.LinkedCommissionID != nil && t.Kind != TransactionKindExpense {
		return shared.NewValidationError("Only expenses can be linked to a commission")
	}
	return nil
}

// IsReceivable reports whether the transaction is income
func (t *FinancialTransaction) IsReceivable() bool {
	return t.Kind == TransactionKindIncome
}

// IsCommissionOwned reports whether the transaction is a commission payable
func (t *FinancialTransaction) IsCommissionOwned() bool {
	return t.Kind == TransactionKindExpense && t.LinkedCommissionID != nil
}

// ChangeStatus moves the transaction to target. Moving to the current
// status is a no-op.
func (t *FinancialTransaction) ChangeStatus(target TransactionStatus, at time.Time) error {
	if !target.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("Invalid transaction status: %q", target))
	}
	if t.Status == target {
		return nil
	}
	if !t.Status.CanTransitionTo(target) {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot change transaction from %s to %s", t.Status, target))
	}

	t.Status = target
	switch target {
	case TransactionStatusConfirmed:
		t.ConfirmedAt = &at
	case TransactionStatusPending:
		t.ConfirmedAt = nil
	}
	t.Touch()
	return nil
}

// Confirm marks the transaction settled
func (t *FinancialTransaction) Confirm(at time.Time) error {
	return t.ChangeStatus(TransactionStatusConfirmed, at)
}

// Reopen reverts a confirmed transaction to pending
func (t *FinancialTransaction) Reopen() error {
	return t.ChangeStatus(TransactionStatusPending, time.Time{})
}

// Cancel cancels a pending transaction
func (t *FinancialTransaction) Cancel() error {
	return t.ChangeStatus(TransactionStatusCancelled, time.Time{})
}

// SetAmount changes the amount of a pending transaction
func (t *FinancialTransaction) SetAmount(amount decimal.Decimal) error {
	if t.Status != TransactionStatusPending {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot change the amount of a %s transaction", t.Status))
	}
	if amount.IsNegative() {
		return shared.NewValidationError("Amount cannot be negative")
	}
	t.Amount = amount.Round(valueobject.MinorUnitPlaces)
	t.Touch()
	return nil
}
