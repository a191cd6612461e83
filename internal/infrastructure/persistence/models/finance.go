package models

import (
	"time"

	"github.com/agency/backend/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntryModel is the persistence model for a recurrence ledger entry.
// (contract_id, reference_month) is unique.
type LedgerEntryModel struct {
	AggregateModel
	ContractID     uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_contract_month,priority:1"`
	ReferenceMonth time.Time            `gorm:"not null;uniqueIndex:idx_ledger_contract_month,priority:2"`
	MonthlyValue   decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	Status         finance.LedgerStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	ProcessedAt    *time.Time
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "recurrence_ledger_entries"
}

// ToDomain converts the persistence model to a domain LedgerEntry
func (m *LedgerEntryModel) ToDomain() *finance.LedgerEntry {
	return &finance.LedgerEntry{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ContractID:        m.ContractID,
		ReferenceMonth:    m.ReferenceMonth.UTC(),
		MonthlyValue:      m.MonthlyValue,
		Status:            m.Status,
		ProcessedAt:       utcPtr(m.ProcessedAt),
	}
}

// LedgerEntryModelFromDomain creates a new persistence model from a domain LedgerEntry
func LedgerEntryModelFromDomain(e *finance.LedgerEntry) *LedgerEntryModel {
	m := &LedgerEntryModel{
		ContractID:     e.ContractID,
		ReferenceMonth: monthColumn(e.ReferenceMonth),
		MonthlyValue:   e.MonthlyValue,
		Status:         e.Status,
		ProcessedAt:    e.ProcessedAt,
	}
	m.FromDomainAggregateRoot(e.BaseAggregateRoot)
	return m
}

// FinancialTransactionModel is the persistence model for receivables and payables
type FinancialTransactionModel struct {
	AggregateModel
	OwnerUserID        uuid.UUID                 `gorm:"type:uuid;not null;index"`
	Kind               finance.TransactionKind   `gorm:"type:varchar(20);not null;index"`
	Amount             decimal.Decimal           `gorm:"type:decimal(18,2);not null"`
	TransactionDate    time.Time                 `gorm:"not null;index"`
	DueDate            *time.Time                `gorm:"index"`
	Status             finance.TransactionStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	PaymentMethod      finance.PaymentMethod     `gorm:"type:varchar(20);not null"`
	InstallmentCount   int                       `gorm:"not null;default:1"`
	InstallmentIndex   int                       `gorm:"not null;default:1"`
	LinkedSaleID       *uuid.UUID                `gorm:"type:uuid;index"`
	LinkedContractID   *uuid.UUID                `gorm:"type:uuid;index"`
	LinkedCommissionID *uuid.UUID                `gorm:"type:uuid;uniqueIndex:idx_transactions_commission"`
	CategoryID         *uuid.UUID                `gorm:"type:uuid"`
	ReferenceMonth     *time.Time
	Description        string `gorm:"type:varchar(500)"`
	ConfirmedAt        *time.Time
}

// TableName returns the table name for GORM
func (FinancialTransactionModel) TableName() string {
	return "financial_transactions"
}

// ToDomain converts the persistence model to a domain FinancialTransaction
func (m *FinancialTransactionModel) ToDomain() *finance.FinancialTransaction {
	return &finance.FinancialTransaction{
		BaseAggregateRoot:  m.ToDomainAggregateRoot(),
		OwnerUserID:        m.OwnerUserID,
		Kind:               m.Kind,
		Amount:             m.Amount,
		TransactionDate:    m.TransactionDate.UTC(),
		DueDate:            utcPtr(m.DueDate),
		Status:             m.Status,
		PaymentMethod:      m.PaymentMethod,
		InstallmentCount:   m.InstallmentCount,
		InstallmentIndex:   m.InstallmentIndex,
		LinkedSaleID:       m.LinkedSaleID,
		LinkedContractID:   m.LinkedContractID,
		LinkedCommissionID: m.LinkedCommissionID,
		CategoryID:         m.CategoryID,
		ReferenceMonth:     utcPtr(m.ReferenceMonth),
		Description:        m.Description,
		ConfirmedAt:        utcPtr(m.ConfirmedAt),
	}
}

// FinancialTransactionModelFromDomain creates a new persistence model from a domain FinancialTransaction
func FinancialTransactionModelFromDomain(t *finance.FinancialTransaction) *FinancialTransactionModel {
	m := &FinancialTransactionModel{
		OwnerUserID:        t.OwnerUserID,
		Kind:               t.Kind,
		Amount:             t.Amount,
		TransactionDate:    t.TransactionDate,
		DueDate:            t.DueDate,
		Status:             t.Status,
		PaymentMethod:      t.PaymentMethod,
		InstallmentCount:   t.InstallmentCount,
		InstallmentIndex:   t.InstallmentIndex,
		LinkedSaleID:       t.LinkedSaleID,
		LinkedContractID:   t.LinkedContractID,
		LinkedCommissionID: t.LinkedCommissionID,
		CategoryID:         t.CategoryID,
		ReferenceMonth:     monthColumnPtr(t.ReferenceMonth),
		Description:        t.Description,
		ConfirmedAt:        t.ConfirmedAt,
	}
	m.FromDomainAggregateRoot(t.BaseAggregateRoot)
	return m
}

// CommissionModel is the persistence model for the Commission aggregate.
// A sale has at most one commission, and so does a contract month.
type CommissionModel struct {
	AggregateModel
	SellerID        uuid.UUID                `gorm:"type:uuid;not null;index"`
	SaleID          *uuid.UUID               `gorm:"type:uuid;uniqueIndex:idx_commissions_sale"`
	ContractID      *uuid.UUID               `gorm:"type:uuid;uniqueIndex:idx_commissions_contract_month,priority:1"`
	ReferenceMonth  time.Time                `gorm:"not null;uniqueIndex:idx_commissions_contract_month,priority:2"`
	Percentage      decimal.Decimal          `gorm:"type:decimal(5,2);not null"`
	BaseValue       decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	CommissionValue decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	Status          finance.CommissionStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	PaidAt          *time.Time
}

// TableName returns the table name for GORM
func (CommissionModel) TableName() string {
	return "commissions"
}

// ToDomain converts the persistence model to a domain Commission
func (m *CommissionModel) ToDomain() *finance.Commission {
	return &finance.Commission{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		SellerID:          m.SellerID,
		SaleID:            m.SaleID,
		ContractID:        m.ContractID,
		ReferenceMonth:    m.ReferenceMonth.UTC(),
		Percentage:        m.Percentage,
		BaseValue:         m.BaseValue,
		CommissionValue:   m.CommissionValue,
		Status:            m.Status,
		PaidAt:            utcPtr(m.PaidAt),
	}
}

// CommissionModelFromDomain creates a new persistence model from a domain Commission
func CommissionModelFromDomain(c *finance.Commission) *CommissionModel {
	m := &CommissionModel{
		SellerID:        c.SellerID,
		SaleID:          c.SaleID,
		ContractID:      c.ContractID,
		ReferenceMonth:  monthColumn(c.ReferenceMonth),
		Percentage:      c.Percentage,
		BaseValue:       c.BaseValue,
		CommissionValue: c.CommissionValue,
		Status:          c.Status,
		PaidAt:          c.PaidAt,
	}
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	return m
}

// SellerProfileModel stores the commission rates of a seller
type SellerProfileModel struct {
	SellerID                     uuid.UUID       `gorm:"type:uuid;primary_key"`
	CommissionPercentage         decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	ContractCommissionPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	UpdatedAt                    time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SellerProfileModel) TableName() string {
	return "seller_profiles"
}

// ToDomain converts the persistence model to a domain SellerProfile
func (m *SellerProfileModel) ToDomain() finance.SellerProfile {
	return finance.SellerProfile{
		SellerID:                     m.SellerID,
		CommissionPercentage:         m.CommissionPercentage,
		ContractCommissionPercentage: m.ContractCommissionPercentage,
	}
}

// SellerProfileModelFromDomain creates a new persistence model from a domain SellerProfile
func SellerProfileModelFromDomain(p finance.SellerProfile) *SellerProfileModel {
	return &SellerProfileModel{
		SellerID:                     p.SellerID,
		CommissionPercentage:         p.CommissionPercentage,
		ContractCommissionPercentage: p.ContractCommissionPercentage,
		UpdatedAt:                    time.Now(),
	}
}

// AllModels lists the models of the obligation engine schema
func AllModels() []any {
	return []any{
		&ContractModel{},
		&SaleModel{},
		&LedgerEntryModel{},
		&FinancialTransactionModel{},
		&CommissionModel{},
		&SellerProfileModel{},
	}
}
