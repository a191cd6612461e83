package models

import (
	"time"

	"github.com/agency/backend/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContractModel is the persistence model for the Contract aggregate
type ContractModel struct {
	AggregateModel
	OwnerUserID          uuid.UUID            `gorm:"type:uuid;not null;index"`
	ClientID             uuid.UUID            `gorm:"type:uuid;not null;index"`
	SellerID             *uuid.UUID           `gorm:"type:uuid;index"`
	StartDate            time.Time            `gorm:"not null"`
	EndDate              *time.Time
	ContractType         trade.ContractType   `gorm:"type:varchar(20);not null;index"`
	DueDay               int                  `gorm:"not null;default:0"`
	Status               trade.ContractStatus `gorm:"type:varchar(20);not null;default:'active';index"`
	TotalValue           decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	InstallmentCount     int                  `gorm:"not null;default:1"`
	CommissionPercentage *decimal.Decimal     `gorm:"type:decimal(5,2)"`
	Description          string               `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (ContractModel) TableName() string {
	return "contracts"
}

// ToDomain converts the persistence model to a domain Contract
func (m *ContractModel) ToDomain() *trade.Contract {
	return &trade.Contract{
		BaseAggregateRoot:    m.ToDomainAggregateRoot(),
		OwnerUserID:          m.OwnerUserID,
		ClientID:             m.ClientID,
		SellerID:             m.SellerID,
		StartDate:            m.StartDate.UTC(),
		EndDate:              utcPtr(m.EndDate),
		ContractType:         m.ContractType,
		DueDay:               m.DueDay,
		Status:               m.Status,
		TotalValue:           m.TotalValue,
		InstallmentCount:     m.InstallmentCount,
		CommissionPercentage: m.CommissionPercentage,
		Description:          m.Description,
	}
}

// FromDomain populates the model from a domain Contract
func (m *ContractModel) FromDomain(c *trade.Contract) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.OwnerUserID = c.OwnerUserID
	m.ClientID = c.ClientID
	m.SellerID = c.SellerID
	m.StartDate = c.StartDate
	m.EndDate = c.EndDate
	m.ContractType = c.ContractType
	m.DueDay = c.DueDay
	m.Status = c.Status
	m.TotalValue = c.TotalValue
	m.InstallmentCount = c.InstallmentCount
	m.CommissionPercentage = c.CommissionPercentage
	m.Description = c.Description
}

// ContractModelFromDomain creates a new persistence model from a domain Contract
func ContractModelFromDomain(c *trade.Contract) *ContractModel {
	m := &ContractModel{}
	m.FromDomain(c)
	return m
}

// SaleModel is the persistence model for the Sale aggregate
type SaleModel struct {
	AggregateModel
	OwnerUserID      uuid.UUID               `gorm:"type:uuid;not null;index"`
	ClientID         uuid.UUID               `gorm:"type:uuid;index"`
	SellerID         *uuid.UUID              `gorm:"type:uuid;index"`
	Value            decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	Status           trade.SaleStatus        `gorm:"type:varchar(20);not null;default:'proposal';index"`
	SaleDate         time.Time               `gorm:"not null"`
	InstallmentCount int                     `gorm:"not null;default:1"`
	PaymentMethod    trade.SalePaymentMethod `gorm:"type:varchar(20);not null"`
	Description      string                  `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// ToDomain converts the persistence model to a domain Sale
func (m *SaleModel) ToDomain() *trade.Sale {
	return &trade.Sale{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		OwnerUserID:       m.OwnerUserID,
		ClientID:          m.ClientID,
		SellerID:          m.SellerID,
		Value:             m.Value,
		Status:            m.Status,
		SaleDate:          m.SaleDate.UTC(),
		InstallmentCount:  m.InstallmentCount,
		PaymentMethod:     m.PaymentMethod,
		Description:       m.Description,
	}
}

// FromDomain populates the model from a domain Sale
func (m *SaleModel) FromDomain(s *trade.Sale) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.OwnerUserID = s.OwnerUserID
	m.ClientID = s.ClientID
	m.SellerID = s.SellerID
	m.Value = s.Value
	m.Status = s.Status
	m.SaleDate = s.SaleDate
	m.InstallmentCount = s.InstallmentCount
	m.PaymentMethod = s.PaymentMethod
	m.Description = s.Description
}

// SaleModelFromDomain creates a new persistence model from a domain Sale
func SaleModelFromDomain(s *trade.Sale) *SaleModel {
	m := &SaleModel{}
	m.FromDomain(s)
	return m
}
