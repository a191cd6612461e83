package dto

import (
	"time"

	"github.com/agency/backend/internal/application/obligation"
	"github.com/agency/backend/internal/domain/finance"
	"github.com/agency/backend/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MonthLayout is the wire format of a reference month
const MonthLayout = "2006-01"

// MaterializeRangeRequest selects the months to materialize, both inclusive
type MaterializeRangeRequest struct {
	FromMonth string `json:"from_month" binding:"required,datetime=2006-01"`
	ToMonth   string `json:"to_month" binding:"required,datetime=2006-01"`
}

// MaterializeMonthRequest selects one month
type MaterializeMonthRequest struct {
	Month string `json:"month" binding:"required,datetime=2006-01"`
}

// MaterializeDueRequest sets the reference date of a due-month pass.
// An empty AsOf means today.
type MaterializeDueRequest struct {
	AsOf string `json:"as_of" binding:"omitempty,datetime=2006-01-02"`
}

// GenerateCommissionsRequest optionally restricts generation to one contract
type GenerateCommissionsRequest struct {
	ContractID *string `json:"contract_id" binding:"omitempty,uuid"`
}

// SyncCommissionsRequest optionally restricts the sync to one seller
type SyncCommissionsRequest struct {
	UserID *string `json:"user_id" binding:"omitempty,uuid"`
}

// CleanupPayablesQuery controls whether confirmed orphan payables are removed
type CleanupPayablesQuery struct {
	Force bool `form:"force"`
}

// TransactionStatusRequest is the target status of a transaction
type TransactionStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending confirmed cancelled"`
}

// ContractStatusRequest is the target status of a contract
type ContractStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active suspended cancelled completed"`
}

// ItemResponse is one item of a batch response
type ItemResponse struct {
	ContractID *uuid.UUID `json:"contract_id,omitempty"`
	Month      string     `json:"month,omitempty"`
	RecordID   *uuid.UUID `json:"record_id,omitempty"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
}

// BatchResponse reports an engine batch
type BatchResponse struct {
	Operation string         `json:"operation"`
	Outcome   string         `json:"outcome"`
	Affected  int            `json:"affected"`
	Failed    int            `json:"failed"`
	Items     []ItemResponse `json:"items"`
}

// CleanupResponse reports a cleanup pass
type CleanupResponse struct {
	BatchResponse
	Removed          int `json:"removed"`
	SkippedConfirmed int `json:"skipped_confirmed"`
}

// ContractFixResponse reports one repaired contract
type ContractFixResponse struct {
	ContractID  uuid.UUID `json:"contract_id"`
	MonthsFixed int       `json:"months_fixed"`
}

// FixResponse reports a contract type repair pass
type FixResponse struct {
	BatchResponse
	Fixed []ContractFixResponse `json:"fixed"`
}

// MonthOutcomeResponse reports one materialized month
type MonthOutcomeResponse struct {
	Month         string     `json:"month"`
	Status        string     `json:"status"`
	LedgerEntryID uuid.UUID  `json:"ledger_entry_id"`
	ReceivableID  *uuid.UUID `json:"receivable_id,omitempty"`
	CommissionID  *uuid.UUID `json:"commission_id,omitempty"`
}

// CommissionResponse is the API view of a commission
type CommissionResponse struct {
	ID              uuid.UUID       `json:"id"`
	SellerID        uuid.UUID       `json:"seller_id"`
	SaleID          *uuid.UUID      `json:"sale_id,omitempty"`
	ContractID      *uuid.UUID      `json:"contract_id,omitempty"`
	ReferenceMonth  string          `json:"reference_month"`
	Percentage      decimal.Decimal `json:"percentage"`
	BaseValue       decimal.Decimal `json:"base_value"`
	CommissionValue decimal.Decimal `json:"commission_value"`
	Status          string          `json:"status"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	Version         int             `json:"version"`
}

// TransactionResponse is the API view of a receivable or payable
type TransactionResponse struct {
	ID                 uuid.UUID       `json:"id"`
	Kind               string          `json:"kind"`
	Amount             decimal.Decimal `json:"amount"`
	Status             string          `json:"status"`
	TransactionDate    time.Time       `json:"transaction_date"`
	DueDate            *time.Time      `json:"due_date,omitempty"`
	InstallmentIndex   int             `json:"installment_index,omitempty"`
	InstallmentCount   int             `json:"installment_count,omitempty"`
	LinkedSaleID       *uuid.UUID      `json:"linked_sale_id,omitempty"`
	LinkedContractID   *uuid.UUID      `json:"linked_contract_id,omitempty"`
	LinkedCommissionID *uuid.UUID      `json:"linked_commission_id,omitempty"`
	ReferenceMonth     string          `json:"reference_month,omitempty"`
	Description        string          `json:"description,omitempty"`
	ConfirmedAt        *time.Time      `json:"confirmed_at,omitempty"`
	Version            int             `json:"version"`
}

// ContractResponse is the API view of a contract
type ContractResponse struct {
	ID           uuid.UUID       `json:"id"`
	ClientID     uuid.UUID       `json:"client_id"`
	SellerID     *uuid.UUID      `json:"seller_id,omitempty"`
	ContractType string          `json:"contract_type"`
	Status       string          `json:"status"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      *time.Time      `json:"end_date,omitempty"`
	DueDay       int             `json:"due_day"`
	TotalValue   decimal.Decimal `json:"total_value"`
	Version      int             `json:"version"`
}

// DeleteCheckResponse reports whether a receivable can be deleted
type DeleteCheckResponse struct {
	ID        uuid.UUID `json:"id"`
	Deletable bool      `json:"deletable"`
}

// ParseMonth parses a YYYY-MM reference month as the first day of that month in UTC
func ParseMonth(s string) (time.Time, error) {
	return time.Parse(MonthLayout, s)
}

// ParseOptionalUUID parses s when present
func ParseOptionalUUID(s *string) (*uuid.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func formatMonth(t time.Time) string {
	return t.Format(MonthLayout)
}

func optionalID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// ToBatchResponse converts a batch result
func ToBatchResponse(b *obligation.BatchResult) BatchResponse {
	if b == nil {
		return BatchResponse{Outcome: string(obligation.OutcomeSuccess), Items: []ItemResponse{}}
	}
	items := make([]ItemResponse, 0, len(b.Items))
	for _, it := range b.Items {
		item := ItemResponse{
			ContractID: optionalID(it.ContractID),
			RecordID:   optionalID(it.RecordID),
			Status:     string(it.Status),
			Error:      it.Error(),
		}
		if it.Month != nil {
			item.Month = formatMonth(*it.Month)
		}
		items = append(items, item)
	}
	return BatchResponse{
		Operation: b.Operation,
		Outcome:   string(b.Outcome()),
		Affected:  b.Affected(),
		Failed:    b.Count(obligation.ItemFailed),
		Items:     items,
	}
}

// ToCleanupResponse converts a cleanup result
func ToCleanupResponse(r *obligation.CleanupResult) CleanupResponse {
	return CleanupResponse{
		BatchResponse:    ToBatchResponse(r.BatchResult),
		Removed:          r.Removed,
		SkippedConfirmed: r.SkippedConfirmed,
	}
}

// ToFixResponse converts a contract type repair result
func ToFixResponse(r *obligation.FixResult) FixResponse {
	fixed := make([]ContractFixResponse, 0, len(r.Fixed))
	for _, f := range r.Fixed {
		fixed = append(fixed, ContractFixResponse{ContractID: f.ContractID, MonthsFixed: f.MonthsFixed})
	}
	return FixResponse{BatchResponse: ToBatchResponse(r.BatchResult), Fixed: fixed}
}

// ToMonthOutcomeResponse converts a single month result
func ToMonthOutcomeResponse(o *obligation.MonthOutcome) MonthOutcomeResponse {
	return MonthOutcomeResponse{
		Month:         formatMonth(o.Month),
		Status:        string(o.Status),
		LedgerEntryID: o.LedgerEntryID,
		ReceivableID:  o.ReceivableID,
		CommissionID:  o.CommissionID,
	}
}

// ToCommissionResponse converts a commission; nil stays nil
func ToCommissionResponse(c *finance.Commission) *CommissionResponse {
	if c == nil {
		return nil
	}
	return &CommissionResponse{
		ID:              c.ID,
		SellerID:        c.SellerID,
		SaleID:          c.SaleID,
		ContractID:      c.ContractID,
		ReferenceMonth:  formatMonth(c.ReferenceMonth),
		Percentage:      c.Percentage,
		BaseValue:       c.BaseValue,
		CommissionValue: c.CommissionValue,
		Status:          string(c.Status),
		PaidAt:          c.PaidAt,
		Version:         c.Version,
	}
}

// ToTransactionResponse converts a transaction
func ToTransactionResponse(tx *finance.FinancialTransaction) TransactionResponse {
	resp := TransactionResponse{
		ID:                 tx.ID,
		Kind:               string(tx.Kind),
		Amount:             tx.Amount,
		Status:             string(tx.Status),
		TransactionDate:    tx.TransactionDate,
		DueDate:            tx.DueDate,
		InstallmentIndex:   tx.InstallmentIndex,
		InstallmentCount:   tx.InstallmentCount,
		LinkedSaleID:       tx.LinkedSaleID,
		LinkedContractID:   tx.LinkedContractID,
		LinkedCommissionID: tx.LinkedCommissionID,
		Description:        tx.Description,
		ConfirmedAt:        tx.ConfirmedAt,
		Version:            tx.Version,
	}
	if tx.ReferenceMonth != nil {
		resp.ReferenceMonth = formatMonth(*tx.ReferenceMonth)
	}
	return resp
}

// ToContractResponse converts a contract
func ToContractResponse(c *trade.Contract) ContractResponse {
	return ContractResponse{
		ID:           c.ID,
		ClientID:     c.ClientID,
		SellerID:     c.SellerID,
		ContractType: string(c.ContractType),
		Status:       string(c.Status),
		StartDate:    c.StartDate,
		EndDate:      c.EndDate,
		DueDay:       c.DueDay,
		TotalValue:   c.TotalValue,
		Version:      c.Version,
	}
}
