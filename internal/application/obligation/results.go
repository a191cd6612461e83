package obligation

import (
	"fmt"
	"strings"
	"time"

	"github.com/agency/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ItemStatus is the outcome of one unit of work inside an operation
type ItemStatus string

const (
	ItemCreated ItemStatus = "created"
	ItemUpdated ItemStatus = "updated"
	ItemSkipped ItemStatus = "skipped"
	ItemRemoved ItemStatus = "removed"
	ItemFailed  ItemStatus = "failed"
)

// Outcome summarizes a batch
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// ItemResult reports one item of a batch. Month is set for contract-month
// items; RecordID names the record the item produced or touched.
type ItemResult struct {
	ContractID uuid.UUID  `json:"contract_id,omitempty"`
	Month      *time.Time `json:"month,omitempty"`
	RecordID   uuid.UUID  `json:"record_id,omitempty"`
	Status     ItemStatus `json:"status"`
	Err        error      `json:"-"`
}

// Error returns the item failure message, or "" on success
func (r ItemResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// MonthOutcome is the result of materializing one contract month
type MonthOutcome struct {
	Month         time.Time  `json:"month"`
	Status        ItemStatus `json:"status"`
	LedgerEntryID uuid.UUID  `json:"ledger_entry_id"`
	ReceivableID  *uuid.UUID `json:"receivable_id,omitempty"`
	CommissionID  *uuid.UUID `json:"commission_id,omitempty"`
}

// BatchResult collects per-item results. Batches are atomic per item only.
type BatchResult struct {
	Operation string       `json:"operation"`
	Items     []ItemResult `json:"items"`
}

func newBatch(operation string) *BatchResult {
	return &BatchResult{Operation: operation, Items: make([]ItemResult, 0)}
}

// Add appends an item
func (b *BatchResult) Add(item ItemResult) {
	b.Items = append(b.Items, item)
}

// Merge appends all items of other
func (b *BatchResult) Merge(other *BatchResult) {
	if other == nil {
		return
	}
	b.Items = append(b.Items, other.Items...)
}

// Count returns how many items ended with status
func (b *BatchResult) Count(status ItemStatus) int {
	n := 0
	for _, it := range b.Items {
		if it.Status == status {
			n++
		}
	}
	return n
}

// Affected counts items that changed the store
func (b *BatchResult) Affected() int {
	return b.Count(ItemCreated) + b.Count(ItemUpdated) + b.Count(ItemRemoved)
}

// Failures returns the failed items
func (b *BatchResult) Failures() []ItemResult {
	var failed []ItemResult
	for _, it := range b.Items {
		if it.Status == ItemFailed {
			failed = append(failed, it)
		}
	}
	return failed
}

// Outcome classifies the batch
func (b *BatchResult) Outcome() Outcome {
	failed := b.Count(ItemFailed)
	switch {
	case failed == 0:
		return OutcomeSuccess
	case failed == len(b.Items):
		return OutcomeFailure
	default:
		return OutcomePartial
	}
}

// Err returns a PartialBatchError when any item failed, nil otherwise
func (b *BatchResult) Err() error {
	failures := b.Failures()
	if len(failures) == 0 {
		return nil
	}
	return &PartialBatchError{Operation: b.Operation, Failures: failures, Total: len(b.Items)}
}

// PartialBatchError reports the failed items of a batch
type PartialBatchError struct {
	Operation string
	Failures  []ItemResult
	Total     int
}

// Error implements the error interface
func (e *PartialBatchError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("%s: %d of %d items failed: %s", e.Operation, len(e.Failures), e.Total, strings.Join(msgs, "; "))
}

// Is matches shared.ErrPartialBatch
func (e *PartialBatchError) Is(target error) bool {
	t, ok := target.(*shared.DomainError)
	return ok && t.Code == shared.CodePartialBatchFailure
}

// CleanupResult reports a cleanup pass
type CleanupResult struct {
	*BatchResult
	Removed          int `json:"removed"`
	SkippedConfirmed int `json:"skipped_confirmed"`
}

// ContractFix reports one repaired contract
type ContractFix struct {
	ContractID  uuid.UUID `json:"contract_id"`
	MonthsFixed int       `json:"months_fixed"`
}

// FixResult reports a contract type repair pass
type FixResult struct {
	*BatchResult
	Fixed []ContractFix `json:"fixed"`
}

func monthPtr(m time.Time) *time.Time {
	return &m
}
