package trade

import (
	"github.com/agency/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeContract is the aggregate type of contract events
const AggregateTypeContract = "Contract"

// Event type constants
const (
	EventTypeContractStatusChanged        = "ContractStatusChanged"
	EventTypeContractConvertedToRecurring = "ContractConvertedToRecurring"
)

// ContractStatusChangedEvent is raised when a contract changes status.
// Suspension and cancellation stop future materialization.
type ContractStatusChangedEvent struct {
	shared.BaseDomainEvent
	ContractID     uuid.UUID      `json:"contract_id"`
	PreviousStatus ContractStatus `json:"previous_status"`
	NewStatus      ContractStatus `json:"new_status"`
}

// NewContractStatusChangedEvent creates a new ContractStatusChangedEvent
func NewContractStatusChangedEvent(c *Contract, previous ContractStatus) *ContractStatusChangedEvent {
	return &ContractStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeContractStatusChanged, AggregateTypeContract, c.ID),
		ContractID:      c.ID,
		PreviousStatus:  previous,
		NewStatus:       c.Status,
	}
}

// StopsBilling reports whether the new status ends future billing
func (e *ContractStatusChangedEvent) StopsBilling() bool {
	return e.NewStatus == ContractStatusSuspended || e.NewStatus == ContractStatusCancelled
}

// ContractConvertedToRecurringEvent is raised by the contract type repair
type ContractConvertedToRecurringEvent struct {
	shared.BaseDomainEvent
	ContractID uuid.UUID `json:"contract_id"`
	DueDay     int       `json:"due_day"`
}

// NewContractConvertedToRecurringEvent creates a new ContractConvertedToRecurringEvent
func NewContractConvertedToRecurringEvent(c *Contract) *ContractConvertedToRecurringEvent {
	return &ContractConvertedToRecurringEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeContractConvertedToRecurring, AggregateTypeContract, c.ID),
		ContractID:      c.ID,
		DueDay:          c.DueDay,
	}
}
