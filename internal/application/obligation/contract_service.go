package obligation

import (
	"context"
	"fmt"

	"github.com/agency/backend/internal/domain/finance"
	"github.com/agency/backend/internal/domain/shared"
	"github.com/agency/backend/internal/domain/trade"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContractService handles the contract mutations that affect obligations
type ContractService struct {
	uow       finance.UnitOfWork
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewContractService creates a new ContractService
func NewContractService(uow finance.UnitOfWork, publisher shared.EventPublisher, logger *zap.Logger) *ContractService {
	return &ContractService{uow: uow, publisher: publisher, logger: logger}
}

// ChangeContractStatus applies a status transition and publishes the
// resulting events after the contract is saved
func (s *ContractService) ChangeContractStatus(ctx context.Context, contractID uuid.UUID, status trade.ContractStatus) (*trade.Contract, error) {
	contract, err := s.uow.Contracts().FindByID(ctx, contractID)
	if err != nil {
		return nil, storeErr("find contract", err)
	}
	if err := contract.ChangeStatus(status); err != nil {
		return nil, err
	}
	if err := s.uow.Contracts().Save(ctx, contract); err != nil {
		return nil, storeErr("save contract", err)
	}

	events := contract.GetDomainEvents()
	contract.ClearDomainEvents()
	if len(events) > 0 && s.publisher != nil {
		if err := s.publisher.Publish(ctx, events...); err != nil {
			s.logger.Warn("failed to publish contract events",
				zap.String("contract_id", contract.ID.String()),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("contract status changed",
		zap.String("contract_id", contract.ID.String()),
		zap.String("status", string(contract.Status)),
	)
	return contract, nil
}

// DeleteContract removes a contract that has no live obligations. Pending
// or confirmed transactions linked to it block the deletion.
func (s *ContractService) DeleteContract(ctx context.Context, contractID uuid.UUID) error {
	return s.uow.Atomic(ctx, func(ctx context.Context, tx finance.Store) error {
		if _, err := tx.Contracts().FindByID(ctx, contractID); err != nil {
			return storeErr("find contract", err)
		}
		live, err := tx.Transactions().FindAll(ctx, finance.TransactionFilter{
			ContractID: &contractID,
			Statuses:   []finance.TransactionStatus{finance.TransactionStatusPending, finance.TransactionStatusConfirmed},
		})
		if err != nil {
			return storeErr("list contract obligations", err)
		}
		if len(live) > 0 {
			return finance.NewDependencyBlockedError(finance.LinkTypeObligation, live[0].ID)
		}
		if err := tx.Ledger().DeleteByContract(ctx, contractID); err != nil {
			return storeErr("delete ledger entries", err)
		}
		if err := tx.Contracts().Delete(ctx, contractID); err != nil {
			return storeErr("delete contract", err)
		}
		s.logger.Info("contract deleted", zap.String("contract_id", contractID.String()))
		return nil
	})
}

// ContractStatusChangedHandler drops the pending months of a contract that
// was suspended or cancelled. Suspension releases them so a resumed contract
// bills them again; cancellation is final.
type ContractStatusChangedHandler struct {
	materializer *Materializer
	logger       *zap.Logger
}

// NewContractStatusChangedHandler creates a new ContractStatusChangedHandler
func NewContractStatusChangedHandler(materializer *Materializer, logger *zap.Logger) *ContractStatusChangedHandler {
	return &ContractStatusChangedHandler{materializer: materializer, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *ContractStatusChangedHandler) EventTypes() []string {
	return []string{trade.EventTypeContractStatusChanged}
}

// Handle processes a ContractStatusChangedEvent
func (h *ContractStatusChangedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*trade.ContractStatusChangedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", trade.EventTypeContractStatusChanged),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			trade.EventTypeContractStatusChanged, event.EventType())
	}
	if !changed.StopsBilling() {
		return nil
	}

	drop := h.materializer.CancelPendingMonths
	if changed.NewStatus == trade.ContractStatusSuspended {
		drop = h.materializer.ReleasePendingMonths
	}
	result, err := drop(ctx, changed.ContractID)
	if err != nil {
		return fmt.Errorf("failed to drop pending months: %w", err)
	}
	return result.Err()
}

var _ shared.EventHandler = (*ContractStatusChangedHandler)(nil)
