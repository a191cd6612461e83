package obligation

import (
	"context"

	"github.com/agency/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Operation names reported to the notification layer
const (
	OpMaterializeRange           = "materialize_range"
	OpMaterializeDueMonths       = "materialize_due_months"
	OpMaterializeSingleContract  = "materialize_single_contract"
	OpMaterializeSale            = "materialize_sale"
	OpCancelPendingMonths        = "cancel_pending_months"
	OpReleasePendingMonths       = "release_pending_months"
	OpGenerateFutureCommissions  = "generate_future_contract_commissions"
	OpSyncCommissionsToFinancial = "sync_commissions_to_financial"
	OpCleanupCommissionPayables  = "cleanup_orphan_commission_payables"
	OpCleanupReceivables         = "cleanup_orphan_receivables"
	OpFixContractTypes           = "fix_contract_types"
	OpSweep                      = "sweep"
)

// Notification is the user-visible summary of a batch operation
type Notification struct {
	Operation     string  `json:"operation"`
	Outcome       Outcome `json:"outcome"`
	ItemsAffected int     `json:"items_affected"`
	ItemsFailed   int     `json:"items_failed"`
}

// NotificationFrom summarizes a batch
func NotificationFrom(b *BatchResult) Notification {
	return Notification{
		Operation:     b.Operation,
		Outcome:       b.Outcome(),
		ItemsAffected: b.Affected(),
		ItemsFailed:   b.Count(ItemFailed),
	}
}

// Notifier delivers batch summaries to the user
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NopNotifier discards notifications
type NopNotifier struct{}

// Notify implements Notifier
func (NopNotifier) Notify(context.Context, Notification) {}

// EventTypeBatchOperationCompleted is published after every batch operation
const EventTypeBatchOperationCompleted = "BatchOperationCompleted"

// AggregateTypeObligationEngine is the aggregate type of engine events
const AggregateTypeObligationEngine = "ObligationEngine"

// BatchOperationCompletedEvent carries a Notification on the event bus
type BatchOperationCompletedEvent struct {
	shared.BaseDomainEvent
	Notification
}

// NewBatchOperationCompletedEvent creates a new BatchOperationCompletedEvent
func NewBatchOperationCompletedEvent(n Notification) *BatchOperationCompletedEvent {
	return &BatchOperationCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchOperationCompleted, AggregateTypeObligationEngine, uuid.Nil),
		Notification:    n,
	}
}

// EventNotifier publishes notifications as domain events
type EventNotifier struct {
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewEventNotifier creates a notifier backed by an event publisher
func NewEventNotifier(publisher shared.EventPublisher, logger *zap.Logger) *EventNotifier {
	return &EventNotifier{publisher: publisher, logger: logger}
}

// Notify publishes the notification. Delivery failures are logged only.
func (n *EventNotifier) Notify(ctx context.Context, notification Notification) {
	if err := n.publisher.Publish(ctx, NewBatchOperationCompletedEvent(notification)); err != nil {
		n.logger.Warn("failed to publish batch notification",
			zap.String("operation", notification.Operation),
			zap.Error(err),
		)
	}
}

// BatchOperationLogHandler logs every batch notification
type BatchOperationLogHandler struct {
	logger *zap.Logger
}

// NewBatchOperationLogHandler creates a new BatchOperationLogHandler
func NewBatchOperationLogHandler(logger *zap.Logger) *BatchOperationLogHandler {
	return &BatchOperationLogHandler{logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *BatchOperationLogHandler) EventTypes() []string {
	return []string{EventTypeBatchOperationCompleted}
}

// Handle logs the batch summary
func (h *BatchOperationLogHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	ev, ok := event.(*BatchOperationCompletedEvent)
	if !ok {
		return nil
	}
	fields := []zap.Field{
		zap.String("operation", ev.Operation),
		zap.String("outcome", string(ev.Outcome)),
		zap.Int("items_affected", ev.ItemsAffected),
		zap.Int("items_failed", ev.ItemsFailed),
	}
	if ev.Outcome == OutcomeSuccess {
		h.logger.Info("batch operation completed", fields...)
	} else {
		h.logger.Warn("batch operation completed with failures", fields...)
	}
	return nil
}

var (
	_ Notifier            = (*EventNotifier)(nil)
	_ Notifier            = NopNotifier{}
	_ shared.EventHandler = (*BatchOperationLogHandler)(nil)
)
