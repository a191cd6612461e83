package obligation

import (
	"context"
	"strings"
	"time"

	"github.com/agency/backend/internal/domain/finance"
	"github.com/agency/backend/internal/domain/shared"
	"github.com/agency/backend/internal/domain/trade"
	"github.com/agency/backend/internal/infrastructure/logger"
	"github.com/agency/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Engine is the command surface of the recurring obligation and commission
// engine. Every command re-reads the store; nothing is cached between calls.
type Engine struct {
	Materializer *Materializer
	Attributor   *CommissionAttributor
	Reconciler   *Reconciler
	Toggle       *StatusToggleCoordinator
	Contracts    *ContractService

	logger *zap.Logger
}

// NewEngine wires the engine services over one unit of work
func NewEngine(
	uow finance.UnitOfWork,
	profiles finance.SellerProfileLookup,
	publisher shared.EventPublisher,
	notifier Notifier,
	settings Settings,
	logger *zap.Logger,
) *Engine {
	settings = settings.withDefaults()
	attributor := NewCommissionAttributor(uow, profiles, notifier, settings, logger.Named("commission"))
	materializer := NewMaterializer(uow, attributor, notifier, settings, logger.Named("materializer"))
	return &Engine{
		Materializer: materializer,
		Attributor:   attributor,
		Reconciler:   NewReconciler(uow, materializer, notifier, logger.Named("reconciliation")),
		Toggle:       NewStatusToggleCoordinator(uow, settings, logger.Named("toggle")),
		Contracts:    NewContractService(uow, publisher, logger.Named("contract")),
		logger:       logger,
	}
}

// EventHandlers returns the handlers the engine needs subscribed on the event bus
func (e *Engine) EventHandlers() []shared.EventHandler {
	return []shared.EventHandler{
		NewContractStatusChangedHandler(e.Materializer, e.logger.Named("contract_events")),
		NewBatchOperationLogHandler(e.logger.Named("batch")),
	}
}

// MaterializeRange materializes the months of a recurring contract
func (e *Engine) MaterializeRange(ctx context.Context, contractID uuid.UUID, fromMonth, toMonth time.Time) (res *BatchResult, err error) {
	ctx, span := e.startSpan(ctx, "obligation."+OpMaterializeRange, telemetry.AttrContractID.String(contractID.String()))
	defer func() { endBatchSpan(span, res, err) }()
	return e.Materializer.MaterializeRange(ctx, contractID, fromMonth, toMonth)
}

// MaterializeMonth materializes one month of a recurring contract
func (e *Engine) MaterializeMonth(ctx context.Context, contractID uuid.UUID, month time.Time) (out *MonthOutcome, err error) {
	ctx, span := e.startSpan(ctx, "obligation.materialize_month",
		telemetry.AttrContractID.String(contractID.String()),
		attribute.String("obligation.reference_month", month.Format("2006-01")),
	)
	defer func() { telemetry.End(span, err) }()
	return e.Materializer.MaterializeMonth(ctx, contractID, month)
}

// MaterializeDueMonths materializes asOf's month for every active recurring contract
func (e *Engine) MaterializeDueMonths(ctx context.Context, asOf time.Time) (res *BatchResult, err error) {
	ctx, span := e.startSpan(ctx, "obligation."+OpMaterializeDueMonths)
	defer func() { endBatchSpan(span, res, err) }()
	return e.Materializer.MaterializeDueMonths(ctx, asOf)
}

// MaterializeSingleContract creates the installment receivables of a single contract
func (e *Engine) MaterializeSingleContract(ctx context.Context, contractID uuid.UUID) (res *BatchResult, err error) {
	ctx, span := e.startSpan(ctx, "obligation."+OpMaterializeSingleContract, telemetry.AttrContractID.String(contractID.String()))
	defer func() { endBatchSpan(span, res, err) }()
	return e.Materializer.MaterializeSingleContract(ctx, contractID)
}

// MaterializeSale creates the installment receivables and commission of a sale
func (e *Engine) MaterializeSale(ctx context.Context, saleID uuid.UUID) (res *BatchResult, err error) {
	ctx, span := e.startSpan(ctx, "obligation."+OpMaterializeSale, telemetry.AttrSaleID.String(saleID.String()))
	defer func() { endBatchSpan(span, res, err) }()
	return e.Materializer.MaterializeSale(ctx, saleID)
}

// CancelPendingMonths stops future billing of a contract
func (e *Engine) CancelPendingMonths(ctx context.Context, contractID uuid.UUID) (res *BatchResult, err error) {
	ctx, span := e.startSpan(ctx, "obligation."+OpCancelPendingMonths, telemetry.AttrContractID.String(contractID.String()))
	defer func() { endBatchSpan(span, res, err) }()
	return e.Materializer.CancelPendingMonths(ctx, contractID)
}

// ReleasePendingMonths pauses billing of a suspended contract
func (e *Engine) ReleasePendingMonths(ctx context.Context, contractID uuid.UUID) (res *BatchResult, err error) {
	ctx, span := e.startSpan(ctx, "obligation."+OpReleasePendingMonths, telemetry.AttrContractID.String(contractID.String()))
	defer func() { endBatchSpan(span, res, err) }()
	return e.Materializer.ReleasePendingMonths(ctx, contractID)
}

// AttributeForSale creates or refreshes the commission of a sale
func (e *Engine) AttributeForSale(ctx context.Context, saleID uuid.UUID) (c *finance.Commission, err error) {
	ctx, span := e.startSpan(ctx, "obligation.attribute_for_sale", telemetry.AttrSaleID.String(saleID.String()))
	defer func() { telemetry.End(span, err) }()
	return e.Attributor.AttributeForSale(ctx, saleID)
}

// GenerateFutureContractCommissions backfills upcoming contract commissions
func (e *Engine) GenerateFutureContractCommissions(ctx context.Context, contractID *uuid.UUID) (res *BatchResult, err error) {
	ctx, span := e.startSpan(ctx, "obligation."+OpGenerateFutureCommissions)
	if contractID != nil {
		span.SetAttributes(telemetry.AttrContractID.String(contractID.String()))
	}
	defer func() { endBatchSpan(span, res, err) }()
	return e.Attributor.GenerateFutureContractCommissions(ctx, contractID)
}

// SyncAllCommissionsToFinancial creates every missing commission payable
func (e *Engine) SyncAllCommissionsToFinancial(ctx context.Context) (res *BatchResult, err error) {
	ctx, span := e.startSpan(ctx, "obligation."+OpSyncCommissionsToFinancial)
	defer func() { endBatchSpan(span, res, err) }()
	return e.Attributor.SyncAllCommissionsToFinancial(ctx)
}

// SyncCommissionsToFinancial creates the missing payables of one seller
func (e *Engine) SyncCommissionsToFinancial(ctx context.Context, userID uuid.UUID) (res *BatchResult, err error) {
	ctx, span := e.startSpan(ctx, "obligation."+OpSyncCommissionsToFinancial, attribute.String("obligation.seller_id", userID.String()))
	defer func() { endBatchSpan(span, res, err) }()
	return e.Attributor.SyncCommissionsToFinancial(ctx, userID)
}

// CleanupOrphanCommissionPayables removes payables of deleted commissions
func (e *Engine) CleanupOrphanCommissionPayables(ctx context.Context, force bool) (res *CleanupResult, err error) {
	ctx, span := e.startSpan(ctx, "obligation."+OpCleanupCommissionPayables, attribute.Bool("obligation.force", force))
	defer func() { endBatchSpan(span, cleanupBatch(res), err) }()
	return e.Reconciler.CleanupOrphanCommissionPayables(ctx, force)
}

// CleanupOrphanReceivables removes pending receivables of dead contracts and sales
func (e *Engine) CleanupOrphanReceivables(ctx context.Context) (res *CleanupResult, err error) {
	ctx, span := e.startSpan(ctx, "obligation."+OpCleanupReceivables)
	defer func() { endBatchSpan(span, cleanupBatch(res), err) }()
	return e.Reconciler.CleanupOrphanReceivables(ctx)
}

// FixContractTypesAndGenerateMissingInstallments repairs mistyped single contracts
func (e *Engine) FixContractTypesAndGenerateMissingInstallments(ctx context.Context) (res *FixResult, err error) {
	ctx, span := e.startSpan(ctx, "obligation."+OpFixContractTypes)
	defer func() {
		var b *BatchResult
		if res != nil {
			b = res.BatchResult
		}
		endBatchSpan(span, b, err)
	}()
	return e.Reconciler.FixContractTypesAndGenerateMissingInstallments(ctx)
}

// ToggleTransactionStatus changes a transaction status, keeping its commission in step
func (e *Engine) ToggleTransactionStatus(ctx context.Context, id uuid.UUID, newStatus finance.TransactionStatus) (tx *finance.FinancialTransaction, err error) {
	ctx, span := e.startSpan(ctx, "obligation.toggle_transaction_status",
		telemetry.AttrTransaction.String(id.String()),
		attribute.String("obligation.status", string(newStatus)),
	)
	defer func() { telemetry.End(span, err) }()
	return e.Toggle.ToggleTransactionStatus(ctx, id, newStatus)
}

// MarkCommissionPaid pays a commission and confirms its payable
func (e *Engine) MarkCommissionPaid(ctx context.Context, commissionID uuid.UUID) (c *finance.Commission, err error) {
	ctx, span := e.startSpan(ctx, "obligation.mark_commission_paid", telemetry.AttrCommission.String(commissionID.String()))
	defer func() { telemetry.End(span, err) }()
	return e.Toggle.MarkCommissionPaid(ctx, commissionID)
}

// MarkCommissionPending reopens a commission and its payable
func (e *Engine) MarkCommissionPending(ctx context.Context, commissionID uuid.UUID) (c *finance.Commission, err error) {
	ctx, span := e.startSpan(ctx, "obligation.mark_commission_pending", telemetry.AttrCommission.String(commissionID.String()))
	defer func() { telemetry.End(span, err) }()
	return e.Toggle.MarkCommissionPending(ctx, commissionID)
}

// ValidateDeleteReceivable reports whether a receivable may be deleted
func (e *Engine) ValidateDeleteReceivable(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := e.startSpan(ctx, "obligation.validate_delete_receivable", telemetry.AttrTransaction.String(id.String()))
	defer func() { telemetry.End(span, err) }()
	return e.Reconciler.ValidateDeleteReceivable(ctx, id)
}

// DeleteReceivable deletes a receivable that nothing live references
func (e *Engine) DeleteReceivable(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := e.startSpan(ctx, "obligation.delete_receivable", telemetry.AttrTransaction.String(id.String()))
	defer func() { telemetry.End(span, err) }()
	return e.Reconciler.DeleteReceivable(ctx, id)
}

// ChangeContractStatus applies a contract status transition
func (e *Engine) ChangeContractStatus(ctx context.Context, contractID uuid.UUID, status trade.ContractStatus) (c *trade.Contract, err error) {
	ctx, span := e.startSpan(ctx, "obligation.change_contract_status",
		telemetry.AttrContractID.String(contractID.String()),
		attribute.String("obligation.status", string(status)),
	)
	defer func() { telemetry.End(span, err) }()
	return e.Contracts.ChangeContractStatus(ctx, contractID, status)
}

// DeleteContract removes a contract without live obligations
func (e *Engine) DeleteContract(ctx context.Context, contractID uuid.UUID) (err error) {
	ctx, span := e.startSpan(ctx, "obligation.delete_contract", telemetry.AttrContractID.String(contractID.String()))
	defer func() { telemetry.End(span, err) }()
	return e.Contracts.DeleteContract(ctx, contractID)
}

// RunSweep drives the re-enterable operations for a periodic sweep:
// materialize asOf's month, then clean orphans without forcing
func (e *Engine) RunSweep(ctx context.Context, asOf time.Time) (err error) {
	ctx, span := e.startSpan(ctx, "obligation."+OpSweep, attribute.String("obligation.as_of", asOf.Format(time.DateOnly)))
	defer func() { telemetry.End(span, err) }()

	due, err := e.Materializer.MaterializeDueMonths(ctx, asOf)
	if err != nil {
		return err
	}
	payables, err := e.Reconciler.CleanupOrphanCommissionPayables(ctx, false)
	if err != nil {
		return err
	}
	receivables, err := e.Reconciler.CleanupOrphanReceivables(ctx)
	if err != nil {
		return err
	}

	e.logger.Info("obligation sweep finished",
		zap.Time("as_of", asOf),
		zap.Int("months_materialized", due.Count(ItemCreated)),
		zap.Int("payables_removed", payables.Removed),
		zap.Int("receivables_removed", receivables.Removed),
	)
	for _, b := range []*BatchResult{due, payables.BatchResult, receivables.BatchResult} {
		if err := b.Err(); err != nil {
			return err
		}
	}
	return nil
}

// startSpan opens a facade span and tags ctx with the operation name, which
// the SQL logger reports on every statement of the call
func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, _ = logger.WithOperation(ctx, e.logger, strings.TrimPrefix(name, "obligation."))
	return telemetry.StartSpan(ctx, name, attrs...)
}

func cleanupBatch(res *CleanupResult) *BatchResult {
	if res == nil {
		return nil
	}
	return res.BatchResult
}

// endBatchSpan tags span with the batch tally. A partial batch is not a span
// error; its failures are counted instead.
func endBatchSpan(span trace.Span, res *BatchResult, err error) {
	if res != nil {
		span.SetAttributes(
			telemetry.AttrAffected.Int(res.Affected()),
			telemetry.AttrFailed.Int(len(res.Failures())),
			telemetry.AttrOutcome.String(string(res.Outcome())),
		)
	}
	telemetry.End(span, err)
}
