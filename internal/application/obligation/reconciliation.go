package obligation

import (
	"context"
	"fmt"
	"time"

	"github.com/agency/backend/internal/domain/finance"
	"github.com/agency/backend/internal/domain/shared"
	"github.com/agency/backend/internal/domain/shared/valueobject"
	"github.com/agency/backend/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Reconciler repairs drift between contracts, sales and their derived
// financial records
type Reconciler struct {
	uow          finance.UnitOfWork
	materializer *Materializer
	notifier     Notifier
	logger       *zap.Logger
}

// NewReconciler creates a new Reconciler
func NewReconciler(uow finance.UnitOfWork, materializer *Materializer, notifier Notifier, logger *zap.Logger) *Reconciler {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Reconciler{
		uow:          uow,
		materializer: materializer,
		notifier:     notifier,
		logger:       logger,
	}
}

// CleanupOrphanCommissionPayables deletes commission payables whose
// commission no longer exists. Confirmed payables are kept unless force is set.
func (r *Reconciler) CleanupOrphanCommissionPayables(ctx context.Context, force bool) (*CleanupResult, error) {
	result := &CleanupResult{BatchResult: newBatch(OpCleanupCommissionPayables)}

	payables, err := r.uow.Transactions().FindAll(ctx, finance.TransactionFilter{
		Kind:             finance.TransactionKindExpense,
		CommissionLinked: true,
	})
	if err != nil {
		return result, storeErr("list commission payables", err)
	}

	commissionIDs := make([]uuid.UUID, 0, len(payables))
	for _, p := range payables {
		commissionIDs = append(commissionIDs, *p.LinkedCommissionID)
	}
	commissions, err := r.uow.Commissions().FindAll(ctx, finance.CommissionFilter{IDs: commissionIDs})
	if err != nil {
		return result, storeErr("load commissions", err)
	}
	known := make(map[uuid.UUID]struct{}, len(commissions))
	for _, c := range commissions {
		known[c.ID] = struct{}{}
	}

	for _, p := range payables {
		if _, ok := known[*p.LinkedCommissionID]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			r.finishCleanup(ctx, result)
			return result, err
		}
		result.Add(r.removeOrphanPayable(ctx, p.ID, force, result))
	}

	r.finishCleanup(ctx, result)
	return result, nil
}

func (r *Reconciler) removeOrphanPayable(ctx context.Context, id uuid.UUID, force bool, result *CleanupResult) ItemResult {
	item := ItemResult{RecordID: id}
	skippedConfirmed := false

	err := r.uow.Atomic(ctx, func(ctx context.Context, tx finance.Store) error {
		payable, err := tx.Transactions().FindByID(ctx, id)
		if isNotFound(err) {
			item.Status = ItemSkipped
			return nil
		}
		if err != nil {
			return storeErr("find payable", err)
		}
		if payable.LinkedCommissionID == nil {
			item.Status = ItemSkipped
			return nil
		}
		_, err = tx.Commissions().FindByID(ctx, *payable.LinkedCommissionID)
		if err == nil {
			// the commission reappeared
			item.Status = ItemSkipped
			return nil
		}
		if !isNotFound(err) {
			return storeErr("find commission", err)
		}
		if payable.Status == finance.TransactionStatusConfirmed && !force {
			item.Status = ItemSkipped
			skippedConfirmed = true
			return nil
		}
		if err := tx.Transactions().Delete(ctx, payable.ID); err != nil {
			return storeErr("delete payable", err)
		}
		item.Status = ItemRemoved
		return nil
	})
	if err != nil {
		item.Status = ItemFailed
		item.Err = err
		return item
	}
	if skippedConfirmed {
		result.SkippedConfirmed++
		r.logger.Warn("orphan commission payable is confirmed, keeping it",
			zap.String("transaction_id", id.String()),
		)
	}
	return item
}

// CleanupOrphanReceivables deletes pending receivables whose contract is
// missing or cancelled, or whose sale is missing or lost
func (r *Reconciler) CleanupOrphanReceivables(ctx context.Context) (*CleanupResult, error) {
	result := &CleanupResult{BatchResult: newBatch(OpCleanupReceivables)}

	receivables, err := r.uow.Transactions().FindAll(ctx, finance.TransactionFilter{
		Kind:         finance.TransactionKindIncome,
		Statuses:     []finance.TransactionStatus{finance.TransactionStatusPending},
		SourceLinked: true,
	})
	if err != nil {
		return result, storeErr("list linked receivables", err)
	}

	contracts, sales, err := r.loadSources(ctx, receivables)
	if err != nil {
		return result, err
	}

	for _, t := range receivables {
		if !isOrphanReceivable(&t, contracts, sales) {
			continue
		}
		if err := ctx.Err(); err != nil {
			r.finishCleanup(ctx, result)
			return result, err
		}
		result.Add(r.removeOrphanReceivable(ctx, t.ID))
	}

	r.finishCleanup(ctx, result)
	return result, nil
}

func (r *Reconciler) loadSources(ctx context.Context, receivables []finance.FinancialTransaction) (map[uuid.UUID]*trade.Contract, map[uuid.UUID]*trade.Sale, error) {
	var contractIDs, saleIDs []uuid.UUID
	for _, t := range receivables {
		if t.LinkedContractID != nil {
			contractIDs = append(contractIDs, *t.LinkedContractID)
		}
		if t.LinkedSaleID != nil {
			saleIDs = append(saleIDs, *t.LinkedSaleID)
		}
	}

	contracts := make(map[uuid.UUID]*trade.Contract)
	if len(contractIDs) > 0 {
		list, err := r.uow.Contracts().FindAll(ctx, trade.ContractFilter{IDs: contractIDs})
		if err != nil {
			return nil, nil, storeErr("load contracts", err)
		}
		for i := range list {
			contracts[list[i].ID] = &list[i]
		}
	}
	sales := make(map[uuid.UUID]*trade.Sale)
	if len(saleIDs) > 0 {
		list, err := r.uow.Sales().FindAll(ctx, trade.SaleFilter{IDs: saleIDs})
		if err != nil {
			return nil, nil, storeErr("load sales", err)
		}
		for i := range list {
			sales[list[i].ID] = &list[i]
		}
	}
	return contracts, sales, nil
}

// isOrphanReceivable decides from a snapshot of the linked sources; a nil
// map entry means the source does not exist
func isOrphanReceivable(t *finance.FinancialTransaction, contracts map[uuid.UUID]*trade.Contract, sales map[uuid.UUID]*trade.Sale) bool {
	if t.Kind != finance.TransactionKindIncome || t.Status != finance.TransactionStatusPending {
		return false
	}
	if t.LinkedContractID != nil {
		c := contracts[*t.LinkedContractID]
		if c == nil || c.Status == trade.ContractStatusCancelled {
			return true
		}
	}
	if t.LinkedSaleID != nil {
		s := sales[*t.LinkedSaleID]
		if s == nil || s.Status == trade.SaleStatusLost {
			return true
		}
	}
	return false
}

func (r *Reconciler) removeOrphanReceivable(ctx context.Context, id uuid.UUID) ItemResult {
	item := ItemResult{RecordID: id}

	err := r.uow.Atomic(ctx, func(ctx context.Context, tx finance.Store) error {
		t, err := tx.Transactions().FindByID(ctx, id)
		if isNotFound(err) {
			item.Status = ItemSkipped
			return nil
		}
		if err != nil {
			return storeErr("find receivable", err)
		}

		contracts := make(map[uuid.UUID]*trade.Contract)
		if t.LinkedContractID != nil {
			c, err := tx.Contracts().FindByID(ctx, *t.LinkedContractID)
			if err != nil && !isNotFound(err) {
				return storeErr("find contract", err)
			}
			contracts[*t.LinkedContractID] = c
		}
		sales := make(map[uuid.UUID]*trade.Sale)
		if t.LinkedSaleID != nil {
			s, err := tx.Sales().FindByID(ctx, *t.LinkedSaleID)
			if err != nil && !isNotFound(err) {
				return storeErr("find sale", err)
			}
			sales[*t.LinkedSaleID] = s
		}
		if !isOrphanReceivable(t, contracts, sales) {
			item.Status = ItemSkipped
			return nil
		}

		if err := tx.Transactions().Delete(ctx, t.ID); err != nil {
			return storeErr("delete receivable", err)
		}
		item.Status = ItemRemoved
		if t.LinkedContractID != nil {
			item.ContractID = *t.LinkedContractID
		}
		return nil
	})
	if err != nil {
		item.Status = ItemFailed
		item.Err = err
	}
	return item
}

func (r *Reconciler) finishCleanup(ctx context.Context, result *CleanupResult) {
	result.Removed = result.Count(ItemRemoved)
	r.logger.Info("orphan cleanup finished",
		zap.String("operation", result.Operation),
		zap.Int("removed", result.Removed),
		zap.Int("skipped_confirmed", result.SkippedConfirmed),
		zap.Int("failed", result.Count(ItemFailed)),
	)
	r.notifier.Notify(ctx, NotificationFrom(result.BatchResult))
}

// FixContractTypesAndGenerateMissingInstallments converts single contracts
// whose date range spans several calendar months into recurring contracts
// and materializes the months of the active ones
func (r *Reconciler) FixContractTypesAndGenerateMissingInstallments(ctx context.Context) (*FixResult, error) {
	result := &FixResult{BatchResult: newBatch(OpFixContractTypes), Fixed: make([]ContractFix, 0)}

	contracts, err := r.uow.Contracts().FindAll(ctx, trade.ContractFilter{Type: trade.ContractTypeSingle})
	if err != nil {
		return result, storeErr("list single contracts", err)
	}

	for i := range contracts {
		contract := &contracts[i]
		if !contract.SpansMultipleMonths() {
			continue
		}
		if err := ctx.Err(); err != nil {
			r.notifier.Notify(ctx, NotificationFrom(result.BatchResult))
			return result, err
		}

		fix, months, err := r.fixContract(ctx, contract)
		if err != nil {
			result.Add(ItemResult{ContractID: contract.ID, Status: ItemFailed, Err: err})
			continue
		}
		result.Add(ItemResult{ContractID: contract.ID, RecordID: contract.ID, Status: ItemUpdated})
		result.Merge(months)
		result.Fixed = append(result.Fixed, fix)
	}

	r.logger.Info("contract types repaired",
		zap.Int("fixed", len(result.Fixed)),
		zap.Int("failed", result.Count(ItemFailed)),
	)
	r.notifier.Notify(ctx, NotificationFrom(result.BatchResult))
	return result, nil
}

func (r *Reconciler) fixContract(ctx context.Context, contract *trade.Contract) (ContractFix, *BatchResult, error) {
	fix := ContractFix{ContractID: contract.ID}

	var charges []monthCharge
	err := r.uow.Atomic(ctx, func(ctx context.Context, tx finance.Store) error {
		fresh, err := tx.Contracts().FindByID(ctx, contract.ID)
		if err != nil {
			return storeErr("find contract", err)
		}
		if fresh.IsRecurring() {
			*contract = *fresh
			return nil
		}
		charges, err = coverInstallments(ctx, tx, fresh, r.materializer.settings.now())
		if err != nil {
			return err
		}
		if err := fresh.ConvertToRecurring(fresh.DueDay); err != nil {
			return err
		}
		if err := tx.Contracts().Save(ctx, fresh); err != nil {
			return storeErr("save contract", err)
		}
		*contract = *fresh
		return nil
	})
	if err != nil {
		return fix, nil, err
	}

	months := newBatch(OpFixContractTypes)
	if !contract.IsActive() {
		return fix, months, nil
	}
	for _, charge := range charges {
		if err := ctx.Err(); err != nil {
			return fix, months, err
		}
		item := ItemResult{ContractID: contract.ID, Month: monthPtr(charge.month)}
		outcome, err := r.materializer.materializeMonthAt(ctx, contract, charge.month, charge.value)
		if err != nil {
			item.Status = ItemFailed
			item.Err = err
		} else {
			item.Status = outcome.Status
			item.RecordID = outcome.LedgerEntryID
		}
		months.Add(item)
	}
	fix.MonthsFixed = months.Count(ItemCreated)

	r.logger.Info("single contract converted to recurring",
		zap.String("contract_id", contract.ID.String()),
		zap.Int("due_day", contract.DueDay),
		zap.String("monthly_value", contract.MonthlyValue().String()),
		zap.Int("months_fixed", fix.MonthsFixed),
	)
	return fix, months, nil
}

// monthCharge is a month of a converted contract that still has to be billed
type monthCharge struct {
	month time.Time
	value decimal.Decimal
}

// coverInstallments runs before a single contract is converted. Months whose
// installment receivable already exists get a processed ledger entry for that
// installment. The remaining months share what the installments have not
// billed yet; when nothing is left they are cancelled so that no later pass
// bills them again.
func coverInstallments(ctx context.Context, tx finance.Store, contract *trade.Contract, now time.Time) ([]monthCharge, error) {
	end, ok := contract.EndMonth()
	if !ok {
		return nil, nil
	}

	receivables, err := tx.Transactions().FindAll(ctx, finance.TransactionFilter{
		Kind:       finance.TransactionKindIncome,
		ContractID: &contract.ID,
	})
	if err != nil {
		return nil, storeErr("list installment receivables", err)
	}
	covered := make(map[time.Time]decimal.Decimal)
	billed := decimal.Zero
	for _, t := range receivables {
		if t.ReferenceMonth != nil || t.LinkedCommissionID != nil || t.Status == finance.TransactionStatusCancelled {
			continue
		}
		due := t.TransactionDate
		if t.DueDate != nil {
			due = *t.DueDate
		}
		billed = billed.Add(t.Amount)
		if month := valueobject.MonthStart(due); contract.CoversMonth(month) {
			covered[month] = covered[month].Add(t.Amount)
		}
	}

	var uncovered []time.Time
	for _, month := range valueobject.MonthRange(contract.StartMonth(), end) {
		_, err := tx.Ledger().FindByContractAndMonth(ctx, contract.ID, month)
		switch {
		case err == nil:
			continue
		case !isNotFound(err):
			return nil, storeErr("find ledger entry", err)
		}
		value, ok := covered[month]
		if !ok {
			uncovered = append(uncovered, month)
			continue
		}
		entry, err := finance.NewLedgerEntry(contract.ID, month, value)
		if err != nil {
			return nil, err
		}
		if err := entry.Settle(value, now); err != nil {
			return nil, err
		}
		if err := tx.Ledger().Create(ctx, entry); err != nil {
			return nil, storeErr("create ledger entry", err)
		}
	}
	if len(uncovered) == 0 {
		return nil, nil
	}

	remaining := contract.TotalValue.Sub(billed)
	if !remaining.IsPositive() {
		for _, month := range uncovered {
			entry, err := finance.NewLedgerEntry(contract.ID, month, decimal.Zero)
			if err != nil {
				return nil, err
			}
			if err := entry.Cancel(); err != nil {
				return nil, err
			}
			if err := tx.Ledger().Create(ctx, entry); err != nil {
				return nil, storeErr("create ledger entry", err)
			}
		}
		return nil, nil
	}

	parts, err := valueobject.NewMoneyBRL(remaining).Split(len(uncovered))
	if err != nil {
		return nil, shared.NewValidationError(err.Error())
	}
	charges := make([]monthCharge, len(uncovered))
	for i, month := range uncovered {
		charges[i] = monthCharge{month: month, value: parts[i].Amount()}
	}
	return charges, nil
}

// ValidateDeleteReceivable reports whether a receivable may be deleted:
// nil when safe, a DependencyBlockedError when it is still linked to an
// active contract or an existing sale
func (r *Reconciler) ValidateDeleteReceivable(ctx context.Context, id uuid.UUID) error {
	return validateDeleteReceivable(ctx, r.uow, id)
}

func validateDeleteReceivable(ctx context.Context, store finance.Store, id uuid.UUID) error {
	t, err := store.Transactions().FindByID(ctx, id)
	if err != nil {
		return storeErr("find receivable", err)
	}
	if !t.IsReceivable() {
		return shared.NewValidationError(fmt.Sprintf("Transaction %s is not a receivable", t.ID))
	}

	if t.LinkedContractID != nil {
		c, err := store.Contracts().FindByID(ctx, *t.LinkedContractID)
		switch {
		case err == nil && c.IsActive():
			return finance.NewDependencyBlockedError(finance.LinkTypeContract, c.ID)
		case err != nil && !isNotFound(err):
			return storeErr("find contract", err)
		}
	}
	if t.LinkedSaleID != nil {
		s, err := store.Sales().FindByID(ctx, *t.LinkedSaleID)
		switch {
		case err == nil:
			return finance.NewDependencyBlockedError(finance.LinkTypeSale, s.ID)
		case !isNotFound(err):
			return storeErr("find sale", err)
		}
	}
	return nil
}

// DeleteReceivable deletes a receivable after ValidateDeleteReceivable passes
// inside the same unit of work
func (r *Reconciler) DeleteReceivable(ctx context.Context, id uuid.UUID) error {
	return r.uow.Atomic(ctx, func(ctx context.Context, tx finance.Store) error {
		if err := validateDeleteReceivable(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.Transactions().Delete(ctx, id); err != nil {
			return storeErr("delete receivable", err)
		}
		r.logger.Info("receivable deleted", zap.String("transaction_id", id.String()))
		return nil
	})
}
