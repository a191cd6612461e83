package obligation

import (
	"context"
	"errors"
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

// Materializer turns contract months and closed sales into receivables,
// commissions and commission payables. The recurrence ledger makes every
// contract month materialize at most once.
type Materializer struct {
	uow        finance.UnitOfWork
	attributor *CommissionAttributor
	notifier   Notifier
	settings   Settings
	logger     *zap.Logger
}

// NewMaterializer creates a new Materializer
func NewMaterializer(
	uow finance.UnitOfWork,
	attributor *CommissionAttributor,
	notifier Notifier,
	settings Settings,
	logger *zap.Logger,
) *Materializer {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Materializer{
		uow:        uow,
		attributor: attributor,
		notifier:   notifier,
		settings:   settings.withDefaults(),
		logger:     logger,
	}
}

// MaterializeMonth writes the receivable (and commission) of one month of a
// recurring contract. Months already processed or cancelled are skipped.
func (m *Materializer) MaterializeMonth(ctx context.Context, contractID uuid.UUID, targetMonth time.Time) (*MonthOutcome, error) {
	contract, err := m.uow.Contracts().FindByID(ctx, contractID)
	if err != nil {
		return nil, storeErr("find contract", err)
	}
	if err := checkRecurringActive(contract); err != nil {
		return nil, err
	}
	return m.materializeMonth(ctx, contract, valueobject.MonthStart(targetMonth))
}

func checkRecurringActive(contract *trade.Contract) error {
	if !contract.IsActive() {
		return shared.NewInvalidStateError(fmt.Sprintf("Contract %s is %s", contract.ID, contract.Status))
	}
	if !contract.IsRecurring() {
		return shared.NewValidationError(fmt.Sprintf("Contract %s is not recurring", contract.ID))
	}
	return nil
}

func (m *Materializer) materializeMonth(ctx context.Context, contract *trade.Contract, month time.Time) (*MonthOutcome, error) {
	return m.materializeMonthAt(ctx, contract, month, contract.MonthlyValue())
}

// materializeMonthAt bills month for value instead of the contract's
// monthly fee
func (m *Materializer) materializeMonthAt(ctx context.Context, contract *trade.Contract, month time.Time, value decimal.Decimal) (*MonthOutcome, error) {
	if !contract.CoversMonth(month) {
		return nil, shared.NewValidationError(fmt.Sprintf("Month %s is outside contract %s", month.Format("2006-01"), contract.ID))
	}

	existing, err := m.uow.Ledger().FindByContractAndMonth(ctx, contract.ID, month)
	switch {
	case err == nil && !existing.IsPending():
		return settledOutcome(existing), nil
	case err != nil && !isNotFound(err):
		return nil, storeErr("find ledger entry", err)
	}

	outcome := &MonthOutcome{Month: month, Status: ItemCreated}
	err = m.uow.Atomic(ctx, func(ctx context.Context, tx finance.Store) error {
		return m.writeMonth(ctx, tx, contract, month, value, outcome)
	})
	if err == nil {
		m.logger.Info("contract month materialized",
			zap.String("contract_id", contract.ID.String()),
			zap.Time("reference_month", month),
			zap.String("monthly_value", value.String()),
		)
		return outcome, nil
	}
	if errors.Is(err, shared.ErrConflict) {
		return m.resolveConflict(ctx, contract, month, value)
	}

	m.logger.Error("failed to materialize contract month",
		zap.String("contract_id", contract.ID.String()),
		zap.Time("reference_month", month),
		zap.Error(err),
	)
	return nil, err
}

// writeMonth runs inside one unit of work. The ledger write comes first: it
// is the point where concurrent writers of the same month collide.
func (m *Materializer) writeMonth(
	ctx context.Context,
	tx finance.Store,
	contract *trade.Contract,
	month time.Time,
	value decimal.Decimal,
	outcome *MonthOutcome,
) error {
	entry, err := tx.Ledger().FindByContractAndMonth(ctx, contract.ID, month)
	isNew := false
	switch {
	case isNotFound(err):
		entry, err = finance.NewLedgerEntry(contract.ID, month, value)
		if err != nil {
			return err
		}
		isNew = true
	case err != nil:
		return storeErr("find ledger entry", err)
	case !entry.IsPending():
		return shared.NewConflictError("Ledger entry was settled concurrently")
	}

	if err := entry.Settle(value, m.settings.now()); err != nil {
		return err
	}
	if isNew {
		err = tx.Ledger().Create(ctx, entry)
	} else {
		err = tx.Ledger().SaveWithLock(ctx, entry)
	}
	if err != nil {
		return storeErr("write ledger entry", err)
	}
	outcome.LedgerEntryID = entry.ID

	receivable, err := newMonthReceivable(contract, month, value)
	if err != nil {
		return err
	}
	if err := tx.Transactions().Create(ctx, receivable); err != nil {
		return storeErr("create receivable", err)
	}
	outcome.ReceivableID = &receivable.ID

	commission, err := m.attributor.AttributeForContractMonth(ctx, tx, contract, month, value)
	if err != nil {
		return err
	}
	if commission != nil {
		outcome.CommissionID = &commission.ID
	}
	return nil
}

// resolveConflict re-reads the entry written by the concurrent winner. The
// same monthly value means the month is already done; anything else is drift.
func (m *Materializer) resolveConflict(ctx context.Context, contract *trade.Contract, month time.Time, value decimal.Decimal) (*MonthOutcome, error) {
	entry, err := m.uow.Ledger().FindByContractAndMonth(ctx, contract.ID, month)
	if err != nil {
		return nil, storeErr("re-read ledger entry", err)
	}
	if entry.IsPending() {
		return nil, shared.NewConflictError(fmt.Sprintf("Ledger entry for %s of contract %s changed concurrently", month.Format("2006-01"), contract.ID))
	}
	if entry.Status == finance.LedgerStatusProcessed && !entry.MatchesValue(value) {
		return nil, shared.NewConflictError(fmt.Sprintf("Month %s of contract %s was materialized with %s, expected %s",
			month.Format("2006-01"), contract.ID, entry.MonthlyValue.StringFixed(2), value.StringFixed(2)))
	}
	m.logger.Debug("contract month materialized by a concurrent writer",
		zap.String("contract_id", contract.ID.String()),
		zap.Time("reference_month", month),
	)
	return settledOutcome(entry), nil
}

func settledOutcome(entry *finance.LedgerEntry) *MonthOutcome {
	return &MonthOutcome{Month: entry.ReferenceMonth, Status: ItemSkipped, LedgerEntryID: entry.ID}
}

func newMonthReceivable(contract *trade.Contract, month time.Time, value decimal.Decimal) (*finance.FinancialTransaction, error) {
	due := valueobject.DueDateInMonth(month, contract.DueDay)
	position := finance.ComputeContractParcelPosition(contract.StartDate, contract.EndDate, month)
	contractID := contract.ID
	return finance.NewFinancialTransaction(finance.TransactionParams{
		OwnerUserID:      contract.OwnerUserID,
		Kind:             finance.TransactionKindIncome,
		Amount:           value,
		TransactionDate:  due,
		DueDate:          &due,
		LinkedContractID: &contractID,
		ReferenceMonth:   &month,
		Description:      fmt.Sprintf("%s - Parcela %s", contractLabel(contract), position.Label()),
	})
}

// MaterializeRange materializes every month of [fromMonth, toMonth] that
// lies inside the contract. Failures are collected per month.
func (m *Materializer) MaterializeRange(ctx context.Context, contractID uuid.UUID, fromMonth, toMonth time.Time) (*BatchResult, error) {
	batch := newBatch(OpMaterializeRange)
	from, to := valueobject.MonthStart(fromMonth), valueobject.MonthStart(toMonth)
	if to.Before(from) {
		return batch, shared.NewValidationError("fromMonth must not be after toMonth")
	}

	contract, err := m.uow.Contracts().FindByID(ctx, contractID)
	if err != nil {
		return batch, storeErr("find contract", err)
	}
	if err := checkRecurringActive(contract); err != nil {
		return batch, err
	}

	err = m.materializeMonths(ctx, contract, clipToContract(contract, from, to), batch)
	m.notifier.Notify(ctx, NotificationFrom(batch))
	return batch, err
}

func clipToContract(contract *trade.Contract, from, to time.Time) []time.Time {
	if start := contract.StartMonth(); from.Before(start) {
		from = start
	}
	if end, ok := contract.EndMonth(); ok && to.After(end) {
		to = end
	}
	return valueobject.MonthRange(from, to)
}

func (m *Materializer) materializeMonths(ctx context.Context, contract *trade.Contract, months []time.Time, batch *BatchResult) error {
	for _, month := range months {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := ItemResult{ContractID: contract.ID, Month: monthPtr(month)}
		outcome, err := m.materializeMonth(ctx, contract, month)
		if err != nil {
			item.Status = ItemFailed
			item.Err = err
		} else {
			item.Status = outcome.Status
			item.RecordID = outcome.LedgerEntryID
		}
		batch.Add(item)
	}
	return nil
}

// MaterializeDueMonths materializes asOf's month for every active recurring
// contract that covers it
func (m *Materializer) MaterializeDueMonths(ctx context.Context, asOf time.Time) (*BatchResult, error) {
	batch := newBatch(OpMaterializeDueMonths)
	month := valueobject.MonthStart(asOf)

	contracts, err := m.uow.Contracts().FindAll(ctx, trade.ContractFilter{
		Type:   trade.ContractTypeRecurring,
		Status: trade.ContractStatusActive,
	})
	if err != nil {
		return batch, storeErr("list recurring contracts", err)
	}

	for i := range contracts {
		contract := &contracts[i]
		if !contract.CoversMonth(month) {
			continue
		}
		if err := m.materializeMonths(ctx, contract, []time.Time{month}, batch); err != nil {
			m.notifier.Notify(ctx, NotificationFrom(batch))
			return batch, err
		}
	}

	m.notifier.Notify(ctx, NotificationFrom(batch))
	return batch, nil
}

// CancelPendingMonths stops future billing of a contract for good: pending
// ledger entries become cancelled and the still-pending commissions
// backfilled for those months are removed with their payables
func (m *Materializer) CancelPendingMonths(ctx context.Context, contractID uuid.UUID) (*BatchResult, error) {
	return m.dropPendingMonths(ctx, newBatch(OpCancelPendingMonths), contractID, false)
}

// ReleasePendingMonths pauses billing of a suspended contract. Pending
// ledger entries are deleted instead of cancelled so that the months bill
// normally once the contract is active again.
func (m *Materializer) ReleasePendingMonths(ctx context.Context, contractID uuid.UUID) (*BatchResult, error) {
	return m.dropPendingMonths(ctx, newBatch(OpReleasePendingMonths), contractID, true)
}

func (m *Materializer) dropPendingMonths(ctx context.Context, batch *BatchResult, contractID uuid.UUID, release bool) (*BatchResult, error) {
	entries, err := m.uow.Ledger().FindByContract(ctx, contractID)
	if err != nil {
		return batch, storeErr("list ledger entries", err)
	}

	for _, e := range entries {
		if !e.IsPending() {
			continue
		}
		if err := ctx.Err(); err != nil {
			m.notifier.Notify(ctx, NotificationFrom(batch))
			return batch, err
		}
		batch.Add(m.cancelMonth(ctx, contractID, e.ReferenceMonth, release))
	}

	m.logger.Info("pending contract months dropped",
		zap.String("contract_id", contractID.String()),
		zap.String("operation", batch.Operation),
		zap.Int("cancelled", batch.Count(ItemUpdated)),
		zap.Int("released", batch.Count(ItemRemoved)),
	)
	m.notifier.Notify(ctx, NotificationFrom(batch))
	return batch, nil
}

// cancelMonth cancels a pending month, or deletes it when release is set,
// and removes its unpaid commission
func (m *Materializer) cancelMonth(ctx context.Context, contractID uuid.UUID, month time.Time, release bool) ItemResult {
	item := ItemResult{ContractID: contractID, Month: monthPtr(month)}
	done := ItemUpdated
	if release {
		done = ItemRemoved
	}

	err := m.uow.Atomic(ctx, func(ctx context.Context, tx finance.Store) error {
		entry, err := tx.Ledger().FindByContractAndMonth(ctx, contractID, month)
		if err != nil {
			return storeErr("find ledger entry", err)
		}
		item.RecordID = entry.ID
		if !entry.IsPending() {
			item.Status = ItemSkipped
			return nil
		}
		if release {
			if err := tx.Ledger().Delete(ctx, entry.ID); err != nil {
				return storeErr("delete ledger entry", err)
			}
		} else {
			if err := entry.Cancel(); err != nil {
				return err
			}
			if err := tx.Ledger().SaveWithLock(ctx, entry); err != nil {
				return storeErr("save ledger entry", err)
			}
		}

		commission, err := tx.Commissions().FindByContractAndMonth(ctx, contractID, month)
		if isNotFound(err) {
			item.Status = done
			return nil
		}
		if err != nil {
			return storeErr("find contract commission", err)
		}
		if commission.IsPaid() {
			item.Status = done
			return nil
		}
		payable, err := tx.Transactions().FindByCommission(ctx, commission.ID)
		switch {
		case err == nil:
			if payable.Status == finance.TransactionStatusConfirmed {
				item.Status = done
				return nil
			}
			if err := tx.Transactions().Delete(ctx, payable.ID); err != nil {
				return storeErr("delete commission payable", err)
			}
		case !isNotFound(err):
			return storeErr("find commission payable", err)
		}
		if err := tx.Commissions().Delete(ctx, commission.ID); err != nil {
			return storeErr("delete commission", err)
		}
		item.Status = done
		return nil
	})
	if err != nil {
		item.Status = ItemFailed
		item.Err = err
	}
	return item
}

// MaterializeSingleContract writes the installment receivables of a single
// contract and its commission. Installments already present are kept.
func (m *Materializer) MaterializeSingleContract(ctx context.Context, contractID uuid.UUID) (*BatchResult, error) {
	batch := newBatch(OpMaterializeSingleContract)

	contract, err := m.uow.Contracts().FindByID(ctx, contractID)
	if err != nil {
		return batch, storeErr("find contract", err)
	}
	if contract.IsRecurring() {
		return batch, shared.NewValidationError(fmt.Sprintf("Contract %s is recurring", contract.ID))
	}
	if !contract.IsActive() {
		return batch, shared.NewInvalidStateError(fmt.Sprintf("Contract %s is %s", contract.ID, contract.Status))
	}
	installments, err := finance.ComputeInstallments(contract.TotalValue, contract.InstallmentCount, contract.StartDate)
	if err != nil {
		return batch, err
	}

	filter := finance.TransactionFilter{Kind: finance.TransactionKindIncome, ContractID: &contract.ID}
	err = m.uow.Atomic(ctx, func(ctx context.Context, tx finance.Store) error {
		items, err := writeInstallments(ctx, tx, filter, installments, func(inst finance.Installment) finance.TransactionParams {
			return finance.TransactionParams{
				OwnerUserID:      contract.OwnerUserID,
				LinkedContractID: &contract.ID,
				Description:      fmt.Sprintf("%s - Parcela %d/%d", contractLabel(contract), inst.Index, len(installments)),
			}
		})
		if err != nil {
			return err
		}
		for _, it := range items {
			it.ContractID = contract.ID
			batch.Add(it)
		}

		commission, status, err := m.attributor.attributeContractMonth(ctx, tx, contract, contract.StartMonth(), contract.TotalValue, nil)
		if err != nil {
			return err
		}
		if commission != nil {
			batch.Add(ItemResult{ContractID: contract.ID, RecordID: commission.ID, Status: status})
		}
		return nil
	})
	if err != nil {
		batch = newBatch(OpMaterializeSingleContract)
		batch.Add(ItemResult{ContractID: contract.ID, Status: ItemFailed, Err: err})
	}

	m.notifier.Notify(ctx, NotificationFrom(batch))
	return batch, nil
}

// MaterializeSale writes the installment receivables of a closed sale and
// attributes its commission. Installments already present are kept.
func (m *Materializer) MaterializeSale(ctx context.Context, saleID uuid.UUID) (*BatchResult, error) {
	batch := newBatch(OpMaterializeSale)

	sale, err := m.uow.Sales().FindByID(ctx, saleID)
	if err != nil {
		return batch, storeErr("find sale", err)
	}
	if !sale.IsClosed() {
		return batch, shared.NewValidationError(fmt.Sprintf("Sale %s is %s; only closed sales are billed", sale.ID, sale.Status))
	}
	installments, err := finance.ComputeInstallments(sale.Value, sale.InstallmentCount, sale.SaleDate)
	if err != nil {
		return batch, err
	}

	filter := finance.TransactionFilter{Kind: finance.TransactionKindIncome, SaleID: &sale.ID}
	err = m.uow.Atomic(ctx, func(ctx context.Context, tx finance.Store) error {
		items, err := writeInstallments(ctx, tx, filter, installments, func(inst finance.Installment) finance.TransactionParams {
			label := sale.Description
			if label == "" {
				label = "Venda " + sale.ID.String()[:8]
			}
			return finance.TransactionParams{
				OwnerUserID:  sale.OwnerUserID,
				LinkedSaleID: &sale.ID,
				Description:  fmt.Sprintf("%s - Parcela %d/%d", label, inst.Index, len(installments)),
			}
		})
		if err != nil {
			return err
		}
		for _, it := range items {
			batch.Add(it)
		}

		if !sale.HasSeller() {
			return nil
		}
		commission, status, err := m.attributor.attributeSale(ctx, tx, sale)
		if err != nil {
			return err
		}
		if commission != nil {
			batch.Add(ItemResult{RecordID: commission.ID, Status: status})
		}
		return nil
	})
	if err != nil {
		batch = newBatch(OpMaterializeSale)
		batch.Add(ItemResult{RecordID: sale.ID, Status: ItemFailed, Err: err})
	}

	m.notifier.Notify(ctx, NotificationFrom(batch))
	return batch, nil
}

// writeInstallments creates the receivables of installments missing from
// the records matched by filter, keyed by installment index
func writeInstallments(
	ctx context.Context,
	tx finance.Store,
	filter finance.TransactionFilter,
	installments []finance.Installment,
	params func(finance.Installment) finance.TransactionParams,
) ([]ItemResult, error) {
	existing, err := tx.Transactions().FindAll(ctx, filter)
	if err != nil {
		return nil, storeErr("list installment receivables", err)
	}
	have := make(map[int]uuid.UUID, len(existing))
	for _, t := range existing {
		if t.ReferenceMonth == nil && t.LinkedCommissionID == nil {
			have[t.InstallmentIndex] = t.ID
		}
	}

	items := make([]ItemResult, 0, len(installments))
	for _, inst := range installments {
		if id, ok := have[inst.Index]; ok {
			items = append(items, ItemResult{RecordID: id, Status: ItemSkipped})
			continue
		}
		p := params(inst)
		due := inst.DueDate
		p.Kind = finance.TransactionKindIncome
		p.Amount = inst.Amount
		p.TransactionDate = due
		p.DueDate = &due
		p.InstallmentCount = len(installments)
		p.InstallmentIndex = inst.Index
		receivable, err := finance.NewFinancialTransaction(p)
		if err != nil {
			return nil, err
		}
		if err := tx.Transactions().Create(ctx, receivable); err != nil {
			return nil, storeErr("create installment receivable", err)
		}
		items = append(items, ItemResult{RecordID: receivable.ID, Status: ItemCreated})
	}
	return items, nil
}
