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

// CommissionAttributor computes seller commissions for sales and contract
// months and keeps every commission mirrored by an expense payable
type CommissionAttributor struct {
	uow      finance.UnitOfWork
	profiles finance.SellerProfileLookup
	notifier Notifier
	settings Settings
	logger   *zap.Logger
}

// NewCommissionAttributor creates a new CommissionAttributor
func NewCommissionAttributor(
	uow finance.UnitOfWork,
	profiles finance.SellerProfileLookup,
	notifier Notifier,
	settings Settings,
	logger *zap.Logger,
) *CommissionAttributor {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &CommissionAttributor{
		uow:      uow,
		profiles: profiles,
		notifier: notifier,
		settings: settings.withDefaults(),
		logger:   logger,
	}
}

// AttributeForSale creates the commission of a closed sale and its payable.
// An existing commission for the sale is returned unchanged. A seller whose
// rate is zero earns nothing and the result is nil.
func (a *CommissionAttributor) AttributeForSale(ctx context.Context, saleID uuid.UUID) (*finance.Commission, error) {
	sale, err := a.uow.Sales().FindByID(ctx, saleID)
	if err != nil {
		return nil, storeErr("find sale", err)
	}
	if !sale.IsClosed() {
		return nil, shared.NewValidationError(fmt.Sprintf("Sale %s is %s; only closed sales earn commission", sale.ID, sale.Status))
	}
	if !sale.HasSeller() {
		return nil, shared.NewValidationError(fmt.Sprintf("Sale %s has no seller", sale.ID))
	}

	var commission *finance.Commission
	err = a.uow.Atomic(ctx, func(ctx context.Context, tx finance.Store) error {
		c, _, err := a.attributeSale(ctx, tx, sale)
		commission = c
		return err
	})
	if errors.Is(err, shared.ErrConflict) {
		// a concurrent attribution won; return its commission
		existing, findErr := a.uow.Commissions().FindBySale(ctx, sale.ID)
		if findErr != nil {
			return nil, storeErr("find sale commission", findErr)
		}
		return existing, nil
	}
	if err != nil {
		a.logger.Error("failed to attribute sale commission",
			zap.String("sale_id", sale.ID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return commission, nil
}

func (a *CommissionAttributor) attributeSale(ctx context.Context, tx finance.Store, sale *trade.Sale) (*finance.Commission, ItemStatus, error) {
	existing, err := tx.Commissions().FindBySale(ctx, sale.ID)
	if err == nil {
		return existing, ItemSkipped, nil
	}
	if !isNotFound(err) {
		return nil, ItemFailed, storeErr("find sale commission", err)
	}

	rate, err := a.saleRate(ctx, *sale.SellerID)
	if err != nil {
		return nil, ItemFailed, err
	}
	if !rate.IsPositive() {
		a.logger.Debug("seller has no sale commission rate, skipping",
			zap.String("sale_id", sale.ID.String()),
			zap.String("seller_id", sale.SellerID.String()),
		)
		return nil, ItemSkipped, nil
	}

	commission, err := finance.NewSaleCommission(*sale.SellerID, sale.ID, sale.SaleDate, rate, sale.Value)
	if err != nil {
		return nil, ItemFailed, err
	}
	if err := tx.Commissions().Create(ctx, commission); err != nil {
		return nil, ItemFailed, storeErr("create sale commission", err)
	}
	payable, err := finance.NewCommissionPayable(commission, sale.OwnerUserID, sale.SaleDate, saleCommissionDescription(sale))
	if err != nil {
		return nil, ItemFailed, err
	}
	if err := tx.Transactions().Create(ctx, payable); err != nil {
		return nil, ItemFailed, storeErr("create commission payable", err)
	}

	a.logger.Info("sale commission attributed",
		zap.String("sale_id", sale.ID.String()),
		zap.String("commission_id", commission.ID.String()),
		zap.String("commission_value", commission.CommissionValue.String()),
	)
	return commission, ItemCreated, nil
}

// AttributeForContractMonth makes sure the contract month has its
// commission and payable, writing through store. It is meant to run inside
// a caller's unit of work. The result is nil when the contract has no
// seller or the seller's rate is zero.
func (a *CommissionAttributor) AttributeForContractMonth(
	ctx context.Context,
	store finance.Store,
	contract *trade.Contract,
	targetMonth time.Time,
	monthlyValue decimal.Decimal,
) (*finance.Commission, error) {
	c, _, err := a.attributeContractMonth(ctx, store, contract, valueobject.MonthStart(targetMonth), monthlyValue, nil)
	return c, err
}

func (a *CommissionAttributor) attributeContractMonth(
	ctx context.Context,
	tx finance.Store,
	contract *trade.Contract,
	month time.Time,
	base decimal.Decimal,
	profiles map[uuid.UUID]finance.SellerProfile,
) (*finance.Commission, ItemStatus, error) {
	if !contract.HasSeller() {
		return nil, ItemSkipped, nil
	}

	existing, err := tx.Commissions().FindByContractAndMonth(ctx, contract.ID, month)
	if err == nil {
		status, err := a.reconcileContractCommission(ctx, tx, contract, existing, base)
		return existing, status, err
	}
	if !isNotFound(err) {
		return nil, ItemFailed, storeErr("find contract commission", err)
	}

	rate, err := a.contractRate(ctx, contract, profiles)
	if err != nil {
		return nil, ItemFailed, err
	}
	if !rate.IsPositive() {
		return nil, ItemSkipped, nil
	}

	commission, err := finance.NewContractCommission(*contract.SellerID, contract.ID, month, rate, base)
	if err != nil {
		return nil, ItemFailed, err
	}
	if err := tx.Commissions().Create(ctx, commission); err != nil {
		return nil, ItemFailed, storeErr("create contract commission", err)
	}
	payable, err := finance.NewCommissionPayable(commission, contract.OwnerUserID,
		contractDueDate(contract, month), contractCommissionDescription(contract, month))
	if err != nil {
		return nil, ItemFailed, err
	}
	if err := tx.Transactions().Create(ctx, payable); err != nil {
		return nil, ItemFailed, storeErr("create commission payable", err)
	}
	return commission, ItemCreated, nil
}

// reconcileContractCommission rebases a pending commission whose base
// drifted and restores a missing payable
func (a *CommissionAttributor) reconcileContractCommission(
	ctx context.Context,
	tx finance.Store,
	contract *trade.Contract,
	c *finance.Commission,
	base decimal.Decimal,
) (ItemStatus, error) {
	status := ItemSkipped
	if !c.IsPaid() && !c.BaseValue.Equal(base.Round(valueobject.MinorUnitPlaces)) {
		if err := c.Rebase(base); err != nil {
			return ItemFailed, err
		}
		if err := tx.Commissions().Save(ctx, c); err != nil {
			return ItemFailed, storeErr("save commission", err)
		}
		status = ItemUpdated
	}

	payable, err := tx.Transactions().FindByCommission(ctx, c.ID)
	switch {
	case isNotFound(err):
		payable, err = finance.NewCommissionPayable(c, contract.OwnerUserID,
			contractDueDate(contract, c.ReferenceMonth), contractCommissionDescription(contract, c.ReferenceMonth))
		if err != nil {
			return ItemFailed, err
		}
		if err := tx.Transactions().Create(ctx, payable); err != nil {
			return ItemFailed, storeErr("create commission payable", err)
		}
		return ItemUpdated, nil
	case err != nil:
		return ItemFailed, storeErr("find commission payable", err)
	}

	if status == ItemUpdated && payable.Status == finance.TransactionStatusPending && !payable.Amount.Equal(c.CommissionValue) {
		if err := payable.SetAmount(c.CommissionValue); err != nil {
			return ItemFailed, err
		}
		if err := tx.Transactions().Save(ctx, payable); err != nil {
			return ItemFailed, storeErr("save commission payable", err)
		}
	}
	return status, nil
}

// GenerateFutureContractCommissions backfills commissions for upcoming
// months of one contract, or of every active recurring contract with a
// seller when contractID is nil. Each month registers a pending ledger entry
// so the materializer later reuses the commission.
func (a *CommissionAttributor) GenerateFutureContractCommissions(ctx context.Context, contractID *uuid.UUID) (*BatchResult, error) {
	batch := newBatch(OpGenerateFutureCommissions)

	contracts, err := a.futureTargets(ctx, contractID)
	if err != nil {
		return batch, err
	}
	profiles, err := a.profiles.GetProfiles(ctx, contractSellerIDs(contracts))
	if err != nil {
		return batch, storeErr("load seller profiles", err)
	}

	current := valueobject.MonthStart(a.settings.now())
	for i := range contracts {
		contract := &contracts[i]
		for _, month := range a.futureMonths(contract, current) {
			if err := ctx.Err(); err != nil {
				a.notifier.Notify(ctx, NotificationFrom(batch))
				return batch, err
			}
			batch.Add(a.generateMonth(ctx, contract, month, profiles))
		}
	}

	a.logger.Info("future contract commissions generated",
		zap.Int("contracts", len(contracts)),
		zap.Int("created", batch.Count(ItemCreated)),
		zap.Int("failed", batch.Count(ItemFailed)),
	)
	a.notifier.Notify(ctx, NotificationFrom(batch))
	return batch, nil
}

func (a *CommissionAttributor) futureTargets(ctx context.Context, contractID *uuid.UUID) ([]trade.Contract, error) {
	if contractID == nil {
		contracts, err := a.uow.Contracts().FindAll(ctx, trade.ContractFilter{
			Type:          trade.ContractTypeRecurring,
			Status:        trade.ContractStatusActive,
			RequireSeller: true,
		})
		if err != nil {
			return nil, storeErr("list recurring contracts", err)
		}
		return contracts, nil
	}

	contract, err := a.uow.Contracts().FindByID(ctx, *contractID)
	if err != nil {
		return nil, storeErr("find contract", err)
	}
	if !contract.IsRecurring() {
		return nil, shared.NewValidationError(fmt.Sprintf("Contract %s is not recurring", contract.ID))
	}
	if !contract.HasSeller() {
		return nil, shared.NewValidationError(fmt.Sprintf("Contract %s has no seller", contract.ID))
	}
	if !contract.IsActive() {
		return nil, shared.NewInvalidStateError(fmt.Sprintf("Contract %s is %s", contract.ID, contract.Status))
	}
	return []trade.Contract{*contract}, nil
}

// futureMonths runs from the later of the current and start months to the
// end month, or to the horizon for open-ended contracts
func (a *CommissionAttributor) futureMonths(contract *trade.Contract, current time.Time) []time.Time {
	from := current
	if start := contract.StartMonth(); start.After(from) {
		from = start
	}
	to, bounded := contract.EndMonth()
	if !bounded {
		to = current.AddDate(0, a.settings.CommissionHorizonMonths-1, 0)
	}
	return valueobject.MonthRange(from, to)
}

func (a *CommissionAttributor) generateMonth(
	ctx context.Context,
	contract *trade.Contract,
	month time.Time,
	profiles map[uuid.UUID]finance.SellerProfile,
) ItemResult {
	item := ItemResult{ContractID: contract.ID, Month: monthPtr(month)}

	err := a.uow.Atomic(ctx, func(ctx context.Context, tx finance.Store) error {
		entry, err := tx.Ledger().FindByContractAndMonth(ctx, contract.ID, month)
		switch {
		case isNotFound(err):
			entry, err = finance.NewLedgerEntry(contract.ID, month, contract.MonthlyValue())
			if err != nil {
				return err
			}
			if err := tx.Ledger().Create(ctx, entry); err != nil {
				return storeErr("create ledger entry", err)
			}
		case err != nil:
			return storeErr("find ledger entry", err)
		case entry.Status == finance.LedgerStatusCancelled:
			item.Status = ItemSkipped
			item.RecordID = entry.ID
			return nil
		case entry.IsPending() && !entry.MatchesValue(contract.MonthlyValue()):
			if err := entry.Revalue(contract.MonthlyValue()); err != nil {
				return err
			}
			if err := tx.Ledger().SaveWithLock(ctx, entry); err != nil {
				return storeErr("save ledger entry", err)
			}
		}

		commission, status, err := a.attributeContractMonth(ctx, tx, contract, month, entry.MonthlyValue, profiles)
		if err != nil {
			return err
		}
		item.Status = status
		if commission != nil {
			item.RecordID = commission.ID
		}
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, shared.ErrConflict):
		// a concurrent writer registered the month first
		item.Status = ItemSkipped
		item.RecordID = uuid.Nil
	default:
		item.Status = ItemFailed
		item.RecordID = uuid.Nil
		item.Err = err
		a.logger.Warn("failed to generate contract commission",
			zap.String("contract_id", contract.ID.String()),
			zap.Time("reference_month", month),
			zap.Error(err),
		)
	}
	return item
}

// SyncAllCommissionsToFinancial creates the missing payable of every commission
func (a *CommissionAttributor) SyncAllCommissionsToFinancial(ctx context.Context) (*BatchResult, error) {
	return a.syncCommissions(ctx, nil)
}

// SyncCommissionsToFinancial creates the missing payables of one seller's commissions
func (a *CommissionAttributor) SyncCommissionsToFinancial(ctx context.Context, userID uuid.UUID) (*BatchResult, error) {
	if userID == uuid.Nil {
		return newBatch(OpSyncCommissionsToFinancial), shared.NewValidationError("User ID cannot be empty")
	}
	return a.syncCommissions(ctx, &userID)
}

func (a *CommissionAttributor) syncCommissions(ctx context.Context, sellerID *uuid.UUID) (*BatchResult, error) {
	batch := newBatch(OpSyncCommissionsToFinancial)

	commissions, err := a.uow.Commissions().FindAll(ctx, finance.CommissionFilter{SellerID: sellerID, Unmirrored: true})
	if err != nil {
		return batch, storeErr("list unmirrored commissions", err)
	}

	for i := range commissions {
		if err := ctx.Err(); err != nil {
			a.notifier.Notify(ctx, NotificationFrom(batch))
			return batch, err
		}
		batch.Add(a.syncCommission(ctx, &commissions[i]))
	}

	a.logger.Info("commissions synced to financial",
		zap.Int("candidates", len(commissions)),
		zap.Int("created", batch.Count(ItemCreated)),
		zap.Int("failed", batch.Count(ItemFailed)),
	)
	a.notifier.Notify(ctx, NotificationFrom(batch))
	return batch, nil
}

func (a *CommissionAttributor) syncCommission(ctx context.Context, c *finance.Commission) ItemResult {
	item := ItemResult{RecordID: c.ID, Month: monthPtr(c.ReferenceMonth)}
	if c.ContractID != nil {
		item.ContractID = *c.ContractID
	}

	err := a.uow.Atomic(ctx, func(ctx context.Context, tx finance.Store) error {
		_, err := tx.Transactions().FindByCommission(ctx, c.ID)
		if err == nil {
			item.Status = ItemSkipped
			return nil
		}
		if !isNotFound(err) {
			return storeErr("find commission payable", err)
		}

		owner, due, description, err := payableTermsFrom(ctx, tx, c)
		if err != nil {
			return err
		}
		payable, err := finance.NewCommissionPayable(c, owner, due, description)
		if err != nil {
			return err
		}
		if err := tx.Transactions().Create(ctx, payable); err != nil {
			return storeErr("create commission payable", err)
		}
		item.Status = ItemCreated
		item.RecordID = payable.ID
		return nil
	})
	if err != nil {
		item.Status = ItemFailed
		item.Err = err
		a.logger.Warn("failed to sync commission payable",
			zap.String("commission_id", c.ID.String()),
			zap.Error(err),
		)
	}
	return item
}

// payableTermsFrom resolves owner, due date and description of a
// commission payable from its source record, falling back to the seller
// when the source is gone
func payableTermsFrom(ctx context.Context, tx finance.Store, c *finance.Commission) (uuid.UUID, time.Time, string, error) {
	switch {
	case c.ContractID != nil:
		contract, err := tx.Contracts().FindByID(ctx, *c.ContractID)
		if err == nil {
			return contract.OwnerUserID, contractDueDate(contract, c.ReferenceMonth),
				contractCommissionDescription(contract, c.ReferenceMonth), nil
		}
		if !isNotFound(err) {
			return uuid.Nil, time.Time{}, "", storeErr("find contract", err)
		}
	case c.SaleID != nil:
		sale, err := tx.Sales().FindByID(ctx, *c.SaleID)
		if err == nil {
			return sale.OwnerUserID, sale.SaleDate, saleCommissionDescription(sale), nil
		}
		if !isNotFound(err) {
			return uuid.Nil, time.Time{}, "", storeErr("find sale", err)
		}
	}
	return c.SellerID, c.ReferenceMonth, fmt.Sprintf("Comissão (%s)", c.ReferenceMonth.Format("01/2006")), nil
}

func (a *CommissionAttributor) saleRate(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, error) {
	profile, err := a.profiles.GetProfile(ctx, sellerID)
	if isNotFound(err) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, storeErr("find seller profile", err)
	}
	return profile.CommissionPercentage, nil
}

// contractRate prefers the contract override over the seller profile.
// profiles, when given, is a preloaded batch and no lookup is made.
func (a *CommissionAttributor) contractRate(ctx context.Context, contract *trade.Contract, profiles map[uuid.UUID]finance.SellerProfile) (decimal.Decimal, error) {
	if contract.CommissionPercentage != nil {
		return *contract.CommissionPercentage, nil
	}
	if profiles != nil {
		return profiles[*contract.SellerID].ContractCommissionPercentage, nil
	}
	profile, err := a.profiles.GetProfile(ctx, *contract.SellerID)
	if isNotFound(err) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, storeErr("find seller profile", err)
	}
	return profile.ContractCommissionPercentage, nil
}

func contractSellerIDs(contracts []trade.Contract) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(contracts))
	ids := make([]uuid.UUID, 0, len(contracts))
	for _, c := range contracts {
		if !c.HasSeller() {
			continue
		}
		if _, ok := seen[*c.SellerID]; ok {
			continue
		}
		seen[*c.SellerID] = struct{}{}
		ids = append(ids, *c.SellerID)
	}
	return ids
}

// contractDueDate is the due date of a contract month: the due day for
// recurring contracts, the start day otherwise
func contractDueDate(contract *trade.Contract, month time.Time) time.Time {
	day := contract.DueDay
	if !contract.IsRecurring() || day == 0 {
		day = contract.StartDate.Day()
	}
	return valueobject.DueDateInMonth(month, day)
}

func contractLabel(contract *trade.Contract) string {
	if contract.Description != "" {
		return contract.Description
	}
	return "Contrato " + contract.ID.String()[:8]
}

func contractCommissionDescription(contract *trade.Contract, month time.Time) string {
	return fmt.Sprintf("Comissão - %s (%s)", contractLabel(contract), month.Format("01/2006"))
}

func saleCommissionDescription(sale *trade.Sale) string {
	if sale.Description != "" {
		return "Comissão - " + sale.Description
	}
	return "Comissão - Venda " + sale.ID.String()[:8]
}
