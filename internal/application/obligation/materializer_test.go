package obligation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agency/backend/internal/domain/finance"
	"github.com/agency/backend/internal/domain/shared"
	"github.com/agency/backend/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterializer_MaterializeRange(t *testing.T) {
	ctx := context.Background()

	t.Run("materializes every month with receivable and commission", func(t *testing.T) {
		f := newFixture(t)
		contract := f.recurring(t, day(2024, 1, 5), ptrTime(day(2024, 3, 20)), "500", 10)

		batch, err := f.engine.MaterializeRange(ctx, contract.ID, day(2024, 1, 1), day(2024, 3, 1))
		require.NoError(t, err)
		assert.Equal(t, 3, batch.Count(ItemCreated))
		assert.Equal(t, OutcomeSuccess, batch.Outcome())

		entries := f.store.ledgerOf(contract.ID)
		require.Len(t, entries, 3)
		for i, e := range entries {
			assert.Equal(t, day(2024, time.Month(i+1), 1), e.ReferenceMonth)
			assert.Equal(t, finance.LedgerStatusProcessed, e.Status)
			assert.Equal(t, testNow, *e.ProcessedAt)
		}

		receivables := f.receivablesOf(contract.ID)
		require.Len(t, receivables, 3)
		for i, r := range receivables {
			month := time.Month(i + 1)
			assert.Equal(t, "500.00", r.Amount.StringFixed(2))
			assert.Equal(t, day(2024, month, 10), *r.DueDate)
			assert.Equal(t, day(2024, month, 1), *r.ReferenceMonth)
			assert.Equal(t, finance.TransactionStatusPending, r.Status)
			assert.Equal(t, f.owner, r.OwnerUserID)
		}
		assert.Equal(t, "Gestão de tráfego - Parcela 1/3", receivables[0].Description)
		assert.Equal(t, "Gestão de tráfego - Parcela 3/3", receivables[2].Description)

		commissions := f.store.allCommissions()
		require.Len(t, commissions, 3)
		for _, c := range commissions {
			assert.Equal(t, "50.00", c.CommissionValue.StringFixed(2))
			assert.Equal(t, f.seller, c.SellerID)
			assert.Equal(t, finance.CommissionStatusPending, c.Status)
		}
		payables := f.payables()
		require.Len(t, payables, 3)
		assert.Equal(t, "50.00", payables[0].Amount.StringFixed(2))
		assert.Equal(t, day(2024, 1, 10), *payables[0].DueDate)

		n := f.notifier.last()
		assert.Equal(t, OpMaterializeRange, n.Operation)
		assert.Equal(t, OutcomeSuccess, n.Outcome)
		assert.Equal(t, 3, n.ItemsAffected)
	})

	t.Run("re-running is a no-op", func(t *testing.T) {
		f := newFixture(t)
		contract := f.recurring(t, day(2024, 1, 5), ptrTime(day(2024, 3, 20)), "500", 10)

		_, err := f.engine.MaterializeRange(ctx, contract.ID, day(2024, 1, 1), day(2024, 3, 1))
		require.NoError(t, err)
		batch, err := f.engine.MaterializeRange(ctx, contract.ID, day(2024, 1, 1), day(2024, 3, 1))
		require.NoError(t, err)

		assert.Equal(t, 3, batch.Count(ItemSkipped))
		assert.Zero(t, batch.Affected())
		assert.Len(t, f.store.ledgerOf(contract.ID), 3)
		assert.Len(t, f.receivablesOf(contract.ID), 3)
		assert.Len(t, f.store.allCommissions(), 3)
		assert.Len(t, f.payables(), 3)
	})

	t.Run("clips the range to the contract", func(t *testing.T) {
		f := newFixture(t)
		contract := f.recurring(t, day(2024, 1, 5), ptrTime(day(2024, 3, 20)), "500", 10)

		batch, err := f.engine.MaterializeRange(ctx, contract.ID, day(2023, 11, 1), day(2024, 6, 1))
		require.NoError(t, err)
		assert.Len(t, batch.Items, 3)
	})

	t.Run("rejects a reversed range", func(t *testing.T) {
		f := newFixture(t)
		contract := f.recurring(t, day(2024, 1, 5), nil, "500", 10)

		_, err := f.engine.MaterializeRange(ctx, contract.ID, day(2024, 3, 1), day(2024, 1, 1))
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("rejects single and inactive contracts", func(t *testing.T) {
		f := newFixture(t)
		single := f.contract(t, trade.ContractParams{
			StartDate:    day(2024, 1, 5),
			ContractType: trade.ContractTypeSingle,
			TotalValue:   dec("900"),
		})
		_, err := f.engine.MaterializeRange(ctx, single.ID, day(2024, 1, 1), day(2024, 1, 1))
		assert.True(t, errors.Is(err, shared.ErrValidation))

		suspended := f.recurring(t, day(2024, 1, 5), nil, "500", 10)
		require.NoError(t, suspended.ChangeStatus(trade.ContractStatusSuspended))
		f.store.putContract(suspended)
		_, err = f.engine.MaterializeRange(ctx, suspended.ID, day(2024, 1, 1), day(2024, 1, 1))
		assert.True(t, errors.Is(err, shared.ErrInvalidState))

		_, err = f.engine.MaterializeRange(ctx, uuid.New(), day(2024, 1, 1), day(2024, 1, 1))
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("a cancelled month is not resurrected", func(t *testing.T) {
		f := newFixture(t)
		contract := f.recurring(t, day(2024, 1, 5), ptrTime(day(2024, 3, 20)), "500", 10)
		cancelled, err := finance.NewLedgerEntry(contract.ID, day(2024, 2, 1), dec("500"))
		require.NoError(t, err)
		require.NoError(t, cancelled.Cancel())
		f.store.putLedger(cancelled)

		batch, err := f.engine.MaterializeRange(ctx, contract.ID, day(2024, 1, 1), day(2024, 3, 1))
		require.NoError(t, err)
		assert.Equal(t, 2, batch.Count(ItemCreated))
		assert.Equal(t, 1, batch.Count(ItemSkipped))

		for _, r := range f.receivablesOf(contract.ID) {
			assert.NotEqual(t, day(2024, 2, 1), *r.ReferenceMonth)
		}
	})

	t.Run("month failure rolls back and is retried cleanly", func(t *testing.T) {
		f := newFixture(t)
		contract := f.recurring(t, day(2024, 1, 5), ptrTime(day(2024, 3, 20)), "500", 10)
		f.store.faults["commissions.Create"] = errors.New("connection reset")

		batch, err := f.engine.MaterializeRange(ctx, contract.ID, day(2024, 1, 1), day(2024, 3, 1))
		require.NoError(t, err)
		assert.Equal(t, OutcomeFailure, batch.Outcome())
		assert.True(t, errors.Is(batch.Err(), shared.ErrPartialBatch))
		assert.True(t, errors.Is(batch.Items[0].Err, shared.ErrTransientStore))
		assert.Empty(t, f.store.ledgerOf(contract.ID))
		assert.Empty(t, f.receivablesOf(contract.ID))
		assert.Equal(t, OutcomeFailure, f.notifier.last().Outcome)

		delete(f.store.faults, "commissions.Create")
		batch, err = f.engine.MaterializeRange(ctx, contract.ID, day(2024, 1, 1), day(2024, 3, 1))
		require.NoError(t, err)
		assert.Equal(t, 3, batch.Count(ItemCreated))
	})

	t.Run("partial failure keeps the months that succeeded", func(t *testing.T) {
		f := newFixture(t)
		contract := f.recurring(t, day(2024, 1, 5), ptrTime(day(2024, 3, 20)), "500", 10)
		_, err := f.engine.MaterializeRange(ctx, contract.ID, day(2024, 1, 1), day(2024, 1, 1))
		require.NoError(t, err)
		f.store.faults["ledger.Create"] = errors.New("disk full")

		batch, err := f.engine.MaterializeRange(ctx, contract.ID, day(2024, 1, 1), day(2024, 3, 1))
		require.NoError(t, err)
		assert.Equal(t, OutcomePartial, batch.Outcome())
		assert.Equal(t, 1, batch.Count(ItemSkipped))
		assert.Equal(t, 2, batch.Count(ItemFailed))
		assert.Len(t, f.receivablesOf(contract.ID), 1)
	})
}

func TestMaterializer_MaterializeMonth(t *testing.T) {
	ctx := context.Background()

	t.Run("outside the contract range", func(t *testing.T) {
		f := newFixture(t)
		contract := f.recurring(t, day(2024, 1, 5), ptrTime(day(2024, 3, 20)), "500", 10)

		_, err := f.engine.Materializer.MaterializeMonth(ctx, contract.ID, day(2024, 4, 1))
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("due day is clamped to the month length", func(t *testing.T) {
		f := newFixture(t)
		contract := f.recurring(t, day(2024, 1, 31), nil, "500", 31)

		outcome, err := f.engine.Materializer.MaterializeMonth(ctx, contract.ID, day(2024, 2, 14))
		require.NoError(t, err)
		assert.Equal(t, ItemCreated, outcome.Status)
		assert.Equal(t, day(2024, 2, 1), outcome.Month)

		receivables := f.receivablesOf(contract.ID)
		require.Len(t, receivables, 1)
		assert.Equal(t, day(2024, 2, 29), *receivables[0].DueDate)
		assert.Equal(t, "Gestão de tráfego - Parcela mês 2", receivables[0].Description)
	})

	t.Run("seller without rate gets no commission", func(t *testing.T) {
		f := newFixture(t)
		contract := f.contract(t, trade.ContractParams{
			SellerID:     ptrUUID(uuid.New()),
			StartDate:    day(2024, 1, 5),
			ContractType: trade.ContractTypeRecurring,
			DueDay:       10,
			TotalValue:   dec("500"),
		})

		outcome, err := f.engine.Materializer.MaterializeMonth(ctx, contract.ID, day(2024, 1, 1))
		require.NoError(t, err)
		assert.NotNil(t, outcome.ReceivableID)
		assert.Nil(t, outcome.CommissionID)
		assert.Empty(t, f.store.allCommissions())
	})

	t.Run("contract override beats the seller profile", func(t *testing.T) {
		f := newFixture(t)
		override := dec("15")
		contract := f.contract(t, trade.ContractParams{
			SellerID:             ptrUUID(f.seller),
			StartDate:            day(2024, 1, 5),
			ContractType:         trade.ContractTypeRecurring,
			DueDay:               10,
			TotalValue:           dec("500"),
			CommissionPercentage: &override,
		})

		outcome, err := f.engine.Materializer.MaterializeMonth(ctx, contract.ID, day(2024, 1, 1))
		require.NoError(t, err)
		require.NotNil(t, outcome.CommissionID)
		c, ok := f.store.commission(*outcome.CommissionID)
		require.True(t, ok)
		assert.Equal(t, "75.00", c.CommissionValue.StringFixed(2))
	})

	t.Run("concurrent callers materialize the month once", func(t *testing.T) {
		f := newFixture(t)
		contract := f.recurring(t, day(2024, 1, 5), nil, "500", 10)

		const callers = 8
		var wg sync.WaitGroup
		outcomes := make([]*MonthOutcome, callers)
		errs := make([]error, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcomes[i], errs[i] = f.engine.Materializer.MaterializeMonth(ctx, contract.ID, day(2024, 1, 1))
			}(i)
		}
		wg.Wait()

		created := 0
		for i := range outcomes {
			require.NoError(t, errs[i])
			if outcomes[i].Status == ItemCreated {
				created++
			}
		}
		assert.Equal(t, 1, created)
		assert.Len(t, f.store.ledgerOf(contract.ID), 1)
		assert.Len(t, f.receivablesOf(contract.ID), 1)
		assert.Len(t, f.store.allCommissions(), 1)
		assert.Len(t, f.payables(), 1)
	})

	t.Run("concurrent winner with the same value is a skip", func(t *testing.T) {
		f := newFixture(t)
		contract := f.recurring(t, day(2024, 1, 5), nil, "500", 10)
		f.store.onAtomic = func() {
			winner, _ := finance.NewLedgerEntry(contract.ID, day(2024, 1, 1), dec("500"))
			_ = winner.MarkProcessed(testNow)
			f.store.putLedger(winner)
		}

		outcome, err := f.engine.Materializer.MaterializeMonth(ctx, contract.ID, day(2024, 1, 1))
		require.NoError(t, err)
		assert.Equal(t, ItemSkipped, outcome.Status)
		assert.Empty(t, f.receivablesOf(contract.ID))
	})

	t.Run("concurrent winner with another value is a conflict", func(t *testing.T) {
		f := newFixture(t)
		contract := f.recurring(t, day(2024, 1, 5), nil, "500", 10)
		f.store.onAtomic = func() {
			winner, _ := finance.NewLedgerEntry(contract.ID, day(2024, 1, 1), dec("450"))
			_ = winner.MarkProcessed(testNow)
			f.store.putLedger(winner)
		}

		_, err := f.engine.Materializer.MaterializeMonth(ctx, contract.ID, day(2024, 1, 1))
		assert.True(t, errors.Is(err, shared.ErrConflict))
		assert.Contains(t, err.Error(), "450.00")
	})

	t.Run("reuses a backfilled month and rebases a drifted commission", func(t *testing.T) {
		f := newFixture(t)
		contract := f.recurring(t, day(2024, 1, 5), ptrTime(day(2024, 3, 20)), "500", 10)
		backfill, err := f.engine.GenerateFutureContractCommissions(ctx, &contract.ID)
		require.NoError(t, err)
		require.Equal(t, 3, backfill.Count(ItemCreated))
		january := f.store.allCommissions()[0]

		contract.TotalValue = dec("600")
		f.store.putContract(contract)

		outcome, err := f.engine.Materializer.MaterializeMonth(ctx, contract.ID, day(2024, 1, 1))
		require.NoError(t, err)
		assert.Equal(t, ItemCreated, outcome.Status)
		require.NotNil(t, outcome.CommissionID)
		assert.Equal(t, january.ID, *outcome.CommissionID)

		entries := f.store.ledgerOf(contract.ID)
		require.Len(t, entries, 3)
		assert.Equal(t, finance.LedgerStatusProcessed, entries[0].Status)
		assert.Equal(t, "600.00", entries[0].MonthlyValue.StringFixed(2))

		rebased, _ := f.store.commission(january.ID)
		assert.Equal(t, "60.00", rebased.CommissionValue.StringFixed(2))
		assert.Len(t, f.store.allCommissions(), 3)

		payables := f.payables()
		require.Len(t, payables, 3)
		assert.Equal(t, "60.00", payables[0].Amount.StringFixed(2))
	})
}

func TestMaterializer_MaterializeDueMonths(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	open := f.recurring(t, day(2023, 6, 1), nil, "300", 5)
	bounded := f.recurring(t, day(2024, 1, 20), ptrTime(day(2024, 6, 20)), "700", 20)
	ended := f.recurring(t, day(2023, 1, 1), ptrTime(day(2024, 1, 31)), "100", 1)
	suspended := f.recurring(t, day(2023, 1, 1), nil, "100", 1)
	require.NoError(t, suspended.ChangeStatus(trade.ContractStatusSuspended))
	f.store.putContract(suspended)

	batch, err := f.engine.Materializer.MaterializeDueMonths(ctx, day(2024, 2, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Count(ItemCreated))
	assert.Len(t, f.receivablesOf(open.ID), 1)
	assert.Len(t, f.receivablesOf(bounded.ID), 1)
	assert.Empty(t, f.receivablesOf(ended.ID))
	assert.Empty(t, f.receivablesOf(suspended.ID))
	assert.Equal(t, OpMaterializeDueMonths, f.notifier.last().Operation)
}

func TestMaterializer_CancelPendingMonths(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	contract := f.recurring(t, day(2024, 1, 5), ptrTime(day(2024, 3, 20)), "500", 10)

	_, err := f.engine.GenerateFutureContractCommissions(ctx, &contract.ID)
	require.NoError(t, err)
	_, err = f.engine.Materializer.MaterializeMonth(ctx, contract.ID, day(2024, 1, 1))
	require.NoError(t, err)
	commissions := f.store.allCommissions()
	require.Len(t, commissions, 3)
	march := commissions[2]
	_, err = f.engine.MarkCommissionPaid(ctx, march.ID)
	require.NoError(t, err)

	batch, err := f.engine.Materializer.CancelPendingMonths(ctx, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Count(ItemUpdated))

	entries := f.store.ledgerOf(contract.ID)
	require.Len(t, entries, 3)
	assert.Equal(t, finance.LedgerStatusProcessed, entries[0].Status)
	assert.Equal(t, finance.LedgerStatusCancelled, entries[1].Status)
	assert.Equal(t, finance.LedgerStatusCancelled, entries[2].Status)

	remaining := f.store.allCommissions()
	require.Len(t, remaining, 2)
	assert.Equal(t, commissions[0].ID, remaining[0].ID)
	assert.Equal(t, march.ID, remaining[1].ID)
	assert.Len(t, f.payables(), 2)

	batch, err = f.engine.MaterializeRange(ctx, contract.ID, day(2024, 1, 1), day(2024, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Count(ItemSkipped))
	assert.Len(t, f.receivablesOf(contract.ID), 1)
}

func TestMaterializer_ReleasePendingMonths(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	contract := f.recurring(t, day(2024, 1, 5), ptrTime(day(2024, 3, 20)), "500", 10)

	_, err := f.engine.GenerateFutureContractCommissions(ctx, &contract.ID)
	require.NoError(t, err)
	_, err = f.engine.Materializer.MaterializeMonth(ctx, contract.ID, day(2024, 1, 1))
	require.NoError(t, err)
	commissions := f.store.allCommissions()
	require.Len(t, commissions, 3)
	march := commissions[2]
	_, err = f.engine.MarkCommissionPaid(ctx, march.ID)
	require.NoError(t, err)

	batch, err := f.engine.Materializer.ReleasePendingMonths(ctx, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Count(ItemRemoved))
	assert.Equal(t, OpReleasePendingMonths, batch.Operation)

	entries := f.store.ledgerOf(contract.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, finance.LedgerStatusProcessed, entries[0].Status)
	assert.Len(t, f.store.allCommissions(), 2)

	batch, err = f.engine.MaterializeRange(ctx, contract.ID, day(2024, 1, 1), day(2024, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Count(ItemCreated))
	assert.Len(t, f.receivablesOf(contract.ID), 3)
	assert.Len(t, f.store.allCommissions(), 3)
	paid, ok := f.store.commission(march.ID)
	require.True(t, ok)
	assert.True(t, paid.IsPaid())
}

func TestMaterializer_MaterializeSingleContract(t *testing.T) {
	ctx := context.Background()

	t.Run("splits the total into installments with one commission", func(t *testing.T) {
		f := newFixture(t)
		contract := f.contract(t, trade.ContractParams{
			SellerID:         ptrUUID(f.seller),
			StartDate:        day(2024, 1, 31),
			ContractType:     trade.ContractTypeSingle,
			TotalValue:       dec("1000"),
			InstallmentCount: 3,
			Description:      "Site institucional",
		})

		batch, err := f.engine.Materializer.MaterializeSingleContract(ctx, contract.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, batch.Count(ItemCreated))

		receivables := f.receivablesOf(contract.ID)
		require.Len(t, receivables, 3)
		assert.Equal(t, "333.34", receivables[0].Amount.StringFixed(2))
		assert.Equal(t, "333.33", receivables[1].Amount.StringFixed(2))
		assert.Equal(t, "333.33", receivables[2].Amount.StringFixed(2))
		assert.Equal(t, day(2024, 1, 31), *receivables[0].DueDate)
		assert.Equal(t, day(2024, 2, 29), *receivables[1].DueDate)
		assert.Equal(t, day(2024, 3, 31), *receivables[2].DueDate)
		assert.Equal(t, finance.PaymentMethodInstallment, receivables[0].PaymentMethod)
		assert.Equal(t, "Site institucional - Parcela 2/3", receivables[1].Description)

		commissions := f.store.allCommissions()
		require.Len(t, commissions, 1)
		assert.Equal(t, "100.00", commissions[0].CommissionValue.StringFixed(2))
		assert.Len(t, f.payables(), 1)

		batch, err = f.engine.Materializer.MaterializeSingleContract(ctx, contract.ID)
		require.NoError(t, err)
		assert.Zero(t, batch.Affected())
		assert.Len(t, f.receivablesOf(contract.ID), 3)
	})

	t.Run("rejects recurring contracts", func(t *testing.T) {
		f := newFixture(t)
		contract := f.recurring(t, day(2024, 1, 5), nil, "500", 10)

		_, err := f.engine.Materializer.MaterializeSingleContract(ctx, contract.ID)
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("failure writes nothing", func(t *testing.T) {
		f := newFixture(t)
		contract := f.contract(t, trade.ContractParams{
			SellerID:         ptrUUID(f.seller),
			StartDate:        day(2024, 1, 10),
			ContractType:     trade.ContractTypeSingle,
			TotalValue:       dec("1000"),
			InstallmentCount: 2,
		})
		f.store.faults["commissions.Create"] = errors.New("timeout")

		batch, err := f.engine.Materializer.MaterializeSingleContract(ctx, contract.ID)
		require.NoError(t, err)
		require.Len(t, batch.Items, 1)
		assert.Equal(t, ItemFailed, batch.Items[0].Status)
		assert.Empty(t, f.receivablesOf(contract.ID))
	})
}

func TestMaterializer_MaterializeSale(t *testing.T) {
	ctx := context.Background()

	t.Run("closed sale", func(t *testing.T) {
		f := newFixture(t)
		sale := f.sale(t, trade.SaleParams{
			SellerID:         ptrUUID(f.seller),
			Value:            dec("1000"),
			Status:           trade.SaleStatusClosed,
			SaleDate:         day(2024, 1, 10),
			InstallmentCount: 2,
		})

		batch, err := f.engine.Materializer.MaterializeSale(ctx, sale.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, batch.Count(ItemCreated))

		receivables := f.store.transactionsWhere(func(t finance.FinancialTransaction) bool {
			return t.IsReceivable() && t.LinkedSaleID != nil && *t.LinkedSaleID == sale.ID
		})
		require.Len(t, receivables, 2)
		assert.Equal(t, "500.00", receivables[0].Amount.StringFixed(2))
		assert.Equal(t, day(2024, 2, 10), *receivables[1].DueDate)

		commissions := f.store.allCommissions()
		require.Len(t, commissions, 1)
		assert.Equal(t, "50.00", commissions[0].CommissionValue.StringFixed(2))
		assert.Equal(t, sale.ID, *commissions[0].SaleID)

		batch, err = f.engine.Materializer.MaterializeSale(ctx, sale.ID)
		require.NoError(t, err)
		assert.Zero(t, batch.Affected())
		assert.Len(t, f.store.allCommissions(), 1)
	})

	t.Run("sale without seller has no commission", func(t *testing.T) {
		f := newFixture(t)
		sale := f.sale(t, trade.SaleParams{
			Value:    dec("200"),
			Status:   trade.SaleStatusClosed,
			SaleDate: day(2024, 1, 10),
		})

		batch, err := f.engine.Materializer.MaterializeSale(ctx, sale.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, batch.Count(ItemCreated))
		assert.Empty(t, f.store.allCommissions())
	})

	t.Run("open sale is rejected", func(t *testing.T) {
		f := newFixture(t)
		sale := f.sale(t, trade.SaleParams{Value: dec("200"), SaleDate: day(2024, 1, 10)})

		_, err := f.engine.Materializer.MaterializeSale(ctx, sale.ID)
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})
}
