package obligation

import (
	"testing"
	"time"

	"github.com/agency/backend/internal/domain/finance"
	"github.com/agency/backend/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, time.January, 15, 9, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptrTime(t time.Time) *time.Time { return &t }

func ptrUUID(id uuid.UUID) *uuid.UUID { return &id }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store     *fakeStore
	profiles  *fakeProfiles
	notifier  *recordingNotifier
	publisher *syncPublisher
	engine    *Engine

	owner  uuid.UUID
	client uuid.UUID
	seller uuid.UUID
}

// newFixture wires an engine over an empty store. The default seller earns
// 5% on sales and 10% on contract months.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     newFakeStore(),
		profiles:  newFakeProfiles(),
		notifier:  &recordingNotifier{},
		publisher: &syncPublisher{},
		owner:     uuid.New(),
		client:    uuid.New(),
		seller:    uuid.New(),
	}
	settings := Settings{
		CommissionHorizonMonths: 3,
		Now:                     func() time.Time { return testNow },
	}
	f.engine = NewEngine(f.store, f.profiles, f.publisher, f.notifier, settings, zap.NewNop())
	f.publisher.handlers = f.engine.EventHandlers()
	f.profiles.put(finance.SellerProfile{
		SellerID:                     f.seller,
		CommissionPercentage:         dec("5"),
		ContractCommissionPercentage: dec("10"),
	})
	return f
}

func (f *fixture) contract(t *testing.T, p trade.ContractParams) *trade.Contract {
	t.Helper()
	if p.OwnerUserID == uuid.Nil {
		p.OwnerUserID = f.owner
	}
	if p.ClientID == uuid.Nil {
		p.ClientID = f.client
	}
	c, err := trade.NewContract(p)
	require.NoError(t, err)
	f.store.putContract(c)
	return c
}

// recurring stores an active recurring contract billed value on dueDay,
// attributed to the fixture seller
func (f *fixture) recurring(t *testing.T, start time.Time, end *time.Time, value string, dueDay int) *trade.Contract {
	t.Helper()
	return f.contract(t, trade.ContractParams{
		SellerID:     ptrUUID(f.seller),
		StartDate:    start,
		EndDate:      end,
		ContractType: trade.ContractTypeRecurring,
		DueDay:       dueDay,
		TotalValue:   dec(value),
		Description:  "Gestão de tráfego",
	})
}

func (f *fixture) sale(t *testing.T, p trade.SaleParams) *trade.Sale {
	t.Helper()
	if p.OwnerUserID == uuid.Nil {
		p.OwnerUserID = f.owner
	}
	if p.ClientID == uuid.Nil {
		p.ClientID = f.client
	}
	s, err := trade.NewSale(p)
	require.NoError(t, err)
	f.store.putSale(s)
	return s
}

func (f *fixture) transaction(t *testing.T, p finance.TransactionParams) *finance.FinancialTransaction {
	t.Helper()
	if p.OwnerUserID == uuid.Nil {
		p.OwnerUserID = f.owner
	}
	if p.TransactionDate.IsZero() {
		p.TransactionDate = testNow
	}
	tx, err := finance.NewFinancialTransaction(p)
	require.NoError(t, err)
	f.store.putTransaction(tx)
	return tx
}

// commissionWithPayable stores a pending contract commission and its payable
func (f *fixture) commissionWithPayable(t *testing.T, contract *trade.Contract, month time.Time) (*finance.Commission, *finance.FinancialTransaction) {
	t.Helper()
	c, err := finance.NewContractCommission(f.seller, contract.ID, month, dec("10"), contract.MonthlyValue())
	require.NoError(t, err)
	f.store.putCommission(c)
	payable, err := finance.NewCommissionPayable(c, f.owner, month, "Comissão")
	require.NoError(t, err)
	f.store.putTransaction(payable)
	return c, payable
}

func (f *fixture) receivablesOf(contractID uuid.UUID) []finance.FinancialTransaction {
	return f.store.transactionsWhere(func(t finance.FinancialTransaction) bool {
		return t.Kind == finance.TransactionKindIncome && t.LinkedContractID != nil && *t.LinkedContractID == contractID
	})
}

func (f *fixture) payables() []finance.FinancialTransaction {
	return f.store.transactionsWhere(func(t finance.FinancialTransaction) bool {
		return t.IsCommissionOwned()
	})
}
