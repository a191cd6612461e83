package obligation

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/agency/backend/internal/domain/finance"
	"github.com/agency/backend/internal/domain/shared"
	"github.com/agency/backend/internal/domain/shared/valueobject"
	"github.com/agency/backend/internal/domain/trade"
	"github.com/agency/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
)

// fakeStore is an in-memory finance.UnitOfWork. Atomic units are serialized
// and roll back by restoring a snapshot, unless nonAtomic is set. faults
// makes the named operation fail.
type fakeStore struct {
	unitMu sync.Mutex
	mu     sync.Mutex
	data   *fakeData

	faults    map[string]error
	nonAtomic bool
	calls     map[string]int
	// onAtomic, when set, runs once before the next unit starts
	onAtomic func()
	// unitOperations records the operation tagged on each unit's context
	unitOperations []string
}

type fakeData struct {
	contracts    map[uuid.UUID]trade.Contract
	sales        map[uuid.UUID]trade.Sale
	ledger       map[uuid.UUID]finance.LedgerEntry
	transactions map[uuid.UUID]finance.FinancialTransaction
	commissions  map[uuid.UUID]finance.Commission
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data: &fakeData{
			contracts:    map[uuid.UUID]trade.Contract{},
			sales:        map[uuid.UUID]trade.Sale{},
			ledger:       map[uuid.UUID]finance.LedgerEntry{},
			transactions: map[uuid.UUID]finance.FinancialTransaction{},
			commissions:  map[uuid.UUID]finance.Commission{},
		},
		faults: map[string]error{},
		calls:  map[string]int{},
	}
}

func (d *fakeData) clone() *fakeData {
	c := &fakeData{
		contracts:    make(map[uuid.UUID]trade.Contract, len(d.contracts)),
		sales:        make(map[uuid.UUID]trade.Sale, len(d.sales)),
		ledger:       make(map[uuid.UUID]finance.LedgerEntry, len(d.ledger)),
		transactions: make(map[uuid.UUID]finance.FinancialTransaction, len(d.transactions)),
		commissions:  make(map[uuid.UUID]finance.Commission, len(d.commissions)),
	}
	for k, v := range d.contracts {
		c.contracts[k] = v
	}
	for k, v := range d.sales {
		c.sales[k] = v
	}
	for k, v := range d.ledger {
		c.ledger[k] = v
	}
	for k, v := range d.transactions {
		c.transactions[k] = v
	}
	for k, v := range d.commissions {
		c.commissions[k] = v
	}
	return c
}

func (s *fakeStore) fault(op string) error {
	s.calls[op]++
	return s.faults[op]
}

func (s *fakeStore) Contracts() trade.ContractRepository          { return fakeContracts{s} }
func (s *fakeStore) Sales() trade.SaleRepository                  { return fakeSales{s} }
func (s *fakeStore) Ledger() finance.LedgerRepository             { return fakeLedger{s} }
func (s *fakeStore) Transactions() finance.TransactionRepository { return fakeTransactions{s} }
func (s *fakeStore) Commissions() finance.CommissionRepository   { return fakeCommissions{s} }

func (s *fakeStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx finance.Store) error) error {
	s.unitMu.Lock()
	defer s.unitMu.Unlock()

	if hook := s.onAtomic; hook != nil {
		s.onAtomic = nil
		hook()
	}

	s.mu.Lock()
	s.unitOperations = append(s.unitOperations, logger.GetOperation(ctx))
	if err := s.fault("atomic"); err != nil {
		s.mu.Unlock()
		return err
	}
	snapshot := s.data.clone()
	s.mu.Unlock()

	err := fn(ctx, s)
	if err != nil && !s.nonAtomic {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
	}
	return err
}

// seeding and inspection helpers

func (s *fakeStore) putContract(c *trade.Contract) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.contracts[c.ID] = *c
}

func (s *fakeStore) putSale(v *trade.Sale) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.sales[v.ID] = *v
}

func (s *fakeStore) putLedger(e *finance.LedgerEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.ledger[e.ID] = *e
}

func (s *fakeStore) putTransaction(t *finance.FinancialTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.transactions[t.ID] = *t
}

func (s *fakeStore) putCommission(c *finance.Commission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.commissions[c.ID] = *c
}

func (s *fakeStore) ledgerOf(contractID uuid.UUID) []finance.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []finance.LedgerEntry
	for _, e := range s.data.ledger {
		if e.ContractID == contractID {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b finance.LedgerEntry) int { return a.ReferenceMonth.Compare(b.ReferenceMonth) })
	return out
}

func (s *fakeStore) transactionsWhere(pred func(finance.FinancialTransaction) bool) []finance.FinancialTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []finance.FinancialTransaction
	for _, t := range s.data.transactions {
		if pred(t) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b finance.FinancialTransaction) int {
		if c := a.TransactionDate.Compare(b.TransactionDate); c != 0 {
			return c
		}
		return a.InstallmentIndex - b.InstallmentIndex
	})
	return out
}

func (s *fakeStore) allCommissions() []finance.Commission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]finance.Commission, 0, len(s.data.commissions))
	for _, c := range s.data.commissions {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b finance.Commission) int { return a.ReferenceMonth.Compare(b.ReferenceMonth) })
	return out
}

func (s *fakeStore) transaction(id uuid.UUID) (finance.FinancialTransaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.data.transactions[id]
	return t, ok
}

func (s *fakeStore) commission(id uuid.UUID) (finance.Commission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data.commissions[id]
	return c, ok
}

func (s *fakeStore) contract(id uuid.UUID) (trade.Contract, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data.contracts[id]
	return c, ok
}

// contracts

type fakeContracts struct{ s *fakeStore }

func (r fakeContracts) FindByID(_ context.Context, id uuid.UUID) (*trade.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("contracts.FindByID"); err != nil {
		return nil, err
	}
	c, ok := r.s.data.contracts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &c, nil
}

func (r fakeContracts) FindAll(_ context.Context, f trade.ContractFilter) ([]trade.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("contracts.FindAll"); err != nil {
		return nil, err
	}
	var out []trade.Contract
	for _, c := range r.s.data.contracts {
		if len(f.IDs) > 0 && !slices.Contains(f.IDs, c.ID) {
			continue
		}
		if f.Type != "" && c.ContractType != f.Type {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.SellerID != nil && (c.SellerID == nil || *c.SellerID != *f.SellerID) {
			continue
		}
		if f.RequireSeller && !c.HasSeller() {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b trade.Contract) int { return a.StartDate.Compare(b.StartDate) })
	return out, nil
}

func (r fakeContracts) Save(_ context.Context, c *trade.Contract) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("contracts.Save"); err != nil {
		return err
	}
	r.s.data.contracts[c.ID] = *c
	return nil
}

func (r fakeContracts) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("contracts.Delete"); err != nil {
		return err
	}
	delete(r.s.data.contracts, id)
	return nil
}

// sales

type fakeSales struct{ s *fakeStore }

func (r fakeSales) FindByID(_ context.Context, id uuid.UUID) (*trade.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("sales.FindByID"); err != nil {
		return nil, err
	}
	v, ok := r.s.data.sales[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &v, nil
}

func (r fakeSales) FindAll(_ context.Context, f trade.SaleFilter) ([]trade.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []trade.Sale
	for _, v := range r.s.data.sales {
		if len(f.IDs) > 0 && !slices.Contains(f.IDs, v.ID) {
			continue
		}
		if f.Status != "" && v.Status != f.Status {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (r fakeSales) Save(_ context.Context, v *trade.Sale) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.sales[v.ID] = *v
	return nil
}

// ledger

type fakeLedger struct{ s *fakeStore }

func (r fakeLedger) FindByContractAndMonth(_ context.Context, contractID uuid.UUID, month time.Time) (*finance.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("ledger.Find"); err != nil {
		return nil, err
	}
	month = valueobject.MonthStart(month)
	for _, e := range r.s.data.ledger {
		if e.ContractID == contractID && e.ReferenceMonth.Equal(month) {
			return &e, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r fakeLedger) FindByContract(_ context.Context, contractID uuid.UUID) ([]finance.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []finance.LedgerEntry
	for _, e := range r.s.data.ledger {
		if e.ContractID == contractID {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b finance.LedgerEntry) int { return a.ReferenceMonth.Compare(b.ReferenceMonth) })
	return out, nil
}

func (r fakeLedger) Create(_ context.Context, e *finance.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("ledger.Create"); err != nil {
		return err
	}
	for _, existing := range r.s.data.ledger {
		if existing.ContractID == e.ContractID && existing.ReferenceMonth.Equal(e.ReferenceMonth) {
			return shared.NewConflictError("duplicate ledger entry")
		}
	}
	r.s.data.ledger[e.ID] = *e
	return nil
}

func (r fakeLedger) SaveWithLock(_ context.Context, e *finance.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("ledger.Save"); err != nil {
		return err
	}
	stored, ok := r.s.data.ledger[e.ID]
	if !ok || stored.Version != e.Version-1 {
		return shared.NewConflictError("ledger entry modified concurrently")
	}
	r.s.data.ledger[e.ID] = *e
	return nil
}

func (r fakeLedger) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("ledger.Delete"); err != nil {
		return err
	}
	if _, ok := r.s.data.ledger[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.s.data.ledger, id)
	return nil
}

func (r fakeLedger) DeleteByContract(_ context.Context, contractID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, e := range r.s.data.ledger {
		if e.ContractID == contractID {
			delete(r.s.data.ledger, id)
		}
	}
	return nil
}

// transactions

type fakeTransactions struct{ s *fakeStore }

func (r fakeTransactions) FindByID(_ context.Context, id uuid.UUID) (*finance.FinancialTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("transactions.FindByID"); err != nil {
		return nil, err
	}
	t, ok := r.s.data.transactions[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &t, nil
}

func (r fakeTransactions) FindAll(_ context.Context, f finance.TransactionFilter) ([]finance.FinancialTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("transactions.FindAll"); err != nil {
		return nil, err
	}
	var out []finance.FinancialTransaction
	for _, t := range r.s.data.transactions {
		if !matchTransaction(t, f) {
			continue
		}
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b finance.FinancialTransaction) int { return a.TransactionDate.Compare(b.TransactionDate) })
	return out, nil
}

func matchTransaction(t finance.FinancialTransaction, f finance.TransactionFilter) bool {
	switch {
	case len(f.IDs) > 0 && !slices.Contains(f.IDs, t.ID):
		return false
	case f.Kind != "" && t.Kind != f.Kind:
		return false
	case len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status):
		return false
	case f.ContractID != nil && (t.LinkedContractID == nil || *t.LinkedContractID != *f.ContractID):
		return false
	case f.SaleID != nil && (t.LinkedSaleID == nil || *t.LinkedSaleID != *f.SaleID):
		return false
	case f.ReferenceMonth != nil && (t.ReferenceMonth == nil || !t.ReferenceMonth.Equal(*f.ReferenceMonth)):
		return false
	case f.CommissionLinked && t.LinkedCommissionID == nil:
		return false
	case f.SourceLinked && t.LinkedContractID == nil && t.LinkedSaleID == nil:
		return false
	}
	return true
}

func (r fakeTransactions) FindByCommission(_ context.Context, commissionID uuid.UUID) (*finance.FinancialTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("transactions.FindByCommission"); err != nil {
		return nil, err
	}
	for _, t := range r.s.data.transactions {
		if t.LinkedCommissionID != nil && *t.LinkedCommissionID == commissionID {
			return &t, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r fakeTransactions) Create(_ context.Context, t *finance.FinancialTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("transactions.Create"); err != nil {
		return err
	}
	if t.LinkedCommissionID != nil {
		for _, existing := range r.s.data.transactions {
			if existing.LinkedCommissionID != nil && *existing.LinkedCommissionID == *t.LinkedCommissionID {
				return shared.NewConflictError("duplicate commission payable")
			}
		}
	}
	r.s.data.transactions[t.ID] = *t
	return nil
}

func (r fakeTransactions) Save(_ context.Context, t *finance.FinancialTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("transactions.Save"); err != nil {
		return err
	}
	r.s.data.transactions[t.ID] = *t
	return nil
}

func (r fakeTransactions) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("transactions.Delete"); err != nil {
		return err
	}
	delete(r.s.data.transactions, id)
	return nil
}

// commissions

type fakeCommissions struct{ s *fakeStore }

func (r fakeCommissions) FindByID(_ context.Context, id uuid.UUID) (*finance.Commission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("commissions.FindByID"); err != nil {
		return nil, err
	}
	c, ok := r.s.data.commissions[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &c, nil
}

func (r fakeCommissions) FindBySale(_ context.Context, saleID uuid.UUID) (*finance.Commission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.data.commissions {
		if c.SaleID != nil && *c.SaleID == saleID {
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r fakeCommissions) FindByContractAndMonth(_ context.Context, contractID uuid.UUID, month time.Time) (*finance.Commission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	month = valueobject.MonthStart(month)
	for _, c := range r.s.data.commissions {
		if c.ContractID != nil && *c.ContractID == contractID && c.ReferenceMonth.Equal(month) {
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r fakeCommissions) FindAll(_ context.Context, f finance.CommissionFilter) ([]finance.Commission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("commissions.FindAll"); err != nil {
		return nil, err
	}
	var out []finance.Commission
	for _, c := range r.s.data.commissions {
		if len(f.IDs) > 0 && !slices.Contains(f.IDs, c.ID) {
			continue
		}
		if f.SellerID != nil && c.SellerID != *f.SellerID {
			continue
		}
		if f.ContractID != nil && (c.ContractID == nil || *c.ContractID != *f.ContractID) {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Unmirrored && r.mirrored(c.ID) {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b finance.Commission) int { return a.ReferenceMonth.Compare(b.ReferenceMonth) })
	return out, nil
}

func (r fakeCommissions) mirrored(id uuid.UUID) bool {
	for _, t := range r.s.data.transactions {
		if t.LinkedCommissionID != nil && *t.LinkedCommissionID == id {
			return true
		}
	}
	return false
}

func (r fakeCommissions) Create(_ context.Context, c *finance.Commission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("commissions.Create"); err != nil {
		return err
	}
	for _, existing := range r.s.data.commissions {
		if c.SaleID != nil && existing.SaleID != nil && *existing.SaleID == *c.SaleID {
			return shared.NewConflictError("duplicate sale commission")
		}
		if c.ContractID != nil && existing.ContractID != nil && *existing.ContractID == *c.ContractID &&
			existing.ReferenceMonth.Equal(c.ReferenceMonth) {
			return shared.NewConflictError("duplicate contract commission")
		}
	}
	r.s.data.commissions[c.ID] = *c
	return nil
}

func (r fakeCommissions) Save(_ context.Context, c *finance.Commission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("commissions.Save"); err != nil {
		return err
	}
	r.s.data.commissions[c.ID] = *c
	return nil
}

func (r fakeCommissions) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.data.commissions, id)
	return nil
}

// fakeProfiles is an in-memory finance.SellerProfileLookup
type fakeProfiles struct {
	mu         sync.Mutex
	profiles   map[uuid.UUID]finance.SellerProfile
	batchCalls int
	err        error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: map[uuid.UUID]finance.SellerProfile{}}
}

func (p *fakeProfiles) put(profile finance.SellerProfile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[profile.SellerID] = profile
}

func (p *fakeProfiles) GetProfile(_ context.Context, sellerID uuid.UUID) (*finance.SellerProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	profile, ok := p.profiles[sellerID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &profile, nil
}

func (p *fakeProfiles) GetProfiles(_ context.Context, sellerIDs []uuid.UUID) (map[uuid.UUID]finance.SellerProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batchCalls++
	if p.err != nil {
		return nil, p.err
	}
	out := make(map[uuid.UUID]finance.SellerProfile, len(sellerIDs))
	for _, id := range sellerIDs {
		if profile, ok := p.profiles[id]; ok {
			out[id] = profile
		}
	}
	return out, nil
}

// recordingNotifier captures notifications
type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *recordingNotifier) Notify(_ context.Context, notification Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

func (n *recordingNotifier) last() Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return Notification{}
	}
	return n.sent[len(n.sent)-1]
}

// syncPublisher dispatches events to its handlers on the caller's goroutine
type syncPublisher struct {
	handlers []shared.EventHandler
	errs     []error
}

func (p *syncPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, event := range events {
		for _, h := range p.handlers {
			if !shared.Handles(h, event.EventType()) {
				continue
			}
			if err := h.Handle(ctx, event); err != nil {
				p.errs = append(p.errs, err)
			}
		}
	}
	return nil
}

var (
	_ shared.EventPublisher       = (*syncPublisher)(nil)
	_ finance.UnitOfWork          = (*fakeStore)(nil)
	_ finance.SellerProfileLookup = (*fakeProfiles)(nil)
	_ Notifier                    = (*recordingNotifier)(nil)
)
