package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/punchamoorthee/brokerledger/internal/domain"
	"github.com/shopspring/decimal"
)

// fakeLedger is an in-memory domain.Ledger. WithinTx holds one mutex for the whole
// unit and restores a snapshot when fn fails, which is enough to model row locks
// and rollback for service tests.
type fakeLedger struct {
	mu sync.Mutex
	state

	// failures injected by tests
	failAppendFor   map[int64]error
	failLockFor     map[int64]error
	failListActive  error
	recordDuplicate map[int64]bool
}

type state struct {
	balances      map[int64]domain.BalanceRecord
	plans         map[int64]domain.Plan
	positions     map[int64]domain.Position
	transactions  []domain.Transaction
	distributions []domain.Distribution
	nextID        int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		state: state{
			balances:  map[int64]domain.BalanceRecord{},
			plans:     map[int64]domain.Plan{},
			positions: map[int64]domain.Position{},
		},
		failAppendFor:   map[int64]error{},
		failLockFor:     map[int64]error{},
		recordDuplicate: map[int64]bool{},
	}
}

func (s *state) clone() state {
	c := state{
		balances:      make(map[int64]domain.BalanceRecord, len(s.balances)),
		plans:         make(map[int64]domain.Plan, len(s.plans)),
		positions:     make(map[int64]domain.Position, len(s.positions)),
		transactions:  append([]domain.Transaction(nil), s.transactions...),
		distributions: append([]domain.Distribution(nil), s.distributions...),
		nextID:        s.nextID,
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.plans {
		c.plans[k] = v
	}
	for k, v := range s.positions {
		c.positions[k] = v
	}
	return c
}

func (f *fakeLedger) seedBalance(userID int64, deposit string) {
	rec := domain.BalanceRecord{
		UserID:      userID,
		Profit:      decimal.Zero,
		Deposit:     decimal.RequireFromString(deposit),
		Bonus:       decimal.Zero,
		Card:        decimal.Zero,
		CreditScore: decimal.Zero,
	}
	rec.Recompute()
	f.balances[userID] = rec
}

func (f *fakeLedger) seedPlan(p domain.Plan) {
	f.plans[p.ID] = p
}

func (f *fakeLedger) txCount(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.transactions {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

func (f *fakeLedger) distributionCount(positionID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, d := range f.distributions {
		if d.PositionID == positionID {
			n++
		}
	}
	return n
}

func (f *fakeLedger) WithinTx(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot := f.state.clone()
	if err := fn(&fakeTx{f: f}); err != nil {
		f.state = snapshot
		return err
	}
	return nil
}

func (f *fakeLedger) GetBalance(ctx context.Context, userID int64) (*domain.BalanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getBalance(userID)
}

func (f *fakeLedger) GetPlan(ctx context.Context, planID int64) (*domain.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getPlan(planID)
}

func (f *fakeLedger) GetPosition(ctx context.Context, positionID int64) (*domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getPosition(positionID)
}

func (f *fakeLedger) ListActivePositions(ctx context.Context) ([]domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failListActive != nil {
		return nil, f.failListActive
	}
	return f.listActive(), nil
}

func (f *fakeLedger) ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listTransactions(userID, limit, offset), nil
}

func (f *fakeLedger) CreateBalance(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.balances[userID]; !ok {
		f.balances[userID] = domain.BalanceRecord{UserID: userID}
	}
	return nil
}

func (f *fakeLedger) RecalculateTotal(ctx context.Context, userID int64) (*domain.BalanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.balances[userID]
	if !ok {
		return nil, domain.NotFoundf("balance for user %d", userID)
	}
	rec.Recompute()
	f.balances[userID] = rec
	return &rec, nil
}

func (f *fakeLedger) RecalculateAll(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, rec := range f.balances {
		if !rec.Consistent() {
			rec.Recompute()
			f.balances[id] = rec
			n++
		}
	}
	return n, nil
}

func (s *state) getBalance(userID int64) (*domain.BalanceRecord, error) {
	rec, ok := s.balances[userID]
	if !ok {
		return nil, domain.NotFoundf("balance for user %d", userID)
	}
	return &rec, nil
}

func (s *state) getPlan(planID int64) (*domain.Plan, error) {
	p, ok := s.plans[planID]
	if !ok {
		return nil, domain.NotFoundf("plan %d", planID)
	}
	return &p, nil
}

func (s *state) getPosition(positionID int64) (*domain.Position, error) {
	p, ok := s.positions[positionID]
	if !ok {
		return nil, domain.NotFoundf("position %d", positionID)
	}
	return &p, nil
}

func (s *state) listActive() []domain.Position {
	var out []domain.Position
	for _, p := range s.positions {
		if p.Status == domain.PositionActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) listTransactions(userID int64, limit, offset int) []domain.Transaction {
	out := []domain.Transaction{}
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].UserID == userID {
			out = append(out, s.transactions[i])
		}
	}
	if offset >= len(out) {
		return []domain.Transaction{}
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

type fakeTx struct {
	f *fakeLedger
}

func (t *fakeTx) GetBalance(ctx context.Context, userID int64) (*domain.BalanceRecord, error) {
	return t.f.getBalance(userID)
}

func (t *fakeTx) GetPlan(ctx context.Context, planID int64) (*domain.Plan, error) {
	return t.f.getPlan(planID)
}

func (t *fakeTx) GetPosition(ctx context.Context, positionID int64) (*domain.Position, error) {
	return t.f.getPosition(positionID)
}

func (t *fakeTx) ListActivePositions(ctx context.Context) ([]domain.Position, error) {
	return t.f.listActive(), nil
}

func (t *fakeTx) ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, error) {
	return t.f.listTransactions(userID, limit, offset), nil
}

func (t *fakeTx) LockBalance(ctx context.Context, userID int64) (*domain.BalanceRecord, error) {
	return t.f.getBalance(userID)
}

func (t *fakeTx) SaveBalance(ctx context.Context, rec *domain.BalanceRecord) error {
	if _, ok := t.f.balances[rec.UserID]; !ok {
		return domain.NotFoundf("balance for user %d", rec.UserID)
	}
	for _, k := range domain.SubBalances {
		if rec.Get(k).IsNegative() {
			return domain.Validationf("%s balance must not be negative", k)
		}
	}
	saved := *rec
	saved.Recompute()
	saved.UpdatedAt = time.Now()
	t.f.balances[rec.UserID] = saved
	rec.Total = saved.Total
	return nil
}

func (t *fakeTx) AppendTransaction(ctx context.Context, rec *domain.Transaction) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := t.f.failAppendFor[rec.UserID]; err != nil {
		return err
	}
	t.f.nextID++
	rec.ID = t.f.nextID
	rec.CreatedAt = time.Now()
	t.f.transactions = append(t.f.transactions, *rec)
	return nil
}

func (t *fakeTx) LockPosition(ctx context.Context, positionID int64) (*domain.Position, error) {
	if err := t.f.failLockFor[positionID]; err != nil {
		return nil, err
	}
	return t.f.getPosition(positionID)
}

func (t *fakeTx) InsertPosition(ctx context.Context, p *domain.Position) error {
	t.f.nextID++
	p.ID = t.f.nextID
	t.f.positions[p.ID] = *p
	return nil
}

func (t *fakeTx) SetPositionStatus(ctx context.Context, positionID int64, status domain.PositionStatus, endTime time.Time) error {
	p, ok := t.f.positions[positionID]
	if !ok {
		return domain.NotFoundf("position %d", positionID)
	}
	p.Status = status
	p.EndTime = &endTime
	t.f.positions[positionID] = p
	return nil
}

func (t *fakeTx) AddPositionProfit(ctx context.Context, positionID int64, amount decimal.Decimal) error {
	p := t.f.positions[positionID]
	p.TotalProfit = p.TotalProfit.Add(amount)
	t.f.positions[positionID] = p
	return nil
}

func (t *fakeTx) ListDistributedPeriods(ctx context.Context, positionID int64) (map[int]bool, error) {
	done := map[int]bool{}
	// recordDuplicate hides existing rows to model a concurrent run racing past the read.
	if t.f.recordDuplicate[positionID] {
		return done, nil
	}
	for _, d := range t.f.distributions {
		if d.PositionID == positionID {
			done[d.PeriodIndex] = true
		}
	}
	return done, nil
}

func (t *fakeTx) RecordDistribution(ctx context.Context, d *domain.Distribution) error {
	for _, existing := range t.f.distributions {
		if existing.PositionID == d.PositionID && existing.Period.Equal(d.Period) {
			return domain.ErrDuplicatePeriod
		}
	}
	t.f.nextID++
	d.ID = t.f.nextID
	d.CreatedAt = time.Now()
	t.f.distributions = append(t.f.distributions, *d)
	return nil
}
