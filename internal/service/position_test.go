package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/punchamoorthee/brokerledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	ledger    *fakeLedger
	clock     *testClock
	balances  *BalanceService
	positions *PositionService
	engine    *DistributionEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledger := newFakeLedger()
	clock := &testClock{t: testStart}
	balances := NewBalanceService(ledger, domain.OverdraftClamp)
	positions := NewPositionService(ledger, balances).WithClock(clock.Now)
	engine := NewDistributionEngine(ledger, balances, positions).WithClock(clock.Now)

	max := dec("1000")
	ledger.seedPlan(domain.Plan{
		ID: 1, Name: "Starter", Kind: domain.KindInvestment,
		MinAmount: dec("100"), MaxAmount: &max, Rate: dec("0.02"), Duration: 2, IsActive: true,
	})
	ledger.seedPlan(domain.Plan{
		ID: 2, Name: "Live BTC", Kind: domain.KindLiveTrade,
		MinAmount: dec("50"), Rate: dec("0.005"), Duration: 3, IsActive: true,
	})
	ledger.seedPlan(domain.Plan{
		ID: 3, Name: "Retired", Kind: domain.KindInvestment,
		MinAmount: dec("10"), Rate: dec("0.01"), Duration: 5, IsActive: false,
	})
	ledger.seedBalance(1, "500.00")

	return &fixture{ledger: ledger, clock: clock, balances: balances, positions: positions, engine: engine}
}

func TestPositionService_Open(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pos, err := f.positions.Open(ctx, OpenParams{UserID: 1, PlanID: 1, Amount: dec("200")})
	require.NoError(t, err)
	assert.Equal(t, domain.PositionActive, pos.Status)
	assert.Equal(t, domain.KindInvestment, pos.Kind)
	assert.True(t, pos.StartTime.Equal(testStart))
	assertAmount(t, "0.00", pos.TotalProfit)

	rec, _ := f.balances.GetBalance(ctx, 1)
	assertAmount(t, "300.00", rec.Deposit)
	assertConsistent(t, rec)

	txs, _ := f.balances.ListTransactions(ctx, 1, 10, 0)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TxInvestment, txs[0].Type)
	assert.Equal(t, domain.Debit, txs[0].Direction)
	assertAmount(t, "200.00", txs[0].Amount)
	require.NotNil(t, txs[0].PositionID)
	assert.Equal(t, pos.ID, *txs[0].PositionID)
}

func TestPositionService_OpenLiveTradeUsesLiveTradeType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pos, err := f.positions.Open(ctx, OpenParams{UserID: 1, PlanID: 2, Amount: dec("5000")})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds, "no max on plan, but deposit is only 500")
	assert.Nil(t, pos)

	pos, err = f.positions.Open(ctx, OpenParams{UserID: 1, PlanID: 2, Amount: dec("50")})
	require.NoError(t, err)
	assert.Equal(t, domain.KindLiveTrade, pos.Kind)

	txs, _ := f.balances.ListTransactions(ctx, 1, 10, 0)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TxLiveTradeInvestment, txs[0].Type)
}

func TestPositionService_OpenRejections(t *testing.T) {
	tests := []struct {
		name   string
		params OpenParams
		want   error
	}{
		{"below minimum", OpenParams{UserID: 1, PlanID: 1, Amount: dec("50")}, domain.ErrValidation},
		{"above maximum", OpenParams{UserID: 1, PlanID: 1, Amount: dec("1000.01")}, domain.ErrValidation},
		{"inactive plan", OpenParams{UserID: 1, PlanID: 3, Amount: dec("100")}, domain.ErrValidation},
		{"non-positive amount", OpenParams{UserID: 1, PlanID: 1, Amount: dec("-200")}, domain.ErrValidation},
		{"unknown plan", OpenParams{UserID: 1, PlanID: 99, Amount: dec("200")}, domain.ErrNotFound},
		{"unknown user", OpenParams{UserID: 7, PlanID: 1, Amount: dec("200")}, domain.ErrNotFound},
		{"insufficient deposit", OpenParams{UserID: 1, PlanID: 1, Amount: dec("600")}, domain.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			_, err := f.positions.Open(ctx, tt.params)
			assert.ErrorIs(t, err, tt.want)

			rec, _ := f.balances.GetBalance(ctx, 1)
			assertAmount(t, "500.00", rec.Deposit)
			assert.Equal(t, 0, f.ledger.txCount(1))
			assert.Empty(t, f.ledger.positions)
		})
	}
}

func TestPositionService_CloseReturnsPrincipal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pos, err := f.positions.Open(ctx, OpenParams{UserID: 1, PlanID: 1, Amount: dec("200")})
	require.NoError(t, err)

	f.clock.Advance(3 * time.Hour)
	closed, err := f.positions.Close(ctx, pos.ID, domain.PositionCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionCancelled, closed.Status)
	require.NotNil(t, closed.EndTime)
	assert.True(t, closed.EndTime.Equal(testStart.Add(3*time.Hour)))

	rec, _ := f.balances.GetBalance(ctx, 1)
	assertAmount(t, "500.00", rec.Deposit)

	txs, _ := f.balances.ListTransactions(ctx, 1, 10, 0)
	require.Len(t, txs, 2)
	assert.Equal(t, domain.TxPrincipalReturn, txs[0].Type)
	assert.Equal(t, domain.Credit, txs[0].Direction)
}

func TestPositionService_CloseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pos, err := f.positions.Open(ctx, OpenParams{UserID: 1, PlanID: 1, Amount: dec("200")})
	require.NoError(t, err)

	_, err = f.positions.Close(ctx, pos.ID, domain.PositionCompleted)
	require.NoError(t, err)
	before := f.ledger.txCount(1)

	again, err := f.positions.Close(ctx, pos.ID, domain.PositionCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionCompleted, again.Status)

	// a different terminal outcome is also ignored
	again, err = f.positions.Close(ctx, pos.ID, domain.PositionDeactivated)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionCompleted, again.Status)

	rec, _ := f.balances.GetBalance(ctx, 1)
	assertAmount(t, "500.00", rec.Deposit)
	assert.Equal(t, before, f.ledger.txCount(1))
}

func TestPositionService_CloseValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.positions.Close(ctx, 1, domain.PositionActive)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.positions.Close(ctx, 404, domain.PositionCompleted)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPositionService_ConcurrentOpensCannotOverspend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	opened, insufficient := 0, 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.positions.Open(ctx, OpenParams{UserID: 1, PlanID: 1, Amount: dec("200")})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				opened++
			case errors.Is(err, domain.ErrInsufficientFunds):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// 500 covers exactly two opens of 200
	assert.Equal(t, 2, opened)
	assert.Equal(t, attempts-2, insufficient)

	rec, _ := f.balances.GetBalance(ctx, 1)
	assertAmount(t, "100.00", rec.Deposit)
	assertConsistent(t, rec)
	assert.Len(t, f.ledger.positions, 2)
	assert.Equal(t, 2, f.ledger.txCount(1))
}
