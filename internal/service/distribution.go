package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/brokerledger/internal/domain"
	"github.com/punchamoorthee/brokerledger/internal/logger"
	"github.com/punchamoorthee/brokerledger/internal/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DistributionEngine credits accrued profit once per position per period and
// completes positions whose duration has elapsed. Runs may overlap.
type DistributionEngine struct {
	ledger    domain.Ledger
	balances  *BalanceService
	positions *PositionService
	now       func() time.Time
}

func NewDistributionEngine(ledger domain.Ledger, balances *BalanceService, positions *PositionService) *DistributionEngine {
	return &DistributionEngine{ledger: ledger, balances: balances, positions: positions, now: time.Now}
}

func (e *DistributionEngine) WithClock(now func() time.Time) *DistributionEngine {
	e.now = now
	return e
}

type positionRun struct {
	kind       domain.PositionKind
	periods    int
	amount     decimal.Decimal
	duplicates int
	credits    []*adjustment
	closing    *adjustment
}

// DistributePendingProfits processes every active position in its own unit of work.
// A failing position is reported in the summary and does not stop the batch.
func (e *DistributionEngine) DistributePendingProfits(ctx context.Context) (*domain.DistributionSummary, error) {
	now := e.now().UTC()
	summary := &domain.DistributionSummary{
		RunID:       uuid.NewString(),
		TotalAmount: decimal.Zero,
		Failures:    []domain.PositionFailure{},
	}

	active, err := e.ledger.ListActivePositions(ctx)
	if err != nil {
		return nil, err
	}
	summary.PositionsScanned = len(active)
	log := logger.With(zap.String("run_id", summary.RunID))

	for _, p := range active {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		run, err := e.distributePosition(ctx, p.ID, now)
		if err != nil {
			metrics.RecordDistributionFailure()
			summary.Failures = append(summary.Failures, domain.PositionFailure{PositionID: p.ID, Error: err.Error()})
			log.Error("profit distribution failed", zap.Int64("position_id", p.ID), zap.Error(err))
			continue
		}

		for _, c := range run.credits {
			c.record()
			metrics.RecordProfit(string(run.kind), c.Transaction.Amount.InexactFloat64())
		}
		for i := 0; i < run.duplicates; i++ {
			metrics.RecordDuplicatePeriod()
		}
		summary.Processed += run.periods
		summary.TotalAmount = summary.TotalAmount.Add(run.amount)
		if run.closing != nil {
			run.closing.record()
			metrics.RecordPositionClosed(string(run.kind), string(domain.PositionCompleted))
			summary.PositionsCompleted++
		}
	}

	log.Info("profit distribution finished",
		zap.Int("positions_scanned", summary.PositionsScanned),
		zap.Int("processed", summary.Processed),
		zap.String("total_amount", summary.TotalAmount.StringFixed(domain.AmountScale)),
		zap.Int("positions_completed", summary.PositionsCompleted),
		zap.Int("failures", len(summary.Failures)))
	return summary, nil
}

func (e *DistributionEngine) distributePosition(ctx context.Context, positionID int64, now time.Time) (*positionRun, error) {
	var run *positionRun
	err := e.ledger.WithinTx(ctx, func(tx domain.LedgerTx) error {
		run = &positionRun{amount: decimal.Zero}

		pos, err := tx.LockPosition(ctx, positionID)
		if err != nil {
			return err
		}
		// Another run or a close got here first.
		if pos.Status != domain.PositionActive {
			return nil
		}
		run.kind = pos.Kind

		done, err := tx.ListDistributedPeriods(ctx, pos.ID)
		if err != nil {
			return err
		}

		profit := pos.ProfitPerPeriod()
		due := pos.PeriodsElapsed(now)
		for k := 1; k <= due; k++ {
			if done[k] {
				continue
			}
			err := tx.RecordDistribution(ctx, &domain.Distribution{
				PositionID:  pos.ID,
				UserID:      pos.UserID,
				PeriodIndex: k,
				Period:      pos.PeriodAt(k),
				Amount:      profit,
			})
			if errors.Is(err, domain.ErrDuplicatePeriod) {
				run.duplicates++
				continue
			}
			if err != nil {
				return err
			}

			if profit.IsPositive() {
				adj, err := e.balances.apply(ctx, tx, AdjustParams{
					UserID:      pos.UserID,
					Kind:        domain.SubBalanceProfit,
					Delta:       profit,
					Description: fmt.Sprintf("Profit for %s position #%d, period %d/%d", pos.Kind, pos.ID, k, pos.Duration),
					Type:        domain.TxProfit,
					PositionID:  &pos.ID,
				})
				if err != nil {
					return err
				}
				if err := tx.AddPositionProfit(ctx, pos.ID, profit); err != nil {
					return err
				}
				run.credits = append(run.credits, adj)
			}
			run.periods++
			run.amount = run.amount.Add(profit)
		}

		if !now.Before(pos.MaturesAt()) {
			_, closing, err := e.positions.closeTx(ctx, tx, pos.ID, domain.PositionCompleted, now)
			if err != nil {
				return err
			}
			run.closing = closing
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}
