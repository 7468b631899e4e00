package service

import (
	"context"
	"fmt"
	"time"

	"github.com/punchamoorthee/brokerledger/internal/domain"
	"github.com/punchamoorthee/brokerledger/internal/logger"
	"github.com/punchamoorthee/brokerledger/internal/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OpenParams struct {
	UserID int64
	PlanID int64
	Amount decimal.Decimal
}

// PositionService moves principal between a user's deposit balance and positions.
// active -> completed | cancelled | deactivated; terminal statuses never change.
type PositionService struct {
	ledger   domain.Ledger
	balances *BalanceService
	now      func() time.Time
}

func NewPositionService(ledger domain.Ledger, balances *BalanceService) *PositionService {
	return &PositionService{ledger: ledger, balances: balances, now: time.Now}
}

// WithClock overrides the time source.
func (s *PositionService) WithClock(now func() time.Time) *PositionService {
	s.now = now
	return s
}

// Open validates the plan and available deposit, deducts the principal and creates
// the position, all in one unit of work so concurrent opens cannot overspend.
func (s *PositionService) Open(ctx context.Context, p OpenParams) (*domain.Position, error) {
	amount := p.Amount.Round(domain.AmountScale)
	if !amount.IsPositive() {
		return nil, domain.Validationf("amount must be positive")
	}

	var pos *domain.Position
	var adj *adjustment
	err := s.ledger.WithinTx(ctx, func(tx domain.LedgerTx) error {
		plan, err := tx.GetPlan(ctx, p.PlanID)
		if err != nil {
			return err
		}
		if !plan.Kind.Valid() {
			return domain.Validationf("plan %d has unknown kind %q", plan.ID, plan.Kind)
		}
		if err := plan.Accepts(amount); err != nil {
			return err
		}

		bal, err := tx.LockBalance(ctx, p.UserID)
		if err != nil {
			return err
		}
		if bal.Deposit.LessThan(amount) {
			return fmt.Errorf("%w: deposit balance %s is below %s", domain.ErrInsufficientFunds,
				bal.Deposit.StringFixed(domain.AmountScale), amount.StringFixed(domain.AmountScale))
		}

		pos = &domain.Position{
			UserID:      p.UserID,
			PlanID:      plan.ID,
			Kind:        plan.Kind,
			Principal:   amount,
			Rate:        plan.Rate,
			Duration:    plan.Duration,
			Status:      domain.PositionActive,
			StartTime:   s.now().UTC(),
			TotalProfit: decimal.Zero,
		}
		if err := tx.InsertPosition(ctx, pos); err != nil {
			return err
		}

		adj, err = s.balances.apply(ctx, tx, AdjustParams{
			UserID:      p.UserID,
			Kind:        domain.SubBalanceDeposit,
			Delta:       amount.Neg(),
			Description: fmt.Sprintf("Opened %s position #%d on plan %s", plan.Kind, pos.ID, plan.Name),
			Type:        plan.Kind.OpeningTransaction(),
			PositionID:  &pos.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	adj.record()
	metrics.RecordPositionOpened(string(pos.Kind))
	logger.Info("position opened",
		zap.Int64("position_id", pos.ID),
		zap.Int64("user_id", pos.UserID),
		zap.String("kind", string(pos.Kind)),
		zap.String("principal", pos.Principal.StringFixed(domain.AmountScale)))
	return pos, nil
}

// Close moves an active position to outcome and returns its principal to deposit.
// Closing a position that is already terminal returns it unchanged.
func (s *PositionService) Close(ctx context.Context, positionID int64, outcome domain.PositionStatus) (*domain.Position, error) {
	if !outcome.Terminal() {
		return nil, domain.Validationf("unknown close outcome %q", outcome)
	}

	var pos *domain.Position
	var adj *adjustment
	err := s.ledger.WithinTx(ctx, func(tx domain.LedgerTx) error {
		var err error
		pos, adj, err = s.closeTx(ctx, tx, positionID, outcome, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}

	if adj != nil {
		adj.record()
		metrics.RecordPositionClosed(string(pos.Kind), string(outcome))
	}
	return pos, nil
}

// closeTx returns a nil adjustment when the position was already terminal.
func (s *PositionService) closeTx(ctx context.Context, tx domain.LedgerTx, positionID int64, outcome domain.PositionStatus, now time.Time) (*domain.Position, *adjustment, error) {
	pos, err := tx.LockPosition(ctx, positionID)
	if err != nil {
		return nil, nil, err
	}
	if pos.Status.Terminal() {
		logger.Debug("close on terminal position ignored",
			zap.Int64("position_id", pos.ID), zap.String("status", string(pos.Status)))
		return pos, nil, nil
	}

	adj, err := s.balances.apply(ctx, tx, AdjustParams{
		UserID:      pos.UserID,
		Kind:        domain.SubBalanceDeposit,
		Delta:       pos.Principal,
		Description: fmt.Sprintf("Principal returned from %s position #%d (%s)", pos.Kind, pos.ID, outcome),
		Type:        domain.TxPrincipalReturn,
		PositionID:  &pos.ID,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := tx.SetPositionStatus(ctx, pos.ID, outcome, now); err != nil {
		return nil, nil, err
	}
	pos.Status = outcome
	pos.EndTime = &now

	logger.Info("position closed",
		zap.Int64("position_id", pos.ID),
		zap.String("outcome", string(outcome)),
		zap.String("total_profit", pos.TotalProfit.StringFixed(domain.AmountScale)))
	return pos, adj, nil
}

func (s *PositionService) Get(ctx context.Context, positionID int64) (*domain.Position, error) {
	return s.ledger.GetPosition(ctx, positionID)
}
