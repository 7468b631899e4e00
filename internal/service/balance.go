package service

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/brokerledger/internal/domain"
	"github.com/punchamoorthee/brokerledger/internal/logger"
	"github.com/punchamoorthee/brokerledger/internal/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AdjustParams describes one signed change to one sub-balance.
type AdjustParams struct {
	UserID      int64
	Kind        domain.SubBalance
	Delta       decimal.Decimal
	Description string
	Type        domain.TransactionType
	PositionID  *int64
}

func (p *AdjustParams) validate() error {
	if !p.Kind.Valid() {
		return domain.Validationf("unknown balance type %q", p.Kind)
	}
	if !p.Type.Valid() {
		return domain.Validationf("unknown transaction type %q", p.Type)
	}
	p.Delta = p.Delta.Round(domain.AmountScale)
	if p.Delta.IsZero() {
		return domain.Validationf("adjustment amount must be non-zero")
	}
	return nil
}

// adjustment is what one applied change produced inside an open unit of work.
type adjustment struct {
	Balance     *domain.BalanceRecord
	Transaction *domain.Transaction
	Clamped     bool
}

func (a *adjustment) record() {
	if a == nil {
		return
	}
	metrics.RecordAdjustment(string(a.Transaction.Type), string(a.Transaction.BalanceType), a.Clamped)
}

// BalanceService is the only writer of sub-balances and the transaction log.
type BalanceService struct {
	ledger domain.Ledger
	policy domain.OverdraftPolicy
}

func NewBalanceService(ledger domain.Ledger, policy domain.OverdraftPolicy) *BalanceService {
	if policy == "" {
		policy = domain.OverdraftClamp
	}
	return &BalanceService{ledger: ledger, policy: policy}
}

func (s *BalanceService) Policy() domain.OverdraftPolicy {
	return s.policy
}

// Adjust applies p in its own unit of work and returns the new balance.
func (s *BalanceService) Adjust(ctx context.Context, p AdjustParams) (*domain.BalanceRecord, error) {
	var adj *adjustment
	err := s.ledger.WithinTx(ctx, func(tx domain.LedgerTx) error {
		var err error
		adj, err = s.apply(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	adj.record()
	return adj.Balance, nil
}

// apply locks the balance row, changes one component, rewrites the whole record and
// appends the matching ledger row, all on tx.
func (s *BalanceService) apply(ctx context.Context, tx domain.LedgerTx, p AdjustParams) (*adjustment, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	rec, err := tx.LockBalance(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	current := rec.Get(p.Kind)
	next := current.Add(p.Delta)
	clamped := false
	if next.IsNegative() {
		if s.policy == domain.OverdraftReject {
			return nil, fmt.Errorf("%w: %s balance %s cannot cover %s", domain.ErrInsufficientFunds,
				p.Kind, current.StringFixed(domain.AmountScale), p.Delta.Abs().StringFixed(domain.AmountScale))
		}
		next = decimal.Zero
		clamped = true
	}
	realized := next.Sub(current)

	rec.Set(p.Kind, next)
	if err := tx.SaveBalance(ctx, rec); err != nil {
		return nil, err
	}

	direction := domain.Credit
	if p.Delta.IsNegative() {
		direction = domain.Debit
	}
	entry := &domain.Transaction{
		UserID:      p.UserID,
		Type:        p.Type,
		Amount:      realized.Abs(),
		Direction:   direction,
		BalanceType: p.Kind,
		Description: p.Description,
		PositionID:  p.PositionID,
		Status:      domain.TxCompleted,
	}
	if err := tx.AppendTransaction(ctx, entry); err != nil {
		return nil, err
	}

	if clamped {
		logger.Warn("deduction clamped at zero",
			zap.Int64("user_id", p.UserID),
			zap.String("balance_type", string(p.Kind)),
			zap.String("requested", p.Delta.StringFixed(domain.AmountScale)),
			zap.String("realized", realized.StringFixed(domain.AmountScale)))
	}
	logger.Debug("balance adjusted",
		zap.Int64("user_id", p.UserID),
		zap.String("type", string(p.Type)),
		zap.String("balance_type", string(p.Kind)),
		zap.String("delta", realized.StringFixed(domain.AmountScale)),
		zap.String("total", rec.Total.StringFixed(domain.AmountScale)))

	return &adjustment{Balance: rec, Transaction: entry, Clamped: clamped}, nil
}

// CreateBalance registers a user with every sub-balance at zero and returns the stored record.
func (s *BalanceService) CreateBalance(ctx context.Context, userID int64) (*domain.BalanceRecord, error) {
	if userID <= 0 {
		return nil, domain.Validationf("user_id must be positive")
	}
	if err := s.ledger.CreateBalance(ctx, userID); err != nil {
		return nil, err
	}
	return s.ledger.GetBalance(ctx, userID)
}

func (s *BalanceService) GetBalance(ctx context.Context, userID int64) (*domain.BalanceRecord, error) {
	return s.ledger.GetBalance(ctx, userID)
}

func (s *BalanceService) ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, error) {
	if _, err := s.ledger.GetBalance(ctx, userID); err != nil {
		return nil, err
	}
	return s.ledger.ListTransactions(ctx, userID, limit, offset)
}

// RecalculateTotal repairs drift between total and its components. It is safe to run at any time.
func (s *BalanceService) RecalculateTotal(ctx context.Context, userID int64) (*domain.BalanceRecord, error) {
	rec, err := s.ledger.RecalculateTotal(ctx, userID)
	if err != nil {
		return nil, err
	}
	logger.Info("total recalculated", zap.Int64("user_id", userID), zap.String("total", rec.Total.StringFixed(domain.AmountScale)))
	return rec, nil
}

// RecalculateAll repairs every drifted balance row.
func (s *BalanceService) RecalculateAll(ctx context.Context) (int64, error) {
	n, err := s.ledger.RecalculateAll(ctx)
	if err != nil {
		return 0, err
	}
	logger.Info("totals recalculated", zap.Int64("repaired", n))
	return n, nil
}
