package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerReader is the read side of the ledger available outside a transaction.
type LedgerReader interface {
	GetBalance(ctx context.Context, userID int64) (*BalanceRecord, error)
	GetPlan(ctx context.Context, planID int64) (*Plan, error)
	GetPosition(ctx context.Context, positionID int64) (*Position, error)
	ListActivePositions(ctx context.Context) ([]Position, error)
	ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]Transaction, error)
}

// LedgerTx is one atomic unit of work. Lock* methods hold a row lock until the
// unit commits or rolls back.
type LedgerTx interface {
	LedgerReader

	LockBalance(ctx context.Context, userID int64) (*BalanceRecord, error)
	SaveBalance(ctx context.Context, rec *BalanceRecord) error
	AppendTransaction(ctx context.Context, t *Transaction) error

	LockPosition(ctx context.Context, positionID int64) (*Position, error)
	InsertPosition(ctx context.Context, p *Position) error
	SetPositionStatus(ctx context.Context, positionID int64, status PositionStatus, endTime time.Time) error
	AddPositionProfit(ctx context.Context, positionID int64, amount decimal.Decimal) error

	ListDistributedPeriods(ctx context.Context, positionID int64) (map[int]bool, error)
	// RecordDistribution returns ErrDuplicatePeriod when the period is already recorded.
	RecordDistribution(ctx context.Context, d *Distribution) error
}

// Ledger is the storage boundary every service is constructed with.
type Ledger interface {
	LedgerReader

	// WithinTx runs fn in one atomic unit. Any error from fn rolls back everything fn wrote.
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
	// CreateBalance is a no-op for a user that already has a record.
	CreateBalance(ctx context.Context, userID int64) error
	RecalculateTotal(ctx context.Context, userID int64) (*BalanceRecord, error)
	// RecalculateAll repairs every drifted row and returns how many were fixed.
	RecalculateAll(ctx context.Context) (int64, error)
}
