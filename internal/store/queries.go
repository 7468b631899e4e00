package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/brokerledger/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	balanceColumns     = "user_id, profit, deposit, bonus, card, credit_score, total, updated_at"
	positionColumns    = "id, user_id, plan_id, kind, principal, rate, duration, status, start_time, end_time, total_profit"
	transactionColumns = "id, user_id, type, amount, direction, balance_type, description, position_id, status, created_at"
)

// queries holds the statements shared by the pool and an open transaction.
type queries struct {
	q querier
}

func scanBalance(row pgx.Row) (*domain.BalanceRecord, error) {
	var b domain.BalanceRecord
	err := row.Scan(&b.UserID, &b.Profit, &b.Deposit, &b.Bonus, &b.Card, &b.CreditScore, &b.Total, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	err := row.Scan(&p.ID, &p.UserID, &p.PlanID, &p.Kind, &p.Principal, &p.Rate, &p.Duration,
		&p.Status, &p.StartTime, &p.EndTime, &p.TotalProfit)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetBalance retrieves a user's balance record.
func (q queries) GetBalance(ctx context.Context, userID int64) (*domain.BalanceRecord, error) {
	rec, err := scanBalance(q.q.QueryRow(ctx, "SELECT "+balanceColumns+" FROM balances WHERE user_id = $1", userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundf("balance for user %d", userID)
		}
		return nil, domain.Storage("get balance", err)
	}
	return rec, nil
}

func (q queries) GetPlan(ctx context.Context, planID int64) (*domain.Plan, error) {
	var p domain.Plan
	err := q.q.QueryRow(ctx,
		"SELECT id, name, kind, min_amount, max_amount, rate, duration, is_active FROM plans WHERE id = $1",
		planID).Scan(&p.ID, &p.Name, &p.Kind, &p.MinAmount, &p.MaxAmount, &p.Rate, &p.Duration, &p.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundf("plan %d", planID)
		}
		return nil, domain.Storage("get plan", err)
	}
	return &p, nil
}

func (q queries) GetPosition(ctx context.Context, positionID int64) (*domain.Position, error) {
	p, err := scanPosition(q.q.QueryRow(ctx, "SELECT "+positionColumns+" FROM positions WHERE id = $1", positionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundf("position %d", positionID)
		}
		return nil, domain.Storage("get position", err)
	}
	return p, nil
}

// ListActivePositions returns every position still accruing, oldest first.
func (q queries) ListActivePositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := q.q.Query(ctx,
		"SELECT "+positionColumns+" FROM positions WHERE status = 'active' ORDER BY start_time, id")
	if err != nil {
		return nil, domain.Storage("list active positions", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, domain.Storage("scan position", err)
		}
		positions = append(positions, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("list active positions", err)
	}
	return positions, nil
}

// ListTransactions returns a user's ledger rows, newest first.
func (q queries) ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.q.Query(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3",
		userID, limit, offset)
	if err != nil {
		return nil, domain.Storage("list transactions", err)
	}
	defer rows.Close()

	txs := []domain.Transaction{}
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Direction, &t.BalanceType,
			&t.Description, &t.PositionID, &t.Status, &t.CreatedAt); err != nil {
			return nil, domain.Storage("scan transaction", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("list transactions", err)
	}
	return txs, nil
}

// LockBalance reads the balance row with FOR UPDATE.
func (t *Tx) LockBalance(ctx context.Context, userID int64) (*domain.BalanceRecord, error) {
	rec, err := scanBalance(t.q.QueryRow(ctx,
		"SELECT "+balanceColumns+" FROM balances WHERE user_id = $1 FOR UPDATE", userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundf("balance for user %d", userID)
		}
		return nil, domain.Storage("lock balance", err)
	}
	return rec, nil
}

// SaveBalance writes every component in one statement; total is derived by the
// same statement so it can never lag behind a component.
func (t *Tx) SaveBalance(ctx context.Context, rec *domain.BalanceRecord) error {
	for _, k := range domain.SubBalances {
		if rec.Get(k).IsNegative() {
			return domain.Validationf("%s balance must not be negative", k)
		}
	}
	err := t.q.QueryRow(ctx, `
		UPDATE balances
		SET profit = $2, deposit = $3, bonus = $4, card = $5, credit_score = $6,
		    total = $2 + $3 + $4 + $5, updated_at = NOW()
		WHERE user_id = $1
		RETURNING total, updated_at`,
		rec.UserID, rec.Profit, rec.Deposit, rec.Bonus, rec.Card, rec.CreditScore,
	).Scan(&rec.Total, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotFoundf("balance for user %d", rec.UserID)
		}
		return domain.Storage("save balance", err)
	}
	return nil
}

// AppendTransaction validates the enumerated fields before any SQL runs.
func (t *Tx) AppendTransaction(ctx context.Context, rec *domain.Transaction) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	err := t.q.QueryRow(ctx, `
		INSERT INTO transactions (user_id, type, amount, direction, balance_type, description, position_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		rec.UserID, string(rec.Type), rec.Amount, string(rec.Direction), string(rec.BalanceType),
		rec.Description, rec.PositionID, string(rec.Status),
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return domain.Storage("append transaction", err)
	}
	return nil
}

func (t *Tx) LockPosition(ctx context.Context, positionID int64) (*domain.Position, error) {
	p, err := scanPosition(t.q.QueryRow(ctx,
		"SELECT "+positionColumns+" FROM positions WHERE id = $1 FOR UPDATE", positionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundf("position %d", positionID)
		}
		return nil, domain.Storage("lock position", err)
	}
	return p, nil
}

// InsertPosition assigns p.ID.
func (t *Tx) InsertPosition(ctx context.Context, p *domain.Position) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO positions (user_id, plan_id, kind, principal, rate, duration, status, start_time, total_profit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		p.UserID, p.PlanID, string(p.Kind), p.Principal, p.Rate, p.Duration, string(p.Status), p.StartTime, p.TotalProfit,
	).Scan(&p.ID)
	if err != nil {
		return domain.Storage("insert position", err)
	}
	return nil
}

func (t *Tx) SetPositionStatus(ctx context.Context, positionID int64, status domain.PositionStatus, endTime time.Time) error {
	tag, err := t.q.Exec(ctx,
		"UPDATE positions SET status = $2, end_time = $3 WHERE id = $1",
		positionID, string(status), endTime)
	if err != nil {
		return domain.Storage("set position status", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("position %d", positionID)
	}
	return nil
}

func (t *Tx) AddPositionProfit(ctx context.Context, positionID int64, amount decimal.Decimal) error {
	_, err := t.q.Exec(ctx,
		"UPDATE positions SET total_profit = total_profit + $2 WHERE id = $1",
		positionID, amount)
	if err != nil {
		return domain.Storage("add position profit", err)
	}
	return nil
}

// ListDistributedPeriods returns the set of period indexes already credited.
func (t *Tx) ListDistributedPeriods(ctx context.Context, positionID int64) (map[int]bool, error) {
	rows, err := t.q.Query(ctx, "SELECT period_index FROM profit_distributions WHERE position_id = $1", positionID)
	if err != nil {
		return nil, domain.Storage("list distributions", err)
	}
	defer rows.Close()

	done := make(map[int]bool)
	for rows.Next() {
		var k int
		if err := rows.Scan(&k); err != nil {
			return nil, domain.Storage("scan distribution", err)
		}
		done[k] = true
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("list distributions", err)
	}
	return done, nil
}

// RecordDistribution relies on the (position_id, period) and (position_id, period_index)
// unique constraints. The untargeted ON CONFLICT absorbs a hit on either and keeps the
// surrounding transaction usable when the period is already taken.
func (t *Tx) RecordDistribution(ctx context.Context, d *domain.Distribution) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO profit_distributions (position_id, user_id, period_index, period, amount)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
		RETURNING id, created_at`,
		d.PositionID, d.UserID, d.PeriodIndex, d.Period, d.Amount,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrDuplicatePeriod
		}
		return domain.Storage("record distribution", err)
	}
	return nil
}
