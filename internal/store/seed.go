package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/brokerledger/internal/domain"
	"github.com/shopspring/decimal"
)

// SeedBalances bulk-loads users firstID..firstID+count-1 with a deposit. Users that
// already have a balance row are left alone. Every funded user gets the matching
// admin_funding ledger row, copied in the same transaction as the balances.
func (s *Store) SeedBalances(ctx context.Context, firstID, count int64, deposit decimal.Decimal) (int64, error) {
	if count <= 0 {
		return 0, nil
	}
	deposit = deposit.Round(domain.AmountScale)

	pgTx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, domain.Storage("tx begin", err)
	}
	defer pgTx.Rollback(ctx)

	existing, err := existingUsers(ctx, pgTx, firstID, firstID+count-1)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	balanceRows := make([][]any, 0, count)
	ledgerRows := make([][]any, 0, count)
	for id := firstID; id < firstID+count; id++ {
		if existing[id] {
			continue
		}
		balanceRows = append(balanceRows, []any{id, deposit, deposit, now})
		if deposit.IsPositive() {
			ledgerRows = append(ledgerRows, []any{
				id, string(domain.TxAdminFunding), deposit, string(domain.Credit),
				string(domain.SubBalanceDeposit), "Seed funding", string(domain.TxCompleted), now,
			})
		}
	}
	if len(balanceRows) == 0 {
		return 0, nil
	}

	n, err := pgTx.CopyFrom(ctx,
		pgx.Identifier{"balances"},
		[]string{"user_id", "deposit", "total", "updated_at"},
		pgx.CopyFromRows(balanceRows),
	)
	if err != nil {
		return 0, domain.Storage("copy balances", err)
	}

	if len(ledgerRows) > 0 {
		_, err = pgTx.CopyFrom(ctx,
			pgx.Identifier{"transactions"},
			[]string{"user_id", "type", "amount", "direction", "balance_type", "description", "status", "created_at"},
			pgx.CopyFromRows(ledgerRows),
		)
		if err != nil {
			return 0, domain.Storage("copy seed transactions", err)
		}
	}

	if err := pgTx.Commit(ctx); err != nil {
		return 0, domain.Storage("tx commit", err)
	}
	return n, nil
}

func existingUsers(ctx context.Context, q querier, from, to int64) (map[int64]bool, error) {
	rows, err := q.Query(ctx, "SELECT user_id FROM balances WHERE user_id BETWEEN $1 AND $2", from, to)
	if err != nil {
		return nil, domain.Storage("list seeded users", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, domain.Storage("scan user id", err)
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("list seeded users", err)
	}
	return ids, nil
}

// UpsertPlan inserts a plan or refreshes the terms of the plan with the same name.
func (s *Store) UpsertPlan(ctx context.Context, p *domain.Plan) error {
	err := s.q.QueryRow(ctx, `
		INSERT INTO plans (name, kind, min_amount, max_amount, rate, duration, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name) DO UPDATE SET
			kind = EXCLUDED.kind, min_amount = EXCLUDED.min_amount, max_amount = EXCLUDED.max_amount,
			rate = EXCLUDED.rate, duration = EXCLUDED.duration, is_active = EXCLUDED.is_active
		RETURNING id`,
		p.Name, string(p.Kind), p.MinAmount, p.MaxAmount, p.Rate, p.Duration, p.IsActive,
	).Scan(&p.ID)
	if err != nil {
		return domain.Storage("upsert plan", err)
	}
	return nil
}
