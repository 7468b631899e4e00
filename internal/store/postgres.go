package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/punchamoorthee/brokerledger/internal/domain"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the Postgres ledger. It is the only code that issues SQL against
// balances, transactions, positions and profit_distributions.
type Store struct {
	queries
	db   DB
	pool *pgxpool.Pool
}

var _ domain.Ledger = (*Store)(nil)

func NewStore(connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := New(pool)
	s.pool = pool
	return s, nil
}

// New wraps an existing connection source.
func New(db DB) *Store {
	return &Store{queries: queries{q: db}, db: db}
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// WithinTx checks out a transaction, runs fn and commits. The transaction is rolled
// back on every other exit path, including a panic in fn.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	pgTx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.Storage("tx begin", err)
	}
	defer pgTx.Rollback(ctx)

	if err := fn(&Tx{queries: queries{q: pgTx}}); err != nil {
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return domain.Storage("tx commit", err)
	}
	return nil
}

// RecalculateTotal rewrites total from its components for one user.
func (s *Store) RecalculateTotal(ctx context.Context, userID int64) (*domain.BalanceRecord, error) {
	row := s.q.QueryRow(ctx, `
		UPDATE balances
		SET total = profit + deposit + bonus + card, updated_at = NOW()
		WHERE user_id = $1
		RETURNING `+balanceColumns, userID)
	rec, err := scanBalance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundf("balance for user %d", userID)
		}
		return nil, domain.Storage("recalculate total", err)
	}
	return rec, nil
}

// RecalculateAll repairs every row whose total drifted.
func (s *Store) RecalculateAll(ctx context.Context) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE balances
		SET total = profit + deposit + bonus + card, updated_at = NOW()
		WHERE total <> profit + deposit + bonus + card`)
	if err != nil {
		return 0, domain.Storage("recalculate all", err)
	}
	return tag.RowsAffected(), nil
}

// CreateBalance inserts the zero-valued record a newly registered user starts with.
func (s *Store) CreateBalance(ctx context.Context, userID int64) error {
	_, err := s.q.Exec(ctx, "INSERT INTO balances (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING", userID)
	if err != nil {
		return domain.Storage("create balance", err)
	}
	return nil
}

// Tx is a Store bound to one open transaction.
type Tx struct {
	queries
}

var _ domain.LedgerTx = (*Tx)(nil)
