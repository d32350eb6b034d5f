package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uptownfs/dealflow/internal/domain"
)

// Transactor implements domain.Transactor on a pgx connection pool.
// Every transaction it begins is serializable: state transitions re-read
// rows with FOR UPDATE inside it, so conflicting writers queue on the
// row lock rather than interleave.
type Transactor struct {
	pool *pgxpool.Pool
}

// NewTransactor creates a new Transactor.
func NewTransactor(pool *pgxpool.Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin starts a serializable transaction.
func (t *Transactor) Begin() (domain.Tx, error) {
	ctx := context.Background()
	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, err
	}
	return &pgxTxHandle{tx: tx, ctx: ctx}, nil
}

// pgxTxHandle wraps a pgx.Tx behind the opaque domain.Tx interface.
type pgxTxHandle struct {
	tx  pgx.Tx
	ctx context.Context
}

func (h *pgxTxHandle) Commit() error {
	return h.tx.Commit(h.ctx)
}

func (h *pgxTxHandle) Rollback() error {
	return h.tx.Rollback(h.ctx)
}

// unwrapTx recovers the pgx.Tx from a domain.Tx handed back to a
// repository's *Tx method.
func unwrapTx(tx domain.Tx) (pgx.Tx, context.Context, error) {
	h, ok := tx.(*pgxTxHandle)
	if !ok {
		return nil, nil, domain.NewError(domain.KindInternal, "invalid transaction type")
	}
	return h.tx, h.ctx, nil
}

// querier is the subset of pgx both a pool and a transaction satisfy,
// letting one query implementation serve the plain and the *Tx entry
// points.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
