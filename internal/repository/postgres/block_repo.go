package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uptownfs/dealflow/internal/domain"
)

// BlockRepository implements domain.BlockRepository using PostgreSQL
type BlockRepository struct {
	pool *pgxpool.Pool
}

// NewBlockRepository creates a new BlockRepository
func NewBlockRepository(pool *pgxpool.Pool) *BlockRepository {
	return &BlockRepository{pool: pool}
}

const blockColumns = `id, unit_id, requested_by, duration_days, reason, status, override_status, blocked_until, extension_count, financial_decision, next_notify_at, version`

// Create creates a new block request
func (r *BlockRepository) Create(b *domain.Block) (*domain.Block, error) {
	ctx := context.Background()

	var decision pgtype.Text
	if b.FinancialDecision != nil {
		decision.String = string(*b.FinancialDecision)
		decision.Valid = true
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO blocks (unit_id, requested_by, duration_days, reason, status, override_status, blocked_until, extension_count, financial_decision, next_notify_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+blockColumns,
		b.UnitID, b.RequestedBy, b.DurationDays, b.Reason, string(b.Status), string(b.OverrideStatus),
		timeToPgTimestamptz(b.BlockedUntil), b.ExtensionCount, decision, timePtrToPgTimestamptz(b.NextNotifyAt))
	return scanBlock(row)
}

// GetByID retrieves a block by its ID
func (r *BlockRepository) GetByID(id int64) (*domain.Block, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `SELECT `+blockColumns+` FROM blocks WHERE id = $1`, id)
	return scanBlock(row)
}

// ActiveForUnit returns the current approved, unexpired block for a
// unit, if any.
func (r *BlockRepository) ActiveForUnit(unitID int64) (*domain.Block, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		SELECT `+blockColumns+` FROM blocks
		WHERE unit_id = $1 AND status = 'approved' AND blocked_until > now()
		ORDER BY blocked_until DESC LIMIT 1`, unitID)
	block, err := scanBlock(row)
	if err == domain.ErrNotFound {
		return nil, nil
	}
	return block, err
}

// ExpiredApproved returns approved blocks whose hold lapsed before now.
func (r *BlockRepository) ExpiredApproved(now time.Time, limit int) ([]*domain.Block, error) {
	ctx := context.Background()
	rows, err := r.pool.Query(ctx, `
		SELECT `+blockColumns+` FROM blocks
		WHERE status = 'approved' AND blocked_until < $1
		ORDER BY blocked_until LIMIT $2`, timeToPgTimestamptz(now), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBlocks(rows)
}

// DueForReminder returns approved blocks whose reminder mark has passed.
func (r *BlockRepository) DueForReminder(now time.Time, limit int) ([]*domain.Block, error) {
	ctx := context.Background()
	rows, err := r.pool.Query(ctx, `
		SELECT `+blockColumns+` FROM blocks
		WHERE status = 'approved' AND next_notify_at IS NOT NULL AND next_notify_at <= $1
		ORDER BY next_notify_at LIMIT $2`, timeToPgTimestamptz(now), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBlocks(rows)
}

// ExecuteTransition locks the block row, runs mutate, persists the
// result and its history entry in one serializable transaction.
func (r *BlockRepository) ExecuteTransition(id int64, mutate func(*domain.Block) (*domain.Block, *domain.HistoryEntry, error)) (*domain.Block, error) {
	ctx := context.Background()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	block, err := r.executeTransition(ctx, tx, id, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return block, nil
}

// ExecuteTransitionTx joins a transaction the caller already began.
func (r *BlockRepository) ExecuteTransitionTx(txh domain.Tx, id int64, mutate func(*domain.Block) (*domain.Block, *domain.HistoryEntry, error)) (*domain.Block, error) {
	tx, ctx, err := unwrapTx(txh)
	if err != nil {
		return nil, err
	}
	return r.executeTransition(ctx, tx, id, mutate)
}

func (r *BlockRepository) executeTransition(ctx context.Context, q querier, id int64, mutate func(*domain.Block) (*domain.Block, *domain.HistoryEntry, error)) (*domain.Block, error) {
	row := q.QueryRow(ctx, `SELECT `+blockColumns+` FROM blocks WHERE id = $1 FOR UPDATE`, id)
	block, err := scanBlock(row)
	if err != nil {
		return nil, err
	}

	updated, entry, err := mutate(block)
	if err != nil {
		return nil, err
	}
	updated.Version++

	var decision pgtype.Text
	if updated.FinancialDecision != nil {
		decision.String = string(*updated.FinancialDecision)
		decision.Valid = true
	}

	if _, err := q.Exec(ctx, `
		UPDATE blocks SET status = $2, override_status = $3, blocked_until = $4, extension_count = $5,
			financial_decision = $6, next_notify_at = $7, version = $8, updated_at = now()
		WHERE id = $1`,
		updated.ID, string(updated.Status), string(updated.OverrideStatus), timeToPgTimestamptz(updated.BlockedUntil),
		updated.ExtensionCount, decision, timePtrToPgTimestamptz(updated.NextNotifyAt), updated.Version); err != nil {
		return nil, err
	}

	if err := insertHistory(ctx, q, entry); err != nil {
		return nil, err
	}
	return updated, nil
}

func scanBlock(row pgx.Row) (*domain.Block, error) {
	block := &domain.Block{}
	var status, overrideStatus string
	var blockedUntil, nextNotifyAt pgtype.Timestamptz
	var decision pgtype.Text
	if err := row.Scan(&block.ID, &block.UnitID, &block.RequestedBy, &block.DurationDays, &block.Reason, &status, &overrideStatus,
		&blockedUntil, &block.ExtensionCount, &decision, &nextNotifyAt, &block.Version); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	block.Status = domain.BlockStatus(status)
	block.OverrideStatus = domain.OverrideStatus(overrideStatus)
	block.BlockedUntil = blockedUntil.Time.UTC()
	block.NextNotifyAt = pgTimestamptzToTimePtr(nextNotifyAt)
	if decision.Valid {
		d := domain.FinancialDecision(decision.String)
		block.FinancialDecision = &d
	}
	return block, nil
}

func scanBlocks(rows pgx.Rows) ([]*domain.Block, error) {
	var blocks []*domain.Block
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, rows.Err()
}
