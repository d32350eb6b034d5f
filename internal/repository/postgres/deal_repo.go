package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uptownfs/dealflow/internal/domain"
)

// DealRepository implements domain.DealRepository using PostgreSQL
type DealRepository struct {
	pool *pgxpool.Pool
}

// NewDealRepository creates a new DealRepository
func NewDealRepository(pool *pgxpool.Pool) *DealRepository {
	return &DealRepository{pool: pool}
}

const dealColumns = `id, title, amount, status, needs_override, override_approved_at, fm_review_at, created_by, created_at, details, version`

// Create creates a new deal
func (r *DealRepository) Create(d *domain.Deal) (*domain.Deal, error) {
	ctx := context.Background()

	amount, err := decimalToPgNumeric(d.Amount)
	if err != nil {
		return nil, err
	}
	details, err := snapshotToJSON(d.Details)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO deals (title, amount, status, needs_override, created_by, created_at, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+dealColumns,
		d.Title, amount, string(d.Status), d.NeedsOverride, d.CreatedBy, timeToPgTimestamptz(d.CreatedAt), details)
	return scanDeal(row)
}

// GetByID retrieves a deal by its ID
func (r *DealRepository) GetByID(id int64) (*domain.Deal, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id)
	return scanDeal(row)
}

// ExecuteTransition locks the deal row, runs mutate and persists the
// result with its history entry in one serializable transaction.
func (r *DealRepository) ExecuteTransition(id int64, mutate func(*domain.Deal) (*domain.Deal, *domain.HistoryEntry, error)) (*domain.Deal, error) {
	ctx := context.Background()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1 FOR UPDATE`, id)
	deal, err := scanDeal(row)
	if err != nil {
		return nil, err
	}

	updated, entry, err := mutate(deal)
	if err != nil {
		return nil, err
	}
	updated.Version++

	details, err := snapshotToJSON(updated.Details)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE deals SET status = $2, needs_override = $3, override_approved_at = $4, fm_review_at = $5, details = $6, version = $7, updated_at = now()
		WHERE id = $1`,
		updated.ID, string(updated.Status), updated.NeedsOverride,
		timePtrToPgTimestamptz(updated.OverrideApprovedAt), timePtrToPgTimestamptz(updated.FMReviewAt),
		details, updated.Version); err != nil {
		return nil, err
	}

	if err := insertHistory(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func scanDeal(row pgx.Row) (*domain.Deal, error) {
	deal := &domain.Deal{}
	var status string
	var amount pgtype.Numeric
	var overrideApprovedAt, fmReviewAt, createdAt pgtype.Timestamptz
	var details []byte
	if err := row.Scan(&deal.ID, &deal.Title, &amount, &status, &deal.NeedsOverride,
		&overrideApprovedAt, &fmReviewAt, &deal.CreatedBy, &createdAt, &details, &deal.Version); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	deal.Amount = pgNumericToDecimal(amount)
	deal.Status = domain.DealStatus(status)
	deal.OverrideApprovedAt = pgTimestamptzToTimePtr(overrideApprovedAt)
	deal.FMReviewAt = pgTimestamptzToTimePtr(fmReviewAt)
	deal.CreatedAt = createdAt.Time.UTC()
	snapshot, err := snapshotFromJSON(details)
	if err != nil {
		return nil, err
	}
	deal.Details = snapshot
	return deal, nil
}
