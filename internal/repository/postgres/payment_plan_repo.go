package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uptownfs/dealflow/internal/domain"
)

// PaymentPlanRepository implements domain.PaymentPlanRepository using
// PostgreSQL
type PaymentPlanRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentPlanRepository creates a new PaymentPlanRepository
func NewPaymentPlanRepository(pool *pgxpool.Pool) *PaymentPlanRepository {
	return &PaymentPlanRepository{pool: pool}
}

const planColumns = `id, deal_id, details, created_by, status, accepted, version, discount_percent`

// Create creates a new payment plan
func (r *PaymentPlanRepository) Create(p *domain.PaymentPlan) (*domain.PaymentPlan, error) {
	ctx := context.Background()

	details, err := snapshotToJSON(p.Details)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO payment_plans (deal_id, details, created_by, status, accepted, version, discount_percent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+planColumns,
		p.DealID, details, p.CreatedBy, string(p.Status), p.Accepted, p.Version, p.DiscountPercent)
	return scanPlan(row)
}

// GetByID retrieves a payment plan by its ID
func (r *PaymentPlanRepository) GetByID(id int64) (*domain.PaymentPlan, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM payment_plans WHERE id = $1`, id)
	return scanPlan(row)
}

// ListByDeal returns every plan belonging to a deal.
func (r *PaymentPlanRepository) ListByDeal(dealID int64) ([]*domain.PaymentPlan, error) {
	ctx := context.Background()
	rows, err := r.pool.Query(ctx, `SELECT `+planColumns+` FROM payment_plans WHERE deal_id = $1 ORDER BY version`, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPlans(rows)
}

// ListByQueue returns the plans waiting in one approval stage.
func (r *PaymentPlanRepository) ListByQueue(status domain.PaymentPlanStatus) ([]*domain.PaymentPlan, error) {
	ctx := context.Background()
	rows, err := r.pool.Query(ctx, `SELECT `+planColumns+` FROM payment_plans WHERE status = $1 ORDER BY id`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPlans(rows)
}

// ExecuteTransition locks the plan row, runs mutate and persists the
// result with its history entry. If mutate marked the plan accepted, the
// Accepted flag is cleared on every sibling plan of the same deal inside
// the same transaction, keeping at most one accepted plan per deal.
func (r *PaymentPlanRepository) ExecuteTransition(id int64, mutate func(*domain.PaymentPlan) (*domain.PaymentPlan, *domain.HistoryEntry, error)) (*domain.PaymentPlan, error) {
	ctx := context.Background()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+planColumns+` FROM payment_plans WHERE id = $1 FOR UPDATE`, id)
	plan, err := scanPlan(row)
	if err != nil {
		return nil, err
	}
	wasAccepted := plan.Accepted

	updated, entry, err := mutate(plan)
	if err != nil {
		return nil, err
	}
	updated.Version = plan.Version

	if updated.Accepted && !wasAccepted {
		if _, err := tx.Exec(ctx, `
			UPDATE payment_plans SET accepted = false, updated_at = now()
			WHERE deal_id = $1 AND id <> $2 AND accepted`, updated.DealID, updated.ID); err != nil {
			return nil, err
		}
	}

	details, err := snapshotToJSON(updated.Details)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE payment_plans SET details = $2, status = $3, accepted = $4, updated_at = now()
		WHERE id = $1`,
		updated.ID, details, string(updated.Status), updated.Accepted); err != nil {
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

func scanPlan(row pgx.Row) (*domain.PaymentPlan, error) {
	plan := &domain.PaymentPlan{}
	var status string
	var details []byte
	if err := row.Scan(&plan.ID, &plan.DealID, &details, &plan.CreatedBy, &status, &plan.Accepted, &plan.Version, &plan.DiscountPercent); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	plan.Status = domain.PaymentPlanStatus(status)
	snapshot, err := snapshotFromJSON(details)
	if err != nil {
		return nil, err
	}
	plan.Details = snapshot
	return plan, nil
}

func scanPlans(rows pgx.Rows) ([]*domain.PaymentPlan, error) {
	var plans []*domain.PaymentPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}
