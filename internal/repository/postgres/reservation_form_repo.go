package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uptownfs/dealflow/internal/domain"
)

// ReservationFormRepository implements domain.ReservationFormRepository
// using PostgreSQL
type ReservationFormRepository struct {
	pool *pgxpool.Pool
}

// NewReservationFormRepository creates a new ReservationFormRepository
func NewReservationFormRepository(pool *pgxpool.Pool) *ReservationFormRepository {
	return &ReservationFormRepository{pool: pool}
}

const rfColumns = `id, payment_plan_id, unit_id, reservation_date, preliminary_payment, status, details, version`

// Create creates a new reservation form
func (r *ReservationFormRepository) Create(rf *domain.ReservationForm) (*domain.ReservationForm, error) {
	ctx := context.Background()

	payment, err := decimalToPgNumeric(rf.PreliminaryPayment)
	if err != nil {
		return nil, err
	}
	details, err := json.Marshal(rf.Details)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO reservation_forms (payment_plan_id, unit_id, reservation_date, preliminary_payment, status, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+rfColumns,
		rf.PaymentPlanID, rf.UnitID, timeToPgTimestamptz(rf.ReservationDate), payment, string(rf.Status), details)
	return scanReservationForm(row)
}

// GetByID retrieves a reservation form by its ID
func (r *ReservationFormRepository) GetByID(id int64) (*domain.ReservationForm, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `SELECT `+rfColumns+` FROM reservation_forms WHERE id = $1`, id)
	return scanReservationForm(row)
}

// ExistingForPlan returns any pending or approved reservation for the
// given plan.
func (r *ReservationFormRepository) ExistingForPlan(planID int64) (*domain.ReservationForm, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		SELECT `+rfColumns+` FROM reservation_forms
		WHERE payment_plan_id = $1 AND status IN ('pending_approval', 'approved')
		ORDER BY id DESC LIMIT 1`, planID)
	rf, err := scanReservationForm(row)
	if err == domain.ErrNotFound {
		return nil, nil
	}
	return rf, err
}

// ExecuteTransition locks the reservation row, runs mutate and persists
// the result with its history entry in one serializable transaction.
func (r *ReservationFormRepository) ExecuteTransition(id int64, mutate func(*domain.ReservationForm) (*domain.ReservationForm, *domain.HistoryEntry, error)) (*domain.ReservationForm, error) {
	ctx := context.Background()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rf, err := r.executeTransition(ctx, tx, id, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rf, nil
}

// ExecuteTransitionTx joins a transaction the caller already began.
func (r *ReservationFormRepository) ExecuteTransitionTx(txh domain.Tx, id int64, mutate func(*domain.ReservationForm) (*domain.ReservationForm, *domain.HistoryEntry, error)) (*domain.ReservationForm, error) {
	tx, ctx, err := unwrapTx(txh)
	if err != nil {
		return nil, err
	}
	return r.executeTransition(ctx, tx, id, mutate)
}

func (r *ReservationFormRepository) executeTransition(ctx context.Context, q querier, id int64, mutate func(*domain.ReservationForm) (*domain.ReservationForm, *domain.HistoryEntry, error)) (*domain.ReservationForm, error) {
	row := q.QueryRow(ctx, `SELECT `+rfColumns+` FROM reservation_forms WHERE id = $1 FOR UPDATE`, id)
	rf, err := scanReservationForm(row)
	if err != nil {
		return nil, err
	}

	updated, entry, err := mutate(rf)
	if err != nil {
		return nil, err
	}
	updated.Version++

	payment, err := decimalToPgNumeric(updated.PreliminaryPayment)
	if err != nil {
		return nil, err
	}
	details, err := json.Marshal(updated.Details)
	if err != nil {
		return nil, err
	}

	if _, err := q.Exec(ctx, `
		UPDATE reservation_forms SET reservation_date = $2, preliminary_payment = $3, status = $4, details = $5, version = $6, updated_at = now()
		WHERE id = $1`,
		updated.ID, timeToPgTimestamptz(updated.ReservationDate), payment, string(updated.Status), details, updated.Version); err != nil {
		return nil, err
	}

	if err := insertHistory(ctx, q, entry); err != nil {
		return nil, err
	}
	return updated, nil
}

func scanReservationForm(row pgx.Row) (*domain.ReservationForm, error) {
	rf := &domain.ReservationForm{}
	var status string
	var reservationDate pgtype.Timestamptz
	var payment pgtype.Numeric
	var details []byte
	if err := row.Scan(&rf.ID, &rf.PaymentPlanID, &rf.UnitID, &reservationDate, &payment, &status, &details, &rf.Version); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	rf.ReservationDate = reservationDate.Time.UTC()
	rf.PreliminaryPayment = pgNumericToDecimal(payment)
	rf.Status = domain.ReservationStatus(status)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &rf.Details); err != nil {
			return nil, err
		}
	}
	return rf, nil
}
