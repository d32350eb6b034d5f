package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uptownfs/dealflow/internal/domain"
)

// UnitRepository implements domain.UnitRepository using PostgreSQL
type UnitRepository struct {
	pool *pgxpool.Pool
}

// NewUnitRepository creates a new UnitRepository
func NewUnitRepository(pool *pgxpool.Pool) *UnitRepository {
	return &UnitRepository{pool: pool}
}

const unitColumns = `id, code, unit_status, available, model_id, total_price, annual_rate_percent, standard_pv, version`

// GetByID retrieves a unit by its ID
func (r *UnitRepository) GetByID(id int64) (*domain.Unit, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE id = $1`, id)
	return scanUnit(row)
}

// GetByCode retrieves a unit by its unique code
func (r *UnitRepository) GetByCode(code string) (*domain.Unit, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE code = $1`, code)
	return scanUnit(row)
}

// ExecuteTransition locks the unit row, runs mutate, and persists the
// result in its own transaction.
func (r *UnitRepository) ExecuteTransition(id int64, mutate func(*domain.Unit) (*domain.Unit, error)) (*domain.Unit, error) {
	ctx := context.Background()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	unit, err := r.executeTransition(ctx, tx, id, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return unit, nil
}

// ExecuteTransitionTx runs the same operation inside a transaction the
// caller already began.
func (r *UnitRepository) ExecuteTransitionTx(txh domain.Tx, id int64, mutate func(*domain.Unit) (*domain.Unit, error)) (*domain.Unit, error) {
	tx, ctx, err := unwrapTx(txh)
	if err != nil {
		return nil, err
	}
	return r.executeTransition(ctx, tx, id, mutate)
}

func (r *UnitRepository) executeTransition(ctx context.Context, q querier, id int64, mutate func(*domain.Unit) (*domain.Unit, error)) (*domain.Unit, error) {
	row := q.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE id = $1 FOR UPDATE`, id)
	unit, err := scanUnit(row)
	if err != nil {
		return nil, err
	}

	updated, err := mutate(unit)
	if err != nil {
		return nil, err
	}
	updated.Version++

	tag, err := q.Exec(ctx, `
		UPDATE units SET unit_status = $2, available = $3, version = $4, updated_at = now()
		WHERE id = $1`,
		updated.ID, string(updated.Status), updated.Available, updated.Version)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrOptimisticLock
	}
	return updated, nil
}

func scanUnit(row pgx.Row) (*domain.Unit, error) {
	unit := &domain.Unit{}
	var status string
	var modelID pgtype.Int8
	var totalPrice, annualRate, standardPV pgtype.Numeric
	if err := row.Scan(&unit.ID, &unit.Code, &status, &unit.Available, &modelID, &totalPrice, &annualRate, &standardPV, &unit.Version); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	unit.Status = domain.UnitStatus(status)
	if modelID.Valid {
		m := modelID.Int64
		unit.ModelID = &m
	}
	if totalPrice.Valid {
		unit.Pricing = &domain.PricingBreakdown{
			TotalPrice:        pgNumericToDecimal(totalPrice),
			AnnualRatePercent: pgNumericToDecimal(annualRate),
			StandardPV:        pgNumericToDecimal(standardPV),
		}
	}
	return unit, nil
}
