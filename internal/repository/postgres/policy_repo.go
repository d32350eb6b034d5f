package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/uptownfs/dealflow/internal/domain"
)

// PolicyRepository implements domain.PolicyRepository using PostgreSQL
type PolicyRepository struct {
	pool *pgxpool.Pool
}

// NewPolicyRepository creates a new PolicyRepository
func NewPolicyRepository(pool *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{pool: pool}
}

// ActiveGlobal returns the most recently created active global policy,
// or (nil, nil) if none exists.
func (r *PolicyRepository) ActiveGlobal() (*domain.PolicyConfig, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		SELECT id, scope_type, active, policy_limit_percent, pv_tolerance_percent,
			year_1_percent_min, year_1_percent_max,
			year_2_percent_min, year_2_percent_max,
			year_3_percent_min, year_3_percent_max,
			handover_percent_min, handover_percent_max,
			extract(epoch from created_at)::bigint
		FROM policy_configs
		WHERE scope_type = 'global' AND active
		ORDER BY created_at DESC LIMIT 1`)

	cfg := &domain.PolicyConfig{}
	var policyLimit, pvTolerance, y1Min, y2Min, y3Min, handoverMin pgtype.Numeric
	var y1Max, y2Max, y3Max, handoverMax pgtype.Numeric
	if err := row.Scan(&cfg.ID, &cfg.ScopeType, &cfg.Active, &policyLimit, &pvTolerance,
		&y1Min, &y1Max, &y2Min, &y2Max, &y3Min, &y3Max, &handoverMin, &handoverMax, &cfg.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	cfg.PolicyLimitPercent = pgNumericToDecimal(policyLimit)
	cfg.PVTolerancePercent = pgNumericToDecimal(pvTolerance)
	cfg.Year1PercentMin = pgNumericToDecimal(y1Min)
	cfg.Year1PercentMax = optionalPercent(y1Max)
	cfg.Year2PercentMin = pgNumericToDecimal(y2Min)
	cfg.Year2PercentMax = optionalPercent(y2Max)
	cfg.Year3PercentMin = pgNumericToDecimal(y3Min)
	cfg.Year3PercentMax = optionalPercent(y3Max)
	cfg.HandoverPercentMin = pgNumericToDecimal(handoverMin)
	cfg.HandoverPercentMax = optionalPercent(handoverMax)
	return cfg, nil
}

func optionalPercent(n pgtype.Numeric) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := pgNumericToDecimal(n)
	return &d
}
