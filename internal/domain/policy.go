package domain

import "github.com/shopspring/decimal"

// PolicyConfig is a singleton-per-scope row. The active
// policy is the most recently created scope_type=global, active=true row;
// absent/invalid falls back to DefaultPolicy().
type PolicyConfig struct {
	ID                     int64
	ScopeType              string
	Active                 bool
	PolicyLimitPercent     decimal.Decimal
	PVTolerancePercent     decimal.Decimal
	Year1PercentMin        decimal.Decimal
	Year1PercentMax        *decimal.Decimal
	Year2PercentMin        decimal.Decimal
	Year2PercentMax        *decimal.Decimal
	Year3PercentMin        decimal.Decimal
	Year3PercentMax        *decimal.Decimal
	HandoverPercentMin     decimal.Decimal
	HandoverPercentMax     *decimal.Decimal
	CreatedAt              int64 // unix seconds, used to pick "most recent"
}

// DefaultPolicy returns the hardcoded fallback thresholds: Y1>=35%, Y2>=50%, Y3>=65%, handover>=65%, pvTolerance=100%,
// policy limit 5%, no ceilings.
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		ScopeType:          "global",
		Active:             true,
		PolicyLimitPercent: decimal.NewFromInt(5),
		PVTolerancePercent: decimal.NewFromInt(100),
		Year1PercentMin:    decimal.NewFromInt(35),
		Year2PercentMin:    decimal.NewFromInt(50),
		Year3PercentMin:    decimal.NewFromInt(65),
		HandoverPercentMin: decimal.NewFromInt(65),
	}
}

type PolicyRepository interface {
	// ActiveGlobal returns the most recently created active global
	// policy, or (nil, nil) if none exists.
	ActiveGlobal() (*PolicyConfig, error)
}

// DiscountAuthority is the hard cap on salesDiscountPercent a given role
// may generate a plan with: consultant 2%, FM 5%. Anything
// above is rejected at generation time, not merely escalated.
func DiscountAuthority(role Role) decimal.Decimal {
	switch role {
	case RolePropertyConsultant:
		return decimal.NewFromInt(2)
	case RoleFinancialManager, RoleFinancialAdmin, RoleAdmin:
		return decimal.NewFromInt(5)
	default:
		return decimal.NewFromInt(5)
	}
}
