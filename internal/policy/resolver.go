// Package policy resolves discount authority and acceptance thresholds
// for the approval state engine.
package policy

import (
	"github.com/shopspring/decimal"

	"github.com/uptownfs/dealflow/internal/domain"
)

// Resolver looks up the active policy, falling back to domain.DefaultPolicy
// when none is configured or the stored row is invalid.
type Resolver struct {
	repo domain.PolicyRepository
}

func NewResolver(repo domain.PolicyRepository) *Resolver {
	return &Resolver{repo: repo}
}

// Active returns the most recently created active global policy, or the
// hardcoded default when absent or invalid (negative/zero policy limit).
func (r *Resolver) Active() (domain.PolicyConfig, error) {
	cfg, err := r.repo.ActiveGlobal()
	if err != nil {
		return domain.PolicyConfig{}, err
	}
	if cfg == nil || !cfg.Active || cfg.PolicyLimitPercent.LessThanOrEqual(decimal.Zero) {
		return domain.DefaultPolicy(), nil
	}
	return *cfg, nil
}

// GenerationAuthority is the hard cap on salesDiscountPercent a role may
// generate a plan with. Exceeding it is a generation-time
// rejection, not an escalation.
func (r *Resolver) GenerationAuthority(role domain.Role) decimal.Decimal {
	return domain.DiscountAuthority(role)
}

// RequiresEscalation reports whether a plan's discount exceeds the active
// policy's soft limit, in which case FM approval must escalate to pending_tm
// instead of transitioning straight to approved.
func (r *Resolver) RequiresEscalation(discountPercent decimal.Decimal, policyConfig domain.PolicyConfig) bool {
	return discountPercent.GreaterThan(policyConfig.PolicyLimitPercent)
}

// WithinGenerationAuthority reports whether a role may generate a plan at
// the given discount at all (hard cap, independent of the soft policy
// limit above).
func (r *Resolver) WithinGenerationAuthority(role domain.Role, discountPercent decimal.Decimal) bool {
	return discountPercent.LessThanOrEqual(r.GenerationAuthority(role))
}
