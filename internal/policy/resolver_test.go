package policy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/uptownfs/dealflow/internal/domain"
)

type fakePolicyRepo struct {
	cfg *domain.PolicyConfig
	err error
}

func (f *fakePolicyRepo) ActiveGlobal() (*domain.PolicyConfig, error) {
	return f.cfg, f.err
}

func TestResolver_Active_FallsBackToDefault(t *testing.T) {
	r := NewResolver(&fakePolicyRepo{cfg: nil})

	cfg, err := r.Active()
	require.NoError(t, err)
	require.True(t, cfg.PolicyLimitPercent.Equal(decimal.NewFromInt(5)))
	require.True(t, cfg.Year1PercentMin.Equal(decimal.NewFromInt(35)))
}

func TestResolver_Active_UsesStoredPolicy(t *testing.T) {
	stored := domain.PolicyConfig{
		Active:             true,
		PolicyLimitPercent: decimal.NewFromInt(10),
		Year1PercentMin:    decimal.NewFromInt(40),
	}
	r := NewResolver(&fakePolicyRepo{cfg: &stored})

	cfg, err := r.Active()
	require.NoError(t, err)
	require.True(t, cfg.PolicyLimitPercent.Equal(decimal.NewFromInt(10)))
}

func TestResolver_RequiresEscalation(t *testing.T) {
	r := NewResolver(&fakePolicyRepo{})
	policyCfg := domain.DefaultPolicy()

	require.True(t, r.RequiresEscalation(decimal.NewFromInt(7), policyCfg))
	require.False(t, r.RequiresEscalation(decimal.NewFromInt(5), policyCfg))
}

func TestResolver_GenerationAuthority(t *testing.T) {
	r := NewResolver(&fakePolicyRepo{})

	require.True(t, r.GenerationAuthority(domain.RolePropertyConsultant).Equal(decimal.NewFromInt(2)))
	require.True(t, r.GenerationAuthority(domain.RoleFinancialManager).Equal(decimal.NewFromInt(5)))

	require.True(t, r.WithinGenerationAuthority(domain.RolePropertyConsultant, decimal.NewFromInt(2)))
	require.False(t, r.WithinGenerationAuthority(domain.RolePropertyConsultant, decimal.NewFromInt(3)))
}
