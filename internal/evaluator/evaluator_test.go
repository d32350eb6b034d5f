package evaluator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/uptownfs/dealflow/internal/domain"
)

func s1Inputs() (StdPlan, Inputs) {
	std := StdPlan{
		TotalPrice:        decimal.NewFromInt(1_000_000),
		AnnualRatePercent: decimal.NewFromInt(12),
		StandardPV:        decimal.NewFromInt(1_000_000),
	}
	in := Inputs{
		SalesDiscountPercent: decimal.Zero,
		DPType:               DPTypePercentage,
		DownPaymentValue:     decimal.NewFromInt(20),
		PlanDurationYears:    4,
		InstallmentFrequency: FrequencyQuarterly,
		HandoverYear:         2,
		SubsequentYears: []SubsequentYear{
			{TotalNominal: decimal.NewFromInt(200_000), Frequency: FrequencyQuarterly},
			{TotalNominal: decimal.NewFromInt(200_000), Frequency: FrequencyQuarterly},
			{TotalNominal: decimal.NewFromInt(200_000), Frequency: FrequencyQuarterly},
			{TotalNominal: decimal.NewFromInt(200_000), Frequency: FrequencyQuarterly},
		},
		Mode: ResolverExplicit,
	}
	return std, in
}

func TestEvaluate_S1HappyPath(t *testing.T) {
	std, in := s1Inputs()
	policy := domain.DefaultPolicy()

	result, err := Evaluate(std, in, policy)
	require.NoError(t, err)

	require.True(t, result.Schedule[0].MonthOffset == 0)
	require.True(t, result.Schedule[0].Amount.Equal(decimal.NewFromInt(200_000)), "down payment should be 20%% of 1,000,000")

	var installments []ScheduleEntry
	for _, e := range result.Schedule {
		if e.Label != "Down Payment" {
			installments = append(installments, e)
		}
	}
	require.Len(t, installments, 16)
	for _, e := range installments {
		require.True(t, e.Amount.Equal(decimal.NewFromInt(50_000)), "each installment should be 50,000, got %s", e.Amount)
	}
	require.Equal(t, 3, installments[0].MonthOffset)
	require.Equal(t, 48, installments[len(installments)-1].MonthOffset)

	require.Equal(t, "ACCEPT", result.Evaluation.Decision)

	for _, c := range result.Evaluation.Conditions {
		if c.Name == "cumulative_y1" {
			require.True(t, c.Actual.GreaterThanOrEqual(decimal.NewFromInt(35)))
		}
	}
}

func TestEvaluate_Purity(t *testing.T) {
	std, in := s1Inputs()
	policy := domain.DefaultPolicy()

	r1, err := Evaluate(std, in, policy)
	require.NoError(t, err)
	r2, err := Evaluate(std, in, policy)
	require.NoError(t, err)

	require.Equal(t, r1, r2)
}

func TestEvaluate_RoundTripDiscountZeroDefaults(t *testing.T) {
	std, in := s1Inputs()
	policy := domain.DefaultPolicy()

	result, err := Evaluate(std, in, policy)
	require.NoError(t, err)

	var pvCondition ConditionResult
	for _, c := range result.Evaluation.Conditions {
		if c.Name == "present_value" {
			pvCondition = c
		}
	}
	require.True(t, pvCondition.Pass, "discount=0 plan at defaults should clear the PV condition")
}

func TestEvaluate_InvalidFrequency(t *testing.T) {
	std, in := s1Inputs()
	in.InstallmentFrequency = "fortnightly"
	policy := domain.DefaultPolicy()

	_, err := Evaluate(std, in, policy)
	require.Error(t, err)
	derr, ok := domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindInvalidInput, derr.Kind)
}

func TestEvaluate_PlanDurationOutOfRange(t *testing.T) {
	std, in := s1Inputs()
	in.PlanDurationYears = 13
	policy := domain.DefaultPolicy()

	_, err := Evaluate(std, in, policy)
	require.Error(t, err)
}

func TestEvaluate_PolicyEscalationThresholdIndependentOfEvaluator(t *testing.T) {
	// The evaluator itself never escalates; it only scores PV/cumulative
	// conditions. Escalation against policyLimitPercent is the approval
	// engine's job. This test documents the boundary: a high discount
	// still produces a schedule and a verdict, just against a smaller DP.
	std, in := s1Inputs()
	in.SalesDiscountPercent = decimal.NewFromInt(7)
	policy := domain.DefaultPolicy()

	result, err := Evaluate(std, in, policy)
	require.NoError(t, err)
	require.NotEqual(t, decimal.NewFromInt(200_000), result.Schedule[0].Amount)
}

func TestBuildSchedule_SplitFirstYearStartsSubsequentAtYear2(t *testing.T) {
	std, in := s1Inputs()
	in.SplitFirstYearPayments = true
	in.FirstYearPayments = []FirstYearPayment{
		{MonthOffset: 1, Type: FirstYearPaymentDP, Amount: decimal.NewFromInt(100_000)},
	}
	in.SubsequentYears = []SubsequentYear{
		{TotalNominal: decimal.NewFromInt(120_000), Frequency: FrequencyMonthly},
	}

	entries := BuildSchedule(std, in)
	var found bool
	for _, e := range entries {
		if e.Label == "Year 2 Installment" {
			found = true
			require.Equal(t, 13, e.MonthOffset)
		}
	}
	require.True(t, found)
}

func TestBuildSchedule_MaintenanceMonthFallback(t *testing.T) {
	std, in := s1Inputs()
	in.HandoverYear = 0
	in.AdditionalHandoverPayment = decimal.Zero
	in.Maintenance = MaintenanceDeposit{Amount: decimal.NewFromInt(5_000)}

	entries := BuildSchedule(std, in)
	var maintenance *ScheduleEntry
	for i := range entries {
		if entries[i].Label == "Maintenance Deposit" {
			maintenance = &entries[i]
		}
		require.NotEqual(t, "Handover Payment", entries[i].Label, "handover entry must be skipped when handoverYear is unset")
	}
	require.NotNil(t, maintenance)
	require.Equal(t, 12, maintenance.MonthOffset)
	require.True(t, maintenance.ExcludedFromPV)
}

func TestExplain_AcceptReturnsNoLines(t *testing.T) {
	std, in := s1Inputs()
	policy := domain.DefaultPolicy()
	result, err := Evaluate(std, in, policy)
	require.NoError(t, err)
	require.Equal(t, "ACCEPT", result.Evaluation.Decision)
	require.Empty(t, Explain(result))
}

func TestExplain_RejectListsFailingConditions(t *testing.T) {
	std, in := s1Inputs()
	// Back-loaded plan: 1% down, the rest in equal annual payments, so
	// the first-year cumulative lands well under the 35% floor.
	in.DownPaymentValue = decimal.NewFromInt(1)
	in.SubsequentYears = []SubsequentYear{
		{TotalNominal: decimal.NewFromInt(247_500), Frequency: FrequencyAnnually},
		{TotalNominal: decimal.NewFromInt(247_500), Frequency: FrequencyAnnually},
		{TotalNominal: decimal.NewFromInt(247_500), Frequency: FrequencyAnnually},
		{TotalNominal: decimal.NewFromInt(247_500), Frequency: FrequencyAnnually},
	}
	policy := domain.DefaultPolicy()

	result, err := Evaluate(std, in, policy)
	require.NoError(t, err)
	require.Equal(t, "REJECT", result.Evaluation.Decision)
	require.NotEmpty(t, Explain(result))
}
