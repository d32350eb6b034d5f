package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/uptownfs/dealflow/internal/domain"
	"github.com/uptownfs/dealflow/internal/testutil"
)

func calculatorSnapshot(decision string) domain.Snapshot {
	return domain.Snapshot{
		Kind: domain.SnapshotKindCalculatorV1,
		Calculator: &domain.CalculatorSnapshot{
			Kind:       domain.SnapshotKindCalculatorV1,
			Evaluation: domain.EvaluationVerdict{Decision: decision},
		},
	}
}

func TestDealCreate_FlagsOverrideOnReject(t *testing.T) {
	svc := NewDealService(testutil.NewMockDealRepository())

	deal, err := svc.Create(consultant, CreateDealInput{
		Title:   "Unit A-101 sale",
		Amount:  decimal.NewFromInt(1_000_000),
		Details: calculatorSnapshot("REJECT"),
	})
	require.NoError(t, err)
	require.True(t, deal.NeedsOverride)

	deal, err = svc.Create(consultant, CreateDealInput{
		Title:   "Unit A-102 sale",
		Amount:  decimal.NewFromInt(900_000),
		Details: calculatorSnapshot("ACCEPT"),
	})
	require.NoError(t, err)
	require.False(t, deal.NeedsOverride)
}

func TestDealApprove_RequiresAcceptOrOverride(t *testing.T) {
	repo := testutil.NewMockDealRepository()
	svc := NewDealService(repo)

	deal, err := svc.Create(consultant, CreateDealInput{
		Title:   "Unit A-101 sale",
		Amount:  decimal.NewFromInt(1_000_000),
		Details: calculatorSnapshot("REJECT"),
	})
	require.NoError(t, err)

	_, err = svc.Submit(consultant, deal.ID)
	require.NoError(t, err)

	// Rejecting evaluation and no override: approval is blocked.
	_, err = svc.Approve(finMgr, deal.ID)
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindInvariantViolated, de.Kind)

	// Only top management may override.
	_, err = svc.ApproveOverride(finMgr, deal.ID)
	de, ok = domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindForbidden, de.Kind)

	_, err = svc.ApproveOverride(topMgmt, deal.ID)
	require.NoError(t, err)

	approved, err := svc.Approve(finMgr, deal.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DealStatusApproved, approved.Status)
	require.NotNil(t, approved.FMReviewAt)
}
