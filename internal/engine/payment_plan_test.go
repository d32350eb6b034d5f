package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/uptownfs/dealflow/internal/domain"
	"github.com/uptownfs/dealflow/internal/notify"
	"github.com/uptownfs/dealflow/internal/policy"
	"github.com/uptownfs/dealflow/internal/testutil"
)

func newPlanService(t *testing.T) (*PaymentPlanService, *testutil.MockPaymentPlanRepository, *testutil.MockDealRepository, *testutil.CaptureSink) {
	t.Helper()
	planRepo := testutil.NewMockPaymentPlanRepository()
	dealRepo := testutil.NewMockDealRepository()
	sink := &testutil.CaptureSink{}
	resolver := policy.NewResolver(&testutil.MockPolicyRepository{})
	return NewPaymentPlanService(planRepo, dealRepo, resolver, sink), planRepo, dealRepo, sink
}

func seedDeal(t *testing.T, dealRepo *testutil.MockDealRepository) *domain.Deal {
	t.Helper()
	deal, err := dealRepo.Create(&domain.Deal{Title: "Unit A-101 sale", Amount: decimal.NewFromInt(1_000_000), Status: domain.DealStatusDraft, CreatedBy: "consultant-1"})
	require.NoError(t, err)
	return deal
}

var (
	consultant = domain.Principal{UserID: "consultant-1", Role: domain.RolePropertyConsultant}
	salesMgr   = domain.Principal{UserID: "sm-1", Role: domain.RoleSalesManager}
	finMgr     = domain.Principal{UserID: "fm-1", Role: domain.RoleFinancialManager}
	topMgmt    = domain.Principal{UserID: "tm-1", Role: domain.RoleTopManagement}
)

func TestPaymentPlanCreate_RoutesByRole(t *testing.T) {
	svc, _, dealRepo, _ := newPlanService(t)
	deal := seedDeal(t, dealRepo)

	plan, err := svc.Create(consultant, CreatePlanInput{DealID: deal.ID, DiscountPercent: decimal.NewFromInt(1)})
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPlanPendingSM, plan.Status)

	plan, err = svc.Create(finMgr, CreatePlanInput{DealID: deal.ID, DiscountPercent: decimal.NewFromInt(3)})
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPlanPendingFM, plan.Status)
	require.Equal(t, 2, plan.Version)
}

func TestPaymentPlanCreate_DiscountAuthorityHardCap(t *testing.T) {
	svc, _, dealRepo, _ := newPlanService(t)
	deal := seedDeal(t, dealRepo)

	_, err := svc.Create(consultant, CreatePlanInput{DealID: deal.ID, DiscountPercent: decimal.NewFromInt(3)})
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindForbidden, de.Kind)

	_, err = svc.Create(finMgr, CreatePlanInput{DealID: deal.ID, DiscountPercent: decimal.NewFromInt(6)})
	de, ok = domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindForbidden, de.Kind)
}

func TestPaymentPlanApprove_FullChain(t *testing.T) {
	svc, _, dealRepo, _ := newPlanService(t)
	deal := seedDeal(t, dealRepo)

	plan, err := svc.Create(consultant, CreatePlanInput{DealID: deal.ID, DiscountPercent: decimal.NewFromInt(1)})
	require.NoError(t, err)

	plan, err = svc.ApproveSM(salesMgr, plan.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPlanPendingFM, plan.Status)

	result, err := svc.ApproveFM(finMgr, plan.ID)
	require.NoError(t, err)
	require.False(t, result.Escalated)
	require.Equal(t, domain.PaymentPlanApproved, result.Plan.Status)
}

func TestPaymentPlanApproveFM_EscalatesOverPolicyLimit(t *testing.T) {
	svc, planRepo, dealRepo, sink := newPlanService(t)
	deal := seedDeal(t, dealRepo)

	admin := domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin}
	plan, err := svc.Create(admin, CreatePlanInput{DealID: deal.ID, DiscountPercent: decimal.NewFromInt(5)})
	require.NoError(t, err)

	// No role may generate a plan above 5%, so the 7% discount is written
	// through the repository directly.
	planRepo.Plans[plan.ID].DiscountPercent = 7

	result, err := svc.ApproveFM(finMgr, plan.ID)
	require.NoError(t, err)
	require.True(t, result.Escalated)
	require.Equal(t, domain.PaymentPlanPendingTM, result.Plan.Status)
	require.True(t, result.PolicyLimitPercent.Equal(decimal.NewFromInt(5)))
	require.Contains(t, sink.Types(), "payment_plan.escalated")

	// TM completes the escalated chain.
	final, err := svc.ApproveTM(topMgmt, plan.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPlanApproved, final.Status)
}

func TestPaymentPlanReject_PerStageRoleGate(t *testing.T) {
	svc, _, dealRepo, _ := newPlanService(t)
	deal := seedDeal(t, dealRepo)

	plan, err := svc.Create(consultant, CreatePlanInput{DealID: deal.ID})
	require.NoError(t, err)

	// FM may not reject out of the SM queue.
	_, err = svc.Reject(finMgr, plan.ID)
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindForbidden, de.Kind)

	rejected, err := svc.Reject(salesMgr, plan.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPlanRejected, rejected.Status)

	// Terminal states admit no further transitions.
	_, err = svc.Reject(salesMgr, plan.ID)
	de, ok = domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindStateMismatch, de.Kind)
}

func TestPaymentPlanReject_PhrasesFrozenEvaluationReasons(t *testing.T) {
	svc, _, dealRepo, sink := newPlanService(t)
	deal := seedDeal(t, dealRepo)

	details := domain.Snapshot{
		Kind: domain.SnapshotKindCalculatorV1,
		Calculator: &domain.CalculatorSnapshot{
			Kind: domain.SnapshotKindCalculatorV1,
			Evaluation: domain.EvaluationVerdict{
				Decision: "REJECT",
				Reasons:  []string{"cumulative_y1: 25.75% is below the required minimum"},
			},
		},
	}
	plan, err := svc.Create(consultant, CreatePlanInput{DealID: deal.ID, Details: details})
	require.NoError(t, err)

	_, err = svc.Reject(salesMgr, plan.ID)
	require.NoError(t, err)

	var rejected *notify.Event
	for i := range sink.Events {
		if sink.Events[i].Type == "payment_plan.rejected" {
			rejected = &sink.Events[i]
		}
	}
	require.NotNil(t, rejected)
	require.Contains(t, rejected.Message, "cumulative_y1")
}

func TestPaymentPlanMarkAccepted_ClearsSiblings(t *testing.T) {
	svc, planRepo, dealRepo, _ := newPlanService(t)
	deal := seedDeal(t, dealRepo)

	first, err := svc.Create(finMgr, CreatePlanInput{DealID: deal.ID})
	require.NoError(t, err)
	second, err := svc.Create(finMgr, CreatePlanInput{DealID: deal.ID})
	require.NoError(t, err)

	planRepo.Plans[first.ID].Status = domain.PaymentPlanApproved
	planRepo.Plans[second.ID].Status = domain.PaymentPlanApproved

	_, err = svc.MarkAccepted(finMgr, first.ID)
	require.NoError(t, err)
	_, err = svc.MarkAccepted(finMgr, second.ID)
	require.NoError(t, err)

	accepted := 0
	for _, p := range planRepo.Plans {
		if p.Accepted {
			accepted++
			require.Equal(t, second.ID, p.ID)
		}
	}
	require.Equal(t, 1, accepted)
}

func TestPaymentPlanQueue_RoleGated(t *testing.T) {
	svc, _, dealRepo, _ := newPlanService(t)
	deal := seedDeal(t, dealRepo)

	_, err := svc.Create(consultant, CreatePlanInput{DealID: deal.ID})
	require.NoError(t, err)

	plans, err := svc.Queue(salesMgr, "sm")
	require.NoError(t, err)
	require.Len(t, plans, 1)

	_, err = svc.Queue(consultant, "sm")
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindForbidden, de.Kind)
}
