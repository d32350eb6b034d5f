package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/uptownfs/dealflow/internal/coordinator"
	"github.com/uptownfs/dealflow/internal/domain"
	"github.com/uptownfs/dealflow/internal/testutil"
)

var finAdmin = domain.Principal{UserID: "fa-1", Role: domain.RoleFinancialAdmin}

type reservationFixture struct {
	svc       *ReservationService
	rfRepo    *testutil.MockReservationFormRepository
	unitRepo  *testutil.MockUnitRepository
	planRepo  *testutil.MockPaymentPlanRepository
	blockRepo *testutil.MockBlockRepository
	sink      *testutil.CaptureSink
}

func newReservationFixture(t *testing.T) *reservationFixture {
	t.Helper()
	dealRepo := testutil.NewMockDealRepository()
	planRepo := testutil.NewMockPaymentPlanRepository()
	unitRepo := testutil.NewMockUnitRepository()
	blockRepo := testutil.NewMockBlockRepository()
	rfRepo := testutil.NewMockReservationFormRepository()
	sink := &testutil.CaptureSink{}
	gates := coordinator.NewGates(dealRepo, planRepo, unitRepo, blockRepo, rfRepo)
	svc := NewReservationService(&testutil.MockTransactor{}, rfRepo, unitRepo, gates, sink)
	return &reservationFixture{svc: svc, rfRepo: rfRepo, unitRepo: unitRepo, planRepo: planRepo, blockRepo: blockRepo, sink: sink}
}

// seedGate sets up an approved plan on a blocked unit with an active
// block, the state every reservation creation requires.
func (f *reservationFixture) seedGate(t *testing.T) (planID, unitID int64) {
	t.Helper()
	plan, err := f.planRepo.Create(&domain.PaymentPlan{DealID: 1, Status: domain.PaymentPlanApproved, Version: 1})
	require.NoError(t, err)

	f.unitRepo.Units[1] = &domain.Unit{ID: 1, Code: "A-101", Status: domain.UnitStatusBlocked, Available: false}

	_, err = f.blockRepo.Create(&domain.Block{
		UnitID:       1,
		Status:       domain.BlockStatusApproved,
		BlockedUntil: time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	return plan.ID, 1
}

func reservationInput(planID, unitID int64) CreateReservationInput {
	return CreateReservationInput{
		PaymentPlanID:      planID,
		UnitID:             unitID,
		ReservationDate:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		PreliminaryPayment: decimal.NewFromInt(50_000),
	}
}

func TestReservationCreate_GatePasses(t *testing.T) {
	f := newReservationFixture(t)
	planID, unitID := f.seedGate(t)

	rf, err := f.svc.Create(finAdmin, reservationInput(planID, unitID))
	require.NoError(t, err)
	require.Equal(t, domain.ReservationPendingApproval, rf.Status)
	require.Contains(t, f.sink.Types(), "reservation_form.submitted")
}

func TestReservationCreate_RejectsAvailableUnit(t *testing.T) {
	f := newReservationFixture(t)
	planID, unitID := f.seedGate(t)

	// Unit back to AVAILABLE: the gate must fail even though the plan is
	// approved.
	f.unitRepo.Units[unitID].Status = domain.UnitStatusAvailable
	f.unitRepo.Units[unitID].Available = true

	_, err := f.svc.Create(finAdmin, reservationInput(planID, unitID))
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindInvariantViolated, de.Kind)
	require.Equal(t, "Reservation forms can only be created for units that are currently BLOCKED", de.Message)
}

func TestReservationCreate_RejectsUnapprovedPlan(t *testing.T) {
	f := newReservationFixture(t)
	planID, unitID := f.seedGate(t)
	f.planRepo.Plans[planID].Status = domain.PaymentPlanPendingFM

	_, err := f.svc.Create(finAdmin, reservationInput(planID, unitID))
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindInvariantViolated, de.Kind)
}

func TestReservationCreate_RejectsDuplicateForPlan(t *testing.T) {
	f := newReservationFixture(t)
	planID, unitID := f.seedGate(t)

	_, err := f.svc.Create(finAdmin, reservationInput(planID, unitID))
	require.NoError(t, err)

	_, err = f.svc.Create(finAdmin, reservationInput(planID, unitID))
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindInvariantViolated, de.Kind)
}

func TestReservationApprove_FlipsUnitToReserved(t *testing.T) {
	f := newReservationFixture(t)
	planID, unitID := f.seedGate(t)

	rf, err := f.svc.Create(finAdmin, reservationInput(planID, unitID))
	require.NoError(t, err)

	approved, err := f.svc.Approve(finMgr, rf.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ReservationApproved, approved.Status)

	unit, err := f.unitRepo.GetByID(unitID)
	require.NoError(t, err)
	require.Equal(t, domain.UnitStatusReserved, unit.Status)
	require.False(t, unit.Available)
	require.True(t, unit.Consistent())
}

func TestReservationAmendment_Lifecycle(t *testing.T) {
	f := newReservationFixture(t)
	planID, unitID := f.seedGate(t)

	rf, err := f.svc.Create(finAdmin, reservationInput(planID, unitID))
	require.NoError(t, err)
	_, err = f.svc.Approve(finMgr, rf.ID)
	require.NoError(t, err)

	amendment := AmendmentInput{
		NewReservationDate:    time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		NewPreliminaryPayment: decimal.NewFromInt(60_000),
		Reason:                "buyer requested a later date",
	}
	_, err = f.svc.RequestAmendment(finAdmin, rf.ID, amendment)
	require.NoError(t, err)

	// A second request while one is pending must fail.
	_, err = f.svc.RequestAmendment(finAdmin, rf.ID, amendment)
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindStateMismatch, de.Kind)
	require.Equal(t, "An amendment request is already pending", de.Message)

	// FM approval applies the new values and archives the old ones.
	applied, err := f.svc.ApproveAmendment(finMgr, rf.ID)
	require.NoError(t, err)
	require.Nil(t, applied.Details.AmendmentRequest)
	require.Len(t, applied.Details.AmendmentHistory, 1)
	require.Equal(t, "2025-06-01", applied.Details.AmendmentHistory[0].PreviousDate)
	require.True(t, applied.PreliminaryPayment.Equal(decimal.NewFromInt(60_000)))
	require.Equal(t, amendment.NewReservationDate, applied.ReservationDate)

	// A fresh request now succeeds and carries the applied values as its
	// previous state.
	second := AmendmentInput{
		NewReservationDate:    time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		NewPreliminaryPayment: decimal.NewFromInt(65_000),
		Reason:                "second change",
	}
	_, err = f.svc.RequestAmendment(finAdmin, rf.ID, second)
	require.NoError(t, err)

	rejected, err := f.svc.RejectAmendment(finMgr, rf.ID)
	require.NoError(t, err)
	require.Nil(t, rejected.Details.AmendmentRequest)
	require.Len(t, rejected.Details.AmendmentHistory, 2)
	require.Equal(t, "2025-07-01", rejected.Details.AmendmentHistory[1].PreviousDate)
	// The rejected attempt did not mutate the record.
	require.True(t, rejected.PreliminaryPayment.Equal(decimal.NewFromInt(60_000)))
}

func TestReservationCancel_OnlyFromPending(t *testing.T) {
	f := newReservationFixture(t)
	planID, unitID := f.seedGate(t)

	rf, err := f.svc.Create(finAdmin, reservationInput(planID, unitID))
	require.NoError(t, err)
	_, err = f.svc.Approve(finMgr, rf.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(finAdmin, rf.ID)
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindStateMismatch, de.Kind)
}
