package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uptownfs/dealflow/internal/domain"
	"github.com/uptownfs/dealflow/internal/testutil"
)

func newBlockService(t *testing.T) (*BlockService, *testutil.MockBlockRepository, *testutil.MockUnitRepository, *testutil.CaptureSink) {
	t.Helper()
	blockRepo := testutil.NewMockBlockRepository()
	unitRepo := testutil.NewMockUnitRepository()
	sink := &testutil.CaptureSink{}
	svc := NewBlockService(&testutil.MockTransactor{}, blockRepo, unitRepo, sink)
	return svc, blockRepo, unitRepo, sink
}

func seedAvailableUnit(unitRepo *testutil.MockUnitRepository, id int64) {
	unitRepo.Units[id] = &domain.Unit{
		ID:        id,
		Code:      "A-101",
		Status:    domain.UnitStatusAvailable,
		Available: true,
	}
}

func TestBlockRequest_ValidatesDuration(t *testing.T) {
	svc, _, unitRepo, _ := newBlockService(t)
	seedAvailableUnit(unitRepo, 1)

	for _, days := range []int{0, 29, -1} {
		_, err := svc.Request(consultant, RequestBlockInput{UnitID: 1, DurationDays: days})
		de, ok := domain.AsDomainError(err)
		require.True(t, ok)
		require.Equal(t, domain.KindInvalidInput, de.Kind)
	}
}

func TestBlockRequest_RejectsAlreadyBlockedUnit(t *testing.T) {
	svc, blockRepo, unitRepo, _ := newBlockService(t)
	seedAvailableUnit(unitRepo, 1)

	_, err := blockRepo.Create(&domain.Block{
		UnitID:       1,
		Status:       domain.BlockStatusApproved,
		BlockedUntil: time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	_, err = svc.Request(consultant, RequestBlockInput{UnitID: 1, DurationDays: 7})
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindInvariantViolated, de.Kind)
	require.Equal(t, "Unit is already blocked", de.Message)
}

func TestBlockApprove_FlipsUnit(t *testing.T) {
	svc, _, unitRepo, sink := newBlockService(t)
	seedAvailableUnit(unitRepo, 1)

	block, err := svc.Request(consultant, RequestBlockInput{UnitID: 1, DurationDays: 7})
	require.NoError(t, err)
	require.Equal(t, domain.BlockStatusPending, block.Status)

	approved, err := svc.Approve(finMgr, block.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BlockStatusApproved, approved.Status)
	require.NotNil(t, approved.NextNotifyAt)

	unit, err := unitRepo.GetByID(1)
	require.NoError(t, err)
	require.Equal(t, domain.UnitStatusBlocked, unit.Status)
	require.False(t, unit.Available)
	require.True(t, unit.Consistent())

	require.Contains(t, sink.Types(), "block.approved")
}

func TestBlockApprove_RoleGated(t *testing.T) {
	svc, _, unitRepo, _ := newBlockService(t)
	seedAvailableUnit(unitRepo, 1)

	block, err := svc.Request(consultant, RequestBlockInput{UnitID: 1, DurationDays: 7})
	require.NoError(t, err)

	_, err = svc.Approve(consultant, block.ID)
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindForbidden, de.Kind)
}

func TestBlockApprove_RequiresOverrideAfterFinancialReject(t *testing.T) {
	svc, _, unitRepo, _ := newBlockService(t)
	seedAvailableUnit(unitRepo, 1)

	reject := domain.FinancialDecisionReject
	block, err := svc.Request(consultant, RequestBlockInput{UnitID: 1, DurationDays: 7, FinancialDecision: &reject})
	require.NoError(t, err)
	require.Equal(t, domain.OverridePendingSM, block.OverrideStatus)

	_, err = svc.Approve(finMgr, block.ID)
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindInvariantViolated, de.Kind)

	// Walk the override chain, then approval proceeds.
	_, err = svc.OverrideApproveSM(salesMgr, block.ID)
	require.NoError(t, err)
	_, err = svc.OverrideApproveFM(finMgr, block.ID)
	require.NoError(t, err)
	updated, err := svc.OverrideApproveTM(topMgmt, block.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OverrideApproved, updated.OverrideStatus)

	approved, err := svc.Approve(finMgr, block.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BlockStatusApproved, approved.Status)
}

func TestBlockOverrideTM_BypassRecorded(t *testing.T) {
	svc, blockRepo, unitRepo, _ := newBlockService(t)
	seedAvailableUnit(unitRepo, 1)

	reject := domain.FinancialDecisionReject
	block, err := svc.Request(consultant, RequestBlockInput{UnitID: 1, DurationDays: 7, FinancialDecision: &reject})
	require.NoError(t, err)

	// TM jumps straight past the SM and FM stages.
	updated, err := svc.OverrideApproveTM(topMgmt, block.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OverrideApproved, updated.OverrideStatus)
	require.Contains(t, blockRepo.History.ChangeTypes(domain.EntityBlock, block.ID), ChangeOverrideTMBypass)
}

func TestBlockExtend_Caps(t *testing.T) {
	svc, blockRepo, unitRepo, _ := newBlockService(t)
	seedAvailableUnit(unitRepo, 1)

	block, err := svc.Request(consultant, RequestBlockInput{UnitID: 1, DurationDays: 14})
	require.NoError(t, err)
	_, err = svc.Approve(finMgr, block.ID)
	require.NoError(t, err)

	extended, err := svc.Extend(finMgr, block.ID, 7)
	require.NoError(t, err)
	require.Equal(t, 1, extended.ExtensionCount)

	// 14 + 1*7 + 8 > 28
	_, err = svc.Extend(finMgr, block.ID, 8)
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindInvariantViolated, de.Kind)

	_, err = svc.Extend(finMgr, block.ID, 7)
	require.NoError(t, err)

	// Third extension would exceed 28 total days.
	_, err = svc.Extend(finMgr, block.ID, 7)
	de, ok = domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindInvariantViolated, de.Kind)

	stored, err := blockRepo.GetByID(block.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.ExtensionCount)
}

func TestBlockExpireDue_RestoresUnit(t *testing.T) {
	svc, blockRepo, unitRepo, sink := newBlockService(t)
	seedAvailableUnit(unitRepo, 1)

	block, err := svc.Request(consultant, RequestBlockInput{UnitID: 1, DurationDays: 7})
	require.NoError(t, err)
	_, err = svc.Approve(finMgr, block.ID)
	require.NoError(t, err)

	// Push the hold into the past.
	blockRepo.Blocks[block.ID].BlockedUntil = time.Now().Add(-time.Hour)

	expired, err := svc.ExpireDue(time.Now(), 100)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	stored, err := blockRepo.GetByID(block.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BlockStatusExpired, stored.Status)

	unit, err := unitRepo.GetByID(1)
	require.NoError(t, err)
	require.Equal(t, domain.UnitStatusAvailable, unit.Status)
	require.True(t, unit.Available)

	require.Contains(t, sink.Types(), "block.expired")

	// A second pass finds nothing: the job is idempotent.
	expired, err = svc.ExpireDue(time.Now(), 100)
	require.NoError(t, err)
	require.Equal(t, 0, expired)
}

func TestBlockRemindDue_AdvancesMark(t *testing.T) {
	svc, blockRepo, unitRepo, sink := newBlockService(t)
	seedAvailableUnit(unitRepo, 1)

	block, err := svc.Request(consultant, RequestBlockInput{UnitID: 1, DurationDays: 28})
	require.NoError(t, err)
	_, err = svc.Approve(finMgr, block.ID)
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	blockRepo.Blocks[block.ID].NextNotifyAt = &past

	reminded, err := svc.RemindDue(time.Now(), 100)
	require.NoError(t, err)
	require.Equal(t, 1, reminded)
	require.Contains(t, sink.Types(), "block.reminder")

	stored, err := blockRepo.GetByID(block.ID)
	require.NoError(t, err)
	require.True(t, stored.NextNotifyAt.After(time.Now().Add(6*24*time.Hour)))

	// The advanced mark keeps the block out of the next pass.
	reminded, err = svc.RemindDue(time.Now(), 100)
	require.NoError(t, err)
	require.Equal(t, 0, reminded)
}

func TestBlockCancel_ApprovedReleasesUnit(t *testing.T) {
	svc, _, unitRepo, _ := newBlockService(t)
	seedAvailableUnit(unitRepo, 1)

	block, err := svc.Request(consultant, RequestBlockInput{UnitID: 1, DurationDays: 7})
	require.NoError(t, err)
	_, err = svc.Approve(finMgr, block.ID)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(finMgr, block.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BlockStatusExpired, cancelled.Status)

	unit, err := unitRepo.GetByID(1)
	require.NoError(t, err)
	require.True(t, unit.Available)
}
