package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uptownfs/dealflow/internal/coordinator"
	"github.com/uptownfs/dealflow/internal/domain"
	"github.com/uptownfs/dealflow/internal/testutil"
)

var (
	contractAdmin = domain.Principal{UserID: "ca-1", Role: domain.RoleContractAdmin}
	contractMgr   = domain.Principal{UserID: "cm-1", Role: domain.RoleContractManager}
)

func newContractFixture(t *testing.T) (*ContractService, *testutil.MockContractRepository, *testutil.MockReservationFormRepository) {
	t.Helper()
	dealRepo := testutil.NewMockDealRepository()
	planRepo := testutil.NewMockPaymentPlanRepository()
	unitRepo := testutil.NewMockUnitRepository()
	blockRepo := testutil.NewMockBlockRepository()
	rfRepo := testutil.NewMockReservationFormRepository()
	contractRepo := testutil.NewMockContractRepository()
	gates := coordinator.NewGates(dealRepo, planRepo, unitRepo, blockRepo, rfRepo)
	svc := NewContractService(contractRepo, gates, &testutil.CaptureSink{})
	return svc, contractRepo, rfRepo
}

func seedApprovedReservation(t *testing.T, rfRepo *testutil.MockReservationFormRepository) int64 {
	t.Helper()
	rf, err := rfRepo.Create(&domain.ReservationForm{PaymentPlanID: 1, UnitID: 1, Status: domain.ReservationApproved})
	require.NoError(t, err)
	return rf.ID
}

func defaultSettings() domain.ContractSnapshot {
	return domain.ContractSnapshot{ContractDate: "2025-06-15", PowerOfAttorneyText: "signed by proxy"}
}

func TestContractCreate_RequiresApprovedReservation(t *testing.T) {
	svc, _, rfRepo := newContractFixture(t)

	rf, err := rfRepo.Create(&domain.ReservationForm{PaymentPlanID: 1, Status: domain.ReservationPendingApproval})
	require.NoError(t, err)

	_, err = svc.Create(contractAdmin, rf.ID, defaultSettings())
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindInvariantViolated, de.Kind)
}

func TestContractLifecycle_HistoryPrefix(t *testing.T) {
	svc, contractRepo, rfRepo := newContractFixture(t)
	rfID := seedApprovedReservation(t, rfRepo)

	contract, err := svc.Create(contractAdmin, rfID, defaultSettings())
	require.NoError(t, err)
	require.Equal(t, domain.ContractDraft, contract.Status)

	_, err = svc.LockSettings(contractAdmin, contract.ID)
	require.NoError(t, err)

	submitted, err := svc.Submit(contractAdmin, contract.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ContractPendingCM, submitted.Status)

	_, err = svc.ApproveCM(contractMgr, contract.ID)
	require.NoError(t, err)
	approved, err := svc.ApproveTM(topMgmt, contract.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ContractApproved, approved.Status)

	executed, err := svc.Execute(contractAdmin, contract.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ContractExecuted, executed.Status)

	// Filter the settings-management entries: the approval sequence must
	// follow create -> submit -> approve_cm -> approve_tm -> execute.
	var sequence []string
	for _, changeType := range contractRepo.History.ChangeTypes(domain.EntityContract, contract.ID) {
		if changeType == "lock_settings" || changeType == "update_settings" {
			continue
		}
		sequence = append(sequence, changeType)
	}
	require.Equal(t, []string{"create", "submit", "approve_cm", "approve_tm", "execute"}, sequence)
}

func TestContractSubmit_RequiresLockedSettings(t *testing.T) {
	svc, _, rfRepo := newContractFixture(t)
	rfID := seedApprovedReservation(t, rfRepo)

	contract, err := svc.Create(contractAdmin, rfID, defaultSettings())
	require.NoError(t, err)

	_, err = svc.Submit(contractAdmin, contract.ID)
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindStateMismatch, de.Kind)
}

func TestContractUpdateSettings_BlockedAfterLock(t *testing.T) {
	svc, _, rfRepo := newContractFixture(t)
	rfID := seedApprovedReservation(t, rfRepo)

	contract, err := svc.Create(contractAdmin, rfID, defaultSettings())
	require.NoError(t, err)

	updated, err := svc.UpdateSettings(contractAdmin, contract.ID, domain.ContractSnapshot{ContractDate: "2025-07-01"})
	require.NoError(t, err)
	require.Equal(t, "2025-07-01", updated.Details.Contract.ContractDate)

	_, err = svc.LockSettings(contractAdmin, contract.ID)
	require.NoError(t, err)

	// Locking is one-way.
	_, err = svc.LockSettings(contractAdmin, contract.ID)
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindStateMismatch, de.Kind)

	_, err = svc.UpdateSettings(contractAdmin, contract.ID, domain.ContractSnapshot{ContractDate: "2025-08-01"})
	de, ok = domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindStateMismatch, de.Kind)
}

func TestContractReject_FromCMQueue(t *testing.T) {
	svc, contractRepo, rfRepo := newContractFixture(t)
	rfID := seedApprovedReservation(t, rfRepo)

	contract, err := svc.Create(contractAdmin, rfID, defaultSettings())
	require.NoError(t, err)
	_, err = svc.LockSettings(contractAdmin, contract.ID)
	require.NoError(t, err)
	_, err = svc.Submit(contractAdmin, contract.ID)
	require.NoError(t, err)

	// The contract admin may not reject out of the CM queue.
	_, err = svc.Reject(contractAdmin, contract.ID)
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	require.Equal(t, domain.KindForbidden, de.Kind)

	rejected, err := svc.Reject(contractMgr, contract.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ContractRejected, rejected.Status)

	sequence := contractRepo.History.ChangeTypes(domain.EntityContract, contract.ID)
	require.Equal(t, "reject", sequence[len(sequence)-1])
}
