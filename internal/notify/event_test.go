package notify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uptownfs/dealflow/internal/domain"
)

func TestRecipientCriteria_Matches(t *testing.T) {
	fm := domain.Principal{UserID: "fm-1", Role: domain.RoleFinancialManager}
	consultant := domain.Principal{UserID: "pc-1", Role: domain.RolePropertyConsultant}

	byRole := RecipientCriteria{Roles: []domain.Role{domain.RoleFinancialManager}}
	require.True(t, byRole.Matches(fm))
	require.False(t, byRole.Matches(consultant))

	byUser := RecipientCriteria{UserIDs: []string{"pc-1"}}
	require.True(t, byUser.Matches(consultant))
	require.False(t, byUser.Matches(fm))

	mixed := RecipientCriteria{Roles: []domain.Role{domain.RoleFinancialManager}, UserIDs: []string{"pc-1"}}
	require.True(t, mixed.Matches(fm))
	require.True(t, mixed.Matches(consultant))
}

func TestNewEvent_TypeComposition(t *testing.T) {
	ev := NewEvent(domain.EntityPaymentPlan, "approved", 42, "approved", RecipientCriteria{})
	require.Equal(t, "payment_plan.approved", ev.Type)
	require.Equal(t, int64(42), ev.RefID)
	require.NotEmpty(t, ev.ID)
	require.False(t, ev.Timestamp.IsZero())
}

func TestEvent_ToJSON_OmitsRecipients(t *testing.T) {
	ev := BlockExpired(7, "pc-1")
	data, err := ev.ToJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "block.expired", decoded["type"])
	require.NotContains(t, decoded, "recipients")
	require.NotContains(t, decoded, "Recipients")
}

func TestPlanSubmitted_QueueRouting(t *testing.T) {
	sm := PlanSubmitted(1, domain.PaymentPlanPendingSM)
	require.Equal(t, []domain.Role{domain.RoleSalesManager}, sm.Recipients.Roles)

	fm := PlanSubmitted(1, domain.PaymentPlanPendingFM)
	require.Equal(t, []domain.Role{domain.RoleFinancialManager}, fm.Recipients.Roles)
}

func TestPlanResolved_RejectionPhrasesReasons(t *testing.T) {
	ev := PlanResolved(1, "pc-1", false, []string{
		"cumulative_y1: 25.75% is below the required minimum",
	})
	require.Equal(t, "payment_plan.rejected", ev.Type)
	require.Equal(t, "Your payment plan was rejected: cumulative_y1: 25.75% is below the required minimum", ev.Message)

	// No reasons available: the bare verdict stands.
	bare := PlanResolved(1, "pc-1", false, nil)
	require.Equal(t, "Your payment plan was rejected", bare.Message)
}

func TestOutbox_FlushesOnceAfterCommit(t *testing.T) {
	var delivered []Event
	sink := sinkFunc(func(e Event) { delivered = append(delivered, e) })

	outbox := NewOutbox(sink)
	outbox.Stage(BlockRequested(1), BlockReminder(1))
	require.Empty(t, delivered)

	outbox.Flush()
	require.Len(t, delivered, 2)

	// A second flush finds nothing staged.
	outbox.Flush()
	require.Len(t, delivered, 2)
}

type sinkFunc func(Event)

func (f sinkFunc) Publish(e Event) { f(e) }
