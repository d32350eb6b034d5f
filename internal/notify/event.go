package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/uptownfs/dealflow/internal/domain"
)

// RecipientCriteria addresses an event to role sets and/or explicit user
// ids. Resolution to concrete recipients happens at delivery, never
// inside the business transaction.
type RecipientCriteria struct {
	Roles   []domain.Role `json:"roles,omitempty"`
	UserIDs []string      `json:"userIds,omitempty"`
}

// Matches reports whether a connected principal should receive an event
// addressed with this criteria.
func (rc RecipientCriteria) Matches(p domain.Principal) bool {
	for _, r := range rc.Roles {
		if r == p.Role {
			return true
		}
	}
	for _, id := range rc.UserIDs {
		if id == p.UserID {
			return true
		}
	}
	return false
}

// Event is one notification emitted by a state transition.
// Format: { id, type, entity, refId, message, timestamp }
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"` // e.g. "payment_plan.approved"
	Entity     domain.EntityKind `json:"entity"`
	RefID      int64             `json:"refId"`
	Message    string            `json:"message"`
	Recipients RecipientCriteria `json:"-"`
	Timestamp  time.Time         `json:"timestamp"`
}

// NewEvent creates an event with the given action, entity and recipients.
func NewEvent(entity domain.EntityKind, action string, refID int64, message string, recipients RecipientCriteria) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       fmt.Sprintf("%s.%s", entity, action),
		Entity:     entity,
		RefID:      refID,
		Message:    message,
		Recipients: recipients,
		Timestamp:  time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func toRoles(roles ...domain.Role) RecipientCriteria {
	return RecipientCriteria{Roles: roles}
}

func toUser(userID string) RecipientCriteria {
	return RecipientCriteria{UserIDs: []string{userID}}
}

// PlanSubmitted notifies the queue a freshly created plan landed in.
func PlanSubmitted(planID int64, status domain.PaymentPlanStatus) Event {
	recipients := toRoles(domain.RoleSalesManager)
	if status == domain.PaymentPlanPendingFM {
		recipients = toRoles(domain.RoleFinancialManager)
	}
	return NewEvent(domain.EntityPaymentPlan, "submitted", planID, "A payment plan is awaiting review", recipients)
}

// PlanForwarded notifies the next queue after an intermediate approval.
func PlanForwarded(planID int64, next domain.PaymentPlanStatus) Event {
	recipients := toRoles(domain.RoleFinancialManager)
	if next == domain.PaymentPlanPendingTM {
		recipients = toRoles(domain.RoleTopManagement)
	}
	return NewEvent(domain.EntityPaymentPlan, "forwarded", planID, "A payment plan is awaiting your approval", recipients)
}

// PlanEscalated notifies top management of a policy-limit escalation.
func PlanEscalated(planID int64) Event {
	return NewEvent(domain.EntityPaymentPlan, "escalated", planID,
		"A payment plan exceeds the discount policy limit and requires top management approval",
		toRoles(domain.RoleTopManagement))
}

// PlanResolved notifies the plan's creator of a terminal decision. For a
// rejection, reasons carries the evaluator's Explain lines frozen in the
// plan's calculator snapshot, so the message names the failing
// conditions instead of a bare verdict.
func PlanResolved(planID int64, createdBy string, approved bool, reasons []string) Event {
	action, msg := "approved", "Your payment plan was approved"
	if !approved {
		action, msg = "rejected", "Your payment plan was rejected"
		if len(reasons) > 0 {
			msg += ": " + strings.Join(reasons, "; ")
		}
	}
	return NewEvent(domain.EntityPaymentPlan, action, planID, msg, toUser(createdBy))
}

// BlockRequested notifies financial managers of a new block request.
func BlockRequested(blockID int64) Event {
	return NewEvent(domain.EntityBlock, "requested", blockID, "A unit block request is awaiting approval", toRoles(domain.RoleFinancialManager))
}

// BlockResolved notifies the requester of the block decision.
func BlockResolved(blockID int64, requestedBy string, approved bool) Event {
	action, msg := "approved", "Your unit block was approved"
	if !approved {
		action, msg = "rejected", "Your unit block was rejected"
	}
	return NewEvent(domain.EntityBlock, action, blockID, msg, toUser(requestedBy))
}

// BlockExpired notifies the requester and financial managers that an
// expired block released its unit.
func BlockExpired(blockID int64, requestedBy string) Event {
	return NewEvent(domain.EntityBlock, "expired", blockID, "A unit block expired and the unit is available again",
		RecipientCriteria{Roles: []domain.Role{domain.RoleFinancialManager}, UserIDs: []string{requestedBy}})
}

// BlockReminder is the hourly hold reminder sent to all active FMs.
func BlockReminder(blockID int64) Event {
	return NewEvent(domain.EntityBlock, "reminder", blockID, "A unit is still held by an active block", toRoles(domain.RoleFinancialManager))
}

// BlockOverrideAdvanced notifies the role owning the next override stage.
func BlockOverrideAdvanced(blockID int64, next domain.OverrideStatus) Event {
	var recipients RecipientCriteria
	switch next {
	case domain.OverridePendingFM:
		recipients = toRoles(domain.RoleFinancialManager)
	case domain.OverridePendingTM:
		recipients = toRoles(domain.RoleTopManagement)
	default:
		recipients = toRoles(domain.RoleFinancialManager)
	}
	return NewEvent(domain.EntityBlock, "override_advanced", blockID, "A block override request is awaiting your approval", recipients)
}

// ReservationSubmitted notifies FMs a reservation form awaits approval.
func ReservationSubmitted(rfID int64) Event {
	return NewEvent(domain.EntityReservation, "submitted", rfID, "A reservation form is awaiting approval", toRoles(domain.RoleFinancialManager))
}

// ReservationResolved notifies financial admins of the reservation decision.
func ReservationResolved(rfID int64, action string) Event {
	return NewEvent(domain.EntityReservation, action, rfID, "A reservation form was "+action, toRoles(domain.RoleFinancialAdmin))
}

// AmendmentRequested notifies FMs a reservation amendment awaits review.
func AmendmentRequested(rfID int64) Event {
	return NewEvent(domain.EntityReservation, "amendment_requested", rfID, "A reservation amendment request is awaiting approval", toRoles(domain.RoleFinancialManager))
}

// AmendmentResolved notifies the requester of the amendment outcome.
func AmendmentResolved(rfID int64, requestedBy string, approved bool) Event {
	action, msg := "amendment_approved", "Your reservation amendment was applied"
	if !approved {
		action, msg = "amendment_rejected", "Your reservation amendment was rejected"
	}
	return NewEvent(domain.EntityReservation, action, rfID, msg, toUser(requestedBy))
}

// ContractAdvanced notifies the role owning the contract's next queue.
func ContractAdvanced(contractID int64, next domain.ContractStatus) Event {
	var recipients RecipientCriteria
	switch next {
	case domain.ContractPendingCM:
		recipients = toRoles(domain.RoleContractManager)
	case domain.ContractPendingTM:
		recipients = toRoles(domain.RoleTopManagement)
	case domain.ContractApproved, domain.ContractExecuted:
		recipients = toRoles(domain.RoleContractAdmin)
	default:
		recipients = toRoles(domain.RoleContractAdmin)
	}
	return NewEvent(domain.EntityContract, "advanced", contractID, "A contract moved to "+string(next), recipients)
}

// ContractRejected notifies contract admins of a rejection.
func ContractRejected(contractID int64) Event {
	return NewEvent(domain.EntityContract, "rejected", contractID, "A contract was rejected", toRoles(domain.RoleContractAdmin))
}
