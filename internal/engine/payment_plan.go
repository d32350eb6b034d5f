package engine

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/uptownfs/dealflow/internal/domain"
	"github.com/uptownfs/dealflow/internal/notify"
	"github.com/uptownfs/dealflow/internal/policy"
)

// Payment plan actions.
const (
	ActionApproveSM    Action = "approve_sm"
	ActionApproveFM    Action = "approve_fm"
	ActionApproveTM    Action = "approve_tm"
	ActionRejectSM     Action = "reject_sm"
	ActionRejectFM     Action = "reject_fm"
	ActionRejectTM     Action = "reject_tm"
	ActionMarkAccepted Action = "mark_accepted"
)

func paymentPlanTable() *Table {
	sm := domain.NewRoleSet(domain.RoleSalesManager, domain.RoleAdmin)
	fm := domain.NewRoleSet(domain.RoleFinancialManager, domain.RoleAdmin)
	tm := domain.NewRoleSet(domain.RoleTopManagement, domain.RoleAdmin)
	fmtm := domain.NewRoleSet(domain.RoleFinancialManager, domain.RoleTopManagement, domain.RoleAdmin)

	return NewTable(domain.EntityPaymentPlan,
		Rule{From: string(domain.PaymentPlanPendingSM), Action: ActionApproveSM, Roles: sm, To: string(domain.PaymentPlanPendingFM)},
		Rule{From: string(domain.PaymentPlanPendingSM), Action: ActionRejectSM, Roles: sm, To: string(domain.PaymentPlanRejected)},
		// FM approval lands on approved; the service re-routes to
		// pending_tm when the discount exceeds the policy limit.
		Rule{From: string(domain.PaymentPlanPendingFM), Action: ActionApproveFM, Roles: fm, To: string(domain.PaymentPlanApproved)},
		Rule{From: string(domain.PaymentPlanPendingFM), Action: ActionRejectFM, Roles: fm, To: string(domain.PaymentPlanRejected)},
		Rule{From: string(domain.PaymentPlanPendingTM), Action: ActionApproveTM, Roles: tm, To: string(domain.PaymentPlanApproved)},
		Rule{From: string(domain.PaymentPlanPendingTM), Action: ActionRejectTM, Roles: tm, To: string(domain.PaymentPlanRejected)},
		Rule{From: string(domain.PaymentPlanApproved), Action: ActionMarkAccepted, Roles: fmtm, To: string(domain.PaymentPlanApproved)},
	)
}

// PaymentPlanService owns the payment plan approval chain.
type PaymentPlanService struct {
	planRepo domain.PaymentPlanRepository
	dealRepo domain.DealRepository
	policy   *policy.Resolver
	sink     notify.Sink
	table    *Table
}

// NewPaymentPlanService creates a new PaymentPlanService.
func NewPaymentPlanService(planRepo domain.PaymentPlanRepository, dealRepo domain.DealRepository, policyResolver *policy.Resolver, sink notify.Sink) *PaymentPlanService {
	return &PaymentPlanService{
		planRepo: planRepo,
		dealRepo: dealRepo,
		policy:   policyResolver,
		sink:     sink,
		table:    paymentPlanTable(),
	}
}

// CreatePlanInput contains input for creating a payment plan.
type CreatePlanInput struct {
	DealID          int64
	Details         domain.Snapshot
	DiscountPercent decimal.Decimal
}

// Create routes a new plan into the queue matching its creator's role: a
// property consultant's plan starts in the sales manager queue, a plan
// created by financial staff starts in the financial manager queue.
func (s *PaymentPlanService) Create(actor domain.Principal, input CreatePlanInput) (*domain.PaymentPlan, error) {
	var initial domain.PaymentPlanStatus
	switch actor.Role {
	case domain.RolePropertyConsultant:
		initial = domain.PaymentPlanPendingSM
	case domain.RoleFinancialManager, domain.RoleFinancialAdmin, domain.RoleAdmin:
		initial = domain.PaymentPlanPendingFM
	default:
		return nil, domain.NewForbidden("role " + string(actor.Role) + " may not create payment plans")
	}

	if !s.policy.WithinGenerationAuthority(actor.Role, input.DiscountPercent) {
		return nil, domain.NewForbidden("discount exceeds your authority of " + s.policy.GenerationAuthority(actor.Role).String() + "%")
	}

	if _, err := s.dealRepo.GetByID(input.DealID); err != nil {
		return nil, domain.NewNotFound("deal not found")
	}

	siblings, err := s.planRepo.ListByDeal(input.DealID)
	if err != nil {
		return nil, err
	}

	plan := &domain.PaymentPlan{
		DealID:          input.DealID,
		Details:         input.Details,
		CreatedBy:       actor.UserID,
		Status:          initial,
		Version:         len(siblings) + 1,
		DiscountPercent: input.DiscountPercent.InexactFloat64(),
	}
	created, err := s.planRepo.Create(plan)
	if err != nil {
		return nil, err
	}

	s.sink.Publish(notify.PlanSubmitted(created.ID, created.Status))
	return created, nil
}

// Queue returns the pending plans for one approval stage, gated to the
// role that owns that stage.
func (s *PaymentPlanService) Queue(actor domain.Principal, stage string) ([]*domain.PaymentPlan, error) {
	var status domain.PaymentPlanStatus
	var allowed domain.RoleSet
	switch stage {
	case "sm":
		status, allowed = domain.PaymentPlanPendingSM, domain.NewRoleSet(domain.RoleSalesManager, domain.RoleAdmin)
	case "fm":
		status, allowed = domain.PaymentPlanPendingFM, domain.NewRoleSet(domain.RoleFinancialManager, domain.RoleAdmin)
	case "tm":
		status, allowed = domain.PaymentPlanPendingTM, domain.NewRoleSet(domain.RoleTopManagement, domain.RoleAdmin)
	default:
		return nil, domain.NewInvalidInput("unknown queue", domain.FieldDetail{Field: "queue", Message: "must be sm, fm or tm"})
	}
	if !allowed.Has(actor.Role) {
		return nil, domain.NewForbidden("role " + string(actor.Role) + " may not view the " + stage + " queue")
	}
	return s.planRepo.ListByQueue(status)
}

// Get returns a single plan.
func (s *PaymentPlanService) Get(id int64) (*domain.PaymentPlan, error) {
	return s.planRepo.GetByID(id)
}

// ApprovalResult reports what an approval produced: the updated plan and
// whether FM's approval was escalated to top management by the policy
// limit.
type ApprovalResult struct {
	Plan               *domain.PaymentPlan
	Escalated          bool
	PolicyLimitPercent decimal.Decimal
}

// ApproveSM moves a plan from the sales manager queue to the financial
// manager queue.
func (s *PaymentPlanService) ApproveSM(actor domain.Principal, id int64) (*domain.PaymentPlan, error) {
	plan, err := s.transition(actor, id, ActionApproveSM)
	if err != nil {
		return nil, err
	}
	s.sink.Publish(notify.PlanForwarded(plan.ID, plan.Status))
	return plan, nil
}

// ApproveFM approves a plan out of the financial manager queue. When the
// plan's discount exceeds the active policy limit the approval escalates
// to the top management queue instead of landing on approved.
func (s *PaymentPlanService) ApproveFM(actor domain.Principal, id int64) (*ApprovalResult, error) {
	policyCfg, err := s.policy.Active()
	if err != nil {
		return nil, err
	}

	escalated := false
	plan, err := s.planRepo.ExecuteTransition(id, func(p *domain.PaymentPlan) (*domain.PaymentPlan, *domain.HistoryEntry, error) {
		next, err := s.table.Resolve(string(p.Status), ActionApproveFM, actor.Role)
		if err != nil {
			return nil, nil, err
		}
		changeType := string(ActionApproveFM)
		if s.policy.RequiresEscalation(decimal.NewFromFloat(p.DiscountPercent), policyCfg) {
			next = string(domain.PaymentPlanPendingTM)
			changeType = "escalate_tm"
			escalated = true
		}
		p.Status = domain.PaymentPlanStatus(next)
		return p, newHistoryEntry(domain.EntityPaymentPlan, p.ID, changeType, actor, nil, nil), nil
	})
	if err != nil {
		return nil, err
	}

	if escalated {
		s.sink.Publish(notify.PlanEscalated(plan.ID))
	} else {
		s.sink.Publish(notify.PlanResolved(plan.ID, plan.CreatedBy, true, nil))
	}
	return &ApprovalResult{Plan: plan, Escalated: escalated, PolicyLimitPercent: policyCfg.PolicyLimitPercent}, nil
}

// ApproveTM approves a plan out of the top management queue.
func (s *PaymentPlanService) ApproveTM(actor domain.Principal, id int64) (*domain.PaymentPlan, error) {
	plan, err := s.transition(actor, id, ActionApproveTM)
	if err != nil {
		return nil, err
	}
	s.sink.Publish(notify.PlanResolved(plan.ID, plan.CreatedBy, true, nil))
	return plan, nil
}

// Reject rejects a plan from whichever queue it currently sits in; the
// action is derived from the current state so the transition table gates
// the actor's role per stage.
func (s *PaymentPlanService) Reject(actor domain.Principal, id int64) (*domain.PaymentPlan, error) {
	plan, err := s.planRepo.ExecuteTransition(id, func(p *domain.PaymentPlan) (*domain.PaymentPlan, *domain.HistoryEntry, error) {
		var action Action
		switch p.Status {
		case domain.PaymentPlanPendingSM:
			action = ActionRejectSM
		case domain.PaymentPlanPendingFM:
			action = ActionRejectFM
		case domain.PaymentPlanPendingTM:
			action = ActionRejectTM
		default:
			return nil, nil, domain.NewStateMismatch("payment plan is not pending approval")
		}
		next, err := s.table.Resolve(string(p.Status), action, actor.Role)
		if err != nil {
			return nil, nil, err
		}
		p.Status = domain.PaymentPlanStatus(next)
		return p, newHistoryEntry(domain.EntityPaymentPlan, p.ID, string(action), actor, nil, nil), nil
	})
	if err != nil {
		return nil, err
	}
	s.sink.Publish(notify.PlanResolved(plan.ID, plan.CreatedBy, false, rejectionReasons(plan)))
	return plan, nil
}

// rejectionReasons pulls the evaluator's Explain lines out of the plan's
// frozen calculator snapshot, if the evaluation carried any.
func rejectionReasons(p *domain.PaymentPlan) []string {
	if p.Details.Calculator == nil {
		return nil
	}
	return p.Details.Calculator.Evaluation.Reasons
}

// MarkAccepted flags one approved plan as the accepted plan of its deal.
// The repository clears the flag on every sibling plan inside the same
// transaction, so at most one plan per deal carries it.
func (s *PaymentPlanService) MarkAccepted(actor domain.Principal, id int64) (*domain.PaymentPlan, error) {
	plan, err := s.planRepo.ExecuteTransition(id, func(p *domain.PaymentPlan) (*domain.PaymentPlan, *domain.HistoryEntry, error) {
		if _, err := s.table.Resolve(string(p.Status), ActionMarkAccepted, actor.Role); err != nil {
			return nil, nil, err
		}
		p.Accepted = true
		return p, newHistoryEntry(domain.EntityPaymentPlan, p.ID, string(ActionMarkAccepted), actor, nil, nil), nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("plan_id", plan.ID).Int64("deal_id", plan.DealID).Msg("Payment plan marked accepted")
	return plan, nil
}

// transition runs a plain single-step transition through the table.
func (s *PaymentPlanService) transition(actor domain.Principal, id int64, action Action) (*domain.PaymentPlan, error) {
	return s.planRepo.ExecuteTransition(id, func(p *domain.PaymentPlan) (*domain.PaymentPlan, *domain.HistoryEntry, error) {
		next, err := s.table.Resolve(string(p.Status), action, actor.Role)
		if err != nil {
			return nil, nil, err
		}
		p.Status = domain.PaymentPlanStatus(next)
		return p, newHistoryEntry(domain.EntityPaymentPlan, p.ID, string(action), actor, nil, nil), nil
	})
}
