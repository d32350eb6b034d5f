package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/uptownfs/dealflow/internal/domain"
)

// Deal actions.
const (
	ActionDealSubmit  Action = "submit"
	ActionDealApprove Action = "approve"
	ActionDealReject  Action = "reject"
)

func dealTable() *Table {
	creators := domain.NewRoleSet(domain.RolePropertyConsultant, domain.RoleFinancialAdmin, domain.RoleFinancialManager, domain.RoleAdmin)
	fmtm := domain.NewRoleSet(domain.RoleFinancialManager, domain.RoleTopManagement, domain.RoleAdmin)

	return NewTable(domain.EntityDeal,
		Rule{From: string(domain.DealStatusDraft), Action: ActionDealSubmit, Roles: creators, To: string(domain.DealStatusPendingApproval)},
		Rule{From: string(domain.DealStatusPendingApproval), Action: ActionDealApprove, Roles: fmtm, To: string(domain.DealStatusApproved)},
		Rule{From: string(domain.DealStatusPendingApproval), Action: ActionDealReject, Roles: fmtm, To: string(domain.DealStatusRejected)},
	)
}

// DealService owns the deal lifecycle at the root of the chain.
type DealService struct {
	dealRepo domain.DealRepository
	table    *Table
	now      func() time.Time
}

// NewDealService creates a new DealService.
func NewDealService(dealRepo domain.DealRepository) *DealService {
	return &DealService{dealRepo: dealRepo, table: dealTable(), now: time.Now}
}

// CreateDealInput contains input for creating a deal.
type CreateDealInput struct {
	Title   string
	Amount  decimal.Decimal
	Details domain.Snapshot
}

// Create drafts a deal carrying a frozen calculator snapshot. A deal
// whose evaluation verdict was REJECT is flagged as needing an override
// before it can ever be approved.
func (s *DealService) Create(actor domain.Principal, input CreateDealInput) (*domain.Deal, error) {
	allowed := domain.NewRoleSet(domain.RolePropertyConsultant, domain.RoleFinancialAdmin, domain.RoleFinancialManager, domain.RoleAdmin)
	if !allowed.Has(actor.Role) {
		return nil, domain.NewForbidden("role " + string(actor.Role) + " may not create deals")
	}
	if input.Title == "" {
		return nil, domain.NewInvalidInput("invalid deal", domain.FieldDetail{Field: "title", Message: "is required"})
	}
	if input.Amount.IsNegative() || input.Amount.IsZero() {
		return nil, domain.NewInvalidInput("invalid deal", domain.FieldDetail{Field: "amount", Message: "must be positive"})
	}

	needsOverride := false
	if input.Details.Calculator != nil && input.Details.Calculator.Evaluation.Decision == "REJECT" {
		needsOverride = true
	}

	deal := &domain.Deal{
		Title:         input.Title,
		Amount:        input.Amount,
		Status:        domain.DealStatusDraft,
		NeedsOverride: needsOverride,
		CreatedBy:     actor.UserID,
		CreatedAt:     s.now().UTC(),
		Details:       input.Details,
	}
	return s.dealRepo.Create(deal)
}

// Get returns a single deal.
func (s *DealService) Get(id int64) (*domain.Deal, error) {
	return s.dealRepo.GetByID(id)
}

// Submit moves a draft deal into review.
func (s *DealService) Submit(actor domain.Principal, id int64) (*domain.Deal, error) {
	return s.transition(actor, id, ActionDealSubmit)
}

// Approve approves a deal under review. A deal flagged for override must
// carry an approved override; everything else needs a prior evaluator
// ACCEPT frozen in its snapshot.
func (s *DealService) Approve(actor domain.Principal, id int64) (*domain.Deal, error) {
	return s.dealRepo.ExecuteTransition(id, func(d *domain.Deal) (*domain.Deal, *domain.HistoryEntry, error) {
		next, err := s.table.Resolve(string(d.Status), ActionDealApprove, actor.Role)
		if err != nil {
			return nil, nil, err
		}
		if !d.CanBeApproved() {
			return nil, nil, domain.NewInvariantViolation("Deal requires an accepted evaluation or an approved override")
		}
		d.Status = domain.DealStatus(next)
		now := s.now().UTC()
		d.FMReviewAt = &now
		return d, newHistoryEntry(domain.EntityDeal, d.ID, string(ActionDealApprove), actor, nil, nil), nil
	})
}

// Reject rejects a deal under review.
func (s *DealService) Reject(actor domain.Principal, id int64) (*domain.Deal, error) {
	return s.transition(actor, id, ActionDealReject)
}

// ApproveOverride records top management's override of a rejecting
// evaluation, permitting the deal's later approval.
func (s *DealService) ApproveOverride(actor domain.Principal, id int64) (*domain.Deal, error) {
	allowed := domain.NewRoleSet(domain.RoleTopManagement, domain.RoleAdmin)
	return s.dealRepo.ExecuteTransition(id, func(d *domain.Deal) (*domain.Deal, *domain.HistoryEntry, error) {
		if !allowed.Has(actor.Role) {
			return nil, nil, domain.NewForbidden("role " + string(actor.Role) + " may not approve deal overrides")
		}
		if !d.NeedsOverride {
			return nil, nil, domain.NewStateMismatch("Deal does not need an override")
		}
		if d.OverrideApprovedAt != nil {
			return nil, nil, domain.NewStateMismatch("Deal override is already approved")
		}
		now := s.now().UTC()
		d.OverrideApprovedAt = &now
		return d, newHistoryEntry(domain.EntityDeal, d.ID, "approve_override", actor, nil, nil), nil
	})
}

func (s *DealService) transition(actor domain.Principal, id int64, action Action) (*domain.Deal, error) {
	return s.dealRepo.ExecuteTransition(id, func(d *domain.Deal) (*domain.Deal, *domain.HistoryEntry, error) {
		next, err := s.table.Resolve(string(d.Status), action, actor.Role)
		if err != nil {
			return nil, nil, err
		}
		d.Status = domain.DealStatus(next)
		return d, newHistoryEntry(domain.EntityDeal, d.ID, string(action), actor, nil, nil), nil
	})
}
