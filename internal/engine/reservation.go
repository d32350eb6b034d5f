package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/uptownfs/dealflow/internal/coordinator"
	"github.com/uptownfs/dealflow/internal/domain"
	"github.com/uptownfs/dealflow/internal/notify"
)

// Reservation actions.
const (
	ActionReservationApprove Action = "approve"
	ActionReservationReject  Action = "reject"
	ActionReservationCancel  Action = "cancel"
)

// Amendment change types recorded in history.
const (
	ChangeAmendmentRequest = "amendment_request"
	ChangeAmendmentApprove = "amendment_approve"
	ChangeAmendmentReject  = "amendment_reject"
)

func reservationTable() *Table {
	fm := domain.NewRoleSet(domain.RoleFinancialManager, domain.RoleAdmin)
	fafm := domain.NewRoleSet(domain.RoleFinancialAdmin, domain.RoleFinancialManager, domain.RoleAdmin)

	return NewTable(domain.EntityReservation,
		Rule{From: string(domain.ReservationPendingApproval), Action: ActionReservationApprove, Roles: fm, To: string(domain.ReservationApproved)},
		Rule{From: string(domain.ReservationPendingApproval), Action: ActionReservationReject, Roles: fm, To: string(domain.ReservationRejected)},
		Rule{From: string(domain.ReservationPendingApproval), Action: ActionReservationCancel, Roles: fafm, To: string(domain.ReservationCancelled)},
	)
}

// ReservationService owns reservation form creation, approval and the
// amendment sub-protocol.
type ReservationService struct {
	transactor domain.Transactor
	rfRepo     domain.ReservationFormRepository
	unitRepo   domain.UnitRepository
	gates      *coordinator.Gates
	sink       notify.Sink
	table      *Table
	now        func() time.Time
}

// NewReservationService creates a new ReservationService.
func NewReservationService(transactor domain.Transactor, rfRepo domain.ReservationFormRepository, unitRepo domain.UnitRepository, gates *coordinator.Gates, sink notify.Sink) *ReservationService {
	return &ReservationService{
		transactor: transactor,
		rfRepo:     rfRepo,
		unitRepo:   unitRepo,
		gates:      gates,
		sink:       sink,
		table:      reservationTable(),
		now:        time.Now,
	}
}

// CreateReservationInput contains input for creating a reservation form.
type CreateReservationInput struct {
	PaymentPlanID      int64
	UnitID             int64
	ReservationDate    time.Time
	PreliminaryPayment decimal.Decimal
}

// Create builds a reservation form behind the full gate: approved plan,
// blocked unit, active block, no sibling reservation.
func (s *ReservationService) Create(actor domain.Principal, input CreateReservationInput) (*domain.ReservationForm, error) {
	allowed := domain.NewRoleSet(domain.RoleFinancialAdmin, domain.RoleFinancialManager, domain.RoleAdmin)
	if !allowed.Has(actor.Role) {
		return nil, domain.NewForbidden("role " + string(actor.Role) + " may not create reservation forms")
	}
	if input.PreliminaryPayment.IsNegative() {
		return nil, domain.NewInvalidInput("invalid preliminary payment",
			domain.FieldDetail{Field: "preliminaryPayment", Message: "must not be negative"})
	}

	if _, err := s.gates.CheckReservationCreate(input.PaymentPlanID, input.UnitID); err != nil {
		return nil, err
	}

	rf := &domain.ReservationForm{
		PaymentPlanID:      input.PaymentPlanID,
		UnitID:             input.UnitID,
		ReservationDate:    input.ReservationDate,
		PreliminaryPayment: input.PreliminaryPayment,
		Status:             domain.ReservationPendingApproval,
	}
	created, err := s.rfRepo.Create(rf)
	if err != nil {
		return nil, err
	}

	s.sink.Publish(notify.ReservationSubmitted(created.ID))
	return created, nil
}

// Get returns a single reservation form.
func (s *ReservationService) Get(id int64) (*domain.ReservationForm, error) {
	return s.rfRepo.GetByID(id)
}

// Approve approves a pending reservation and flips its unit to RESERVED
// in the same transaction.
func (s *ReservationService) Approve(actor domain.Principal, id int64) (*domain.ReservationForm, error) {
	tx, err := s.transactor.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	outbox := notify.NewOutbox(s.sink)

	rf, err := s.rfRepo.ExecuteTransitionTx(tx, id, func(r *domain.ReservationForm) (*domain.ReservationForm, *domain.HistoryEntry, error) {
		next, err := s.table.Resolve(string(r.Status), ActionReservationApprove, actor.Role)
		if err != nil {
			return nil, nil, err
		}
		r.Status = domain.ReservationStatus(next)
		return r, newHistoryEntry(domain.EntityReservation, r.ID, string(ActionReservationApprove), actor, nil, nil), nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.unitRepo.ExecuteTransitionTx(tx, rf.UnitID, func(u *domain.Unit) (*domain.Unit, error) {
		if u.Status != domain.UnitStatusBlocked {
			return nil, domain.NewInvariantViolation("Unit must be BLOCKED to approve a reservation")
		}
		u.Available = false
		u.Status = domain.UnitStatusReserved
		return u, nil
	}); err != nil {
		return nil, err
	}

	outbox.Stage(notify.ReservationResolved(rf.ID, "approved"))
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	outbox.Flush()
	return rf, nil
}

// Reject rejects a pending reservation.
func (s *ReservationService) Reject(actor domain.Principal, id int64) (*domain.ReservationForm, error) {
	rf, err := s.transition(actor, id, ActionReservationReject)
	if err != nil {
		return nil, err
	}
	s.sink.Publish(notify.ReservationResolved(rf.ID, "rejected"))
	return rf, nil
}

// Cancel cancels a pending reservation.
func (s *ReservationService) Cancel(actor domain.Principal, id int64) (*domain.ReservationForm, error) {
	rf, err := s.transition(actor, id, ActionReservationCancel)
	if err != nil {
		return nil, err
	}
	s.sink.Publish(notify.ReservationResolved(rf.ID, "cancelled"))
	return rf, nil
}

// AmendmentInput carries the requested changes to an approved
// reservation.
type AmendmentInput struct {
	NewReservationDate    time.Time
	NewPreliminaryPayment decimal.Decimal
	Reason                string
}

// RequestAmendment posts a pending amendment against an approved
// reservation. At most one amendment may be pending at a time.
func (s *ReservationService) RequestAmendment(actor domain.Principal, id int64, input AmendmentInput) (*domain.ReservationForm, error) {
	allowed := domain.NewRoleSet(domain.RoleFinancialAdmin, domain.RoleAdmin)
	if !allowed.Has(actor.Role) {
		return nil, domain.NewForbidden("role " + string(actor.Role) + " may not request reservation amendments")
	}
	if input.NewPreliminaryPayment.IsNegative() {
		return nil, domain.NewInvalidInput("invalid preliminary payment",
			domain.FieldDetail{Field: "newPreliminaryPayment", Message: "must not be negative"})
	}

	rf, err := s.rfRepo.ExecuteTransition(id, func(r *domain.ReservationForm) (*domain.ReservationForm, *domain.HistoryEntry, error) {
		if r.Status != domain.ReservationApproved {
			return nil, nil, domain.NewStateMismatch("Reservation form is not approved")
		}
		if r.Details.AmendmentRequest != nil {
			return nil, nil, domain.NewStateMismatch("An amendment request is already pending")
		}
		r.Details.AmendmentRequest = &domain.AmendmentRequest{
			NewReservationDate:    input.NewReservationDate,
			NewPreliminaryPayment: input.NewPreliminaryPayment,
			Reason:                input.Reason,
			RequestedBy:           actor.UserID,
			RequestedAt:           s.now().UTC(),
		}
		return r, newHistoryEntry(domain.EntityReservation, r.ID, ChangeAmendmentRequest, actor, nil, nil), nil
	})
	if err != nil {
		return nil, err
	}

	s.sink.Publish(notify.AmendmentRequested(rf.ID))
	return rf, nil
}

// ApproveAmendment applies a pending amendment, archiving the previous
// values into the amendment history.
func (s *ReservationService) ApproveAmendment(actor domain.Principal, id int64) (*domain.ReservationForm, error) {
	allowed := domain.NewRoleSet(domain.RoleFinancialManager, domain.RoleAdmin)
	var requestedBy string
	rf, err := s.rfRepo.ExecuteTransition(id, func(r *domain.ReservationForm) (*domain.ReservationForm, *domain.HistoryEntry, error) {
		if !allowed.Has(actor.Role) {
			return nil, nil, domain.NewForbidden("role " + string(actor.Role) + " may not approve reservation amendments")
		}
		req := r.Details.AmendmentRequest
		if r.Status != domain.ReservationApproved || req == nil {
			return nil, nil, domain.NewStateMismatch("No amendment request is pending")
		}
		requestedBy = req.RequestedBy

		r.Details.AmendmentHistory = append(r.Details.AmendmentHistory, domain.AmendmentSnapshot{
			Kind:            domain.SnapshotKindAmendmentV1,
			PreviousDate:    r.ReservationDate.UTC().Format("2006-01-02"),
			PreviousPayment: r.PreliminaryPayment,
			NewDate:         req.NewReservationDate.UTC().Format("2006-01-02"),
			NewPayment:      req.NewPreliminaryPayment,
			Reason:          req.Reason,
			RequestedBy:     req.RequestedBy,
		})
		r.ReservationDate = req.NewReservationDate
		r.PreliminaryPayment = req.NewPreliminaryPayment
		r.Details.AmendmentRequest = nil
		return r, newHistoryEntry(domain.EntityReservation, r.ID, ChangeAmendmentApprove, actor, nil, nil), nil
	})
	if err != nil {
		return nil, err
	}

	s.sink.Publish(notify.AmendmentResolved(rf.ID, requestedBy, true))
	return rf, nil
}

// RejectAmendment discards a pending amendment, archiving the attempt.
func (s *ReservationService) RejectAmendment(actor domain.Principal, id int64) (*domain.ReservationForm, error) {
	allowed := domain.NewRoleSet(domain.RoleFinancialManager, domain.RoleAdmin)
	var requestedBy string
	rf, err := s.rfRepo.ExecuteTransition(id, func(r *domain.ReservationForm) (*domain.ReservationForm, *domain.HistoryEntry, error) {
		if !allowed.Has(actor.Role) {
			return nil, nil, domain.NewForbidden("role " + string(actor.Role) + " may not reject reservation amendments")
		}
		req := r.Details.AmendmentRequest
		if req == nil {
			return nil, nil, domain.NewStateMismatch("No amendment request is pending")
		}
		requestedBy = req.RequestedBy

		r.Details.AmendmentHistory = append(r.Details.AmendmentHistory, domain.AmendmentSnapshot{
			Kind:            domain.SnapshotKindAmendmentV1,
			PreviousDate:    r.ReservationDate.UTC().Format("2006-01-02"),
			PreviousPayment: r.PreliminaryPayment,
			NewDate:         req.NewReservationDate.UTC().Format("2006-01-02"),
			NewPayment:      req.NewPreliminaryPayment,
			Reason:          req.Reason,
			RequestedBy:     req.RequestedBy,
		})
		r.Details.AmendmentRequest = nil
		return r, newHistoryEntry(domain.EntityReservation, r.ID, ChangeAmendmentReject, actor, nil, nil), nil
	})
	if err != nil {
		return nil, err
	}

	s.sink.Publish(notify.AmendmentResolved(rf.ID, requestedBy, false))
	return rf, nil
}

func (s *ReservationService) transition(actor domain.Principal, id int64, action Action) (*domain.ReservationForm, error) {
	return s.rfRepo.ExecuteTransition(id, func(r *domain.ReservationForm) (*domain.ReservationForm, *domain.HistoryEntry, error) {
		next, err := s.table.Resolve(string(r.Status), action, actor.Role)
		if err != nil {
			return nil, nil, err
		}
		r.Status = domain.ReservationStatus(next)
		return r, newHistoryEntry(domain.EntityReservation, r.ID, string(action), actor, nil, nil), nil
	})
}
