package engine

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/uptownfs/dealflow/internal/domain"
	"github.com/uptownfs/dealflow/internal/notify"
)

// Block actions.
const (
	ActionBlockApprove Action = "approve"
	ActionBlockReject  Action = "reject"
	ActionBlockCancel  Action = "cancel"
	ActionBlockExtend  Action = "extend"
	ActionBlockExpire  Action = "expire"
)

// Override chain change types recorded in history.
const (
	ChangeOverrideSM       = "override_approve_sm"
	ChangeOverrideFM       = "override_approve_fm"
	ChangeOverrideTM       = "override_approve_tm"
	ChangeOverrideTMBypass = "approve_tm_bypass"
	ChangeOverrideReject   = "override_reject"
)

func blockTable() *Table {
	fm := domain.NewRoleSet(domain.RoleFinancialManager, domain.RoleAdmin)
	requesters := domain.NewRoleSet(domain.RolePropertyConsultant, domain.RoleFinancialManager, domain.RoleFinancialAdmin, domain.RoleAdmin)
	scheduler := domain.NewRoleSet(domain.RoleScheduler, domain.RoleAdmin)

	return NewTable(domain.EntityBlock,
		Rule{From: string(domain.BlockStatusPending), Action: ActionBlockApprove, Roles: fm, To: string(domain.BlockStatusApproved)},
		Rule{From: string(domain.BlockStatusPending), Action: ActionBlockReject, Roles: fm, To: string(domain.BlockStatusRejected)},
		Rule{From: string(domain.BlockStatusPending), Action: ActionBlockCancel, Roles: requesters, To: string(domain.BlockStatusRejected)},
		Rule{From: string(domain.BlockStatusApproved), Action: ActionBlockCancel, Roles: fm, To: string(domain.BlockStatusExpired)},
		Rule{From: string(domain.BlockStatusApproved), Action: ActionBlockExtend, Roles: fm, To: string(domain.BlockStatusApproved)},
		Rule{From: string(domain.BlockStatusApproved), Action: ActionBlockExpire, Roles: scheduler, To: string(domain.BlockStatusExpired)},
	)
}

// BlockService owns the unit block lifecycle: request, approval, expiry,
// extension and the override chain.
type BlockService struct {
	transactor domain.Transactor
	blockRepo  domain.BlockRepository
	unitRepo   domain.UnitRepository
	sink       notify.Sink
	table      *Table
	now        func() time.Time
}

// NewBlockService creates a new BlockService.
func NewBlockService(transactor domain.Transactor, blockRepo domain.BlockRepository, unitRepo domain.UnitRepository, sink notify.Sink) *BlockService {
	return &BlockService{
		transactor: transactor,
		blockRepo:  blockRepo,
		unitRepo:   unitRepo,
		sink:       sink,
		table:      blockTable(),
		now:        time.Now,
	}
}

// RequestBlockInput contains input for requesting a unit block.
type RequestBlockInput struct {
	UnitID       int64
	DurationDays int
	Reason       string
	// FinancialDecision carries the evaluator verdict scored against the
	// request. A REJECT verdict starts the override chain; FM approval is
	// blocked until the chain completes.
	FinancialDecision *domain.FinancialDecision
}

// Request creates a pending block, rejecting requests against missing,
// unavailable or already-blocked units.
func (s *BlockService) Request(actor domain.Principal, input RequestBlockInput) (*domain.Block, error) {
	if input.DurationDays < domain.MinBlockDurationDays || input.DurationDays > domain.MaxBlockDurationDays {
		return nil, domain.NewInvalidInput("invalid block duration",
			domain.FieldDetail{Field: "durationDays", Message: "must be between 1 and 28"})
	}

	unit, err := s.unitRepo.GetByID(input.UnitID)
	if err != nil {
		return nil, domain.NewNotFound("unit not found")
	}

	active, err := s.blockRepo.ActiveForUnit(input.UnitID)
	if err != nil {
		return nil, err
	}
	if active != nil && active.IsActive(s.now()) {
		return nil, domain.NewInvariantViolation("Unit is already blocked")
	}
	if !unit.Available {
		return nil, domain.NewInvariantViolation("Unit is not available")
	}

	overrideStatus := domain.OverrideNone
	if input.FinancialDecision != nil && *input.FinancialDecision == domain.FinancialDecisionReject {
		overrideStatus = domain.OverridePendingSM
	}

	block := &domain.Block{
		UnitID:            input.UnitID,
		RequestedBy:       actor.UserID,
		DurationDays:      input.DurationDays,
		Reason:            input.Reason,
		Status:            domain.BlockStatusPending,
		OverrideStatus:    overrideStatus,
		BlockedUntil:      s.now().Add(time.Duration(input.DurationDays) * 24 * time.Hour),
		FinancialDecision: input.FinancialDecision,
	}
	created, err := s.blockRepo.Create(block)
	if err != nil {
		return nil, err
	}

	s.sink.Publish(notify.BlockRequested(created.ID))
	return created, nil
}

// Get returns a single block.
func (s *BlockService) Get(id int64) (*domain.Block, error) {
	return s.blockRepo.GetByID(id)
}

// Approve approves a pending block and takes its unit out of
// availability, in one transaction. A block whose financial verdict was
// REJECT may only be approved after the override chain completed.
func (s *BlockService) Approve(actor domain.Principal, id int64) (*domain.Block, error) {
	tx, err := s.transactor.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	outbox := notify.NewOutbox(s.sink)

	block, err := s.blockRepo.ExecuteTransitionTx(tx, id, func(b *domain.Block) (*domain.Block, *domain.HistoryEntry, error) {
		next, err := s.table.Resolve(string(b.Status), ActionBlockApprove, actor.Role)
		if err != nil {
			return nil, nil, err
		}
		if b.FinancialDecision != nil && *b.FinancialDecision == domain.FinancialDecisionReject && b.OverrideStatus != domain.OverrideApproved {
			return nil, nil, domain.NewInvariantViolation("Block requires an approved override before approval")
		}
		b.Status = domain.BlockStatus(next)
		b.BlockedUntil = s.now().Add(time.Duration(b.DurationDays) * 24 * time.Hour)
		next7 := s.now().Add(7 * 24 * time.Hour)
		b.NextNotifyAt = &next7
		return b, newHistoryEntry(domain.EntityBlock, b.ID, string(ActionBlockApprove), actor, nil, nil), nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.unitRepo.ExecuteTransitionTx(tx, block.UnitID, func(u *domain.Unit) (*domain.Unit, error) {
		if !u.Available || u.Status != domain.UnitStatusAvailable {
			return nil, domain.NewInvariantViolation("Unit is no longer available")
		}
		u.Available = false
		u.Status = domain.UnitStatusBlocked
		return u, nil
	}); err != nil {
		return nil, err
	}

	outbox.Stage(notify.BlockResolved(block.ID, block.RequestedBy, true))
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	outbox.Flush()
	return block, nil
}

// Reject rejects a pending block.
func (s *BlockService) Reject(actor domain.Principal, id int64) (*domain.Block, error) {
	block, err := s.blockRepo.ExecuteTransition(id, func(b *domain.Block) (*domain.Block, *domain.HistoryEntry, error) {
		next, err := s.table.Resolve(string(b.Status), ActionBlockReject, actor.Role)
		if err != nil {
			return nil, nil, err
		}
		b.Status = domain.BlockStatus(next)
		return b, newHistoryEntry(domain.EntityBlock, b.ID, string(ActionBlockReject), actor, nil, nil), nil
	})
	if err != nil {
		return nil, err
	}
	s.sink.Publish(notify.BlockResolved(block.ID, block.RequestedBy, false))
	return block, nil
}

// Cancel withdraws a block. A pending block is simply rejected; an
// approved block is expired early, releasing its unit.
func (s *BlockService) Cancel(actor domain.Principal, id int64) (*domain.Block, error) {
	current, err := s.blockRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if current.Status == domain.BlockStatusPending {
		if actor.Role == domain.RolePropertyConsultant && current.RequestedBy != actor.UserID {
			return nil, domain.NewForbidden("only the requester may cancel this block")
		}
		return s.blockRepo.ExecuteTransition(id, func(b *domain.Block) (*domain.Block, *domain.HistoryEntry, error) {
			next, err := s.table.Resolve(string(b.Status), ActionBlockCancel, actor.Role)
			if err != nil {
				return nil, nil, err
			}
			b.Status = domain.BlockStatus(next)
			return b, newHistoryEntry(domain.EntityBlock, b.ID, string(ActionBlockCancel), actor, nil, nil), nil
		})
	}

	return s.release(actor, id, ActionBlockCancel)
}

// Extend lengthens an approved block's hold, capped at three extensions
// and 28 total days.
func (s *BlockService) Extend(actor domain.Principal, id int64, additionalDays int) (*domain.Block, error) {
	if additionalDays < 1 {
		return nil, domain.NewInvalidInput("invalid extension",
			domain.FieldDetail{Field: "additionalDays", Message: "must be positive"})
	}
	return s.blockRepo.ExecuteTransition(id, func(b *domain.Block) (*domain.Block, *domain.HistoryEntry, error) {
		if _, err := s.table.Resolve(string(b.Status), ActionBlockExtend, actor.Role); err != nil {
			return nil, nil, err
		}
		if !b.CanExtend(additionalDays) {
			return nil, nil, domain.NewInvariantViolation("Block cannot be extended beyond 28 total days or 3 extensions")
		}
		b.BlockedUntil = b.BlockedUntil.Add(time.Duration(additionalDays) * 24 * time.Hour)
		b.ExtensionCount++
		return b, newHistoryEntry(domain.EntityBlock, b.ID, string(ActionBlockExtend), actor, nil, nil), nil
	})
}

// OverrideApproveSM advances the override chain out of the sales manager
// stage.
func (s *BlockService) OverrideApproveSM(actor domain.Principal, id int64) (*domain.Block, error) {
	return s.overrideStep(actor, id, domain.NewRoleSet(domain.RoleSalesManager, domain.RoleAdmin),
		domain.OverridePendingSM, domain.OverridePendingFM, ChangeOverrideSM)
}

// OverrideApproveFM advances the override chain out of the financial
// manager stage.
func (s *BlockService) OverrideApproveFM(actor domain.Principal, id int64) (*domain.Block, error) {
	return s.overrideStep(actor, id, domain.NewRoleSet(domain.RoleFinancialManager, domain.RoleAdmin),
		domain.OverridePendingFM, domain.OverridePendingTM, ChangeOverrideFM)
}

// overrideStep advances the override chain by one stage, from the given
// status to the next.
func (s *BlockService) overrideStep(actor domain.Principal, id int64, allowed domain.RoleSet, from, to domain.OverrideStatus, changeType string) (*domain.Block, error) {
	return s.blockRepo.ExecuteTransition(id, func(b *domain.Block) (*domain.Block, *domain.HistoryEntry, error) {
		if !allowed.Has(actor.Role) {
			return nil, nil, domain.NewForbidden("role " + string(actor.Role) + " may not approve block overrides")
		}
		if b.OverrideStatus != from {
			return nil, nil, domain.NewStateMismatch("block override is not " + string(from))
		}
		b.OverrideStatus = to
		return b, newHistoryEntry(domain.EntityBlock, b.ID, changeType, actor, nil, nil), nil
	})
}

// OverrideApproveTM completes the override chain. Top management may
// approve from any pending stage; skipping SM or FM is recorded as a
// bypass.
func (s *BlockService) OverrideApproveTM(actor domain.Principal, id int64) (*domain.Block, error) {
	allowed := domain.NewRoleSet(domain.RoleTopManagement, domain.RoleAdmin)
	block, err := s.blockRepo.ExecuteTransition(id, func(b *domain.Block) (*domain.Block, *domain.HistoryEntry, error) {
		if !allowed.Has(actor.Role) {
			return nil, nil, domain.NewForbidden("role " + string(actor.Role) + " may not approve block overrides")
		}
		changeType := ChangeOverrideTM
		switch b.OverrideStatus {
		case domain.OverridePendingTM:
		case domain.OverridePendingSM, domain.OverridePendingFM:
			changeType = ChangeOverrideTMBypass
		default:
			return nil, nil, domain.NewStateMismatch("block has no pending override")
		}
		b.OverrideStatus = domain.OverrideApproved
		return b, newHistoryEntry(domain.EntityBlock, b.ID, changeType, actor, nil, nil), nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("block_id", block.ID).Msg("Block override approved")
	return block, nil
}

// OverrideReject rejects a pending override at any stage.
func (s *BlockService) OverrideReject(actor domain.Principal, id int64) (*domain.Block, error) {
	allowed := domain.NewRoleSet(domain.RoleSalesManager, domain.RoleFinancialManager, domain.RoleTopManagement, domain.RoleAdmin)
	return s.blockRepo.ExecuteTransition(id, func(b *domain.Block) (*domain.Block, *domain.HistoryEntry, error) {
		if !allowed.Has(actor.Role) {
			return nil, nil, domain.NewForbidden("role " + string(actor.Role) + " may not reject block overrides")
		}
		switch b.OverrideStatus {
		case domain.OverridePendingSM, domain.OverridePendingFM, domain.OverridePendingTM:
		default:
			return nil, nil, domain.NewStateMismatch("block has no pending override")
		}
		b.OverrideStatus = domain.OverrideRejected
		return b, newHistoryEntry(domain.EntityBlock, b.ID, ChangeOverrideReject, actor, nil, nil), nil
	})
}

// ExpireDue expires every approved block whose hold has lapsed, restoring
// unit availability and notifying the financial managers. It is safe to
// run repeatedly and from concurrent processes: each block is re-checked
// under row lock, so a block already expired by another instance is
// skipped.
func (s *BlockService) ExpireDue(now time.Time, limit int) (int, error) {
	due, err := s.blockRepo.ExpiredApproved(now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	scheduler := domain.Principal{UserID: "scheduler", Role: domain.RoleScheduler}
	for _, b := range due {
		if _, err := s.release(scheduler, b.ID, ActionBlockExpire); err != nil {
			if de, ok := domain.AsDomainError(err); ok && de.Kind == domain.KindStateMismatch {
				continue // another instance expired it first
			}
			log.Error().Err(err).Int64("block_id", b.ID).Msg("Failed to expire block")
			continue
		}
		expired++
	}
	return expired, nil
}

// RemindDue emits a hold reminder for every approved block past its
// reminder mark and advances the mark by seven days.
func (s *BlockService) RemindDue(now time.Time, limit int) (int, error) {
	due, err := s.blockRepo.DueForReminder(now, limit)
	if err != nil {
		return 0, err
	}

	reminded := 0
	scheduler := domain.Principal{UserID: "scheduler", Role: domain.RoleScheduler}
	for _, b := range due {
		block, err := s.blockRepo.ExecuteTransition(b.ID, func(b *domain.Block) (*domain.Block, *domain.HistoryEntry, error) {
			if b.Status != domain.BlockStatusApproved {
				return nil, nil, domain.NewStateMismatch("block is no longer approved")
			}
			if b.NextNotifyAt == nil || b.NextNotifyAt.After(now) {
				return nil, nil, domain.NewStateMismatch("reminder already advanced")
			}
			next := now.Add(7 * 24 * time.Hour)
			b.NextNotifyAt = &next
			return b, newHistoryEntry(domain.EntityBlock, b.ID, "reminder", scheduler, nil, nil), nil
		})
		if err != nil {
			if de, ok := domain.AsDomainError(err); ok && de.Kind == domain.KindStateMismatch {
				continue
			}
			log.Error().Err(err).Int64("block_id", b.ID).Msg("Failed to advance block reminder")
			continue
		}
		s.sink.Publish(notify.BlockReminder(block.ID))
		reminded++
	}
	return reminded, nil
}

// release expires or cancels an approved block and restores its unit's
// availability in one transaction.
func (s *BlockService) release(actor domain.Principal, id int64, action Action) (*domain.Block, error) {
	tx, err := s.transactor.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	outbox := notify.NewOutbox(s.sink)

	block, err := s.blockRepo.ExecuteTransitionTx(tx, id, func(b *domain.Block) (*domain.Block, *domain.HistoryEntry, error) {
		next, err := s.table.Resolve(string(b.Status), action, actor.Role)
		if err != nil {
			return nil, nil, err
		}
		b.Status = domain.BlockStatus(next)
		return b, newHistoryEntry(domain.EntityBlock, b.ID, string(action), actor, nil, nil), nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.unitRepo.ExecuteTransitionTx(tx, block.UnitID, func(u *domain.Unit) (*domain.Unit, error) {
		// Only a still-blocked unit reverts; a unit already reserved or
		// sold moved on through the chain and keeps its state.
		if u.Status != domain.UnitStatusBlocked {
			return u, nil
		}
		u.Available = true
		u.Status = domain.UnitStatusAvailable
		return u, nil
	}); err != nil {
		return nil, err
	}

	outbox.Stage(notify.BlockExpired(block.ID, block.RequestedBy))
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	outbox.Flush()
	return block, nil
}
