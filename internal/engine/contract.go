package engine

import (
	"github.com/uptownfs/dealflow/internal/coordinator"
	"github.com/uptownfs/dealflow/internal/domain"
	"github.com/uptownfs/dealflow/internal/notify"
)

// Contract actions.
const (
	ActionContractSubmit    Action = "submit"
	ActionContractApproveCM Action = "approve_cm"
	ActionContractApproveTM Action = "approve_tm"
	ActionContractReject    Action = "reject"
	ActionContractExecute   Action = "execute"
)

func contractTable() *Table {
	ca := domain.NewRoleSet(domain.RoleContractAdmin, domain.RoleAdmin)
	cm := domain.NewRoleSet(domain.RoleContractManager, domain.RoleAdmin)
	tm := domain.NewRoleSet(domain.RoleTopManagement, domain.RoleAdmin)

	return NewTable(domain.EntityContract,
		Rule{From: string(domain.ContractDraft), Action: ActionContractSubmit, Roles: ca, To: string(domain.ContractPendingCM)},
		Rule{From: string(domain.ContractPendingCM), Action: ActionContractApproveCM, Roles: cm, To: string(domain.ContractPendingTM)},
		Rule{From: string(domain.ContractPendingCM), Action: ActionContractReject, Roles: cm, To: string(domain.ContractRejected)},
		Rule{From: string(domain.ContractPendingTM), Action: ActionContractApproveTM, Roles: tm, To: string(domain.ContractApproved)},
		Rule{From: string(domain.ContractPendingTM), Action: ActionContractReject, Roles: tm, To: string(domain.ContractRejected)},
		Rule{From: string(domain.ContractApproved), Action: ActionContractExecute, Roles: ca, To: string(domain.ContractExecuted)},
	)
}

// ContractService owns the contract lifecycle from draft through
// execution.
type ContractService struct {
	contractRepo domain.ContractRepository
	gates        *coordinator.Gates
	sink         notify.Sink
	table        *Table
}

// NewContractService creates a new ContractService.
func NewContractService(contractRepo domain.ContractRepository, gates *coordinator.Gates, sink notify.Sink) *ContractService {
	return &ContractService{
		contractRepo: contractRepo,
		gates:        gates,
		sink:         sink,
		table:        contractTable(),
	}
}

// Create drafts a contract from an approved reservation form.
func (s *ContractService) Create(actor domain.Principal, reservationFormID int64, settings domain.ContractSnapshot) (*domain.Contract, error) {
	allowed := domain.NewRoleSet(domain.RoleContractAdmin, domain.RoleAdmin)
	if !allowed.Has(actor.Role) {
		return nil, domain.NewForbidden("role " + string(actor.Role) + " may not create contracts")
	}

	if _, err := s.gates.CheckContractCreate(reservationFormID); err != nil {
		return nil, err
	}

	settings.Kind = domain.SnapshotKindContractV1
	contract := &domain.Contract{
		ReservationFormID: reservationFormID,
		Status:            domain.ContractDraft,
		Details:           domain.Snapshot{Kind: domain.SnapshotKindContractV1, Contract: &settings},
		CreatedBy:         actor.UserID,
	}
	return s.contractRepo.Create(contract)
}

// Get returns a single contract.
func (s *ContractService) Get(id int64) (*domain.Contract, error) {
	return s.contractRepo.GetByID(id)
}

// UpdateSettings edits the contract settings (contract date, power of
// attorney statement) of an unlocked draft.
func (s *ContractService) UpdateSettings(actor domain.Principal, id int64, settings domain.ContractSnapshot) (*domain.Contract, error) {
	allowed := domain.NewRoleSet(domain.RoleContractAdmin, domain.RoleAdmin)
	return s.contractRepo.ExecuteTransition(id, func(c *domain.Contract) (*domain.Contract, *domain.HistoryEntry, error) {
		if !allowed.Has(actor.Role) {
			return nil, nil, domain.NewForbidden("role " + string(actor.Role) + " may not edit contract settings")
		}
		if c.Status != domain.ContractDraft {
			return nil, nil, domain.NewStateMismatch("Contract settings can only be edited while the contract is a draft")
		}
		if c.ContractSettingsLocked {
			return nil, nil, domain.NewStateMismatch("Contract settings are locked")
		}
		settings.Kind = domain.SnapshotKindContractV1
		c.Details = domain.Snapshot{Kind: domain.SnapshotKindContractV1, Contract: &settings}
		return c, newHistoryEntry(domain.EntityContract, c.ID, "update_settings", actor, nil, nil), nil
	})
}

// LockSettings locks the contract settings. Locking is one-way and a
// prerequisite of submission.
func (s *ContractService) LockSettings(actor domain.Principal, id int64) (*domain.Contract, error) {
	allowed := domain.NewRoleSet(domain.RoleContractAdmin, domain.RoleAdmin)
	return s.contractRepo.ExecuteTransition(id, func(c *domain.Contract) (*domain.Contract, *domain.HistoryEntry, error) {
		if !allowed.Has(actor.Role) {
			return nil, nil, domain.NewForbidden("role " + string(actor.Role) + " may not lock contract settings")
		}
		if c.ContractSettingsLocked {
			return nil, nil, domain.NewStateMismatch("Contract settings are already locked")
		}
		c.ContractSettingsLocked = true
		return c, newHistoryEntry(domain.EntityContract, c.ID, "lock_settings", actor, nil, nil), nil
	})
}

// Submit moves a draft into the contract manager queue. Settings must be
// locked first.
func (s *ContractService) Submit(actor domain.Principal, id int64) (*domain.Contract, error) {
	contract, err := s.contractRepo.ExecuteTransition(id, func(c *domain.Contract) (*domain.Contract, *domain.HistoryEntry, error) {
		next, err := s.table.Resolve(string(c.Status), ActionContractSubmit, actor.Role)
		if err != nil {
			return nil, nil, err
		}
		if !c.ContractSettingsLocked {
			return nil, nil, domain.NewStateMismatch("Contract settings must be locked before submission")
		}
		c.Status = domain.ContractStatus(next)
		return c, newHistoryEntry(domain.EntityContract, c.ID, string(domain.ChangeSubmit), actor, nil, nil), nil
	})
	if err != nil {
		return nil, err
	}
	s.sink.Publish(notify.ContractAdvanced(contract.ID, contract.Status))
	return contract, nil
}

// ApproveCM approves a contract out of the contract manager queue.
func (s *ContractService) ApproveCM(actor domain.Principal, id int64) (*domain.Contract, error) {
	contract, err := s.transition(actor, id, ActionContractApproveCM, string(domain.ChangeApproveCM))
	if err != nil {
		return nil, err
	}
	s.sink.Publish(notify.ContractAdvanced(contract.ID, contract.Status))
	return contract, nil
}

// ApproveTM approves a contract out of the top management queue.
func (s *ContractService) ApproveTM(actor domain.Principal, id int64) (*domain.Contract, error) {
	contract, err := s.transition(actor, id, ActionContractApproveTM, string(domain.ChangeApproveTM))
	if err != nil {
		return nil, err
	}
	s.sink.Publish(notify.ContractAdvanced(contract.ID, contract.Status))
	return contract, nil
}

// Reject rejects a contract from either approval queue.
func (s *ContractService) Reject(actor domain.Principal, id int64) (*domain.Contract, error) {
	contract, err := s.transition(actor, id, ActionContractReject, string(domain.ChangeReject))
	if err != nil {
		return nil, err
	}
	s.sink.Publish(notify.ContractRejected(contract.ID))
	return contract, nil
}

// Execute marks an approved contract as executed.
func (s *ContractService) Execute(actor domain.Principal, id int64) (*domain.Contract, error) {
	contract, err := s.transition(actor, id, ActionContractExecute, string(domain.ChangeExecute))
	if err != nil {
		return nil, err
	}
	s.sink.Publish(notify.ContractAdvanced(contract.ID, contract.Status))
	return contract, nil
}

func (s *ContractService) transition(actor domain.Principal, id int64, action Action, changeType string) (*domain.Contract, error) {
	return s.contractRepo.ExecuteTransition(id, func(c *domain.Contract) (*domain.Contract, *domain.HistoryEntry, error) {
		next, err := s.table.Resolve(string(c.Status), action, actor.Role)
		if err != nil {
			return nil, nil, err
		}
		c.Status = domain.ContractStatus(next)
		return c, newHistoryEntry(domain.EntityContract, c.ID, changeType, actor, nil, nil), nil
	})
}
