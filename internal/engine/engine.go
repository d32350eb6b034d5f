// Package engine implements the role-gated approval state machines for
// deals, payment plans, unit blocks, reservation forms and contracts.
// Each entity declares a transition table; a single Resolve path checks
// the current state and the actor's role before any mutation happens, so
// every service method follows the same shape: re-read the row under
// lock, resolve the transition against the locked state, write the new
// state plus a history entry, and stage notifications for post-commit
// delivery.
package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/uptownfs/dealflow/internal/domain"
)

// Action names one operation an actor can perform on an entity.
type Action string

// Rule is one row of an entity's transition table:
// (current state, action, permitted roles) -> next state.
type Rule struct {
	From   string
	Action Action
	Roles  domain.RoleSet
	To     string
}

// Table is the declared transition table for one entity kind.
type Table struct {
	entity domain.EntityKind
	rules  []Rule
}

// NewTable builds a transition table for the given entity kind.
func NewTable(entity domain.EntityKind, rules ...Rule) *Table {
	return &Table{entity: entity, rules: rules}
}

// Resolve returns the next state for (current, action, role). A missing
// (current, action) pair is a state mismatch; a matching pair whose role
// set excludes the actor is forbidden.
func (t *Table) Resolve(current string, action Action, role domain.Role) (string, error) {
	actionKnown := false
	for _, r := range t.rules {
		if r.Action != action {
			continue
		}
		actionKnown = true
		if r.From != current {
			continue
		}
		if !r.Roles.Has(role) {
			return "", domain.NewForbidden(fmt.Sprintf("role %s may not %s a %s", role, action, t.entity))
		}
		return r.To, nil
	}
	if actionKnown {
		return "", domain.NewStateMismatch(fmt.Sprintf("cannot %s a %s in state %s", action, t.entity, current))
	}
	return "", domain.NewStateMismatch(fmt.Sprintf("unknown action %s for %s", action, t.entity))
}

// newHistoryEntry builds the audit record written alongside a state
// change, inside the same transaction.
func newHistoryEntry(kind domain.EntityKind, entityID int64, changeType string, actor domain.Principal, oldValues, newValues *domain.Snapshot) *domain.HistoryEntry {
	return &domain.HistoryEntry{
		ID:         uuid.NewString(),
		EntityKind: kind,
		EntityID:   entityID,
		ChangeType: changeType,
		ChangedBy:  actor.UserID,
		OldValues:  oldValues,
		NewValues:  newValues,
		At:         time.Now().UTC(),
	}
}
