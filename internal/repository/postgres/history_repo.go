package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uptownfs/dealflow/internal/domain"
)

// historyTable maps an entity kind onto its append-only audit table.
func historyTable(kind domain.EntityKind) (string, error) {
	switch kind {
	case domain.EntityDeal:
		return "deal_history", nil
	case domain.EntityPaymentPlan:
		return "payment_plan_history", nil
	case domain.EntityBlock:
		return "block_history", nil
	case domain.EntityReservation:
		return "reservation_form_history", nil
	case domain.EntityContract:
		return "contract_history", nil
	default:
		return "", fmt.Errorf("unknown entity kind %q", kind)
	}
}

// insertHistory appends one audit row inside the caller's transaction.
// Every audited entity's transition path calls this before committing, so a
// rollback discards the audit row along with the state change.
func insertHistory(ctx context.Context, q querier, entry *domain.HistoryEntry) error {
	if entry == nil {
		return nil
	}
	table, err := historyTable(entry.EntityKind)
	if err != nil {
		return err
	}

	var oldValues, newValues []byte
	if entry.OldValues != nil {
		if oldValues, err = snapshotToJSON(*entry.OldValues); err != nil {
			return err
		}
	}
	if entry.NewValues != nil {
		if newValues, err = snapshotToJSON(*entry.NewValues); err != nil {
			return err
		}
	}

	_, err = q.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, entity_id, change_type, changed_by, old_values, new_values, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, table),
		entry.ID, entry.EntityID, entry.ChangeType, entry.ChangedBy, oldValues, newValues, timeToPgTimestamptz(entry.At))
	return err
}

// HistoryRepository implements domain.HistoryRepository using PostgreSQL
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a new HistoryRepository
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// ListByEntity returns the ordered audit trail of one entity.
func (r *HistoryRepository) ListByEntity(kind domain.EntityKind, id int64) ([]*domain.HistoryEntry, error) {
	table, err := historyTable(kind)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, entity_id, change_type, changed_by, old_values, new_values, at
		FROM %s WHERE entity_id = $1 ORDER BY at, id`, table), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.HistoryEntry
	for rows.Next() {
		entry := &domain.HistoryEntry{EntityKind: kind}
		var oldValues, newValues []byte
		var at pgtype.Timestamptz
		if err := rows.Scan(&entry.ID, &entry.EntityID, &entry.ChangeType, &entry.ChangedBy, &oldValues, &newValues, &at); err != nil {
			return nil, err
		}
		if len(oldValues) > 0 {
			s, err := snapshotFromJSON(oldValues)
			if err != nil {
				return nil, err
			}
			entry.OldValues = &s
		}
		if len(newValues) > 0 {
			s, err := snapshotFromJSON(newValues)
			if err != nil {
				return nil, err
			}
			entry.NewValues = &s
		}
		entry.At = at.Time.UTC()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
