package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uptownfs/dealflow/internal/domain"
)

// ContractRepository implements domain.ContractRepository using
// PostgreSQL
type ContractRepository struct {
	pool *pgxpool.Pool
}

// NewContractRepository creates a new ContractRepository
func NewContractRepository(pool *pgxpool.Pool) *ContractRepository {
	return &ContractRepository{pool: pool}
}

const contractColumns = `id, reservation_form_id, status, contract_settings_locked, details, created_by, version`

// Create creates a new draft contract and its opening history entry in
// one transaction.
func (r *ContractRepository) Create(c *domain.Contract) (*domain.Contract, error) {
	ctx := context.Background()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	details, err := snapshotToJSON(c.Details)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO contracts (reservation_form_id, status, contract_settings_locked, details, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+contractColumns,
		c.ReservationFormID, string(c.Status), c.ContractSettingsLocked, details, c.CreatedBy)
	created, err := scanContract(row)
	if err != nil {
		return nil, err
	}

	if err := insertHistory(ctx, tx, &domain.HistoryEntry{
		ID:         uuid.NewString(),
		EntityKind: domain.EntityContract,
		EntityID:   created.ID,
		ChangeType: string(domain.ChangeCreate),
		ChangedBy:  c.CreatedBy,
		At:         time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a contract by its ID
func (r *ContractRepository) GetByID(id int64) (*domain.Contract, error) {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id)
	return scanContract(row)
}

// ExecuteTransition locks the contract row, runs mutate and persists the
// result with its history entry in one serializable transaction.
func (r *ContractRepository) ExecuteTransition(id int64, mutate func(*domain.Contract) (*domain.Contract, *domain.HistoryEntry, error)) (*domain.Contract, error) {
	ctx := context.Background()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1 FOR UPDATE`, id)
	contract, err := scanContract(row)
	if err != nil {
		return nil, err
	}

	updated, entry, err := mutate(contract)
	if err != nil {
		return nil, err
	}
	updated.Version++

	details, err := snapshotToJSON(updated.Details)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE contracts SET status = $2, contract_settings_locked = $3, details = $4, version = $5, updated_at = now()
		WHERE id = $1`,
		updated.ID, string(updated.Status), updated.ContractSettingsLocked, details, updated.Version); err != nil {
		return nil, err
	}

	if err := insertHistory(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func scanContract(row pgx.Row) (*domain.Contract, error) {
	contract := &domain.Contract{}
	var status string
	var details []byte
	if err := row.Scan(&contract.ID, &contract.ReservationFormID, &status, &contract.ContractSettingsLocked, &details, &contract.CreatedBy, &contract.Version); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	contract.Status = domain.ContractStatus(status)
	snapshot, err := snapshotFromJSON(details)
	if err != nil {
		return nil, err
	}
	contract.Details = snapshot
	return contract, nil
}
