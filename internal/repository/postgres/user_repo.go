package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uptownfs/dealflow/internal/domain"
)

// UserRepository implements domain.UserRepository using PostgreSQL
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// ActiveUserIDs returns the ids of every active user holding the given
// role.
func (r *UserRepository) ActiveUserIDs(role domain.Role) ([]string, error) {
	ctx := context.Background()
	rows, err := r.pool.Query(ctx, `SELECT id FROM users WHERE role = $1 AND active ORDER BY id`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
