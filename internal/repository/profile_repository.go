package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proctorhq/proctor-backend/internal/model"
)

// ProfileRepository handles user identity data access.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// GetByID retrieves one profile.
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	p := &model.Profile{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at FROM profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Email, &p.PasswordHash, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// GetByEmailAndRole retrieves a profile by email, requiring a matching row in
// user_roles. Row-level authorization at the storage layer is keyed by the
// same role values, so the lookup never widens a caller's role.
func (r *ProfileRepository) GetByEmailAndRole(ctx context.Context, email string, role model.Role) (*model.Profile, error) {
	p := &model.Profile{}
	err := r.pool.QueryRow(ctx,
		`SELECT p.id, p.name, p.email, p.password_hash, p.created_at
		 FROM profiles p
		 JOIN user_roles ur ON ur.user_id = p.id
		 WHERE p.email = $1 AND ur.role = $2`,
		email, role,
	).Scan(&p.ID, &p.Name, &p.Email, &p.PasswordHash, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// Create inserts a profile with a role in one transaction. Used by the
// bootstrap CLI and e2e fixtures.
func (r *ProfileRepository) Create(ctx context.Context, name, email, passwordHash string, role model.Role) (*model.Profile, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p := &model.Profile{Name: name, Email: email}
	err = tx.QueryRow(ctx,
		`INSERT INTO profiles (name, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		name, email, passwordHash,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, p.ID, role,
	); err != nil {
		return nil, err
	}

	return p, tx.Commit(ctx)
}
