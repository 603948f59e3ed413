package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `
		SELECT id, email, full_name, role, is_available_for_jobs, online_status, completed_jobs, created_at
		FROM users WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetMechanic loads a user and verifies the mechanic role
func (r *Repository) GetMechanic(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != "mechanic" {
		return nil, ErrNotMechanic
	}
	return u, nil
}

// FirstAvailableMechanic returns the first mechanic flagged available
// and currently online. Naive policy: no proximity or load weighting.
func (r *Repository) FirstAvailableMechanic(ctx context.Context) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `
		SELECT id, email, full_name, role, is_available_for_jobs, online_status, completed_jobs, created_at
		FROM users
		WHERE role = 'mechanic' AND is_available_for_jobs = true AND online_status = 'online'
		ORDER BY created_at
		LIMIT 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoMechanics
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) GetServiceOffering(ctx context.Context, serviceID uuid.UUID) (*ServiceOffering, error) {
	var s ServiceOffering
	err := r.db.GetContext(ctx, &s, `
		SELECT id, mechanic_id, title, price, created_at
		FROM mechanic_services WHERE id = $1
	`, serviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrServiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// IncrementCompletedJobsTx bumps the mechanic's completion counter
// inside the caller's transaction.
func (r *Repository) IncrementCompletedJobsTx(ctx context.Context, tx *sqlx.Tx, mechanicID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users SET completed_jobs = completed_jobs + 1 WHERE id = $1
	`, mechanicID)
	return err
}

func (r *Repository) SetOnlineStatus(ctx context.Context, userID uuid.UUID, status string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET online_status = $1 WHERE id = $2
	`, status, userID)
	return err
}

func (r *Repository) SetAvailability(ctx context.Context, userID uuid.UUID, available bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_available_for_jobs = $1 WHERE id = $2
	`, available, userID)
	return err
}
