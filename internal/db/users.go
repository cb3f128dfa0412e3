package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository stores Spotify accounts that have logged in. The row is
// written on first login and never deleted; created_at anchors the insight
// unlock countdown.
type UserRepository struct {
	pool *pgxpool.Pool
}

// Upsert records a login. The first insert pins created_at; later logins
// only refresh the display name.
func (r *UserRepository) Upsert(ctx context.Context, user *User) error {
	const query = `
		INSERT INTO users (id, display_name, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	if err := r.pool.QueryRow(ctx, query, user.ID, user.DisplayName).
		Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

// Get retrieves a user by Spotify ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*User, error) {
	const query = `
		SELECT id, display_name, created_at, updated_at
		FROM users
		WHERE id = $1`

	var user User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.DisplayName,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &user, nil
}
