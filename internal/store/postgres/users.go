package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkrasnov/pennyworth/internal/domain"
)

// Users is the repository for the users table.
type Users struct{ pool *pgxpool.Pool }

func NewUsers(pool *pgxpool.Pool) *Users { return &Users{pool: pool} }

func (r *Users) Create(ctx context.Context, email, name string) (*domain.User, error) {
	u := &domain.User{ID: uuid.New(), Email: email, Name: name}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, u.ID, u.Email, u.Name).Scan(&u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("Users.Create: %w", err)
	}
	return u, nil
}

func (r *Users) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Users.GetByID: %w", err)
	}
	return &u, nil
}

// ListWithAccounts returns every user owning at least one account. The
// monthly report generator iterates exactly this set.
func (r *Users) ListWithAccounts(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT u.id, u.email, u.name, u.created_at
		FROM users u
		JOIN accounts a ON a.user_id = u.id
		ORDER BY u.created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("Users.ListWithAccounts: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("Users.ListWithAccounts: scan: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}
