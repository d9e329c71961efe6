package users

import (
	"context"
	"errors"
	"fmt"

	"cozy/internal/db"
	"cozy/internal/params"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Store {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = params.NewID()
	}

	query := `
	  INSERT INTO users (id, username, email, password) VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	err := r.db.QueryRow(
		ctx, query, user.ID, user.Username, user.Email, user.Password.hash,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "users_email_key":
				return ErrDuplicateEmail
			case "users_username_key":
				return ErrDuplicateUsername
			}
		}
		return db.Classify(fmt.Errorf("insert user: %w", err))
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getBy(ctx, "username", username)
}

// getBy looks a user up by a unique column. column is never user input.
func (r *Repository) getBy(ctx context.Context, column, value string) (*User, error) {
	query := `SELECT id, username, email, password, created_at, updated_at FROM users WHERE ` + column + ` = $1`

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	var u User
	err := r.db.QueryRow(ctx, query, value).Scan(
		&u.ID, &u.Username, &u.Email, &u.Password.hash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, db.Classify(err)
	}
	return &u, nil
}
