package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/obra-api/internal/models"
)

const userColumns = `id, nombre, apellido, email, password, rol, estado, token, eliminado, fecha_creacion`

// UserRepository provides database access for users and their session token.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a non-deleted user by email address, ignoring case.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM usuarios WHERE LOWER(email) = LOWER($1) AND eliminado = FALSE LIMIT 1`
	return r.getOne(ctx, "find user by email", query, email)
}

// FindByID returns a non-deleted user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM usuarios WHERE id = $1 AND eliminado = FALSE LIMIT 1`
	return r.getOne(ctx, "find user by id", query, id)
}

// FindByToken returns the non-deleted user whose stored token matches exactly.
func (r *UserRepository) FindByToken(ctx context.Context, token string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM usuarios WHERE token = $1 AND eliminado = FALSE LIMIT 1`
	return r.getOne(ctx, "find user by token", query, token)
}

func (r *UserRepository) getOne(ctx context.Context, op, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// SetToken stores the session token, replacing any previous one.
func (r *UserRepository) SetToken(ctx context.Context, id int64, token string) error {
	const query = `UPDATE usuarios SET token = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, token); err != nil {
		return fmt.Errorf("set user token: %w", err)
	}
	return nil
}

// ClearToken nulls the session token. It reports whether a token was present.
func (r *UserRepository) ClearToken(ctx context.Context, id int64) (bool, error) {
	const query = `UPDATE usuarios SET token = NULL WHERE id = $1 AND token IS NOT NULL`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("clear user token: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check clear token rows: %w", err)
	}
	return rows > 0, nil
}

// Create inserts a new user. A duplicate email yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	const query = `INSERT INTO usuarios (nombre, apellido, email, password, rol, estado, eliminado)
	VALUES ($1, $2, $3, $4, $5, $6, FALSE) RETURNING id, fecha_creacion`
	err := r.db.QueryRowxContext(ctx, query,
		user.Name, user.Surname, user.Email, user.PasswordHash, user.Role, user.Status,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateProfile updates the caller editable fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, name, surname string) error {
	const query = `UPDATE usuarios SET nombre = $2, apellido = $3 WHERE id = $1 AND eliminado = FALSE`
	if _, err := r.db.ExecContext(ctx, query, id, name, surname); err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	const query = `UPDATE usuarios SET password = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
