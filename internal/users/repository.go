package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkforge/backend/internal/models"
)

const userColumns = `id, email, COALESCE(username,''), COALESCE(password_hash,''),
	COALESCE(first_name,''), COALESCE(last_name,''), COALESCE(profile_url,''),
	verified, state, created_at, updated_at`

// Repository handles user persistence. Retired users stay on record;
// lookup queries filter them out explicitly.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a users repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.Password,
		&u.FirstName, &u.LastName, &u.ProfileURL,
		&u.Verified, &u.State, &u.CreatedAt, &u.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns an active user by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND state = 'active'`
	return scanUser(r.pool.QueryRow(ctx, q, id))
}

// GetByEmail returns an active user by email, or nil when absent.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND state = 'active'`
	return scanUser(r.pool.QueryRow(ctx, q, email))
}

// Create inserts a new user. Email/username collisions surface as
// ErrConflict.
func (r *Repository) Create(ctx context.Context, user *models.User) error {
	const q = `INSERT INTO users (email, username, password_hash, first_name, last_name)
		VALUES ($1, NULLIF($2,''), $3, NULLIF($4,''), NULLIF($5,''))
		RETURNING id, verified, state, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, user.Email, user.Username, user.Password, user.FirstName, user.LastName).
		Scan(&user.ID, &user.Verified, &user.State, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return models.ErrConflict
	}
	return err
}

// SetVerified marks the user's email as verified.
func (r *Repository) SetVerified(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET verified = TRUE, updated_at = NOW() WHERE id = $1 AND state = 'active'`, id)
	return err
}

// UpdatePassword replaces the stored password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1 AND state = 'active'`, id, passwordHash)
	return err
}

// UpdateProfile updates mutable profile fields.
func (r *Repository) UpdateProfile(ctx context.Context, user *models.User) error {
	const q = `UPDATE users SET first_name = NULLIF($2,''), last_name = NULLIF($3,''),
		profile_url = NULLIF($4,''), username = NULLIF($5,''), updated_at = NOW()
		WHERE id = $1 AND state = 'active'`
	_, err := r.pool.Exec(ctx, q, user.ID, user.FirstName, user.LastName, user.ProfileURL, user.Username)
	if isUniqueViolation(err) {
		return models.ErrConflict
	}
	return err
}

// Retire soft-retires the user. The row is kept; active-state queries
// stop returning it.
func (r *Repository) Retire(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET state = 'retired', updated_at = NOW() WHERE id = $1`, id)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
