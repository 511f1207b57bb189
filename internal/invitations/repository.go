package invitations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/linkforge/backend/internal/models"
)

// ErrAlreadyConsumed is returned when the invitation was already
// accepted, revoked or has expired.
var ErrAlreadyConsumed = errors.New("invitation no longer redeemable")

const invitationColumns = `id, organization_id, role_id, email, token_hash,
	invited_by, accepted_by, status, expires_at, created_at, updated_at`

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles invitation persistence. Invitation rows are durable
// and auditable; the secret itself lives hashed in both the row and the
// token store.
type Repository struct {
	db DB
}

// NewRepository creates an invitations repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

func scanInvitation(row pgx.Row) (*models.Invitation, error) {
	var inv models.Invitation
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.RoleID, &inv.Email, &inv.TokenHash,
		&inv.InvitedBy, &inv.AcceptedBy, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Create inserts a pending invitation. A duplicate token hash surfaces
// as ErrConflict.
func (r *Repository) Create(ctx context.Context, inv *models.Invitation) error {
	const q = `INSERT INTO invitations (id, organization_id, role_id, email, token_hash, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING status, created_at, updated_at`
	err := r.db.QueryRow(ctx, q, inv.ID, inv.OrganizationID, inv.RoleID, inv.Email,
		inv.TokenHash, inv.InvitedBy, inv.ExpiresAt).
		Scan(&inv.Status, &inv.CreatedAt, &inv.UpdatedAt)
	if isUniqueViolation(err) {
		return models.ErrConflict
	}
	return err
}

// GetByID returns an invitation by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	const q = `SELECT ` + invitationColumns + ` FROM invitations WHERE id = $1`
	return scanInvitation(r.db.QueryRow(ctx, q, id))
}

// ListByOrg returns the organization's invitations, newest first.
func (r *Repository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Invitation, error) {
	const q = `SELECT ` + invitationColumns + ` FROM invitations
		WHERE organization_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Invitation
	for rows.Next() {
		var inv models.Invitation
		if err := rows.Scan(&inv.ID, &inv.OrganizationID, &inv.RoleID, &inv.Email, &inv.TokenHash,
			&inv.InvitedBy, &inv.AcceptedBy, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &inv)
	}
	return list, rows.Err()
}

// Accept transitions a pending, unexpired invitation to accepted and
// inserts the membership in the same transaction, so an invitation is
// never consumed without the user joining. The conditional update is the
// authority: concurrent accepts race on it and exactly one wins. A
// zero-row update means the invitation was missing, already accepted,
// revoked or past its expiry. A duplicate membership rolls the whole
// accept back and surfaces as ErrConflict, leaving the invitation
// pending.
func (r *Repository) Accept(ctx context.Context, id, acceptedBy uuid.UUID) (*models.Invitation, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `UPDATE invitations
		SET status = 'accepted', accepted_by = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND expires_at > NOW()
		RETURNING ` + invitationColumns
	inv, err := scanInvitation(tx.QueryRow(ctx, q, id, acceptedBy))
	if err != nil {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}
	if inv == nil {
		return nil, ErrAlreadyConsumed
	}

	const memberQ = `INSERT INTO memberships (user_id, organization_id, role_id) VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, memberQ, acceptedBy, inv.OrganizationID, inv.RoleID); err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("insert membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return inv, nil
}

// Revoke transitions a pending invitation to revoked.
func (r *Repository) Revoke(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE invitations SET status = 'revoked', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyConsumed
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
