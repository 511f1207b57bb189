package organizations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/linkforge/backend/internal/models"
)

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles organization, role and membership persistence.
// It also serves as the permission store for RBAC evaluation.
type Repository struct {
	db DB
}

// NewRepository creates an organizations repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// CreateWithOwner creates the organization, its Owner role and the
// creator's membership in a single transaction. If any step fails the
// organization does not persist: there is never an organization without
// an owner.
func (r *Repository) CreateWithOwner(ctx context.Context, org *models.Organization, creatorID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const orgQ = `INSERT INTO organizations (name, slug, description)
		VALUES ($1, $2, NULLIF($3,''))
		RETURNING id, state, created_at, updated_at`
	err = tx.QueryRow(ctx, orgQ, org.Name, org.Slug, org.Description).
		Scan(&org.ID, &org.State, &org.CreatedAt, &org.UpdatedAt)
	if isUniqueViolation(err) {
		return models.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}

	const roleQ = `INSERT INTO roles (organization_id, name, description, permissions)
		VALUES ($1, 'Owner', 'Organization owner with full access', $2)
		RETURNING id`
	var roleID uuid.UUID
	if err := tx.QueryRow(ctx, roleQ, org.ID, models.OwnerPermissions()).Scan(&roleID); err != nil {
		return fmt.Errorf("insert owner role: %w", err)
	}

	const memberQ = `INSERT INTO memberships (user_id, organization_id, role_id) VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, memberQ, creatorID, org.ID, roleID); err != nil {
		return fmt.Errorf("insert owner membership: %w", err)
	}

	return tx.Commit(ctx)
}

// GetByID returns an active organization by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	const q = `SELECT id, name, slug, COALESCE(description,''), state, created_at, updated_at
		FROM organizations WHERE id = $1 AND state = 'active'`
	return scanOrg(r.db.QueryRow(ctx, q, id))
}

// GetBySlug returns an active organization by slug, or nil when absent.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	const q = `SELECT id, name, slug, COALESCE(description,''), state, created_at, updated_at
		FROM organizations WHERE slug = $1 AND state = 'active'`
	return scanOrg(r.db.QueryRow(ctx, q, slug))
}

// Update updates name and description. The slug is immutable; renames
// that would collide on slug are rejected at creation time, not renamed
// around.
func (r *Repository) Update(ctx context.Context, org *models.Organization) error {
	const q = `UPDATE organizations SET name = $2, description = NULLIF($3,''), updated_at = NOW()
		WHERE id = $1 AND state = 'active'`
	_, err := r.db.Exec(ctx, q, org.ID, org.Name, org.Description)
	return err
}

// Retire soft-retires the organization.
func (r *Repository) Retire(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE organizations SET state = 'retired', updated_at = NOW() WHERE id = $1`, id)
	return err
}

// ListForUser returns active organizations the user is a member of.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Organization, error) {
	const q = `SELECT o.id, o.name, o.slug, COALESCE(o.description,''), o.state, o.created_at, o.updated_at
		FROM organizations o
		INNER JOIN memberships m ON m.organization_id = o.id
		WHERE m.user_id = $1 AND o.state = 'active'
		ORDER BY o.name`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Organization
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.Description, &o.State, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &o)
	}
	return list, rows.Err()
}

// GetMembership returns the membership row for (user, org), or nil when
// the user does not belong to the organization.
func (r *Repository) GetMembership(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error) {
	const q = `SELECT id, user_id, organization_id, role_id, created_at, updated_at
		FROM memberships WHERE user_id = $1 AND organization_id = $2`
	var m models.Membership
	err := r.db.QueryRow(ctx, q, userID, orgID).
		Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.RoleID, &m.CreatedAt, &m.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetRole returns a role by ID, or nil when absent.
func (r *Repository) GetRole(ctx context.Context, roleID uuid.UUID) (*models.Role, error) {
	const q = `SELECT id, organization_id, name, COALESCE(description,''), permissions, created_at, updated_at
		FROM roles WHERE id = $1`
	var role models.Role
	err := r.db.QueryRow(ctx, q, roleID).
		Scan(&role.ID, &role.OrganizationID, &role.Name, &role.Description, &role.Permissions, &role.CreatedAt, &role.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// GetRoleInOrg returns the role only if it belongs to the organization.
func (r *Repository) GetRoleInOrg(ctx context.Context, roleID, orgID uuid.UUID) (*models.Role, error) {
	role, err := r.GetRole(ctx, roleID)
	if err != nil || role == nil {
		return nil, err
	}
	if role.OrganizationID != orgID {
		return nil, nil
	}
	return role, nil
}

// CreateRole creates a role scoped to the organization.
func (r *Repository) CreateRole(ctx context.Context, role *models.Role) error {
	const q = `INSERT INTO roles (organization_id, name, description, permissions)
		VALUES ($1, $2, NULLIF($3,''), $4)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, q, role.OrganizationID, role.Name, role.Description, role.Permissions).
		Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	if isUniqueViolation(err) {
		return models.ErrConflict
	}
	return err
}

// ListRoles returns the organization's roles.
func (r *Repository) ListRoles(ctx context.Context, orgID uuid.UUID) ([]*models.Role, error) {
	const q = `SELECT id, organization_id, name, COALESCE(description,''), permissions, created_at, updated_at
		FROM roles WHERE organization_id = $1 ORDER BY name`
	rows, err := r.db.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.OrganizationID, &role.Name, &role.Description, &role.Permissions, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &role)
	}
	return list, rows.Err()
}

// AddMember adds a user to an organization with an optional role.
// A duplicate membership surfaces as ErrConflict.
func (r *Repository) AddMember(ctx context.Context, orgID, userID uuid.UUID, roleID *uuid.UUID) error {
	const q = `INSERT INTO memberships (user_id, organization_id, role_id) VALUES ($1, $2, $3)`
	_, err := r.db.Exec(ctx, q, userID, orgID, roleID)
	if isUniqueViolation(err) {
		return models.ErrConflict
	}
	return err
}

// UpdateMemberRole changes the member's role.
func (r *Repository) UpdateMemberRole(ctx context.Context, orgID, userID, roleID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE memberships SET role_id = $3, updated_at = NOW() WHERE user_id = $1 AND organization_id = $2`,
		userID, orgID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// RemoveMember removes the user from the organization.
func (r *Repository) RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM memberships WHERE user_id = $1 AND organization_id = $2`, userID, orgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Member is a membership row joined with user details.
type Member struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name,omitempty"`
	LastName  string     `json:"last_name,omitempty"`
	RoleID    *uuid.UUID `json:"role_id,omitempty"`
	RoleName  string     `json:"role_name,omitempty"`
}

// ListMembers returns the organization's members with user and role details.
func (r *Repository) ListMembers(ctx context.Context, orgID uuid.UUID) ([]Member, error) {
	const q = `SELECT m.id, m.user_id, u.email, COALESCE(u.first_name,''), COALESCE(u.last_name,''),
		m.role_id, COALESCE(ro.name,'')
		FROM memberships m
		INNER JOIN users u ON u.id = m.user_id
		LEFT JOIN roles ro ON ro.id = m.role_id
		WHERE m.organization_id = $1
		ORDER BY m.created_at ASC`
	rows, err := r.db.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.UserID, &m.Email, &m.FirstName, &m.LastName, &m.RoleID, &m.RoleName); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func scanOrg(row pgx.Row) (*models.Organization, error) {
	var o models.Organization
	err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.Description, &o.State, &o.CreatedAt, &o.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
