package links

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkforge/backend/internal/models"
)

const linkColumns = `id, organization_id, campaign_id, created_by, slug,
	COALESCE(description,''), type, COALESCE(target_url,''), active, shielded,
	created_at, updated_at`

// Repository handles link persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a links repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanLink(row pgx.Row) (*models.Link, error) {
	var l models.Link
	err := row.Scan(&l.ID, &l.OrganizationID, &l.CampaignID, &l.CreatedBy, &l.Slug,
		&l.Description, &l.Type, &l.TargetURL, &l.Active, &l.Shielded,
		&l.CreatedAt, &l.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Create inserts a link. Slug collisions surface as ErrConflict.
func (r *Repository) Create(ctx context.Context, link *models.Link) error {
	const q = `INSERT INTO links (organization_id, campaign_id, created_by, slug, description, type, target_url, shielded)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, NULLIF($7,''), $8)
		RETURNING id, active, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, link.OrganizationID, link.CampaignID, link.CreatedBy,
		link.Slug, link.Description, link.Type, link.TargetURL, link.Shielded).
		Scan(&link.ID, &link.Active, &link.CreatedAt, &link.UpdatedAt)
	if isUniqueViolation(err) {
		return models.ErrConflict
	}
	return err
}

// GetByID returns a link by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Link, error) {
	const q = `SELECT ` + linkColumns + ` FROM links WHERE id = $1`
	return scanLink(r.pool.QueryRow(ctx, q, id))
}

// GetBySlug returns an active link by slug, or nil when absent. Used by
// the public redirect.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Link, error) {
	const q = `SELECT ` + linkColumns + ` FROM links WHERE slug = $1 AND active = TRUE`
	return scanLink(r.pool.QueryRow(ctx, q, slug))
}

// ListByOrg returns the organization's links, newest first.
func (r *Repository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Link, error) {
	const q = `SELECT ` + linkColumns + ` FROM links WHERE organization_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Link
	for rows.Next() {
		var l models.Link
		if err := rows.Scan(&l.ID, &l.OrganizationID, &l.CampaignID, &l.CreatedBy, &l.Slug,
			&l.Description, &l.Type, &l.TargetURL, &l.Active, &l.Shielded,
			&l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}

// Update updates mutable link fields. The slug is immutable once issued.
func (r *Repository) Update(ctx context.Context, link *models.Link) error {
	const q = `UPDATE links SET campaign_id = $2, description = NULLIF($3,''),
		target_url = NULLIF($4,''), active = $5, shielded = $6, updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, link.ID, link.CampaignID, link.Description,
		link.TargetURL, link.Active, link.Shielded)
	return err
}

// Delete removes the link.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
