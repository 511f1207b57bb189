package campaigns

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkforge/backend/internal/models"
)

// Repository handles campaign persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a campaigns repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a campaign.
func (r *Repository) Create(ctx context.Context, campaign *models.Campaign) error {
	const q = `INSERT INTO campaigns (organization_id, name, description)
		VALUES ($1, $2, NULLIF($3,''))
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, campaign.OrganizationID, campaign.Name, campaign.Description).
		Scan(&campaign.ID, &campaign.CreatedAt, &campaign.UpdatedAt)
}

// GetByID returns a campaign by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	const q = `SELECT id, organization_id, name, COALESCE(description,''), created_at, updated_at
		FROM campaigns WHERE id = $1`
	var cp models.Campaign
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&cp.ID, &cp.OrganizationID, &cp.Name, &cp.Description, &cp.CreatedAt, &cp.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// ListByOrg returns the organization's campaigns, newest first.
func (r *Repository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Campaign, error) {
	const q = `SELECT id, organization_id, name, COALESCE(description,''), created_at, updated_at
		FROM campaigns WHERE organization_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Campaign
	for rows.Next() {
		var cp models.Campaign
		if err := rows.Scan(&cp.ID, &cp.OrganizationID, &cp.Name, &cp.Description, &cp.CreatedAt, &cp.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &cp)
	}
	return list, rows.Err()
}

// Update updates name and description.
func (r *Repository) Update(ctx context.Context, campaign *models.Campaign) error {
	const q = `UPDATE campaigns SET name = $2, description = NULLIF($3,''), updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, campaign.ID, campaign.Name, campaign.Description)
	return err
}

// Delete removes the campaign; its links survive with campaign_id
// cleared.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
