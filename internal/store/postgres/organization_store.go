package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eduzen/cascadesign/internal/models"
	"github.com/eduzen/cascadesign/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// OrganizationStore reads and registers tenants in the organizations table.
type OrganizationStore struct {
	pool *pgxpool.Pool
}

func NewOrganizationStore(pool *pgxpool.Pool) *OrganizationStore {
	return &OrganizationStore{pool: pool}
}

func (s *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	admin, err := store.NormalizeAdminEmail(org.AdminEmail)
	if err != nil {
		return err
	}

	created := org.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	updated := org.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO organizations (org_id, name, admin_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (org_id) DO NOTHING`,
		org.OrgID, org.Name, admin, created, updated,
	)
	if err != nil {
		return fmt.Errorf("failed to register organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrOrganizationAlreadyExists
	}

	log.Debug().
		Str("org_id", org.OrgID.String()).
		Bool("completion_copy", admin != "").
		Msg("Registered organization")

	return nil
}

func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	org := models.Organization{OrgID: orgID}
	err := s.pool.QueryRow(ctx, `
		SELECT name, admin_email, created_at, updated_at
		FROM organizations
		WHERE org_id = $1`, orgID,
	).Scan(&org.Name, &org.AdminEmail, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}
	return &org, nil
}

func (s *OrganizationStore) CompletionCopy(ctx context.Context, orgID uuid.UUID) (string, error) {
	var admin string
	err := s.pool.QueryRow(ctx, `SELECT admin_email FROM organizations WHERE org_id = $1`, orgID).Scan(&admin)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", store.ErrOrganizationNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load completion copy: %w", err)
	}
	return admin, nil
}
