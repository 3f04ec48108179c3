package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/eduzen/cascadesign/internal/models"
	"github.com/eduzen/cascadesign/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DocumentStore implements store.DocumentStore and store.TemplateStore using PostgreSQL.
// Sign zones are kept as JSONB.
type DocumentStore struct {
	pool *pgxpool.Pool
}

// NewDocumentStore creates a new PostgreSQL-backed document store.
func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

// Create registers a document.
func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) error {
	zones := doc.SignZones
	if zones == nil {
		zones = []models.SignZone{}
	}
	status := doc.Status
	if status == "" {
		status = models.DocumentStatusDraft
	}

	query := `
		INSERT INTO documents (
			document_id, org_id, title, doc_type, storage_key, sign_zones,
			status, signed_storage_key, signed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := s.pool.Exec(ctx, query,
		doc.DocumentID,
		doc.OrgID,
		doc.Title,
		doc.Type,
		doc.StorageKey,
		zones,
		status,
		doc.SignedStorageKey,
		doc.SignedAt,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDocumentAlreadyExists
		}
		return fmt.Errorf("failed to create document: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("document_id", doc.DocumentID.String()).
		Str("org_id", doc.OrgID.String()).
		Msg("Created document")

	return nil
}

// Get retrieves a document by ID.
func (s *DocumentStore) Get(ctx context.Context, documentID uuid.UUID) (*models.Document, error) {
	query := `
		SELECT document_id, org_id, title, doc_type, storage_key, sign_zones,
		       status, signed_storage_key, signed_at, created_at, updated_at
		FROM documents
		WHERE document_id = $1
	`

	var doc models.Document
	err := s.pool.QueryRow(ctx, query, documentID).Scan(
		&doc.DocumentID,
		&doc.OrgID,
		&doc.Title,
		&doc.Type,
		&doc.StorageKey,
		&doc.SignZones,
		&doc.Status,
		&doc.SignedStorageKey,
		&doc.SignedAt,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &doc, nil
}

// SetDefaultSignZones stores the default zones of an organization for a document type.
func (s *DocumentStore) SetDefaultSignZones(ctx context.Context, orgID uuid.UUID, docType string, zones []models.SignZone) error {
	if zones == nil {
		zones = []models.SignZone{}
	}

	query := `
		INSERT INTO document_templates (org_id, doc_type, sign_zones, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (org_id, doc_type)
		DO UPDATE SET sign_zones = EXCLUDED.sign_zones, updated_at = NOW()
	`

	if _, err := s.pool.Exec(ctx, query, orgID, docType, zones); err != nil {
		return fmt.Errorf("failed to set default sign zones: %w", mapPostgresError(err))
	}
	return nil
}

// DefaultSignZones returns the zones of the organization's default template for docType.
func (s *DocumentStore) DefaultSignZones(ctx context.Context, orgID uuid.UUID, docType string) ([]models.SignZone, error) {
	query := `
		SELECT sign_zones
		FROM document_templates
		WHERE org_id = $1 AND doc_type = $2
	`

	var zones []models.SignZone
	err := s.pool.QueryRow(ctx, query, orgID, docType).Scan(&zones)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []models.SignZone{}, nil
		}
		return nil, fmt.Errorf("failed to get default sign zones: %w", err)
	}
	return zones, nil
}
