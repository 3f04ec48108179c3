package store

import (
	"context"
	"errors"

	"github.com/eduzen/cascadesign/internal/models"
	"github.com/google/uuid"
)

// Sentinel errors for document store operations
var (
	ErrDocumentNotFound      = errors.New("document not found")
	ErrDocumentAlreadyExists = errors.New("document already exists")
)

// DocumentStore defines the interface for source document storage.
type DocumentStore interface {
	// Create registers a document whose PDF has already been uploaded to blob storage.
	// Returns ErrDocumentAlreadyExists if a document with the same ID already exists.
	Create(ctx context.Context, doc *models.Document) error

	// Get retrieves a document by ID.
	// Returns ErrDocumentNotFound if the document doesn't exist.
	Get(ctx context.Context, documentID uuid.UUID) (*models.Document, error)
}

// TemplateStore exposes the sign zones configured on organization document templates.
type TemplateStore interface {
	// SetDefaultSignZones stores the default zones of an organization for a document type.
	SetDefaultSignZones(ctx context.Context, orgID uuid.UUID, docType string, zones []models.SignZone) error

	// DefaultSignZones returns the zones of the organization's default template for docType.
	// Returns an empty slice when no template is configured.
	DefaultSignZones(ctx context.Context, orgID uuid.UUID, docType string) ([]models.SignZone, error)
}
