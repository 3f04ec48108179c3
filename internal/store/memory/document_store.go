package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/eduzen/cascadesign/internal/models"
	"github.com/eduzen/cascadesign/internal/store"
	"github.com/google/uuid"
)

// DocumentStore implements store.DocumentStore and store.TemplateStore in memory.
type DocumentStore struct {
	mu sync.RWMutex

	documents map[uuid.UUID]*models.Document
	templates map[templateKey][]models.SignZone
}

type templateKey struct {
	orgID   uuid.UUID
	docType string
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[uuid.UUID]*models.Document),
		templates: make(map[templateKey][]models.SignZone),
	}
}

// Create registers a document.
func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.documents[doc.DocumentID]; exists {
		return store.ErrDocumentAlreadyExists
	}

	s.documents[doc.DocumentID] = cloneDocument(doc)
	return nil
}

// Get retrieves a document by ID.
func (s *DocumentStore) Get(ctx context.Context, documentID uuid.UUID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.documents[documentID]
	if !exists {
		return nil, store.ErrDocumentNotFound
	}
	return cloneDocument(doc), nil
}

// SetDefaultSignZones stores template zones for an organization and document type.
func (s *DocumentStore) SetDefaultSignZones(ctx context.Context, orgID uuid.UUID, docType string, zones []models.SignZone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.templates[templateKey{orgID: orgID, docType: docType}] = slices.Clone(zones)
	return nil
}

// DefaultSignZones returns the template zones for an organization and document type.
func (s *DocumentStore) DefaultSignZones(ctx context.Context, orgID uuid.UUID, docType string) ([]models.SignZone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.templates[templateKey{orgID: orgID, docType: docType}]), nil
}

// markSigned is called by ProcessStore when a process completes.
func (s *DocumentStore) markSigned(documentID uuid.UUID, key string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, exists := s.documents[documentID]
	if !exists {
		return
	}
	doc.Status = models.DocumentStatusSigned
	doc.SignedStorageKey = key
	signedAt := at
	doc.SignedAt = &signedAt
	doc.UpdatedAt = at
}

func cloneDocument(doc *models.Document) *models.Document {
	clone := *doc
	clone.SignZones = slices.Clone(doc.SignZones)
	if doc.SignedAt != nil {
		t := *doc.SignedAt
		clone.SignedAt = &t
	}
	return &clone
}
