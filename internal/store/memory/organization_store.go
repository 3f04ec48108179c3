package memory

import (
	"context"
	"sync"
	"time"

	"github.com/eduzen/cascadesign/internal/models"
	"github.com/eduzen/cascadesign/internal/store"
	"github.com/google/uuid"
)

// OrganizationStore keeps tenants in a map. Used in development and tests.
type OrganizationStore struct {
	mu   sync.RWMutex
	orgs map[uuid.UUID]models.Organization
	now  func() time.Time
}

func NewOrganizationStore() *OrganizationStore {
	return &OrganizationStore{
		orgs: make(map[uuid.UUID]models.Organization),
		now:  time.Now,
	}
}

func (s *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	admin, err := store.NormalizeAdminEmail(org.AdminEmail)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.orgs[org.OrgID]; taken {
		return store.ErrOrganizationAlreadyExists
	}

	stored := *org
	stored.AdminEmail = admin
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now().UTC()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	s.orgs[org.OrgID] = stored

	return nil
}

func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.orgs[orgID]
	if !ok {
		return nil, store.ErrOrganizationNotFound
	}
	return &org, nil
}

func (s *OrganizationStore) CompletionCopy(ctx context.Context, orgID uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.orgs[orgID]
	if !ok {
		return "", store.ErrOrganizationNotFound
	}
	return org.AdminEmail, nil
}
