package store

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/eduzen/cascadesign/internal/models"
	"github.com/google/uuid"
)

var (
	ErrOrganizationNotFound      = errors.New("organization not found")
	ErrOrganizationAlreadyExists = errors.New("organization already exists")
	ErrInvalidAdminEmail         = errors.New("invalid organization admin email")
)

// OrganizationStore persists the tenants owning documents and signing processes.
type OrganizationStore interface {
	// Create registers an organization with its admin email reduced to the bare
	// address. Returns ErrOrganizationAlreadyExists for a known ID and
	// ErrInvalidAdminEmail when the admin email does not parse.
	Create(ctx context.Context, org *models.Organization) error

	// Get returns ErrOrganizationNotFound for an unknown ID.
	Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)

	// CompletionCopy returns the address copied on every completion email of the
	// organization, "" when it has none.
	// Returns ErrOrganizationNotFound for an unknown ID.
	CompletionCopy(ctx context.Context, orgID uuid.UUID) (string, error)
}

// NormalizeAdminEmail returns the bare address of s. A blank s stays empty.
func NormalizeAdminEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAdminEmail, s)
	}
	return addr.Address, nil
}
