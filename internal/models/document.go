package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus represents the signature state of a source document.
type DocumentStatus string

const (
	DocumentStatusDraft  DocumentStatus = "draft"
	DocumentStatusSigned DocumentStatus = "signed"
)

// Document is a source PDF belonging to an organization.
// The original bytes live in blob storage under StorageKey and are never modified.
type Document struct {
	DocumentID uuid.UUID // UUIDv7
	OrgID      uuid.UUID // FK to organizations
	Title      string
	Type       string // e.g. "convention", "attestation"
	StorageKey string // Blob key of the original PDF
	SignZones  []SignZone

	Status           DocumentStatus
	SignedStorageKey string // Blob key of the fully sealed PDF, set at completion
	SignedAt         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SignZone is a named rectangle on a PDF page, in fractional page coordinates
// measured from the top-left corner of the page.
type SignZone struct {
	ID    string  `json:"id" yaml:"id"`
	Page  int     `json:"page" yaml:"page"` // 1-based
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	W     float64 `json:"w" yaml:"w"`
	H     float64 `json:"h" yaml:"h"`
	Label string  `json:"label,omitempty" yaml:"label,omitempty"`
}

// Validate checks that the zone lies inside the page.
func (z SignZone) Validate() error {
	if z.ID == "" {
		return fmt.Errorf("sign zone id is required")
	}
	if z.Page < 1 {
		return fmt.Errorf("sign zone %s: page must be >= 1", z.ID)
	}
	for name, v := range map[string]float64{"x": z.X, "y": z.Y, "w": z.W, "h": z.H} {
		if v < 0 || v > 1 {
			return fmt.Errorf("sign zone %s: %s must be within [0,1]", z.ID, name)
		}
	}
	if z.W == 0 || z.H == 0 {
		return fmt.Errorf("sign zone %s: width and height must be positive", z.ID)
	}
	if z.X+z.W > 1 || z.Y+z.H > 1 {
		return fmt.Errorf("sign zone %s: extends beyond the page", z.ID)
	}
	return nil
}

// FindZone returns the zone with the given id.
func FindZone(zones []SignZone, id string) (SignZone, bool) {
	if id == "" {
		return SignZone{}, false
	}
	for _, z := range zones {
		if z.ID == id {
			return z, true
		}
	}
	return SignZone{}, false
}
