package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a training organization (tenant) in the system.
// Each organization owns documents and the signing processes started on them.
type Organization struct {
	OrgID      uuid.UUID // UUIDv7
	Name       string
	AdminEmail string // Receives a copy of every completed document
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
