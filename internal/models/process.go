package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessStatus is the lifecycle state of a signing process.
type ProcessStatus string

const (
	ProcessStatusPending   ProcessStatus = "pending"
	ProcessStatusCompleted ProcessStatus = "completed"
	ProcessStatusCancelled ProcessStatus = "cancelled"
	ProcessStatusExpired   ProcessStatus = "expired"
)

// IsTerminal reports whether no further signatures can be accepted.
func (s ProcessStatus) IsTerminal() bool {
	return s != ProcessStatusPending
}

// SigningProcess is a cascade of signatories signing one document in order.
//
// While Status is pending, CurrentPosition is a valid index into Signatories.
// Each accepted signature moves CurrentPosition forward by exactly one, the last
// one moves Status to completed and leaves CurrentPosition on the final signatory.
type SigningProcess struct {
	ProcessID       uuid.UUID // UUIDv7
	OrgID           uuid.UUID
	DocumentID      uuid.UUID
	Title           string
	Status          ProcessStatus
	CurrentPosition int

	// IntermediateKey is the blob key of the PDF sealed by the previous signatory.
	// Empty until the first signature is accepted.
	IntermediateKey  string
	IntermediateHash string // SHA-256 hex of the intermediate PDF

	CreatedBy uuid.UUID // Organization member who started the process
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	Signatories []*Signatory // Ordered by OrderIndex
}

// DisplayStatus returns the status as shown to organization members.
// A pending process that already collected signatures is "partially_signed".
func (p *SigningProcess) DisplayStatus() string {
	if p.Status == ProcessStatusPending && p.CurrentPosition > 0 {
		return "partially_signed"
	}
	return string(p.Status)
}

// Signatory returns the signatory at the given position.
func (p *SigningProcess) Signatory(position int) (*Signatory, bool) {
	if position < 0 || position >= len(p.Signatories) {
		return nil, false
	}
	return p.Signatories[position], true
}

// IsLast reports whether position is the final slot in the cascade.
func (p *SigningProcess) IsLast(position int) bool {
	return position == len(p.Signatories)-1
}

// Signatory is one participant in a signing process.
type Signatory struct {
	SignatoryID uuid.UUID // UUIDv7
	ProcessID   uuid.UUID
	Email       string
	Name        string
	OrderIndex  int    // Dense, 0..N-1, unique per process
	ZoneID      string // Sign zone reserved for this signatory's role, optional
	Token       string // Private access token, globally unique
	SignedAt    *time.Time
}

// HasSigned reports whether the signatory already signed.
func (s *Signatory) HasSigned() bool {
	return s.SignedAt != nil
}

// Clone returns a deep copy of the process including its signatories.
func (p *SigningProcess) Clone() *SigningProcess {
	clone := *p
	if p.ExpiresAt != nil {
		t := *p.ExpiresAt
		clone.ExpiresAt = &t
	}
	clone.Signatories = make([]*Signatory, len(p.Signatories))
	for i, s := range p.Signatories {
		clone.Signatories[i] = s.Clone()
	}
	return &clone
}

// Clone returns a copy of the signatory.
func (s *Signatory) Clone() *Signatory {
	clone := *s
	if s.SignedAt != nil {
		t := *s.SignedAt
		clone.SignedAt = &t
	}
	return &clone
}
