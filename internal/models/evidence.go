package models

import (
	"time"

	"github.com/google/uuid"
)

// Geolocation is an optional position reported by the signer's browser.
type Geolocation struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

// SignatureMetadata captures the context of a signature submission.
type SignatureMetadata struct {
	IP           string       `json:"ip,omitempty"`
	UserAgent    string       `json:"user_agent,omitempty"`
	Fingerprint  string       `json:"fingerprint,omitempty"`
	TimestampUTC string       `json:"timestamp_utc"`
	Geolocation  *Geolocation `json:"geolocation,omitempty"`
}

// Evidence is the append-only proof recorded for each accepted signature.
type Evidence struct {
	EvidenceID    uuid.UUID
	OrgID         uuid.UUID
	ProcessID     uuid.UUID
	SignatoryID   uuid.UUID
	Position      int
	SignerEmail   string
	Metadata      SignatureMetadata
	PDFHash       string // SHA-256 hex of the sealed PDF produced by this signature
	IntegrityHash string // HMAC-SHA256 over signer, signature data and metadata
	CreatedAt     time.Time
}
