// Package cascadev1 holds the messages of the cascade.v1 member API.
//
// Messages are plain Go structs carried as JSON by the connect protocol, see Codec.
package cascadev1

import "time"

// SignatoryInput is one signatory of a new process.
type SignatoryInput struct {
	Email      string `json:"email" validate:"required,email,max=254"`
	Name       string `json:"name" validate:"required,notblank,max=200"`
	OrderIndex int    `json:"order_index" validate:"gte=0"`
	ZoneID     string `json:"zone_id,omitempty" validate:"max=100"`
}

type CreateProcessRequest struct {
	DocumentID  string           `json:"document_id" validate:"required,uuid"`
	Title       string           `json:"title,omitempty" validate:"max=200"`
	Signatories []SignatoryInput `json:"signatories" validate:"required,min=2,max=50,dive"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
}

type CreateProcessResponse struct {
	Process        *Process `json:"process"`
	FirstEmailSent bool     `json:"first_email_sent"`
}

type GetProcessRequest struct {
	ProcessID       string `json:"process_id" validate:"required,uuid"`
	IncludeEvidence bool   `json:"include_evidence,omitempty"`
}

type GetProcessResponse struct {
	Process  *Process    `json:"process"`
	Evidence []*Evidence `json:"evidence,omitempty"`
}

type ResendInvitationRequest struct {
	ProcessID string `json:"process_id" validate:"required,uuid"`
}

type ResendInvitationResponse struct {
	Sent bool `json:"sent"`
}

type CancelProcessRequest struct {
	ProcessID string `json:"process_id" validate:"required,uuid"`
}

type CancelProcessResponse struct {
	Process *Process `json:"process"`
}

// Process is a signing process as seen by organization members.
// Status is one of pending, partially_signed, completed, cancelled or expired.
type Process struct {
	ProcessID        string       `json:"process_id"`
	DocumentID       string       `json:"document_id"`
	Title            string       `json:"title"`
	Status           string       `json:"status"`
	CurrentPosition  int          `json:"current_position"`
	TotalSignatories int          `json:"total_signatories"`
	Signatories      []*Signatory `json:"signatories"`
	IntermediateHash string       `json:"intermediate_hash,omitempty"`
	CreatedBy        string       `json:"created_by,omitempty"`
	ExpiresAt        *time.Time   `json:"expires_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Signatory never carries the access token, which only its owner receives.
type Signatory struct {
	SignatoryID string     `json:"signatory_id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	OrderIndex  int        `json:"order_index"`
	ZoneID      string     `json:"zone_id,omitempty"`
	SignedAt    *time.Time `json:"signed_at,omitempty"`
}

type Evidence struct {
	SignatoryID   string    `json:"signatory_id"`
	Position      int       `json:"position"`
	SignerEmail   string    `json:"signer_email"`
	IP            string    `json:"ip,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	PDFHash       string    `json:"pdf_hash"`
	IntegrityHash string    `json:"integrity_hash"`
	CreatedAt     time.Time `json:"created_at"`
}
