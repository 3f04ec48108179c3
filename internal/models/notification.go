package models

import (
	"time"

	"github.com/google/uuid"
)

// IntentKind identifies what a notification intent asks the dispatcher to send.
type IntentKind string

const (
	IntentNextSigner IntentKind = "next_signer"
	IntentCompletion IntentKind = "completion"
)

// IntentStatus tracks delivery of a notification intent.
type IntentStatus string

const (
	IntentPending IntentStatus = "pending"
	IntentSending IntentStatus = "sending"
	IntentSent    IntentStatus = "sent"
	IntentFailed  IntentStatus = "failed"
)

// NotificationIntent is an outbox row written in the same transaction as the
// state transition that requires it.
type NotificationIntent struct {
	IntentID    uuid.UUID
	ProcessID   uuid.UUID
	Kind        IntentKind
	SignatoryID uuid.UUID // Recipient for next_signer intents, zero for completion
	Status      IntentStatus
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewIntent creates a pending intent.
func NewIntent(processID uuid.UUID, kind IntentKind, signatoryID uuid.UUID, now time.Time) *NotificationIntent {
	return &NotificationIntent{
		IntentID:    uuid.Must(uuid.NewV7()),
		ProcessID:   processID,
		Kind:        kind,
		SignatoryID: signatoryID,
		Status:      IntentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
