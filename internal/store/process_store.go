package store

import (
	"context"
	"time"

	"github.com/eduzen/cascadesign/internal/models"
	"github.com/google/uuid"
)

// AdvanceParams describes one accepted signature.
type AdvanceParams struct {
	ProcessID   uuid.UUID
	SignatoryID uuid.UUID

	// FromPosition is the position the caller observed when it validated the token.
	// The transition only applies if the stored position still equals it.
	FromPosition int

	// Final marks the last signature: the process completes instead of advancing.
	Final bool

	SignedAt         time.Time
	SignatureData    string // Signature image as submitted, kept for evidence
	IntermediateKey  string // Blob key of the PDF sealed by this signature
	IntermediateHash string

	Evidence *models.Evidence

	// Intents are written to the outbox in the same transaction.
	Intents []*models.NotificationIntent
}

// ProcessStore defines the interface for signing process storage.
type ProcessStore interface {
	// Create persists a process, its signatories and the initial outbox intents atomically.
	// Returns ErrTokenAlreadyExists if any signatory token collides with an existing one.
	Create(ctx context.Context, process *models.SigningProcess, intents []*models.NotificationIntent) error

	// Get retrieves a process with its ordered signatories.
	// Returns ErrProcessNotFound if the process doesn't exist.
	Get(ctx context.Context, processID uuid.UUID) (*models.SigningProcess, error)

	// GetByToken resolves a signatory token to the signatory and its parent process in one lookup.
	// Returns ErrTokenNotFound if no signatory holds the token.
	GetByToken(ctx context.Context, token string) (*models.SigningProcess, *models.Signatory, error)

	// Advance records a signature and moves the process forward with a compare-and-swap on
	// the current position. Returns ErrPositionConflict if another submission moved the
	// position first or the signatory already signed, ErrProcessTerminal if the process
	// is no longer pending.
	Advance(ctx context.Context, params AdvanceParams) error

	// Cancel moves a pending process to cancelled.
	// Returns ErrProcessTerminal if the process is not pending.
	Cancel(ctx context.Context, processID uuid.UUID) error

	// ExpireDue moves pending processes whose deadline is before now to expired
	// and returns their IDs.
	ExpireDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	// EnqueueIntent adds an intent to the outbox outside of a transition (manual resend).
	EnqueueIntent(ctx context.Context, intent *models.NotificationIntent) error

	// ListEvidence returns the evidence rows recorded for a process in position order.
	ListEvidence(ctx context.Context, processID uuid.UUID) ([]*models.Evidence, error)
}
