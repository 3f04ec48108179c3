package store

import (
	"context"

	"github.com/eduzen/cascadesign/internal/models"
	"github.com/google/uuid"
)

// OutboxStore gives the notification dispatcher access to pending intents.
type OutboxStore interface {
	// ClaimPending moves up to limit pending intents to sending and returns them oldest first.
	// When processID is not uuid.Nil only intents of that process are claimed.
	// Claimed intents are never handed to a second caller.
	ClaimPending(ctx context.Context, processID uuid.UUID, limit int) ([]*models.NotificationIntent, error)

	// MarkSent records a successful delivery.
	MarkSent(ctx context.Context, intentID uuid.UUID) error

	// MarkFailed records a failed delivery. Failed intents are not claimed again.
	MarkFailed(ctx context.Context, intentID uuid.UUID, reason string) error

	// ListByProcess returns all intents of a process oldest first.
	ListByProcess(ctx context.Context, processID uuid.UUID) ([]*models.NotificationIntent, error)
}
