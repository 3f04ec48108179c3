// Package blob stores source documents and sealed PDF artifacts.
package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("blob not found")
	ErrThrottled = errors.New("blob storage throttled")
)

// Store is the object storage used for documents.
type Store interface {
	// Put writes data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get reads the object stored under key.
	// Returns ErrNotFound if no object exists.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object stored under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// PresignGet returns a time-limited read URL for key.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// StepKey returns a fresh key for the PDF sealed by the signatory at position.
// Each call yields a distinct key, so concurrent submissions never overwrite
// each other's artifacts.
func StepKey(orgID, processID uuid.UUID, position int) string {
	return fmt.Sprintf("%s/documents/processes/%s/step-%d-%s.pdf",
		orgID, processID, position, uuid.Must(uuid.NewV7()))
}

// SourceKey returns the key of an uploaded source document.
func SourceKey(orgID, documentID uuid.UUID) string {
	return fmt.Sprintf("%s/documents/%s.pdf", orgID, documentID)
}
