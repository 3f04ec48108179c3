package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/eduzen/cascadesign/internal/models"
	"github.com/eduzen/cascadesign/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ProcessStore implements store.ProcessStore and store.OutboxStore in memory.
// A single mutex guards processes, tokens, evidence and the outbox so every
// transition is atomic.
type ProcessStore struct {
	mu sync.RWMutex

	processes map[uuid.UUID]*models.SigningProcess // process_id -> process
	tokens    map[string]uuid.UUID                 // token -> process_id
	evidence  map[uuid.UUID][]*models.Evidence      // process_id -> evidence
	intents   []*models.NotificationIntent          // insertion order

	documents *DocumentStore // optional, marked signed on completion
}

// NewProcessStore creates a new in-memory process store. When documents is not nil
// the source document is marked signed when a process completes.
func NewProcessStore(documents *DocumentStore) *ProcessStore {
	return &ProcessStore{
		processes: make(map[uuid.UUID]*models.SigningProcess),
		tokens:    make(map[string]uuid.UUID),
		evidence:  make(map[uuid.UUID][]*models.Evidence),
		documents: documents,
	}
}

// Create persists a process with its signatories and initial intents.
func (s *ProcessStore) Create(ctx context.Context, process *models.SigningProcess, intents []*models.NotificationIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.processes[process.ProcessID]; exists {
		return fmt.Errorf("process %s already exists", process.ProcessID)
	}

	seen := make(map[string]struct{}, len(process.Signatories))
	for _, sig := range process.Signatories {
		if _, exists := s.tokens[sig.Token]; exists {
			return store.ErrTokenAlreadyExists
		}
		if _, dup := seen[sig.Token]; dup {
			return store.ErrTokenAlreadyExists
		}
		seen[sig.Token] = struct{}{}
	}

	clone := process.Clone()
	s.processes[process.ProcessID] = clone
	for _, sig := range clone.Signatories {
		s.tokens[sig.Token] = process.ProcessID
	}
	for _, intent := range intents {
		c := *intent
		s.intents = append(s.intents, &c)
	}

	return nil
}

// Get retrieves a process by ID.
func (s *ProcessStore) Get(ctx context.Context, processID uuid.UUID) (*models.SigningProcess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.processes[processID]
	if !exists {
		return nil, store.ErrProcessNotFound
	}
	return p.Clone(), nil
}

// GetByToken resolves a token to its signatory and process.
func (s *ProcessStore) GetByToken(ctx context.Context, token string) (*models.SigningProcess, *models.Signatory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	processID, exists := s.tokens[token]
	if !exists {
		return nil, nil, store.ErrTokenNotFound
	}

	p := s.processes[processID].Clone()
	for _, sig := range p.Signatories {
		if sig.Token == token {
			return p, sig, nil
		}
	}
	return nil, nil, store.ErrTokenNotFound
}

// Advance applies a signature with a compare-and-swap on the current position.
func (s *ProcessStore) Advance(ctx context.Context, params store.AdvanceParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.processes[params.ProcessID]
	if !exists {
		return store.ErrProcessNotFound
	}
	if p.Status != models.ProcessStatusPending {
		return store.ErrProcessTerminal
	}
	if p.CurrentPosition != params.FromPosition {
		return fmt.Errorf("%w: expected %d, found %d", store.ErrPositionConflict, params.FromPosition, p.CurrentPosition)
	}

	sig, ok := p.Signatory(params.FromPosition)
	if !ok || sig.SignatoryID != params.SignatoryID {
		return store.ErrSignatoryNotFound
	}
	if sig.HasSigned() {
		return fmt.Errorf("%w: signatory already signed", store.ErrPositionConflict)
	}

	signedAt := params.SignedAt
	sig.SignedAt = &signedAt

	p.IntermediateKey = params.IntermediateKey
	p.IntermediateHash = params.IntermediateHash
	p.UpdatedAt = params.SignedAt
	if params.Final {
		p.Status = models.ProcessStatusCompleted
	} else {
		p.CurrentPosition++
	}

	if params.Evidence != nil {
		ev := *params.Evidence
		s.evidence[p.ProcessID] = append(s.evidence[p.ProcessID], &ev)
	}
	for _, intent := range params.Intents {
		c := *intent
		s.intents = append(s.intents, &c)
	}

	if params.Final && s.documents != nil {
		s.documents.markSigned(p.DocumentID, params.IntermediateKey, params.SignedAt)
	}

	log.Debug().
		Str("process_id", p.ProcessID.String()).
		Int("position", params.FromPosition).
		Bool("final", params.Final).
		Msg("Advanced process")

	return nil
}

// Cancel moves a pending process to cancelled.
func (s *ProcessStore) Cancel(ctx context.Context, processID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.processes[processID]
	if !exists {
		return store.ErrProcessNotFound
	}
	if p.Status != models.ProcessStatusPending {
		return store.ErrProcessTerminal
	}
	p.Status = models.ProcessStatusCancelled
	p.UpdatedAt = time.Now()
	return nil
}

// ExpireDue expires pending processes whose deadline passed.
func (s *ProcessStore) ExpireDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []uuid.UUID
	for id, p := range s.processes {
		if p.Status == models.ProcessStatusPending && p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
			p.Status = models.ProcessStatusExpired
			p.UpdatedAt = now
			expired = append(expired, id)
		}
	}
	return expired, nil
}

// EnqueueIntent appends an intent to the outbox.
func (s *ProcessStore) EnqueueIntent(ctx context.Context, intent *models.NotificationIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.processes[intent.ProcessID]; !exists {
		return store.ErrProcessNotFound
	}
	c := *intent
	s.intents = append(s.intents, &c)
	return nil
}

// ListEvidence returns the evidence recorded for a process.
func (s *ProcessStore) ListEvidence(ctx context.Context, processID uuid.UUID) ([]*models.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Evidence, 0, len(s.evidence[processID]))
	for _, ev := range s.evidence[processID] {
		c := *ev
		result = append(result, &c)
	}
	slices.SortFunc(result, func(a, b *models.Evidence) int { return a.Position - b.Position })
	return result, nil
}

// ClaimPending moves pending intents to sending.
func (s *ProcessStore) ClaimPending(ctx context.Context, processID uuid.UUID, limit int) ([]*models.NotificationIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []*models.NotificationIntent
	for _, intent := range s.intents {
		if len(claimed) >= limit {
			break
		}
		if intent.Status != models.IntentPending {
			continue
		}
		if processID != uuid.Nil && intent.ProcessID != processID {
			continue
		}
		intent.Status = models.IntentSending
		intent.Attempts++
		intent.UpdatedAt = time.Now()
		c := *intent
		claimed = append(claimed, &c)
	}
	return claimed, nil
}

// MarkSent records a successful delivery.
func (s *ProcessStore) MarkSent(ctx context.Context, intentID uuid.UUID) error {
	return s.finishIntent(intentID, models.IntentSent, "")
}

// MarkFailed records a failed delivery.
func (s *ProcessStore) MarkFailed(ctx context.Context, intentID uuid.UUID, reason string) error {
	return s.finishIntent(intentID, models.IntentFailed, reason)
}

func (s *ProcessStore) finishIntent(intentID uuid.UUID, status models.IntentStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, intent := range s.intents {
		if intent.IntentID == intentID {
			intent.Status = status
			intent.LastError = reason
			intent.UpdatedAt = time.Now()
			return nil
		}
	}
	return store.ErrIntentNotFound
}

// ListByProcess returns the intents of a process.
func (s *ProcessStore) ListByProcess(ctx context.Context, processID uuid.UUID) ([]*models.NotificationIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.NotificationIntent
	for _, intent := range s.intents {
		if intent.ProcessID == processID {
			c := *intent
			result = append(result, &c)
		}
	}
	return result, nil
}
