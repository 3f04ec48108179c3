// Package signing drives cascade signing processes: creation, the signer's
// read and submit steps, and the member operations on running processes.
package signing

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/eduzen/cascadesign/internal/blob"
	"github.com/eduzen/cascadesign/internal/models"
	"github.com/eduzen/cascadesign/internal/notify"
	"github.com/eduzen/cascadesign/internal/sealer"
	"github.com/eduzen/cascadesign/internal/store"
	"github.com/eduzen/cascadesign/internal/telemetry"
	"github.com/eduzen/cascadesign/internal/tokens"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// DocumentURLTTL is the lifetime of the read URLs handed to signers.
	DocumentURLTTL = time.Hour

	minSignatories   = 2
	maxSignatories   = 50
	minSecretLen     = 32
	tokenIssueTries  = 3
	pdfContentType   = "application/pdf"
	attestationError = "the attestation must be accepted"
)

// Sealer stamps and seals a PDF.
type Sealer interface {
	Seal(ctx context.Context, req sealer.Request) (*sealer.Result, error)
}

// Notifier delivers the outbox intents of a process.
type Notifier interface {
	DeliverPending(ctx context.Context, processID uuid.UUID) (*notify.DeliveryReport, error)
}

// TokenIssuer issues signatory tokens and checks their binding.
type TokenIssuer interface {
	Issue(processID uuid.UUID, orderIndex int) (string, error)
	Verify(tok tokens.Token, processID uuid.UUID, orderIndex int) error
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Organizations store.OrganizationStore
	Documents     store.DocumentStore
	Templates     store.TemplateStore // optional
	Processes     store.ProcessStore
	Outbox        store.OutboxStore
	Blobs         blob.Store
	Sealer        Sealer
	Tokens        TokenIssuer
	Notifier      Notifier
}

// Orchestrator is the cascade state machine. It keeps no state between calls;
// every transition is decided by the process store's compare-and-swap.
type Orchestrator struct {
	orgs      store.OrganizationStore
	documents store.DocumentStore
	templates store.TemplateStore
	processes store.ProcessStore
	outbox    store.OutboxStore
	blobs     blob.Store
	sealer    Sealer
	tokens    TokenIssuer
	notifier  Notifier

	evidenceSecret []byte
	now            func() time.Time
}

// New creates an orchestrator. evidenceSecret keys the integrity hash of
// signature evidence and must be at least 32 bytes.
func New(deps Deps, evidenceSecret []byte) (*Orchestrator, error) {
	if len(evidenceSecret) < minSecretLen {
		return nil, fmt.Errorf("evidence secret must be at least %d bytes", minSecretLen)
	}
	if deps.Organizations == nil || deps.Documents == nil || deps.Processes == nil || deps.Outbox == nil ||
		deps.Blobs == nil || deps.Sealer == nil || deps.Tokens == nil || deps.Notifier == nil {
		return nil, errors.New("signing: missing dependency")
	}

	return &Orchestrator{
		orgs:           deps.Organizations,
		documents:      deps.Documents,
		templates:      deps.Templates,
		processes:      deps.Processes,
		outbox:         deps.Outbox,
		blobs:          deps.Blobs,
		sealer:         deps.Sealer,
		tokens:         deps.Tokens,
		notifier:       deps.Notifier,
		evidenceSecret: evidenceSecret,
		now:            time.Now,
	}, nil
}

// SignatoryInput is one signatory of a CreateProcess request.
type SignatoryInput struct {
	Email      string
	Name       string
	OrderIndex int
	ZoneID     string
}

// CreateProcessRequest starts a cascade on a document.
type CreateProcessRequest struct {
	OrgID       uuid.UUID
	DocumentID  uuid.UUID
	CreatedBy   uuid.UUID
	Title       string
	Signatories []SignatoryInput
	ExpiresAt   *time.Time
}

// CreateProcessResult is the new process and whether the first invitation went out.
type CreateProcessResult struct {
	Process        *models.SigningProcess
	FirstEmailSent bool
}

// CreateProcess validates the request, persists the process at position 0 and
// invites the first signatory. A failed invitation does not undo the creation;
// it is reported through FirstEmailSent and can be resent.
func (o *Orchestrator) CreateProcess(ctx context.Context, req CreateProcessRequest) (*CreateProcessResult, error) {
	signatories, err := validateSignatories(req.Signatories)
	if err != nil {
		return nil, err
	}

	now := o.now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: expiry must be in the future", ErrValidation)
	}

	if _, err := o.orgs.Get(ctx, req.OrgID); err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return nil, fmt.Errorf("%w: organization %s", ErrNotFound, req.OrgID)
		}
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}

	doc, err := o.documents.Get(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			return nil, fmt.Errorf("%w: document %s", ErrNotFound, req.DocumentID)
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if doc.OrgID != req.OrgID {
		return nil, fmt.Errorf("%w: document does not belong to this organization", ErrForbidden)
	}

	if err := o.checkStampRoom(ctx, doc, len(signatories)); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = doc.Title
	}

	process := &models.SigningProcess{
		ProcessID:  uuid.Must(uuid.NewV7()),
		OrgID:      req.OrgID,
		DocumentID: doc.DocumentID,
		Title:      title,
		Status:     models.ProcessStatusPending,
		CreatedBy:  req.CreatedBy,
		ExpiresAt:  req.ExpiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, in := range signatories {
		process.Signatories = append(process.Signatories, &models.Signatory{
			SignatoryID: uuid.Must(uuid.NewV7()),
			ProcessID:   process.ProcessID,
			Email:       in.Email,
			Name:        in.Name,
			OrderIndex:  in.OrderIndex,
			ZoneID:      in.ZoneID,
		})
	}

	invite := models.NewIntent(process.ProcessID, models.IntentNextSigner, process.Signatories[0].SignatoryID, now)

	for attempt := 1; ; attempt++ {
		for _, sig := range process.Signatories {
			if sig.Token, err = o.tokens.Issue(process.ProcessID, sig.OrderIndex); err != nil {
				return nil, err
			}
		}

		err = o.processes.Create(ctx, process, []*models.NotificationIntent{invite})
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrTokenAlreadyExists) || attempt == tokenIssueTries {
			return nil, fmt.Errorf("failed to create process: %w", err)
		}
		log.Warn().Str("process_id", process.ProcessID.String()).Int("attempt", attempt).Msg("Token collision, reissuing")
	}

	telemetry.GetMetrics().ProcessesCreatedTotal.Add(ctx, 1)

	log.Info().
		Str("process_id", process.ProcessID.String()).
		Str("org_id", process.OrgID.String()).
		Str("document_id", process.DocumentID.String()).
		Int("signatories", len(process.Signatories)).
		Msg("Created signing process")

	return &CreateProcessResult{
		Process:        process,
		FirstEmailSent: o.deliver(ctx, process.ProcessID, invite),
	}, nil
}

// checkStampRoom rejects a process whose signature stamps cannot all fit on the
// last page of the document, where signatories without a zone are stamped.
func (o *Orchestrator) checkStampRoom(ctx context.Context, doc *models.Document, n int) error {
	src, err := o.blobs.Get(ctx, doc.StorageKey)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	capacity, err := sealer.FallbackCapacity(src)
	if err != nil {
		log.Warn().Err(err).Str("document_id", doc.DocumentID.String()).Msg("Cannot measure signature room")
		return nil
	}
	if n > capacity {
		return fmt.Errorf("%w: the last page holds at most %d signature stamps", ErrValidation, capacity)
	}
	return nil
}

func validateSignatories(in []SignatoryInput) ([]SignatoryInput, error) {
	if len(in) < minSignatories {
		return nil, fmt.Errorf("%w: at least %d signatories are required", ErrValidation, minSignatories)
	}
	if len(in) > maxSignatories {
		return nil, fmt.Errorf("%w: at most %d signatories are allowed", ErrValidation, maxSignatories)
	}

	out := slices.Clone(in)
	slices.SortStableFunc(out, func(a, b SignatoryInput) int { return a.OrderIndex - b.OrderIndex })

	for i := range out {
		if out[i].OrderIndex != i {
			return nil, fmt.Errorf("%w: order indices must be contiguous from 0", ErrValidation)
		}
		out[i].Name = strings.TrimSpace(out[i].Name)
		if out[i].Name == "" {
			return nil, fmt.Errorf("%w: signatory %d has no name", ErrValidation, i)
		}
		addr, err := mail.ParseAddress(strings.TrimSpace(out[i].Email))
		if err != nil {
			return nil, fmt.Errorf("%w: signatory %d has an invalid email", ErrValidation, i)
		}
		out[i].Email = addr.Address
	}

	return out, nil
}

// ResolveToken finds the signatory holding token and its process in one lookup.
func (o *Orchestrator) ResolveToken(ctx context.Context, token string) (*models.SigningProcess, *models.Signatory, error) {
	tok, err := tokens.Parse(token)
	if err != nil {
		return nil, nil, ErrNotFound
	}

	process, sig, err := o.processes.GetByToken(ctx, tok.Value)
	if err != nil {
		if errors.Is(err, store.ErrTokenNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to resolve token: %w", err)
	}

	if err := o.tokens.Verify(tok, process.ProcessID, sig.OrderIndex); err != nil {
		log.Warn().Err(err).Str("process_id", process.ProcessID.String()).Msg("Token binding mismatch")
		return nil, nil, ErrNotFound
	}

	return process, sig, nil
}

// checkTurn applies the signer checks after the token resolved: a terminal
// process or an already signed signatory is gone, anyone else but the current
// position is early.
func checkTurn(process *models.SigningProcess, sig *models.Signatory) error {
	if process.Status.IsTerminal() {
		return fmt.Errorf("%w: process is %s", ErrGone, process.Status)
	}
	if sig.HasSigned() {
		return fmt.Errorf("%w: already signed", ErrGone)
	}
	if sig.OrderIndex != process.CurrentPosition {
		return ErrForbidden
	}
	return nil
}

// SignerDocument is what a signer sees before signing.
type SignerDocument struct {
	ProcessID  uuid.UUID
	Title      string
	SignerName string
	Position   int
	Total      int
	URL        string
	ExpiresIn  int // seconds
}

// GetCurrentDocumentForSigner returns a read URL for the document the signer must
// sign: the source document at position 0, the previous signer's sealed PDF after.
func (o *Orchestrator) GetCurrentDocumentForSigner(ctx context.Context, token string) (*SignerDocument, error) {
	process, sig, err := o.ResolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := checkTurn(process, sig); err != nil {
		return nil, err
	}

	doc, err := o.documents.Get(ctx, process.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	key, err := currentKey(process, doc)
	if err != nil {
		return nil, err
	}

	url, err := o.blobs.PresignGet(ctx, key, DocumentURLTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to presign document: %w", err)
	}

	return &SignerDocument{
		ProcessID:  process.ProcessID,
		Title:      process.Title,
		SignerName: sig.Name,
		Position:   sig.OrderIndex,
		Total:      len(process.Signatories),
		URL:        url,
		ExpiresIn:  int(DocumentURLTTL / time.Second),
	}, nil
}

// currentKey returns the blob key of the PDF the current signer works on.
func currentKey(process *models.SigningProcess, doc *models.Document) (string, error) {
	if process.CurrentPosition == 0 {
		return doc.StorageKey, nil
	}
	if process.IntermediateKey == "" {
		return "", fmt.Errorf("process %s at position %d has no intermediate document", process.ProcessID, process.CurrentPosition)
	}
	return process.IntermediateKey, nil
}

// SubmitRequest is a signature submitted through a signer link.
type SubmitRequest struct {
	Token       string
	Signature   string // PNG data URL, base64 or raw bytes
	Attestation bool
	IP          string
	UserAgent   string
	Fingerprint string
	Geolocation *models.Geolocation
}

// SubmitResult describes an accepted signature.
type SubmitResult struct {
	ProcessID        uuid.UUID
	Completed        bool
	Position         int // position of the next signer, or of the last one when completed
	PDFHash          string
	NotificationSent bool
}

// SubmitSignature seals the signer's signature into the current document and
// advances the cascade. The sealed PDF is stored before the position moves;
// a submission that loses the race removes its artifact and gets ErrConflict.
// Notification failures are logged and never fail the submission.
func (o *Orchestrator) SubmitSignature(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	metrics := telemetry.GetMetrics()

	process, sig, err := o.ResolveToken(ctx, req.Token)
	if err != nil {
		metrics.SignatureRejectedTotal.Add(ctx, 1)
		return nil, err
	}
	if err := checkTurn(process, sig); err != nil {
		metrics.SignatureRejectedTotal.Add(ctx, 1)
		return nil, err
	}

	logger := log.With().
		Str("process_id", process.ProcessID.String()).
		Str("signatory_id", sig.SignatoryID.String()).
		Int("position", sig.OrderIndex).
		Logger()

	if !req.Attestation {
		return nil, fmt.Errorf("%w: %s", ErrValidation, attestationError)
	}
	image, err := sealer.DecodeSignatureImage(req.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	doc, err := o.documents.Get(ctx, process.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	srcKey, err := currentKey(process, doc)
	if err != nil {
		return nil, err
	}
	src, err := o.blobs.Get(ctx, srcKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load current document: %w", err)
	}

	signedAt := o.now().UTC()
	final := process.IsLast(sig.OrderIndex)

	started := time.Now()
	sealed, err := o.sealer.Seal(ctx, sealer.Request{
		PDF:   src,
		Image: image,
		Zone:  o.resolveZone(ctx, doc, sig),
		Slot:  sig.OrderIndex,
		Slots: len(process.Signatories),
		Signer: sealer.SignerInfo{
			Name:     sig.Name,
			Email:    sig.Email,
			IP:       req.IP,
			SignedAt: signedAt,
		},
		Reason: fmt.Sprintf("Signature %d/%d", sig.OrderIndex+1, len(process.Signatories)),
	})
	metrics.SealDuration.Record(ctx, float64(time.Since(started).Milliseconds()))
	if err != nil {
		logger.Error().Err(err).Msg("Sealing failed")
		return nil, fmt.Errorf("%w: %w", ErrSealing, err)
	}

	key := blob.StepKey(process.OrgID, process.ProcessID, sig.OrderIndex)
	if err := o.blobs.Put(ctx, key, sealed.PDF, pdfContentType); err != nil {
		return nil, fmt.Errorf("failed to store sealed document: %w", err)
	}

	md := models.SignatureMetadata{
		IP:           req.IP,
		UserAgent:    req.UserAgent,
		Fingerprint:  req.Fingerprint,
		TimestampUTC: signedAt.Format(time.RFC3339),
		Geolocation:  req.Geolocation,
	}
	integrity, err := IntegrityHash(o.evidenceSecret, sig.Email, req.Signature, md)
	if err != nil {
		o.removeOrphan(ctx, key)
		return nil, err
	}

	var intents []*models.NotificationIntent
	if final {
		intents = append(intents, models.NewIntent(process.ProcessID, models.IntentCompletion, uuid.Nil, signedAt))
	} else {
		next := process.Signatories[sig.OrderIndex+1]
		intents = append(intents, models.NewIntent(process.ProcessID, models.IntentNextSigner, next.SignatoryID, signedAt))
	}

	err = o.processes.Advance(ctx, store.AdvanceParams{
		ProcessID:        process.ProcessID,
		SignatoryID:      sig.SignatoryID,
		FromPosition:     sig.OrderIndex,
		Final:            final,
		SignedAt:         signedAt,
		SignatureData:    req.Signature,
		IntermediateKey:  key,
		IntermediateHash: sealed.SHA256,
		Evidence: &models.Evidence{
			EvidenceID:    uuid.Must(uuid.NewV7()),
			OrgID:         process.OrgID,
			ProcessID:     process.ProcessID,
			SignatoryID:   sig.SignatoryID,
			Position:      sig.OrderIndex,
			SignerEmail:   sig.Email,
			Metadata:      md,
			PDFHash:       sealed.SHA256,
			IntegrityHash: integrity,
			CreatedAt:     signedAt,
		},
		Intents: intents,
	})
	if err != nil {
		o.removeOrphan(ctx, key)
		switch {
		case errors.Is(err, store.ErrPositionConflict):
			metrics.SignatureConflictsTotal.Add(ctx, 1)
			logger.Warn().Err(err).Msg("Lost the position race")
			return nil, ErrConflict
		case errors.Is(err, store.ErrProcessTerminal):
			return nil, fmt.Errorf("%w: process is no longer pending", ErrGone)
		case errors.Is(err, store.ErrProcessNotFound), errors.Is(err, store.ErrSignatoryNotFound):
			return nil, ErrNotFound
		default:
			return nil, fmt.Errorf("failed to advance process: %w", err)
		}
	}

	// the new artifact carries every earlier signature as an incremental update
	if process.IntermediateKey != "" {
		o.removeOrphan(ctx, process.IntermediateKey)
	}

	metrics.SignaturesAcceptedTotal.Add(ctx, 1)
	if final {
		metrics.ProcessesCompletedTotal.Add(ctx, 1)
	}

	logger.Info().
		Bool("completed", final).
		Str("pdf_sha256", sealed.SHA256).
		Int("page", sealed.Page).
		Msg("Signature accepted")

	result := &SubmitResult{
		ProcessID: process.ProcessID,
		Completed: final,
		Position:  sig.OrderIndex,
		PDFHash:   sealed.SHA256,
	}
	if !final {
		result.Position++
	}
	result.NotificationSent = o.deliver(ctx, process.ProcessID, intents...)

	return result, nil
}

func (o *Orchestrator) removeOrphan(ctx context.Context, key string) {
	if err := o.blobs.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to remove artifact")
	}
}

// deliver sends the pending notifications of a process and reports whether the
// given intents went out. An intent the background sweep claimed first is judged
// by the state the sweep left it in. Failures stay in the outbox as failed intents.
func (o *Orchestrator) deliver(ctx context.Context, processID uuid.UUID, enqueued ...*models.NotificationIntent) bool {
	report, err := o.notifier.DeliverPending(ctx, processID)
	if err != nil {
		log.Error().Err(err).Str("process_id", processID.String()).Msg("Failed to deliver notifications")
		return false
	}
	for _, f := range report.Failures {
		log.Warn().Err(f.Err).
			Str("process_id", processID.String()).
			Str("recipient", f.Recipient).
			Str("kind", string(f.Kind)).
			Msg("Notification delivery failure")
	}
	if !report.OK() {
		return false
	}

	intents, err := o.outbox.ListByProcess(ctx, processID)
	if err != nil {
		log.Error().Err(err).Str("process_id", processID.String()).Msg("Failed to read notification state")
		return false
	}
	for _, want := range enqueued {
		i := slices.IndexFunc(intents, func(in *models.NotificationIntent) bool { return in.IntentID == want.IntentID })
		if i < 0 {
			return false
		}
		switch intents[i].Status {
		case models.IntentSent, models.IntentSending:
		default:
			return false
		}
	}
	return true
}

// GetProcess returns a process of the caller's organization.
func (o *Orchestrator) GetProcess(ctx context.Context, orgID, processID uuid.UUID) (*models.SigningProcess, error) {
	process, err := o.processes.Get(ctx, processID)
	if err != nil {
		if errors.Is(err, store.ErrProcessNotFound) {
			return nil, fmt.Errorf("%w: process %s", ErrNotFound, processID)
		}
		return nil, fmt.Errorf("failed to load process: %w", err)
	}
	if process.OrgID != orgID {
		return nil, fmt.Errorf("%w: process %s", ErrNotFound, processID)
	}
	return process, nil
}

// ListEvidence returns the evidence recorded for a process of the caller's organization.
func (o *Orchestrator) ListEvidence(ctx context.Context, orgID, processID uuid.UUID) ([]*models.Evidence, error) {
	if _, err := o.GetProcess(ctx, orgID, processID); err != nil {
		return nil, err
	}
	return o.processes.ListEvidence(ctx, processID)
}

// ResendInvitation emails the current signatory again and reports whether it was sent.
func (o *Orchestrator) ResendInvitation(ctx context.Context, orgID, processID uuid.UUID) (bool, error) {
	process, err := o.GetProcess(ctx, orgID, processID)
	if err != nil {
		return false, err
	}
	if process.Status.IsTerminal() {
		return false, fmt.Errorf("%w: process is %s", ErrGone, process.Status)
	}

	sig, ok := process.Signatory(process.CurrentPosition)
	if !ok {
		return false, fmt.Errorf("process %s has no signatory at position %d", processID, process.CurrentPosition)
	}

	intent := models.NewIntent(processID, models.IntentNextSigner, sig.SignatoryID, o.now())
	if err := o.processes.EnqueueIntent(ctx, intent); err != nil {
		return false, fmt.Errorf("failed to enqueue invitation: %w", err)
	}

	log.Info().
		Str("process_id", processID.String()).
		Int("position", sig.OrderIndex).
		Msg("Invitation resend requested")

	return o.deliver(ctx, processID, intent), nil
}

// CancelProcess stops a pending process. Outstanding links become gone.
func (o *Orchestrator) CancelProcess(ctx context.Context, orgID, processID uuid.UUID) error {
	if _, err := o.GetProcess(ctx, orgID, processID); err != nil {
		return err
	}

	if err := o.processes.Cancel(ctx, processID); err != nil {
		if errors.Is(err, store.ErrProcessTerminal) {
			return fmt.Errorf("%w: process is no longer pending", ErrGone)
		}
		return fmt.Errorf("failed to cancel process: %w", err)
	}

	telemetry.GetMetrics().ProcessesCancelledTotal.Add(ctx, 1)
	log.Info().Str("process_id", processID.String()).Msg("Cancelled signing process")
	return nil
}
