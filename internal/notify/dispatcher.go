package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/eduzen/cascadesign/internal/audit"
	"github.com/eduzen/cascadesign/internal/blob"
	"github.com/eduzen/cascadesign/internal/models"
	"github.com/eduzen/cascadesign/internal/store"
	"github.com/eduzen/cascadesign/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultBatchSize = 20
	defaultInterval  = 30 * time.Second
)

// NotificationDeliveryFailure records an email that could not be delivered.
type NotificationDeliveryFailure struct {
	Recipient string
	Kind      models.IntentKind
	Err       error
}

func (f NotificationDeliveryFailure) Error() string {
	return fmt.Sprintf("%s notification to %s: %v", f.Kind, f.Recipient, f.Err)
}

func (f NotificationDeliveryFailure) Unwrap() error {
	return f.Err
}

// DeliveryReport summarises one DeliverPending call.
type DeliveryReport struct {
	Claimed  int
	Sent     int
	Failures []NotificationDeliveryFailure
}

// OK reports whether every claimed intent was delivered. A call that found
// nothing to claim is OK: another caller owns those intents.
func (r *DeliveryReport) OK() bool {
	return len(r.Failures) == 0
}

// Config configures a Dispatcher.
type Config struct {
	BaseURL   string // public origin serving /sign/{token}
	BatchSize int
	Interval  time.Duration // background sweep period
}

// Dispatcher turns outbox intents into emails.
//
// Intents are claimed before sending so that a synchronous DeliverPending and
// the background sweep never deliver the same intent twice. A failed intent is
// marked failed and only sent again when an operator enqueues a new one.
type Dispatcher struct {
	mailer    Mailer
	outbox    store.OutboxStore
	processes store.ProcessStore
	documents store.DocumentStore
	orgs      store.OrganizationStore
	blobs     blob.Store
	cfg       Config
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(
	mailer Mailer,
	outbox store.OutboxStore,
	processes store.ProcessStore,
	documents store.DocumentStore,
	orgs store.OrganizationStore,
	blobs blob.Store,
	cfg Config,
) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	return &Dispatcher{
		mailer:    mailer,
		outbox:    outbox,
		processes: processes,
		documents: documents,
		orgs:      orgs,
		blobs:     blobs,
		cfg:       cfg,
	}
}

// SignURL returns the signer page URL embedding token.
func (d *Dispatcher) SignURL(token string) string {
	return strings.TrimRight(d.cfg.BaseURL, "/") + "/sign/" + url.PathEscape(token)
}

// NotifyNextSigner sends the invitation email to a single signatory.
func (d *Dispatcher) NotifyNextSigner(ctx context.Context, email, name, documentTitle, signURL, positionLabel string) error {
	text, html, err := render(invitationText, invitationHTML, invitationData{
		Name:     name,
		Title:    documentTitle,
		SignURL:  signURL,
		Position: positionLabel,
	})
	if err != nil {
		return err
	}

	err = d.mailer.Send(ctx, &Message{
		To:      []mail.Address{{Name: name, Address: email}},
		Subject: invitationSubject(documentTitle),
		Text:    text,
		HTML:    html,
	})
	d.record(ctx, models.IntentNextSigner, err)
	if err != nil {
		return NotificationDeliveryFailure{Recipient: email, Kind: models.IntentNextSigner, Err: err}
	}
	return nil
}

// NotifyCompletion sends the sealed PDF to every distinct recipient and to
// adminEmail when it differs from all of them. Recipients are addressed
// individually and concurrently; the failures are returned per recipient.
func (d *Dispatcher) NotifyCompletion(
	ctx context.Context,
	recipients []string,
	adminEmail string,
	documentTitle string,
	sealedPDF []byte,
	filename string,
	extra ...Attachment,
) []NotificationDeliveryFailure {
	to := CompletionRecipients(recipients, adminEmail)

	text, html, err := render(completionText, completionHTML, completionData{
		Title:    documentTitle,
		HasTrail: len(extra) > 0,
	})
	if err != nil {
		failures := make([]NotificationDeliveryFailure, 0, len(to))
		for _, r := range to {
			failures = append(failures, NotificationDeliveryFailure{Recipient: r, Kind: models.IntentCompletion, Err: err})
		}
		return failures
	}

	attachments := append([]Attachment{{
		Filename:    filename,
		ContentType: "application/pdf",
		Data:        sealedPDF,
	}}, extra...)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []NotificationDeliveryFailure
	)
	for _, recipient := range to {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := d.mailer.Send(ctx, &Message{
				To:          []mail.Address{{Address: recipient}},
				Subject:     completionSubject(documentTitle),
				Text:        text,
				HTML:        html,
				Attachments: attachments,
			})
			d.record(ctx, models.IntentCompletion, err)
			if err != nil {
				log.Error().Err(err).Str("recipient", recipient).Msg("Failed to send completion email")
				mu.Lock()
				failures = append(failures, NotificationDeliveryFailure{Recipient: recipient, Kind: models.IntentCompletion, Err: err})
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return failures
}

// CompletionRecipients deduplicates recipients case-insensitively, keeping the
// first spelling, and appends admin when it is not already present.
func CompletionRecipients(recipients []string, admin string) []string {
	seen := make(map[string]struct{}, len(recipients)+1)
	out := make([]string, 0, len(recipients)+1)
	for _, r := range append(slices.Clone(recipients), admin) {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		k := strings.ToLower(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// DeliverPending claims and delivers the pending intents of a process, or of all
// processes when processID is uuid.Nil.
func (d *Dispatcher) DeliverPending(ctx context.Context, processID uuid.UUID) (*DeliveryReport, error) {
	report := &DeliveryReport{}

	for {
		intents, err := d.outbox.ClaimPending(ctx, processID, d.cfg.BatchSize)
		if err != nil {
			return report, fmt.Errorf("failed to claim notification intents: %w", err)
		}
		if len(intents) == 0 {
			return report, nil
		}

		report.Claimed += len(intents)
		telemetry.GetMetrics().OutboxClaimedTotal.Add(ctx, int64(len(intents)))

		for _, intent := range intents {
			failures := d.deliver(ctx, intent)
			report.Failures = append(report.Failures, failures...)

			if len(failures) == 0 {
				report.Sent++
				if err := d.outbox.MarkSent(ctx, intent.IntentID); err != nil {
					log.Error().Err(err).Str("intent_id", intent.IntentID.String()).Msg("Failed to mark intent sent")
				}
				continue
			}

			errs := make([]error, 0, len(failures))
			for _, f := range failures {
				errs = append(errs, f)
			}
			reason := errors.Join(errs...).Error()
			if err := d.outbox.MarkFailed(ctx, intent.IntentID, reason); err != nil {
				log.Error().Err(err).Str("intent_id", intent.IntentID.String()).Msg("Failed to mark intent failed")
			}
		}

		if len(intents) < d.cfg.BatchSize {
			return report, nil
		}
	}
}

// Run sweeps the outbox until ctx is cancelled, picking up intents left pending
// when a request ended before delivering them.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", d.cfg.Interval).Msg("Notification dispatcher started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Notification dispatcher stopped")
			return nil
		case <-ticker.C:
			report, err := d.DeliverPending(ctx, uuid.Nil)
			if err != nil {
				log.Error().Err(err).Msg("Outbox sweep failed")
				continue
			}
			if report.Claimed > 0 {
				log.Info().
					Int("claimed", report.Claimed).
					Int("sent", report.Sent).
					Int("failures", len(report.Failures)).
					Msg("Outbox sweep delivered intents")
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, intent *models.NotificationIntent) []NotificationDeliveryFailure {
	logger := log.With().
		Str("intent_id", intent.IntentID.String()).
		Str("process_id", intent.ProcessID.String()).
		Str("kind", string(intent.Kind)).
		Logger()

	fail := func(recipient string, err error) []NotificationDeliveryFailure {
		logger.Error().Err(err).Str("recipient", recipient).Msg("Notification not delivered")
		return []NotificationDeliveryFailure{{Recipient: recipient, Kind: intent.Kind, Err: err}}
	}

	process, err := d.processes.Get(ctx, intent.ProcessID)
	if err != nil {
		return fail("", err)
	}

	doc, err := d.documents.Get(ctx, process.DocumentID)
	if err != nil {
		return fail("", err)
	}
	title := process.Title
	if title == "" {
		title = doc.Title
	}

	switch intent.Kind {
	case models.IntentNextSigner:
		var sig *models.Signatory
		for _, s := range process.Signatories {
			if s.SignatoryID == intent.SignatoryID {
				sig = s
				break
			}
		}
		if sig == nil {
			return fail("", store.ErrSignatoryNotFound)
		}
		if process.Status.IsTerminal() {
			return fail(sig.Email, fmt.Errorf("process is %s", process.Status))
		}
		if sig.HasSigned() {
			return fail(sig.Email, errors.New("signatory already signed"))
		}

		position := fmt.Sprintf("%d/%d", sig.OrderIndex+1, len(process.Signatories))
		if err := d.NotifyNextSigner(ctx, sig.Email, sig.Name, title, d.SignURL(sig.Token), position); err != nil {
			var failure NotificationDeliveryFailure
			if errors.As(err, &failure) {
				return fail(failure.Recipient, failure.Err)
			}
			return fail(sig.Email, err)
		}
		logger.Info().Str("signatory_id", sig.SignatoryID.String()).Str("position", position).Msg("Invitation sent")
		return nil

	case models.IntentCompletion:
		if process.Status != models.ProcessStatusCompleted {
			return fail("", fmt.Errorf("process is %s", process.Status))
		}

		sealed, err := d.blobs.Get(ctx, process.IntermediateKey)
		if err != nil {
			return fail("", fmt.Errorf("failed to load sealed document: %w", err))
		}

		var extra []Attachment
		if trail, err := d.renderTrail(ctx, process, doc); err != nil {
			logger.Warn().Err(err).Msg("Sending completion without audit trail")
		} else {
			extra = append(extra, Attachment{Filename: audit.Filename(doc), ContentType: "application/pdf", Data: trail})
		}

		admin, err := d.orgs.CompletionCopy(ctx, process.OrgID)
		if err != nil {
			logger.Warn().Err(err).Msg("Organization admin unavailable")
		}

		recipients := make([]string, 0, len(process.Signatories))
		for _, s := range process.Signatories {
			recipients = append(recipients, s.Email)
		}

		failures := d.NotifyCompletion(ctx, recipients, admin, title, sealed, SignedFilename(doc), extra...)
		logger.Info().
			Int("recipients", len(CompletionRecipients(recipients, admin))).
			Int("failures", len(failures)).
			Msg("Completion sent")
		return failures

	default:
		return fail("", fmt.Errorf("unknown intent kind %q", intent.Kind))
	}
}

func (d *Dispatcher) renderTrail(ctx context.Context, process *models.SigningProcess, doc *models.Document) ([]byte, error) {
	evidence, err := d.processes.ListEvidence(ctx, process.ProcessID)
	if err != nil {
		return nil, err
	}
	return audit.RenderTrail(process, doc, evidence)
}

// SignedFilename is the attachment name of the fully sealed document.
func SignedFilename(doc *models.Document) string {
	return fmt.Sprintf("document_signe_%s.pdf", doc.DocumentID)
}

func (d *Dispatcher) record(ctx context.Context, kind models.IntentKind, err error) {
	attrs := metric.WithAttributes(attribute.String("kind", string(kind)))
	if err != nil {
		telemetry.GetMetrics().NotificationsFailedTotal.Add(ctx, 1, attrs)
		return
	}
	telemetry.GetMetrics().NotificationsSentTotal.Add(ctx, 1, attrs)
}
