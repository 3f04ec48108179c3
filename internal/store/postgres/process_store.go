package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eduzen/cascadesign/internal/models"
	"github.com/eduzen/cascadesign/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ProcessStore implements store.ProcessStore and store.OutboxStore using PostgreSQL.
// Every transition runs in a single transaction together with its evidence row and
// outbox intents.
type ProcessStore struct {
	pool *pgxpool.Pool
}

// NewProcessStore creates a new PostgreSQL-backed process store.
func NewProcessStore(pool *pgxpool.Pool) *ProcessStore {
	return &ProcessStore{pool: pool}
}

// Create persists a process, its signatories and the initial outbox intents atomically.
func (s *ProcessStore) Create(ctx context.Context, process *models.SigningProcess, intents []*models.NotificationIntent) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO signing_processes (
			process_id, org_id, document_id, title, status, current_position,
			intermediate_key, intermediate_hash, created_by, expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`,
		process.ProcessID,
		process.OrgID,
		process.DocumentID,
		process.Title,
		process.Status,
		process.CurrentPosition,
		process.IntermediateKey,
		process.IntermediateHash,
		process.CreatedBy,
		process.ExpiresAt,
		process.CreatedAt,
		process.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create process: %w", mapPostgresError(err))
	}

	for _, sig := range process.Signatories {
		_, err = tx.Exec(ctx, `
			INSERT INTO signatories (
				signatory_id, process_id, email, name, order_index, zone_id, token, signed_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8
			)
		`,
			sig.SignatoryID,
			process.ProcessID,
			sig.Email,
			sig.Name,
			sig.OrderIndex,
			sig.ZoneID,
			sig.Token,
			sig.SignedAt,
		)
		if err != nil {
			if errors.Is(mapPostgresError(err), store.ErrTokenAlreadyExists) {
				return store.ErrTokenAlreadyExists
			}
			return fmt.Errorf("failed to create signatory: %w", mapPostgresError(err))
		}
	}

	if err := insertIntents(ctx, tx, intents); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit process: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("process_id", process.ProcessID.String()).
		Str("org_id", process.OrgID.String()).
		Int("signatories", len(process.Signatories)).
		Msg("Created signing process")

	return nil
}

const processColumns = `
	p.process_id, p.org_id, p.document_id, p.title, p.status, p.current_position,
	p.intermediate_key, p.intermediate_hash, p.created_by, p.expires_at, p.created_at, p.updated_at
`

func scanProcess(row pgx.Row) (*models.SigningProcess, error) {
	var p models.SigningProcess
	err := row.Scan(
		&p.ProcessID,
		&p.OrgID,
		&p.DocumentID,
		&p.Title,
		&p.Status,
		&p.CurrentPosition,
		&p.IntermediateKey,
		&p.IntermediateHash,
		&p.CreatedBy,
		&p.ExpiresAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Get retrieves a process with its ordered signatories.
func (s *ProcessStore) Get(ctx context.Context, processID uuid.UUID) (*models.SigningProcess, error) {
	p, err := scanProcess(s.pool.QueryRow(ctx,
		`SELECT `+processColumns+` FROM signing_processes p WHERE p.process_id = $1`,
		processID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrProcessNotFound
		}
		return nil, fmt.Errorf("failed to get process: %w", mapPostgresError(err))
	}

	if p.Signatories, err = s.listSignatories(ctx, processID); err != nil {
		return nil, err
	}
	return p, nil
}

// GetByToken resolves a signatory token to the signatory and its parent process.
func (s *ProcessStore) GetByToken(ctx context.Context, token string) (*models.SigningProcess, *models.Signatory, error) {
	p, err := scanProcess(s.pool.QueryRow(ctx, `
		SELECT `+processColumns+`
		FROM signatories s
		JOIN signing_processes p ON p.process_id = s.process_id
		WHERE s.token = $1
	`, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, store.ErrTokenNotFound
		}
		return nil, nil, fmt.Errorf("failed to resolve token: %w", mapPostgresError(err))
	}

	if p.Signatories, err = s.listSignatories(ctx, p.ProcessID); err != nil {
		return nil, nil, err
	}
	for _, sig := range p.Signatories {
		if sig.Token == token {
			return p, sig, nil
		}
	}
	return nil, nil, store.ErrTokenNotFound
}

func (s *ProcessStore) listSignatories(ctx context.Context, processID uuid.UUID) ([]*models.Signatory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT signatory_id, process_id, email, name, order_index, zone_id, token, signed_at
		FROM signatories
		WHERE process_id = $1
		ORDER BY order_index ASC
	`, processID)
	if err != nil {
		return nil, fmt.Errorf("failed to list signatories: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var signatories []*models.Signatory
	for rows.Next() {
		var sig models.Signatory
		if err := rows.Scan(
			&sig.SignatoryID,
			&sig.ProcessID,
			&sig.Email,
			&sig.Name,
			&sig.OrderIndex,
			&sig.ZoneID,
			&sig.Token,
			&sig.SignedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan signatory: %w", err)
		}
		signatories = append(signatories, &sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signatories: %w", err)
	}
	return signatories, nil
}

// Advance records a signature and moves the process forward.
// The UPDATE on signing_processes is the compare-and-swap: it only matches while
// current_position still equals FromPosition and the process is pending.
func (s *ProcessStore) Advance(ctx context.Context, params store.AdvanceParams) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	var documentID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE signing_processes SET
			current_position = CASE WHEN $3 THEN current_position ELSE current_position + 1 END,
			status = CASE WHEN $3 THEN 'completed' ELSE status END,
			intermediate_key = $4,
			intermediate_hash = $5,
			updated_at = $6
		WHERE process_id = $1
		  AND current_position = $2
		  AND status = 'pending'
		RETURNING document_id
	`,
		params.ProcessID,
		params.FromPosition,
		params.Final,
		params.IntermediateKey,
		params.IntermediateHash,
		params.SignedAt,
	).Scan(&documentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.explainMissedAdvance(ctx, tx, params)
		}
		return fmt.Errorf("failed to advance process: %w", mapPostgresError(err))
	}

	result, err := tx.Exec(ctx, `
		UPDATE signatories SET
			signed_at = $4,
			signature_data = $5
		WHERE signatory_id = $1
		  AND process_id = $2
		  AND order_index = $3
		  AND signed_at IS NULL
	`,
		params.SignatoryID,
		params.ProcessID,
		params.FromPosition,
		params.SignedAt,
		params.SignatureData,
	)
	if err != nil {
		return fmt.Errorf("failed to record signature: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: signatory already signed or not at position %d", store.ErrPositionConflict, params.FromPosition)
	}

	if ev := params.Evidence; ev != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO evidence (
				evidence_id, org_id, process_id, signatory_id, position, signer_email,
				metadata, pdf_hash, integrity_hash, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
			)
		`,
			ev.EvidenceID,
			ev.OrgID,
			ev.ProcessID,
			ev.SignatoryID,
			ev.Position,
			ev.SignerEmail,
			ev.Metadata,
			ev.PDFHash,
			ev.IntegrityHash,
			ev.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to record evidence: %w", mapPostgresError(err))
		}
	}

	if err := insertIntents(ctx, tx, params.Intents); err != nil {
		return err
	}

	if params.Final {
		_, err = tx.Exec(ctx, `
			UPDATE documents SET
				status = 'signed',
				signed_storage_key = $2,
				signed_at = $3,
				updated_at = $3
			WHERE document_id = $1
		`, documentID, params.IntermediateKey, params.SignedAt)
		if err != nil {
			return fmt.Errorf("failed to mark document signed: %w", mapPostgresError(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit advance: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("process_id", params.ProcessID.String()).
		Int("position", params.FromPosition).
		Bool("final", params.Final).
		Msg("Advanced process")

	return nil
}

// explainMissedAdvance turns a compare-and-swap miss into the matching sentinel.
func (s *ProcessStore) explainMissedAdvance(ctx context.Context, tx pgx.Tx, params store.AdvanceParams) error {
	var (
		status   models.ProcessStatus
		position int
	)
	err := tx.QueryRow(ctx,
		`SELECT status, current_position FROM signing_processes WHERE process_id = $1`,
		params.ProcessID,
	).Scan(&status, &position)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrProcessNotFound
		}
		return fmt.Errorf("failed to inspect process: %w", mapPostgresError(err))
	}

	if status != models.ProcessStatusPending {
		return store.ErrProcessTerminal
	}
	return fmt.Errorf("%w: expected %d, found %d", store.ErrPositionConflict, params.FromPosition, position)
}

// Cancel moves a pending process to cancelled.
func (s *ProcessStore) Cancel(ctx context.Context, processID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE signing_processes SET status = 'cancelled', updated_at = NOW()
		WHERE process_id = $1 AND status = 'pending'
	`, processID)
	if err != nil {
		return fmt.Errorf("failed to cancel process: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM signing_processes WHERE process_id = $1)`, processID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to inspect process: %w", mapPostgresError(err))
		}
		if !exists {
			return store.ErrProcessNotFound
		}
		return store.ErrProcessTerminal
	}

	log.Info().Str("process_id", processID.String()).Msg("Cancelled signing process")
	return nil
}

// ExpireDue moves pending processes whose deadline is before now to expired.
func (s *ProcessStore) ExpireDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE signing_processes SET status = 'expired', updated_at = $1
		WHERE status = 'pending'
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
		RETURNING process_id
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to expire processes: %w", mapPostgresError(err))
	}

	expired, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to collect expired processes: %w", err)
	}
	return expired, nil
}

// EnqueueIntent adds an intent to the outbox outside of a transition.
func (s *ProcessStore) EnqueueIntent(ctx context.Context, intent *models.NotificationIntent) error {
	err := insertIntents(ctx, s.pool, []*models.NotificationIntent{intent})
	if errors.Is(err, store.ErrProcessNotFound) {
		return store.ErrProcessNotFound
	}
	return err
}

// ListEvidence returns the evidence rows recorded for a process in position order.
func (s *ProcessStore) ListEvidence(ctx context.Context, processID uuid.UUID) ([]*models.Evidence, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT evidence_id, org_id, process_id, signatory_id, position, signer_email,
		       metadata, pdf_hash, integrity_hash, created_at
		FROM evidence
		WHERE process_id = $1
		ORDER BY position ASC
	`, processID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evidence: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var result []*models.Evidence
	for rows.Next() {
		var ev models.Evidence
		if err := rows.Scan(
			&ev.EvidenceID,
			&ev.OrgID,
			&ev.ProcessID,
			&ev.SignatoryID,
			&ev.Position,
			&ev.SignerEmail,
			&ev.Metadata,
			&ev.PDFHash,
			&ev.IntegrityHash,
			&ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		result = append(result, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evidence: %w", err)
	}
	return result, nil
}
