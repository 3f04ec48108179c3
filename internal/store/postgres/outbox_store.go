package postgres

import (
	"context"
	"fmt"

	"github.com/eduzen/cascadesign/internal/models"
	"github.com/eduzen/cascadesign/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertIntents(ctx context.Context, db execer, intents []*models.NotificationIntent) error {
	for _, intent := range intents {
		_, err := db.Exec(ctx, `
			INSERT INTO notification_outbox (
				intent_id, process_id, kind, signatory_id, status, attempts, last_error, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9
			)
		`,
			intent.IntentID,
			intent.ProcessID,
			intent.Kind,
			intent.SignatoryID,
			intent.Status,
			intent.Attempts,
			intent.LastError,
			intent.CreatedAt,
			intent.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to enqueue %s intent: %w", intent.Kind, mapPostgresError(err))
		}
	}
	return nil
}

const intentColumns = `intent_id, process_id, kind, signatory_id, status, attempts, last_error, created_at, updated_at`

func collectIntents(rows pgx.Rows) ([]*models.NotificationIntent, error) {
	defer rows.Close()

	var intents []*models.NotificationIntent
	for rows.Next() {
		var in models.NotificationIntent
		if err := rows.Scan(
			&in.IntentID,
			&in.ProcessID,
			&in.Kind,
			&in.SignatoryID,
			&in.Status,
			&in.Attempts,
			&in.LastError,
			&in.CreatedAt,
			&in.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan intent: %w", err)
		}
		intents = append(intents, &in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating intents: %w", err)
	}
	return intents, nil
}

// ClaimPending claims pending intents using SELECT FOR UPDATE SKIP LOCKED so
// concurrent dispatchers never deliver the same intent twice.
func (s *ProcessStore) ClaimPending(ctx context.Context, processID uuid.UUID, limit int) ([]*models.NotificationIntent, error) {
	var filter *uuid.UUID
	if processID != uuid.Nil {
		filter = &processID
	}

	rows, err := s.pool.Query(ctx, `
		WITH claimable AS (
			SELECT intent_id
			FROM notification_outbox
			WHERE status = 'pending'
			  AND ($1::uuid IS NULL OR process_id = $1)
			ORDER BY created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE notification_outbox o SET
			status = 'sending',
			attempts = o.attempts + 1,
			updated_at = NOW()
		FROM claimable
		WHERE o.intent_id = claimable.intent_id
		RETURNING o.intent_id, o.process_id, o.kind, o.signatory_id, o.status,
		          o.attempts, o.last_error, o.created_at, o.updated_at
	`, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim intents: %w", mapPostgresError(err))
	}
	return collectIntents(rows)
}

// MarkSent records a successful delivery.
func (s *ProcessStore) MarkSent(ctx context.Context, intentID uuid.UUID) error {
	return s.finishIntent(ctx, intentID, models.IntentSent, "")
}

// MarkFailed records a failed delivery.
func (s *ProcessStore) MarkFailed(ctx context.Context, intentID uuid.UUID, reason string) error {
	return s.finishIntent(ctx, intentID, models.IntentFailed, reason)
}

func (s *ProcessStore) finishIntent(ctx context.Context, intentID uuid.UUID, status models.IntentStatus, reason string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE notification_outbox SET status = $2, last_error = $3, updated_at = NOW()
		WHERE intent_id = $1
	`, intentID, status, reason)
	if err != nil {
		return fmt.Errorf("failed to update intent: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrIntentNotFound
	}
	return nil
}

// ListByProcess returns all intents of a process oldest first.
func (s *ProcessStore) ListByProcess(ctx context.Context, processID uuid.UUID) ([]*models.NotificationIntent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+intentColumns+` FROM notification_outbox WHERE process_id = $1 ORDER BY created_at ASC`,
		processID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list intents: %w", mapPostgresError(err))
	}
	return collectIntents(rows)
}
