//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/eduzen/cascadesign/internal/models"
	"github.com/eduzen/cascadesign/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := NewPool(ctx, &PoolConfig{
		ConnString:  fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		AutoMigrate: true,
	})
	require.NoError(t, err)

	// migrations are idempotent
	require.NoError(t, RunMigrations(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup
}

func seedProcess(t *testing.T, ctx context.Context, pool *pgxpool.Pool, signers int) *models.SigningProcess {
	now := time.Now().UTC().Truncate(time.Microsecond)

	org := &models.Organization{OrgID: uuid.Must(uuid.NewV7()), Name: "EDUZEN Formation", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, NewOrganizationStore(pool).Create(ctx, org))

	doc := &models.Document{
		DocumentID: uuid.Must(uuid.NewV7()),
		OrgID:      org.OrgID,
		Title:      "Convention",
		Type:       "convention",
		StorageKey: org.OrgID.String() + "/documents/convention.pdf",
		SignZones:  []models.SignZone{{ID: "sig_stagiaire", Page: 1, X: 0.1, Y: 0.8, W: 0.3, H: 0.1}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, NewDocumentStore(pool).Create(ctx, doc))

	p := &models.SigningProcess{
		ProcessID:  uuid.Must(uuid.NewV7()),
		OrgID:      org.OrgID,
		DocumentID: doc.DocumentID,
		Title:      doc.Title,
		Status:     models.ProcessStatusPending,
		CreatedBy:  uuid.Must(uuid.NewV7()),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for i := range signers {
		p.Signatories = append(p.Signatories, &models.Signatory{
			SignatoryID: uuid.Must(uuid.NewV7()),
			ProcessID:   p.ProcessID,
			Email:       fmt.Sprintf("signer%d@example.com", i),
			Name:        fmt.Sprintf("Signer %d", i),
			OrderIndex:  i,
			Token:       uuid.NewString(),
		})
	}

	first := models.NewIntent(p.ProcessID, models.IntentNextSigner, p.Signatories[0].SignatoryID, now)
	require.NoError(t, NewProcessStore(pool).Create(ctx, p, []*models.NotificationIntent{first}))
	return p
}

func TestIntegration_ProcessLifecycle(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	processes := NewProcessStore(pool)
	documents := NewDocumentStore(pool)
	p := seedProcess(t, ctx, pool, 2)

	t.Run("resolve token", func(t *testing.T) {
		got, sig, err := processes.GetByToken(ctx, p.Signatories[1].Token)
		require.NoError(t, err)
		require.Equal(t, p.ProcessID, got.ProcessID)
		require.Equal(t, 1, sig.OrderIndex)
		require.Len(t, got.Signatories, 2)

		_, _, err = processes.GetByToken(ctx, "missing")
		require.ErrorIs(t, err, store.ErrTokenNotFound)
	})

	t.Run("advance and complete", func(t *testing.T) {
		for i, sig := range p.Signatories {
			final := i == len(p.Signatories)-1
			params := store.AdvanceParams{
				ProcessID:        p.ProcessID,
				SignatoryID:      sig.SignatoryID,
				FromPosition:     i,
				Final:            final,
				SignedAt:         time.Now().UTC(),
				SignatureData:    "data:image/png;base64,AAAA",
				IntermediateKey:  fmt.Sprintf("step-%d.pdf", i),
				IntermediateHash: fmt.Sprintf("%064d", i),
				Evidence: &models.Evidence{
					EvidenceID:    uuid.Must(uuid.NewV7()),
					OrgID:         p.OrgID,
					ProcessID:     p.ProcessID,
					SignatoryID:   sig.SignatoryID,
					Position:      i,
					SignerEmail:   sig.Email,
					Metadata:      models.SignatureMetadata{IP: "203.0.113.7", TimestampUTC: time.Now().UTC().Format(time.RFC3339)},
					PDFHash:       fmt.Sprintf("%064d", i),
					IntegrityHash: "hash",
					CreatedAt:     time.Now().UTC(),
				},
			}
			require.NoError(t, processes.Advance(ctx, params))
		}

		got, err := processes.Get(ctx, p.ProcessID)
		require.NoError(t, err)
		require.Equal(t, models.ProcessStatusCompleted, got.Status)
		require.Equal(t, 1, got.CurrentPosition)
		require.Equal(t, "step-1.pdf", got.IntermediateKey)

		doc, err := documents.Get(ctx, p.DocumentID)
		require.NoError(t, err)
		require.Equal(t, models.DocumentStatusSigned, doc.Status)
		require.Equal(t, "step-1.pdf", doc.SignedStorageKey)
		require.Len(t, doc.SignZones, 1)

		evidence, err := processes.ListEvidence(ctx, p.ProcessID)
		require.NoError(t, err)
		require.Len(t, evidence, 2)
		require.Equal(t, "203.0.113.7", evidence[0].Metadata.IP)

		err = processes.Advance(ctx, store.AdvanceParams{ProcessID: p.ProcessID, FromPosition: 1, SignedAt: time.Now()})
		require.ErrorIs(t, err, store.ErrProcessTerminal)
	})
}

func TestIntegration_ConcurrentAdvance(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	processes := NewProcessStore(pool)
	p := seedProcess(t, ctx, pool, 3)

	const racers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := processes.Advance(ctx, store.AdvanceParams{
				ProcessID:       p.ProcessID,
				SignatoryID:     p.Signatories[0].SignatoryID,
				FromPosition:    0,
				SignedAt:        time.Now().UTC(),
				IntermediateKey: fmt.Sprintf("step-0-%d.pdf", i),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, store.ErrPositionConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, succeeded)
	require.Equal(t, racers-1, conflicts)

	got, err := processes.Get(ctx, p.ProcessID)
	require.NoError(t, err)
	require.Equal(t, 1, got.CurrentPosition)
}

func TestIntegration_Outbox(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	processes := NewProcessStore(pool)
	p := seedProcess(t, ctx, pool, 2)

	claimed, err := processes.ClaimPending(ctx, p.ProcessID, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, models.IntentSending, claimed[0].Status)
	require.Equal(t, 1, claimed[0].Attempts)

	again, err := processes.ClaimPending(ctx, uuid.Nil, 10)
	require.NoError(t, err)
	require.Empty(t, again)

	require.NoError(t, processes.MarkSent(ctx, claimed[0].IntentID))
	require.ErrorIs(t, processes.MarkFailed(ctx, uuid.Must(uuid.NewV7()), "boom"), store.ErrIntentNotFound)

	err = processes.EnqueueIntent(ctx, models.NewIntent(uuid.Must(uuid.NewV7()), models.IntentCompletion, uuid.Nil, time.Now()))
	require.ErrorIs(t, err, store.ErrProcessNotFound)

	intents, err := processes.ListByProcess(ctx, p.ProcessID)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	require.Equal(t, models.IntentSent, intents[0].Status)
}

func TestIntegration_ExpireAndCancel(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	processes := NewProcessStore(pool)
	due := seedProcess(t, ctx, pool, 2)
	_, err := pool.Exec(ctx, `UPDATE signing_processes SET expires_at = NOW() - INTERVAL '1 hour' WHERE process_id = $1`, due.ProcessID)
	require.NoError(t, err)

	expired, err := processes.ExpireDue(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{due.ProcessID}, expired)

	require.ErrorIs(t, processes.Cancel(ctx, due.ProcessID), store.ErrProcessTerminal)
	require.ErrorIs(t, processes.Cancel(ctx, uuid.Must(uuid.NewV7())), store.ErrProcessNotFound)

	other := seedProcess(t, ctx, pool, 2)
	require.NoError(t, processes.Cancel(ctx, other.ProcessID))
}

func TestIntegration_Organizations(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	s := NewOrganizationStore(pool)
	org := &models.Organization{OrgID: uuid.Must(uuid.NewV7()), Name: "EDUZEN Formation", AdminEmail: "Direction <direction@eduzen.example>"}

	require.NoError(t, s.Create(ctx, org))
	require.ErrorIs(t, s.Create(ctx, org), store.ErrOrganizationAlreadyExists)
	require.ErrorIs(t, s.Create(ctx, &models.Organization{OrgID: uuid.Must(uuid.NewV7()), AdminEmail: "nope"}), store.ErrInvalidAdminEmail)

	copyTo, err := s.CompletionCopy(ctx, org.OrgID)
	require.NoError(t, err)
	require.Equal(t, "direction@eduzen.example", copyTo)

	got, err := s.Get(ctx, org.OrgID)
	require.NoError(t, err)
	require.Equal(t, "EDUZEN Formation", got.Name)
	require.False(t, got.CreatedAt.IsZero())

	_, err = s.CompletionCopy(ctx, uuid.Must(uuid.NewV7()))
	require.ErrorIs(t, err, store.ErrOrganizationNotFound)
}
