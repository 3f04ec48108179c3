package audit

import (
	"bytes"
	"testing"
	"time"

	"github.com/digitorus/pdf"
	"github.com/eduzen/cascadesign/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRenderTrail(t *testing.T) {
	signedAt := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	doc := &models.Document{DocumentID: uuid.Must(uuid.NewV7()), Title: "Convention"}
	process := &models.SigningProcess{
		ProcessID:        uuid.Must(uuid.NewV7()),
		DocumentID:       doc.DocumentID,
		Title:            "Convention de formation",
		Status:           models.ProcessStatusCompleted,
		CurrentPosition:  1,
		IntermediateHash: "ab12",
		CreatedAt:        signedAt.Add(-time.Hour),
		Signatories: []*models.Signatory{
			{OrderIndex: 0, Name: "Élodie Martin", Email: "elodie@example.com", SignedAt: &signedAt},
			{OrderIndex: 1, Name: "Jean Dupont", Email: "jean@example.com"},
		},
	}
	evidence := []*models.Evidence{{
		Position: 0,
		Metadata: models.SignatureMetadata{
			IP:          "203.0.113.7",
			UserAgent:   "Mozilla/5.0",
			Geolocation: &models.Geolocation{Lat: 48.85, Lng: 2.35},
		},
		PDFHash:       "deadbeef",
		IntegrityHash: "cafebabe",
	}}

	out, err := RenderTrail(process, doc, evidence)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	r, err := pdf.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	require.Equal(t, 1, r.NumPage())
}

func TestFilename(t *testing.T) {
	id := uuid.MustParse("0193a4b2-7c00-7000-8000-000000000001")
	require.Equal(t, "preuves_0193a4b2-7c00-7000-8000-000000000001.pdf", Filename(&models.Document{DocumentID: id}))
}
