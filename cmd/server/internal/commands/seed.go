package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog"

	"github.com/eduzen/cascadesign/internal/auth"
	"github.com/eduzen/cascadesign/internal/blob"
	"github.com/eduzen/cascadesign/internal/models"
)

// seedDevelopment creates an organization and a draft document, and logs a
// member token able to start processes on it.
func (c *ServerCmd) seedDevelopment(ctx context.Context, log zerolog.Logger, st *stores, blobs blob.Store) error {
	now := time.Now().UTC()

	org := &models.Organization{
		OrgID:      uuid.Must(uuid.NewV7()),
		Name:       "EDUZEN Development",
		AdminEmail: "admin@eduzen.test",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := st.orgs.Create(ctx, org); err != nil {
		return fmt.Errorf("failed to seed organization: %w", err)
	}

	var (
		pdf []byte
		err error
	)
	if c.DevDocument != "" {
		pdf, err = os.ReadFile(c.DevDocument)
	} else {
		pdf, err = samplePDF()
	}
	if err != nil {
		return fmt.Errorf("failed to load development document: %w", err)
	}

	doc := &models.Document{
		DocumentID: uuid.Must(uuid.NewV7()),
		OrgID:      org.OrgID,
		Title:      "Convention de formation",
		Type:       "convention",
		Status:     models.DocumentStatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	doc.StorageKey = blob.SourceKey(org.OrgID, doc.DocumentID)
	if err := blobs.Put(ctx, doc.StorageKey, pdf, "application/pdf"); err != nil {
		return fmt.Errorf("failed to upload development document: %w", err)
	}
	if err := st.documents.Create(ctx, doc); err != nil {
		return fmt.Errorf("failed to seed document: %w", err)
	}

	event := log.Info().
		Str("org_id", org.OrgID.String()).
		Str("document_id", doc.DocumentID.String())

	if c.devSigningKey != "" {
		token, err := auth.IssueToken(c.devSigningKey, c.JWTIssuer, auth.Member{
			MemberID: uuid.Must(uuid.NewV7()),
			OrgID:    org.OrgID,
			Role:     auth.RoleAdmin,
		}, 24*time.Hour)
		if err != nil {
			return err
		}
		event = event.Str("member_token", token)
	}

	event.Msg("Seeded development organization")
	return nil
}

func samplePDF() ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Convention de formation")
	pdf.Ln(14)
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, "Document de test pour le circuit de signature en cascade.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
