// Package audit renders the evidence summary attached to completed documents.
package audit

import (
	"bytes"
	"fmt"
	"time"

	"github.com/eduzen/cascadesign/internal/models"
	"github.com/jung-kurt/gofpdf"
)

const (
	fontFamily = "Helvetica"
	labelWidth = 45.0
	lineHeight = 6.0
)

// Filename is the attachment name used for the trail of a document.
func Filename(doc *models.Document) string {
	return fmt.Sprintf("preuves_%s.pdf", doc.DocumentID)
}

// RenderTrail renders a PDF listing every signature of a completed process with
// its evidence: signer, timestamp, network metadata and hashes.
func RenderTrail(process *models.SigningProcess, doc *models.Document, evidence []*models.Evidence) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle("Dossier de preuve", true)
	pdf.SetCreator("EDUZEN", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(0, 10, tr("Dossier de preuve de signature"), "", 1, "C", false, 0, "")
	pdf.SetFont(fontFamily, "", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, tr("Généré le "+formatTime(time.Now())), "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(6)

	row := func(label, value string) {
		pdf.SetFont(fontFamily, "B", 10)
		pdf.CellFormat(labelWidth, lineHeight, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont(fontFamily, "", 10)
		pdf.MultiCell(0, lineHeight, tr(value), "", "L", false)
	}

	title := process.Title
	if title == "" {
		title = doc.Title
	}
	row("Document", title)
	row("Identifiant document", doc.DocumentID.String())
	row("Processus", process.ProcessID.String())
	row("Statut", process.DisplayStatus())
	row("Créé le", formatTime(process.CreatedAt))
	row("Signataires", fmt.Sprintf("%d", len(process.Signatories)))
	if process.IntermediateHash != "" {
		row("Empreinte finale", process.IntermediateHash)
	}

	byPosition := make(map[int]*models.Evidence, len(evidence))
	for _, e := range evidence {
		byPosition[e.Position] = e
	}

	for _, sig := range process.Signatories {
		pdf.Ln(4)
		pdf.SetFillColor(37, 99, 235)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont(fontFamily, "B", 11)
		header := fmt.Sprintf("Signataire %d/%d : %s", sig.OrderIndex+1, len(process.Signatories), sig.Name)
		pdf.CellFormat(0, 8, tr(header), "", 1, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)

		row("Email", sig.Email)
		if sig.SignedAt == nil {
			row("Signé le", "non signé")
			continue
		}
		row("Signé le", formatTime(*sig.SignedAt))

		e, ok := byPosition[sig.OrderIndex]
		if !ok {
			continue
		}
		if e.Metadata.IP != "" {
			row("Adresse IP", e.Metadata.IP)
		}
		if e.Metadata.UserAgent != "" {
			row("Navigateur", e.Metadata.UserAgent)
		}
		if e.Metadata.Geolocation != nil {
			row("Position", fmt.Sprintf("%.5f, %.5f", e.Metadata.Geolocation.Lat, e.Metadata.Geolocation.Lng))
		}
		row("Empreinte PDF", e.PDFHash)
		row("Sceau d'intégrité", e.IntegrityHash)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to render audit trail: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render audit trail: %w", err)
	}
	return buf.Bytes(), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format("02/01/2006 15:04:05 UTC")
}
