// Package pdftest builds PDF documents and signature images for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/require"
)

// NewPDF returns an A4 document with the given number of pages.
func NewPDF(t testing.TB, pages int) []byte {
	t.Helper()
	return render(t, gofpdf.New("P", "pt", "A4", ""), pages)
}

// NewPDFSize returns a document whose pages measure w x h points.
func NewPDFSize(t testing.TB, pages int, w, h float64) []byte {
	t.Helper()
	return render(t, gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: w, Ht: h},
	}), pages)
}

func render(t testing.TB, pdf *gofpdf.Fpdf, pages int) []byte {
	t.Helper()

	pdf.SetFont("Helvetica", "", 12)
	for i := range pages {
		pdf.AddPage()
		pdf.Cell(0, 20, fmt.Sprintf("Convention de formation - page %d", i+1))
	}

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

// SignaturePNG returns a w x h PNG with a diagonal stroke.
func SignaturePNG(t testing.TB, w, h int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		y := x * h / w
		img.Set(x, y, color.NRGBA{A: 255})
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
