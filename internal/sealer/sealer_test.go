package sealer

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/digitorus/pdfsign"
	"github.com/eduzen/cascadesign/internal/models"
	"github.com/eduzen/cascadesign/internal/pdftest"
	"github.com/eduzen/cascadesign/internal/pki"
	"github.com/stretchr/testify/require"
)

func newTestSealer(t *testing.T) *Sealer {
	t.Helper()
	creds, err := pki.SelfSigned("EDUZEN Seal", "EDUZEN", time.Hour)
	require.NoError(t, err)
	return New(creds)
}

func testSigner() SignerInfo {
	return SignerInfo{
		Name:     "Jane Doe",
		Email:    "jane@example.com",
		IP:       "203.0.113.7",
		SignedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
}

func verify(t *testing.T, data []byte) *pdfsign.VerifyBuilder {
	t.Helper()
	doc, err := pdfsign.Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return doc.Verify().TrustSelfSigned(true)
}

func TestDecodeSignatureImage(t *testing.T) {
	raw := pdftest.SignaturePNG(t, 40, 20)
	encoded := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name  string
		input string
		err   error
	}{
		{name: "data url", input: dataURLPrefix + encoded},
		{name: "bare base64", input: encoded},
		{name: "raw bytes", input: string(raw)},
		{name: "jpeg data url", input: "data:image/jpeg;base64," + encoded, err: ErrInvalidSignatureImage},
		{name: "not base64", input: "%%%", err: ErrInvalidSignatureImage},
		{name: "base64 of text", input: base64.StdEncoding.EncodeToString([]byte("hello")), err: ErrInvalidSignatureImage},
		{name: "empty", input: "", err: ErrInvalidSignatureImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSignatureImage(tt.input)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, raw, got)
		})
	}
}

func TestSeal_Zone(t *testing.T) {
	ctx := context.Background()
	s := newTestSealer(t)

	input := pdftest.NewPDF(t, 2)
	original := bytes.Clone(input)

	res, err := s.Seal(ctx, Request{
		PDF:    input,
		Image:  pdftest.SignaturePNG(t, 300, 100),
		Zone:   &models.SignZone{ID: "sig_stagiaire", Page: 2, X: 0.1, Y: 0.75, W: 0.4, H: 0.12},
		Signer: testSigner(),
		Reason: "Signature 1/2",
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Page)
	require.Equal(t, original, input)
	require.Greater(t, len(res.PDF), len(input))
	require.Equal(t, Hash(res.PDF), res.SHA256)
	require.Len(t, res.SHA256, 64)

	require.True(t, verify(t, res.PDF).Valid())
}

func TestSeal_Fallback(t *testing.T) {
	ctx := context.Background()
	s := newTestSealer(t)

	res, err := s.Seal(ctx, Request{
		PDF:    pdftest.NewPDF(t, 3),
		Image:  pdftest.SignaturePNG(t, 300, 100),
		Slot:   1,
		Signer: testSigner(),
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.Page)
	require.True(t, verify(t, res.PDF).Valid())
}

func TestSeal_FallbackLastOfFifty(t *testing.T) {
	s := newTestSealer(t)

	res, err := s.Seal(context.Background(), Request{
		PDF:    pdftest.NewPDFSize(t, 1, 612, 792),
		Image:  pdftest.SignaturePNG(t, 300, 100),
		Slot:   49,
		Slots:  50,
		Signer: testSigner(),
	})
	require.NoError(t, err)
	require.True(t, verify(t, res.PDF).Valid())
}

func TestSeal_FallbackNoRoom(t *testing.T) {
	s := newTestSealer(t)

	_, err := s.Seal(context.Background(), Request{
		PDF:    pdftest.NewPDFSize(t, 1, 200, 150),
		Image:  pdftest.SignaturePNG(t, 300, 100),
		Slot:   0,
		Slots:  50,
		Signer: testSigner(),
	})
	require.ErrorIs(t, err, ErrNoFallbackRoom)
}

func TestFallbackCapacity(t *testing.T) {
	n, err := FallbackCapacity(pdftest.NewPDF(t, 2))
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 50)

	n, err = FallbackCapacity(pdftest.NewPDFSize(t, 1, 200, 150))
	require.NoError(t, err)
	require.Less(t, n, 50)

	_, err = FallbackCapacity([]byte("hello world"))
	require.ErrorIs(t, err, ErrInvalidDocument)
}

func TestSeal_Cascade(t *testing.T) {
	ctx := context.Background()
	s := newTestSealer(t)

	first, err := s.Seal(ctx, Request{
		PDF:    pdftest.NewPDF(t, 1),
		Image:  pdftest.SignaturePNG(t, 300, 100),
		Slot:   0,
		Signer: testSigner(),
	})
	require.NoError(t, err)

	second, err := s.Seal(ctx, Request{
		PDF:    first.PDF,
		Image:  pdftest.SignaturePNG(t, 200, 100),
		Slot:   1,
		Signer: SignerInfo{Name: "John Roe", Email: "john@example.com", SignedAt: time.Now()},
	})
	require.NoError(t, err)
	require.NotEqual(t, first.SHA256, second.SHA256)
	require.True(t, bytes.HasPrefix(second.PDF, first.PDF), "sealing appends an incremental update")

	require.Len(t, verify(t, second.PDF).Signatures(), 2)
}

func TestSeal_Errors(t *testing.T) {
	ctx := context.Background()
	s := newTestSealer(t)
	doc := pdftest.NewPDF(t, 1)
	img := pdftest.SignaturePNG(t, 30, 10)

	tests := []struct {
		name string
		req  Request
		err  error
	}{
		{
			name: "not a pdf",
			req:  Request{PDF: []byte("hello world"), Image: img},
			err:  ErrInvalidDocument,
		},
		{
			name: "empty pdf",
			req:  Request{Image: img},
			err:  ErrInvalidDocument,
		},
		{
			name: "zone page out of range",
			req:  Request{PDF: doc, Image: img, Zone: &models.SignZone{Page: 2, W: 0.1, H: 0.1}},
			err:  ErrPageNotFound,
		},
		{
			name: "zone page zero",
			req:  Request{PDF: doc, Image: img, Zone: &models.SignZone{Page: 0, W: 0.1, H: 0.1}},
			err:  ErrPageNotFound,
		},
		{
			name: "image not png",
			req:  Request{PDF: doc, Image: []byte("GIF89a")},
			err:  ErrInvalidSignatureImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Signer = testSigner()
			_, err := s.Seal(ctx, tt.req)
			require.ErrorIs(t, err, tt.err)
		})
	}
}
