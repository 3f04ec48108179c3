// Package sealer stamps a signatory's handwritten signature onto a PDF and seals
// the result with a PAdES signature.
package sealer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfsign"
	"github.com/digitorus/pdfsign/fonts"
	"github.com/eduzen/cascadesign/internal/models"
	"github.com/eduzen/cascadesign/internal/pki"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidDocument       = errors.New("invalid PDF document")
	ErrPageNotFound          = errors.New("sign zone page not found")
	ErrInvalidSignatureImage = errors.New("invalid signature image")
	ErrNoFallbackRoom        = errors.New("page too small for every signature stamp")
)

const dataURLPrefix = "data:image/png;base64,"

// SignerInfo is the metadata printed next to the signature image.
type SignerInfo struct {
	Name     string
	Email    string
	IP       string
	SignedAt time.Time
}

// Request is one signature to apply.
type Request struct {
	PDF   []byte
	Image []byte // PNG bytes, see DecodeSignatureImage
	Zone  *models.SignZone

	// Slot selects the fallback cell when Zone is nil, usually the order index.
	// Slots is how many cells the process needs; every step of a process passes
	// the same value so its stamps share one grid.
	Slot  int
	Slots int

	Signer SignerInfo
	Reason string
}

// Result is the sealed document.
type Result struct {
	PDF    []byte
	SHA256 string // hex digest of PDF
	Page   int
}

// Sealer applies visible PAdES-B signatures using the organization seal.
type Sealer struct {
	creds *pki.SealCredentials
}

// New creates a sealer signing with creds.
func New(creds *pki.SealCredentials) *Sealer {
	return &Sealer{creds: creds}
}

// DecodeSignatureImage accepts a PNG data URL, bare base64 or raw PNG bytes and
// returns the PNG bytes.
func DecodeSignatureImage(data string) ([]byte, error) {
	var raw []byte
	switch {
	case strings.HasPrefix(data, dataURLPrefix):
		b, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(data, dataURLPrefix))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignatureImage, err)
		}
		raw = b
	case strings.HasPrefix(data, "data:"):
		return nil, fmt.Errorf("%w: only image/png data URLs are supported", ErrInvalidSignatureImage)
	case strings.HasPrefix(data, "\x89PNG"):
		raw = []byte(data)
	default:
		b, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignatureImage, err)
		}
		raw = b
	}

	if _, err := png.DecodeConfig(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignatureImage, err)
	}
	return raw, nil
}

// Seal stamps the signature and returns a new buffer. req.PDF is not modified.
func (s *Sealer) Seal(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	cfg, err := png.DecodeConfig(bytes.NewReader(req.Image))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignatureImage, err)
	}

	input := bytes.Clone(req.PDF)
	doc, err := openDocument(input)
	if err != nil {
		return nil, err
	}

	rdr := doc.Reader()
	numPages := rdr.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrInvalidDocument)
	}

	var placement Placement
	if req.Zone != nil {
		if req.Zone.Page < 1 || req.Zone.Page > numPages {
			return nil, fmt.Errorf("%w: page %d of %d", ErrPageNotFound, req.Zone.Page, numPages)
		}
		lines := []string{req.Signer.Name, formatDate(req.Signer.SignedAt)}
		placement = PlaceInZone(*req.Zone, pageBox(rdr, req.Zone.Page), cfg.Width, cfg.Height, lines)
	} else {
		lines := []string{
			req.Signer.Name,
			req.Signer.Email,
			formatDate(req.Signer.SignedAt),
			"IP: " + req.Signer.IP,
		}
		page := pageBox(rdr, numPages)
		grid, err := NewFallbackGrid(page, max(req.Slots, req.Slot+1))
		if err != nil {
			return nil, err
		}
		placement = PlaceFallback(req.Slot, numPages, page, grid, cfg.Width, cfg.Height, lines)
	}

	appearance := pdfsign.NewAppearance(placement.Box.W, placement.Box.H)
	img := doc.AddImage("signature", req.Image)
	appearance.Image(img).
		Rect(placement.Image.X, placement.Image.Y, placement.Image.W, placement.Image.H).
		ScaleFit()

	font := fonts.Standard(fonts.Helvetica)
	for _, line := range placement.Lines {
		appearance.Text(line.Text).Font(font, placement.FontSize).Position(line.X, line.Y)
	}

	doc.Sign(s.creds.Key, s.creds.Certificate, s.creds.Chain...).
		Reason(req.Reason).
		SignerName(req.Signer.Name).
		Format(pdfsign.PAdES_B).
		Appearance(appearance, placement.Page, placement.Box.X, placement.Box.Y)

	var out bytes.Buffer
	if _, err := doc.Write(&out); err != nil {
		return nil, fmt.Errorf("failed to sign document: %w", err)
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("%w: signing produced no output", ErrInvalidDocument)
	}

	sum := sha256.Sum256(out.Bytes())

	log.Ctx(ctx).Debug().
		Int("page", placement.Page).
		Bool("zone", req.Zone != nil).
		Dur("duration", time.Since(start)).
		Msg("Sealed document")

	return &Result{
		PDF:    out.Bytes(),
		SHA256: hex.EncodeToString(sum[:]),
		Page:   placement.Page,
	}, nil
}

// FallbackCapacity returns how many fallback stamps fit on the last page of pdf.
func FallbackCapacity(pdf []byte) (int, error) {
	doc, err := openDocument(pdf)
	if err != nil {
		return 0, err
	}
	rdr := doc.Reader()
	n := rdr.NumPage()
	if n == 0 {
		return 0, fmt.Errorf("%w: document has no pages", ErrInvalidDocument)
	}
	return GridCapacity(pageBox(rdr, n)), nil
}

// openDocument wraps pdfsign.Open, which panics on some malformed xref tables.
func openDocument(data []byte) (doc *pdfsign.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("%w: %v", ErrInvalidDocument, r)
		}
	}()

	doc, err = pdfsign.Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc, nil
}

// pageBox returns the MediaBox of a page, following inherited values up the page tree.
func pageBox(r *pdf.Reader, pageNum int) PageBox {
	for node := r.Page(pageNum).V; !node.IsNull(); node = node.Key("Parent") {
		mb := node.Key("MediaBox")
		if mb.Kind() == pdf.Array && mb.Len() >= 4 {
			return PageBox{
				mb.Index(0).Float64(),
				mb.Index(1).Float64(),
				mb.Index(2).Float64(),
				mb.Index(3).Float64(),
			}
		}
	}
	return defaultPageBox
}

func formatDate(t time.Time) string {
	return t.UTC().Format("02/01/2006 15:04 UTC")
}

// Hash returns the hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
