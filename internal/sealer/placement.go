package sealer

import (
	"fmt"
	"math"

	"github.com/eduzen/cascadesign/internal/models"
)

// Layout constants in PDF points.
const (
	FallbackMargin = 40.0
	FallbackImageW = 150.0
	FallbackImageH = 50.0
	FallbackBoxW   = 200.0
	FallbackGap    = 10.0

	FontSize   = 8.0
	LineHeight = 10.0

	// FallbackBoxH fits the image followed by four metadata lines.
	FallbackBoxH = FallbackImageH + 4*LineHeight + 4

	maxZoneLines = 2

	minFallbackScale  = 0.35
	fallbackScaleStep = 0.05
)

// Rect is an axis-aligned rectangle with its origin at the lower-left corner.
type Rect struct {
	X, Y, W, H float64
}

// Line is a line of text positioned relative to the appearance box.
type Line struct {
	Text string
	X, Y float64
}

// Placement describes where a signature appearance is drawn.
// Box is in page coordinates, Image and Lines are relative to Box.
type Placement struct {
	Page  int
	Box   Rect
	Image Rect
	Lines []Line

	FontSize float64
}

// PageBox is a page MediaBox as [llx lly urx ury].
type PageBox [4]float64

func (b PageBox) Width() float64  { return b[2] - b[0] }
func (b PageBox) Height() float64 { return b[3] - b[1] }

var defaultPageBox = PageBox{0, 0, 612, 792}

// fitImage scales an image of imgW x imgH into a w x h box preserving its aspect ratio.
func fitImage(imgW, imgH int, w, h float64) (float64, float64) {
	if imgW <= 0 || imgH <= 0 {
		return w, h
	}
	scale := math.Min(w/float64(imgW), h/float64(imgH))
	return float64(imgW) * scale, float64(imgH) * scale
}

// PlaceInZone maps a zone, expressed as fractions of the page with a top-left origin,
// onto the page and centres the image inside it. Up to two of lines are kept when
// the space left below the image can hold them.
func PlaceInZone(zone models.SignZone, page PageBox, imgW, imgH int, lines []string) Placement {
	pw, ph := page.Width(), page.Height()
	box := Rect{
		X: page[0] + zone.X*pw,
		Y: page[1] + (1-zone.Y-zone.H)*ph,
		W: zone.W * pw,
		H: zone.H * ph,
	}

	iw, ih := fitImage(imgW, imgH, box.W, box.H)
	img := Rect{
		X: (box.W - iw) / 2,
		Y: (box.H - ih) / 2,
		W: iw,
		H: ih,
	}

	room := int(img.Y / LineHeight)
	n := min(len(lines), maxZoneLines, room)

	placed := make([]Line, 0, n)
	for i := range n {
		placed = append(placed, Line{
			Text: lines[i],
			X:    img.X,
			Y:    img.Y - float64(i+1)*LineHeight + 2,
		})
	}

	return Placement{Page: zone.Page, Box: box, Image: img, Lines: placed, FontSize: FontSize}
}

// FallbackGrid is the cell layout shared by every fallback stamp of a process.
// Cells are Scale times the nominal fallback box.
type FallbackGrid struct {
	Scale  float64
	PerRow int
	Rows   int
}

// Cells is the number of stamps the grid holds.
func (g FallbackGrid) Cells() int {
	return g.PerRow * g.Rows
}

func gridAt(page PageBox, scale float64) FallbackGrid {
	gap := FallbackGap * scale
	perRow := int((page.Width() - 2*FallbackMargin + gap) / (FallbackBoxW*scale + gap))
	rows := int((page.Height() - 2*FallbackMargin + gap) / (FallbackBoxH*scale + gap))
	return FallbackGrid{Scale: scale, PerRow: max(0, perRow), Rows: max(0, rows)}
}

// NewFallbackGrid picks the largest cell scale at which slots stamps fit between
// the page margins.
func NewFallbackGrid(page PageBox, slots int) (FallbackGrid, error) {
	slots = max(slots, 1)
	for step := 0; ; step++ {
		scale := 1 - float64(step)*fallbackScaleStep
		if scale < minFallbackScale-1e-9 {
			break
		}
		if g := gridAt(page, scale); g.Cells() >= slots {
			return g, nil
		}
	}
	return FallbackGrid{}, fmt.Errorf("%w: %d stamps on a %.0fx%.0f page", ErrNoFallbackRoom, slots, page.Width(), page.Height())
}

// GridCapacity is the most fallback stamps page can hold.
func GridCapacity(page PageBox) int {
	return gridAt(page, minFallbackScale).Cells()
}

// PlaceFallback lays out a stamp at the bottom-left of the page. Each slot gets
// its own cell of grid so stamps of successive signatories never overlap; cells
// fill left to right, then upwards, and never leave the page margins for slots
// below grid.Cells().
func PlaceFallback(slot int, pageNum int, page PageBox, grid FallbackGrid, imgW, imgH int, lines []string) Placement {
	s := grid.Scale
	perRow := max(1, grid.PerRow)

	box := Rect{
		X: page[0] + FallbackMargin + float64(slot%perRow)*(FallbackBoxW+FallbackGap)*s,
		Y: page[1] + FallbackMargin + float64(slot/perRow)*(FallbackBoxH+FallbackGap)*s,
		W: FallbackBoxW * s,
		H: FallbackBoxH * s,
	}

	imageH := FallbackImageH * s
	iw, ih := fitImage(imgW, imgH, FallbackImageW*s, imageH)
	img := Rect{
		X: 0,
		Y: box.H - imageH + (imageH-ih)/2,
		W: iw,
		H: ih,
	}

	placed := make([]Line, 0, len(lines))
	top := box.H - imageH
	for i, text := range lines {
		placed = append(placed, Line{
			Text: text,
			X:    0,
			Y:    top - float64(i+1)*LineHeight*s + 2*s,
		})
	}

	return Placement{Page: pageNum, Box: box, Image: img, Lines: placed, FontSize: FontSize * s}
}
