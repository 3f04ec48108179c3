package sealer

import (
	"fmt"
	"testing"

	"github.com/eduzen/cascadesign/internal/models"
	"github.com/stretchr/testify/require"
)

var a4 = PageBox{0, 0, 595.28, 841.89}

func TestPlaceInZone(t *testing.T) {
	tests := []struct {
		name      string
		zone      models.SignZone
		imgW      int
		imgH      int
		wantLines int
	}{
		{
			name:      "wide zone keeps both lines",
			zone:      models.SignZone{Page: 1, X: 0.1, Y: 0.7, W: 0.4, H: 0.15},
			imgW:      300,
			imgH:      60,
			wantLines: 2,
		},
		{
			name:      "image filling the height leaves no room",
			zone:      models.SignZone{Page: 2, X: 0.5, Y: 0.1, W: 0.4, H: 0.05},
			imgW:      100,
			imgH:      100,
			wantLines: 0,
		},
		{
			name:      "tall image in a square zone",
			zone:      models.SignZone{Page: 1, X: 0, Y: 0, W: 0.2, H: 0.2},
			imgW:      50,
			imgH:      200,
			wantLines: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PlaceInZone(tt.zone, a4, tt.imgW, tt.imgH, []string{"Jane Doe", "01/02/2026 10:00 UTC"})

			require.Equal(t, tt.zone.Page, p.Page)
			require.InDelta(t, tt.zone.X*a4.Width(), p.Box.X, 0.001)
			require.InDelta(t, (1-tt.zone.Y-tt.zone.H)*a4.Height(), p.Box.Y, 0.001)
			require.InDelta(t, tt.zone.W*a4.Width(), p.Box.W, 0.001)
			require.InDelta(t, tt.zone.H*a4.Height(), p.Box.H, 0.001)

			// centred on both axes
			require.InDelta(t, p.Box.W/2, p.Image.X+p.Image.W/2, 0.001)
			require.InDelta(t, p.Box.H/2, p.Image.Y+p.Image.H/2, 0.001)

			// aspect ratio preserved and inside the zone
			require.InDelta(t, float64(tt.imgW)/float64(tt.imgH), p.Image.W/p.Image.H, 0.001)
			require.LessOrEqual(t, p.Image.W, p.Box.W+0.001)
			require.LessOrEqual(t, p.Image.H, p.Box.H+0.001)

			require.Len(t, p.Lines, tt.wantLines)
			for _, l := range p.Lines {
				require.GreaterOrEqual(t, l.Y, 0.0)
				require.Less(t, l.Y, p.Image.Y)
			}
		})
	}
}

func TestPlaceInZone_VerticalCentre(t *testing.T) {
	zone := models.SignZone{Page: 1, X: 0.1, Y: 0.8, W: 0.2, H: 0.1}
	p := PlaceInZone(zone, a4, 400, 100, nil)

	centre := p.Box.Y + p.Image.Y + p.Image.H/2
	require.InDelta(t, (1-0.8-0.05)*a4.Height(), centre, 1)
}

func TestPlaceInZone_OffsetMediaBox(t *testing.T) {
	page := PageBox{10, 20, 610, 820}
	p := PlaceInZone(models.SignZone{Page: 1, X: 0, Y: 0, W: 1, H: 0.1}, page, 10, 10, nil)

	require.InDelta(t, 10.0, p.Box.X, 0.001)
	require.InDelta(t, 20+0.9*800, p.Box.Y, 0.001)
	require.Empty(t, p.Lines)
}

func TestPlaceFallback(t *testing.T) {
	lines := []string{"Jane Doe", "jane@example.com", "01/02/2026 10:00 UTC", "IP: 203.0.113.7"}

	grid, err := NewFallbackGrid(a4, 3)
	require.NoError(t, err)
	require.Equal(t, 1.0, grid.Scale)
	require.Equal(t, 14, grid.Cells())

	first := PlaceFallback(0, 3, a4, grid, 300, 100, lines)
	require.Equal(t, 3, first.Page)
	require.Equal(t, Rect{X: FallbackMargin, Y: FallbackMargin, W: FallbackBoxW, H: FallbackBoxH}, first.Box)
	require.Equal(t, FontSize, first.FontSize)
	require.Len(t, first.Lines, 4)
	require.InDelta(t, 3.0, first.Image.W/first.Image.H, 0.001)
	require.LessOrEqual(t, first.Image.W, FallbackImageW)
	require.LessOrEqual(t, first.Image.H, FallbackImageH)
	for _, l := range first.Lines {
		require.GreaterOrEqual(t, l.Y, 0.0)
		require.Less(t, l.Y, first.Image.Y)
	}

	second := PlaceFallback(1, 3, a4, grid, 300, 100, lines)
	require.InDelta(t, FallbackMargin+FallbackBoxW+FallbackGap, second.Box.X, 0.001)
	require.Equal(t, first.Box.Y, second.Box.Y)

	// A4 holds two cells per row, the third slot starts a new row above the first.
	third := PlaceFallback(2, 3, a4, grid, 300, 100, lines)
	require.Equal(t, first.Box.X, third.Box.X)
	require.InDelta(t, FallbackMargin+FallbackBoxH+FallbackGap, third.Box.Y, 0.001)

	boxes := []Rect{first.Box, second.Box, third.Box}
	for i := range boxes {
		for j := i + 1; j < len(boxes); j++ {
			require.False(t, overlaps(boxes[i], boxes[j]), "slots %d and %d overlap", i, j)
		}
	}
}

func TestPlaceFallback_StaysOnPage(t *testing.T) {
	const maxSignatories = 50
	lines := []string{"Jane Doe", "jane@example.com", "01/02/2026 10:00 UTC", "IP: 203.0.113.7"}

	pages := map[string]PageBox{
		"letter":        {0, 0, 612, 792},
		"a4":            a4,
		"a4 landscape":  {0, 0, 841.89, 595.28},
		"a5":            {0, 0, 419.53, 595.28},
		"offset letter": {18, 18, 630, 810},
	}

	for name, page := range pages {
		for _, slots := range []int{2, 12, 13, 14, 15, 30, maxSignatories} {
			t.Run(fmt.Sprintf("%s/%d", name, slots), func(t *testing.T) {
				grid, err := NewFallbackGrid(page, slots)
				require.NoError(t, err)
				require.GreaterOrEqual(t, grid.Cells(), slots)
				require.LessOrEqual(t, grid.Scale, 1.0)

				boxes := make([]Rect, 0, slots)
				for slot := range slots {
					p := PlaceFallback(slot, 1, page, grid, 300, 100, lines)
					b := p.Box
					require.GreaterOrEqual(t, b.X, page[0]+FallbackMargin-0.001, "slot %d", slot)
					require.GreaterOrEqual(t, b.Y, page[1]+FallbackMargin-0.001, "slot %d", slot)
					require.LessOrEqual(t, b.X+b.W, page[2]-FallbackMargin+0.001, "slot %d", slot)
					require.LessOrEqual(t, b.Y+b.H, page[3]-FallbackMargin+0.001, "slot %d", slot)
					require.Positive(t, p.FontSize)
					for _, l := range p.Lines {
						require.GreaterOrEqual(t, l.Y, 0.0)
					}
					boxes = append(boxes, b)
				}

				for i := range boxes {
					for j := i + 1; j < len(boxes); j++ {
						require.False(t, overlaps(boxes[i], boxes[j]), "slots %d and %d overlap", i, j)
					}
				}
			})
		}
	}
}

func TestNewFallbackGrid_ShrinksOnlyWhenNeeded(t *testing.T) {
	letter := PageBox{0, 0, 612, 792}

	full, err := NewFallbackGrid(letter, 12)
	require.NoError(t, err)
	require.Equal(t, 1.0, full.Scale)

	shrunk, err := NewFallbackGrid(letter, 13)
	require.NoError(t, err)
	require.Less(t, shrunk.Scale, 1.0)
	require.GreaterOrEqual(t, shrunk.Cells(), 13)

	// the grid depends on the process size only, not on the slot being placed
	again, err := NewFallbackGrid(letter, 13)
	require.NoError(t, err)
	require.Equal(t, shrunk, again)
}

func TestNewFallbackGrid_PageTooSmall(t *testing.T) {
	label := PageBox{0, 0, 200, 150}

	_, err := NewFallbackGrid(label, 50)
	require.ErrorIs(t, err, ErrNoFallbackRoom)
	require.Less(t, GridCapacity(label), 50)

	_, err = NewFallbackGrid(label, GridCapacity(label))
	require.NoError(t, err)
}

func overlaps(a, b Rect) bool {
	return a.X < b.X+b.W && b.X < a.X+a.W && a.Y < b.Y+b.H && b.Y < a.Y+a.H
}
