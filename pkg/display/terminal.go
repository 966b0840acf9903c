// Package display renders thickness maps in a terminal, either as cells on
// an ultraviolet screen or as a raw ANSI frame on a writer.
package display

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	uv "github.com/charmbracelet/ultraviolet"

	"github.com/dzbwhut/syris/pkg/radiograph"
)

// Rows returns the number of terminal rows a map of the given height
// occupies: two map rows per terminal row.
func Rows(mapHeight int) int { return (mapHeight + 1) / 2 }

// Draw paints the map onto the screen as grayscale cells.
// Each terminal row carries two map rows: ▀ (upper half block) with
// fg=top pixel and bg=bottom pixel. Thickness is scaled against
// maxThickness; pass zero to scale against the map's own maximum.
func Draw(scr uv.Screen, m *radiograph.Map, maxThickness float64) {
	if maxThickness <= 0 {
		maxThickness = m.Max()
	}
	for row := range Rows(m.Height) {
		topY := row * 2
		botY := topY + 1

		for col := range m.Width {
			cell := &uv.Cell{
				Content: "▀",
				Width:   1,
				Style: uv.Style{
					Fg: grayColor(m.At(col, topY), maxThickness),
					Bg: grayColor(m.At(col, botY), maxThickness),
				},
			}
			scr.SetCell(col, row, cell)
		}
	}
}

// Render writes the map to w as a single ANSI frame, moving the cursor with
// escape sequences and painting the same half-block layout Draw uses. The
// writer should be a terminal already switched to an alternate screen.
func Render(w io.Writer, m *radiograph.Map, maxThickness float64) error {
	if maxThickness <= 0 {
		maxThickness = m.Max()
	}
	var sb strings.Builder
	for row := range Rows(m.Height) {
		topY := row * 2
		botY := topY + 1

		fmt.Fprintf(&sb, "\x1b[%d;1H", row+1)
		lastFg, lastBg := -1, -1
		for col := range m.Width {
			fg := int(level(m.At(col, topY), maxThickness))
			bg := int(level(m.At(col, botY), maxThickness))
			if fg != lastFg || bg != lastBg {
				fmt.Fprintf(&sb, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm", fg, fg, fg, bg, bg, bg)
				lastFg, lastBg = fg, bg
			}
			sb.WriteRune('▀')
		}
		sb.WriteString("\x1b[0m")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func grayColor(v, ref float64) color.Color {
	g := level(v, ref)
	return color.RGBA{g, g, g, 255}
}

// level maps a thickness to an 8-bit gray value, clamped to [0, 255].
func level(v, ref float64) uint8 {
	if ref <= 0 {
		return 0
	}
	g := v / ref
	if g <= 0 {
		return 0
	}
	if g >= 1 {
		return 255
	}
	return uint8(g*255 + 0.5)
}
