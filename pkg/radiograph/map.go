// Package radiograph holds the output containers of the projection
// pipeline: thickness maps, occupancy volumes, and file encoders for
// both.
package radiograph

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Map is a detector-shaped grid of projected thickness values in
// canonical length units. Data is row-major, one float64 per pixel.
type Map struct {
	Height int
	Width  int
	Data   []float64
}

// NewMap creates a zero-filled thickness map.
func NewMap(height, width int) *Map {
	if height < 0 || width < 0 {
		panic(fmt.Sprintf("radiograph: invalid map shape %dx%d", height, width))
	}
	return &Map{
		Height: height,
		Width:  width,
		Data:   make([]float64, height*width),
	}
}

// At returns the thickness at (x, y), or 0 if out of bounds.
func (m *Map) At(x, y int) float64 {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return 0
	}
	return m.Data[y*m.Width+x]
}

// Set stores a thickness at (x, y). Out-of-bounds writes are dropped.
func (m *Map) Set(x, y int, v float64) {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return
	}
	m.Data[y*m.Width+x] = v
}

// Max returns the largest value in the map, or 0 for an empty map.
func (m *Map) Max() float64 {
	if len(m.Data) == 0 {
		return 0
	}
	return floats.Max(m.Data)
}

// Reset zeroes every pixel.
func (m *Map) Reset() {
	for i := range m.Data {
		m.Data[i] = 0
	}
}

// Clone returns a deep copy of the map.
func (m *Map) Clone() *Map {
	out := NewMap(m.Height, m.Width)
	copy(out.Data, m.Data)
	return out
}
