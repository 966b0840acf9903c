package radiograph

import (
	"fmt"
	"io"
)

// Volume is a stack of binary occupancy planes, slice-major then
// row-major: voxel (s, y, x) lives at Data[s*Height*Width + y*Width + x].
// A value of 1 marks a voxel inside the material.
type Volume struct {
	Slices int
	Height int
	Width  int
	Data   []uint8
}

// NewVolume creates a zero-filled occupancy volume.
func NewVolume(slices, height, width int) *Volume {
	if slices < 0 || height < 0 || width < 0 {
		panic(fmt.Sprintf("radiograph: invalid volume shape %dx%dx%d", slices, height, width))
	}
	return &Volume{
		Slices: slices,
		Height: height,
		Width:  width,
		Data:   make([]uint8, slices*height*width),
	}
}

// At returns the occupancy at (x, y) in slice s, or 0 if out of bounds.
func (v *Volume) At(x, y, s int) uint8 {
	if x < 0 || x >= v.Width || y < 0 || y >= v.Height || s < 0 || s >= v.Slices {
		return 0
	}
	return v.Data[(s*v.Height+y)*v.Width+x]
}

// Slice materializes one occupancy plane as a thickness map with 0/1
// values, so the map encoders and the terminal preview apply to it.
func (v *Volume) Slice(s int) *Map {
	m := NewMap(v.Height, v.Width)
	if s < 0 || s >= v.Slices {
		return m
	}
	plane := v.Data[s*v.Height*v.Width : (s+1)*v.Height*v.Width]
	for i, b := range plane {
		m.Data[i] = float64(b)
	}
	return m
}

// WriteTo streams the raw voxel bytes, slice-major. It implements
// io.WriterTo.
func (v *Volume) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(v.Data)
	return int64(n), err
}
