package mesh

import "fmt"

// Detector describes the pixel grid a projection renders onto. Pixel
// pitches are in canonical units; PixelSize[0] is the x axis,
// PixelSize[1] the y axis.
type Detector struct {
	Height    int
	Width     int
	PixelSize [2]float64
}

// NewDetector builds a detector of h by w pixels. One pitch value makes
// square pixels; two give the x and y pitches separately.
func NewDetector(h, w int, pixelSize ...float64) (Detector, error) {
	if h <= 0 || w <= 0 {
		return Detector{}, fmt.Errorf("mesh: detector shape %dx%d, want positive", h, w)
	}
	var ps [2]float64
	switch len(pixelSize) {
	case 1:
		ps[0], ps[1] = pixelSize[0], pixelSize[0]
	case 2:
		ps[0], ps[1] = pixelSize[0], pixelSize[1]
	default:
		return Detector{}, fmt.Errorf("mesh: %d pixel size values, want 1 or 2", len(pixelSize))
	}
	if ps[0] <= 0 || ps[1] <= 0 {
		return Detector{}, fmt.Errorf("mesh: pixel size %v, want positive", ps)
	}
	return Detector{Height: h, Width: w, PixelSize: ps}, nil
}

// FOV returns the physical extent of the detector in canonical units,
// height first.
func (d Detector) FOV() (fy, fx float64) {
	return float64(d.Height) * d.PixelSize[1], float64(d.Width) * d.PixelSize[0]
}

func (d Detector) validate() error {
	if d.Height <= 0 || d.Width <= 0 {
		return fmt.Errorf("mesh: detector shape %dx%d, want positive", d.Height, d.Width)
	}
	if d.PixelSize[0] <= 0 || d.PixelSize[1] <= 0 {
		return fmt.Errorf("mesh: pixel size %v, want positive", d.PixelSize)
	}
	return nil
}
