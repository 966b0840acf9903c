package mesh

import "testing"

func TestNewDetector(t *testing.T) {
	tests := []struct {
		name string
		h, w int
		ps   []float64
		want [2]float64
		ok   bool
	}{
		{"square pixels", 4, 8, []float64{0.5}, [2]float64{0.5, 0.5}, true},
		{"rectangular pixels", 4, 8, []float64{0.5, 0.25}, [2]float64{0.5, 0.25}, true},
		{"zero height", 0, 8, []float64{0.5}, [2]float64{}, false},
		{"negative width", 4, -1, []float64{0.5}, [2]float64{}, false},
		{"no pitch", 4, 8, nil, [2]float64{}, false},
		{"three pitches", 4, 8, []float64{1, 1, 1}, [2]float64{}, false},
		{"zero pitch", 4, 8, []float64{0}, [2]float64{}, false},
		{"negative pitch", 4, 8, []float64{0.5, -0.5}, [2]float64{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det, err := NewDetector(tt.h, tt.w, tt.ps...)
			if tt.ok != (err == nil) {
				t.Fatalf("NewDetector(%d, %d, %v) error = %v, want ok=%v", tt.h, tt.w, tt.ps, err, tt.ok)
			}
			if tt.ok && det.PixelSize != tt.want {
				t.Errorf("PixelSize = %v, want %v", det.PixelSize, tt.want)
			}
		})
	}
}

func TestDetectorFOV(t *testing.T) {
	det := mustDetector(t, 4, 8, 0.5, 0.25)
	fy, fx := det.FOV()
	if fy != 1 || fx != 4 {
		t.Errorf("FOV = (%g, %g), want (1, 4)", fy, fx)
	}
}
