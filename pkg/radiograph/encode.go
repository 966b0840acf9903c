package radiograph

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/tiff"
)

// Gray16 renders the map as a 16-bit grayscale image, scaled linearly
// so that ref maps to full white. A non-positive ref uses the map's own
// maximum; an all-zero map renders black.
func (m *Map) Gray16(ref float64) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, m.Width, m.Height))
	if ref <= 0 {
		ref = m.Max()
	}
	if ref <= 0 {
		return img
	}
	for y := range m.Height {
		for x := range m.Width {
			v := m.Data[y*m.Width+x] / ref * math.MaxUint16
			v = math.Round(min(max(v, 0), math.MaxUint16))
			img.SetGray16(x, y, color.Gray16{Y: uint16(v)})
		}
	}
	return img
}

// nrgba renders the map as 8-bit grayscale in an NRGBA raster, the
// layout the WebP encoder takes.
func (m *Map) nrgba(ref float64) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	if ref <= 0 {
		ref = m.Max()
	}
	for y := range m.Height {
		for x := range m.Width {
			var g uint8
			if ref > 0 {
				v := m.Data[y*m.Width+x] / ref * math.MaxUint8
				g = uint8(math.Round(min(max(v, 0), math.MaxUint8)))
			}
			img.SetNRGBA(x, y, color.NRGBA{R: g, G: g, B: g, A: math.MaxUint8})
		}
	}
	return img
}

// WritePNG encodes the map as a 16-bit grayscale PNG.
func WritePNG(w io.Writer, m *Map, ref float64) error {
	return png.Encode(w, m.Gray16(ref))
}

// WriteTIFF encodes the map as a 16-bit grayscale TIFF with deflate
// compression.
func WriteTIFF(w io.Writer, m *Map, ref float64) error {
	return tiff.Encode(w, m.Gray16(ref), &tiff.Options{
		Compression: tiff.Deflate,
		Predictor:   true,
	})
}

// WriteWebP encodes the map as an 8-bit grayscale lossless WebP.
func WriteWebP(w io.Writer, m *Map, ref float64) error {
	return nativewebp.Encode(w, m.nrgba(ref), nil)
}

// Save writes the map to path, picking the encoder from the extension:
// .png, .tif, .tiff, or .webp.
func Save(path string, m *Map, ref float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		return WritePNG(f, m, ref)
	case ".tif", ".tiff":
		return WriteTIFF(f, m, ref)
	case ".webp":
		return WriteWebP(f, m, ref)
	default:
		return fmt.Errorf("radiograph: unsupported output format %q", ext)
	}
}
