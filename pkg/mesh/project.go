package mesh

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dzbwhut/syris"
	"github.com/dzbwhut/syris/pkg/kernel"
	"github.com/dzbwhut/syris/pkg/radiograph"
)

// ProjectOption adjusts a single projection or slicing call.
type ProjectOption func(*projectConfig)

type projectConfig struct {
	at   time.Duration
	out  *radiograph.Map
	comp kernel.Compositor
}

// At selects the pose time handed to the mesh's pose source. The
// default is time zero.
func At(t time.Duration) ProjectOption {
	return func(c *projectConfig) { c.at = t }
}

// Into reuses a pre-allocated map as the projection target. Its shape
// must match the detector. Pixels outside the dispatched crop window
// keep their previous values; a missed field of view zeroes the whole
// map.
func Into(m *radiograph.Map) ProjectOption {
	return func(c *projectConfig) { c.out = m }
}

// Using dispatches on a specific backend instead of the registry's
// current selection. ComputeSlices honors it too; At and Into apply to
// Project only.
func Using(c kernel.Compositor) ProjectOption {
	return func(pc *projectConfig) { pc.comp = c }
}

func newProjectConfig(opts []ProjectOption) projectConfig {
	var cfg projectConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c projectConfig) compositor() kernel.Compositor {
	if c.comp != nil {
		return c.comp
	}
	return kernel.Default()
}

// Project renders the mesh's projected thickness onto the detector and
// returns it as a map in canonical units.
//
// The call first applies the pose at the option time and re-sorts the
// buffer; both mutate the current geometry in place and stay visible to
// later calls. Geometry entirely outside the field of view yields a
// zero map and no kernel dispatch. Otherwise the mesh extent is cropped
// against the field of view and only the covered pixel window is
// dispatched.
func (m *Mesh) Project(det Detector, opts ...ProjectOption) (*radiograph.Map, error) {
	return m.ProjectWithContext(context.Background(), det, opts...)
}

// ProjectWithContext is Project with cancellation support. When the
// context is canceled the kernel stops early and the output map holds
// partial results.
func (m *Mesh) ProjectWithContext(ctx context.Context, det Detector, opts ...ProjectOption) (*radiograph.Map, error) {
	if err := det.validate(); err != nil {
		return nil, err
	}
	cfg := newProjectConfig(opts)

	out := cfg.out
	if out == nil {
		out = radiograph.NewMap(det.Height, det.Width)
	} else if out.Height != det.Height || out.Width != det.Width {
		return nil, fmt.Errorf("mesh: output map %dx%d does not match detector %dx%d",
			out.Height, out.Width, det.Height, det.Width)
	}

	if err := m.Transform(cfg.at); err != nil {
		return nil, err
	}
	m.Sort()

	fovY, fovX := det.FOV()
	ext := m.current.Extrema()
	if ext.X.Min >= fovX || ext.X.Max <= 0 || ext.Y.Min >= fovY || ext.Y.Max <= 0 {
		syris.Logger().Debug("mesh outside field of view",
			slog.Float64("fov_x", fovX), slog.Float64("fov_y", fovY))
		out.Reset()
		return out, nil
	}

	window := cropWindow(ext, det, fovX, fovY)
	v1, v2, v3 := m.current.vertexStreams()
	req := &kernel.ThicknessRequest{
		V1: v1, V2: v2, V3: v3,
		Triangles:  m.current.NumTriangles(),
		Out:        out.Data,
		RowStride:  det.Width,
		Width:      window.width,
		Height:     window.height,
		OffsetX:    window.offX,
		OffsetY:    window.offY,
		PixelSize:  det.PixelSize[0],
		PixelSizeY: det.PixelSize[1],
		MaxDX:      m.current.MaxTriangleXDiff(),
		MinZ:       ext.Z.Min,
		Iterations: m.iterations,
	}

	comp := cfg.compositor()
	syris.Logger().Debug("projecting mesh",
		slog.String("backend", comp.Name()),
		slog.Int("triangles", req.Triangles),
		slog.Int("width", req.Width),
		slog.Int("height", req.Height),
		slog.Int("offset_x", req.OffsetX),
		slog.Int("offset_y", req.OffsetY))
	if err := comp.Thickness(ctx, req); err != nil {
		return nil, err
	}
	return out, nil
}

// ComputeSlices samples the mesh's current geometry into a stack of
// binary occupancy planes, one per depth step of the detector pitch,
// starting at the minimum z extremum. Unlike Project it neither
// re-poses nor re-sorts the buffer; it slices the geometry exactly as
// it stands.
func (m *Mesh) ComputeSlices(det Detector, slices int, opts ...ProjectOption) (*radiograph.Volume, error) {
	return m.ComputeSlicesWithContext(context.Background(), det, slices, opts...)
}

// ComputeSlicesWithContext is ComputeSlices with cancellation support.
func (m *Mesh) ComputeSlicesWithContext(ctx context.Context, det Detector, slices int, opts ...ProjectOption) (*radiograph.Volume, error) {
	if err := det.validate(); err != nil {
		return nil, err
	}
	if slices < 0 {
		return nil, fmt.Errorf("mesh: slice count %d, want >= 0", slices)
	}
	cfg := newProjectConfig(opts)

	vol := radiograph.NewVolume(slices, det.Height, det.Width)
	if slices == 0 {
		return vol, nil
	}

	ext := m.current.Extrema()
	v1, v2, v3 := m.current.vertexStreams()
	req := &kernel.SliceRequest{
		V1: v1, V2: v2, V3: v3,
		Triangles:  m.current.NumTriangles(),
		Out:        vol.Data,
		Width:      det.Width,
		Height:     det.Height,
		NumSlices:  slices,
		PixelSize:  det.PixelSize[0],
		PixelSizeY: det.PixelSize[1],
		MaxDX:      m.current.MaxTriangleXDiff(),
		MinZ:       ext.Z.Min,
	}

	comp := cfg.compositor()
	syris.Logger().Debug("slicing mesh",
		slog.String("backend", comp.Name()),
		slog.Int("triangles", req.Triangles),
		slog.Int("slices", slices))
	if err := comp.Slices(ctx, req); err != nil {
		return nil, err
	}
	return vol, nil
}

type window struct {
	width, height int
	offX, offY    int
}

// cropWindow intersects the mesh extent with the field of view and
// quantizes the result to whole pixels: the offset truncates toward
// zero, the width rounds up and is clamped to the detector edge.
func cropWindow(ext Extrema, det Detector, fovX, fovY float64) window {
	xMin := max(ext.X.Min, 0)
	xMax := min(ext.X.Max, fovX)
	yMin := max(ext.Y.Min, 0)
	yMax := min(ext.Y.Max, fovY)

	psX, psY := det.PixelSize[0], det.PixelSize[1]
	w := window{
		width:  min(int(math.Ceil((xMax-xMin)/psX)), det.Width),
		height: min(int(math.Ceil((yMax-yMin)/psY)), det.Height),
		offX:   int(xMin / psX),
		offY:   int(yMin / psY),
	}
	w.width = min(w.width, det.Width-w.offX)
	w.height = min(w.height, det.Height-w.offY)
	return w
}
