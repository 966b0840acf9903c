package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/dzbwhut/syris"
)

func init() {
	Register(&CPU{})
}

// CPU is the reference compositor. It casts one axis-aligned ray per
// output pixel and accumulates entry/exit crossings on the host,
// narrowing the triangle scan with a binary search over the sorted
// representative-x stream.
type CPU struct {
	// Workers bounds the number of concurrent band workers.
	// If <= 0, runtime.GOMAXPROCS(0) is used.
	Workers int
}

// Name reports the registry name of the backend.
func (*CPU) Name() string { return "cpu" }

// Thickness fills the cropped window of req.Out with per-pixel path
// lengths through the mesh, in the same canonical units as the vertex
// streams. Pixels outside the window keep their prior values.
func (c *CPU) Thickness(ctx context.Context, req *ThicknessRequest) error {
	if err := checkThickness(req); err != nil {
		return &DispatchError{Backend: c.Name(), Err: err}
	}
	if req.Width == 0 || req.Height == 0 {
		return nil
	}
	workers := c.workerCount(req.Height)
	syris.Logger().Debug("thickness dispatch",
		slog.String("backend", c.Name()),
		slog.Int("triangles", req.Triangles),
		slog.Int("width", req.Width),
		slog.Int("height", req.Height),
		slog.Int("workers", workers))

	band := (req.Height + workers - 1) / workers
	g, ctx := errgroup.WithContext(ctx)
	for y0 := 0; y0 < req.Height; y0 += band {
		y1 := min(y0+band, req.Height)
		g.Go(func() error {
			return thicknessBand(ctx, req, y0, y1)
		})
	}
	if err := g.Wait(); err != nil {
		return &DispatchError{Backend: c.Name(), Err: err}
	}
	return nil
}

// Slices fills req.Out with binary occupancy planes, one per depth
// sample. Slice s is cut at z = MinZ + (s+0.5)*PixelSize and probed
// with rays marching along +y.
func (c *CPU) Slices(ctx context.Context, req *SliceRequest) error {
	if err := checkSlices(req); err != nil {
		return &DispatchError{Backend: c.Name(), Err: err}
	}
	if req.Width == 0 || req.Height == 0 || req.NumSlices == 0 {
		return nil
	}
	workers := c.workerCount(req.NumSlices)
	syris.Logger().Debug("slice dispatch",
		slog.String("backend", c.Name()),
		slog.Int("triangles", req.Triangles),
		slog.Int("slices", req.NumSlices),
		slog.Int("workers", workers))

	// Rays must start below every vertex for the crossing parity to
	// hold; the slice streams carry no precomputed bound.
	yStart := minStreamY(req) - 1

	band := (req.NumSlices + workers - 1) / workers
	g, ctx := errgroup.WithContext(ctx)
	for s0 := 0; s0 < req.NumSlices; s0 += band {
		s1 := min(s0+band, req.NumSlices)
		g.Go(func() error {
			return sliceBand(ctx, req, yStart, s0, s1)
		})
	}
	if err := g.Wait(); err != nil {
		return &DispatchError{Backend: c.Name(), Err: err}
	}
	return nil
}

func (c *CPU) workerCount(tasks int) int {
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > tasks {
		workers = tasks
	}
	return workers
}

func checkThickness(req *ThicknessRequest) error {
	if req == nil {
		return errors.New("nil request")
	}
	if err := validateStreams(req.V1, req.V2, req.V3, req.Triangles); err != nil {
		return err
	}
	if req.PixelSize <= 0 {
		return fmt.Errorf("pixel size %v, want > 0", req.PixelSize)
	}
	if req.PixelSizeY < 0 {
		return fmt.Errorf("pixel size y %v, want >= 0", req.PixelSizeY)
	}
	if req.MaxDX < 0 {
		return fmt.Errorf("max x extent %v, want >= 0", req.MaxDX)
	}
	if req.Width < 0 || req.Height < 0 || req.OffsetX < 0 || req.OffsetY < 0 {
		return fmt.Errorf("window %dx%d at (%d, %d), want non-negative",
			req.Width, req.Height, req.OffsetX, req.OffsetY)
	}
	if req.RowStride < req.OffsetX+req.Width {
		return fmt.Errorf("row stride %d too small for window offset %d + width %d",
			req.RowStride, req.OffsetX, req.Width)
	}
	if need := req.RowStride * (req.OffsetY + req.Height); len(req.Out) < need {
		return fmt.Errorf("output has %d pixels, want at least %d", len(req.Out), need)
	}
	return nil
}

func checkSlices(req *SliceRequest) error {
	if req == nil {
		return errors.New("nil request")
	}
	if err := validateStreams(req.V1, req.V2, req.V3, req.Triangles); err != nil {
		return err
	}
	if req.PixelSize <= 0 {
		return fmt.Errorf("pixel size %v, want > 0", req.PixelSize)
	}
	if req.PixelSizeY < 0 {
		return fmt.Errorf("pixel size y %v, want >= 0", req.PixelSizeY)
	}
	if req.Width < 0 || req.Height < 0 || req.NumSlices < 0 {
		return fmt.Errorf("volume %dx%dx%d, want non-negative",
			req.NumSlices, req.Height, req.Width)
	}
	if need := req.NumSlices * req.Height * req.Width; len(req.Out) < need {
		return fmt.Errorf("output has %d voxels, want at least %d", len(req.Out), need)
	}
	return nil
}

func thicknessBand(ctx context.Context, req *ThicknessRequest, y0, y1 int) error {
	psY := req.PixelSizeY
	if psY <= 0 {
		psY = req.PixelSize
	}
	var ts []float64
	for y := y0; y < y1; y++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		wy := (float64(req.OffsetY+y) + 0.5) * psY
		row := (req.OffsetY + y) * req.RowStride
		for x := range req.Width {
			wx := (float64(req.OffsetX+x) + 0.5) * req.PixelSize
			ts = pixelCrossings(req, wx, wy, ts[:0])
			req.Out[row+req.OffsetX+x] = accumulate(ts, req.Iterations)
		}
	}
	return nil
}

// pixelCrossings collects ray parameters of every triangle crossing for
// the +z ray through (wx, wy). Only triangles whose representative x
// falls in [wx, wx+MaxDX] can cover the ray, which the sorted third
// stream turns into one binary search plus a short forward scan.
func pixelCrossings(req *ThicknessRequest, wx, wy float64, ts []float64) []float64 {
	origin := r3.Vec{X: wx, Y: wy, Z: req.MinZ - 1}
	lo := sort.Search(req.Triangles, func(i int) bool { return req.V3[4*i] >= wx })
	for i := lo; i < req.Triangles && req.V3[4*i] <= wx+req.MaxDX; i++ {
		a := r3.Vec{X: req.V1[4*i], Y: req.V1[4*i+1], Z: req.V1[4*i+2]}
		b := r3.Vec{X: req.V2[4*i], Y: req.V2[4*i+1], Z: req.V2[4*i+2]}
		cc := r3.Vec{X: req.V3[4*i], Y: req.V3[4*i+1], Z: req.V3[4*i+2]}
		if t, ok := rayTriangle(origin, rayZ, a, b, cc); ok {
			ts = append(ts, t)
		}
	}
	return ts
}

func sliceBand(ctx context.Context, req *SliceRequest, yStart float64, s0, s1 int) error {
	var ts []float64
	plane := req.Height * req.Width
	for s := s0; s < s1; s++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		z := req.MinZ + (float64(s)+0.5)*req.PixelSize
		base := s * plane
		for x := range req.Width {
			wx := (float64(x) + 0.5) * req.PixelSize
			origin := r3.Vec{X: wx, Y: yStart, Z: z}
			ts = ts[:0]
			for i := range req.Triangles {
				a := r3.Vec{X: req.V1[4*i], Y: req.V1[4*i+1], Z: req.V1[4*i+2]}
				b := r3.Vec{X: req.V2[4*i], Y: req.V2[4*i+1], Z: req.V2[4*i+2]}
				cc := r3.Vec{X: req.V3[4*i], Y: req.V3[4*i+1], Z: req.V3[4*i+2]}
				if t, ok := rayTriangle(origin, rayY, a, b, cc); ok {
					ts = append(ts, t)
				}
			}
			fillColumn(req, base, x, yStart, weld(ts))
		}
	}
	return nil
}

// fillColumn marks the pixel rows whose centers fall inside an
// entry/exit span of the +y ray.
func fillColumn(req *SliceRequest, base, x int, yStart float64, ts []float64) {
	psY := req.PixelSizeY
	if psY <= 0 {
		psY = req.PixelSize
	}
	for i := 0; i+1 < len(ts); i += 2 {
		ya := yStart + ts[i]
		yb := yStart + ts[i+1]
		first := int(math.Ceil(ya/psY - 0.5))
		last := int(math.Floor(yb/psY - 0.5))
		first = max(first, 0)
		last = min(last, req.Height-1)
		for j := first; j <= last; j++ {
			req.Out[base+j*req.Width+x] = 1
		}
	}
}

// minStreamY returns the smallest y over all three vertex streams, or 0
// if there are no triangles.
func minStreamY(req *SliceRequest) float64 {
	if req.Triangles == 0 {
		return 0
	}
	lowest := math.Inf(1)
	for i := range req.Triangles {
		lowest = min(lowest, req.V1[4*i+1], req.V2[4*i+1], req.V3[4*i+1])
	}
	return lowest
}

var (
	rayZ = r3.Vec{Z: 1}
	rayY = r3.Vec{Y: 1}
)

// Welding tolerance for duplicate crossings. Rays striking a shared
// edge or vertex register on every adjacent triangle at (numerically)
// the same parameter; collapsing the cluster keeps the parity intact.
const weldEps = 1e-9

// rayTriangle runs the Möller-Trumbore test for a unit-length ray
// direction and reports the crossing parameter along the ray. Edge and
// vertex hits are accepted, on every adjacent triangle.
func rayTriangle(origin, dir, a, b, c r3.Vec) (float64, bool) {
	const detEps = 1e-12
	const uvEps = 1e-9
	edge1 := r3.Sub(b, a)
	edge2 := r3.Sub(c, a)
	h := r3.Cross(dir, edge2)
	det := r3.Dot(edge1, h)
	// Near-zero determinant: the ray runs parallel to the triangle
	// plane. Edge-on triangles contribute no path length.
	if det > -detEps && det < detEps {
		return 0, false
	}
	invDet := 1 / det
	s := r3.Sub(origin, a)
	u := invDet * r3.Dot(s, h)
	if u < -uvEps || u > 1+uvEps {
		return 0, false
	}
	q := r3.Cross(s, edge1)
	v := invDet * r3.Dot(dir, q)
	if v < -uvEps || u+v > 1+uvEps {
		return 0, false
	}
	t := invDet * r3.Dot(edge2, q)
	if t < 0 {
		return 0, false
	}
	return t, true
}

// weld sorts the crossings and collapses clusters closer than weldEps
// into a single crossing, in place.
func weld(ts []float64) []float64 {
	if len(ts) < 2 {
		return ts
	}
	slices.Sort(ts)
	n := 1
	for i := 1; i < len(ts); i++ {
		if ts[i]-ts[n-1] > weldEps {
			ts[n] = ts[i]
			n++
		}
	}
	return ts[:n]
}

// accumulate sums the entry/exit spans of a crossing list. A positive
// iteration budget caps how many spans contribute; an unpaired trailing
// crossing (a tangential graze) is dropped.
func accumulate(ts []float64, iterations int) float64 {
	ts = weld(ts)
	pairs := len(ts) / 2
	if iterations > 0 && pairs > iterations {
		pairs = iterations
	}
	var sum float64
	for i := range pairs {
		sum += ts[2*i+1] - ts[2*i]
	}
	return sum
}
