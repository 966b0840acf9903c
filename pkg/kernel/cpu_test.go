package kernel

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// cubeTrisAt returns a watertight axis-aligned unit cube with its
// minimum corner at (dx, dy, dz). The third slot of every triangle
// holds its largest-x vertex and the list is ascending by that x, so
// the streams are already in kernel order.
func cubeTrisAt(dx, dy, dz float64) [][3][3]float64 {
	base := [][3][3]float64{
		{{0, 0, 0}, {0, 1, 0}, {0, 1, 1}},
		{{0, 0, 0}, {0, 1, 1}, {0, 0, 1}},
		{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}},
		{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}},
		{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}},
		{{0, 0, 1}, {0, 1, 1}, {1, 1, 1}},
		{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}},
		{{0, 0, 0}, {0, 0, 1}, {1, 0, 1}},
		{{0, 1, 0}, {1, 1, 0}, {1, 1, 1}},
		{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}},
		{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}},
		{{1, 0, 0}, {1, 1, 1}, {1, 0, 1}},
	}
	for i := range base {
		for j := range 3 {
			base[i][j][0] += dx
			base[i][j][1] += dy
			base[i][j][2] += dz
		}
	}
	return base
}

// marshalTris packs triangles into the three per-slot streams. The
// caller is responsible for kernel order.
func marshalTris(tris [][3][3]float64) (v1, v2, v3 []float64) {
	v1 = make([]float64, 0, 4*len(tris))
	v2 = make([]float64, 0, 4*len(tris))
	v3 = make([]float64, 0, 4*len(tris))
	for _, tri := range tris {
		v1 = append(v1, tri[0][0], tri[0][1], tri[0][2], 1)
		v2 = append(v2, tri[1][0], tri[1][1], tri[1][2], 1)
		v3 = append(v3, tri[2][0], tri[2][1], tri[2][2], 1)
	}
	return v1, v2, v3
}

func TestThicknessUnitCube(t *testing.T) {
	v1, v2, v3 := marshalTris(cubeTrisAt(0, 0, 0))
	req := &ThicknessRequest{
		V1: v1, V2: v2, V3: v3, Triangles: 12,
		Out:       make([]float64, 16),
		RowStride: 4, Width: 4, Height: 4,
		PixelSize: 0.25, MaxDX: 1, MinZ: 0, Iterations: 1,
	}
	cpu := &CPU{}
	if err := cpu.Thickness(context.Background(), req); err != nil {
		t.Fatalf("Thickness() = %v", err)
	}
	for i, got := range req.Out {
		if math.Abs(got-1) > 1e-9 {
			t.Errorf("Out[%d] = %v, want 1 (every ray passes straight through)", i, got)
		}
	}
}

func TestThicknessCroppedWindow(t *testing.T) {
	// Cube spanning [0.5, 1.5] in x and y on an 8x8 grid with 0.25
	// pitch; the window mirrors what the projection driver crops.
	v1, v2, v3 := marshalTris(cubeTrisAt(0.5, 0.5, 0))
	const sentinel = 9.5
	out := make([]float64, 64)
	for i := range out {
		out[i] = sentinel
	}
	req := &ThicknessRequest{
		V1: v1, V2: v2, V3: v3, Triangles: 12,
		Out:       out,
		RowStride: 8, Width: 4, Height: 4, OffsetX: 2, OffsetY: 2,
		PixelSize: 0.25, MaxDX: 1, MinZ: 0, Iterations: 1,
	}
	cpu := &CPU{Workers: 2}
	if err := cpu.Thickness(context.Background(), req); err != nil {
		t.Fatalf("Thickness() = %v", err)
	}
	for y := range 8 {
		for x := range 8 {
			got := out[y*8+x]
			inside := x >= 2 && x < 6 && y >= 2 && y < 6
			switch {
			case inside && math.Abs(got-1) > 1e-9:
				t.Errorf("window pixel (%d, %d) = %v, want 1", x, y, got)
			case !inside && got != sentinel:
				t.Errorf("pixel (%d, %d) = %v, want untouched sentinel", x, y, got)
			}
		}
	}
}

func TestThicknessBeyondMesh(t *testing.T) {
	// A single row reaching past the cube: the right half of the rays
	// miss and must read exactly zero.
	v1, v2, v3 := marshalTris(cubeTrisAt(0, 0, 0))
	req := &ThicknessRequest{
		V1: v1, V2: v2, V3: v3, Triangles: 12,
		Out:       make([]float64, 8),
		RowStride: 8, Width: 8, Height: 1,
		PixelSize: 0.25, MaxDX: 1, MinZ: 0, Iterations: 1,
	}
	if err := (&CPU{}).Thickness(context.Background(), req); err != nil {
		t.Fatalf("Thickness() = %v", err)
	}
	for x := range 8 {
		got := req.Out[x]
		if x < 4 {
			if math.Abs(got-1) > 1e-9 {
				t.Errorf("Out[%d] = %v, want 1", x, got)
			}
		} else if got != 0 {
			t.Errorf("Out[%d] = %v, want exactly 0 past the mesh", x, got)
		}
	}
}

func TestThicknessIterations(t *testing.T) {
	// Two unit cubes stacked along z with a gap: two entry/exit pairs
	// per ray. The iteration budget caps how many pairs contribute.
	tris := append(cubeTrisAt(0, 0, 0), cubeTrisAt(0, 0, 2)...)
	slices.SortStableFunc(tris, func(a, b [3][3]float64) int {
		return cmp.Compare(a[2][0], b[2][0])
	})
	v1, v2, v3 := marshalTris(tris)

	tests := []struct {
		name       string
		iterations int
		want       float64
	}{
		{"unbounded", 0, 2},
		{"single pair", 1, 1},
		{"budget above pairs", 5, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &ThicknessRequest{
				V1: v1, V2: v2, V3: v3, Triangles: len(tris),
				Out:       make([]float64, 1),
				RowStride: 1, Width: 1, Height: 1,
				PixelSize: 1, MaxDX: 1, MinZ: 0, Iterations: tt.iterations,
			}
			if err := (&CPU{}).Thickness(context.Background(), req); err != nil {
				t.Fatalf("Thickness() = %v", err)
			}
			if got := req.Out[0]; math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("thickness = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestThicknessCanceled(t *testing.T) {
	v1, v2, v3 := marshalTris(cubeTrisAt(0, 0, 0))
	req := &ThicknessRequest{
		V1: v1, V2: v2, V3: v3, Triangles: 12,
		Out:       make([]float64, 64*64),
		RowStride: 64, Width: 64, Height: 64,
		PixelSize: 0.02, MaxDX: 1, MinZ: 0, Iterations: 1,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := (&CPU{}).Thickness(ctx, req)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Thickness(canceled ctx) = %v, want context.Canceled", err)
	}
	var de *DispatchError
	if !errors.As(err, &de) {
		t.Fatalf("Thickness(canceled ctx) = %v, want *DispatchError", err)
	}
}

func TestSlicesUnitCube(t *testing.T) {
	v1, v2, v3 := marshalTris(cubeTrisAt(0, 0, 0))
	req := &SliceRequest{
		V1: v1, V2: v2, V3: v3, Triangles: 12,
		Out:   make([]uint8, 4*4*4),
		Width: 4, Height: 4, NumSlices: 4,
		PixelSize: 0.25, MinZ: 0,
	}
	if err := (&CPU{}).Slices(context.Background(), req); err != nil {
		t.Fatalf("Slices() = %v", err)
	}
	for i, got := range req.Out {
		if got != 1 {
			t.Errorf("Out[%d] = %d, want 1 (cube fills the sampled volume)", i, got)
		}
	}
}

func TestSlicesOutsideDepth(t *testing.T) {
	// Slices cut below z = 0 sample empty space; the cube occupies
	// [0, 1] in z only.
	v1, v2, v3 := marshalTris(cubeTrisAt(0, 0, 0))
	req := &SliceRequest{
		V1: v1, V2: v2, V3: v3, Triangles: 12,
		Out:   make([]uint8, 6*4*4),
		Width: 4, Height: 4, NumSlices: 6,
		PixelSize: 0.25, MinZ: -0.5,
	}
	if err := (&CPU{}).Slices(context.Background(), req); err != nil {
		t.Fatalf("Slices() = %v", err)
	}
	plane := 4 * 4
	for s := range 6 {
		want := uint8(0)
		if s >= 2 {
			want = 1
		}
		for i := range plane {
			if got := req.Out[s*plane+i]; got != want {
				t.Errorf("slice %d voxel %d = %d, want %d", s, i, got, want)
			}
		}
	}
}

func TestSlicesEmptyMesh(t *testing.T) {
	req := &SliceRequest{
		Out:   make([]uint8, 2*2*2),
		Width: 2, Height: 2, NumSlices: 2,
		PixelSize: 1,
	}
	if err := (&CPU{}).Slices(context.Background(), req); err != nil {
		t.Fatalf("Slices() = %v", err)
	}
	for i, got := range req.Out {
		if got != 0 {
			t.Errorf("Out[%d] = %d, want 0 for an empty mesh", i, got)
		}
	}
}

func TestRayTriangle(t *testing.T) {
	a := r3.Vec{X: 0, Y: 0, Z: 1}
	b := r3.Vec{X: 1, Y: 0, Z: 1}
	c := r3.Vec{X: 0, Y: 1, Z: 1}

	tests := []struct {
		name   string
		origin r3.Vec
		dir    r3.Vec
		wantT  float64
		wantOK bool
	}{
		{"interior hit", r3.Vec{X: 0.25, Y: 0.25, Z: 0}, rayZ, 1, true},
		{"outside barycentric", r3.Vec{X: 0.8, Y: 0.8, Z: 0}, rayZ, 0, false},
		{"edge hit accepted", r3.Vec{X: 0.5, Y: 0, Z: 0}, rayZ, 1, true},
		{"vertex hit accepted", r3.Vec{X: 0, Y: 0, Z: 0}, rayZ, 1, true},
		{"behind origin", r3.Vec{X: 0.25, Y: 0.25, Z: 2}, rayZ, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotT, gotOK := rayTriangle(tt.origin, tt.dir, a, b, c)
			if gotOK != tt.wantOK {
				t.Fatalf("ok = %v, want %v", gotOK, tt.wantOK)
			}
			if gotOK && math.Abs(gotT-tt.wantT) > 1e-9 {
				t.Errorf("t = %v, want %v", gotT, tt.wantT)
			}
		})
	}

	t.Run("edge-on plane rejected", func(t *testing.T) {
		// Triangle in the x = 0 plane is parallel to a +z ray.
		sa := r3.Vec{X: 0, Y: 0, Z: 0}
		sb := r3.Vec{X: 0, Y: 1, Z: 0}
		sc := r3.Vec{X: 0, Y: 1, Z: 1}
		if _, ok := rayTriangle(r3.Vec{X: 0, Y: 0.5, Z: -1}, rayZ, sa, sb, sc); ok {
			t.Error("edge-on triangle reported a crossing, want none")
		}
	})
}

func TestWeld(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"empty", nil, nil},
		{"single", []float64{2}, []float64{2}},
		{"distinct", []float64{3, 1, 2}, []float64{1, 2, 3}},
		{"duplicate pair", []float64{1, 1 + 1e-12, 3}, []float64{1, 3}},
		{"vertex cluster", []float64{1, 1, 1, 2}, []float64{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := weld(slices.Clone(tt.in))
			if !slices.Equal(got, tt.want) {
				t.Errorf("weld(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAccumulate(t *testing.T) {
	tests := []struct {
		name       string
		in         []float64
		iterations int
		want       float64
	}{
		{"no crossings", nil, 0, 0},
		{"single graze", []float64{1}, 0, 0},
		{"one span", []float64{1, 3}, 0, 2},
		{"two spans", []float64{0, 1, 2, 3}, 0, 2},
		{"budget one", []float64{0, 1, 2, 3}, 1, 1},
		{"trailing graze dropped", []float64{0, 1, 2}, 0, 1},
		{"welded duplicates", []float64{0, 0, 1}, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := accumulate(slices.Clone(tt.in), tt.iterations)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("accumulate(%v, %d) = %v, want %v", tt.in, tt.iterations, got, tt.want)
			}
		})
	}
}

func BenchmarkThickness(b *testing.B) {
	v1, v2, v3 := marshalTris(cubeTrisAt(0.5, 0.5, 0))
	req := &ThicknessRequest{
		V1: v1, V2: v2, V3: v3, Triangles: 12,
		Out:       make([]float64, 64*64),
		RowStride: 64, Width: 64, Height: 64,
		PixelSize: 2.0 / 64, MaxDX: 1, MinZ: 0, Iterations: 1,
	}
	cpu := &CPU{}
	ctx := context.Background()
	for b.Loop() {
		if err := cpu.Thickness(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSlices(b *testing.B) {
	v1, v2, v3 := marshalTris(cubeTrisAt(0, 0, 0))
	req := &SliceRequest{
		V1: v1, V2: v2, V3: v3, Triangles: 12,
		Out:   make([]uint8, 16*32*32),
		Width: 32, Height: 32, NumSlices: 16,
		PixelSize: 1.0 / 32, MinZ: 0,
	}
	cpu := &CPU{}
	ctx := context.Background()
	for b.Loop() {
		if err := cpu.Slices(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}
