// Package kernel defines the contract between the projection driver and
// the data-parallel intersection backends, keeps the backend registry,
// and ships the CPU reference compositor.
//
// A backend receives three per-slot vertex streams plus scalar ray
// parameters and fills a per-pixel accumulator. Device backends (OpenCL,
// WebGPU, ...) live in external modules and make themselves available by
// calling Register, typically from an init func behind a blank import.
// The CPU reference compositor is always registered and is the default.
//
// Crossing accumulation assumes watertight input: every ray entry is
// paired with an exit. Behavior on self-intersecting or non-manifold
// meshes is unspecified.
package kernel

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ThicknessRequest carries one thickness dispatch: vertex streams in
// kernel order, the output grid and the cropped pixel window to fill.
//
// Streams hold x, y, z, w quadruples, one per triangle, for vertex slots
// A (V1), B (V2) and C (V3). The driver guarantees kernel order:
// triangles ascending by the x of their third slot, which holds each
// triangle's largest x. MaxDX bounds how far a triangle's x extent can
// reach left of that representative, sizing the per-pixel search window.
type ThicknessRequest struct {
	V1, V2, V3 []float64
	Triangles  int

	// Out is the full detector grid, row-major with RowStride pixels per
	// row. The dispatch writes exactly the Width x Height window at
	// (OffsetX, OffsetY); everything else keeps its prior value.
	Out              []float64
	RowStride        int
	Width, Height    int
	OffsetX, OffsetY int

	// PixelSize is the pixel pitch of the first detector axis in
	// canonical units; PixelSizeY is the second axis, with zero meaning
	// square pixels. MinZ is the ray start hint, the minimum z over the
	// mesh.
	PixelSize  float64
	PixelSizeY float64
	MaxDX      float64
	MinZ       float64

	// Iterations bounds how many entry/exit pairs a pixel accumulates
	// before giving up; non-positive means unbounded.
	Iterations int
}

// SliceRequest carries one occupancy dispatch: the output is a stack of
// NumSlices binary planes of Height x Width bytes, slice-major, with
// slice s sampled at depth MinZ + (s+0.5)*PixelSize. There is no crop
// window; the full frame is dispatched at offset (0, 0).
//
// MaxDX is carried for backends that share the thickness scan; the
// streams are not required to be in kernel order here and the reference
// backend ignores the hint.
type SliceRequest struct {
	V1, V2, V3 []float64
	Triangles  int

	Out       []uint8
	Width     int
	Height    int
	NumSlices int

	// PixelSize is the pitch of the first detector axis and of the
	// depth step between slices; PixelSizeY is the second axis, with
	// zero meaning square pixels.
	PixelSize  float64
	PixelSizeY float64
	MaxDX      float64
	MinZ       float64
}

// Compositor is a parallel intersection backend. Both calls block until
// the whole dispatch completed; the output buffers are valid only after
// a nil return.
type Compositor interface {
	// Name identifies the backend ("cpu", "opencl", ...).
	Name() string

	// Thickness accumulates per-pixel path lengths through the mesh.
	Thickness(ctx context.Context, req *ThicknessRequest) error

	// Slices fills a depth stack of binary occupancy planes.
	Slices(ctx context.Context, req *SliceRequest) error
}

// DispatchError reports a failed kernel dispatch. The backend's own
// failure is wrapped and reachable through Unwrap.
type DispatchError struct {
	Backend string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("kernel: %s dispatch failed: %v", e.Backend, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

var (
	regMu    sync.RWMutex
	backends = make(map[string]Compositor)
	active   Compositor
)

// Register adds a backend to the registry, replacing any previous
// backend of the same name. The first registered backend becomes the
// default; later registrations must be selected explicitly with Use.
func Register(c Compositor) {
	if c == nil {
		panic("kernel: Register called with nil compositor")
	}
	regMu.Lock()
	defer regMu.Unlock()
	backends[c.Name()] = c
	if active == nil {
		active = c
	}
}

// Default returns the currently selected backend.
func Default() Compositor {
	regMu.RLock()
	defer regMu.RUnlock()
	return active
}

// Use selects the backend with the given name for subsequent dispatches.
func Use(name string) error {
	regMu.Lock()
	defer regMu.Unlock()
	c, ok := backends[name]
	if !ok {
		return fmt.Errorf("kernel: no backend named %q (have %v)", name, namesLocked())
	}
	active = c
	return nil
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// validateStreams checks the stream/count agreement shared by both
// request kinds.
func validateStreams(v1, v2, v3 []float64, triangles int) error {
	want := 4 * triangles
	if len(v1) != want || len(v2) != want || len(v3) != want {
		return fmt.Errorf("vertex streams have %d/%d/%d values, want %d for %d triangles",
			len(v1), len(v2), len(v3), want, triangles)
	}
	return nil
}
