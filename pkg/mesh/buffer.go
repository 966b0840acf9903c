// Package mesh implements the thickness-projection pipeline for rigid
// triangle meshes: a columnar homogeneous geometry buffer, the
// transform/sort stages that prepare it for the intersection kernel, a
// degenerate-triangle diagnostic, the projection driver and the mesh
// loaders.
//
// Meshes are assumed watertight. Thickness accumulation pairs surface
// crossings, so self-intersecting or non-manifold input produces
// unspecified per-pixel values; the pipeline does not attempt repair.
package mesh

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/dzbwhut/syris/pkg/geom"
)

// Interval is a closed scalar range.
type Interval struct {
	Min, Max float64
}

// Mid returns the midpoint of the interval.
func (i Interval) Mid() float64 { return (i.Min + i.Max) / 2 }

// Span returns the width of the interval.
func (i Interval) Span() float64 { return i.Max - i.Min }

// Extrema holds per-axis coordinate ranges.
type Extrema struct {
	X, Y, Z Interval
}

// Buffer is a columnar homogeneous vertex buffer: four rows (x, y, z, w)
// over n vertex columns, one backing array. Vertices are grouped in runs
// of three columns, one triangle per run, vertex order A, B, C. The w row
// is 1 for every vertex.
//
// Derived quantities that are expensive to recompute (extrema, normals)
// are memoized and invalidated whenever the coordinates change.
type Buffer struct {
	n          int
	x, y, z, w []float64

	memoExtrema *Extrema
	memoNormals []geom.Vec3
}

// newBuffer allocates an n-column buffer in one backing slice with the
// w row set to 1.
func newBuffer(n int) *Buffer {
	data := make([]float64, 4*n)
	b := &Buffer{
		n: n,
		x: data[0*n : 1*n],
		y: data[1*n : 2*n],
		z: data[2*n : 3*n],
		w: data[3*n : 4*n],
	}
	for i := range b.w {
		b.w[i] = 1
	}
	return b
}

// NewBuffer builds a buffer from a triangle soup given as consecutive
// A, B, C vertices. The vertex count must be a positive multiple of 3.
func NewBuffer(triangles []geom.Vec3) (*Buffer, error) {
	if len(triangles) == 0 || len(triangles)%3 != 0 {
		return nil, &InvalidGeometryError{Count: len(triangles)}
	}
	b := newBuffer(len(triangles))
	for i, v := range triangles {
		b.x[i] = v.X
		b.y[i] = v.Y
		b.z[i] = v.Z
	}
	return b, nil
}

// Clone returns a deep copy of the buffer. Memoized values are not
// carried over.
func (b *Buffer) Clone() *Buffer {
	c := newBuffer(b.n)
	copy(c.x, b.x)
	copy(c.y, b.y)
	copy(c.z, b.z)
	copy(c.w, b.w)
	return c
}

// invalidate drops all memoized derived quantities. Every mutation of the
// coordinate rows must call it.
func (b *Buffer) invalidate() {
	b.memoExtrema = nil
	b.memoNormals = nil
}

// NumVertices returns the number of vertex columns.
func (b *Buffer) NumVertices() int { return b.n }

// NumTriangles returns the number of triangles.
func (b *Buffer) NumTriangles() int { return b.n / 3 }

// Vertex returns the spatial coordinates of vertex column i.
func (b *Buffer) Vertex(i int) geom.Vec3 {
	return geom.Vec3{X: b.x[i], Y: b.y[i], Z: b.z[i]}
}

// Triangle returns the three vertices of triangle t.
func (b *Buffer) Triangle(t int) [3]geom.Vec3 {
	i := 3 * t
	return [3]geom.Vec3{b.Vertex(i), b.Vertex(i + 1), b.Vertex(i + 2)}
}

// Vertices returns the soup as a flat vertex slice, A, B, C per triangle.
func (b *Buffer) Vertices() []geom.Vec3 {
	out := make([]geom.Vec3, b.n)
	for i := range out {
		out[i] = b.Vertex(i)
	}
	return out
}

// Extrema returns the per-axis min/max over all vertices. The result is
// memoized until the buffer changes.
func (b *Buffer) Extrema() Extrema {
	if b.memoExtrema == nil {
		e := Extrema{
			X: Interval{Min: floats.Min(b.x), Max: floats.Max(b.x)},
			Y: Interval{Min: floats.Min(b.y), Max: floats.Max(b.y)},
			Z: Interval{Min: floats.Min(b.z), Max: floats.Max(b.z)},
		}
		b.memoExtrema = &e
	}
	return *b.memoExtrema
}

// CenterOfGravity returns the per-axis mean of all vertices.
func (b *Buffer) CenterOfGravity() geom.Vec3 {
	return geom.Vec3{
		X: stat.Mean(b.x, nil),
		Y: stat.Mean(b.y, nil),
		Z: stat.Mean(b.z, nil),
	}
}

// CenterOfBBox returns the midpoint of the per-axis extrema.
func (b *Buffer) CenterOfBBox() geom.Vec3 {
	e := b.Extrema()
	return geom.Vec3{X: e.X.Mid(), Y: e.Y.Mid(), Z: e.Z.Mid()}
}

// Diff returns, per axis, the min/max of the non-zero absolute
// differences between consecutive vertex coordinates. Zero deltas from
// axis-aligned duplicate vertices are excluded; an axis with no non-zero
// delta reports a zero interval.
func (b *Buffer) Diff() Extrema {
	return Extrema{
		X: nonZeroDiffRange(b.x),
		Y: nonZeroDiffRange(b.y),
		Z: nonZeroDiffRange(b.z),
	}
}

func nonZeroDiffRange(row []float64) Interval {
	var iv Interval
	seen := false
	for i := 1; i < len(row); i++ {
		d := math.Abs(row[i] - row[i-1])
		if d == 0 {
			continue
		}
		if !seen {
			iv = Interval{Min: d, Max: d}
			seen = true
			continue
		}
		if d < iv.Min {
			iv.Min = d
		}
		if d > iv.Max {
			iv.Max = d
		}
	}
	return iv
}

// Vectors returns the per-triangle edge vectors (B-A, C-A).
func (b *Buffer) Vectors() (e1, e2 []geom.Vec3) {
	nt := b.NumTriangles()
	e1 = make([]geom.Vec3, nt)
	e2 = make([]geom.Vec3, nt)
	for t := range nt {
		a := b.Vertex(3 * t)
		e1[t] = b.Vertex(3*t + 1).Sub(a)
		e2[t] = b.Vertex(3*t + 2).Sub(a)
	}
	return e1, e2
}

// Normals returns the unnormalized per-triangle normals (B-A) x (C-A).
// The slice is memoized and shared; callers must not modify it.
func (b *Buffer) Normals() []geom.Vec3 {
	if b.memoNormals == nil {
		e1, e2 := b.Vectors()
		normals := make([]geom.Vec3, len(e1))
		for i := range normals {
			normals[i] = e1[i].Cross(e2[i])
		}
		b.memoNormals = normals
	}
	return b.memoNormals
}

// Areas returns the per-triangle areas, half the normal magnitudes.
func (b *Buffer) Areas() []float64 {
	normals := b.Normals()
	areas := make([]float64, len(normals))
	for i, n := range normals {
		areas[i] = n.Len() / 2
	}
	return areas
}

// MaxTriangleXDiff returns the largest absolute x-difference between any
// two vertices of one triangle, over all triangles. The projection driver
// passes it to the kernel as a conservative per-pixel search window: a
// sorted triangle whose representative x is further than this from a
// pixel column cannot cover it.
func (b *Buffer) MaxTriangleXDiff() float64 {
	var maxd float64
	for t := range b.NumTriangles() {
		i := 3 * t
		x0, x1, x2 := b.x[i], b.x[i+1], b.x[i+2]
		d := math.Abs(x1 - x0)
		if d2 := math.Abs(x2 - x1); d2 > d {
			d = d2
		}
		if d3 := math.Abs(x2 - x0); d3 > d {
			d = d3
		}
		if d > maxd {
			maxd = d
		}
	}
	return maxd
}

// translate shifts every vertex by -origin, leaving the w row untouched.
func (b *Buffer) translate(origin geom.Vec3) {
	for i := range b.n {
		b.x[i] -= origin.X
		b.y[i] -= origin.Y
		b.z[i] -= origin.Z
	}
	b.invalidate()
}

// swapColumns exchanges two vertex columns.
func (b *Buffer) swapColumns(i, j int) {
	b.x[i], b.x[j] = b.x[j], b.x[i]
	b.y[i], b.y[j] = b.y[j], b.y[i]
	b.z[i], b.z[j] = b.z[j], b.z[i]
	b.w[i], b.w[j] = b.w[j], b.w[i]
}

// vertexStreams marshals the buffer into the three per-slot streams the
// kernel consumes: stream k holds vertex slot k of every triangle as
// consecutive x, y, z, w quadruples.
func (b *Buffer) vertexStreams() (v1, v2, v3 []float64) {
	nt := b.NumTriangles()
	v1 = make([]float64, 4*nt)
	v2 = make([]float64, 4*nt)
	v3 = make([]float64, 4*nt)
	for t := range nt {
		for k, dst := range [3][]float64{v1, v2, v3} {
			col := 3*t + k
			dst[4*t+0] = b.x[col]
			dst[4*t+1] = b.y[col]
			dst[4*t+2] = b.z[col]
			dst[4*t+3] = b.w[col]
		}
	}
	return v1, v2, v3
}
