package mesh

import (
	"time"

	"github.com/dzbwhut/syris/pkg/geom"
	"github.com/dzbwhut/syris/pkg/units"
)

// PoseSource supplies the rigid-body placement of a mesh at a simulation
// time, as a 4x4 affine transform whose translation is expressed in the
// requested length unit.
type PoseSource interface {
	TransformMatrix(at time.Duration, unit units.Unit) geom.Mat4
}

// FixedPose is a PoseSource holding one constant transform whose
// translation is expressed in canonical units.
type FixedPose geom.Mat4

// TransformMatrix returns the pose with its translation converted to unit.
func (p FixedPose) TransformMatrix(_ time.Duration, unit units.Unit) geom.Mat4 {
	m := geom.Mat4(p)
	t := m.Translation()
	m.SetTranslation(geom.V3(units.In(t.X, unit), units.In(t.Y, unit), units.In(t.Z, unit)))
	return m
}

// OriginPolicy selects the local origin the soup is recentered on at
// construction.
type OriginPolicy int

const (
	// OriginNone keeps the input coordinates as-is.
	OriginNone OriginPolicy = iota
	// OriginBBox recenters on the bounding-box center.
	OriginBBox
	// OriginGravity recenters on the center of gravity.
	OriginGravity
	// OriginPoint recenters on an explicit point; set via WithOriginPoint.
	OriginPoint
)

type config struct {
	unit        units.Unit
	origin      OriginPolicy
	originPoint geom.Vec3
	pose        PoseSource
	material    string
	iterations  int
}

// Option configures mesh construction.
type Option func(*config)

// WithUnit declares the length unit of the input coordinates. Default is
// the canonical unit.
func WithUnit(u units.Unit) Option {
	return func(c *config) { c.unit = u }
}

// WithOrigin selects the recentering policy applied at construction.
func WithOrigin(p OriginPolicy) Option {
	return func(c *config) { c.origin = p }
}

// WithOriginPoint recenters on an explicit point, given in the input unit.
func WithOriginPoint(pt geom.Vec3) Option {
	return func(c *config) {
		c.origin = OriginPoint
		c.originPoint = pt
	}
}

// WithPose attaches the rigid-body pose source queried by Transform.
func WithPose(p PoseSource) Option {
	return func(c *config) { c.pose = p }
}

// WithMaterial tags the mesh with a material name. The tag is carried,
// not interpreted; attenuation happens above this pipeline.
func WithMaterial(name string) Option {
	return func(c *config) { c.material = name }
}

// WithIterations bounds how many crossing pairs the kernel accumulates
// per pixel. One pair suffices for convex solids; folded or overlapping
// geometry needs more. Default 1.
func WithIterations(n int) Option {
	return func(c *config) { c.iterations = n }
}

// Mesh owns the rest-pose and working vertex buffers of one rigid body
// and drives the projection pipeline over them.
//
// The working buffer is mutated in place by Transform and Sort, and
// Project calls both; the working state thus carries over between calls.
// A Mesh is not safe for concurrent use.
type Mesh struct {
	rest    *Buffer
	current *Buffer

	pose       PoseSource
	material   string
	iterations int
	furthest   float64
}

// New builds a mesh from a triangle soup given as consecutive A, B, C
// vertices. Coordinates are converted to canonical units, the soup is
// optionally recentered per the origin policy, and the rest pose is
// frozen. Fails with *InvalidGeometryError unless the vertex count is a
// positive multiple of 3.
func New(triangles []geom.Vec3, opts ...Option) (*Mesh, error) {
	cfg := config{unit: units.Canonical, iterations: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	buf, err := NewBuffer(triangles)
	if err != nil {
		return nil, err
	}
	if f := cfg.unit.Factor(); f != 1 {
		for i := range buf.n {
			buf.x[i] *= f
			buf.y[i] *= f
			buf.z[i] *= f
		}
	}

	// The bounding radius is frozen from the original coordinates, before
	// any recentering.
	cog := buf.CenterOfGravity()
	var furthest float64
	for i := range buf.n {
		if d := buf.Vertex(i).Distance(cog); d > furthest {
			furthest = d
		}
	}

	switch cfg.origin {
	case OriginNone:
	case OriginBBox:
		buf.translate(buf.CenterOfBBox())
	case OriginGravity:
		buf.translate(cog)
	case OriginPoint:
		buf.translate(cfg.originPoint.Scale(cfg.unit.Factor()))
	}

	return &Mesh{
		rest:       buf.Clone(),
		current:    buf,
		pose:       cfg.pose,
		material:   cfg.material,
		iterations: cfg.iterations,
		furthest:   furthest,
	}, nil
}

// NumTriangles returns the triangle count.
func (m *Mesh) NumTriangles() int { return m.current.NumTriangles() }

// Material returns the material tag.
func (m *Mesh) Material() string { return m.material }

// Iterations returns the per-pixel crossing-pair budget handed to the
// kernel.
func (m *Mesh) Iterations() int { return m.iterations }

// FurthestPoint returns the distance from the original center of gravity
// to the most distant vertex, a bounding-radius hint frozen at
// construction.
func (m *Mesh) FurthestPoint() float64 { return m.furthest }

// Rest returns the rest-pose buffer. It is the transform source and must
// not be modified.
func (m *Mesh) Rest() *Buffer { return m.rest }

// Current returns the working buffer: the output of the last Transform,
// in kernel order after Sort.
func (m *Mesh) Current() *Buffer { return m.current }

// BoundingBox returns the axis-aligned bounds of the working buffer.
func (m *Mesh) BoundingBox() geom.AABB {
	e := m.current.Extrema()
	return geom.NewAABB(
		geom.V3(e.X.Min, e.Y.Min, e.Z.Min),
		geom.V3(e.X.Max, e.Y.Max, e.Z.Max),
	)
}

// Sort forwards to the working buffer's Sort.
func (m *Mesh) Sort() { m.current.Sort() }
