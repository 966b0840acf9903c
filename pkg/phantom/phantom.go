// Package phantom builds procedural triangle soups: analytic boxes with
// exact triangle counts, and polygonized signed-distance solids for
// rounder calibration shapes.
package phantom

import (
	"fmt"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/dzbwhut/syris/pkg/geom"
)

// DefaultCells is the marching cubes resolution used when a caller
// passes a non-positive cell count.
const DefaultCells = 128

// Cube returns the twelve triangles of an axis-aligned cube with the
// given edge length, centered at the origin.
func Cube(edge float64) ([]geom.Vec3, error) {
	return Box(edge, edge, edge)
}

// Box returns the twelve triangles of an axis-aligned box with the
// given side lengths, centered at the origin. Winding is
// counter-clockwise seen from outside.
func Box(x, y, z float64) ([]geom.Vec3, error) {
	if x <= 0 || y <= 0 || z <= 0 {
		return nil, fmt.Errorf("phantom: box sides %v x %v x %v, want positive", x, y, z)
	}
	hx, hy, hz := x/2, y/2, z/2
	quads := [6][4]geom.Vec3{
		{geom.V3(-hx, -hy, hz), geom.V3(hx, -hy, hz), geom.V3(hx, hy, hz), geom.V3(-hx, hy, hz)},
		{geom.V3(-hx, -hy, -hz), geom.V3(-hx, hy, -hz), geom.V3(hx, hy, -hz), geom.V3(hx, -hy, -hz)},
		{geom.V3(hx, -hy, -hz), geom.V3(hx, hy, -hz), geom.V3(hx, hy, hz), geom.V3(hx, -hy, hz)},
		{geom.V3(-hx, -hy, -hz), geom.V3(-hx, -hy, hz), geom.V3(-hx, hy, hz), geom.V3(-hx, hy, -hz)},
		{geom.V3(-hx, hy, -hz), geom.V3(-hx, hy, hz), geom.V3(hx, hy, hz), geom.V3(hx, hy, -hz)},
		{geom.V3(-hx, -hy, -hz), geom.V3(hx, -hy, -hz), geom.V3(hx, -hy, hz), geom.V3(-hx, -hy, hz)},
	}
	tris := make([]geom.Vec3, 0, 36)
	for _, q := range quads {
		tris = append(tris, q[0], q[1], q[2], q[0], q[2], q[3])
	}
	return tris, nil
}

// Sphere approximates a sphere of the given radius, polygonized with
// uniform marching cubes at the given cell resolution.
func Sphere(radius float64, cells int) ([]geom.Vec3, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("phantom: sphere radius %v, want > 0", radius)
	}
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, fmt.Errorf("phantom: sphere: %w", err)
	}
	return polygonize(s, cells)
}

// Cylinder approximates a z-aligned cylinder of the given height and
// radius, centered at the origin, polygonized with uniform marching
// cubes at the given cell resolution.
func Cylinder(height, radius float64, cells int) ([]geom.Vec3, error) {
	if height <= 0 || radius <= 0 {
		return nil, fmt.Errorf("phantom: cylinder height %v radius %v, want positive", height, radius)
	}
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		return nil, fmt.Errorf("phantom: cylinder: %w", err)
	}
	return polygonize(s, cells)
}

// Tumor returns a sphere intersected with a box, a lumpy test solid
// with both smooth and flat regions.
func Tumor(radius float64, cells int) ([]geom.Vec3, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("phantom: tumor radius %v, want > 0", radius)
	}
	ball, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, fmt.Errorf("phantom: tumor: %w", err)
	}
	slab, err := sdf.Box3D(v3.Vec{X: 2 * radius, Y: 2 * radius, Z: 1.2 * radius}, 0)
	if err != nil {
		return nil, fmt.Errorf("phantom: tumor: %w", err)
	}
	return polygonize(sdf.Intersect3D(ball, slab), cells)
}

func polygonize(s sdf.SDF3, cells int) ([]geom.Vec3, error) {
	if cells <= 0 {
		cells = DefaultCells
	}
	renderer := render.NewMarchingCubesUniform(cells)
	tris := render.ToTriangles(s, renderer)
	if len(tris) == 0 {
		return nil, fmt.Errorf("phantom: polygonization produced no triangles")
	}
	out := make([]geom.Vec3, 0, 3*len(tris))
	for _, tri := range tris {
		for j := range 3 {
			out = append(out, geom.V3(tri[j].X, tri[j].Y, tri[j].Z))
		}
	}
	return out, nil
}
