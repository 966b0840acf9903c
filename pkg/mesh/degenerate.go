package mesh

import (
	"math"

	"github.com/dzbwhut/syris/pkg/geom"
)

// degenerateIndices returns the indices of triangles whose normal is
// within toleranceDeg of perpendicular to the projection ray pulled into
// object space by the inverse of tf. Such triangles sit edge-on to the
// ray and make crossing accumulation numerically unstable.
func (m *Mesh) degenerateIndices(tf geom.Mat4, toleranceDeg float64) ([]int, error) {
	inv, err := tf.Inverse()
	if err != nil {
		return nil, &NonInvertibleTransformError{Matrix: tf}
	}
	ray := inv.MulVec4(geom.V4(0, 0, 1, 1)).Dehomogenize().Normalize()

	var indices []int
	for i, n := range m.current.Normals() {
		l := n.Len()
		if l == 0 {
			// Collapsed triangle, angle undefined.
			continue
		}
		cos := n.Dot(ray) / l
		cos = math.Max(-1, math.Min(1, cos))
		theta := math.Acos(cos) * 180 / math.Pi
		// Inclusive, so an exactly edge-on triangle is caught even with
		// a zero tolerance.
		if math.Abs(theta-90) <= toleranceDeg {
			indices = append(indices, i)
		}
	}
	return indices, nil
}

// DegenerateTriangles returns the vertices of every triangle nearly
// parallel to the projection ray under pose tf, transformed by tf.
// Three consecutive vertices per selected triangle. The operation is a
// read-only diagnostic; the working buffer is untouched.
func (m *Mesh) DegenerateTriangles(tf geom.Mat4, toleranceDeg float64) ([]geom.Vec3, error) {
	indices, err := m.degenerateIndices(tf, toleranceDeg)
	if err != nil {
		return nil, err
	}
	out := make([]geom.Vec3, 0, 3*len(indices))
	for _, t := range indices {
		for k := range 3 {
			out = append(out, tf.MulVec3(m.current.Vertex(3*t+k)))
		}
	}
	return out, nil
}

// DegenerateTrianglePixels is DegenerateTriangles reported in detector
// pixel indices: each selected vertex is mapped through the
// pixel-center rule round((c + 0.5*scale - offset) / scale) on x and y.
// scale and offset are (x, y) in canonical units.
func (m *Mesh) DegenerateTrianglePixels(tf geom.Mat4, toleranceDeg float64, scale, offset [2]float64) ([][2]int, error) {
	verts, err := m.DegenerateTriangles(tf, toleranceDeg)
	if err != nil {
		return nil, err
	}
	out := make([][2]int, len(verts))
	for i, v := range verts {
		out[i] = [2]int{
			int(math.Round((v.X + 0.5*scale[0] - offset[0]) / scale[0])),
			int(math.Round((v.Y + 0.5*scale[1] - offset[1]) / scale[1])),
		}
	}
	return out, nil
}
