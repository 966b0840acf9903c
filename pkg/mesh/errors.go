package mesh

import (
	"fmt"

	"github.com/dzbwhut/syris/pkg/geom"
)

// InvalidGeometryError reports a triangle soup whose vertex count cannot
// form whole triangles.
type InvalidGeometryError struct {
	Count int
}

func (e *InvalidGeometryError) Error() string {
	return fmt.Sprintf("mesh: vertex count %d is not a positive multiple of 3", e.Count)
}

// NonInvertibleTransformError reports a pose matrix that has no inverse.
// The projection is computed in the detector frame, so every pose must be
// invertible to pull the rest geometry into that frame.
type NonInvertibleTransformError struct {
	Matrix geom.Mat4
}

func (e *NonInvertibleTransformError) Error() string {
	return fmt.Sprintf("mesh: pose matrix is not invertible (det=%g)", e.Matrix.Determinant())
}

func (e *NonInvertibleTransformError) Unwrap() error { return geom.ErrSingular }

// MalformedMeshFileError reports a mesh file the loader could not parse.
// Line is 1-based; zero means the failure is not tied to a single line.
type MalformedMeshFileError struct {
	Line   int
	Reason string
}

func (e *MalformedMeshFileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("mesh: malformed mesh file at line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("mesh: malformed mesh file: %s", e.Reason)
}
