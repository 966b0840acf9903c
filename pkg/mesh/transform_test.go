package mesh

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/dzbwhut/syris/pkg/geom"
	"github.com/dzbwhut/syris/pkg/units"
)

// spinPose rotates about z at a fixed angular rate, for exercising the
// pose time parameter.
type spinPose struct {
	rate float64 // radians per second
}

func (p spinPose) TransformMatrix(at time.Duration, _ units.Unit) geom.Mat4 {
	return geom.RotateZ(p.rate * at.Seconds())
}

func TestTransformNilPoseIsIdentity(t *testing.T) {
	m := mustMesh(t, twoTriangleSoup())
	m.Sort() // scramble the working layout first

	if err := m.Transform(0); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !slices.Equal(m.Current().Vertices(), m.Rest().Vertices()) {
		t.Errorf("identity transform did not restore rest order:\ncurrent %v\nrest    %v",
			m.Current().Vertices(), m.Rest().Vertices())
	}
}

func TestTransformAppliesInversePose(t *testing.T) {
	m := mustMesh(t, twoTriangleSoup(),
		WithPose(FixedPose(geom.Translate(geom.V3(10, 20, 30)))))
	if err := m.Transform(0); err != nil {
		t.Fatalf("Transform: %v", err)
	}

	shift := geom.V3(10, 20, 30)
	for i := range m.Rest().NumVertices() {
		want := m.Rest().Vertex(i).Sub(shift)
		if got := m.Current().Vertex(i); !vecNear(got, want) {
			t.Errorf("current Vertex(%d) = %v, want %v", i, got, want)
		}
	}

	// An affine pose keeps the homogeneous row at 1.
	v1, _, _ := m.Current().vertexStreams()
	if v1[3] != 1 {
		t.Errorf("w after transform = %g, want 1", v1[3])
	}
}

func TestTransformIsNotCumulative(t *testing.T) {
	m := mustMesh(t, twoTriangleSoup(), WithPose(spinPose{rate: math.Pi / 2}))

	if err := m.Transform(time.Second); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	first := m.Current().Vertices()
	if err := m.Transform(time.Second); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	second := m.Current().Vertices()

	if !slices.Equal(first, second) {
		t.Errorf("repeated transform at the same time drifted:\nfirst  %v\nsecond %v", first, second)
	}
}

func TestTransformRotation(t *testing.T) {
	soup := []geom.Vec3{geom.V3(1, 0, 0), geom.V3(0, 1, 0), geom.V3(0, 0, 1)}
	m := mustMesh(t, soup, WithPose(spinPose{rate: math.Pi / 2}))

	if err := m.Transform(time.Second); err != nil {
		t.Fatalf("Transform: %v", err)
	}

	// The inverse of a quarter turn about z maps x to -y.
	want := []geom.Vec3{geom.V3(0, -1, 0), geom.V3(1, 0, 0), geom.V3(0, 0, 1)}
	for i, w := range want {
		if got := m.Current().Vertex(i); !vecNear(got, w) {
			t.Errorf("current Vertex(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestTransformSingularPose(t *testing.T) {
	m := mustMesh(t, twoTriangleSoup(),
		WithPose(FixedPose(geom.Scale(geom.V3(0, 1, 1)))))
	before := m.Current().Vertices()

	err := m.Transform(0)
	var nie *NonInvertibleTransformError
	if !errors.As(err, &nie) {
		t.Fatalf("Transform with singular pose: got %v, want NonInvertibleTransformError", err)
	}
	if !errors.Is(err, geom.ErrSingular) {
		t.Errorf("error does not unwrap to geom.ErrSingular: %v", err)
	}
	if !slices.Equal(before, m.Current().Vertices()) {
		t.Error("failed transform mutated the working buffer")
	}
}

func TestTransformRoundTrip(t *testing.T) {
	pose := geom.Translate(geom.V3(3, -2, 1)).Mul(geom.RotateZ(math.Pi / 3))
	m := mustMesh(t, twoTriangleSoup(), WithPose(FixedPose(pose)))
	if err := m.Transform(0); err != nil {
		t.Fatalf("Transform: %v", err)
	}

	// Re-applying the pose to the transformed buffer must land back on
	// the rest vertices.
	for i := range m.Rest().NumVertices() {
		back := pose.MulVec3(m.Current().Vertex(i))
		if want := m.Rest().Vertex(i); back.Distance(want) > 1e-9 {
			t.Errorf("vertex %d round-trips to %v, want %v", i, back, want)
		}
	}
}

func TestTransformRefreshesExtrema(t *testing.T) {
	m := mustMesh(t, twoTriangleSoup(),
		WithPose(FixedPose(geom.Translate(geom.V3(1, 0, 0)))))
	m.Current().Extrema() // prime the memo

	if err := m.Transform(0); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if got, want := m.Current().Extrema().X, (Interval{Min: -1, Max: 1}); got != want {
		t.Errorf("Extrema().X after transform = %+v, want %+v", got, want)
	}
}
