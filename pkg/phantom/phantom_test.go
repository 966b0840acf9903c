package phantom

import (
	"math"
	"testing"

	"github.com/dzbwhut/syris/pkg/geom"
)

func extentOf(tris []geom.Vec3) (lo, hi geom.Vec3) {
	lo, hi = tris[0], tris[0]
	for _, v := range tris[1:] {
		lo = lo.Min(v)
		hi = hi.Max(v)
	}
	return lo, hi
}

func totalArea(tris []geom.Vec3) float64 {
	var sum float64
	for i := 0; i+2 < len(tris); i += 3 {
		e1 := tris[i+1].Sub(tris[i])
		e2 := tris[i+2].Sub(tris[i])
		sum += e1.Cross(e2).Len() / 2
	}
	return sum
}

func TestCube(t *testing.T) {
	tris, err := Cube(2)
	if err != nil {
		t.Fatalf("Cube(2) = %v", err)
	}
	if len(tris) != 36 {
		t.Fatalf("Cube(2) has %d vertices, want 36", len(tris))
	}

	lo, hi := extentOf(tris)
	want := geom.V3(1, 1, 1)
	if lo != want.Negate() || hi != want {
		t.Errorf("extent = [%v, %v], want [-1..1] per axis", lo, hi)
	}

	// Six faces of area 4 each.
	if got := totalArea(tris); math.Abs(got-24) > 1e-9 {
		t.Errorf("surface area = %v, want 24", got)
	}
}

func TestCubeWatertight(t *testing.T) {
	tris, err := Cube(1)
	if err != nil {
		t.Fatalf("Cube(1) = %v", err)
	}

	// Every undirected edge of a closed soup is shared by exactly two
	// triangles. Analytic corners are exact, so float keys are safe.
	type edge [2]geom.Vec3
	counts := make(map[edge]int)
	less := func(a, b geom.Vec3) bool {
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	}
	for i := 0; i+2 < len(tris); i += 3 {
		for j := range 3 {
			a, b := tris[i+j], tris[i+(j+1)%3]
			if less(b, a) {
				a, b = b, a
			}
			counts[edge{a, b}]++
		}
	}
	if len(counts) != 18 {
		t.Errorf("cube has %d distinct edges, want 18", len(counts))
	}
	for e, n := range counts {
		if n != 2 {
			t.Errorf("edge %v shared by %d triangles, want 2", e, n)
		}
	}
}

func TestBox(t *testing.T) {
	tris, err := Box(1, 2, 3)
	if err != nil {
		t.Fatalf("Box(1, 2, 3) = %v", err)
	}
	if len(tris) != 36 {
		t.Fatalf("Box has %d vertices, want 36", len(tris))
	}
	lo, hi := extentOf(tris)
	want := geom.V3(0.5, 1, 1.5)
	if lo != want.Negate() || hi != want {
		t.Errorf("extent = [%v, %v], want [-0.5..0.5, -1..1, -1.5..1.5]", lo, hi)
	}
	// 2*(1*2 + 2*3 + 1*3) = 22.
	if got := totalArea(tris); math.Abs(got-22) > 1e-9 {
		t.Errorf("surface area = %v, want 22", got)
	}
}

func TestSphere(t *testing.T) {
	tris, err := Sphere(1, 24)
	if err != nil {
		t.Fatalf("Sphere(1, 24) = %v", err)
	}
	if len(tris) == 0 || len(tris)%3 != 0 {
		t.Fatalf("Sphere produced %d vertices, want a positive multiple of 3", len(tris))
	}

	// Vertices sit near the unit sphere, within the marching cubes cell
	// resolution, and the solid is roughly centered.
	var centroid geom.Vec3
	for _, v := range tris {
		r := v.Len()
		if r < 0.7 || r > 1.3 {
			t.Fatalf("vertex %v at radius %v, want near 1", v, r)
		}
		centroid = centroid.Add(v)
	}
	centroid = centroid.Scale(1 / float64(len(tris)))
	if centroid.Len() > 0.1 {
		t.Errorf("centroid = %v, want near the origin", centroid)
	}
}

func TestCylinder(t *testing.T) {
	tris, err := Cylinder(2, 0.5, 24)
	if err != nil {
		t.Fatalf("Cylinder(2, 0.5, 24) = %v", err)
	}
	if len(tris) == 0 || len(tris)%3 != 0 {
		t.Fatalf("Cylinder produced %d vertices, want a positive multiple of 3", len(tris))
	}
	for _, v := range tris {
		if math.Abs(v.Z) > 1.2 {
			t.Fatalf("vertex %v beyond the cylinder height", v)
		}
		if math.Hypot(v.X, v.Y) > 0.7 {
			t.Fatalf("vertex %v beyond the cylinder radius", v)
		}
	}
}

func TestTumor(t *testing.T) {
	tris, err := Tumor(1, 24)
	if err != nil {
		t.Fatalf("Tumor(1, 24) = %v", err)
	}
	if len(tris) == 0 || len(tris)%3 != 0 {
		t.Fatalf("Tumor produced %d vertices, want a positive multiple of 3", len(tris))
	}
	// The box intersection flattens the solid to |z| <= 0.6 plus one
	// marching cubes cell of slack.
	for _, v := range tris {
		if math.Abs(v.Z) > 0.75 {
			t.Fatalf("vertex %v beyond the flattened extent", v)
		}
	}
}

func TestInvalidDimensions(t *testing.T) {
	tests := []struct {
		name string
		make func() ([]geom.Vec3, error)
	}{
		{"zero cube", func() ([]geom.Vec3, error) { return Cube(0) }},
		{"negative box side", func() ([]geom.Vec3, error) { return Box(-1, 1, 1) }},
		{"negative sphere radius", func() ([]geom.Vec3, error) { return Sphere(-1, 16) }},
		{"flat cylinder", func() ([]geom.Vec3, error) { return Cylinder(0, 1, 16) }},
		{"zero tumor", func() ([]geom.Vec3, error) { return Tumor(0, 16) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.make(); err == nil {
				t.Error("got nil error, want a dimension error")
			}
		})
	}
}
