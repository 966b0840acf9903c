package mesh

import (
	"log/slog"
	"time"

	"github.com/dzbwhut/syris"
	"github.com/dzbwhut/syris/pkg/geom"
	"github.com/dzbwhut/syris/pkg/units"
)

// Transform pulls the rest-pose geometry into the detector frame: it
// fetches the pose at time at, inverts it and applies the inverse to
// every rest vertex, replacing the working buffer. The inversion is what
// expresses "the detector sees the body move forward" as a backward map
// of the geometry.
//
// Fails with *NonInvertibleTransformError when the pose is singular. A
// nil pose source means identity.
func (m *Mesh) Transform(at time.Duration) error {
	tm := geom.Identity()
	if m.pose != nil {
		tm = m.pose.TransformMatrix(at, units.Canonical)
	}
	inv, err := tm.Inverse()
	if err != nil {
		return &NonInvertibleTransformError{Matrix: tm}
	}

	r, c := m.rest, m.current
	for i := range r.n {
		x, y, z, w := r.x[i], r.y[i], r.z[i], r.w[i]
		c.x[i] = inv[0]*x + inv[4]*y + inv[8]*z + inv[12]*w
		c.y[i] = inv[1]*x + inv[5]*y + inv[9]*z + inv[13]*w
		c.z[i] = inv[2]*x + inv[6]*y + inv[10]*z + inv[14]*w
		c.w[i] = inv[3]*x + inv[7]*y + inv[11]*z + inv[15]*w
	}
	c.invalidate()

	syris.Logger().Debug("mesh transformed",
		slog.Duration("at", at),
		slog.Int("vertices", r.n))
	return nil
}
