// Package syris computes thickness projections of rigid triangle meshes
// for X-ray image-formation simulation.
//
// A mesh is loaded (or generated) as a triangle soup, held in a columnar
// homogeneous buffer, posed by an affine transform, sorted into a layout
// the intersection kernel can prune efficiently, and projected along the
// beam axis onto a virtual detector grid. Each detector pixel receives the
// accumulated path length of a parallel ray through the solid, or, in
// slice mode, a stack of binary occupancy planes.
//
// The sub-packages split the pipeline:
//
//   - pkg/mesh:       geometry buffer, transform/sort/project pipeline, loaders
//   - pkg/kernel:     intersection kernel contract, backend registry, CPU reference
//   - pkg/geom:       vectors, homogeneous 4x4 transforms, bounding boxes
//   - pkg/units:      canonical length unit conversion
//   - pkg/phantom:    procedural test solids
//   - pkg/radiograph: projection outputs and image encoders
//   - pkg/display:    terminal preview of a projection
//
// This root package only carries the shared logger; see SetLogger.
package syris
