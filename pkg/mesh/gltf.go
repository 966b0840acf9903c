package mesh

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/qmuntal/gltf"

	"github.com/dzbwhut/syris/pkg/geom"
)

// LoadGLTF reads triangle geometry from a .gltf or .glb file and
// returns it as a triangle soup in primitive order. Only POSITION
// attributes and indices are consumed; normals, materials, skins, and
// animations are ignored. Embedded GLB buffers, data URIs, and external
// buffer files next to the document all work.
func LoadGLTF(path string) ([]geom.Vec3, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}

	var soup []geom.Vec3
	for _, m := range doc.Meshes {
		for _, prim := range m.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles && prim.Mode != 0 {
				continue
			}
			posIdx, ok := prim.Attributes[gltf.POSITION]
			if !ok {
				continue
			}
			positions, err := gltfPositions(doc, posIdx)
			if err != nil {
				return nil, fmt.Errorf("mesh %q: %w", m.Name, err)
			}

			if prim.Indices == nil {
				// Sequential triangles; drop a ragged tail.
				soup = append(soup, positions[:len(positions)-len(positions)%3]...)
				continue
			}
			indices, err := gltfIndices(doc, *prim.Indices)
			if err != nil {
				return nil, fmt.Errorf("mesh %q: %w", m.Name, err)
			}
			for _, idx := range indices[:len(indices)-len(indices)%3] {
				if idx >= len(positions) {
					return nil, fmt.Errorf("mesh %q: index %d out of range (%d positions)",
						m.Name, idx, len(positions))
				}
				soup = append(soup, positions[idx])
			}
		}
	}
	if len(soup) == 0 {
		return nil, &MalformedMeshFileError{Reason: "no triangle geometry"}
	}
	return soup, nil
}

func gltfPositions(doc *gltf.Document, idx int) ([]geom.Vec3, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	acc := doc.Accessors[idx]
	if acc.Type != gltf.AccessorVec3 || acc.ComponentType != gltf.ComponentFloat {
		return nil, fmt.Errorf("POSITION accessor is %v/%v, want VEC3 of floats",
			acc.Type, acc.ComponentType)
	}
	data, stride, err := accessorBytes(doc, acc, 12)
	if err != nil {
		return nil, err
	}
	out := make([]geom.Vec3, acc.Count)
	for i := range acc.Count {
		off := i * stride
		out[i] = geom.V3(
			float64(leFloat32(data[off:])),
			float64(leFloat32(data[off+4:])),
			float64(leFloat32(data[off+8:])),
		)
	}
	return out, nil
}

func gltfIndices(doc *gltf.Document, idx int) ([]int, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	acc := doc.Accessors[idx]
	if acc.Type != gltf.AccessorScalar {
		return nil, fmt.Errorf("index accessor is %v, want SCALAR", acc.Type)
	}
	var size int
	switch acc.ComponentType {
	case gltf.ComponentUbyte:
		size = 1
	case gltf.ComponentUshort:
		size = 2
	case gltf.ComponentUint:
		size = 4
	default:
		return nil, fmt.Errorf("unsupported index component type %v", acc.ComponentType)
	}
	data, stride, err := accessorBytes(doc, acc, size)
	if err != nil {
		return nil, err
	}
	out := make([]int, acc.Count)
	for i := range acc.Count {
		off := i * stride
		switch size {
		case 1:
			out[i] = int(data[off])
		case 2:
			out[i] = int(binary.LittleEndian.Uint16(data[off:]))
		case 4:
			out[i] = int(binary.LittleEndian.Uint32(data[off:]))
		}
	}
	return out, nil
}

// accessorBytes resolves an accessor to its backing bytes and effective
// stride. elemSize is the tightly packed element width, used when the
// buffer view carries no explicit stride.
func accessorBytes(doc *gltf.Document, acc *gltf.Accessor, elemSize int) ([]byte, int, error) {
	if acc.BufferView == nil {
		return nil, 0, fmt.Errorf("accessor has no buffer view")
	}
	if *acc.BufferView >= len(doc.BufferViews) {
		return nil, 0, fmt.Errorf("buffer view %d out of range", *acc.BufferView)
	}
	view := doc.BufferViews[*acc.BufferView]
	if view.Buffer >= len(doc.Buffers) {
		return nil, 0, fmt.Errorf("buffer %d out of range", view.Buffer)
	}
	buf := doc.Buffers[view.Buffer]
	if len(buf.Data) == 0 {
		return nil, 0, fmt.Errorf("buffer %d has no data", view.Buffer)
	}

	stride := view.ByteStride
	if stride == 0 {
		stride = elemSize
	}
	start := view.ByteOffset + acc.ByteOffset
	need := start
	if acc.Count > 0 {
		need = start + (acc.Count-1)*stride + elemSize
	}
	if need > len(buf.Data) {
		return nil, 0, fmt.Errorf("accessor needs %d bytes, buffer has %d", need, len(buf.Data))
	}
	return buf.Data[start:], stride, nil
}

func leFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
