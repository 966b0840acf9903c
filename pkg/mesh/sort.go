package mesh

import (
	"cmp"
	"slices"
)

// Sort reorders the buffer into the layout the intersection kernel scans:
// within every triangle the vertex with the greatest x-coordinate is
// swapped into the third slot, then whole triangles are ordered by that
// representative x, ascending. Scanning triangles left to right, the
// kernel can stop as soon as a representative x exceeds the pixel
// column's search window.
//
// Only ordering changes; the multisets of vertices and triangle areas are
// preserved. The relative order of the two non-representative vertices
// and of triangles with equal representative x is unspecified.
func (b *Buffer) Sort() {
	nt := b.NumTriangles()

	for t := range nt {
		base := 3 * t
		k := base
		if b.x[base+1] > b.x[k] {
			k = base + 1
		}
		if b.x[base+2] > b.x[k] {
			k = base + 2
		}
		if k != base+2 {
			b.swapColumns(k, base+2)
		}
	}

	order := make([]int, nt)
	for i := range order {
		order[i] = i
	}
	// Stable so that re-sorting an already sorted buffer is a no-op even
	// with ties.
	slices.SortStableFunc(order, func(a, c int) int {
		return cmp.Compare(b.x[3*a+2], b.x[3*c+2])
	})

	b.permuteTriangles(order)
	b.invalidate()
}

// permuteTriangles rewrites the buffer so that output triangle i is input
// triangle order[i].
func (b *Buffer) permuteTriangles(order []int) {
	src := b.Clone()
	for i, t := range order {
		for k := range 3 {
			dst := 3*i + k
			col := 3*t + k
			b.x[dst] = src.x[col]
			b.y[dst] = src.y[col]
			b.z[dst] = src.z[col]
			b.w[dst] = src.w[col]
		}
	}
}
