package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tensorgraph/dtype"
	"tensorgraph/shape"
)

// TestProperty_TopoSortIdempotentAfterPasses is universal property 1:
// after shape_infer, optimize, and data_malloc, topo_sort returns true
// without doing any reordering work (the graph is already sorted).
func TestProperty_TopoSortIdempotentAfterPasses(t *testing.T) {
	g := newTestGraph()
	a := g.AddTensor(shape.Shape{3, 4}, dtype.Float32)
	aT := g.AddTensor(shape.Shape{0, 0}, dtype.Float32)
	b := g.AddTensor(shape.Shape{3, 5}, dtype.Float32)
	c := g.AddTensor(shape.Shape{0, 0}, dtype.Float32)

	tr, err := NewTranspose(g, a, aT, []int{1, 0})
	require.NoError(t, err)
	g.AddOperatorAndConnect(tr)
	mm, err := NewMatMul(g, aT, b, c, false, false)
	require.NoError(t, err)
	g.AddOperatorAndConnect(mm)

	require.NoError(t, g.ShapeInfer())
	require.NoError(t, g.Optimize())
	require.NoError(t, g.DataMalloc())

	assert.True(t, g.Sorted())
	assert.True(t, g.TopoSort())
}

// TestProperty_CheckValidAfterMutations is universal property 2:
// check_valid holds after every public mutating operation.
func TestProperty_CheckValidAfterMutations(t *testing.T) {
	g := newTestGraph()
	a := g.AddTensor(shape.Shape{3, 4}, dtype.Float32)
	aT := g.AddTensor(shape.Shape{0, 0}, dtype.Float32)

	tr, err := NewTranspose(g, a, aT, []int{1, 0})
	require.NoError(t, err)
	g.AddOperatorAndConnect(tr)
	require.NoError(t, g.CheckValid())

	b := g.AddTensor(shape.Shape{3, 5}, dtype.Float32)
	c := g.AddTensor(shape.Shape{0, 0}, dtype.Float32)
	mm, err := NewMatMul(g, aT, b, c, false, false)
	require.NoError(t, err)
	g.AddOperatorAndConnect(mm)
	require.NoError(t, g.CheckValid())

	require.NoError(t, g.ShapeInfer())
	require.NoError(t, g.CheckValid())

	require.NoError(t, g.Optimize())
	require.NoError(t, g.CheckValid())

	require.NoError(t, g.DataMalloc())
	require.NoError(t, g.CheckValid())
}

// TestProperty_AllocatorNonOverlap is universal property 6: no two live
// allocations ever overlap.
func TestProperty_AllocatorNonOverlap(t *testing.T) {
	a := newTestAllocator()

	type live struct{ offset, size int }
	var liveSet []live

	sizes := []int{16, 24, 8, 40, 16}
	for i, s := range sizes {
		off, err := a.Alloc(s)
		require.NoError(t, err)
		liveSet = append(liveSet, live{off, s})
		if i%2 == 1 {
			require.NoError(t, a.Free(liveSet[0].offset, liveSet[0].size))
			liveSet = liveSet[1:]
		}
	}

	for i := 0; i < len(liveSet); i++ {
		for j := i + 1; j < len(liveSet); j++ {
			oi, oj := liveSet[i], liveSet[j]
			overlap := oi.offset < oj.offset+oj.size && oj.offset < oi.offset+oi.size
			assert.False(t, overlap, "live allocations %v and %v overlap", oi, oj)
		}
	}
}

// TestProperty_FreeListCanonicalForm is universal property 7: no two
// entries in the free list are adjacent, and no entry extends to peak.
// It checks the adjacency half: two adjacent frees below peak coalesce
// into a single entry.
func TestProperty_FreeListCanonicalForm(t *testing.T) {
	a := newTestAllocator()

	o1, err := a.Alloc(16)
	require.NoError(t, err)
	o2, err := a.Alloc(16)
	require.NoError(t, err)
	_, err = a.Alloc(16)
	require.NoError(t, err)

	require.NoError(t, a.Free(o1, 16))
	require.NoError(t, a.Free(o2, 16))

	assert.LessOrEqual(t, a.FreeBlockCount(), 1, "adjacent free blocks must coalesce into one")
}
