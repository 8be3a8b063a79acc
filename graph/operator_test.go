package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tensorgraph/dtype"
	"tensorgraph/runtime"
	"tensorgraph/shape"
	"tensorgraph/tgerr"
)

func newTestGraph() *Graph {
	return NewGraph(runtime.NewDefaultRuntime("test"))
}

// TestMatMul_S2 is scenario S2: batched matmul with broadcast over the
// leading batch dimension.
func TestMatMul_S2(t *testing.T) {
	g := newTestGraph()
	a := g.AddTensor(shape.Shape{2, 3, 4}, dtype.Float32)
	b := g.AddTensor(shape.Shape{1, 4, 5}, dtype.Float32)
	c := g.AddTensor(shape.Shape{0, 0, 0}, dtype.Float32)

	mm, err := NewMatMul(g, a, b, c, false, false)
	require.NoError(t, err)

	shapes, err := mm.InferShape()
	require.NoError(t, err)
	require.Len(t, shapes, 1)
	assert.Equal(t, shape.Shape{2, 3, 5}, shapes[0])
	assert.Equal(t, 3, mm.M)
	assert.Equal(t, 5, mm.N)
	assert.Equal(t, 4, mm.K)
}

func TestMatMul_TransposedOperands(t *testing.T) {
	g := newTestGraph()
	a := g.AddTensor(shape.Shape{4, 3}, dtype.Float32)
	b := g.AddTensor(shape.Shape{5, 4}, dtype.Float32)
	c := g.AddTensor(shape.Shape{0, 0}, dtype.Float32)

	mm, err := NewMatMul(g, a, b, c, true, true)
	require.NoError(t, err)

	shapes, err := mm.InferShape()
	require.NoError(t, err)
	assert.Equal(t, shape.Shape{3, 5}, shapes[0])
}

func TestMatMul_KMismatch(t *testing.T) {
	g := newTestGraph()
	a := g.AddTensor(shape.Shape{3, 4}, dtype.Float32)
	b := g.AddTensor(shape.Shape{5, 5}, dtype.Float32)
	c := g.AddTensor(shape.Shape{0, 0}, dtype.Float32)

	mm, err := NewMatMul(g, a, b, c, false, false)
	require.NoError(t, err)

	_, err = mm.InferShape()
	require.Error(t, err)
	assert.True(t, errors.Is(err, tgerr.Sentinel(tgerr.ShapeMismatch)))
}

// TestConcat_S3 is scenario S3: concat three tensors along axis -1.
func TestConcat_S3(t *testing.T) {
	g := newTestGraph()
	a := g.AddTensor(shape.Shape{2, 3}, dtype.Float32)
	b := g.AddTensor(shape.Shape{2, 4}, dtype.Float32)
	c := g.AddTensor(shape.Shape{2, 5}, dtype.Float32)
	out := g.AddTensor(shape.Shape{0, 0}, dtype.Float32)

	cat, err := NewConcat(g, []*Tensor{a, b, c}, out, -1)
	require.NoError(t, err)

	shapes, err := cat.InferShape()
	require.NoError(t, err)
	assert.Equal(t, shape.Shape{2, 12}, shapes[0])
}

func TestConcat_AxisMismatch(t *testing.T) {
	g := newTestGraph()
	a := g.AddTensor(shape.Shape{2, 3}, dtype.Float32)
	b := g.AddTensor(shape.Shape{3, 3}, dtype.Float32)
	out := g.AddTensor(shape.Shape{0, 0}, dtype.Float32)

	cat, err := NewConcat(g, []*Tensor{a, b}, out, 1)
	require.NoError(t, err)

	_, err = cat.InferShape()
	require.Error(t, err)
	assert.True(t, errors.Is(err, tgerr.Sentinel(tgerr.ShapeMismatch)))
}

// TestTranspose_Involution checks that transposing twice with mutually
// inverse permutes restores the original shape — the property the
// optimizer's inverse-elimination rule relies on.
func TestTranspose_Involution(t *testing.T) {
	g := newTestGraph()
	in := g.AddTensor(shape.Shape{2, 3, 4}, dtype.Float32)
	mid := g.AddTensor(shape.Shape{0, 0, 0}, dtype.Float32)
	out := g.AddTensor(shape.Shape{0, 0, 0}, dtype.Float32)

	t1, err := NewTranspose(g, in, mid, []int{2, 0, 1})
	require.NoError(t, err)
	shapes, err := t1.InferShape()
	require.NoError(t, err)
	require.NoError(t, mid.SetShape(shapes[0]))

	t2, err := NewTranspose(g, mid, out, []int{1, 2, 0})
	require.NoError(t, err)
	shapes, err = t2.InferShape()
	require.NoError(t, err)

	assert.Equal(t, shape.Shape{2, 3, 4}, shapes[0])
	assert.True(t, isInversePermute(t1.EffectivePermute(), t2.EffectivePermute()))
}

func TestTranspose_DefaultFullReverse(t *testing.T) {
	g := newTestGraph()
	in := g.AddTensor(shape.Shape{2, 3, 4}, dtype.Float32)
	out := g.AddTensor(shape.Shape{0, 0, 0}, dtype.Float32)

	tr, err := NewTranspose(g, in, out, nil)
	require.NoError(t, err)

	shapes, err := tr.InferShape()
	require.NoError(t, err)
	assert.Equal(t, shape.Shape{4, 3, 2}, shapes[0])
}

func TestTranspose_InvalidPermute(t *testing.T) {
	g := newTestGraph()
	in := g.AddTensor(shape.Shape{2, 3}, dtype.Float32)
	out := g.AddTensor(shape.Shape{0, 0}, dtype.Float32)

	tr, err := NewTranspose(g, in, out, []int{0, 0})
	require.NoError(t, err)

	_, err = tr.InferShape()
	require.Error(t, err)
	assert.True(t, errors.Is(err, tgerr.Sentinel(tgerr.InvalidPermute)))
}
