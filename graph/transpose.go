package graph

import (
	"fmt"

	"tensorgraph/shape"
	"tensorgraph/tgerr"
)

// Transpose permutes the axes of its single input. An empty Permute
// attribute means "full reverse", resolved fresh on every InferShape
// call from the input's current rank rather than baked in at
// construction time, so EffectivePermute stays a pure function of the
// current input shape plus the stored attribute.
type Transpose struct {
	OpBase
	Permute []int
}

// NewTranspose builds a Transpose node. permute may be nil/empty to
// request the default full-reverse permutation.
func NewTranspose(g *Graph, input, output *Tensor, permute []int) (*Transpose, error) {
	if input == nil || output == nil {
		return nil, tgerr.New(tgerr.ShapeMismatch, "transpose requires non-nil input and output tensors")
	}
	var perm []int
	if len(permute) > 0 {
		perm = append([]int{}, permute...)
	}
	return &Transpose{
		OpBase: OpBase{
			id:      g.allocOpID(),
			opType:  TransposeType,
			inputs:  []*Tensor{input},
			outputs: []*Tensor{output},
		},
		Permute: perm,
	}, nil
}

// EffectivePermute returns the permutation this operator would apply
// right now: the stored attribute if set, otherwise the full-reverse
// default for the input's current rank. It does not validate that the
// permutation is well-formed; InferShape does.
func (t *Transpose) EffectivePermute() []int {
	if len(t.Permute) > 0 {
		return t.Permute
	}
	rank := len(t.inputs[0].Shape())
	perm := make([]int, rank)
	for i := 0; i < rank; i++ {
		perm[i] = rank - 1 - i
	}
	return perm
}

// InferShape implements §4.3's Transpose algorithm.
func (t *Transpose) InferShape() ([]shape.Shape, error) {
	if len(t.inputs) != 1 {
		return nil, tgerr.New(tgerr.ShapeMismatch, "transpose requires exactly 1 input, got %d", len(t.inputs))
	}
	in := t.inputs[0].Shape()
	rank := len(in)
	perm := t.EffectivePermute()
	if len(perm) != rank {
		return nil, tgerr.New(tgerr.InvalidPermute, "permute length %d does not match rank %d", len(perm), rank)
	}
	seen := make([]bool, rank)
	for _, p := range perm {
		if p < 0 || p >= rank || seen[p] {
			return nil, tgerr.New(tgerr.InvalidPermute, "permute %v is not a permutation of 0..%d", perm, rank-1)
		}
		seen[p] = true
	}
	out := make(shape.Shape, rank)
	for i, p := range perm {
		out[i] = in[p]
	}
	return []shape.Shape{out}, nil
}

func (t *Transpose) String() string {
	return fmt.Sprintf("Transpose[%d](%s,permute=%v,input=%d,output=%d)",
		t.id, t.inputs[0].Shape(), t.EffectivePermute(), t.inputs[0].FUID(), t.outputs[0].FUID())
}
