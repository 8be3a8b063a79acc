package graph

import (
	"fmt"
	"strings"

	"tensorgraph/shape"
	"tensorgraph/tgerr"
)

// Concat joins its inputs along Dim, which may be stored negative and
// is normalized against the current rank on every InferShape call via
// shape.RealAxis.
type Concat struct {
	OpBase
	Dim int
}

// NewConcat builds a Concat node over inputs, producing output.
func NewConcat(g *Graph, inputs []*Tensor, output *Tensor, dim int) (*Concat, error) {
	if len(inputs) == 0 || output == nil {
		return nil, tgerr.New(tgerr.ShapeMismatch, "concat requires at least one input and a non-nil output tensor")
	}
	for _, in := range inputs {
		if in == nil {
			return nil, tgerr.New(tgerr.ShapeMismatch, "concat inputs must be non-nil")
		}
	}
	return &Concat{
		OpBase: OpBase{
			id:      g.allocOpID(),
			opType:  ConcatType,
			inputs:  append([]*Tensor{}, inputs...),
			outputs: []*Tensor{output},
		},
		Dim: dim,
	}, nil
}

// InferShape implements §4.3's Concat algorithm.
func (c *Concat) InferShape() ([]shape.Shape, error) {
	if len(c.inputs) == 0 {
		return nil, tgerr.New(tgerr.ShapeMismatch, "concat requires at least one input")
	}
	rank := len(c.inputs[0].Shape())
	dim, err := shape.RealAxis(c.Dim, rank)
	if err != nil {
		return nil, err
	}

	base := c.inputs[0].Shape().Clone()
	sum := base[dim]
	for _, in := range c.inputs[1:] {
		s := in.Shape()
		if len(s) != rank {
			return nil, tgerr.New(tgerr.ShapeMismatch, "concat inputs have mismatched rank: %d vs %d", len(s), rank)
		}
		for r := 0; r < rank; r++ {
			if r == dim {
				continue
			}
			if s[r] != base[r] {
				return nil, tgerr.New(tgerr.ShapeMismatch,
					"concat dims mismatch on non-concat axis %d: %d vs %d", r, s[r], base[r])
			}
		}
		sum += s[dim]
	}

	out := base.Clone()
	out[dim] = sum
	return []shape.Shape{out}, nil
}

func (c *Concat) String() string {
	var b strings.Builder
	b.WriteString("Concat[")
	fmt.Fprintf(&b, "%d](", c.id)
	for _, in := range c.inputs {
		fmt.Fprintf(&b, "%s,", in.Shape())
	}
	fmt.Fprintf(&b, "dim=%d,input=", c.Dim)
	for _, in := range c.inputs {
		fmt.Fprintf(&b, "%d,", in.FUID())
	}
	fmt.Fprintf(&b, "output=%d)", c.outputs[0].FUID())
	return b.String()
}
