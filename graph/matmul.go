package graph

import (
	"fmt"

	"tensorgraph/shape"
	"tensorgraph/tgerr"
)

// MatMul computes C = A @ B with optional per-operand transpose and
// NumPy-style batch broadcasting over all but the trailing two
// dimensions of A and B.
type MatMul struct {
	OpBase
	TransA, TransB bool

	// M, N, K are cached by InferShape; valid only after a successful
	// call (directly, or via Graph.ShapeInfer).
	M, N, K int
}

// NewMatMul builds a MatMul node consuming a and b and producing c. c
// must already exist in the graph (typically via Graph.AddTensor) with
// the correct rank; its concrete dimensions are filled in by shape
// inference.
func NewMatMul(g *Graph, a, b, c *Tensor, transA, transB bool) (*MatMul, error) {
	if a == nil || b == nil || c == nil {
		return nil, tgerr.New(tgerr.ShapeMismatch, "matmul requires non-nil A, B and output tensors")
	}
	return &MatMul{
		OpBase: OpBase{
			id:      g.allocOpID(),
			opType:  MatMulType,
			inputs:  []*Tensor{a, b},
			outputs: []*Tensor{c},
		},
		TransA: transA,
		TransB: transB,
	}, nil
}

// InferShape implements §4.3's MatMul algorithm: batch-broadcast the
// leading dimensions of A and B, resolve M/K/N from the trailing two
// dimensions under the transpose flags, and cache (m, n, k).
func (m *MatMul) InferShape() ([]shape.Shape, error) {
	if len(m.inputs) != 2 {
		return nil, tgerr.New(tgerr.ShapeMismatch, "matmul requires exactly 2 inputs, got %d", len(m.inputs))
	}
	a, b := m.inputs[0], m.inputs[1]
	aDims, bDims := a.Shape(), b.Shape()
	if len(aDims) < 2 || len(bDims) < 2 {
		return nil, tgerr.New(tgerr.ShapeMismatch,
			"matmul requires rank >= 2 for both inputs, got %d and %d", len(aDims), len(bDims))
	}

	aBatch := aDims[:len(aDims)-2]
	bBatch := bDims[:len(bDims)-2]
	outBatch, err := shape.Broadcast(aBatch, bBatch)
	if err != nil {
		return nil, err
	}

	var aM, aK, bK, bN int
	if m.TransA {
		aM, aK = aDims[len(aDims)-1], aDims[len(aDims)-2]
	} else {
		aM, aK = aDims[len(aDims)-2], aDims[len(aDims)-1]
	}
	if m.TransB {
		bK, bN = bDims[len(bDims)-1], bDims[len(bDims)-2]
	} else {
		bK, bN = bDims[len(bDims)-2], bDims[len(bDims)-1]
	}
	if aK != bK {
		return nil, tgerr.New(tgerr.ShapeMismatch, "matmul K dimension mismatch: %d vs %d", aK, bK)
	}

	m.M, m.N, m.K = aM, bN, aK

	out := make(shape.Shape, 0, len(outBatch)+2)
	out = append(out, outBatch...)
	out = append(out, aM, bN)
	return []shape.Shape{out}, nil
}

func (m *MatMul) String() string {
	ta, tb := "A", "B"
	if m.TransA {
		ta = "A^T"
	}
	if m.TransB {
		tb = "B^T"
	}
	return fmt.Sprintf("MatMul([%s,%s],A=%d,B=%d,C=%d,mnk=[%d,%d,%d])",
		ta, tb, m.inputs[0].FUID(), m.inputs[1].FUID(), m.outputs[0].FUID(), m.M, m.N, m.K)
}
