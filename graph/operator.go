package graph

import (
	"tensorgraph/shape"
)

// OpType tags an operator's kind. The set named by this core is closed
// (MatMulType, TransposeType, ConcatType); a caller extending the core
// with their own variant is free to define additional OpType values in
// their own package — this core never switches on OpType to decide
// whether it knows how to run an operator, only the optimizer's two
// rules do, and both rules use a Go type assertion, not OpType, to
// recognize MatMul/Transpose.
type OpType int

const (
	MatMulType OpType = iota
	TransposeType
	ConcatType
)

func (t OpType) String() string {
	switch t {
	case MatMulType:
		return "MatMul"
	case TransposeType:
		return "Transpose"
	case ConcatType:
		return "Concat"
	default:
		return "Unknown"
	}
}

// Operator is the capability set a node in the graph must expose.
// MatMul, Transpose, and Concat implement it by embedding OpBase for
// the common bookkeeping and supplying OpType/InferShape/String
// themselves. An external operator variant can do the same without
// this package importing it.
type Operator interface {
	ID() int64
	OpType() OpType
	Inputs() []*Tensor
	Outputs() []*Tensor
	Predecessors() []Operator
	Successors() []Operator
	AddPredecessor(op Operator)
	AddSuccessor(op Operator)
	ClearEdges()
	ReplaceInput(old, new *Tensor)
	InferShape() ([]shape.Shape, error)
	String() string
}

// OpBase holds the bookkeeping every Operator variant shares: identity,
// ordered input/output tensors, and the predecessor/successor sets
// that mirror the tensor-level source/target edges. It is the Go
// analogue of the original's OperatorObj base class.
type OpBase struct {
	id           int64
	opType       OpType
	inputs       []*Tensor
	outputs      []*Tensor
	predecessors []Operator
	successors   []Operator
}

func (b *OpBase) ID() int64             { return b.id }
func (b *OpBase) OpType() OpType        { return b.opType }
func (b *OpBase) Inputs() []*Tensor     { return b.inputs }
func (b *OpBase) Outputs() []*Tensor    { return b.outputs }
func (b *OpBase) Predecessors() []Operator { return b.predecessors }
func (b *OpBase) Successors() []Operator   { return b.successors }

func (b *OpBase) AddPredecessor(op Operator) {
	for _, p := range b.predecessors {
		if p == op {
			return
		}
	}
	b.predecessors = append(b.predecessors, op)
}

func (b *OpBase) AddSuccessor(op Operator) {
	for _, s := range b.successors {
		if s == op {
			return
		}
	}
	b.successors = append(b.successors, op)
}

func (b *OpBase) ClearEdges() {
	b.predecessors = nil
	b.successors = nil
}

// ReplaceInput swaps the first occurrence of old for new among the
// operator's inputs. It does not touch edge bookkeeping: callers that
// rewire a graph (the optimizer) are expected to follow up with a full
// edge rebuild, since a single ReplaceInput call can leave the old
// tensor's target list stale until then.
func (b *OpBase) ReplaceInput(old, new *Tensor) {
	for i, in := range b.inputs {
		if in == old {
			b.inputs[i] = new
			return
		}
	}
}
