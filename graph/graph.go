// Package graph implements the tightly coupled core of the runtime:
// Tensor, Operator variants, Graph, the peephole Optimizer, the offset
// Allocator, and the memory planner. They stay in one package because
// the original design's tensor<->operator back-references and the
// optimizer/allocator/planner's direct manipulation of Graph's fields
// would otherwise force either an import cycle or handle indirection
// the source does not have (see SPEC_FULL.md §2).
package graph

import (
	"fmt"
	"strings"

	"tensorgraph/dtype"
	"tensorgraph/runtime"
	"tensorgraph/shape"
	"tensorgraph/tgerr"
)

// Graph owns every tensor and operator in the DAG, plus the allocator
// that ultimately packs tensors into a single arena.
type Graph struct {
	rt     runtime.Runtime
	tensors []*Tensor
	ops     []Operator
	sorted  bool

	nextFUID int64
	nextOpID int64

	allocator *Allocator
}

// NewGraph constructs an empty graph bound to rt.
func NewGraph(rt runtime.Runtime) *Graph {
	return &Graph{
		rt:        rt,
		allocator: NewAllocator(rt),
	}
}

// Runtime returns the graph's runtime collaborator.
func (g *Graph) Runtime() runtime.Runtime { return g.rt }

// Tensors returns the graph's tensor list in insertion order.
func (g *Graph) Tensors() []*Tensor { return g.tensors }

// Operators returns the graph's operator list, topologically ordered
// once Sorted() is true.
func (g *Graph) Operators() []Operator { return g.ops }

// Sorted reports whether Operators() is currently in topological
// order.
func (g *Graph) Sorted() bool { return g.sorted }

// Allocator returns the graph's embedded offset allocator.
func (g *Graph) Allocator() *Allocator { return g.allocator }

func (g *Graph) allocOpID() int64 {
	id := g.nextOpID
	g.nextOpID++
	return id
}

// AddTensor creates a fresh tensor owned by this graph.
func (g *Graph) AddTensor(shp shape.Shape, dt dtype.DType) *Tensor {
	t := &Tensor{
		fuid: g.nextFUID,
		shp:  shp.Clone(),
		dt:   dt,
		rt:   g.rt,
	}
	g.nextFUID++
	g.tensors = append(g.tensors, t)
	return t
}

// AddExistingTensor appends an already-constructed tensor (e.g. one
// moved over from another graph) to this graph's tensor list. It fails
// with a RuntimeMismatch error if the tensor was built against a
// different runtime.
func (g *Graph) AddExistingTensor(t *Tensor) error {
	if t.rt != g.rt {
		return tgerr.New(tgerr.RuntimeMismatch,
			"cannot add a tensor in runtime %s to graph runtime %s", t.rt, g.rt)
	}
	g.tensors = append(g.tensors, t)
	return nil
}

// AddOperatorAndConnect appends op to the graph and wires its tensor
// edges: every input gains op as a target (and, if the input already
// has a producer, both sides gain a predecessor/successor link); every
// output gets op as its source and is cross-linked with any consumers
// that were already registered on it.
func (g *Graph) AddOperatorAndConnect(op Operator) {
	g.sorted = false
	g.ops = append(g.ops, op)

	for _, in := range op.Inputs() {
		if in == nil {
			continue
		}
		in.AddTarget(op)
		if pred := in.Source(); pred != nil {
			pred.AddSuccessor(op)
			op.AddPredecessor(pred)
		}
	}
	for _, out := range op.Outputs() {
		if out == nil {
			continue
		}
		out.SetSource(op)
		for _, succ := range out.Targets() {
			succ.AddPredecessor(op)
			op.AddSuccessor(succ)
		}
	}
}

// GetTensor looks up a tensor by fuid.
func (g *Graph) GetTensor(fuid int64) (*Tensor, bool) {
	for _, t := range g.tensors {
		if t.fuid == fuid {
			return t, true
		}
	}
	return nil, false
}

// TopoSort orders Operators() so every predecessor precedes its
// successors, using repeated-scan Kahn's algorithm with ties broken by
// current list order. Returns false (without modifying the op list) if
// the graph contains a cycle.
func (g *Graph) TopoSort() bool {
	if g.sorted {
		return true
	}

	emitted := make(map[Operator]bool, len(g.ops))
	order := make([]Operator, 0, len(g.ops))

	for len(order) < len(g.ops) {
		progressed := false
		for _, op := range g.ops {
			if emitted[op] {
				continue
			}
			ready := true
			for _, in := range op.Inputs() {
				if in == nil {
					continue
				}
				if src := in.Source(); src != nil && !emitted[src] {
					ready = false
					break
				}
			}
			if ready {
				order = append(order, op)
				emitted[op] = true
				progressed = true
			}
		}
		if !progressed {
			return false
		}
	}

	g.ops = order
	g.sorted = true
	return true
}

// ShapeInfer walks Operators() in topological order, calling each
// op's InferShape and updating any output tensor whose computed shape
// differs from its current one.
func (g *Graph) ShapeInfer() error {
	if !g.sorted {
		if ok := g.TopoSort(); !ok {
			return tgerr.New(tgerr.CycleInGraph, "graph contains a cycle")
		}
	}
	for _, op := range g.ops {
		shapes, err := op.InferShape()
		if err != nil {
			return err
		}
		outputs := op.Outputs()
		if len(shapes) != len(outputs) {
			return tgerr.New(tgerr.ShapeMismatch,
				"infer_shape returned %d shapes for %d outputs on op %d", len(shapes), len(outputs), op.ID())
		}
		for i, s := range shapes {
			if !outputs[i].Shape().Equal(s) {
				if err := outputs[i].SetShape(s); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// CheckValid asserts the structural invariants of §3: every tensor's
// source/targets live in the op list; every op's inputs/outputs live
// in the tensor list; every predecessor/successor lives in the op
// list; no two tensors share an fuid; no tensor exists with neither a
// source nor any targets. These are generic internal-consistency
// assertions rather than one of the named fatal error kinds, so they
// are reported as plain errors.
func (g *Graph) CheckValid() error {
	opSet := make(map[Operator]bool, len(g.ops))
	for _, op := range g.ops {
		opSet[op] = true
	}
	tensorSet := make(map[*Tensor]bool, len(g.tensors))
	for _, t := range g.tensors {
		tensorSet[t] = true
	}

	fuids := make(map[int64]bool, len(g.tensors))
	for _, t := range g.tensors {
		if fuids[t.fuid] {
			return fmt.Errorf("graph: duplicate fuid %d", t.fuid)
		}
		fuids[t.fuid] = true

		if t.Source() == nil && len(t.Targets()) == 0 {
			return fmt.Errorf("graph: orphan tensor fuid=%d has neither source nor targets", t.fuid)
		}
		for _, op := range t.Targets() {
			if !opSet[op] {
				return fmt.Errorf("graph: tensor fuid=%d targets an operator not in the graph", t.fuid)
			}
		}
		if src := t.Source(); src != nil && !opSet[src] {
			return fmt.Errorf("graph: tensor fuid=%d's source is not in the graph", t.fuid)
		}
	}

	for _, op := range g.ops {
		for _, t := range op.Inputs() {
			if t != nil && !tensorSet[t] {
				return fmt.Errorf("graph: operator %d has an input not in the graph", op.ID())
			}
		}
		for _, t := range op.Outputs() {
			if t != nil && !tensorSet[t] {
				return fmt.Errorf("graph: operator %d has an output not in the graph", op.ID())
			}
		}
		for _, pred := range op.Predecessors() {
			if !opSet[pred] {
				return fmt.Errorf("graph: operator %d has a predecessor not in the graph", op.ID())
			}
		}
		for _, succ := range op.Successors() {
			if !opSet[succ] {
				return fmt.Errorf("graph: operator %d has a successor not in the graph", op.ID())
			}
		}
	}

	return nil
}

// String dumps the graph: tensors first, then operators with their
// predecessor/successor fuids.
func (g *Graph) String() string {
	var b strings.Builder
	b.WriteString("Graph Tensors:\n")
	for _, t := range g.tensors {
		b.WriteString(t.String())
		b.WriteString("\n")
	}
	b.WriteString("Graph operators:\n")
	for _, op := range g.ops {
		preds := make([]int64, 0, len(op.Predecessors()))
		for _, p := range op.Predecessors() {
			preds = append(preds, p.ID())
		}
		succs := make([]int64, 0, len(op.Successors()))
		for _, s := range op.Successors() {
			succs = append(succs, s.ID())
		}
		fmt.Fprintf(&b, "OP %d, pred %v, succ %v, %s\n", op.ID(), preds, succs, op.String())
	}
	return b.String()
}

// Close releases the graph's materialized arena, if any, via the
// runtime's Dealloc. Safe to call more than once.
func (g *Graph) Close() {
	g.allocator.Close()
}
