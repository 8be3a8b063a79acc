package graph

import "tensorgraph/tgerr"

// Optimize runs the two peephole rewrites to a fixed point:
//
//  1. inverse-transpose elimination: a Transpose feeding a sole-
//     consumer Transpose whose permute is its mutual inverse — both
//     are removed and consumers of the second are rewired to the
//     first's input.
//  2. transpose-into-matmul fusion: a MatMul input produced by a
//     swap-last-two Transpose is rewired to the transpose's input and
//     the matching transA/transB flag is toggled.
//
// Every successful application of a rule — one Rule-1 match, or one
// Rule-2 sweep over all MatMul input slots — not just the whole
// fixed-point loop, is followed by a full tensor-pruning, edge-rebuild,
// and re-sort, so a stale `sorted` flag can never survive a shifted
// op-index hazard.
func (g *Graph) Optimize() error {
	if !g.sorted {
		if ok := g.TopoSort(); !ok {
			return tgerr.New(tgerr.CycleInGraph, "graph contains a cycle")
		}
	}

	for {
		if g.applyInverseTransposeElimination() {
			if err := g.rebuildAfterRewrite(); err != nil {
				return err
			}
			continue
		}
		if g.applyTransposeMatmulFusion() {
			if err := g.rebuildAfterRewrite(); err != nil {
				return err
			}
			continue
		}
		break
	}
	return nil
}

// applyInverseTransposeElimination looks for one Rule-1 match and, if
// found, rewires and removes the pair, returning true. It stops at the
// first match — the caller re-scans from scratch after a rebuild,
// since op indices may have shifted.
func (g *Graph) applyInverseTransposeElimination() bool {
	for _, op1 := range g.ops {
		t1, ok := op1.(*Transpose)
		if !ok {
			continue
		}
		out1 := t1.outputs[0]
		targets := out1.Targets()
		if len(targets) != 1 {
			continue
		}
		op2 := targets[0]
		t2, ok := op2.(*Transpose)
		if !ok {
			continue
		}
		if len(t2.inputs) != 1 || t2.inputs[0] != out1 {
			continue
		}
		if !isInversePermute(t1.EffectivePermute(), t2.EffectivePermute()) {
			continue
		}

		in := t1.inputs[0]
		out2 := t2.outputs[0]
		for _, consumer := range out2.Targets() {
			consumer.ReplaceInput(out2, in)
		}

		g.removeOps(op1, op2)
		return true
	}
	return false
}

// applyTransposeMatmulFusion scans every MatMul's two input slots in
// one sweep, rewiring each swap-last-two-Transpose-fed slot and
// collecting the now-obsolete transposes, deleting them all once the
// sweep completes.
func (g *Graph) applyTransposeMatmulFusion() bool {
	toRemove := make(map[Operator]bool)

	for _, op := range g.ops {
		mm, ok := op.(*MatMul)
		if !ok {
			continue
		}
		for inputIdx := 0; inputIdx < 2; inputIdx++ {
			in := mm.inputs[inputIdx]
			src := in.Source()
			tr, ok := src.(*Transpose)
			if !ok {
				continue
			}
			if len(tr.outputs) != 1 || tr.outputs[0] != in {
				continue
			}
			if !isSwapLastTwo(tr.EffectivePermute()) {
				continue
			}

			trIn := tr.inputs[0]
			mm.ReplaceInput(in, trIn)
			if inputIdx == 0 {
				mm.TransA = !mm.TransA
			} else {
				mm.TransB = !mm.TransB
			}
			toRemove[tr] = true
		}
	}

	if len(toRemove) == 0 {
		return false
	}
	g.removeOpsSet(toRemove)
	return true
}

func (g *Graph) removeOps(remove ...Operator) {
	set := make(map[Operator]bool, len(remove))
	for _, op := range remove {
		set[op] = true
	}
	g.removeOpsSet(set)
}

func (g *Graph) removeOpsSet(remove map[Operator]bool) {
	kept := make([]Operator, 0, len(g.ops))
	for _, op := range g.ops {
		if !remove[op] {
			kept = append(kept, op)
		}
	}
	g.ops = kept
}

// rebuildAfterRewrite drops tensors no longer referenced by any
// operator, clears every tensor's source/targets and every operator's
// predecessor/successor sets, rebuilds them from the current op list,
// and re-sorts.
func (g *Graph) rebuildAfterRewrite() error {
	g.pruneUnreferencedTensors()

	for _, t := range g.tensors {
		t.source = nil
		t.targets = nil
	}
	for _, op := range g.ops {
		op.ClearEdges()
	}

	for _, op := range g.ops {
		for _, in := range op.Inputs() {
			if in != nil {
				in.AddTarget(op)
			}
		}
		for _, out := range op.Outputs() {
			if out != nil {
				out.SetSource(op)
			}
		}
	}
	for _, op := range g.ops {
		for _, in := range op.Inputs() {
			if in == nil {
				continue
			}
			if pred := in.Source(); pred != nil && pred != op {
				pred.AddSuccessor(op)
				op.AddPredecessor(pred)
			}
		}
	}

	g.sorted = false
	if ok := g.TopoSort(); !ok {
		return tgerr.New(tgerr.CycleInGraph, "optimize produced a cycle")
	}
	return nil
}

func (g *Graph) pruneUnreferencedTensors() {
	referenced := make(map[*Tensor]bool, len(g.tensors))
	for _, op := range g.ops {
		for _, t := range op.Inputs() {
			if t != nil {
				referenced[t] = true
			}
		}
		for _, t := range op.Outputs() {
			if t != nil {
				referenced[t] = true
			}
		}
	}
	kept := make([]*Tensor, 0, len(g.tensors))
	for _, t := range g.tensors {
		if referenced[t] {
			kept = append(kept, t)
		}
	}
	g.tensors = kept
}

// isInversePermute reports whether p2 undoes p1: inv[p1[i]] = i for
// all i, and inv == p2.
func isInversePermute(p1, p2 []int) bool {
	if len(p1) != len(p2) {
		return false
	}
	r := len(p1)
	inv := make([]int, r)
	for i := range inv {
		inv[i] = -1
	}
	for i, v := range p1 {
		if v < 0 || v >= r || inv[v] != -1 {
			return false
		}
		inv[v] = i
	}
	for i := range inv {
		if inv[i] != p2[i] {
			return false
		}
	}
	return true
}

// isSwapLastTwo reports whether perm is the identity on 0..rank-3
// followed by [rank-1, rank-2].
func isSwapLastTwo(perm []int) bool {
	r := len(perm)
	if r < 2 {
		return false
	}
	for i := 0; i < r-2; i++ {
		if perm[i] != i {
			return false
		}
	}
	return perm[r-2] == r-1 && perm[r-1] == r-2
}
