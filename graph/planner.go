package graph

import (
	"tensorgraph/runtime"
	"tensorgraph/tgerr"
)

// tensorPlanState tracks one tensor's progress through DataMalloc: how
// many not-yet-visited consumers still need it, whether it must
// outlive the pass entirely (graph outputs, tensors with no
// consumers), and the offset it has been assigned, if any.
type tensorPlanState struct {
	bytes         int
	remainingUses int
	keepAlive     bool
	offset        int
	hasOffset     bool
}

// DataMalloc assigns every tensor in the graph an offset into a single
// arena, reusing freed space from tensors whose last consumer has
// already run, then materializes the arena and binds each tensor's
// Blob. Grounded on GraphObj::dataMalloc in
// original_source/src/core/graph.cc.
func (g *Graph) DataMalloc() error {
	if !g.sorted {
		if ok := g.TopoSort(); !ok {
			return tgerr.New(tgerr.CycleInGraph, "graph contains a cycle")
		}
	}

	states := make(map[*Tensor]*tensorPlanState, len(g.tensors))
	for _, t := range g.tensors {
		states[t] = &tensorPlanState{
			bytes:         t.Bytes(),
			remainingUses: len(t.Targets()),
			keepAlive:     len(t.Targets()) == 0,
		}
	}

	ensureAlloc := func(t *Tensor) error {
		st := states[t]
		if st.hasOffset {
			return nil
		}
		offset, err := g.allocator.Alloc(st.bytes)
		if err != nil {
			return err
		}
		st.offset = offset
		st.hasOffset = true
		return nil
	}

	// Graph inputs (no producing op) must be live before any op runs.
	for _, t := range g.tensors {
		if t.Source() == nil {
			if err := ensureAlloc(t); err != nil {
				return err
			}
		}
	}

	for _, op := range g.ops {
		for _, out := range op.Outputs() {
			if out == nil {
				continue
			}
			if err := ensureAlloc(out); err != nil {
				return err
			}
		}
		for _, in := range op.Inputs() {
			if in == nil {
				continue
			}
			st := states[in]
			st.remainingUses--
			if st.remainingUses == 0 && !st.keepAlive && st.hasOffset {
				if err := g.allocator.Free(st.offset, st.bytes); err != nil {
					return err
				}
			}
		}
	}

	base, err := g.allocator.GetPtr()
	if err != nil {
		return err
	}
	for _, t := range g.tensors {
		st := states[t]
		if !st.hasOffset {
			return tgerr.New(tgerr.UnallocatedTensor, "tensor fuid=%d was never allocated during data_malloc", t.FUID())
		}
		t.SetDataBlob(runtime.NewBlob(base, st.offset, st.bytes))
	}

	g.allocator.Info()
	return nil
}
