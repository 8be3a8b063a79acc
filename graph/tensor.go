package graph

import (
	"fmt"

	"tensorgraph/dtype"
	"tensorgraph/runtime"
	"tensorgraph/shape"
	"tensorgraph/tgerr"
)

// Tensor is a named value flowing on an edge of the graph. Its
// source/targets fields are non-owning back-references: a Tensor never
// keeps an Operator reachable on its own, the Graph's op list does.
type Tensor struct {
	fuid   int64
	shp    shape.Shape
	dt     dtype.DType
	rt     runtime.Runtime
	source Operator
	targets []Operator

	blob    *runtime.Blob
	frozen  bool
}

// FUID returns the tensor's graph-local, monotonically assigned id.
func (t *Tensor) FUID() int64 { return t.fuid }

// Shape returns the tensor's current shape.
func (t *Tensor) Shape() shape.Shape { return t.shp }

// DType returns the tensor's element type.
func (t *Tensor) DType() dtype.DType { return t.dt }

// Runtime returns the runtime this tensor was constructed against.
func (t *Tensor) Runtime() runtime.Runtime { return t.rt }

// Bytes returns product(shape) * dtype width.
func (t *Tensor) Bytes() int {
	return t.shp.NumElements() * int(t.dt.Width())
}

// SetShape replaces the tensor's shape. Permitted only before the
// tensor has been bound to an arena offset by the memory planner.
func (t *Tensor) SetShape(s shape.Shape) error {
	if t.frozen {
		return tgerr.New(tgerr.UseAfterMaterialize,
			"cannot reshape tensor fuid=%d after data_malloc", t.fuid)
	}
	t.shp = s.Clone()
	return nil
}

// SetDataBlob binds the tensor to a view of the materialized arena.
// Called by the memory planner exactly once per tensor.
func (t *Tensor) SetDataBlob(b runtime.Blob) {
	t.blob = &b
	t.frozen = true
}

// Blob returns the tensor's arena view, or nil before data_malloc.
func (t *Tensor) Blob() *runtime.Blob { return t.blob }

// AddTarget registers op as a consumer of this tensor.
func (t *Tensor) AddTarget(op Operator) {
	for _, o := range t.targets {
		if o == op {
			return
		}
	}
	t.targets = append(t.targets, op)
}

// SetSource records op as the tensor's producer.
func (t *Tensor) SetSource(op Operator) { t.source = op }

// Source returns the tensor's producing operator, or nil for a graph
// input.
func (t *Tensor) Source() Operator { return t.source }

// Targets returns the tensor's consuming operators.
func (t *Tensor) Targets() []Operator { return t.targets }

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor[%d](shape=%s, dtype=%s)", t.fuid, t.shp, t.dt)
}
