// Package shape implements the bidirectional-broadcast and axis-
// normalization utilities the graph's operators build shape inference
// on top of. It has no dependency on the graph package so it can be
// unit tested in isolation, mirroring core/shape.go in djeday123-goml.
package shape

import (
	"fmt"

	"tensorgraph/tgerr"
)

// Shape is an ordered sequence of non-negative dimension sizes.
type Shape []int

// Clone returns an independent copy of s.
func (s Shape) Clone() Shape {
	c := make(Shape, len(s))
	copy(c, s)
	return c
}

// Equal reports whether s and other have the same rank and dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// NumElements returns the product of all dimensions; a rank-0 shape
// (scalar) has exactly one element.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int { return len(s) }

func (s Shape) String() string {
	return fmt.Sprintf("%v", []int(s))
}

// Broadcast right-aligns A and B, implicitly prepending 1s to the
// shorter shape, and returns the broadcast result. For every aligned
// pair (a, b): equal dims pass through, a 1 takes the other side's
// size, and any other mismatch is a ShapeMismatch. Negative dimensions
// in either input are also a ShapeMismatch.
func Broadcast(a, b Shape) (Shape, error) {
	rankA, rankB := len(a), len(b)
	rank := rankA
	if rankB > rank {
		rank = rankB
	}

	out := make(Shape, rank)
	for i := 0; i < rank; i++ {
		da, db := 1, 1
		if i >= rank-rankA {
			da = a[i-(rank-rankA)]
		}
		if i >= rank-rankB {
			db = b[i-(rank-rankB)]
		}
		if da < 0 || db < 0 {
			return nil, tgerr.New(tgerr.ShapeMismatch,
				"negative dimension in broadcast operand (a=%v, b=%v)", a, b)
		}
		switch {
		case da == db:
			out[i] = da
		case da == 1:
			out[i] = db
		case db == 1:
			out[i] = da
		default:
			return nil, tgerr.New(tgerr.ShapeMismatch,
				"cannot broadcast shapes %v and %v", a, b)
		}
	}
	return out, nil
}

// RealAxis normalizes a possibly-negative axis against rank, requiring
// rank >= 1 and -rank <= axis <= rank-1.
func RealAxis(axis, rank int) (int, error) {
	if rank < 1 {
		return 0, tgerr.New(tgerr.InvalidAxis, "rank must be >= 1, got %d", rank)
	}
	if axis < -rank || axis > rank-1 {
		return 0, tgerr.New(tgerr.InvalidAxis,
			"axis %d out of range [%d, %d] for rank %d", axis, -rank, rank-1, rank)
	}
	if axis < 0 {
		return axis + rank, nil
	}
	return axis, nil
}
