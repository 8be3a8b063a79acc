// Package dtype holds the tensor element type enum and each type's byte
// width. It is a leaf package: graph uses it, and it depends on neither
// shape nor graph.
package dtype

import "fmt"

// DType is the element data type of a tensor.
type DType uint8

const (
	Float32 DType = iota
	Float64
	Float16
	BFloat16
	Int8
	Int16
	Int32
	Int64
	Uint8
	Bool
)

var widths = [...]uintptr{
	Float32:  4,
	Float64:  8,
	Float16:  2,
	BFloat16: 2,
	Int8:     1,
	Int16:    2,
	Int32:    4,
	Int64:    8,
	Uint8:    1,
	Bool:     1,
}

var names = [...]string{
	Float32:  "float32",
	Float64:  "float64",
	Float16:  "float16",
	BFloat16: "bfloat16",
	Int8:     "int8",
	Int16:    "int16",
	Int32:    "int32",
	Int64:    "int64",
	Uint8:    "uint8",
	Bool:     "bool",
}

// Width returns the byte size of one element.
func (d DType) Width() uintptr {
	if int(d) < len(widths) {
		return widths[d]
	}
	panic(fmt.Sprintf("dtype: unknown dtype %d", uint8(d)))
}

func (d DType) String() string {
	if int(d) < len(names) {
		return names[d]
	}
	return fmt.Sprintf("dtype(%d)", uint8(d))
}
