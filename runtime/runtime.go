// Package runtime defines the device/runtime collaborator the
// allocator and graph depend on, and a default heap-backed
// implementation. Real device runtimes (GPU, accelerator) implement
// the same three-method interface; this core never imports one.
package runtime

import (
	"fmt"

	"github.com/google/uuid"
)

// Runtime is the injected memory collaborator: it supplies raw byte
// buffers and releases them. The core treats it as opaque.
type Runtime interface {
	// Alloc returns a freshly backed buffer of exactly nbytes.
	Alloc(nbytes int) ([]byte, error)
	// Dealloc releases a buffer previously returned by Alloc.
	Dealloc(buf []byte)
	// String returns a stable identifier used in runtime-mismatch
	// error messages.
	String() string
}

// DefaultRuntime is a plain Go-heap-backed Runtime. Two independently
// constructed DefaultRuntimes carry distinct ids even if otherwise
// identical, so a RuntimeMismatch error can name them unambiguously.
type DefaultRuntime struct {
	name string
	id   uuid.UUID
}

// NewDefaultRuntime constructs a DefaultRuntime tagged with name and a
// fresh random id.
func NewDefaultRuntime(name string) *DefaultRuntime {
	return &DefaultRuntime{name: name, id: uuid.New()}
}

func (r *DefaultRuntime) Alloc(nbytes int) ([]byte, error) {
	if nbytes < 0 {
		return nil, fmt.Errorf("runtime: negative allocation size %d", nbytes)
	}
	return make([]byte, nbytes), nil
}

func (r *DefaultRuntime) Dealloc(buf []byte) {
	// The Go garbage collector reclaims the backing array once
	// unreferenced; nothing to do explicitly.
}

func (r *DefaultRuntime) String() string {
	return fmt.Sprintf("%s[%s]", r.name, r.id)
}

// ID returns the runtime's unique identifier.
func (r *DefaultRuntime) ID() uuid.UUID { return r.id }

// Blob is a byte-slice view into a materialized arena, bound to a
// tensor once the planner runs. It mirrors the storage.Bytes()-style
// accessor used across the pack's backend abstractions rather than an
// unsafe.Pointer, since nothing downstream touches the bytes as
// anything but a slice.
type Blob struct {
	base   []byte
	offset int
	size   int
}

// NewBlob returns a Blob viewing base[offset:offset+size].
func NewBlob(base []byte, offset, size int) Blob {
	return Blob{base: base, offset: offset, size: size}
}

// Bytes returns the byte slice this blob addresses.
func (b Blob) Bytes() []byte {
	if b.base == nil {
		return nil
	}
	return b.base[b.offset : b.offset+b.size]
}

// Offset returns the blob's offset within its backing arena.
func (b Blob) Offset() int { return b.offset }

// Size returns the blob's length in bytes.
func (b Blob) Size() int { return b.size }
