package core

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/devblok/overlaygfx/gfx"
)

// Buffer is a typed region of GPU addressable memory.
// Contents are uploaded once, on creation.
type Buffer[T any] struct {
	raw gfx.Buffer
	len int
	refs
}

// UploadBuffer copies data into host-visible memory
func UploadBuffer[T any](ctx *Context, usage gfx.BufferUsage, data []T) *Buffer[T] {
	return newBuffer(ctx, usage, gfx.MemoryPreferHost, data)
}

// DeviceBuffer copies data into device-preferred memory
func DeviceBuffer[T any](ctx *Context, usage gfx.BufferUsage, data []T) *Buffer[T] {
	return newBuffer(ctx, usage, gfx.MemoryPreferDevice, data)
}

func newBuffer[T any](ctx *Context, usage gfx.BufferUsage, pref gfx.MemoryPreference, data []T) *Buffer[T] {
	raw, err := ctx.device.AllocateBuffer(usage, pref, bytesOf(data))
	if err != nil {
		fatal(err, "Failed to allocate buffer")
	}

	b := &Buffer[T]{
		raw: raw,
		len: len(data),
	}
	b.init()
	return b
}

// Len returns the number of elements in the buffer
func (b *Buffer[T]) Len() int {
	return b.len
}

// Raw returns the backend buffer
func (b *Buffer[T]) Raw() gfx.Buffer {
	return b.raw
}

// Read copies the contents of the buffer back to the host
func (b *Buffer[T]) Read() ([]T, error) {
	data, err := b.raw.Read()
	if err != nil {
		return nil, errors.Wrap(err, "buffer read")
	}

	out := make([]T, b.len)
	dst := bytesOf(out)
	if len(data) != len(dst) {
		return nil, errors.Errorf("buffer read %d bytes, expected %d", len(data), len(dst))
	}
	copy(dst, data)
	return out, nil
}

// Retain adds a reference
func (b *Buffer[T]) Retain() *Buffer[T] {
	b.retain()
	return b
}

// Release drops a reference, freeing the buffer with the last one
func (b *Buffer[T]) Release() {
	if b.release() {
		b.raw.Release()
	}
}

// bytesOf views a slice as its raw bytes
func bytesOf[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	size := int(unsafe.Sizeof(data[0])) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), size)
}
