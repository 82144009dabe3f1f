package lanes

import "fmt"

// Buffer is a region of device memory. Host code moves data in and out with
// explicit copies; kernels see the region through Device().
type Buffer[T any] struct {
	dev  *Device
	data []T
}

// Alloc reserves n zeroed elements on the device.
func Alloc[T any](d *Device, n int) (*Buffer[T], error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrBufferSize, n)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}

	d.live.Add(1)
	return &Buffer[T]{dev: d, data: make([]T, n)}, nil
}

// CopyIn allocates a buffer the size of src and copies src into it.
func CopyIn[T any](d *Device, src []T) (*Buffer[T], error) {
	b, err := Alloc[T](d, len(src))
	if err != nil {
		return nil, err
	}
	copy(b.data, src)
	return b, nil
}

// Len returns the number of elements.
func (b *Buffer[T]) Len() int {
	return len(b.data)
}

// Device returns the device-side view for use inside kernels.
func (b *Buffer[T]) Device() []T {
	return b.data
}

// CopyOut copies the whole buffer into dst, which must be the same length.
func (b *Buffer[T]) CopyOut(dst []T) error {
	if b.data == nil && b.dev == nil {
		return ErrBufferFreed
	}
	if len(dst) != len(b.data) {
		return fmt.Errorf("%w: host %d, device %d", ErrBufferSize, len(dst), len(b.data))
	}
	copy(dst, b.data)
	return nil
}

// Free releases the buffer. Freeing twice is a no-op.
func (b *Buffer[T]) Free() {
	if b == nil || b.dev == nil {
		return
	}
	b.dev.live.Add(-1)
	b.dev = nil
	b.data = nil
}
