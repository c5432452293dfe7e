//go:build orizon_debug

package arc

import (
	"testing"
	"unsafe"
)

// leakyAllocator never actually returns memory to the OS; it exists only
// so this test can inspect poisoned header bytes without touching memory
// the platform allocator has already unmapped.
type leakyAllocator struct{}

func (leakyAllocator) Alloc(size uintptr) unsafe.Pointer {
	buf := make([]byte, size)
	return unsafe.Pointer(&buf[0])
}

func (leakyAllocator) Free(unsafe.Pointer) {}

func TestPoisonBeforeFreeOverwritesHeader(t *testing.T) {
	e := &Engine{Alloc: leakyAllocator{}}
	p := e.AllocateIndirect(8, nil)
	h := headerOf(p)
	e.Retain(p)
	e.Release(p)

	if h.retainCount != uint32(poisonWord&0xFFFFFFFF) {
		t.Fatalf("expected poisoned retainCount after free, got %d", h.retainCount)
	}
}
