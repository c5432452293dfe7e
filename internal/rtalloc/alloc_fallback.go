//go:build !unix

package rtalloc

import (
	"sync"
	"unsafe"
)

// pinnedAllocator backs alloc(size) on platforms without unix.Mmap (e.g.
// Windows, WASI) using ordinary Go heap slices kept alive in a side table,
// grounded on the teacher's systemAlloc fallback in
// internal/allocator/allocator.go. The side table holds the only Go-level
// reference to each buffer; without it the GC could reclaim memory still
// reachable only through unsafe.Pointer.
type pinnedAllocator struct {
	mu    sync.Mutex
	alive map[uintptr][]byte
}

func newPlatformAllocator() Allocator {
	return &pinnedAllocator{alive: make(map[uintptr][]byte)}
}

func (a *pinnedAllocator) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		size = 1
	}

	buf := make([]byte, size)
	ptr := unsafe.Pointer(&buf[0])

	a.mu.Lock()
	a.alive[uintptr(ptr)] = buf
	a.mu.Unlock()

	return ptr
}

func (a *pinnedAllocator) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	addr := uintptr(ptr)
	if _, ok := a.alive[addr]; !ok {
		Fatal("rtalloc: free of pointer not owned by this allocator")
		return
	}

	delete(a.alive, addr)
}
