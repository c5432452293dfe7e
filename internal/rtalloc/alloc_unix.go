//go:build unix

package rtalloc

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmapAllocator services alloc(size) with an anonymous private mapping per
// allocation, grounded on the teacher's use of golang.org/x/sys/unix for
// direct syscalls in internal/runtime/asyncio/zerocopy_unix_file.go. One
// mmap per call is wasteful for small objects but gives every allocation
// page alignment for free, which is stronger than the header-adjacent
// alignment the RefCountBox scheme requires (spec §9).
//
// munmap needs the original mapping length, which a bare unsafe.Pointer
// can't carry, so sizes are tracked in a side table keyed by address —
// the same map-plus-mutex bookkeeping shape as the teacher's StringPool.
type mmapAllocator struct {
	mu    sync.Mutex
	sizes map[uintptr]int
}

func newPlatformAllocator() Allocator {
	return &mmapAllocator{sizes: make(map[uintptr]int)}
}

func (a *mmapAllocator) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		size = 1
	}

	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		Fatalf("rtalloc: mmap failed for %d bytes: %v", size, err)
		return nil // unreachable
	}

	ptr := unsafe.Pointer(&b[0])

	a.mu.Lock()
	a.sizes[uintptr(ptr)] = int(size)
	a.mu.Unlock()

	return ptr
}

func (a *mmapAllocator) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	addr := uintptr(ptr)

	a.mu.Lock()
	size, ok := a.sizes[addr]
	if ok {
		delete(a.sizes, addr)
	}
	a.mu.Unlock()

	if !ok {
		Fatal("rtalloc: free of pointer not owned by this allocator")
		return
	}

	b := unsafe.Slice((*byte)(ptr), size)
	if err := unix.Munmap(b); err != nil {
		Fatalf("rtalloc: munmap failed: %v", err)
	}
}
