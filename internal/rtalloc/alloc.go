package rtalloc

import "unsafe"

// Allocator is the bulk allocation primitive the ARC and Any engines are
// built on (spec §4.1). Implementations must return memory suitably
// aligned for any primitive type and must never return nil for a non-zero
// size: failure is reported through Fatal, not through a returned error.
type Allocator interface {
	// Alloc returns at least size bytes of zeroed, correctly aligned
	// memory, or calls Fatal if the request cannot be satisfied.
	Alloc(size uintptr) unsafe.Pointer
	// Free releases memory previously returned by Alloc. Freeing the same
	// pointer twice, or a pointer not returned by this Allocator, is
	// undefined at the contract level.
	Free(ptr unsafe.Pointer)
}

// Default is the process-wide allocator backend used by the default
// arc and any engines (arc.AllocateIndirect, any.Allocate). It is a
// package variable, not a hidden global singleton behind a constructor;
// tests that need a mock Allocator build their own engine around one
// instead (see internal/arc/refcount_test.go).
var Default Allocator = newPlatformAllocator()
