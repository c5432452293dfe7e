// Package arc implements deterministic automatic reference counting for
// indirectly-stored values (spec §3, §4.2): allocation, retain, release,
// and a unique-reference test, each backed by a per-object mutex and an
// optional user deinitializer.
//
// Addressing follows the single convention spec §3 requires: every
// indirect allocation is header-then-payload in one contiguous block, and
// the address handed to generated code is always the payload address.
// The header itself holds only the plain-old-data counter and mutex; the
// deinit closure is kept out of that memory entirely (see the deinit
// registry below) and the header sits at a fixed negative offset from
// whatever pointer the caller holds.
package arc

import (
	"sync"
	"unsafe"

	"github.com/orizon-lang/orizon-runtime/internal/rtalloc"
)

// Deinit is a user-supplied deinitializer, invoked exactly once when a
// box's retain count transitions from 1 to 0. It receives the payload
// address, not the header.
type Deinit func(payload unsafe.Pointer)

// box is the hidden RefCountBox header prepended to every indirect
// allocation (spec §3): just the mutex and the counter, both plain old
// data. A box never stores a Deinit value directly. rtalloc.Allocator
// backends hand out memory the Go garbage collector does not scan for
// pointers — an anonymous unix.Mmap page in alloc_unix.go is entirely
// outside the Go heap, and the make([]byte, size) buffer in
// alloc_fallback.go is a noscan byte span for the same reason. A closure
// stored inside that memory would have no GC-visible reference once
// AllocateIndirect returns, so it could be collected before Release ever
// calls it. Deinit values therefore live in deinits, an ordinary
// GC-visible Go map keyed by header address, following the same
// map-plus-mutex side-table shape alloc_unix.go's mmapAllocator already
// uses to track mapping lengths it can't store inline either.
type box struct {
	mutex       sync.Mutex
	retainCount uint32
}

// headerSize is sizeof(header) in the spec's terms: the fixed offset
// between a header pointer and its payload pointer. It is sizeof(box)
// rounded up to a multiple of 8, so the payload starts aligned for any
// primitive and the header occupies whole machine words.
const headerSize = (unsafe.Sizeof(box{}) + 7) &^ 7

func headerOf(payload unsafe.Pointer) *box {
	return (*box)(unsafe.Pointer(uintptr(payload) - headerSize))
}

func payloadOf(h *box) unsafe.Pointer {
	return unsafe.Pointer(uintptr(unsafe.Pointer(h)) + headerSize)
}

// deinitRegistry is a GC-visible side table mapping a box's header
// address to the Deinit closure supplied at allocation time. Keeping the
// closure here instead of inside the header (which may live in
// allocator-backed memory the collector cannot trace) is what keeps the
// closure's captured environment reachable until Release takes it back
// out and calls it.
type deinitRegistry struct {
	mu sync.Mutex
	m  map[uintptr]Deinit
}

func (r *deinitRegistry) set(key uintptr, d Deinit) {
	r.mu.Lock()
	if r.m == nil {
		r.m = make(map[uintptr]Deinit)
	}
	r.m[key] = d
	r.mu.Unlock()
}

// take removes and returns the Deinit registered for key, or nil if none
// was registered (an allocation with a nil deinit never calls set).
func (r *deinitRegistry) take(key uintptr) Deinit {
	r.mu.Lock()
	d := r.m[key]
	delete(r.m, key)
	r.mu.Unlock()

	return d
}

// Engine bundles the allocator an ARC instance is built on (spec §4.1's
// "external collaborators"; fatal errors go through the process-wide
// rtalloc sink), plus the deinit registry that keeps every live box's
// deinitializer GC-reachable. The package-level AllocateIndirect,
// Retain, Release, and IsUniquelyReferenced functions operate
// against Default, but tests and alternative runtimes can construct their
// own Engine over a mock Allocator.
type Engine struct {
	Alloc   rtalloc.Allocator
	deinits deinitRegistry
}

// Default is the process-wide ARC engine used by the package-level
// convenience functions and by the ABI bridge.
var Default = &Engine{Alloc: rtalloc.Default}

// AllocateIndirect allocates sizeof(header)+size bytes, in-place
// constructs the header with retain count 0, registers the supplied
// (possibly nil) deinit in the engine's GC-visible registry keyed by the
// header address, and returns the payload address. The caller owns
// performing the first retain; a freshly allocated box is not yet "live"
// (spec §3 invariants).
func (e *Engine) AllocateIndirect(size uintptr, deinit Deinit) unsafe.Pointer {
	raw := e.Alloc.Alloc(headerSize + size)

	h := (*box)(raw)
	h.mutex = sync.Mutex{}
	h.retainCount = 0

	if deinit != nil {
		e.deinits.set(uintptr(raw), deinit)
	}

	return payloadOf(h)
}

// Retain increments payload's retain count. A nil payload is a no-op that
// returns nil (spec §4.2 null tolerance). Retaining past the maximum
// representable count is fatal (spec §7 item 1).
func (e *Engine) Retain(payload unsafe.Pointer) unsafe.Pointer {
	if payload == nil {
		return nil
	}

	h := headerOf(payload)

	h.mutex.Lock()
	if h.retainCount == ^uint32(0) {
		h.mutex.Unlock()
		rtalloc.Fatal("arc: retain count overflow")
		return payload // unreachable
	}
	h.retainCount++
	h.mutex.Unlock()

	return payload
}

// Release decrements payload's retain count. A nil payload is a no-op
// that returns nil. Releasing a box whose count is already 0 is fatal
// (spec §7 item 2). When the count transitions to 0, the mutex is
// released before deinit runs — deinit may reenter the runtime, including
// releasing children — and the box is freed only after deinit returns.
func (e *Engine) Release(payload unsafe.Pointer) unsafe.Pointer {
	if payload == nil {
		return nil
	}

	h := headerOf(payload)

	h.mutex.Lock()
	if h.retainCount == 0 {
		h.mutex.Unlock()
		rtalloc.Fatal("arc: release of box with retain count 0")
		return payload // unreachable
	}
	h.retainCount--
	reachedZero := h.retainCount == 0
	h.mutex.Unlock()

	if reachedZero {
		if deinit := e.deinits.take(uintptr(unsafe.Pointer(h))); deinit != nil {
			deinit(payload)
		}
		poisonBeforeFree(h)
		e.Alloc.Free(unsafe.Pointer(h))
	}

	return payload
}

// IsUniquelyReferenced reports whether payload has exactly one owner. A
// nil payload is treated as uniquely referenced (spec §4.2).
func (e *Engine) IsUniquelyReferenced(payload unsafe.Pointer) bool {
	if payload == nil {
		return true
	}

	h := headerOf(payload)

	h.mutex.Lock()
	unique := h.retainCount == 1
	h.mutex.Unlock()

	return unique
}

// RetainCount returns the current retain count of payload. This is a
// diagnostic accessor, not part of the frozen §6 ABI surface (see
// SPEC_FULL.md supplemented features); neither the tests nor the
// smoke-test command call it.
func (e *Engine) RetainCount(payload unsafe.Pointer) uint32 {
	if payload == nil {
		return 0
	}

	h := headerOf(payload)

	h.mutex.Lock()
	count := h.retainCount
	h.mutex.Unlock()

	return count
}

// Package-level convenience wrappers over Default, mirroring the ABI
// surface's flat function names (spec §6).

func AllocateIndirect(size uintptr, deinit Deinit) unsafe.Pointer {
	return Default.AllocateIndirect(size, deinit)
}

func Retain(payload unsafe.Pointer) unsafe.Pointer { return Default.Retain(payload) }

func Release(payload unsafe.Pointer) unsafe.Pointer { return Default.Release(payload) }

func IsUniquelyReferenced(payload unsafe.Pointer) bool { return Default.IsUniquelyReferenced(payload) }

func RetainCount(payload unsafe.Pointer) uint32 { return Default.RetainCount(payload) }
