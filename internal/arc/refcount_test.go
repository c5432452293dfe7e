package arc

import (
	"sync/atomic"
	"testing"
	"unsafe"

	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"

	"github.com/orizon-lang/orizon-runtime/internal/rtalloc"
	"github.com/orizon-lang/orizon-runtime/internal/rtalloc/rtallocmock"
)

// newTestEngine returns an Engine backed by the real default allocator,
// so lifecycle tests exercise real memory instead of a mock.
func newTestEngine() *Engine {
	return &Engine{Alloc: rtalloc.Default}
}

// S1: allocate indirect of size 8, deinit records the payload address;
// retain; release; release. deinit must run exactly once, with the
// original payload address.
func TestLifecycleInvokesDeinitExactlyOnce(t *testing.T) {
	e := newTestEngine()

	var calls int
	var recorded unsafe.Pointer

	p := e.AllocateIndirect(8, func(payload unsafe.Pointer) {
		calls++
		recorded = payload
	})

	e.Retain(p)
	e.Release(p)
	e.Release(p)

	if calls != 1 {
		t.Fatalf("deinit called %d times, want 1", calls)
	}
	if recorded != p {
		t.Fatalf("deinit received %p, want original payload %p", recorded, p)
	}
}

func TestLifecycleBalancedNRetainsNReleases(t *testing.T) {
	for n := 1; n <= 5; n++ {
		n := n
		t.Run("", func(t *testing.T) {
			e := newTestEngine()
			var calls int

			p := e.AllocateIndirect(8, func(unsafe.Pointer) { calls++ })
			e.Retain(p) // ownership transfer retain

			for i := 0; i < n-1; i++ {
				e.Retain(p)
			}
			for i := 0; i < n; i++ {
				e.Release(p)
			}

			if calls != 1 {
				t.Fatalf("n=%d: deinit called %d times, want 1", n, calls)
			}
		})
	}
}

func TestUniqueReference(t *testing.T) {
	e := newTestEngine()
	p := e.AllocateIndirect(8, nil)
	e.Retain(p)

	if !e.IsUniquelyReferenced(p) {
		t.Fatal("expected unique after single owning retain")
	}

	e.Retain(p)
	if e.IsUniquelyReferenced(p) {
		t.Fatal("expected non-unique after additional retain")
	}

	e.Release(p)
	if !e.IsUniquelyReferenced(p) {
		t.Fatal("expected unique again after matching release")
	}

	e.Release(p)
}

func TestOverflowFatals(t *testing.T) {
	e := newTestEngine()
	p := e.AllocateIndirect(8, nil)
	e.Retain(p)

	// Force the counter to the brink without doing 4 billion real retains.
	headerOf(p).retainCount = ^uint32(0)

	expectFatal(t, func() {
		e.Retain(p)
	})
}

func TestReleaseBelowZeroFatals(t *testing.T) {
	e := newTestEngine()
	p := e.AllocateIndirect(8, nil)
	e.Retain(p)
	e.Release(p) // drops to 0, frees the box

	// p is now dangling; re-derive a fresh box instead of touching freed
	// memory so the test exercises the check, not undefined behavior.
	p2 := e.AllocateIndirect(8, nil)
	expectFatal(t, func() {
		e.Release(p2) // count is 0, never retained
	})
}

func TestNullTolerance(t *testing.T) {
	e := newTestEngine()

	if e.Retain(nil) != nil {
		t.Fatal("Retain(nil) must return nil")
	}
	if e.Release(nil) != nil {
		t.Fatal("Release(nil) must return nil")
	}
	if !e.IsUniquelyReferenced(nil) {
		t.Fatal("IsUniquelyReferenced(nil) must be true")
	}
}

// S2: many goroutines each retain then release in a loop; the final
// release on the calling goroutine must still trigger deinit exactly
// once. errgroup.Group drives the fan-out instead of a hand-rolled
// sync.WaitGroup, following the pack's use of golang.org/x/sync for
// structured concurrent fan-out.
func TestConcurrentRetainReleaseStress(t *testing.T) {
	const goroutines = 200
	const iterations = 500

	e := newTestEngine()

	var deinitCalls int32
	p := e.AllocateIndirect(8, func(unsafe.Pointer) {
		atomic.AddInt32(&deinitCalls, 1)
	})
	e.Retain(p) // main goroutine's ownership

	var g errgroup.Group
	for i := 0; i < goroutines; i++ {
		g.Go(func() error {
			for j := 0; j < iterations; j++ {
				e.Retain(p)
				e.Release(p)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if atomic.LoadInt32(&deinitCalls) != 0 {
		t.Fatalf("deinit ran before main release, count=%d", deinitCalls)
	}

	e.Release(p)

	if atomic.LoadInt32(&deinitCalls) != 1 {
		t.Fatalf("deinit called %d times after final release, want 1", deinitCalls)
	}
}

// Verifies the header-prefix addressing convention: AllocateIndirect must
// request exactly headerSize+size bytes from the allocator collaborator,
// never more or less, since the payload address is computed as a fixed
// offset from the allocation start.
func TestAllocateIndirectRequestsExactSize(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAlloc := rtallocmock.NewMockAllocator(ctrl)

	backing := make([]byte, headerSize+16)
	raw := unsafe.Pointer(&backing[0])

	mockAlloc.EXPECT().Alloc(headerSize + 16).Return(raw)

	e := &Engine{Alloc: mockAlloc}
	p := e.AllocateIndirect(16, nil)

	if uintptr(p)-uintptr(raw) != headerSize {
		t.Fatalf("payload offset = %d, want %d", uintptr(p)-uintptr(raw), headerSize)
	}
}

// expectFatal asserts that fn triggers rtalloc.Fatal exactly once.
func expectFatal(t *testing.T, fn func()) {
	t.Helper()

	var fataled bool
	prev := rtalloc.SetSink(fatalSinkFunc(func(rtalloc.Violation) {
		fataled = true
		panic("fatal")
	}))
	defer rtalloc.SetSink(prev)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a fatal violation, none occurred")
		}
		if !fataled {
			t.Fatal("recovered panic was not our fatal sentinel")
		}
	}()

	fn()
}

type fatalSinkFunc func(rtalloc.Violation)

func (f fatalSinkFunc) Handle(v rtalloc.Violation) { f(v) }
