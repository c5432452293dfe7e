package rtalloc

import (
	"testing"
	"unsafe"
)

func TestDefaultAllocatorBasic(t *testing.T) {
	ptr := Default.Alloc(64)
	if ptr == nil {
		t.Fatal("Alloc(64) returned nil")
	}

	data := (*[64]byte)(ptr)
	for i := range data {
		data[i] = byte(i)
	}
	for i := range data {
		if data[i] != byte(i) {
			t.Fatalf("data corruption at index %d", i)
		}
	}

	Default.Free(ptr)
}

func TestDefaultAllocatorZeroSize(t *testing.T) {
	ptr := Default.Alloc(0)
	if ptr == nil {
		t.Fatal("Alloc(0) must still return a usable, non-nil pointer")
	}
	Default.Free(ptr)
}

func TestFreeUnownedPointerFatals(t *testing.T) {
	var recordedMsg string

	prev := SetSink(sinkFunc(func(v Violation) {
		recordedMsg = v.Message
		panic("fatal")
	}))
	defer SetSink(prev)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected Free of an unowned pointer to be fatal")
		}
		if recordedMsg == "" {
			t.Fatal("expected a fatal message to be recorded")
		}
	}()

	var x byte
	Default.Free(unsafe.Pointer(&x))
}

type sinkFunc func(Violation)

func (f sinkFunc) Handle(v Violation) { f(v) }
