// Command orizon-runtime-smoke exercises the ARC and Any engines end to
// end, the way the teacher's cmd/orizon-smoke-test drives a compiled
// program's toolchain through a scripted scenario rather than unit tests.
package main

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/orizon-lang/orizon-runtime/internal/any"
	"github.com/orizon-lang/orizon-runtime/internal/arc"
	"github.com/orizon-lang/orizon-runtime/internal/metadata"
)

func main() {
	runARCDemo()
	runAnyDemo()
	fmt.Println("orizon-runtime-smoke: all scenarios passed")
}

func runARCDemo() {
	released := false

	p := arc.AllocateIndirect(16, func(payload unsafe.Pointer) {
		released = true
	})
	arc.Retain(p)

	if !arc.IsUniquelyReferenced(p) {
		fail("expected a freshly retained box to be uniquely referenced")
	}

	arc.Retain(p)
	if arc.IsUniquelyReferenced(p) {
		fail("expected a doubly retained box to not be unique")
	}

	arc.Release(p)
	arc.Release(p)

	if !released {
		fail("expected deinit to run after the final release")
	}
}

func runAnyDemo() {
	int32Type := &metadata.Type{Name: "Int32", SizeInBytes: 4}
	pairType := &metadata.Type{
		Name:        "Pair",
		SizeInBytes: 8,
		Fields: []metadata.Field{
			{Name: "x", Type: int32Type, Offset: 0},
			{Name: "y", Type: int32Type, Offset: 4},
		},
	}

	a := any.Allocate(pairType)
	*(*int32)(any.FieldValuePtr(a, 0)) = 7
	*(*int32)(any.FieldValuePtr(a, 1)) = 11

	y := any.ExtractField(a, 1)
	if *(*int32)(any.ValuePtr(y)) != 11 {
		fail("extract_field(1) did not round-trip")
	}

	if any.CheckedCast(a, pairType) != any.ValuePtr(a) {
		fail("checked_cast with matching type must return value_ptr")
	}
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "smoke test failed:", msg)
	os.Exit(1)
}
