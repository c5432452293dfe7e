// Package any implements the reflective boxed-value subsystem (spec §3,
// §4.4): a heap-allocated, self-describing value container built on top
// of the metadata model. It performs value-vs-reference copy semantics,
// bit-exact field offsetting against compiler-emitted layout tables,
// pointer-identity type equality, and nil detection, using only a
// pointer-to-payload handed to and from generated code.
package any

import (
	"unsafe"

	"github.com/orizon-lang/orizon-runtime/internal/metadata"
	"github.com/orizon-lang/orizon-runtime/internal/rtalloc"
)

// header is the AnyBox heap record (spec §3): a type descriptor followed
// immediately by an inline payload of type.SizeInBytes bytes. Unlike
// arc.box, an AnyBox is never freed by this engine (spec §9): the current
// contract accepts the leak, the same way the teacher's
// internal/allocator/runtime.go AllocString accepts never reclaiming
// pool-cached strings.
type header struct {
	typ *metadata.Type
}

const headerSize = unsafe.Sizeof(header{})

// Box is an opaque handle to an AnyBox. Its only state is the pointer to
// the heap record; Go code never dereferences it directly, mirroring the
// ABI's single-pointer-struct convention (spec §6).
type Box struct {
	ptr unsafe.Pointer
}

func newBox(ptr unsafe.Pointer) Box { return Box{ptr: ptr} }

func (b Box) header() *header { return (*header)(b.ptr) }

func (b Box) payload() unsafe.Pointer {
	return unsafe.Pointer(uintptr(b.ptr) + headerSize)
}

// IsValid reports whether b wraps a non-nil AnyBox pointer.
func (b Box) IsValid() bool { return b.ptr != nil }

// Engine bundles the allocator collaborator an Any instance is built on,
// the same shape as arc.Engine.
type Engine struct {
	Alloc rtalloc.Allocator
}

// Default is the process-wide Any engine used by the package-level
// convenience functions and the ABI bridge.
var Default = &Engine{Alloc: rtalloc.Default}

// Allocate allocates sizeof(header)+typ.SizeInBytes bytes, sets the
// header's type descriptor, and leaves the payload uninitialized. The
// caller initializes the value through ValuePtr.
func (e *Engine) Allocate(typ *metadata.Type) Box {
	raw := e.Alloc.Alloc(headerSize + typ.SizeInBytes)

	h := (*header)(raw)
	h.typ = typ

	return newBox(raw)
}

// ValuePtr returns the payload address with no type checking.
func (e *Engine) ValuePtr(b Box) unsafe.Pointer {
	return b.payload()
}

// TypeOf returns the type descriptor stored in b's header.
func (e *Engine) TypeOf(b Box) *metadata.Type {
	return b.header().typ
}

// Copy implements copy_any (spec §4.4): for a reference type, the same
// AnyBox is returned unchanged — the retain count is not touched by this
// call (spec §9 open question 3 preserves that as the existing
// non-retaining contract). For a value type, a new AnyBox of the same
// type is allocated and the payload bytes are copied.
func (e *Engine) Copy(b Box) Box {
	typ := e.TypeOf(b)

	if typ.IsReferenceType {
		return b
	}

	dst := e.Allocate(typ)
	if typ.SizeInBytes > 0 {
		copyBytes(dst.payload(), b.payload(), typ.SizeInBytes)
	}

	return dst
}

// FieldValuePtr implements get_any_field_value_ptr (spec §4.4). If the
// declared type is a reference type, the payload is dereferenced once
// (it holds a pointer to a RefCountBox payload) before the field offset
// is added; a null stored pointer is fatal (spec §7 item 6). Otherwise
// the offset is added directly to the payload address. An out-of-range
// index is fatal via metadata.Type.FieldAt.
func (e *Engine) FieldValuePtr(b Box, index int) unsafe.Pointer {
	typ := e.TypeOf(b)
	field := typ.FieldAt(index)

	base := b.payload()

	if typ.IsReferenceType {
		indirect := *(*unsafe.Pointer)(base)
		if indirect == nil {
			rtalloc.Fatal("any: field access through null reference-type payload")
			return nil // unreachable
		}
		base = indirect
	}

	return unsafe.Pointer(uintptr(base) + field.Offset)
}

// ExtractField implements extract_any_field (spec §4.4): allocates a new
// AnyBox whose type is field i's declared type and copies
// field.Type.SizeInBytes bytes from the source field into the new
// payload. The result is always an independent Any, even for
// reference-typed fields — only the stored pointer is copied, not the
// pointee, matching FieldValuePtr's non-retaining semantics.
func (e *Engine) ExtractField(b Box, index int) Box {
	typ := e.TypeOf(b)
	field := typ.FieldAt(index)

	src := e.FieldValuePtr(b, index)

	dst := e.Allocate(field.Type)
	if field.Type.SizeInBytes > 0 {
		copyBytes(dst.payload(), src, field.Type.SizeInBytes)
	}

	return dst
}

// UpdateField implements update_any (spec §4.4): type-checks newValue's
// declared type against field i's declared type by descriptor pointer
// equality, fataling on mismatch (spec §7 item 5), then copies
// newValue.SizeInBytes bytes from newValue's payload into the
// destination field.
func (e *Engine) UpdateField(b Box, index int, newValue Box) {
	typ := e.TypeOf(b)
	field := typ.FieldAt(index)
	newType := e.TypeOf(newValue)

	if !metadata.Equal(newType, field.Type) {
		fatalCastError(newType, field.Type)
		return // unreachable
	}

	dst := e.FieldValuePtr(b, index)
	if newType.SizeInBytes > 0 {
		copyBytes(dst, newValue.payload(), newType.SizeInBytes)
	}
}

// CheckType implements check_types (spec §4.4): pointer equality between
// b's declared type and typ.
func (e *Engine) CheckType(b Box, typ *metadata.Type) bool {
	return metadata.Equal(e.TypeOf(b), typ)
}

// CheckedCast implements checked_cast (spec §4.4): returns ValuePtr(b) if
// CheckType holds, otherwise fatals naming both type names (spec §7
// item 5).
func (e *Engine) CheckedCast(b Box, typ *metadata.Type) unsafe.Pointer {
	if !e.CheckType(b, typ) {
		fatalCastError(e.TypeOf(b), typ)
		return nil // unreachable
	}

	return e.ValuePtr(b)
}

// IsNil implements any_is_nil (spec §4.4, §9 open question 1). As
// written in the source this spec is distilled from, the condition reads
// "false unless pointer_level == 0" — i.e. non-pointer types are treated
// as the nil-checkable ones and pointer types always report non-nil. That
// polarity is preserved here rather than "corrected" against the
// documented intent, per the open question's own instruction not to
// guess: for a type with PointerLevel >= 1, IsNil always returns false;
// for PointerLevel == 0, it returns true iff the first machine word of
// the payload is the zero bit pattern.
func (e *Engine) IsNil(b Box) bool {
	typ := e.TypeOf(b)
	if typ.PointerLevel != 0 {
		return false
	}

	word := *(*uintptr)(b.payload())
	return word == 0
}

func copyBytes(dst, src unsafe.Pointer, n uintptr) {
	dstSlice := unsafe.Slice((*byte)(dst), n)
	srcSlice := unsafe.Slice((*byte)(src), n)
	copy(dstSlice, srcSlice)
}

// Package-level convenience wrappers over Default.

func Allocate(typ *metadata.Type) Box { return Default.Allocate(typ) }
func ValuePtr(b Box) unsafe.Pointer   { return Default.ValuePtr(b) }
func TypeOf(b Box) *metadata.Type     { return Default.TypeOf(b) }
func Copy(b Box) Box                  { return Default.Copy(b) }
func FieldValuePtr(b Box, index int) unsafe.Pointer { return Default.FieldValuePtr(b, index) }
func ExtractField(b Box, index int) Box             { return Default.ExtractField(b, index) }
func UpdateField(b Box, index int, newValue Box)    { Default.UpdateField(b, index, newValue) }
func CheckType(b Box, typ *metadata.Type) bool      { return Default.CheckType(b, typ) }
func CheckedCast(b Box, typ *metadata.Type) unsafe.Pointer {
	return Default.CheckedCast(b, typ)
}
func IsNil(b Box) bool { return Default.IsNil(b) }
