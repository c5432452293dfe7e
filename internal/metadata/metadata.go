// Package metadata holds the read-only type-layout records the compiler
// emits: TypeMetadata and FieldMetadata (spec §3, §4.3). These are pure
// data, owned by the binary's static section, and are queried by plain
// accessor calls from the Any engine and the ABI bridge — never mutated
// at runtime.
package metadata

import "github.com/orizon-lang/orizon-runtime/internal/rtalloc"

// Type describes the layout of a single type as emitted by the compiler.
// Identity is by pointer: the compiler emits exactly one *Type per type,
// and runtime type equality (check_type, checked_cast) is pointer equality
// on these descriptors — an O(1) check that avoids string comparison,
// modeled on the teacher's TypeInfo record in
// internal/runtime/region_alloc.go.
type Type struct {
	Name string
	// SizeInBytes is the byte-addressable size used for pointer
	// arithmetic and memcpy. The field is named SizeInBytes rather than
	// the spec's "size_in_bits" because the source field is consistently
	// used as a byte count (spec §9 open question 2): this runtime
	// documents the real unit instead of propagating the misnomer.
	SizeInBytes uintptr
	Fields      []Field
	// IsReferenceType is true iff values of this type are stored
	// indirectly, as a pointer to a RefCountBox payload.
	IsReferenceType bool
	// PointerLevel is the number of pointer indirections: 0 for
	// non-pointer types, >=1 for pointer types.
	PointerLevel uint
}

// Field describes one field of a containing Type.
type Field struct {
	Name string
	Type *Type
	// Offset is the byte offset of the field from the start of the
	// containing value (not from the RefCountBox header — callers that
	// need the indirection dereference first; see internal/any).
	Offset uintptr
}

// FieldCount reports how many fields t declares. Zero for primitive or
// opaque types.
func (t *Type) FieldCount() int {
	return len(t.Fields)
}

// FieldAt returns the FieldMetadata for index i, fataling with a message
// naming the containing type, the bad index, and the field count if i is
// out of range (spec §4.3, §7 item 4). This is the only non-trivial
// metadata operation; every other accessor is a direct field load.
func (t *Type) FieldAt(i int) *Field {
	if i < 0 || i >= len(t.Fields) {
		rtalloc.Fatalf("metadata: field index %d out of bounds for type %q (has %d fields)",
			i, t.Name, len(t.Fields))
		return nil // unreachable
	}

	return &t.Fields[i]
}

// Equal reports whether two type descriptors are the same type, by
// descriptor pointer identity — the ABI's definition of dynamic type
// equality (spec §3, §4.4 check_type).
func Equal(a, b *Type) bool {
	return a == b
}
