// Package abi is the C-ABI function surface generated code links against
// (spec §6). These names and signatures are part of the binary interface
// and must be preserved bit-exactly: the payload-address addressing
// convention, the single-pointer Any struct, and the field order of
// TypeMetadata/FieldMetadata. The //export comments follow the same
// convention as the teacher's internal/runtime/kernel/bridge.go, which
// exposes kernel services to compiled Orizon programs the same way.
package abi

import (
	"unsafe"

	"github.com/orizon-lang/orizon-runtime/internal/any"
	"github.com/orizon-lang/orizon-runtime/internal/arc"
	"github.com/orizon-lang/orizon-runtime/internal/metadata"
)

// ============================================================================
// ARC surface
// ============================================================================

//export allocate_indirect_type
func allocate_indirect_type(size uintptr, deinit arc.Deinit) unsafe.Pointer {
	return arc.AllocateIndirect(size, deinit)
}

//export retain
func retain(payload unsafe.Pointer) unsafe.Pointer {
	return arc.Retain(payload)
}

//export release
func release(payload unsafe.Pointer) unsafe.Pointer {
	return arc.Release(payload)
}

//export is_unique
func is_unique(payload unsafe.Pointer) uint8 {
	if arc.IsUniquelyReferenced(payload) {
		return 1
	}
	return 0
}

// ============================================================================
// Metadata accessors — one per field documented in spec §3, plus
// field-by-index lookup.
// ============================================================================

//export type_metadata_name
func type_metadata_name(t *metadata.Type) string { return t.Name }

//export type_metadata_size
func type_metadata_size(t *metadata.Type) uintptr { return t.SizeInBytes }

//export type_metadata_field_count
func type_metadata_field_count(t *metadata.Type) int { return t.FieldCount() }

//export type_metadata_is_reference_type
func type_metadata_is_reference_type(t *metadata.Type) uint8 {
	if t.IsReferenceType {
		return 1
	}
	return 0
}

//export type_metadata_pointer_level
func type_metadata_pointer_level(t *metadata.Type) uint { return t.PointerLevel }

//export type_metadata_field_at
func type_metadata_field_at(t *metadata.Type, index int) *metadata.Field {
	return t.FieldAt(index)
}

//export field_metadata_name
func field_metadata_name(f *metadata.Field) string { return f.Name }

//export field_metadata_type
func field_metadata_type(f *metadata.Field) *metadata.Type { return f.Type }

//export field_metadata_offset
func field_metadata_offset(f *metadata.Field) uintptr { return f.Offset }

// ============================================================================
// Any surface
// ============================================================================

// AnyHandle is the single-pointer struct Any values are passed across the
// ABI as (spec §6); functions returning Any return this struct by value.
type AnyHandle struct {
	box any.Box
}

//export allocate_any
func allocate_any(t *metadata.Type) AnyHandle {
	return AnyHandle{box: any.Allocate(t)}
}

//export copy_any
func copy_any(h AnyHandle) AnyHandle {
	return AnyHandle{box: any.Copy(h.box)}
}

//export get_any_value_ptr
func get_any_value_ptr(h AnyHandle) unsafe.Pointer {
	return any.ValuePtr(h.box)
}

//export get_any_field_value_ptr
func get_any_field_value_ptr(h AnyHandle, index int) unsafe.Pointer {
	return any.FieldValuePtr(h.box, index)
}

//export extract_any_field
func extract_any_field(h AnyHandle, index int) AnyHandle {
	return AnyHandle{box: any.ExtractField(h.box, index)}
}

//export update_any
func update_any(h AnyHandle, index int, newValue AnyHandle) {
	any.UpdateField(h.box, index, newValue.box)
}

//export get_any_type_metadata
func get_any_type_metadata(h AnyHandle) *metadata.Type {
	return any.TypeOf(h.box)
}

//export check_types
func check_types(h AnyHandle, t *metadata.Type) uint8 {
	if any.CheckType(h.box, t) {
		return 1
	}
	return 0
}

//export checked_cast
func checked_cast(h AnyHandle, t *metadata.Type) unsafe.Pointer {
	return any.CheckedCast(h.box, t)
}

//export any_is_nil
func any_is_nil(h AnyHandle) uint8 {
	if any.IsNil(h.box) {
		return 1
	}
	return 0
}
