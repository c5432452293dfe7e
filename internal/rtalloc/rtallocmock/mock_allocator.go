// Package rtallocmock holds a hand-maintained gomock double for
// rtalloc.Allocator, in the shape go.uber.org/mock/mockgen would generate
// for the interface in internal/rtalloc/alloc.go. The teacher lists
// go.uber.org/mock only as an unused indirect dependency (its
// cmd/orizon-mockgen uses its own generator, not gomock); this is the one
// place in the runtime library where mocking the allocator collaborator
// (spec §4.1) is useful, so the dependency gets a real consumer here.
package rtallocmock

import (
	"reflect"
	"unsafe"

	"go.uber.org/mock/gomock"
)

// MockAllocator is a mock of the rtalloc.Allocator interface.
type MockAllocator struct {
	ctrl     *gomock.Controller
	recorder *MockAllocatorMockRecorder
}

// MockAllocatorMockRecorder is the mock recorder for MockAllocator.
type MockAllocatorMockRecorder struct {
	mock *MockAllocator
}

// NewMockAllocator creates a new mock instance.
func NewMockAllocator(ctrl *gomock.Controller) *MockAllocator {
	mock := &MockAllocator{ctrl: ctrl}
	mock.recorder = &MockAllocatorMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockAllocator) EXPECT() *MockAllocatorMockRecorder {
	return m.recorder
}

// Alloc mocks base method.
func (m *MockAllocator) Alloc(size uintptr) unsafe.Pointer {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Alloc", size)
	ret0, _ := ret[0].(unsafe.Pointer)
	return ret0
}

// Alloc indicates an expected call of Alloc.
func (mr *MockAllocatorMockRecorder) Alloc(size interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Alloc", reflect.TypeOf((*MockAllocator)(nil).Alloc), size)
}

// Free mocks base method.
func (m *MockAllocator) Free(ptr unsafe.Pointer) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Free", ptr)
}

// Free indicates an expected call of Free.
func (mr *MockAllocatorMockRecorder) Free(ptr interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Free", reflect.TypeOf((*MockAllocator)(nil).Free), ptr)
}
