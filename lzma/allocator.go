// Copyright 2025 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package lzma

/*
#include <stdint.h>
#include <stdlib.h>
#include <lzma.h>

// Defined in stream.go's preamble; this file carries cgo exports and may only
// declare C functions.
extern lzma_allocator *go_xz_new_allocator(uintptr_t handle);
*/
import "C"

import (
	"math"
	"runtime/cgo"
	"sync/atomic"
	"unsafe"
)

// Allocator supplies memory to liblzma. Alloc must return memory that is not
// managed by the Go runtime (typically C.malloc) and nil on failure; Free
// must accept any pointer previously returned by Alloc.
type Allocator interface {
	Alloc(nmemb, size uint) unsafe.Pointer
	Free(ptr unsafe.Pointer)
}

// MallocAllocator is the standard allocator backed by C malloc/free.
type MallocAllocator struct{}

func (MallocAllocator) Alloc(nmemb, size uint) unsafe.Pointer {
	return C.malloc(C.size_t(nmemb) * C.size_t(size))
}

func (MallocAllocator) Free(ptr unsafe.Pointer) {
	if ptr != nil {
		C.free(ptr)
	}
}

// allocatorHandle pins an Allocator for the native side. The vtable lives in
// C memory so its address never moves; the opaque pointer is a cgo.Handle to
// the Go allocator. The handle is reference counted because an Index can
// outlive the stream that produced it while both must free through the same
// allocator.
type allocatorHandle struct {
	vtable *C.lzma_allocator
	handle cgo.Handle
	refs   atomic.Int32
}

func newAllocatorHandle(a Allocator) *allocatorHandle {
	h := cgo.NewHandle(a)
	vtable := C.go_xz_new_allocator(C.uintptr_t(h))
	if vtable == nil {
		h.Delete()
		return nil
	}
	ah := &allocatorHandle{vtable: vtable, handle: h}
	ah.refs.Store(1)
	return ah
}

func (a *allocatorHandle) retain() {
	a.refs.Add(1)
}

func (a *allocatorHandle) release() {
	if a.refs.Add(-1) != 0 {
		return
	}
	C.free(unsafe.Pointer(a.vtable))
	a.vtable = nil
	a.handle.Delete()
}

//export goXzAlloc
func goXzAlloc(opaque unsafe.Pointer, nmemb, size C.size_t) unsafe.Pointer {
	if opaque == nil {
		return nil
	}
	// Reject zero-sized and overflowing requests before they reach the
	// user allocator.
	if nmemb == 0 || size == 0 || uint64(nmemb) > math.MaxUint64/uint64(size) {
		return nil
	}
	a, ok := cgo.Handle(uintptr(opaque)).Value().(Allocator)
	if !ok {
		return nil
	}
	return a.Alloc(uint(nmemb), uint(size))
}

//export goXzFree
func goXzFree(opaque, ptr unsafe.Pointer) {
	if opaque == nil || ptr == nil {
		return
	}
	if a, ok := cgo.Handle(uintptr(opaque)).Value().(Allocator); ok {
		a.Free(ptr)
	}
}
