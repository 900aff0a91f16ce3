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
#cgo !nopkgconfig pkg-config: liblzma

#include <stdlib.h>
#include <string.h>
#include <lzma.h>

// Alias the LZMA_STREAM_INIT macro.
lzma_stream go_xz_stream_init() {
	return (lzma_stream) LZMA_STREAM_INIT;
}

// lzma_code advances the window pointers. Once avail_* reaches zero the
// pointer is one past the end of the Go slice and must not survive the call,
// so null out exhausted references before returning to Go.
lzma_ret go_xz_code(lzma_stream *strm, lzma_action action) {
	lzma_ret ret = lzma_code(strm, action);
	if (strm->avail_out == 0) {
		strm->next_out = NULL;
	}
	if (strm->avail_in == 0) {
		strm->next_in = NULL;
	}
	return ret;
}

lzma_ret go_xz_encoder_mt(lzma_stream *strm, uint32_t preset, uint32_t check,
		uint32_t threads, uint64_t block_size, uint32_t timeout,
		const lzma_filter *filters) {
	lzma_mt mt;
	memset(&mt, 0, sizeof(mt));
	mt.preset = preset;
	mt.check = (lzma_check) check;
	mt.threads = threads;
	mt.block_size = block_size;
	mt.timeout = timeout;
	mt.filters = filters;
	return lzma_stream_encoder_mt(strm, &mt);
}

lzma_ret go_xz_decoder_mt(lzma_stream *strm, uint64_t memlimit,
		uint64_t memlimit_stop, uint32_t flags, uint32_t threads,
		uint32_t timeout) {
	lzma_mt mt;
	memset(&mt, 0, sizeof(mt));
	mt.flags = flags;
	mt.threads = threads;
	mt.timeout = timeout;
	mt.memlimit_threading = memlimit;
	mt.memlimit_stop = memlimit_stop;
	return lzma_stream_decoder_mt(strm, &mt);
}

// Exported from allocator.go.
extern void *goXzAlloc(void *opaque, size_t nmemb, size_t size);
extern void goXzFree(void *opaque, void *ptr);

// The allocator vtable handed to liblzma must keep a stable address for as
// long as the native side holds any allocation, so it lives in C memory.
lzma_allocator *go_xz_new_allocator(uintptr_t handle) {
	lzma_allocator *a = malloc(sizeof(lzma_allocator));
	if (a == NULL) {
		return NULL;
	}
	a->alloc = goXzAlloc;
	a->free = goXzFree;
	a->opaque = (void *) handle;
	return a;
}
*/
import "C"

import (
	"runtime"
	"unsafe"
)

// HeaderSize is the size in bytes of an XZ stream header and footer
// (LZMA_STREAM_HEADER_SIZE).
const HeaderSize = 12

// MemLimitUnbounded disables memory usage limiting.
const MemLimitUnbounded = ^uint64(0)

// Stream owns one native lzma_stream together with its optional pinned
// allocator. It is created uninitialized, initialized by exactly one coder
// constructor, mutated only through Process calls of that coder, and
// finalized exactly once.
type Stream struct {
	strm  C.lzma_stream
	alloc *allocatorHandle
	pin   runtime.Pinner
}

// NewStream returns an uninitialized stream using liblzma's own allocator.
func NewStream() *Stream {
	return &Stream{strm: C.go_xz_stream_init()}
}

// NewStreamWithAllocator returns an uninitialized stream whose native
// allocations are routed through a. The allocator stays pinned until the
// stream and every object allocated through it have been finalized.
func NewStreamWithAllocator(a Allocator) *Stream {
	s := &Stream{strm: C.go_xz_stream_init()}
	if a != nil {
		if handle := newAllocatorHandle(a); handle != nil {
			s.alloc = handle
			s.strm.allocator = s.alloc.vtable
		}
	}
	return s
}

// setInput updates the input window. An empty slice is distinct from not
// calling setInput at all: empty stores a null pointer, which some decoder
// paths check for at EOF, while not calling it leaves previously buffered
// bytes in place.
func (s *Stream) setInput(input []byte) {
	if len(input) == 0 {
		s.strm.next_in = nil
		s.strm.avail_in = 0
		return
	}
	s.strm.next_in = (*C.uint8_t)(unsafe.SliceData(input))
	s.strm.avail_in = C.size_t(len(input))
}

// setOutput updates the output window with the same empty-slice rule as
// setInput.
func (s *Stream) setOutput(output []byte) {
	if len(output) == 0 {
		s.strm.next_out = nil
		s.strm.avail_out = 0
		return
	}
	s.strm.next_out = (*C.uint8_t)(unsafe.SliceData(output))
	s.strm.avail_out = C.size_t(len(output))
}

func (s *Stream) availIn() int {
	return int(s.strm.avail_in)
}

func (s *Stream) availOut() int {
	return int(s.strm.avail_out)
}

func (s *Stream) totalIn() uint64 {
	return uint64(s.strm.total_in)
}

func (s *Stream) totalOut() uint64 {
	return uint64(s.strm.total_out)
}

// seekPos is the input position requested by the file-info decoder when
// go_xz_code returns SeekNeeded.
func (s *Stream) seekPos() uint64 {
	return uint64(s.strm.seek_pos)
}

// code runs one native coding step. The window slices set by the caller are
// pinned only for the duration of this call.
func (s *Stream) code(action Action) Return {
	if s.strm.next_in != nil {
		s.pin.Pin(s.strm.next_in)
	}
	if s.strm.next_out != nil {
		s.pin.Pin(s.strm.next_out)
	}
	defer s.pin.Unpin()

	return Return(C.go_xz_code(&s.strm, C.lzma_action(action)))
}

// end finalizes the native state and releases the stream's allocator pin.
// It must be called exactly once.
func (s *Stream) end() {
	if s.strm.next_in != nil {
		s.pin.Pin(s.strm.next_in)
	}
	if s.strm.next_out != nil {
		s.pin.Pin(s.strm.next_out)
	}
	C.lzma_end(&s.strm)
	s.pin.Unpin()
	s.strm.next_in = nil
	s.strm.next_out = nil
	if s.alloc != nil {
		s.alloc.release()
		s.alloc = nil
	}
}

// allocator returns the stream's allocator handle, retained once more for the
// new owner, or nil when the stream uses liblzma's default allocator.
func (s *Stream) allocator() *allocatorHandle {
	if s.alloc == nil {
		return nil
	}
	s.alloc.retain()
	return s.alloc
}
