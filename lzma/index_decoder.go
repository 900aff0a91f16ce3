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
#include <stdlib.h>
#include <lzma.h>

// The target pointer liblzma writes the decoded index into must have a
// stable address for the whole decode, so it lives in C memory.
lzma_index **go_xz_new_index_holder() {
	lzma_index **holder = malloc(sizeof(lzma_index *));
	if (holder != NULL) {
		*holder = NULL;
	}
	return holder;
}
*/
import "C"

import "unsafe"

// IndexDecoder decodes an XZ Index field into an Index instead of emitting
// bytes. The Index becomes available once the decoder reaches stream end.
type IndexDecoder struct {
	stream *Stream
	holder **C.lzma_index
	index  *Index
	alloc  *allocatorHandle
}

// IndexDecoder initializes s with the native index decoder.
func (s *Stream) IndexDecoder(memlimit uint64) (*IndexDecoder, error) {
	holder := C.go_xz_new_index_holder()
	if holder == nil {
		return nil, ErrMem
	}
	alloc := s.allocator()
	ret := Return(C.lzma_index_decoder(&s.strm, holder, C.uint64_t(memlimit)))
	if err := errorFor(ret); err != nil {
		C.free(unsafe.Pointer(holder))
		if alloc != nil {
			alloc.release()
		}
		return nil, err
	}
	return &IndexDecoder{stream: s, holder: holder, alloc: alloc}, nil
}

// Process feeds input to the index decoder and returns the number of bytes
// consumed. On terminal stream end the decoded index is captured and the
// stream is finalized.
func (d *IndexDecoder) Process(input []byte, action Action) (int, error) {
	if d.stream == nil {
		return 0, ErrProg
	}
	consumed, ret := indexLikeProcess(d.stream, input, action)

	switch ret {
	case Ok:
		return consumed, nil
	case StreamEnd:
		d.captureIndex()
		d.stream.end()
		d.stream = nil
		return consumed, nil
	default:
		return consumed, errorFor(ret)
	}
}

// Finished reports whether decoding has completed and the index is available.
func (d *IndexDecoder) Finished() bool {
	return d.stream == nil
}

// TotalIn returns the number of input bytes the native decoder has consumed.
func (d *IndexDecoder) TotalIn() uint64 {
	if d.stream == nil {
		return 0
	}
	return d.stream.totalIn()
}

// Index returns the decoded index, or nil while decoding has not finished.
// The caller is responsible for closing the returned Index.
func (d *IndexDecoder) Index() *Index {
	if !d.Finished() {
		return nil
	}
	return d.index
}

// Close releases the native state. A partially decoded index is freed with
// the allocator the stream was initialized with.
func (d *IndexDecoder) Close() error {
	d.freeHolder()
	if d.stream != nil {
		d.stream.end()
		d.stream = nil
	}
	if d.alloc != nil {
		d.alloc.release()
		d.alloc = nil
	}
	return nil
}

// captureIndex transfers ownership of the decoded native index from the
// holder into an Index wrapper.
func (d *IndexDecoder) captureIndex() {
	if d.holder == nil || *d.holder == nil {
		return
	}
	d.index = newIndex(*d.holder, d.stream.allocator())
	*d.holder = nil
}

func (d *IndexDecoder) freeHolder() {
	if d.holder == nil {
		return
	}
	if *d.holder != nil {
		var alloc *C.lzma_allocator
		if d.alloc != nil {
			alloc = d.alloc.vtable
		}
		C.lzma_index_end(*d.holder, alloc)
	}
	C.free(unsafe.Pointer(d.holder))
	d.holder = nil
}

// indexLikeProcess implements the shared Process shape of the index and
// file-info decoders, including their quirky empty-input finish contract:
// with no pending input, liblzma may need one extra call to reach stream end,
// and two consecutive no-progress calls are treated as a completed decode.
func indexLikeProcess(s *Stream, input []byte, action Action) (int, Return) {
	if len(input) > 0 {
		s.setInput(input)
	}

	inBefore := s.availIn()
	ret := s.code(action)
	consumed := inBefore - s.availIn()

	if action == Finish && ret == Ok && inBefore == 0 && consumed == 0 {
		second := s.code(action)
		secondConsumed := inBefore - s.availIn()
		if (second == Ok || second == BufError) && secondConsumed == 0 {
			return consumed, StreamEnd
		}
		consumed += secondConsumed
		return consumed, second
	}
	return consumed, ret
}
