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

extern lzma_index **go_xz_new_index_holder();
*/
import "C"

import "unsafe"

// FileInfoDecoder builds a combined index for a complete .xz file by reading
// stream headers, footers, index fields and padding, without touching the
// compressed payload. It may request the application to seek: Process then
// returns ErrSeekNeeded and SeekPos reports the target position.
type FileInfoDecoder struct {
	stream   *Stream
	holder   **C.lzma_index
	index    *Index
	fileSize uint64
	alloc    *allocatorHandle
}

// FileInfoDecoder initializes s with the native file-info decoder. fileSize
// must be the total size of the input file; liblzma never requests a seek
// past it.
func (s *Stream) FileInfoDecoder(memlimit, fileSize uint64) (*FileInfoDecoder, error) {
	holder := C.go_xz_new_index_holder()
	if holder == nil {
		return nil, ErrMem
	}
	alloc := s.allocator()
	ret := Return(C.lzma_file_info_decoder(
		&s.strm, holder, C.uint64_t(memlimit), C.uint64_t(fileSize)))
	if err := errorFor(ret); err != nil {
		C.free(unsafe.Pointer(holder))
		if alloc != nil {
			alloc.release()
		}
		return nil, err
	}
	return &FileInfoDecoder{
		stream:   s,
		holder:   holder,
		fileSize: fileSize,
		alloc:    alloc,
	}, nil
}

// Process feeds input to the decoder and returns the number of bytes
// consumed. ErrSeekNeeded is not a failure: the caller must seek its reader
// to SeekPos and resume with fresh input.
func (d *FileInfoDecoder) Process(input []byte, action Action) (int, error) {
	if d.stream == nil {
		return 0, ErrProg
	}
	consumed, ret := indexLikeProcess(d.stream, input, action)

	switch ret {
	case Ok:
		return consumed, nil
	case SeekNeeded:
		return consumed, ErrSeekNeeded
	case StreamEnd:
		d.captureIndex()
		d.stream.end()
		d.stream = nil
		return consumed, nil
	default:
		return consumed, errorFor(ret)
	}
}

// SeekPos returns the input position requested by the decoder. It is
// meaningful after Process returned ErrSeekNeeded.
func (d *FileInfoDecoder) SeekPos() uint64 {
	if d.stream == nil {
		return 0
	}
	return d.stream.seekPos()
}

// Finished reports whether decoding has completed and the index is available.
func (d *FileInfoDecoder) Finished() bool {
	return d.stream == nil
}

// TotalIn returns the number of input bytes the native decoder has consumed.
func (d *FileInfoDecoder) TotalIn() uint64 {
	if d.stream == nil {
		return 0
	}
	return d.stream.totalIn()
}

// FileSize returns the input file size the decoder was constructed with.
func (d *FileInfoDecoder) FileSize() uint64 {
	return d.fileSize
}

// Index returns the decoded index, or nil while decoding has not finished.
// The caller is responsible for closing the returned Index.
func (d *FileInfoDecoder) Index() *Index {
	if !d.Finished() {
		return nil
	}
	return d.index
}

// Close releases the native state. A partially decoded index is freed with
// the allocator the stream was initialized with.
func (d *FileInfoDecoder) Close() error {
	if d.holder != nil {
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

func (d *FileInfoDecoder) captureIndex() {
	if d.holder == nil || *d.holder == nil {
		return
	}
	d.index = newIndex(*d.holder, d.stream.allocator())
	*d.holder = nil
}
