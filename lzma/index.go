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
#include <string.h>
#include <lzma.h>
*/
import "C"

import (
	"unsafe"

	"github.com/pkg/errors"
)

// vliUnknown is liblzma's LZMA_VLI_UNKNOWN marker.
const vliUnknown = ^uint64(0)

// Index is an owned handle to a native lzma_index describing the streams and
// blocks of an .xz file. It must be freed through the same allocator that
// created it, which the handle carries along.
type Index struct {
	ptr   *C.lzma_index
	alloc *allocatorHandle
}

// newIndex wraps a native index pointer, taking ownership. Returns nil for a
// null pointer.
func newIndex(ptr *C.lzma_index, alloc *allocatorHandle) *Index {
	if ptr == nil {
		if alloc != nil {
			alloc.release()
		}
		return nil
	}
	return &Index{ptr: ptr, alloc: alloc}
}

func (i *Index) cAllocator() *C.lzma_allocator {
	if i.alloc == nil {
		return nil
	}
	return i.alloc.vtable
}

// StreamCount returns the number of streams recorded in the index.
func (i *Index) StreamCount() uint64 {
	if i.ptr == nil {
		return 0
	}
	return uint64(C.lzma_index_stream_count(i.ptr))
}

// BlockCount returns the number of blocks recorded in the index.
func (i *Index) BlockCount() uint64 {
	if i.ptr == nil {
		return 0
	}
	return uint64(C.lzma_index_block_count(i.ptr))
}

// FileSize returns the total compressed size of the file described by the
// index, including headers and padding.
func (i *Index) FileSize() uint64 {
	if i.ptr == nil {
		return 0
	}
	return uint64(C.lzma_index_file_size(i.ptr))
}

// UncompressedSize returns the total uncompressed size recorded in the index.
func (i *Index) UncompressedSize() uint64 {
	if i.ptr == nil {
		return 0
	}
	return uint64(C.lzma_index_uncompressed_size(i.ptr))
}

// StreamSize returns the total size of the stream represented by the index.
func (i *Index) StreamSize() uint64 {
	if i.ptr == nil {
		return 0
	}
	return uint64(C.lzma_index_stream_size(i.ptr))
}

// Checks returns a bitmask with bit id set for every integrity check id seen
// in the index.
func (i *Index) Checks() uint32 {
	if i.ptr == nil {
		return 0
	}
	return uint32(C.lzma_index_checks(i.ptr))
}

// DecodeIndexField decodes an XZ Index field, as stored inside a stream, into
// an Index. The field must be passed exactly: trailing bytes are a data
// error.
func DecodeIndexField(field []byte, memlimit uint64) (*Index, error) {
	if len(field) == 0 {
		return nil, ErrData
	}

	var ptr *C.lzma_index
	limit := C.uint64_t(memlimit)
	var pos C.size_t

	ret := Return(C.lzma_index_buffer_decode(
		&ptr,
		&limit,
		nil,
		(*C.uint8_t)(unsafe.SliceData(field)),
		&pos,
		C.size_t(len(field)),
	))
	if err := errorFor(ret); err != nil {
		return nil, err
	}
	if int(pos) != len(field) {
		C.lzma_index_end(ptr, nil)
		return nil, ErrData
	}
	return newIndex(ptr, nil), nil
}

// SetStreamFlagsFromFooter decodes an XZ stream footer and attaches the
// resulting flags to the last stream of the index. Without this, Checks
// cannot report which integrity check the stream used.
func (i *Index) SetStreamFlagsFromFooter(footer []byte) error {
	flags, err := DecodeFooterFlags(footer)
	if err != nil {
		return err
	}
	raw := flags.toRaw()
	return errorFor(Return(C.lzma_index_stream_flags(i.ptr, &raw)))
}

// SetStreamPadding records the padding that follows the last stream of the
// index.
func (i *Index) SetStreamPadding(padding uint64) error {
	return errorFor(Return(C.lzma_index_stream_padding(i.ptr, C.lzma_vli(padding))))
}

// Append concatenates other after i, merging its stream records. On success
// ownership of other transfers into i and other becomes unusable; on failure
// other is left intact.
func (i *Index) Append(other *Index) error {
	if other == nil || other.ptr == nil {
		return ErrProg
	}
	ret := Return(C.lzma_index_cat(i.ptr, other.ptr, i.cAllocator()))
	if err := errorFor(ret); err != nil {
		return err
	}
	// The native side now owns the source allocation.
	other.ptr = nil
	if other.alloc != nil {
		other.alloc.release()
		other.alloc = nil
	}
	return nil
}

// Close frees the native index. It is idempotent; accessors on a closed
// Index return zero values.
func (i *Index) Close() error {
	if i.ptr != nil {
		C.lzma_index_end(i.ptr, i.cAllocator())
		i.ptr = nil
	}
	if i.alloc != nil {
		i.alloc.release()
		i.alloc = nil
	}
	return nil
}

// IterMode selects which entries an IndexIter visits. The values match
// lzma_index_iter_mode.
type IterMode int

const (
	IterAny IterMode = iota
	IterStream
	IterBlock
	IterNonEmptyBlock
)

// IndexIter walks the entries of an Index in file order (stream-major, then
// block). Iterators borrow the Index and must not outlive it.
type IndexIter struct {
	inner C.lzma_index_iter
	mode  IterMode
	index *Index
}

// Iter returns an iterator over the index in the given mode. The native
// iterator scratch area is zero-initialized before the init call.
func (i *Index) Iter(mode IterMode) *IndexIter {
	it := &IndexIter{mode: mode, index: i}
	C.memset(unsafe.Pointer(&it.inner), 0, C.sizeof_lzma_index_iter)
	C.lzma_index_iter_init(&it.inner, i.ptr)
	return it
}

// Streams returns an iterator over stream entries.
func (i *Index) Streams() *IndexIter {
	return i.Iter(IterStream)
}

// Blocks returns an iterator over block entries.
func (i *Index) Blocks() *IndexIter {
	return i.Iter(IterBlock)
}

// Next advances the iterator. It returns false once all entries in the
// selected mode have been visited.
func (it *IndexIter) Next() bool {
	return C.lzma_index_iter_next(&it.inner, C.lzma_index_iter_mode(it.mode)) == 0
}

// Stream returns the current stream entry.
func (it *IndexIter) Stream() StreamInfo {
	return StreamInfo{
		Number:             uint64(it.inner.stream.number),
		BlockCount:         uint64(it.inner.stream.block_count),
		CompressedOffset:   uint64(it.inner.stream.compressed_offset),
		UncompressedOffset: uint64(it.inner.stream.uncompressed_offset),
		CompressedSize:     uint64(it.inner.stream.compressed_size),
		UncompressedSize:   uint64(it.inner.stream.uncompressed_size),
		Padding:            uint64(it.inner.stream.padding),
		Flags:              streamFlagsFromRaw(it.inner.stream.flags),
	}
}

// Block returns the current block entry.
func (it *IndexIter) Block() BlockInfo {
	return BlockInfo{
		NumberInStream:       uint64(it.inner.block.number_in_stream),
		NumberInFile:         uint64(it.inner.block.number_in_file),
		CompressedFileOffset: uint64(it.inner.block.compressed_file_offset),
		UncompressedFileOffset: uint64(it.inner.block.uncompressed_file_offset),
		TotalSize:            uint64(it.inner.block.total_size),
		UncompressedSize:     uint64(it.inner.block.uncompressed_size),
		UnpaddedSize:         uint64(it.inner.block.unpadded_size),
	}
}

// StreamInfo describes one stream recorded in an Index.
type StreamInfo struct {
	// Number is the 1-based stream number within the file.
	Number uint64
	// BlockCount is the number of blocks in the stream.
	BlockCount uint64
	// CompressedOffset is the compressed start offset.
	CompressedOffset uint64
	// UncompressedOffset is the uncompressed start offset.
	UncompressedOffset uint64
	// CompressedSize is the compressed size without padding.
	CompressedSize uint64
	// UncompressedSize is the uncompressed size.
	UncompressedSize uint64
	// Padding is the padding size following the stream.
	Padding uint64
	// Flags carries the stream's format metadata when known.
	Flags *StreamFlags
}

// BlockInfo describes one block recorded in an Index. Block numbers are
// 1-based in both frames.
type BlockInfo struct {
	NumberInStream         uint64
	NumberInFile           uint64
	CompressedFileOffset   uint64
	UncompressedFileOffset uint64
	// TotalSize is the compressed size including headers and padding.
	TotalSize        uint64
	UncompressedSize uint64
	// UnpaddedSize excludes the trailing alignment padding.
	UnpaddedSize uint64
}

// StreamFlags is the 2-byte stream flags field stored in both the header and
// footer of an .xz stream.
type StreamFlags struct {
	// Version of the stream format; currently always 0.
	Version uint32
	// BackwardSize is the size of the Index field, known only when the flags
	// were read from a stream footer.
	BackwardSize uint64
	// BackwardSizeKnown reports whether BackwardSize carries a value.
	BackwardSizeKnown bool
	// Check is the integrity check used by the stream.
	Check Check
}

func streamFlagsFromRaw(raw *C.lzma_stream_flags) *StreamFlags {
	if raw == nil {
		return nil
	}
	flags := &StreamFlags{
		Version: uint32(raw.version),
		Check:   Check(raw.check),
	}
	if uint64(raw.backward_size) != vliUnknown {
		flags.BackwardSize = uint64(raw.backward_size)
		flags.BackwardSizeKnown = true
	}
	return flags
}

func (f StreamFlags) toRaw() C.lzma_stream_flags {
	var raw C.lzma_stream_flags
	raw.version = C.uint32_t(f.Version)
	raw.check = C.lzma_check(f.Check)
	if f.BackwardSizeKnown {
		raw.backward_size = C.lzma_vli(f.BackwardSize)
	} else {
		raw.backward_size = C.lzma_vli(vliUnknown)
	}
	return raw
}

// DecodeHeaderFlags decodes an XZ stream header (HeaderSize bytes).
func DecodeHeaderFlags(header []byte) (*StreamFlags, error) {
	if len(header) != HeaderSize {
		return nil, errors.Wrapf(ErrOptions, "stream header must be %d bytes", HeaderSize)
	}
	var raw C.lzma_stream_flags
	ret := Return(C.lzma_stream_header_decode(&raw, (*C.uint8_t)(unsafe.SliceData(header))))
	if err := errorFor(ret); err != nil {
		return nil, err
	}
	flags := streamFlagsFromRaw(&raw)
	return flags, nil
}

// DecodeFooterFlags decodes an XZ stream footer (HeaderSize bytes).
func DecodeFooterFlags(footer []byte) (*StreamFlags, error) {
	if len(footer) != HeaderSize {
		return nil, errors.Wrapf(ErrOptions, "stream footer must be %d bytes", HeaderSize)
	}
	var raw C.lzma_stream_flags
	ret := Return(C.lzma_stream_footer_decode(&raw, (*C.uint8_t)(unsafe.SliceData(footer))))
	if err := errorFor(ret); err != nil {
		return nil, err
	}
	flags := streamFlagsFromRaw(&raw)
	return flags, nil
}

// CompareHeaderFooter verifies that a stream header and footer carry
// consistent flags.
func CompareHeaderFooter(header, footer []byte) error {
	h, err := DecodeHeaderFlags(header)
	if err != nil {
		return err
	}
	f, err := DecodeFooterFlags(footer)
	if err != nil {
		return err
	}
	hr := h.toRaw()
	fr := f.toRaw()
	return errorFor(Return(C.lzma_stream_flags_compare(&hr, &fr)))
}
