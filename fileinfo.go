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

package xz

import (
	"io"

	"github.com/pkg/errors"

	"github.com/dsemak/go-xz/lzma"
)

// fileInfoChunk is the initial pending-buffer capacity of the file-info
// driver. The buffer grows in these units when the decoder needs a larger
// contiguous window for the Index field.
const fileInfoChunk = 64 * 1024

// FileInfo is the metadata of a complete .xz file: the decoded index plus
// the input file size that produced it. Close releases the index.
type FileInfo struct {
	index    *lzma.Index
	fileSize uint64
}

// StreamCount returns the number of streams in the file.
func (f *FileInfo) StreamCount() uint64 {
	return f.index.StreamCount()
}

// BlockCount returns the number of blocks across all streams.
func (f *FileInfo) BlockCount() uint64 {
	return f.index.BlockCount()
}

// FileSize returns the compressed file size observed by the driver.
func (f *FileInfo) FileSize() uint64 {
	return f.fileSize
}

// UncompressedSize returns the total uncompressed size.
func (f *FileInfo) UncompressedSize() uint64 {
	return f.index.UncompressedSize()
}

// Checks returns the bitmask of integrity check ids seen in the file.
func (f *FileInfo) Checks() uint32 {
	return f.index.Checks()
}

// Index exposes the underlying index for custom iteration. It stays owned by
// the FileInfo.
func (f *FileInfo) Index() *lzma.Index {
	return f.index
}

// Streams materializes the per-stream entries in file order.
func (f *FileInfo) Streams() []lzma.StreamInfo {
	streams := make([]lzma.StreamInfo, 0, f.StreamCount())
	for it := f.index.Streams(); it.Next(); {
		streams = append(streams, it.Stream())
	}
	return streams
}

// Blocks materializes the per-block entries in file order.
func (f *FileInfo) Blocks() []lzma.BlockInfo {
	blocks := make([]lzma.BlockInfo, 0, f.BlockCount())
	for it := f.index.Blocks(); it.Next(); {
		blocks = append(blocks, it.Block())
	}
	return blocks
}

// Close releases the decoded index.
func (f *FileInfo) Close() error {
	return f.index.Close()
}

// ExtractFileInfo drives a seekable reader through the file-info decoder and
// returns the file's metadata without decompressing any payload bytes.
// memlimit bounds decoder memory; zero means unbounded.
func ExtractFileInfo(r io.ReadSeeker, memlimit uint64) (*FileInfo, error) {
	if memlimit == 0 {
		memlimit = lzma.MemLimitUnbounded
	}

	fileSize, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrap(err, "xz: seek to end")
	}
	if fileSize == 0 {
		return nil, invalidOption("file is empty")
	}
	if fileSize < 2*lzma.HeaderSize {
		return nil, invalidOption("file of %d bytes is too small to be a valid XZ file", fileSize)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "xz: seek to start")
	}

	decoder, err := lzma.NewStream().FileInfoDecoder(memlimit, uint64(fileSize))
	if err != nil {
		return nil, err
	}

	index, err := runFileInfoDecoder(r, decoder)
	if err != nil {
		decoder.Close()
		return nil, err
	}
	decoder.Close()
	return &FileInfo{index: index, fileSize: uint64(fileSize)}, nil
}

func runFileInfoDecoder(r io.ReadSeeker, decoder *lzma.FileInfoDecoder) (*lzma.Index, error) {
	buf := make([]byte, fileInfoChunk)
	pending := 0
	action := lzma.Run

	for {
		if pending == 0 && action != lzma.Finish {
			read, err := readSome(r, buf)
			if err != nil {
				return nil, err
			}
			if read == 0 {
				action = lzma.Finish
			} else {
				pending = read
			}
		}

		consumed, err := decoder.Process(buf[:pending], action)
		switch {
		case err == nil:
			if decoder.Finished() {
				index := decoder.Index()
				if index == nil {
					return nil, lzma.ErrData
				}
				return index, nil
			}

			if consumed == 0 {
				if action == lzma.Finish {
					return nil, invalidOption(
						"decoder did not finish after processing all available data")
				}

				// The decoder wants a larger contiguous window, typically for
				// the Index field; it may request arbitrarily large ones.
				if pending == len(buf) {
					grown, err := growBuffer(buf, fileInfoChunk)
					if err != nil {
						return nil, err
					}
					buf = grown
				}
				read, err := readSome(r, buf[pending:])
				if err != nil {
					return nil, err
				}
				if read == 0 {
					action = lzma.Finish
				} else {
					pending += read
				}
			} else {
				// Shift the unconsumed tail to the front of the buffer.
				remaining := pending - consumed
				if remaining > 0 {
					copy(buf, buf[consumed:pending])
				}
				pending = remaining
			}

		case errors.Is(err, lzma.ErrSeekNeeded):
			// liblzma never requests a seek past the file size it was given.
			if _, err := r.Seek(int64(decoder.SeekPos()), io.SeekStart); err != nil {
				return nil, errors.Wrap(err, "xz: seek requested by decoder")
			}
			// An empty process call clears the decoder's buffered scratch;
			// its outcome is irrelevant here.
			_, _ = decoder.Process(nil, lzma.Run)
			// Pending bytes predate the seek and are discarded even when the
			// target equals the current position.
			pending = 0
			action = lzma.Run

		default:
			return nil, err
		}
	}
}
