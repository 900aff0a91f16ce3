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

// Reader decompresses a stream incrementally. Unlike Decompress, it is the
// lenient concatenated-mode driver: at each stream end it rebuilds a fresh
// decoder and keeps decoding the unconsumed tail, so trailing garbage is
// rejected only when the next decoder fails to parse a stream.
type Reader struct {
	src     io.Reader
	opts    *DecompressionOptions
	decoder *lzma.Decoder
	buf     []byte
	start   int // first pending byte in buf
	end     int // one past the last pending byte in buf
	action  lzma.Action
	sawEOF  bool
	started bool
	err     error
}

// NewReader returns a Reader decoding src with the given options. A nil opts
// uses DefaultDecompressionOptions.
func NewReader(src io.Reader, opts *DecompressionOptions) (*Reader, error) {
	if opts == nil {
		opts = DefaultDecompressionOptions()
	}
	decoder, err := opts.buildDecoder()
	if err != nil {
		return nil, err
	}
	return &Reader{
		src:     src,
		opts:    opts,
		decoder: decoder,
		buf:     make([]byte, opts.inputCapacity()),
		action:  lzma.Run,
	}, nil
}

// Read decompresses up to len(p) bytes.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if len(p) == 0 {
		return 0, nil
	}

	written := 0
	for written == 0 {
		if r.start == r.end && r.action == lzma.Run {
			if err := r.fill(); err != nil {
				return written, r.fail(err)
			}
			if r.start == r.end {
				if !r.started {
					// Empty input is not a valid stream.
					return written, r.fail(lzma.ErrData)
				}
				r.action = lzma.Finish
			}
		}

		used, produced, err := r.decoder.Process(r.buf[r.start:r.end], p[written:], r.action)
		if err != nil {
			// A stall while finishing means the input was truncated.
			if r.action == lzma.Finish && errors.Is(err, lzma.ErrBuf) {
				err = lzma.ErrData
			}
			return written, r.fail(err)
		}
		r.start += used
		written += produced

		if r.decoder.Finished() {
			if !r.opts.Flags.IsConcatenated() {
				r.err = io.EOF
				return written, r.readErr(written)
			}

			// One stream done; if input may continue, start over with a
			// fresh decoder on whatever tail is buffered.
			if r.start == r.end && r.sawEOF {
				r.err = io.EOF
				return written, r.readErr(written)
			}
			decoder, err := r.opts.buildDecoder()
			if err != nil {
				return written, r.fail(err)
			}
			r.decoder = decoder
			r.action = lzma.Run
			continue
		}

		if used == 0 && produced == 0 {
			switch r.action {
			case lzma.Finish:
				// Input exhausted but no stream end: truncated input.
				return written, r.fail(lzma.ErrData)
			default:
				// No progress with the current window: append more input,
				// growing the buffer when it is full.
				if err := r.fill(); err != nil {
					return written, r.fail(err)
				}
			}
		}
		if written == len(p) {
			return written, nil
		}
	}
	return written, nil
}

// fill appends more input after the pending bytes, compacting them to the
// front first and growing the buffer when it is full. Reaching end of input
// switches the driver to Finish.
func (r *Reader) fill() error {
	if r.sawEOF {
		r.action = lzma.Finish
		return nil
	}

	if r.start > 0 {
		copy(r.buf, r.buf[r.start:r.end])
		r.end -= r.start
		r.start = 0
	}
	if r.end == len(r.buf) {
		grown, err := growBuffer(r.buf, r.opts.inputCapacity())
		if err != nil {
			return err
		}
		r.buf = grown
	}

	n, err := readSome(r.src, r.buf[r.end:])
	if err != nil {
		return err
	}
	if n == 0 {
		r.sawEOF = true
		r.action = lzma.Finish
		return nil
	}
	r.end += n
	r.started = true
	return nil
}

// fail latches err and finalizes the decoder.
func (r *Reader) fail(err error) error {
	r.err = err
	r.decoder.Close()
	return err
}

// readErr suppresses io.EOF when data was produced by the same call.
func (r *Reader) readErr(written int) error {
	r.decoder.Close()
	if written > 0 && r.err == io.EOF {
		return nil
	}
	return r.err
}

// Close releases the decoder. Reading to io.EOF already releases it; Close
// is then a no-op.
func (r *Reader) Close() error {
	if r.err == nil {
		r.err = io.ErrClosedPipe
	}
	r.decoder.Close()
	return nil
}
