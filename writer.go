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

// Writer compresses everything written to it into an underlying writer.
// Close finishes the stream; until then compressed output may be buffered
// inside the native encoder.
type Writer struct {
	dst     io.Writer
	encoder coder
	output  []byte
	err     error
	closed  bool
}

// NewWriter returns a Writer compressing into dst with the given options. A
// nil opts uses DefaultCompressionOptions.
func NewWriter(dst io.Writer, opts *CompressionOptions) (*Writer, error) {
	if opts == nil {
		opts = DefaultCompressionOptions()
	}
	encoder, err := opts.buildEncoder()
	if err != nil {
		return nil, err
	}
	return &Writer{
		dst:     dst,
		encoder: encoder,
		output:  make([]byte, opts.outputCapacity()),
	}, nil
}

// Write compresses p. It always consumes all of p unless an error occurs.
func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if w.closed {
		return 0, io.ErrClosedPipe
	}

	consumed := 0
	for consumed < len(p) {
		used, produced, err := w.encoder.Process(p[consumed:], w.output, lzma.Run)
		if err != nil {
			return consumed, w.fail(err)
		}
		if produced > 0 {
			if _, err := w.dst.Write(w.output[:produced]); err != nil {
				return consumed, w.fail(errors.Wrap(err, "xz: write output"))
			}
		}
		consumed += used
		if used == 0 && produced == 0 {
			return consumed, w.fail(lzma.ErrBuf)
		}
	}
	return consumed, nil
}

// Close drives the terminal finish loop and releases the encoder. It must be
// called to produce a complete stream.
func (w *Writer) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	if w.err != nil {
		return w.err
	}

	var summary Summary
	err := finishEncoder(w.encoder, w.dst, w.output, &summary)
	w.encoder.Close()
	if err != nil {
		w.err = err
	}
	return err
}

func (w *Writer) fail(err error) error {
	w.err = err
	w.encoder.Close()
	return err
}
