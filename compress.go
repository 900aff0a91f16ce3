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

// Compress pumps r through an encoder built from opts into w and returns the
// byte totals. A nil opts uses DefaultCompressionOptions.
func Compress(r io.Reader, w io.Writer, opts *CompressionOptions) (Summary, error) {
	if opts == nil {
		opts = DefaultCompressionOptions()
	}

	encoder, err := opts.buildEncoder()
	if err != nil {
		return Summary{}, err
	}
	defer encoder.Close()

	input := make([]byte, opts.inputCapacity())
	output := make([]byte, opts.outputCapacity())
	var summary Summary

	for {
		read, err := readSome(r, input)
		if err != nil {
			return summary, err
		}
		if read == 0 {
			if err := finishEncoder(encoder, w, output, &summary); err != nil {
				return summary, err
			}
			return summary, nil
		}

		consumed := 0
		for consumed < read {
			used, written, err := encoder.Process(input[consumed:read], output, lzma.Run)
			if err != nil {
				return summary, err
			}
			if written > 0 {
				if _, err := w.Write(output[:written]); err != nil {
					return summary, errors.Wrap(err, "xz: write output")
				}
				summary.BytesWritten += uint64(written)
			}
			consumed += used
			summary.BytesRead += uint64(used)

			if encoder.Finished() {
				return summary, nil
			}
			if used == 0 && written == 0 {
				// The encoder needs more input before it can continue.
				break
			}
		}
	}
}

// finishEncoder drives the terminal flush loop: repeated empty-input Finish
// calls until the encoder reports stream end. A call without output (BufError
// or a plain zero-output return) is retried only when the previous finish
// call produced output; otherwise it is a genuine stall and surfaces.
func finishEncoder(encoder coder, w io.Writer, output []byte, summary *Summary) error {
	madeProgress := false

	for {
		_, written, err := encoder.Process(nil, output, lzma.Finish)
		switch {
		case err == nil && written > 0:
			if _, werr := w.Write(output[:written]); werr != nil {
				return errors.Wrap(werr, "xz: write output")
			}
			summary.BytesWritten += uint64(written)
			madeProgress = true
		case err == nil:
			if encoder.Finished() {
				return nil
			}
			if !madeProgress {
				return lzma.ErrBuf
			}
			madeProgress = false
		case errors.Is(err, lzma.ErrBuf):
			if !madeProgress {
				return err
			}
			madeProgress = false
		default:
			return err
		}

		if encoder.Finished() {
			return nil
		}
	}
}
