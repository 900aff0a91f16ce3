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

// finishSpinBound caps the number of terminal finish attempts. On truncated
// input the decoder stops making progress once input is exhausted; the bound
// turns that stall into a data error instead of an endless loop.
const finishSpinBound = 64

// Decompress pumps r through a decoder built from opts into w and returns
// the byte totals. A nil opts uses DefaultDecompressionOptions.
//
// In concatenated mode this driver is strict: any bytes left over after the
// final stream end are reported as a data error. The streaming Reader is the
// lenient counterpart.
func Decompress(r io.Reader, w io.Writer, opts *DecompressionOptions) (Summary, error) {
	if opts == nil {
		opts = DefaultDecompressionOptions()
	}

	decoder, err := opts.buildDecoder()
	if err != nil {
		return Summary{}, err
	}
	defer decoder.Close()

	input := make([]byte, opts.inputCapacity())
	output := make([]byte, opts.outputCapacity())
	var summary Summary
	pending := 0

	for {
		if pending == 0 {
			read, err := readSome(r, input)
			if err != nil {
				return summary, err
			}
			if read == 0 {
				// Empty input is not a valid stream.
				if summary.BytesRead == 0 {
					return summary, lzma.ErrData
				}
				if err := finishDecoder(decoder, w, output, nil, &summary); err != nil {
					return summary, err
				}
				return summary, nil
			}
			pending = read
		}

		consumed := 0
		for consumed < pending {
			used, written, err := decoder.Process(input[consumed:pending], output, lzma.Run)
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

			if decoder.Finished() {
				// Without the concatenated flag, stopping after the first
				// stream is the single-stream contract and any tail is
				// deliberately ignored.
				if !opts.Flags.IsConcatenated() {
					return summary, nil
				}

				// With the flag set, terminal stream end must coincide with
				// end of input; anything else is trailing garbage.
				if pending-consumed > 0 {
					return summary, lzma.ErrData
				}
				read, err := readSome(r, input)
				if err != nil {
					return summary, err
				}
				if read == 0 {
					return summary, nil
				}
				return summary, lzma.ErrData
			}

			if used == 0 && written == 0 {
				// No progress with the current window: the decoder wants a
				// larger contiguous view, so append more input, growing the
				// buffer when it is full.
				if pending == len(input) {
					grown, err := growBuffer(input, opts.inputCapacity())
					if err != nil {
						return summary, err
					}
					input = grown
				}

				read, err := readSome(r, input[pending:])
				if err != nil {
					return summary, err
				}
				if read == 0 {
					err := finishDecoder(decoder, w, output, input[consumed:pending], &summary)
					if err != nil {
						return summary, err
					}
					return summary, nil
				}
				pending += read
			}
		}

		pending = 0
	}
}

// finishDecoder drives the decoder to stream end with the remaining pending
// bytes, bounded by finishSpinBound.
func finishDecoder(
	decoder *lzma.Decoder,
	w io.Writer,
	output []byte,
	pending []byte,
	summary *Summary,
) error {
	for i := 0; i < finishSpinBound; i++ {
		used, written, err := decoder.Process(pending, output, lzma.Finish)
		if err != nil {
			// A no-progress stall while finishing means truncated input; keep
			// spinning up to the bound so a slow drain can still complete.
			if errors.Is(err, lzma.ErrBuf) {
				continue
			}
			return err
		}
		if written > 0 {
			if _, err := w.Write(output[:written]); err != nil {
				return errors.Wrap(err, "xz: write output")
			}
			summary.BytesWritten += uint64(written)
		}
		if used > 0 {
			summary.BytesRead += uint64(used)
			pending = pending[used:]
		}

		if decoder.Finished() {
			return nil
		}

		// Unconsumed pending bytes with zero progress will never finish.
		if len(pending) > 0 && used == 0 && written == 0 {
			break
		}
	}
	return lzma.ErrData
}

// readSome reads into buf until it has data, end of input, or a failure.
// A zero return without error means end of input.
func readSome(r io.Reader, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	for {
		n, err := r.Read(buf)
		if n > 0 {
			return n, nil
		}
		if err == io.EOF {
			return 0, nil
		}
		if err != nil {
			return 0, errors.Wrap(err, "xz: read input")
		}
	}
}

// growBuffer extends buf by one capacity unit, reporting AllocationError
// instead of letting an oversized append abort the process.
func growBuffer(buf []byte, unit int) (grown []byte, err error) {
	if unit < 1 {
		unit = 1
	}
	capacity := len(buf) + unit
	defer func() {
		if recover() != nil {
			grown, err = nil, &AllocationError{Capacity: capacity}
		}
	}()
	grown = append(buf, make([]byte, unit)...)
	return grown, nil
}
