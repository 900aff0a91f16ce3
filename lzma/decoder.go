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
#include <lzma.h>

extern lzma_ret go_xz_decoder_mt(lzma_stream *strm, uint64_t memlimit,
		uint64_t memlimit_stop, uint32_t flags, uint32_t threads,
		uint32_t timeout);
*/
import "C"

// DecoderOptions configures the multi-threaded .xz decoder.
type DecoderOptions struct {
	// Threads is the number of worker threads; 0 and 1 both mean one worker.
	Threads uint32
	// MemLimit is the soft memory limit; exceeding it makes the decoder fall
	// back to fewer threads.
	MemLimit uint64
	// MemLimitStop is the hard memory limit; exceeding it aborts decoding.
	MemLimitStop uint64
	// Flags alter stream parsing behavior.
	Flags Flags
	// TimeoutMS bounds internal worker synchronization in milliseconds;
	// 0 disables the timeout.
	TimeoutMS uint32
}

// Decoder is a stateful decompressor over a native stream. Depending on the
// constructor it understands .xz streams, legacy .lzma files, or both.
type Decoder struct {
	stream *Stream // nil once the coder has observed terminal stream end
	flags  Flags
	memlimit uint64
	threads  uint32
	totalIn  uint64
	totalOut uint64
}

// Decoder initializes s with the .xz stream decoder. Without the Concatenated
// flag, decoding stops after the first stream.
func (s *Stream) Decoder(memlimit uint64, flags Flags) (*Decoder, error) {
	ret := Return(C.lzma_stream_decoder(&s.strm, C.uint64_t(memlimit), C.uint32_t(flags)))
	if err := errorFor(ret); err != nil {
		return nil, err
	}
	return &Decoder{stream: s, flags: flags, memlimit: memlimit, threads: 1}, nil
}

// AutoDecoder initializes s with the format-detecting decoder, accepting both
// .xz and legacy .lzma input.
func (s *Stream) AutoDecoder(memlimit uint64, flags Flags) (*Decoder, error) {
	ret := Return(C.lzma_auto_decoder(&s.strm, C.uint64_t(memlimit), C.uint32_t(flags)))
	if err := errorFor(ret); err != nil {
		return nil, err
	}
	return &Decoder{stream: s, flags: flags, memlimit: memlimit, threads: 1}, nil
}

// AloneDecoder initializes s with the legacy .lzma decoder.
func (s *Stream) AloneDecoder(memlimit uint64) (*Decoder, error) {
	ret := Return(C.lzma_alone_decoder(&s.strm, C.uint64_t(memlimit)))
	if err := errorFor(ret); err != nil {
		return nil, err
	}
	return &Decoder{stream: s, memlimit: memlimit, threads: 1}, nil
}

// DecoderMT initializes s with the multi-threaded .xz stream decoder.
func (s *Stream) DecoderMT(opts DecoderOptions) (*Decoder, error) {
	threads := opts.Threads
	if threads == 0 {
		threads = 1
	}
	ret := Return(C.go_xz_decoder_mt(
		&s.strm,
		C.uint64_t(opts.MemLimit),
		C.uint64_t(opts.MemLimitStop),
		C.uint32_t(opts.Flags),
		C.uint32_t(threads),
		C.uint32_t(opts.TimeoutMS),
	))
	if err := errorFor(ret); err != nil {
		return nil, err
	}
	return &Decoder{
		stream:   s,
		flags:    opts.Flags,
		memlimit: opts.MemLimit,
		threads:  threads,
	}, nil
}

// Process decompresses input into output. It returns how many input bytes
// were consumed and how many output bytes were produced.
//
// After the coder has reached terminal stream end, Finish fails with ErrProg
// and every other action returns (0, 0) without touching any buffer. In
// non-concatenated mode any input remaining after stream end is deliberately
// ignored.
func (d *Decoder) Process(input, output []byte, action Action) (int, int, error) {
	if d.stream == nil {
		if action == Finish {
			return 0, 0, ErrProg
		}
		return 0, 0, nil
	}
	s := d.stream

	// Only refresh the input window when new data is supplied so buffered
	// bytes from an earlier partial call keep draining. When finishing with
	// nothing buffered, explicitly clear the pointer: some decoder paths
	// check for a null input pointer at EOF.
	if len(input) > 0 {
		s.setInput(input)
	} else if action == Finish && s.availIn() == 0 {
		s.setInput(nil)
	}
	s.setOutput(output)

	inBefore := s.availIn()
	outBefore := s.availOut()

	ret := s.code(action)
	consumed := inBefore - s.availIn()
	produced := outBefore - s.availOut()

	// liblzma can report BufError even after making progress (for example
	// when the output window filled up). Treat that as "decoding continues".
	if ret == BufError && (consumed != 0 || produced != 0) {
		ret = Ok
	}

	if action == Finish && consumed == 0 && produced == 0 {
		ret = d.finishRetry(ret, &consumed, &produced)
	}

	d.totalIn = s.totalIn()
	d.totalOut = s.totalOut()

	switch ret {
	case Ok:
		return consumed, produced, nil
	case StreamEnd:
		s.end()
		d.stream = nil
		return consumed, produced, nil
	default:
		return consumed, produced, errorFor(ret)
	}
}

// finishRetry drives the corner case of Finish with zero progress: liblzma
// may need one or two extra calls to transition to stream end. Stream end is
// never fabricated once any input has been consumed, as that would mask
// truncation; only a never-fed decoder is completed as an empty stream.
func (d *Decoder) finishRetry(ret Return, consumed, produced *int) Return {
	const maxRetries = 2

	s := d.stream
	for i := 0; i < maxRetries; i++ {
		if ret != Ok && ret != BufError {
			break
		}

		inBefore := s.availIn()
		outBefore := s.availOut()
		next := s.code(Finish)
		readDelta := inBefore - s.availIn()
		writtenDelta := outBefore - s.availOut()
		*consumed += readDelta
		*produced += writtenDelta

		if next == StreamEnd {
			return StreamEnd
		}
		if (next == Ok || next == BufError) && s.totalIn() == 0 {
			if readDelta == 0 && writtenDelta == 0 {
				return StreamEnd
			}
			ret = next
			continue
		}
		ret = next
		if readDelta != 0 || writtenDelta != 0 {
			break
		}
	}
	return ret
}

// Finished reports whether the coder has observed terminal stream end.
func (d *Decoder) Finished() bool {
	return d.stream == nil
}

// TotalIn returns the cumulative number of input bytes consumed.
func (d *Decoder) TotalIn() uint64 {
	return d.totalIn
}

// TotalOut returns the cumulative number of output bytes produced.
func (d *Decoder) TotalOut() uint64 {
	return d.totalOut
}

// MemLimit returns the configured memory limit.
func (d *Decoder) MemLimit() uint64 {
	return d.memlimit
}

// DecoderFlags returns the flags the decoder was built with.
func (d *Decoder) DecoderFlags() Flags {
	return d.flags
}

// Threads returns the number of configured worker threads.
func (d *Decoder) Threads() uint32 {
	return d.threads
}

// Close releases the native state. It is idempotent and safe to call whether
// or not the coder finished.
func (d *Decoder) Close() error {
	if d.stream != nil {
		d.stream.end()
		d.stream = nil
	}
	return nil
}
