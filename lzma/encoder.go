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

extern lzma_ret go_xz_encoder_mt(lzma_stream *strm, uint32_t preset,
		uint32_t check, uint32_t threads, uint64_t block_size,
		uint32_t timeout, const lzma_filter *filters);
*/
import "C"

// EncoderOptions configures the multi-threaded .xz encoder.
type EncoderOptions struct {
	// Preset is ignored when Filters is non-empty.
	Preset Preset
	// Check selects the integrity check embedded in the output stream.
	Check Check
	// Threads is the number of worker threads; 0 and 1 both mean one worker.
	Threads uint32
	// BlockSize is the maximum block size in bytes; 0 uses liblzma defaults.
	BlockSize uint64
	// TimeoutMS bounds internal worker synchronization in milliseconds;
	// 0 disables the timeout.
	TimeoutMS uint32
	// Filters is an optional custom filter chain; when set the preset is
	// ignored.
	Filters []FilterConfig
}

// Encoder is a stateful .xz compressor over a native stream.
type Encoder struct {
	opts    EncoderOptions
	stream  *Stream // nil once the coder has observed terminal stream end
	filters *filterChain
	totalIn  uint64
	totalOut uint64
}

// Encoder initializes s with the single-threaded "easy" encoder. On success
// the stream is owned by the returned coder.
func (s *Stream) Encoder(preset Preset, check Check) (*Encoder, error) {
	ret := Return(C.lzma_easy_encoder(&s.strm, C.uint32_t(preset), C.lzma_check(check)))
	if err := errorFor(ret); err != nil {
		return nil, err
	}
	return &Encoder{
		opts:   EncoderOptions{Preset: preset, Check: check, Threads: 1},
		stream: s,
	}, nil
}

// EncoderMT initializes s with the multi-threaded encoder. Prepared
// filter-option storage is owned by the coder and stays pinned until the
// coder is finalized: liblzma captures raw pointers into it during
// initialization.
func (s *Stream) EncoderMT(opts EncoderOptions) (*Encoder, error) {
	threads := opts.Threads
	if threads == 0 {
		threads = 1
	}

	var chain *filterChain
	var filters *C.lzma_filter
	if len(opts.Filters) > 0 {
		var err error
		chain, err = newFilterChain(opts.Filters)
		if err != nil {
			return nil, err
		}
		filters = chain.ptr()
	}

	ret := Return(C.go_xz_encoder_mt(
		&s.strm,
		C.uint32_t(opts.Preset),
		C.uint32_t(opts.Check),
		C.uint32_t(threads),
		C.uint64_t(opts.BlockSize),
		C.uint32_t(opts.TimeoutMS),
		filters,
	))
	if err := errorFor(ret); err != nil {
		if chain != nil {
			chain.free()
		}
		return nil, err
	}

	opts.Threads = threads
	return &Encoder{opts: opts, stream: s, filters: chain}, nil
}

// Process compresses input into output. It returns how many input bytes were
// consumed and how many output bytes were produced.
//
// After the coder has reached terminal stream end, Finish fails with ErrProg
// and every other action returns (0, 0) without touching any buffer.
func (e *Encoder) Process(input, output []byte, action Action) (int, int, error) {
	if e.stream == nil {
		if action == Finish {
			return 0, 0, ErrProg
		}
		return 0, 0, nil
	}
	s := e.stream

	// Provide new input only when data is available so that liblzma keeps
	// consuming bytes buffered by an earlier partial call.
	if len(input) > 0 {
		s.setInput(input)
	}
	s.setOutput(output)

	inBefore := s.availIn()
	outBefore := s.availOut()

	ret := s.code(action)
	consumed := inBefore - s.availIn()
	produced := outBefore - s.availOut()

	// liblzma can report BufError even after making progress (for example
	// when the output window filled up). Treat that as "coding continues".
	if ret == BufError && (consumed != 0 || produced != 0) {
		ret = Ok
	}

	// Totals come from the native counters, not from deltas, so they stay
	// correct across partial consumptions.
	e.totalIn = s.totalIn()
	e.totalOut = s.totalOut()

	switch ret {
	case Ok:
		return consumed, produced, nil
	case StreamEnd:
		e.finalize()
		return consumed, produced, nil
	default:
		return consumed, produced, errorFor(ret)
	}
}

// Finished reports whether the coder has observed terminal stream end.
func (e *Encoder) Finished() bool {
	return e.stream == nil
}

// TotalIn returns the cumulative number of input bytes consumed.
func (e *Encoder) TotalIn() uint64 {
	return e.totalIn
}

// TotalOut returns the cumulative number of output bytes produced.
func (e *Encoder) TotalOut() uint64 {
	return e.totalOut
}

// Preset returns the configured compression preset.
func (e *Encoder) Preset() Preset {
	return e.opts.Preset
}

// Check returns the integrity check stored in the output stream.
func (e *Encoder) Check() Check {
	return e.opts.Check
}

// Threads returns the number of configured worker threads.
func (e *Encoder) Threads() uint32 {
	return e.opts.Threads
}

// Close releases the native state. It is idempotent and safe to call whether
// or not the coder finished.
func (e *Encoder) Close() error {
	e.finalize()
	return nil
}

func (e *Encoder) finalize() {
	if e.stream != nil {
		e.stream.end()
		e.stream = nil
	}
	if e.filters != nil {
		e.filters.free()
		e.filters = nil
	}
}
