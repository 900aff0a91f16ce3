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
*/
import "C"

// AloneEncoder produces the legacy .lzma ("LZMA_Alone") container. The format
// supports only LZMA1, carries no integrity check field, and accepts only the
// Run and Finish actions.
type AloneEncoder struct {
	stream   *Stream
	totalIn  uint64
	totalOut uint64
}

// AloneEncoder initializes s with the legacy .lzma encoder. When opts is nil,
// parameters are derived from the default preset.
func (s *Stream) AloneEncoder(opts *Lzma1Options) (*AloneEncoder, error) {
	if opts == nil {
		var err error
		opts, err = Lzma1OptionsFromPreset(PresetDefault)
		if err != nil {
			return nil, err
		}
	}
	ret := Return(C.lzma_alone_encoder(&s.strm, &opts.raw))
	if err := errorFor(ret); err != nil {
		return nil, err
	}
	return &AloneEncoder{stream: s}, nil
}

// Process compresses input into output. Only Run and Finish are valid
// actions; flush actions fail with ErrProg because the container has no
// block structure to flush.
func (e *AloneEncoder) Process(input, output []byte, action Action) (int, int, error) {
	if action != Run && action != Finish {
		return 0, 0, ErrProg
	}
	if e.stream == nil {
		if action == Finish {
			return 0, 0, ErrProg
		}
		return 0, 0, nil
	}
	s := e.stream

	if len(input) > 0 {
		s.setInput(input)
	}
	s.setOutput(output)

	inBefore := s.availIn()
	outBefore := s.availOut()

	ret := s.code(action)
	consumed := inBefore - s.availIn()
	produced := outBefore - s.availOut()

	if ret == BufError && (consumed != 0 || produced != 0) {
		ret = Ok
	}

	e.totalIn = s.totalIn()
	e.totalOut = s.totalOut()

	switch ret {
	case Ok:
		return consumed, produced, nil
	case StreamEnd:
		s.end()
		e.stream = nil
		return consumed, produced, nil
	default:
		return consumed, produced, errorFor(ret)
	}
}

// Finished reports whether the coder has observed terminal stream end.
func (e *AloneEncoder) Finished() bool {
	return e.stream == nil
}

// TotalIn returns the cumulative number of input bytes consumed.
func (e *AloneEncoder) TotalIn() uint64 {
	return e.totalIn
}

// TotalOut returns the cumulative number of output bytes produced.
func (e *AloneEncoder) TotalOut() uint64 {
	return e.totalOut
}

// Close releases the native state. It is idempotent.
func (e *AloneEncoder) Close() error {
	if e.stream != nil {
		e.stream.end()
		e.stream = nil
	}
	return nil
}
