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
	"math"
	"time"

	"github.com/dsemak/go-xz/lzma"
)

// DefaultBufferSize is the default capacity of the pipeline's input and
// output buffers.
const DefaultBufferSize = 64 * 1024

// defaultMemLimit bounds decoder memory usage unless configured otherwise.
const defaultMemLimit = 256 * 1024 * 1024

// EncodeFormat selects the output container format.
type EncodeFormat int

const (
	// FormatXz produces .xz streams.
	FormatXz EncodeFormat = iota
	// FormatLzma produces legacy .lzma files.
	FormatLzma
)

// DecodeMode selects the decoder flavor.
type DecodeMode int

const (
	// ModeAuto detects .xz versus legacy .lzma input. Single-threaded only.
	ModeAuto DecodeMode = iota
	// ModeXz parses .xz input and supports multi-threading.
	ModeXz
	// ModeLzma parses legacy .lzma input. Single-threaded only.
	ModeLzma
)

func (m DecodeMode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeXz:
		return "xz"
	case ModeLzma:
		return "lzma"
	}
	return "unknown"
}

// CompressionOptions configures Compress and NewWriter.
type CompressionOptions struct {
	// Level is the compression preset (0-9).
	Level lzma.Preset
	// Extreme applies the preset's "extreme" modifier.
	Extreme bool
	// Check is the integrity check embedded in .xz output.
	Check lzma.Check
	// Threads is the worker count; 0 means auto-detect. Oversized requests
	// are clamped to SafeMaxThreads.
	Threads int
	// BlockSize overrides the multi-threaded encoder's block size; 0 keeps
	// the preset-derived default.
	BlockSize uint64
	// Timeout bounds internal synchronization of the multi-threaded encoder;
	// it is advisory, not a wall-clock limit.
	Timeout time.Duration
	// Filters is an optional custom filter chain; it forces the
	// multi-threaded initializer.
	Filters []lzma.FilterConfig
	// Format selects .xz or legacy .lzma output.
	Format EncodeFormat
	// Lzma1 supplies explicit LZMA1 parameters for FormatLzma; when nil they
	// are derived from Level.
	Lzma1 *lzma.Lzma1Options
	// InputBufferSize and OutputBufferSize set the pipeline buffer
	// capacities; 0 means DefaultBufferSize.
	InputBufferSize  int
	OutputBufferSize int
}

// DefaultCompressionOptions mirrors xz(1) defaults: preset 6 with CRC64.
func DefaultCompressionOptions() *CompressionOptions {
	return &CompressionOptions{
		Level: lzma.PresetDefault,
		Check: lzma.CheckCRC64,
	}
}

func (o *CompressionOptions) preset() lzma.Preset {
	if o.Extreme {
		return o.Level.Extreme()
	}
	return o.Level
}

func (o *CompressionOptions) inputCapacity() int {
	if o.InputBufferSize > 0 {
		return o.InputBufferSize
	}
	return DefaultBufferSize
}

func (o *CompressionOptions) outputCapacity() int {
	if o.OutputBufferSize > 0 {
		return o.OutputBufferSize
	}
	return DefaultBufferSize
}

// coder is the common surface of the .xz encoder, the legacy alone encoder
// and the decoder that the pipeline drivers run against.
type coder interface {
	Process(input, output []byte, action lzma.Action) (int, int, error)
	Finished() bool
	Close() error
}

func (o *CompressionOptions) buildEncoder() (coder, error) {
	switch o.Format {
	case FormatXz:
		return o.buildXzEncoder()
	case FormatLzma:
		return o.buildAloneEncoder()
	}
	return nil, invalidOption("unknown encode format %d", o.Format)
}

func (o *CompressionOptions) buildXzEncoder() (coder, error) {
	threads := sanitizeThreads(o.Threads)
	stream := lzma.NewStream()

	if threads <= 1 && o.BlockSize == 0 && o.Timeout == 0 && len(o.Filters) == 0 {
		encoder, err := stream.Encoder(o.preset(), o.Check)
		if err != nil {
			return nil, err
		}
		return encoder, nil
	}

	encoder, err := stream.EncoderMT(lzma.EncoderOptions{
		Preset:    o.preset(),
		Check:     o.Check,
		Threads:   threads,
		BlockSize: o.BlockSize,
		TimeoutMS: durationToTimeout(o.Timeout),
		Filters:   o.Filters,
	})
	if err != nil {
		return nil, err
	}
	return encoder, nil
}

func (o *CompressionOptions) buildAloneEncoder() (coder, error) {
	if o.Check != lzma.CheckNone {
		return nil, invalidOption("integrity checks are not supported in .lzma format")
	}
	if o.Threads > 1 {
		return nil, &ThreadingUnsupportedError{Requested: o.Threads, Mode: ModeLzma}
	}
	if o.BlockSize != 0 {
		return nil, invalidOption("block size is not supported in .lzma format")
	}
	if o.Timeout != 0 {
		return nil, invalidOption("timeout is not supported in .lzma format")
	}
	if len(o.Filters) != 0 {
		return nil, invalidOption("custom filter chains are not supported in .lzma format")
	}

	opts := o.Lzma1
	if opts == nil {
		var err error
		opts, err = lzma.Lzma1OptionsFromPreset(o.preset())
		if err != nil {
			return nil, err
		}
	}
	encoder, err := lzma.NewStream().AloneEncoder(opts)
	if err != nil {
		return nil, err
	}
	return encoder, nil
}

// DecompressionOptions configures Decompress and NewReader.
type DecompressionOptions struct {
	// Threads is the worker count; 0 means auto-detect. Only ModeXz supports
	// more than one thread.
	Threads int
	// MemLimit is the soft decoder memory limit in bytes; 0 means the
	// 256 MiB default.
	MemLimit uint64
	// MemLimitStop is the hard decoder memory limit; 0 means equal to
	// MemLimit. It must not be smaller than MemLimit.
	MemLimitStop uint64
	// Flags alter stream parsing; see the lzma package.
	Flags lzma.Flags
	// Mode selects the decoder flavor.
	Mode DecodeMode
	// Timeout bounds internal synchronization of the multi-threaded decoder.
	Timeout time.Duration
	// InputBufferSize and OutputBufferSize set the pipeline buffer
	// capacities; 0 means DefaultBufferSize.
	InputBufferSize  int
	OutputBufferSize int
}

// DefaultDecompressionOptions uses auto format detection and a 256 MiB
// memory limit.
func DefaultDecompressionOptions() *DecompressionOptions {
	return &DecompressionOptions{}
}

func (o *DecompressionOptions) memlimit() uint64 {
	if o.MemLimit > 0 {
		return o.MemLimit
	}
	return defaultMemLimit
}

func (o *DecompressionOptions) inputCapacity() int {
	if o.InputBufferSize > 0 {
		return o.InputBufferSize
	}
	return DefaultBufferSize
}

func (o *DecompressionOptions) outputCapacity() int {
	if o.OutputBufferSize > 0 {
		return o.OutputBufferSize
	}
	return DefaultBufferSize
}

func (o *DecompressionOptions) buildDecoder() (*lzma.Decoder, error) {
	memlimit := o.memlimit()
	memlimitStop := o.MemLimitStop
	if memlimitStop == 0 {
		memlimitStop = memlimit
	}
	if memlimitStop < memlimit {
		return nil, invalidOption("memlimit_stop %d is smaller than memlimit %d",
			memlimitStop, memlimit)
	}

	stream := lzma.NewStream()

	switch o.Mode {
	case ModeAuto:
		if o.Threads > 1 {
			return nil, &ThreadingUnsupportedError{Requested: o.Threads, Mode: ModeAuto}
		}
		return stream.AutoDecoder(memlimit, o.Flags)
	case ModeXz:
		return stream.DecoderMT(lzma.DecoderOptions{
			Threads:      sanitizeThreads(o.Threads),
			MemLimit:     memlimit,
			MemLimitStop: memlimitStop,
			Flags:        o.Flags,
			TimeoutMS:    durationToTimeout(o.Timeout),
		})
	case ModeLzma:
		if o.Threads > 1 {
			return nil, &ThreadingUnsupportedError{Requested: o.Threads, Mode: ModeLzma}
		}
		return stream.AloneDecoder(memlimit)
	}
	return nil, invalidOption("unknown decode mode %d", o.Mode)
}

// durationToTimeout converts a duration to liblzma's millisecond timeout,
// saturating instead of overflowing.
func durationToTimeout(d time.Duration) uint32 {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	if ms > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(ms)
}
