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

// Package lzma is a safe streaming facade over the native liblzma library.
//
// A Stream owns exactly one native coder state. It is initialized by exactly
// one of the coder constructors (Encoder, Decoder, AloneEncoder, IndexDecoder,
// FileInfoDecoder) and finalized exactly once when the coder reaches stream
// end or is closed. Coders expose a resumable byte-in/byte-out Process call
// instead of liblzma's pointer-threaded, status-coded API.
//
// Coder instances may be moved between goroutines but must never be used by
// two goroutines concurrently.
package lzma

// Return is a raw liblzma status code. The numeric values match lzma_ret.
type Return int

const (
	Ok               Return = iota // operation completed successfully
	StreamEnd                      // end of stream was reached
	NoCheck                        // input stream has no integrity check
	UnsupportedCheck               // cannot calculate the integrity check
	GetCheck                       // integrity check type is now available
	MemError                       // cannot allocate memory
	MemLimitError                  // memory usage limit was reached
	FormatError                    // file format not recognized
	OptionsError                   // invalid or unsupported options
	DataError                      // data is corrupt
	BufError                       // no progress is possible
	ProgError                      // programming error
	SeekNeeded                     // request to change the input file position
)

// Action selects what a Process call should do. The values match lzma_action.
type Action int

const (
	Run         Action = iota // continue coding
	SyncFlush                 // make all the input available at output
	FullFlush                 // finish encoding of the current block
	Finish                    // finish the coding operation
	FullBarrier               // finish encoding of the current block without flushing
)

// Preset is an xz(1)-compatible compression preset (levels 0-9).
type Preset uint32

const (
	Preset0 Preset = iota
	Preset1
	Preset2
	Preset3
	Preset4
	Preset5
	Preset6
	Preset7
	Preset8
	Preset9

	// PresetDefault mirrors xz(1)'s default level.
	PresetDefault = Preset6

	// presetExtreme is the LZMA_PRESET_EXTREME modifier bit.
	presetExtreme Preset = 1 << 31
)

// Extreme returns the preset with the "extreme" modifier applied.
func (p Preset) Extreme() Preset {
	return p | presetExtreme
}

// Level returns the numeric level with any modifier bits stripped.
func (p Preset) Level() uint32 {
	return uint32(p &^ presetExtreme)
}

// IsExtreme reports whether the "extreme" modifier is set.
func (p Preset) IsExtreme() bool {
	return p&presetExtreme != 0
}

// Check identifies the integrity check stored after each block of an .xz
// stream. The values match lzma_check.
type Check uint32

const (
	CheckNone   Check = 0
	CheckCRC32  Check = 1
	CheckCRC64  Check = 4
	CheckSHA256 Check = 10
)

func (c Check) String() string {
	switch c {
	case CheckNone:
		return "None"
	case CheckCRC32:
		return "CRC32"
	case CheckCRC64:
		return "CRC64"
	case CheckSHA256:
		return "SHA-256"
	}
	return "Unknown"
}

// Flags alter decoder behavior. The values match the LZMA_TELL_*,
// LZMA_CONCATENATED and LZMA_IGNORE_CHECK flag bits.
type Flags uint32

const (
	// TellNoCheck makes Process report NoCheck for streams without an
	// integrity check.
	TellNoCheck Flags = 1 << iota
	// TellUnsupportedCheck makes Process report UnsupportedCheck instead of
	// silently continuing.
	TellUnsupportedCheck
	// TellAnyCheck makes Process report GetCheck once the check type is known.
	TellAnyCheck
	// Concatenated enables decoding of concatenated streams, optionally
	// separated by 4-aligned zero padding.
	Concatenated
	// IgnoreCheck disables integrity check verification.
	IgnoreCheck
)

// IsConcatenated reports whether the Concatenated flag is set.
func (f Flags) IsConcatenated() bool {
	return f&Concatenated != 0
}
