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

import "github.com/pkg/errors"

// Mode selects the LZMA1 encoder mode.
type Mode uint32

const (
	ModeFast   Mode = C.LZMA_MODE_FAST
	ModeNormal Mode = C.LZMA_MODE_NORMAL
)

// MatchFinder selects the LZMA1 match finder algorithm.
type MatchFinder uint32

const (
	MatchFinderHC3 MatchFinder = C.LZMA_MF_HC3
	MatchFinderHC4 MatchFinder = C.LZMA_MF_HC4
	MatchFinderBT2 MatchFinder = C.LZMA_MF_BT2
	MatchFinderBT3 MatchFinder = C.LZMA_MF_BT3
	MatchFinderBT4 MatchFinder = C.LZMA_MF_BT4
)

// Lzma1Options is the parameter block for the legacy .lzma container
// (lzma_options_lzma). Values start from an xz(1)-compatible preset and can
// be adjusted field by field.
type Lzma1Options struct {
	raw C.lzma_options_lzma
}

// Lzma1OptionsFromPreset derives a parameter block from a preset using
// lzma_lzma_preset as the starting point.
func Lzma1OptionsFromPreset(preset Preset) (*Lzma1Options, error) {
	opts := &Lzma1Options{}
	if C.lzma_lzma_preset(&opts.raw, C.uint32_t(preset)) != 0 {
		return nil, errors.Wrapf(ErrOptions, "preset %d is not supported", preset.Level())
	}
	return opts, nil
}

// SetDictSize sets the dictionary size in bytes.
func (o *Lzma1Options) SetDictSize(size uint32) *Lzma1Options {
	o.raw.dict_size = C.uint32_t(size)
	return o
}

// SetLiteralContextBits sets lc.
func (o *Lzma1Options) SetLiteralContextBits(lc uint32) *Lzma1Options {
	o.raw.lc = C.uint32_t(lc)
	return o
}

// SetLiteralPositionBits sets lp.
func (o *Lzma1Options) SetLiteralPositionBits(lp uint32) *Lzma1Options {
	o.raw.lp = C.uint32_t(lp)
	return o
}

// SetPositionBits sets pb.
func (o *Lzma1Options) SetPositionBits(pb uint32) *Lzma1Options {
	o.raw.pb = C.uint32_t(pb)
	return o
}

// SetMode selects fast or normal encoding.
func (o *Lzma1Options) SetMode(mode Mode) *Lzma1Options {
	o.raw.mode = C.lzma_mode(mode)
	return o
}

// SetNiceLen sets the nice length of a match.
func (o *Lzma1Options) SetNiceLen(niceLen uint32) *Lzma1Options {
	o.raw.nice_len = C.uint32_t(niceLen)
	return o
}

// SetMatchFinder selects the match finder algorithm.
func (o *Lzma1Options) SetMatchFinder(mf MatchFinder) *Lzma1Options {
	o.raw.mf = C.lzma_match_finder(mf)
	return o
}

// SetDepth sets the maximum match finder depth; 0 keeps liblzma defaults.
func (o *Lzma1Options) SetDepth(depth uint32) *Lzma1Options {
	o.raw.depth = C.uint32_t(depth)
	return o
}

// DictSize returns the dictionary size in bytes.
func (o *Lzma1Options) DictSize() uint32 {
	return uint32(o.raw.dict_size)
}
