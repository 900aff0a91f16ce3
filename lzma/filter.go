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
#include <stdlib.h>
#include <string.h>
#include <lzma.h>

// Filter chains handed to the multi-threaded encoder are captured by raw
// pointer during initialization, so the array and every option block live in
// C memory until the coder is finalized.

lzma_filter *go_xz_new_filters(size_t n) {
	lzma_filter *filters = calloc(n + 1, sizeof(lzma_filter));
	if (filters != NULL) {
		filters[n].id = LZMA_VLI_UNKNOWN;
		filters[n].options = NULL;
	}
	return filters;
}

void go_xz_set_filter(lzma_filter *filters, size_t i, uint64_t id, void *options) {
	filters[i].id = id;
	filters[i].options = options;
}

void go_xz_free_filters(lzma_filter *filters, size_t n) {
	size_t i;
	if (filters == NULL) {
		return;
	}
	for (i = 0; i < n; i++) {
		free(filters[i].options);
	}
	free(filters);
}

void *go_xz_new_lzma_options(uint32_t preset) {
	lzma_options_lzma *opt = calloc(1, sizeof(lzma_options_lzma));
	if (opt == NULL) {
		return NULL;
	}
	if (lzma_lzma_preset(opt, preset)) {
		free(opt);
		return NULL;
	}
	return opt;
}

void *go_xz_new_delta_options(uint32_t dist) {
	lzma_options_delta *opt = calloc(1, sizeof(lzma_options_delta));
	if (opt == NULL) {
		return NULL;
	}
	opt->type = LZMA_DELTA_TYPE_BYTE;
	opt->dist = dist;
	return opt;
}

void *go_xz_new_bcj_options(uint32_t start_offset) {
	lzma_options_bcj *opt = calloc(1, sizeof(lzma_options_bcj));
	if (opt == NULL) {
		return NULL;
	}
	opt->start_offset = start_offset;
	return opt;
}
*/
import "C"

import (
	"unsafe"

	"github.com/pkg/errors"
)

// FilterID identifies a liblzma filter. The values match the LZMA_FILTER_*
// constants.
type FilterID uint64

const (
	FilterLZMA1    FilterID = 0x4000000000000001
	FilterLZMA2    FilterID = 0x21
	FilterDelta    FilterID = 0x03
	FilterX86      FilterID = 0x04
	FilterPowerPC  FilterID = 0x05
	FilterIA64     FilterID = 0x06
	FilterARM      FilterID = 0x07
	FilterARMThumb FilterID = 0x08
	FilterSPARC    FilterID = 0x09
	FilterARM64    FilterID = 0x0a
)

// FilterConfig describes one element of a custom filter chain. An LZMA1/LZMA2
// entry derives its parameter block from Preset; Delta uses DeltaDist; the
// BCJ filters use StartOffset (zero is the common case).
type FilterConfig struct {
	ID          FilterID
	Preset      Preset
	DeltaDist   uint32
	StartOffset uint32
}

// maxFilters is liblzma's LZMA_FILTERS_MAX.
const maxFilters = 4

// filterChain owns the C-allocated lzma_filter array plus its option blocks.
type filterChain struct {
	filters *C.lzma_filter
	count   int
}

func newFilterChain(configs []FilterConfig) (*filterChain, error) {
	if len(configs) > maxFilters {
		return nil, errors.Wrapf(ErrOptions, "filter chain has %d entries, maximum is %d",
			len(configs), maxFilters)
	}

	filters := C.go_xz_new_filters(C.size_t(len(configs)))
	if filters == nil {
		return nil, ErrMem
	}
	chain := &filterChain{filters: filters, count: len(configs)}

	for i, cfg := range configs {
		options, err := cfg.newOptions()
		if err != nil {
			chain.free()
			return nil, err
		}
		C.go_xz_set_filter(filters, C.size_t(i), C.uint64_t(cfg.ID), options)
	}
	return chain, nil
}

func (c *FilterConfig) newOptions() (unsafe.Pointer, error) {
	switch c.ID {
	case FilterLZMA1, FilterLZMA2:
		opt := C.go_xz_new_lzma_options(C.uint32_t(c.Preset))
		if opt == nil {
			return nil, errors.Wrapf(ErrOptions, "preset %d is not supported", c.Preset.Level())
		}
		return opt, nil
	case FilterDelta:
		opt := C.go_xz_new_delta_options(C.uint32_t(c.DeltaDist))
		if opt == nil {
			return nil, ErrMem
		}
		return opt, nil
	case FilterX86, FilterPowerPC, FilterIA64, FilterARM,
		FilterARMThumb, FilterSPARC, FilterARM64:
		opt := C.go_xz_new_bcj_options(C.uint32_t(c.StartOffset))
		if opt == nil {
			return nil, ErrMem
		}
		return opt, nil
	}
	return nil, errors.Wrapf(ErrOptions, "unknown filter id %#x", uint64(c.ID))
}

func (c *filterChain) ptr() *C.lzma_filter {
	return c.filters
}

func (c *filterChain) free() {
	if c.filters != nil {
		C.go_xz_free_filters(c.filters, C.size_t(c.count))
		c.filters = nil
	}
}
