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

import "runtime"

// SafeMaxThreads returns the largest worker count the pipeline will hand to
// the native coders. A few cores are reserved for the rest of the system so
// that compression jobs do not starve it.
func SafeMaxThreads() int {
	cores := runtime.NumCPU()
	if cores < 1 {
		cores = 1
	}

	var reserve int
	switch {
	case cores == 1:
		reserve = 0
	case cores <= 4:
		reserve = 1
	case cores <= 7:
		reserve = 2
	default:
		reserve = 3
	}

	if safe := cores - reserve; safe > 1 {
		return safe
	}
	return 1
}

// sanitizeThreads maps a requested worker count to a usable one: zero means
// auto-detect and oversized requests are clamped to the safe maximum.
func sanitizeThreads(requested int) uint32 {
	maximum := SafeMaxThreads()
	if requested <= 0 || requested > maximum {
		return uint32(maximum)
	}
	return uint32(requested)
}
