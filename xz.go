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

// Package xz provides buffered streaming compression and decompression for
// the .xz and legacy .lzma container formats, plus random-access extraction
// of .xz file metadata. It is built on the safe liblzma facade in the lzma
// subpackage.
package xz

// Summary reports the byte totals of a completed pipeline run.
type Summary struct {
	// BytesRead is the number of bytes consumed from the reader.
	BytesRead uint64
	// BytesWritten is the number of bytes written to the writer.
	BytesWritten uint64
}

// Ratio returns size as a percentage of reference, the conventional
// compression-ratio figure. It returns 0 when reference is zero.
func Ratio(size, reference uint64) float64 {
	if reference == 0 {
		return 0
	}
	return float64(size) / float64(reference) * 100
}
