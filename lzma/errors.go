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

import "github.com/pkg/errors"

// Sentinel errors corresponding to the liblzma status codes. ErrStreamEnd is
// consumed internally by the coders; the rest surface from Process.
var (
	ErrStreamEnd        = errors.New("lzma: end of stream reached")
	ErrMem              = errors.New("lzma: memory allocation failed")
	ErrMemLimit         = errors.New("lzma: memory usage limit was reached")
	ErrFormat           = errors.New("lzma: file format not recognized")
	ErrOptions          = errors.New("lzma: invalid or unsupported options")
	ErrData             = errors.New("lzma: data is corrupt")
	ErrBuf              = errors.New("lzma: no progress is possible")
	ErrProg             = errors.New("lzma: programming error")
	ErrNoCheck          = errors.New("lzma: stream has no integrity check")
	ErrUnsupportedCheck = errors.New("lzma: integrity check type is not supported")
	ErrGetCheck         = errors.New("lzma: integrity check type is now available")
	// ErrSeekNeeded is not a failure: the file-info decoder uses it to request
	// a reader seek to the position reported by SeekPos.
	ErrSeekNeeded = errors.New("lzma: seek to a new input position required")
)

// errorMap is the bijection between status codes and sentinel errors. Ok maps
// to nil.
var errorMap = map[Return]error{
	StreamEnd:        ErrStreamEnd,
	NoCheck:          ErrNoCheck,
	UnsupportedCheck: ErrUnsupportedCheck,
	GetCheck:         ErrGetCheck,
	MemError:         ErrMem,
	MemLimitError:    ErrMemLimit,
	FormatError:      ErrFormat,
	OptionsError:     ErrOptions,
	DataError:        ErrData,
	BufError:         ErrBuf,
	ProgError:        ErrProg,
	SeekNeeded:       ErrSeekNeeded,
}

// errorFor translates a status code into an error value. Unknown codes are
// reported as wrapped ProgError so they cannot be confused with success.
func errorFor(ret Return) error {
	if ret == Ok {
		return nil
	}
	if err, ok := errorMap[ret]; ok {
		return err
	}
	return errors.Wrapf(ErrProg, "unknown liblzma status code %d", int(ret))
}

// returnFor is the inverse of errorFor; it is used by tests to verify the
// mapping is bijective.
func returnFor(err error) (Return, bool) {
	if err == nil {
		return Ok, true
	}
	for ret, candidate := range errorMap {
		if errors.Is(err, candidate) {
			return ret, true
		}
	}
	return 0, false
}
