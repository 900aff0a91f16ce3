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
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidOption marks configuration rejected before reaching the native
// library. Wrapped instances carry the offending option in their message.
var ErrInvalidOption = errors.New("xz: invalid option")

// AllocationError reports a failed buffer growth in one of the drivers.
type AllocationError struct {
	// Capacity is the size in bytes the buffer failed to grow to.
	Capacity int
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("xz: failed to allocate buffer of %d bytes", e.Capacity)
}

// ThreadingUnsupportedError reports a multi-threading request for a decode
// mode that forbids it.
type ThreadingUnsupportedError struct {
	Requested int
	Mode      DecodeMode
}

func (e *ThreadingUnsupportedError) Error() string {
	return fmt.Sprintf("xz: %d threads requested but %s mode is single-threaded only",
		e.Requested, e.Mode)
}

func invalidOption(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidOption, format, args...)
}
