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

package main

import (
	"io"
	"os"

	"github.com/mendersoftware/progressbar"
)

type progressTicker struct {
	r        io.Reader
	bar      *progressbar.Bar
	finished bool
}

// progressReader wraps the input with a progress bar in verbose mode, when
// the input is a regular file whose size is known up front.
func progressReader(r io.Reader, path string, config *cliConfig) io.Reader {
	if !config.verbose || config.stdout || path == "" {
		return r
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() <= 0 {
		return r
	}
	return &progressTicker{r: r, bar: progressbar.New(info.Size())}
}

func (p *progressTicker) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 && !p.finished {
		p.bar.Tick(int64(n))
		if p.bar.Percentage >= 99 {
			p.bar.Finish()
			p.finished = true
		}
	}
	return n, err
}
