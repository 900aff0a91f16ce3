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
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"golang.org/x/sys/unix"

	"github.com/dsemak/go-xz"
	"github.com/dsemak/go-xz/lzma"
)

// ioBufferSize is the capacity of the buffered file readers and writers.
const ioBufferSize = 512 * 1024

type operationMode int

const (
	modeCompress operationMode = iota
	modeDecompress
	modeCat
	modeTest
	modeList
)

type cliConfig struct {
	mode         operationMode
	keep         bool
	force        bool
	stdout       bool
	verbose      bool
	quiet        bool
	level        int
	extreme      bool
	threads      int
	memlimit     uint64
	check        lzma.Check
	format       string
	singleStream bool
	blockSize    uint64

	listTotals listSummary
	listFiles  int
	listHeader bool
}

func configFromContext(c *cli.Context) (*cliConfig, error) {
	config := &cliConfig{
		keep:         c.Bool("keep"),
		force:        c.Bool("force"),
		stdout:       c.Bool("stdout"),
		verbose:      c.Bool("verbose"),
		quiet:        c.Bool("quiet"),
		level:        c.Int("level"),
		extreme:      c.Bool("extreme"),
		threads:      c.Int("threads"),
		format:       c.String("format"),
		singleStream: c.Bool("single-stream"),
		blockSize:    c.Uint64("block-size"),
	}

	switch {
	case c.Bool("list"):
		config.mode = modeList
	case c.Bool("test"):
		config.mode = modeTest
	case c.Bool("decompress"):
		config.mode = modeDecompress
		if config.stdout {
			config.mode = modeCat
		}
	default:
		config.mode = modeCompress
	}

	if config.level < 0 || config.level > 9 {
		return nil, errors.Errorf("invalid compression level %d, must be 0-9", config.level)
	}

	switch config.format {
	case "xz", "lzma", "auto":
	default:
		return nil, errors.Errorf("unsupported format '%s'", config.format)
	}

	switch strings.ToLower(c.String("check")) {
	case "none":
		config.check = lzma.CheckNone
	case "crc32":
		config.check = lzma.CheckCRC32
	case "crc64":
		config.check = lzma.CheckCRC64
	case "sha256":
		config.check = lzma.CheckSHA256
	default:
		return nil, errors.Errorf("unsupported integrity check '%s'", c.String("check"))
	}

	if limit := c.String("memlimit"); limit != "" {
		parsed, err := parseMemoryLimit(limit)
		if err != nil {
			return nil, err
		}
		config.memlimit = parsed
	}

	return config, nil
}

// parseMemoryLimit accepts a byte count with an optional K/M/G (or KiB/MiB/
// GiB) suffix.
func parseMemoryLimit(s string) (uint64, error) {
	suffixes := []struct {
		suffix     string
		multiplier uint64
	}{
		{"KiB", 1 << 10}, {"MiB", 1 << 20}, {"GiB", 1 << 30},
		{"KB", 1 << 10}, {"MB", 1 << 20}, {"GB", 1 << 30},
		{"K", 1 << 10}, {"M", 1 << 20}, {"G", 1 << 30},
	}

	value := strings.TrimSpace(s)
	multiplier := uint64(1)
	for _, candidate := range suffixes {
		if strings.HasSuffix(value, candidate.suffix) {
			value = strings.TrimSuffix(value, candidate.suffix)
			multiplier = candidate.multiplier
			break
		}
	}

	parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid memory limit '%s'", s)
	}
	return parsed * multiplier, nil
}

// hasCompressionExtension reports whether path ends in a recognized
// compressed-file extension.
func hasCompressionExtension(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xz", ".lzma":
		return true
	}
	return false
}

// outputName derives the output path for the given input path and mode.
// Compression appends the format extension; decompression strips it.
func outputName(input string, config *cliConfig) (string, error) {
	switch config.mode {
	case modeCompress:
		ext := ".xz"
		if config.format == "lzma" {
			ext = ".lzma"
		}
		return input + ext, nil
	case modeDecompress:
		if !hasCompressionExtension(input) {
			return "", errors.Errorf(
				"filename '%s' has no recognized compressed-file extension", input)
		}
		return strings.TrimSuffix(input, filepath.Ext(input)), nil
	}
	return "", nil
}

func displayName(path string) string {
	if path == "" {
		return "(stdin)"
	}
	return path
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" {
		return io.NopCloser(bufio.NewReaderSize(os.Stdin, ioBufferSize)), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can not open '%s'", path)
	}
	return f, nil
}

func openOutput(path string, config *cliConfig) (*os.File, error) {
	if path == "" || config.stdout {
		return os.Stdout, nil
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if config.force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.Errorf(
				"output file '%s' already exists, use --force to overwrite", path)
		}
		return nil, errors.Wrapf(err, "can not create '%s'", path)
	}
	return f, nil
}

// sameFile reports whether the two paths name the same inode, which would
// make an in-place rewrite destroy the input.
func sameFile(a, b string) bool {
	var statA, statB unix.Stat_t
	if err := unix.Stat(a, &statA); err != nil {
		return false
	}
	if err := unix.Stat(b, &statB); err != nil {
		return false
	}
	return statA.Dev == statB.Dev && statA.Ino == statB.Ino
}

func processFile(path string, config *cliConfig) error {
	switch config.mode {
	case modeList:
		return listFile(path, config)
	case modeTest:
		return testFile(path, config)
	}

	output := ""
	if !config.stdout && path != "" {
		derived, err := outputName(path, config)
		if err != nil {
			return err
		}
		output = derived
		if path != "" && output != "" && sameFile(path, output) {
			return errors.Errorf("input and output file are the same: '%s'", path)
		}
	}

	in, err := openInput(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := openOutput(output, config)
	if err != nil {
		return err
	}

	reader := progressReader(in, path, config)
	writer := bufio.NewWriterSize(out, ioBufferSize)

	summary, err := runPipeline(reader, writer, config)
	if err == nil {
		err = writer.Flush()
	}
	if out != os.Stdout {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			// Do not leave a half-written output file behind.
			os.Remove(output)
		}
	}
	if err != nil {
		return err
	}

	Log.Debugf("%s: %d bytes in, %d bytes out", displayName(path),
		summary.BytesRead, summary.BytesWritten)

	return cleanupInputFile(path, config)
}

func runPipeline(reader io.Reader, writer io.Writer, config *cliConfig) (xz.Summary, error) {
	switch config.mode {
	case modeCompress:
		return xz.Compress(reader, writer, compressionOptions(config))
	case modeDecompress, modeCat:
		return xz.Decompress(reader, writer, decompressionOptions(config))
	}
	return xz.Summary{}, errors.New("unsupported operation")
}

// testFile decodes the input and discards the output, verifying checksums
// along the way.
func testFile(path string, config *cliConfig) error {
	in, err := openInput(path)
	if err != nil {
		return err
	}
	defer in.Close()

	if _, err := xz.Decompress(in, io.Discard, decompressionOptions(config)); err != nil {
		return err
	}
	Log.Debugf("%s: OK", displayName(path))
	return nil
}

// cleanupInputFile removes the input file after successful processing, the
// way xz(1) does, unless told to keep it.
func cleanupInputFile(path string, config *cliConfig) error {
	if path == "" || config.keep || config.stdout {
		return nil
	}
	if err := os.Remove(path); err != nil {
		return errors.Wrapf(err, "can not remove '%s'", path)
	}
	return nil
}

func compressionOptions(config *cliConfig) *xz.CompressionOptions {
	opts := xz.DefaultCompressionOptions()
	opts.Level = lzma.Preset(config.level)
	opts.Extreme = config.extreme
	opts.Check = config.check
	opts.Threads = config.threads
	opts.BlockSize = config.blockSize
	if config.format == "lzma" {
		opts.Format = xz.FormatLzma
		opts.Check = lzma.CheckNone
	}
	return opts
}

func decompressionOptions(config *cliConfig) *xz.DecompressionOptions {
	opts := xz.DefaultDecompressionOptions()
	opts.Threads = config.threads
	if config.memlimit > 0 {
		opts.MemLimit = config.memlimit
	}
	if !config.singleStream {
		opts.Flags = lzma.Concatenated
	}
	switch config.format {
	case "xz":
		opts.Mode = xz.ModeXz
	case "lzma":
		opts.Mode = xz.ModeLzma
		opts.Flags = 0
	default:
		opts.Mode = xz.ModeAuto
	}
	// Multi-threaded decoding is only available for the .xz format.
	if opts.Mode != xz.ModeXz {
		opts.Threads = 1
	}
	return opts
}
