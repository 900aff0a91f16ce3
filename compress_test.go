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
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsemak/go-xz/lzma"
)

var sample = []byte("Hello, XZ pipeline! The quick brown fox jumps over the lazy dog.")

// slowReader hands out at most chunk bytes per Read call.
type slowReader struct {
	data  []byte
	chunk int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.chunk
	if n > len(p) {
		n = len(p)
	}
	if n > len(r.data) {
		n = len(r.data)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

// failingWriter fails after accepting limit bytes.
type failingWriter struct {
	limit int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.limit <= 0 {
		return 0, errors.New("disk full")
	}
	n := len(p)
	if n > w.limit {
		n = w.limit
	}
	w.limit -= n
	if n < len(p) {
		return n, errors.New("disk full")
	}
	return n, nil
}

func roundTrip(t *testing.T, data []byte, copts *CompressionOptions, dopts *DecompressionOptions) []byte {
	t.Helper()

	var compressed bytes.Buffer
	csum, err := Compress(bytes.NewReader(data), &compressed, copts)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), csum.BytesRead)
	assert.Equal(t, uint64(compressed.Len()), csum.BytesWritten)
	assert.True(t, compressed.Len() > 0)

	var plain bytes.Buffer
	dsum, err := Decompress(bytes.NewReader(compressed.Bytes()), &plain, dopts)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), dsum.BytesWritten)
	require.True(t, bytes.Equal(data, plain.Bytes()))

	return compressed.Bytes()
}

func TestRoundTripDefaults(t *testing.T) {
	roundTrip(t, sample, nil, nil)
}

func TestRoundTripFox43(t *testing.T) {
	data := []byte("The quick brown fox jumps over the lazy dog")
	require.Len(t, data, 43)

	opts := DefaultCompressionOptions()
	opts.Level = lzma.Preset6
	opts.Check = lzma.CheckCRC64
	opts.Threads = 1

	var compressed bytes.Buffer
	_, err := Compress(bytes.NewReader(data), &compressed, opts)
	require.NoError(t, err)
	assert.True(t, compressed.Len() > 0)

	var plain bytes.Buffer
	sum, err := Decompress(bytes.NewReader(compressed.Bytes()), &plain, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(43), sum.BytesWritten)
	assert.Equal(t, data, plain.Bytes())
}

func TestRoundTripSingleByte(t *testing.T) {
	opts := DefaultCompressionOptions()
	opts.Level = lzma.Preset1
	opts.Check = lzma.CheckCRC32
	plainOut := roundTrip(t, []byte("x"), opts, nil)
	assert.NotEmpty(t, plainOut)
}

func TestRoundTripEmptyInput(t *testing.T) {
	var compressed bytes.Buffer
	sum, err := Compress(bytes.NewReader(nil), &compressed, nil)
	require.NoError(t, err)
	assert.Zero(t, sum.BytesRead)
	// Header, index and footer are always emitted.
	assert.True(t, compressed.Len() > 0)

	var plain bytes.Buffer
	dsum, err := Decompress(bytes.NewReader(compressed.Bytes()), &plain, nil)
	require.NoError(t, err)
	assert.Zero(t, dsum.BytesWritten)
}

func TestRoundTripPresetAndCheckMatrix(t *testing.T) {
	data := bytes.Repeat([]byte("matrix "), 512)
	checks := []lzma.Check{
		lzma.CheckNone, lzma.CheckCRC32, lzma.CheckCRC64, lzma.CheckSHA256,
	}
	for level := 0; level <= 9; level++ {
		for _, check := range checks {
			opts := DefaultCompressionOptions()
			opts.Level = lzma.Preset(level)
			opts.Check = check
			roundTrip(t, data, opts, nil)
		}
	}
}

func TestRoundTripExtremePreset(t *testing.T) {
	opts := DefaultCompressionOptions()
	opts.Level = lzma.Preset2
	opts.Extreme = true
	roundTrip(t, sample, opts, nil)
}

func TestRoundTripTinyBuffers(t *testing.T) {
	opts := DefaultCompressionOptions()
	opts.InputBufferSize = 16
	opts.OutputBufferSize = 16

	dopts := DefaultDecompressionOptions()
	dopts.InputBufferSize = 16
	dopts.OutputBufferSize = 16

	roundTrip(t, bytes.Repeat(sample, 50), opts, dopts)
}

func TestRoundTripSlowReader(t *testing.T) {
	var compressed bytes.Buffer
	_, err := Compress(&slowReader{data: sample, chunk: 4}, &compressed, nil)
	require.NoError(t, err)

	var plain bytes.Buffer
	_, err = Decompress(&slowReader{data: compressed.Bytes(), chunk: 8}, &plain, nil)
	require.NoError(t, err)
	assert.Equal(t, sample, plain.Bytes())
}

func TestRoundTripMultiThreaded(t *testing.T) {
	data := bytes.Repeat([]byte("A"), 1<<20)

	opts := DefaultCompressionOptions()
	opts.Level = lzma.Preset3
	opts.Check = lzma.CheckSHA256
	opts.Threads = 4

	compressed := roundTrip(t, data, opts, nil)

	info, err := ExtractFileInfo(bytes.NewReader(compressed), lzma.MemLimitUnbounded)
	require.NoError(t, err)
	defer info.Close()
	assert.Equal(t, uint64(1), info.StreamCount())
}

func TestRoundTripLzmaFormat(t *testing.T) {
	opts := DefaultCompressionOptions()
	opts.Format = FormatLzma
	opts.Check = lzma.CheckNone

	dopts := DefaultDecompressionOptions()
	dopts.Mode = ModeLzma

	roundTrip(t, bytes.Repeat([]byte("legacy "), 300), opts, dopts)
}

func TestRoundTripOversizedThreadCountIsClamped(t *testing.T) {
	opts := DefaultCompressionOptions()
	opts.Threads = 1000
	roundTrip(t, sample, opts, nil)
}

func TestCompressWriteFailure(t *testing.T) {
	_, err := Compress(bytes.NewReader(bytes.Repeat(sample, 100)),
		&failingWriter{limit: 5}, nil)
	assert.Error(t, err)
}

func TestDecompressEmptyInputIsDataError(t *testing.T) {
	var plain bytes.Buffer
	_, err := Decompress(bytes.NewReader(nil), &plain, nil)
	assert.ErrorIs(t, err, lzma.ErrData)
}

func TestDecompressCorruptedInput(t *testing.T) {
	var plain bytes.Buffer
	_, err := Decompress(bytes.NewReader([]byte("This is not valid XZ data")), &plain, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, lzma.ErrFormat) || errors.Is(err, lzma.ErrData),
		"got %v", err)
}

func TestDecompressTruncatedInput(t *testing.T) {
	var compressed bytes.Buffer
	_, err := Compress(bytes.NewReader(bytes.Repeat(sample, 200)), &compressed, nil)
	require.NoError(t, err)

	prefix := compressed.Bytes()[:compressed.Len()/2]
	var plain bytes.Buffer
	_, err = Decompress(bytes.NewReader(prefix), &plain, nil)
	assert.ErrorIs(t, err, lzma.ErrData)
}

func TestDecompressMemoryLimit(t *testing.T) {
	var compressed bytes.Buffer
	_, err := Compress(bytes.NewReader(bytes.Repeat(sample, 1000)), &compressed, nil)
	require.NoError(t, err)

	dopts := DefaultDecompressionOptions()
	dopts.MemLimit = 1024

	var plain bytes.Buffer
	_, err = Decompress(bytes.NewReader(compressed.Bytes()), &plain, dopts)
	assert.ErrorIs(t, err, lzma.ErrMemLimit)
}

func TestDecompressSingleStreamIgnoresTail(t *testing.T) {
	var a, b bytes.Buffer
	_, err := Compress(bytes.NewReader([]byte("first")), &a, nil)
	require.NoError(t, err)
	_, err = Compress(bytes.NewReader([]byte("second")), &b, nil)
	require.NoError(t, err)

	concatenated := append(a.Bytes(), b.Bytes()...)

	var plain bytes.Buffer
	_, err = Decompress(bytes.NewReader(concatenated), &plain, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), plain.Bytes())
}

func TestDecompressConcatenatedStrictTrailingGarbage(t *testing.T) {
	var compressed bytes.Buffer
	_, err := Compress(bytes.NewReader([]byte("payload")), &compressed, nil)
	require.NoError(t, err)

	withGarbage := append(compressed.Bytes(), []byte("garbage!")...)

	dopts := DefaultDecompressionOptions()
	dopts.Flags = lzma.Concatenated

	var plain bytes.Buffer
	_, err = Decompress(bytes.NewReader(withGarbage), &plain, dopts)
	assert.ErrorIs(t, err, lzma.ErrData)
}

func TestDecompressConcatenatedStreams(t *testing.T) {
	a := bytes.Repeat([]byte("A"), 4096)
	b := bytes.Repeat([]byte("B"), 4096)

	var bufA, bufB bytes.Buffer
	_, err := Compress(bytes.NewReader(a), &bufA, nil)
	require.NoError(t, err)
	_, err = Compress(bytes.NewReader(b), &bufB, nil)
	require.NoError(t, err)

	concatenated := append(bufA.Bytes(), bufB.Bytes()...)

	dopts := DefaultDecompressionOptions()
	dopts.Flags = lzma.Concatenated

	var plain bytes.Buffer
	sum, err := Decompress(bytes.NewReader(concatenated), &plain, dopts)
	require.NoError(t, err)
	assert.Equal(t, uint64(8192), sum.BytesWritten)
	assert.Equal(t, append(append([]byte{}, a...), b...), plain.Bytes())
}

func TestSummaryStatistics(t *testing.T) {
	var compressed bytes.Buffer
	csum, err := Compress(bytes.NewReader(sample), &compressed, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(sample)), csum.BytesRead)
	assert.Equal(t, uint64(compressed.Len()), csum.BytesWritten)

	var plain bytes.Buffer
	dsum, err := Decompress(bytes.NewReader(compressed.Bytes()), &plain, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(compressed.Len()), dsum.BytesRead)
	assert.Equal(t, uint64(len(sample)), dsum.BytesWritten)
}
