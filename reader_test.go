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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsemak/go-xz/lzma"
)

func compressBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	_, err := Compress(bytes.NewReader(data), &buf, nil)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReaderRoundTrip(t *testing.T) {
	data := bytes.Repeat(sample, 100)
	compressed := compressBytes(t, data)

	r, err := NewReader(bytes.NewReader(compressed), nil)
	require.NoError(t, err)
	defer r.Close()

	plain, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, plain)
}

func TestReaderEmptyInput(t *testing.T) {
	r, err := NewReader(bytes.NewReader(nil), nil)
	require.NoError(t, err)
	defer r.Close()

	_, err = io.ReadAll(r)
	assert.ErrorIs(t, err, lzma.ErrData)
}

func TestReaderSmallDestination(t *testing.T) {
	data := bytes.Repeat(sample, 64)
	compressed := compressBytes(t, data)

	r, err := NewReader(bytes.NewReader(compressed), nil)
	require.NoError(t, err)
	defer r.Close()

	var plain bytes.Buffer
	buf := make([]byte, 7)
	for {
		n, err := r.Read(buf)
		plain.Write(buf[:n])
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, data, plain.Bytes())
}

func TestReaderConcatenatedRebuildsDecoder(t *testing.T) {
	a := bytes.Repeat([]byte("A"), 4096)
	b := bytes.Repeat([]byte("B"), 4096)
	concatenated := append(compressBytes(t, a), compressBytes(t, b)...)

	opts := DefaultDecompressionOptions()
	opts.Flags = lzma.Concatenated

	r, err := NewReader(bytes.NewReader(concatenated), opts)
	require.NoError(t, err)
	defer r.Close()

	plain, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, a...), b...), plain)
}

func TestReaderSingleStreamStopsAtFirst(t *testing.T) {
	concatenated := append(compressBytes(t, []byte("first")),
		compressBytes(t, []byte("second"))...)

	r, err := NewReader(bytes.NewReader(concatenated), nil)
	require.NoError(t, err)
	defer r.Close()

	plain, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), plain)
}

func TestReaderTruncatedInput(t *testing.T) {
	compressed := compressBytes(t, bytes.Repeat(sample, 200))

	r, err := NewReader(bytes.NewReader(compressed[:len(compressed)/2]), nil)
	require.NoError(t, err)
	defer r.Close()

	_, err = io.ReadAll(r)
	assert.ErrorIs(t, err, lzma.ErrData)
}

func TestReaderReadAfterClose(t *testing.T) {
	r, err := NewReader(bytes.NewReader(compressBytes(t, sample)), nil)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, err = r.Read(make([]byte, 16))
	assert.Error(t, err)
}

func TestWriterRoundTrip(t *testing.T) {
	data := bytes.Repeat(sample, 128)

	var compressed bytes.Buffer
	w, err := NewWriter(&compressed, nil)
	require.NoError(t, err)

	// Dribble the input in uneven chunks.
	for chunk := 0; chunk < len(data); {
		end := chunk + 777
		if end > len(data) {
			end = len(data)
		}
		n, err := w.Write(data[chunk:end])
		require.NoError(t, err)
		assert.Equal(t, end-chunk, n)
		chunk = end
	}
	require.NoError(t, w.Close())

	var plain bytes.Buffer
	_, err = Decompress(bytes.NewReader(compressed.Bytes()), &plain, nil)
	require.NoError(t, err)
	assert.Equal(t, data, plain.Bytes())
}

func TestWriterCloseWithoutWrite(t *testing.T) {
	var compressed bytes.Buffer
	w, err := NewWriter(&compressed, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// An empty stream is still a complete stream.
	var plain bytes.Buffer
	sum, err := Decompress(bytes.NewReader(compressed.Bytes()), &plain, nil)
	require.NoError(t, err)
	assert.Zero(t, sum.BytesWritten)
}

func TestWriterWriteAfterClose(t *testing.T) {
	w, err := NewWriter(io.Discard, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late"))
	assert.Error(t, err)
}

func TestWriterCloseIsIdempotent(t *testing.T) {
	w, err := NewWriter(io.Discard, nil)
	require.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}

func TestWriterReaderPipe(t *testing.T) {
	data := bytes.Repeat([]byte("pipe me through both adapters "), 1000)

	var compressed bytes.Buffer
	w, err := NewWriter(&compressed, nil)
	require.NoError(t, err)
	_, err = io.Copy(w, bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := NewReader(&compressed, nil)
	require.NoError(t, err)
	defer r.Close()

	plain, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, plain)
}
