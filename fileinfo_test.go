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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsemak/go-xz/lzma"
)

func TestExtractFileInfoSampleData(t *testing.T) {
	data := bytes.Repeat([]byte("Sample data "), 100)
	require.Len(t, data, 1200)

	opts := DefaultCompressionOptions()
	opts.Level = lzma.Preset6

	var compressed bytes.Buffer
	_, err := Compress(bytes.NewReader(data), &compressed, opts)
	require.NoError(t, err)

	info, err := ExtractFileInfo(bytes.NewReader(compressed.Bytes()), lzma.MemLimitUnbounded)
	require.NoError(t, err)
	defer info.Close()

	assert.Equal(t, uint64(1), info.StreamCount())
	assert.True(t, info.BlockCount() >= 1)
	assert.Equal(t, uint64(1200), info.UncompressedSize())
	assert.True(t, info.FileSize() < 1200)
	assert.NotZero(t, info.Checks())
}

func TestExtractFileInfoStreamsAndBlocks(t *testing.T) {
	data := bytes.Repeat([]byte("streams and blocks "), 500)
	compressed := compressBytes(t, data)

	info, err := ExtractFileInfo(bytes.NewReader(compressed), lzma.MemLimitUnbounded)
	require.NoError(t, err)
	defer info.Close()

	streams := info.Streams()
	require.Len(t, streams, int(info.StreamCount()))
	for _, stream := range streams {
		assert.True(t, stream.Number >= 1)
		assert.True(t, stream.CompressedSize > 0)
		assert.True(t, stream.UncompressedSize > 0)
	}

	blocks := info.Blocks()
	require.Len(t, blocks, int(info.BlockCount()))
	for i, block := range blocks {
		assert.Equal(t, uint64(i+1), block.NumberInFile)
		assert.True(t, block.TotalSize > 0)
		assert.True(t, block.UncompressedSize > 0)
	}

	assert.Equal(t, uint64(len(compressed)), info.FileSize())
	assert.True(t, Ratio(info.FileSize(), info.UncompressedSize()) < 100)
}

func TestExtractFileInfoEmptyFile(t *testing.T) {
	_, err := ExtractFileInfo(bytes.NewReader(nil), lzma.MemLimitUnbounded)
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestExtractFileInfoTooSmallFile(t *testing.T) {
	_, err := ExtractFileInfo(bytes.NewReader(make([]byte, 2*lzma.HeaderSize-1)),
		lzma.MemLimitUnbounded)
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestExtractFileInfoInvalidFile(t *testing.T) {
	garbage := bytes.Repeat([]byte("not an xz file at all "), 10)
	_, err := ExtractFileInfo(bytes.NewReader(garbage), lzma.MemLimitUnbounded)
	assert.Error(t, err)
}

func TestExtractFileInfoEmptyStream(t *testing.T) {
	compressed := compressBytes(t, nil)

	info, err := ExtractFileInfo(bytes.NewReader(compressed), lzma.MemLimitUnbounded)
	require.NoError(t, err)
	defer info.Close()

	assert.Equal(t, uint64(1), info.StreamCount())
	assert.Zero(t, info.UncompressedSize())
	assert.True(t, info.FileSize() > 0)
}

func TestExtractFileInfoConcatenatedStreams(t *testing.T) {
	concatenated := append(compressBytes(t, bytes.Repeat([]byte("A"), 2048)),
		compressBytes(t, bytes.Repeat([]byte("B"), 2048))...)

	info, err := ExtractFileInfo(bytes.NewReader(concatenated), lzma.MemLimitUnbounded)
	require.NoError(t, err)
	defer info.Close()

	assert.Equal(t, uint64(2), info.StreamCount())
	assert.Equal(t, uint64(4096), info.UncompressedSize())
	assert.Equal(t, uint64(len(concatenated)), info.FileSize())
}

func TestExtractFileInfoMultipleLevels(t *testing.T) {
	data := bytes.Repeat([]byte("The quick brown fox jumps over the lazy dog "), 20)

	for _, level := range []lzma.Preset{lzma.Preset0, lzma.Preset3, lzma.Preset6, lzma.Preset9} {
		opts := DefaultCompressionOptions()
		opts.Level = level

		var compressed bytes.Buffer
		_, err := Compress(bytes.NewReader(data), &compressed, opts)
		require.NoError(t, err)

		info, err := ExtractFileInfo(bytes.NewReader(compressed.Bytes()), lzma.MemLimitUnbounded)
		require.NoError(t, err)
		assert.Equal(t, uint64(len(data)), info.UncompressedSize())
		assert.Equal(t, uint64(1), info.StreamCount())
		info.Close()
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 0.0, Ratio(100, 0))
	assert.Equal(t, 50.0, Ratio(50, 100))
	assert.Equal(t, 100.0, Ratio(100, 100))
	assert.True(t, Ratio(150, 100) > 100)
}
