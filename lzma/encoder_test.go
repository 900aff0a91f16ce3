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

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeAll drives an encoder over data until stream end and returns the
// compressed bytes.
func encodeAll(t *testing.T, enc *Encoder, data []byte) []byte {
	t.Helper()

	var compressed bytes.Buffer
	output := make([]byte, 4096)

	for len(data) > 0 {
		used, written, err := enc.Process(data, output, Run)
		require.NoError(t, err)
		compressed.Write(output[:written])
		data = data[used:]
		if used == 0 && written == 0 {
			break
		}
	}
	for !enc.Finished() {
		_, written, err := enc.Process(nil, output, Finish)
		require.NoError(t, err)
		compressed.Write(output[:written])
	}
	return compressed.Bytes()
}

// decodeAll drives a decoder over data until stream end and returns the
// decompressed bytes.
func decodeAll(t *testing.T, dec *Decoder, data []byte) []byte {
	t.Helper()

	var plain bytes.Buffer
	output := make([]byte, 4096)

	for !dec.Finished() {
		action := Run
		if len(data) == 0 {
			action = Finish
		}
		used, written, err := dec.Process(data, output, action)
		require.NoError(t, err)
		plain.Write(output[:written])
		data = data[used:]
		if action == Finish && used == 0 && written == 0 && !dec.Finished() {
			t.Fatal("decoder stalled before stream end")
		}
	}
	return plain.Bytes()
}

func TestEncoderRoundTrip(t *testing.T) {
	data := []byte("The quick brown fox jumps over the lazy dog")

	enc, err := NewStream().Encoder(Preset6, CheckCRC64)
	require.NoError(t, err)

	compressed := encodeAll(t, enc, data)
	assert.True(t, enc.Finished())
	assert.NotEmpty(t, compressed)
	assert.Equal(t, uint64(len(data)), enc.TotalIn())
	assert.Equal(t, uint64(len(compressed)), enc.TotalOut())

	dec, err := NewStream().Decoder(MemLimitUnbounded, 0)
	require.NoError(t, err)
	defer dec.Close()

	assert.Equal(t, data, decodeAll(t, dec, compressed))
}

func TestEncoderMagicBytes(t *testing.T) {
	enc, err := NewStream().Encoder(Preset1, CheckCRC32)
	require.NoError(t, err)

	compressed := encodeAll(t, enc, []byte("magic"))
	require.True(t, len(compressed) > HeaderSize*2)

	// Stream header magic and footer magic are fixed by the format.
	assert.Equal(t, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}, compressed[:6])
	assert.Equal(t, []byte{'Y', 'Z'}, compressed[len(compressed)-2:])
}

func TestEncoderEmptyInput(t *testing.T) {
	enc, err := NewStream().Encoder(Preset1, CheckCRC32)
	require.NoError(t, err)

	compressed := encodeAll(t, enc, nil)
	assert.True(t, enc.Finished())
	// Header, empty index and footer are always present.
	assert.NotEmpty(t, compressed)
}

func TestEncoderFinishAfterFinishedIsProgError(t *testing.T) {
	enc, err := NewStream().Encoder(Preset1, CheckCRC32)
	require.NoError(t, err)

	_ = encodeAll(t, enc, []byte("x"))
	require.True(t, enc.Finished())

	output := make([]byte, 64)
	_, _, err = enc.Process(nil, output, Finish)
	assert.ErrorIs(t, err, ErrProg)

	// Non-finish actions on a finished coder are inert.
	used, written, err := enc.Process([]byte("more"), output, Run)
	assert.NoError(t, err)
	assert.Zero(t, used)
	assert.Zero(t, written)
}

func TestEncoderTotalsMatchDeltas(t *testing.T) {
	data := bytes.Repeat([]byte("totals "), 1000)

	enc, err := NewStream().Encoder(Preset3, CheckCRC32)
	require.NoError(t, err)
	defer enc.Close()

	output := make([]byte, 512)
	var sumIn, sumOut uint64
	for len(data) > 0 && !enc.Finished() {
		inBefore, outBefore := enc.TotalIn(), enc.TotalOut()
		used, written, err := enc.Process(data, output, Run)
		require.NoError(t, err)
		assert.Equal(t, uint64(used), enc.TotalIn()-inBefore)
		assert.Equal(t, uint64(written), enc.TotalOut()-outBefore)
		sumIn += uint64(used)
		sumOut += uint64(written)
		data = data[used:]
		if used == 0 && written == 0 {
			break
		}
	}
	assert.Equal(t, sumIn, enc.TotalIn())
	assert.Equal(t, sumOut, enc.TotalOut())
}

func TestEncoderMTRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("A"), 1<<20)

	enc, err := NewStream().EncoderMT(EncoderOptions{
		Preset:  Preset3,
		Check:   CheckSHA256,
		Threads: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(4), enc.Threads())

	compressed := encodeAll(t, enc, data)
	assert.True(t, enc.Finished())

	dec, err := NewStream().Decoder(MemLimitUnbounded, 0)
	require.NoError(t, err)
	defer dec.Close()

	assert.Equal(t, data, decodeAll(t, dec, compressed))
}

func TestEncoderMTWithFilterChain(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 4096)

	enc, err := NewStream().EncoderMT(EncoderOptions{
		Check:   CheckCRC64,
		Threads: 2,
		Filters: []FilterConfig{
			{ID: FilterDelta, DeltaDist: 8},
			{ID: FilterLZMA2, Preset: Preset4},
		},
	})
	require.NoError(t, err)

	compressed := encodeAll(t, enc, data)
	require.True(t, enc.Finished())

	dec, err := NewStream().Decoder(MemLimitUnbounded, 0)
	require.NoError(t, err)
	defer dec.Close()

	assert.Equal(t, data, decodeAll(t, dec, compressed))
}

func TestFilterChainTooLong(t *testing.T) {
	configs := []FilterConfig{
		{ID: FilterDelta, DeltaDist: 1},
		{ID: FilterDelta, DeltaDist: 1},
		{ID: FilterDelta, DeltaDist: 1},
		{ID: FilterDelta, DeltaDist: 1},
		{ID: FilterLZMA2, Preset: Preset1},
	}
	_, err := NewStream().EncoderMT(EncoderOptions{Threads: 1, Filters: configs})
	assert.ErrorIs(t, err, ErrOptions)
}

func TestEncoderCloseIsIdempotent(t *testing.T) {
	enc, err := NewStream().Encoder(Preset1, CheckNone)
	require.NoError(t, err)

	assert.NoError(t, enc.Close())
	assert.NoError(t, enc.Close())
	assert.True(t, enc.Finished())
}

func TestPresetExtreme(t *testing.T) {
	p := Preset6.Extreme()
	assert.True(t, p.IsExtreme())
	assert.Equal(t, uint32(6), p.Level())
	assert.False(t, Preset6.IsExtreme())
}
