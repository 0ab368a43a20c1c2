// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// DECODER TESTS
// =============================================================================

func decodeAll(t *testing.T, d *Decoder, parts ...[]byte) string {
	t.Helper()
	var sb strings.Builder
	for _, p := range parts {
		s, err := d.Decode(p)
		require.NoError(t, err)
		sb.WriteString(s)
	}
	tail, err := d.Flush()
	require.NoError(t, err)
	sb.WriteString(tail)
	return sb.String()
}

func TestDecoder_ASCII(t *testing.T) {
	d := NewDecoder(true)
	assert.Equal(t, "Hi there", decodeAll(t, d, []byte("Hi"), []byte(" there")))
}

func TestDecoder_SplitMultiByte(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"two byte", "café"},
		{"three byte", "€100"},
		{"four byte", "ok 😀 done"},
		{"mixed", "naïve → 日本語 🩺"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := []byte(tt.text)
			// Every single split point must reproduce the original.
			for i := 0; i <= len(raw); i++ {
				d := NewDecoder(true)
				got := decodeAll(t, d, raw[:i], raw[i:])
				assert.Equal(t, tt.text, got, "split at %d", i)
			}

			// One byte per read.
			d := NewDecoder(true)
			parts := make([][]byte, len(raw))
			for i := range raw {
				parts[i] = raw[i : i+1]
			}
			assert.Equal(t, tt.text, decodeAll(t, d, parts...))
		})
	}
}

func TestDecoder_HoldsIncompleteSequence(t *testing.T) {
	d := NewDecoder(true)
	euro := []byte("€") // e2 82 ac

	s, err := d.Decode(euro[:2])
	require.NoError(t, err)
	assert.Empty(t, s)
	assert.Equal(t, 2, d.Pending())

	s, err = d.Decode(euro[2:])
	require.NoError(t, err)
	assert.Equal(t, "€", s)
	assert.Zero(t, d.Pending())
}

func TestDecoder_StrictRejectsInvalid(t *testing.T) {
	d := NewDecoder(true)

	_, err := d.Decode([]byte{'o', 'k', 0xff, 'x'})
	require.Error(t, err)
	assert.Equal(t, ErrTypeDecode, TypeOf(err))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecoder_StrictRejectsTruncatedTail(t *testing.T) {
	d := NewDecoder(true)
	euro := []byte("€")

	s, err := d.Decode(append([]byte("price "), euro[:2]...))
	require.NoError(t, err)
	assert.Equal(t, "price ", s)

	_, err = d.Flush()
	assert.Equal(t, ErrTypeDecode, TypeOf(err))
}

func TestDecoder_LenientReplaces(t *testing.T) {
	d := NewDecoder(false)
	got := decodeAll(t, d, []byte{'o', 'k', 0xff}, []byte("!"))
	assert.Equal(t, "ok�!", got)
}

func TestDecoder_LargeInput(t *testing.T) {
	text := strings.Repeat("héllo wörld ", 2000)
	d := NewDecoder(true)
	assert.Equal(t, text, decodeAll(t, d, []byte(text)))
}

func TestDecoder_ChunkedMultiByteBothModes(t *testing.T) {
	text := strings.Repeat("né€🙂 ", 3000)
	data := []byte(text)
	var parts [][]byte
	for len(data) > 0 {
		n := min(decodeBufSize, len(data))
		parts = append(parts, data[:n])
		data = data[n:]
	}

	for _, strict := range []bool{true, false} {
		d := NewDecoder(strict)
		assert.Equal(t, text, decodeAll(t, d, parts...), "strict=%v", strict)
	}
}

func TestDecoder_Reset(t *testing.T) {
	d := NewDecoder(true)
	_, err := d.Decode([]byte("€")[:1])
	require.NoError(t, err)
	d.Reset()
	assert.Zero(t, d.Pending())
	assert.Equal(t, "a", decodeAll(t, d, []byte("a")))
}
