// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// INCREMENTAL UTF-8 DECODER
// =============================================================================

const decodeBufSize = 4096

// Decoder turns arbitrary byte slices into valid text, carrying an
// incomplete trailing sequence over to the next call.
//
// In strict mode invalid input is an error. In lenient mode each invalid
// byte becomes U+FFFD.
type Decoder struct {
	t       transform.Transformer
	pending []byte
	dst     []byte
	offset  int64
}

// NewDecoder creates a decoder. strict selects error-on-invalid behavior.
func NewDecoder(strict bool) *Decoder {
	var t transform.Transformer = encoding.UTF8Validator
	if !strict {
		t = unicode.UTF8.NewDecoder()
	}
	return &Decoder{
		t:   t,
		dst: make([]byte, decodeBufSize),
	}
}

// Decode consumes p and returns the text that is complete so far.
func (d *Decoder) Decode(p []byte) (string, error) {
	return d.run(p, false)
}

// Flush signals end of input. A sequence still pending at this point is
// invalid (or replaced in lenient mode).
func (d *Decoder) Flush() (string, error) {
	return d.run(nil, true)
}

// Pending returns the number of bytes held back for the next call.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

// Reset discards held-back bytes and transformer state.
func (d *Decoder) Reset() {
	d.pending = d.pending[:0]
	d.offset = 0
	d.t.Reset()
}

func (d *Decoder) run(p []byte, atEOF bool) (string, error) {
	src := make([]byte, 0, len(d.pending)+len(p))
	src = append(src, d.pending...)
	src = append(src, p...)
	d.pending = d.pending[:0]

	var out strings.Builder
	for {
		nDst, nSrc, err := d.t.Transform(d.dst, src, atEOF)
		out.Write(d.dst[:nDst])
		src = src[nSrc:]
		d.offset += int64(nSrc)

		switch {
		case err == nil:
			d.pending = append(d.pending, src...)
			return out.String(), nil

		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				d.dst = make([]byte, 2*len(d.dst))
			}

		case errors.Is(err, transform.ErrShortSrc) && !atEOF:
			d.pending = append(d.pending, src...)
			return out.String(), nil

		default:
			return out.String(), decodeError(err, d.offset)
		}
	}
}
