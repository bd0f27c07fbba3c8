// seehuhn.de/go/pdfcore - low-level PDF objects, cross references and filters
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package ccittfax implements decoding of the CCITTFaxDecode filter.
//
// Group 4 (K < 0) and one-dimensional Group 3 (K = 0) data are decoded
// using golang.org/x/image/ccitt.  Mixed one- and two-dimensional Group 3
// data (K > 0) is not supported.
package ccittfax

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/image/ccitt"
	"seehuhn.de/go/pdfcore/internal/filter/limit"
)

const maxColumns = 1 << 20

// ErrMixedMode is returned for K > 0.
var ErrMixedMode = fmt.Errorf("ccittfax: mixed 1-D/2-D Group 3 coding: %w", errors.ErrUnsupported)

// Params holds the image parameters of CCITT fax data.
type Params struct {
	// K selects the encoding: K < 0 is Group 4, K = 0 is one-dimensional
	// Group 3, and K > 0 is mixed Group 3 coding.
	K int

	// Columns is the width of the image in pixels.
	Columns int

	// Rows is the height of the image in pixels.  If this is 0, the
	// height is determined by the data.
	Rows int

	// EndOfLine indicates that end-of-line bit patterns are present.
	EndOfLine bool

	// EncodedByteAlign indicates that each encoded row starts on a byte
	// boundary.
	EncodedByteAlign bool

	// EndOfBlock indicates that the data is terminated by an
	// end-of-block pattern.
	EndOfBlock bool

	// BlackIs1 indicates that 1 bits represent black pixels in the output.
	// Otherwise 0 bits represent black pixels.
	BlackIs1 bool

	// DamagedRowsBeforeError is the number of damaged rows which are
	// tolerated before an error occurs.  The decoder does not attempt to
	// repair damaged rows, so this field is only recorded.
	DamagedRowsBeforeError int
}

// DefaultParams returns the parameter values which apply when the
// decode parameter dictionary is empty.
func DefaultParams() *Params {
	return &Params{
		Columns:    1728,
		EndOfBlock: true,
	}
}

// Validate checks that the parameters describe a supported image.
func (p *Params) Validate() error {
	if p.Columns < 1 || p.Columns > maxColumns {
		return fmt.Errorf("ccittfax: invalid Columns %d", p.Columns)
	}
	if p.Rows < 0 {
		return fmt.Errorf("ccittfax: invalid Rows %d", p.Rows)
	}
	if p.K > 0 {
		return ErrMixedMode
	}
	return nil
}

// Decode decodes CCITT fax data.  The result has one bit per pixel, each
// row padded to a whole number of bytes.
//
// If max is positive, decoding fails with [limit.ErrExceeded] once the
// output exceeds max bytes.  If Rows is given, this is checked before
// decoding starts.
func Decode(data []byte, p *Params, max int64) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	rowLen := int64(p.Columns+7) / 8
	if max > 0 && int64(p.Rows)*rowLen > max {
		return nil, limit.ErrExceeded
	}

	sf := ccitt.Group3
	if p.K < 0 {
		sf = ccitt.Group4
	}
	height := p.Rows
	if height == 0 {
		height = ccitt.AutoDetectHeight
	}
	opts := &ccitt.Options{
		Align: p.EncodedByteAlign,
	}

	r := ccitt.NewReader(bytes.NewReader(data), ccitt.MSB, sf, p.Columns, height, opts)
	out, err := limit.ReadAll(r, max, len(data))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 && len(data) > 0 {
		return nil, errors.New("ccittfax: no image data decoded")
	}

	// The decoder produces 1 for white and 0 for black.
	if p.BlackIs1 {
		invert(out)
	}
	return out, nil
}

// invert flips every bit of the bitmap.
func invert(img []byte) {
	for i := range img {
		img[i] = ^img[i]
	}
}
