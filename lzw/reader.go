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

// Package lzw implements the LZW compression scheme used by the LZWDecode
// filter in PDF files.
//
// Codes are written most significant bit first, and the code width grows
// from 9 to 12 bits.  Code 256 clears the table and code 257 marks the
// end of the data.  With "early change", the code width is increased one
// code earlier than necessary, matching the TIFF variant of LZW.
package lzw

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"math/bits"

	"seehuhn.de/go/pdfcore/internal/filter/limit"
)

const (
	clearCode = 256
	eodCode   = 257
	firstCode = 258
	maxCode   = 4095
	minWidth  = 9
	maxWidth  = 12
)

// ErrInvalidCode is returned when the data refers to a table entry which
// has not been defined yet.
var ErrInvalidCode = errors.New("lzw: invalid code")

// codeWidth returns the width of the code which follows the creation of
// table entry next-1.
func codeWidth(next, early int) uint {
	w := uint(bits.Len(uint(next + early)))
	return min(max(w, minWidth), maxWidth)
}

// NewReader returns a ReadCloser which decompresses LZW data from r.
// The data may end with or without an end-of-data code.
func NewReader(r io.Reader, earlyChange bool) io.ReadCloser {
	d := &reader{
		r:    bufio.NewReader(r),
		prev: -1,
		next: firstCode,
	}
	if earlyChange {
		d.early = 1
	}
	for i := range 256 {
		d.suffix[i] = byte(i)
		d.first[i] = byte(i)
		d.length[i] = 1
	}
	return d
}

type reader struct {
	r     *bufio.Reader
	early int
	err   error

	acc   uint32
	nBits uint

	prefix [maxCode + 1]uint16
	suffix [maxCode + 1]byte
	first  [maxCode + 1]byte
	length [maxCode + 1]uint16
	next   int
	prev   int

	scratch [maxCode + 1]byte
	out     []byte
}

func (d *reader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(d.out) > 0 {
			k := copy(p[n:], d.out)
			d.out = d.out[k:]
			n += k
			continue
		}
		if d.err != nil {
			break
		}
		d.step()
	}
	if n > 0 {
		return n, nil
	}
	return 0, d.err
}

func (d *reader) Close() error {
	if d.err == nil || d.err == io.EOF {
		return nil
	}
	return d.err
}

// step reads one code and stores the resulting bytes in d.out.
func (d *reader) step() {
	code, err := d.readCode(codeWidth(d.next, d.early))
	if err != nil {
		d.err = err
		return
	}

	switch {
	case code == clearCode:
		d.next = firstCode
		d.prev = -1
		return
	case code == eodCode:
		d.err = io.EOF
		return
	case d.prev < 0:
		if code > 255 {
			d.err = ErrInvalidCode
			return
		}
		d.out = d.expand(code)
	case code < d.next:
		d.out = d.expand(code)
		d.add(d.first[code])
	case code == d.next && d.next <= maxCode:
		// The code is defined by this very step: it is the previous
		// string followed by its own first byte.
		d.add(d.first[d.prev])
		d.out = d.expand(code)
	default:
		d.err = ErrInvalidCode
		return
	}
	d.prev = code
}

func (d *reader) add(c byte) {
	if d.next > maxCode {
		return
	}
	d.prefix[d.next] = uint16(d.prev)
	d.suffix[d.next] = c
	d.first[d.next] = d.first[d.prev]
	d.length[d.next] = d.length[d.prev] + 1
	d.next++
}

// expand returns the string for a table entry.  The result is only valid
// until the next call.
func (d *reader) expand(code int) []byte {
	l := int(d.length[code])
	buf := d.scratch[:l]
	for i := l - 1; i >= 0; i-- {
		buf[i] = d.suffix[code]
		code = int(d.prefix[code])
	}
	return buf
}

func (d *reader) readCode(width uint) (int, error) {
	for d.nBits < width {
		b, err := d.r.ReadByte()
		if err != nil {
			return 0, err
		}
		d.acc = d.acc<<8 | uint32(b)
		d.nBits += 8
	}
	d.nBits -= width
	code := int(d.acc>>d.nBits) & (1<<width - 1)
	d.acc &= 1<<d.nBits - 1
	return code, nil
}

// Decode decompresses a complete buffer.  If maxOutput is positive,
// decoding fails with [limit.ErrExceeded] once more than maxOutput bytes
// are produced.
func Decode(data []byte, earlyChange bool, maxOutput int64) ([]byte, error) {
	r := NewReader(bytes.NewReader(data), earlyChange)
	return limit.ReadAll(r, maxOutput, 3*len(data))
}
