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

// Package limit bounds the amount of data a decoder may produce.
package limit

import (
	"errors"
	"io"
)

// ErrExceeded is returned by a [Reader] once more than the permitted number
// of bytes has been requested from the underlying reader.
var ErrExceeded = errors.New("decoded data exceeds size limit")

// Reader returns at most Max bytes from R.  In contrast to [io.LimitedReader],
// reaching the limit is an error if R has more data: exactly one byte past
// the limit is read to detect this.
type Reader struct {
	R   io.Reader
	Max int64

	n   int64
	err error
}

// NewReader wraps r so that reading more than max bytes fails with
// [ErrExceeded].  If max is zero or negative, r is returned unchanged.
func NewReader(r io.Reader, max int64) io.Reader {
	if max <= 0 {
		return r
	}
	return &Reader{R: r, Max: max}
}

// Read implements the [io.Reader] interface.
func (l *Reader) Read(p []byte) (int, error) {
	if l.err != nil {
		return 0, l.err
	}

	room := l.Max - l.n
	if room <= 0 {
		// Probe for one more byte, to distinguish a stream which ends
		// exactly at the limit from one which continues.
		var probe [1]byte
		for {
			k, err := l.R.Read(probe[:])
			if k > 0 {
				l.err = ErrExceeded
				return 0, l.err
			}
			if err != nil {
				l.err = err
				return 0, err
			}
		}
	}

	if int64(len(p)) > room {
		p = p[:room]
	}
	n, err := l.R.Read(p)
	l.n += int64(n)
	if err != nil {
		l.err = err
	}
	return n, err
}

// ReadAll reads r until EOF, failing with [ErrExceeded] if more than max bytes
// are produced.  The hint is used to pre-size the result and never changes
// which bytes are returned.
func ReadAll(r io.Reader, max int64, hint int) ([]byte, error) {
	if hint < 512 {
		hint = 512
	}
	if max > 0 && int64(hint) > max+1 {
		hint = int(max + 1)
	}
	buf := make([]byte, 0, hint)
	lr := NewReader(r, max)
	for {
		if len(buf) == cap(buf) {
			buf = append(buf, 0)[:len(buf)]
		}
		n, err := lr.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if err == io.EOF {
			return buf, nil
		} else if err != nil {
			return nil, err
		}
	}
}

// maxHintRatio bounds size hints relative to the length of the input.
const maxHintRatio = 64

// Hint reduces a size hint taken from untrusted data to at most
// 64 times the input length plus 512 bytes.
func Hint(hint, inLen int) int {
	return min(hint, maxHintRatio*inLen+512)
}
