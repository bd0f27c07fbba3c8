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

// Package asciihex implements the ASCIIHexDecode filter.
package asciihex

import (
	"bufio"
	"fmt"
	"io"
)

// Decode decodes data that has been encoded in ASCII hexadecimal form.
// White space is ignored, and '>' marks the end of the data.  If the data
// ends without a '>', the end of input is used instead.  A final odd digit
// is treated as if it were followed by 0.
func Decode(r io.Reader) io.ReadCloser {
	return &reader{r: bufio.NewReader(r)}
}

type reader struct {
	r   *bufio.Reader
	err error

	// high holds the first digit of an incomplete byte, or -1.
	high int
	init bool
}

func (r *reader) Read(p []byte) (n int, err error) {
	if !r.init {
		r.high = -1
		r.init = true
	}

	for n < len(p) && r.err == nil {
		c, err := r.r.ReadByte()
		if err != nil {
			r.err = err
			break
		}

		if c == '>' {
			r.err = io.EOF
			break
		}
		if isSpace(c) {
			continue
		}
		d, ok := hexDigit(c)
		if !ok {
			r.err = fmt.Errorf("asciihex: invalid character %q", c)
			break
		}

		if r.high < 0 {
			r.high = int(d)
		} else {
			p[n] = byte(r.high)<<4 | d
			n++
			r.high = -1
		}
	}

	if r.err == io.EOF && r.high >= 0 && n < len(p) {
		p[n] = byte(r.high) << 4
		n++
		r.high = -1
	}
	if n > 0 {
		return n, nil
	}
	return 0, r.err
}

func (r *reader) Close() error {
	if r.err == nil || r.err == io.EOF {
		return nil
	}
	return r.err
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

func isSpace(c byte) bool {
	switch c {
	case 0, 9, 10, 12, 13, 32:
		return true
	}
	return false
}

// Encode returns a WriteCloser which writes the hexadecimal form of the data
// to w, using lower case digits.  Lines are broken so that no line is longer
// than width characters.  Close writes the end-of-data marker '>' and closes
// w.
func Encode(w io.WriteCloser, width int) io.WriteCloser {
	if width < 2 {
		width = 2
	}
	return &writer{
		w:     w,
		width: width &^ 1,
	}
}

type writer struct {
	w     io.WriteCloser
	width int
	col   int
	buf   []byte
}

const hexDigits = "0123456789abcdef"

func (w *writer) Write(p []byte) (int, error) {
	w.buf = w.buf[:0]
	for _, c := range p {
		if w.col+2 > w.width {
			w.buf = append(w.buf, '\n')
			w.col = 0
		}
		w.buf = append(w.buf, hexDigits[c>>4], hexDigits[c&15])
		w.col += 2
	}
	_, err := w.w.Write(w.buf)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *writer) Close() error {
	var tail []byte
	if w.col+1 > w.width {
		tail = append(tail, '\n')
	}
	tail = append(tail, '>')
	_, err := w.w.Write(tail)
	if err != nil {
		return err
	}
	return w.w.Close()
}
