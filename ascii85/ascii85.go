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

// Package ascii85 implements the ASCII85Decode filter.
//
// Groups of 4 bytes are represented by 5 characters in the range '!' to
// 'u', read as a base-85 number.  An all-zero group is abbreviated as 'z'.
// A final group of n < 4 bytes is written as n+1 characters.  The data
// ends with the marker "~>".
package ascii85

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Errors returned by the decoder.
var (
	ErrMisplacedZ  = errors.New("ascii85: 'z' inside a group")
	ErrShortGroup  = errors.New("ascii85: final group has only one character")
	ErrGroupTooBig = errors.New("ascii85: group value exceeds 32 bits")
)

// lineWidth is the maximal length of the lines written by the encoder.
const lineWidth = 79

// Decode returns a reader which decodes ASCII85 data read from r.
//
// White space is ignored everywhere.  The data ends at the first '~'; if
// no '~' is present, the end of input terminates the data.
func Decode(r io.Reader) io.Reader {
	return &reader{r: bufio.NewReader(r)}
}

type reader struct {
	r   *bufio.Reader
	err error

	v   uint64
	k   int
	out [4]byte
	buf []byte // decoded bytes not yet returned
}

func (r *reader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(r.buf) > 0 {
			k := copy(p[n:], r.buf)
			r.buf = r.buf[k:]
			n += k
			continue
		}
		if r.err != nil {
			break
		}
		r.next()
	}

	if n > 0 {
		return n, nil
	}
	return 0, r.err
}

// next decodes at most one group and stores the result in r.buf.
func (r *reader) next() {
	for {
		c, err := r.r.ReadByte()
		if err == io.EOF {
			c = '~'
		} else if err != nil {
			r.err = err
			return
		}

		switch {
		case isSpace(c):
			continue
		case c >= '!' && c <= 'u':
			r.v = r.v*85 + uint64(c-'!')
			r.k++
			if r.k == 5 {
				r.emit(4)
				return
			}
		case c == 'z':
			if r.k != 0 {
				r.err = ErrMisplacedZ
				return
			}
			r.v = 0
			r.emit(4)
			return
		case c == '~':
			switch r.k {
			case 0:
				r.err = io.EOF
			case 1:
				r.err = ErrShortGroup
			default:
				n := r.k - 1
				for r.k < 5 {
					r.v = r.v*85 + 84
					r.k++
				}
				r.emit(n)
				if r.err == nil {
					r.err = io.EOF
				}
			}
			return
		default:
			r.err = fmt.Errorf("ascii85: invalid character %q", c)
			return
		}
	}
}

func (r *reader) emit(n int) {
	if r.v > 0xFFFFFFFF {
		r.err = ErrGroupTooBig
		return
	}
	v := uint32(r.v)
	r.out[0] = byte(v >> 24)
	r.out[1] = byte(v >> 16)
	r.out[2] = byte(v >> 8)
	r.out[3] = byte(v)
	r.buf = r.out[:n]
	r.v = 0
	r.k = 0
}

func isSpace(c byte) bool {
	switch c {
	case 0, 9, 10, 12, 13, 32:
		return true
	}
	return false
}

// Encode returns a WriteCloser which writes the ASCII85 encoding of all
// data to w.  Closing the returned writer writes the end marker "~>" and
// closes w.
func Encode(w io.WriteCloser) io.WriteCloser {
	return &writer{
		w:   w,
		buf: make([]byte, 0, lineWidth+1),
	}
}

type writer struct {
	w   io.WriteCloser
	buf []byte // the current output line
	v   uint32
	k   int
}

func (w *writer) Write(p []byte) (int, error) {
	for i, b := range p {
		w.v = w.v<<8 | uint32(b)
		w.k++
		if w.k < 4 {
			continue
		}

		var err error
		if w.v == 0 {
			err = w.put('z')
		} else {
			c := digits(w.v)
			err = w.put(c[:]...)
		}
		w.v = 0
		w.k = 0
		if err != nil {
			return i, err
		}
	}
	return len(p), nil
}

func (w *writer) Close() error {
	if w.k > 0 {
		c := digits(w.v << (8 * (4 - w.k)))
		err := w.put(c[:w.k+1]...)
		if err != nil {
			return err
		}
	}
	err := w.put('~', '>')
	if err != nil {
		return err
	}
	if len(w.buf) > 0 {
		_, err = w.w.Write(w.buf)
		if err != nil {
			return err
		}
	}
	return w.w.Close()
}

// put appends characters to the current line, starting a new line
// when necessary.
func (w *writer) put(c ...byte) error {
	if len(w.buf)+len(c) > lineWidth {
		w.buf = append(w.buf, '\n')
		_, err := w.w.Write(w.buf)
		w.buf = w.buf[:0]
		if err != nil {
			return err
		}
	}
	w.buf = append(w.buf, c...)
	return nil
}

func digits(v uint32) [5]byte {
	var c [5]byte
	for i := 4; i >= 0; i-- {
		c[i] = byte(v%85) + '!'
		v /= 85
	}
	return c
}
