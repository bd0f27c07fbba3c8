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

package lzw

import (
	"bytes"
	"io"
)

// NewWriter returns a WriteCloser which compresses data using LZW and
// writes the result to w.  Close writes the end-of-data code and flushes
// the output, but does not close w.
func NewWriter(w io.Writer, earlyChange bool) (io.WriteCloser, error) {
	e := &writer{
		w:     w,
		dict:  make(map[uint32]uint16),
		cur:   -1,
		next:  firstCode,
		width: minWidth,
	}
	if earlyChange {
		e.early = 1
	}
	e.emit(clearCode)
	return e, nil
}

type writer struct {
	w     io.Writer
	early int
	err   error

	dict  map[uint32]uint16
	cur   int // code of the pending string, or -1
	next  int
	width uint

	acc   uint64
	nBits uint
	buf   []byte
}

func (e *writer) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}

	for _, c := range p {
		if e.cur < 0 {
			e.cur = int(c)
			continue
		}
		key := uint32(e.cur)<<8 | uint32(c)
		if code, ok := e.dict[key]; ok {
			e.cur = int(code)
			continue
		}
		e.emit(e.cur)
		e.add(key)
		e.cur = int(c)
	}

	return len(p), e.flush()
}

// add inserts a new table entry, or resets the table if the next entry
// would need a code wider than 12 bits.
func (e *writer) add(key uint32) {
	if e.next+e.early > maxCode {
		e.emit(clearCode)
		clear(e.dict)
		e.next = firstCode
		e.width = minWidth
		return
	}
	e.dict[key] = uint16(e.next)
	e.width = codeWidth(e.next, e.early)
	e.next++
}

func (e *writer) emit(code int) {
	e.acc = e.acc<<e.width | uint64(code)
	e.nBits += e.width
	for e.nBits >= 8 {
		e.nBits -= 8
		e.buf = append(e.buf, byte(e.acc>>e.nBits))
	}
	e.acc &= 1<<e.nBits - 1
}

func (e *writer) flush() error {
	if len(e.buf) == 0 || e.err != nil {
		return e.err
	}
	_, e.err = e.w.Write(e.buf)
	e.buf = e.buf[:0]
	return e.err
}

func (e *writer) Close() error {
	if e.err != nil {
		return e.err
	}
	if e.cur >= 0 {
		e.emit(e.cur)
		e.cur = -1
		// the decoder will have added one more table entry by now
		e.width = codeWidth(e.next, e.early)
	}
	e.emit(eodCode)
	if e.nBits > 0 {
		e.buf = append(e.buf, byte(e.acc<<(8-e.nBits)))
		e.acc = 0
		e.nBits = 0
	}
	return e.flush()
}

// Encode compresses a complete buffer.
func Encode(data []byte, earlyChange bool) ([]byte, error) {
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, earlyChange)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
