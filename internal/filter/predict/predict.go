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

package predict

import (
	"bytes"
	"io"

	"seehuhn.de/go/pdfcore/internal/filter/limit"
)

// NewReader returns a reader which undoes the prediction on the data
// read from r.  For predictor 1, r is returned unchanged.
//
// If the data ends in the middle of a row, a PNG row is completed with
// zero bytes before decoding, while a partial TIFF row is decoded as far
// as it goes.
func NewReader(r io.Reader, p *Params) (io.Reader, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Predictor == 1 {
		return r, nil
	}

	inLen := p.bytesPerRow()
	if p.isPNG() {
		inLen++
	}
	return &reader{
		r:     r,
		c:     newRowCodec(p),
		in:    make([]byte, 0, min(inLen, initialRowBuf)),
		inLen: inLen,
	}, nil
}

// initialRowBuf is the initial capacity of the row buffer.  The buffer
// grows as data arrives.
const initialRowBuf = 4096

type reader struct {
	r     io.Reader
	c     *rowCodec
	in    []byte
	inLen int
	out   []byte // decoded data not yet returned
	err   error
}

func (r *reader) Read(p []byte) (int, error) {
	for len(r.out) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		r.nextRow()
	}
	n := copy(p, r.out)
	r.out = r.out[n:]
	return n, nil
}

// readRow reads up to one row of input into r.in.
func (r *reader) readRow() error {
	r.in = r.in[:0]
	for len(r.in) < r.inLen {
		if len(r.in) == cap(r.in) {
			r.in = append(r.in, 0)[:len(r.in)]
		}
		end := min(cap(r.in), r.inLen)
		k, err := r.r.Read(r.in[len(r.in):end])
		r.in = r.in[:len(r.in)+k]
		if err != nil {
			if len(r.in) == r.inLen && err == io.EOF {
				return nil
			}
			return err
		}
	}
	return nil
}

func (r *reader) nextRow() {
	err := r.readRow()
	n := len(r.in)
	switch {
	case err == nil:
		// pass
	case err == io.EOF && n > 0:
		r.err = io.EOF
	default:
		r.err = err
		return
	}

	if !r.c.p.isPNG() {
		row := r.in
		r.c.decodeTIFF(row)
		r.out = row
		return
	}

	if n < r.inLen {
		r.in = append(r.in, make([]byte, r.inLen-n)...)
	}
	row := r.in[1:]
	if e := r.c.decodePNG(r.in[0], row); e != nil {
		r.err = e
		return
	}
	r.out = row
}

// Decode undoes the prediction on a complete buffer.  If max is positive,
// decoding fails with [limit.ErrExceeded] once more than max bytes of
// output are produced.  PNG parameters with rows longer than max are
// rejected before any row is decoded.
func Decode(data []byte, p *Params, max int64) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if max > 0 && p.isPNG() && len(data) > 0 && int64(p.bytesPerRow()) > max {
		return nil, limit.ErrExceeded
	}
	r, err := NewReader(bytes.NewReader(data), p)
	if err != nil {
		return nil, err
	}
	return limit.ReadAll(r, max, len(data))
}

// NewWriter returns a writer which applies the prediction to the data
// before passing it on to w.  For predictor 1, w is returned unchanged.
// If the data does not end at a row boundary, Close completes the last
// row with zero bytes.
func NewWriter(w io.WriteCloser, p *Params) (io.WriteCloser, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Predictor == 1 {
		return w, nil
	}

	rowLen := p.bytesPerRow()
	return &writer{
		w:   w,
		c:   newRowCodec(p),
		row: make([]byte, 0, rowLen),
		out: make([]byte, rowLen+1),
	}, nil
}

type writer struct {
	w   io.WriteCloser
	c   *rowCodec
	row []byte // pending input
	out []byte
}

func (w *writer) Write(p []byte) (int, error) {
	n := 0
	for len(p) > 0 {
		k := min(cap(w.row)-len(w.row), len(p))
		w.row = append(w.row, p[:k]...)
		p = p[k:]
		n += k
		if len(w.row) == cap(w.row) {
			if err := w.flushRow(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

func (w *writer) flushRow() error {
	row := w.row[:cap(w.row)]
	var out []byte
	if w.c.p.isPNG() {
		var tag byte
		if w.c.p.Predictor == 15 {
			tag = w.c.optimumTag(row, w.out[1:])
		} else {
			tag = byte(w.c.p.Predictor - 10)
		}
		w.out[0] = tag
		w.c.encodePNG(tag, row, w.out[1:])
		copy(w.c.prev, row)
		out = w.out
	} else {
		out = w.out[:len(row)]
		copy(out, row)
		w.c.encodeTIFF(out)
	}
	w.row = w.row[:0]
	_, err := w.w.Write(out)
	return err
}

func (w *writer) Close() error {
	if len(w.row) > 0 {
		n := len(w.row)
		w.row = w.row[:cap(w.row)]
		clear(w.row[n:])
		if err := w.flushRow(); err != nil {
			return err
		}
	}
	return w.w.Close()
}

// Encode applies the prediction to a complete buffer.
func Encode(data []byte, p *Params) ([]byte, error) {
	buf := &bytes.Buffer{}
	w, err := NewWriter(nopCloser{buf}, p)
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

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
