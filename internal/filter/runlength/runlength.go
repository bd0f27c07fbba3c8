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

// Package runlength implements the RunLengthDecode filter.
//
// The encoded data is a sequence of runs.  A length byte n in the range
// 0-127 is followed by n+1 literal bytes, a length byte in the range 129-255
// is followed by a single byte which is repeated 257-n times, and the length
// byte 128 marks the end of the data.
package runlength

import (
	"bufio"
	"errors"
	"io"
)

const eod = 128

// ErrTruncated is returned when the input ends inside a run.
var ErrTruncated = errors.New("run-length data truncated inside a run")

// Decode returns a new ReadCloser which decodes run-length data from r.
// Data following the end-of-data marker is ignored.  Input which ends at a
// run boundary without an end-of-data marker is accepted.
func Decode(r io.Reader) io.ReadCloser {
	return &decoder{src: bufio.NewReader(r)}
}

type decoder struct {
	src *bufio.Reader
	err error

	// remaining bytes of the current run
	left   int
	repeat bool
	val    byte
}

func (d *decoder) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && d.err == nil {
		if d.left == 0 {
			d.err = d.startRun()
			continue
		}

		k := min(d.left, len(p)-n)
		if d.repeat {
			for i := range k {
				p[n+i] = d.val
			}
		} else {
			var err error
			k, err = io.ReadFull(d.src, p[n:n+k])
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				d.err = ErrTruncated
			} else if err != nil {
				d.err = err
			}
		}
		n += k
		d.left -= k
	}

	if n > 0 {
		return n, nil
	}
	return 0, d.err
}

func (d *decoder) startRun() error {
	length, err := d.src.ReadByte()
	if err != nil {
		return err
	}
	switch {
	case length == eod:
		return io.EOF
	case length < eod:
		d.left = int(length) + 1
		d.repeat = false
	default:
		val, err := d.src.ReadByte()
		if err == io.EOF {
			return ErrTruncated
		} else if err != nil {
			return err
		}
		d.left = 257 - int(length)
		d.repeat = true
		d.val = val
	}
	return nil
}

func (d *decoder) Close() error {
	return nil
}

// Encode returns a new WriteCloser which encodes data in run-length format.
// Closing the returned writer writes the end-of-data marker and closes w.
func Encode(w io.WriteCloser) io.WriteCloser {
	return &encoder{dst: w}
}

type encoder struct {
	dst io.WriteCloser

	// pending holds bytes which have not been written yet.  The last
	// runLen bytes of pending are all equal.
	pending []byte
	runLen  int
}

func (e *encoder) Write(p []byte) (int, error) {
	for i, c := range p {
		if e.runLen >= 3 && c != e.pending[0] {
			err := e.flushRun()
			if err != nil {
				return i, err
			}
		}

		if len(e.pending) > 0 && c == e.pending[len(e.pending)-1] {
			e.runLen++
		} else {
			e.runLen = 1
		}
		e.pending = append(e.pending, c)

		var err error
		switch {
		case e.runLen == 3 && len(e.pending) > 3:
			// Three equal bytes start a repeat run.  Emit the literal
			// bytes before them.
			err = e.flushLiteral(len(e.pending) - 3)
		case e.runLen == 128:
			err = e.flushRun()
		case e.runLen < 3 && len(e.pending) == 128:
			err = e.flushLiteral(128)
		}
		if err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// flushLiteral writes the first n pending bytes as a literal run.
func (e *encoder) flushLiteral(n int) error {
	out := make([]byte, 0, n+1)
	out = append(out, byte(n-1))
	out = append(out, e.pending[:n]...)
	_, err := e.dst.Write(out)
	e.pending = append(e.pending[:0], e.pending[n:]...)
	if len(e.pending) == 0 {
		e.runLen = 0
	}
	return err
}

// flushRun writes the pending bytes, which must all be equal, as a repeat
// run.
func (e *encoder) flushRun() error {
	_, err := e.dst.Write([]byte{byte(257 - len(e.pending)), e.pending[0]})
	e.pending = e.pending[:0]
	e.runLen = 0
	return err
}

func (e *encoder) Close() error {
	var err error
	switch {
	case e.runLen >= 3:
		err = e.flushRun()
	case len(e.pending) > 0:
		err = e.flushLiteral(len(e.pending))
	}
	if err != nil {
		return err
	}
	_, err = e.dst.Write([]byte{eod})
	if err != nil {
		return err
	}
	return e.dst.Close()
}
