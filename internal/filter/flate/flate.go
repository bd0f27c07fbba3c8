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

// Package flate implements the FlateDecode filter, which is zlib-wrapped
// Deflate data.
package flate

import (
	"bytes"
	"compress/zlib"
	"io"

	"seehuhn.de/go/pdfcore/internal/filter/limit"
)

// Decode decompresses zlib data.
//
// The hint is an estimate of the decoded length and is only used to
// size the output buffer.  Hints much larger than the input are reduced.  If maxOutput is positive, decoding fails with
// [limit.ErrExceeded] as soon as more than maxOutput bytes are produced.
func Decode(data []byte, hint int, maxOutput int64) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	if hint <= 0 {
		hint = 4 * len(data)
	}
	return limit.ReadAll(zr, maxOutput, limit.Hint(hint, len(data)))
}

// NewReader returns a reader which decompresses zlib data from r.
func NewReader(r io.Reader, maxOutput int64) (io.ReadCloser, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &reader{Reader: limit.NewReader(zr, maxOutput), zr: zr}, nil
}

type reader struct {
	io.Reader
	zr io.ReadCloser
}

func (r *reader) Close() error {
	return r.zr.Close()
}

// Encode compresses data using the best available compression level.
func Encode(data []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw, err := zlib.NewWriterLevel(buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	_, err = zw.Write(data)
	if err != nil {
		return nil, err
	}
	err = zw.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
