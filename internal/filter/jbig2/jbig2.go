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

// Package jbig2 implements decoding of the JBIG2Decode filter, using
// github.com/jdeng/gojbig2.
package jbig2

import (
	"encoding/binary"
	"errors"

	"github.com/jdeng/gojbig2/pkg/jbig2"
	"seehuhn.de/go/pdfcore/internal/filter/limit"
)

// ErrNoImage is returned if the data decodes without errors, but does not
// contain an image.
var ErrNoImage = errors.New("jbig2: no image found")

// Image is a decoded bi-level image.  Data has one bit per pixel, rows are
// padded to a whole number of bytes, and 1 bits are black.
type Image struct {
	Width, Height int
	Data          []byte
}

// Decode decodes an embedded JBIG2 stream.  The optional globals hold the
// data of the JBIG2Globals stream shared between several images.
//
// If max is positive, images with more than max bytes of output fail with
// [limit.ErrExceeded].  When the page information segment gives the page
// height, this is checked before decoding.
func Decode(data, globals []byte, max int64) (*Image, error) {
	if max > 0 {
		if w, h, ok := pageSize(data); ok && (int64(w)+7)/8*int64(h) > max {
			return nil, limit.ErrExceeded
		}
	}

	dec, err := jbig2.New(jbig2.Options{
		GlobalData: globals,
		SrcData:    data,
	})
	if err != nil {
		return nil, err
	}
	err = dec.DecodeAll()
	if err != nil {
		return nil, err
	}

	img := dec.GetPageImage()
	if img == nil || img.Width() <= 0 || img.Height() <= 0 {
		img = nil
		for _, seg := range dec.GetSegments() {
			if seg.ResultType() == jbig2.ResultTypeImage && seg.Image() != nil {
				img = seg.Image()
			}
		}
	}
	if img == nil || img.Width() <= 0 || img.Height() <= 0 {
		return nil, ErrNoImage
	}
	if max > 0 && int64(img.Width()+7)/8*int64(img.Height()) > max {
		return nil, limit.ErrExceeded
	}
	return pack(img.Width(), img.Height(), img.Data())
}

// pack removes the row padding of the decoder's buffer.
func pack(width, height int, src []byte) (*Image, error) {
	stride := len(src) / height
	rowLen := (width + 7) / 8
	if stride < rowLen {
		return nil, errors.New("jbig2: image buffer too short")
	}

	out := make([]byte, rowLen*height)
	for y := range height {
		copy(out[y*rowLen:(y+1)*rowLen], src[y*stride:y*stride+rowLen])
	}
	if k := width % 8; k != 0 {
		mask := byte(0xFF) << (8 - k)
		for y := range height {
			out[(y+1)*rowLen-1] &= mask
		}
	}
	return &Image{Width: width, Height: height, Data: out}, nil
}

const (
	segPageInfo = 48

	unknownLength = 0xFFFFFFFF
)

// pageSize scans the segment headers of an embedded JBIG2 stream for the
// first page information segment, and returns the page size found there.
// The result ok is false if no page information segment with a known
// height is found.
func pageSize(data []byte) (width, height uint32, ok bool) {
	pos := 0
	for {
		if len(data)-pos < 6 {
			return 0, 0, false
		}
		num := binary.BigEndian.Uint32(data[pos:])
		flags := data[pos+4]
		pos += 5

		// referred-to segments and retention flags
		count := int(data[pos] >> 5)
		switch {
		case count <= 4:
			pos++
		case count == 7:
			if len(data)-pos < 4 {
				return 0, 0, false
			}
			count = int(binary.BigEndian.Uint32(data[pos:]) & 0x1FFFFFFF)
			pos += 4 + (count+8)/8
		default:
			return 0, 0, false
		}
		refSize := 4
		if num <= 256 {
			refSize = 1
		} else if num <= 65536 {
			refSize = 2
		}
		pos += count * refSize

		if flags&0x40 != 0 {
			pos += 4
		} else {
			pos++
		}

		if pos < 0 || len(data)-pos < 4 {
			return 0, 0, false
		}
		length := binary.BigEndian.Uint32(data[pos:])
		pos += 4

		if flags&0x3F == segPageInfo {
			if length < 8 || len(data)-pos < 8 {
				return 0, 0, false
			}
			width = binary.BigEndian.Uint32(data[pos:])
			height = binary.BigEndian.Uint32(data[pos+4:])
			if height == unknownLength {
				return 0, 0, false
			}
			return width, height, true
		}
		if length == unknownLength || uint64(length) > uint64(len(data)-pos) {
			return 0, 0, false
		}
		pos += int(length)
	}
}
