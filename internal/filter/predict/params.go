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

// Package predict implements the TIFF and PNG predictors used by the
// FlateDecode and LZWDecode filters.
//
// A predictor transforms raster data row by row before compression, to
// improve the compression ratio.  The reader in this package undoes the
// transformation after decompression, the writer applies it before
// compression.
package predict

import (
	"errors"
	"fmt"
)

const maxColumns = 1 << 20

// Params describes the layout of the predicted data.
type Params struct {
	// Colors is the number of color components per pixel.
	// The maximum is 60 for the TIFF predictor and 256 for the PNG
	// predictors.
	Colors int

	// BitsPerComponent is the number of bits used to represent each color
	// component.  Valid values are 1, 2, 4, 8 and 16.
	BitsPerComponent int

	// Columns is the number of pixels per row.
	Columns int

	// Predictor selects the prediction algorithm:
	//
	//	 1: no prediction
	//	 2: TIFF horizontal differencing
	//	10: PNG None on every row
	//	11: PNG Sub on every row
	//	12: PNG Up on every row
	//	13: PNG Average on every row
	//	14: PNG Paeth on every row
	//	15: PNG, the algorithm is chosen separately for each row
	//
	// When decoding, all PNG predictors behave the same, since every row
	// carries its own algorithm tag.
	Predictor int
}

// Validate checks whether the parameters are within the permitted range.
func (p *Params) Validate() error {
	switch p.Predictor {
	case 1:
		return nil
	case 2:
		if p.Colors > 60 {
			return errors.New("predict: Colors must be at most 60 for the TIFF predictor")
		}
	case 10, 11, 12, 13, 14, 15:
		if p.Colors > 256 {
			return errors.New("predict: Colors must be at most 256 for PNG predictors")
		}
	default:
		return fmt.Errorf("predict: invalid Predictor %d", p.Predictor)
	}

	if p.Colors < 1 {
		return errors.New("predict: Colors must be at least 1")
	}

	switch p.BitsPerComponent {
	case 1, 2, 4, 8, 16:
		// pass
	default:
		return fmt.Errorf("predict: invalid BitsPerComponent %d", p.BitsPerComponent)
	}

	maxCols := min(maxColumns, (1<<31-1)/p.bitsPerPixel())
	if p.Columns < 1 || p.Columns > maxCols {
		return fmt.Errorf("predict: invalid Columns %d", p.Columns)
	}

	return nil
}

func (p *Params) isPNG() bool {
	return p.Predictor >= 10
}

func (p *Params) bitsPerPixel() int {
	return p.Colors * p.BitsPerComponent
}

// bytesPerRow is the length of a row of samples, without the PNG tag byte.
func (p *Params) bytesPerRow() int {
	return (p.bitsPerPixel()*p.Columns + 7) / 8
}

// bytesPerPixel is the distance to the "left" byte for the PNG predictors.
// For less than 8 bits per pixel, this is 1.
func (p *Params) bytesPerPixel() int {
	return (p.bitsPerPixel() + 7) / 8
}

// PNG filter types, as stored in the tag byte at the start of each row.
const (
	pngNone    = 0
	pngSub     = 1
	pngUp      = 2
	pngAverage = 3
	pngPaeth   = 4
)

// rowCodec holds the state shared between consecutive rows.
type rowCodec struct {
	p    *Params
	bpp  int
	prev []byte // the previous PNG row, zero before the first row
}

func newRowCodec(p *Params) *rowCodec {
	return &rowCodec{
		p:   p,
		bpp: p.bytesPerPixel(),
	}
}

// prevRow returns the previous row, allocating a zero row on first use.
func (c *rowCodec) prevRow(n int) []byte {
	if len(c.prev) < n {
		c.prev = make([]byte, n)
	}
	return c.prev
}

// decodePNG reverses the PNG filter in place.  The row must have the full length.
func (c *rowCodec) decodePNG(tag byte, row []byte) error {
	bpp := c.bpp
	prev := c.prevRow(len(row))
	switch tag {
	case pngNone:
		// pass
	case pngSub:
		for i := bpp; i < len(row); i++ {
			row[i] += row[i-bpp]
		}
	case pngUp:
		for i := range row {
			row[i] += prev[i]
		}
	case pngAverage:
		for i := range row {
			var left int
			if i >= bpp {
				left = int(row[i-bpp])
			}
			row[i] += byte((left + int(prev[i])) / 2)
		}
	case pngPaeth:
		for i := range row {
			var left, upLeft byte
			if i >= bpp {
				left = row[i-bpp]
				upLeft = prev[i-bpp]
			}
			row[i] += paeth(left, prev[i], upLeft)
		}
	default:
		return fmt.Errorf("predict: unknown PNG filter type %d", tag)
	}
	copy(c.prev, row)
	return nil
}

// encodePNG writes the PNG-filtered version of row to out, which must have
// the same length as row.
func (c *rowCodec) encodePNG(tag byte, row, out []byte) {
	bpp := c.bpp
	prev := c.prevRow(len(row))
	for i, x := range row {
		var left, upLeft byte
		if i >= bpp {
			left = row[i-bpp]
			upLeft = prev[i-bpp]
		}
		up := prev[i]
		switch tag {
		case pngNone:
			out[i] = x
		case pngSub:
			out[i] = x - left
		case pngUp:
			out[i] = x - up
		case pngAverage:
			out[i] = x - byte((int(left)+int(up))/2)
		case pngPaeth:
			out[i] = x - paeth(left, up, upLeft)
		}
	}
}

// optimumTag chooses the PNG filter type which gives the smallest sum of
// absolute values of the filtered bytes, read as signed numbers.
func (c *rowCodec) optimumTag(row, scratch []byte) byte {
	best := byte(pngNone)
	bestScore := -1
	for tag := byte(pngNone); tag <= pngPaeth; tag++ {
		c.encodePNG(tag, row, scratch)
		score := 0
		for _, b := range scratch {
			score += abs(int(int8(b)))
		}
		if bestScore < 0 || score < bestScore {
			best, bestScore = tag, score
		}
	}
	return best
}

// paeth returns whichever of left, up or upLeft is closest to
// left + up - upLeft, with ties resolved in this order.
func paeth(left, up, upLeft byte) byte {
	p := int(left) + int(up) - int(upLeft)
	pa := abs(p - int(left))
	pb := abs(p - int(up))
	pc := abs(p - int(upLeft))
	if pa <= pb && pa <= pc {
		return left
	}
	if pb <= pc {
		return up
	}
	return upLeft
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// decodeTIFF reverses horizontal differencing in place.  The row may be
// shorter than a full row, in which case only the complete components are
// transformed.
func (c *rowCodec) decodeTIFF(row []byte) {
	bpc := c.p.BitsPerComponent
	colors := c.p.Colors
	mask := uint32(1)<<bpc - 1
	n := min(colors*c.p.Columns, len(row)*8/bpc)
	for i := colors; i < n; i++ {
		v := getComponent(row, i, bpc) + getComponent(row, i-colors, bpc)
		setComponent(row, i, bpc, v&mask)
	}
}

// encodeTIFF applies horizontal differencing in place.
func (c *rowCodec) encodeTIFF(row []byte) {
	bpc := c.p.BitsPerComponent
	colors := c.p.Colors
	mask := uint32(1)<<bpc - 1
	n := min(colors*c.p.Columns, len(row)*8/bpc)
	for i := n - 1; i >= colors; i-- {
		v := getComponent(row, i, bpc) - getComponent(row, i-colors, bpc)
		setComponent(row, i, bpc, v&mask)
	}
}

func getComponent(row []byte, i, bpc int) uint32 {
	switch bpc {
	case 8:
		return uint32(row[i])
	case 16:
		return uint32(row[2*i])<<8 | uint32(row[2*i+1])
	default:
		bit := i * bpc
		shift := 8 - bpc - bit%8
		return uint32(row[bit/8]>>shift) & (1<<bpc - 1)
	}
}

func setComponent(row []byte, i, bpc int, v uint32) {
	switch bpc {
	case 8:
		row[i] = byte(v)
	case 16:
		row[2*i] = byte(v >> 8)
		row[2*i+1] = byte(v)
	default:
		bit := i * bpc
		shift := 8 - bpc - bit%8
		m := byte(1<<bpc-1) << shift
		row[bit/8] = row[bit/8]&^m | byte(v)<<shift&m
	}
}
