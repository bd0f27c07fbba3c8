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

// Package dct implements decoding of the DCTDecode filter, using the JPEG
// decoder from the standard library.
package dct

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	"seehuhn.de/go/pdfcore/internal/filter/limit"
)

// Values for the ColorTransform decode parameter.
const (
	// TransformDefault means that ColorTransform was not given.  Three
	// component images are converted from YCbCr to RGB.
	TransformDefault = -1

	// TransformNone keeps the samples as they are stored in the JPEG data.
	TransformNone = 0

	// TransformYCbCr converts YCbCr samples to RGB.
	TransformYCbCr = 1
)

// Decode decodes JPEG data and returns the pixel samples.
//
// The output contains interleaved 8-bit samples, row by row, without
// padding.  Grayscale images give one byte per pixel, three component
// images give three bytes per pixel and CMYK images give four bytes per
// pixel.
//
// If max is positive, images with more than max bytes of samples are
// rejected with [limit.ErrExceeded] before the image data is decoded.
func Decode(data []byte, colorTransform int, max int64) ([]byte, error) {
	if max > 0 {
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		if int64(cfg.Width)*int64(cfg.Height)*int64(samplesPerPixel(cfg.ColorModel)) > max {
			return nil, limit.ErrExceeded
		}
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch img := img.(type) {
	case *image.Gray:
		out := make([]byte, 0, w*h)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := img.PixOffset(b.Min.X, y)
			out = append(out, img.Pix[off:off+w]...)
		}
		return out, nil

	case *image.CMYK:
		out := make([]byte, 0, 4*w*h)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := img.PixOffset(b.Min.X, y)
			out = append(out, img.Pix[off:off+4*w]...)
		}
		return out, nil

	case *image.YCbCr:
		out := make([]byte, 0, 3*w*h)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				yy := img.Y[img.YOffset(x, y)]
				ci := img.COffset(x, y)
				cb, cr := img.Cb[ci], img.Cr[ci]
				if colorTransform == TransformNone {
					out = append(out, yy, cb, cr)
				} else {
					r, g, bl := color.YCbCrToRGB(yy, cb, cr)
					out = append(out, r, g, bl)
				}
			}
		}
		return out, nil

	default:
		out := make([]byte, 0, 3*w*h)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
				out = append(out, c.R, c.G, c.B)
			}
		}
		return out, nil
	}
}

func samplesPerPixel(m color.Model) int {
	switch m {
	case color.GrayModel:
		return 1
	case color.CMYKModel:
		return 4
	default:
		return 3
	}
}
