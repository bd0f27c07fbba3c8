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
	"errors"
	"io"
	"math/rand"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
	"seehuhn.de/go/pdfcore/internal/filter/limit"
)

func TestValidate(t *testing.T) {
	testCases := []struct {
		p  Params
		ok bool
	}{
		{Params{Predictor: 1}, true},
		{Params{Predictor: 2, Colors: 1, BitsPerComponent: 8, Columns: 1}, true},
		{Params{Predictor: 2, Colors: 61, BitsPerComponent: 8, Columns: 1}, false},
		{Params{Predictor: 12, Colors: 256, BitsPerComponent: 8, Columns: 1}, true},
		{Params{Predictor: 12, Colors: 257, BitsPerComponent: 8, Columns: 1}, false},
		{Params{Predictor: 12, Colors: 0, BitsPerComponent: 8, Columns: 1}, false},
		{Params{Predictor: 12, Colors: 1, BitsPerComponent: 3, Columns: 1}, false},
		{Params{Predictor: 12, Colors: 1, BitsPerComponent: 8, Columns: 0}, false},
		{Params{Predictor: 12, Colors: 1, BitsPerComponent: 8, Columns: maxColumns + 1}, false},
		{Params{Predictor: 3, Colors: 1, BitsPerComponent: 8, Columns: 1}, false},
		{Params{Predictor: 16, Colors: 1, BitsPerComponent: 8, Columns: 1}, false},
	}
	for _, tc := range testCases {
		err := tc.p.Validate()
		if (err == nil) != tc.ok {
			t.Errorf("%+v: unexpected result %v", tc.p, err)
		}
	}
}

func TestSubRow(t *testing.T) {
	png := &Params{Predictor: 11, Colors: 1, BitsPerComponent: 8, Columns: 4}
	out, err := Decode([]byte{1, 10, 5, 3, 2}, png, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{10, 15, 18, 20}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("PNG Sub (-want +got):\n%s", diff)
	}

	tiff := &Params{Predictor: 2, Colors: 1, BitsPerComponent: 8, Columns: 4}
	out, err = Decode([]byte{10, 5, 3, 2}, tiff, 0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("TIFF (-want +got):\n%s", diff)
	}
}

func TestPNGRows(t *testing.T) {
	p := &Params{Predictor: 15, Colors: 1, BitsPerComponent: 8, Columns: 3}
	in := []byte{
		0, 1, 2, 3, // None
		2, 1, 1, 1, // Up: 2 3 4
		3, 2, 2, 2, // Average: left/up
		4, 0, 0, 0, // Paeth
	}
	out, err := Decode(in, p, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		1, 2, 3,
		2, 3, 4,
		3, 5, 6, // 2+2/2, 2+(3+3)/2, 2+(5+4)/2
		3, 5, 6, // every pixel predicted from above
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestPaethTies(t *testing.T) {
	testCases := []struct {
		left, up, upLeft, want byte
	}{
		{10, 20, 15, 15},
		{10, 10, 10, 10},
		{20, 10, 10, 20}, // p=20: left wins
		{10, 20, 10, 20}, // p=20: up wins
		{5, 5, 9, 5},
	}
	for _, tc := range testCases {
		got := paeth(tc.left, tc.up, tc.upLeft)
		if got != tc.want {
			t.Errorf("paeth(%d, %d, %d) = %d, want %d",
				tc.left, tc.up, tc.upLeft, got, tc.want)
		}
	}
}

func TestUnknownTag(t *testing.T) {
	p := &Params{Predictor: 12, Colors: 1, BitsPerComponent: 8, Columns: 2}
	_, err := Decode([]byte{0, 1, 2, 7, 1, 2}, p, 0)
	if err == nil {
		t.Error("unknown PNG filter type not detected")
	}
}

func TestShortRow(t *testing.T) {
	p := &Params{Predictor: 12, Colors: 1, BitsPerComponent: 8, Columns: 4}
	out, err := Decode([]byte{0, 1, 2, 3, 4, 2, 1}, p, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 4, 2, 2, 3, 4}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestTIFFSubByte(t *testing.T) {
	// two 4-bit components per pixel, 3 pixels
	p := &Params{Predictor: 2, Colors: 2, BitsPerComponent: 4, Columns: 3}
	data := []byte{0x12, 0x34, 0x56}
	enc, err := Encode(data, p)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x12, 0x22, 0x22}
	if diff := cmp.Diff(want, enc); diff != "" {
		t.Errorf("encode (-want +got):\n%s", diff)
	}
	dec, err := Decode(enc, p, 0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(data, dec); diff != "" {
		t.Errorf("decode (-want +got):\n%s", diff)
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, predictor := range []int{2, 10, 11, 12, 13, 14, 15} {
		for _, bpc := range []int{1, 2, 4, 8, 16} {
			for _, colors := range []int{1, 3, 4} {
				p := &Params{
					Predictor:        predictor,
					Colors:           colors,
					BitsPerComponent: bpc,
					Columns:          7,
				}
				data := make([]byte, 5*p.bytesPerRow())
				rng.Read(data)
				enc, err := Encode(data, p)
				if err != nil {
					t.Fatal(err)
				}
				r, err := NewReader(iotest.HalfReader(bytes.NewReader(enc)), p)
				if err != nil {
					t.Fatal(err)
				}
				dec, err := io.ReadAll(r)
				if err != nil {
					t.Fatal(err)
				}
				if diff := cmp.Diff(data, dec); diff != "" {
					t.Errorf("%+v (-want +got):\n%s", p, diff)
				}
			}
		}
	}
}

func TestIdentity(t *testing.T) {
	p := &Params{Predictor: 1}
	data := []byte("unchanged")
	enc, err := Encode(data, p)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := Decode(enc, p, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(enc, data) || !bytes.Equal(dec, data) {
		t.Errorf("predictor 1 changed the data: %q %q", enc, dec)
	}
}

func TestDecodeLimit(t *testing.T) {
	small := &Params{Predictor: 12, Colors: 1, BitsPerComponent: 8, Columns: 4}
	rows := []byte{0, 1, 2, 3, 4, 2, 1, 1, 1, 1, 2, 1, 1, 1, 1}

	out, err := Decode(rows, small, 12)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]byte{1, 2, 3, 4, 2, 3, 4, 5, 3, 4, 5, 6}, out); d != "" {
		t.Errorf("wrong output (-want +got):\n%s", d)
	}
	_, err = Decode(rows, small, 8)
	if !errors.Is(err, limit.ErrExceeded) {
		t.Errorf("rows beyond the limit: wrong error %v", err)
	}

	// a single short row would be completed to 256 MB
	huge := &Params{Predictor: 12, Colors: 256, BitsPerComponent: 16, Columns: 500000}
	_, err = Decode([]byte{2, 0, 0}, huge, 1024)
	if !errors.Is(err, limit.ErrExceeded) {
		t.Errorf("huge PNG row: wrong error %v", err)
	}
	out, err = Decode(nil, huge, 1024)
	if err != nil || len(out) != 0 {
		t.Errorf("empty input: %v %v", out, err)
	}

	// partial TIFF rows are not padded, so only the input length counts
	wide := &Params{Predictor: 2, Colors: 1, BitsPerComponent: 8, Columns: 1 << 20}
	out, err = Decode([]byte{1, 1, 1, 1}, wide, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]byte{1, 2, 3, 4}, out); d != "" {
		t.Errorf("wrong TIFF output (-want +got):\n%s", d)
	}
}
