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

package jbig2

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"seehuhn.de/go/pdfcore/internal/filter/limit"
)

func TestPack(t *testing.T) {
	// 10 pixels wide, stride 4 bytes
	src := []byte{
		0xFF, 0xFF, 0xAA, 0xAA,
		0x81, 0x7F, 0x00, 0x00,
	}
	img, err := pack(10, 2, src)
	if err != nil {
		t.Fatal(err)
	}
	want := &Image{
		Width:  10,
		Height: 2,
		Data:   []byte{0xFF, 0xC0, 0x81, 0x40},
	}
	if diff := cmp.Diff(want, img); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestPackShort(t *testing.T) {
	_, err := pack(100, 2, make([]byte, 8))
	if err == nil {
		t.Error("short buffer not detected")
	}
}

func TestDecodeEmpty(t *testing.T) {
	_, err := Decode(nil, nil, 0)
	if err == nil {
		t.Error("empty data not rejected")
	}
}

// pageInfoSegment returns a page information segment for a page of the
// given size.
func pageInfoSegment(num byte, width, height uint32) []byte {
	seg := []byte{0, 0, 0, num, segPageInfo, 0x00, 0x01, 0, 0, 0, 19}
	seg = append(seg,
		byte(width>>24), byte(width>>16), byte(width>>8), byte(width),
		byte(height>>24), byte(height>>16), byte(height>>8), byte(height))
	return append(seg, make([]byte, 11)...)
}

func TestPageSize(t *testing.T) {
	other := []byte{0, 0, 0, 0, 0x00, 0x00, 0x01, 0, 0, 0, 3, 1, 2, 3}

	testCases := []struct {
		name   string
		data   []byte
		w, h   uint32
		wantOK bool
	}{
		{"page info", pageInfoSegment(0, 64, 100), 64, 100, true},
		{"after other segment", append(other, pageInfoSegment(1, 10, 20)...), 10, 20, true},
		{"unknown height", pageInfoSegment(0, 64, unknownLength), 0, 0, false},
		{"truncated", pageInfoSegment(0, 64, 100)[:14], 0, 0, false},
		{"no page info", other, 0, 0, false},
		{"empty", nil, 0, 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, h, ok := pageSize(tc.data)
			if w != tc.w || h != tc.h || ok != tc.wantOK {
				t.Errorf("got %d %d %t, want %d %d %t", w, h, ok, tc.w, tc.h, tc.wantOK)
			}
		})
	}
}

func TestDecodeLimit(t *testing.T) {
	data := pageInfoSegment(0, 64, 1<<16)
	_, err := Decode(data, nil, 1024)
	if !errors.Is(err, limit.ErrExceeded) {
		t.Errorf("wrong error %v", err)
	}
}
