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

package pdfcore

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var testStreamEntries = map[uint32]XRefEntry{
	0: FreeEntry(0, math.MaxUint16),
	1: InUseEntry(0, 15),
	2: InUseEntry(0, 300),
	5: CompressedEntry(7, 0),
	6: CompressedEntry(7, 1),
}

func TestXRefStreamRoundTrip(t *testing.T) {
	index := BuildIndex(testStreamEntries)
	if d := cmp.Diff([]IndexRange{{0, 3}, {5, 2}}, index); d != "" {
		t.Errorf("wrong index (-want +got):\n%s", d)
	}

	w := OptimalWidths(testStreamEntries)
	if w != [3]int{1, 2, 2} {
		t.Errorf("wrong widths %v", w)
	}

	data, err := EncodeXRefStream(testStreamEntries, w)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 5*5 {
		t.Errorf("wrong data length %d", len(data))
	}

	sections, err := DecodeXRefStream(data, w, index)
	if err != nil {
		t.Fatal(err)
	}
	expected := []XRefSubsection{
		{Start: 0, Entries: []XRefEntry{
			testStreamEntries[0], testStreamEntries[1], testStreamEntries[2],
		}},
		{Start: 5, Entries: []XRefEntry{
			testStreamEntries[5], testStreamEntries[6],
		}},
	}
	if d := cmp.Diff(expected, sections); d != "" {
		t.Errorf("wrong subsections (-want +got):\n%s", d)
	}
}

func TestDecodeXRefStream(t *testing.T) {
	// A missing type field means that all entries are in use.
	data := []byte{0x00, 0x10, 0x00, 0x01, 0x00, 0x02}
	sections, err := DecodeXRefStream(data, [3]int{0, 2, 1}, []IndexRange{{3, 2}})
	if err != nil {
		t.Fatal(err)
	}
	expected := []XRefSubsection{
		{Start: 3, Entries: []XRefEntry{InUseEntry(0, 16), InUseEntry(2, 256)}},
	}
	if d := cmp.Diff(expected, sections); d != "" {
		t.Errorf("wrong subsections (-want +got):\n%s", d)
	}

	// A zero width third field gives generation 0.
	sections, err = DecodeXRefStream([]byte{1, 0x20, 2, 0x11}, [3]int{1, 1, 0}, []IndexRange{{0, 2}})
	if err != nil {
		t.Fatal(err)
	}
	expected = []XRefSubsection{
		{Start: 0, Entries: []XRefEntry{InUseEntry(0, 32), CompressedEntry(17, 0)}},
	}
	if d := cmp.Diff(expected, sections); d != "" {
		t.Errorf("wrong subsections (-want +got):\n%s", d)
	}
}

func TestDecodeXRefStreamErrors(t *testing.T) {
	cases := []struct {
		name  string
		data  []byte
		w     [3]int
		index []IndexRange
	}{
		{"bad length", make([]byte, 7), [3]int{1, 1, 1}, []IndexRange{{0, 2}}},
		{"too few entries", make([]byte, 6), [3]int{1, 1, 1}, []IndexRange{{0, 5}}},
		{"unknown type", []byte{3, 0, 0}, [3]int{1, 1, 1}, []IndexRange{{0, 1}}},
		{"zero width", nil, [3]int{0, 0, 0}, nil},
		{"wide field", make([]byte, 10), [3]int{1, 9, 0}, []IndexRange{{0, 1}}},
		{
			"free entry overflow",
			[]byte{0, 0, 0, 0, 1, 0, 0, 0, 0, 0},
			[3]int{1, 8, 1},
			[]IndexRange{{0, 1}},
		},
		{
			"generation overflow",
			[]byte{1, 5, 1, 0, 0},
			[3]int{1, 1, 3},
			[]IndexRange{{0, 1}},
		},
	}
	for _, test := range cases {
		_, err := DecodeXRefStream(test.data, test.w, test.index)
		var xErr *XRefFormatError
		if !errors.As(err, &xErr) {
			t.Errorf("%s: wrong error %v", test.name, err)
		}
	}
}

func TestXRefStreamParams(t *testing.T) {
	w, index, err := XRefStreamParams(Dict{
		"Size": Integer(10),
		"W":    Array{Integer(1), Integer(2), Integer(1)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if w != [3]int{1, 2, 1} {
		t.Errorf("wrong widths %v", w)
	}
	if d := cmp.Diff([]IndexRange{{0, 10}}, index); d != "" {
		t.Errorf("wrong index (-want +got):\n%s", d)
	}

	_, index, err = XRefStreamParams(Dict{
		"Size":  Integer(10),
		"W":     Array{Integer(1), Integer(2), Integer(1)},
		"Index": Array{Integer(0), Integer(3), Integer(5), Integer(2)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]IndexRange{{0, 3}, {5, 2}}, index); d != "" {
		t.Errorf("wrong index (-want +got):\n%s", d)
	}

	W := Array{Integer(1), Integer(2), Integer(1)}
	bad := []Dict{
		{"W": W},
		{"Size": Integer(-1), "W": W},
		{"Size": Integer(3)},
		{"Size": Integer(3), "W": Array{Integer(1), Integer(2)}},
		{"Size": Integer(3), "W": Array{Integer(1), Integer(9), Integer(1)}},
		{"Size": Integer(3), "W": Array{Integer(0), Integer(0), Integer(0)}},
		{"Size": Integer(3), "W": Array{Integer(1), Real(2), Integer(1)}},
		{"Size": Integer(3), "W": W, "Index": Array{Integer(0)}},
		{"Size": Integer(3), "W": W, "Index": Array{Integer(-1), Integer(2)}},
		{"Size": Integer(3), "W": W, "Index": Integer(3)},
	}
	for _, dict := range bad {
		_, _, err := XRefStreamParams(dict)
		var xErr *XRefFormatError
		if !errors.As(err, &xErr) {
			t.Errorf("%s: wrong error %v", Format(dict), err)
		}
	}
}

func TestOptimalWidths(t *testing.T) {
	cases := []struct {
		entries map[uint32]XRefEntry
		w       [3]int
	}{
		{map[uint32]XRefEntry{}, [3]int{1, 1, 1}},
		{map[uint32]XRefEntry{1: InUseEntry(0, 255)}, [3]int{1, 1, 1}},
		{map[uint32]XRefEntry{1: InUseEntry(0, 256)}, [3]int{1, 2, 1}},
		{map[uint32]XRefEntry{1: InUseEntry(0, 1<<24)}, [3]int{1, 4, 1}},
		{map[uint32]XRefEntry{1: InUseEntry(0, 1<<40)}, [3]int{1, 6, 1}},
		{map[uint32]XRefEntry{1: CompressedEntry(2, 70000)}, [3]int{1, 1, 3}},
	}
	for _, test := range cases {
		if w := OptimalWidths(test.entries); w != test.w {
			t.Errorf("%v: expected %v, got %v", test.entries, test.w, w)
		}
	}
}

func TestEncodeXRefStreamErrors(t *testing.T) {
	_, err := EncodeXRefStream(map[uint32]XRefEntry{1: InUseEntry(0, 300)}, [3]int{1, 1, 1})
	if err == nil {
		t.Error("offset 300 accepted for width 1")
	}

	_, err = EncodeXRefStream(map[uint32]XRefEntry{0: FreeEntry(0, 0)}, [3]int{0, 1, 1})
	if err == nil {
		t.Error("free entry accepted without type field")
	}

	data, err := EncodeXRefStream(map[uint32]XRefEntry{4: InUseEntry(1, 2)}, [3]int{0, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]byte{2, 1}, data); d != "" {
		t.Errorf("wrong data (-want +got):\n%s", d)
	}
}

func TestNewXRefStream(t *testing.T) {
	trailer := Dict{
		"Root":    NewReference(1, 0),
		"Size":    Integer(3),
		"Prev":    Integer(100),
		"Filter":  Name("ASCIIHexDecode"),
		"XRefStm": Integer(50),
	}
	chain := NewFilterChain(Filter{
		Type:  FilterFlate,
		Parms: Dict{"Predictor": Integer(12)},
	})

	stm, err := NewXRefStream(testStreamEntries, trailer, chain)
	if err != nil {
		t.Fatal(err)
	}

	dict := stm.Dict
	for key, val := range map[Name]Object{
		"Type":   Name("XRef"),
		"Root":   NewReference(1, 0),
		"Prev":   Integer(100),
		"Size":   Integer(7),
		"W":      Array{Integer(1), Integer(2), Integer(2)},
		"Index":  Array{Integer(0), Integer(3), Integer(5), Integer(2)},
		"Filter": Name("FlateDecode"),
		"DecodeParms": Dict{
			"Predictor": Integer(12),
			"Columns":   Integer(5),
		},
	} {
		if !Equal(dict[key], val) {
			t.Errorf("/%s: expected %s, got %s", key, Format(val), Format(dict[key]))
		}
	}
	if _, ok := dict["XRefStm"]; ok {
		t.Error("XRefStm copied from the trailer")
	}

	// decode the stream again
	w, index, err := XRefStreamParams(dict)
	if err != nil {
		t.Fatal(err)
	}
	decoder, err := ChainFromDict(dict, nil)
	if err != nil {
		t.Fatal(err)
	}
	data, err := decoder.Decode(stm.Data, nil)
	if err != nil {
		t.Fatal(err)
	}
	sections, err := DecodeXRefStream(data, w, index)
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[uint32]XRefEntry)
	for _, ss := range sections {
		for i, e := range ss.Entries {
			got[ss.Start+uint32(i)] = e
		}
	}
	if d := cmp.Diff(testStreamEntries, got); d != "" {
		t.Errorf("wrong entries (-want +got):\n%s", d)
	}

	if _, err := NewXRefStream(nil, nil, nil); err == nil {
		t.Error("empty xref stream accepted")
	}
}

func BenchmarkDecodeXRefStream(b *testing.B) {
	entries := make(map[uint32]XRefEntry)
	entries[0] = FreeEntry(0, math.MaxUint16)
	for num := uint32(1); num < 10000; num++ {
		if num%3 == 0 {
			entries[num] = CompressedEntry(num/100+1, num%100)
		} else {
			entries[num] = InUseEntry(0, int64(num)*137)
		}
	}
	w := OptimalWidths(entries)
	data, err := EncodeXRefStream(entries, w)
	if err != nil {
		b.Fatal(err)
	}
	index := BuildIndex(entries)

	b.ResetTimer()
	for range b.N {
		_, err := DecodeXRefStream(data, w, index)
		if err != nil {
			b.Fatal(err)
		}
	}
}
