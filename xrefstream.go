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
	"fmt"
	"math"
	"math/bits"

	"golang.org/x/exp/slices"
)

// IndexRange is a range of consecutive object numbers in a
// cross-reference stream.
type IndexRange struct {
	Start uint32
	Count uint32
}

// XRefStreamParams extracts and validates the /W and /Index entries of a
// cross-reference stream dictionary.  If /Index is missing, a single range
// [0, Size) is used.
func XRefStreamParams(dict Dict) (w [3]int, index []IndexRange, err error) {
	size, ok := dict["Size"].(Integer)
	if !ok || size < 0 || size > math.MaxUint32 {
		return w, nil, xrefErrorf(0, "invalid /Size %s", Format(dict["Size"]))
	}

	W, ok := dict["W"].(Array)
	if !ok || len(W) != 3 {
		return w, nil, xrefErrorf(0, "invalid /W %s", Format(dict["W"]))
	}
	for i, Wi := range W {
		wi, ok := Wi.(Integer)
		if !ok || wi < 0 || wi > 8 {
			return w, nil, xrefErrorf(0, "invalid /W %s", Format(W))
		}
		w[i] = int(wi)
	}
	if w[0]+w[1]+w[2] == 0 {
		return w, nil, xrefErrorf(0, "invalid /W %s", Format(W))
	}

	Index, hasIndex := dict["Index"]
	if !hasIndex {
		return w, []IndexRange{{Start: 0, Count: uint32(size)}}, nil
	}
	ind, ok := Index.(Array)
	if !ok || len(ind)%2 != 0 {
		return w, nil, xrefErrorf(0, "invalid /Index %s", Format(Index))
	}
	for i := 0; i < len(ind); i += 2 {
		start, ok1 := ind[i].(Integer)
		count, ok2 := ind[i+1].(Integer)
		if !ok1 || !ok2 || start < 0 || count < 0 ||
			int64(start)+int64(count) > math.MaxUint32+1 {
			return w, nil, xrefErrorf(0, "invalid /Index %s", Format(Index))
		}
		index = append(index, IndexRange{Start: uint32(start), Count: uint32(count)})
	}
	return w, index, nil
}

// DecodeXRefStream decodes the (already unfiltered) data of a
// cross-reference stream.  The data length must be a multiple of the entry
// width w[0]+w[1]+w[2].  If w[0] is zero, all entries have type 1.
func DecodeXRefStream(data []byte, w [3]int, index []IndexRange) ([]XRefSubsection, error) {
	width := w[0] + w[1] + w[2]
	for _, wi := range w {
		if wi < 0 || wi > 8 {
			return nil, xrefErrorf(0, "invalid field width %d", wi)
		}
	}
	if width == 0 {
		return nil, xrefErrorf(0, "zero entry width")
	}
	if len(data)%width != 0 {
		return nil, xrefErrorf(0,
			"data length %d is not a multiple of the entry width %d",
			len(data), width)
	}

	var need uint64
	for _, r := range index {
		need += uint64(r.Count)
	}
	if have := uint64(len(data) / width); have < need {
		return nil, xrefErrorf(0, "%d entries declared, but only %d present",
			need, have)
	}

	res := make([]XRefSubsection, 0, len(index))
	pos := 0
	for _, r := range index {
		ss := XRefSubsection{
			Start:   r.Start,
			Entries: make([]XRefEntry, r.Count),
		}
		for i := range ss.Entries {
			buf := data[pos : pos+width]
			pos += width

			tp := uint64(1)
			if w[0] > 0 {
				tp = decodeInt(buf[:w[0]])
			}
			f2 := decodeInt(buf[w[0] : w[0]+w[1]])
			f3 := decodeInt(buf[w[0]+w[1]:])

			e, err := makeStreamEntry(tp, f2, f3)
			if err != nil {
				num := uint64(r.Start) + uint64(i)
				return nil, xrefErrorf(0, "object %d: %w", num, err)
			}
			ss.Entries[i] = e
		}
		res = append(res, ss)
	}
	return res, nil
}

func makeStreamEntry(tp, f2, f3 uint64) (XRefEntry, error) {
	switch tp {
	case 0:
		if f2 > math.MaxUint32 || f3 > math.MaxUint16 {
			return XRefEntry{}, errFieldOverflow
		}
		return FreeEntry(uint32(f2), uint16(f3)), nil
	case 1:
		if f2 > math.MaxInt64 || f3 > math.MaxUint16 {
			return XRefEntry{}, errFieldOverflow
		}
		return InUseEntry(uint16(f3), int64(f2)), nil
	case 2:
		if f2 > math.MaxUint32 || f3 > math.MaxUint32 {
			return XRefEntry{}, errFieldOverflow
		}
		return CompressedEntry(uint32(f2), uint32(f3)), nil
	default:
		return XRefEntry{}, fmt.Errorf("unknown entry type %d", tp)
	}
}

var errFieldOverflow = errors.New("field value out of range")

func decodeInt(buf []byte) (res uint64) {
	for _, x := range buf {
		res = res<<8 | uint64(x)
	}
	return res
}

// streamFields returns the three numeric fields of an entry, as stored in a
// cross-reference stream.
func streamFields(e XRefEntry) (tp, f2, f3 uint64) {
	switch e.Type {
	case EntryFree:
		return 0, uint64(e.Next), uint64(e.Generation)
	case EntryInUse:
		return 1, uint64(e.Offset), uint64(e.Generation)
	default:
		return 2, uint64(e.Stream), uint64(e.Index)
	}
}

// OptimalWidths returns the smallest field widths which can represent all
// given entries.  The type field always uses one byte, the other fields use
// at least one byte.
func OptimalWidths(entries map[uint32]XRefEntry) [3]int {
	var max2, max3 uint64
	for _, e := range entries {
		_, f2, f3 := streamFields(e)
		max2 = max(max2, f2)
		max3 = max(max3, f3)
	}
	return [3]int{1, bytesNeeded(max2), bytesNeeded(max3)}
}

func bytesNeeded(x uint64) int {
	return max(1, (bits.Len64(x)+7)/8)
}

// BuildIndex returns the ranges of consecutive object numbers present in
// entries, in increasing order.
func BuildIndex(entries map[uint32]XRefEntry) []IndexRange {
	nums := sortedNumbers(entries)
	var res []IndexRange
	for i, num := range nums {
		if i > 0 && num == nums[i-1]+1 {
			res[len(res)-1].Count++
			continue
		}
		res = append(res, IndexRange{Start: num, Count: 1})
	}
	return res
}

func sortedNumbers(entries map[uint32]XRefEntry) []uint32 {
	nums := make([]uint32, 0, len(entries))
	for num := range entries {
		nums = append(nums, num)
	}
	slices.Sort(nums)
	return nums
}

// EncodeXRefStream encodes the entries, ordered by object number, using
// the given field widths.  The result matches the index returned by
// [BuildIndex].
func EncodeXRefStream(entries map[uint32]XRefEntry, w [3]int) ([]byte, error) {
	for _, wi := range w {
		if wi < 0 || wi > 8 {
			return nil, xrefErrorf(0, "invalid field width %d", wi)
		}
	}
	width := w[0] + w[1] + w[2]
	res := make([]byte, 0, width*len(entries))
	for _, num := range sortedNumbers(entries) {
		e := entries[num]
		tp, f2, f3 := streamFields(e)
		if w[0] == 0 && tp != 1 {
			return nil, xrefErrorf(0, "object %d: type field required for %s entry",
				num, e.Type)
		}
		if !fits(tp, w[0]) && w[0] > 0 || !fits(f2, w[1]) || !fits(f3, w[2]) {
			return nil, xrefErrorf(0, "object %d: entry does not fit widths %v",
				num, w)
		}
		res = appendInt(res, tp, w[0])
		res = appendInt(res, f2, w[1])
		res = appendInt(res, f3, w[2])
	}
	return res, nil
}

func fits(x uint64, w int) bool {
	return w >= 8 || x < 1<<(8*w)
}

func appendInt(buf []byte, x uint64, w int) []byte {
	for i := w - 1; i >= 0; i-- {
		buf = append(buf, byte(x>>(i*8)))
	}
	return buf
}

// NewXRefStream builds a cross-reference stream object for the given
// entries.  Entries from the trailer dictionary are copied into the stream
// dictionary.  If chain is not nil, the stream data is encoded using the
// filters in the chain; predictor parameters without a /Columns entry
// are completed with the entry width.
func NewXRefStream(entries map[uint32]XRefEntry, trailer Dict, chain *FilterChain) (*Stream, error) {
	if len(entries) == 0 {
		return nil, xrefErrorf(0, "no entries")
	}
	w := OptimalWidths(entries)
	data, err := EncodeXRefStream(entries, w)
	if err != nil {
		return nil, err
	}

	dict := Dict{}
	for key, val := range trailer {
		switch key {
		case "Length", "Filter", "DecodeParms", "W", "Index", "XRefStm":
			continue
		}
		dict[key] = val
	}
	dict["Type"] = Name("XRef")

	size := int64(0)
	for num := range entries {
		size = max(size, int64(num)+1)
	}
	if old, ok := trailer["Size"].(Integer); ok && int64(old) > size {
		size = int64(old)
	}
	dict["Size"] = Integer(size)
	dict["W"] = Array{Integer(w[0]), Integer(w[1]), Integer(w[2])}

	var index Array
	for _, r := range BuildIndex(entries) {
		index = append(index, Integer(r.Start), Integer(r.Count))
	}
	dict["Index"] = index

	if chain != nil && chain.Len() > 0 {
		chain = chain.withColumns(w[0] + w[1] + w[2])
		data, err = chain.Encode(data)
		if err != nil {
			return nil, err
		}
		filter, parms := chain.FilterEntries()
		dict["Filter"] = filter
		if parms != nil {
			dict["DecodeParms"] = parms
		}
	}

	return &Stream{Dict: dict, Data: data}, nil
}
