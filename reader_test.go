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
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/exp/slices"
)

// pdfBuilder assembles PDF files in memory, keeping track of the
// cross-reference entries of the current revision.
type pdfBuilder struct {
	t       *testing.T
	buf     bytes.Buffer
	entries map[uint32]XRefEntry
}

func newPDFBuilder(t *testing.T) *pdfBuilder {
	t.Helper()
	b := &pdfBuilder{
		t:       t,
		entries: map[uint32]XRefEntry{0: FreeEntry(0, 65535)},
	}
	b.buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	return b
}

func (b *pdfBuilder) object(num uint32, obj Object) {
	b.t.Helper()
	body := Format(obj)
	if strings.HasPrefix(body, "%") {
		b.t.Fatalf("object %d: %s", num, body)
	}
	b.raw(num, body)
}

func (b *pdfBuilder) raw(num uint32, body string) {
	b.entries[num] = InUseEntry(0, int64(b.buf.Len()))
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

// xrefTable writes a cross-reference table for the entries added since the
// last cross-reference section.
func (b *pdfBuilder) xrefTable(trailer Dict) int64 {
	b.t.Helper()
	pos := int64(b.buf.Len())
	err := WriteXRefTable(&b.buf, b.entries, trailer)
	if err != nil {
		b.t.Fatal(err)
	}
	b.entries = make(map[uint32]XRefEntry)
	return pos
}

// xrefStream writes a cross-reference stream for the entries added since
// the last cross-reference section.  The stream has object number num.
func (b *pdfBuilder) xrefStream(num uint32, trailer Dict, chain *FilterChain) int64 {
	b.t.Helper()
	pos := int64(b.buf.Len())
	b.entries[num] = InUseEntry(0, pos)
	stm, err := NewXRefStream(b.entries, trailer, chain)
	if err != nil {
		b.t.Fatal(err)
	}
	b.object(num, stm)
	b.entries = make(map[uint32]XRefEntry)
	return pos
}

func (b *pdfBuilder) startXRef(pos int64) {
	fmt.Fprintf(&b.buf, "startxref\n%d\n%%%%EOF\n", pos)
}

func (b *pdfBuilder) bytes() []byte {
	return b.buf.Bytes()
}

// buildObjStm returns an object stream containing the given objects.
func buildObjStm(t *testing.T, nums []uint32, objs []Object) *Stream {
	t.Helper()
	var header, body strings.Builder
	for i, obj := range objs {
		fmt.Fprintf(&header, "%d %d ", nums[i], body.Len())
		body.WriteString(Format(obj))
		body.WriteString("\n")
	}
	data := []byte(header.String() + body.String())
	chain := NewFilterChain(Filter{Type: FilterFlate})
	enc, err := chain.Encode(data)
	if err != nil {
		t.Fatal(err)
	}
	return &Stream{
		Dict: Dict{
			"Type":   Name("ObjStm"),
			"N":      Integer(len(objs)),
			"First":  Integer(header.Len()),
			"Filter": Name("FlateDecode"),
		},
		Data: enc,
	}
}

var testContent = bytes.Repeat([]byte("0 0 m 100 100 l S\n"), 10)

// legacyTestFile returns a single-revision file with a cross-reference
// table.  Object 4 is a stream with an indirect /Length.
func legacyTestFile(t *testing.T) []byte {
	b := newPDFBuilder(t)
	b.object(1, Dict{"Type": Name("Catalog"), "Pages": NewReference(2, 0)})
	b.object(2, Dict{"Type": Name("Pages"), "Kids": Array{}, "Count": Integer(0)})
	b.object(3, Dict{"Unused": Bool(true)})

	enc, err := NewFilterChain(Filter{Type: FilterFlate}).Encode(testContent)
	if err != nil {
		t.Fatal(err)
	}
	b.raw(4, "<</Filter /FlateDecode /Length 5 0 R>>\nstream\n"+string(enc)+"\nendstream")
	b.object(5, Integer(len(enc)))

	pos := b.xrefTable(Dict{"Size": Integer(6), "Root": NewReference(1, 0)})
	b.startXRef(pos)
	return b.bytes()
}

func TestReaderLegacy(t *testing.T) {
	data := legacyTestFile(t)
	r, err := NewReader(data, nil)
	if err != nil {
		t.Fatal(err)
	}

	if r.Version != "1.7" {
		t.Errorf("wrong version %q", r.Version)
	}
	if d := cmp.Diff(Dict{"Size": Integer(6), "Root": NewReference(1, 0)}, r.Trailer()); d != "" {
		t.Errorf("wrong trailer (-want +got):\n%s", d)
	}
	if r.XRef().State() != TableFinalized {
		t.Errorf("wrong table state %s", r.XRef().State())
	}
	if n := r.XRef().InUseCount(); n != 5 {
		t.Errorf("wrong number of objects %d", n)
	}

	catalog, err := r.GetDict(r.Trailer()["Root"])
	if err != nil {
		t.Fatal(err)
	}
	pages, err := r.GetDict(catalog["Pages"])
	if err != nil {
		t.Fatal(err)
	}
	if pages["Type"] != Name("Pages") {
		t.Errorf("wrong pages object %s", Format(pages))
	}

	obj, err := r.Resolve(NewReference(4, 0))
	if err != nil {
		t.Fatal(err)
	}
	stm, ok := obj.(*Stream)
	if !ok {
		t.Fatalf("expected stream, got %s", Format(obj))
	}
	content, err := r.DecodeStream(stm)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(content, testContent) {
		t.Errorf("wrong stream content %q", content)
	}

	// repeated access uses the cache
	obj2, err := r.Get(NewReference(4, 0))
	if err != nil || obj2 != obj {
		t.Errorf("second Get: %v %v", obj2, err)
	}

	if x, err := r.GetInt(NewReference(5, 0)); err != nil || int(x) != len(stm.Data) {
		t.Errorf("GetInt: %d %v", x, err)
	}
	if _, err := r.GetInt(NewReference(3, 0)); !IsMalformed(err) {
		t.Errorf("GetInt of a dictionary: wrong error %v", err)
	}
	if d, err := r.GetDict(nil); d != nil || err != nil {
		t.Errorf("GetDict(nil): %v %v", d, err)
	}
	if x, err := r.Resolve(Integer(7)); err != nil || x != Integer(7) {
		t.Errorf("Resolve of a direct object: %v %v", x, err)
	}
}

func TestReaderGetErrors(t *testing.T) {
	r, err := NewReader(legacyTestFile(t), nil)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		ref  Reference
		want error
	}{
		{NewReference(99, 0), errNoEntry},
		{NewReference(0, 65535), errFreeObject},
		{NewReference(1, 1), errGeneration},
	}
	for _, test := range cases {
		_, err := r.Get(test.ref)
		var unresolved *UnresolvedReferenceError
		if !errors.As(err, &unresolved) || unresolved.Ref != test.ref {
			t.Errorf("%s: wrong error %v", test.ref, err)
			continue
		}
		if !errors.Is(err, test.want) {
			t.Errorf("%s: wrong cause %v", test.ref, err)
		}
	}
}

func TestReaderOptions(t *testing.T) {
	data := legacyTestFile(t)

	r, err := NewReader(data, &ReaderOptions{MaxStreamSize: 10})
	if err != nil {
		t.Fatal(err)
	}
	obj, err := r.Get(NewReference(4, 0))
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.DecodeStream(obj.(*Stream))
	if !errors.Is(err, ErrOutputLimit) {
		t.Errorf("wrong error %v", err)
	}

	r, err = NewReader(data, &ReaderOptions{CacheSize: -1})
	if err != nil {
		t.Fatal(err)
	}
	for range 2 {
		obj, err := r.Get(NewReference(2, 0))
		if err != nil {
			t.Fatal(err)
		}
		if !Equal(obj, Dict{"Type": Name("Pages"), "Kids": Array{}, "Count": Integer(0)}) {
			t.Errorf("wrong object %s", Format(obj))
		}
	}
}

func TestDecodeStreamLengthHint(t *testing.T) {
	r, err := NewReader(legacyTestFile(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := NewFilterChain(Filter{Type: FilterFlate}).Encode([]byte("tiny"))
	if err != nil {
		t.Fatal(err)
	}
	stm := &Stream{
		Dict: Dict{"Filter": Name("FlateDecode"), "DL": Integer(math.MaxInt32 - 1)},
		Data: enc,
	}
	out, err := r.DecodeStream(stm)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "tiny" {
		t.Errorf("wrong data %q", out)
	}
	if c := cap(out); c > 64*len(enc)+512 {
		t.Errorf("/DL allocated a buffer of %d bytes", c)
	}
}

func TestReaderLegacyUnreachable(t *testing.T) {
	r, err := NewReader(legacyTestFile(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	n, err := MarkReachable(r)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("%d objects marked, expected 2", n)
	}
	if d := cmp.Diff([]uint32{3, 4, 5}, Unreachable(r)); d != "" {
		t.Errorf("wrong unreachable objects (-want +got):\n%s", d)
	}
}

// fullTestFile returns a file with two revisions.  The first revision uses
// an object stream and a cross-reference stream, the second revision is an
// incremental update with a cross-reference table.
func fullTestFile(t *testing.T) (data []byte, rev1 map[uint32]XRefEntry) {
	b := newPDFBuilder(t)
	b.object(1, Dict{
		"Type":  Name("Catalog"),
		"Pages": NewReference(2, 0),
		"Extra": NewReference(8, 0),
	})

	objStm := buildObjStm(t, []uint32{2, 3, 4}, []Object{
		Dict{"Type": Name("Pages"), "Kids": Array{}, "Count": Integer(0)},
		Array{Name("three")},
		Integer(42),
	})
	b.object(5, objStm)
	b.entries[2] = CompressedEntry(5, 0)
	b.entries[3] = CompressedEntry(5, 1)
	b.entries[4] = CompressedEntry(5, 2)

	b.object(6, NewReference(7, 0))
	b.object(7, NewReference(6, 0))
	b.object(8, Array{NewReference(3, 0)})
	for num := uint32(10); num < 50; num++ {
		b.object(num, NewReference(num+1, 0))
	}
	b.object(50, Integer(1))

	rev1 = make(map[uint32]XRefEntry)
	for num, e := range b.entries {
		rev1[num] = e
	}
	chain := NewFilterChain(Filter{Type: FilterFlate, Parms: Dict{"Predictor": Integer(12)}})
	trailer := Dict{"Size": Integer(61), "Root": NewReference(1, 0)}
	stmPos := b.xrefStream(60, trailer, chain)
	rev1[60] = InUseEntry(0, stmPos)
	b.startXRef(stmPos)

	// incremental update
	b.object(4, Integer(43))
	b.object(8, Array{NewReference(3, 0), NewReference(4, 0)})
	tablePos := b.xrefTable(Dict{
		"Size": Integer(61),
		"Root": NewReference(1, 0),
		"Prev": Integer(stmPos),
	})
	b.startXRef(tablePos)

	return b.bytes(), rev1
}

func TestReaderFull(t *testing.T) {
	data, _ := fullTestFile(t)
	r, err := NewReader(data, nil)
	if err != nil {
		t.Fatal(err)
	}

	trailer := r.Trailer()
	if trailer["Size"] != Integer(61) || trailer["Root"] != NewReference(1, 0) {
		t.Errorf("wrong trailer %s", Format(trailer))
	}
	if _, ok := trailer["Prev"]; !ok {
		t.Error("missing /Prev in trailer")
	}
	for _, key := range []Name{"W", "Index", "Type", "Filter", "DecodeParms", "Length"} {
		if _, ok := trailer[key]; ok {
			t.Errorf("unexpected trailer entry /%s", key)
		}
	}

	cases := []struct {
		num  uint32
		want Object
	}{
		{2, Dict{"Type": Name("Pages"), "Kids": Array{}, "Count": Integer(0)}},
		{3, Array{Name("three")}},
		{4, Integer(43)},
		{8, Array{NewReference(3, 0), NewReference(4, 0)}},
		{50, Integer(1)},
	}
	for _, test := range cases {
		obj, err := r.Get(NewReference(test.num, 0))
		if err != nil {
			t.Errorf("object %d: %s", test.num, err)
			continue
		}
		if !Equal(obj, test.want) {
			t.Errorf("object %d: got %s", test.num, Format(obj))
		}
	}

	if n := r.XRef().CompressedCount(); n != 2 {
		t.Errorf("wrong number of compressed objects %d", n)
	}

	stm, err := r.ObjectStream(5)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]uint32{2, 3, 4}, stm.Numbers); d != "" {
		t.Errorf("wrong object stream contents (-want +got):\n%s", d)
	}
	stm.Release()

	// The shared handle was released, but the reader can still use the
	// cached object stream.
	r2, err := NewReader(data, &ReaderOptions{CacheSize: -1})
	if err != nil {
		t.Fatal(err)
	}
	stm, err = r2.ObjectStream(5)
	if err != nil {
		t.Fatal(err)
	}
	stm.Release()
	obj, err := r2.Get(NewReference(3, 0))
	if err != nil || !Equal(obj, Array{Name("three")}) {
		t.Errorf("object 3 after release: %s %v", Format(obj), err)
	}

	if _, err := r.ObjectStream(1); err == nil {
		t.Error("object 1 accepted as object stream")
	}
	if _, err := r.ObjectStream(2); err == nil {
		t.Error("compressed object accepted as object stream")
	}
}

func TestReaderResolve(t *testing.T) {
	data, _ := fullTestFile(t)
	r, err := NewReader(data, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = r.Resolve(NewReference(6, 0))
	if !errors.Is(err, errCycle) {
		t.Errorf("cycle: wrong error %v", err)
	}

	_, err = r.Resolve(NewReference(10, 0))
	var unresolved *UnresolvedReferenceError
	if !errors.Is(err, errDepth) || !errors.As(err, &unresolved) {
		t.Errorf("long chain: wrong error %v", err)
	}

	obj, err := r.Resolve(NewReference(45, 0))
	if err != nil || obj != Integer(1) {
		t.Errorf("short chain: %s %v", Format(obj), err)
	}

	r, err = NewReader(data, &ReaderOptions{MaxDepth: 50})
	if err != nil {
		t.Fatal(err)
	}
	obj, err = r.Resolve(NewReference(10, 0))
	if err != nil || obj != Integer(1) {
		t.Errorf("MaxDepth 50: %s %v", Format(obj), err)
	}
}

// TestObjectStreamSelfReference checks that an object stream whose filter
// is stored inside the stream itself gives an error.
func TestObjectStreamSelfReference(t *testing.T) {
	for _, key := range []Name{"Filter", "DecodeParms", "Length"} {
		t.Run(string(key), func(t *testing.T) {
			b := newPDFBuilder(t)
			b.object(1, Dict{"Type": Name("Catalog")})
			var inner Object = Name("FlateDecode")
			if key == "DecodeParms" {
				inner = Dict{"Predictor": Integer(1)}
			}
			stm := buildObjStm(t, []uint32{11}, []Object{inner})
			switch key {
			case "Length":
				b.raw(10, Format(Dict{
					"Type":   Name("ObjStm"),
					"N":      stm.Dict["N"],
					"First":  stm.Dict["First"],
					"Filter": Name("FlateDecode"),
					"Length": NewReference(11, 0),
				})+"\nstream\n"+string(stm.Data)+"\nendstream")
			default:
				stm.Dict[key] = NewReference(11, 0)
				b.object(10, stm)
			}
			b.entries[11] = CompressedEntry(10, 0)
			pos := b.xrefStream(12, Dict{"Size": Integer(13), "Root": NewReference(1, 0)}, nil)
			b.startXRef(pos)

			r, err := NewReader(b.bytes(), nil)
			if err != nil {
				t.Fatal(err)
			}
			obj, err := r.Get(NewReference(11, 0))
			if key == "Length" {
				// the stream data is found by scanning for "endstream"
				if err != nil || obj != Name("FlateDecode") {
					t.Errorf("got %s %v", Format(obj), err)
				}
			} else if !errors.Is(err, errCycle) {
				t.Errorf("wrong error %v", err)
			}

			// the reader stays usable
			if _, err := r.GetDict(NewReference(1, 0)); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestReaderXRefStream(t *testing.T) {
	data, rev1 := fullTestFile(t)
	r, err := NewReader(data, nil)
	if err != nil {
		t.Fatal(err)
	}

	obj, err := r.Get(NewReference(60, 0))
	if err != nil {
		t.Fatal(err)
	}
	stm, ok := obj.(*Stream)
	if !ok {
		t.Fatalf("expected stream, got %s", Format(obj))
	}
	if stm.Dict["Type"] != Name("XRef") {
		t.Errorf("wrong type %s", Format(stm.Dict["Type"]))
	}

	decoded, err := r.DecodeStream(stm)
	if err != nil {
		t.Fatal(err)
	}
	w, index, err := XRefStreamParams(stm.Dict)
	if err != nil {
		t.Fatal(err)
	}
	ss, err := DecodeXRefStream(decoded, w, index)
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[uint32]XRefEntry)
	for _, sub := range ss {
		for i, e := range sub.Entries {
			got[sub.Start+uint32(i)] = e
		}
	}
	if d := cmp.Diff(rev1, got); d != "" {
		t.Errorf("wrong entries (-want +got):\n%s", d)
	}
}

func TestReaderReachable(t *testing.T) {
	data, _ := fullTestFile(t)
	r, err := NewReader(data, nil)
	if err != nil {
		t.Fatal(err)
	}

	n, err := MarkReachable(r)
	if err != nil {
		t.Fatal(err)
	}
	marked := r.XRef().MarkedObjects()
	if d := cmp.Diff([]uint32{1, 2, 3, 4, 5, 8, 60}, marked); d != "" {
		t.Errorf("wrong marks (-want +got):\n%s", d)
	}
	if n != len(marked) {
		t.Errorf("wrong count %d", n)
	}

	want := []uint32{6, 7}
	for num := uint32(10); num <= 50; num++ {
		want = append(want, num)
	}
	if d := cmp.Diff(want, Unreachable(r)); d != "" {
		t.Errorf("wrong unreachable objects (-want +got):\n%s", d)
	}

	// A second run gives the same result.
	n2, err := MarkReachable(r)
	if err != nil || n2 != n {
		t.Errorf("second run: %d %v", n2, err)
	}
}

func TestMarkReachableMissing(t *testing.T) {
	b := newPDFBuilder(t)
	b.object(1, Dict{"Type": Name("Catalog"), "Missing": NewReference(9, 0), "Self": NewReference(1, 0)})
	b.object(2, Dict{"Title": String("test")})
	pos := b.xrefTable(Dict{
		"Size": Integer(3),
		"Root": NewReference(1, 0),
		"Info": NewReference(2, 0),
	})
	b.startXRef(pos)

	r, err := NewReader(b.bytes(), nil)
	if err != nil {
		t.Fatal(err)
	}
	n, err := MarkReachable(r)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || len(Unreachable(r)) != 0 {
		t.Errorf("wrong marks %v", r.XRef().MarkedObjects())
	}
}

func TestReaderHybrid(t *testing.T) {
	b := newPDFBuilder(t)
	b.object(1, Dict{"Type": Name("Catalog"), "Data": NewReference(3, 0)})
	b.object(2, buildObjStm(t, []uint32{3}, []Object{String("hidden")}))
	tableEntries := b.entries

	b.entries = map[uint32]XRefEntry{3: CompressedEntry(2, 0)}
	stmPos := b.xrefStream(4, Dict{"Size": Integer(5)}, nil)

	b.entries = tableEntries
	b.entries[3] = FreeEntry(0, 0)
	tablePos := b.xrefTable(Dict{
		"Size":    Integer(5),
		"Root":    NewReference(1, 0),
		"XRefStm": Integer(stmPos),
	})
	b.startXRef(tablePos)

	r, err := NewReader(b.bytes(), nil)
	if err != nil {
		t.Fatal(err)
	}

	entry, _ := r.XRef().Get(3)
	if !entry.IsCompressed() {
		t.Errorf("wrong entry for object 3: %s", entry)
	}
	obj, err := r.Get(NewReference(3, 0))
	if err != nil || !Equal(obj, String("hidden")) {
		t.Errorf("object 3: %s %v", Format(obj), err)
	}
	if _, ok := r.Trailer()["XRefStm"]; ok {
		t.Error("unexpected /XRefStm in trailer")
	}
	if r.Trailer()["Root"] != NewReference(1, 0) {
		t.Errorf("wrong trailer %s", Format(r.Trailer()))
	}

	_, err = MarkReachable(r)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(r.XRef().MarkedObjects(), []uint32{1, 2, 3, 4}) {
		t.Errorf("wrong marks %v", r.XRef().MarkedObjects())
	}
}

func TestReaderErrors(t *testing.T) {
	_, err := NewReader([]byte("this is not a PDF file"), nil)
	if !IsMalformed(err) {
		t.Errorf("no header: wrong error %v", err)
	}

	_, err = NewReader([]byte("%PDF-1.4\n1 0 obj\nnull\nendobj\n"), nil)
	var xrefErr *XRefFormatError
	if !errors.As(err, &xrefErr) {
		t.Errorf("no startxref: wrong error %v", err)
	}

	_, err = NewReader([]byte("%PDF-1.4\nstartxref\n1000\n%%EOF\n"), nil)
	if !errors.As(err, &xrefErr) {
		t.Errorf("startxref past the end: wrong error %v", err)
	}

	// a /Prev entry pointing back to the same section
	b := newPDFBuilder(t)
	b.object(1, Dict{"Type": Name("Catalog")})
	pos := int64(b.buf.Len())
	b.xrefTable(Dict{"Size": Integer(2), "Root": NewReference(1, 0), "Prev": Integer(pos)})
	b.startXRef(pos)
	_, err = NewReader(b.bytes(), nil)
	if !errors.As(err, &xrefErr) {
		t.Errorf("/Prev loop: wrong error %v", err)
	}

	// startxref which does not point to cross-reference data
	b = newPDFBuilder(t)
	b.object(1, Dict{"Type": Name("Catalog")})
	b.startXRef(9)
	_, err = NewReader(b.bytes(), nil)
	if !errors.As(err, &xrefErr) {
		t.Errorf("bad xref offset: wrong error %v", err)
	}
}
