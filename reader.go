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
	"strconv"

	"seehuhn.de/go/pdfcore/internal/filter/limit"
)

// ReaderOptions configures a [Reader].  The zero value selects the
// defaults.
type ReaderOptions struct {
	// MaxDepth is the maximal length of a chain of references which is
	// followed by [Reader.Resolve].  The default is 32.
	MaxDepth int

	// CacheSize is the number of objects kept in memory.  The default is
	// 1000.  Use a negative value to disable caching.
	CacheSize int

	// MaxStreamSize, if positive, limits the size of decoded stream data.
	MaxStreamSize int64
}

const (
	defaultMaxDepth  = 32
	defaultCacheSize = 1000

	// objStmCacheSize is the number of decoded object streams kept in
	// memory.
	objStmCacheSize = 16
)

// Reader gives access to the objects of a PDF file held in memory.
type Reader struct {
	// Version is the PDF version given in the file header, e.g. "1.7".
	Version string

	data    []byte
	opt     ReaderOptions
	xref    *XRefTable
	trailer Dict

	// xrefStreams lists the cross-reference streams of all revisions.
	xrefStreams []Reference

	cache   *lruCache[Reference, Object]
	objStms *lruCache[uint32, *ObjectStream]

	lengthLevel int

	// loadingObjStms holds the object streams which are currently being
	// decoded.
	loadingObjStms map[uint32]bool
}

// NewReader reads the cross-reference information of a PDF file.
// The slice data must contain the complete file and must not be modified
// while the Reader is in use.  If opt is nil, default options are used.
func NewReader(data []byte, opt *ReaderOptions) (*Reader, error) {
	r := &Reader{data: data}
	if opt != nil {
		r.opt = *opt
	}
	if r.opt.MaxDepth <= 0 {
		r.opt.MaxDepth = defaultMaxDepth
	}
	if r.opt.CacheSize == 0 {
		r.opt.CacheSize = defaultCacheSize
	}
	r.cache = newCache[Reference, Object](r.opt.CacheSize)
	r.objStms = newCache[uint32, *ObjectStream](objStmCacheSize)
	r.objStms.onEvict = func(_ uint32, stm *ObjectStream) {
		stm.Release()
	}

	version, err := readHeaderVersion(data)
	if err != nil {
		return nil, err
	}
	r.Version = version

	start, err := r.findXRef()
	if err != nil {
		return nil, err
	}

	// Sections are collected newest first.
	var sections []*XRefSection
	seen := make(map[int64]bool)
	for {
		// avoid xref loops
		if seen[start] {
			return nil, xrefErrorf(start, "loop in /Prev chain")
		}
		seen[start] = true

		secs, err := r.readXRefSection(start)
		if err != nil {
			return nil, err
		}
		sections = append(sections, secs...)

		prev, hasPrev := secs[0].Trailer["Prev"]
		if !hasPrev {
			break
		}
		prevStart, ok := prev.(Integer)
		if !ok || prevStart < 0 || int64(prevStart) >= int64(len(data)) {
			return nil, xrefErrorf(start, "invalid /Prev value %s", Format(prev))
		}
		start = int64(prevStart)
	}

	r.xref = NewXRefTable()
	for i := len(sections) - 1; i >= 0; i-- {
		for j := range sections[i].Subsections {
			err := r.xref.AddSubsection(&sections[i].Subsections[j])
			if err != nil {
				return nil, err
			}
		}
	}
	r.xref.Finalize()

	r.trailer = Dict{}
	for i := len(sections) - 1; i >= 0; i-- {
		for key, val := range sections[i].Trailer {
			r.trailer[key] = val
		}
	}
	for _, key := range []Name{"Length", "Filter", "DecodeParms", "W", "Index", "Type", "XRefStm"} {
		delete(r.trailer, key)
	}
	if prev, ok := sections[0].Trailer["Prev"]; ok {
		r.trailer["Prev"] = prev
	} else {
		delete(r.trailer, "Prev")
	}

	return r, nil
}

func readHeaderVersion(data []byte) (string, error) {
	head := data[:min(len(data), 1024)]
	idx := bytes.Index(head, []byte("%PDF-"))
	if idx < 0 {
		return "", &MalformedObjectError{Err: errors.New("PDF header not found")}
	}
	rest := head[idx+5:]
	n := 0
	for n < len(rest) && (rest[n] >= '0' && rest[n] <= '9' || rest[n] == '.') {
		n++
	}
	if n == 0 {
		return "", &MalformedObjectError{Pos: int64(idx + 5), Err: errors.New("malformed PDF version")}
	}
	return string(rest[:n]), nil
}

func (r *Reader) findXRef() (int64, error) {
	pos := bytes.LastIndex(r.data, []byte("startxref"))
	if pos < 0 {
		return 0, xrefErrorf(0, "startxref not found")
	}
	s := newScanner(r.data, 0, nil)
	s.pos = pos + len("startxref")
	s.SkipWhiteSpace()
	xRefPos, err := s.readUint(math.MaxInt64)
	if err != nil {
		return 0, &XRefFormatError{Pos: s.filePos(), Err: err}
	}
	if xRefPos >= uint64(len(r.data)) {
		return 0, xrefErrorf(s.filePos(), "invalid xref position %d", xRefPos)
	}
	return int64(xRefPos), nil
}

// readXRefSection reads the cross-reference section at pos.  For hybrid
// files, the section from the /XRefStm stream is returned after the
// table, so that its entries take precedence.
func (r *Reader) readXRefSection(pos int64) ([]*XRefSection, error) {
	s := newScanner(r.data, 0, nil)
	s.pos = int(pos)
	s.SkipWhiteSpace()

	if !s.hasKeyword("xref") {
		sec, err := r.readXRefStream(pos)
		if err != nil {
			return nil, err
		}
		return []*XRefSection{sec}, nil
	}

	sec, err := ReadXRefTable(r.data, pos)
	if err != nil {
		return nil, err
	}
	res := []*XRefSection{sec}

	if xRefStm, ok := sec.Trailer["XRefStm"]; ok {
		zStart, ok := xRefStm.(Integer)
		if !ok || zStart < 0 || int64(zStart) >= int64(len(r.data)) {
			return nil, xrefErrorf(pos, "invalid /XRefStm %s", Format(xRefStm))
		}
		hidden, err := r.readXRefStream(int64(zStart))
		if err != nil {
			return nil, err
		}
		// The trailer of the table applies to the whole section.
		hidden.Trailer = sec.Trailer
		res = []*XRefSection{hidden, sec}
	}
	return res, nil
}

func (r *Reader) readXRefStream(pos int64) (*XRefSection, error) {
	obj, ref, err := ParseIndirectObject(r.data, pos)
	if err != nil {
		return nil, &XRefFormatError{Pos: pos, Err: err}
	}
	stream, ok := obj.(*Stream)
	if !ok || stream.Dict["Type"] != Name("XRef") {
		return nil, xrefErrorf(pos, "invalid xref stream")
	}
	r.xrefStreams = append(r.xrefStreams, ref)

	w, index, err := XRefStreamParams(stream.Dict)
	if err != nil {
		return nil, err
	}
	chain, err := ChainFromDict(stream.Dict, nil)
	if err != nil {
		return nil, &XRefFormatError{Pos: pos, Err: err}
	}
	data, err := chain.Decode(stream.Data, r.decodeOptions())
	if err != nil {
		return nil, &XRefFormatError{Pos: pos, Err: err}
	}
	ss, err := DecodeXRefStream(data, w, index)
	if err != nil {
		return nil, err
	}
	return &XRefSection{Subsections: ss, Trailer: stream.Dict}, nil
}

func (r *Reader) decodeOptions() *DecodeOptions {
	return &DecodeOptions{MaxOutput: r.opt.MaxStreamSize}
}

// XRef returns the cross-reference table of the file.  The table is
// finalized, but reachability marks can be used.
func (r *Reader) XRef() *XRefTable {
	return r.xref
}

// Trailer returns the trailer dictionary.  For files with incremental
// updates, the entries of the newest trailer are used.
func (r *Reader) Trailer() Dict {
	return r.trailer
}

// Get returns the indirect object ref.  If the object cannot be found, an
// [*UnresolvedReferenceError] is returned.
func (r *Reader) Get(ref Reference) (Object, error) {
	if obj, ok := r.cache.Get(ref); ok {
		return obj, nil
	}

	num := ref.Number()
	entry, ok := r.xref.Get(num)
	if !ok {
		return nil, &UnresolvedReferenceError{Ref: ref, Err: errNoEntry}
	}

	var obj Object
	var err error
	switch entry.Type {
	case EntryFree:
		return nil, &UnresolvedReferenceError{Ref: ref, Err: errFreeObject}
	case EntryInUse:
		if entry.Generation != ref.Generation() {
			return nil, &UnresolvedReferenceError{Ref: ref, Err: errGeneration}
		}
		obj, err = r.getInUse(ref, entry)
	case EntryCompressed:
		if ref.Generation() != 0 {
			return nil, &UnresolvedReferenceError{Ref: ref, Err: errGeneration}
		}
		obj, err = r.getCompressed(ref, entry)
	}
	if err != nil {
		return nil, err
	}

	r.cache.Put(ref, obj)
	return obj, nil
}

var (
	errFreeObject = errors.New("object is free")
	errGeneration = errors.New("generation number mismatch")
	errCycle      = errors.New("reference cycle")
	errDepth      = errors.New("reference chain too long")
)

func (r *Reader) getInUse(ref Reference, entry XRefEntry) (Object, error) {
	if entry.Offset >= int64(len(r.data)) {
		return nil, &UnresolvedReferenceError{
			Ref: ref,
			Err: fmt.Errorf("offset %d outside the file", entry.Offset),
		}
	}
	s := newScanner(r.data, 0, r.streamLength)
	s.pos = int(entry.Offset)
	obj, fileRef, err := s.ReadIndirectObject()
	if err != nil {
		return nil, err
	}
	if fileRef != ref {
		return nil, &UnresolvedReferenceError{
			Ref: ref,
			Err: fmt.Errorf("xref corrupted: found %s at offset %d", fileRef, entry.Offset),
		}
	}
	return obj, nil
}

func (r *Reader) getCompressed(ref Reference, entry XRefEntry) (Object, error) {
	stm, err := r.objectStream(entry.Stream)
	if err != nil {
		return nil, err
	}

	idx := int(entry.Index)
	if idx >= stm.Len() || stm.Numbers[idx] != ref.Number() {
		var found bool
		idx, found = stm.Find(ref.Number())
		if !found {
			return nil, &UnresolvedReferenceError{
				Ref: ref,
				Err: fmt.Errorf("object missing from object stream %d", entry.Stream),
			}
		}
	}
	return stm.Object(idx)
}

// objectStream returns the decoded object stream with the given number.
// The result is owned by the cache and must not be released by the caller.
func (r *Reader) objectStream(num uint32) (*ObjectStream, error) {
	if stm, ok := r.objStms.Get(num); ok {
		return stm, nil
	}

	ref := NewReference(num, 0)
	if r.loadingObjStms[num] {
		return nil, &UnresolvedReferenceError{Ref: ref, Err: errCycle}
	}
	entry, ok := r.xref.Get(num)
	if !ok || entry.Type == EntryFree {
		return nil, &UnresolvedReferenceError{Ref: ref, Err: errors.New("object stream not found")}
	}
	if entry.Type == EntryCompressed {
		return nil, &UnresolvedReferenceError{
			Ref: ref,
			Err: errors.New("object stream inside object stream"),
		}
	}
	if r.loadingObjStms == nil {
		r.loadingObjStms = make(map[uint32]bool)
	}
	r.loadingObjStms[num] = true
	defer delete(r.loadingObjStms, num)

	obj, err := r.Get(NewReference(num, entry.Generation))
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*Stream)
	if !ok {
		return nil, Wrap(Error("object stream is not a stream"), ref.String())
	}
	decoded, err := r.DecodeStream(stream)
	if err != nil {
		return nil, Wrap(err, ref.String())
	}
	stm, err := ParseObjectStream(stream, decoded)
	if err != nil {
		return nil, Wrap(err, ref.String())
	}
	r.objStms.Put(num, stm)
	return stm, nil
}

// ObjectStream returns the object stream with the given object number.
// The caller must call Release on the result when done.
func (r *Reader) ObjectStream(num uint32) (*ObjectStream, error) {
	stm, err := r.objectStream(num)
	if err != nil {
		return nil, err
	}
	return stm.Share(), nil
}

// Resolve resolves references to indirect objects.
//
// If obj is a [Reference], the function loads the corresponding object
// from the file and returns the result.  Chains of references are followed
// up to the configured maximal depth.  Otherwise, obj is returned
// unchanged.
func (r *Reader) Resolve(obj Object) (Object, error) {
	var seen map[Reference]bool
	for depth := 0; ; depth++ {
		ref, ok := obj.(Reference)
		if !ok {
			return obj, nil
		}
		if depth >= r.opt.MaxDepth {
			return nil, &UnresolvedReferenceError{Ref: ref, Err: errDepth}
		}
		if seen == nil {
			seen = make(map[Reference]bool)
		}
		if seen[ref] {
			return nil, &UnresolvedReferenceError{Ref: ref, Err: errCycle}
		}
		seen[ref] = true

		var err error
		obj, err = r.Get(ref)
		if err != nil {
			return nil, err
		}
	}
}

// streamLength resolves indirect /Length values of streams.
func (r *Reader) streamLength(obj Object) (Integer, error) {
	if x, ok := obj.(Integer); ok {
		return x, nil
	}

	if r.lengthLevel > 2 {
		return 0, Error("nested indirect stream lengths")
	}
	r.lengthLevel++
	defer func() { r.lengthLevel-- }()

	val, err := r.Resolve(obj)
	if err != nil {
		return 0, err
	}
	x, ok := val.(Integer)
	if !ok {
		return 0, Errorf("invalid stream length %s", Format(val))
	}
	return x, nil
}

// DecodeStream decodes the data of a stream, using the filters given in
// the stream dictionary.
func (r *Reader) DecodeStream(s *Stream) ([]byte, error) {
	chain, err := ChainFromDict(s.Dict, r.Resolve)
	if err != nil {
		return nil, err
	}
	opt := r.decodeOptions()
	if l, ok := s.Dict["DL"].(Integer); ok && l > 0 && l < math.MaxInt32 {
		opt.LengthHint = limit.Hint(int(l), len(s.Data))
	}
	return chain.Decode(s.Data, opt)
}

// GetDict resolves obj and checks that the result is a dictionary.
// If obj is null, nil is returned without an error.
func (r *Reader) GetDict(obj Object) (Dict, error) {
	candidate, err := r.Resolve(obj)
	if err != nil || candidate == nil {
		return nil, err
	}
	val, ok := candidate.(Dict)
	if !ok {
		return nil, Errorf("expected dictionary but got %s", typeName(candidate))
	}
	return val, nil
}

// GetInt resolves obj and checks that the result is an integer.
func (r *Reader) GetInt(obj Object) (Integer, error) {
	candidate, err := r.Resolve(obj)
	if err != nil {
		return 0, err
	}
	val, ok := candidate.(Integer)
	if !ok {
		return 0, Errorf("expected integer but got %s", typeName(candidate))
	}
	return val, nil
}

func typeName(obj Object) string {
	switch obj.(type) {
	case nil:
		return "null"
	case Bool:
		return "boolean"
	case Integer:
		return "integer"
	case Real:
		return "real number"
	case Name:
		return "name"
	case String:
		return "string"
	case Array:
		return "array"
	case Dict:
		return "dictionary"
	case Reference:
		return "reference"
	case *Stream:
		return "stream"
	default:
		return strconv.Quote(fmt.Sprintf("%T", obj))
	}
}
