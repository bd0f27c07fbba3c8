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
)

// ObjectStream gives access to the objects stored inside a PDF object
// stream (a stream with /Type /ObjStm).
type ObjectStream struct {
	// Numbers lists the object numbers of the objects in the stream,
	// in the order they are stored.
	Numbers []uint32

	// Extends is the object stream which this stream extends, or 0.
	Extends Reference

	buf     *Buffer
	first   int
	offsets []int
}

// ParseObjectStream reads the header of an object stream.  The argument
// decoded must be the decoded stream data; the returned ObjectStream takes
// ownership of this slice.
func ParseObjectStream(stream *Stream, decoded []byte) (*ObjectStream, error) {
	if tp, ok := stream.Dict["Type"]; ok && tp != Name("ObjStm") {
		return nil, Errorf("invalid object stream type %s", Format(tp))
	}
	N, ok := stream.Dict["N"].(Integer)
	// Every header entry takes at least four bytes.
	if !ok || N < 0 || N > Integer(len(decoded)/4+1) {
		return nil, Errorf("invalid /N %s for object stream", Format(stream.Dict["N"]))
	}
	first, ok := stream.Dict["First"].(Integer)
	if !ok || first < 0 || first > Integer(len(decoded)) {
		return nil, Errorf("invalid /First %s for object stream", Format(stream.Dict["First"]))
	}

	res := &ObjectStream{
		Numbers: make([]uint32, N),
		offsets: make([]int, N),
		first:   int(first),
	}
	if ext, ok := stream.Dict["Extends"].(Reference); ok {
		res.Extends = ext
	}

	s := newScanner(decoded[:first], 0, nil)
	for i := range res.Numbers {
		s.SkipWhiteSpace()
		num, err := s.readUint(math.MaxUint32)
		if err != nil {
			return nil, Wrap(err, "object stream header")
		}
		s.SkipWhiteSpace()
		offs, err := s.readUint(uint64(len(decoded) - int(first)))
		if err != nil {
			return nil, Wrap(err, "object stream header")
		}
		res.Numbers[i] = uint32(num)
		res.offsets[i] = int(offs)
	}

	res.buf = NewBuffer(decoded)
	return res, nil
}

// Len returns the number of objects in the stream.
func (stm *ObjectStream) Len() int {
	return len(stm.Numbers)
}

// Find returns the position of the given object number within the stream.
func (stm *ObjectStream) Find(num uint32) (int, bool) {
	for i, n := range stm.Numbers {
		if n == num {
			return i, true
		}
	}
	return 0, false
}

// Object parses the i-th object in the stream.
func (stm *ObjectStream) Object(i int) (Object, error) {
	if i < 0 || i >= len(stm.Numbers) {
		return nil, Errorf("object stream index %d out of range", i)
	}
	data := stm.buf.Bytes()
	if data == nil {
		return nil, errReleased
	}

	start := stm.first + stm.offsets[i]
	// Objects are separated by white space, so the next offset bounds the
	// object if the offsets are increasing.
	end := len(data)
	if i+1 < len(stm.offsets) {
		if next := stm.first + stm.offsets[i+1]; next >= start {
			end = next
		}
	}
	s := newScanner(data[:end], 0, nil)
	s.pos = start

	obj, err := s.ReadObject()
	if err != nil {
		return nil, Wrap(err, NewReference(stm.Numbers[i], 0).String())
	}
	if _, isStream := obj.(*Stream); isStream {
		return nil, Errorf("stream %s inside object stream", NewReference(stm.Numbers[i], 0))
	}
	return obj, nil
}

// Share returns a new handle for the same object stream, which shares the
// decoded data.  Each handle must be released separately.
func (stm *ObjectStream) Share() *ObjectStream {
	res := *stm
	res.buf = stm.buf.Share()
	return &res
}

// Release frees the decoded data held by this handle.
// After Release, Object returns an error.
func (stm *ObjectStream) Release() {
	stm.buf.Release()
}

var errReleased = errors.New("object stream has been released")
