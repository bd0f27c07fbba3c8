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
)

// MarkReachable marks all objects in the cross-reference table of r which
// can be reached from the trailer dictionary.  The graph is traversed
// iteratively, so that deeply nested or cyclic structures are safe.
// Object streams which contain reachable objects and the cross-reference
// streams of the file are marked, too.  References to missing objects are
// treated as null.
//
// Existing marks are cleared first.  The function returns the number of
// marked objects.
func MarkReachable(r *Reader) (int, error) {
	xref := r.XRef()
	xref.ClearMarks()

	for _, ref := range r.xrefStreams {
		xref.Mark(ref.Number())
	}

	trailer := r.Trailer()
	var todo []Object
	for _, key := range []Name{"Root", "Info", "Encrypt"} {
		if obj, ok := trailer[key]; ok {
			todo = append(todo, obj)
		}
	}

	visited := make(map[Reference]bool)
	for len(todo) > 0 {
		obj := todo[len(todo)-1]
		todo = todo[:len(todo)-1]

		if ref, isRef := obj.(Reference); isRef {
			if visited[ref] {
				continue
			}
			visited[ref] = true

			resolved, err := r.Get(ref)
			var unresolved *UnresolvedReferenceError
			if errors.As(err, &unresolved) && unresolved.Ref == ref {
				continue
			} else if err != nil {
				return 0, err
			}

			num := ref.Number()
			xref.Mark(num)
			if entry, _ := xref.Get(num); entry.IsCompressed() {
				xref.Mark(entry.Stream)
			}
			obj = resolved
		}

		switch x := obj.(type) {
		case Array:
			todo = append(todo, x...)
		case Dict:
			for _, val := range x {
				todo = append(todo, val)
			}
		case *Stream:
			for _, val := range x.Dict {
				todo = append(todo, val)
			}
		}
	}

	return len(xref.MarkedObjects()), nil
}

// Unreachable returns the object numbers of all objects which are stored
// in the file but are not marked.  Call [MarkReachable] first to find the
// objects which are not used by the document.
func Unreachable(r *Reader) []uint32 {
	xref := r.XRef()
	var res []uint32
	for _, num := range xref.ObjectNumbers() {
		entry, _ := xref.Get(num)
		if entry.IsFree() || xref.IsMarked(num) {
			continue
		}
		res = append(res, num)
	}
	return res
}
