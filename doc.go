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

// Package pdfcore implements the low-level layer of a PDF library: the PDF
// object model, cross-reference tables and streams, and the stream filters.
//
// The following types implement the native PDF object types.
// All of these implement the [Object] interface:
//
//	Array
//	Bool
//	Dict
//	Integer
//	Name
//	Real
//	Reference
//	*Stream
//	String
//
// The PDF null object is represented by a nil Object.  References are plain
// values; they are only followed when [Reader.Resolve] or [Reader.Get] is
// called.
//
// A [Reader] gives access to the objects of a PDF file held in memory:
//
//	data, err := os.ReadFile("in.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r, err := pdfcore.NewReader(data, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	catalog, err := r.GetDict(r.Trailer()["Root"])
//	if err != nil {
//	    log.Fatal(err)
//	}
//	... use catalog to locate objects in the file ...
//
// Stream data is decoded using a [FilterChain], which can be constructed
// from a stream dictionary using [ChainFromDict].
package pdfcore
