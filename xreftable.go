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
	"io"
	"math"
	"strconv"
)

// XRefSection is a cross-reference section read from a PDF file, together
// with the trailer dictionary which follows it.
type XRefSection struct {
	Subsections []XRefSubsection
	Trailer     Dict
}

// ReadXRefTable reads a legacy cross-reference table starting at the
// "xref" keyword at byte offset pos in data, followed by the trailer
// dictionary.
func ReadXRefTable(data []byte, pos int64) (*XRefSection, error) {
	if pos < 0 || pos >= int64(len(data)) {
		return nil, xrefErrorf(pos, "xref offset outside the file")
	}
	s := newScanner(data, 0, nil)
	s.pos = int(pos)
	s.SkipWhiteSpace()

	if !s.hasKeyword("xref") {
		return nil, xrefErrorf(s.filePos(), "xref keyword not found")
	}
	s.pos += len("xref")

	res := &XRefSection{}
	for {
		s.SkipWhiteSpace()
		c := s.Peek()
		if c < '0' || c > '9' {
			break
		}

		start, err := s.readUint(math.MaxUint32)
		if err != nil {
			return nil, &XRefFormatError{Pos: s.filePos(), Err: err}
		}
		skipSpaces(s)
		count, err := s.readUint(math.MaxUint32)
		if err != nil {
			return nil, &XRefFormatError{Pos: s.filePos(), Err: err}
		}
		if start+count > math.MaxUint32+1 {
			return nil, xrefErrorf(s.filePos(), "subsection %d+%d exceeds object number range",
				start, count)
		}
		skipSpaces(s)
		if !skipEOL(s) {
			return nil, xrefErrorf(s.filePos(), "malformed subsection header")
		}

		ss, err := readSubsection(s, uint32(start), int(count))
		if err != nil {
			return nil, err
		}
		res.Subsections = append(res.Subsections, ss)
	}

	if !s.hasKeyword("trailer") {
		return nil, xrefErrorf(s.filePos(), "trailer keyword not found")
	}
	s.pos += len("trailer")
	s.SkipWhiteSpace()
	trailer, err := s.ReadDict()
	if err != nil {
		return nil, &XRefFormatError{Pos: s.filePos(), Err: err}
	}
	res.Trailer = trailer
	return res, nil
}

// readSubsection reads count entries of the form "nnnnnnnnnn ggggg n EOL".
// The entries are nominally 20 bytes long, but end-of-line markers of one
// or two bytes are accepted.
func readSubsection(s *scanner, start uint32, count int) (XRefSubsection, error) {
	if count > (len(s.data)-s.pos)/18 {
		return XRefSubsection{}, xrefErrorf(s.filePos(), "xref subsection truncated")
	}
	ss := XRefSubsection{
		Start:   start,
		Entries: make([]XRefEntry, count),
	}
	for i := range ss.Entries {
		if len(s.data)-s.pos < 18 {
			return XRefSubsection{}, &XRefFormatError{Pos: s.filePos(), Err: io.ErrUnexpectedEOF}
		}
		buf := s.data[s.pos : s.pos+18]

		e, err := parseTableEntry(buf)
		if err != nil {
			return XRefSubsection{}, &XRefFormatError{
				Pos: s.filePos(),
				Err: fmt.Errorf("object %d: %w", uint64(start)+uint64(i), err),
			}
		}
		ss.Entries[i] = e
		s.pos += 18

		// Entries end in one of " \r", " \n", "\r\n", or a single EOL
		// character.  Some writers omit the space before the EOL.
		skipSpaces(s)
		if !skipEOL(s) && s.pos < len(s.data) && s.Peek() >= '0' && s.Peek() <= '9' {
			return XRefSubsection{}, xrefErrorf(s.filePos(), "malformed xref entry")
		}
	}
	return ss, nil
}

func parseTableEntry(buf []byte) (XRefEntry, error) {
	if buf[10] != ' ' || buf[16] != ' ' {
		return XRefEntry{}, errMalformedEntry
	}
	a, err := strconv.ParseUint(string(buf[:10]), 10, 63)
	if err != nil {
		return XRefEntry{}, errMalformedEntry
	}
	b, err := strconv.ParseUint(string(buf[11:16]), 10, 16)
	if err != nil {
		// fix a common error in some PDF files
		if bytes.HasPrefix(buf, []byte("0000000000 65536 ")) {
			return FreeEntry(0, math.MaxUint16), nil
		}
		return XRefEntry{}, errMalformedEntry
	}

	switch buf[17] {
	case 'f':
		if a > math.MaxUint32 {
			return XRefEntry{}, errFieldOverflow
		}
		return FreeEntry(uint32(a), uint16(b)), nil
	case 'n':
		return InUseEntry(uint16(b), int64(a)), nil
	default:
		return XRefEntry{}, errMalformedEntry
	}
}

var errMalformedEntry = errors.New("malformed xref entry")

func skipSpaces(s *scanner) {
	for s.pos < len(s.data) && s.data[s.pos] == ' ' {
		s.pos++
	}
}

func skipEOL(s *scanner) bool {
	switch {
	case s.hasPrefix("\r\n"):
		s.pos += 2
	case s.hasPrefix("\n"), s.hasPrefix("\r"):
		s.pos++
	default:
		return false
	}
	return true
}

// WriteXRefTable writes entries as a legacy cross-reference table,
// followed by the trailer dictionary.  One subsection is written for every
// run of consecutive object numbers.  Compressed entries cannot be
// represented in this format.
func WriteXRefTable(w io.Writer, entries map[uint32]XRefEntry, trailer Dict) error {
	nums := sortedNumbers(entries)
	for _, num := range nums {
		if entries[num].IsCompressed() {
			return xrefErrorf(0, "object %d: compressed entries require an xref stream", num)
		}
	}

	buf := &bytes.Buffer{}
	buf.WriteString("xref\n")
	for _, r := range BuildIndex(entries) {
		fmt.Fprintf(buf, "%d %d\n", r.Start, r.Count)
		for num := r.Start; num-r.Start < r.Count; num++ {
			e := entries[num]
			switch e.Type {
			case EntryFree:
				fmt.Fprintf(buf, "%010d %05d f\r\n", e.Next, e.Generation)
			default:
				fmt.Fprintf(buf, "%010d %05d n\r\n", e.Offset, e.Generation)
			}
		}
	}
	buf.WriteString("trailer\n")
	err := trailer.PDF(buf)
	if err != nil {
		return err
	}
	buf.WriteString("\n")

	_, err = w.Write(buf.Bytes())
	return err
}
