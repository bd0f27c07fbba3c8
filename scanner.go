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

// maxNesting limits the depth of nested arrays and dictionaries.
const maxNesting = 256

// scanner reads PDF objects from an in-memory buffer.
type scanner struct {
	data []byte
	pos  int

	// base is the file offset of data[0], used for error messages.
	base int64

	// getInt, if set, is used to resolve indirect stream lengths.
	getInt func(Object) (Integer, error)

	depth int
}

func newScanner(data []byte, base int64, getInt func(Object) (Integer, error)) *scanner {
	return &scanner{
		data:   data,
		base:   base,
		getInt: getInt,
	}
}

func (s *scanner) filePos() int64 {
	return s.base + int64(s.pos)
}

func (s *scanner) errorf(format string, args ...any) error {
	return &MalformedObjectError{
		Pos: s.filePos(),
		Err: fmt.Errorf(format, args...),
	}
}

func (s *scanner) unexpectedEOF() error {
	return &MalformedObjectError{Pos: s.filePos(), Err: io.ErrUnexpectedEOF}
}

// ParseObject parses a single direct object from data.  Apart from white
// space and comments, data must not contain anything else.
func ParseObject(data []byte) (Object, error) {
	s := newScanner(data, 0, nil)
	obj, err := s.ReadObject()
	if err != nil {
		return nil, err
	}
	s.SkipWhiteSpace()
	if s.pos < len(s.data) {
		return nil, s.errorf("unexpected data after object")
	}
	return obj, nil
}

// ParseIndirectObject parses an indirect object "n g obj ... endobj",
// starting at byte offset pos in data.
func ParseIndirectObject(data []byte, pos int64) (Object, Reference, error) {
	if pos < 0 || pos > int64(len(data)) {
		return nil, 0, &MalformedObjectError{
			Pos: pos,
			Err: errors.New("object offset outside the file"),
		}
	}
	s := newScanner(data, 0, nil)
	s.pos = int(pos)
	return s.ReadIndirectObject()
}

// ReadIndirectObject reads an indirect object, including the object header
// and the "endobj" keyword.
func (s *scanner) ReadIndirectObject() (Object, Reference, error) {
	// Some files point the xref entries at the end of the previous line.
	// Try to fix this up by skipping any leading white space.
	s.SkipWhiteSpace()

	number, err := s.readUint(math.MaxUint32)
	if err != nil {
		return nil, 0, err
	}
	s.SkipWhiteSpace()
	generation, err := s.readUint(math.MaxUint16)
	if err != nil {
		return nil, 0, err
	}
	s.SkipWhiteSpace()
	err = s.SkipString("obj")
	if err != nil {
		return nil, 0, err
	}
	ref := NewReference(uint32(number), uint16(generation))

	obj, err := s.ReadObject()
	if err != nil {
		return nil, 0, Wrap(err, ref.String())
	}
	s.SkipWhiteSpace()
	err = s.SkipString("endobj")
	if err != nil {
		return nil, 0, Wrap(err, ref.String())
	}
	return obj, ref, nil
}

// ReadObject reads a direct object.  The sequence "n g R" is returned as a
// [Reference].
func (s *scanner) ReadObject() (Object, error) {
	s.SkipWhiteSpace()
	if s.pos >= len(s.data) {
		return nil, s.unexpectedEOF()
	}

	c := s.data[s.pos]
	switch {
	case s.hasKeyword("null"):
		s.pos += 4
		return nil, nil
	case s.hasKeyword("true"):
		s.pos += 4
		return Bool(true), nil
	case s.hasKeyword("false"):
		s.pos += 5
		return Bool(false), nil
	case c == '/':
		name, err := s.ReadName()
		if err != nil {
			return nil, err
		}
		return name, nil
	case c >= '0' && c <= '9', c == '+', c == '-', c == '.':
		obj, err := s.ReadNumber()
		if err != nil {
			return nil, err
		}
		if a, isInt := obj.(Integer); isInt {
			if ref, isRef := s.tryReference(a); isRef {
				return ref, nil
			}
		}
		return obj, nil
	case s.hasPrefix("<<"):
		dict, err := s.ReadDict()
		if err != nil {
			return nil, err
		}

		// check whether this is the start of a stream
		save := s.pos
		s.SkipWhiteSpace()
		if !s.hasKeyword("stream") {
			s.pos = save
			return dict, nil
		}
		stm, err := s.ReadStreamData(dict)
		if err != nil {
			return nil, err
		}
		return stm, nil
	case c == '(' || c == '<':
		s.pos++
		var str String
		var err error
		if c == '(' {
			str, err = s.ReadQuotedString()
		} else {
			str, err = s.ReadHexString()
		}
		if err != nil {
			return nil, err
		}
		return str, nil
	case c == '[':
		s.pos++
		array, err := s.ReadArray()
		if err != nil {
			return nil, err
		}
		return array, nil
	}
	return nil, s.errorf("unexpected character %q", c)
}

// tryReference checks whether the integer a, which has just been read, is
// the start of a reference "a b R".  If not, the scanner position is left
// unchanged.
func (s *scanner) tryReference(a Integer) (Reference, bool) {
	if a < 0 || a > math.MaxUint32 {
		return 0, false
	}
	save := s.pos
	s.SkipWhiteSpace()
	start := s.pos
	for s.pos < len(s.data) && s.data[s.pos] >= '0' && s.data[s.pos] <= '9' {
		s.pos++
	}
	if s.pos > start && s.pos-start <= 5 {
		b, _ := strconv.Atoi(string(s.data[start:s.pos]))
		s.SkipWhiteSpace()
		if b <= math.MaxUint16 && s.hasKeyword("R") {
			s.pos++
			return NewReference(uint32(a), uint16(b)), true
		}
	}
	s.pos = save
	return 0, false
}

// readUint reads a non-negative decimal integer not exceeding max.
func (s *scanner) readUint(max uint64) (uint64, error) {
	start := s.pos
	for s.pos < len(s.data) && s.data[s.pos] >= '0' && s.data[s.pos] <= '9' {
		s.pos++
	}
	if s.pos == start {
		if s.pos >= len(s.data) {
			return 0, s.unexpectedEOF()
		}
		return 0, s.errorf("expected integer but found %q", s.data[s.pos])
	}
	x, err := strconv.ParseUint(string(s.data[start:s.pos]), 10, 64)
	if err != nil || x > max {
		return 0, &MalformedObjectError{
			Pos: s.base + int64(start),
			Err: fmt.Errorf("integer %s out of range", s.data[start:s.pos]),
		}
	}
	return x, nil
}

// ReadNumber reads an integer or real number.
func (s *scanner) ReadNumber() (Object, error) {
	start := s.pos
	if s.pos < len(s.data) && (s.data[s.pos] == '+' || s.data[s.pos] == '-') {
		s.pos++
	}
	hasDot := false
	hasDigits := false
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if c >= '0' && c <= '9' {
			hasDigits = true
		} else if c == '.' && !hasDot {
			hasDot = true
		} else {
			break
		}
		s.pos++
	}
	if !hasDigits {
		s.pos = start
		return nil, s.errorf("malformed number")
	}

	text := string(s.data[start:s.pos])
	if !hasDot {
		x, err := strconv.ParseInt(text, 10, 64)
		if err == nil {
			return Integer(x), nil
		}
		// Integers which are too large are read as reals.
	}
	x, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, &MalformedObjectError{Pos: s.base + int64(start), Err: err}
	}
	return Real(x), nil
}

// ReadQuotedString reads a ()-delimited string, starting after the opening
// bracket.
func (s *scanner) ReadQuotedString() (String, error) {
	var res []byte
	parentCount := 0
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++

		switch c {
		case '\\':
			if s.pos >= len(s.data) {
				return nil, s.unexpectedEOF()
			}
			c = s.data[s.pos]
			s.pos++
			switch c {
			case '\n':
				continue
			case '\r':
				if s.pos < len(s.data) && s.data[s.pos] == '\n' {
					s.pos++
				}
				continue
			case 'n':
				c = '\n'
			case 'r':
				c = '\r'
			case 't':
				c = '\t'
			case 'b':
				c = '\b'
			case 'f':
				c = '\f'
			case '0', '1', '2', '3', '4', '5', '6', '7':
				val := c - '0'
				for k := 0; k < 2 && s.pos < len(s.data); k++ {
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					val = val*8 + (d - '0')
					s.pos++
				}
				c = val
			}
		case '(':
			parentCount++
		case ')':
			if parentCount == 0 {
				return String(res), nil
			}
			parentCount--
		case '\r':
			// end-of-line markers are normalized to a single '\n'
			if s.pos < len(s.data) && s.data[s.pos] == '\n' {
				s.pos++
			}
			c = '\n'
		}
		res = append(res, c)
	}
	return nil, s.unexpectedEOF()
}

// ReadHexString reads a <>-delimited string, starting after the opening
// angled bracket.
func (s *scanner) ReadHexString() (String, error) {
	var res []byte
	var hexVal byte
	first := true
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++

		d, ok := hexDigit(c)
		switch {
		case c == '>':
			if !first {
				res = append(res, 16*hexVal)
			}
			return String(res), nil
		case isSpace[c]:
			continue
		case !ok:
			s.pos--
			return nil, s.errorf("invalid character %q in hex string", c)
		}

		if first {
			hexVal = d
		} else {
			res = append(res, 16*hexVal+d)
		}
		first = !first
	}
	return nil, s.unexpectedEOF()
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

// ReadName reads a PDF name object.
func (s *scanner) ReadName() (Name, error) {
	err := s.SkipString("/")
	if err != nil {
		return "", err
	}

	var res []byte
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if isSpace[c] || isDelimiter[c] {
			break
		}
		s.pos++

		if c == '#' && s.pos+1 < len(s.data) {
			hi, ok1 := hexDigit(s.data[s.pos])
			lo, ok2 := hexDigit(s.data[s.pos+1])
			if ok1 && ok2 {
				c = 16*hi + lo
				s.pos += 2
			}
		}
		if c == 0 {
			return "", s.errorf("name contains a NUL byte")
		}
		res = append(res, c)
	}

	return Name(res), nil
}

// ReadArray reads an array, starting after the opening "[".
func (s *scanner) ReadArray() (Array, error) {
	s.depth++
	defer func() { s.depth-- }()
	if s.depth > maxNesting {
		return nil, s.errorf("objects nested too deeply")
	}

	array := Array{}
	for {
		s.SkipWhiteSpace()
		if s.pos >= len(s.data) {
			return nil, s.unexpectedEOF()
		}
		if s.data[s.pos] == ']' {
			s.pos++
			return array, nil
		}

		obj, err := s.ReadObject()
		if err != nil {
			return nil, err
		}
		array = append(array, obj)
	}
}

// ReadDict reads a PDF dictionary.  Entries with null values are omitted.
func (s *scanner) ReadDict() (Dict, error) {
	s.depth++
	defer func() { s.depth-- }()
	if s.depth > maxNesting {
		return nil, s.errorf("objects nested too deeply")
	}

	err := s.SkipString("<<")
	if err != nil {
		return nil, err
	}

	dict := make(Dict)
	for {
		s.SkipWhiteSpace()
		if s.pos >= len(s.data) {
			return nil, s.unexpectedEOF()
		}
		if s.hasPrefix(">>") {
			s.pos += 2
			return dict, nil
		}
		if s.data[s.pos] != '/' {
			return nil, s.errorf("expected name as dictionary key but found %q",
				s.data[s.pos])
		}
		key, err := s.ReadName()
		if err != nil {
			return nil, err
		}

		val, err := s.ReadObject()
		if err != nil {
			return nil, Wrap(err, string(key))
		}
		if val != nil {
			dict[key] = val
		} else {
			delete(dict, key)
		}
	}
}

// ReadStreamData reads the data of a PDF Stream, starting at the "stream"
// keyword after the dictionary.  If /Length is missing or wrong, the data is
// taken to extend up to the next "endstream" keyword.
func (s *scanner) ReadStreamData(dict Dict) (*Stream, error) {
	err := s.SkipString("stream")
	if err != nil {
		return nil, err
	}
	switch {
	case s.hasPrefix("\r\n"):
		s.pos += 2
	case s.hasPrefix("\n"), s.hasPrefix("\r"):
		s.pos++
	default:
		return nil, s.errorf("missing end-of-line after stream keyword")
	}
	start := s.pos

	length := -1
	switch l := dict["Length"].(type) {
	case Integer:
		length = int(l)
	case Reference:
		if s.getInt != nil {
			x, err := s.getInt(l)
			if err == nil {
				length = int(x)
			}
		}
	}

	if length >= 0 && length <= len(s.data)-start {
		s.pos = start + length
		s.SkipWhiteSpace()
		if s.hasKeyword("endstream") {
			s.pos += len("endstream")
			return &Stream{Dict: dict, Data: s.data[start : start+length : start+length]}, nil
		}
	}

	idx := bytes.Index(s.data[start:], []byte("endstream"))
	if idx < 0 {
		s.pos = start
		return nil, s.errorf("missing endstream")
	}
	end := start + idx
	s.pos = end + len("endstream")
	if end > start && s.data[end-1] == '\n' {
		end--
	}
	if end > start && s.data[end-1] == '\r' {
		end--
	}
	return &Stream{Dict: dict, Data: s.data[start:end:end]}, nil
}

// Peek returns the next byte of input, or 0 at the end of the input.
func (s *scanner) Peek() byte {
	if s.pos >= len(s.data) {
		return 0
	}
	return s.data[s.pos]
}

func (s *scanner) hasPrefix(pat string) bool {
	return bytes.HasPrefix(s.data[s.pos:], []byte(pat))
}

// hasKeyword checks whether the input continues with the given keyword,
// followed by white space, a delimiter or the end of input.
func (s *scanner) hasKeyword(kw string) bool {
	if !s.hasPrefix(kw) {
		return false
	}
	next := s.pos + len(kw)
	return next >= len(s.data) || isSpace[s.data[next]] || isDelimiter[s.data[next]]
}

// SkipWhiteSpace skips white space and comments.
func (s *scanner) SkipWhiteSpace() {
	isComment := false
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if isComment {
			if c == '\r' || c == '\n' {
				isComment = false
			}
		} else if c == '%' {
			isComment = true
		} else if !isSpace[c] {
			return
		}
		s.pos++
	}
}

// SkipString consumes the string pat, which must come next in the input.
func (s *scanner) SkipString(pat string) error {
	if !s.hasPrefix(pat) {
		rest := s.data[s.pos:]
		if len(rest) > len(pat) {
			rest = rest[:len(pat)]
		}
		return s.errorf("expected %q but found %q", pat, rest)
	}
	s.pos += len(pat)
	return nil
}

var (
	isSpace = [256]bool{
		0:  true,
		9:  true,
		10: true,
		12: true,
		13: true,
		32: true,
	}
	isDelimiter = [256]bool{
		'(': true,
		')': true,
		'<': true,
		'>': true,
		'[': true,
		']': true,
		'{': true,
		'}': true,
		'/': true,
		'%': true,
	}
)
