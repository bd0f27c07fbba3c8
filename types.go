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
	"strings"

	"golang.org/x/exp/slices"
)

// Object represents an object in a PDF file.  There are nine basic types of
// PDF objects, which implement this interface: [Array], [Bool], [Dict],
// [Integer], [Name], [Real], [Reference], [*Stream], and [String].
// The PDF null object is represented by a nil Object.
type Object interface {
	// PDF writes the PDF file representation of the object to w.
	PDF(w io.Writer) error
}

// Bool represents a boolean value in a PDF file.
type Bool bool

// PDF implements the [Object] interface.
func (x Bool) PDF(w io.Writer) error {
	_, err := io.WriteString(w, strconv.FormatBool(bool(x)))
	return err
}

// Integer represents an integer constant in a PDF file.
type Integer int64

// PDF implements the [Object] interface.
func (x Integer) PDF(w io.Writer) error {
	_, err := io.WriteString(w, strconv.FormatInt(int64(x), 10))
	return err
}

// Real represents a real number in a PDF file.
type Real float64

// PDF implements the [Object] interface.
// Integral values are written with a trailing decimal point, so that they
// are read back as real numbers.
func (x Real) PDF(w io.Writer) error {
	f := float64(x)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("cannot represent %g in a PDF file", f)
	}
	buf := strconv.AppendFloat(nil, f, 'f', -1, 64)
	if bytes.IndexByte(buf, '.') < 0 {
		buf = append(buf, '.')
	}
	_, err := w.Write(buf)
	return err
}

// String represents a raw string in a PDF file.  The character set encoding,
// if any, is determined by the context.
type String []byte

// ParseString parses a string from the given buffer.  The buffer must include
// the surrounding parentheses or angle brackets.
func ParseString(buf []byte) (String, error) {
	s := newScanner(buf, 0, nil)
	var res String
	var err error
	switch s.Peek() {
	case '(':
		s.pos++
		res, err = s.ReadQuotedString()
	case '<':
		s.pos++
		res, err = s.ReadHexString()
	default:
		err = errInvalidString
	}
	if err != nil {
		return nil, err
	}
	if s.pos != len(buf) {
		return nil, errInvalidString
	}
	return res, nil
}

var errInvalidString = &MalformedObjectError{Err: errors.New("malformed PDF string")}

// PDF implements the [Object] interface.
// Literal syntax is used, unless more than a third of the bytes would need
// escaping; in this case the string is written in hexadecimal.
func (x String) PDF(w io.Writer) error {
	parens := !parensBalanced(x)
	numEscaped := 0
	for _, c := range x {
		if needsEscape(c, parens) {
			numEscaped++
		}
	}

	var buf []byte
	if 3*numEscaped > len(x) {
		buf = make([]byte, 0, 2*len(x)+2)
		buf = append(buf, '<')
		for _, c := range x {
			buf = append(buf, lowerHex[c>>4], lowerHex[c&15])
		}
		buf = append(buf, '>')
	} else {
		buf = make([]byte, 0, len(x)+2*numEscaped+2)
		buf = append(buf, '(')
		for _, c := range x {
			switch {
			case !needsEscape(c, parens):
				buf = append(buf, c)
			case stringEscapes[c] != 0:
				buf = append(buf, '\\', stringEscapes[c])
			default:
				buf = fmt.Appendf(buf, `\%03o`, c)
			}
		}
		buf = append(buf, ')')
	}
	_, err := w.Write(buf)
	return err
}

const lowerHex = "0123456789abcdef"

var stringEscapes = [256]byte{
	'\r': 'r',
	'\n': 'n',
	'\t': 't',
	'\b': 'b',
	'\f': 'f',
	'(':  '(',
	')':  ')',
	'\\': '\\',
}

// needsEscape reports whether c must be escaped inside a literal string.
// Parentheses only need escaping if they are not balanced.
func needsEscape(c byte, parens bool) bool {
	return c < 32 || c == '\\' || parens && (c == '(' || c == ')')
}

func parensBalanced(s []byte) bool {
	level := 0
	for _, c := range s {
		switch c {
		case '(':
			level++
		case ')':
			level--
			if level < 0 {
				return false
			}
		}
	}
	return level == 0
}

// Name represents a name object in a PDF file.
type Name string

// ParseName parses a PDF name from the given buffer.  The buffer must include
// the leading slash.
func ParseName(buf []byte) (Name, error) {
	s := newScanner(buf, 0, nil)
	if s.Peek() != '/' {
		return "", errInvalidName
	}
	n, err := s.ReadName()
	if err != nil {
		return "", err
	}
	if s.pos != len(buf) {
		return "", errInvalidName
	}
	return n, nil
}

var errInvalidName = &MalformedObjectError{Err: errors.New("malformed PDF name")}

// PDF implements the [Object] interface.
// Delimiters, '#' and bytes outside the range '!' to '~' are written
// as #xx.
func (x Name) PDF(w io.Writer) error {
	buf := make([]byte, 1, len(x)+1)
	buf[0] = '/'
	for i := 0; i < len(x); i++ {
		c := x[i]
		if c < '!' || c > '~' || c == '#' || isDelimiter[c] {
			buf = append(buf, '#', lowerHex[c>>4], lowerHex[c&15])
			continue
		}
		buf = append(buf, c)
	}
	_, err := w.Write(buf)
	return err
}

// Array represent an array of objects in a PDF file.
type Array []Object

func (x Array) String() string {
	return fmt.Sprintf("<Array, %d elements>", len(x))
}

// PDF implements the [Object] interface.
func (x Array) PDF(w io.Writer) error {
	buf := &bytes.Buffer{}
	buf.WriteByte('[')
	for i, val := range x {
		if i > 0 {
			buf.WriteByte(' ')
		}
		if err := writeObject(buf, val); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	_, err := buf.WriteTo(w)
	return err
}

// Dict represent a Dictionary object in a PDF file.
type Dict map[Name]Object

func (x Dict) String() string {
	desc := "Dict"
	if tp, ok := x["Type"].(Name); ok {
		desc = string(tp) + " Dict"
	}
	if len(x) == 1 {
		return "<" + desc + ", 1 entry>"
	}
	return fmt.Sprintf("<%s, %d entries>", desc, len(x))
}

// PDF implements the [Object] interface.
// Keys are written in sorted order and entries with null values are omitted.
// A nil Dict is written as null.
func (x Dict) PDF(w io.Writer) error {
	if x == nil {
		_, err := io.WriteString(w, "null")
		return err
	}

	keys := make([]Name, 0, len(x))
	for key, val := range x {
		if val != nil {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	buf := &bytes.Buffer{}
	buf.WriteString("<<")
	for _, key := range keys {
		buf.WriteByte('\n')
		key.PDF(buf)
		buf.WriteByte(' ')
		if err := x[key].PDF(buf); err != nil {
			return err
		}
	}
	buf.WriteString("\n>>")
	_, err := buf.WriteTo(w)
	return err
}

// Stream represent a stream object in a PDF file.
// Data holds the stream contents as stored in the file, i.e. before any
// filters are applied.
type Stream struct {
	Dict
	Data []byte
}

func (x *Stream) String() string {
	res := []string{}
	tp, ok := x.Dict["Type"].(Name)
	if ok {
		res = append(res, string(tp)+" Stream")
	} else {
		res = append(res, "Stream")
	}
	res = append(res, strconv.Itoa(len(x.Data))+" bytes")
	switch filter := x.Dict["Filter"].(type) {
	case Name:
		res = append(res, string(filter))
	case Array:
		for _, f := range filter {
			if name, ok := f.(Name); ok {
				res = append(res, string(name))
			}
		}
	}
	return "<" + strings.Join(res, ", ") + ">"
}

// PDF implements the [Object] interface.
// The /Length entry is always set to the length of Data.
func (x *Stream) PDF(w io.Writer) error {
	dict := make(Dict, len(x.Dict)+1)
	for key, val := range x.Dict {
		dict[key] = val
	}
	dict["Length"] = Integer(len(x.Data))

	err := dict.PDF(w)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte("\nstream\n"))
	if err != nil {
		return err
	}
	_, err = w.Write(x.Data)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte("\nendstream"))
	return err
}

// Reference represents a reference to an indirect object in a PDF file.
// The lower 32 bits represent the object number, the next 16 bits the
// generation number.
type Reference uint64

// NewReference creates a new reference object.
func NewReference(number uint32, generation uint16) Reference {
	return Reference(uint64(number) | uint64(generation)<<32)
}

// Number returns the object number of the reference.
func (x Reference) Number() uint32 {
	return uint32(x)
}

// Generation returns the generation number of the reference.
func (x Reference) Generation() uint16 {
	return uint16(x >> 32)
}

func (x Reference) String() string {
	res := []string{
		"obj_",
		strconv.FormatInt(int64(x.Number()), 10),
	}
	gen := x.Generation()
	if gen > 0 {
		res = append(res, "@", strconv.FormatUint(uint64(gen), 10))
	}
	return strings.Join(res, "")
}

// PDF implements the [Object] interface.
func (x Reference) PDF(w io.Writer) error {
	if x>>48 != 0 {
		return fmt.Errorf("invalid reference: 0x%016x", uint64(x))
	}

	_, err := fmt.Fprintf(w, "%d %d R", x.Number(), x.Generation())
	return err
}

func writeObject(w io.Writer, obj Object) error {
	if obj == nil {
		_, err := w.Write([]byte("null"))
		return err
	}
	return obj.PDF(w)
}

// Format formats a PDF object as a string, in the same way as the
// it would be written to a PDF file.  Objects which cannot be represented
// in PDF syntax are formatted as a comment describing the problem.
func Format(obj Object) string {
	buf := &bytes.Buffer{}
	err := writeObject(buf, obj)
	if err != nil {
		return "% " + err.Error()
	}
	return buf.String()
}
