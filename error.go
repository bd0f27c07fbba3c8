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
	"strconv"
	"strings"

	"seehuhn.de/go/pdfcore/internal/filter/limit"
)

// MalformedObjectError indicates that bytes could not be interpreted as a
// PDF object, or that an object does not have the expected structure.
type MalformedObjectError struct {
	// Pos is the byte offset where the problem was detected, or 0 if
	// unknown.
	Pos int64

	// Loc describes where in the object graph the problem was found,
	// outermost first.
	Loc []string

	Err error
}

func (err *MalformedObjectError) Error() string {
	var parts []string
	if len(err.Loc) > 0 {
		parts = append(parts, strings.Join(err.Loc, "/"))
	}
	msg := "malformed PDF object"
	if err.Err != nil {
		msg = err.Err.Error()
	}
	parts = append(parts, msg)
	res := strings.Join(parts, ": ")
	if err.Pos > 0 {
		res += " (at byte " + strconv.FormatInt(err.Pos, 10) + ")"
	}
	return res
}

func (err *MalformedObjectError) Unwrap() error {
	return err.Err
}

// Error returns a [MalformedObjectError] with the given message.
func Error(msg string) error {
	return &MalformedObjectError{Err: errors.New(msg)}
}

// Errorf returns a [MalformedObjectError] with a formatted message.
func Errorf(format string, args ...any) error {
	return &MalformedObjectError{Err: fmt.Errorf(format, args...)}
}

// Wrap adds location information to an error.  For a
// [MalformedObjectError], loc is prepended to the location path.  Other
// errors are wrapped using [fmt.Errorf].  Wrap returns nil if err is nil.
func Wrap(err error, loc string) error {
	if err == nil {
		return nil
	}
	var m *MalformedObjectError
	if errors.As(err, &m) && m == err {
		return &MalformedObjectError{
			Pos: m.Pos,
			Loc: append([]string{loc}, m.Loc...),
			Err: m.Err,
		}
	}
	return fmt.Errorf("%s: %w", loc, err)
}

// IsMalformed reports whether err is or wraps a [MalformedObjectError].
func IsMalformed(err error) bool {
	var m *MalformedObjectError
	return errors.As(err, &m)
}

// UnresolvedReferenceError is returned when a reference cannot be
// resolved to an object.
type UnresolvedReferenceError struct {
	Ref Reference
	Err error
}

func (err *UnresolvedReferenceError) Error() string {
	msg := "cannot resolve " + err.Ref.String()
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	return msg
}

func (err *UnresolvedReferenceError) Unwrap() error {
	return err.Err
}

// XRefFormatError indicates invalid cross-reference information.
type XRefFormatError struct {
	Pos int64
	Err error
}

func (err *XRefFormatError) Error() string {
	msg := "invalid cross-reference data: " + err.Err.Error()
	if err.Pos > 0 {
		msg += " (at byte " + strconv.FormatInt(err.Pos, 10) + ")"
	}
	return msg
}

func (err *XRefFormatError) Unwrap() error {
	return err.Err
}

func xrefErrorf(pos int64, format string, args ...any) error {
	return &XRefFormatError{Pos: pos, Err: fmt.Errorf(format, args...)}
}

// CodecError reports a failure of one filter in a filter chain.
// Err is the error returned by the codec.
type CodecError struct {
	// Index is the position of the failing filter in the chain.
	Index  int
	Filter FilterType
	Err    error
}

func (err *CodecError) Error() string {
	return fmt.Sprintf("filter %d (%s): %v", err.Index, err.Filter, err.Err)
}

func (err *CodecError) Unwrap() error {
	return err.Err
}

// ErrOutputLimit is returned (wrapped in a [CodecError]) when decoded data
// exceeds the configured maximum size.
var ErrOutputLimit = limit.ErrExceeded

// UnsupportedError is returned when an operation is requested which is not
// implemented for a filter.  It matches [errors.ErrUnsupported].
type UnsupportedError struct {
	Filter FilterType
	Op     string
}

func (err *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %s not supported", err.Filter, err.Op)
}

func (err *UnsupportedError) Is(target error) bool {
	return target == errors.ErrUnsupported
}

// ErrFinalized is returned when a finalized cross-reference table is
// modified.
var ErrFinalized = errors.New("cross-reference table is finalized")
