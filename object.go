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
	"math"
	"strings"
)

// RealEpsilon is the tolerance used by [Equal] when comparing [Real] values.
// Two reals are equal if their absolute difference is less than RealEpsilon.
// This makes the comparison insensitive to rounding in the last decimal
// place when a number is written and read back, but it also means that
// equality of reals is not transitive.
const RealEpsilon = 1e-9

// NewBool returns a boolean object.
func NewBool(b bool) Bool { return Bool(b) }

// NewInteger returns an integer object.
func NewInteger(x int64) Integer { return Integer(x) }

// NewReal returns a real number object.
func NewReal(x float64) Real { return Real(x) }

// NewName returns a name object.  Names cannot contain the byte 0.
func NewName(s string) (Name, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return "", &MalformedObjectError{Err: errNameNUL}
	}
	return Name(s), nil
}

var errNameNUL = errors.New("name contains a NUL byte")

// NewString returns a string object holding a copy of b.
func NewString(b []byte) String {
	return String(bytes.Clone(b))
}

// NewArray returns an array object holding the given elements.
// The slice is copied, the elements are not.
func NewArray(elems ...Object) Array {
	res := make(Array, len(elems))
	copy(res, elems)
	return res
}

// NewDict returns an empty dictionary.
func NewDict() Dict {
	return Dict{}
}

// NewStream returns a stream object with the given dictionary and a copy of
// the raw (encoded) data.
func NewStream(dict Dict, data []byte) *Stream {
	if dict == nil {
		dict = Dict{}
	}
	return &Stream{Dict: dict, Data: bytes.Clone(data)}
}

// IsNull reports whether obj is the PDF null object.
func IsNull(obj Object) bool {
	if obj == nil {
		return true
	}
	switch x := obj.(type) {
	case Dict:
		return x == nil
	case *Stream:
		return x == nil
	}
	return false
}

// AsBool returns the value of a boolean object.
func AsBool(obj Object) (bool, bool) {
	x, ok := obj.(Bool)
	return bool(x), ok
}

// AsInt returns the value of an integer object.
func AsInt(obj Object) (int64, bool) {
	x, ok := obj.(Integer)
	return int64(x), ok
}

// AsReal returns the value of a real number object.
// Integers are not converted; use [AsNumber] for this.
func AsReal(obj Object) (float64, bool) {
	x, ok := obj.(Real)
	return float64(x), ok
}

// AsNumber returns the value of an integer or real number object.
func AsNumber(obj Object) (float64, bool) {
	switch x := obj.(type) {
	case Integer:
		return float64(x), true
	case Real:
		return float64(x), true
	}
	return 0, false
}

// AsName returns the value of a name object.
func AsName(obj Object) (Name, bool) {
	x, ok := obj.(Name)
	return x, ok
}

// AsString returns the value of a string object.
func AsString(obj Object) (String, bool) {
	x, ok := obj.(String)
	return x, ok
}

// AsArray returns the value of an array object.
func AsArray(obj Object) (Array, bool) {
	x, ok := obj.(Array)
	return x, ok
}

// AsDict returns the value of a dictionary object.
// For a stream, the stream dictionary is returned.
func AsDict(obj Object) (Dict, bool) {
	switch x := obj.(type) {
	case Dict:
		return x, x != nil
	case *Stream:
		if x != nil {
			return x.Dict, true
		}
	}
	return nil, false
}

// AsReference returns the value of a reference object.
func AsReference(obj Object) (Reference, bool) {
	x, ok := obj.(Reference)
	return x, ok
}

// AsStream returns the value of a stream object.
func AsStream(obj Object) (*Stream, bool) {
	x, ok := obj.(*Stream)
	return x, ok && x != nil
}

// GetInt returns the integer stored under key.
func (x Dict) GetInt(key Name) (int64, bool) {
	return AsInt(x[key])
}

// GetNumber returns the integer or real number stored under key.
func (x Dict) GetNumber(key Name) (float64, bool) {
	return AsNumber(x[key])
}

// GetBool returns the boolean stored under key.
func (x Dict) GetBool(key Name) (bool, bool) {
	return AsBool(x[key])
}

// GetName returns the name stored under key.
func (x Dict) GetName(key Name) (Name, bool) {
	return AsName(x[key])
}

// GetArray returns the array stored under key.
func (x Dict) GetArray(key Name) (Array, bool) {
	return AsArray(x[key])
}

// GetDict returns the dictionary stored under key.
func (x Dict) GetDict(key Name) (Dict, bool) {
	v, ok := x[key].(Dict)
	return v, ok && v != nil
}

// GetReference returns the reference stored under key.
func (x Dict) GetReference(key Name) (Reference, bool) {
	return AsReference(x[key])
}

// Equal reports whether two objects are structurally equal.  References
// are compared as values and are never followed.  Reals are compared with
// tolerance [RealEpsilon]; an [Integer] never equals a [Real].
func Equal(a, b Object) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}

	switch a := a.(type) {
	case Bool:
		b, ok := b.(Bool)
		return ok && a == b
	case Integer:
		b, ok := b.(Integer)
		return ok && a == b
	case Real:
		b, ok := b.(Real)
		return ok && math.Abs(float64(a)-float64(b)) < RealEpsilon
	case Name:
		b, ok := b.(Name)
		return ok && a == b
	case String:
		b, ok := b.(String)
		return ok && bytes.Equal(a, b)
	case Reference:
		b, ok := b.(Reference)
		return ok && a == b
	case Array:
		b, ok := b.(Array)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !Equal(a[i], b[i]) {
				return false
			}
		}
		return true
	case Dict:
		b, ok := b.(Dict)
		return ok && dictEqual(a, b)
	case *Stream:
		b, ok := b.(*Stream)
		return ok && dictEqual(a.Dict, b.Dict) && bytes.Equal(a.Data, b.Data)
	}
	return false
}

// dictEqual compares two dictionaries.  Entries with null values are
// treated as absent.
func dictEqual(a, b Dict) bool {
	for key, va := range a {
		if !Equal(va, b[key]) {
			return false
		}
	}
	for key, vb := range b {
		if _, seen := a[key]; !seen && !IsNull(vb) {
			return false
		}
	}
	return true
}
