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
	"fmt"

	"seehuhn.de/go/pdfcore/internal/filter/ccittfax"
	"seehuhn.de/go/pdfcore/internal/filter/dct"
	"seehuhn.de/go/pdfcore/internal/filter/predict"
)

// PredictorParams describes the predictor used by a Flate or LZW filter.
type PredictorParams = predict.Params

// CCITTParams holds the decode parameters of a CCITTFax filter.
type CCITTParams = ccittfax.Params

// PredictorParams returns the predictor parameters of the filter.
// Missing entries take their default values: Predictor 1, Colors 1,
// BitsPerComponent 8 and Columns 1.
func (f Filter) PredictorParams() (*PredictorParams, error) {
	p := &PredictorParams{
		Predictor:        1,
		Colors:           1,
		BitsPerComponent: 8,
		Columns:          1,
	}
	var err error
	for _, field := range []struct {
		key Name
		ptr *int
	}{
		{"Predictor", &p.Predictor},
		{"Colors", &p.Colors},
		{"BitsPerComponent", &p.BitsPerComponent},
		{"Columns", &p.Columns},
	} {
		*field.ptr, err = parmInt(f.Parms, field.key, *field.ptr)
		if err != nil {
			return nil, err
		}
	}
	if err := p.Validate(); err != nil {
		return nil, &MalformedObjectError{Loc: []string{"DecodeParms"}, Err: err}
	}
	return p, nil
}

// EarlyChange returns the value of the LZW EarlyChange parameter.
// The default is true.
func (f Filter) EarlyChange() (bool, error) {
	val, err := parmInt(f.Parms, "EarlyChange", 1)
	if err != nil {
		return false, err
	}
	switch val {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, Errorf("invalid /EarlyChange %d", val)
}

// CCITTParams returns the decode parameters of a CCITTFax filter.
func (f Filter) CCITTParams() (*CCITTParams, error) {
	p := ccittfax.DefaultParams()
	var err error
	for _, field := range []struct {
		key Name
		ptr *int
	}{
		{"K", &p.K},
		{"Columns", &p.Columns},
		{"Rows", &p.Rows},
		{"DamagedRowsBeforeError", &p.DamagedRowsBeforeError},
	} {
		*field.ptr, err = parmInt(f.Parms, field.key, *field.ptr)
		if err != nil {
			return nil, err
		}
	}
	for _, field := range []struct {
		key Name
		ptr *bool
	}{
		{"EndOfLine", &p.EndOfLine},
		{"EncodedByteAlign", &p.EncodedByteAlign},
		{"EndOfBlock", &p.EndOfBlock},
		{"BlackIs1", &p.BlackIs1},
	} {
		*field.ptr, err = parmBool(f.Parms, field.key, *field.ptr)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ColorTransform returns the DCTDecode ColorTransform parameter.  If the
// parameter is not set, -1 is returned and the JPEG data decides.
func (f Filter) ColorTransform() (int, error) {
	val, err := parmInt(f.Parms, "ColorTransform", dct.TransformDefault)
	if err != nil {
		return 0, err
	}
	switch val {
	case dct.TransformDefault, dct.TransformNone, dct.TransformYCbCr:
		return val, nil
	}
	return 0, Errorf("invalid /ColorTransform %d", val)
}

func parmInt(parms Dict, key Name, def int) (int, error) {
	obj, ok := parms[key]
	if !ok || obj == nil {
		return def, nil
	}
	x, ok := obj.(Integer)
	if !ok || x < -1<<31 || x > 1<<31-1 {
		return 0, &MalformedObjectError{
			Loc: []string{"DecodeParms", string(key)},
			Err: fmt.Errorf("expected integer but got %s", Format(obj)),
		}
	}
	return int(x), nil
}

func parmBool(parms Dict, key Name, def bool) (bool, error) {
	obj, ok := parms[key]
	if !ok || obj == nil {
		return def, nil
	}
	x, ok := obj.(Bool)
	if !ok {
		return false, &MalformedObjectError{
			Loc: []string{"DecodeParms", string(key)},
			Err: fmt.Errorf("expected boolean but got %s", Format(obj)),
		}
	}
	return bool(x), nil
}
