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
	"fmt"
	"io"

	"golang.org/x/exp/slices"
	"seehuhn.de/go/pdfcore/ascii85"
	"seehuhn.de/go/pdfcore/internal/filter/asciihex"
	"seehuhn.de/go/pdfcore/internal/filter/ccittfax"
	"seehuhn.de/go/pdfcore/internal/filter/dct"
	"seehuhn.de/go/pdfcore/internal/filter/flate"
	"seehuhn.de/go/pdfcore/internal/filter/jbig2"
	"seehuhn.de/go/pdfcore/internal/filter/limit"
	"seehuhn.de/go/pdfcore/internal/filter/predict"
	"seehuhn.de/go/pdfcore/internal/filter/runlength"
	"seehuhn.de/go/pdfcore/lzw"
)

// FilterType identifies one of the standard PDF stream filters.
type FilterType int

// These are the filters defined in the PDF specification.
const (
	FilterFlate FilterType = iota + 1
	FilterLZW
	FilterASCII85
	FilterASCIIHex
	FilterRunLength
	FilterCCITTFax
	FilterDCT
	FilterJPX
	FilterJBIG2
	FilterCrypt
)

var filterNames = map[FilterType]Name{
	FilterFlate:     "FlateDecode",
	FilterLZW:       "LZWDecode",
	FilterASCII85:   "ASCII85Decode",
	FilterASCIIHex:  "ASCIIHexDecode",
	FilterRunLength: "RunLengthDecode",
	FilterCCITTFax:  "CCITTFaxDecode",
	FilterDCT:       "DCTDecode",
	FilterJPX:       "JPXDecode",
	FilterJBIG2:     "JBIG2Decode",
	FilterCrypt:     "Crypt",
}

var filterAbbrev = map[Name]FilterType{
	"Fl":  FilterFlate,
	"LZW": FilterLZW,
	"A85": FilterASCII85,
	"AHx": FilterASCIIHex,
	"RL":  FilterRunLength,
	"CCF": FilterCCITTFax,
	"DCT": FilterDCT,
}

// FilterFromName returns the filter with the given name.  Both the full
// filter names and the abbreviations used in inline images are accepted.
func FilterFromName(name Name) (FilterType, error) {
	if tp, ok := filterAbbrev[name]; ok {
		return tp, nil
	}
	for tp, n := range filterNames {
		if n == name {
			return tp, nil
		}
	}
	return 0, Errorf("unknown filter %q", string(name))
}

// Name returns the full PDF name of the filter.
func (tp FilterType) Name() Name {
	return filterNames[tp]
}

func (tp FilterType) String() string {
	if n, ok := filterNames[tp]; ok {
		return string(n)
	}
	return fmt.Sprintf("FilterType(%d)", int(tp))
}

// CanEncode reports whether data can be encoded using this filter.
func (tp FilterType) CanEncode() bool {
	switch tp {
	case FilterFlate, FilterLZW, FilterASCII85, FilterASCIIHex,
		FilterRunLength, FilterCrypt:
		return true
	}
	return false
}

// IsImage reports whether the filter is one of the image compression
// filters, which produce pixel data rather than a byte stream.
func (tp FilterType) IsImage() bool {
	switch tp {
	case FilterCCITTFax, FilterDCT, FilterJPX, FilterJBIG2:
		return true
	}
	return false
}

// Filter is one stage of a filter chain.
type Filter struct {
	Type FilterType

	// Parms holds the decode parameters for the filter, or nil
	// if the defaults are used.
	Parms Dict
}

// DecodeOptions configures the decoding of stream data.
type DecodeOptions struct {
	// MaxOutput, if positive, limits the number of bytes produced by each
	// filter in the chain.  Longer output results in an error wrapping
	// [ErrOutputLimit].
	MaxOutput int64

	// LengthHint, if positive, is the expected length of the output of
	// Flate filters.  It is only used to allocate buffers.
	LengthHint int
}

// FilterChain is an immutable sequence of filters.  Decoding applies the
// filters in order, encoding applies them in reverse order.
type FilterChain struct {
	filters []Filter

	// resolve is used for indirect objects in decode parameters
	resolve func(Object) (Object, error)
}

// NewFilterChain returns a chain consisting of the given filters.
func NewFilterChain(filters ...Filter) *FilterChain {
	return &FilterChain{filters: slices.Clone(filters)}
}

// ChainFromDict constructs the filter chain for a stream dictionary, using
// the /Filter and /DecodeParms entries.  The function resolve, if not nil,
// is used to resolve indirect objects.
func ChainFromDict(dict Dict, resolve func(Object) (Object, error)) (*FilterChain, error) {
	if resolve == nil {
		resolve = func(obj Object) (Object, error) { return obj, nil }
	}
	c := &FilterChain{resolve: resolve}

	filterObj, err := resolve(dict["Filter"])
	if err != nil {
		return nil, Wrap(err, "Filter")
	}
	parmsObj, err := resolve(dict["DecodeParms"])
	if err != nil {
		return nil, Wrap(err, "DecodeParms")
	}

	var names, parms []Object
	switch f := filterObj.(type) {
	case nil:
		return c, nil
	case Name:
		names = []Object{f}
		parms = []Object{parmsObj}
	case Array:
		names = f
		switch p := parmsObj.(type) {
		case nil:
		case Array:
			parms = p
		case Dict:
			// A single dictionary for a single filter given as an array.
			if len(f) == 1 {
				parms = []Object{p}
			}
		}
	default:
		return nil, Errorf("invalid /Filter %s", Format(filterObj))
	}

	for i, nameObj := range names {
		nameObj, err := resolve(nameObj)
		if err != nil {
			return nil, Wrap(err, "Filter")
		}
		name, ok := nameObj.(Name)
		if !ok {
			return nil, Errorf("invalid filter name %s", Format(nameObj))
		}
		tp, err := FilterFromName(name)
		if err != nil {
			return nil, err
		}

		var pDict Dict
		if i < len(parms) {
			pObj, err := resolve(parms[i])
			if err != nil {
				return nil, Wrap(err, "DecodeParms")
			}
			switch p := pObj.(type) {
			case nil:
			case Dict:
				pDict = make(Dict, len(p))
				for key, val := range p {
					// JBIG2Globals is a stream and must remain a reference
					// until it is decoded.
					if key != "JBIG2Globals" {
						val, err = resolve(val)
						if err != nil {
							return nil, Wrap(err, string(key))
						}
					}
					pDict[key] = val
				}
			default:
				return nil, Errorf("invalid decode parameters %s", Format(pObj))
			}
		}
		c.filters = append(c.filters, Filter{Type: tp, Parms: pDict})
	}
	return c, nil
}

// Filters returns a copy of the filters in the chain.
func (c *FilterChain) Filters() []Filter {
	return slices.Clone(c.filters)
}

// Len returns the number of filters in the chain.
func (c *FilterChain) Len() int {
	return len(c.filters)
}

// FilterEntries returns the values of the /Filter and /DecodeParms entries
// describing the chain.  For a chain with a single filter, a name and a
// dictionary are returned, otherwise arrays are used.  Missing decode
// parameters are returned as nil.
func (c *FilterChain) FilterEntries() (filter Object, parms Object) {
	switch len(c.filters) {
	case 0:
		return nil, nil
	case 1:
		f := c.filters[0]
		if len(f.Parms) > 0 {
			return f.Type.Name(), f.Parms
		}
		return f.Type.Name(), nil
	}

	names := make(Array, len(c.filters))
	parmsArray := make(Array, len(c.filters))
	hasParms := false
	for i, f := range c.filters {
		names[i] = f.Type.Name()
		if len(f.Parms) > 0 {
			parmsArray[i] = f.Parms
			hasParms = true
		}
	}
	if !hasParms {
		return names, nil
	}
	return names, parmsArray
}

// Decode applies all filters in the chain to data.  If one of the filters
// fails, the returned error is a [*CodecError] and no partial output is
// returned.
func (c *FilterChain) Decode(data []byte, opt *DecodeOptions) ([]byte, error) {
	out, _, err := c.decode(data, opt, false)
	return out, err
}

// DecodeUntilImage applies the filters of the chain up to, but not
// including the first image filter (CCITTFax, DCT, JPX or JBIG2).
// The remaining filters are returned as a new chain.
func (c *FilterChain) DecodeUntilImage(data []byte, opt *DecodeOptions) ([]byte, *FilterChain, error) {
	return c.decode(data, opt, true)
}

func (c *FilterChain) decode(data []byte, opt *DecodeOptions, stopAtImage bool) ([]byte, *FilterChain, error) {
	if opt == nil {
		opt = &DecodeOptions{}
	}
	for i, f := range c.filters {
		if stopAtImage && f.Type.IsImage() {
			rest := &FilterChain{
				filters: slices.Clone(c.filters[i:]),
				resolve: c.resolve,
			}
			return data, rest, nil
		}

		out, err := c.decodeOne(f, data, opt)
		if err == nil && opt.MaxOutput > 0 && int64(len(out)) > opt.MaxOutput {
			err = ErrOutputLimit
		}
		if err != nil {
			return nil, nil, &CodecError{Index: i, Filter: f.Type, Err: err}
		}
		data = out
	}
	return data, &FilterChain{resolve: c.resolve}, nil
}

func (c *FilterChain) decodeOne(f Filter, data []byte, opt *DecodeOptions) ([]byte, error) {
	switch f.Type {
	case FilterFlate:
		p, err := f.PredictorParams()
		if err != nil {
			return nil, err
		}
		out, err := flate.Decode(data, opt.LengthHint, opt.MaxOutput)
		if err != nil || p.Predictor == 1 {
			return out, err
		}
		return predict.Decode(out, p, opt.MaxOutput)
	case FilterLZW:
		p, err := f.PredictorParams()
		if err != nil {
			return nil, err
		}
		early, err := f.EarlyChange()
		if err != nil {
			return nil, err
		}
		out, err := lzw.Decode(data, early, opt.MaxOutput)
		if err != nil || p.Predictor == 1 {
			return out, err
		}
		return predict.Decode(out, p, opt.MaxOutput)
	case FilterASCII85:
		return limit.ReadAll(ascii85.Decode(bytes.NewReader(data)), opt.MaxOutput, len(data))
	case FilterASCIIHex:
		return limit.ReadAll(asciihex.Decode(bytes.NewReader(data)), opt.MaxOutput, len(data)/2)
	case FilterRunLength:
		return limit.ReadAll(runlength.Decode(bytes.NewReader(data)), opt.MaxOutput, 2*len(data))
	case FilterCCITTFax:
		p, err := f.CCITTParams()
		if err != nil {
			return nil, err
		}
		return ccittfax.Decode(data, p, opt.MaxOutput)
	case FilterDCT:
		ct, err := f.ColorTransform()
		if err != nil {
			return nil, err
		}
		return dct.Decode(data, ct, opt.MaxOutput)
	case FilterJBIG2:
		globals, err := c.jbig2Globals(f, opt)
		if err != nil {
			return nil, err
		}
		img, err := jbig2.Decode(data, globals, opt.MaxOutput)
		if err != nil {
			return nil, err
		}
		return img.Data, nil
	case FilterCrypt:
		return data, nil
	case FilterJPX:
		return nil, &UnsupportedError{Filter: f.Type, Op: "decode"}
	default:
		return nil, Errorf("invalid filter type %d", int(f.Type))
	}
}

func (c *FilterChain) jbig2Globals(f Filter, opt *DecodeOptions) ([]byte, error) {
	obj := f.Parms["JBIG2Globals"]
	if obj == nil {
		return nil, nil
	}
	resolve := c.resolve
	if resolve == nil {
		resolve = func(obj Object) (Object, error) { return obj, nil }
	}
	obj, err := resolve(obj)
	if err != nil {
		return nil, Wrap(err, "JBIG2Globals")
	}
	stm, ok := obj.(*Stream)
	if !ok {
		return nil, Errorf("invalid /JBIG2Globals %s", Format(obj))
	}
	gc, err := ChainFromDict(stm.Dict, c.resolve)
	if err != nil {
		return nil, Wrap(err, "JBIG2Globals")
	}
	for _, g := range gc.filters {
		if g.Type == FilterJBIG2 {
			return nil, Error("JBIG2Globals with JBIG2Decode filter")
		}
	}
	return gc.Decode(stm.Data, opt)
}

// Encode applies the filters of the chain to data, in reverse order, so
// that [FilterChain.Decode] recovers the original data.  Image filters
// cannot be used for encoding; for these an error matching
// [errors.ErrUnsupported] is returned.
//
// If a Flate or LZW filter uses a predictor, the data should consist of
// complete rows.  Otherwise the last row is completed with zero bytes, and
// decoding returns the data followed by these zeros.
func (c *FilterChain) Encode(data []byte) ([]byte, error) {
	for i := len(c.filters) - 1; i >= 0; i-- {
		f := c.filters[i]
		out, err := encodeOne(f, data)
		if err != nil {
			return nil, &CodecError{Index: i, Filter: f.Type, Err: err}
		}
		data = out
	}
	return data, nil
}

// hexLineWidth is the line length used for ASCIIHexDecode output.
const hexLineWidth = 64

func encodeOne(f Filter, data []byte) ([]byte, error) {
	switch f.Type {
	case FilterFlate:
		p, err := f.PredictorParams()
		if err != nil {
			return nil, err
		}
		data, err = predict.Encode(data, p)
		if err != nil {
			return nil, err
		}
		return flate.Encode(data)
	case FilterLZW:
		p, err := f.PredictorParams()
		if err != nil {
			return nil, err
		}
		early, err := f.EarlyChange()
		if err != nil {
			return nil, err
		}
		data, err = predict.Encode(data, p)
		if err != nil {
			return nil, err
		}
		return lzw.Encode(data, early)
	case FilterASCII85:
		return encodeStream(data, ascii85.Encode)
	case FilterASCIIHex:
		return encodeStream(data, func(w io.WriteCloser) io.WriteCloser {
			return asciihex.Encode(w, hexLineWidth)
		})
	case FilterRunLength:
		return encodeStream(data, runlength.Encode)
	case FilterCrypt:
		return data, nil
	case FilterCCITTFax, FilterDCT, FilterJPX, FilterJBIG2:
		return nil, &UnsupportedError{Filter: f.Type, Op: "encode"}
	default:
		return nil, Errorf("invalid filter type %d", int(f.Type))
	}
}

func encodeStream(data []byte, newEncoder func(io.WriteCloser) io.WriteCloser) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := newEncoder(withDummyClose{buf})
	_, err := w.Write(data)
	if err != nil {
		return nil, err
	}
	err = w.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// withColumns returns a copy of the chain where predictor parameters
// without an explicit /Columns entry use the given number of columns.
func (c *FilterChain) withColumns(columns int) *FilterChain {
	res := &FilterChain{filters: slices.Clone(c.filters), resolve: c.resolve}
	for i, f := range res.filters {
		if f.Type != FilterFlate && f.Type != FilterLZW {
			continue
		}
		pred, _ := f.Parms["Predictor"].(Integer)
		if _, hasColumns := f.Parms["Columns"]; pred < 2 || hasColumns {
			continue
		}
		parms := make(Dict, len(f.Parms)+1)
		for key, val := range f.Parms {
			parms[key] = val
		}
		parms["Columns"] = Integer(columns)
		res.filters[i].Parms = parms
	}
	return res
}

type withDummyClose struct {
	io.Writer
}

func (w withDummyClose) Close() error {
	return nil
}
