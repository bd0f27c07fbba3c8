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

// Pdf-filter applies a chain of PDF stream filters to a file.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"seehuhn.de/go/pdfcore"
	"seehuhn.de/go/pdfcore/tools/internal/cli"
)

var (
	decodeFlag  = flag.Bool("d", false, "decode the input (default)")
	encodeFlag  = flag.Bool("e", false, "encode the input")
	chainFlag   = flag.String("chain", "Fl", "comma separated list of `filters`, in decoding order")
	predictor   = flag.Int("predictor", 1, "predictor for Flate and LZW filters")
	colors      = flag.Int("colors", 1, "colour components per sample, for predictors")
	bpc         = flag.Int("bpc", 8, "bits per colour component, for predictors")
	columns     = flag.Int("columns", 1, "samples per row, for predictors")
	earlyChange = flag.Bool("early-change", true, "LZW EarlyChange parameter")
	maxOutput   = flag.Int64("max", 0, "maximal number of `bytes` produced by each filter (0 for no limit)")
	force       = flag.Bool("f", false, "write binary output to a terminal")
	verbose     = flag.Bool("v", false, "show progress information")
)

var prof cli.Profile

func main() {
	prof.RegisterFlags(flag.CommandLine)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pdf-filter - encode or decode data using PDF stream filters\n")
		fmt.Fprintf(os.Stderr, "%s\n\n", cli.Version("pdf-filter"))
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  pdf-filter [options] [in [out]]\n\n")
		fmt.Fprintf(os.Stderr, "If no input file is given, data is read from stdin.\n")
		fmt.Fprintf(os.Stderr, "If no output file is given, data is written to stdout.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pdf-filter -d -chain AHx,Fl stream.bin out.bin\n")
		fmt.Fprintf(os.Stderr, "  pdf-filter -e -chain Fl -predictor 12 -columns 5 xref.bin\n")
	}
	flag.Parse()

	if flag.NArg() > 2 || *decodeFlag && *encodeFlag {
		flag.Usage()
		os.Exit(1)
	}
	if !*verbose {
		log.SetOutput(io.Discard)
	}

	if err := run(flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) (err error) {
	if err := prof.Start(); err != nil {
		return err
	}
	defer func() {
		if e := prof.Stop(); err == nil {
			err = e
		}
	}()

	parms := &params{
		Predictor:        *predictor,
		Colors:           *colors,
		BitsPerComponent: *bpc,
		Columns:          *columns,
		EarlyChange:      *earlyChange,
	}
	filters, err := parseChain(*chainFlag, parms)
	if err != nil {
		return err
	}
	chain := pdfcore.NewFilterChain(filters...)

	var in []byte
	if len(args) > 0 && args[0] != "-" {
		in, err = os.ReadFile(args[0])
	} else {
		in, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return err
	}
	log.Printf("read %d bytes", len(in))

	var out []byte
	if *encodeFlag {
		out, err = chain.Encode(in)
	} else {
		out, err = chain.Decode(in, &pdfcore.DecodeOptions{MaxOutput: *maxOutput})
	}
	if err != nil {
		return err
	}
	log.Printf("%d filters applied, %d bytes of output", chain.Len(), len(out))

	if len(args) > 1 && args[1] != "-" {
		return os.WriteFile(args[1], out, 0o644)
	}
	if !*force && cli.IsTerminal(os.Stdout) && isBinary(out) {
		return errors.New("not writing binary data to a terminal (use -f to override)")
	}
	_, err = os.Stdout.Write(out)
	return err
}

// params holds the decode parameters given on the command line.
type params struct {
	Predictor        int
	Colors           int
	BitsPerComponent int
	Columns          int
	EarlyChange      bool
}

// parseChain converts a comma separated list of filter names into a
// filter chain.  The parameters are attached to Flate and LZW filters.
func parseChain(spec string, p *params) ([]pdfcore.Filter, error) {
	var res []pdfcore.Filter
	for _, field := range strings.Split(spec, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		tp, err := pdfcore.FilterFromName(pdfcore.Name(field))
		if err != nil {
			return nil, err
		}

		f := pdfcore.Filter{Type: tp}
		if tp == pdfcore.FilterFlate || tp == pdfcore.FilterLZW {
			f.Parms = p.dict(tp)
		}
		if _, err := f.PredictorParams(); err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, nil
}

func (p *params) dict(tp pdfcore.FilterType) pdfcore.Dict {
	dict := pdfcore.Dict{}
	if p.Predictor != 1 {
		dict["Predictor"] = pdfcore.Integer(p.Predictor)
		if p.Colors != 1 {
			dict["Colors"] = pdfcore.Integer(p.Colors)
		}
		if p.BitsPerComponent != 8 {
			dict["BitsPerComponent"] = pdfcore.Integer(p.BitsPerComponent)
		}
		if p.Columns != 1 {
			dict["Columns"] = pdfcore.Integer(p.Columns)
		}
	}
	if tp == pdfcore.FilterLZW && !p.EarlyChange {
		dict["EarlyChange"] = pdfcore.Integer(0)
	}
	if len(dict) == 0 {
		return nil
	}
	return dict
}

// isBinary reports whether data contains control characters other than
// white space.
func isBinary(data []byte) bool {
	for _, c := range data {
		if c < 32 && c != '\n' && c != '\r' && c != '\t' && c != '\f' || c == 127 {
			return true
		}
	}
	return false
}
