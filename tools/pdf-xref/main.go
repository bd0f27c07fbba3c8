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

// Pdf-xref shows the cross-reference information of a PDF file.
package main

import (
	"bufio"
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
	objFlag     = flag.Int("obj", -1, "show the object with this `number`")
	decodeFlag  = flag.Bool("decode", false, "with -obj, also show the decoded stream data")
	unusedFlag  = flag.Bool("unused", false, "list in-use objects which cannot be reached from the trailer")
	trailerFlag = flag.Bool("trailer", false, "show the trailer dictionary")
	maxFlag     = flag.Int64("max", 0, "maximal size of decoded streams in `bytes` (0 for no limit)")
	verbose     = flag.Bool("v", false, "show progress information")
)

var prof cli.Profile

func main() {
	prof.RegisterFlags(flag.CommandLine)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pdf-xref - show the cross-reference table of a PDF file\n")
		fmt.Fprintf(os.Stderr, "%s\n\n", cli.Version("pdf-xref"))
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  pdf-xref [options] <file.pdf>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pdf-xref -trailer document.pdf\n")
		fmt.Fprintf(os.Stderr, "  pdf-xref -obj 12 -decode document.pdf\n")
		fmt.Fprintf(os.Stderr, "  pdf-xref -unused document.pdf\n")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	if !*verbose {
		log.SetOutput(io.Discard)
	}

	if err := run(os.Stdout, flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(out io.Writer, fname string) (err error) {
	if err := prof.Start(); err != nil {
		return err
	}
	defer func() {
		if e := prof.Stop(); err == nil {
			err = e
		}
	}()

	log.Println("loading", fname)
	data, err := os.ReadFile(fname)
	if err != nil {
		return err
	}
	r, err := pdfcore.NewReader(data, &pdfcore.ReaderOptions{MaxStreamSize: *maxFlag})
	if err != nil {
		return err
	}
	log.Printf("PDF version %s, %d bytes", r.Version, len(data))

	w := bufio.NewWriter(out)
	defer w.Flush()

	switch {
	case *objFlag >= 0:
		return showObject(w, r, uint32(*objFlag))
	case *unusedFlag:
		return showUnused(w, r)
	}

	listXRef(w, r.XRef())
	if *trailerFlag {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "trailer")
		fmt.Fprintln(w, pdfcore.Format(r.Trailer()))
	}
	return nil
}

func listXRef(w io.Writer, xref *pdfcore.XRefTable) {
	for _, num := range xref.ObjectNumbers() {
		e, _ := xref.Get(num)
		fmt.Fprintf(w, "%6d  %-10s %s\n", num, e.Type, e)
	}
	fmt.Fprintf(w, "\n%d entries: %d in use, %d compressed, %d free\n",
		xref.Len(), xref.InUseCount(), xref.CompressedCount(), xref.FreeCount())
}

func showObject(w io.Writer, r *pdfcore.Reader, num uint32) error {
	e, ok := r.XRef().Get(num)
	if !ok {
		return fmt.Errorf("object %d not found", num)
	}
	ref := pdfcore.NewReference(num, 0)
	if e.IsInUse() {
		ref = pdfcore.NewReference(num, e.Generation)
	}
	obj, err := r.Get(ref)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%d %d obj\n", ref.Number(), ref.Generation())
	stm, isStream := obj.(*pdfcore.Stream)
	if !isStream {
		fmt.Fprintln(w, pdfcore.Format(obj))
		fmt.Fprintln(w, "endobj")
		return nil
	}

	fmt.Fprintln(w, pdfcore.Format(stm.Dict))
	if !*decodeFlag {
		fmt.Fprintf(w, "%% %d bytes of stream data\n", len(stm.Data))
		return nil
	}

	chain, err := pdfcore.ChainFromDict(stm.Dict, r.Resolve)
	if err != nil {
		return err
	}
	decoded, rest, err := chain.DecodeUntilImage(stm.Data, &pdfcore.DecodeOptions{MaxOutput: *maxFlag})
	if err != nil {
		return err
	}
	if rest.Len() > 0 {
		var names []string
		for _, f := range rest.Filters() {
			names = append(names, string(f.Type.Name()))
		}
		fmt.Fprintf(w, "%% %d bytes of image data for %s\n", len(decoded), strings.Join(names, ", "))
		return nil
	}
	fmt.Fprintln(w, "stream")
	_, err = w.Write(decoded)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nendstream")
	return nil
}

func showUnused(w io.Writer, r *pdfcore.Reader) error {
	n, err := pdfcore.MarkReachable(r)
	if err != nil {
		return err
	}
	log.Printf("%d reachable objects", n)

	unused := pdfcore.Unreachable(r)
	for _, num := range unused {
		e, _ := r.XRef().Get(num)
		fmt.Fprintf(w, "%6d  %s\n", num, e)
	}
	fmt.Fprintf(w, "%d of %d stored objects are unreachable\n",
		len(unused), r.XRef().InUseCount()+r.XRef().CompressedCount())
	return nil
}
