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

package cli

import (
	"errors"
	"flag"
	"os"
	"runtime"
	"runtime/pprof"
)

// Profile holds the profiling options of a command line tool.
// The zero value does not profile.
type Profile struct {
	CPUFile string
	MemFile string

	cpu *os.File
}

// RegisterFlags adds the -cpuprofile and -memprofile options to fs.
func (p *Profile) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&p.CPUFile, "cpuprofile", "", "write cpu profile to `file`")
	fs.StringVar(&p.MemFile, "memprofile", "", "write allocation profile to `file`")
}

// Start begins CPU profiling, if a CPU profile file is set.
func (p *Profile) Start() error {
	if p.CPUFile == "" {
		return nil
	}
	f, err := os.Create(p.CPUFile)
	if err != nil {
		return err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return err
	}
	p.cpu = f
	return nil
}

// Stop ends CPU profiling and writes the allocation profile.
// It is safe to call Stop without a preceding Start.
func (p *Profile) Stop() error {
	var errs []error
	if p.cpu != nil {
		pprof.StopCPUProfile()
		errs = append(errs, p.cpu.Close())
		p.cpu = nil
	}
	if p.MemFile != "" {
		errs = append(errs, writeAllocs(p.MemFile))
	}
	return errors.Join(errs...)
}

func writeAllocs(fname string) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	runtime.GC()
	err = pprof.Lookup("allocs").WriteTo(f, 0)
	return errors.Join(err, f.Close())
}
