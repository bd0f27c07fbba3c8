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
	"sync/atomic"
)

// Buffer holds decoded stream data which may be shared between several
// holders.  The data is copied when a holder asks for a mutable view while
// other holders exist, so that no holder ever observes modifications made
// through a different holder.
//
// Each holder must call Release when it no longer needs the data.
// A single Buffer value must not be used concurrently, but different
// holders of the same data may be used from different goroutines.
type Buffer struct {
	s *sharedData
}

type sharedData struct {
	data []byte
	refs atomic.Int32
}

// NewBuffer returns a buffer holding data.  The buffer takes ownership of
// the slice.
func NewBuffer(data []byte) *Buffer {
	s := &sharedData{data: data}
	s.refs.Store(1)
	return &Buffer{s: s}
}

// Bytes returns the contents of the buffer.  The returned slice must not
// be modified.  After Release, Bytes returns nil.
func (b *Buffer) Bytes() []byte {
	if b.s == nil {
		return nil
	}
	return b.s.data
}

// Len returns the length of the buffer contents.
func (b *Buffer) Len() int {
	return len(b.Bytes())
}

// Share returns a new holder for the same data.
func (b *Buffer) Share() *Buffer {
	if b.s == nil {
		return &Buffer{}
	}
	b.s.refs.Add(1)
	return &Buffer{s: b.s}
}

// Holders returns the number of holders of the data.
func (b *Buffer) Holders() int {
	if b.s == nil {
		return 0
	}
	return int(b.s.refs.Load())
}

// Release drops this holder.  Calling Release more than once has no
// effect.
func (b *Buffer) Release() {
	if b.s == nil {
		return
	}
	b.s.refs.Add(-1)
	b.s = nil
}

// Mutable returns a view of the data which may be modified by the caller.
// If the data has other holders, it is copied first.
func (b *Buffer) Mutable() []byte {
	if b.s == nil {
		return nil
	}
	if b.s.refs.Load() == 1 {
		return b.s.data
	}

	s := &sharedData{data: bytes.Clone(b.s.data)}
	s.refs.Store(1)
	b.s.refs.Add(-1)
	b.s = s
	return s.data
}
