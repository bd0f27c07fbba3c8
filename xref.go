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
	"math"

	"golang.org/x/exp/slices"
)

// EntryType is the type of a cross-reference entry.  The values are the
// type codes used in cross-reference streams.
type EntryType uint8

// These are the types of cross-reference entries.
const (
	EntryFree       EntryType = 0
	EntryInUse      EntryType = 1
	EntryCompressed EntryType = 2
)

func (t EntryType) String() string {
	switch t {
	case EntryFree:
		return "free"
	case EntryInUse:
		return "in use"
	case EntryCompressed:
		return "compressed"
	default:
		return fmt.Sprintf("EntryType(%d)", uint8(t))
	}
}

// XRefEntry describes where an object is stored.
type XRefEntry struct {
	Type EntryType

	// Generation is the generation number of in-use objects, and the
	// generation to use when a free object number is reused.  Compressed
	// objects always have generation 0.
	Generation uint16

	// Offset is the byte offset of an in-use object.
	Offset int64

	// Next is the next free object number, for free entries.
	Next uint32

	// Stream is the object number of the object stream holding a compressed
	// object, and Index is the index of the object within this stream.
	Stream uint32
	Index  uint32
}

// FreeEntry returns an entry for a free object number.
func FreeEntry(next uint32, generation uint16) XRefEntry {
	return XRefEntry{Type: EntryFree, Next: next, Generation: generation}
}

// InUseEntry returns an entry for an object stored at the given file
// offset.
func InUseEntry(generation uint16, offset int64) XRefEntry {
	return XRefEntry{Type: EntryInUse, Generation: generation, Offset: offset}
}

// CompressedEntry returns an entry for an object stored inside an object
// stream.
func CompressedEntry(stream, index uint32) XRefEntry {
	return XRefEntry{Type: EntryCompressed, Stream: stream, Index: index}
}

// IsFree reports whether the entry describes a free object number.
func (e XRefEntry) IsFree() bool { return e.Type == EntryFree }

// IsInUse reports whether the entry describes an object stored directly in
// the file.
func (e XRefEntry) IsInUse() bool { return e.Type == EntryInUse }

// IsCompressed reports whether the entry describes an object stored in an
// object stream.
func (e XRefEntry) IsCompressed() bool { return e.Type == EntryCompressed }

func (e XRefEntry) String() string {
	switch e.Type {
	case EntryFree:
		return fmt.Sprintf("free (next %d, gen %d)", e.Next, e.Generation)
	case EntryInUse:
		return fmt.Sprintf("offset %d, gen %d", e.Offset, e.Generation)
	case EntryCompressed:
		return fmt.Sprintf("in stream %d, index %d", e.Stream, e.Index)
	default:
		return e.Type.String()
	}
}

func (e XRefEntry) check() error {
	switch e.Type {
	case EntryFree:
	case EntryInUse:
		if e.Offset < 0 {
			return fmt.Errorf("negative object offset %d", e.Offset)
		}
	case EntryCompressed:
		if e.Generation != 0 {
			return errors.New("compressed object with non-zero generation")
		}
	default:
		return fmt.Errorf("invalid entry type %d", e.Type)
	}
	return nil
}

// XRefSubsection is a run of cross-reference entries for consecutive object
// numbers, starting at Start.
type XRefSubsection struct {
	Start   uint32
	Entries []XRefEntry
}

// End returns the object number one past the last entry of the subsection.
func (ss *XRefSubsection) End() uint32 {
	return ss.Start + uint32(len(ss.Entries))
}

// Get returns the entry for object number num, if it is covered by the
// subsection.
func (ss *XRefSubsection) Get(num uint32) (XRefEntry, bool) {
	if num < ss.Start || num >= ss.End() {
		return XRefEntry{}, false
	}
	return ss.Entries[num-ss.Start], true
}

// TableState describes the life cycle of an [XRefTable].
type TableState int

// These are the states of an [XRefTable].
const (
	TableEmpty TableState = iota
	TablePopulated
	TableFinalized
)

func (s TableState) String() string {
	switch s {
	case TableEmpty:
		return "empty"
	case TablePopulated:
		return "populated"
	case TableFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("TableState(%d)", int(s))
	}
}

// XRefTable maps object numbers to cross-reference entries.
//
// Entries can be added and changed until [XRefTable.Finalize] is called.
// After this, only the reachability marks can be changed.
type XRefTable struct {
	entries map[uint32]XRefEntry
	marked  map[uint32]struct{}
	maxNum  uint32
	state   TableState
}

// NewXRefTable returns a new, empty table.
func NewXRefTable() *XRefTable {
	return &XRefTable{
		entries: make(map[uint32]XRefEntry),
		marked:  make(map[uint32]struct{}),
	}
}

// State returns the current state of the table.
func (t *XRefTable) State() TableState {
	return t.state
}

// Add sets the entry for object number num, replacing any previous entry.
func (t *XRefTable) Add(num uint32, e XRefEntry) error {
	if t.state == TableFinalized {
		return ErrFinalized
	}
	if err := e.check(); err != nil {
		return &XRefFormatError{Err: fmt.Errorf("object %d: %w", num, err)}
	}
	t.set(num, e)
	return nil
}

func (t *XRefTable) set(num uint32, e XRefEntry) {
	t.entries[num] = e
	if num > t.maxNum {
		t.maxNum = num
	}
	t.state = TablePopulated
}

// AddSubsection adds all entries of a subsection to the table.  Later
// entries replace earlier ones.  Either all or none of the entries are
// added.
func (t *XRefTable) AddSubsection(ss *XRefSubsection) error {
	if t.state == TableFinalized {
		return ErrFinalized
	}
	if uint64(ss.Start)+uint64(len(ss.Entries)) > math.MaxUint32+1 {
		return &XRefFormatError{Err: errors.New("subsection exceeds object number range")}
	}
	for i, e := range ss.Entries {
		if err := e.check(); err != nil {
			num := ss.Start + uint32(i)
			return &XRefFormatError{Err: fmt.Errorf("object %d: %w", num, err)}
		}
	}
	for i, e := range ss.Entries {
		t.set(ss.Start+uint32(i), e)
	}
	return nil
}

// Update replaces the entry for an object number which is already present
// in the table.
func (t *XRefTable) Update(num uint32, e XRefEntry) error {
	if t.state == TableFinalized {
		return ErrFinalized
	}
	if _, ok := t.entries[num]; !ok {
		return &UnresolvedReferenceError{Ref: NewReference(num, 0), Err: errNoEntry}
	}
	return t.Add(num, e)
}

var errNoEntry = errors.New("no cross-reference entry")

// Get returns the entry for object number num.
func (t *XRefTable) Get(num uint32) (XRefEntry, bool) {
	e, ok := t.entries[num]
	return e, ok
}

// Contains reports whether the table has an entry for object number num.
func (t *XRefTable) Contains(num uint32) bool {
	_, ok := t.entries[num]
	return ok
}

// Allocate reserves a new object number, one past the largest object
// number in the table.  Object number 0 is never allocated.  The new
// number is recorded as a free entry.
func (t *XRefTable) Allocate() (uint32, error) {
	if t.state == TableFinalized {
		return 0, ErrFinalized
	}
	var num uint32 = 1
	if len(t.entries) > 0 {
		if t.maxNum == math.MaxUint32 {
			return 0, &XRefFormatError{Err: errors.New("object numbers exhausted")}
		}
		num = max(t.maxNum+1, 1)
	}
	t.set(num, FreeEntry(0, 0))
	return num, nil
}

// Delete marks an object number as free and increments its generation
// number, so that the number can be reused.  The generation of an entry
// which already has the maximal generation 65535 is not changed.
func (t *XRefTable) Delete(num uint32) error {
	if t.state == TableFinalized {
		return ErrFinalized
	}
	e, ok := t.entries[num]
	if !ok {
		return &UnresolvedReferenceError{Ref: NewReference(num, 0), Err: errNoEntry}
	}
	gen := e.Generation
	if gen < math.MaxUint16 {
		gen++
	}
	t.set(num, FreeEntry(0, gen))
	delete(t.marked, num)
	return nil
}

// Mark sets the reachability mark of an object number.  The function
// returns false if the table has no entry for num.
func (t *XRefTable) Mark(num uint32) bool {
	if _, ok := t.entries[num]; !ok {
		return false
	}
	t.marked[num] = struct{}{}
	return true
}

// Unmark clears the reachability mark of an object number.
func (t *XRefTable) Unmark(num uint32) {
	delete(t.marked, num)
}

// IsMarked reports whether an object number is marked.
func (t *XRefTable) IsMarked(num uint32) bool {
	_, ok := t.marked[num]
	return ok
}

// ClearMarks clears all reachability marks.
func (t *XRefTable) ClearMarks() {
	clear(t.marked)
}

// MarkedObjects returns the marked object numbers in increasing order.
func (t *XRefTable) MarkedObjects() []uint32 {
	res := make([]uint32, 0, len(t.marked))
	for num := range t.marked {
		res = append(res, num)
	}
	slices.Sort(res)
	return res
}

// ObjectNumbers returns all object numbers in the table in increasing order.
func (t *XRefTable) ObjectNumbers() []uint32 {
	res := make([]uint32, 0, len(t.entries))
	for num := range t.entries {
		res = append(res, num)
	}
	slices.Sort(res)
	return res
}

// Entries returns a copy of all entries in the table.
func (t *XRefTable) Entries() map[uint32]XRefEntry {
	res := make(map[uint32]XRefEntry, len(t.entries))
	for num, e := range t.entries {
		res[num] = e
	}
	return res
}

// Len returns the number of entries in the table.
func (t *XRefTable) Len() int {
	return len(t.entries)
}

// MaxNumber returns the largest object number in the table, or 0 if the
// table is empty.
func (t *XRefTable) MaxNumber() uint32 {
	return t.maxNum
}

// InUseCount returns the number of in-use entries.
func (t *XRefTable) InUseCount() int {
	return t.count(EntryInUse)
}

// FreeCount returns the number of free entries.
func (t *XRefTable) FreeCount() int {
	return t.count(EntryFree)
}

// CompressedCount returns the number of compressed entries.
func (t *XRefTable) CompressedCount() int {
	return t.count(EntryCompressed)
}

func (t *XRefTable) count(tp EntryType) int {
	n := 0
	for _, e := range t.entries {
		if e.Type == tp {
			n++
		}
	}
	return n
}

// Finalize makes the table read-only.  Calling Finalize more than once has
// no effect.
func (t *XRefTable) Finalize() {
	t.state = TableFinalized
}
