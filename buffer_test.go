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
	"sync"
	"testing"
)

func TestBufferCopyOnWrite(t *testing.T) {
	a := NewBuffer([]byte("hello"))
	b := a.Share()
	if a.Holders() != 2 || b.Holders() != 2 {
		t.Fatalf("wrong holder count %d", a.Holders())
	}

	m := b.Mutable()
	m[0] = 'j'
	if got := string(a.Bytes()); got != "hello" {
		t.Errorf("write visible to other holder: %q", got)
	}
	if got := string(b.Bytes()); got != "jello" {
		t.Errorf("write lost: %q", got)
	}
	if a.Holders() != 1 || b.Holders() != 1 {
		t.Errorf("wrong holder counts %d, %d", a.Holders(), b.Holders())
	}

	// With a single holder, no copy is made.
	m1 := a.Mutable()
	m2 := a.Mutable()
	if &m1[0] != &m2[0] {
		t.Error("unexpected copy")
	}
}

func TestBufferRelease(t *testing.T) {
	a := NewBuffer([]byte{1, 2, 3})
	b := a.Share()
	a.Release()
	a.Release()
	if a.Bytes() != nil {
		t.Error("released buffer still has data")
	}
	if b.Holders() != 1 {
		t.Errorf("wrong holder count %d", b.Holders())
	}
	if !bytes.Equal(b.Bytes(), []byte{1, 2, 3}) {
		t.Error("data lost")
	}
}

func TestBufferConcurrent(t *testing.T) {
	orig := bytes.Repeat([]byte{7}, 1000)
	root := NewBuffer(bytes.Clone(orig))

	const n = 8
	holders := make([]*Buffer, n)
	for i := range holders {
		holders[i] = root.Share()
	}

	var wg sync.WaitGroup
	for i, h := range holders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := h.Mutable()
			for j := range m {
				m[j] = byte(i)
			}
		}()
	}
	wg.Wait()

	if !bytes.Equal(root.Bytes(), orig) {
		t.Error("root buffer was modified")
	}
	for i, h := range holders {
		for _, c := range h.Bytes() {
			if c != byte(i) {
				t.Fatalf("holder %d sees foreign data", i)
			}
		}
	}
}
