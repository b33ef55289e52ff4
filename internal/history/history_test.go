/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package history

import (
	"testing"
	"time"
)

func TestUndoRedoBasic(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1 << 20, MaxPerPage: 10, MinInterval: 10 * time.Millisecond})
	// Two edits: "a" and "b" are the states before each, "c" is current.
	m.Push(Snapshot{PageIdx: 1, Blob: []byte("a"), TS: time.Now()})
	m.Push(Snapshot{PageIdx: 1, Blob: []byte("b"), TS: time.Now().Add(20 * time.Millisecond)})
	if _, pages, total := m.Stats(); pages != 1 || total != 2 {
		t.Fatalf("expected 1 page / 2 snapshots, got pages=%d total=%d", pages, total)
	}
	s, ok := m.Undo(1, []byte("c"))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("undo expected 'b', got ok=%v blob=%q", ok, s.Blob)
	}
	s, ok = m.Undo(1, []byte("b"))
	if !ok || string(s.Blob) != "a" {
		t.Fatalf("second undo expected 'a', got ok=%v blob=%q", ok, s.Blob)
	}
	s, ok = m.Redo(1, []byte("a"))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("redo expected 'b', got ok=%v blob=%q", ok, s.Blob)
	}
	s, ok = m.Redo(1, []byte("b"))
	if !ok || string(s.Blob) != "c" {
		t.Fatalf("second redo expected 'c', got ok=%v blob=%q", ok, s.Blob)
	}
}

func TestCoalesceKeepsEarliestState(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1 << 20, MaxPerPage: 10, MinInterval: 50 * time.Millisecond})
	t0 := time.Now()
	m.Push(Snapshot{PageIdx: 2, Blob: []byte("1"), TS: t0})
	m.Push(Snapshot{PageIdx: 2, Blob: []byte("2"), TS: t0.Add(10 * time.Millisecond)})
	if _, _, total := m.Stats(); total != 1 {
		t.Fatalf("expected coalesce to 1 snapshot, got %d", total)
	}
	// A rapid burst undoes to the state before the burst began.
	if s, ok := m.Undo(2, []byte("3")); !ok || string(s.Blob) != "1" {
		t.Fatalf("expected earliest blob after coalesce, got %q", s.Blob)
	}
}

func TestPushClearsRedo(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Millisecond})
	t0 := time.Now()
	m.Push(Snapshot{PageIdx: 0, Blob: []byte("a"), TS: t0})
	m.Push(Snapshot{PageIdx: 0, Blob: []byte("b"), TS: t0.Add(5 * time.Millisecond)})
	if _, ok := m.Undo(0, []byte("cur")); !ok {
		t.Fatalf("undo failed")
	}
	m.Push(Snapshot{PageIdx: 0, Blob: []byte("c"), TS: t0.Add(15 * time.Millisecond)})
	if _, ok := m.Redo(0, []byte("cur")); ok {
		t.Fatalf("redo should be invalidated by a new push")
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MaxBytes: 20, MaxPerPage: 2, MinInterval: time.Millisecond})
	for i := 0; i < 10; i++ {
		m.Push(Snapshot{PageIdx: 3, Blob: []byte("xxxxx"), TS: time.Now().Add(time.Duration(i) * 2 * time.Millisecond)})
	}
	if _, _, total := m.Stats(); total > 2 {
		t.Fatalf("per-page cap exceeded: %d", total)
	}
}

func TestClearPage(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Millisecond})
	m.Push(Snapshot{PageIdx: 1, Blob: []byte("a"), TS: time.Now()})
	m.ClearPage(1)
	if b, pages, _ := m.Stats(); b != 0 || pages != 0 {
		t.Fatalf("clear did not release memory: bytes=%d pages=%d", b, pages)
	}
}
