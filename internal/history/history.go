/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package history provides per-page undo/redo snapshot stacks with
// memory safeguards. Snapshots are opaque serialized layer lists; the
// manager never inspects them.
//
// Entries on the undo stack are pre-edit states, pushed right before a
// mutation. Undo and Redo therefore take the page's current state:
// undoing stashes it for redo and hands back the pre-edit snapshot,
// redoing does the reverse.
package history

import (
	"sync"
	"time"
)

// Snapshot is one reversible state blob for a page.
type Snapshot struct {
	PageIdx int
	Blob    []byte
	TS      time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; oldest entries are pruned when exceeded.
	MaxBytes int
	// MaxPerPage limits snapshots kept per page (0 means unlimited).
	MaxPerPage int
	// MinInterval coalesces snapshots for the same page captured within
	// the interval: the earlier pre-edit state is kept and the newer one
	// dropped, so a burst of rapid edits undoes in one step.
	MinInterval time.Duration
}

// Manager keeps undo/redo stacks per page. Safe for concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex

	undo map[int][]Snapshot
	redo map[int][]Snapshot

	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	return &Manager{cfg: cfg, undo: make(map[int][]Snapshot), redo: make(map[int][]Snapshot)}
}

// Push records the page's pre-edit state. Within MinInterval of the
// previous push on the same page the new snapshot is dropped, keeping
// the state from before the burst. Any push clears the page's redo
// stack.
func (m *Manager) Push(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[s.PageIdx]
	if n := len(stack); n > 0 && s.TS.Sub(stack[n-1].TS) < m.cfg.MinInterval {
		stack[n-1].TS = s.TS
		m.redo[s.PageIdx] = nil
		return
	}
	m.undo[s.PageIdx] = append(stack, s)
	m.totalBytes += len(s.Blob)
	m.redo[s.PageIdx] = nil
	m.enforceCapsLocked(s.PageIdx)
}

// Undo pops the page's most recent pre-edit snapshot. The caller passes
// the page's current state, which is stashed on the redo stack so the
// undone edit can be reapplied.
func (m *Manager) Undo(pageIdx int, current []byte) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[pageIdx]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.undo[pageIdx] = stack[:len(stack)-1]
	m.totalBytes -= len(s.Blob)
	m.redo[pageIdx] = append(m.redo[pageIdx], Snapshot{PageIdx: pageIdx, Blob: current, TS: time.Now()})
	return s, true
}

// Redo pops the page's most recently undone state. The current state
// moves back onto the undo stack so the redone edit stays reversible.
func (m *Manager) Redo(pageIdx int, current []byte) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[pageIdx]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.redo[pageIdx] = r[:len(r)-1]
	m.undo[pageIdx] = append(m.undo[pageIdx], Snapshot{PageIdx: pageIdx, Blob: current, TS: time.Now()})
	m.totalBytes += len(current)
	m.enforceCapsLocked(pageIdx)
	return s, true
}

// ClearPage frees both stacks for a page.
func (m *Manager) ClearPage(pageIdx int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[pageIdx] {
		m.totalBytes -= len(s.Blob)
	}
	delete(m.undo, pageIdx)
	delete(m.redo, pageIdx)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes, pages, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pages = len(m.undo)
	for _, v := range m.undo {
		totalSnapshots += len(v)
	}
	return m.totalBytes, pages, totalSnapshots
}

func (m *Manager) enforceCapsLocked(pageIdx int) {
	if m.cfg.MaxPerPage > 0 {
		stack := m.undo[pageIdx]
		if len(stack) > m.cfg.MaxPerPage {
			drop := len(stack) - m.cfg.MaxPerPage
			for i := 0; i < drop; i++ {
				m.totalBytes -= len(stack[i].Blob)
			}
			m.undo[pageIdx] = append([]Snapshot{}, stack[drop:]...)
		}
	}
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		oldestPage := 0
		found := false
		var oldestTS time.Time
		for page, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) {
				oldestPage = page
				oldestTS = stack[0].TS
				found = true
			}
		}
		if !found {
			break
		}
		stack := m.undo[oldestPage]
		m.totalBytes -= len(stack[0].Blob)
		m.undo[oldestPage] = stack[1:]
		if len(m.undo[oldestPage]) == 0 {
			delete(m.undo, oldestPage)
		}
	}
}
