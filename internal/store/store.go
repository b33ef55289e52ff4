/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package store holds the authoritative editing-session state: the
// document's per-page layer lists, the drawer state for the external
// face panel, and the undo history hook. The sync engine commits every
// extraction batch here; whatever this store holds is "the current
// layers" at any instant.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cardpress/internal/domain"
	"cardpress/internal/history"
	applog "cardpress/internal/log"
)

// DrawerState names the external panel the editor can request.
type DrawerState string

const (
	DrawerClosed    DrawerState = "closed"
	DrawerFacePanel DrawerState = "face-panel"
)

// Listener is notified after a page's layer list changed.
type Listener func(pageIdx int)

// Store is the single source of truth for the in-session document.
type Store struct {
	mu        sync.Mutex
	doc       domain.Document
	drawer    DrawerState
	hist      *history.Manager
	listeners []Listener
	log       *slog.Logger

	drawerWatchers []func(DrawerState)
}

// New wraps a document. The history manager may be nil; history pushes
// are then dropped.
func New(doc domain.Document, hist *history.Manager) *Store {
	return &Store{doc: doc, drawer: DrawerClosed, hist: hist, log: applog.WithComponent("store")}
}

// Document returns a deep copy of the current document.
func (s *Store) Document() domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.doc
	out.Pages = make([]domain.Page, len(s.doc.Pages))
	for i, p := range s.doc.Pages {
		out.Pages[i] = domain.Page{Name: p.Name, Layers: domain.CloneLayers(p.Layers)}
	}
	return out
}

// PageLayers returns a deep copy of one page's layer list.
func (s *Store) PageLayers(pageIdx int) []domain.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pageIdx < 0 || pageIdx >= len(s.doc.Pages) {
		return nil
	}
	return domain.CloneLayers(s.doc.Pages[pageIdx].Layers)
}

// SetPageLayers replaces one page's full layer list.
func (s *Store) SetPageLayers(pageIdx int, layers []domain.Layer) {
	s.mu.Lock()
	if pageIdx < 0 || pageIdx >= len(s.doc.Pages) {
		s.mu.Unlock()
		return
	}
	s.doc.Pages[pageIdx].Layers = domain.CloneLayers(layers)
	ls := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, l := range ls {
		l(pageIdx)
	}
}

// UpdateLayer replaces a single layer record in place.
func (s *Store) UpdateLayer(pageIdx, layerIdx int, layer domain.Layer) {
	s.mu.Lock()
	if pageIdx < 0 || pageIdx >= len(s.doc.Pages) {
		s.mu.Unlock()
		return
	}
	layers := s.doc.Pages[pageIdx].Layers
	if layerIdx < 0 || layerIdx >= len(layers) {
		s.mu.Unlock()
		return
	}
	layers[layerIdx] = layer.Clone()
	ls := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, l := range ls {
		l(pageIdx)
	}
}

// PushHistory records the page's current layers as the state Undo will
// restore. Call it before mutating the page, so the snapshot captures
// the pre-edit state.
func (s *Store) PushHistory(pageIdx int) {
	if s.hist == nil {
		return
	}
	blob, err := s.snapshotPage(pageIdx)
	if err != nil {
		s.log.Warn("history snapshot failed", slog.Int("page", pageIdx), slog.Any("err", err))
		return
	}
	s.hist.Push(history.Snapshot{PageIdx: pageIdx, Blob: blob, TS: time.Now()})
}

// Undo restores the page's most recent pre-edit snapshot. The state
// being replaced is stashed for Redo.
func (s *Store) Undo(pageIdx int) bool {
	if s.hist == nil {
		return false
	}
	cur, err := s.snapshotPage(pageIdx)
	if err != nil {
		return false
	}
	snap, ok := s.hist.Undo(pageIdx, cur)
	if !ok {
		return false
	}
	return s.applySnapshot(snap)
}

// Redo reapplies the most recently undone state for the page.
func (s *Store) Redo(pageIdx int) bool {
	if s.hist == nil {
		return false
	}
	cur, err := s.snapshotPage(pageIdx)
	if err != nil {
		return false
	}
	snap, ok := s.hist.Redo(pageIdx, cur)
	if !ok {
		return false
	}
	return s.applySnapshot(snap)
}

func (s *Store) snapshotPage(pageIdx int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pageIdx < 0 || pageIdx >= len(s.doc.Pages) {
		return nil, fmt.Errorf("page %d out of range", pageIdx)
	}
	return json.Marshal(s.doc.Pages[pageIdx])
}

func (s *Store) applySnapshot(snap history.Snapshot) bool {
	var pg domain.Page
	if err := json.Unmarshal(snap.Blob, &pg); err != nil {
		s.log.Error("apply history snapshot failed", slog.Any("err", err))
		return false
	}
	s.SetPageLayers(snap.PageIdx, pg.Layers)
	return true
}

// DrawerState returns the requested external panel state.
func (s *Store) DrawerState() DrawerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawer
}

// SetDrawerState requests an external panel open/close.
func (s *Store) SetDrawerState(st DrawerState) {
	s.mu.Lock()
	s.drawer = st
	watchers := make([]func(DrawerState), len(s.drawerWatchers))
	copy(watchers, s.drawerWatchers)
	s.mu.Unlock()
	s.log.Debug("drawer state", slog.String("state", string(st)))
	for _, w := range watchers {
		w(st)
	}
}

// Subscribe registers a layer-change listener.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// SubscribeDrawer registers a watcher for drawer open/close requests.
func (s *Store) SubscribeDrawer(w func(DrawerState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawerWatchers = append(s.drawerWatchers, w)
}
