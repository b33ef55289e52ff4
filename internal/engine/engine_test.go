/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"cardpress/internal/coord"
	"cardpress/internal/croptool"
	"cardpress/internal/domain"
	"cardpress/internal/history"
	"cardpress/internal/resolver"
	"cardpress/internal/scene"
	"cardpress/internal/store"
)

// fakeSched collects posted funcs; tests pump them by hand. Loads run
// on goroutines, so pumping first waits for the expected post count.
type fakeSched struct {
	mu sync.Mutex
	q  []func()
}

func (s *fakeSched) Post(fn func()) {
	s.mu.Lock()
	s.q = append(s.q, fn)
	s.mu.Unlock()
}

func (s *fakeSched) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.q)
}

func (s *fakeSched) pump() {
	for {
		s.mu.Lock()
		if len(s.q) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.q[0]
		s.q = s.q[1:]
		s.mu.Unlock()
		fn()
	}
}

func (s *fakeSched) waitAndPump(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.pending() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d posts, have %d", n, s.pending())
		}
		time.Sleep(time.Millisecond)
	}
	s.pump()
}

type fakeLoader struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (l *fakeLoader) Load(_ context.Context, addr string) (image.Image, error) {
	l.mu.Lock()
	l.calls = append(l.calls, addr)
	fail := l.fail[addr]
	l.mu.Unlock()
	if fail {
		return nil, errors.New("load failed")
	}
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

func newTestEngine(doc domain.Document) (*Engine, *store.Store, *fakeSched, *fakeLoader) {
	st := store.New(doc, history.NewManager(history.Config{}))
	sched := &fakeSched{}
	loader := &fakeLoader{}
	e := New(st, resolver.New("proj1"), loader, sched, croptool.New(), coord.Card)
	return e, st, sched, loader
}

func imgLayer(assetID string) *domain.ImageLayer {
	l := &domain.ImageLayer{X: 100, Y: 200, ScaleX: 1, ScaleY: 1, Opacity: 1, Selectable: true, Editable: true}
	l.Source.AssetID = assetID
	return l
}

func txtLayer(text string) *domain.TextLayer {
	return &domain.TextLayer{X: 10, Y: 20, ScaleX: 1, ScaleY: 1, Opacity: 1,
		Text: text, FontFamily: "serif", FontSize: 24, Fill: "#111111", Selectable: true, Editable: true}
}

func phLayer(faceSpec string) *domain.PlaceholderLayer {
	l := &domain.PlaceholderLayer{FaceSpecID: faceSpec, Generation: 3}
	l.X, l.Y = 300, 300
	l.ScaleX, l.ScaleY = 1, 1
	l.Opacity = 1
	l.Selectable, l.Editable = true, true
	l.Source.AssetID = "image-face-500x500-png"
	return l
}

func threeLayerDoc() domain.Document {
	doc := domain.NewSkeleton("test")
	// Index 0 is topmost.
	doc.Pages[0].Layers = []domain.Layer{
		txtLayer("Hello"),
		imgLayer("image-abc-2000x2000-png"),
		phLayer("spec-1"),
	}
	return doc
}

func TestHydrateBuildsSceneInOrder(t *testing.T) {
	e, _, sched, _ := newTestEngine(threeLayerDoc())
	e.SetPage(0)
	// Two image loads are in flight; the text object is already there.
	sched.waitAndPump(t, 2)

	objs := e.Stack().LayerObjects()
	if len(objs) != 3 {
		t.Fatalf("layer objects = %d", len(objs))
	}
	// Bottom to top: descending layer index, index 0 topmost.
	want := []int{2, 1, 0}
	for i, o := range objs {
		if o.Base().LayerIdx != want[i] {
			t.Fatalf("pos %d has layerIdx %d, want %d", i, o.Base().LayerIdx, want[i])
		}
	}
	if objs[0].(*scene.ImageObject).FaceSpecID != "spec-1" {
		t.Fatal("placeholder bookkeeping missing")
	}
	if _, ok := objs[2].(*scene.TextObject); !ok {
		t.Fatal("topmost object should be text")
	}
	// Hover stays above everything.
	all := e.Stack().Objects()
	if all[len(all)-1] != e.Hover() {
		t.Fatal("hover not on top")
	}
}

func TestHydrateSkipsUnresolvableButKeepsRecord(t *testing.T) {
	doc := domain.NewSkeleton("test")
	doc.Pages[0].Layers = []domain.Layer{
		txtLayer("kept"),
		imgLayer(""), // no address at all
	}
	e, st, sched, _ := newTestEngine(doc)
	e.SetPage(0)
	sched.pump()

	if n := len(e.Stack().LayerObjects()); n != 1 {
		t.Fatalf("expected 1 scene object, got %d", n)
	}
	if n := len(st.PageLayers(0)); n != 2 {
		t.Fatalf("record dropped from store: %d layers", n)
	}
	// Extraction must not disturb the skipped record.
	out := e.ExtractAll()
	if len(out) != 2 || out[1].LayerType() != domain.LayerImage {
		t.Fatalf("extract lost the unresolvable record: %v", out)
	}
}

func TestRoundTripPreservesLayers(t *testing.T) {
	e, st, sched, _ := newTestEngine(threeLayerDoc())
	e.SetPage(0)
	sched.waitAndPump(t, 2)

	before := st.PageLayers(0)
	after := e.ExtractAll()
	if len(after) != len(before) {
		t.Fatalf("layer count %d != %d", len(after), len(before))
	}
	for i := range before {
		bj, err := domain.MarshalLayer(before[i])
		if err != nil {
			t.Fatalf("marshal before[%d]: %v", i, err)
		}
		aj, err := domain.MarshalLayer(after[i])
		if err != nil {
			t.Fatalf("marshal after[%d]: %v", i, err)
		}
		if !bytes.Equal(bj, aj) {
			t.Fatalf("layer %d changed across round trip:\n%s\n%s", i, bj, aj)
		}
	}
}

func TestCommitAppliesEditAndDefersPageChange(t *testing.T) {
	e, st, sched, _ := newTestEngine(threeLayerDoc())
	e.SetPage(0)
	sched.waitAndPump(t, 2)

	txt, ok := e.Stack().ObjectAt(0)
	if !ok {
		t.Fatal("text object missing")
	}
	txt.MoveBy(5, 7)
	e.CommitInteraction()

	if e.State() != StateApplyingEdit {
		t.Fatalf("state = %v", e.State())
	}
	moved := st.PageLayers(0)[0].(*domain.TextLayer)
	if moved.X != 15 || moved.Y != 27 {
		t.Fatalf("commit lost the move: %v,%v", moved.X, moved.Y)
	}

	// A page change in the ApplyingEdit window is deferred, not dropped.
	e.SetPage(1)
	if e.Page() != 0 {
		t.Fatal("page changed during ApplyingEdit")
	}
	sched.pump()
	if e.State() != StateIdle {
		t.Fatalf("state after tick = %v", e.State())
	}
	if e.Page() != 1 {
		t.Fatalf("deferred page change not applied, page = %d", e.Page())
	}
}

func TestCommitPushesHistoryOnce(t *testing.T) {
	doc := threeLayerDoc()
	hist := history.NewManager(history.Config{})
	st := store.New(doc, hist)
	sched := &fakeSched{}
	e := New(st, resolver.New("proj1"), &fakeLoader{}, sched, croptool.New(), coord.Card)
	e.SetPage(0)
	sched.waitAndPump(t, 2)

	e.CommitInteraction()
	sched.pump()
	_, _, snaps := hist.Stats()
	if snaps != 1 {
		t.Fatalf("history snapshots = %d, want 1", snaps)
	}
}

func TestStaleAsyncResultsDiscarded(t *testing.T) {
	doc := threeLayerDoc()
	doc.Pages[1].Layers = []domain.Layer{txtLayer("page two")}
	e, _, sched, _ := newTestEngine(doc)

	e.SetPage(0)
	// Switch pages before the page-0 image loads are applied.
	e.SetPage(1)
	sched.waitAndPump(t, 2)

	for _, o := range e.Stack().LayerObjects() {
		if o.Kind() == scene.KindImage {
			t.Fatal("stale image completion applied to new page")
		}
	}
	if n := len(e.Stack().LayerObjects()); n != 1 {
		t.Fatalf("page 1 objects = %d", n)
	}
}

func TestFailedLoadLeavesRecordForRetry(t *testing.T) {
	doc := domain.NewSkeleton("test")
	doc.Pages[0].Layers = []domain.Layer{imgLayer("image-abc-10x10-png")}
	st := store.New(doc, nil)
	sched := &fakeSched{}
	loader := &fakeLoader{fail: map[string]bool{}}
	res := resolver.New("proj1")
	addr, _ := res.Resolve(doc.Pages[0].Layers[0].(*domain.ImageLayer).Source)
	loader.fail[addr] = true

	e := New(st, res, loader, sched, croptool.New(), coord.Card)
	e.SetPage(0)
	sched.waitAndPump(t, 1)
	if n := len(e.Stack().LayerObjects()); n != 0 {
		t.Fatalf("failed load produced %d objects", n)
	}

	// Next hydrate retries.
	loader.fail[addr] = false
	e.Rehydrate()
	sched.waitAndPump(t, 1)
	if n := len(e.Stack().LayerObjects()); n != 1 {
		t.Fatalf("retry produced %d objects", n)
	}
}

func TestNudgeHonorsAxisLocks(t *testing.T) {
	doc := domain.NewSkeleton("test")
	l := txtLayer("locked x")
	l.LockMoveX = true
	doc.Pages[0].Layers = []domain.Layer{l}
	e, st, sched, _ := newTestEngine(doc)
	e.SetPage(0)
	sched.pump()

	obj, _ := e.Stack().ObjectAt(0)
	e.Select(obj)
	e.Nudge(10, 1)
	sched.pump()

	got := st.PageLayers(0)[0].(*domain.TextLayer)
	if got.X != 10 {
		t.Fatalf("locked axis moved: X = %v", got.X)
	}
	if got.Y != 21 {
		t.Fatalf("free axis Y = %v, want 21", got.Y)
	}
}

func TestRemoveObjectSplicesAndShifts(t *testing.T) {
	e, st, sched, _ := newTestEngine(threeLayerDoc())
	e.SetPage(0)
	sched.waitAndPump(t, 2)

	mid, ok := e.Stack().ObjectAt(1)
	if !ok {
		t.Fatal("object at index 1 missing")
	}
	e.RemoveObject(mid)
	if n := len(st.PageLayers(0)); n != 2 {
		t.Fatalf("store layers after remove = %d", n)
	}
	// The former index-2 object now carries index 1.
	objs := e.Stack().LayerObjects()
	if len(objs) != 2 {
		t.Fatalf("scene objects after remove = %d", len(objs))
	}
	if objs[0].Base().LayerIdx != 1 || objs[1].Base().LayerIdx != 0 {
		t.Fatalf("indexes after shift: %d, %d", objs[0].Base().LayerIdx, objs[1].Base().LayerIdx)
	}
	e.CommitInteraction()
	sched.pump()
	if st.PageLayers(0)[1].LayerType() != domain.LayerPlaceholder {
		t.Fatal("surviving record mismatch after shift")
	}
}

func TestAddLayersPrependsTopmost(t *testing.T) {
	e, st, sched, _ := newTestEngine(threeLayerDoc())
	e.SetPage(0)
	sched.waitAndPump(t, 2)

	e.AddLayers([]domain.Layer{txtLayer("new top")})
	if n := len(st.PageLayers(0)); n != 4 {
		t.Fatalf("store layers = %d", n)
	}
	if st.PageLayers(0)[0].(*domain.TextLayer).Text != "new top" {
		t.Fatal("new layer not at index 0")
	}
	objs := e.Stack().LayerObjects()
	top := objs[len(objs)-1]
	if top.Base().LayerIdx != 0 {
		t.Fatalf("new object layerIdx = %d", top.Base().LayerIdx)
	}
	if tx, ok := top.(*scene.TextObject); !ok || tx.Text != "new top" {
		t.Fatal("topmost scene object is not the new text")
	}
}

func TestCropKeysCommitOnSessionEnd(t *testing.T) {
	doc := domain.NewSkeleton("test")
	il := imgLayer("image-abc-100x100-png")
	il.Width, il.Height = 100, 100
	doc.Pages[0].Layers = []domain.Layer{il}
	e, st, sched, _ := newTestEngine(doc)
	e.SetPage(0)
	sched.waitAndPump(t, 1)

	obj, _ := e.Stack().ObjectAt(0)
	e.Select(obj)
	if err := e.BeginCrop(); err != nil {
		t.Fatalf("BeginCrop: %v", err)
	}
	if !e.ForwardKey("Right") {
		t.Fatal("crop key not consumed")
	}
	if !e.ForwardKey("Return") {
		t.Fatal("commit key not consumed")
	}
	if e.CropActive() {
		t.Fatal("session survived Return")
	}
	sched.pump()
	got := st.PageLayers(0)[0].(*domain.ImageLayer)
	if !got.HasCrop() {
		t.Fatal("crop not extracted")
	}
	if e.ForwardKey("Left") {
		t.Fatal("keys consumed without a session")
	}
}

func TestUnmountAbortsEverything(t *testing.T) {
	e, _, sched, _ := newTestEngine(threeLayerDoc())
	e.SetPage(0)
	e.Unmount()
	// In-flight completions must be discarded after unmount.
	sched.waitAndPump(t, 2)
	if n := e.Stack().Len(); n != 0 {
		t.Fatalf("stack not emptied: %d", n)
	}
	if e.Page() != noPage {
		t.Fatalf("page = %d", e.Page())
	}
}

func TestUndoRevertsCommittedEdit(t *testing.T) {
	doc := domain.NewSkeleton("test")
	doc.Pages[0].Layers = []domain.Layer{txtLayer("movable")}
	e, st, sched, _ := newTestEngine(doc)
	e.SetPage(0)
	sched.pump()

	obj, ok := e.Stack().ObjectAt(0)
	if !ok {
		t.Fatal("text object missing")
	}
	obj.MoveBy(50, 0) // X 10 -> 60
	e.CommitInteraction()
	sched.pump()
	if got := st.PageLayers(0)[0].(*domain.TextLayer).X; got != 60 {
		t.Fatalf("commit lost the move: X=%v", got)
	}

	if !st.Undo(0) {
		t.Fatal("undo failed")
	}
	if got := st.PageLayers(0)[0].(*domain.TextLayer).X; got != 10 {
		t.Fatalf("undo did not revert the edit: X=%v, want 10", got)
	}
	if !st.Redo(0) {
		t.Fatal("redo failed")
	}
	if got := st.PageLayers(0)[0].(*domain.TextLayer).X; got != 60 {
		t.Fatalf("redo did not reapply the edit: X=%v, want 60", got)
	}
	if !st.Undo(0) {
		t.Fatal("second undo failed")
	}
	if got := st.PageLayers(0)[0].(*domain.TextLayer).X; got != 10 {
		t.Fatalf("second undo: X=%v, want 10", got)
	}
}

func TestRemoveShiftsInFlightLoads(t *testing.T) {
	doc := domain.NewSkeleton("test")
	doc.Pages[0].Layers = []domain.Layer{
		txtLayer("doomed"),
		imgLayer("image-abc-2000x2000-png"),
	}
	e, st, sched, _ := newTestEngine(doc)
	e.SetPage(0)

	// Delete the topmost record while the image load is still in flight.
	txt, ok := e.Stack().ObjectAt(0)
	if !ok {
		t.Fatal("text object missing")
	}
	e.RemoveObject(txt)
	if n := len(st.PageLayers(0)); n != 1 {
		t.Fatalf("store layers after remove = %d", n)
	}
	sched.waitAndPump(t, 1)

	objs := e.Stack().LayerObjects()
	if len(objs) != 1 {
		t.Fatalf("scene objects = %d", len(objs))
	}
	img, ok := objs[0].(*scene.ImageObject)
	if !ok || img.Img == nil {
		t.Fatal("image object did not arrive")
	}
	if img.Base().LayerIdx != 0 {
		t.Fatalf("arrived object layerIdx = %d, want 0", img.Base().LayerIdx)
	}
	// Its edits must reach the surviving record.
	img.MoveBy(5, 0)
	e.CommitInteraction()
	sched.pump()
	if got := st.PageLayers(0)[0].(*domain.ImageLayer).X; got != 105 {
		t.Fatalf("edit lost after shift: X=%v, want 105", got)
	}
}

func TestAddLayersShiftsInFlightLoads(t *testing.T) {
	doc := domain.NewSkeleton("test")
	doc.Pages[0].Layers = []domain.Layer{imgLayer("image-abc-2000x2000-png")}
	e, st, sched, _ := newTestEngine(doc)
	e.SetPage(0)

	// Prepend a record before the image load completes.
	e.AddLayers([]domain.Layer{txtLayer("cover")})
	if n := len(st.PageLayers(0)); n != 2 {
		t.Fatalf("store layers = %d", n)
	}
	sched.waitAndPump(t, 1)

	obj, ok := e.Stack().ObjectAt(1)
	if !ok {
		t.Fatal("no object bound to index 1")
	}
	img, ok := obj.(*scene.ImageObject)
	if !ok || img.Img == nil {
		t.Fatalf("index 1 should be the arrived image, got %T", obj)
	}
	if topmost, ok := e.Stack().ObjectAt(0); !ok {
		t.Fatal("no object bound to index 0")
	} else if _, isText := topmost.(*scene.TextObject); !isText {
		t.Fatalf("index 0 should be the new text, got %T", topmost)
	}
}
