/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package engine synchronizes the persisted layer model with the live
// render-object scene. Hydration turns a page's layer list into scene
// objects; extraction reads edited objects back into layer records and
// commits them through the store in one batch.
//
// The engine is cooperative and single-threaded: every method must be
// called from the editor's event loop. Image loads run on goroutines
// but post their completions back through the Scheduler, so scene and
// state transitions never race.
package engine

import (
	"context"
	"errors"
	"image"
	"log/slog"

	"cardpress/internal/coord"
	"cardpress/internal/domain"
	applog "cardpress/internal/log"
	"cardpress/internal/resolver"
	"cardpress/internal/scene"
)

// ErrStaleResult marks an async completion whose hydrate pass has been
// superseded. The result is discarded, never applied.
var ErrStaleResult = errors.New("stale async result")

// State is the engine's re-entrancy phase. Extraction requests during
// Hydrating are ignored; page changes during ApplyingEdit are deferred
// until the flag clears on the next scheduler tick.
type State int

const (
	StateIdle State = iota
	StateHydrating
	StateApplyingEdit
)

func (s State) String() string {
	switch s {
	case StateHydrating:
		return "hydrating"
	case StateApplyingEdit:
		return "applying-edit"
	default:
		return "idle"
	}
}

// Scheduler posts a function onto the editor's event loop. The UI hands
// in fyne.Do; tests pump a queue by hand.
type Scheduler interface {
	Post(fn func())
}

// Store is the engine's view of the session state store.
type Store interface {
	PageLayers(pageIdx int) []domain.Layer
	SetPageLayers(pageIdx int, layers []domain.Layer)
	PushHistory(pageIdx int)
}

// ImageLoader fetches and decodes image data for a resolved address.
type ImageLoader interface {
	Load(ctx context.Context, addr string) (image.Image, error)
}

// CropTool is the opaque crop-session boundary. The engine only starts,
// tears down and routes keys; crop geometry is the tool's business.
type CropTool interface {
	Begin(obj scene.Object) error
	Commit() error
	Cancel() error
	Abort()
	IsActive() bool
	HandleKey(key string) bool
}

// Observer is notified after every completed render pass, including
// async image arrivals.
type Observer func(pageIdx int, stack *scene.Stack)

const noPage = -1

// Engine drives one page scene at a time.
type Engine struct {
	store  Store
	res    *resolver.Resolver
	loader ImageLoader
	sched  Scheduler
	crop   CropTool
	spec   coord.PageSpec

	stack *scene.Stack
	hover *scene.Decoration

	// pending holds image objects whose loads are in flight. Their layer
	// indices are shifted alongside the stack's when records are spliced
	// in or out, so late arrivals still bind to the right record.
	pending      []*scene.ImageObject
	selectArrive map[*scene.ImageObject]bool

	state       State
	page        int
	hydrated    bool
	dirty       bool
	generation  int
	pendingPage int

	selection []scene.Object
	active    scene.Object

	observers []Observer

	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger
}

// New builds an unmounted engine. Call SetPage to hydrate a page.
func New(st Store, res *resolver.Resolver, loader ImageLoader, sched Scheduler, crop CropTool, spec coord.PageSpec) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:        st,
		res:          res,
		loader:       loader,
		sched:        sched,
		crop:         crop,
		spec:         spec,
		stack:        scene.NewStack(),
		hover:        scene.NewDecoration(scene.DecorHover),
		page:         noPage,
		pendingPage:  noPage,
		selectArrive: make(map[*scene.ImageObject]bool),
		ctx:          ctx,
		cancel:       cancel,
		log:          applog.WithComponent("engine"),
	}
	e.stack.Push(e.hover)
	return e
}

func (e *Engine) State() State        { return e.state }
func (e *Engine) Page() int           { return e.page }
func (e *Engine) Stack() *scene.Stack { return e.stack }

// Hover exposes the hover decoration for the overlay controller.
func (e *Engine) Hover() *scene.Decoration { return e.hover }

// CropActive reports whether a crop session is running.
func (e *Engine) CropActive() bool { return e.crop.IsActive() }

// OnRenderPass registers a render-pass observer.
func (e *Engine) OnRenderPass(fn Observer) {
	e.observers = append(e.observers, fn)
}

func (e *Engine) notifyRender() {
	for _, fn := range e.observers {
		fn(e.page, e.stack)
	}
}

// SetPage switches the scene to the given page. While an edit is being
// applied the change is deferred, not dropped; it re-runs when the flag
// clears. Switching to the already-hydrated, unmutated page is a no-op.
func (e *Engine) SetPage(pageIdx int) {
	if e.state == StateApplyingEdit {
		e.pendingPage = pageIdx
		e.log.Debug("page change deferred", slog.Int("page", pageIdx))
		return
	}
	e.crop.Abort()
	if pageIdx == e.page && e.hydrated && !e.dirty {
		return
	}
	e.hydrate(pageIdx)
}

// Rehydrate rebuilds the current page scene from the store.
func (e *Engine) Rehydrate() {
	if e.page == noPage || e.state == StateApplyingEdit {
		return
	}
	e.hydrate(e.page)
}

func (e *Engine) hydrate(pageIdx int) {
	e.state = StateHydrating
	e.generation++
	gen := e.generation
	e.page = pageIdx
	e.selection = nil
	e.active = nil
	e.pending = nil
	e.selectArrive = make(map[*scene.ImageObject]bool)

	hover := e.hover
	e.stack.ResetKeeping(func(o scene.Object) bool { return o == hover })
	hover.Visible = false

	// Page furniture under everything: backdrop, then safe-zone guides.
	backdrop := scene.NewDecoration(scene.DecorBackdrop)
	backdrop.Rect = e.spec.PageRect()
	e.stack.Push(backdrop)
	for _, seg := range e.spec.SafeZoneSegments() {
		g := scene.NewDecoration(scene.DecorGuide)
		g.Line = seg
		g.Visible = true
		e.stack.Push(g)
	}
	e.stack.Remove(hover)
	e.stack.Push(hover)

	layers := e.store.PageLayers(pageIdx)
	// Reverse index order: index 0 is topmost, so the walk starts at the
	// bottommost record. Image objects arrive asynchronously and slot in
	// by layer index, whatever order the loads complete in.
	for i := len(layers) - 1; i >= 0; i-- {
		e.spawnLayer(layers[i], i, gen)
	}

	e.state = StateIdle
	e.hydrated = true
	e.dirty = false
	e.log.Debug("page hydrated", slog.Int("page", pageIdx), slog.Int("layers", len(layers)))
	e.notifyRender()
}

func (e *Engine) spawnLayer(layer domain.Layer, idx, gen int) {
	switch l := layer.(type) {
	case *domain.TextLayer:
		e.stack.InsertLayerObject(textObject(l, idx))
		e.stack.RaiseToTop(e.hover)
	case *domain.ImageLayer:
		e.spawnImage(l, nil, idx, gen)
	case *domain.PlaceholderLayer:
		e.spawnImage(&l.ImageLayer, l, idx, gen)
	}
}

func (e *Engine) spawnImage(l *domain.ImageLayer, ph *domain.PlaceholderLayer, idx, gen int) {
	addr, err := e.res.Resolve(l.Source)
	if err != nil {
		// Unresolvable now; the record stays in the list and is retried
		// on the next hydrate.
		e.log.Debug("image source unresolvable, skipped", slog.Int("layer", idx))
		return
	}
	obj := imageObject(l, ph, idx)
	obj.Addr = addr
	e.pending = append(e.pending, obj)
	go func() {
		img, lerr := e.loader.Load(e.ctx, addr)
		e.sched.Post(func() {
			e.completeImageLoad(gen, obj, img, lerr)
		})
	}()
}

func (e *Engine) completeImageLoad(gen int, obj *scene.ImageObject, img image.Image, err error) {
	e.dropPending(obj)
	if gen != e.generation {
		e.log.Debug("image load discarded", slog.Any("err", ErrStaleResult))
		return
	}
	if err != nil {
		e.log.Warn("image load failed", slog.String("addr", obj.Addr), slog.Any("err", err))
		return
	}
	if obj.Base().LayerIdx == scene.NoLayer {
		// Record deleted while the load was in flight.
		return
	}
	obj.Img = img
	if !obj.HasCrop() && obj.SrcW == 0 {
		b := img.Bounds()
		obj.SrcW, obj.SrcH = float64(b.Dx()), float64(b.Dy())
	}
	e.stack.InsertLayerObject(obj)
	e.stack.RaiseToTop(e.hover)
	if e.selectArrive[obj] {
		delete(e.selectArrive, obj)
		if scene.Interactive(obj) {
			e.selection = append(e.selection, obj)
			e.active = nil
			if len(e.selection) == 1 {
				e.active = obj
			}
		}
	}
	e.notifyRender()
}

func (e *Engine) dropPending(obj *scene.ImageObject) {
	for i, p := range e.pending {
		if p == obj {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return
		}
	}
}

// shiftPending mirrors Stack.ShiftLayerIdxAbove for objects whose loads
// have not completed yet.
func (e *Engine) shiftPending(threshold, delta int) {
	for _, p := range e.pending {
		if b := p.Base(); b.LayerIdx != scene.NoLayer && b.LayerIdx >= threshold {
			b.LayerIdx += delta
		}
	}
}

// CommitInteraction extracts every layer-bound object back into its
// record and rewrites the page's layer list in one batch. The page's
// pre-edit state is pushed to history first, so one undo reverts the
// whole batch. The ApplyingEdit flag stays set until the next
// scheduler tick so reactive re-hydrations of this same mutation are
// suppressed; a page change arriving in that window runs right after.
func (e *Engine) CommitInteraction() {
	if e.state == StateHydrating {
		e.log.Debug("extraction ignored during hydration")
		return
	}
	if e.page == noPage {
		return
	}
	e.state = StateApplyingEdit

	e.store.PushHistory(e.page)
	layers := e.extractInto(e.store.PageLayers(e.page))
	e.store.SetPageLayers(e.page, layers)
	e.dirty = false

	e.sched.Post(func() {
		e.state = StateIdle
		if p := e.pendingPage; p != noPage {
			e.pendingPage = noPage
			e.SetPage(p)
		}
	})
	e.notifyRender()
}

// ExtractAll returns the current page's layer list with every scene
// object's state merged in, without committing to the store.
func (e *Engine) ExtractAll() []domain.Layer {
	if e.page == noPage {
		return nil
	}
	return e.extractInto(e.store.PageLayers(e.page))
}

// ExtractLayer returns one object's layer record with the scene state
// merged in, without committing. Nil for unbound or mismatched objects.
func (e *Engine) ExtractLayer(o scene.Object) domain.Layer {
	if e.page == noPage {
		return nil
	}
	idx := o.Base().LayerIdx
	layers := e.store.PageLayers(e.page)
	if idx < 0 || idx >= len(layers) {
		return nil
	}
	return extractObject(o, layers[idx])
}

func (e *Engine) extractInto(layers []domain.Layer) []domain.Layer {
	for _, o := range e.stack.LayerObjects() {
		idx := o.Base().LayerIdx
		if idx < 0 || idx >= len(layers) {
			continue
		}
		if merged := extractObject(o, layers[idx]); merged != nil {
			layers[idx] = merged
		}
	}
	return layers
}

// MarkDirty records an in-scene mutation that has not been committed.
func (e *Engine) MarkDirty() { e.dirty = true }

// AddLayers prepends new records at index 0 (topmost) and spawns their
// objects. Existing objects shift up by the insert count.
func (e *Engine) AddLayers(newLayers []domain.Layer) {
	if e.page == noPage || len(newLayers) == 0 {
		return
	}
	layers := e.store.PageLayers(e.page)
	e.stack.ShiftLayerIdxAbove(0, len(newLayers))
	e.shiftPending(0, len(newLayers))
	merged := make([]domain.Layer, 0, len(layers)+len(newLayers))
	merged = append(merged, domain.CloneLayers(newLayers)...)
	merged = append(merged, layers...)
	e.store.SetPageLayers(e.page, merged)
	for i := len(newLayers) - 1; i >= 0; i-- {
		e.spawnLayer(merged[i], i, e.generation)
	}
	e.dirty = true
}

// RemoveObject deletes the object and splices its record out of the
// layer list. Higher-indexed survivors shift down to keep pointing at
// their records.
func (e *Engine) RemoveObject(o scene.Object) {
	if e.page == noPage {
		return
	}
	idx := o.Base().LayerIdx
	if !e.stack.Remove(o) {
		return
	}
	e.deselect(o)
	if idx == scene.NoLayer {
		return
	}
	layers := e.store.PageLayers(e.page)
	if idx >= 0 && idx < len(layers) {
		layers = append(layers[:idx], layers[idx+1:]...)
		e.store.SetPageLayers(e.page, layers)
	}
	e.stack.ShiftLayerIdxAbove(idx, -1)
	e.shiftPending(idx, -1)
	e.dirty = true
}

// Nudge moves the selection by the given page-unit delta honoring
// per-axis movement locks, then commits. Nudges are deliberate user
// edits, so they run even while a previous edit's flag is still set.
func (e *Engine) Nudge(dx, dy float64) {
	if len(e.selection) == 0 {
		return
	}
	for _, o := range e.selection {
		scene.MoveLocked(o, dx, dy)
	}
	if e.state == StateApplyingEdit {
		e.state = StateIdle
	}
	e.CommitInteraction()
}

// Select makes o the active selection.
func (e *Engine) Select(o scene.Object) {
	if !scene.Interactive(o) {
		return
	}
	e.selection = []scene.Object{o}
	e.active = o
	e.clearArrivals()
	e.hover.Visible = false
}

// SelectTopmost selects the objects bound to the top n layer records as
// a flat multi-selection. Image objects among them whose loads are
// still in flight join the selection when they arrive.
func (e *Engine) SelectTopmost(n int) {
	var objs []scene.Object
	for i := 0; i < n; i++ {
		if o, ok := e.stack.ObjectAt(i); ok {
			objs = append(objs, o)
		}
	}
	e.SelectMany(objs)
	for _, p := range e.pending {
		if idx := p.Base().LayerIdx; idx >= 0 && idx < n {
			e.selectArrive[p] = true
		}
	}
}

// SelectMany replaces the selection with a flat multi-selection.
func (e *Engine) SelectMany(objs []scene.Object) {
	e.selection = e.selection[:0]
	for _, o := range objs {
		if scene.Interactive(o) {
			e.selection = append(e.selection, o)
		}
	}
	e.active = nil
	if len(e.selection) == 1 {
		e.active = e.selection[0]
	}
	e.clearArrivals()
	e.hover.Visible = false
}

// ClearSelection drops the active selection.
func (e *Engine) ClearSelection() {
	e.selection = nil
	e.active = nil
	e.clearArrivals()
}

func (e *Engine) clearArrivals() {
	if len(e.selectArrive) > 0 {
		e.selectArrive = make(map[*scene.ImageObject]bool)
	}
}

func (e *Engine) deselect(o scene.Object) {
	for i, cur := range e.selection {
		if cur == o {
			e.selection = append(e.selection[:i], e.selection[i+1:]...)
			break
		}
	}
	if e.active == o {
		e.active = nil
	}
}

// Selection returns the current selection, bottom to top.
func (e *Engine) Selection() []scene.Object { return e.selection }

// ActiveObject returns the single active object, if any.
func (e *Engine) ActiveObject() scene.Object { return e.active }

// BeginCrop starts a crop session on the active object.
func (e *Engine) BeginCrop() error {
	if e.active == nil {
		return errors.New("no active object")
	}
	return e.crop.Begin(e.active)
}

// ForwardKey routes a key to the crop tool while a session is active.
// Returns true when consumed. Commit and cancel keys end the session
// and the result is committed like any other edit.
func (e *Engine) ForwardKey(key string) bool {
	if !e.crop.IsActive() {
		return false
	}
	if !e.crop.HandleKey(key) {
		return false
	}
	if !e.crop.IsActive() {
		// Session ended by the key: persist the outcome.
		e.CommitInteraction()
	}
	return true
}

// Unmount tears the engine down: aborts any crop session, invalidates
// in-flight loads and empties the scene.
func (e *Engine) Unmount() {
	e.crop.Abort()
	e.cancel()
	e.generation++
	e.stack.ResetKeeping(nil)
	e.selection = nil
	e.active = nil
	e.pending = nil
	e.selectArrive = make(map[*scene.ImageObject]bool)
	e.page = noPage
	e.pendingPage = noPage
	e.hydrated = false
	e.dirty = false
	e.state = StateIdle
	e.log.Debug("engine unmounted")
}
