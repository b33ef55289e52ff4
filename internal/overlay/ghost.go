/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package overlay

import (
	"cardpress/internal/coord"
	"cardpress/internal/scene"
	"cardpress/internal/store"
)

// GhostElement is one screen-space affordance floated over a
// placeholder object ("add a face here"). The concrete element lives in
// the windowing layer; this controller only positions and toggles it.
type GhostElement interface {
	// MoveTo positions the element, in preview coordinates of the
	// placeholder's bounding-box center.
	MoveTo(x, y float64)
	SetVisible(visible bool)
	Detach()
}

// GhostController keeps one ghost element per placeholder object in the
// scene. Elements follow their object through every transform and
// viewport change, show only on hover, hide while a selection is
// active, and disappear for good once the user dismisses the coach
// mark. Releasing the pointer on a still-unfilled placeholder requests
// the face panel and nothing else.
type GhostController struct {
	st   *store.Store
	spec coord.PageSpec

	ghosts    map[*scene.ImageObject]GhostElement
	hovered   map[*scene.ImageObject]bool
	selection bool
	dismissed bool
}

func NewGhostController(st *store.Store, spec coord.PageSpec) *GhostController {
	return &GhostController{
		st:      st,
		spec:    spec,
		ghosts:  make(map[*scene.ImageObject]GhostElement),
		hovered: make(map[*scene.ImageObject]bool),
	}
}

// Attach binds a ghost element to a placeholder object. Non-placeholder
// objects are ignored.
func (g *GhostController) Attach(obj *scene.ImageObject, el GhostElement) {
	if !obj.Placeholder {
		return
	}
	g.ghosts[obj] = el
	g.Reposition(obj)
	el.SetVisible(false)
}

// Reposition recomputes the element position from the object bounds.
// Call after every move, scale, rotate, scroll or viewport resize.
func (g *GhostController) Reposition(obj *scene.ImageObject) {
	el, ok := g.ghosts[obj]
	if !ok {
		return
	}
	b := obj.Bounds()
	cx := g.spec.ToPreview(b.X + b.W/2)
	cy := g.spec.ToPreview(b.Y + b.H/2)
	el.MoveTo(cx, cy)
}

// RepositionAll refreshes every ghost, for scroll and resize events.
func (g *GhostController) RepositionAll() {
	for obj := range g.ghosts {
		g.Reposition(obj)
	}
}

// HoverChanged shows or hides the ghost as the pointer crosses its
// placeholder.
func (g *GhostController) HoverChanged(obj *scene.ImageObject, hovered bool) {
	g.hovered[obj] = hovered
	g.apply(obj)
}

// SelectionActive hides all ghosts while any selection is active.
func (g *GhostController) SelectionActive(active bool) {
	g.selection = active
	for obj := range g.ghosts {
		g.apply(obj)
	}
}

// DismissCoachMark permanently hides every ghost for this session.
func (g *GhostController) DismissCoachMark() {
	g.dismissed = true
	for obj := range g.ghosts {
		g.apply(obj)
	}
}

func (g *GhostController) apply(obj *scene.ImageObject) {
	el, ok := g.ghosts[obj]
	if !ok {
		return
	}
	el.SetVisible(g.hovered[obj] && !g.selection && !g.dismissed)
}

// PointerUp handles a pointer release on the placeholder: while still
// unfilled it requests the face panel; once a face has been applied the
// ghost is moot and nothing happens.
func (g *GhostController) PointerUp(obj *scene.ImageObject) {
	if _, ok := g.ghosts[obj]; !ok {
		return
	}
	if obj.Placeholder {
		g.st.SetDrawerState(store.DrawerFacePanel)
	}
}

// ObjectRemoved detaches and forgets the ghost for a removed object.
func (g *GhostController) ObjectRemoved(obj *scene.ImageObject) {
	if el, ok := g.ghosts[obj]; ok {
		el.Detach()
		delete(g.ghosts, obj)
		delete(g.hovered, obj)
	}
}

// Reset detaches every ghost, for page changes and unmount.
func (g *GhostController) Reset() {
	for obj, el := range g.ghosts {
		el.Detach()
		delete(g.ghosts, obj)
		delete(g.hovered, obj)
	}
}
