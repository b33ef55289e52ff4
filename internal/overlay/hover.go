/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package overlay drives the two canvas adornments that are never part
// of the persisted model: the hover highlight rectangle and the
// screen-space placeholder ghost buttons.
package overlay

import (
	"cardpress/internal/coord"
	"cardpress/internal/engine"
	"cardpress/internal/scene"
)

// hoverPadPreview is the highlight padding in preview units; it is
// converted to page units at the current scale on every show.
const hoverPadPreview = 4.0

// HoverController shows a single highlight rectangle around the
// interactive object under the pointer. The rectangle is suppressed
// over the active object and during transform gestures, and its
// geometry is recomputed from the target bounds each time it shows.
type HoverController struct {
	eng     *engine.Engine
	spec    coord.PageSpec
	target  scene.Object
	gesture bool
}

func NewHoverController(eng *engine.Engine, spec coord.PageSpec) *HoverController {
	return &HoverController{eng: eng, spec: spec}
}

// PointerEnter shows the highlight over o.
func (h *HoverController) PointerEnter(o scene.Object) {
	if h.gesture || !scene.Interactive(o) || o == h.eng.ActiveObject() {
		return
	}
	h.target = o
	hover := h.eng.Hover()
	pad := h.spec.ToPage(hoverPadPreview)
	hover.Rect = o.Bounds().Inset(-pad, -pad)
	hover.Visible = true
	h.eng.Stack().RaiseToTop(hover)
}

// PointerLeave hides the highlight when the pointer leaves its target.
func (h *HoverController) PointerLeave(o scene.Object) {
	if h.target != o {
		return
	}
	h.hide()
}

// BeginGesture suppresses the highlight for the duration of a
// scale/rotate/drag gesture.
func (h *HoverController) BeginGesture() {
	h.gesture = true
	h.hide()
}

// EndGesture lifts the suppression; the next pointer-enter shows again.
func (h *HoverController) EndGesture() { h.gesture = false }

// SelectionChanged hides the highlight when its target became active.
func (h *HoverController) SelectionChanged() {
	if h.target != nil && h.target == h.eng.ActiveObject() {
		h.hide()
	}
}

// ObjectRemoved drops the highlight if its target went away.
func (h *HoverController) ObjectRemoved(o scene.Object) {
	if h.target == o {
		h.hide()
	}
}

func (h *HoverController) hide() {
	h.target = nil
	h.eng.Hover().Visible = false
}
