/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

// Stack is the single render-object stack for the current page, ordered
// bottom to top. Layer objects sit in descending LayerIdx order (layer
// index 0 is topmost); decorations live at the bottom except the hover
// rectangle, which is kept raised.

type Stack struct {
	objs []Object
}

func NewStack() *Stack { return &Stack{} }

func (s *Stack) Len() int { return len(s.objs) }

// Objects returns the stack bottom to top. The slice is shared; callers
// must not mutate it.
func (s *Stack) Objects() []Object { return s.objs }

// Push appends an object at the top of the stack.
func (s *Stack) Push(o Object) { s.objs = append(s.objs, o) }

// InsertLayerObject places o immediately above the next-lower
// still-present layer index, preserving gaps left by skipped layers.
// Asynchronously resolved images may land in any order; the slot scan
// keeps z-order stable regardless.
func (s *Stack) InsertLayerObject(o Object) {
	idx := o.Base().LayerIdx
	pos := len(s.objs)
	for i, cur := range s.objs {
		if cur.Kind() == KindDecor {
			if cur.(*Decoration).Role == DecorHover {
				pos = i
				break
			}
			continue
		}
		if cur.Base().LayerIdx < idx {
			pos = i
			break
		}
	}
	s.objs = append(s.objs, nil)
	copy(s.objs[pos+1:], s.objs[pos:])
	s.objs[pos] = o
}

// Remove deletes o from the stack; returns false if absent.
func (s *Stack) Remove(o Object) bool {
	for i, cur := range s.objs {
		if cur == o {
			s.objs = append(s.objs[:i], s.objs[i+1:]...)
			return true
		}
	}
	return false
}

// RaiseToTop moves o to the top of the stack.
func (s *Stack) RaiseToTop(o Object) {
	if s.Remove(o) {
		s.objs = append(s.objs, o)
	}
}

// LayerObjects returns all layer-bound objects, bottom to top.
func (s *Stack) LayerObjects() []Object {
	var out []Object
	for _, o := range s.objs {
		if o.Kind() != KindDecor && o.Base().LayerIdx != NoLayer {
			out = append(out, o)
		}
	}
	return out
}

// ObjectAt returns the layer object carrying the given layer index.
func (s *Stack) ObjectAt(layerIdx int) (Object, bool) {
	for _, o := range s.objs {
		if o.Kind() != KindDecor && o.Base().LayerIdx == layerIdx {
			return o, true
		}
	}
	return nil, false
}

// HitTopmost returns the topmost interactive object under p.
func (s *Stack) HitTopmost(p Pt) (Object, bool) {
	for i := len(s.objs) - 1; i >= 0; i-- {
		o := s.objs[i]
		if o.Kind() == KindDecor || !o.Base().Selectable {
			continue
		}
		if o.Hit(p) {
			return o, true
		}
	}
	return nil, false
}

// ResetKeeping drops every object except those keep returns true for.
func (s *Stack) ResetKeeping(keep func(Object) bool) {
	kept := s.objs[:0]
	for _, o := range s.objs {
		if keep != nil && keep(o) {
			kept = append(kept, o)
		}
	}
	s.objs = kept
}

// ShiftLayerIdxAbove adds delta to every layer index greater than or
// equal to threshold. Used when layers are spliced in or out of the page
// list so surviving objects keep pointing at their records.
func (s *Stack) ShiftLayerIdxAbove(threshold, delta int) {
	for _, o := range s.objs {
		if o.Kind() == KindDecor {
			continue
		}
		if b := o.Base(); b.LayerIdx != NoLayer && b.LayerIdx >= threshold {
			b.LayerIdx += delta
		}
	}
}
