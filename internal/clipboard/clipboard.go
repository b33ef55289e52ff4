/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package clipboard routes edit commands (copy/cut/paste/delete and
// arrow nudges) for a mounted engine. Content is held as serialized
// layer records; the tagged-union codec is the allow-list, so nothing
// outside the known layer fields ever crosses the clipboard.
package clipboard

import (
	"errors"
	"log/slog"

	"cardpress/internal/domain"
	"cardpress/internal/engine"
	applog "cardpress/internal/log"
	"cardpress/internal/scene"
)

// ErrEmptyClipboard is returned by Paste when nothing was copied.
var ErrEmptyClipboard = errors.New("clipboard empty")

// pasteOffset is the per-paste cascade step in page units, applied
// cumulatively: first paste lands at +10,+10, the second at +20,+20.
const pasteOffset = 10.0

const (
	nudgeStep      = 1.0
	nudgeStepLarge = 10.0
)

// Dispatcher owns the clipboard content and the key-command routing for
// one engine. Bind exactly one dispatcher per mounted editor.
type Dispatcher struct {
	eng        *engine.Engine
	entries    [][]byte
	pasteCount int
	log        *slog.Logger
}

func NewDispatcher(eng *engine.Engine) *Dispatcher {
	return &Dispatcher{eng: eng, log: applog.WithComponent("clipboard")}
}

// flatten expands groups into their members; groups themselves never
// reach the clipboard or the layer list.
func flatten(objs []scene.Object) []scene.Object {
	var out []scene.Object
	for _, o := range objs {
		if g, ok := o.(*scene.Group); ok {
			out = append(out, flatten(g.Children)...)
			continue
		}
		out = append(out, o)
	}
	return out
}

// Copy serializes the current selection. A group selection is
// decomposed into its members. Resets the paste cascade.
func (d *Dispatcher) Copy() error {
	objs := flatten(d.eng.Selection())
	if len(objs) == 0 {
		return nil
	}
	entries := make([][]byte, 0, len(objs))
	for _, o := range objs {
		layer := d.eng.ExtractLayer(o)
		if layer == nil {
			continue
		}
		raw, err := domain.MarshalLayer(layer)
		if err != nil {
			return err
		}
		entries = append(entries, raw)
	}
	if len(entries) == 0 {
		return nil
	}
	d.entries = entries
	d.pasteCount = 0
	d.log.Debug("copied", slog.Int("objects", len(entries)))
	return nil
}

// Cut copies the selection then removes it. The cascade starts over so
// the next paste lands one step from the original position.
func (d *Dispatcher) Cut() error {
	if err := d.Copy(); err != nil {
		return err
	}
	d.Delete()
	d.pasteCount = 0
	return nil
}

// Paste materializes the clipboard content at a cumulative (+10,+10)
// offset per paste, topmost in the layer list, and selects the result
// as a flat multi-selection. Pasted image layers load asynchronously
// and join the selection as they arrive.
func (d *Dispatcher) Paste() error {
	if len(d.entries) == 0 {
		return ErrEmptyClipboard
	}
	d.pasteCount++
	off := pasteOffset * float64(d.pasteCount)

	layers := make([]domain.Layer, 0, len(d.entries))
	for _, raw := range d.entries {
		layer, err := domain.UnmarshalLayer(raw)
		if err != nil {
			// Clipboard content is our own serialization; a failure here
			// means the entry is unusable, not the paste.
			d.log.Warn("clipboard entry dropped", slog.Any("err", err))
			continue
		}
		offsetLayer(layer, off, off)
		layers = append(layers, layer)
	}
	if len(layers) == 0 {
		return ErrEmptyClipboard
	}
	d.eng.AddLayers(layers)
	d.eng.SelectTopmost(len(layers))
	d.eng.CommitInteraction()
	d.log.Debug("pasted", slog.Int("objects", len(layers)), slog.Float64("offset", off))
	return nil
}

// Delete removes the selection, including grouped members, and commits.
func (d *Dispatcher) Delete() {
	objs := flatten(d.eng.Selection())
	if len(objs) == 0 {
		return
	}
	for _, o := range objs {
		d.eng.RemoveObject(o)
	}
	d.eng.ClearSelection()
	d.eng.CommitInteraction()
}

func offsetLayer(l domain.Layer, dx, dy float64) {
	switch t := l.(type) {
	case *domain.ImageLayer:
		t.X += dx
		t.Y += dy
	case *domain.TextLayer:
		t.X += dx
		t.Y += dy
	case *domain.PlaceholderLayer:
		t.X += dx
		t.Y += dy
	}
}

// HandleKey routes a key command. Crop sessions take precedence; while
// one is active every key goes to the crop tool and nothing else runs.
// Returns true when the key was consumed.
func (d *Dispatcher) HandleKey(key string, ctrl, shift bool) bool {
	if d.eng.ForwardKey(key) {
		return true
	}
	if ctrl {
		switch key {
		case "c", "C":
			return d.Copy() == nil
		case "x", "X":
			return d.Cut() == nil
		case "v", "V":
			if err := d.Paste(); err != nil && !errors.Is(err, ErrEmptyClipboard) {
				return false
			}
			return true
		}
		return false
	}
	switch key {
	case "Delete", "Backspace":
		d.Delete()
		return true
	case "Left", "Right", "Up", "Down":
		step := nudgeStep
		if shift {
			step = nudgeStepLarge
		}
		dx, dy := 0.0, 0.0
		switch key {
		case "Left":
			dx = -step
		case "Right":
			dx = step
		case "Up":
			dy = -step
		case "Down":
			dy = step
		}
		d.eng.Nudge(dx, dy)
		return true
	}
	return false
}
