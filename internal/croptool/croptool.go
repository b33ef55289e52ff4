/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package croptool runs an in-place crop session on a single image
// object. While a session is active the hosting editor must route key
// input here and suppress its own shortcuts; page changes abort the
// session rather than leaking it across pages.
package croptool

import (
	"errors"
	"log/slog"

	applog "cardpress/internal/log"
	"cardpress/internal/scene"
)

// cropStep is the source-pixel step for keyboard crop adjustments.
const cropStep = 8.0

var (
	ErrActive   = errors.New("crop session already active")
	ErrInactive = errors.New("no active crop session")
	ErrNotImage = errors.New("crop target must be an image")
)

// Tool holds at most one crop session at a time.
type Tool struct {
	target *scene.ImageObject
	// full source size in pixels; the crop window pans within it
	fullW, fullH float64
	// saved state for Cancel/Abort
	origX, origY, origW, origH float64
	origSrcW, origSrcH         float64
	log                        *slog.Logger
}

func New() *Tool {
	return &Tool{log: applog.WithComponent("croptool")}
}

// IsActive reports whether a session is running.
func (t *Tool) IsActive() bool { return t.target != nil }

// Begin starts cropping the given object.
func (t *Tool) Begin(obj scene.Object) error {
	if t.target != nil {
		return ErrActive
	}
	img, ok := obj.(*scene.ImageObject)
	if !ok {
		return ErrNotImage
	}
	t.target = img
	t.origX, t.origY = img.CropX, img.CropY
	t.origW, t.origH = img.CropW, img.CropH
	t.origSrcW, t.origSrcH = img.SrcW, img.SrcH
	switch {
	case img.Img != nil:
		b := img.Img.Bounds()
		t.fullW, t.fullH = float64(b.Dx()), float64(b.Dy())
	case img.HasCrop():
		t.fullW, t.fullH = img.CropX+img.CropW, img.CropY+img.CropH
	default:
		t.fullW, t.fullH = img.SrcW, img.SrcH
	}
	if !img.HasCrop() {
		// No crop yet: start from the full source.
		img.SetCrop(0, 0, t.fullW, t.fullH)
	}
	t.log.Debug("crop session started")
	return nil
}

// Commit ends the session keeping the current crop.
func (t *Tool) Commit() error {
	if t.target == nil {
		return ErrInactive
	}
	t.target = nil
	t.log.Debug("crop session committed")
	return nil
}

// Cancel ends the session and restores the pre-session crop.
func (t *Tool) Cancel() error {
	if t.target == nil {
		return ErrInactive
	}
	t.restore()
	t.log.Debug("crop session cancelled")
	return nil
}

// Abort tears the session down without error even when none is active.
// Page switches and unmounts call this unconditionally.
func (t *Tool) Abort() {
	if t.target == nil {
		return
	}
	t.restore()
	t.log.Debug("crop session aborted")
}

func (t *Tool) restore() {
	t.target.SetCrop(t.origX, t.origY, t.origW, t.origH)
	t.target.SrcW, t.target.SrcH = t.origSrcW, t.origSrcH
	t.target = nil
}

// HandleKey consumes a key while a session is active. Arrows pan the
// crop window, enter commits, escape cancels. Returns false when the
// key is not a crop key (or no session runs) so the caller can treat
// it normally.
func (t *Tool) HandleKey(key string) bool {
	if t.target == nil {
		return false
	}
	switch key {
	case "Return", "Enter":
		_ = t.Commit()
	case "Escape":
		_ = t.Cancel()
	case "Left":
		t.pan(-cropStep, 0)
	case "Right":
		t.pan(cropStep, 0)
	case "Up":
		t.pan(0, -cropStep)
	case "Down":
		t.pan(0, cropStep)
	default:
		return false
	}
	return true
}

func (t *Tool) pan(dx, dy float64) {
	img := t.target
	x := clamp(img.CropX+dx, 0, t.fullW-img.CropW)
	y := clamp(img.CropY+dy, 0, t.fullH-img.CropH)
	img.SetCrop(x, y, img.CropW, img.CropH)
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
