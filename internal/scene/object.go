/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

// Render objects: the live, interactive, in-memory representation of
// layers during editing. Objects are ephemeral and owned by the sync
// engine for the lifetime of one hydration; each interactive object is
// tagged with the page-array index it represents. Decorations carry no
// layer index and are never extracted back into layers.

import (
	"image"
	"math"
	"strings"
)

// Kind discriminates render-object types.
type Kind int

const (
	KindImage Kind = iota + 1
	KindText
	KindGroup
	KindDecor
)

// NoLayer marks an object that is not bound to any layer record.
const NoLayer = -1

// Base holds the shared interactive state of a render object.
type Base struct {
	LayerIdx int // page-array index this object represents, or NoLayer

	X, Y           float64 // top-left position, page units
	ScaleX, ScaleY float64
	Angle          float64 // degrees, clockwise
	Opacity        float64

	Locked     bool
	Selectable bool
	Editable   bool
	LockMoveX  bool
	LockMoveY  bool
}

// Object is one item in the render stack.
type Object interface {
	Kind() Kind
	Base() *Base
	Bounds() Rect
	Hit(p Pt) bool
	// MoveBy translates the object; group objects carry their children.
	MoveBy(dx, dy float64)
}

// Interactive reports whether o takes part in selection and extraction.
func Interactive(o Object) bool {
	return o.Kind() != KindDecor && o.Base().Selectable
}

// MoveLocked translates o honoring its per-axis movement locks.
func MoveLocked(o Object, dx, dy float64) {
	b := o.Base()
	if b.LockMoveX {
		dx = 0
	}
	if b.LockMoveY {
		dy = 0
	}
	if dx == 0 && dy == 0 {
		return
	}
	o.MoveBy(dx, dy)
}

// ImageObject renders a raster image layer (plain or placeholder).
type ImageObject struct {
	base Base

	// SrcW/SrcH is the display basis in source pixels: crop size when a
	// crop is set, else the decoded image size, else the explicit layer size.
	SrcW, SrcH float64

	CropX, CropY, CropW, CropH float64

	// Addr is the resolved loadable address; SourceURL/AssetID/ResolvedURL
	// mirror the originating descriptor for extraction.
	Addr        string
	SourceURL   string
	AssetID     string
	ResolvedURL string

	Img image.Image // decoded pixels, may be nil in headless flows

	// Placeholder bookkeeping, round-tripped unchanged.
	Placeholder   bool
	FaceSpecID    string
	SourceAssetID string
	Generation    int
}

func (o *ImageObject) Kind() Kind  { return KindImage }
func (o *ImageObject) Base() *Base { return &o.base }

func (o *ImageObject) Bounds() Rect {
	w := o.SrcW * o.base.ScaleX
	h := o.SrcH * o.base.ScaleY
	return rotatedBounds(R(o.base.X, o.base.Y, w, h), o.base.Angle)
}

func (o *ImageObject) Hit(p Pt) bool { return o.Bounds().Contains(p) }

func (o *ImageObject) MoveBy(dx, dy float64) {
	o.base.X += dx
	o.base.Y += dy
}

// HasCrop reports whether a source-space crop rectangle is set.
func (o *ImageObject) HasCrop() bool { return o.CropW > 0 && o.CropH > 0 }

// SetCrop applies a source-pixel crop rectangle and adjusts the display
// basis so on-page size follows the crop.
func (o *ImageObject) SetCrop(x, y, w, h float64) {
	o.CropX, o.CropY, o.CropW, o.CropH = x, y, w, h
	if w > 0 && h > 0 {
		o.SrcW, o.SrcH = w, h
	}
}

// TextObject renders a styled text layer.
type TextObject struct {
	base Base

	Text       string
	FontFamily string
	FontSize   float64
	FontWeight string
	FontStyle  string
	Underline  bool
	Fill       string
	TextAlign  string
	LineHeight float64
}

func (o *TextObject) Kind() Kind  { return KindText }
func (o *TextObject) Base() *Base { return &o.base }

// Bounds approximates the text box from glyph metrics; exact shaping is
// a concern of the drawing surface, not the sync engine.
func (o *TextObject) Bounds() Rect {
	lines := strings.Split(o.Text, "\n")
	longest := 0
	for _, ln := range lines {
		if n := len([]rune(ln)); n > longest {
			longest = n
		}
	}
	lh := o.LineHeight
	if lh <= 0 {
		lh = 1.16
	}
	w := float64(longest) * o.FontSize * 0.6 * o.base.ScaleX
	h := float64(len(lines)) * o.FontSize * lh * o.base.ScaleY
	return rotatedBounds(R(o.base.X, o.base.Y, w, h), o.base.Angle)
}

func (o *TextObject) Hit(p Pt) bool { return o.Bounds().Contains(p) }

func (o *TextObject) MoveBy(dx, dy float64) {
	o.base.X += dx
	o.base.Y += dy
}

// Group is a transient multi-object container. Pasting dissolves groups
// into flat selections, so groups never map to a persisted layer.
type Group struct {
	base     Base
	Children []Object
}

func NewGroup(children ...Object) *Group {
	g := &Group{base: Base{LayerIdx: NoLayer, ScaleX: 1, ScaleY: 1, Opacity: 1, Selectable: true, Editable: true}}
	g.Children = append(g.Children, children...)
	return g
}

func (g *Group) Kind() Kind  { return KindGroup }
func (g *Group) Base() *Base { return &g.base }

func (g *Group) Bounds() Rect {
	var b Rect
	for i, c := range g.Children {
		if i == 0 {
			b = c.Bounds()
		} else {
			b = b.Union(c.Bounds())
		}
	}
	return b
}

func (g *Group) Hit(p Pt) bool {
	for i := len(g.Children) - 1; i >= 0; i-- {
		if g.Children[i].Hit(p) {
			return true
		}
	}
	return false
}

// MoveBy translates the group root; children move with it.
func (g *Group) MoveBy(dx, dy float64) {
	g.base.X += dx
	g.base.Y += dy
	for _, c := range g.Children {
		c.MoveBy(dx, dy)
	}
}

// DecorRole distinguishes the non-interactive stack furniture.
type DecorRole int

const (
	DecorBackdrop DecorRole = iota + 1
	DecorGuide
	DecorHover
)

// Decoration is a non-interactive, non-extracted stack element: the page
// backdrop, a safe-zone guide segment, or the hover highlight rectangle.
type Decoration struct {
	base    Base
	Role    DecorRole
	Rect    Rect
	Line    Segment // for DecorGuide
	Visible bool
}

func NewDecoration(role DecorRole) *Decoration {
	return &Decoration{base: Base{LayerIdx: NoLayer}, Role: role}
}

func (d *Decoration) Kind() Kind  { return KindDecor }
func (d *Decoration) Base() *Base { return &d.base }

func (d *Decoration) Bounds() Rect {
	if d.Role == DecorGuide {
		x := math.Min(d.Line.X1, d.Line.X2)
		y := math.Min(d.Line.Y1, d.Line.Y2)
		return Rect{X: x, Y: y, W: math.Abs(d.Line.X2 - d.Line.X1), H: math.Abs(d.Line.Y2 - d.Line.Y1)}
	}
	return d.Rect
}

func (d *Decoration) Hit(Pt) bool { return false }

func (d *Decoration) MoveBy(dx, dy float64) {
	d.Rect.X += dx
	d.Rect.Y += dy
}
