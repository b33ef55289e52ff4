/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package preview rasterizes page thumbnails from the live scene stack.
// Thumbnails are screen furniture (page strips, recents), not print
// output; rendering is deliberately approximate.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"cardpress/internal/coord"
	"cardpress/internal/scene"
)

// Options controls thumbnail rendering.
type Options struct {
	Width      int  // output pixel width; height follows the page aspect
	DrawGuides bool // hairline safe-zone guides
	GuideColor color.RGBA
}

// Renderer rasterizes one page spec at a fixed thumbnail size.
type Renderer struct {
	spec coord.PageSpec
	opt  Options
}

func NewRenderer(spec coord.PageSpec, opt Options) *Renderer {
	if opt.Width <= 0 {
		opt.Width = 200
	}
	if opt.GuideColor.A == 0 {
		opt.GuideColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	}
	return &Renderer{spec: spec, opt: opt}
}

// RenderStack draws the stack bottom to top onto a white page.
func (r *Renderer) RenderStack(stack *scene.Stack) *image.RGBA {
	pw, ph := r.spec.PageWidth(), r.spec.PageHeight()
	scale := float64(r.opt.Width) / pw
	pixW := r.opt.Width
	pixH := int(math.Round(ph * scale))

	img := image.NewRGBA(image.Rect(0, 0, pixW, pixH))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)

	for _, o := range stack.Objects() {
		switch obj := o.(type) {
		case *scene.ImageObject:
			r.drawImage(img, obj, scale)
		case *scene.TextObject:
			r.drawText(img, obj, scale)
		case *scene.Decoration:
			if r.opt.DrawGuides && obj.Role == scene.DecorGuide && obj.Visible {
				r.drawGuide(img, obj, scale)
			}
		}
	}
	return img
}

func (r *Renderer) drawImage(dst *image.RGBA, obj *scene.ImageObject, scale float64) {
	b := obj.Bounds()
	x0 := int(math.Round(b.X * scale))
	y0 := int(math.Round(b.Y * scale))
	x1 := int(math.Round((b.X + b.W) * scale))
	y1 := int(math.Round((b.Y + b.H) * scale))
	if x1 <= x0 || y1 <= y0 {
		return
	}
	rect := image.Rect(x0, y0, x1, y1)
	if obj.Img == nil {
		// Not loaded yet: light gray placeholder box.
		draw.Draw(dst, rect, &image.Uniform{C: color.RGBA{220, 220, 220, 255}}, image.Point{}, draw.Over)
		return
	}
	src := obj.Img
	sr := src.Bounds()
	if obj.HasCrop() {
		cr := image.Rect(
			sr.Min.X+int(obj.CropX), sr.Min.Y+int(obj.CropY),
			sr.Min.X+int(obj.CropX+obj.CropW), sr.Min.Y+int(obj.CropY+obj.CropH),
		).Intersect(sr)
		if !cr.Empty() {
			sr = cr
		}
	}
	xdraw.ApproxBiLinear.Scale(dst, rect, src, sr, xdraw.Over, nil)
}

func (r *Renderer) drawText(dst *image.RGBA, obj *scene.TextObject, scale float64) {
	col := parseHexColor(obj.Fill)
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
	}
	x := int(math.Round(obj.Base().X * scale))
	y := int(math.Round(obj.Base().Y * scale))
	for i, line := range strings.Split(obj.Text, "\n") {
		d.Dot = fixed.P(x, y+(i+1)*13)
		d.DrawString(line)
	}
}

func (r *Renderer) drawGuide(dst *image.RGBA, obj *scene.Decoration, scale float64) {
	x0 := int(math.Round(obj.Line.X1 * scale))
	y0 := int(math.Round(obj.Line.Y1 * scale))
	x1 := int(math.Round(obj.Line.X2 * scale))
	y1 := int(math.Round(obj.Line.Y2 * scale))
	if x0 == x1 {
		if y1 < y0 {
			y0, y1 = y1, y0
		}
		for y := y0; y <= y1; y++ {
			dst.SetRGBA(x0, y, r.opt.GuideColor)
		}
		return
	}
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	for x := x0; x <= x1; x++ {
		dst.SetRGBA(x, y0, r.opt.GuideColor)
	}
}

// WritePNG renders the stack and writes it as page-<idx>.png in dir.
func (r *Renderer) WritePNG(dir string, pageIdx int, stack *scene.Stack) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure preview dir: %w", err)
	}
	name := filepath.Join(dir, fmt.Sprintf("page-%d.png", pageIdx))
	f, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, r.RenderStack(stack)); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close png: %w", err)
	}
	return name, nil
}

func parseHexColor(s string) color.RGBA {
	c := color.RGBA{A: 255}
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{A: 255}
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{A: 255}
	}
	c.R, c.G, c.B = r, g, b
	return c
}
