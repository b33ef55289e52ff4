/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package coord defines the fixed card page geometry and the mapping
// between page space (device units at print resolution) and preview
// space. All interactive geometry is authored in page space; the render
// surface applies one uniform scale, so pointer and overlay math only
// ever multiplies or divides by a single factor.
package coord

import (
	"math"

	"cardpress/internal/scene"
)

// MMPerInch converts millimetres to inches.
const MMPerInch = 25.4

// PageSpec is a fixed page size in print units at a fixed resolution.
type PageSpec struct {
	TrimWidthMM  float64
	TrimHeightMM float64
	BleedMM      float64
	SafeMM       float64 // safe-zone inset from the trim edge
	DPI          float64
	PreviewWidth float64
}

// Card is the production card page: 150 mm square trim, 3 mm bleed,
// 5 mm safe margin, 300 dpi, 420 unit preview.
var Card = PageSpec{
	TrimWidthMM:  150,
	TrimHeightMM: 150,
	BleedMM:      3,
	SafeMM:       5,
	DPI:          300,
	PreviewWidth: 420,
}

// Dots converts millimetres to page device units at the spec resolution.
func (s PageSpec) Dots(mm float64) float64 { return mm / MMPerInch * s.DPI }

// PageWidth is the full page width (trim + both bleeds) in whole device
// units. For the production card: round(156/25.4*300) = 1843.
func (s PageSpec) PageWidth() float64 {
	return math.Round(s.Dots(s.TrimWidthMM + 2*s.BleedMM))
}

// PageHeight is the full page height in whole device units.
func (s PageSpec) PageHeight() float64 {
	return math.Round(s.Dots(s.TrimHeightMM + 2*s.BleedMM))
}

// Scale is the uniform page-to-preview factor: preview width divided by
// the page width in device units.
func (s PageSpec) Scale() float64 { return s.PreviewWidth / s.PageWidth() }

// ToPreview maps a page-space length to preview units.
func (s PageSpec) ToPreview(v float64) float64 { return v * s.Scale() }

// ToPage maps a preview-space length to page units.
func (s PageSpec) ToPage(v float64) float64 { return v / s.Scale() }

// PageRect is the full-bleed page rectangle in page space.
func (s PageSpec) PageRect() scene.Rect {
	return scene.R(0, 0, s.PageWidth(), s.PageHeight())
}

// SafeZoneSegments returns the four static safe-zone guide lines, inset
// from the trim edge by the safe margin plus the bleed amount.
func (s PageSpec) SafeZoneSegments() []scene.Segment {
	inset := s.Dots(s.BleedMM + s.SafeMM)
	w := s.PageWidth()
	h := s.PageHeight()
	return []scene.Segment{
		{X1: inset, Y1: inset, X2: w - inset, Y2: inset},         // top
		{X1: inset, Y1: h - inset, X2: w - inset, Y2: h - inset}, // bottom
		{X1: inset, Y1: inset, X2: inset, Y2: h - inset},         // left
		{X1: w - inset, Y1: inset, X2: w - inset, Y2: h - inset}, // right
	}
}
