/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the core data model for CardPress: a document of four
// printable card pages, each holding an ordered list of layers. Layers are
// a closed tagged union (image | text | placeholder); unknown tags and
// unrecognized fields are rejected at decode time rather than carried
// around untyped.

// PageCount is the fixed number of pages in a card document.
const PageCount = 4

// LayerType discriminates the layer union.
type LayerType string

const (
	LayerImage       LayerType = "image"
	LayerText        LayerType = "text"
	LayerPlaceholder LayerType = "placeholder"
)

// Layer is one persisted visual element on a page.
// Concrete types: *ImageLayer, *TextLayer, *PlaceholderLayer.
type Layer interface {
	LayerType() LayerType
	Clone() Layer
}

// Document is a complete card: metadata plus exactly four pages.
type Document struct {
	Name    string `json:"name"`
	SpecVer int    `json:"specVersion"`
	Pages   []Page `json:"pages"`
}

// Page is a named, ordered sequence of layers.
// Index 0 is the topmost (front-most) layer; the last index is the
// bottommost. This ordering is preserved exactly across hydrate/extract
// round-trips when no edit occurred.
type Page struct {
	Name   string  `json:"name"`
	Layers []Layer `json:"layers"`
}

// ImageSource is the encoded form of an image's origin before it is
// resolved to a loadable address. Exactly one of the resolution paths
// applies; an empty value means the source is not yet usable (for
// example an upload still in flight).
type ImageSource struct {
	// URL is a direct address, used verbatim when set.
	URL string `json:"url,omitempty"`
	// AssetID is a content-addressed asset reference, e.g.
	// "image-abc-2000x2000-png".
	AssetID string `json:"assetId,omitempty"`
	// ResolvedURL is an explicit pre-resolved address; it always wins.
	ResolvedURL string `json:"resolvedUrl,omitempty"`
}

// Unresolved reports whether no resolution path is available yet.
func (s ImageSource) Unresolved() bool {
	return s.URL == "" && s.AssetID == "" && s.ResolvedURL == ""
}

// ImageLayer places a raster image on the page.
// Geometry is authored in page device units; the crop rectangle is in
// source-image pixel space and is non-destructive.
type ImageLayer struct {
	ID      string  `json:"id,omitempty"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	ScaleX  float64 `json:"scaleX"`
	ScaleY  float64 `json:"scaleY"`
	// Width/Height are the explicit source-pixel size, optional.
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`
	Angle   float64 `json:"angle,omitempty"` // degrees, clockwise
	Opacity float64 `json:"opacity"`

	CropX float64 `json:"cropX,omitempty"`
	CropY float64 `json:"cropY,omitempty"`
	CropW float64 `json:"cropW,omitempty"`
	CropH float64 `json:"cropH,omitempty"`

	Source ImageSource `json:"source"`

	Locked     bool `json:"locked,omitempty"`
	Selectable bool `json:"selectable"`
	Editable   bool `json:"editable"`
	LockMoveX  bool `json:"lockMovementX,omitempty"`
	LockMoveY  bool `json:"lockMovementY,omitempty"`
}

func (l *ImageLayer) LayerType() LayerType { return LayerImage }

func (l *ImageLayer) Clone() Layer {
	c := *l
	return &c
}

// HasCrop reports whether a crop rectangle is set.
func (l *ImageLayer) HasCrop() bool { return l.CropW > 0 && l.CropH > 0 }

// TextLayer places a styled text run on the page.
type TextLayer struct {
	ID      string  `json:"id,omitempty"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	ScaleX  float64 `json:"scaleX"`
	ScaleY  float64 `json:"scaleY"`
	Angle   float64 `json:"angle,omitempty"`
	Opacity float64 `json:"opacity"`

	Text       string  `json:"text"`
	FontFamily string  `json:"fontFamily"`
	FontSize   float64 `json:"fontSize"`
	FontWeight string  `json:"fontWeight,omitempty"` // "normal" | "bold"
	FontStyle  string  `json:"fontStyle,omitempty"`  // "normal" | "italic"
	Underline  bool    `json:"underline,omitempty"`
	Fill       string  `json:"fill"` // CSS-style color, e.g. "#1a1a1a"
	TextAlign  string  `json:"textAlign,omitempty"`
	LineHeight float64 `json:"lineHeight,omitempty"`

	Locked     bool `json:"locked,omitempty"`
	Selectable bool `json:"selectable"`
	Editable   bool `json:"editable"`
	LockMoveX  bool `json:"lockMovementX,omitempty"`
	LockMoveY  bool `json:"lockMovementY,omitempty"`
}

func (l *TextLayer) LayerType() LayerType { return LayerText }

func (l *TextLayer) Clone() Layer {
	c := *l
	return &c
}

// PlaceholderLayer is an image-layer variant bound to an external face
// generation spec. It is locked on the canvas and carries round-trip
// bookkeeping that must survive edit/export cycles unchanged.
type PlaceholderLayer struct {
	ImageLayer

	FaceSpecID    string `json:"faceSpecId"`
	SourceAssetID string `json:"sourceAssetId,omitempty"`
	Generation    int    `json:"generation,omitempty"`
}

func (l *PlaceholderLayer) LayerType() LayerType { return LayerPlaceholder }

func (l *PlaceholderLayer) Clone() Layer {
	c := *l
	return &c
}

// NewSkeleton returns an empty four-page card document.
func NewSkeleton(name string) Document {
	return Document{
		Name:    name,
		SpecVer: 1,
		Pages: []Page{
			{Name: "Front"},
			{Name: "Inside Left"},
			{Name: "Inside Right"},
			{Name: "Back"},
		},
	}
}

// CloneLayers deep-copies a layer list.
func CloneLayers(layers []Layer) []Layer {
	if layers == nil {
		return nil
	}
	out := make([]Layer, len(layers))
	for i, l := range layers {
		out[i] = l.Clone()
	}
	return out
}
