/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"log/slog"

	applog "cardpress/internal/log"
)

// Layer lists serialize with an inline "type" discriminator. Unknown
// tags and records that fail to decode are dropped silently (logged at
// debug) so one bad record can never corrupt the rest of a page.

type imageLayerJSON struct {
	Type LayerType `json:"type"`
	ImageLayer
}

type textLayerJSON struct {
	Type LayerType `json:"type"`
	TextLayer
}

type placeholderLayerJSON struct {
	Type LayerType `json:"type"`
	PlaceholderLayer
}

// MarshalJSON encodes the page with typed layer records.
func (p Page) MarshalJSON() ([]byte, error) {
	type pageJSON struct {
		Name   string            `json:"name"`
		Layers []json.RawMessage `json:"layers"`
	}
	out := pageJSON{Name: p.Name, Layers: make([]json.RawMessage, 0, len(p.Layers))}
	for _, l := range p.Layers {
		raw, err := MarshalLayer(l)
		if err != nil {
			return nil, err
		}
		out.Layers = append(out.Layers, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the page, dropping malformed layer records.
func (p *Page) UnmarshalJSON(data []byte) error {
	type pageJSON struct {
		Name   string            `json:"name"`
		Layers []json.RawMessage `json:"layers"`
	}
	var in pageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	p.Name = in.Name
	p.Layers = p.Layers[:0]
	for i, raw := range in.Layers {
		l, err := UnmarshalLayer(raw)
		if err != nil {
			applog.WithComponent("domain").Debug("dropping malformed layer",
				slog.String("page", in.Name), slog.Int("index", i), slog.Any("err", err))
			continue
		}
		p.Layers = append(p.Layers, l)
	}
	return nil
}

// MarshalLayer encodes a single layer with its type tag.
func MarshalLayer(l Layer) ([]byte, error) {
	switch v := l.(type) {
	case *ImageLayer:
		return json.Marshal(imageLayerJSON{Type: LayerImage, ImageLayer: *v})
	case *TextLayer:
		return json.Marshal(textLayerJSON{Type: LayerText, TextLayer: *v})
	case *PlaceholderLayer:
		return json.Marshal(placeholderLayerJSON{Type: LayerPlaceholder, PlaceholderLayer: *v})
	default:
		return nil, &MalformedLayerError{Reason: "unknown layer kind"}
	}
}

// UnmarshalLayer decodes one tagged layer record into its concrete type.
// Defaults applied before decode: opacity 1, unit scale, selectable and
// editable true. Unrecognized fields are ignored, never passed through.
func UnmarshalLayer(raw []byte) (Layer, error) {
	var tag struct {
		Type LayerType `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, &MalformedLayerError{Reason: "not an object", Err: err}
	}
	switch tag.Type {
	case LayerImage:
		v := imageLayerJSON{ImageLayer: defaultImageLayer()}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, &MalformedLayerError{Reason: "bad image layer", Err: err}
		}
		out := v.ImageLayer
		return &out, nil
	case LayerText:
		v := textLayerJSON{TextLayer: defaultTextLayer()}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, &MalformedLayerError{Reason: "bad text layer", Err: err}
		}
		out := v.TextLayer
		return &out, nil
	case LayerPlaceholder:
		v := placeholderLayerJSON{PlaceholderLayer: PlaceholderLayer{ImageLayer: defaultImageLayer()}}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, &MalformedLayerError{Reason: "bad placeholder layer", Err: err}
		}
		if v.FaceSpecID == "" {
			return nil, &MalformedLayerError{Reason: "placeholder missing faceSpecId"}
		}
		out := v.PlaceholderLayer
		return &out, nil
	default:
		return nil, &MalformedLayerError{Reason: "unknown layer type " + string(tag.Type)}
	}
}

func defaultImageLayer() ImageLayer {
	return ImageLayer{ScaleX: 1, ScaleY: 1, Opacity: 1, Selectable: true, Editable: true}
}

func defaultTextLayer() TextLayer {
	return TextLayer{
		ScaleX: 1, ScaleY: 1, Opacity: 1, Selectable: true, Editable: true,
		FontFamily: "Helvetica", FontSize: 40, Fill: "#1a1a1a", TextAlign: "left", LineHeight: 1.16,
	}
}

// MalformedLayerError describes a layer record that could not be decoded.
type MalformedLayerError struct {
	Reason string
	Err    error
}

func (e *MalformedLayerError) Error() string {
	if e.Err != nil {
		return "malformed layer: " + e.Reason + ": " + e.Err.Error()
	}
	return "malformed layer: " + e.Reason
}

func (e *MalformedLayerError) Unwrap() error { return e.Err }
