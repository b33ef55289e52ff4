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
	"testing"
)

func TestSkeletonHasFourPages(t *testing.T) {
	d := NewSkeleton("birthday")
	if len(d.Pages) != PageCount {
		t.Fatalf("expected %d pages, got %d", PageCount, len(d.Pages))
	}
	if d.Pages[0].Name != "Front" || d.Pages[3].Name != "Back" {
		t.Fatalf("unexpected page names: %+v", d.Pages)
	}
}

func TestLayerRoundTrip(t *testing.T) {
	pg := Page{Name: "Front", Layers: []Layer{
		&TextLayer{X: 10, Y: 20, ScaleX: 1, ScaleY: 1, Opacity: 0.9, Text: "Hello",
			FontFamily: "Georgia", FontSize: 64, FontWeight: "bold", Fill: "#222222",
			TextAlign: "center", LineHeight: 1.2, Selectable: true, Editable: true},
		&ImageLayer{X: 100, Y: 200, ScaleX: 0.5, ScaleY: 0.5, Opacity: 1,
			CropX: 10, CropY: 20, CropW: 300, CropH: 400,
			Source: ImageSource{AssetID: "image-abc-2000x2000-png"}, Selectable: true, Editable: true},
		&PlaceholderLayer{
			ImageLayer: ImageLayer{X: 50, Y: 60, ScaleX: 1, ScaleY: 1, Opacity: 1, Locked: true, Selectable: true, Editable: true},
			FaceSpecID: "face-7", SourceAssetID: "image-src-1000x1000-jpg", Generation: 3,
		},
	}}
	data, err := json.Marshal(pg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Page
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Layers) != 3 {
		t.Fatalf("expected 3 layers, got %d", len(got.Layers))
	}
	txt, ok := got.Layers[0].(*TextLayer)
	if !ok || txt.Text != "Hello" || txt.FontWeight != "bold" || txt.LineHeight != 1.2 {
		t.Fatalf("text layer mismatch: %#v", got.Layers[0])
	}
	img, ok := got.Layers[1].(*ImageLayer)
	if !ok || !img.HasCrop() || img.CropW != 300 || img.Source.AssetID != "image-abc-2000x2000-png" {
		t.Fatalf("image layer mismatch: %#v", got.Layers[1])
	}
	ph, ok := got.Layers[2].(*PlaceholderLayer)
	if !ok || ph.FaceSpecID != "face-7" || ph.Generation != 3 || !ph.Locked {
		t.Fatalf("placeholder bookkeeping lost: %#v", got.Layers[2])
	}
}

func TestUnknownLayerTagDropped(t *testing.T) {
	raw := []byte(`{"name":"Front","layers":[
		{"type":"video","x":1,"y":2},
		{"type":"text","text":"kept"},
		{"type":"placeholder","x":0,"y":0}
	]}`)
	var pg Page
	if err := json.Unmarshal(raw, &pg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// video is unknown; the placeholder is missing faceSpecId; only the
	// text layer survives.
	if len(pg.Layers) != 1 {
		t.Fatalf("expected 1 surviving layer, got %d", len(pg.Layers))
	}
	if pg.Layers[0].(*TextLayer).Text != "kept" {
		t.Fatalf("wrong survivor: %#v", pg.Layers[0])
	}
}

func TestDecodeDefaults(t *testing.T) {
	l, err := UnmarshalLayer([]byte(`{"type":"image","x":5,"y":6}`))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	img := l.(*ImageLayer)
	if img.Opacity != 1 || img.ScaleX != 1 || img.ScaleY != 1 {
		t.Fatalf("defaults not applied: %#v", img)
	}
	if !img.Selectable || !img.Editable {
		t.Fatalf("flag defaults not applied: %#v", img)
	}
	if !img.Source.Unresolved() {
		t.Fatalf("empty source should be unresolved")
	}
}

func TestCloneLayersIsDeep(t *testing.T) {
	orig := []Layer{&TextLayer{Text: "a"}}
	cp := CloneLayers(orig)
	cp[0].(*TextLayer).Text = "b"
	if orig[0].(*TextLayer).Text != "a" {
		t.Fatalf("clone aliased the original")
	}
}
