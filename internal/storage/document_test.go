/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cardpress/internal/domain"
)

func sampleDocument() domain.Document {
	doc := domain.NewSkeleton("Birthday Card")
	img := &domain.ImageLayer{X: 100, Y: 120, ScaleX: 1, ScaleY: 1, Opacity: 1, Selectable: true, Editable: true}
	img.Source.AssetID = "image-abc-2000x2000-png"
	txt := &domain.TextLayer{X: 40, Y: 60, ScaleX: 1, ScaleY: 1, Opacity: 1, Text: "Happy Birthday", FontFamily: "serif", FontSize: 36, Fill: "#1a1a1a", Selectable: true, Editable: true}
	doc.Pages[0].Layers = []domain.Layer{img, txt}
	return doc
}

func TestInitOpenRoundTrip(t *testing.T) {
	root := t.TempDir()
	dh, err := Init(root, sampleDocument())
	if err != nil {
		t.Fatalf("Init error: %v", err)
	}
	if _, err := os.Stat(dh.ManifestPath); err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
	for _, d := range standardSubDirs {
		if _, err := os.Stat(filepath.Join(root, d)); err != nil {
			t.Fatalf("subdir %s missing: %v", d, err)
		}
	}

	got, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if got.Document.Name != "Birthday Card" {
		t.Fatalf("name = %q", got.Document.Name)
	}
	layers := got.Document.Pages[0].Layers
	if len(layers) != 2 {
		t.Fatalf("page 0 layers = %d", len(layers))
	}
	if layers[0].LayerType() != domain.LayerImage || layers[1].LayerType() != domain.LayerText {
		t.Fatalf("layer types = %v, %v", layers[0].LayerType(), layers[1].LayerType())
	}
}

func TestSaveKeepsBackup(t *testing.T) {
	root := t.TempDir()
	dh, err := Init(root, sampleDocument())
	if err != nil {
		t.Fatalf("Init error: %v", err)
	}
	dh.Document.Name = "Renamed"
	if err := Save(dh); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	ents, err := os.ReadDir(filepath.Join(root, BackupsDirName))
	if err != nil {
		t.Fatalf("read backups: %v", err)
	}
	found := false
	for _, e := range ents {
		if strings.HasPrefix(e.Name(), ManifestFileName+".") && strings.HasSuffix(e.Name(), ".bak") {
			found = true
		}
	}
	if !found {
		t.Fatal("no backup written on re-save")
	}
}

func TestOpenFallsBackToBackupOnCorruption(t *testing.T) {
	root := t.TempDir()
	dh, err := Init(root, sampleDocument())
	if err != nil {
		t.Fatalf("Init error: %v", err)
	}
	// Second save produces a backup of the valid manifest.
	if err := Save(dh); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := os.WriteFile(dh.ManifestPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt manifest: %v", err)
	}
	got, err := Open(root)
	if err != nil {
		t.Fatalf("Open after corruption: %v", err)
	}
	if got.Document.Name != "Birthday Card" {
		t.Fatalf("recovered name = %q", got.Document.Name)
	}
}

func TestOpenRejectsWrongPageCount(t *testing.T) {
	root := t.TempDir()
	bad := []byte(`{"name":"x","specVersion":1,"pages":[{"name":"Front","layers":[]}]}`)
	if err := os.WriteFile(filepath.Join(root, ManifestFileName), bad, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if _, err := Open(root); err == nil {
		t.Fatal("expected schema rejection for 1-page document")
	}
}

func TestValidateManifestAcceptsSkeleton(t *testing.T) {
	root := t.TempDir()
	dh, err := Init(root, domain.NewSkeleton("Schema Test"))
	if err != nil {
		t.Fatalf("Init error: %v", err)
	}
	data, err := os.ReadFile(dh.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if err := ValidateManifest(data); err != nil {
		t.Fatalf("ValidateManifest: %v", err)
	}
}

func TestWriteCrashSnapshot(t *testing.T) {
	root := t.TempDir()
	dh, err := Init(root, sampleDocument())
	if err != nil {
		t.Fatalf("Init error: %v", err)
	}
	path, err := WriteCrashSnapshot(dh)
	if err != nil {
		t.Fatalf("WriteCrashSnapshot: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if !strings.Contains(string(b), "Birthday Card") {
		t.Fatal("snapshot does not contain document")
	}
}
