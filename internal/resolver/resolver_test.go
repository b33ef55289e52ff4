/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package resolver

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"cardpress/internal/domain"
)

func TestResolvePrecedence(t *testing.T) {
	r := New("proj-1")
	cases := []struct {
		name string
		src  domain.ImageSource
		want string
	}{
		{
			name: "explicit resolved wins over everything",
			src: domain.ImageSource{
				ResolvedURL: "https://x/explicit.png",
				URL:         "https://x/direct.png",
				AssetID:     "image-abc-2000x2000-png",
			},
			want: "https://x/explicit.png",
		},
		{
			name: "direct address used verbatim",
			src:  domain.ImageSource{URL: "blob:local-123", AssetID: "image-abc-2000x2000-png"},
			want: "blob:local-123",
		},
		{
			name: "asset reference derives delivery url",
			src:  domain.ImageSource{AssetID: "image-abc-2000x2000-png"},
			want: DefaultCDNBase + "/proj-1/abc-2000x2000.png",
		},
	}
	for _, tc := range cases {
		got, err := r.Resolve(tc.src)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestResolveUnresolved(t *testing.T) {
	r := New("proj-1")
	if _, err := r.Resolve(domain.ImageSource{}); !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("expected ErrUnresolvable, got %v", err)
	}
}

func TestDeriveAssetID(t *testing.T) {
	cases := map[string]string{
		"image-abc-2000x2000-png": "abc-2000x2000",
		"image-xyz-800x600-jpeg":  "xyz-800x600",
		"image-q-1x1-webp":        "q-1x1",
		"abc-2000x2000-png":       "abc-2000x2000", // prefix optional
		"image-noformat":          "noformat",
	}
	for in, want := range cases {
		if got := DeriveAssetID(in); got != want {
			t.Fatalf("DeriveAssetID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCrossOrigin(t *testing.T) {
	if !CrossOrigin("https://cdn.example/a.png") || !CrossOrigin("http://cdn.example/a.png") {
		t.Fatalf("network addresses must be cross-origin")
	}
	if CrossOrigin("blob:abc") || CrossOrigin("/tmp/a.png") || CrossOrigin("file:///tmp/a.png") {
		t.Fatalf("local/blob addresses must never be cross-origin")
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestLoaderHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(pngBytes(t, 8, 4))
	}))
	defer srv.Close()

	img, err := NewLoader().Load(context.Background(), srv.URL+"/a.png")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 4 {
		t.Fatalf("unexpected size: %v", b)
	}
}

func TestLoaderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	if err := os.WriteFile(path, pngBytes(t, 3, 3), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	img, err := NewLoader().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if img.Bounds().Dx() != 3 {
		t.Fatalf("unexpected size: %v", img.Bounds())
	}
}

func TestLoaderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()
	if _, err := NewLoader().Load(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Fatalf("expected error for 404")
	}
}
