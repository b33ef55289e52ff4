/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package resolver

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"os"
	"strings"
	"time"

	// Register decoders for the formats the upload pipeline accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Loader fetches and decodes image data from resolved addresses.
// Network fetches run with a bounded timeout; local paths read directly.
type Loader struct {
	client *http.Client
}

// NewLoader returns a loader with a conservative request timeout.
func NewLoader() *Loader {
	return &Loader{client: &http.Client{Timeout: 15 * time.Second}}
}

// Load fetches and decodes the image at addr. It blocks; callers that
// must not block run it on a worker goroutine and post the completion
// back to the engine's scheduler.
func (l *Loader) Load(ctx context.Context, addr string) (image.Image, error) {
	if CrossOrigin(addr) {
		return l.loadHTTP(ctx, addr)
	}
	return loadFile(strings.TrimPrefix(addr, "file://"))
}

func (l *Loader) loadHTTP(ctx context.Context, addr string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: %s", addr, resp.Status)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", addr, err)
	}
	return img, nil
}

func loadFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
