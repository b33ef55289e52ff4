/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cardpress/internal/domain"
)

// Client is a minimal HTTP client for the thin backend API: list the
// user's cards, pull a manifest, push the local one.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a
// trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// CardInfo is a minimal projection for listing.
type CardInfo struct {
	ID        int64     `json:"id"`
	StableID  string    `json:"stable_id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// ListCards returns the cards stored on the backend.
func (c *Client) ListCards(ctx context.Context) ([]CardInfo, error) {
	var list []CardInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/cards", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CardEnvelope wraps a pulled manifest with its version metadata.
type CardEnvelope struct {
	StableID  string          `json:"stable_id"`
	Version   int64           `json:"version"`
	UpdatedAt string          `json:"updated_at"`
	Manifest  domain.Document `json:"manifest"`
}

// Pull fetches the latest manifest for a card.
func (c *Client) Pull(ctx context.Context, stableID string) (*CardEnvelope, error) {
	var env CardEnvelope
	path := "/api/cards/" + url.PathEscape(stableID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Push uploads the local manifest, creating or replacing the card on
// the backend. Returns the new version.
func (c *Client) Push(ctx context.Context, stableID string, doc domain.Document) (int64, error) {
	var out struct {
		Version int64 `json:"version"`
	}
	path := "/api/cards/" + url.PathEscape(stableID)
	if err := c.doJSON(ctx, http.MethodPut, path, doc, &out); err != nil {
		return 0, err
	}
	return out.Version, nil
}
