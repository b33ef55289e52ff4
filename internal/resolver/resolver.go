/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package resolver turns an image source descriptor into a loadable
// address and fetches/decodes image data. Resolution precedence is
// fixed: explicit resolved address, then direct address, then an
// address derived from a content-addressed asset id. A descriptor with
// none of these is unresolved; callers skip the layer and retry on the
// next hydrate.
package resolver

import (
	"errors"
	"strings"

	"cardpress/internal/domain"
)

// ErrUnresolvable means no loadable address can be derived yet.
var ErrUnresolvable = errors.New("image source unresolvable")

// DefaultCDNBase is the canonical asset delivery root.
const DefaultCDNBase = "https://assets.cardpress.app/cdn"

// assetPrefix and format suffixes follow the upload pipeline's id
// convention, e.g. "image-abc-2000x2000-png".
const assetPrefix = "image-"

var formatSuffixes = []string{"-png", "-jpg", "-jpeg", "-webp", "-gif"}

// Resolver derives delivery addresses for content-addressed assets
// within one project scope.
type Resolver struct {
	Base  string
	Scope string
}

// New returns a resolver for the given project scope using the default
// delivery base.
func New(scope string) *Resolver {
	return &Resolver{Base: DefaultCDNBase, Scope: scope}
}

// Resolve returns the loadable address for src by strict precedence.
func (r *Resolver) Resolve(src domain.ImageSource) (string, error) {
	if src.ResolvedURL != "" {
		return src.ResolvedURL, nil
	}
	if src.URL != "" {
		return src.URL, nil
	}
	if src.AssetID != "" {
		id := DeriveAssetID(src.AssetID)
		base := strings.TrimRight(r.Base, "/")
		// Delivery is fixed to PNG output regardless of the upload format.
		return base + "/" + r.Scope + "/" + id + ".png", nil
	}
	return "", ErrUnresolvable
}

// DeriveAssetID strips the known prefix and format suffix from an asset
// id: "image-abc-2000x2000-png" derives "abc-2000x2000".
func DeriveAssetID(assetID string) string {
	id := strings.TrimPrefix(assetID, assetPrefix)
	for _, suf := range formatSuffixes {
		if strings.HasSuffix(id, suf) {
			return id[:len(id)-len(suf)]
		}
	}
	return id
}

// CrossOrigin reports whether the address needs cross-origin fetch
// semantics. Only network-scheme addresses do; local and blob addresses
// never do.
func CrossOrigin(addr string) bool {
	return strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://")
}
