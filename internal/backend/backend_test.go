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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cardpress/internal/domain"
)

func TestTokenSignVerifyRoundTrip(t *testing.T) {
	tok, err := signToken("s3cret", "alice", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sub, err := verifyToken("s3cret", tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sub != "alice" {
		t.Fatalf("subject = %q, want alice", sub)
	}
}

func TestTokenRejectsBadSecretAndExpiry(t *testing.T) {
	tok, err := signToken("s3cret", "alice", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifyToken("other", tok); err == nil {
		t.Fatalf("expected verification failure with wrong secret")
	}
	expired, err := signToken("s3cret", "alice", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifyToken("s3cret", expired); err == nil {
		t.Fatalf("expected verification failure for expired token")
	}
}

func TestClientListCards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/cards" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Fatalf("authorization = %q", got)
		}
		writeJSON(w, http.StatusOK, []CardInfo{
			{ID: 1, StableID: "card-a", Name: "Birthday", Version: 3},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok-1")
	list, err := c.ListCards(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].StableID != "card-a" || list[0].Version != 3 {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestClientPushPull(t *testing.T) {
	doc := domain.NewSkeleton("Thank You")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			var got domain.Document
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Fatalf("decode push body: %v", err)
			}
			if got.Name != "Thank You" {
				t.Fatalf("pushed name = %q", got.Name)
			}
			writeJSON(w, http.StatusOK, map[string]any{"version": 2})
		case http.MethodGet:
			writeJSON(w, http.StatusOK, CardEnvelope{
				StableID: "card-b",
				Version:  2,
				Manifest: doc,
			})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	ver, err := c.Push(context.Background(), "card-b", doc)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if ver != 2 {
		t.Fatalf("version = %d, want 2", ver)
	}
	env, err := c.Pull(context.Background(), "card-b")
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if env.Version != 2 || env.Manifest.Name != "Thank You" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if len(env.Manifest.Pages) != domain.PageCount {
		t.Fatalf("pages = %d, want %d", len(env.Manifest.Pages), domain.PageCount)
	}
}

func TestClientReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("no such card"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	if _, err := c.Pull(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for 404 response")
	}
}
