/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry sends anonymous, strictly opt-in usage events and
// crash reports. Without opt-in and a configured endpoint everything is
// a no-op; events carry only the event name, version and platform plus
// whatever non-identifying props the caller attaches.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	applog "cardpress/internal/log"
	"cardpress/internal/version"
)

// Config is the telemetry runtime setup, normally read from the
// environment:
//
//	CDP_TELEMETRY_OPT_IN      "1", "true", "yes" or "on" enables events
//	CDP_TELEMETRY_URL         endpoint JSON events are POSTed to
//	CDP_CRASH_UPLOAD_URL      endpoint crash reports are POSTed to
//	CDP_TELEMETRY_TIMEOUT_MS  request timeout, default 1500
//	CDP_TELEMETRY_DEBUG       any value logs send attempts
//
// Opt-in without an endpoint still sends nothing.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("CDP_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("CDP_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("CDP_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("CDP_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("CDP_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 {
			cfg.Timeout = time.Duration(v) * time.Millisecond
		}
	}
	return cfg
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Client queues events on a bounded channel and sends them from a
// single background goroutine, so callers never block on the network.
// A full queue drops events.
type Client struct {
	cfg    Config
	log    *slog.Logger
	cli    *http.Client
	q      chan []byte
	once   sync.Once
	closed chan struct{}
}

var defaultClient *Client
var defaultOnce sync.Once

// InitDefault builds the package-level client from the environment on
// first use.
func InitDefault() {
	defaultOnce.Do(func() {
		NewDefault(FromEnv())
	})
}

// NewDefault installs a new default client with cfg.
func NewDefault(cfg Config) {
	defaultClient = New(cfg)
}

func New(cfg Config) *Client {
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan []byte, 64),
		closed: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events would actually be sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Enabled reports whether the default client would send events.
func Enabled() bool {
	InitDefault()
	return defaultClient.Enabled()
}

// Event queues a named event with optional non-identifying props.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	payload := map[string]any{
		"name":    name,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"version": version.String(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	}
	for k, v := range props {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case c.q <- body:
	default:
		// Queue full: the event is not worth waiting for.
	}
}

// Event queues an event on the default client.
func Event(name string, props map[string]any) { InitDefault(); defaultClient.Event(name, props) }

// Flush waits up to half a second for the queue to drain.
func (c *Client) Flush(ctx context.Context) {
	deadline := time.Now().Add(500 * time.Millisecond)
	for len(c.q) > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// Close stops the sender goroutine. Queued events are abandoned.
func (c *Client) Close() { c.once.Do(func() { close(c.closed) }) }

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case body := <-c.q:
			c.post(c.cfg.EventsURL, "application/json", body)
		}
	}
}

func (c *Client) post(url, contentType string, body []byte) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry post failed", slog.String("url", url), slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug("telemetry post sent", slog.String("url", url))
	}
}

// UploadCrash sends a serialized crash report synchronously, bounded by
// the client timeout. The process is usually about to exit when this
// runs, so there is no point handing the report to the queue.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", report)
}

// UploadCrash sends a crash report through the default client.
func UploadCrash(report []byte) { InitDefault(); defaultClient.UploadCrash(report) }
