/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package assets keeps the per-card image library in an embedded SQLite
// database under .cardpress/assets.sqlite. Imported files are copied
// into the card's assets folder and catalogued with their content hash,
// pixel size and upload state, keyed by the same descriptor id format
// the manifest's image sources carry ("image-<id>-<WxH>-<format>").
package assets

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	applog "cardpress/internal/log"
	"cardpress/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const (
	// LibraryDirName stores per-card ephemeral data under the card root.
	LibraryDirName  = ".cardpress"
	LibraryFileName = "assets.sqlite"
	filesDirName    = "assets"

	schemaVersion = 1
)

// ErrNotFound is returned when a descriptor id has no library entry.
var ErrNotFound = errors.New("asset not found")

// Record is one catalogued image.
type Record struct {
	ID        string // descriptor id, e.g. image-9f3c2b1a-2000x2000-png
	Hash      string // sha256 of the file content
	Path      string // path relative to the card root
	Width     int
	Height    int
	Format    string // png, jpeg, webp, gif
	RemoteURL string // set once the asset has been uploaded
	CreatedAt time.Time
}

// Library wraps the card's asset database. Callers close it when done.
type Library struct {
	root string
	db   *sql.DB
	log  *slog.Logger
}

// LibraryPath returns the full path to the card's asset database file.
func LibraryPath(cardRoot string) string {
	return filepath.Join(cardRoot, LibraryDirName, LibraryFileName)
}

// Open ensures the per-card SQLite library exists, opens it, enables
// WAL mode, and brings the schema up to date.
func Open(cardRoot string) (*Library, error) {
	l := applog.WithOperation(applog.WithComponent("assets"), "library_open").With(
		slog.String("root", cardRoot),
	)
	if strings.TrimSpace(cardRoot) == "" {
		return nil, errors.New("card root is required")
	}
	if err := os.MkdirAll(filepath.Join(cardRoot, LibraryDirName), 0o755); err != nil {
		l.Error("create .cardpress dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create .cardpress dir: %w", err)
	}

	path := LibraryPath(cardRoot)
	uriPath := filepath.ToSlash(path)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", uriPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("asset library ready", slog.String("path", path))
	return &Library{root: cardRoot, db: db, log: applog.WithComponent("assets")}, nil
}

// Close releases the underlying database.
func (lb *Library) Close() error {
	return lb.db.Close()
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS assets (
			id         TEXT PRIMARY KEY,
			hash       TEXT NOT NULL,
			path       TEXT NOT NULL,
			width      INTEGER NOT NULL,
			height     INTEGER NOT NULL,
			format     TEXT NOT NULL,
			remote_url TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_assets_hash ON assets(hash);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// Import copies the image at srcPath into the card's assets folder and
// catalogues it. Re-importing identical content returns the existing
// record instead of duplicating the file.
func (lb *Library) Import(ctx context.Context, srcPath string) (*Record, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	cfg, format, err := image.DecodeConfig(io.TeeReader(f, h))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	// Hash the remainder past what DecodeConfig consumed.
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("hash source: %w", err)
	}
	hash := hex.EncodeToString(h.Sum(nil))

	if rec, err := lb.byHash(ctx, hash); err == nil {
		return rec, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	id := fmt.Sprintf("image-%s-%dx%d-%s", short, cfg.Width, cfg.Height, format)

	relPath := filepath.Join(filesDirName, id+"."+format)
	dst := filepath.Join(lb.root, relPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("ensure assets dir: %w", err)
	}
	if err := copyFile(srcPath, dst); err != nil {
		return nil, fmt.Errorf("copy asset: %w", err)
	}

	now := time.Now().UTC()
	rec := &Record{
		ID: id, Hash: hash, Path: relPath,
		Width: cfg.Width, Height: cfg.Height, Format: format,
		CreatedAt: now,
	}
	_, err = lb.db.ExecContext(ctx,
		`INSERT INTO assets (id, hash, path, width, height, format, remote_url, created_at) VALUES (?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Hash, rec.Path, rec.Width, rec.Height, rec.Format, "", now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert asset: %w", err)
	}
	lb.log.Info("asset imported", slog.String("id", id), slog.Int("w", cfg.Width), slog.Int("h", cfg.Height))
	return rec, nil
}

// Get looks up a record by its descriptor id.
func (lb *Library) Get(ctx context.Context, id string) (*Record, error) {
	return lb.scanOne(ctx, `SELECT id, hash, path, width, height, format, remote_url, created_at FROM assets WHERE id=?`, id)
}

func (lb *Library) byHash(ctx context.Context, hash string) (*Record, error) {
	return lb.scanOne(ctx, `SELECT id, hash, path, width, height, format, remote_url, created_at FROM assets WHERE hash=?`, hash)
}

func (lb *Library) scanOne(ctx context.Context, query string, arg any) (*Record, error) {
	var rec Record
	var created string
	err := lb.db.QueryRowContext(ctx, query, arg).Scan(
		&rec.ID, &rec.Hash, &rec.Path, &rec.Width, &rec.Height, &rec.Format, &rec.RemoteURL, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query asset: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &rec, nil
}

// ResolveLocal maps a descriptor id to an absolute file path on disk.
func (lb *Library) ResolveLocal(ctx context.Context, id string) (string, error) {
	rec, err := lb.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return filepath.Join(lb.root, rec.Path), nil
}

// MarkUploaded records the remote URL an asset was published under.
func (lb *Library) MarkUploaded(ctx context.Context, id, remoteURL string) error {
	res, err := lb.db.ExecContext(ctx, `UPDATE assets SET remote_url=? WHERE id=?`, remoteURL, id)
	if err != nil {
		return fmt.Errorf("mark uploaded: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all records, newest first.
func (lb *Library) List(ctx context.Context) ([]Record, error) {
	rows, err := lb.db.QueryContext(ctx,
		`SELECT id, hash, path, width, height, format, remote_url, created_at FROM assets ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		var created string
		if err := rows.Scan(&rec.ID, &rec.Hash, &rec.Path, &rec.Width, &rec.Height, &rec.Format, &rec.RemoteURL, &created); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Pending returns records that have not been uploaded yet.
func (lb *Library) Pending(ctx context.Context) ([]Record, error) {
	rows, err := lb.db.QueryContext(ctx,
		`SELECT id, hash, path, width, height, format, remote_url, created_at FROM assets WHERE remote_url='' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list pending assets: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		var created string
		if err := rows.Scan(&rec.ID, &rec.Hash, &rec.Path, &rec.Width, &rec.Height, &rec.Format, &rec.RemoteURL, &created); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
