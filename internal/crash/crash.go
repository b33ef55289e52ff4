/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns an uncaught panic into a crash report on disk, a
// rescue snapshot of the open card, and a clean non-zero exit.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "cardpress/internal/log"
	"cardpress/internal/storage"
	"cardpress/internal/telemetry"
	"cardpress/internal/version"
)

// exitFn lets tests observe the exit code instead of dying.
var exitFn = os.Exit

// Recover is meant as `defer func() { crash.Recover(dh) }()` around the
// editor's entry points. On panic it logs the stack, writes a crash
// report next to the card's backups (or the temp dir when no card is
// open), rescues the manifest, and exits with code 2.
func Recover(dh *storage.DocumentHandle) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	report := buildReport(dh, r, stack)
	reportPath, err := writeReport(dh, report)
	if err != nil {
		l.Error("crash report not written", slog.String("path", reportPath), slog.Any("err", err))
	}
	telemetry.UploadCrash(report)

	if dh != nil {
		if path, serr := storage.WriteCrashSnapshot(dh); serr != nil {
			l.Error("crash snapshot failed", slog.Any("err", serr))
		} else {
			l.Info("crash snapshot written", slog.String("path", path))
		}
	}

	fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

// buildReport assembles the plain-text report. Nothing in it identifies
// the user beyond the card paths they already own.
func buildReport(dh *storage.DocumentHandle, panicVal any, stack []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("CardPress Crash Report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if dh != nil {
		fmt.Fprintf(&buf, "CardRoot: %s\n", dh.Root)
		fmt.Fprintf(&buf, "Manifest: %s\n", dh.ManifestPath)
		fmt.Fprintf(&buf, "Pages: %d\n", len(dh.Document.Pages))
	}
	fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	fmt.Fprintf(&buf, "Stack:\n%s\n", stack)
	return buf.Bytes()
}

func writeReport(dh *storage.DocumentHandle, report []byte) (string, error) {
	dir := os.TempDir()
	if dh != nil && dh.Root != "" {
		dir = filepath.Join(dh.Root, storage.BackupsDirName)
		_ = os.MkdirAll(dir, 0o755)
	}
	name := fmt.Sprintf("crash-%s.log", time.Now().Format("20060102-150405"))
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	if _, err := f.Write(report); err != nil {
		_ = f.Close()
		return path, err
	}
	_ = f.Sync()
	return path, f.Close()
}
