/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cardpress/internal/backend"
	"cardpress/internal/config"
	"cardpress/internal/coord"
	"cardpress/internal/crash"
	"cardpress/internal/domain"
	applog "cardpress/internal/log"
	"cardpress/internal/preview"
	"cardpress/internal/scene"
	"cardpress/internal/storage"
	"cardpress/internal/ui"
	"cardpress/internal/version"
)

func usage() {
	fmt.Println("CardPress — printable greeting card editor")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  cardpress version|-v|--version        Show version")
	fmt.Println("  cardpress init <dir> <name>            Create a new card at <dir> with name <name>")
	fmt.Println("  cardpress open <dir>                    Open card at <dir> and print summary")
	fmt.Println("  cardpress save <dir>                    Save card at <dir> (creates backup)")
	fmt.Println("  cardpress render <dir>                  Render page previews to <dir>/previews")
	fmt.Println("  cardpress push <dir>                    Upload the card manifest to the backend")
	fmt.Println("  cardpress pull <dir> <stable-id>        Fetch a manifest from the backend into <dir>")
	fmt.Println("  cardpress serve                         Run the sync backend server")
	fmt.Println("  cardpress ui [<dir>]                    Launch desktop UI (build with -tags fyne for full UI)")
}

func main() {
	// initialize structured logging using environment defaults
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	var dh *storage.DocumentHandle
	defer func() { crash.Recover(dh) }()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println("CardPress — printable greeting card editor")
			fmt.Println(version.String())
			return
		case "init":
			if len(args) < 4 {
				fmt.Println("init requires <dir> and <name>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			name := args[3]
			l.Info("init card", slog.String("root", abs), slog.String("name", name))
			h, err := storage.Init(abs, domain.NewSkeleton(name))
			if err != nil {
				l.Error("init failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			dh = h
			fmt.Println("Created card at", abs)
			return
		case "open":
			if len(args) < 3 {
				fmt.Println("open requires <dir>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			l.Info("open card", slog.String("root", abs))
			h, err := storage.Open(abs)
			if err != nil {
				l.Error("open failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			dh = h
			fmt.Printf("Opened card: %s\n", h.Document.Name)
			for i, p := range h.Document.Pages {
				fmt.Printf("  Page %d %-12s layers: %d\n", i+1, p.Name, len(p.Layers))
			}
			fmt.Println("Root:", h.Root)
			return
		case "save":
			if len(args) < 3 {
				fmt.Println("save requires <dir>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			l.Info("save card", slog.String("root", abs))
			h, err := storage.Open(abs)
			if err != nil {
				l.Error("open before save failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			dh = h
			if err := storage.Save(h); err != nil {
				l.Error("save failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Println("Saved card and created a backup of the previous manifest (if any).")
			return
		case "render":
			if len(args) < 3 {
				fmt.Println("render requires <dir>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			h, err := storage.Open(abs)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			dh = h
			if err := renderPreviews(h); err != nil {
				l.Error("render failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		case "push":
			if len(args) < 3 {
				fmt.Println("push requires <dir>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			h, err := storage.Open(abs)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			dh = h
			cli, err := backendClient()
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			ver, err := cli.Push(ctx, filepath.Base(abs), h.Document)
			if err != nil {
				l.Error("push failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Printf("Pushed %q as version %d\n", h.Document.Name, ver)
			return
		case "pull":
			if len(args) < 4 {
				fmt.Println("pull requires <dir> and <stable-id>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			cli, err := backendClient()
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			env, err := cli.Pull(ctx, args[3])
			if err != nil {
				l.Error("pull failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			h, err := storage.Init(abs, env.Manifest)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			dh = h
			fmt.Printf("Pulled %q (version %d) into %s\n", env.Manifest.Name, env.Version, abs)
			return
		case "serve":
			if err := backend.Start(); err != nil {
				l.Error("server failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		case "ui":
			var dir string
			if len(args) >= 3 {
				dir = args[2]
			}
			if err := ui.Run(dir); err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		}
	}

	usage()
}

func backendClient() (*backend.Client, error) {
	cfg, token, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("no backend configured; set CDP_BACKEND_URL or edit the config file")
	}
	return backend.NewClient(cfg.Backend.BaseURL, token), nil
}

// renderPreviews rasterizes every page without full hydration: images
// stay as placeholder boxes, which is enough for a quick proof.
func renderPreviews(h *storage.DocumentHandle) error {
	spec := coord.Card
	r := preview.NewRenderer(spec, preview.Options{Width: int(spec.PreviewWidth), DrawGuides: true})
	for i := range h.Document.Pages {
		stack := scene.NewStack()
		for _, seg := range spec.SafeZoneSegments() {
			d := scene.NewDecoration(scene.DecorGuide)
			d.Line = seg
			d.Visible = true
			stack.Push(d)
		}
		path, err := r.WritePNG(filepath.Join(h.Root, "previews"), i, stack)
		if err != nil {
			return err
		}
		fmt.Println("Wrote", path)
	}
	return nil
}
