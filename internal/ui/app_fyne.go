//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"path/filepath"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"cardpress/internal/assets"
	"cardpress/internal/clipboard"
	"cardpress/internal/config"
	"cardpress/internal/coord"
	"cardpress/internal/crash"
	"cardpress/internal/croptool"
	"cardpress/internal/domain"
	"cardpress/internal/engine"
	"cardpress/internal/history"
	applog "cardpress/internal/log"
	"cardpress/internal/overlay"
	"cardpress/internal/preview"
	"cardpress/internal/resolver"
	"cardpress/internal/scene"
	"cardpress/internal/storage"
	"cardpress/internal/store"
	"cardpress/internal/telemetry"
)

// fyneScheduler marshals engine completions back onto the UI thread.
type fyneScheduler struct{}

func (fyneScheduler) Post(fn func()) { fyne.Do(fn) }

// Run starts the Fyne-based desktop editor. Pass a card directory to
// open it immediately; an empty string starts with an untitled card.
func Run(cardDir string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	cfg, _, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}
	telemetry.InitDefault()

	var dh *storage.DocumentHandle
	defer func() { crash.Recover(dh) }()

	if cardDir != "" {
		dh, err = storage.Open(cardDir)
		if err != nil {
			return fmt.Errorf("open card: %w", err)
		}
	}

	fyneApp := app.NewWithID("cardpress")
	w := fyneApp.NewWindow("CardPress")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1100)
	winH := prefs.IntWithFallback("window.height", 760)
	if winW < 800 {
		winW = 800
	}
	if winH < 560 {
		winH = 560
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	doc := domain.NewSkeleton("Untitled Card")
	if dh != nil {
		doc = dh.Document
	}

	hist := history.NewManager(history.Config{
		MaxBytes:    16 * 1024 * 1024,
		MaxPerPage:  30,
		MinInterval: 300 * time.Millisecond,
	})
	st := store.New(doc, hist)

	var lib *assets.Library
	if dh != nil {
		lib, err = assets.Open(dh.Root)
		if err != nil {
			l.Warn("asset library unavailable", slog.Any("err", err))
		}
	}
	defer func() {
		if lib != nil {
			_ = lib.Close()
		}
	}()

	spec := coord.Card
	res := resolver.New(cfg.General.AssetScope)
	if cfg.General.CDNBase != "" {
		res.Base = cfg.General.CDNBase
	}
	eng := engine.New(st, res, resolver.NewLoader(), fyneScheduler{}, croptool.New(), spec)
	disp := clipboard.NewDispatcher(eng)
	hover := overlay.NewHoverController(eng, spec)
	ghosts := overlay.NewGhostController(st, spec)

	status := widget.NewLabel("Ready")
	cv := newCardCanvas(eng, spec, hover, ghosts)

	lastPage := -1
	eng.OnRenderPass(func(pageIdx int, stack *scene.Stack) {
		if pageIdx != lastPage {
			lastPage = pageIdx
			ghosts.Reset()
			cv.forgetGhosts()
		}
		cv.redraw(stack)
	})

	// Pages (left)
	pageNames := make([]string, 0, domain.PageCount)
	for _, p := range st.Document().Pages {
		pageNames = append(pageNames, p.Name)
	}
	pagesList := widget.NewList(
		func() int { return len(pageNames) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			o.(*widget.Label).SetText(pageNames[i])
		},
	)
	pagesList.OnSelected = func(id widget.ListItemID) {
		eng.SetPage(int(id))
		status.SetText(fmt.Sprintf("Editing %s", pageNames[id]))
	}
	left := container.NewBorder(
		container.NewVBox(widget.NewLabel("Pages"), widget.NewSeparator()), nil, nil, nil,
		pagesList,
	)

	// Face panel (right drawer), opened via placeholder ghost taps.
	facePanel, refreshFaces := buildFacePanel(st, eng, lib, w, l, status)
	facePanel.Hide()
	st.SubscribeDrawer(func(ds store.DrawerState) {
		fyne.Do(func() {
			if ds == store.DrawerFacePanel {
				refreshFaces()
				facePanel.Show()
			} else {
				facePanel.Hide()
			}
		})
	})

	saveCard := func() {
		if dh == nil {
			status.SetText("No card directory open")
			return
		}
		eng.CommitInteraction()
		dh.Document = st.Document()
		if err := storage.Save(dh); err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText("Saved " + dh.ManifestPath)
		telemetry.Event("card_saved", nil)
	}

	undo := func() {
		if st.Undo(eng.Page()) {
			eng.Rehydrate()
			status.SetText("Undo")
		}
	}
	redo := func() {
		if st.Redo(eng.Page()) {
			eng.Rehydrate()
			status.SetText("Redo")
		}
	}

	btnText := widget.NewButton("Add Text", func() {
		lay := &domain.TextLayer{
			X: 400, Y: 400, ScaleX: 1, ScaleY: 1, Opacity: 1,
			Text: "Your message", FontFamily: "serif", FontSize: 64,
			Fill: "#1a1a1a", Selectable: true, Editable: true,
		}
		eng.AddLayers([]domain.Layer{lay})
		eng.CommitInteraction()
	})
	btnImage := widget.NewButton("Add Image", func() {
		if lib == nil {
			status.SetText("Open a card directory to import images")
			return
		}
		dialog.ShowFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil || rc == nil {
				return
			}
			path := rc.URI().Path()
			_ = rc.Close()
			rec, err := lib.Import(context.Background(), path)
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			lay := &domain.ImageLayer{
				X: 200, Y: 200, ScaleX: 1, ScaleY: 1, Opacity: 1,
				Width: float64(rec.Width), Height: float64(rec.Height),
				Source:     domain.ImageSource{AssetID: rec.ID, ResolvedURL: rec.Path},
				Selectable: true, Editable: true,
			}
			eng.AddLayers([]domain.Layer{lay})
			eng.CommitInteraction()
			status.SetText("Imported " + rec.ID)
			telemetry.Event("image_imported", map[string]any{"format": rec.Format})
		}, w)
	})
	btnCrop := widget.NewButton("Crop", func() {
		if err := eng.BeginCrop(); err != nil {
			status.SetText(err.Error())
			return
		}
		status.SetText("Crop: arrows pan, Enter commits, Esc cancels")
	})
	btnExport := widget.NewButton("Export PNG", func() {
		if dh == nil {
			status.SetText("No card directory open")
			return
		}
		r := preview.NewRenderer(spec, preview.Options{Width: int(spec.PageWidth()), DrawGuides: false})
		path, err := r.WritePNG(filepath.Join(dh.Root, "previews"), eng.Page(), eng.Stack())
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText("Exported " + path)
	})
	btnSave := widget.NewButton("Save", saveCard)
	btnUndo := widget.NewButton("Undo", undo)
	btnRedo := widget.NewButton("Redo", redo)
	toolbar := container.NewHBox(btnText, btnImage, btnCrop, btnExport, widget.NewSeparator(), btnUndo, btnRedo, btnSave)

	w.SetContent(container.NewBorder(toolbar, status, left, facePanel, container.NewScroll(cv)))

	// Keyboard routing. Ctrl chords are registered as shortcuts; plain
	// keys (arrows, delete, crop session keys) go through the dispatcher.
	shiftDown := false
	if dc, ok := w.Canvas().(desktop.Canvas); ok {
		dc.SetOnKeyDown(func(ev *fyne.KeyEvent) {
			if ev.Name == desktop.KeyShiftLeft || ev.Name == desktop.KeyShiftRight {
				shiftDown = true
			}
		})
		dc.SetOnKeyUp(func(ev *fyne.KeyEvent) {
			if ev.Name == desktop.KeyShiftLeft || ev.Name == desktop.KeyShiftRight {
				shiftDown = false
			}
		})
	}
	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		key := mapKeyName(ev.Name)
		if key == "" {
			return
		}
		if disp.HandleKey(key, false, shiftDown) {
			cv.redraw(eng.Stack())
		}
	})
	ctrl := func(k fyne.KeyName, fn func()) {
		w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: k, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) { fn() })
	}
	ctrl(fyne.KeyC, func() { disp.HandleKey("c", true, false) })
	ctrl(fyne.KeyX, func() { disp.HandleKey("x", true, false); cv.redraw(eng.Stack()) })
	ctrl(fyne.KeyV, func() { disp.HandleKey("v", true, false); cv.redraw(eng.Stack()) })
	ctrl(fyne.KeyZ, undo)
	ctrl(fyne.KeyY, redo)
	ctrl(fyne.KeyS, saveCard)

	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		eng.Unmount()
	})

	if dh != nil {
		status.SetText("Opened " + dh.ManifestPath)
	}
	pagesList.Select(0)
	eng.SetPage(0)

	w.ShowAndRun()
	return nil
}

// mapKeyName translates a Fyne key name to the dispatcher's vocabulary.
func mapKeyName(k fyne.KeyName) string {
	switch k {
	case fyne.KeyUp:
		return "Up"
	case fyne.KeyDown:
		return "Down"
	case fyne.KeyLeft:
		return "Left"
	case fyne.KeyRight:
		return "Right"
	case fyne.KeyDelete:
		return "Delete"
	case fyne.KeyBackspace:
		return "Backspace"
	case fyne.KeyReturn:
		return "Return"
	case fyne.KeyEnter:
		return "Enter"
	case fyne.KeyEscape:
		return "Escape"
	}
	return ""
}

// buildFacePanel constructs the right-hand drawer listing catalogued
// assets. Selecting one binds it to the active placeholder.
func buildFacePanel(st *store.Store, eng *engine.Engine, lib *assets.Library, w fyne.Window, l *slog.Logger, status *widget.Label) (fyne.CanvasObject, func()) {
	records := []assets.Record{}
	list := widget.NewList(
		func() int { return len(records) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			r := records[i]
			o.(*widget.Label).SetText(fmt.Sprintf("%s (%dx%d)", r.ID, r.Width, r.Height))
		},
	)
	refresh := func() {
		records = records[:0]
		if lib != nil {
			recs, err := lib.List(context.Background())
			if err != nil {
				l.Warn("asset list failed", slog.Any("err", err))
			} else {
				records = recs
			}
		}
		list.Refresh()
	}
	list.OnSelected = func(id widget.ListItemID) {
		defer list.UnselectAll()
		if int(id) >= len(records) {
			return
		}
		rec := records[id]
		obj, ok := eng.ActiveObject().(*scene.ImageObject)
		if !ok || !obj.Placeholder {
			status.SetText("Select a placeholder first")
			return
		}
		lay := eng.ExtractLayer(obj)
		ph, ok := lay.(*domain.PlaceholderLayer)
		if !ok {
			return
		}
		ph.SourceAssetID = rec.ID
		ph.Generation++
		ph.Source.AssetID = rec.ID
		ph.Source.ResolvedURL = rec.Path
		st.PushHistory(eng.Page())
		st.UpdateLayer(eng.Page(), obj.Base().LayerIdx, ph)
		st.SetDrawerState(store.DrawerClosed)
		eng.Rehydrate()
		status.SetText("Face updated from " + rec.ID)
	}
	closeBtn := widget.NewButton("Close", func() { st.SetDrawerState(store.DrawerClosed) })
	panel := container.NewBorder(
		container.NewVBox(widget.NewLabel("Faces"), widget.NewSeparator()),
		closeBtn, nil, nil, list,
	)
	return panel, refresh
}

// cardCanvas shows the rendered page and translates pointer activity
// into engine interactions.
type cardCanvas struct {
	widget.BaseWidget

	eng    *engine.Engine
	spec   coord.PageSpec
	hover  *overlay.HoverController
	ghosts *overlay.GhostController

	img        *canvas.Image
	overlayBox *fyne.Container
	attached   map[*scene.ImageObject]bool

	renderer *preview.Renderer
	hovered  scene.Object
	dragging bool
}

func newCardCanvas(eng *engine.Engine, spec coord.PageSpec, hover *overlay.HoverController, ghosts *overlay.GhostController) *cardCanvas {
	c := &cardCanvas{
		eng:        eng,
		spec:       spec,
		hover:      hover,
		ghosts:     ghosts,
		overlayBox: container.NewWithoutLayout(),
		attached:   map[*scene.ImageObject]bool{},
		renderer:   preview.NewRenderer(spec, preview.Options{Width: int(spec.PreviewWidth * 2), DrawGuides: true, GuideColor: color.RGBA{R: 0xee, G: 0x33, B: 0x33, A: 0xff}}),
	}
	c.img = canvas.NewImageFromImage(c.renderer.RenderStack(scene.NewStack()))
	c.img.FillMode = canvas.ImageFillOriginal
	c.ExtendBaseWidget(c)
	return c
}

func (c *cardCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(container.NewStack(c.img, c.overlayBox))
}

func (c *cardCanvas) MinSize() fyne.Size {
	return fyne.NewSize(float32(c.spec.PreviewWidth*2), float32(c.spec.ToPreview(c.spec.PageHeight())*2))
}

// redraw re-rasterizes the stack and refreshes ghost anchors. Must run
// on the UI thread.
func (c *cardCanvas) redraw(stack *scene.Stack) {
	c.img.Image = c.renderer.RenderStack(stack)
	c.img.Refresh()
	for _, o := range stack.LayerObjects() {
		io, ok := o.(*scene.ImageObject)
		if !ok || !io.Placeholder || c.attached[io] {
			continue
		}
		c.attached[io] = true
		c.ghosts.Attach(io, newGhostDot(c.overlayBox))
	}
	c.ghosts.RepositionAll()
}

func (c *cardCanvas) forgetGhosts() {
	c.overlayBox.RemoveAll()
	c.attached = map[*scene.ImageObject]bool{}
}

// display scale: the raster is drawn at twice the nominal preview width.
func (c *cardCanvas) toPage(pos fyne.Position) scene.Pt {
	return scene.Pt{X: c.spec.ToPage(float64(pos.X) / 2), Y: c.spec.ToPage(float64(pos.Y) / 2)}
}

func (c *cardCanvas) Tapped(e *fyne.PointEvent) {
	pt := c.toPage(e.Position)
	if o, ok := c.eng.Stack().HitTopmost(pt); ok && scene.Interactive(o) {
		c.eng.Select(o)
		c.hover.SelectionChanged()
		c.ghosts.SelectionActive(true)
		if io, ok := o.(*scene.ImageObject); ok && io.Placeholder {
			c.ghosts.PointerUp(io)
		}
	} else {
		c.eng.ClearSelection()
		c.hover.SelectionChanged()
		c.ghosts.SelectionActive(false)
	}
	c.redraw(c.eng.Stack())
}

func (c *cardCanvas) Dragged(e *fyne.DragEvent) {
	if !c.dragging {
		c.dragging = true
		c.hover.BeginGesture()
		if len(c.eng.Selection()) == 0 {
			if o, ok := c.eng.Stack().HitTopmost(c.toPage(e.Position)); ok && scene.Interactive(o) {
				c.eng.Select(o)
			}
		}
	}
	dx := c.spec.ToPage(float64(e.Dragged.DX) / 2)
	dy := c.spec.ToPage(float64(e.Dragged.DY) / 2)
	for _, o := range c.eng.Selection() {
		if o.Base().Locked {
			continue
		}
		scene.MoveLocked(o, dx, dy)
	}
	c.eng.MarkDirty()
	c.ghosts.RepositionAll()
	c.redraw(c.eng.Stack())
}

func (c *cardCanvas) DragEnd() {
	c.dragging = false
	c.hover.EndGesture()
	c.eng.CommitInteraction()
}

func (c *cardCanvas) MouseIn(e *desktop.MouseEvent) { c.MouseMoved(e) }

func (c *cardCanvas) MouseMoved(e *desktop.MouseEvent) {
	o, ok := c.eng.Stack().HitTopmost(c.toPage(e.Position))
	if !ok {
		o = nil
	}
	if o == c.hovered {
		return
	}
	if c.hovered != nil {
		c.hover.PointerLeave(c.hovered)
		if io, isImg := c.hovered.(*scene.ImageObject); isImg {
			c.ghosts.HoverChanged(io, false)
		}
	}
	c.hovered = o
	if o != nil {
		c.hover.PointerEnter(o)
		if io, isImg := o.(*scene.ImageObject); isImg {
			c.ghosts.HoverChanged(io, true)
		}
	}
	c.redraw(c.eng.Stack())
}

func (c *cardCanvas) MouseOut() {
	if c.hovered != nil {
		c.hover.PointerLeave(c.hovered)
		if io, isImg := c.hovered.(*scene.ImageObject); isImg {
			c.ghosts.HoverChanged(io, false)
		}
		c.hovered = nil
		c.redraw(c.eng.Stack())
	}
}

// ghostDot is the on-canvas affordance for a placeholder face slot.
type ghostDot struct {
	circ *canvas.Circle
	box  *fyne.Container
}

func newGhostDot(box *fyne.Container) *ghostDot {
	g := &ghostDot{
		circ: canvas.NewCircle(color.NRGBA{R: 0x2b, G: 0x7d, B: 0xe9, A: 0xd0}),
		box:  box,
	}
	g.circ.Resize(fyne.NewSize(18, 18))
	g.circ.Hide()
	box.Add(g.circ)
	return g
}

func (g *ghostDot) MoveTo(x, y float64) {
	// overlay runs at the same doubled preview scale as the raster
	g.circ.Move(fyne.NewPos(float32(x*2)-9, float32(y*2)-9))
}

func (g *ghostDot) SetVisible(v bool) {
	if v {
		g.circ.Show()
	} else {
		g.circ.Hide()
	}
	g.circ.Refresh()
}

func (g *ghostDot) Detach() {
	g.box.Remove(g.circ)
}
