/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"cardpress/internal/domain"
	"cardpress/internal/scene"
)

// Layer-to-object construction and object-to-layer extraction. Both
// directions are discriminated on the concrete type; extraction merges
// into a clone of the existing record so fields the scene never carries
// (ids, placeholder bookkeeping) survive the round trip untouched.

func fillBase(b *scene.Base, idx int, x, y, sx, sy, angle, opacity float64, locked, selectable, editable, lockX, lockY bool) {
	b.LayerIdx = idx
	b.X, b.Y = x, y
	b.ScaleX, b.ScaleY = sx, sy
	b.Angle = angle
	b.Opacity = opacity
	b.Locked = locked
	b.Selectable = selectable
	b.Editable = editable
	b.LockMoveX = lockX
	b.LockMoveY = lockY
}

func textObject(l *domain.TextLayer, idx int) *scene.TextObject {
	o := &scene.TextObject{
		Text:       l.Text,
		FontFamily: l.FontFamily,
		FontSize:   l.FontSize,
		FontWeight: l.FontWeight,
		FontStyle:  l.FontStyle,
		Underline:  l.Underline,
		Fill:       l.Fill,
		TextAlign:  l.TextAlign,
		LineHeight: l.LineHeight,
	}
	fillBase(o.Base(), idx, l.X, l.Y, l.ScaleX, l.ScaleY, l.Angle, l.Opacity,
		l.Locked, l.Selectable, l.Editable, l.LockMoveX, l.LockMoveY)
	return o
}

func imageObject(l *domain.ImageLayer, ph *domain.PlaceholderLayer, idx int) *scene.ImageObject {
	o := &scene.ImageObject{
		CropX: l.CropX, CropY: l.CropY, CropW: l.CropW, CropH: l.CropH,
		SourceURL:   l.Source.URL,
		AssetID:     l.Source.AssetID,
		ResolvedURL: l.Source.ResolvedURL,
	}
	switch {
	case l.HasCrop():
		o.SrcW, o.SrcH = l.CropW, l.CropH
	case l.Width > 0 && l.Height > 0:
		o.SrcW, o.SrcH = l.Width, l.Height
	}
	if ph != nil {
		o.Placeholder = true
		o.FaceSpecID = ph.FaceSpecID
		o.SourceAssetID = ph.SourceAssetID
		o.Generation = ph.Generation
	}
	fillBase(o.Base(), idx, l.X, l.Y, l.ScaleX, l.ScaleY, l.Angle, l.Opacity,
		l.Locked, l.Selectable, l.Editable, l.LockMoveX, l.LockMoveY)
	return o
}

// extractObject merges o's state into a clone of existing. Returns nil
// when the object kind and record type do not line up; the record is
// then left as it was.
func extractObject(o scene.Object, existing domain.Layer) domain.Layer {
	switch obj := o.(type) {
	case *scene.ImageObject:
		var img *domain.ImageLayer
		out := existing.Clone()
		switch l := out.(type) {
		case *domain.ImageLayer:
			img = l
		case *domain.PlaceholderLayer:
			img = &l.ImageLayer
		default:
			return nil
		}
		b := obj.Base()
		img.X, img.Y = b.X, b.Y
		img.ScaleX, img.ScaleY = b.ScaleX, b.ScaleY
		img.Angle = b.Angle
		img.Opacity = b.Opacity
		img.CropX, img.CropY = obj.CropX, obj.CropY
		img.CropW, img.CropH = obj.CropW, obj.CropH
		img.Locked = b.Locked
		img.Selectable = b.Selectable
		img.Editable = b.Editable
		img.LockMoveX = b.LockMoveX
		img.LockMoveY = b.LockMoveY
		return out
	case *scene.TextObject:
		out, ok := existing.Clone().(*domain.TextLayer)
		if !ok {
			return nil
		}
		b := obj.Base()
		out.X, out.Y = b.X, b.Y
		out.ScaleX, out.ScaleY = b.ScaleX, b.ScaleY
		out.Angle = b.Angle
		out.Opacity = b.Opacity
		out.Text = obj.Text
		out.FontFamily = obj.FontFamily
		out.FontSize = obj.FontSize
		out.FontWeight = obj.FontWeight
		out.FontStyle = obj.FontStyle
		out.Underline = obj.Underline
		out.Fill = obj.Fill
		out.TextAlign = obj.TextAlign
		out.LineHeight = obj.LineHeight
		out.Locked = b.Locked
		out.Selectable = b.Selectable
		out.Editable = b.Editable
		out.LockMoveX = b.LockMoveX
		out.LockMoveY = b.LockMoveY
		return out
	default:
		return nil
	}
}
