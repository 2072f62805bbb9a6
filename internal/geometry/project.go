// Package geometry converts token polygons from source-image pixel space
// into the on-screen layout of the rendered page image.
package geometry

import (
	"github.com/paperglass/docreview/internal/token"
)

// Viewport describes the current rendering of one page image: its natural
// (source) size, its rendered size, and the pixel offset of the rendered
// image inside its scrollable container.
type Viewport struct {
	NaturalW  float64 `json:"natural_w"`
	NaturalH  float64 `json:"natural_h"`
	RenderedW float64 `json:"rendered_w"`
	RenderedH float64 `json:"rendered_h"`
	OffsetX   float64 `json:"offset_x"`
	OffsetY   float64 `json:"offset_y"`
}

// Box is a derived on-screen rectangle. Never persisted.
type Box struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Drawable reports whether the box encloses any area. Zero-area boxes come
// from degenerate geometry and are not drawn as overlays.
func (b Box) Drawable() bool {
	return b.Width > 0 && b.Height > 0
}

// Valid reports whether the viewport can produce a meaningful transform.
func (v Viewport) Valid() bool {
	return v.NaturalW > 0 && v.NaturalH > 0
}

// Project computes the on-screen box for one token. Pure and idempotent:
// the same viewport and token always produce the same box. A token with
// absent or degenerate geometry projects to a zero box at the origin.
func (v Viewport) Project(t token.Token) Box {
	if !v.Valid() || !t.HasGeometry() {
		return Box{}
	}
	top, left, w, h := t.Bounds()
	scaleX := v.RenderedW / v.NaturalW
	scaleY := v.RenderedH / v.NaturalH
	return Box{
		Top:    v.OffsetY + top*scaleY,
		Left:   v.OffsetX + left*scaleX,
		Width:  w * scaleX,
		Height: h * scaleY,
	}
}

// TokenBox pairs a token's stable identity with its projected box, the unit
// a page render pass works in.
type TokenBox struct {
	TokenID string `json:"token_id"`
	Index   int    `json:"index"`
	Box     Box    `json:"box"`
}

// ProjectAll projects every token of a page render pass. Tokens without
// usable geometry are included with zero boxes so they stay addressable by
// content, but their boxes report Drawable() == false.
func (v Viewport) ProjectAll(tokens []token.Token) []TokenBox {
	out := make([]TokenBox, len(tokens))
	for i, t := range tokens {
		out[i] = TokenBox{TokenID: t.ID, Index: t.Index, Box: v.Project(t)}
	}
	return out
}
