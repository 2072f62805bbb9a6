package token

import "fmt"

// Point is one polygon vertex in source-image pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Token is one recognized unit of text. Index is unique within a document
// and immutable once assigned; Page is fixed at creation.
type Token struct {
	ID        string  `json:"id"`
	Index     int     `json:"index"`
	Page      int     `json:"page"`
	Content   string  `json:"content"`
	Polygon   []Point `json:"polygon,omitempty"`
	RecScore  float64 `json:"rec_score,omitempty"`
	Direction string  `json:"direction,omitempty"`
}

// HasGeometry reports whether the token carries a usable polygon.
// Fewer than 4 vertices counts as degenerate.
func (t Token) HasGeometry() bool {
	return len(t.Polygon) >= 4
}

// Bounds returns the axis-aligned bounds (top, left, width, height) of the
// polygon in source-image pixels. Degenerate geometry yields all zeros.
func (t Token) Bounds() (top, left, width, height float64) {
	if !t.HasGeometry() {
		return 0, 0, 0, 0
	}
	minX, minY := t.Polygon[0].X, t.Polygon[0].Y
	maxX, maxY := minX, minY
	for _, p := range t.Polygon[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return minY, minX, maxX - minX, maxY - minY
}

func (t Token) String() string {
	return fmt.Sprintf("token %d (page %d): %q", t.Index, t.Page, t.Content)
}
