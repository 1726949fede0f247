package domain

import "fmt"

// Point is a single timestamped pen sample in page coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T int64   `json:"t"`
}

// Stroke is one continuous pen-down-to-pen-up ink path. BlockID is empty
// until the stroke has been transcribed into a content block; it is the only
// direction of the stroke<->block relationship that is stored (the reverse
// lookup is always computed by filtering).
type Stroke struct {
	ID      string  `json:"id"`
	Book    int     `json:"book"`
	Page    int     `json:"page"`
	Points  []Point `json:"points"`
	BlockID string  `json:"blockId,omitempty"`
}

// VerticalExtent returns the min/max Y covered by the stroke's points.
// A stroke with no points reports a degenerate (0, 0) extent.
func (s Stroke) VerticalExtent() (float64, float64) {
	if len(s.Points) == 0 {
		return 0, 0
	}
	minY, maxY := s.Points[0].Y, s.Points[0].Y
	for _, p := range s.Points[1:] {
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return minY, maxY
}

func (s Stroke) PageRef() PageRef {
	return PageRef{Book: s.Book, Page: s.Page}
}

// PageRef identifies one physical notebook page.
type PageRef struct {
	Book int `json:"book"`
	Page int `json:"page"`
}

func (p PageRef) Key() string {
	return fmt.Sprintf("b%d.p%d", p.Book, p.Page)
}

// Box is an axis-aligned bounding box in page coordinates.
type Box struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// BoundingBox computes the spatial extent of a stroke set.
func BoundingBox(strokes []Stroke) Box {
	var box Box
	first := true
	for _, s := range strokes {
		for _, p := range s.Points {
			if first {
				box = Box{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}
				first = false
				continue
			}
			if p.X < box.MinX {
				box.MinX = p.X
			}
			if p.Y < box.MinY {
				box.MinY = p.Y
			}
			if p.X > box.MaxX {
				box.MaxX = p.X
			}
			if p.Y > box.MaxY {
				box.MaxY = p.Y
			}
		}
	}
	return box
}
