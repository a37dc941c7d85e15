package entity

import (
	"image"
	"math"
)

// Point is a 2D vertex in pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Polygon is an ordered vertex list. OCR quads use TL, TR, BR, BL order.
type Polygon []Point

// Clone returns an independent copy.
func (p Polygon) Clone() Polygon {
	if p == nil {
		return nil
	}
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// Translate returns a copy of p with every vertex shifted by (dx, dy).
func (p Polygon) Translate(dx, dy float64) Polygon {
	out := make(Polygon, len(p))
	for i, v := range p {
		out[i] = Point{X: v.X + dx, Y: v.Y + dy}
	}
	return out
}

// Bounds returns the integer extrema of the polygon. Empty polygons yield a zero Rect.
func (p Polygon) Bounds() Rect {
	if len(p) == 0 {
		return Rect{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, v := range p {
		minX = math.Min(minX, v.X)
		minY = math.Min(minY, v.Y)
		maxX = math.Max(maxX, v.X)
		maxY = math.Max(maxY, v.Y)
	}
	return Rect{XMin: int(minX), YMin: int(minY), XMax: int(maxX), YMax: int(maxY)}
}

// TopLeft returns the first vertex, or the zero Point for an empty polygon.
func (p Polygon) TopLeft() Point {
	if len(p) == 0 {
		return Point{}
	}
	return p[0]
}

// QuadFromRect builds a TL, TR, BR, BL polygon.
func QuadFromRect(r Rect) Polygon {
	return Polygon{
		{X: float64(r.XMin), Y: float64(r.YMin)},
		{X: float64(r.XMax), Y: float64(r.YMin)},
		{X: float64(r.XMax), Y: float64(r.YMax)},
		{X: float64(r.XMin), Y: float64(r.YMax)},
	}
}

// Rect is an axis-aligned box; XMax and YMax are exclusive.
type Rect struct {
	XMin int `json:"x_min"`
	YMin int `json:"y_min"`
	XMax int `json:"x_max"`
	YMax int `json:"y_max"`
}

// RectFromXYWH builds a Rect from origin and size.
func RectFromXYWH(x, y, w, h int) Rect {
	return Rect{XMin: x, YMin: y, XMax: x + w, YMax: y + h}
}

func (r Rect) Width() int  { return r.XMax - r.XMin }
func (r Rect) Height() int { return r.YMax - r.YMin }

// AspectRatio is width over height; zero height yields 0.
func (r Rect) AspectRatio() float64 {
	if r.Height() <= 0 {
		return 0
	}
	return float64(r.Width()) / float64(r.Height())
}

// Expand grows r by margin on every side and clamps it to bounds.
func (r Rect) Expand(margin int, bounds image.Rectangle) Rect {
	out := Rect{
		XMin: max(bounds.Min.X, r.XMin-margin),
		YMin: max(bounds.Min.Y, r.YMin-margin),
		XMax: min(bounds.Max.X, r.XMax+margin),
		YMax: min(bounds.Max.Y, r.YMax+margin),
	}
	return out
}

// Image converts to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.XMin, r.YMin, r.XMax, r.YMax)
}

// IoU is the intersection-over-union of two boxes.
func (r Rect) IoU(o Rect) float64 {
	inter := r.Image().Intersect(o.Image())
	if inter.Empty() {
		return 0
	}
	ia := float64(inter.Dx() * inter.Dy())
	union := float64(r.Width()*r.Height()+o.Width()*o.Height()) - ia
	if union <= 0 {
		return 0
	}
	return ia / union
}
