package entity

import (
	"image"
	"math"
	"testing"
)

func TestPolygonTranslateAndBounds(t *testing.T) {
	p := Polygon{{0, 0}, {40, 0}, {40, 10}, {0, 10}}
	moved := p.Translate(100, 50)

	for i := range p {
		if moved[i].X != p[i].X+100 || moved[i].Y != p[i].Y+50 {
			t.Fatalf("vertex %d: got %+v", i, moved[i])
		}
	}
	if p[0].X != 0 {
		t.Fatal("Translate mutated receiver")
	}
	want := Rect{XMin: 100, YMin: 50, XMax: 140, YMax: 60}
	if got := moved.Bounds(); got != want {
		t.Fatalf("Bounds = %+v, want %+v", got, want)
	}
}

func TestRectAspectRatio(t *testing.T) {
	if got := RectFromXYWH(100, 50, 470, 100).AspectRatio(); math.Abs(got-4.7) > 1e-9 {
		t.Fatalf("aspect = %v", got)
	}
	if got := (Rect{}).AspectRatio(); got != 0 {
		t.Fatalf("zero-height aspect = %v", got)
	}
}

func TestRectExpandClamps(t *testing.T) {
	bounds := image.Rect(0, 0, 200, 100)
	got := Rect{XMin: 2, YMin: 3, XMax: 198, YMax: 97}.Expand(5, bounds)
	want := Rect{XMin: 0, YMin: 0, XMax: 200, YMax: 100}
	if got != want {
		t.Fatalf("Expand = %+v, want %+v", got, want)
	}
	got = Rect{XMin: 50, YMin: 50, XMax: 60, YMax: 60}.Expand(5, bounds)
	want = Rect{XMin: 45, YMin: 45, XMax: 65, YMax: 65}
	if got != want {
		t.Fatalf("Expand = %+v, want %+v", got, want)
	}
}

func TestRectIoU(t *testing.T) {
	a := Rect{XMin: 0, YMin: 0, XMax: 10, YMax: 10}
	if got := a.IoU(a); got != 1 {
		t.Fatalf("self IoU = %v", got)
	}
	b := Rect{XMin: 5, YMin: 0, XMax: 15, YMax: 10}
	if got := a.IoU(b); math.Abs(got-1.0/3.0) > 1e-9 {
		t.Fatalf("IoU = %v", got)
	}
	if got := a.IoU(Rect{XMin: 20, YMin: 20, XMax: 30, YMax: 30}); got != 0 {
		t.Fatalf("disjoint IoU = %v", got)
	}
}
