package detect

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

func canvas(w, h int) *image.Gray {
	return image.NewGray(image.Rect(0, 0, w, h))
}

func fill(g *image.Gray, x, y, w, h int, v uint8) {
	draw.Draw(g, image.Rect(x, y, x+w, y+h), &image.Uniform{C: color.Gray{Y: v}}, image.Point{}, draw.Src)
}

func TestOtsuThresholdBimodal(t *testing.T) {
	g := canvas(100, 100)
	fill(g, 0, 0, 100, 100, 30)
	fill(g, 20, 20, 40, 40, 220)

	level := OtsuThreshold(g)
	if level < 30 || level >= 220 {
		t.Fatalf("threshold %d not between modes", level)
	}
	bin := Binarize(g, level)
	if bin.GrayAt(30, 30).Y != 255 || bin.GrayAt(5, 5).Y != 0 {
		t.Fatal("binarization did not separate modes")
	}
}

func TestExternalContoursRectangleArea(t *testing.T) {
	g := canvas(60, 30)
	fill(g, 5, 5, 20, 6, 255)

	cs := ExternalContours(g)
	if len(cs) != 1 {
		t.Fatalf("got %d contours", len(cs))
	}
	if got := cs[0].Area(); got != 95 {
		t.Fatalf("area = %v, want 95", got)
	}
	if got, want := cs[0].Bounds(), entity.RectFromXYWH(5, 5, 20, 6); got != want {
		t.Fatalf("bounds = %+v, want %+v", got, want)
	}
}

func TestExternalContoursSkipsNested(t *testing.T) {
	g := canvas(40, 40)
	fill(g, 5, 5, 30, 30, 255)
	fill(g, 8, 8, 24, 24, 0)
	fill(g, 15, 15, 5, 5, 255)

	cs := ExternalContours(g)
	if len(cs) != 1 {
		t.Fatalf("got %d contours, want only the outer ring", len(cs))
	}
	if got := cs[0].Area(); got != 841 {
		t.Fatalf("ring area = %v, want 841", got)
	}
}

func TestExternalContoursBorderAndSpeckles(t *testing.T) {
	g := canvas(20, 20)
	fill(g, 0, 0, 5, 5, 255)
	fill(g, 10, 10, 1, 1, 255)
	fill(g, 12, 12, 5, 1, 255)

	cs := ExternalContours(g)
	if len(cs) != 3 {
		t.Fatalf("got %d contours, want 3", len(cs))
	}
	if cs[0].Area() != 16 || cs[1].Area() != 0 || cs[2].Area() != 0 {
		t.Fatalf("areas = %v %v %v", cs[0].Area(), cs[1].Area(), cs[2].Area())
	}
}

func TestAcceptGeometry(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	tests := []struct {
		name string
		area float64
		w, h int
		want bool
	}{
		{name: "plate ratio 4.7", area: 469 * 99, w: 470, h: 100, want: true},
		{name: "square-ish ratio 2.0", area: 199 * 99, w: 200, h: 100, want: false},
		{name: "ratio exactly 3", area: 5000, w: 300, h: 100, want: false},
		{name: "ratio exactly 6", area: 5000, w: 600, h: 100, want: false},
		{name: "area too small", area: 499, w: 80, h: 20, want: false},
		{name: "area lower bound", area: 500, w: 80, h: 20, want: true},
		{name: "area upper bound", area: 50000, w: 500, h: 110, want: true},
		{name: "area too large", area: 50001, w: 500, h: 110, want: false},
		{name: "zero height", area: 1000, w: 10, h: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.AcceptGeometry(tt.area, tt.w, tt.h); got != tt.want {
				t.Fatalf("AcceptGeometry(%v, %d, %d) = %v, want %v", tt.area, tt.w, tt.h, got, tt.want)
			}
		})
	}
}

func scene() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 800, 400))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	white := &image.Uniform{C: color.White}
	draw.Draw(img, image.Rect(100, 50, 570, 150), white, image.Point{}, draw.Src)  // 470x100
	draw.Draw(img, image.Rect(100, 250, 300, 350), white, image.Point{}, draw.Src) // 200x100
	draw.Draw(img, image.Rect(650, 300, 660, 305), white, image.Point{}, draw.Src) // speck
	return img
}

func TestFindRegions(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	regions := d.FindRegions(scene())

	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1: %+v", len(regions), regions)
	}
	r := regions[0]
	if want := entity.RectFromXYWH(100, 50, 470, 100); r.Rect != want {
		t.Fatalf("rect = %+v, want %+v", r.Rect, want)
	}
	if r.Confidence != 0.7 {
		t.Fatalf("confidence = %v", r.Confidence)
	}
	if b := r.ROI.Bounds(); b.Dx() != 470 || b.Dy() != 100 {
		t.Fatalf("roi bounds = %v", b)
	}
}

func TestFindRegionsEmpty(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 300, 200))
	if regions := NewDetector(DefaultConfig(), nil).FindRegions(img); len(regions) != 0 {
		t.Fatalf("expected no regions on a blank image, got %d", len(regions))
	}
}
