package imageproc

import (
	"image"
	"image/color"
	"testing"

	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestResize(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{name: "wide image scaled", w: 2400, h: 600, max: 1200, wantW: 1200, wantH: 300},
		{name: "height truncated", w: 1999, h: 1000, max: 1200, wantW: 1200, wantH: 600},
		{name: "narrow image kept", w: 800, h: 600, max: 1200, wantW: 800, wantH: 600},
		{name: "exact width kept", w: 1200, h: 10, max: 1200, wantW: 1200, wantH: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Resize(solid(tt.w, tt.h, color.White), tt.max)
			if got := out.Bounds(); got.Dx() != tt.wantW || got.Dy() != tt.wantH {
				t.Fatalf("got %dx%d, want %dx%d", got.Dx(), got.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestPreprocessDoesNotMutateInput(t *testing.T) {
	src := solid(40, 20, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	before := append([]uint8(nil), src.Pix...)

	out := Preprocess(src, Options{MaxWidth: 1200, ToGrayscale: true, EnhanceContrast: true, Denoise: true, Sharpen: true})

	if _, ok := out.(*image.Gray); !ok {
		t.Fatalf("expected single channel output, got %T", out)
	}
	for i := range before {
		if before[i] != src.Pix[i] {
			t.Fatal("input buffer modified")
		}
	}
}

func TestPreprocessColourPassThrough(t *testing.T) {
	out := Preprocess(solid(10, 10, color.White), Options{MaxWidth: 1200})
	if _, ok := out.(*image.Gray); ok {
		t.Fatal("colour input should stay multi-channel when no gray step is selected")
	}
}

func TestSharpenUniformUnchanged(t *testing.T) {
	g := ToGray(solid(9, 9, color.Gray{Y: 120}))
	out := Sharpen(g).(*image.Gray)
	for _, v := range out.Pix {
		if v != 120 {
			t.Fatalf("uniform image changed to %d", v)
		}
	}
}

func TestEnhanceContrastStretchesRange(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 128, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			v := uint8(100)
			if x%16 >= 8 {
				v = 102
			}
			g.Pix[y*g.Stride+x] = v
		}
	}
	out := EnhanceContrast(g)
	if out.Bounds() != g.Bounds() {
		t.Fatalf("bounds changed: %v", out.Bounds())
	}
	lo, hi := span(out)
	if hi-lo <= 2 {
		t.Fatalf("expected wider range than input, got %d..%d", lo, hi)
	}
}

func TestEnhanceContrastUniform(t *testing.T) {
	out := EnhanceContrast(ToGray(solid(32, 32, color.Gray{Y: 100})))
	lo, hi := span(out)
	if lo != hi {
		t.Fatalf("uniform image became non-uniform: %d..%d", lo, hi)
	}
}

func TestDenoiseSmoothsCheckerboard(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			v := uint8(95)
			if (x+y)%2 == 0 {
				v = 105
			}
			g.Pix[y*g.Stride+x] = v
		}
	}
	out := Denoise(g)
	lo, hi := span(out)
	if hi-lo >= 10 {
		t.Fatalf("expected reduced spread, got %d..%d", lo, hi)
	}
}

func TestDenoiseKeepsFlatImage(t *testing.T) {
	g := ToGray(solid(12, 12, color.Gray{Y: 77}))
	for _, v := range Denoise(g).Pix {
		if v != 77 {
			t.Fatalf("flat image changed to %d", v)
		}
	}
}

func TestCropZeroOrigin(t *testing.T) {
	src := solid(100, 50, color.White)
	out := Crop(src, entity.Rect{XMin: 10, YMin: 5, XMax: 60, YMax: 25})
	if out.Bounds() != image.Rect(0, 0, 50, 20) {
		t.Fatalf("crop bounds = %v", out.Bounds())
	}
	gray := Crop(ToGray(src), entity.Rect{XMin: 90, YMin: 40, XMax: 200, YMax: 200})
	if gray.Bounds() != image.Rect(0, 0, 10, 10) {
		t.Fatalf("clamped crop bounds = %v", gray.Bounds())
	}
}

func span(g *image.Gray) (uint8, uint8) {
	lo, hi := uint8(255), uint8(0)
	for _, v := range g.Pix {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}
