// Package imageproc prepares images for region detection and OCR.
package imageproc

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

// DefaultMaxWidth is the working width images are scaled down to.
const DefaultMaxWidth = 1200

// Options selects the preprocessing steps. Steps always run in the order
// resize, grayscale, contrast, denoise, sharpen.
type Options struct {
	MaxWidth        int
	ToGrayscale     bool
	EnhanceContrast bool
	Denoise         bool
	Sharpen         bool
}

// DefaultOptions is the detection profile: everything except sharpening.
func DefaultOptions() Options {
	return Options{
		MaxWidth:        DefaultMaxWidth,
		ToGrayscale:     true,
		EnhanceContrast: true,
		Denoise:         true,
	}
}

// Preprocess applies opts to img and returns a new image; img is not modified.
// Contrast enhancement and denoising force a single-channel result.
func Preprocess(img image.Image, opts Options) image.Image {
	out := Resize(img, opts.MaxWidth)

	if opts.ToGrayscale || opts.EnhanceContrast || opts.Denoise {
		g := ToGray(out)
		if opts.EnhanceContrast {
			g = EnhanceContrast(g)
		}
		if opts.Denoise {
			g = Denoise(g)
		}
		out = g
	}
	if opts.Sharpen {
		out = Sharpen(out)
	}
	return out
}

// Resize scales img down to maxWidth keeping the aspect ratio (height is truncated).
// Images already narrow enough are copied unchanged. The result has a zero origin.
func Resize(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxWidth <= 0 || w <= maxWidth {
		return imaging.Clone(img)
	}
	newH := h * maxWidth / w
	if newH < 1 {
		newH = 1
	}
	return imaging.Resize(img, maxWidth, newH, imaging.Linear)
}

// ToGray converts img to a zero-origin single-channel image.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return cloneGray(g)
	}
	gs := imaging.Grayscale(img)
	b := gs.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := gs.Pix[y*gs.Stride : y*gs.Stride+b.Dx()*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x := range dst {
			dst[x] = src[x*4]
		}
	}
	return out
}

var sharpenKernel = [9]float64{
	-1, -1, -1,
	-1, 9, -1,
	-1, -1, -1,
}

// Sharpen applies the fixed 3x3 sharpening kernel. Gray input stays gray.
func Sharpen(img image.Image) image.Image {
	out := imaging.Convolve3x3(img, sharpenKernel, nil)
	if _, ok := img.(*image.Gray); ok {
		return ToGray(out)
	}
	return out
}

// Crop copies r out of img into a zero-origin image. r is clamped to img bounds.
func Crop(img image.Image, r entity.Rect) image.Image {
	rect := r.Image().Add(img.Bounds().Min).Intersect(img.Bounds())
	if g, ok := img.(*image.Gray); ok {
		out := image.NewGray(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		draw.Draw(out, out.Bounds(), g, rect.Min, draw.Src)
		return out
	}
	return imaging.Crop(img, rect)
}

func cloneGray(g *image.Gray) *image.Gray {
	out := image.NewGray(g.Rect)
	w := g.Rect.Dx()
	for y := 0; y < g.Rect.Dy(); y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+w], g.Pix[y*g.Stride:y*g.Stride+w])
	}
	return out
}
