//go:build gocv

package imageproc

import (
	"image"
	"log/slog"

	"gocv.io/x/gocv"
)

// Backend names the contrast and denoise implementation compiled in.
const Backend = "gocv"

// OpenCV window sizes for fastNlMeansDenoising: 7x7 template, 21x21 search.
const (
	nlmTemplateWindow = 7
	nlmSearchWindow   = 21
)

func enhanceContrast(src *image.Gray) *image.Gray {
	out, err := withMat(src, func(in gocv.Mat, dst *gocv.Mat) {
		c := gocv.NewCLAHEWithParams(claheClipLimit, image.Point{X: claheGrid, Y: claheGrid})
		defer c.Close()
		c.Apply(in, dst)
	})
	if err != nil {
		slog.Default().Warn("imageproc.gocv.clahe_failed", "error", err)
		return clahe(src, claheClipLimit, claheGrid, claheGrid)
	}
	return out
}

func denoise(src *image.Gray) *image.Gray {
	out, err := withMat(src, func(in gocv.Mat, dst *gocv.Mat) {
		gocv.FastNlMeansDenoisingWithParams(in, dst, denoiseStrength, nlmTemplateWindow, nlmSearchWindow)
	})
	if err != nil {
		slog.Default().Warn("imageproc.gocv.denoise_failed", "error", err)
		return nlMeans(src, denoiseStrength, denoisePatch, denoiseSearch)
	}
	return out
}

// withMat runs op over src as a single-channel Mat and converts the result back.
func withMat(src *image.Gray, op func(in gocv.Mat, dst *gocv.Mat)) (*image.Gray, error) {
	in, err := gocv.ImageGrayToMatGray(ToGray(src))
	if err != nil {
		return nil, err
	}
	defer in.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	op(in, &dst)

	img, err := dst.ToImage()
	if err != nil {
		return nil, err
	}
	return ToGray(img), nil
}
