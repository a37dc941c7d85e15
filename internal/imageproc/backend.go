//go:build !gocv

package imageproc

import "image"

// Backend names the contrast and denoise implementation compiled in.
const Backend = "purego"

func enhanceContrast(src *image.Gray) *image.Gray {
	return clahe(src, claheClipLimit, claheGrid, claheGrid)
}

func denoise(src *image.Gray) *image.Gray {
	return nlMeans(src, denoiseStrength, denoisePatch, denoiseSearch)
}
