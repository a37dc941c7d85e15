//go:build !gocv

package detect

import "image"

// Backend names the segmentation implementation compiled in.
const Backend = "purego"

func segment(g *image.Gray) (uint8, []shape) {
	return segmentPure(g)
}
