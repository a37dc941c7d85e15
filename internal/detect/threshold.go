package detect

import "image"

// OtsuThreshold picks the level that maximizes between-class variance of the
// intensity histogram. Pixels above the returned level are foreground.
func OtsuThreshold(g *image.Gray) uint8 {
	var hist [256]float64
	w, h := g.Rect.Dx(), g.Rect.Dy()
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for _, v := range row {
			hist[v]++
		}
	}
	total := float64(w * h)
	if total == 0 {
		return 0
	}

	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i) * c
	}

	var (
		best    float64
		level   int
		w0      float64
		sumBack float64
	)
	for t := 0; t < 256; t++ {
		w0 += hist[t]
		if w0 == 0 {
			continue
		}
		w1 := total - w0
		if w1 == 0 {
			break
		}
		sumBack += float64(t) * hist[t]
		mu0 := sumBack / w0
		mu1 := (sumAll - sumBack) / w1
		between := w0 * w1 * (mu0 - mu1) * (mu0 - mu1)
		if between > best {
			best = between
			level = t
		}
	}
	return uint8(level)
}

// Binarize maps pixels above t to 255 and the rest to 0.
func Binarize(g *image.Gray, t uint8) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := g.Pix[y*g.Stride : y*g.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x, v := range src {
			if v > t {
				dst[x] = 255
			}
		}
	}
	return out
}

// segmentPure binarizes g at its Otsu level and returns the external contours.
func segmentPure(g *image.Gray) (uint8, []shape) {
	level := OtsuThreshold(g)
	contours := ExternalContours(Binarize(g, level))
	shapes := make([]shape, 0, len(contours))
	for _, c := range contours {
		shapes = append(shapes, shape{area: c.Area(), rect: c.Bounds()})
	}
	return level, shapes
}
