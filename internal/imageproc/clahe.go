package imageproc

import (
	"image"
	"math"
)

const (
	claheClipLimit = 2.0
	claheGrid      = 8
)

// EnhanceContrast runs contrast-limited adaptive histogram equalization with
// clip limit 2.0 over an 8x8 tile grid, interpolating bilinearly between tiles.
func EnhanceContrast(src *image.Gray) *image.Gray {
	return enhanceContrast(src)
}

func clahe(src *image.Gray, clip float64, gridX, gridY int) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}
	gridX = min(gridX, w)
	gridY = min(gridY, h)

	// tile edges, distributed as evenly as integer division allows
	xs := make([]int, gridX+1)
	ys := make([]int, gridY+1)
	for i := range xs {
		xs[i] = i * w / gridX
	}
	for i := range ys {
		ys[i] = i * h / gridY
	}

	luts := make([][256]uint8, gridX*gridY)
	for ty := 0; ty < gridY; ty++ {
		for tx := 0; tx < gridX; tx++ {
			luts[ty*gridX+tx] = tileLUT(src, xs[tx], ys[ty], xs[tx+1], ys[ty+1], clip)
		}
	}

	tileW := float64(w) / float64(gridX)
	tileH := float64(h) / float64(gridY)
	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/tileH - 0.5
		ty0 := int(math.Floor(fy))
		wy := fy - float64(ty0)
		ty1 := ty0 + 1
		ty0 = clampInt(ty0, 0, gridY-1)
		ty1 = clampInt(ty1, 0, gridY-1)

		row := src.Pix[y*src.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/tileW - 0.5
			tx0 := int(math.Floor(fx))
			wx := fx - float64(tx0)
			tx1 := tx0 + 1
			tx0 = clampInt(tx0, 0, gridX-1)
			tx1 = clampInt(tx1, 0, gridX-1)

			v := row[x]
			top := (1-wx)*float64(luts[ty0*gridX+tx0][v]) + wx*float64(luts[ty0*gridX+tx1][v])
			bot := (1-wx)*float64(luts[ty1*gridX+tx0][v]) + wx*float64(luts[ty1*gridX+tx1][v])
			dst[x] = uint8(math.Round((1-wy)*top + wy*bot))
		}
	}
	return out
}

// tileLUT builds the clipped, equalized mapping for one tile.
func tileLUT(src *image.Gray, x0, y0, x1, y1 int, clip float64) [256]uint8 {
	var hist [256]int
	for y := y0; y < y1; y++ {
		row := src.Pix[y*src.Stride:]
		for x := x0; x < x1; x++ {
			hist[row[x]]++
		}
	}
	area := (x1 - x0) * (y1 - y0)

	var lut [256]uint8
	if area == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}

	limit := max(1, int(clip*float64(area)/256))
	excess := 0
	for i := range hist {
		if hist[i] > limit {
			excess += hist[i] - limit
			hist[i] = limit
		}
	}
	batch := excess / 256
	residual := excess % 256
	for i := range hist {
		hist[i] += batch
	}
	if residual > 0 {
		step := max(1, 256/residual)
		for i := 0; i < 256 && residual > 0; i += step {
			hist[i]++
			residual--
		}
	}

	scale := 255.0 / float64(area)
	sum := 0
	for i := range hist {
		sum += hist[i]
		lut[i] = uint8(min(255, int(math.Round(float64(sum)*scale))))
	}
	return lut
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
