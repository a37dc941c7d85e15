package imageproc

import (
	"image"
	"math"
	"runtime"
	"sync"
)

const (
	denoiseStrength = 10.0 // h
	denoisePatch    = 1    // radius: 3x3 patch
	denoiseSearch   = 3    // radius: 7x7 search window
)

// Denoise applies non-local means filtering with strength h=10.
func Denoise(src *image.Gray) *image.Gray {
	return denoise(src)
}

func nlMeans(src *image.Gray, h float64, patch, search int) *image.Gray {
	w, ht := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, ht))
	if w == 0 || ht == 0 {
		return out
	}

	at := func(x, y int) float64 {
		x = clampInt(x, 0, w-1)
		y = clampInt(y, 0, ht-1)
		return float64(src.Pix[y*src.Stride+x])
	}
	patchN := float64((2*patch + 1) * (2*patch + 1))
	h2 := h * h

	rows := make(chan int, ht)
	for y := 0; y < ht; y++ {
		rows <- y
	}
	close(rows)

	var wg sync.WaitGroup
	for i := 0; i < runtime.GOMAXPROCS(0); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				for x := 0; x < w; x++ {
					var sum, norm float64
					for sy := -search; sy <= search; sy++ {
						for sx := -search; sx <= search; sx++ {
							qx, qy := x+sx, y+sy
							var d float64
							for py := -patch; py <= patch; py++ {
								for px := -patch; px <= patch; px++ {
									diff := at(x+px, y+py) - at(qx+px, qy+py)
									d += diff * diff
								}
							}
							weight := math.Exp(-(d / patchN) / h2)
							sum += weight * at(qx, qy)
							norm += weight
						}
					}
					out.Pix[y*out.Stride+x] = uint8(math.Round(sum / norm))
				}
			}
		}()
	}
	wg.Wait()
	return out
}
