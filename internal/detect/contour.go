package detect

import (
	"image"
	"math"

	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

// Contour is the traced outer boundary of one foreground component, as pixel centres.
type Contour struct {
	Points []image.Point
}

// Area is the shoelace area of the boundary polygon. A filled w x h rectangle
// measures (w-1)*(h-1).
func (c Contour) Area() float64 {
	n := len(c.Points)
	if n < 3 {
		return 0
	}
	var s int
	for i := 0; i < n; i++ {
		p, q := c.Points[i], c.Points[(i+1)%n]
		s += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(float64(s)) / 2
}

// Bounds is the upright bounding rectangle covering every boundary pixel.
func (c Contour) Bounds() entity.Rect {
	if len(c.Points) == 0 {
		return entity.Rect{}
	}
	r := entity.Rect{XMin: c.Points[0].X, YMin: c.Points[0].Y, XMax: c.Points[0].X, YMax: c.Points[0].Y}
	for _, p := range c.Points[1:] {
		r.XMin = min(r.XMin, p.X)
		r.YMin = min(r.YMin, p.Y)
		r.XMax = max(r.XMax, p.X)
		r.YMax = max(r.YMax, p.Y)
	}
	r.XMax++
	r.YMax++
	return r
}

// clockwise with y pointing down, starting east
var (
	dirX = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	dirY = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

const dirWest = 4

type binaryImage struct {
	w, h int
	pix  []uint8
}

func newBinary(g *image.Gray) binaryImage {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	b := binaryImage{w: w, h: h, pix: make([]uint8, w*h)}
	for y := 0; y < h; y++ {
		copy(b.pix[y*w:(y+1)*w], g.Pix[y*g.Stride:y*g.Stride+w])
	}
	return b
}

func (b binaryImage) fg(x, y int) bool {
	return x >= 0 && y >= 0 && x < b.w && y < b.h && b.pix[y*b.w+x] != 0
}

// ExternalContours returns the outer boundary of every 8-connected foreground
// component that is not enclosed by another component. Components sitting in
// holes are skipped. Pixels outside the image count as background.
func ExternalContours(g *image.Gray) []Contour {
	b := newBinary(g)
	outside := b.outerBackground()
	visited := make([]bool, b.w*b.h)

	var out []Contour
	for y := 0; y < b.h; y++ {
		for x := 0; x < b.w; x++ {
			i := y*b.w + x
			if visited[i] || !b.fg(x, y) {
				continue
			}
			if b.markComponent(x, y, visited, outside) {
				out = append(out, Contour{Points: b.trace(x, y)})
			}
		}
	}
	return out
}

// outerBackground flags background pixels 4-connected to the image border.
func (b binaryImage) outerBackground() []bool {
	seen := make([]bool, b.w*b.h)
	var stack []int
	push := func(x, y int) {
		if x < 0 || y < 0 || x >= b.w || y >= b.h {
			return
		}
		i := y*b.w + x
		if seen[i] || b.pix[i] != 0 {
			return
		}
		seen[i] = true
		stack = append(stack, i)
	}
	for x := 0; x < b.w; x++ {
		push(x, 0)
		push(x, b.h-1)
	}
	for y := 0; y < b.h; y++ {
		push(0, y)
		push(b.w-1, y)
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%b.w, i/b.w
		push(x+1, y)
		push(x-1, y)
		push(x, y+1)
		push(x, y-1)
	}
	return seen
}

// markComponent flood-fills the 8-connected component at (x, y) and reports
// whether it touches the image border or the outer background.
func (b binaryImage) markComponent(x, y int, visited, outside []bool) bool {
	external := false
	stack := []int{y*b.w + x}
	visited[y*b.w+x] = true
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cx, cy := i%b.w, i/b.w
		if cx == 0 || cy == 0 || cx == b.w-1 || cy == b.h-1 {
			external = true
		}
		for d := 0; d < 8; d++ {
			nx, ny := cx+dirX[d], cy+dirY[d]
			if nx < 0 || ny < 0 || nx >= b.w || ny >= b.h {
				continue
			}
			j := ny*b.w + nx
			if b.pix[j] == 0 {
				if d%2 == 0 && outside[j] {
					external = true
				}
				continue
			}
			if !visited[j] {
				visited[j] = true
				stack = append(stack, j)
			}
		}
	}
	return external
}

// trace follows the outer border starting at the component's first pixel in
// raster order, whose west neighbour is background.
func (b binaryImage) trace(sx, sy int) []image.Point {
	start := image.Point{X: sx, Y: sy}

	first := -1
	for k := 0; k < 8; k++ {
		d := (dirWest + k) % 8
		if b.fg(sx+dirX[d], sy+dirY[d]) {
			first = d
			break
		}
	}
	if first < 0 {
		return []image.Point{start}
	}
	p1 := image.Point{X: sx + dirX[first], Y: sy + dirY[first]}

	points := []image.Point{}
	cur := start
	back := first // direction from cur to the previously examined pixel
	for {
		next := -1
		for k := 1; k <= 8; k++ {
			d := (back - k + 16) % 8
			if b.fg(cur.X+dirX[d], cur.Y+dirY[d]) {
				next = d
				break
			}
		}
		nxt := image.Point{X: cur.X + dirX[next], Y: cur.Y + dirY[next]}
		points = append(points, cur)
		if nxt == start && cur == p1 {
			return points
		}
		back = (next + 4) % 8
		cur = nxt
		if len(points) > 4*b.w*b.h+8 {
			// unreachable for well-formed input
			return points
		}
	}
}
