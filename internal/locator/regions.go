package locator

// region is a connected foreground component and its bounding rectangle.
type region struct {
	x0, y0, x1, y1 int
}

func (r region) width() int  { return r.x1 - r.x0 + 1 }
func (r region) height() int { return r.y1 - r.y0 + 1 }

// externalRegions returns the 8-connected foreground components that are not
// enclosed by another component: those touching the image edge or the
// background reachable from the edge. This matches outer-contour retrieval.
func externalRegions(fg []bool, w, h int) []region {
	outside := make([]bool, w*h)
	stack := make([]int, 0, 2*(w+h))
	push := func(i int) {
		if !fg[i] && !outside[i] {
			outside[i] = true
			stack = append(stack, i)
		}
	}
	for x := range w {
		push(x)
		push((h-1)*w + x)
	}
	for y := range h {
		push(y * w)
		push(y*w + w - 1)
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		if x > 0 {
			push(i - 1)
		}
		if x < w-1 {
			push(i + 1)
		}
		if y > 0 {
			push(i - w)
		}
		if y < h-1 {
			push(i + w)
		}
	}

	seen := make([]bool, w*h)
	var regions []region
	for start := range fg {
		if !fg[start] || seen[start] {
			continue
		}
		sx, sy := start%w, start/w
		r := region{x0: sx, y0: sy, x1: sx, y1: sy}
		external := false

		seen[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			r.x0, r.x1 = min(r.x0, x), max(r.x1, x)
			r.y0, r.y1 = min(r.y0, y), max(r.y1, y)
			if x == 0 || y == 0 || x == w-1 || y == h-1 {
				external = true
			}

			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if (dx == 0 && dy == 0) || nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					j := ny*w + nx
					if fg[j] {
						if !seen[j] {
							seen[j] = true
							stack = append(stack, j)
						}
					} else if outside[j] && (dx == 0 || dy == 0) {
						external = true
					}
				}
			}
		}
		if external {
			regions = append(regions, r)
		}
	}
	return regions
}
