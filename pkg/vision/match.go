package vision

import (
	"image"
	"math"
	"sort"
)

const (
	// DefaultThreshold is the minimum score counted as a match
	DefaultThreshold = 0.6

	// DefaultBudget bounds the multiply-adds of an exhaustive search
	DefaultBudget = 30_000_000

	// DefaultCandidates is how many coarse peaks get refined at full resolution
	DefaultCandidates = 16

	// minCoarseSide is the smallest template side allowed after downscaling
	minCoarseSide = 8

	flatEpsilon = 1e-3
)

// Match is the best placement of a template inside a screen
type Match struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Score  float64 `json:"score"`
}

// Center returns the tap point for the match
func (m Match) Center() image.Point {
	return image.Pt(m.X+m.Width/2, m.Y+m.Height/2)
}

// Rect returns the matched region
func (m Match) Rect() image.Rectangle {
	return image.Rect(m.X, m.Y, m.X+m.Width, m.Y+m.Height)
}

// Matcher locates templates with the normalized correlation coefficient
type Matcher struct {
	Threshold  float64
	Budget     int64
	Candidates int
}

// NewMatcher creates a matcher with the given acceptance threshold
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{
		Threshold:  threshold,
		Budget:     DefaultBudget,
		Candidates: DefaultCandidates,
	}
}

// Find returns the best placement when it scores at least the threshold
func (m *Matcher) Find(screen, tmpl *Gray) (Match, bool) {
	best, ok := m.Best(screen, tmpl)
	if !ok || best.Score < m.Threshold {
		return best, false
	}
	return best, true
}

// Best returns the highest scoring placement regardless of threshold.
// ok is false when the template does not fit inside the screen.
func (m *Matcher) Best(screen, tmpl *Gray) (Match, bool) {
	if tmpl.Width == 0 || tmpl.Height == 0 || tmpl.Width > screen.Width || tmpl.Height > screen.Height {
		return Match{}, false
	}

	factor := m.pyramidFactor(screen, tmpl)
	if factor <= 1 {
		return exhaustive(screen, tmpl), true
	}

	return m.coarseToFine(screen, tmpl, factor), true
}

// pyramidFactor picks the smallest downscale that brings the search under budget.
// A coarse search at factor f runs once per grid phase, f*f times in total.
func (m *Matcher) pyramidFactor(screen, tmpl *Gray) int {
	budget := m.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}

	factor := 1
	for {
		work := int64(factor*factor) * searchWork(screen.Width/factor, screen.Height/factor, tmpl.Width/factor, tmpl.Height/factor)
		if work <= budget {
			return factor
		}
		next := factor * 2
		if tmpl.Width/next < minCoarseSide || tmpl.Height/next < minCoarseSide {
			return factor
		}
		factor = next
	}
}

func searchWork(sw, sh, tw, th int) int64 {
	if tw > sw || th > sh {
		return 0
	}
	return int64(sw-tw+1) * int64(sh-th+1) * int64(tw) * int64(th)
}

func exhaustive(screen, tmpl *Gray) Match {
	c := newCorrelator(screen, tmpl)
	best := Match{Width: tmpl.Width, Height: tmpl.Height, Score: math.Inf(-1)}

	for y := 0; y <= screen.Height-tmpl.Height; y++ {
		for x := 0; x <= screen.Width-tmpl.Width; x++ {
			if s := c.score(x, y); s > best.Score {
				best.X, best.Y, best.Score = x, y, s
			}
		}
	}

	return best
}

type candidate struct {
	x, y  int
	score float64
}

// coarseToFine searches every grid phase of the downscaled screen, so a placement
// at any offset lines up block for block with the downscaled template in one of them.
func (m *Matcher) coarseToFine(screen, tmpl *Gray, factor int) Match {
	smallTmpl := tmpl.Downscale(factor)

	limit := m.Candidates
	if limit <= 0 {
		limit = DefaultCandidates
	}

	var peaks []candidate
	for oy := 0; oy < factor; oy++ {
		for ox := 0; ox < factor; ox++ {
			shifted := screen.SubPlane(image.Rect(ox, oy, screen.Width, screen.Height)).Downscale(factor)
			if smallTmpl.Width > shifted.Width || smallTmpl.Height > shifted.Height {
				continue
			}

			coarse := newCorrelator(shifted, smallTmpl)
			for y := 0; y <= shifted.Height-smallTmpl.Height; y++ {
				for x := 0; x <= shifted.Width-smallTmpl.Width; x++ {
					c := candidate{x: x*factor + ox, y: y*factor + oy, score: coarse.score(x, y)}
					peaks = insertPeak(peaks, c, limit, factor)
				}
			}
		}
	}

	fine := newCorrelator(screen, tmpl)
	best := Match{Width: tmpl.Width, Height: tmpl.Height, Score: math.Inf(-1)}
	maxX := screen.Width - tmpl.Width
	maxY := screen.Height - tmpl.Height
	radius := max(1, factor/2)

	for _, p := range peaks {
		x0, x1 := clamp(p.x-radius, 0, maxX), clamp(p.x+radius, 0, maxX)
		y0, y1 := clamp(p.y-radius, 0, maxY), clamp(p.y+radius, 0, maxY)
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				if s := fine.score(x, y); s > best.Score {
					best.X, best.Y, best.Score = x, y, s
				}
			}
		}
	}

	return best
}

// insertPeak keeps the strongest candidates, suppressing weaker ones within radius of a stronger one
func insertPeak(peaks []candidate, c candidate, limit, radius int) []candidate {
	if len(peaks) == limit && c.score <= peaks[len(peaks)-1].score {
		return peaks
	}

	for _, p := range peaks {
		if isNeighbour(p, c, radius) && p.score >= c.score {
			return peaks
		}
	}

	kept := peaks[:0]
	for _, p := range peaks {
		if !isNeighbour(p, c, radius) {
			kept = append(kept, p)
		}
	}

	kept = append(kept, c)
	sort.Slice(kept, func(i, j int) bool { return kept[i].score > kept[j].score })
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

func isNeighbour(a, b candidate, radius int) bool {
	return abs(a.x-b.x) <= radius && abs(a.y-b.y) <= radius
}

// correlator scores placements of one template over one screen
type correlator struct {
	screen *Gray
	tmpl   *Gray

	// zero-mean template and its energy
	centered []float32
	tmplMean float64
	tmplVar  float64

	// integral images of the screen, (w+1) x (h+1)
	sum   []float64
	sumSq []float64
	n     float64
}

func newCorrelator(screen, tmpl *Gray) *correlator {
	c := &correlator{
		screen:   screen,
		tmpl:     tmpl,
		centered: make([]float32, len(tmpl.Pix)),
		n:        float64(len(tmpl.Pix)),
	}

	var total float64
	for _, v := range tmpl.Pix {
		total += float64(v)
	}
	c.tmplMean = total / c.n

	for i, v := range tmpl.Pix {
		d := float64(v) - c.tmplMean
		c.centered[i] = float32(d)
		c.tmplVar += d * d
	}

	stride := screen.Width + 1
	c.sum = make([]float64, stride*(screen.Height+1))
	c.sumSq = make([]float64, stride*(screen.Height+1))
	for y := 0; y < screen.Height; y++ {
		var rowSum, rowSq float64
		for x := 0; x < screen.Width; x++ {
			v := float64(screen.Pix[y*screen.Width+x])
			rowSum += v
			rowSq += v * v
			c.sum[(y+1)*stride+x+1] = c.sum[y*stride+x+1] + rowSum
			c.sumSq[(y+1)*stride+x+1] = c.sumSq[y*stride+x+1] + rowSq
		}
	}

	return c
}

func (c *correlator) window(table []float64, x, y int) float64 {
	stride := c.screen.Width + 1
	x1, y1 := x+c.tmpl.Width, y+c.tmpl.Height
	return table[y1*stride+x1] - table[y*stride+x1] - table[y1*stride+x] + table[y*stride+x]
}

func (c *correlator) score(x, y int) float64 {
	s := c.window(c.sum, x, y)
	ss := c.window(c.sumSq, x, y)
	winVar := ss - s*s/c.n

	if c.tmplVar <= flatEpsilon || winVar <= flatEpsilon {
		if c.tmplVar <= flatEpsilon && winVar <= flatEpsilon && math.Abs(s/c.n-c.tmplMean) < 0.5 {
			return 1
		}
		return 0
	}

	var cross float64
	tw := c.tmpl.Width
	for ty := 0; ty < c.tmpl.Height; ty++ {
		row := c.screen.Pix[(y+ty)*c.screen.Width+x : (y+ty)*c.screen.Width+x+tw]
		trow := c.centered[ty*tw : (ty+1)*tw]
		var acc float32
		for i, v := range row {
			acc += v * trow[i]
		}
		cross += float64(acc)
	}

	score := cross / math.Sqrt(c.tmplVar*winVar)
	return math.Max(-1, math.Min(1, score))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
