package image

import (
	"bytes"
	"image"
	"runtime"
	"sync"
	"sync/atomic"
)

// DefaultThreshold admits minor anti-aliasing and compression noise.
const DefaultThreshold = 0.1

// maxYIQDelta is the largest possible squared YIQ distance between two colors.
const maxYIQDelta = 35215

var (
	diffColor      = [3]uint8{255, 0, 0}
	antiAliasColor = [3]uint8{255, 255, 0}
)

// unchanged pixels are drawn at this fraction of their luma, blended toward white
const grayAlpha = 0.1

// PixelMatch counts pixels whose perceptual (YIQ) color distance exceeds the
// threshold. Pixels that look like anti-aliasing on either side are not
// counted unless includeAA is set.
type PixelMatch struct {
	threshold float64
	includeAA bool
	workers   int
}

type PixelMatchOption func(*PixelMatch)

// IncludeAntiAlias counts anti-aliased pixels as differences.
func IncludeAntiAlias(include bool) PixelMatchOption {
	return func(p *PixelMatch) {
		p.includeAA = include
	}
}

// Workers sets the number of goroutines rows are split across.
// Non-positive values fall back to GOMAXPROCS.
func Workers(n int) PixelMatchOption {
	return func(p *PixelMatch) {
		p.workers = n
	}
}

func NewPixelMatch(threshold float64, opts ...PixelMatchOption) *PixelMatch {
	p := &PixelMatch{
		threshold: threshold,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PixelMatch) Calculate(baseline *image.NRGBA, target *image.NRGBA) *DiffResult {
	width, height := Overlap(baseline, target)
	baseline = compact(baseline, width, height)
	target = compact(target, width, height)

	diff := image.NewRGBA(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 {
		return &DiffResult{
			Image: diff,
		}
	}

	if bytes.Equal(baseline.Pix, target.Pix) {
		for i := 0; i < len(baseline.Pix); i += 4 {
			drawGrayPixel(baseline.Pix, i, diff.Pix)
		}
		return &DiffResult{
			Image: diff,
		}
	}

	// Use GOMAXPROCS instead of runtime.NumCPU() to consider cgroup.
	// https://tip.golang.org/doc/go1.25#container-aware-gomaxprocs
	numWorkers := p.workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	numWorkers = min(numWorkers, height)

	rowsPerWorker := height / numWorkers
	maxDelta := maxYIQDelta * p.threshold * p.threshold

	var diffPixelCount int64
	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for i := 0; i < numWorkers; i++ {
		startY := i * rowsPerWorker
		endY := startY + rowsPerWorker
		if i == numWorkers-1 {
			endY = height
		}

		go func(startY int, endY int) {
			defer wg.Done()
			p.processRows(baseline, target, diff, width, height, startY, endY, maxDelta, &diffPixelCount)
		}(startY, endY)
	}

	wg.Wait()

	return &DiffResult{
		Image:      diff,
		DiffPixels: int(diffPixelCount),
		DiffAmount: float64(diffPixelCount) / float64(width*height),
	}
}

func (p *PixelMatch) processRows(baseline *image.NRGBA, target *image.NRGBA, diff *image.RGBA, width int, height int, startY int, endY int, maxDelta float64, diffCount *int64) {
	var localDiff int64

	for y := startY; y < endY; y++ {
		for x := 0; x < width; x++ {
			pos := (y*width + x) * 4

			delta := colorDelta(baseline.Pix, target.Pix, pos, pos, false)
			if delta < 0 {
				delta = -delta
			}

			if delta <= maxDelta {
				drawGrayPixel(baseline.Pix, pos, diff.Pix)
				continue
			}

			if !p.includeAA && (antiAliased(baseline.Pix, target.Pix, x, y, width, height) ||
				antiAliased(target.Pix, baseline.Pix, x, y, width, height)) {
				drawPixel(diff.Pix, pos, antiAliasColor)
				continue
			}

			drawPixel(diff.Pix, pos, diffColor)
			localDiff++
		}
	}

	atomic.AddInt64(diffCount, localDiff)
}

func compact(img *image.NRGBA, width int, height int) *image.NRGBA {
	if img.Rect.Min == (image.Point{}) && img.Rect.Dx() == width && img.Rect.Dy() == height && img.Stride == width*4 {
		return img
	}
	return Crop(img, width, height)
}

// antiAliased reports whether the pixel at (x1, y1) of img sits on an
// anti-aliased edge, based on "Anti-aliased Pixel and Intensity Slope
// Detector" by V. Vysniauskas, 2009.
func antiAliased(img []uint8, other []uint8, x1 int, y1 int, width int, height int) bool {
	x0 := max(x1-1, 0)
	y0 := max(y1-1, 0)
	x2 := min(x1+1, width-1)
	y2 := min(y1+1, height-1)
	pos := (y1*width + x1) * 4

	zeroes := 0
	if x1 == x0 || x1 == x2 || y1 == y0 || y1 == y2 {
		zeroes = 1
	}

	var minDelta, maxDelta float64
	var minX, minY, maxX, maxY int

	for x := x0; x <= x2; x++ {
		for y := y0; y <= y2; y++ {
			if x == x1 && y == y1 {
				continue
			}

			delta := colorDelta(img, img, pos, (y*width+x)*4, true)
			switch {
			case delta == 0:
				zeroes++
				if zeroes > 2 {
					return false
				}
			case delta < minDelta:
				minDelta = delta
				minX, minY = x, y
			case delta > maxDelta:
				maxDelta = delta
				maxX, maxY = x, y
			}
		}
	}

	// no darker or no brighter neighbour means this is not an edge
	if minDelta == 0 || maxDelta == 0 {
		return false
	}

	return (hasManySiblings(img, minX, minY, width, height) && hasManySiblings(other, minX, minY, width, height)) ||
		(hasManySiblings(img, maxX, maxY, width, height) && hasManySiblings(other, maxX, maxY, width, height))
}

// hasManySiblings reports whether more than two neighbours share the exact color of (x1, y1).
func hasManySiblings(img []uint8, x1 int, y1 int, width int, height int) bool {
	x0 := max(x1-1, 0)
	y0 := max(y1-1, 0)
	x2 := min(x1+1, width-1)
	y2 := min(y1+1, height-1)
	pos := (y1*width + x1) * 4

	zeroes := 0
	if x1 == x0 || x1 == x2 || y1 == y0 || y1 == y2 {
		zeroes = 1
	}

	for x := x0; x <= x2; x++ {
		for y := y0; y <= y2; y++ {
			if x == x1 && y == y1 {
				continue
			}

			other := (y*width + x) * 4
			if img[pos] == img[other] &&
				img[pos+1] == img[other+1] &&
				img[pos+2] == img[other+2] &&
				img[pos+3] == img[other+3] {
				zeroes++
			}
			if zeroes > 2 {
				return true
			}
		}
	}

	return false
}

// colorDelta returns the squared YIQ distance between two pixels, negative
// when the first pixel is brighter. With yOnly it returns the signed luma
// difference instead.
func colorDelta(img1 []uint8, img2 []uint8, k int, m int, yOnly bool) float64 {
	r1, g1, b1, a1 := img1[k], img1[k+1], img1[k+2], img1[k+3]
	r2, g2, b2, a2 := img2[m], img2[m+1], img2[m+2], img2[m+3]

	if a1 == a2 && r1 == r2 && g1 == g2 && b1 == b2 {
		return 0
	}

	fr1, fg1, fb1 := blendWhite(r1, g1, b1, a1)
	fr2, fg2, fb2 := blendWhite(r2, g2, b2, a2)

	y1 := rgbToY(fr1, fg1, fb1)
	y2 := rgbToY(fr2, fg2, fb2)
	y := y1 - y2

	if yOnly {
		return y
	}

	i := rgbToI(fr1, fg1, fb1) - rgbToI(fr2, fg2, fb2)
	q := rgbToQ(fr1, fg1, fb1) - rgbToQ(fr2, fg2, fb2)

	delta := 0.5053*y*y + 0.299*i*i + 0.1957*q*q
	if y1 > y2 {
		return -delta
	}
	return delta
}

// blendWhite composites a non-premultiplied color over a white background.
func blendWhite(r uint8, g uint8, b uint8, a uint8) (float64, float64, float64) {
	if a == 255 {
		return float64(r), float64(g), float64(b)
	}
	alpha := float64(a) / 255
	return blend(float64(r), alpha), blend(float64(g), alpha), blend(float64(b), alpha)
}

func blend(c float64, a float64) float64 {
	return 255 + (c-255)*a
}

func rgbToY(r float64, g float64, b float64) float64 {
	return r*0.29889531 + g*0.58662247 + b*0.11448223
}

func rgbToI(r float64, g float64, b float64) float64 {
	return r*0.59597799 - g*0.27417610 - b*0.32180189
}

func rgbToQ(r float64, g float64, b float64) float64 {
	return r*0.21147017 - g*0.52261711 + b*0.31114694
}

func drawPixel(out []uint8, pos int, c [3]uint8) {
	out[pos] = c[0]
	out[pos+1] = c[1]
	out[pos+2] = c[2]
	out[pos+3] = 255
}

func drawGrayPixel(img []uint8, pos int, out []uint8) {
	luma := rgbToY(float64(img[pos]), float64(img[pos+1]), float64(img[pos+2]))
	v := uint8(blend(luma, grayAlpha*float64(img[pos+3])/255))
	out[pos] = v
	out[pos+1] = v
	out[pos+2] = v
	out[pos+3] = 255
}
