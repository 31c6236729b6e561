package image

import "image"

type DiffResult struct {
	Image      *image.RGBA
	DiffPixels int
	// DiffAmount is DiffPixels over the compared area (0.0 to 1.0)
	DiffAmount float64
}

type Differ interface {
	Calculate(baseline *image.NRGBA, target *image.NRGBA) *DiffResult
}
