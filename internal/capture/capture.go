package capture

import (
	"context"

	"visual-regression/internal/viewport"
)

type CaptureResult struct {
	URL        string
	Viewport   viewport.Viewport
	Screenshot []byte
}

type CaptureOptions struct {
	// Viewports to capture, one screenshot each. Empty means desktop only.
	Viewports     []viewport.Viewport
	MaskSelectors []string
	Headers       map[string]string
}

type Capturer interface {
	Capture(ctx context.Context, url string, captureOptions CaptureOptions) ([]*CaptureResult, error)
}
