package compare

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg"
	"image/png"

	diffimage "visual-regression/internal/diff/image"
	"visual-regression/internal/storage"
)

// Request names where the baseline lives and where the three output
// artifacts go. Paths are storage keys.
type Request struct {
	ExpectedPath     string
	ActualPath       string
	DiffPath         string
	ExpectedCopyPath string
}

type Result struct {
	DiffPixels int
	DiffAmount float64
	// Width and Height are the compared overlap, not either input's size.
	Width  int
	Height int

	ActualURL       string
	DiffURL         string
	ExpectedCopyURL string
}

type Config struct {
	// Threshold is the perceptual color distance in (0, 1] below which two
	// pixels are considered equal. Zero means DefaultThreshold, so the zero
	// Config behaves like DefaultConfig.
	Threshold float64
	// IncludeAntiAlias counts pixels detected as anti-aliasing.
	IncludeAntiAlias bool
	// Workers is the number of goroutines per comparison. Zero means GOMAXPROCS.
	Workers int
}

func DefaultConfig() Config {
	return Config{
		Threshold: diffimage.DefaultThreshold,
	}
}

type Engine struct {
	storage storage.Storage
	differ  diffimage.Differ
}

func NewEngine(s storage.Storage, c Config) *Engine {
	if c.Threshold <= 0 {
		c.Threshold = diffimage.DefaultThreshold
	}
	return &Engine{
		storage: s,
		differ: diffimage.NewPixelMatch(
			c.Threshold,
			diffimage.IncludeAntiAlias(c.IncludeAntiAlias),
			diffimage.Workers(c.Workers),
		),
	}
}

// Compare stores actual, diffs it against the baseline over their common
// top-left region and returns the number of differing pixels.
func (e *Engine) Compare(ctx context.Context, actual []byte, req Request) (int, error) {
	result, err := e.CompareResult(ctx, actual, req)
	if err != nil {
		return 0, err
	}
	return result.DiffPixels, nil
}

func (e *Engine) CompareResult(ctx context.Context, actual []byte, req Request) (*Result, error) {
	// The actual screenshot is kept even when the baseline turns out to be
	// missing, so a new baseline can be promoted from it.
	actualURL, err := e.storage.Put(ctx, req.ActualPath, actual)
	if err != nil {
		return nil, &Error{Kind: ErrIO, Op: "write actual", Path: req.ActualPath, Err: err}
	}

	expected, err := e.storage.Get(ctx, req.ExpectedPath)
	if err != nil {
		return nil, &Error{Kind: ErrNotFound, Op: "read baseline", Path: req.ExpectedPath, Err: err}
	}

	expectedImage, err := decode(expected)
	if err != nil {
		return nil, &Error{Kind: ErrDecode, Op: "decode baseline", Path: req.ExpectedPath, Err: err}
	}
	actualImage, err := decode(actual)
	if err != nil {
		return nil, &Error{Kind: ErrDecode, Op: "decode actual", Path: req.ActualPath, Err: err}
	}

	width, height := diffimage.Overlap(expectedImage, actualImage)
	diffResult := e.differ.Calculate(
		diffimage.Crop(expectedImage, width, height),
		diffimage.Crop(actualImage, width, height),
	)

	encoded, err := encodeDiff(diffResult.Image)
	if err != nil {
		return nil, &Error{Kind: ErrIO, Op: "encode diff", Path: req.DiffPath, Err: err}
	}
	diffURL, err := e.storage.Put(ctx, req.DiffPath, encoded)
	if err != nil {
		return nil, &Error{Kind: ErrIO, Op: "write diff", Path: req.DiffPath, Err: err}
	}

	expectedCopyURL, err := e.storage.Put(ctx, req.ExpectedCopyPath, expected)
	if err != nil {
		return nil, &Error{Kind: ErrIO, Op: "copy baseline", Path: req.ExpectedCopyPath, Err: err}
	}

	return &Result{
		DiffPixels:      diffResult.DiffPixels,
		DiffAmount:      diffResult.DiffAmount,
		Width:           width,
		Height:          height,
		ActualURL:       actualURL,
		DiffURL:         diffURL,
		ExpectedCopyURL: expectedCopyURL,
	}, nil
}

func decode(data []byte) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	return diffimage.ToNRGBA(img), nil
}

// encodeDiff writes a 1x1 transparent image for an empty diff since PNG has
// no zero-sized representation.
func encodeDiff(img *image.RGBA) ([]byte, error) {
	var src image.Image = img
	if img.Bounds().Empty() {
		src = image.NewNRGBA(image.Rect(0, 0, 1, 1))
	}

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, src); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
