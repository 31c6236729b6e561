package report

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/xerrors"

	"visual-regression/internal/artifacts"
	"visual-regression/internal/storage"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"comma": func(n int) string {
		return humanize.Comma(int64(n))
	},
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}).ParseFS(templateFS, "templates/*.tmpl"))

// Viewport is the outcome of one comparison. Image fields are URLs
// relative to the report.
type Viewport struct {
	Name          string `json:"name"`
	DiffPixels    int    `json:"diffPixels"`
	MaxDiffPixels int    `json:"maxDiffPixels,omitempty"`
	ExpectedImage string `json:"expectedImage"`
	ActualImage   string `json:"actualImage"`
	DiffImage     string `json:"diffImage"`

	// BaselineMissing marks a comparison that could not run. Only the actual
	// image exists for it.
	BaselineMissing bool `json:"baselineMissing,omitempty"`
}

// Failed reports whether the count reached the configured limit. A zero
// limit never fails; a missing baseline always does.
func (v Viewport) Failed() bool {
	if v.BaselineMissing {
		return true
	}
	return v.MaxDiffPixels > 0 && v.DiffPixels >= v.MaxDiffPixels
}

// FromPaths builds the result for a comparison whose report is written next
// to its artifacts.
func FromPaths(p artifacts.Paths, diffPixels int, maxDiffPixels int) Viewport {
	return Viewport{
		Name:          p.Viewport.Name,
		DiffPixels:    diffPixels,
		MaxDiffPixels: maxDiffPixels,
		ExpectedImage: filepath.Base(p.ExpectedCopy()),
		ActualImage:   filepath.Base(p.Actual()),
		DiffImage:     filepath.Base(p.Diff()),
	}
}

// MissingBaseline builds the result for a viewport whose baseline could not
// be read. It links the actual image only.
func MissingBaseline(p artifacts.Paths, maxDiffPixels int) Viewport {
	return Viewport{
		Name:            p.Viewport.Name,
		MaxDiffPixels:   maxDiffPixels,
		ActualImage:     filepath.Base(p.Actual()),
		BaselineMissing: true,
	}
}

type Page struct {
	Name      string
	Viewport  Viewport
	Viewports []Viewport
}

type pageData struct {
	Title     string
	Viewport  Viewport
	Viewports []Viewport
}

func (p Page) title() string {
	if p.Viewport.Name == "" || len(p.Viewports) > 0 {
		return p.Name
	}
	return p.Name + " " + strings.ToUpper(p.Viewport.Name[:1]) + p.Viewport.Name[1:]
}

// WritePage renders the single viewport report of p.Viewport.
func WritePage(w io.Writer, p Page) error {
	if err := templates.ExecuteTemplate(w, "page", pageData{Title: p.title(), Viewport: p.Viewport}); err != nil {
		return xerrors.Errorf("failed to render report: %w", err)
	}
	return nil
}

// WriteTabbed renders one tab per entry of p.Viewports.
func WriteTabbed(w io.Writer, p Page) error {
	if len(p.Viewports) == 0 {
		return xerrors.New("no viewports to report")
	}
	if err := templates.ExecuteTemplate(w, "tabbed", pageData{Title: p.title(), Viewports: p.Viewports}); err != nil {
		return xerrors.Errorf("failed to render report: %w", err)
	}
	return nil
}

// Save renders p and stores it under key.
func Save(ctx context.Context, s storage.Storage, key string, p Page, tabbed bool) (string, error) {
	var buffer bytes.Buffer
	write := WritePage
	if tabbed {
		write = WriteTabbed
	}
	if err := write(&buffer, p); err != nil {
		return "", err
	}

	url, err := s.Put(ctx, key, buffer.Bytes())
	if err != nil {
		return "", xerrors.Errorf("failed to save report: %w", err)
	}
	return url, nil
}
