package artifacts

import (
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"

	"visual-regression/internal/compare"
	"visual-regression/internal/viewport"
)

const (
	DefaultOutputDir   = "diff_output"
	DefaultBaselineDir = "expected_screenshots"
)

// Paths derives every artifact location for one page at one viewport.
type Paths struct {
	OutputDir   string
	BaselineDir string
	Page        string
	Viewport    viewport.Viewport
}

func New(outputDir string, baselineDir string, page string, v viewport.Viewport) (Paths, error) {
	if err := ValidatePage(page); err != nil {
		return Paths{}, err
	}
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	if baselineDir == "" {
		baselineDir = DefaultBaselineDir
	}
	return Paths{
		OutputDir:   outputDir,
		BaselineDir: baselineDir,
		Page:        page,
		Viewport:    v,
	}, nil
}

// ValidatePage rejects names that would escape the output directories.
func ValidatePage(page string) error {
	if page == "" {
		return xerrors.New("page name is empty")
	}
	if strings.ContainsAny(page, `/\`) || page == "." || page == ".." {
		return xerrors.Errorf("invalid page name: %q", page)
	}
	return nil
}

func (p Paths) stem() string {
	return p.Page + p.Viewport.Title()
}

// Baseline is the design export, <baseline>/<page>/<page><Viewport>Figma.png.
func (p Paths) Baseline() string {
	return BaselineKey(p.BaselineDir, p.Page, p.Viewport)
}

func (p Paths) Actual() string {
	return filepath.Join(p.OutputDir, p.stem()+"-actual.png")
}

func (p Paths) Diff() string {
	return filepath.Join(p.OutputDir, p.stem()+"-diff.png")
}

func (p Paths) ExpectedCopy() string {
	return filepath.Join(p.OutputDir, p.stem()+"-expected.png")
}

func (p Paths) Report() string {
	return filepath.Join(p.OutputDir, p.stem()+"-report.html")
}

func (p Paths) Request() compare.Request {
	return compare.Request{
		ExpectedPath:     p.Baseline(),
		ActualPath:       p.Actual(),
		DiffPath:         p.Diff(),
		ExpectedCopyPath: p.ExpectedCopy(),
	}
}

func BaselineKey(baselineDir string, page string, v viewport.Viewport) string {
	return filepath.Join(baselineDir, page, page+v.Title()+"Figma.png")
}

func TabbedReport(outputDir string, page string) string {
	return filepath.Join(outputDir, page+"MultiViewportReport.html")
}
