package artifacts

import (
	"fmt"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"

	"visual-regression/internal/compare"
	"visual-regression/internal/viewport"
)

func TestPaths(t *testing.T) {
	p, err := New("", "", "home", viewport.Desktop)
	if err != nil {
		t.Fatal(err)
	}

	want := compare.Request{
		ExpectedPath:     filepath.FromSlash("expected_screenshots/home/homeDesktopFigma.png"),
		ActualPath:       filepath.FromSlash("diff_output/homeDesktop-actual.png"),
		DiffPath:         filepath.FromSlash("diff_output/homeDesktop-diff.png"),
		ExpectedCopyPath: filepath.FromSlash("diff_output/homeDesktop-expected.png"),
	}
	if diff := cmp.Diff(want, p.Request()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(filepath.FromSlash("diff_output/homeDesktop-report.html"), p.Report()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(filepath.FromSlash("out/homeMultiViewportReport.html"), TabbedReport("out", "home")); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestPaths_Viewports(t *testing.T) {
	type in struct {
		first viewport.Viewport
	}

	type want struct {
		first  string
		second string
	}

	tests := []struct {
		name string
		in   in
		want want
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				viewport.Mobile,
			},
			want{
				"base/pricing/pricingMobileFigma.png",
				"out/pricingMobile-diff.png",
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				viewport.Laptop,
			},
			want{
				"base/pricing/pricingLaptopFigma.png",
				"out/pricingLaptop-diff.png",
			},
		},
	}

	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p, err := New("out", "base", "pricing", in.first)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(filepath.FromSlash(want.first), p.Baseline()); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(filepath.FromSlash(want.second), p.Diff()); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidatePage(t *testing.T) {
	for _, page := range []string{"", "..", "a/b", `a\b`} {
		if err := ValidatePage(page); err == nil {
			t.Errorf("Expected error for page %q", page)
		}
	}
	if err := ValidatePage("home"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
