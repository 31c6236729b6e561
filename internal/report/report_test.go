package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"visual-regression/internal/artifacts"
	"visual-regression/internal/storage"
	"visual-regression/internal/viewport"
)

func TestFromPaths(t *testing.T) {
	p, err := artifacts.New("diff_output", "", "culture", viewport.Tablet)
	if err != nil {
		t.Fatal(err)
	}

	want := Viewport{
		Name:          "tablet",
		DiffPixels:    1234,
		MaxDiffPixels: 100,
		ExpectedImage: "cultureTablet-expected.png",
		ActualImage:   "cultureTablet-actual.png",
		DiffImage:     "cultureTablet-diff.png",
	}
	got := FromPaths(p, 1234, 100)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if !got.Failed() {
		t.Error("Expected 1234 >= 100 to fail")
	}
	if (Viewport{DiffPixels: 5}).Failed() {
		t.Error("Expected no limit to never fail")
	}
}

func TestMissingBaseline(t *testing.T) {
	p, err := artifacts.New("diff_output", "", "culture", viewport.Mobile)
	if err != nil {
		t.Fatal(err)
	}

	got := MissingBaseline(p, 100)
	if !got.Failed() {
		t.Error("Expected a missing baseline to fail")
	}
	if !(Viewport{BaselineMissing: true}).Failed() {
		t.Error("Expected a missing baseline to fail without a limit")
	}

	var buffer bytes.Buffer
	if err := WriteTabbed(&buffer, Page{
		Name:      "culture",
		Viewports: []Viewport{FromPaths(p, 0, 100), got},
	}); err != nil {
		t.Fatal(err)
	}

	rendered := buffer.String()
	missing := rendered[strings.LastIndex(rendered, `<div id="mobile"`):]
	for _, s := range []string{"Baseline missing", `src="cultureMobile-actual.png"`} {
		if !strings.Contains(missing, s) {
			t.Errorf("Expected %q in missing baseline tab", s)
		}
	}
	for _, s := range []string{"-diff.png", "-expected.png", "Diff Pixels"} {
		if strings.Contains(missing, s) {
			t.Errorf("Expected no %q in missing baseline tab", s)
		}
	}
}

func TestWritePage(t *testing.T) {
	var buffer bytes.Buffer
	err := WritePage(&buffer, Page{
		Name: "About Us",
		Viewport: Viewport{
			Name:          "desktop",
			DiffPixels:    40000,
			ExpectedImage: "aboutUsDesktop-expected.png",
			ActualImage:   "aboutUsDesktop-actual.png",
			DiffImage:     "aboutUsDesktop-diff.png",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	got := buffer.String()
	for _, s := range []string{
		"Visual Regression Report - About Us Desktop",
		"<strong>Diff Pixels:</strong> 40,000",
		`src="aboutUsDesktop-expected.png"`,
		`src="aboutUsDesktop-actual.png"`,
		`src="aboutUsDesktop-diff.png"`,
		"Expected (Figma)",
		"Actual (Live)",
	} {
		if !strings.Contains(got, s) {
			t.Errorf("Expected %q in report", s)
		}
	}
}

func TestWriteTabbed(t *testing.T) {
	var buffer bytes.Buffer
	err := WriteTabbed(&buffer, Page{
		Name: "<home>",
		Viewports: []Viewport{
			{Name: "desktop", DiffPixels: 3, DiffImage: "homeDesktop-diff.png"},
			{Name: "mobile", DiffPixels: 1500, DiffImage: "homeMobile-diff.png"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	got := buffer.String()
	for _, s := range []string{
		`data-tab="desktop">Desktop</button>`,
		`data-tab="mobile">Mobile</button>`,
		`<div id="mobile" class="tab-content">`,
		"1,500",
		"&lt;home&gt;",
	} {
		if !strings.Contains(got, s) {
			t.Errorf("Expected %q in report", s)
		}
	}
	if strings.Contains(got, "<home>") {
		t.Error("Expected page name to be escaped")
	}
	if strings.Count(got, "tab-content active") != 1 {
		t.Error("Expected exactly one active tab")
	}
}

func TestWriteTabbed_Empty(t *testing.T) {
	if err := WriteTabbed(&bytes.Buffer{}, Page{Name: "home"}); err == nil {
		t.Error("Expected error for report without viewports")
	}
}

func TestSave(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := storage.NewFileStorage(ctx, storage.FileConfig{Directory: dir})
	if err != nil {
		t.Fatal(err)
	}

	key := artifacts.TabbedReport("diff_output", "home")
	url, err := Save(ctx, s, key, Page{
		Name:      "home",
		Viewports: []Viewport{{Name: "desktop"}},
	}, true)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(filepath.Join(dir, key), url); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	data, err := os.ReadFile(url)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("<!DOCTYPE html>")) {
		t.Error("Expected saved report to be HTML")
	}
}
