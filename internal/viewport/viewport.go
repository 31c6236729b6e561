package viewport

import (
	"strings"

	"golang.org/x/xerrors"
)

type Viewport struct {
	Name   string
	Width  int
	Height int
}

// Title returns the name as used in artifact file names, e.g. "Desktop".
func (v Viewport) Title() string {
	if v.Name == "" {
		return ""
	}
	return strings.ToUpper(v.Name[:1]) + v.Name[1:]
}

var (
	Desktop = Viewport{Name: "desktop", Width: 1800, Height: 1000}
	Laptop  = Viewport{Name: "laptop", Width: 1440, Height: 1000}
	Tablet  = Viewport{Name: "tablet", Width: 768, Height: 1000}
	Mobile  = Viewport{Name: "mobile", Width: 360, Height: 1000}
)

// All lists every known viewport, widest first.
func All() []Viewport {
	return []Viewport{Desktop, Laptop, Tablet, Mobile}
}

// Enabled returns the first n viewports of All.
func Enabled(n int) []Viewport {
	all := All()
	n = max(0, min(n, len(all)))
	return all[:n]
}

func Lookup(name string) (Viewport, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, v := range All() {
		if v.Name == name {
			return v, nil
		}
	}
	return Viewport{}, xerrors.Errorf("unknown viewport: %q", name)
}

// Select returns the named viewports in the order given.
func Select(names ...string) ([]Viewport, error) {
	viewports := make([]Viewport, 0, len(names))
	for _, name := range names {
		v, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		viewports = append(viewports, v)
	}
	return viewports, nil
}

// Parse accepts a comma separated list of names, "all", or a count.
func Parse(s string) ([]Viewport, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || strings.EqualFold(s, "all"):
		return All(), nil
	case len(s) == 1 && s[0] >= '0' && s[0] <= '9':
		return Enabled(int(s[0] - '0')), nil
	}

	var names []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return Select(names...)
}
