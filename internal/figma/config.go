package figma

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/xerrors"

	"visual-regression/internal/artifacts"
	"visual-regression/internal/env"
	"visual-regression/internal/viewport"
)

const DefaultAPIURL = "https://api.figma.com"

// Node is a frame to export. Name is the page name followed by an optional
// viewport title, e.g. "paystationTablet".
type Node struct {
	Name string
	ID   string
}

// Target splits the node name into page and viewport. Names without a
// viewport suffix are desktop frames.
func (n Node) Target() (string, viewport.Viewport) {
	for _, v := range viewport.All() {
		if page, ok := strings.CutSuffix(n.Name, v.Title()); ok && page != "" {
			return page, v
		}
	}
	return n.Name, viewport.Desktop
}

type Config struct {
	Token     string
	FileKey   string
	OutputDir string
	APIURL    string
	Format    string
	Scale     float64
	Nodes     []Node
}

// LoadConfig reads FIGMA_* variables after loading any of the given dotenv
// files that exist. Variables already set in the environment win.
func LoadConfig(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, xerrors.Errorf("failed to load %s: %w", f, err)
		}
	}

	nodes, err := ParseNodes(env.OrDefault("FIGMA_NODES", ""))
	if err != nil {
		return Config{}, err
	}

	c := Config{
		Token:     env.OrDefault("FIGMA_TOKEN", ""),
		FileKey:   env.OrDefault("FIGMA_FILE_KEY", ""),
		OutputDir: env.OrDefault("FIGMA_OUTPUT_DIR", "./"+artifacts.DefaultBaselineDir),
		APIURL:    env.OrDefault("FIGMA_API_URL", DefaultAPIURL),
		Format:    env.OrDefault("FIGMA_FORMAT", "png"),
		Scale:     env.OrDefault("FIGMA_SCALE", 1.0),
		Nodes:     nodes,
	}
	return c, nil
}

func (c Config) Validate() error {
	switch {
	case c.Token == "":
		return xerrors.New("FIGMA_TOKEN is required")
	case c.FileKey == "":
		return xerrors.New("FIGMA_FILE_KEY is required")
	case len(c.Nodes) == 0:
		return xerrors.New("no figma nodes configured")
	}
	for _, n := range c.Nodes {
		page, _ := n.Target()
		if err := artifacts.ValidatePage(page); err != nil {
			return xerrors.Errorf("node %s: %w", n.Name, err)
		}
	}
	return nil
}

// ParseNodes parses "name=id,name=id". Node ids contain colons, so only the
// first "=" separates name from id.
func ParseNodes(s string) ([]Node, error) {
	var nodes []Node
	seen := map[string]bool{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, id, ok := strings.Cut(pair, "=")
		name, id = strings.TrimSpace(name), strings.TrimSpace(id)
		if !ok || name == "" || id == "" {
			return nil, xerrors.Errorf("invalid figma node: %q", pair)
		}
		if seen[name] {
			return nil, xerrors.Errorf("duplicate figma node: %q", name)
		}
		seen[name] = true
		node := Node{Name: name, ID: id}
		if page, _ := node.Target(); artifacts.ValidatePage(page) != nil {
			return nil, xerrors.Errorf("invalid figma node name: %q", name)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
