package figma

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"

	"visual-regression/internal/viewport"
)

func TestParseNodes(t *testing.T) {
	type in struct {
		first string
	}

	type want struct {
		first []Node
		err   bool
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
				"paystation=2400:25513, paystationMobile=2400:39496",
			},
			want{
				[]Node{
					{Name: "paystation", ID: "2400:25513"},
					{Name: "paystationMobile", ID: "2400:39496"},
				},
				false,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				"",
			},
			want{
				nil,
				false,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				"paystation",
			},
			want{
				nil,
				true,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				"home=1:1,home=1:2",
			},
			want{
				nil,
				true,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				"../x=1:1",
			},
			want{
				nil,
				true,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				"..Tablet=1:2",
			},
			want{
				nil,
				true,
			},
		},
	}

	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseNodes(in.first)
			if (err != nil) != want.err {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(want.first, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestNode_Target(t *testing.T) {
	type in struct {
		first Node
	}

	type want struct {
		first  string
		second viewport.Viewport
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
				Node{Name: "paystation"},
			},
			want{
				"paystation",
				viewport.Desktop,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				Node{Name: "paystationTablet"},
			},
			want{
				"paystation",
				viewport.Tablet,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				Node{Name: "Mobile"},
			},
			want{
				"Mobile",
				viewport.Desktop,
			},
		},
	}

	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			page, v := in.first.Target()
			if diff := cmp.Diff(want.first, page); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want.second, v); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dotenv := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(dotenv, []byte("FIGMA_TOKEN=from-file\nFIGMA_FILE_KEY=abc\nFIGMA_NODES=home=1:2,homeLaptop=1:3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	// godotenv does not override variables that are already set.
	t.Setenv("FIGMA_TOKEN", "from-env")
	t.Setenv("FIGMA_FILE_KEY", "")
	t.Setenv("FIGMA_NODES", "")
	os.Unsetenv("FIGMA_FILE_KEY")
	os.Unsetenv("FIGMA_NODES")

	got, err := LoadConfig(dotenv, filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatal(err)
	}

	want := Config{
		Token:     "from-env",
		FileKey:   "abc",
		OutputDir: "./expected_screenshots",
		APIURL:    DefaultAPIURL,
		Format:    "png",
		Scale:     1,
		Nodes: []Node{
			{Name: "home", ID: "1:2"},
			{Name: "homeLaptop", ID: "1:3"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{Token: "t", FileKey: "k", Nodes: []Node{{Name: "home", ID: "1:1"}}}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	for _, c := range []Config{
		{FileKey: "k", Nodes: valid.Nodes},
		{Token: "t", Nodes: valid.Nodes},
		{Token: "t", FileKey: "k"},
		{Token: "t", FileKey: "k", Nodes: []Node{{Name: "../home", ID: "1:1"}}},
	} {
		if err := c.Validate(); err == nil {
			t.Errorf("Expected error for %+v", c)
		}
	}
}
