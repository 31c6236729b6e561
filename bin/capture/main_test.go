package main

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolveURL(t *testing.T) {
	type in struct {
		first  string
		second string
	}

	type want struct {
		first string
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
				"https://example.com/",
				"/about",
			},
			want{
				"https://example.com/about",
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				"https://example.com/",
				"https://other.example.com/pricing",
			},
			want{
				"https://other.example.com/pricing",
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				"",
				"http://localhost:3000/",
			},
			want{
				"http://localhost:3000/",
			},
		},
	}

	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := resolveURL(in.first, in.second)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(want.first, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}
