package main

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteOutputs(t *testing.T) {
	var buffer bytes.Buffer
	if err := writeOutputs(&buffer, []byte(`{"page":"home","passed":false,"diffPixels":120,"viewport":{"name":"desktop"}}`)); err != nil {
		t.Fatal(err)
	}

	want := "diffPixels=120\npage=home\npassed=false\nviewport={\"name\":\"desktop\"}\n"
	if diff := cmp.Diff(want, buffer.String()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestWriteOutputs_NotObject(t *testing.T) {
	var buffer bytes.Buffer
	if err := writeOutputs(&buffer, []byte(`[1, 2]`)); err == nil {
		t.Error("Expected error for non-object output")
	}
}
