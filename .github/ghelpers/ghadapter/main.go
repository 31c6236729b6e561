package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"slices"
)

// writeOutputs appends the top level keys of a JSON object as step outputs.
// Nested values are written as compact JSON so later steps can use fromJSON.
func writeOutputs(w io.Writer, output []byte) error {
	var result map[string]json.RawMessage
	if err := json.Unmarshal(output, &result); err != nil {
		return err
	}

	for _, key := range slices.Sorted(maps.Keys(result)) {
		value := result[key]
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			s = string(value)
		}
		if _, err := fmt.Fprintf(w, "%s=%s\n", key, s); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if len(os.Args) < 2 {
		os.Exit(1)
	}

	var args []string
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	cmd := exec.Command(os.Args[1], args...)
	cmd.Stdin = os.Stdin
	cmd.Stderr = os.Stderr

	// A failed comparison still prints its result, so outputs are written
	// before the exit code is passed on.
	output, err := cmd.Output()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			os.Exit(1)
		}
		code = exitErr.ExitCode()
	}
	_, _ = os.Stdout.Write(output)

	if githubOutput := os.Getenv("GITHUB_OUTPUT"); githubOutput != "" && len(output) > 0 {
		f, err := os.OpenFile(githubOutput, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			os.Exit(1)
		}
		if err := writeOutputs(f, output); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write outputs: %v\n", err)
		}
		_ = f.Close()
	}

	os.Exit(code)
}
