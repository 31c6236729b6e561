package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"

	"visual-regression/internal/artifacts"
	"visual-regression/internal/env"
	"visual-regression/internal/report"
	"visual-regression/internal/storage"
)

// CompareOutput is the subset of the bin/compare output a report needs.
type CompareOutput struct {
	Page     string          `json:"page"`
	Viewport report.Viewport `json:"viewport"`
}

type ReportOutput struct {
	Page       string `json:"page"`
	ReportPath string `json:"reportPath"`
	Viewports  int    `json:"viewports"`
	Failed     int    `json:"failed"`
}

func main() {
	var directory string
	var outputDir string
	flag.StringVar(&directory, "directory", env.OrDefault("DIRECTORY", "."), "Directory relative artifact paths are resolved against")
	flag.StringVar(&outputDir, "output-dir", env.OrDefault("OUTPUT_DIR", artifacts.DefaultOutputDir), "Directory the reports are written to")

	flag.Parse()

	var inputs []io.Reader
	for _, name := range flag.Args() {
		f, err := os.Open(name)
		if err != nil {
			log.Fatalf("Failed to open result file: %v", err)
		}
		defer f.Close()
		inputs = append(inputs, f)
	}
	if len(inputs) == 0 {
		inputs = append(inputs, os.Stdin)
	}

	var order []string
	pages := map[string][]report.Viewport{}
	for _, input := range inputs {
		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			if len(scanner.Bytes()) == 0 {
				continue
			}
			var result CompareOutput
			if err := json.Unmarshal(scanner.Bytes(), &result); err != nil {
				log.Fatalf("Failed to decode result: %v", err)
			}
			if _, ok := pages[result.Page]; !ok {
				order = append(order, result.Page)
			}
			pages[result.Page] = append(pages[result.Page], result.Viewport)
		}
		if err := scanner.Err(); err != nil {
			log.Fatalf("Failed to read results: %v", err)
		}
	}

	ctx := context.Background()
	s, err := storage.NewFileStorage(ctx, storage.FileConfig{
		Directory: directory,
	})
	if err != nil {
		log.Fatalf("Failed to create storage backend: %v", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	for _, page := range order {
		if err := artifacts.ValidatePage(page); err != nil {
			log.Fatalf("Invalid page: %v", err)
		}

		viewports := pages[page]
		path, err := report.Save(ctx, s, artifacts.TabbedReport(outputDir, page), report.Page{
			Name:      page,
			Viewports: viewports,
		}, true)
		if err != nil {
			log.Fatalf("Failed to write report: %v", err)
		}

		failed := 0
		for _, v := range viewports {
			if v.Failed() {
				failed++
			}
		}
		if err := encoder.Encode(ReportOutput{
			Page:       page,
			ReportPath: path,
			Viewports:  len(viewports),
			Failed:     failed,
		}); err != nil {
			log.Fatalf("Failed to encode result: %v", err)
		}
	}
}
