package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"visual-regression/internal/artifacts"
	"visual-regression/internal/compare"
	"visual-regression/internal/env"
	"visual-regression/internal/report"
	"visual-regression/internal/storage"
	"visual-regression/internal/viewport"
)

type CompareOutput struct {
	Page             string          `json:"page"`
	DiffPixels       int             `json:"diffPixels"`
	DiffAmount       float64         `json:"diffAmount"`
	Passed           bool            `json:"passed"`
	ActualPath       string          `json:"actualPath"`
	DiffPath         string          `json:"diffPath"`
	ExpectedCopyPath string          `json:"expectedCopyPath"`
	ReportPath       string          `json:"reportPath,omitempty"`
	Viewport         report.Viewport `json:"viewport"`
}

func main() {
	var directory string
	var storageBackend string
	var s3Bucket string
	var outputDir string
	var baselineDir string
	var page string
	var viewportName string
	var threshold float64
	var includeAntiAlias bool
	var maxDiffPixels int
	var writeReport bool
	flag.StringVar(&directory, "directory", env.OrDefault("DIRECTORY", "."), "Directory relative artifact paths are resolved against")
	flag.StringVar(&storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	flag.StringVar(&s3Bucket, "s3-bucket", env.OrDefault("S3_BUCKET", ""), "S3 bucket when using the s3 backend")
	flag.StringVar(&outputDir, "output-dir", env.OrDefault("OUTPUT_DIR", artifacts.DefaultOutputDir), "Directory for actual, diff and expected copies")
	flag.StringVar(&baselineDir, "baseline-dir", env.OrDefault("BASELINE_DIR", artifacts.DefaultBaselineDir), "Directory holding the baselines")
	flag.StringVar(&page, "page", env.OrDefault("PAGE", ""), "Page name")
	flag.StringVar(&viewportName, "viewport", env.OrDefault("VIEWPORT", viewport.Desktop.Name), "Viewport name (desktop, laptop, tablet or mobile)")
	flag.Float64Var(&threshold, "threshold", env.OrDefault("THRESHOLD", compare.DefaultConfig().Threshold), "Color distance threshold above 0 and up to 1")
	flag.BoolVar(&includeAntiAlias, "include-anti-alias", env.OrDefault("INCLUDE_ANTI_ALIAS", false), "Count anti-aliased pixels as differences")
	flag.IntVar(&maxDiffPixels, "max-diff-pixels", env.OrDefault("MAX_DIFF_PIXELS", 100), "Exit with status 1 when this many pixels or more differ")
	flag.BoolVar(&writeReport, "report", env.OrDefault("REPORT", true), "Write the single viewport HTML report")

	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		log.Fatalf("actual screenshot not specified")
	}

	v, err := viewport.Lookup(viewportName)
	if err != nil {
		log.Fatalf("Invalid viewport: %v", err)
	}
	paths, err := artifacts.New(outputDir, baselineDir, page, v)
	if err != nil {
		log.Fatalf("Invalid page: %v", err)
	}
	if threshold <= 0 || threshold > 1 {
		log.Fatalf("threshold must be above 0 and at most 1: %v", threshold)
	}

	ctx := context.Background()
	s, err := storage.New(ctx, storageBackend, storage.Config{
		File: storage.FileConfig{Directory: directory},
		S3:   storage.S3Config{Bucket: s3Bucket, EndpointURL: os.Getenv("S3_ENDPOINT_URL")},
	})
	if err != nil {
		log.Fatalf("Failed to create storage backend: %v", err)
	}

	actual, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatalf("Failed to read actual screenshot: %v", err)
	}

	engine := compare.NewEngine(s, compare.Config{
		Threshold:        threshold,
		IncludeAntiAlias: includeAntiAlias,
	})
	result, err := engine.CompareResult(ctx, actual, paths.Request())
	if err != nil {
		log.Fatalf("Failed to compare screenshots: %v", err)
	}

	summary := report.FromPaths(paths, result.DiffPixels, maxDiffPixels)
	output := CompareOutput{
		Page:             page,
		DiffPixels:       result.DiffPixels,
		DiffAmount:       result.DiffAmount,
		Passed:           !summary.Failed(),
		ActualPath:       result.ActualURL,
		DiffPath:         result.DiffURL,
		ExpectedCopyPath: result.ExpectedCopyURL,
		Viewport:         summary,
	}

	if writeReport {
		output.ReportPath, err = report.Save(ctx, s, paths.Report(), report.Page{
			Name:     page,
			Viewport: summary,
		}, false)
		if err != nil {
			log.Fatalf("Failed to write report: %v", err)
		}
	}

	if err := json.NewEncoder(os.Stdout).Encode(output); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}

	if !output.Passed {
		os.Exit(1)
	}
}
