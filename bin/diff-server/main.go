package main

import (
	"context"
	"flag"
	"log"
	"os"

	"visual-regression/internal/artifacts"
	"visual-regression/internal/compare"
	"visual-regression/internal/env"
	"visual-regression/internal/routes"
	"visual-regression/internal/runnable"
	"visual-regression/internal/storage"
)

func main() {
	var directory string
	var storageBackend string
	var s3Bucket string
	var s3Prefix string
	var outputDir string
	var baselineDir string
	var threshold float64
	var includeAntiAlias bool
	var workers int
	var maxDiffPixels int
	flag.StringVar(&directory, "directory", env.OrDefault("DIRECTORY", "."), "Directory relative artifact paths are resolved against")
	flag.StringVar(&storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	flag.StringVar(&s3Bucket, "s3-bucket", env.OrDefault("S3_BUCKET", ""), "S3 bucket when using the s3 backend")
	flag.StringVar(&s3Prefix, "s3-prefix", env.OrDefault("S3_PREFIX", ""), "Key prefix when using the s3 backend")
	flag.StringVar(&outputDir, "output-dir", env.OrDefault("OUTPUT_DIR", artifacts.DefaultOutputDir), "Directory for actual, diff and expected copies")
	flag.StringVar(&baselineDir, "baseline-dir", env.OrDefault("BASELINE_DIR", artifacts.DefaultBaselineDir), "Directory holding the baselines")
	flag.Float64Var(&threshold, "threshold", env.OrDefault("THRESHOLD", compare.DefaultConfig().Threshold), "Color distance threshold above 0 and up to 1")
	flag.BoolVar(&includeAntiAlias, "include-anti-alias", env.OrDefault("INCLUDE_ANTI_ALIAS", false), "Count anti-aliased pixels as differences")
	flag.IntVar(&workers, "workers", env.OrDefault("WORKERS", 0), "Goroutines per comparison, 0 for GOMAXPROCS")
	flag.IntVar(&maxDiffPixels, "max-diff-pixels", env.OrDefault("MAX_DIFF_PIXELS", 100), "Default pass limit for reports")
	flag.BoolVar(&runnable.Debug, "debug", env.OrDefault("DEBUG", false), "Enable pprof endpoints and human readable logging")

	flag.Parse()

	ctx := context.Background()

	s, err := storage.New(ctx, storageBackend, storage.Config{
		File: storage.FileConfig{Directory: directory},
		S3: storage.S3Config{
			Bucket:      s3Bucket,
			Prefix:      s3Prefix,
			EndpointURL: os.Getenv("S3_ENDPOINT_URL"),
		},
	})
	if err != nil {
		log.Fatalf("Failed to create storage backend: %v", err)
	}

	engine := compare.NewEngine(s, compare.Config{
		Threshold:        threshold,
		IncludeAntiAlias: includeAntiAlias,
		Workers:          workers,
	})

	server := runnable.NewServer(s, engine, routes.Config{
		OutputDir:     outputDir,
		BaselineDir:   baselineDir,
		MaxDiffPixels: maxDiffPixels,
	})
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
