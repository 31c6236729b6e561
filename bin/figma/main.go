package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"visual-regression/internal/env"
	"visual-regression/internal/figma"
	"visual-regression/internal/logging"
	"visual-regression/internal/storage"
)

func main() {
	var envFile string
	var directory string
	var storageBackend string
	var s3Bucket string
	var schedule string
	var timeout time.Duration
	var debug bool
	flag.StringVar(&envFile, "env-file", env.OrDefault("ENV_FILE", ".env"), "Dotenv file holding the FIGMA_* settings")
	flag.StringVar(&directory, "directory", env.OrDefault("DIRECTORY", "."), "Directory relative baseline paths are resolved against")
	flag.StringVar(&storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	flag.StringVar(&s3Bucket, "s3-bucket", env.OrDefault("S3_BUCKET", ""), "S3 bucket when using the s3 backend")
	flag.StringVar(&schedule, "schedule", env.OrDefault("SCHEDULE", ""), "Cron expression to keep exporting on, empty to export once")
	flag.DurationVar(&timeout, "timeout", env.OrDefault("TIMEOUT", 60*time.Second), "Timeout of each Figma API request")
	flag.BoolVar(&debug, "debug", env.OrDefault("DEBUG", false), "Human readable debug logging")

	flag.Parse()

	config, err := figma.LoadConfig(envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(os.Stderr, debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer cancel()

	s, err := storage.New(ctx, storageBackend, storage.Config{
		File: storage.FileConfig{Directory: directory},
		S3:   storage.S3Config{Bucket: s3Bucket, EndpointURL: os.Getenv("S3_ENDPOINT_URL")},
	})
	if err != nil {
		log.Fatalf("Failed to create storage backend: %v", err)
	}

	client := figma.NewClient(config.APIURL, config.Token, figma.NewHTTPClient(timeout))
	exporter, err := figma.NewExporter(client, s, config, logging.Logr(logger))
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if schedule != "" {
		parsed, err := figma.ParseSchedule(schedule)
		if err != nil {
			log.Fatalf("Invalid schedule: %v", err)
		}
		logger.Info("exporting on schedule", "schedule", schedule, "nodes", len(config.Nodes))
		if err := exporter.Run(ctx, parsed); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("Export loop failed: %v", err)
		}
		return
	}

	exported, err := exporter.Export(ctx)
	if err != nil {
		log.Fatalf("Failed to export baselines: %v", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	for _, e := range exported {
		if err := encoder.Encode(e); err != nil {
			log.Fatalf("Failed to encode result: %v", err)
		}
	}
}
