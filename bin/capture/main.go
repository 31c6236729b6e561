package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"visual-regression/internal/artifacts"
	"visual-regression/internal/capture"
	"visual-regression/internal/compare"
	"visual-regression/internal/env"
	"visual-regression/internal/logging"
	"visual-regression/internal/report"
	"visual-regression/internal/storage"
	"visual-regression/internal/viewport"
)

type CaptureOutput struct {
	Page       string          `json:"page"`
	URL        string          `json:"url"`
	ActualPath string          `json:"actualPath"`
	DiffPixels *int            `json:"diffPixels,omitempty"`
	Passed     *bool           `json:"passed,omitempty"`
	Viewport   report.Viewport `json:"viewport"`
}

type headers []string

func (h *headers) String() string {
	return strings.Join(*h, ", ")
}

func (h *headers) Set(value string) error {
	*h = append(*h, value)
	return nil
}

// resolveURL joins a path onto baseURL. Absolute URLs are returned as is.
func resolveURL(baseURL string, target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if u.IsAbs() || baseURL == "" {
		return target, nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

func main() {
	var directory string
	var storageBackend string
	var s3Bucket string
	var outputDir string
	var baselineDir string
	var baseURL string
	var page string
	var viewports string
	var maskSelectors string
	var delay time.Duration
	var userAgent string
	var chromeDevtoolsProtocolURL string
	var cookieButtonText string
	var compareBaseline bool
	var maxDiffPixels int
	var debug bool
	var headers headers
	flag.StringVar(&directory, "directory", env.OrDefault("DIRECTORY", "."), "Directory relative artifact paths are resolved against")
	flag.StringVar(&storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	flag.StringVar(&s3Bucket, "s3-bucket", env.OrDefault("S3_BUCKET", ""), "S3 bucket when using the s3 backend")
	flag.StringVar(&outputDir, "output-dir", env.OrDefault("OUTPUT_DIR", artifacts.DefaultOutputDir), "Directory for actual, diff and expected copies")
	flag.StringVar(&baselineDir, "baseline-dir", env.OrDefault("BASELINE_DIR", artifacts.DefaultBaselineDir), "Directory holding the baselines")
	flag.StringVar(&baseURL, "base-url", env.OrDefault("BASEURL", ""), "Base URL relative paths are resolved against")
	flag.StringVar(&page, "page", env.OrDefault("PAGE", ""), "Page name")
	flag.StringVar(&viewports, "viewports", env.OrDefault("VIEWPORTS", "all"), "Viewports to capture: all, a count, or comma-separated names")
	flag.StringVar(&maskSelectors, "mask-selectors", env.OrDefault("MASK_SELECTORS", ""), "Comma-separated list of CSS selectors to mask during capture")
	flag.DurationVar(&delay, "delay", env.OrDefault("DELAY", 2*time.Second), "Delay after the network goes idle")
	flag.StringVar(&userAgent, "user-agent", env.OrDefault("USER_AGENT", ""), "User-Agent string to use for requests")
	flag.StringVar(&chromeDevtoolsProtocolURL, "chrome-devtools-protocol-url", env.OrDefault("CHROME_DEVTOOLS_PROTOCOL_URL", ""), "Connect to existing browser via Chrome DevTools Protocol URL (e.g., http://localhost:9222)")
	flag.StringVar(&cookieButtonText, "cookie-button", env.OrDefault("COOKIE_BUTTON", "Accept All"), "Accessible name of the cookie consent button, empty to skip")
	flag.BoolVar(&compareBaseline, "compare", env.OrDefault("COMPARE", false), "Compare each capture against its baseline and write a tabbed report")
	flag.IntVar(&maxDiffPixels, "max-diff-pixels", env.OrDefault("MAX_DIFF_PIXELS", 100), "Fail when this many pixels or more differ")
	flag.BoolVar(&debug, "debug", env.OrDefault("DEBUG", false), "Human readable debug logging")
	flag.Var(&headers, "H", "Add HTTP header (can be used multiple times, e.g., -H 'Accept: text/html' -H 'Authorization: Bearer token')")

	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		log.Fatalf("url not specified")
	}
	target, err := resolveURL(baseURL, args[0])
	if err != nil {
		log.Fatalf("Invalid url: %v", err)
	}
	if err := artifacts.ValidatePage(page); err != nil {
		log.Fatalf("Invalid page: %v", err)
	}
	selected, err := viewport.Parse(viewports)
	if err != nil {
		log.Fatalf("Invalid viewports: %v", err)
	}

	logger, err := logging.New(os.Stderr, debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx := context.Background()

	s, err := storage.New(ctx, storageBackend, storage.Config{
		File: storage.FileConfig{Directory: directory},
		S3:   storage.S3Config{Bucket: s3Bucket, EndpointURL: os.Getenv("S3_ENDPOINT_URL")},
	})
	if err != nil {
		log.Fatalf("Failed to create storage backend: %v", err)
	}

	config := capture.DefaultPlaywrightConfig()
	config.NavigationDelay = delay
	config.CookieButtonText = cookieButtonText
	if chromeDevtoolsProtocolURL != "" {
		config.ChromeDevtoolsProtocolURL = chromeDevtoolsProtocolURL
	}
	if display := os.Getenv("DISPLAY"); display != "" {
		config.Headless = false
	}
	if userAgent != "" {
		config.UserAgent = userAgent
	}

	capturer, err := capture.NewPlaywrightCapturer(ctx, config, logging.Logr(logger))
	if err != nil {
		log.Fatalf("Failed to create capturer: %v", err)
	}

	captureOptions := capture.CaptureOptions{
		Viewports: selected,
	}
	if maskSelectors != "" {
		captureOptions.MaskSelectors = strings.Split(maskSelectors, ",")
		for i := range captureOptions.MaskSelectors {
			captureOptions.MaskSelectors[i] = strings.TrimSpace(captureOptions.MaskSelectors[i])
		}
	}
	if len(headers) > 0 {
		captureOptions.Headers = make(map[string]string)
		for _, header := range headers {
			parts := strings.SplitN(header, ":", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])
				captureOptions.Headers[key] = value
			}
		}
	}

	results, err := capturer.Capture(ctx, target, captureOptions)
	if err != nil {
		log.Fatalf("Failed to capture screenshot: %v", err)
	}

	engine := compare.NewEngine(s, compare.DefaultConfig())
	outputs := make([]CaptureOutput, len(results))
	{
		eg, ctx := errgroup.WithContext(ctx)

		for i, result := range results {
			eg.Go(func() error {
				paths, err := artifacts.New(outputDir, baselineDir, page, result.Viewport)
				if err != nil {
					return err
				}
				output := CaptureOutput{
					Page: page,
					URL:  result.URL,
				}

				if !compareBaseline {
					output.ActualPath, err = s.Put(ctx, paths.Actual(), result.Screenshot)
					if err != nil {
						return err
					}
					output.Viewport = report.FromPaths(paths, 0, maxDiffPixels)
					outputs[i] = output
					return nil
				}

				r, err := engine.CompareResult(ctx, result.Screenshot, paths.Request())
				if errors.Is(err, compare.ErrNotFound) {
					logger.Error("baseline not found, keeping actual screenshot only", "viewport", result.Viewport.Name, "baseline", paths.Baseline())
					passed := false
					output.ActualPath = paths.Actual()
					output.Viewport = report.MissingBaseline(paths, maxDiffPixels)
					output.Passed = &passed
					outputs[i] = output
					return nil
				}
				if err != nil {
					return err
				}

				output.ActualPath = r.ActualURL
				output.Viewport = report.FromPaths(paths, r.DiffPixels, maxDiffPixels)
				passed := !output.Viewport.Failed()
				output.DiffPixels = &r.DiffPixels
				output.Passed = &passed
				outputs[i] = output
				return nil
			})
		}

		if err := eg.Wait(); err != nil {
			log.Fatalf("Failed to store captures: %v", err)
		}
	}

	failed := false
	if compareBaseline {
		summaries := make([]report.Viewport, 0, len(outputs))
		for _, output := range outputs {
			summaries = append(summaries, output.Viewport)
			if output.Viewport.Failed() {
				failed = true
			}
		}
		path, err := report.Save(ctx, s, artifacts.TabbedReport(outputDir, page), report.Page{
			Name:      page,
			Viewports: summaries,
		}, true)
		if err != nil {
			log.Fatalf("Failed to write report: %v", err)
		}
		logger.Info("wrote report", "path", path)
	}

	encoder := json.NewEncoder(os.Stdout)
	for _, output := range outputs {
		if err := encoder.Encode(output); err != nil {
			log.Fatalf("Failed to encode result: %v", err)
		}
	}

	if failed {
		os.Exit(1)
	}
}
