package routes

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"visual-regression/internal/artifacts"
	"visual-regression/internal/compare"
	"visual-regression/internal/myhttp"
	"visual-regression/internal/report"
	"visual-regression/internal/storage"
	"visual-regression/internal/viewport"
)

type CompareResponse struct {
	Page             string  `json:"page"`
	Viewport         string  `json:"viewport"`
	DiffPixels       int     `json:"diffPixels"`
	DiffAmount       float64 `json:"diffAmount"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	Passed           bool    `json:"passed"`
	ActualPath       string  `json:"actualPath"`
	DiffPath         string  `json:"diffPath"`
	ExpectedCopyPath string  `json:"expectedCopyPath"`
	ReportPath       string  `json:"reportPath,omitempty"`
}

// Compare accepts a multipart form with the "actual" screenshot and
// optionally a "baseline" that replaces the stored one before comparing.
func Compare(engine *compare.Engine, storageClient storage.Storage, config Config, diffPixels metric.Int64Histogram) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := myhttp.Logger(r.Context())

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		v := viewport.Desktop
		if name := r.FormValue("viewport"); name != "" {
			var err error
			if v, err = viewport.Lookup(name); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		paths, err := artifacts.New(config.OutputDir, config.BaselineDir, r.FormValue("page"), v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		maxDiffPixels := config.MaxDiffPixels
		if s := r.FormValue("maxDiffPixels"); s != "" {
			if maxDiffPixels, err = strconv.Atoi(s); err != nil || maxDiffPixels < 0 {
				http.Error(w, "invalid maxDiffPixels", http.StatusBadRequest)
				return
			}
		}

		actual, err := readFormFile(r.MultipartForm, "actual")
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		if _, ok := r.MultipartForm.File["baseline"]; ok {
			baseline, err := readFormFile(r.MultipartForm, "baseline")
			if err != nil {
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			if _, err := storageClient.Put(r.Context(), paths.Baseline(), baseline); err != nil {
				logger.Error(fmt.Sprintf("failed to store baseline: %s", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
		}

		result, err := engine.CompareResult(r.Context(), actual, paths.Request())
		if err != nil {
			switch {
			case errors.Is(err, compare.ErrNotFound):
				http.Error(w, "baseline not found", http.StatusNotFound)
			case errors.Is(err, compare.ErrDecode):
				http.Error(w, "image could not be decoded", http.StatusUnprocessableEntity)
			default:
				logger.Error(fmt.Sprintf("failed to compare: %s", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
			return
		}

		diffPixels.Record(r.Context(), int64(result.DiffPixels), metric.WithAttributes(
			attribute.Key("viewport").String(v.Name),
		))

		summary := report.FromPaths(paths, result.DiffPixels, maxDiffPixels)
		response := CompareResponse{
			Page:             paths.Page,
			Viewport:         v.Name,
			DiffPixels:       result.DiffPixels,
			DiffAmount:       result.DiffAmount,
			Width:            result.Width,
			Height:           result.Height,
			Passed:           !summary.Failed(),
			ActualPath:       result.ActualURL,
			DiffPath:         result.DiffURL,
			ExpectedCopyPath: result.ExpectedCopyURL,
		}

		if ok, _ := strconv.ParseBool(r.FormValue("report")); ok {
			reportPath, err := report.Save(r.Context(), storageClient, paths.Report(), report.Page{
				Name:     paths.Page,
				Viewport: summary,
			}, false)
			if err != nil {
				logger.Error(fmt.Sprintf("failed to save report: %s", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			response.ReportPath = reportPath
		}

		logger.Info("compared", "page", paths.Page, "viewport", v.Name, "diffPixels", result.DiffPixels)
		writeJSON(w, r, http.StatusOK, response)
	}
}

func readFormFile(form *multipart.Form, key string) ([]byte, error) {
	headers := form.File[key]
	if len(headers) == 0 {
		return nil, http.ErrMissingFile
	}

	f, err := headers[0].Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}
