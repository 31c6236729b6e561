package routes

import (
	"errors"
	"fmt"
	"net/http"

	"visual-regression/internal/artifacts"
	"visual-regression/internal/myhttp"
	"visual-regression/internal/storage"
	"visual-regression/internal/viewport"
)

type ApproveResponse struct {
	BaselinePath string `json:"baselinePath"`
}

// ApproveActual promotes the last actual screenshot of a page and viewport
// to be its baseline.
func ApproveActual(storageClient storage.Storage, config Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := myhttp.Logger(r.Context())

		v, err := viewport.Lookup(r.PathValue("viewport"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		paths, err := artifacts.New(config.OutputDir, config.BaselineDir, r.PathValue("page"), v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data, err := storageClient.Get(r.Context(), paths.Actual())
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			logger.Error(fmt.Sprintf("failed to get actual screenshot: %s", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		baselinePath, err := storageClient.Put(r.Context(), paths.Baseline(), data)
		if err != nil {
			logger.Error(fmt.Sprintf("failed to store baseline: %s", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		logger.Info("approved baseline", "page", paths.Page, "viewport", v.Name)
		writeJSON(w, r, http.StatusOK, ApproveResponse{BaselinePath: baselinePath})
	}
}
