package routes

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"visual-regression/internal/artifacts"
	"visual-regression/internal/myhttp"
	"visual-regression/internal/storage"
	"visual-regression/internal/viewport"
)

type ArtifactsResponse struct {
	Viewport string `json:"viewport"`
	Baseline string `json:"baseline,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Expected string `json:"expected,omitempty"`
	Diff     string `json:"diff,omitempty"`
}

// ListArtifacts returns the stored images of a page, base64 encoded, for
// the viewports in the "viewports" query parameter (all by default).
// Artifacts that do not exist yet are omitted.
func ListArtifacts(storageClient storage.Storage, config Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := myhttp.Logger(r.Context())
		page := r.PathValue("page")

		viewports, err := viewport.Parse(r.URL.Query().Get("viewports"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		response := make([]ArtifactsResponse, 0, len(viewports))
		for _, v := range viewports {
			paths, err := artifacts.New(config.OutputDir, config.BaselineDir, page, v)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			entry := ArtifactsResponse{Viewport: v.Name}
			for key, dst := range map[string]*string{
				paths.Baseline():     &entry.Baseline,
				paths.Actual():       &entry.Actual,
				paths.ExpectedCopy(): &entry.Expected,
				paths.Diff():         &entry.Diff,
			} {
				data, err := storageClient.Get(r.Context(), key)
				if err != nil {
					if !errors.Is(err, storage.ErrNotFound) {
						logger.Error(fmt.Sprintf("failed to get artifact %s: %s", key, err))
						http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
						return
					}
					continue
				}
				*dst = base64.StdEncoding.EncodeToString(data)
			}
			response = append(response, entry)
		}

		writeJSON(w, r, http.StatusOK, response)
	}
}
