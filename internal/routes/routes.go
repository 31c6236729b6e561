package routes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"visual-regression/internal/myhttp"
)

type Config struct {
	OutputDir   string
	BaselineDir string
	// MaxDiffPixels is the count at which a comparison is reported as failed.
	MaxDiffPixels int
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		myhttp.Logger(r.Context()).Error(fmt.Sprintf("failed to marshal json: %s", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
