package routes

import (
	"net/http"

	"visual-regression/internal/viewport"
)

type ViewportResponse struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func ListViewports() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all := viewport.All()
		response := make([]ViewportResponse, 0, len(all))
		for _, v := range all {
			response = append(response, ViewportResponse{Name: v.Name, Width: v.Width, Height: v.Height})
		}
		writeJSON(w, r, http.StatusOK, response)
	}
}
