package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// parseTopK reads the optional topK query parameter. Zero means "use the
// configured default".
func parseTopK(r *http.Request) int {
	raw := r.URL.Query().Get("topK")
	if raw == "" {
		return 0
	}
	topK, err := strconv.Atoi(raw)
	if err != nil || topK < 0 {
		return 0
	}
	return topK
}
