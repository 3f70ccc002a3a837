package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// TimestampLayout is the ISO-8601 UTC form used in response bodies.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp formats t for a response body.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// WriteJSON writes a JSON response with the given status code and data.
// Encoding failures are logged; the status line has already been sent.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteErrorAt writes a JSON error response stamped with t.
func WriteErrorAt(w http.ResponseWriter, status int, message string, t time.Time) {
	WriteJSON(w, status, map[string]string{"error": message, "timestamp": Timestamp(t)})
}
