package middleware

import (
	"encoding/json"
	"net/http"

	"welcome-backend/internal/models"
)

// WriteRateLimited writes the 429 body shared by every rate-limited route.
func WriteRateLimited(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusTooManyRequests, models.ErrorResponse{
		Error:             message,
		RateLimitExceeded: true,
	})
}

// WriteServerError writes the generic 500 body.
func WriteServerError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{
		Error:     message,
		ErrorType: models.ErrorTypeServer,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
