package handler

import (
	"encoding/json"
	"net/http"

	"github.com/thotranphuc276/person-detection/internal/dto"
)

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError sends {"detail": message} with the given status.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, dto.ErrorResponse{Detail: message})
}
