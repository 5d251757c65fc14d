package handler

import (
	"net/http"

	"github.com/thotranphuc276/person-detection/internal/config"
	"github.com/thotranphuc276/person-detection/internal/dto"
)

// RootHandler reports that the API is up and which environment it runs in.
func RootHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, dto.ServiceInfo{
			Message:     "Person Detection API is running",
			Environment: cfg.Env,
		})
	}
}
