package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"github.com/thotranphuc276/person-detection/internal/logger"
)

func logLevel(r *http.Request) (logger.Level, bool) {
	switch level := logger.Level(mux.Vars(r)["level"]); level {
	case logger.LevelInfo, logger.LevelWarning, logger.LevelError:
		return level, true
	default:
		return "", false
	}
}

// ShowLogsHandler serves the log file of the level in the path as text/plain.
func ShowLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level, ok := logLevel(r)
		if !ok {
			writeError(w, "Unknown log level", http.StatusNotFound)
			return
		}

		filePath := filepath.Join(log.Dir(), level.FileName())
		if _, err := os.Stat(filePath); log.Dir() == "" || os.IsNotExist(err) {
			writeError(w, "Log file not found: "+level.FileName(), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")

		http.ServeFile(w, r, filePath)
	}
}

// ClearLogsHandler truncates the log file of the level in the path.
func ClearLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level, ok := logLevel(r)
		if !ok {
			writeError(w, "Unknown log level", http.StatusNotFound)
			return
		}

		if err := log.CleanLogs(level); err != nil {
			log.Error("Failed to clear logs: %v", err)
			writeError(w, "Failed to clear log file", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
