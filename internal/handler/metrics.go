package handler

import (
	"net/http"

	"github.com/thotranphuc276/person-detection/internal/service/telemetry"
)

// TelemetryStats is satisfied by the telemetry pipeline.
type TelemetryStats interface {
	Stats() telemetry.Stats
}

// ClientCounter is satisfied by the websocket hub.
type ClientCounter interface {
	GetClientCount() int
}

// MetricsHandler reports the telemetry counters, including dropped events,
// and the number of live viewers.
func MetricsHandler(pipeline TelemetryStats, hub ClientCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response := map[string]interface{}{
			"telemetry": pipeline.Stats(),
		}
		if hub != nil {
			response["websocket_clients"] = hub.GetClientCount()
		}
		writeJSON(w, http.StatusOK, response)
	}
}
