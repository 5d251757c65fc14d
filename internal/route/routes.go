package route

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/thotranphuc276/person-detection/internal/config"
	"github.com/thotranphuc276/person-detection/internal/handler"
	"github.com/thotranphuc276/person-detection/internal/logger"
	"github.com/thotranphuc276/person-detection/internal/middleware"
	"github.com/thotranphuc276/person-detection/internal/service"
	"github.com/thotranphuc276/person-detection/internal/service/websocket"
)

// SetupRoutes registers the API endpoints, static result/upload serving and
// log endpoints, and wraps the router with CORS and request logging.
func SetupRoutes(manager *service.Manager, hub *websocket.HubService, pipeline handler.TelemetryStats,
	cfg *config.Config, logger *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", handler.RootHandler(cfg)).Methods(http.MethodGet)

	// API endpoints; both slash forms are accepted
	for _, path := range []string{"/detection", "/detection/"} {
		r.HandleFunc(path, handler.DetectionHandler(manager, logger)).Methods(http.MethodPost)
	}
	for _, path := range []string{"/history", "/history/"} {
		r.HandleFunc(path, handler.HistoryHandler(manager, logger)).Methods(http.MethodGet)
	}
	r.HandleFunc("/history/stats", handler.HistoryStatsHandler(manager, logger)).Methods(http.MethodGet)
	r.HandleFunc("/history/{id}", handler.HistoryItemHandler(manager, logger)).Methods(http.MethodGet)

	// Monitoring
	r.HandleFunc("/metrics", handler.MetricsHandler(pipeline, hub)).Methods(http.MethodGet)
	r.HandleFunc("/ws/detections", handler.DetectionsWebsocketHandler(hub, handler.NewUpgrader(cfg.CORSOrigins), logger))

	// Log endpoints
	r.HandleFunc("/logs/{level}", handler.ShowLogsHandler(logger)).Methods(http.MethodGet)
	r.HandleFunc("/logs/{level}", handler.ClearLogsHandler(logger)).Methods(http.MethodDelete)

	// Static files
	r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDirectory))))
	r.PathPrefix("/results/").Handler(http.StripPrefix("/results/", http.FileServer(http.Dir(cfg.ResultsDirectory))))

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Not Found"}`))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"detail":"Method Not Allowed"}`))
	})

	var h http.Handler = r
	h = middleware.RequestLogger(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}
