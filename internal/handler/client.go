package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/thotranphuc276/person-detection/internal/logger"
	wshub "github.com/thotranphuc276/person-detection/internal/service/websocket"
)

// NewUpgrader upgrades HTTP connections to WebSocket. Requests without an
// Origin header are accepted; browser requests must come from allowedOrigins.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		},
	}
}

// DetectionsWebsocketHandler registers viewers in the hub so they receive every
// newly stored detection.
func DetectionsWebsocketHandler(hub *wshub.HubService, upgrader *websocket.Upgrader, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		hub.Register(connection)
		defer hub.Unregister(connection)

		logger.Info("Viewer connected")

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Error("Viewer disconnected with error: %v", err)
				}
				break
			}
		}
	}
}
