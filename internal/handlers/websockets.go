package handlers

import (
	"net/http"
	"time"
	"weaponcam/internal/logger"
	"weaponcam/internal/services/websocket"

	ws "github.com/gorilla/websocket"
)

var Upgrader = ws.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var (
	// viewerTimeout is how long a viewer may stay silent, pongs included.
	viewerTimeout = 60 * time.Second
	// pingPeriod must be shorter than viewerTimeout.
	pingPeriod = 50 * time.Second
	pingWait   = 10 * time.Second
)

// ViewWebsocketHandler registers a viewer with the hub and keeps the
// connection open until the viewer leaves. Viewers only listen, so the
// server pings them to keep the read deadline moving.
func ViewWebsocketHandler(hub *websocket.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		timeout, period := viewerTimeout, pingPeriod

		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(timeout))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(timeout))
			return nil
		})

		hub.Register(connection)
		defer hub.Unregister(connection)

		done := make(chan struct{})
		defer close(done)
		go keepAlive(connection, period, done)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				logger.Info("Viewer left: %v", err)
				break
			}
			connection.SetReadDeadline(time.Now().Add(timeout))
		}
	}
}

// keepAlive pings the viewer until done is closed. WriteControl may run
// alongside the hub's data writes.
func keepAlive(connection *ws.Conn, period time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := connection.WriteControl(ws.PingMessage, nil, time.Now().Add(pingWait)); err != nil {
				return
			}
		}
	}
}
