package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"weaponcam/internal/logger"
	"weaponcam/internal/models"
	"weaponcam/internal/services/websocket"

	ws "github.com/gorilla/websocket"
)

func TestViewerStaysConnectedWhileIdle(t *testing.T) {
	oldTimeout, oldPeriod := viewerTimeout, pingPeriod
	viewerTimeout, pingPeriod = 300*time.Millisecond, 100*time.Millisecond
	t.Cleanup(func() { viewerTimeout, pingPeriod = oldTimeout, oldPeriod })

	hub := websocket.NewHubService(nil, 8, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(ViewWebsocketHandler(hub, logger.Discard()))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := ws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial viewer endpoint: %v", err)
	}
	defer client.Close()

	// The reader answers pings the way a browser does; the viewer never
	// sends a message of its own.
	messages := make(chan []byte, 4)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := client.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			messages <- data
		}
	}()

	time.Sleep(3 * 300 * time.Millisecond)

	if n := hub.GetClientCount(); n != 1 {
		t.Fatalf("Expected viewer to stay connected, got %d viewers", n)
	}

	hub.PublishLog(models.NewLogRecord(time.Now(), models.LevelInfo, "webcam", "still here"))

	select {
	case data := <-messages:
		var msg websocket.LogMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Failed to decode message: %v", err)
		}
		if msg.Type != "log" || msg.Record.Message != "still here" {
			t.Errorf("Unexpected message: %+v", msg)
		}
	case err := <-readErr:
		t.Fatalf("Viewer was disconnected: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("Log record never reached the viewer")
	}
}
