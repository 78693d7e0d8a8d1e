package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"weaponcam/internal/logger"
	"weaponcam/internal/models"

	"github.com/gorilla/websocket"
)

// FrameEncoder compresses a frame for the browser, e.g. to JPEG.
type FrameEncoder func(frame models.Frame) ([]byte, error)

// FrameMessage is sent for every annotated frame.
type FrameMessage struct {
	Type       string             `json:"type"`
	Camera     string             `json:"camera"`
	Seq        uint64             `json:"seq"`
	Image      string             `json:"image"`
	Detections []models.Detection `json:"detections"`
}

// LogMessage is sent for every persisted log record.
type LogMessage struct {
	Type   string           `json:"type"`
	Record models.LogRecord `json:"record"`
}

type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	encode     FrameEncoder
	mutex      sync.RWMutex
	logger     *logger.Logger
}

// NewHubService creates a hub. Frames are dropped while more than
// backlog messages are waiting to be sent.
func NewHubService(encode FrameEncoder, backlog int, logger *logger.Logger) *HubService {
	if backlog <= 0 {
		backlog = 16
	}
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, backlog),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		encode:     encode,
		logger:     logger,
	}
}

// Run serves the hub until ctx is cancelled, then closes every client.
// Run must be called at most once.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("👀 Viewer connected. Total: %d", total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("👋 Viewer disconnected. Total: %d", total)

		case message := <-h.broadcast:
			h.send(message)
		}
	}
}

func (h *HubService) send(message []byte) {
	var failed []*websocket.Conn

	h.mutex.RLock()
	for client := range h.clients {
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Error("Error sending message: %v", err)
			failed = append(failed, client)
		}
	}
	h.mutex.RUnlock()

	if len(failed) == 0 {
		return
	}
	h.mutex.Lock()
	for _, client := range failed {
		delete(h.clients, client)
		client.Close()
	}
	h.mutex.Unlock()
}

// Register adds a viewer. After Run has returned the viewer is closed.
func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes and closes a viewer. It never blocks once Run has
// returned.
func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a message for all viewers. It reports false when the
// message was dropped because the hub is behind.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		return false
	}
}

// Show implements the pipeline display. Nothing is encoded while no viewer
// is connected.
func (h *HubService) Show(sourceID string, frame models.Frame, general, weapon []models.Detection) {
	if h.GetClientCount() == 0 || h.encode == nil {
		return
	}

	image, err := h.encode(frame)
	if err != nil {
		h.logger.Warning("[%s] Could not encode frame %d for viewers: %v", sourceID, frame.Seq, err)
		return
	}

	detections := make([]models.Detection, 0, len(general)+len(weapon))
	detections = append(detections, weapon...)
	detections = append(detections, general...)

	message, err := json.Marshal(FrameMessage{
		Type:       "frame",
		Camera:     sourceID,
		Seq:        frame.Seq,
		Image:      base64.StdEncoding.EncodeToString(image),
		Detections: detections,
	})
	if err != nil {
		h.logger.Error("Failed to marshal frame message: %v", err)
		return
	}
	h.Broadcast(message)
}

// PublishLog forwards a persisted log record to viewers.
func (h *HubService) PublishLog(record models.LogRecord) {
	if h.GetClientCount() == 0 {
		return
	}
	message, err := json.Marshal(LogMessage{Type: "log", Record: record})
	if err != nil {
		h.logger.Error("Failed to marshal log message: %v", err)
		return
	}
	if !h.Broadcast(message) {
		h.logger.Warning("⚠️  Viewer queue full, log record %d not pushed", record.ID)
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
