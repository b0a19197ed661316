package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"teamforge-downloader/internal/models"
)

// WebSocketHub manages active WebSocket connections and pushes batch
// events to every connected front end. It implements interfaces.Events,
// so the coordinator reports through it without knowing about sockets.
type WebSocketHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
	logger     arbor.ILogger
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub(logger arbor.ILogger) *WebSocketHub {
	hub := &WebSocketHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logger:     logger,
	}
	go hub.run()
	return hub
}

// run manages client connections and broadcasts
func (h *WebSocketHub) run() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			h.logger.Debug().Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mutex.Unlock()
			h.logger.Debug().Msg("WebSocket client disconnected")

		case message := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				err := client.WriteMessage(websocket.TextMessage, message)
				if err != nil {
					h.logger.Warn().Err(err).Msg("Failed to send WebSocket message")
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mutex.RUnlock()

		case <-ticker.C:
			// Heartbeat keeps idle connections from being reaped by proxies.
			h.send("status", "online")
		}
	}
}

func (h *WebSocketHub) send(eventType string, data interface{}) {
	msg := map[string]interface{}{
		"type":      eventType,
		"data":      data,
		"timestamp": time.Now().Unix(),
	}
	jsonData, _ := json.Marshal(msg)
	select {
	case h.broadcast <- jsonData:
	default:
		// Drop events rather than block the batch worker.
	}
}

// BusyChanged broadcasts the batch busy flag.
func (h *WebSocketHub) BusyChanged(busy bool) {
	h.send("busy", map[string]interface{}{"busy": busy})
}

// Progress broadcasts batch progress as done/total plus a 0..1 fraction.
func (h *WebSocketHub) Progress(done, total int) {
	fraction := 0.0
	if total > 0 {
		fraction = float64(done) / float64(total)
	}
	h.send("progress", map[string]interface{}{
		"done":     done,
		"total":    total,
		"fraction": fraction,
	})
}

// TicketsAdded broadcasts freshly fetched tickets.
func (h *WebSocketHub) TicketsAdded(tickets []*models.Ticket) {
	h.send("tickets", ticketViews(tickets))
}

// TicketUpdated broadcasts a ticket's new processing state.
func (h *WebSocketHub) TicketUpdated(ticket *models.Ticket) {
	h.send("ticket_state", viewOf(ticket))
}

// Upgrader for WebSocket connections
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Front end is served from a different origin in development
	},
}

// WebSocketHandler handles WebSocket connection requests
func (h *WebSocketHub) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.register <- conn

	// Keep connection alive and handle messages
	go func() {
		defer func() {
			h.unregister <- conn
		}()

		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}
