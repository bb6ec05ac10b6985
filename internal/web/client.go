package web

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codefionn/promptloop/internal/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Client represents a connected dashboard over WebSocket. The dashboard is
// mostly a listener; the only inbound request is a status refresh.
type Client struct {
	ID     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan *WebMessage
	status func() *StatusInfo
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, status func() *StatusInfo) *Client {
	id, _ := generateClientID()

	return &Client{
		ID:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan *WebMessage, 256),
		status: status,
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket read error: %v", err)
			}
			break
		}

		var msg WebMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Error("Failed to unmarshal message: %v", err)
			continue
		}

		c.handleMessage(&msg)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				logger.Error("Failed to marshal message: %v", err)
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Error("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage handles incoming messages from the client
func (c *Client) handleMessage(msg *WebMessage) {
	switch msg.Type {
	case MessageTypeGetStatus:
		info := c.status()
		c.sendResponse(&WebMessage{
			Type: MessageTypeStatus,
			Data: map[string]interface{}{
				"worker":            info.Worker,
				"iteration":         info.Iteration,
				"max_iteration":     info.MaxIteration,
				"running":           info.Running,
				"total_stories":     info.Total,
				"passed_stories":    info.Passed,
				"remaining_stories": info.Remaining,
			},
			Timestamp: time.Now(),
		})

	default:
		logger.Warn("Unknown message type: %s", msg.Type)
		c.sendResponse(&WebMessage{
			Type:      MessageTypeError,
			Error:     fmt.Sprintf("unknown message type %q", msg.Type),
			Timestamp: time.Now(),
		})
	}
}

// sendResponse sends a response message to the client
func (c *Client) sendResponse(msg *WebMessage) {
	select {
	case c.send <- msg:
	default:
		logger.Warn("Client send channel full, dropping message")
	}
}

// generateClientID generates a random client ID
func generateClientID() (string, error) {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
