// internal/api/websocket.go
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/scholarforge/scholarforge/internal/services"
	"github.com/scholarforge/scholarforge/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// tighten for production deployments
		return true
	},
}

// WebSocketClient is one connected coach session.
type WebSocketClient struct {
	conn      *websocket.Conn
	userID    string
	send      chan []byte
	closed    int32
	lastPing  time.Time
	createdAt time.Time
}

// WebSocketManager tracks the open coach connections per user.
type WebSocketManager struct {
	connections map[string]map[*websocket.Conn]*WebSocketClient
	register    chan *WebSocketClient
	unregister  chan *WebSocketClient
	mutex       sync.RWMutex
	pingTimeout time.Duration
}

var wsManager = &WebSocketManager{
	connections: make(map[string]map[*websocket.Conn]*WebSocketClient),
	register:    make(chan *WebSocketClient, 64),
	unregister:  make(chan *WebSocketClient, 64),
	pingTimeout: 60 * time.Second,
}

func init() {
	go wsManager.run()
}

func (client *WebSocketClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

func (client *WebSocketClient) UpdatePing() {
	client.lastPing = time.Now()
}

func (client *WebSocketClient) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}
	return time.Since(client.lastPing) > timeout
}

// SendMessage queues a JSON message; a full queue drops the message
// instead of blocking the stream.
func (client *WebSocketClient) SendMessage(message map[string]interface{}) error {
	if client.IsClosed() {
		return nil
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	if client.IsClosed() {
		return nil
	}

	select {
	case client.send <- msgBytes:
		return nil
	default:
		log.Printf("message queue full for user %s, dropping message", client.userID)
		return nil
	}
}

func (client *WebSocketClient) SendError(errorMsg string) {
	client.SendMessage(map[string]interface{}{
		"type":      "error",
		"error":     errorMsg,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (manager *WebSocketManager) run() {
	cleanupTicker := time.NewTicker(30 * time.Second)
	defer cleanupTicker.Stop()

	for {
		select {
		case client := <-manager.register:
			manager.registerClient(client)
		case client := <-manager.unregister:
			manager.unregisterClient(client)
		case <-cleanupTicker.C:
			manager.cleanupExpiredConnections()
		}
	}
}

func (manager *WebSocketManager) registerClient(client *WebSocketClient) {
	if client == nil {
		return
	}

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if manager.connections[client.userID] == nil {
		manager.connections[client.userID] = make(map[*websocket.Conn]*WebSocketClient)
	}

	manager.connections[client.userID][client.conn] = client
	client.UpdatePing()
}

func (manager *WebSocketManager) unregisterClient(client *WebSocketClient) {
	if client == nil {
		return
	}

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if connections, exists := manager.connections[client.userID]; exists {
		delete(connections, client.conn)
		if len(connections) == 0 {
			delete(manager.connections, client.userID)
		}
	}

	if !client.IsClosed() {
		client.Close()
	}
}

func (manager *WebSocketManager) cleanupExpiredConnections() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for userID, connections := range manager.connections {
		for conn, client := range connections {
			if client.IsClosed() || client.IsExpired(manager.pingTimeout) {
				delete(connections, conn)
				if !client.IsClosed() {
					client.Close()
				}
			}
		}
		if len(connections) == 0 {
			delete(manager.connections, userID)
		}
	}
}

// GetStatus reports open connections, for the debug endpoint.
func (manager *WebSocketManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	users := make(map[string]interface{})
	totalConnections := 0

	for userID, connections := range manager.connections {
		active := 0
		for _, client := range connections {
			if client != nil && !client.IsClosed() {
				active++
			}
		}
		users[userID] = map[string]interface{}{"client_count": active}
		totalConnections += active
	}

	return map[string]interface{}{
		"total_users":       len(manager.connections),
		"total_connections": totalConnections,
		"users":             users,
	}
}

// GetWebSocketStatus reports the open coach connections.
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	h.Response.Success(c, wsManager.GetStatus())
}

// WebSocketHandler streams coach replies over a websocket.
type WebSocketHandler struct {
	Coach *services.CoachService
	LLM   *services.LLMService
}

func NewWebSocketHandler(coach *services.CoachService, llm *services.LLMService) *WebSocketHandler {
	return &WebSocketHandler{
		Coach: coach,
		LLM:   llm,
	}
}

// coachInbound is what the frontend sends on the coach channel.
type coachInbound struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// CoachWebSocket upgrades the connection and runs the chat loop:
// each inbound message is answered with a stream of chunk frames
// followed by a done frame, and the exchange is persisted.
func (h *WebSocketHandler) CoachWebSocket(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Error("WebSocket upgrade failed", map[string]interface{}{"err": err})
		return
	}

	client := &WebSocketClient{
		conn:      conn,
		userID:    userID,
		send:      make(chan []byte, 64),
		createdAt: time.Now(),
		lastPing:  time.Now(),
	}

	wsManager.register <- client

	go h.writeLoop(client)
	h.readLoop(client)
}

func (h *WebSocketHandler) writeLoop(client *WebSocketClient) {
	pingTicker := time.NewTicker(30 * time.Second)
	defer func() {
		pingTicker.Stop()
		client.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-pingTicker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) readLoop(client *WebSocketClient) {
	defer func() {
		wsManager.unregister <- client
	}()

	client.conn.SetReadDeadline(time.Now().Add(wsManager.pingTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(wsManager.pingTimeout))
		return nil
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(wsManager.pingTimeout))

		var inbound coachInbound
		if err := json.Unmarshal(raw, &inbound); err != nil {
			client.SendError("invalid message format")
			continue
		}

		switch inbound.Type {
		case "chat":
			if strings.TrimSpace(inbound.Message) == "" {
				client.SendError("a chat message is required")
				continue
			}
			h.streamReply(client, inbound.Message)
		case "ping":
			client.SendMessage(map[string]interface{}{"type": "pong"})
		default:
			client.SendError("unknown message type")
		}
	}
}

// streamReply streams the coach's answer chunk by chunk and persists
// the full exchange when the stream completes. A failed stream records
// the apology reply, mirroring the non-streaming chat path.
func (h *WebSocketHandler) streamReply(client *WebSocketClient, input string) {
	request, err := h.Coach.BuildStreamRequest(client.userID, input)
	if err != nil {
		client.SendError("failed to load project: " + err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	stream, err := h.LLM.StreamChatCompletion(ctx, request)
	if err != nil {
		utils.GetLogger().Error("Coach stream failed to start",
			map[string]interface{}{"user_id": client.userID, "err": err})
		h.Coach.RecordExchange(client.userID, input, services.CoachApologyMessage)
		client.SendMessage(map[string]interface{}{
			"type": "done",
			"text": services.CoachApologyMessage,
		})
		return
	}

	var full strings.Builder
	for chunk := range stream {
		if chunk.Done {
			if chunk.Text != "" {
				full.Reset()
				full.WriteString(chunk.Text)
			}
			break
		}
		full.WriteString(chunk.Text)
		client.SendMessage(map[string]interface{}{
			"type": "chunk",
			"text": chunk.Text,
		})
	}

	reply := full.String()
	if strings.TrimSpace(reply) == "" {
		reply = services.CoachApologyMessage
	}

	if _, err := h.Coach.RecordExchange(client.userID, input, reply); err != nil {
		utils.GetLogger().Error("Failed to persist coach exchange",
			map[string]interface{}{"user_id": client.userID, "err": err})
	}

	client.SendMessage(map[string]interface{}{
		"type": "done",
		"text": reply,
	})
}
