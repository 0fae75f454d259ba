// internal/api/websocket_handlers.go
package api

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/TubeDigest/internal/services"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
	wsWriteWait  = 10 * time.Second
)

// progressMessage 推送给界面的进度消息
func progressMessage(event services.ProgressEvent) map[string]interface{} {
	msg := map[string]interface{}{
		"type":       "progress",
		"stage":      event.Stage,
		"action":     event.Action,
		"session_id": event.SessionID,
		"message":    event.Message,
		"timestamp":  event.Timestamp.Format(time.RFC3339),
	}
	if event.Index != nil {
		msg["index"] = *event.Index
	}
	return msg
}

// SessionWebSocket 订阅当前会话的进度事件
func (h *Handler) SessionWebSocket(c *gin.Context) {
	sessionID := h.cookieSession(c)
	if signed := c.Query("session"); signed != "" {
		sessionID, _ = h.Signer.Verify(signed)
	}
	if _, err := h.Sessions.Snapshot(sessionID); err != nil {
		h.Response.AppError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	client := newWebSocketClient(conn, sessionID)
	h.WebSocket.Register(client)

	go h.handleWebSocketWrites(client)

	client.SendMessage(map[string]interface{}{
		"type":       "connected",
		"session_id": sessionID,
		"timestamp":  time.Now().Format(time.RFC3339),
	})

	h.handleWebSocketReads(client)
}

// handleWebSocketReads 阻塞读取直到连接关闭
func (h *Handler) handleWebSocketReads(client *WebSocketClient) {
	defer h.WebSocket.Unregister(client)

	client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		return client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", map[string]interface{}{"error": err.Error()})
			}
			return
		}
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var message map[string]interface{}
		if err := json.Unmarshal(data, &message); err != nil {
			continue
		}
		h.handleMessage(client, message)
	}
}

// handleWebSocketWrites 串行写出发送队列并定期 ping
func (h *Handler) handleWebSocketWrites(client *WebSocketClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-client.done:
			return

		case message := <-client.send:
			if client.IsClosed() {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				client.Close()
				return
			}

		case <-ticker.C:
			if client.IsClosed() {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.Close()
				return
			}
		}
	}
}

// handleMessage 处理客户端消息
func (h *Handler) handleMessage(client *WebSocketClient, message map[string]interface{}) {
	msgType, _ := message["type"].(string)
	switch msgType {
	case "ping":
		client.SendMessage(map[string]interface{}{
			"type":      "pong",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	case "snapshot":
		view, err := h.Sessions.Snapshot(client.sessionID)
		if err != nil {
			client.SendMessage(map[string]interface{}{"type": "error", "error": err.Error()})
			return
		}
		client.SendMessage(map[string]interface{}{"type": "snapshot", "data": view})
	default:
		client.SendMessage(map[string]interface{}{"type": "error", "error": "unknown message type"})
	}
}
