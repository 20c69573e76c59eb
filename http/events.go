package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"textclf/logger"
)

// EventType 事件类型
type EventType string

const (
	// EventTrained 模型训练完成
	EventTrained EventType = "trained"
	// EventReloaded 模型从磁盘重新加载
	EventReloaded EventType = "reloaded"
)

// Event 模型生命周期事件
type Event struct {
	Type      EventType `json:"type"`
	Model     string    `json:"model"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// wsClient WebSocket客户端
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// eventHub WebSocket事件中心
// The run loop owns the client map, so no lock is needed.
type eventHub struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	upgrader   websocket.Upgrader
	ctx        context.Context
	cancel     context.CancelFunc
}

func newEventHub() *eventHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &eventHub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 在生产环境中应该设置更严格的origin检查
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// run 事件分发主循环
func (h *eventHub) run() {
	defer logger.With("http").Info("event hub stopped")

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			logger.With("http").Infof("event client connected (total: %d)", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			logger.With("http").Infof("event client disconnected (total: %d)", len(h.clients))

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}

		case <-h.ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		}
	}
}

// publish 广播一条已编码的事件
func (h *eventHub) publish(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		logger.With("http").Warn("event broadcast queue is full, dropping message")
	}
}

// serveWS 处理WebSocket连接
func (h *eventHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.With("http").Warnf("websocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
}

// writePump WebSocket写入泵
func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump WebSocket读取泵
// Incoming frames are discarded, the stream is publish-only.
func (c *wsClient) readPump(h *eventHub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.ctx.Done():
		}
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.With("http").Warnf("websocket read: %v", err)
			}
			return
		}
	}
}

var (
	hub     *eventHub
	hubOnce sync.Once
)

// startEventHub 启动全局事件中心
func startEventHub() {
	hubOnce.Do(func() {
		hub = newEventHub()
		go hub.run()
	})
}

// PublishEvent 广播模型事件给所有订阅者
func PublishEvent(ev Event) {
	if hub == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		logger.With("http").Warnf("marshal event: %v", err)
		return
	}
	hub.publish(data)
}
