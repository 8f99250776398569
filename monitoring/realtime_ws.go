package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType is the kind of a feed message.
type MessageType string

const (
	PredictionEvent MessageType = "prediction"
	Heartbeat       MessageType = "heartbeat"
)

// Message is the envelope pushed to feed clients.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	ID        string          `json:"id"`
}

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 64
)

type client struct {
	conn     *websocket.Conn
	send     chan []byte
	clientID string
}

// PredictionFeed pushes served predictions to websocket clients. A client
// whose send buffer is full is dropped.
type PredictionFeed struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewPredictionFeed creates a feed. allowedOrigins of ["*"] accepts any
// origin; requests without an Origin header are always accepted.
func NewPredictionFeed(logger *zap.Logger, allowedOrigins []string) *PredictionFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &PredictionFeed{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Run dispatches messages until Stop is called.
func (f *PredictionFeed) Run() {
	defer f.logger.Info("prediction feed stopped")

	for {
		select {
		case c := <-f.register:
			f.mu.Lock()
			f.clients[c] = true
			total := len(f.clients)
			f.mu.Unlock()
			f.logger.Debug("feed client connected", zap.String("client_id", c.clientID), zap.Int("total", total))

		case c := <-f.unregister:
			f.mu.Lock()
			if _, ok := f.clients[c]; ok {
				delete(f.clients, c)
				close(c.send)
			}
			total := len(f.clients)
			f.mu.Unlock()
			f.logger.Debug("feed client disconnected", zap.String("client_id", c.clientID), zap.Int("total", total))

		case message := <-f.broadcast:
			f.mu.Lock()
			for c := range f.clients {
				select {
				case c.send <- message:
				default:
					close(c.send)
					delete(f.clients, c)
					f.logger.Warn("dropping slow feed client", zap.String("client_id", c.clientID))
				}
			}
			f.mu.Unlock()

		case <-f.ctx.Done():
			f.mu.Lock()
			for c := range f.clients {
				close(c.send)
				delete(f.clients, c)
			}
			f.mu.Unlock()
			return
		}
	}
}

func (f *PredictionFeed) Stop() {
	f.cancel()
}

// ClientCount returns the number of connected clients.
func (f *PredictionFeed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// HandleWebSocket upgrades the request and registers the connection.
func (f *PredictionFeed) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		clientID: uuid.NewString(),
	}
	select {
	case f.register <- c:
	case <-f.ctx.Done():
		conn.Close()
		return
	}

	go c.writePump(f.logger)
	go c.readPump(f)
}

// Publish wraps data in a Message and broadcasts it.
func (f *PredictionFeed) Publish(messageType MessageType, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	message, err := json.Marshal(Message{
		Type:      messageType,
		Timestamp: time.Now().UTC(),
		Data:      payload,
		ID:        uuid.NewString(),
	})
	if err != nil {
		return err
	}
	f.Broadcast(message)
	return nil
}

// Broadcast queues message for every client. It never blocks.
func (f *PredictionFeed) Broadcast(message []byte) {
	select {
	case f.broadcast <- message:
	default:
		f.logger.Warn("feed broadcast queue is full, dropping message")
	}
}

func (c *client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("feed write failed", zap.String("client_id", c.clientID), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so control messages are processed, and
// unregisters the client when the connection closes.
func (c *client) readPump(f *PredictionFeed) {
	defer func() {
		select {
		case f.unregister <- c:
		case <-f.ctx.Done():
		}
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				f.logger.Debug("feed client error", zap.String("client_id", c.clientID), zap.Error(err))
			}
			return
		}
	}
}
