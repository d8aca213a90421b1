package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Default client configuration constants.
const (
	defaultReadBufferSize  = 1024
	defaultWriteBufferSize = 1024
	defaultPingInterval    = 30 * time.Second
	defaultPongWait        = 60 * time.Second
	defaultWriteWait       = 10 * time.Second
	defaultMaxMessageSize  = 4096
	defaultSendBufferSize  = 256
)

// Client message types.
const (
	MessageTypeWatch   = "watch"
	MessageTypeUnwatch = "unwatch"
	MessageTypePing    = "ping"
	MessageTypePong    = "pong"
	MessageTypeAck     = "ack"
	MessageTypeError   = "error"
)

// ClientConfig holds configuration for WebSocket clients.
type ClientConfig struct {
	// ReadBufferSize is the size of the connection read buffer in bytes.
	ReadBufferSize int

	// WriteBufferSize is the size of the connection write buffer in bytes.
	WriteBufferSize int

	// PingInterval is the interval for sending ping messages.
	PingInterval time.Duration

	// PongWait is the maximum time to wait for a pong response.
	PongWait time.Duration

	// WriteWait is the deadline for a single frame write.
	WriteWait time.Duration

	// MaxMessageSize caps inbound control messages. Larger frames close the connection.
	MaxMessageSize int64
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReadBufferSize:  defaultReadBufferSize,
		WriteBufferSize: defaultWriteBufferSize,
		PingInterval:    defaultPingInterval,
		PongWait:        defaultPongWait,
		WriteWait:       defaultWriteWait,
		MaxMessageSize:  defaultMaxMessageSize,
	}
}

// ClientMessage is a control message sent by the client.
type ClientMessage struct {
	Type   string `json:"type"`
	TaskID int64  `json:"task_id,omitempty"`
}

// ServerMessage is a control reply sent to the client. Events are sent as
// bare envelopes, not wrapped in ServerMessage.
type ServerMessage struct {
	Type    string `json:"type"`
	Action  string `json:"action,omitempty"`
	TaskID  int64  `json:"task_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Client represents a single WebSocket connection.
type Client struct {
	// id identifies the connection in logs.
	id string

	// hub is the hub this client is registered with.
	hub *Hub

	// conn is the underlying WebSocket connection.
	conn *websocket.Conn

	// send buffers outgoing frames for the write pump.
	send chan []byte

	// userID is the caller identity taken from the upgrade request.
	userID int64

	// taskIDs are the tasks this client watches.
	taskIDs map[int64]struct{}

	// mu protects taskIDs.
	mu sync.RWMutex

	config ClientConfig
	logger *zap.Logger

	// closed is set once the send channel has been closed.
	closed bool

	// closedMu protects closed.
	closedMu sync.RWMutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientConfig sets the client configuration.
func WithClientConfig(config ClientConfig) ClientOption {
	return func(c *Client) {
		c.config = config
	}
}

// WithClientLogger sets the logger for the client.
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new WebSocket client. userID is zero for anonymous
// connections.
func NewClient(hub *Hub, conn *websocket.Conn, userID int64, opts ...ClientOption) *Client {
	c := &Client{
		id:      uuid.New().String(),
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, defaultSendBufferSize),
		userID:  userID,
		taskIDs: make(map[int64]struct{}),
		config:  DefaultClientConfig(),
		logger:  zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With(zap.String("client_id", c.id))
	return c
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// UserID returns the user ID associated with this client.
func (c *Client) UserID() int64 {
	return c.userID
}

// TaskIDs returns the tasks this client watches.
func (c *Client) TaskIDs() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]int64, 0, len(c.taskIDs))
	for id := range c.taskIDs {
		ids = append(ids, id)
	}
	return ids
}

func (c *Client) addTask(taskID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taskIDs[taskID] = struct{}{}
}

func (c *Client) removeTask(taskID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.taskIDs, taskID)
}

func (c *Client) watchesAll() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.taskIDs) == 0
}

// IsClosed returns whether the client connection has been closed.
func (c *Client) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

// ReadPump reads control messages until the connection fails, then
// unregisters the client. It should be run as a goroutine.
func (c *Client) ReadPump() {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(c.config.MaxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait)); err != nil {
		c.logger.Error("failed to set read deadline", zap.Error(err))
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		c.handleClientMessage(message)
	}
}

// WritePump writes queued messages and pings. It should be run as a goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}

			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("websocket write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleClientMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.reply(ServerMessage{Type: MessageTypeError, Message: "invalid message format"})
		return
	}

	switch msg.Type {
	case MessageTypeWatch:
		if msg.TaskID <= 0 {
			c.reply(ServerMessage{Type: MessageTypeError, Message: "task_id is required for watch"})
			return
		}
		c.hub.WatchTask(c, msg.TaskID)
		c.reply(ServerMessage{Type: MessageTypeAck, Action: MessageTypeWatch, TaskID: msg.TaskID})

	case MessageTypeUnwatch:
		if msg.TaskID <= 0 {
			c.reply(ServerMessage{Type: MessageTypeError, Message: "task_id is required for unwatch"})
			return
		}
		c.hub.UnwatchTask(c, msg.TaskID)
		c.reply(ServerMessage{Type: MessageTypeAck, Action: MessageTypeUnwatch, TaskID: msg.TaskID})

	case MessageTypePing:
		c.reply(ServerMessage{Type: MessageTypePong})

	default:
		c.logger.Debug("unknown message type", zap.String("type", msg.Type))
		c.reply(ServerMessage{Type: MessageTypeError, Message: "unknown message type: " + msg.Type})
	}
}

func (c *Client) reply(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.Send(data)
}

// Send queues a message. It reports false when the client is closed or its
// buffer is full.
func (c *Client) Send(message []byte) bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// Close closes the send queue. WritePump then closes the connection.
func (c *Client) Close() {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
