// Package websocket streams task events to connected WebSocket clients.
package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const defaultBroadcastBufferSize = 256

// ClientGauge tracks the number of connected clients.
type ClientGauge interface {
	SetStreamClients(n int)
}

// Hub manages all WebSocket connections and per-task subscriptions.
type Hub struct {
	// clients holds all connected clients.
	clients map[*Client]struct{}

	// taskWatchers maps task ids to the clients that asked for that task only.
	taskWatchers map[int64]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	// mu protects the maps.
	mu sync.RWMutex

	logger *zap.Logger
	gauge  ClientGauge

	done      chan struct{}
	stopOnce  sync.Once
	running   bool
	runningMu sync.RWMutex
}

type broadcastMessage struct {
	taskID  int64
	message []byte
}

// HubOption configures the Hub.
type HubOption func(*Hub)

// WithHubLogger sets the logger for the hub.
func WithHubLogger(logger *zap.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithClientGauge reports the client count after every change.
func WithClientGauge(gauge ClientGauge) HubOption {
	return func(h *Hub) {
		h.gauge = gauge
	}
}

// NewHub creates a new Hub with the given options.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients:      make(map[*Client]struct{}),
		taskWatchers: make(map[int64]map[*Client]struct{}),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan *broadcastMessage, defaultBroadcastBufferSize),
		logger:       zap.NewNop(),
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Run starts the hub's main loop. It returns when ctx is cancelled or Stop
// is called, closing every client.
func (h *Hub) Run(ctx context.Context) {
	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		return
	}
	h.running = true
	h.runningMu.Unlock()

	h.logger.Info("websocket hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case <-h.done:
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

// Stop signals the hub to stop. A stopped hub cannot be restarted.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) shutdown() {
	h.Stop()

	h.runningMu.Lock()
	h.running = false
	h.runningMu.Unlock()

	h.mu.Lock()
	for client := range h.clients {
		client.Close()
	}
	h.clients = make(map[*Client]struct{})
	h.taskWatchers = make(map[int64]map[*Client]struct{})
	h.mu.Unlock()

	h.reportClients(0)
	h.logger.Info("websocket hub stopped")
}

// Register registers a new client with the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister unregisters a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.reportClients(total)
	h.logger.Debug("client registered",
		zap.String("client_id", client.ID()),
		zap.Int64("user_id", client.UserID()),
		zap.Int("total_clients", total),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}

	for _, taskID := range client.TaskIDs() {
		h.removeWatcherLocked(client, taskID)
	}
	delete(h.clients, client)
	total := len(h.clients)
	h.mu.Unlock()

	client.Close()
	h.reportClients(total)

	h.logger.Debug("client unregistered",
		zap.String("client_id", client.ID()),
		zap.Int("total_clients", total),
	)
}

// WatchTask narrows the client's stream to the given task. A client that
// watches no task receives every event.
func (h *Hub) WatchTask(client *Client, taskID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	if h.taskWatchers[taskID] == nil {
		h.taskWatchers[taskID] = make(map[*Client]struct{})
	}
	h.taskWatchers[taskID][client] = struct{}{}
	client.addTask(taskID)
}

// UnwatchTask removes a task from the client's stream filter.
func (h *Hub) UnwatchTask(client *Client, taskID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeWatcherLocked(client, taskID)
	client.removeTask(taskID)
}

func (h *Hub) removeWatcherLocked(client *Client, taskID int64) {
	if watchers, ok := h.taskWatchers[taskID]; ok {
		delete(watchers, client)
		if len(watchers) == 0 {
			delete(h.taskWatchers, taskID)
		}
	}
}

// Broadcast queues a message for every client interested in taskID.
func (h *Hub) Broadcast(taskID int64, message []byte) {
	select {
	case h.broadcast <- &broadcastMessage{taskID: taskID, message: message}:
	case <-h.done:
	}
}

func (h *Hub) handleBroadcast(msg *broadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.watchesAll() {
			if _, ok := h.taskWatchers[msg.taskID][client]; !ok {
				continue
			}
		}
		if !client.Send(msg.message) {
			h.logger.Warn("client send buffer full, dropping message",
				zap.String("client_id", client.ID()),
				zap.Int64("task_id", msg.taskID),
			)
		}
	}
}

func (h *Hub) reportClients(n int) {
	if h.gauge != nil {
		h.gauge.SetStreamClients(n)
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// WatcherCount returns the number of clients watching a specific task.
func (h *Hub) WatcherCount(taskID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.taskWatchers[taskID])
}

// IsRunning returns whether the hub is currently running.
func (h *Hub) IsRunning() bool {
	h.runningMu.RLock()
	defer h.runningMu.RUnlock()
	return h.running
}
