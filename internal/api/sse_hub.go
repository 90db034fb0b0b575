package api

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"varexplorer/domain/core"
	"varexplorer/domain/run"
	"varexplorer/internal"
)

// SSEClient represents a connected SSE client
type SSEClient struct {
	RunID   core.RunID
	Channel chan run.Event

	registered chan struct{}
}

// SSEHub fans run progress events out to Server-Sent Events clients
type SSEHub struct {
	clients    map[core.RunID]map[chan run.Event]bool
	clientsMu  sync.RWMutex
	register   chan SSEClient
	unregister chan SSEClient
	broadcast  chan run.Event
	done       chan struct{}
	closeOnce  sync.Once
	stopped    sync.WaitGroup

	pingInterval time.Duration
	logger       *internal.Logger
}

// NewSSEHub creates a new SSE hub and starts its loop
func NewSSEHub() *SSEHub {
	hub := &SSEHub{
		clients:      make(map[core.RunID]map[chan run.Event]bool),
		register:     make(chan SSEClient, 10),
		unregister:   make(chan SSEClient, 10),
		broadcast:    make(chan run.Event, 100),
		done:         make(chan struct{}),
		pingInterval: 30 * time.Second,
		logger:       internal.DefaultLogger.Named("sse"),
	}

	hub.stopped.Add(1)
	go hub.run()
	return hub
}

// run processes SSE hub operations
func (h *SSEHub) run() {
	defer h.stopped.Done()
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			if h.clients[client.RunID] == nil {
				h.clients[client.RunID] = make(map[chan run.Event]bool)
			}
			h.clients[client.RunID][client.Channel] = true
			h.logger.Debug("[SSE] Client registered for run %s (total clients: %d)",
				client.RunID, len(h.clients[client.RunID]))
			h.clientsMu.Unlock()
			close(client.registered)

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if clients, exists := h.clients[client.RunID]; exists && clients[client.Channel] {
				delete(clients, client.Channel)
				close(client.Channel)
				h.logger.Debug("[SSE] Client unregistered from run %s (remaining clients: %d)",
					client.RunID, len(clients))
				if len(clients) == 0 {
					delete(h.clients, client.RunID)
				}
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			for clientChan := range h.clients[event.RunID] {
				select {
				case clientChan <- event:
				default:
					h.logger.Warn("[SSE] Client channel full for run %s, skipping event", event.RunID)
				}
			}
			h.clientsMu.RUnlock()

		case <-h.done:
			h.clientsMu.Lock()
			for id, clients := range h.clients {
				for clientChan := range clients {
					close(clientChan)
				}
				delete(h.clients, id)
			}
			h.clientsMu.Unlock()
			return
		}
	}
}

// Publish sends an event to every client following its run
func (h *SSEHub) Publish(event run.Event) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("[SSE] Broadcast channel full, dropping %s event for run %s", event.Status, event.RunID)
	}
}

// Subscribe registers a client channel for runID and returns once the hub
// has recorded it, so any later Publish reaches the channel. The channel is
// closed after Unsubscribe or Close.
func (h *SSEHub) Subscribe(runID core.RunID) (chan run.Event, bool) {
	client := SSEClient{RunID: runID, Channel: make(chan run.Event, 10), registered: make(chan struct{})}
	select {
	case h.register <- client:
	case <-h.done:
		return nil, false
	}
	select {
	case <-client.registered:
		return client.Channel, true
	case <-h.done:
		return nil, false
	}
}

// Unsubscribe removes a client registered with Subscribe
func (h *SSEHub) Unsubscribe(runID core.RunID, ch chan run.Event) {
	select {
	case h.unregister <- SSEClient{RunID: runID, Channel: ch}:
	case <-h.done:
	}
}

// Close stops the hub loop and closes every client channel
func (h *SSEHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
	h.stopped.Wait()
}

// Handler streams events for the run named by the :id parameter. current
// supplies the state at connect time so late subscribers start in sync.
func (h *SSEHub) Handler(current func(core.RunID) (run.Event, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID, err := core.ParseRunID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// subscribe before reading the snapshot so no event falls in between
		clientChan, ok := h.Subscribe(runID)
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "SSE hub is closed"})
			return
		}
		defer h.Unsubscribe(runID, clientChan)

		snapshot, ok := current(runID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		send := func(event run.Event) bool {
			eventJSON, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("[SSE] Failed to marshal event: %v", err)
				return true
			}
			c.SSEvent("progress", string(eventJSON))
			return !event.Status.IsTerminal()
		}

		more := send(snapshot)
		c.Writer.Flush()
		if !more {
			return
		}

		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()
		ctx := c.Request.Context()
		c.Stream(func(w io.Writer) bool {
			select {
			case event, open := <-clientChan:
				if !open {
					return false
				}
				return send(event)
			case <-ticker.C:
				c.SSEvent("ping", `{"status": "alive", "timestamp": "`+time.Now().Format(time.RFC3339)+`"}`)
				return true
			case <-ctx.Done():
				return false
			}
		})
	}
}

// GetClientCount returns the number of active clients for a run
func (h *SSEHub) GetClientCount(runID core.RunID) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[runID])
}
