package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	rb "github.com/runeboard/runeboardx/pkg/redis"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: In production, restrict to specific origins
		return true
	},
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string      `json:"type"`    // "fill.progress", "ping", "error"
	Payload interface{} `json:"payload"` // Event-specific data
}

// HandleProgressSocket upgrades the connection to a WebSocket and streams
// enrichment progress events published by the indexer.
//
// Server sends:
// - {"type": "fill.progress", "payload": {"done": ..., "total": ..., "stuck": ..., "percent": ...}}
// - {"type": "ping", "payload": {"timestamp": 1234567890}}
//
// All goroutines have panic recovery to prevent crashes.
func (c *Controller) HandleProgressSocket(w http.ResponseWriter, r *http.Request) {
	if c.App.RedisClient == nil {
		http.Error(w, "Real-time progress not available (Redis disabled)", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			c.App.Logger.Debug("Failed to close WebSocket connection", zap.Error(err))
		}
	}()

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	send := make(chan ServerMessage, 256)
	var wg sync.WaitGroup

	// Redis subscriber
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				c.App.Logger.Error("Panic in Redis subscriber goroutine",
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())))
				cancel()
			}
		}()
		c.streamProgress(ctx, send)
	}()

	// Ping ticker keeps intermediaries from dropping idle connections
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case send <- ServerMessage{Type: "ping", Payload: map[string]int64{"timestamp": time.Now().Unix()}}:
				default:
				}
			}
		}
	}()

	// Reader: we expect no client messages, but reading surfaces closes
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	// Writer loop
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case msg := <-send:
			if err := conn.WriteJSON(msg); err != nil {
				c.App.Logger.Debug("WebSocket write failed, closing", zap.Error(err))
				cancel()
				wg.Wait()
				return
			}
		}
	}
}

// streamProgress forwards fill-progress messages from Redis Pub/Sub to the
// send channel until ctx is cancelled.
func (c *Controller) streamProgress(ctx context.Context, send chan<- ServerMessage) {
	pubsub := c.App.RedisClient.Subscribe(ctx, rb.ChannelFillProgress)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload json.RawMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				c.App.Logger.Debug("Dropping malformed progress event", zap.Error(err))
				continue
			}
			select {
			case send <- ServerMessage{Type: "fill.progress", Payload: payload}:
			default:
				// Slow client: drop rather than block the subscriber
			}
		}
	}
}
