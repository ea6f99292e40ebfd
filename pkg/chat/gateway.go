package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"lingobridge/internal/models"
	"lingobridge/pkg/chat/types"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// MessageHandler consumes one incoming message event. The gateway invokes
// it on its own goroutine, so handlers may block on slow work without
// stalling the event stream.
type MessageHandler func(ctx context.Context, msg *models.IncomingMessage)

// Gateway maintains a websocket connection to the platform's event stream
// and dispatches message events to a handler. The connection is re-dialed
// with a fixed delay until the context is cancelled.
type Gateway struct {
	url            string
	apiKey         string
	handler        MessageHandler
	reconnectDelay time.Duration
	logger         *logrus.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewGateway creates a gateway consumer for the given websocket URL.
func NewGateway(url, apiKey string, reconnectDelay time.Duration, handler MessageHandler, logger *logrus.Logger) *Gateway {
	return &Gateway{
		url:            url,
		apiKey:         apiKey,
		handler:        handler,
		reconnectDelay: reconnectDelay,
		logger:         logger,
	}
}

// Start begins consuming events in a background goroutine.
func (g *Gateway) Start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return
	}
	g.running = true

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.done = make(chan struct{})

	go g.run(runCtx)
}

// Stop tears down the connection and waits for the read loop to exit.
func (g *Gateway) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	cancel := g.cancel
	done := g.done
	g.mu.Unlock()

	cancel()
	<-done
}

func (g *Gateway) run(ctx context.Context) {
	defer close(g.done)

	for {
		if ctx.Err() != nil {
			return
		}

		if err := g.consume(ctx); err != nil && ctx.Err() == nil {
			g.logger.WithError(err).Warn("Gateway connection lost, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(g.reconnectDelay):
		}
	}
}

func (g *Gateway) consume(ctx context.Context) error {
	opts := &websocket.DialOptions{}
	if g.apiKey != "" {
		opts.HTTPHeader = map[string][]string{
			"Authorization": {"Bot " + g.apiKey},
		}
	}

	conn, _, err := websocket.Dial(ctx, g.url, opts)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")

	g.logger.WithField("url", g.url).Info("Gateway connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var event types.GatewayEvent
		if err := json.Unmarshal(data, &event); err != nil {
			g.logger.WithError(err).Warn("Skipping malformed gateway event")
			continue
		}

		if event.Type != "message" {
			continue
		}

		var msg models.IncomingMessage
		if err := json.Unmarshal(event.Data, &msg); err != nil {
			g.logger.WithError(err).Warn("Skipping malformed message event")
			continue
		}

		// A message whose translation fan-out is still in flight must not
		// hold up events for other channels, so each handler runs on its
		// own goroutine. The read loop only sequences the wire.
		go g.handler(ctx, &msg)
	}
}
