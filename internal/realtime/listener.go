package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jmehdipour/pos-sync/internal/logger"
	"github.com/jmehdipour/pos-sync/internal/model"
)

// Handler applies a genuinely remote change to local state. Applying is the
// domain collaborators' job; the listener only makes the discard decision.
type Handler func(ctx context.Context, n model.ChangeNotification) error

// Listener subscribes to the remote change feed over a websocket, runs every
// notification through the provenance filter, and hands survivors to the
// handler. It reconnects with a fixed delay until the context is cancelled.
type Listener struct {
	url       string
	filter    *Filter
	handler   Handler
	reconnect time.Duration
	dialer    *websocket.Dialer
}

func NewListener(url string, filter *Filter, handler Handler, reconnect time.Duration) *Listener {
	if reconnect <= 0 {
		reconnect = 10 * time.Second
	}

	return &Listener{
		url:       url,
		filter:    filter,
		handler:   handler,
		reconnect: reconnect,
		dialer:    websocket.DefaultDialer,
	}
}

// Run blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if err := l.readLoop(ctx); err != nil && ctx.Err() == nil {
			logger.Log.Warn("realtime connection lost", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.reconnect):
		}
	}
}

func (l *Listener) readLoop(ctx context.Context) error {
	conn, _, err := l.dialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// unblock ReadMessage on cancellation
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	logger.Log.Info("realtime feed connected", zap.String("url", l.url))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var n model.ChangeNotification
		if err := json.Unmarshal(data, &n); err != nil {
			logger.Log.Warn("bad change notification", zap.Error(err))
			continue
		}

		l.Dispatch(ctx, n)
	}
}

// Dispatch runs one notification through the filter and, when it survives,
// the handler. Exposed separately so transports other than the websocket can
// feed notifications through the same path.
func (l *Listener) Dispatch(ctx context.Context, n model.ChangeNotification) {
	if !l.filter.ShouldApply(n) {
		logger.Log.Debug("own write echoed back, discarded",
			zap.String("entity_type", n.EntityType),
			zap.String("entity_id", n.EntityID),
		)
		return
	}

	if l.handler == nil {
		return
	}
	if err := l.handler(ctx, n); err != nil {
		logger.Log.Error("apply remote change failed",
			zap.String("entity_type", n.EntityType),
			zap.String("entity_id", n.EntityID),
			zap.Error(err),
		)
	}
}
