package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"cachebuster/pkg/logger"
)

// router holds the handler table and counters shared by both backends.
type router struct {
	log      *logger.Logger
	handlers map[handlerKey][]Handler
	mu       sync.RWMutex

	messagesIn  atomic.Uint64
	messagesOut atomic.Uint64
	errors      atomic.Uint64
	unrouted    atomic.Uint64
}

// RegisterHandler registers a handler for one direction of a transport.
// Multiple handlers can be registered for the same key; they run in order.
func (r *router) RegisterHandler(dir Direction, channelID string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := handlerKey{dir: dir, channelID: channelID}
	r.handlers[key] = append(r.handlers[key], handler)
	r.log.Info("Registered handler",
		zap.String("channel", channelID),
		zap.String("direction", string(dir)))
}

// UnregisterHandlers removes all handlers for a transport, both directions.
func (r *router) UnregisterHandlers(channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.handlers, handlerKey{dir: Inbound, channelID: channelID})
	delete(r.handlers, handlerKey{dir: Outbound, channelID: channelID})
	r.log.Info("Unregistered handlers", zap.String("channel", channelID))
}

// route runs every handler registered for msg in the given direction.
func (r *router) route(ctx context.Context, dir Direction, msg *Message) {
	r.mu.RLock()
	handlers := r.handlers[handlerKey{dir: dir, channelID: msg.ChannelID}]
	r.mu.RUnlock()

	if len(handlers) == 0 {
		r.unrouted.Add(1)
		r.log.Warn("No handlers registered for channel",
			zap.String("channel", msg.ChannelID),
			zap.String("direction", string(dir)),
			zap.String("message_id", msg.ID))
		return
	}

	r.log.Debug("Processing message",
		zap.String("channel", msg.ChannelID),
		zap.String("direction", string(dir)),
		zap.String("message_id", msg.ID))

	for _, handler := range handlers {
		if err := handler(ctx, msg); err != nil {
			r.errors.Add(1)
			r.log.Error("Handler error",
				zap.String("channel", msg.ChannelID),
				zap.String("direction", string(dir)),
				zap.String("message_id", msg.ID),
				zap.Error(err))
		}
	}
}

// GetMetrics returns current bus metrics.
func (r *router) GetMetrics() map[string]uint64 {
	return map[string]uint64{
		"messages_in":  r.messagesIn.Load(),
		"messages_out": r.messagesOut.Load(),
		"errors":       r.errors.Load(),
		"unrouted":     r.unrouted.Load(),
	}
}
