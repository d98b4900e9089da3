// Package gateway connects the message bus to the command dispatcher.
// Each inbound chat message becomes a task on a bounded worker pool; the
// task dispatches the command, renders the reply and sends it back over
// the bus.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gammazero/workerpool"
	"go.uber.org/zap"

	"cachebuster/pkg/bus"
	"cachebuster/pkg/channels/discord"
	"cachebuster/pkg/commands"
	"cachebuster/pkg/config"
	"cachebuster/pkg/logger"
	"cachebuster/pkg/report"
)

// ErrStopped is returned for messages that arrive after Stop.
var ErrStopped = errors.New("gateway stopped")

// Stats is a snapshot of the gateway counters.
type Stats struct {
	Received   uint64 `json:"received"`
	Ignored    uint64 `json:"ignored"`
	Replied    uint64 `json:"replied"`
	Rejected   uint64 `json:"rejected"`
	Failed     uint64 `json:"failed"`
	SendErrors uint64 `json:"send_errors"`
	Workers    int    `json:"workers"`
	Waiting    int    `json:"waiting"`
}

// Gateway runs command invocations concurrently on a worker pool.
type Gateway struct {
	log        *logger.Logger
	bus        bus.Bus
	dispatcher *commands.Dispatcher
	reporter   *report.Reporter
	workers    int

	mu     sync.Mutex
	pool   *workerpool.WorkerPool
	ctx    context.Context
	cancel context.CancelFunc

	received   atomic.Uint64
	ignored    atomic.Uint64
	replied    atomic.Uint64
	rejected   atomic.Uint64
	failed     atomic.Uint64
	sendErrors atomic.Uint64
}

// New creates a gateway, its worker pool and its inbound subscription.
// Messages are processed as soon as the bus delivers them.
func New(
	log *logger.Logger,
	cfg *config.Config,
	messageBus bus.Bus,
	dispatcher *commands.Dispatcher,
	reporter *report.Reporter,
) *Gateway {
	workers := cfg.Dispatch.Workers
	if workers < 1 {
		workers = 1
	}

	g := &Gateway{
		log:        log,
		bus:        messageBus,
		dispatcher: dispatcher,
		reporter:   reporter,
		workers:    workers,
		pool:       workerpool.New(workers),
	}
	g.ctx, g.cancel = context.WithCancel(context.Background())

	log.Info(fmt.Sprintf("Initializing framework with '%s' as command prefix.", dispatcher.Prefix()))
	messageBus.RegisterHandler(bus.Inbound, discord.ChannelID, g.handleInbound)

	return g
}

// Start reports the gateway as running.
func (g *Gateway) Start() error {
	g.log.Info("Gateway started", zap.Int("workers", g.workers))
	return nil
}

// Stop stops accepting messages and waits for in-flight invocations.
// Purge calls already running are allowed to finish.
func (g *Gateway) Stop() error {
	g.mu.Lock()
	pool := g.pool
	g.pool = nil
	g.mu.Unlock()

	if pool == nil {
		return nil
	}

	g.log.Info("Gateway stopping", zap.Int("waiting", pool.WaitingQueueSize()))
	pool.StopWait()
	g.cancel()
	g.log.Info("Gateway stopped")
	return nil
}

// handleInbound queues msg and returns without waiting for the command.
func (g *Gateway) handleInbound(_ context.Context, msg *bus.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pool == nil {
		return ErrStopped
	}

	g.received.Add(1)
	ctx := g.ctx
	g.pool.Submit(func() {
		g.Process(ctx, msg)
	})
	return nil
}

// Process dispatches one message and sends the reply, if any.
func (g *Gateway) Process(ctx context.Context, msg *bus.Message) {
	res := g.dispatcher.Dispatch(ctx, msg)

	switch res.Kind {
	case commands.ResultIgnored:
		g.ignored.Add(1)
	case commands.ResultReplied:
		g.replied.Add(1)
	case commands.ResultDispatchError:
		g.rejected.Add(1)
	default:
		g.failed.Add(1)
	}

	reply := g.reporter.Reply(msg, res)
	if reply == nil {
		return
	}

	if err := g.bus.SendOutbound(reply); err != nil {
		g.sendErrors.Add(1)
		g.log.Error("Failed to send reply",
			zap.String("chat_id", msg.ChatID),
			zap.String("reply_to", msg.ID),
			zap.Error(err))
	}
}

// Stats returns the current counters.
func (g *Gateway) Stats() Stats {
	s := Stats{
		Received:   g.received.Load(),
		Ignored:    g.ignored.Load(),
		Replied:    g.replied.Load(),
		Rejected:   g.rejected.Load(),
		Failed:     g.failed.Load(),
		SendErrors: g.sendErrors.Load(),
		Workers:    g.workers,
	}

	g.mu.Lock()
	if g.pool != nil {
		s.Waiting = g.pool.WaitingQueueSize()
	}
	g.mu.Unlock()

	return s
}
