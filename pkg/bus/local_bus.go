package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cachebuster/pkg/logger"
)

// sendTimeout bounds how long a producer waits for buffer space.
const sendTimeout = 5 * time.Second

// LocalBus is a local in-process message bus using Go channels.
type LocalBus struct {
	router

	inbound  chan *Message
	outbound chan *Message

	// Lifecycle
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewLocalBus creates a new local message bus.
func NewLocalBus(log *logger.Logger, bufferSize int) *LocalBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &LocalBus{
		router:   router{log: log, handlers: make(map[handlerKey][]Handler)},
		inbound:  make(chan *Message, bufferSize),
		outbound: make(chan *Message, bufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts one processing loop per direction.
func (b *LocalBus) Start() error {
	b.log.Info("Starting message bus")

	b.wg.Add(2)
	go b.process(Inbound, b.inbound)
	go b.process(Outbound, b.outbound)

	return nil
}

// Stop stops the message bus and waits for the processing loops to exit.
// The queues are never closed, so a late Send fails instead of panicking.
func (b *LocalBus) Stop() error {
	b.stopOnce.Do(func() {
		b.log.Info("Stopping message bus")
		b.cancel()
		b.wg.Wait()
		b.log.Info("Message bus stopped")
	})
	return nil
}

// SendInbound sends an inbound message (from transport to gateway).
func (b *LocalBus) SendInbound(msg *Message) error {
	if err := b.enqueue(b.inbound, msg); err != nil {
		return fmt.Errorf("sending inbound message: %w", err)
	}
	b.messagesIn.Add(1)
	return nil
}

// SendOutbound sends an outbound message (from gateway to transport).
func (b *LocalBus) SendOutbound(msg *Message) error {
	if err := b.enqueue(b.outbound, msg); err != nil {
		return fmt.Errorf("sending outbound message: %w", err)
	}
	b.messagesOut.Add(1)
	return nil
}

func (b *LocalBus) enqueue(queue chan<- *Message, msg *Message) error {
	if b.ctx.Err() != nil {
		return ErrStopped
	}

	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()

	select {
	case queue <- msg:
		return nil
	case <-b.ctx.Done():
		return ErrStopped
	case <-timer.C:
		return ErrTimeout
	}
}

func (b *LocalBus) process(dir Direction, queue <-chan *Message) {
	defer b.wg.Done()

	for {
		select {
		case msg := <-queue:
			b.route(b.ctx, dir, msg)
		case <-b.ctx.Done():
			return
		}
	}
}
