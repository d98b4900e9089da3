package channels

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"cachebuster/pkg/bus"
	"cachebuster/pkg/logger"
)

// stopTimeout bounds how long channels get to shut down.
const stopTimeout = 30 * time.Second

// Manager manages all communication channels.
type Manager struct {
	log      *logger.Logger
	bus      bus.Bus
	channels map[string]Channel
	started  map[string]bool
	mu       sync.RWMutex
}

// NewManager creates a new channel manager.
func NewManager(log *logger.Logger, messageBus bus.Bus) *Manager {
	return &Manager{
		log:      log,
		bus:      messageBus,
		channels: make(map[string]Channel),
		started:  make(map[string]bool),
	}
}

// Register registers a channel with the manager.
func (m *Manager) Register(channel Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := channel.ID()
	if _, exists := m.channels[id]; exists {
		return fmt.Errorf("channel %s already registered", id)
	}

	m.channels[id] = channel
	m.log.Info("Registered channel",
		zap.String("id", id),
		zap.String("name", channel.Name()))

	return nil
}

// Start routes outbound bus traffic to each enabled channel and starts it.
// A channel that fails to start fails the whole start.
func (m *Manager) Start(ctx context.Context) error {
	m.log.Info("Starting channel manager")

	for _, channel := range m.enabled() {
		channel := channel
		m.bus.RegisterHandler(bus.Outbound, channel.ID(), func(ctx context.Context, msg *bus.Message) error {
			return channel.SendMessage(ctx, msg)
		})

		m.log.Info("Starting channel",
			zap.String("id", channel.ID()),
			zap.String("name", channel.Name()))

		if err := channel.Start(ctx); err != nil {
			m.bus.UnregisterHandlers(channel.ID())
			return fmt.Errorf("starting channel %s: %w", channel.ID(), err)
		}

		m.mu.Lock()
		m.started[channel.ID()] = true
		m.mu.Unlock()
	}

	if len(m.started) == 0 {
		m.log.Warn("No channels enabled")
	}
	return nil
}

// Stop stops all started channels.
func (m *Manager) Stop() error {
	m.log.Info("Stopping channel manager")

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range m.started {
		channel := m.channels[id]
		if err := channel.Stop(ctx); err != nil {
			m.log.Error("Error stopping channel",
				zap.String("channel", id),
				zap.Error(err))
		}
		m.bus.UnregisterHandlers(id)
		delete(m.started, id)
	}

	m.log.Info("Channel manager stopped")
	return nil
}

// GetChannel returns a channel by ID.
func (m *Manager) GetChannel(channelID string) (Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	channel, exists := m.channels[channelID]
	if !exists {
		return nil, fmt.Errorf("channel %s not found", channelID)
	}

	return channel, nil
}

// Status reports which registered channels are started.
func (m *Manager) Status() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]bool, len(m.channels))
	for id := range m.channels {
		status[id] = m.started[id]
	}
	return status
}

func (m *Manager) enabled() []Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()

	channels := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		if ch.IsEnabled() {
			channels = append(channels, ch)
		}
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].ID() < channels[j].ID() })
	return channels
}
