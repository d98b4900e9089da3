package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cachebuster/pkg/logger"
)

// DefaultRedisPrefix namespaces bus channels in Redis.
const DefaultRedisPrefix = "cachebuster:bus:"

const (
	ownerLeaseTTL   = 30 * time.Second
	ownerRenewEvery = 10 * time.Second
	releaseTimeout  = 5 * time.Second
)

// renewOwner extends the lease only while this bus still holds it.
var renewOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// releaseOwner deletes the lease only while this bus still holds it.
var releaseOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisBus carries bus traffic through Redis pub/sub for a single process.
// Pub/sub delivers every message to every subscriber, so a prefix has one
// owner: a second bus started on the same prefix fails with ErrBusInUse
// instead of dispatching every command twice.
type RedisBus struct {
	router

	client *redis.Client
	prefix string
	owner  string
	pubsub *redis.PubSub

	// Lifecycle
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// RedisBusConfig configures the Redis bus.
type RedisBusConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisBus creates a new Redis-based message bus.
func NewRedisBus(log *logger.Logger, cfg *RedisBusConfig) (*RedisBus, error) {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &RedisBus{
		router: router{log: log, handlers: make(map[handlerKey][]Handler)},
		client: client,
		prefix: prefix,
		owner:  uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
	}

	log.Info("Redis bus initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.String("prefix", prefix))

	return b, nil
}

// Start claims the prefix, subscribes to the bus channels and starts the
// processor. The subscription is confirmed before Start returns.
func (b *RedisBus) Start() error {
	b.log.Info("Starting Redis message bus")

	claimed, err := b.client.SetNX(b.ctx, b.ownerKey(), b.owner, ownerLeaseTTL).Result()
	if err != nil {
		return fmt.Errorf("claiming bus prefix: %w", err)
	}
	if !claimed {
		return fmt.Errorf("%w: %s", ErrBusInUse, b.prefix)
	}

	b.pubsub = b.client.PSubscribe(b.ctx, b.prefix+"*")
	if _, err := b.pubsub.Receive(b.ctx); err != nil {
		_ = b.pubsub.Close()
		b.pubsub = nil
		b.release()
		return fmt.Errorf("subscribing to bus channels: %w", err)
	}

	b.wg.Add(2)
	go b.processMessages()
	go b.keepOwnership()

	return nil
}

// Stop stops the Redis bus and releases the prefix.
func (b *RedisBus) Stop() error {
	b.stopOnce.Do(func() {
		b.log.Info("Stopping Redis message bus")
		b.cancel()

		if b.pubsub != nil {
			_ = b.pubsub.Close()
		}
		b.wg.Wait()
		b.release()
		_ = b.client.Close()

		b.log.Info("Redis message bus stopped")
	})
	return nil
}

// ownerKey is the lease key, e.g. "cachebuster:bus:owner". Keys and pub/sub
// channels live in separate namespaces, so the pattern subscription never
// sees it.
func (b *RedisBus) ownerKey() string {
	return b.prefix + "owner"
}

func (b *RedisBus) keepOwnership() {
	defer b.wg.Done()

	ticker := time.NewTicker(ownerRenewEvery)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			n, err := renewOwner.Run(b.ctx, b.client, []string{b.ownerKey()}, b.owner, ownerLeaseTTL.Milliseconds()).Int()
			if err != nil {
				if b.ctx.Err() != nil {
					return
				}
				b.log.Warn("Failed to renew bus prefix lease", zap.Error(err))
				continue
			}
			if n == 0 {
				b.errors.Add(1)
				b.log.Error("Bus prefix lease lost; another process may be dispatching",
					zap.String("prefix", b.prefix))
			}
		}
	}
}

func (b *RedisBus) release() {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if err := releaseOwner.Run(ctx, b.client, []string{b.ownerKey()}, b.owner).Err(); err != nil {
		b.log.Warn("Failed to release bus prefix lease", zap.Error(err))
	}
}

// SendInbound publishes an inbound message (from transport to gateway).
func (b *RedisBus) SendInbound(msg *Message) error {
	if err := b.publish(Inbound, msg); err != nil {
		return err
	}
	b.messagesIn.Add(1)
	return nil
}

// SendOutbound publishes an outbound message (from gateway to transport).
func (b *RedisBus) SendOutbound(msg *Message) error {
	if err := b.publish(Outbound, msg); err != nil {
		return err
	}
	b.messagesOut.Add(1)
	return nil
}

func (b *RedisBus) publish(dir Direction, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	if err := b.client.Publish(b.ctx, b.topic(dir, msg.ChannelID), data).Err(); err != nil {
		return fmt.Errorf("publishing to Redis: %w", err)
	}
	return nil
}

// topic returns the pub/sub channel, e.g. "cachebuster:bus:inbound:discord".
func (b *RedisBus) topic(dir Direction, channelID string) string {
	return b.prefix + string(dir) + ":" + channelID
}

// parseTopic is the inverse of topic.
func parseTopic(prefix, topic string) (Direction, bool) {
	rest, ok := strings.CutPrefix(topic, prefix)
	if !ok {
		return "", false
	}
	dir, channelID, ok := strings.Cut(rest, ":")
	if !ok || channelID == "" {
		return "", false
	}
	switch Direction(dir) {
	case Inbound, Outbound:
		return Direction(dir), true
	default:
		return "", false
	}
}

func (b *RedisBus) processMessages() {
	defer b.wg.Done()

	ch := b.pubsub.Channel()

	for {
		select {
		case redisMsg, ok := <-ch:
			if !ok {
				return
			}
			b.handleRedisMessage(redisMsg)

		case <-b.ctx.Done():
			return
		}
	}
}

func (b *RedisBus) handleRedisMessage(redisMsg *redis.Message) {
	dir, ok := parseTopic(b.prefix, redisMsg.Channel)
	if !ok {
		b.log.Warn("Unknown channel format", zap.String("channel", redisMsg.Channel))
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(redisMsg.Payload), &msg); err != nil {
		b.log.Error("Failed to unmarshal message", zap.Error(err))
		b.errors.Add(1)
		return
	}

	b.route(b.ctx, dir, &msg)
}
