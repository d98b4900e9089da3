package commands

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"cachebuster/pkg/config"
	"cachebuster/pkg/logger"
)

// pruneSchedule is how often idle buckets are dropped.
const pruneSchedule = "@every 1m"

// RateLimiter keeps one token bucket per user.
type RateLimiter struct {
	log     *logger.Logger
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	scheduler *cron.Cron
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a limiter from cfg. It returns nil when rate
// limiting is disabled; a nil *RateLimiter allows everything.
func NewRateLimiter(log *logger.Logger, cfg config.RateLimitConfig) *RateLimiter {
	if !cfg.Enabled {
		return nil
	}

	return &RateLimiter{
		log:       log,
		limit:     rate.Limit(float64(cfg.PerMinute) / 60.0),
		burst:     cfg.Burst,
		idleTTL:   time.Duration(cfg.IdleTTLMinutes) * time.Minute,
		now:       time.Now,
		buckets:   make(map[string]*bucket),
		scheduler: cron.New(),
	}
}

// Allow takes a token from userID's bucket. When none is available it
// reports how long until one will be.
func (r *RateLimiter) Allow(userID string) (bool, time.Duration) {
	if r == nil {
		return true, 0
	}

	now := r.now()

	r.mu.Lock()
	b, ok := r.buckets[userID]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.buckets[userID] = b
	}
	b.lastSeen = now
	r.mu.Unlock()

	if b.limiter.AllowN(now, 1) {
		return true, 0
	}

	res := b.limiter.ReserveN(now, 1)
	wait := res.DelayFrom(now)
	res.CancelAt(now)
	return false, wait
}

// Prune drops buckets not used within the idle TTL and returns how many
// were removed.
func (r *RateLimiter) Prune() int {
	if r == nil {
		return 0
	}

	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for user, b := range r.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(r.buckets, user)
			removed++
		}
	}
	return removed
}

// Len returns the number of live buckets.
func (r *RateLimiter) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}

// Start schedules the prune job.
func (r *RateLimiter) Start() error {
	if r == nil {
		return nil
	}

	if _, err := r.scheduler.AddFunc(pruneSchedule, func() {
		if n := r.Prune(); n > 0 {
			r.log.Debug("Pruned idle rate limit buckets", zap.Int("removed", n))
		}
	}); err != nil {
		return err
	}

	r.scheduler.Start()
	r.log.Info("Rate limiter started",
		zap.Float64("per_second", float64(r.limit)),
		zap.Int("burst", r.burst),
		zap.Duration("idle_ttl", r.idleTTL))
	return nil
}

// Stop stops the prune job and waits for a running prune to finish.
func (r *RateLimiter) Stop() {
	if r == nil {
		return
	}
	<-r.scheduler.Stop().Done()
}
