package transport

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"fanout-server/internal/metrics"
)

// connectionLimiter provides admission control at the accept loop: a
// per-IP token bucket (limits a single client) and a global token bucket
// (limits aggregate connection churn), so a burst of upgrade attempts
// cannot starve the accept goroutine before a session ever reaches
// AwaitingInitial (spec.md §6 "Transport").
type connectionLimiter struct {
	ipMu    sync.Mutex
	ipRate  rate.Limit
	ipBurst int
	ipTTL   time.Duration
	ip      map[string]*ipLimiterEntry

	global *rate.Limiter

	metrics *metrics.Registry

	stopCleanup chan struct{}
}

type ipLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// connectionLimiterConfig mirrors the zero-value-means-default pattern the
// teacher's limiter used.
type connectionLimiterConfig struct {
	IPBurst     int
	IPRate      float64
	IPTTL       time.Duration
	GlobalBurst int
	GlobalRate  float64
}

func newConnectionLimiter(cfg connectionLimiterConfig, metricsRegistry *metrics.Registry) *connectionLimiter {
	if cfg.IPBurst == 0 {
		cfg.IPBurst = 10
	}
	if cfg.IPRate == 0 {
		cfg.IPRate = 1.0
	}
	if cfg.IPTTL == 0 {
		cfg.IPTTL = 5 * time.Minute
	}
	if cfg.GlobalBurst == 0 {
		cfg.GlobalBurst = 300
	}
	if cfg.GlobalRate == 0 {
		cfg.GlobalRate = 50.0
	}

	l := &connectionLimiter{
		ipRate:      rate.Limit(cfg.IPRate),
		ipBurst:     cfg.IPBurst,
		ipTTL:       cfg.IPTTL,
		ip:          make(map[string]*ipLimiterEntry),
		global:      rate.NewLimiter(rate.Limit(cfg.GlobalRate), cfg.GlobalBurst),
		metrics:     metricsRegistry,
		stopCleanup: make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// allow checks the global bucket first (cheap, no map lookup), then the
// per-IP bucket.
func (l *connectionLimiter) allow(ip string) bool {
	if !l.global.Allow() {
		if l.metrics != nil {
			l.metrics.ConnectionsRateLimited.WithLabelValues("global").Inc()
		}
		return false
	}
	if !l.perIP(ip).Allow() {
		if l.metrics != nil {
			l.metrics.ConnectionsRateLimited.WithLabelValues("per_ip").Inc()
		}
		return false
	}
	return true
}

func (l *connectionLimiter) perIP(ip string) *rate.Limiter {
	l.ipMu.Lock()
	defer l.ipMu.Unlock()

	entry, ok := l.ip[ip]
	if ok {
		entry.lastAccess = time.Now()
		return entry.limiter
	}

	limiter := rate.NewLimiter(l.ipRate, l.ipBurst)
	l.ip[ip] = &ipLimiterEntry{limiter: limiter, lastAccess: time.Now()}
	return limiter
}

func (l *connectionLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *connectionLimiter) cleanup() {
	l.ipMu.Lock()
	defer l.ipMu.Unlock()
	now := time.Now()
	for ip, entry := range l.ip {
		if now.Sub(entry.lastAccess) > l.ipTTL {
			delete(l.ip, ip)
		}
	}
}

func (l *connectionLimiter) stop() { close(l.stopCleanup) }

// logRejection is split out from allow so the accept loop's logger (which
// carries no per-connection fields yet at reject time) stays out of the
// hot path when the connection is admitted.
func logRejection(logger *zap.Logger, ip string) {
	logger.Debug("connection rejected by rate limiter", zap.String("remote_ip", ip))
}
