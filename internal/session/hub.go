package session

import (
	"context"
	"sync"
	"sync/atomic"

	"fanout-server/internal/chainstate"
	"fanout-server/internal/ingest"
	"fanout-server/internal/message"
)

// shard holds a disjoint slice of the registered sessions, sharded by
// connection ID so registration/lookup does not contend on one lock
// (adapted from the teacher's connection shard, generalized from raw
// []byte broadcast payloads to canonical message dispatch).
type shard struct {
	sessions sync.Map // map[uint64]*Session
	count    int32
}

// HubMetrics is the subset of the metrics registry the hub touches
// directly; kept as an interface so tests can supply a no-op.
type HubMetrics interface {
	SetActiveSessions(n int)
	IncClosedOnBackpressure()
	IncMessagesIngested()
}

// Hub is the fan-out hub: it owns the single ingestion Source and fans
// each canonical message out to every Active session's Deliver, closing
// any session whose outbound queue cannot keep up (spec.md §4.6).
type Hub struct {
	shards   []shard
	nextID   uint64
	queue    chan message.Message
	metrics  HubMetrics
	tracker  *chainstate.Tracker
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// Config bounds the hub's internal fan-out queue.
type Config struct {
	ShardCount   int
	QueueSize    int
	SessionQueue int
}

// NewHub creates a Hub with cfg's shard count and queue size, defaulting a
// non-positive shard count or queue size the way the teacher's NewHub does.
// SessionQueue is not read here; each Session is sized by its own caller.
func NewHub(cfg Config, metrics HubMetrics) *Hub {
	shardCount := cfg.ShardCount
	if shardCount <= 0 {
		shardCount = 64
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}

	return &Hub{
		shards:   make([]shard, shardCount),
		queue:    make(chan message.Message, queueSize),
		metrics:  metrics,
		tracker:  chainstate.New(),
		shutdown: make(chan struct{}),
	}
}

// Tracker returns the hub's chain-state tracker, for wiring into the
// ancillary unary endpoint handlers.
func (h *Hub) Tracker() *chainstate.Tracker { return h.tracker }

// Start launches the single fan-out goroutine that drains src and calls
// dispatch for every message. One goroutine per Source is deliberate: the
// per-slot ordering guarantee (spec.md §5) only holds if messages are
// dispatched in the order the Source produced them, so the hub never
// shards a single Source across concurrent drainers.
func (h *Hub) Start(src ingest.Source) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for msg := range src {
			h.dispatch(msg)
		}
	}()
}

// Register assigns a new session ID and tracks the session in its shard.
func (h *Hub) Register(s *Session) {
	id := atomic.AddUint64(&h.nextID, 1)
	s.ID = id
	sh := h.pickShard(id)
	sh.sessions.Store(id, s)
	atomic.AddInt32(&sh.count, 1)
	h.reportActiveCount()
}

// Unregister removes a session from its shard.
func (h *Hub) Unregister(s *Session) {
	if s == nil {
		return
	}
	sh := h.pickShard(s.ID)
	if _, ok := sh.sessions.LoadAndDelete(s.ID); ok {
		atomic.AddInt32(&sh.count, -1)
		h.reportActiveCount()
	}
}

// SessionCount returns the total number of tracked sessions.
func (h *Hub) SessionCount() int {
	var total int32
	for idx := range h.shards {
		total += atomic.LoadInt32(&h.shards[idx].count)
	}
	return int(total)
}

func (h *Hub) pickShard(id uint64) *shard {
	return &h.shards[int(id%uint64(len(h.shards)))]
}

func (h *Hub) reportActiveCount() {
	if h.metrics != nil {
		h.metrics.SetActiveSessions(h.SessionCount())
	}
}

// dispatch fans msg out to every tracked session. A session whose queue
// is full is closed rather than having the message dropped silently: this
// is the redesign of the teacher's broadcastToShards, which dropped on a
// full per-connection channel and left the connection open (spec.md
// §4.6's BackpressureExceeded transition).
func (h *Hub) dispatch(msg message.Message) {
	m := msg
	h.tracker.Observe(&m)
	if h.metrics != nil {
		h.metrics.IncMessagesIngested()
	}
	for idx := range h.shards {
		sh := &h.shards[idx]
		sh.sessions.Range(func(_, value any) bool {
			s := value.(*Session)
			_, overflowed := s.Deliver(&m)
			if overflowed {
				if h.metrics != nil {
					h.metrics.IncClosedOnBackpressure()
				}
				s.Close()
			}
			return true
		})
	}
}

// Shutdown closes every tracked session and waits for the fan-out
// goroutine to drain, bounded by ctx.
func (h *Hub) Shutdown(ctx context.Context) {
	for idx := range h.shards {
		sh := &h.shards[idx]
		sh.sessions.Range(func(_, value any) bool {
			value.(*Session).Close()
			return true
		})
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
