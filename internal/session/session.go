// Package session implements the per-connection subscription state machine
// and the fan-out hub that drives it (spec.md §4.5, §4.6).
package session

import (
	"sync"
	"sync/atomic"

	"fanout-server/internal/dispatch"
	"fanout-server/internal/filter"
	"fanout-server/internal/filter/limits"
	"fanout-server/internal/filter/name"
	"fanout-server/internal/message"
	"fanout-server/internal/wire"
)

// State is the session's lifecycle stage (spec.md §4.5).
type State int32

const (
	AwaitingInitial State = iota
	Active
	Closing
)

func (s State) String() string {
	switch s {
	case AwaitingInitial:
		return "awaiting_initial"
	case Active:
		return "active"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// Outbound is one frame queued for delivery to a session's writer.
type Outbound struct {
	Update *wire.SubscribeUpdate
}

// FilterMetrics receives the change in a session's installed filter-entry
// counts, by channel kind, each time a filter is installed, replaced, or
// the session closes -- the Go-side home for the original plugin's
// Filter::get_metrics, aggregated across every session instead of
// reported per-connection.
type FilterMetrics interface {
	AdjustFilterEntries(kind string, delta int)
}

// Session is one client connection's subscription state: its compiled
// filter, its name registry, and its bounded outbound queue. A Session is
// owned by exactly one reader goroutine and one writer goroutine; the hub's
// fan-out goroutine reads the compiled filter pointer under mu, the same
// mutex InstallFilter holds to replace it, so filter replacement never
// races a concurrent Deliver (spec.md §5).
type Session struct {
	ID uint64

	state atomic.Int32

	mu          sync.Mutex
	filter      *filter.Filter
	names       *name.Registry
	limits      limits.Limits
	decode58    func(string) ([]byte, error)
	decode64    func(string) ([]byte, error)
	metrics     FilterMetrics
	entryCounts map[string]int

	queue chan Outbound

	closeOnce sync.Once
	closeCh   chan struct{}
}

// New creates an AwaitingInitial session. queueSize bounds the outbound
// queue (spec.md §4.6's per-session backpressure queue).
func New(id uint64, lim limits.Limits, decode58, decode64 func(string) ([]byte, error), queueSize int) *Session {
	s := &Session{
		ID:       id,
		names:    name.New(lim.FilterNameMaxLen, lim.FilterNameMaxCount, 0),
		limits:   lim,
		decode58: decode58,
		decode64: decode64,
		queue:    make(chan Outbound, queueSize),
		closeCh:  make(chan struct{}),
	}
	s.state.Store(int32(AwaitingInitial))
	return s
}

// SetMetrics installs the aggregate filter-entry counter. Must be called
// before the first InstallFilter to be reflected accurately; nil disables
// reporting (the zero value, as when a test constructs a Session
// directly).
func (s *Session) SetMetrics(m FilterMetrics) { s.metrics = m }

// State returns the session's current lifecycle stage.
func (s *Session) State() State { return State(s.state.Load()) }

// Queue exposes the outbound channel for the writer goroutine to drain.
func (s *Session) Queue() <-chan Outbound { return s.queue }

// Closed reports whether the session has transitioned to Closing.
func (s *Session) Closed() <-chan struct{} { return s.closeCh }

// InstallFilter compiles req and installs it. From AwaitingInitial this is
// the first filter and moves the session to Active; from Active it
// atomically replaces the filter in place, with no effect on messages
// already enqueued (spec.md §4.5, §5 "happens-before boundary"). On
// AwaitingInitial a build failure transitions the session to Closing; on
// Active a build failure leaves the prior filter installed.
func (s *Session) InstallFilter(req wire.SubscribeRequest) (pingID int32, hasPing bool, err error) {
	filterReq, err := wire.ToFilterRequest(req)
	if err != nil {
		if s.State() == AwaitingInitial {
			s.transitionTo(Closing)
		}
		return 0, false, err
	}

	built, err := filter.Build(filterReq, s.limits, s.names, s.decode58, s.decode64)
	if err != nil {
		if s.State() == AwaitingInitial {
			s.transitionTo(Closing)
		}
		return 0, false, err
	}

	counts := built.EntryCounts()

	s.mu.Lock()
	s.filter = built
	prev := s.entryCounts
	s.entryCounts = counts
	s.mu.Unlock()

	s.reportEntryDeltas(prev, counts)

	if s.State() == AwaitingInitial {
		s.transitionTo(Active)
	}

	pingID, hasPing = built.PingID()
	return pingID, hasPing, nil
}

// reportEntryDeltas adjusts the aggregate per-kind gauge by the difference
// between the previous and newly-installed filter's entry counts, so a
// filter replacement (spec.md §4.5) never double-counts the prior filter.
func (s *Session) reportEntryDeltas(prev, next map[string]int) {
	if s.metrics == nil {
		return
	}
	for kind, n := range next {
		if delta := n - prev[kind]; delta != 0 {
			s.metrics.AdjustFilterEntries(kind, delta)
		}
	}
	for kind, n := range prev {
		if _, ok := next[kind]; !ok && n != 0 {
			s.metrics.AdjustFilterEntries(kind, -n)
		}
	}
}

// currentFilter returns the installed filter, or nil if none has been
// installed yet.
func (s *Session) currentFilter() *filter.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Deliver runs msg against the session's installed filter and enqueues
// every non-empty result. It reports overflowed=true if the queue was full;
// the caller (the hub) must then transition the session to Closing -- a full
// queue is not absorbed by dropping a message (spec.md §4.6, redesigned
// from the teacher's silent-drop broadcast loop to this stricter
// backpressure policy).
func (s *Session) Deliver(msg *message.Message) (delivered bool, overflowed bool) {
	f := s.currentFilter()
	if f == nil || s.State() != Active {
		return false, false
	}

	for _, r := range dispatch.Dispatch(msg, f) {
		if len(r.Names) == 0 {
			continue
		}
		update := wire.FromDispatchResult(r)
		select {
		case s.queue <- Outbound{Update: &update}:
			delivered = true
		default:
			return delivered, true
		}
	}
	return delivered, false
}

// EnqueuePong enqueues a Pong frame directly, bypassing the filter (used
// for both the post-install ping ack and client-initiated pings, spec.md
// §4.5).
func (s *Session) EnqueuePong(id int32) bool {
	update := wire.SubscribeUpdate{Filters: nil, Pong: &wire.PongUpdate{ID: id}}
	select {
	case s.queue <- Outbound{Update: &update}:
		return true
	default:
		return false
	}
}

// Close transitions the session to Closing and signals Closed(). Safe to
// call more than once.
func (s *Session) Close() {
	s.transitionTo(Closing)
	s.closeOnce.Do(func() {
		s.mu.Lock()
		prev := s.entryCounts
		s.entryCounts = nil
		s.mu.Unlock()
		s.reportEntryDeltas(prev, nil)
		close(s.closeCh)
	})
}

func (s *Session) transitionTo(next State) {
	s.state.Store(int32(next))
}
