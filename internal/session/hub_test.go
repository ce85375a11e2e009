package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanout-server/internal/filter/limits"
	"fanout-server/internal/ingest"
	"fanout-server/internal/message"
	"fanout-server/internal/wire"
)

type fakeMetrics struct {
	active       int
	closedCount  int
	ingested     int
}

func (m *fakeMetrics) SetActiveSessions(n int)    { m.active = n }
func (m *fakeMetrics) IncClosedOnBackpressure()   { m.closedCount++ }
func (m *fakeMetrics) IncMessagesIngested()       { m.ingested++ }

func TestHubRegisterUnregisterTracksCount(t *testing.T) {
	metrics := &fakeMetrics{}
	h := NewHub(Config{ShardCount: 4}, metrics)

	s1 := New(0, limits.Default(), noop58, noop64, 4)
	s2 := New(0, limits.Default(), noop58, noop64, 4)
	h.Register(s1)
	h.Register(s2)
	assert.Equal(t, 2, h.SessionCount())
	assert.Equal(t, 2, metrics.active)

	h.Unregister(s1)
	assert.Equal(t, 1, h.SessionCount())
	assert.Equal(t, 1, metrics.active)
}

func TestHubClosesSessionOnBackpressure(t *testing.T) {
	metrics := &fakeMetrics{}
	h := NewHub(Config{ShardCount: 1}, metrics)

	s := New(0, limits.Default(), noop58, noop64, 1)
	_, _, err := s.InstallFilter(wire.SubscribeRequest{Slots: map[string]wire.SlotFilter{"s1": {}}})
	require.NoError(t, err)
	h.Register(s)

	adapter := ingest.NewChannelAdapter(4)
	h.Start(adapter.Source())

	adapter.OnSlotStatus(&message.SlotInfo{Slot: 1})
	adapter.OnSlotStatus(&message.SlotInfo{Slot: 2})

	require.Eventually(t, func() bool {
		return s.State() == Closing
	}, time.Second, time.Millisecond, "session should close once its queue overflows")
	assert.Equal(t, 1, metrics.closedCount)
	assert.Equal(t, 2, metrics.ingested)

	adapter.Close()
}
