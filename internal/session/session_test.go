package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanout-server/internal/filter/limits"
	"fanout-server/internal/message"
	"fanout-server/internal/wire"
)

func noop58(s string) ([]byte, error) { return []byte(s), nil }
func noop64(s string) ([]byte, error) { return []byte(s), nil }

func TestInstallFilterMovesAwaitingInitialToActive(t *testing.T) {
	s := New(1, limits.Default(), noop58, noop64, 4)
	assert.Equal(t, AwaitingInitial, s.State())

	_, hasPing, err := s.InstallFilter(wire.SubscribeRequest{})
	require.NoError(t, err)
	assert.False(t, hasPing)
	assert.Equal(t, Active, s.State())
}

func TestInstallFilterFailureClosesAwaitingInitialSession(t *testing.T) {
	lim := limits.Default()
	lim.Accounts.Any = false
	s := New(1, lim, noop58, noop64, 4)

	req := wire.SubscribeRequest{Accounts: map[string]wire.AccountFilter{"empty": {}}}
	_, _, err := s.InstallFilter(req)
	assert.Error(t, err)
	assert.Equal(t, Closing, s.State())
}

func TestInstallFilterFailureOnActiveRetainsOldFilter(t *testing.T) {
	lim := limits.Default()
	lim.Accounts.Any = false
	s := New(1, lim, noop58, noop64, 4)

	_, _, err := s.InstallFilter(wire.SubscribeRequest{})
	require.NoError(t, err)
	require.Equal(t, Active, s.State())
	before := s.currentFilter()

	badReq := wire.SubscribeRequest{Accounts: map[string]wire.AccountFilter{"empty": {}}}
	_, _, err = s.InstallFilter(badReq)
	assert.Error(t, err)
	assert.Equal(t, Active, s.State())
	assert.Same(t, before, s.currentFilter())
}

func TestDeliverReportsOverflowWithoutClosingItself(t *testing.T) {
	s := New(1, limits.Default(), noop58, noop64, 1)
	_, _, err := s.InstallFilter(wire.SubscribeRequest{
		Slots: map[string]wire.SlotFilter{"s1": {}},
	})
	require.NoError(t, err)

	msg := &message.Message{Kind: message.KindSlot, Slot: &message.SlotInfo{Slot: 1}}

	delivered, overflowed := s.Deliver(msg)
	assert.True(t, delivered)
	assert.False(t, overflowed)

	// queue size 1 already holds the first update; a second delivery must
	// report overflow since nothing has drained it yet.
	_, overflowed = s.Deliver(msg)
	assert.True(t, overflowed)
	assert.Equal(t, Active, s.State(), "Deliver leaves closing to the hub")
}
