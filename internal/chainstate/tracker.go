// Package chainstate tracks the most recently observed slot and block
// metadata so the ancillary unary endpoints (GetSlot, GetBlockHeight,
// GetLatestBlockhash, IsBlockhashValid) can answer without touching the
// filter engine (spec.md §6, documented on wire.GetSlotResponse and
// friends).
package chainstate

import (
	"sync"

	"fanout-server/internal/message"
)

// Tracker holds the latest slot observed per commitment level and the
// latest observed block metadata (of any commitment), updated as the hub
// observes the ingestion stream.
type Tracker struct {
	mu sync.RWMutex

	latestSlot map[message.CommitmentLevel]message.Slot

	blockHeight    uint64
	haveHeight     bool
	blockhash      string
	lastValidSlot  uint64
	haveBlockhash  bool
	seenBlockhash  map[string]struct{}
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{
		latestSlot:    make(map[message.CommitmentLevel]message.Slot),
		seenBlockhash: make(map[string]struct{}, 64),
	}
}

// Observe updates the tracker from one canonical message. Only slot status
// and block metadata variants carry information the tracker needs.
func (t *Tracker) Observe(msg *message.Message) {
	switch msg.Kind {
	case message.KindSlot:
		t.observeSlot(msg.Slot)
	case message.KindBlockMeta:
		t.observeBlockMeta(msg.BlockMeta)
	case message.KindBlock:
		if msg.Block.Meta != nil {
			t.observeBlockMeta(msg.Block.Meta)
		}
	}
}

func (t *Tracker) observeSlot(info *message.SlotInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.latestSlot[info.Status]; !ok || info.Slot > cur {
		t.latestSlot[info.Status] = info.Slot
	}
}

func (t *Tracker) observeBlockMeta(meta *message.BlockMetaInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if meta.BlockHeight != nil && (!t.haveHeight || *meta.BlockHeight > t.blockHeight) {
		t.blockHeight = *meta.BlockHeight
		t.haveHeight = true
	}
	if !t.haveBlockhash || uint64(meta.Slot)+150 > t.lastValidSlot {
		t.blockhash = meta.Blockhash
		t.lastValidSlot = uint64(meta.Slot) + 150
		t.haveBlockhash = true
	}
	t.seenBlockhash[meta.Blockhash] = struct{}{}
	if len(t.seenBlockhash) > 600 {
		// bound the retained set by dropping one other entry, whichever the
		// map iteration yields first (not necessarily the oldest)
		for h := range t.seenBlockhash {
			if h != meta.Blockhash {
				delete(t.seenBlockhash, h)
				break
			}
		}
	}
}

// LatestSlot returns the highest slot observed with a status of exactly
// commitment; slots seen only at other levels are not considered.
func (t *Tracker) LatestSlot(commitment message.CommitmentLevel) (message.Slot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	slot, ok := t.latestSlot[commitment]
	return slot, ok
}

// LatestBlockhash returns the most recent block's hash and the slot through
// which it remains valid (that block's slot plus 150).
func (t *Tracker) LatestBlockhash() (blockhash string, lastValidSlot uint64, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.blockhash, t.lastValidSlot, t.haveBlockhash
}

// BlockHeight returns the most recently observed block height.
func (t *Tracker) BlockHeight() (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.blockHeight, t.haveHeight
}

// IsBlockhashValid reports whether blockhash is in the retained set of
// observed blockhashes (at most about 600 entries; see observeBlockMeta for
// how the set is trimmed).
func (t *Tracker) IsBlockhashValid(blockhash string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.seenBlockhash[blockhash]
	return ok
}
