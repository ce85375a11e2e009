// Package ingest defines the contract presented by the upstream event
// source collaborator (spec.md §4.7, §1 "out of scope: ingestion"). The
// core never imports a concrete ingestion plugin; it only consumes the
// Source channel that some adapter implementation feeds.
package ingest

import "fanout-server/internal/message"

// Source is the channel-shaped contract the fan-out hub reads from. A
// concrete ingestion adapter (a geyser plugin, a replay tool, a test
// fixture) owns the send side and is responsible for the three guarantees
// spec.md §4.7 places on it:
//
//   - account_keys is computed exactly once per transaction before it is
//     sent;
//   - every shared record (*message.AccountInfo, *message.TransactionInfo,
//     *message.BlockMetaInfo, *message.EntryInfo) has stable identity: once
//     constructed it is never mutated, so readers across goroutines need no
//     lock;
//   - callbacks for a single slot arrive in non-decreasing commitment order
//     on one logical producer, so the hub and every session see slot
//     transitions in order without needing to buffer or re-sort.
type Source <-chan message.Message

// Adapter is the callback surface an ingestion plugin implements. The
// fan-out hub does not call these directly — it only owns a Source channel
// — but this interface documents the shape a concrete adapter (geyser
// plugin, replay harness, test double) must expose to produce that channel,
// and is used by the in-process test adapter in this package.
type Adapter interface {
	OnSlotStatus(info *message.SlotInfo)
	OnAccountWrite(update *message.AccountUpdate)
	OnTransaction(update *message.TransactionUpdate)
	OnEntry(entry *message.EntryInfo)
	OnBlockMeta(meta *message.BlockMetaInfo)
	OnBlock(block *message.BlockInfo)
}

// ChannelAdapter is a minimal Adapter that forwards every callback onto a
// buffered channel, satisfying the non-decreasing-commitment-order
// guarantee as long as its caller invokes the On* methods in that order on
// a single goroutine. It exists for tests and for simple in-process
// ingestion sources; a production deployment's geyser plugin is an
// external collaborator, out of scope per spec.md §1.
type ChannelAdapter struct {
	out chan message.Message
}

// NewChannelAdapter creates a ChannelAdapter with the given channel
// capacity.
func NewChannelAdapter(capacity int) *ChannelAdapter {
	return &ChannelAdapter{out: make(chan message.Message, capacity)}
}

// Source exposes the adapter's output as a Source for the hub to consume.
func (a *ChannelAdapter) Source() Source { return a.out }

// Close signals that no further events will be produced.
func (a *ChannelAdapter) Close() { close(a.out) }

func (a *ChannelAdapter) OnSlotStatus(info *message.SlotInfo) {
	a.out <- message.Message{Kind: message.KindSlot, Slot: info}
}

func (a *ChannelAdapter) OnAccountWrite(update *message.AccountUpdate) {
	a.out <- message.Message{Kind: message.KindAccount, Account: update}
}

func (a *ChannelAdapter) OnTransaction(update *message.TransactionUpdate) {
	a.out <- message.Message{Kind: message.KindTransaction, Transaction: update}
}

func (a *ChannelAdapter) OnEntry(entry *message.EntryInfo) {
	a.out <- message.Message{Kind: message.KindEntry, Entry: entry}
}

func (a *ChannelAdapter) OnBlockMeta(meta *message.BlockMetaInfo) {
	a.out <- message.Message{Kind: message.KindBlockMeta, BlockMeta: meta}
}

func (a *ChannelAdapter) OnBlock(block *message.BlockInfo) {
	a.out <- message.Message{Kind: message.KindBlock, Block: block}
}
