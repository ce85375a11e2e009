package message

import "time"

// Clock supplies the monotonic creation timestamp stamped onto every
// canonical message. Production wiring uses time.Now; tests supply a fixed
// clock so fixtures are deterministic.
type Clock func() time.Time

// Slot is a monotonically increasing unit of blockchain time.
type Slot uint64

// SlotInfo is the canonical record for a slot-status transition.
type SlotInfo struct {
	Slot       Slot
	Parent     *Slot
	Status     CommitmentLevel
	DeadError  *string
	CreatedAt  time.Time
}

// AccountInfo is the canonical, shared, exclusive-writer record for one
// account write. It is constructed once by the ingestion adapter and never
// mutated afterward; every session that matches it holds a pointer to the
// same value.
type AccountInfo struct {
	Pubkey        Pubkey
	Lamports      uint64
	Owner         Pubkey
	Executable    bool
	RentEpoch     uint64
	Data          []byte
	WriteVersion  uint64
	TxnSignature  *Signature
}

// AccountUpdate pairs a shared AccountInfo with the slot it was observed in.
type AccountUpdate struct {
	Account   *AccountInfo
	Slot      Slot
	IsStartup bool
	CreatedAt time.Time
}

// TransactionInfo is the canonical, shared transaction record. AccountKeys
// is the closed union of static and loaded writable/readonly addresses,
// computed exactly once by the ingestion adapter (spec.md §4.7) and never
// mutated afterward.
type TransactionInfo struct {
	Signature   Signature
	IsVote      bool
	Transaction DecodedTransaction
	Meta        TransactionStatusMeta
	Index       uint64
	AccountKeys map[Pubkey]struct{}
}

// DecodedTransaction is an opaque placeholder for the fully decoded
// transaction payload the ingestion adapter hands in; the filter engine and
// dispatcher never inspect its internals beyond what TransactionInfo
// precomputes, so it is left as an opaque blob here rather than modeled
// field by field (out of scope: transaction decoding itself).
type DecodedTransaction struct {
	Signatures []Signature
	RawMessage []byte
}

// TransactionStatusMeta carries the subset of execution metadata the filter
// engine and wire projection need.
type TransactionStatusMeta struct {
	Err                     []byte // non-nil iff the transaction failed
	Fee                     uint64
	LoadedWritableAddresses []Pubkey
	LoadedReadonlyAddresses []Pubkey
}

// Failed reports whether the transaction's status metadata records an
// error.
func (m TransactionStatusMeta) Failed() bool {
	return m.Err != nil
}

// TransactionUpdate pairs a shared TransactionInfo with its slot.
type TransactionUpdate struct {
	Transaction *TransactionInfo
	Slot        Slot
	CreatedAt   time.Time
}

// EntryInfo is the canonical shred-entry record.
type EntryInfo struct {
	Slot                     Slot
	Index                    uint64
	NumHashes                uint64
	Hash                     [32]byte
	ExecutedTransactionCount uint64
	StartingTransactionIndex uint64
	CreatedAt                time.Time
}

// Reward is one entry of a block's reward set (leader fee, staking reward,
// etc). Left as an opaque blob since the filter engine does not inspect it.
type Reward struct {
	Pubkey   string
	Lamports int64
	Kind     string
}

// BlockMetaInfo is the canonical per-block metadata record (without the
// transaction/account/entry bodies carried by BlockInfo).
type BlockMetaInfo struct {
	ParentSlot               Slot
	ParentBlockhash          string
	Slot                     Slot
	Blockhash                string
	Rewards                  []Reward
	BlockTime                *int64
	BlockHeight              *uint64
	ExecutedTransactionCount uint64
	EntriesCount             uint64
	CreatedAt                time.Time
}

// BlockInfo is the canonical full-block record: metadata plus the shared
// transaction, account, and entry records observed in that block.
type BlockInfo struct {
	Meta                *BlockMetaInfo
	Transactions        []*TransactionInfo
	Accounts            []*AccountInfo
	Entries             []*EntryInfo
	UpdatedAccountCount uint64
	CreatedAt           time.Time
}

// Kind discriminates the Message union without a type assertion.
type Kind int

const (
	KindSlot Kind = iota
	KindAccount
	KindTransaction
	KindEntry
	KindBlockMeta
	KindBlock
)

// Message is the canonical event union the dispatcher matches against.
// Exactly one field is populated, selected by Kind; this mirrors the
// original Rust enum (plugin/message.rs Message) without requiring Go
// interface dispatch on the hot path.
type Message struct {
	Kind        Kind
	Slot        *SlotInfo
	Account     *AccountUpdate
	Transaction *TransactionUpdate
	Entry       *EntryInfo
	BlockMeta   *BlockMetaInfo
	Block       *BlockInfo
}

// GetSlot returns the slot number carried by whichever variant is set.
func (m *Message) GetSlot() Slot {
	switch m.Kind {
	case KindSlot:
		return m.Slot.Slot
	case KindAccount:
		return m.Account.Slot
	case KindTransaction:
		return m.Transaction.Slot
	case KindEntry:
		return m.Entry.Slot
	case KindBlockMeta:
		return m.BlockMeta.Slot
	case KindBlock:
		return m.Block.Meta.Slot
	default:
		return 0
	}
}
