// Package filter implements the compiled subscription filter: inverted
// indexes and per-kind predicates built once per request and matched
// against every canonical message the fan-out hub observes (spec.md §4.3).
package filter

import (
	"errors"
	"fmt"

	"fanout-server/internal/filter/limits"
	"fanout-server/internal/filter/name"
	"fanout-server/internal/message"
)

// Request is the filter-build input, decoupled from the wire encoding so
// the filter package has no dependency on transport framing.
type Request struct {
	Accounts           map[string]AccountsConfig
	Slots              map[string]SlotsConfig
	Transactions       map[string]TransactionsConfig
	TransactionsStatus map[string]TransactionsConfig
	Entries            []string
	Blocks             map[string]BlocksConfig
	BlocksMeta         []string
	Commitment         *int32
	AccountsDataSlice  []DataSlice
	Ping               *int32
}

// Filter is a fully compiled, immutable subscription filter. Once built it
// is never mutated, so it is read without locking of its own;
// Session.InstallFilter replaces the session's pointer to it under the
// session's mutex (spec.md §4.5, §5).
type Filter struct {
	accounts           *Accounts
	slots              *Slots
	transactions       *Transactions
	transactionsStatus *Transactions
	entries            *Entries
	blocks             *Blocks
	blocksMeta         *BlocksMeta
	commitment         message.CommitmentLevel
	dataSlice          DataSliceList
	ping               *int32

	decodeBase58 func(string) ([]byte, error)
	decodeBase64 func(string) ([]byte, error)
}

// Build compiles req into a Filter, applying lim at every growable
// dimension and interning filter names through names. decodeBase58 /
// decodeBase64 are injected so the filter package does not hardwire an
// encoding choice; production wiring passes mr-tron/base58.Decode and
// encoding/base64.StdEncoding.DecodeString.
func Build(req Request, lim limits.Limits, names *name.Registry, decodeBase58, decodeBase64 func(string) ([]byte, error)) (*Filter, error) {
	commitment := message.Processed
	if req.Commitment != nil {
		c, ok := message.ParseCommitmentLevel(*req.Commitment)
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrInvalidCommitment, *req.Commitment)
		}
		commitment = c
	}

	dataSlice, err := NewDataSliceList(req.AccountsDataSlice)
	if err != nil {
		return nil, err
	}
	if err := checkDataSliceMax(len(req.AccountsDataSlice), lim.Accounts.DataSliceMax); err != nil {
		return nil, wrapLimitsCheck(err)
	}

	accounts, err := BuildAccounts(req.Accounts, lim.Accounts, names, decodeBase58, decodeBase64)
	if err != nil {
		return nil, wrapLimitsCheck(err)
	}
	slots, err := BuildSlots(req.Slots, lim.Slots, names)
	if err != nil {
		return nil, wrapLimitsCheck(err)
	}
	transactions, err := BuildTransactions(req.Transactions, lim.Transactions, limits.KindTransactions, names)
	if err != nil {
		return nil, wrapLimitsCheck(err)
	}
	transactionsStatus, err := BuildTransactions(req.TransactionsStatus, lim.TransactionsStatus, limits.KindTransactionsStatus, names)
	if err != nil {
		return nil, wrapLimitsCheck(err)
	}
	entries, err := BuildEntries(req.Entries, lim.Entries, names)
	if err != nil {
		return nil, wrapLimitsCheck(err)
	}
	blocks, err := BuildBlocks(req.Blocks, lim.Blocks, names)
	if err != nil {
		return nil, wrapLimitsCheck(err)
	}
	blocksMeta, err := BuildBlocksMeta(req.BlocksMeta, lim.BlocksMeta, names)
	if err != nil {
		return nil, wrapLimitsCheck(err)
	}

	return &Filter{
		accounts:           accounts,
		slots:              slots,
		transactions:       transactions,
		transactionsStatus: transactionsStatus,
		entries:            entries,
		blocks:             blocks,
		blocksMeta:         blocksMeta,
		commitment:         commitment,
		dataSlice:          dataSlice,
		ping:               req.Ping,
		decodeBase58:       decodeBase58,
		decodeBase64:       decodeBase64,
	}, nil
}

func checkDataSliceMax(count, max int) error {
	if max > 0 && count > max {
		return fmt.Errorf("%w: %d slices, max %d", limits.ErrMaxExceeded, count, max)
	}
	return nil
}

// wrapLimitsCheck wraps a limits-violation error with ErrLimitsCheck so
// callers can match any build failure that originated from a configured
// cap with a single errors.Is(err, filter.ErrLimitsCheck), instead of
// enumerating each limits sentinel individually. Errors from other build
// stages (name interning, pubkey/signature decoding, commitment parsing)
// pass through unchanged.
func wrapLimitsCheck(err error) error {
	if errors.Is(err, limits.ErrMaxExceeded) ||
		errors.Is(err, limits.ErrAnyNotAllowed) ||
		errors.Is(err, limits.ErrPubkeyRejected) ||
		errors.Is(err, limits.ErrIncludeNotAllowed) {
		return fmt.Errorf("%w: %w", ErrLimitsCheck, err)
	}
	return err
}

// Commitment returns the subscription's chosen commitment level.
func (f *Filter) Commitment() message.CommitmentLevel { return f.commitment }

// EntryCounts reports the number of named filters installed per channel,
// mirroring the original plugin's Filter::get_metrics.
func (f *Filter) EntryCounts() map[string]int {
	return map[string]int{
		string(limits.KindAccounts):           f.accounts.Len(),
		string(limits.KindSlots):              f.slots.Len(),
		string(limits.KindTransactions):       f.transactions.Len(),
		string(limits.KindTransactionsStatus): f.transactionsStatus.Len(),
		string(limits.KindEntries):            f.entries.Len(),
		string(limits.KindBlocks):             f.blocks.Len(),
		string(limits.KindBlocksMeta):         f.blocksMeta.Len(),
	}
}

// PingID returns the client-supplied ping identifier installed with this
// filter, if any.
func (f *Filter) PingID() (int32, bool) {
	if f.ping == nil {
		return 0, false
	}
	return *f.ping, true
}

// DataSlice returns the accounts-data-slice projection to apply to
// outbound account payloads.
func (f *Filter) DataSlice() DataSliceList { return f.dataSlice }

// MatchSlot returns the filter names matching a slot message.
func (f *Filter) MatchSlot(info *message.SlotInfo) []string {
	return f.slots.Match(info, f.commitment)
}

// MatchAccount returns the filter names matching an account update.
func (f *Filter) MatchAccount(update *message.AccountUpdate) []string {
	return f.accounts.Match(update, f.dataSlice)
}

// MatchTransaction returns the filter names matching a transaction, for
// both the "transactions" and "transactions_status" channels.
func (f *Filter) MatchTransaction(txn *message.TransactionInfo) (transactions, transactionsStatus []string) {
	return f.transactions.Match(txn), f.transactionsStatus.Match(txn)
}

// MatchEntry returns every filter name subscribed to the entries channel.
func (f *Filter) MatchEntry() []string {
	return f.entries.Match()
}

// MatchBlockMeta returns every filter name subscribed to the blocks_meta
// channel.
func (f *Filter) MatchBlockMeta() []string {
	return f.blocksMeta.Match()
}

// BlockProjections returns one (filter-name, projected block) pair per
// configured block filter.
func (f *Filter) BlockProjections(block *message.BlockInfo) []struct {
	Name  string
	Block *message.BlockInfo
} {
	return f.blocks.Project(block)
}
