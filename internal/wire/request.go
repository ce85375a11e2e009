// Package wire defines the plain-struct subscription protocol carried over
// the transport framing (spec.md §6). The core packages (filter, dispatch,
// session) never import this package directly for matching; only the
// session's request/response translation does, keeping the wire encoding
// swappable independent of the matching engine.
package wire

// SubscribeRequest is a client -> server frame. Sending it a second time on
// an already-Active session replaces the installed filter (spec.md §4.5).
type SubscribeRequest struct {
	Accounts           map[string]AccountFilter    `json:"accounts,omitempty"`
	Slots              map[string]SlotFilter       `json:"slots,omitempty"`
	Transactions       map[string]TxFilter         `json:"transactions,omitempty"`
	TransactionsStatus map[string]TxFilter         `json:"transactions_status,omitempty"`
	Entry              map[string]EntryFilter      `json:"entry,omitempty"`
	Blocks             map[string]BlocksFilter     `json:"blocks,omitempty"`
	BlocksMeta         map[string]BlocksMetaFilter `json:"blocks_meta,omitempty"`
	Commitment         *int32                      `json:"commitment,omitempty"`
	AccountsDataSlice  []DataSlice                 `json:"accounts_data_slice,omitempty"`
	Ping               *PingRequest                `json:"ping,omitempty"`
}

// DataSlice is one requested [Offset, Offset+Length) byte range.
type DataSlice struct {
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
}

// PingRequest carries the client-chosen ping identifier installed with a
// filter (spec.md §4.3 "ping state").
type PingRequest struct {
	ID int32 `json:"id"`
}

// AccountFilter is one named "accounts" criterion.
type AccountFilter struct {
	NonemptyTxnSignature *bool                    `json:"nonempty_txn_signature,omitempty"`
	Account              []string                 `json:"account,omitempty"`
	Owner                []string                 `json:"owner,omitempty"`
	Filters              []AccountFilterPredicate `json:"filters,omitempty"`
}

// AccountFilterPredicate is one oneof-shaped data predicate entry. Exactly
// one field should be set by the client; BuildAccounts rejects an entry
// where none is.
type AccountFilterPredicate struct {
	Memcmp            *MemcmpFilter   `json:"memcmp,omitempty"`
	Datasize          *uint64         `json:"datasize,omitempty"`
	TokenAccountState *bool           `json:"token_account_state,omitempty"`
	Lamports          *LamportsFilter `json:"lamports,omitempty"`
}

// MemcmpFilter carries a byte-literal in exactly one of three encodings
// (spec.md §4.3).
type MemcmpFilter struct {
	Offset uint64 `json:"offset"`
	Bytes  []byte `json:"bytes,omitempty"`
	Base58 string `json:"base58,omitempty"`
	Base64 string `json:"base64,omitempty"`
}

// LamportsFilter compares an account's lamports balance. Cmp is one of
// "eq", "ne", "lt", "gt".
type LamportsFilter struct {
	Cmp   string `json:"cmp"`
	Value uint64 `json:"value"`
}

// TxFilter is one named "transactions" or "transactions_status" criterion
// (the two channels share this shape, spec.md §4.3).
type TxFilter struct {
	Vote            *bool    `json:"vote,omitempty"`
	Failed          *bool    `json:"failed,omitempty"`
	Signature       string   `json:"signature,omitempty"`
	AccountInclude  []string `json:"account_include,omitempty"`
	AccountExclude  []string `json:"account_exclude,omitempty"`
	AccountRequired []string `json:"account_required,omitempty"`
}

// SlotFilter is one named "slots" criterion.
type SlotFilter struct {
	FilterByCommitment *bool `json:"filter_by_commitment,omitempty"`
}

// EntryFilter is one named "entry" criterion; it carries no fields, the
// entries channel is unconditional (spec.md §4.3).
type EntryFilter struct{}

// BlocksMetaFilter is one named "blocks_meta" criterion; unconditional.
type BlocksMetaFilter struct{}

// BlocksFilter is one named "blocks" criterion.
type BlocksFilter struct {
	AccountInclude      []string `json:"account_include,omitempty"`
	IncludeTransactions *bool    `json:"include_transactions,omitempty"`
	IncludeAccounts     *bool    `json:"include_accounts,omitempty"`
	IncludeEntries      *bool    `json:"include_entries,omitempty"`
}
