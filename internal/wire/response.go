package wire

// SubscribeUpdate is a server -> client frame: the matched filter-name
// labels plus exactly one populated payload field (spec.md §6).
type SubscribeUpdate struct {
	Filters           []string           `json:"filters"`
	Account           *AccountUpdate     `json:"account,omitempty"`
	Slot              *SlotUpdate        `json:"slot,omitempty"`
	Transaction       *TransactionUpdate `json:"transaction,omitempty"`
	TransactionStatus *TransactionUpdate `json:"transaction_status,omitempty"`
	Entry             *EntryUpdate       `json:"entry,omitempty"`
	Block             *BlockUpdate       `json:"block,omitempty"`
	BlockMeta         *BlockMetaUpdate   `json:"block_meta,omitempty"`
	Ping              *PingUpdate        `json:"ping,omitempty"`
	Pong              *PongUpdate        `json:"pong,omitempty"`
}

// AccountUpdate is the wire projection of message.AccountUpdate.
type AccountUpdate struct {
	Pubkey       string `json:"pubkey"`
	Lamports     uint64 `json:"lamports"`
	Owner        string `json:"owner"`
	Executable   bool   `json:"executable"`
	RentEpoch    uint64 `json:"rent_epoch"`
	Data         []byte `json:"data"`
	WriteVersion uint64 `json:"write_version"`
	TxnSignature string `json:"txn_signature,omitempty"`
	Slot         uint64 `json:"slot"`
	IsStartup    bool   `json:"is_startup"`
}

// SlotUpdate is the wire projection of message.SlotInfo.
type SlotUpdate struct {
	Slot      uint64  `json:"slot"`
	Parent    *uint64 `json:"parent,omitempty"`
	Status    int32   `json:"status"`
	DeadError *string `json:"dead_error,omitempty"`
}

// TransactionUpdate is the wire projection of message.TransactionUpdate.
type TransactionUpdate struct {
	Signature string `json:"signature"`
	IsVote    bool   `json:"is_vote"`
	Index     uint64 `json:"index"`
	Failed    bool   `json:"failed"`
	Fee       uint64 `json:"fee"`
	Slot      uint64 `json:"slot"`
}

// EntryUpdate is the wire projection of message.EntryInfo.
type EntryUpdate struct {
	Slot                     uint64 `json:"slot"`
	Index                    uint64 `json:"index"`
	NumHashes                uint64 `json:"num_hashes"`
	Hash                     []byte `json:"hash"`
	ExecutedTransactionCount uint64 `json:"executed_transaction_count"`
	StartingTransactionIndex uint64 `json:"starting_transaction_index"`
}

// BlockMetaUpdate is the wire projection of message.BlockMetaInfo.
type BlockMetaUpdate struct {
	ParentSlot               uint64  `json:"parent_slot"`
	ParentBlockhash          string  `json:"parent_blockhash"`
	Slot                     uint64  `json:"slot"`
	Blockhash                string  `json:"blockhash"`
	BlockTime                *int64  `json:"block_time,omitempty"`
	BlockHeight              *uint64 `json:"block_height,omitempty"`
	ExecutedTransactionCount uint64  `json:"executed_transaction_count"`
	EntriesCount             uint64  `json:"entries_count"`
}

// BlockUpdate is the wire projection of message.BlockInfo, after the
// blocks sub-filter has applied its per-filter projection.
type BlockUpdate struct {
	Meta                *BlockMetaUpdate    `json:"meta"`
	Transactions        []TransactionUpdate `json:"transactions,omitempty"`
	Accounts            []AccountUpdate     `json:"accounts,omitempty"`
	Entries             []EntryUpdate       `json:"entries,omitempty"`
	UpdatedAccountCount uint64              `json:"updated_account_count"`
}

// PingUpdate/PongUpdate carry the liveness id (spec.md §4.5).
type PingUpdate struct{}
type PongUpdate struct {
	ID int32 `json:"id"`
}
