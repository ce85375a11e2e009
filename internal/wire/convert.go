package wire

import (
	"fmt"

	"fanout-server/internal/dispatch"
	"fanout-server/internal/filter"
	"fanout-server/internal/message"
)

// ToFilterRequest translates a wire SubscribeRequest into a filter.Request,
// the shape the filter package compiles from. It performs no limits
// checking of its own; filter.Build is responsible for every check.
func ToFilterRequest(req SubscribeRequest) (filter.Request, error) {
	accounts := make(map[string]filter.AccountsConfig, len(req.Accounts))
	for name, a := range req.Accounts {
		sources := make([]filter.DataSource, 0, len(a.Filters))
		for _, f := range a.Filters {
			src, err := toDataSource(f)
			if err != nil {
				return filter.Request{}, fmt.Errorf("accounts[%s]: %w", name, err)
			}
			sources = append(sources, src)
		}
		accounts[name] = filter.AccountsConfig{
			Account:              a.Account,
			Owner:                a.Owner,
			NonemptyTxnSignature: a.NonemptyTxnSignature,
			Filters:              sources,
		}
	}

	slots := make(map[string]filter.SlotsConfig, len(req.Slots))
	for name, s := range req.Slots {
		slots[name] = filter.SlotsConfig{FilterByCommitment: s.FilterByCommitment != nil && *s.FilterByCommitment}
	}

	transactions := toTransactionsConfigs(req.Transactions)
	transactionsStatus := toTransactionsConfigs(req.TransactionsStatus)

	entryNames := make([]string, 0, len(req.Entry))
	for name := range req.Entry {
		entryNames = append(entryNames, name)
	}
	blocksMetaNames := make([]string, 0, len(req.BlocksMeta))
	for name := range req.BlocksMeta {
		blocksMetaNames = append(blocksMetaNames, name)
	}

	blocks := make(map[string]filter.BlocksConfig, len(req.Blocks))
	for name, b := range req.Blocks {
		blocks[name] = filter.BlocksConfig{
			AccountInclude:      b.AccountInclude,
			IncludeTransactions: b.IncludeTransactions,
			IncludeAccounts:     b.IncludeAccounts,
			IncludeEntries:      b.IncludeEntries,
		}
	}

	dataSlice := make([]filter.DataSlice, 0, len(req.AccountsDataSlice))
	for _, s := range req.AccountsDataSlice {
		dataSlice = append(dataSlice, filter.DataSlice{Start: int(s.Offset), End: int(s.Offset + s.Length)})
	}

	var ping *int32
	if req.Ping != nil {
		id := req.Ping.ID
		ping = &id
	}

	return filter.Request{
		Accounts:           accounts,
		Slots:              slots,
		Transactions:       transactions,
		TransactionsStatus: transactionsStatus,
		Entries:            entryNames,
		Blocks:             blocks,
		BlocksMeta:         blocksMetaNames,
		Commitment:         req.Commitment,
		AccountsDataSlice:  dataSlice,
		Ping:               ping,
	}, nil
}

func toTransactionsConfigs(in map[string]TxFilter) map[string]filter.TransactionsConfig {
	out := make(map[string]filter.TransactionsConfig, len(in))
	for name, t := range in {
		out[name] = filter.TransactionsConfig{
			Vote:            t.Vote,
			Failed:          t.Failed,
			Signature:       t.Signature,
			AccountInclude:  t.AccountInclude,
			AccountExclude:  t.AccountExclude,
			AccountRequired: t.AccountRequired,
		}
	}
	return out
}

func toDataSource(f AccountFilterPredicate) (filter.DataSource, error) {
	switch {
	case f.Memcmp != nil:
		return filter.DataSource{Memcmp: &filter.RawMemcmp{
			Offset: int(f.Memcmp.Offset),
			Bytes:  f.Memcmp.Bytes,
			Base58: f.Memcmp.Base58,
			Base64: f.Memcmp.Base64,
		}}, nil
	case f.Datasize != nil:
		return filter.DataSource{DataSize: f.Datasize}, nil
	case f.TokenAccountState != nil:
		return filter.DataSource{TokenAccountState: f.TokenAccountState}, nil
	case f.Lamports != nil:
		cmp, err := toLamportsCmp(f.Lamports.Cmp)
		if err != nil {
			return filter.DataSource{}, err
		}
		return filter.DataSource{Lamports: &filter.LamportsPredicate{Cmp: cmp, Value: f.Lamports.Value}}, nil
	default:
		return filter.DataSource{}, fmt.Errorf("filter predicate has no variant set")
	}
}

func toLamportsCmp(s string) (filter.LamportsCmp, error) {
	switch s {
	case "eq":
		return filter.LamportsEq, nil
	case "ne":
		return filter.LamportsNe, nil
	case "lt":
		return filter.LamportsLt, nil
	case "gt":
		return filter.LamportsGt, nil
	default:
		return 0, fmt.Errorf("unknown lamports comparison %q", s)
	}
}

// FromDispatchResult renders one dispatch.Result as a wire SubscribeUpdate.
// Callers must skip results with an empty Names list (spec.md §4.4: empty
// name lists must not be written to the wire).
func FromDispatchResult(r dispatch.Result) SubscribeUpdate {
	out := SubscribeUpdate{Filters: r.Names}
	u := r.Update
	switch u.Channel {
	case dispatch.ChannelSlot:
		out.Slot = fromSlot(u.Slot)
	case dispatch.ChannelAccount:
		out.Account = fromAccount(u.Account)
	case dispatch.ChannelTransaction:
		out.Transaction = fromTransaction(u.Transaction)
	case dispatch.ChannelTransactionStatus:
		out.TransactionStatus = fromTransaction(u.Transaction)
	case dispatch.ChannelEntry:
		out.Entry = fromEntry(u.Entry)
	case dispatch.ChannelBlockMeta:
		out.BlockMeta = fromBlockMeta(u.BlockMeta)
	case dispatch.ChannelBlock:
		out.Block = fromBlock(u.Block)
	}
	return out
}

func fromSlot(s *message.SlotInfo) *SlotUpdate {
	var parent *uint64
	if s.Parent != nil {
		v := uint64(*s.Parent)
		parent = &v
	}
	return &SlotUpdate{Slot: uint64(s.Slot), Parent: parent, Status: int32(s.Status), DeadError: s.DeadError}
}

func fromAccount(a *message.AccountUpdate) *AccountUpdate {
	var sig string
	if a.Account.TxnSignature != nil {
		sig = a.Account.TxnSignature.String()
	}
	return &AccountUpdate{
		Pubkey:       a.Account.Pubkey.String(),
		Lamports:     a.Account.Lamports,
		Owner:        a.Account.Owner.String(),
		Executable:   a.Account.Executable,
		RentEpoch:    a.Account.RentEpoch,
		Data:         a.Account.Data,
		WriteVersion: a.Account.WriteVersion,
		TxnSignature: sig,
		Slot:         uint64(a.Slot),
		IsStartup:    a.IsStartup,
	}
}

func fromTransaction(t *message.TransactionUpdate) *TransactionUpdate {
	var sig string
	if len(t.Transaction.Transaction.Signatures) > 0 {
		sig = t.Transaction.Transaction.Signatures[0].String()
	}
	return &TransactionUpdate{
		Signature: sig,
		IsVote:    t.Transaction.IsVote,
		Index:     t.Transaction.Index,
		Failed:    t.Transaction.Meta.Failed(),
		Fee:       t.Transaction.Meta.Fee,
		Slot:      uint64(t.Slot),
	}
}

func fromEntry(e *message.EntryInfo) *EntryUpdate {
	return &EntryUpdate{
		Slot:                     uint64(e.Slot),
		Index:                    e.Index,
		NumHashes:                e.NumHashes,
		Hash:                     e.Hash[:],
		ExecutedTransactionCount: e.ExecutedTransactionCount,
		StartingTransactionIndex: e.StartingTransactionIndex,
	}
}

func fromBlockMeta(b *message.BlockMetaInfo) *BlockMetaUpdate {
	return &BlockMetaUpdate{
		ParentSlot:               uint64(b.ParentSlot),
		ParentBlockhash:          b.ParentBlockhash,
		Slot:                     uint64(b.Slot),
		Blockhash:                b.Blockhash,
		BlockTime:                b.BlockTime,
		BlockHeight:              b.BlockHeight,
		ExecutedTransactionCount: b.ExecutedTransactionCount,
		EntriesCount:             b.EntriesCount,
	}
}

func fromBlock(b *message.BlockInfo) *BlockUpdate {
	txs := make([]TransactionUpdate, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		txs = append(txs, *fromTransaction(&message.TransactionUpdate{Transaction: tx, Slot: b.Meta.Slot}))
	}
	accs := make([]AccountUpdate, 0, len(b.Accounts))
	for _, acc := range b.Accounts {
		accs = append(accs, *fromAccount(&message.AccountUpdate{Account: acc, Slot: b.Meta.Slot}))
	}
	entries := make([]EntryUpdate, 0, len(b.Entries))
	for _, e := range b.Entries {
		entries = append(entries, *fromEntry(e))
	}
	return &BlockUpdate{
		Meta:                fromBlockMeta(b.Meta),
		Transactions:        txs,
		Accounts:            accs,
		Entries:             entries,
		UpdatedAccountCount: b.UpdatedAccountCount,
	}
}
