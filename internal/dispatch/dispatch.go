// Package dispatch implements the match dispatcher: given a canonical
// message and a compiled filter, it yields the (filter-name-list,
// projected-update) pairs a session serializes onto the wire (spec.md
// §4.4).
package dispatch

import (
	"fanout-server/internal/filter"
	"fanout-server/internal/message"
)

// Channel identifies which wire channel an Update belongs to. Unlike
// message.Kind, it distinguishes "transactions" from "transactions_status"
// since both are produced from the same canonical TransactionUpdate.
type Channel int

const (
	ChannelSlot Channel = iota
	ChannelAccount
	ChannelTransaction
	ChannelTransactionStatus
	ChannelEntry
	ChannelBlockMeta
	ChannelBlock
)

// Update is the projected payload a Result carries, ready for wire
// encoding. Exactly one field is populated, selected by Channel.
type Update struct {
	Channel     Channel
	Slot        *message.SlotInfo
	Account     *message.AccountUpdate
	Transaction *message.TransactionUpdate
	Entry       *message.EntryInfo
	BlockMeta   *message.BlockMetaInfo
	Block       *message.BlockInfo
}

// Result pairs the filter names that matched with the update to deliver.
// An empty Names means "no delivery"; the session must not write it to the
// wire (spec.md §4.4).
type Result struct {
	Names  []string
	Update Update
}

// Dispatch runs msg against f and returns every (names, update) pair the
// spec's match procedure defines. Account/slot/entry/blockmeta messages
// always yield exactly one Result; transaction messages yield two, one for
// "transactions" and one for "transactions_status"; block messages yield
// one per configured block filter.
func Dispatch(msg *message.Message, f *filter.Filter) []Result {
	switch msg.Kind {
	case message.KindSlot:
		return []Result{{
			Names:  f.MatchSlot(msg.Slot),
			Update: Update{Channel: ChannelSlot, Slot: msg.Slot},
		}}

	case message.KindAccount:
		names := f.MatchAccount(msg.Account)
		projected := msg.Account
		if len(names) > 0 {
			projected = projectAccount(msg.Account, f.DataSlice())
		}
		return []Result{{
			Names:  names,
			Update: Update{Channel: ChannelAccount, Account: projected},
		}}

	case message.KindTransaction:
		txNames, statusNames := f.MatchTransaction(msg.Transaction.Transaction)
		return []Result{
			{Names: txNames, Update: Update{Channel: ChannelTransaction, Transaction: msg.Transaction}},
			{Names: statusNames, Update: Update{Channel: ChannelTransactionStatus, Transaction: msg.Transaction}},
		}

	case message.KindEntry:
		return []Result{{
			Names:  f.MatchEntry(),
			Update: Update{Channel: ChannelEntry, Entry: msg.Entry},
		}}

	case message.KindBlockMeta:
		return []Result{{
			Names:  f.MatchBlockMeta(),
			Update: Update{Channel: ChannelBlockMeta, BlockMeta: msg.BlockMeta},
		}}

	case message.KindBlock:
		projections := f.BlockProjections(msg.Block)
		out := make([]Result, 0, len(projections))
		for _, p := range projections {
			out = append(out, Result{
				Names:  []string{p.Name},
				Update: Update{Channel: ChannelBlock, Block: p.Block},
			})
		}
		return out

	default:
		return nil
	}
}

// projectAccount applies the accounts-data-slice projection to a copy of
// update, leaving the shared AccountInfo record (and every other
// subscriber's view of it) untouched.
func projectAccount(update *message.AccountUpdate, slice filter.DataSliceList) *message.AccountUpdate {
	if slice.Empty() {
		return update
	}
	projected := *update.Account
	projected.Data = slice.Apply(update.Account.Data)
	out := *update
	out.Account = &projected
	return &out
}
