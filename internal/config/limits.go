package config

import (
	"fmt"

	"fanout-server/internal/filter/limits"
	"fanout-server/internal/message"
)

// ToLimits builds the concrete limits.Limits value matching this config,
// resolving base58 reject lists to decoded pubkeys once at startup.
func (c LimitsConfig) ToLimits() (limits.Limits, error) {
	accountReject, err := pubkeySet(c.AccountsAccountReject)
	if err != nil {
		return limits.Limits{}, fmt.Errorf("limits.accounts_account_reject: %w", err)
	}
	ownerReject, err := pubkeySet(c.AccountsOwnerReject)
	if err != nil {
		return limits.Limits{}, fmt.Errorf("limits.accounts_owner_reject: %w", err)
	}

	return limits.Limits{
		FilterNameMaxLen:   c.FilterNameMaxLen,
		FilterNameMaxCount: c.FilterNameMaxCount,
		Accounts: limits.Accounts{
			Max:           c.AccountsMax,
			Any:           c.AccountsAny,
			AccountMax:    c.AccountsAccountMax,
			OwnerMax:      c.AccountsOwnerMax,
			AccountReject: accountReject,
			OwnerReject:   ownerReject,
			DataSliceMax:  c.AccountsDataSliceMax,
		},
		Slots: limits.Slots{Max: c.SlotsMax},
		Transactions: limits.Transactions{
			Max:                c.TransactionsMax,
			Any:                c.TransactionsAny,
			AccountIncludeMax:  c.TransactionsAccountIncludeMax,
			AccountExcludeMax:  c.TransactionsAccountExcludeMax,
			AccountRequiredMax: c.TransactionsAccountRequiredMax,
		},
		TransactionsStatus: limits.Transactions{
			Max:                c.TransactionsStatusMax,
			Any:                c.TransactionsStatusAny,
			AccountIncludeMax:  c.TransactionsStatusAccountIncludeMax,
			AccountExcludeMax:  c.TransactionsStatusAccountExcludeMax,
			AccountRequiredMax: c.TransactionsStatusAccountRequiredMax,
		},
		Entries: limits.Entries{Max: c.EntriesMax},
		Blocks: limits.Blocks{
			Max:                 c.BlocksMax,
			AccountIncludeAny:   c.BlocksAccountIncludeAny,
			AccountIncludeMax:   c.BlocksAccountIncludeMax,
			IncludeTransactions: c.BlocksIncludeTransactions,
			IncludeAccounts:     c.BlocksIncludeAccounts,
			IncludeEntries:      c.BlocksIncludeEntries,
		},
		BlocksMeta: limits.BlocksMeta{Max: c.BlocksMetaMax},
	}, nil
}

func pubkeySet(raw []string) (map[[32]byte]struct{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[[32]byte]struct{}, len(raw))
	for _, s := range raw {
		pk, err := message.ParsePubkey(s)
		if err != nil {
			return nil, err
		}
		out[pk] = struct{}{}
	}
	return out, nil
}
