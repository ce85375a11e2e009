package filter

import (
	"fmt"

	"fanout-server/internal/filter/limits"
	"fanout-server/internal/filter/name"
	"fanout-server/internal/message"
)

// BlocksConfig is one raw "blocks" request entry.
type BlocksConfig struct {
	AccountInclude      []string
	IncludeTransactions *bool
	IncludeAccounts     *bool
	IncludeEntries      *bool
}

type blocksEntry struct {
	name                name.Name
	accountInclude      map[message.Pubkey]struct{}
	includeTransactions *bool
	includeAccounts     *bool
	includeEntries      *bool
}

// Blocks is the compiled "blocks" sub-filter (spec.md §4.3).
type Blocks struct {
	entries []blocksEntry
}

// Len returns the number of named "blocks" filters compiled in.
func (b *Blocks) Len() int { return len(b.entries) }

// BuildBlocks compiles the blocks sub-filter from named configs. Unlike
// the distilled implementation's include_entries check, this build
// validates include_entries against the blocks.include_entries permission
// flag rather than reusing blocks.include_accounts -- a corrected
// redesign of a flag-confusion bug present in the reference
// implementation.
func BuildBlocks(configs map[string]BlocksConfig, lim limits.Blocks, names *name.Registry) (*Blocks, error) {
	if err := limits.CheckMax(limits.KindBlocks, len(configs), lim.Max); err != nil {
		return nil, err
	}

	b := &Blocks{}
	for fname, cfg := range configs {
		if err := limits.CheckAny(limits.KindBlocks, len(cfg.AccountInclude) == 0, lim.AccountIncludeAny); err != nil {
			return nil, err
		}
		if err := limits.CheckPubkeyMax(limits.KindBlocks, len(cfg.AccountInclude), lim.AccountIncludeMax); err != nil {
			return nil, err
		}

		requestedTx := cfg.IncludeTransactions == nil || *cfg.IncludeTransactions
		if err := limits.CheckInclude(limits.KindBlocks, "transactions", requestedTx, lim.IncludeTransactions); err != nil {
			return nil, err
		}
		requestedAccounts := cfg.IncludeAccounts != nil && *cfg.IncludeAccounts
		if err := limits.CheckInclude(limits.KindBlocks, "accounts", requestedAccounts, lim.IncludeAccounts); err != nil {
			return nil, err
		}
		requestedEntries := cfg.IncludeEntries != nil && *cfg.IncludeEntries
		if err := limits.CheckInclude(limits.KindBlocks, "entries", requestedEntries, lim.IncludeEntries); err != nil {
			return nil, err
		}

		n, err := names.Get(fname)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrName, err)
		}

		include, err := decodePubkeySet(cfg.AccountInclude, lim.AccountIncludeReject, limits.KindBlocks)
		if err != nil {
			return nil, err
		}

		b.entries = append(b.entries, blocksEntry{
			name:                n,
			accountInclude:      include,
			includeTransactions: cfg.IncludeTransactions,
			includeAccounts:     cfg.IncludeAccounts,
			includeEntries:      cfg.IncludeEntries,
		})
	}
	return b, nil
}

// Project yields one (filter-name, projected block) pair per configured
// block filter.
func (b *Blocks) Project(block *message.BlockInfo) []struct {
	Name  string
	Block *message.BlockInfo
} {
	out := make([]struct {
		Name  string
		Block *message.BlockInfo
	}, 0, len(b.entries))

	for _, e := range b.entries {
		var transactions []*message.TransactionInfo
		if e.includeTransactions == nil || *e.includeTransactions {
			for _, tx := range block.Transactions {
				if len(e.accountInclude) == 0 || intersects(e.accountInclude, tx.AccountKeys) {
					transactions = append(transactions, tx)
				}
			}
		}

		var accounts []*message.AccountInfo
		if e.includeAccounts != nil && *e.includeAccounts {
			for _, acc := range block.Accounts {
				if len(e.accountInclude) == 0 {
					accounts = append(accounts, acc)
					continue
				}
				if _, ok := e.accountInclude[acc.Pubkey]; ok {
					accounts = append(accounts, acc)
				}
			}
		}

		var entries []*message.EntryInfo
		if e.includeEntries != nil && *e.includeEntries {
			entries = append(entries, block.Entries...)
		}

		out = append(out, struct {
			Name  string
			Block *message.BlockInfo
		}{
			Name: e.name.String(),
			Block: &message.BlockInfo{
				Meta:                block.Meta,
				Transactions:        transactions,
				Accounts:            accounts,
				Entries:             entries,
				UpdatedAccountCount: block.UpdatedAccountCount,
				CreatedAt:           block.CreatedAt,
			},
		})
	}
	return out
}
