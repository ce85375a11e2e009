package filter

import (
	"fmt"

	"fanout-server/internal/filter/limits"
	"fanout-server/internal/filter/name"
	"fanout-server/internal/message"
)

// TransactionsConfig is one raw "transactions" or "transactions_status"
// request entry.
type TransactionsConfig struct {
	Vote             *bool
	Failed           *bool
	Signature        string
	AccountInclude   []string
	AccountExclude   []string
	AccountRequired  []string
}

type transactionsEntry struct {
	name            name.Name
	vote            *bool
	failed          *bool
	signature       *message.Signature
	accountInclude  map[message.Pubkey]struct{}
	accountExclude  map[message.Pubkey]struct{}
	accountRequired map[message.Pubkey]struct{}
}

// Transactions is the compiled "transactions"/"transactions_status"
// sub-filter; channelKind records which wire channel this instance serves
// for labeling purposes only (spec.md §4.3, "one-bit discriminant").
type Transactions struct {
	channelKind limits.Kind
	entries     []transactionsEntry
}

// Len returns the number of named filters compiled in.
func (t *Transactions) Len() int { return len(t.entries) }

// BuildTransactions compiles the transactions sub-filter from named
// configs. channelKind must be limits.KindTransactions or
// limits.KindTransactionsStatus.
func BuildTransactions(configs map[string]TransactionsConfig, lim limits.Transactions, channelKind limits.Kind, names *name.Registry) (*Transactions, error) {
	if err := limits.CheckMax(channelKind, len(configs), lim.Max); err != nil {
		return nil, err
	}

	t := &Transactions{channelKind: channelKind}
	for fname, cfg := range configs {
		isEmpty := cfg.Vote == nil && cfg.Failed == nil && len(cfg.AccountInclude) == 0 &&
			len(cfg.AccountExclude) == 0 && len(cfg.AccountRequired) == 0
		if err := limits.CheckAny(channelKind, isEmpty, lim.Any); err != nil {
			return nil, err
		}
		if err := limits.CheckPubkeyMax(channelKind, len(cfg.AccountInclude), lim.AccountIncludeMax); err != nil {
			return nil, err
		}
		if err := limits.CheckPubkeyMax(channelKind, len(cfg.AccountExclude), lim.AccountExcludeMax); err != nil {
			return nil, err
		}
		if err := limits.CheckPubkeyMax(channelKind, len(cfg.AccountRequired), lim.AccountRequiredMax); err != nil {
			return nil, err
		}

		n, err := names.Get(fname)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrName, err)
		}

		var sig *message.Signature
		if cfg.Signature != "" {
			parsed, err := message.ParseSignature(cfg.Signature)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrInvalidSignature, err)
			}
			sig = &parsed
		}

		include, err := decodePubkeySet(cfg.AccountInclude, lim.AccountIncludeReject, channelKind)
		if err != nil {
			return nil, err
		}
		exclude, err := decodePubkeySet(cfg.AccountExclude, nil, channelKind)
		if err != nil {
			return nil, err
		}
		required, err := decodePubkeySet(cfg.AccountRequired, nil, channelKind)
		if err != nil {
			return nil, err
		}

		t.entries = append(t.entries, transactionsEntry{
			name:            n,
			vote:            cfg.Vote,
			failed:          cfg.Failed,
			signature:       sig,
			accountInclude:  include,
			accountExclude:  exclude,
			accountRequired: required,
		})
	}
	return t, nil
}

func decodePubkeySet(raw []string, reject map[[32]byte]struct{}, kind limits.Kind) (map[message.Pubkey]struct{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[message.Pubkey]struct{}, len(raw))
	for _, s := range raw {
		pk, err := message.ParsePubkey(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPubkey, err)
		}
		if reject != nil {
			if err := limits.CheckPubkeyReject(kind, pk, reject); err != nil {
				return nil, err
			}
		}
		out[pk] = struct{}{}
	}
	return out, nil
}

func intersects(a map[message.Pubkey]struct{}, keys map[message.Pubkey]struct{}) bool {
	if len(a) > len(keys) {
		a, keys = keys, a
	}
	for k := range a {
		if _, ok := keys[k]; ok {
			return true
		}
	}
	return false
}

func isSubset(required map[message.Pubkey]struct{}, keys map[message.Pubkey]struct{}) bool {
	for k := range required {
		if _, ok := keys[k]; !ok {
			return false
		}
	}
	return true
}

// Match returns the filter-name list matching txn.
func (t *Transactions) Match(txn *message.TransactionInfo) []string {
	var out []string
	for _, e := range t.entries {
		if e.vote != nil && *e.vote != txn.IsVote {
			continue
		}
		if e.failed != nil && *e.failed != txn.Meta.Failed() {
			continue
		}
		if e.signature != nil {
			if len(txn.Transaction.Signatures) == 0 || txn.Transaction.Signatures[0] != *e.signature {
				continue
			}
		}
		if len(e.accountInclude) > 0 && !intersects(e.accountInclude, txn.AccountKeys) {
			continue
		}
		if len(e.accountExclude) > 0 && intersects(e.accountExclude, txn.AccountKeys) {
			continue
		}
		if len(e.accountRequired) > 0 && !isSubset(e.accountRequired, txn.AccountKeys) {
			continue
		}
		out = append(out, e.name.String())
	}
	return out
}
