package filter

import (
	"fmt"

	"fanout-server/internal/filter/limits"
	"fanout-server/internal/filter/name"
	"fanout-server/internal/message"
)

const (
	maxAccountStateFilters  = 4
	maxMemcmpDataSize       = 128
	maxMemcmpBase58Encoded  = 175
	maxMemcmpBase64Encoded  = 172
	splTokenAccountDataLen  = 165
	splTokenAccountStateOff = 108
)

// LamportsCmp is the comparison operator of a lamports predicate.
type LamportsCmp int

const (
	LamportsEq LamportsCmp = iota
	LamportsNe
	LamportsLt
	LamportsGt
)

// LamportsPredicate tests an account's lamports balance against Value using
// Cmp.
type LamportsPredicate struct {
	Cmp   LamportsCmp
	Value uint64
}

func (p LamportsPredicate) match(lamports uint64) bool {
	switch p.Cmp {
	case LamportsEq:
		return lamports == p.Value
	case LamportsNe:
		return lamports != p.Value
	case LamportsLt:
		return lamports < p.Value
	case LamportsGt:
		return lamports > p.Value
	default:
		return false
	}
}

// Memcmp compares data[Offset:Offset+len(Bytes)] against Bytes.
type Memcmp struct {
	Offset int
	Bytes  []byte
}

// DataSource describes one raw data-predicate entry as it arrives off the
// wire, before validation. Exactly one of the fields is meaningful,
// selected the same way a oneof would be: Memcmp != nil, or
// DataSize != nil, or TokenAccountState, or Lamports != nil.
type DataSource struct {
	Memcmp            *RawMemcmp
	DataSize          *uint64
	TokenAccountState *bool
	Lamports          *LamportsPredicate
}

// RawMemcmp carries an as-yet-undecoded memcmp byte literal in one of three
// encodings (spec.md §4.3).
type RawMemcmp struct {
	Offset int
	Bytes  []byte
	Base58 string
	Base64 string
}

// AccountDataPredicate is the compiled, validated per-filter-name data
// predicate (spec.md §4.3's "per-filter data-predicate structure").
type accountDataPredicate struct {
	memcmp            []Memcmp
	dataSize          *int
	tokenAccountState bool
	lamports          []LamportsPredicate
}

func buildAccountDataPredicate(sources []DataSource, decodeBase58 func(string) ([]byte, error), decodeBase64 func(string) ([]byte, error)) (accountDataPredicate, error) {
	if len(sources) > maxAccountStateFilters {
		return accountDataPredicate{}, fmt.Errorf("%w: max %d", ErrAccountStateMaxFilters, maxAccountStateFilters)
	}

	var p accountDataPredicate
	for _, src := range sources {
		switch {
		case src.Memcmp != nil:
			data, err := decodeMemcmpBytes(*src.Memcmp, decodeBase58, decodeBase64)
			if err != nil {
				return accountDataPredicate{}, err
			}
			p.memcmp = append(p.memcmp, Memcmp{Offset: src.Memcmp.Offset, Bytes: data})
		case src.DataSize != nil:
			if p.dataSize != nil {
				return accountDataPredicate{}, fmt.Errorf("%w: datasize used more than once", ErrAccountState)
			}
			ds := int(*src.DataSize)
			p.dataSize = &ds
		case src.TokenAccountState != nil:
			if !*src.TokenAccountState {
				return accountDataPredicate{}, fmt.Errorf("%w: token_account_state only allowed to be true", ErrAccountState)
			}
			p.tokenAccountState = true
		case src.Lamports != nil:
			p.lamports = append(p.lamports, *src.Lamports)
		default:
			return accountDataPredicate{}, fmt.Errorf("%w: filter should be defined", ErrAccountState)
		}
	}
	return p, nil
}

func decodeMemcmpBytes(raw RawMemcmp, decodeBase58 func(string) ([]byte, error), decodeBase64 func(string) ([]byte, error)) ([]byte, error) {
	var data []byte
	switch {
	case raw.Bytes != nil:
		data = raw.Bytes
	case raw.Base58 != "":
		if len(raw.Base58) > maxMemcmpBase58Encoded {
			return nil, fmt.Errorf("%w: data too large", ErrAccountState)
		}
		decoded, err := decodeBase58(raw.Base58)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base58", ErrAccountState)
		}
		data = decoded
	case raw.Base64 != "":
		if len(raw.Base64) > maxMemcmpBase64Encoded {
			return nil, fmt.Errorf("%w: data too large", ErrAccountState)
		}
		decoded, err := decodeBase64(raw.Base64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64", ErrAccountState)
		}
		data = decoded
	default:
		return nil, fmt.Errorf("%w: data for memcmp should be defined", ErrAccountState)
	}
	if len(data) > maxMemcmpDataSize {
		return nil, fmt.Errorf("%w: data too large", ErrAccountState)
	}
	return data, nil
}

func (p accountDataPredicate) isEmpty() bool {
	return len(p.memcmp) == 0 && p.dataSize == nil && !p.tokenAccountState && len(p.lamports) == 0
}

func (p accountDataPredicate) isMatch(data []byte, lamports uint64) bool {
	if p.dataSize != nil && len(data) != *p.dataSize {
		return false
	}
	if p.tokenAccountState && !isValidTokenAccountData(data) {
		return false
	}
	for _, l := range p.lamports {
		if !l.match(lamports) {
			return false
		}
	}
	for _, m := range p.memcmp {
		if len(data) < m.Offset+len(m.Bytes) {
			return false
		}
		if string(data[m.Offset:m.Offset+len(m.Bytes)]) != string(m.Bytes) {
			return false
		}
	}
	return true
}

// isValidTokenAccountData reports whether data matches the fixed SPL token
// account layout: 165 bytes, with the account-state byte at offset 108
// indicating an initialized or frozen account (state != Uninitialized).
func isValidTokenAccountData(data []byte) bool {
	if len(data) != splTokenAccountDataLen {
		return false
	}
	return data[splTokenAccountStateOff] != 0
}

// accountsFilterEntry is one named "accounts" subscription as built.
type accountsFilterEntry struct {
	name                      name.Name
	nonemptyTxnSignature      *bool
	accountKeys               []message.Pubkey
	ownerKeys                 []message.Pubkey
	data                      accountDataPredicate
}

// Accounts is the compiled "accounts" sub-filter (spec.md §4.3).
type Accounts struct {
	account                    map[message.Pubkey]map[string]name.Name
	owner                      map[message.Pubkey]map[string]name.Name
	accountRequired            map[string]struct{}
	ownerRequired               map[string]struct{}
	nonemptyTxnSignature        map[string]*bool
	nonemptyTxnSignatureRequired map[string]struct{}
	filters                     []accountsFilterEntry
}

// Len returns the number of named "accounts" filters compiled in.
func (a *Accounts) Len() int { return len(a.filters) }

// AccountsConfig is one raw "accounts" request entry, keyed by filter name
// by the caller.
type AccountsConfig struct {
	Account              []string
	Owner                []string
	NonemptyTxnSignature *bool
	Filters              []DataSource
}

// BuildAccounts compiles the accounts sub-filter from named configs.
func BuildAccounts(configs map[string]AccountsConfig, lim limits.Accounts, names *name.Registry, decodeBase58, decodeBase64 func(string) ([]byte, error)) (*Accounts, error) {
	if err := limits.CheckMax(limits.KindAccounts, len(configs), lim.Max); err != nil {
		return nil, err
	}

	a := &Accounts{
		account:                      make(map[message.Pubkey]map[string]name.Name),
		owner:                        make(map[message.Pubkey]map[string]name.Name),
		accountRequired:              make(map[string]struct{}),
		ownerRequired:                make(map[string]struct{}),
		nonemptyTxnSignature:         make(map[string]*bool),
		nonemptyTxnSignatureRequired: make(map[string]struct{}),
	}

	for fname, cfg := range configs {
		if len(cfg.Account) == 0 && len(cfg.Owner) == 0 && cfg.NonemptyTxnSignature == nil && len(cfg.Filters) == 0 {
			if err := limits.CheckAny(limits.KindAccounts, true, lim.Any); err != nil {
				return nil, err
			}
		}

		n, err := names.Get(fname)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrName, err)
		}

		if err := limits.CheckPubkeyMax(limits.KindAccounts, len(cfg.Account), lim.AccountMax); err != nil {
			return nil, err
		}
		if err := limits.CheckPubkeyMax(limits.KindAccounts, len(cfg.Owner), lim.OwnerMax); err != nil {
			return nil, err
		}

		accountKeys, err := decodePubkeys(cfg.Account, lim.AccountReject, limits.KindAccounts)
		if err != nil {
			return nil, err
		}
		ownerKeys, err := decodePubkeys(cfg.Owner, lim.OwnerReject, limits.KindAccounts)
		if err != nil {
			return nil, err
		}

		if setAccountsIndex(a.account, a.accountRequired, fname, n, accountKeys) {
			a.accountRequired[fname] = struct{}{}
		}
		if setAccountsIndex(a.owner, a.ownerRequired, fname, n, ownerKeys) {
			a.ownerRequired[fname] = struct{}{}
		}

		if cfg.NonemptyTxnSignature != nil {
			a.nonemptyTxnSignature[fname] = cfg.NonemptyTxnSignature
			a.nonemptyTxnSignatureRequired[fname] = struct{}{}
		}

		pred, err := buildAccountDataPredicate(cfg.Filters, decodeBase58, decodeBase64)
		if err != nil {
			return nil, err
		}

		a.filters = append(a.filters, accountsFilterEntry{
			name:                 n,
			nonemptyTxnSignature: cfg.NonemptyTxnSignature,
			accountKeys:          accountKeys,
			ownerKeys:            ownerKeys,
			data:                 pred,
		})
	}

	return a, nil
}

func setAccountsIndex(index map[message.Pubkey]map[string]name.Name, required map[string]struct{}, fname string, n name.Name, keys []message.Pubkey) bool {
	any := false
	for _, k := range keys {
		set, ok := index[k]
		if !ok {
			set = make(map[string]name.Name)
			index[k] = set
		}
		if _, exists := set[fname]; !exists {
			set[fname] = n
			any = true
		}
	}
	return any
}

func decodePubkeys(raw []string, reject map[[32]byte]struct{}, kind limits.Kind) ([]message.Pubkey, error) {
	out := make([]message.Pubkey, 0, len(raw))
	for _, s := range raw {
		pk, err := message.ParsePubkey(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPubkey, err)
		}
		if err := limits.CheckPubkeyReject(kind, pk, reject); err != nil {
			return nil, err
		}
		out = append(out, pk)
	}
	return out, nil
}

// accountsMatch accumulates the per-message matching state across an
// Accounts sub-filter's four dimensions (sig/account/owner/data), mirroring
// FilterAccountsMatch in the original.
type accountsMatch struct {
	filter               *Accounts
	nonemptyTxnSignature map[string]struct{}
	account              map[string]struct{}
	owner                map[string]struct{}
	data                 map[string]struct{}
}

func newAccountsMatch(a *Accounts) *accountsMatch {
	return &accountsMatch{
		filter:               a,
		nonemptyTxnSignature: make(map[string]struct{}),
		account:              make(map[string]struct{}),
		owner:                make(map[string]struct{}),
		data:                 make(map[string]struct{}),
	}
}

func (m *accountsMatch) matchTxnSignature(hasSig bool) {
	for fname, want := range m.filter.nonemptyTxnSignature {
		if want != nil && *want == hasSig {
			m.nonemptyTxnSignature[fname] = struct{}{}
		}
	}
}

func (m *accountsMatch) matchAccount(pk message.Pubkey) {
	for fname := range m.filter.account[pk] {
		m.account[fname] = struct{}{}
	}
}

func (m *accountsMatch) matchOwner(pk message.Pubkey) {
	for fname := range m.filter.owner[pk] {
		m.owner[fname] = struct{}{}
	}
}

func (m *accountsMatch) matchDataLamports(data []byte, lamports uint64) {
	for _, entry := range m.filter.filters {
		if entry.data.isMatch(data, lamports) {
			m.data[entry.name.String()] = struct{}{}
		}
	}
}

// names returns the filter-name list that passes every dimension the
// filter declared as required for it.
func (m *accountsMatch) names() []string {
	var out []string
	for _, entry := range m.filter.filters {
		fname := entry.name.String()

		if _, required := m.filter.nonemptyTxnSignatureRequired[fname]; required {
			if _, ok := m.nonemptyTxnSignature[fname]; !ok {
				continue
			}
		}
		if _, required := m.filter.accountRequired[fname]; required {
			if _, ok := m.account[fname]; !ok {
				continue
			}
		}
		if _, required := m.filter.ownerRequired[fname]; required {
			if _, ok := m.owner[fname]; !ok {
				continue
			}
		}
		if !entry.data.isEmpty() {
			if _, ok := m.data[fname]; !ok {
				continue
			}
		}
		out = append(out, fname)
	}
	return out
}

// Match returns the filter-name list matching update. dataSlice is not
// used here; the dispatcher applies the data-slice projection afterwards.
func (a *Accounts) Match(update *message.AccountUpdate, dataSlice DataSliceList) []string {
	m := newAccountsMatch(a)
	m.matchTxnSignature(update.Account.TxnSignature != nil)
	m.matchAccount(update.Account.Pubkey)
	m.matchOwner(update.Account.Owner)
	m.matchDataLamports(update.Account.Data, update.Account.Lamports)
	_ = dataSlice
	return m.names()
}
