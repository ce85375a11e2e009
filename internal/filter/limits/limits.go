// Package limits declares the per-filter-kind caps loaded once at startup
// that bound every growable dimension of a subscription (spec.md §4.2).
package limits

import (
	"errors"
	"fmt"
)

// Kind identifies which filter channel a limit violation belongs to, used
// to build descriptive MaxExceeded / AnyNotAllowed / PubkeyRejected /
// IncludeNotAllowed errors (spec.md §7).
type Kind string

const (
	KindAccounts            Kind = "accounts"
	KindSlots               Kind = "slots"
	KindTransactions        Kind = "transactions"
	KindTransactionsStatus  Kind = "transactions_status"
	KindEntries             Kind = "entries"
	KindBlocks              Kind = "blocks"
	KindBlocksMeta          Kind = "blocks_meta"
)

// CheckError is a descriptive limits-violation error (spec.md §4.2, §7).
// Unwrap exposes the sentinel (ErrMaxExceeded etc.) so callers can match
// the violation kind with errors.Is without parsing Reason.
type CheckError struct {
	Kind   Kind
	Reason string
	cause  error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.cause, e.Reason)
}

func (e *CheckError) Unwrap() error { return e.cause }

// ErrMaxExceeded / ErrAnyNotAllowed / ErrPubkeyRejected / ErrIncludeNotAllowed
// are sentinels usable with errors.Is against a *CheckError's wrapped
// cause.
var (
	ErrMaxExceeded       = errors.New("max exceeded")
	ErrAnyNotAllowed     = errors.New("empty-criterion filter not allowed")
	ErrPubkeyRejected    = errors.New("pubkey rejected")
	ErrIncludeNotAllowed = errors.New("include flag not allowed")
)

func newCheckError(kind Kind, sentinel error, reason string) error {
	return &CheckError{Kind: kind, Reason: reason, cause: sentinel}
}

// Accounts bounds the "accounts" subscription channel.
type Accounts struct {
	Max           int
	Any           bool
	AccountMax    int
	OwnerMax      int
	AccountReject map[[32]byte]struct{}
	OwnerReject   map[[32]byte]struct{}
	DataSliceMax  int
}

// Slots bounds the "slots" channel.
type Slots struct {
	Max int
}

// Transactions bounds the "transactions" and "transactions_status"
// channels (each gets its own instance, per spec.md §4.3).
type Transactions struct {
	Max               int
	Any               bool
	AccountIncludeMax int
	AccountExcludeMax int
	AccountRequiredMax int
	AccountIncludeReject map[[32]byte]struct{}
}

// Entries bounds the "entry" channel.
type Entries struct {
	Max int
}

// Blocks bounds the "blocks" channel.
type Blocks struct {
	Max                 int
	AccountIncludeAny   bool
	AccountIncludeMax   int
	AccountIncludeReject map[[32]byte]struct{}
	IncludeTransactions bool
	IncludeAccounts     bool
	IncludeEntries      bool
}

// BlocksMeta bounds the "blocks_meta" channel.
type BlocksMeta struct {
	Max int
}

// Limits aggregates every per-kind cap, loaded once at startup and read
// without synchronization thereafter (spec.md §5).
type Limits struct {
	Accounts           Accounts
	Slots              Slots
	Transactions       Transactions
	TransactionsStatus Transactions
	Entries            Entries
	Blocks             Blocks
	BlocksMeta         BlocksMeta

	// FilterNameMaxLen / FilterNameMaxCount bound the per-connection name
	// registry (spec.md §4.1).
	FilterNameMaxLen   int
	FilterNameMaxCount int
}

// Default returns permissive-but-bounded limits suitable for local
// development; production configuration overrides every field (see
// internal/config).
func Default() Limits {
	return Limits{
		Accounts: Accounts{
			Max: 100, Any: false, AccountMax: 100_000, OwnerMax: 100_000, DataSliceMax: 10,
		},
		Slots:        Slots{Max: 100},
		Transactions: Transactions{Max: 100, Any: false, AccountIncludeMax: 100_000, AccountExcludeMax: 100_000, AccountRequiredMax: 100_000},
		TransactionsStatus: Transactions{Max: 100, Any: false, AccountIncludeMax: 100_000, AccountExcludeMax: 100_000, AccountRequiredMax: 100_000},
		Entries:      Entries{Max: 100},
		Blocks:       Blocks{Max: 100, AccountIncludeAny: false, AccountIncludeMax: 100_000, IncludeTransactions: true, IncludeAccounts: true, IncludeEntries: true},
		BlocksMeta:   BlocksMeta{Max: 100},

		FilterNameMaxLen:   64,
		FilterNameMaxCount: 1024,
	}
}

// CheckMax fails if count exceeds max (a non-positive max means
// unbounded).
func CheckMax(kind Kind, count, max int) error {
	if max > 0 && count > max {
		return newCheckError(kind, ErrMaxExceeded, fmt.Sprintf("%d filters, max %d", count, max))
	}
	return nil
}

// CheckAny fails if the filter has no criteria and empty-criterion filters
// are disallowed for this kind.
func CheckAny(kind Kind, isEmpty, allowed bool) error {
	if isEmpty && !allowed {
		return newCheckError(kind, ErrAnyNotAllowed, "empty-criterion filter not permitted")
	}
	return nil
}

// CheckPubkeyMax fails if a pubkey list exceeds its cardinality cap.
func CheckPubkeyMax(kind Kind, count, max int) error {
	if max > 0 && count > max {
		return newCheckError(kind, ErrMaxExceeded, fmt.Sprintf("%d pubkeys, max %d", count, max))
	}
	return nil
}

// CheckPubkeyReject fails if pk is in the reject set for this kind.
func CheckPubkeyReject(kind Kind, pk [32]byte, reject map[[32]byte]struct{}) error {
	if _, bad := reject[pk]; bad {
		return newCheckError(kind, ErrPubkeyRejected, "pubkey is on the reject list")
	}
	return nil
}

// CheckInclude fails if a server-side permission flag is false but the
// request set the corresponding include flag to true.
func CheckInclude(kind Kind, field string, requested, allowed bool) error {
	if requested && !allowed {
		return newCheckError(kind, ErrIncludeNotAllowed, fmt.Sprintf("include_%s is not allowed", field))
	}
	return nil
}
