package filter

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanout-server/internal/filter/limits"
	"fanout-server/internal/filter/name"
	"fanout-server/internal/message"
)

func newNames() *name.Registry {
	return name.New(64, 1024, time.Second)
}

func decodeB58(s string) ([]byte, error) { return base58.Decode(s) }
func decodeB64(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }

func testPubkey(b byte) message.Pubkey {
	var pk message.Pubkey
	pk[0] = b
	return pk
}

func txnWithKeys(signer message.Pubkey, keys []message.Pubkey) *message.TransactionInfo {
	keySet := make(map[message.Pubkey]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	return &message.TransactionInfo{
		IsVote:      true,
		Transaction: message.DecodedTransaction{Signatures: []message.Signature{{}}},
		AccountKeys: keySet,
	}
}

func TestFiltersAllEmpty(t *testing.T) {
	_, err := Build(Request{}, limits.Default(), newNames(), decodeB58, decodeB64)
	require.NoError(t, err)
}

func TestFiltersAccountEmptyRejected(t *testing.T) {
	lim := limits.Default()
	lim.Accounts.Any = false
	req := Request{Accounts: map[string]AccountsConfig{"solend": {}}}
	_, err := Build(req, lim, newNames(), decodeB58, decodeB64)
	assert.Error(t, err)
}

func TestFiltersTransactionEmptyRejected(t *testing.T) {
	lim := limits.Default()
	lim.Transactions.Any = false
	req := Request{Transactions: map[string]TransactionsConfig{"serum": {}}}
	_, err := Build(req, lim, newNames(), decodeB58, decodeB64)
	assert.Error(t, err)
}

func TestFiltersTransactionNotNullAccepted(t *testing.T) {
	lim := limits.Default()
	lim.Transactions.Any = false
	vote := true
	req := Request{Transactions: map[string]TransactionsConfig{"serum": {Vote: &vote}}}
	_, err := Build(req, lim, newNames(), decodeB58, decodeB64)
	require.NoError(t, err)
}

func TestTransactionIncludeA(t *testing.T) {
	a, b := testPubkey(0xA), testPubkey(0xB)
	req := Request{
		Transactions: map[string]TransactionsConfig{
			"serum": {AccountInclude: []string{base58.Encode(a[:])}},
		},
	}
	f, err := Build(req, limits.Default(), newNames(), decodeB58, decodeB64)
	require.NoError(t, err)

	txn := txnWithKeys(b, []message.Pubkey{b, a})
	names, statusNames := f.MatchTransaction(txn)
	assert.Equal(t, []string{"serum"}, names)
	assert.Empty(t, statusNames)
}

func TestTransactionIncludeB(t *testing.T) {
	a, b := testPubkey(0xA), testPubkey(0xB)
	req := Request{
		Transactions: map[string]TransactionsConfig{
			"serum": {AccountInclude: []string{base58.Encode(b[:])}},
		},
	}
	f, err := Build(req, limits.Default(), newNames(), decodeB58, decodeB64)
	require.NoError(t, err)

	txn := txnWithKeys(b, []message.Pubkey{b, a})
	names, statusNames := f.MatchTransaction(txn)
	assert.Equal(t, []string{"serum"}, names)
	assert.Empty(t, statusNames)
}

func TestTransactionExclude(t *testing.T) {
	a, b := testPubkey(0xA), testPubkey(0xB)
	req := Request{
		Transactions: map[string]TransactionsConfig{
			"serum": {AccountExclude: []string{base58.Encode(b[:])}},
		},
	}
	f, err := Build(req, limits.Default(), newNames(), decodeB58, decodeB64)
	require.NoError(t, err)

	txn := txnWithKeys(b, []message.Pubkey{b, a})
	names, _ := f.MatchTransaction(txn)
	assert.Empty(t, names)
}

func TestTransactionRequiredXIncludeYZCase001(t *testing.T) {
	x, y, z := testPubkey(0x58), testPubkey(0x59), testPubkey(0x5A)
	req := Request{
		Transactions: map[string]TransactionsConfig{
			"serum": {
				AccountInclude:  []string{base58.Encode(y[:]), base58.Encode(z[:])},
				AccountRequired: []string{base58.Encode(x[:])},
			},
		},
	}
	f, err := Build(req, limits.Default(), newNames(), decodeB58, decodeB64)
	require.NoError(t, err)

	txn := txnWithKeys(x, []message.Pubkey{x, y, z})
	names, _ := f.MatchTransaction(txn)
	assert.Equal(t, []string{"serum"}, names)
}

func TestTransactionRequiredYZIncludeX(t *testing.T) {
	x, y, z := testPubkey(0x58), testPubkey(0x59), testPubkey(0x5A)
	req := Request{
		Transactions: map[string]TransactionsConfig{
			"serum": {
				AccountInclude:  []string{base58.Encode(x[:])},
				AccountRequired: []string{base58.Encode(y[:]), base58.Encode(z[:])},
			},
		},
	}
	f, err := Build(req, limits.Default(), newNames(), decodeB58, decodeB64)
	require.NoError(t, err)

	// missing y from account_keys -> required set is not a subset, no match
	txn := txnWithKeys(x, []message.Pubkey{x, z})
	names, _ := f.MatchTransaction(txn)
	assert.Empty(t, names)
}

func TestDataSliceOrderingAndOverlap(t *testing.T) {
	_, err := NewDataSliceList([]DataSlice{{Start: 0, End: 10}, {Start: 5, End: 15}})
	assert.ErrorIs(t, err, ErrDataSliceOverlap)

	_, err = NewDataSliceList([]DataSlice{{Start: 10, End: 20}, {Start: 0, End: 5}})
	assert.ErrorIs(t, err, ErrDataSliceOutOfOrder)

	ok, err := NewDataSliceList([]DataSlice{{Start: 0, End: 5}, {Start: 5, End: 10}})
	require.NoError(t, err)
	assert.Equal(t, []byte("helloworld"), ok.Apply([]byte("helloworld")))
}

func TestDataSliceAppliesAndSkipsOutOfRange(t *testing.T) {
	sl, err := NewDataSliceList([]DataSlice{{Start: 0, End: 2}, {Start: 8, End: 20}})
	require.NoError(t, err)
	assert.Equal(t, []byte("he"), sl.Apply([]byte("hello")))
}

func TestAccountsMemcmpSizeLimits(t *testing.T) {
	good := make([]byte, maxMemcmpDataSize)
	req := Request{
		Accounts: map[string]AccountsConfig{
			"watch": {Filters: []DataSource{{Memcmp: &RawMemcmp{Offset: 0, Bytes: good}}}},
		},
	}
	_, err := Build(req, limits.Default(), newNames(), decodeB58, decodeB64)
	require.NoError(t, err)

	tooLong := make([]byte, maxMemcmpDataSize+1)
	req2 := Request{
		Accounts: map[string]AccountsConfig{
			"watch": {Filters: []DataSource{{Memcmp: &RawMemcmp{Offset: 0, Bytes: tooLong}}}},
		},
	}
	_, err = Build(req2, limits.Default(), newNames(), decodeB58, decodeB64)
	assert.Error(t, err)
}

func TestAccountsTokenAccountStateRejectsFalse(t *testing.T) {
	f := false
	req := Request{
		Accounts: map[string]AccountsConfig{
			"watch": {Filters: []DataSource{{TokenAccountState: &f}}},
		},
	}
	_, err := Build(req, limits.Default(), newNames(), decodeB58, decodeB64)
	assert.Error(t, err)
}

func TestAccountsMaxFourPredicates(t *testing.T) {
	five := make([]DataSource, 5)
	for i := range five {
		ds := uint64(i)
		five[i] = DataSource{DataSize: &ds}
	}
	req := Request{Accounts: map[string]AccountsConfig{"watch": {Filters: five}}}
	_, err := Build(req, limits.Default(), newNames(), decodeB58, decodeB64)
	assert.ErrorIs(t, err, ErrAccountStateMaxFilters)
}
