package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanout-server/internal/filter"
	"fanout-server/internal/filter/limits"
	"fanout-server/internal/filter/name"
	"fanout-server/internal/message"
)

func permissiveLimits() limits.Limits {
	lim := limits.Default()
	lim.Accounts.Any = true
	lim.Transactions.Any = true
	lim.TransactionsStatus.Any = true
	lim.Blocks.AccountIncludeAny = true
	return lim
}

func newFilter(t *testing.T, req filter.Request) *filter.Filter {
	t.Helper()
	names := name.New(64, 1024, time.Second)
	f, err := filter.Build(req, permissiveLimits(), names, decodeB58Noop, decodeB64Noop)
	require.NoError(t, err)
	return f
}

func decodeB58Noop(s string) ([]byte, error) { return []byte(s), nil }
func decodeB64Noop(s string) ([]byte, error) { return []byte(s), nil }

func TestDispatchAccountSlicesDataWithoutMutatingShared(t *testing.T) {
	f := newFilter(t, filter.Request{
		Accounts:          map[string]filter.AccountsConfig{"all": {}},
		AccountsDataSlice: []filter.DataSlice{{Start: 0, End: 2}},
	})

	shared := &message.AccountInfo{Data: []byte("hello")}
	update := &message.AccountUpdate{Account: shared, Slot: 1, CreatedAt: time.Now()}
	msg := &message.Message{Kind: message.KindAccount, Account: update}

	results := Dispatch(msg, f)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"all"}, results[0].Names)
	assert.Equal(t, []byte("he"), results[0].Update.Account.Account.Data)
	assert.Equal(t, []byte("hello"), shared.Data, "shared record must not be mutated by projection")
}

func TestDispatchTransactionYieldsBothChannels(t *testing.T) {
	f := newFilter(t, filter.Request{
		Transactions:       map[string]filter.TransactionsConfig{"a": {}},
		TransactionsStatus: map[string]filter.TransactionsConfig{},
	})

	txn := &message.TransactionInfo{AccountKeys: map[message.Pubkey]struct{}{}}
	msg := &message.Message{Kind: message.KindTransaction, Transaction: &message.TransactionUpdate{Transaction: txn}}

	results := Dispatch(msg, f)
	require.Len(t, results, 2)
	assert.Equal(t, ChannelTransaction, results[0].Update.Channel)
	assert.Equal(t, []string{"a"}, results[0].Names)
	assert.Equal(t, ChannelTransactionStatus, results[1].Update.Channel)
	assert.Empty(t, results[1].Names)
}

func TestDispatchBlockYieldsOnePairPerFilter(t *testing.T) {
	f := newFilter(t, filter.Request{
		Blocks: map[string]filter.BlocksConfig{
			"a": {}, "b": {},
		},
	})

	block := &message.BlockInfo{Meta: &message.BlockMetaInfo{Slot: 5}}
	msg := &message.Message{Kind: message.KindBlock, Block: block}

	results := Dispatch(msg, f)
	assert.Len(t, results, 2)
}
