package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanout-server/internal/filter/limits"
)

// TestBlocksIncludeEntriesGovernedByOwnFlag exercises the corrected
// redesign of the include_entries permission check: a server with
// include_accounts enabled but include_entries disabled must reject a
// request that asks for entries, even though it would accept one asking
// for accounts. A filter-confusion bug in the reference implementation
// checked include_entries against the include_accounts permission flag;
// this is the redesigned, independent behavior.
func TestBlocksIncludeEntriesGovernedByOwnFlag(t *testing.T) {
	lim := limits.Default()
	lim.Blocks.AccountIncludeAny = true
	lim.Blocks.IncludeAccounts = true
	lim.Blocks.IncludeEntries = false

	entries := true
	req := Request{
		Blocks: map[string]BlocksConfig{
			"full": {IncludeEntries: &entries},
		},
	}
	_, err := Build(req, lim, newNames(), decodeB58, decodeB64)
	assert.Error(t, err, "include_entries must be independently gated, not by include_accounts")
}

func TestBlocksIncludeEntriesAllowedWhenPermitted(t *testing.T) {
	lim := limits.Default()
	lim.Blocks.AccountIncludeAny = true
	lim.Blocks.IncludeAccounts = false
	lim.Blocks.IncludeEntries = true

	entries := true
	req := Request{
		Blocks: map[string]BlocksConfig{
			"full": {IncludeEntries: &entries},
		},
	}
	_, err := Build(req, lim, newNames(), decodeB58, decodeB64)
	require.NoError(t, err)
}
