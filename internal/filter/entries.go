package filter

import (
	"fmt"

	"fanout-server/internal/filter/limits"
	"fanout-server/internal/filter/name"
)

// Entries is the compiled "entry" sub-filter: unconditional, every message
// emits the configured name list (spec.md §4.3).
type Entries struct {
	names []string
}

// BuildEntries compiles the entries sub-filter from named configs (the
// config value itself is empty/unused, matching the "entry" channel
// having no criteria in the wire schema).
func BuildEntries(configNames []string, lim limits.Entries, names *name.Registry) (*Entries, error) {
	if err := limits.CheckMax(limits.KindEntries, len(configNames), lim.Max); err != nil {
		return nil, err
	}
	e := &Entries{}
	for _, fname := range configNames {
		n, err := names.Get(fname)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrName, err)
		}
		e.names = append(e.names, n.String())
	}
	return e, nil
}

// Match always returns every configured filter name.
func (e *Entries) Match() []string {
	return e.names
}

// Len returns the number of named "entry" filters compiled in.
func (e *Entries) Len() int { return len(e.names) }

// BlocksMeta is the compiled "blocks_meta" sub-filter: unconditional, same
// shape as Entries (spec.md §4.3).
type BlocksMeta struct {
	names []string
}

// BuildBlocksMeta compiles the blocks_meta sub-filter from named configs.
func BuildBlocksMeta(configNames []string, lim limits.BlocksMeta, names *name.Registry) (*BlocksMeta, error) {
	if err := limits.CheckMax(limits.KindBlocksMeta, len(configNames), lim.Max); err != nil {
		return nil, err
	}
	b := &BlocksMeta{}
	for _, fname := range configNames {
		n, err := names.Get(fname)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrName, err)
		}
		b.names = append(b.names, n.String())
	}
	return b, nil
}

// Match always returns every configured filter name.
func (b *BlocksMeta) Match() []string {
	return b.names
}

// Len returns the number of named "blocks_meta" filters compiled in.
func (b *BlocksMeta) Len() int { return len(b.names) }
