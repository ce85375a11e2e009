package filter

import (
	"fmt"

	"fanout-server/internal/filter/limits"
	"fanout-server/internal/filter/name"
	"fanout-server/internal/message"
)

// SlotsConfig is one raw "slots" request entry.
type SlotsConfig struct {
	FilterByCommitment bool
}

type slotsEntry struct {
	name               name.Name
	filterByCommitment bool
}

// Slots is the compiled "slots" sub-filter (spec.md §4.3).
type Slots struct {
	entries []slotsEntry
}

// Len returns the number of named "slots" filters compiled in.
func (s *Slots) Len() int { return len(s.entries) }

// BuildSlots compiles the slots sub-filter from named configs.
func BuildSlots(configs map[string]SlotsConfig, lim limits.Slots, names *name.Registry) (*Slots, error) {
	if err := limits.CheckMax(limits.KindSlots, len(configs), lim.Max); err != nil {
		return nil, err
	}

	s := &Slots{}
	for fname, cfg := range configs {
		n, err := names.Get(fname)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrName, err)
		}
		s.entries = append(s.entries, slotsEntry{name: n, filterByCommitment: cfg.FilterByCommitment})
	}
	return s, nil
}

// Match returns every filter name whose commitment gate passes for info,
// given the subscription's chosen commitment level.
func (s *Slots) Match(info *message.SlotInfo, commitment message.CommitmentLevel) []string {
	var out []string
	for _, e := range s.entries {
		if !e.filterByCommitment || commitment == info.Status {
			out = append(out, e.name.String())
		}
	}
	return out
}
