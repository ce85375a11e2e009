// Package name interns per-connection subscription labels into compact,
// identity-comparable handles (spec.md §4.1).
package name

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Name is an interned filter-name handle. Two Names compare equal by value
// iff they were interned from the same connection's Registry for the same
// string within its retention window; comparing Names across registries is
// meaningless, mirroring the per-connection scoping in spec.md §4.1/§5.
type Name struct {
	s *string
}

// String returns the original label.
func (n Name) String() string {
	if n.s == nil {
		return ""
	}
	return *n.s
}

// ErrNameTooLong is returned when a label exceeds the configured maximum
// length.
var ErrNameTooLong = errors.New("filter name too long")

// ErrTooManyNames is returned when a connection has already interned the
// maximum configured number of distinct live names.
var ErrTooManyNames = errors.New("too many filter names for this connection")

// Registry interns labels for exactly one connection. It is never shared
// across connections and therefore needs no internal locking (spec.md §5).
type Registry struct {
	maxLen   int
	maxCount int
	cache    *expirable.LRU[string, Name]
}

// New creates a Registry bounding label length to maxLen, the number of
// distinct live names to maxCount, and reusing a prior handle for a name
// seen again within retention (spec.md §4.1's "LRU reuse"). retention <= 0
// means handles are retained indefinitely (no time-based eviction, only
// count-based).
func New(maxLen, maxCount int, retention time.Duration) *Registry {
	if maxCount <= 0 {
		maxCount = 1
	}
	return &Registry{
		maxLen:   maxLen,
		maxCount: maxCount,
		cache:    expirable.NewLRU[string, Name](maxCount, nil, retention),
	}
}

// Get interns s, returning the existing handle if s was seen within
// retention, or allocating a new one otherwise. A new allocation once the
// registry is at its count cap fails with ErrTooManyNames rather than
// evicting: reuse never costs capacity, but a genuinely new name does.
func (r *Registry) Get(s string) (Name, error) {
	if r.maxLen > 0 && len(s) > r.maxLen {
		return Name{}, fmt.Errorf("%w: %q (%d bytes, max %d)", ErrNameTooLong, s, len(s), r.maxLen)
	}

	if n, ok := r.cache.Get(s); ok {
		return n, nil
	}

	if r.cache.Len() >= r.maxCount {
		return Name{}, fmt.Errorf("%w: limit %d", ErrTooManyNames, r.maxCount)
	}

	owned := s
	n := Name{s: &owned}
	r.cache.Add(s, n)
	return n, nil
}

// Len reports the number of distinct names currently interned.
func (r *Registry) Len() int {
	return r.cache.Len()
}
