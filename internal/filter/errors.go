package filter

import "errors"

// Error kinds returned while building a Compiled filter from a request
// (spec.md §7). Each wraps a sentinel so callers can use errors.Is.
var (
	ErrName                     = errors.New("invalid filter name")
	ErrLimitsCheck              = errors.New("filter limits check failed")
	ErrInvalidCommitment        = errors.New("invalid commitment level")
	ErrInvalidPubkey            = errors.New("invalid pubkey")
	ErrInvalidSignature         = errors.New("invalid signature")
	ErrAccountStateMaxFilters   = errors.New("too many account data filters")
	ErrAccountState             = errors.New("invalid account data filter")
	ErrDataSliceOutOfOrder      = errors.New("data slice out of order")
	ErrDataSliceOverlap         = errors.New("data slice overlaps a preceding slice")
)
