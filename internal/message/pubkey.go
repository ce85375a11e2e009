// Package message holds the canonical, immutable record types shared
// between the ingestion adapter, the fan-out hub, and every subscribed
// session. Records are constructed once and handed around by pointer;
// nothing in this package mutates a record after construction.
package message

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Pubkey is a 32-byte Solana-style account address.
type Pubkey [32]byte

// Signature is a 64-byte transaction or account-write signature.
type Signature [64]byte

func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

func (s Signature) String() string {
	return base58.Encode(s[:])
}

// ParsePubkey decodes a base58 pubkey string, as found in subscription
// request filters.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	b, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("invalid pubkey %q: %w", s, err)
	}
	if len(b) != len(pk) {
		return pk, fmt.Errorf("invalid pubkey %q: expected %d bytes, got %d", s, len(pk), len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// ParseSignature decodes a base58 signature string.
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	b, err := base58.Decode(s)
	if err != nil {
		return sig, fmt.Errorf("invalid signature %q: %w", s, err)
	}
	if len(b) != len(sig) {
		return sig, fmt.Errorf("invalid signature %q: expected %d bytes, got %d", s, len(sig), len(b))
	}
	copy(sig[:], b)
	return sig, nil
}
