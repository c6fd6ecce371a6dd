// Package types holds small value types shared by the powledger packages.
package types

import (
	"encoding/hex"
	"fmt"
)

// HashSize is the digest length in bytes.
const HashSize = 32

// Hash is a 32-byte digest. Transaction IDs are Hashes; block hashes are
// kept as hex strings because that is what miners compare against.
type Hash [HashSize]byte

// IsZero reports whether h is the zero digest.
func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Short is the first 8 bytes in hex.
func (h Hash) Short() string { return hex.EncodeToString(h[:8]) }

// MarshalText encodes h as lowercase hex, so JSON sees a string.
func (h Hash) MarshalText() ([]byte, error) {
	out := make([]byte, hex.EncodedLen(HashSize))
	hex.Encode(out, h[:])
	return out, nil
}

// UnmarshalText accepts 64 hex characters, or an empty string for the zero
// digest.
func (h *Hash) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*h = Hash{}
		return nil
	}
	parsed, err := HexToHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// HexToHash parses a 64-character hex string.
func HexToHash(s string) (Hash, error) {
	var h Hash
	if len(s) != hex.EncodedLen(HashSize) {
		return h, fmt.Errorf("hash must be %d hex characters, got %d", hex.EncodedLen(HashSize), len(s))
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	return h, nil
}
