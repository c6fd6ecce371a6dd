// Package crypto provides the hash primitives used by powledger.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/Klingon-tech/powledger/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
// Used for transaction identifiers, never for proof-of-work.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// Sha256Hex returns the lowercase hex SHA-256 digest of s.
// This is the proof-of-work hash shared by miners and the validator.
func Sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
