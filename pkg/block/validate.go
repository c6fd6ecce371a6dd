package block

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/powledger/pkg/tx"
)

// Validation errors.
var (
	ErrNoMiner        = errors.New("block has no miner")
	ErrZeroTimestamp  = errors.New("block timestamp is zero")
	ErrBadGenesis     = errors.New("malformed genesis block")
	ErrNoReward       = errors.New("last transaction must reward the miner")
	ErrBadHashFormat  = errors.New("block hash is not 64 lowercase hex characters")
	ErrNoPreviousHash = errors.New("block has no previous hash")
)

// HashLen is the length of a hex-encoded block hash.
const HashLen = 64

// Validate checks block structure and internal consistency.
// This does NOT verify proof of work (use consensus.Engine for that).
func (b *Block) Validate() error {
	if b.Miner == "" {
		return ErrNoMiner
	}
	if b.Timestamp == 0 {
		return ErrZeroTimestamp
	}

	for i, t := range b.Transactions {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
	}

	if b.Index == 0 {
		if b.PreviousHash != GenesisPreviousHash || b.Miner != SystemMiner || len(b.Transactions) != 0 {
			return ErrBadGenesis
		}
	} else {
		if b.PreviousHash == "" {
			return ErrNoPreviousHash
		}
		if !endsWithReward(b.Transactions, b.Miner) {
			return ErrNoReward
		}
	}

	if b.IsSealed() && !IsHashHex(b.Hash) {
		return fmt.Errorf("%w: %q", ErrBadHashFormat, b.Hash)
	}
	return nil
}

func endsWithReward(txs []*tx.Transaction, miner string) bool {
	if len(txs) == 0 {
		return false
	}
	last := txs[len(txs)-1]
	return last.IsReward() && last.Recipient == miner
}

// IsHashHex reports whether s looks like a block hash.
func IsHashHex(s string) bool {
	if len(s) != HashLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
