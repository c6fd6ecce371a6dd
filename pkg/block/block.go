// Package block defines sealed, hash-linked blocks and their canonical hashing.
package block

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Klingon-tech/powledger/pkg/crypto"
	"github.com/Klingon-tech/powledger/pkg/tx"
)

const (
	// GenesisPreviousHash is the previous hash recorded by the genesis block.
	GenesisPreviousHash = "0"
	// SystemMiner is the miner recorded by the genesis block.
	SystemMiner = tx.SystemSender
)

// Block is a record of transactions plus chain metadata.
// Everything except Nonce is fixed at construction; Hash is set once by Seal.
type Block struct {
	Index        uint64            `json:"index"`
	Timestamp    int64             `json:"timestamp"` // Unix milliseconds.
	Transactions []*tx.Transaction `json:"transactions"`
	Hash         string            `json:"hash"`
	PreviousHash string            `json:"previous_hash"`
	Nonce        uint64            `json:"nonce"`
	Miner        string            `json:"miner"`
}

// preimage fixes the field order of the hashed content.
// Keys are lexicographic; the nonce is appended outside the JSON.
type preimage struct {
	Index        uint64            `json:"index"`
	Miner        string            `json:"miner"`
	PreviousHash string            `json:"previous_hash"`
	Timestamp    int64             `json:"timestamp"`
	Transactions []json.RawMessage `json:"transactions"`
}

// New creates an unsealed block with nonce 0.
// Every transaction is validated so the pre-image is always encodable.
func New(index uint64, timestamp time.Time, txs []*tx.Transaction, previousHash, miner string) (*Block, error) {
	for i, t := range txs {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
	}
	if txs == nil {
		txs = []*tx.Transaction{}
	}
	return &Block{
		Index:        index,
		Timestamp:    timestamp.UnixMilli(),
		Transactions: txs,
		PreviousHash: previousHash,
		Miner:        miner,
	}, nil
}

// Preimage returns the exact string that is hashed together with the nonce.
// Miners receive this string verbatim, so both sides hash identical bytes.
func (b *Block) Preimage() string {
	raw := make([]json.RawMessage, len(b.Transactions))
	for i, t := range b.Transactions {
		data, err := t.CanonicalJSON()
		if err != nil {
			// Unreachable for blocks built through New.
			return ""
		}
		raw[i] = data
	}
	data, err := json.Marshal(preimage{
		Index:        b.Index,
		Miner:        b.Miner,
		PreviousHash: b.PreviousHash,
		Timestamp:    b.Timestamp,
		Transactions: raw,
	})
	if err != nil {
		return ""
	}
	return string(data)
}

// HashPreimage hashes a pre-image string with the decimal nonce appended.
func HashPreimage(preimage string, nonce uint64) string {
	return crypto.Sha256Hex(preimage + strconv.FormatUint(nonce, 10))
}

// ComputeHash returns the hash for the block's current nonce.
// It has no side effects.
func (b *Block) ComputeHash() string {
	return HashPreimage(b.Preimage(), b.Nonce)
}

// HashWithNonce returns the hash the block would have with the given nonce
// without mutating it.
func (b *Block) HashWithNonce(nonce uint64) string {
	return HashPreimage(b.Preimage(), nonce)
}

// Seal records the final hash.
func (b *Block) Seal(hash string) {
	b.Hash = hash
}

// IsSealed reports whether Seal has been called.
func (b *Block) IsSealed() bool {
	return b.Hash != ""
}

// Time returns the block timestamp as a time.Time.
func (b *Block) Time() time.Time {
	return time.UnixMilli(b.Timestamp)
}

// Clone returns a deep copy safe to hand to callers outside the ledger lock.
// Transactions are immutable and shared.
func (b *Block) Clone() *Block {
	c := *b
	c.Transactions = make([]*tx.Transaction, len(b.Transactions))
	copy(c.Transactions, b.Transactions)
	return &c
}
