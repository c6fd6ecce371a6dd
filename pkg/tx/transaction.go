// Package tx defines ledger transactions.
package tx

import (
	"encoding/json"

	"github.com/Klingon-tech/powledger/pkg/crypto"
	"github.com/Klingon-tech/powledger/pkg/types"
)

// SystemSender is the sender of synthesized reward transactions.
const SystemSender = "SYSTEM"

// Transaction moves an amount between two opaque identifiers.
// There is no balance model, so amounts are recorded as given.
type Transaction struct {
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
}

// canonicalTx fixes the key order used inside block pre-images.
// Keys are lexicographic so every encoder agrees on the bytes.
type canonicalTx struct {
	Amount    float64 `json:"amount"`
	Recipient string  `json:"recipient"`
	Sender    string  `json:"sender"`
}

// New creates a validated transaction.
func New(sender, recipient string, amount float64) (*Transaction, error) {
	t := &Transaction{
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Reward builds the reward entry appended to every candidate block.
func Reward(miner string, amount float64) *Transaction {
	return &Transaction{
		Sender:    SystemSender,
		Recipient: miner,
		Amount:    amount,
	}
}

// IsReward reports whether the transaction was synthesized by the ledger.
func (t *Transaction) IsReward() bool {
	return t.Sender == SystemSender
}

// CanonicalJSON returns the stable encoding used in block pre-images.
// The transaction must have passed Validate; non-finite amounts cannot be encoded.
func (t *Transaction) CanonicalJSON() ([]byte, error) {
	return json.Marshal(canonicalTx{
		Amount:    t.Amount,
		Recipient: t.Recipient,
		Sender:    t.Sender,
	})
}

// ID returns the BLAKE3 hash of the canonical encoding.
// Two transactions with identical fields share an ID.
func (t *Transaction) ID() types.Hash {
	data, err := t.CanonicalJSON()
	if err != nil {
		return types.Hash{}
	}
	return crypto.Hash(data)
}
