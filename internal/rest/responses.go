package rest

import (
	"github.com/Klingon-tech/powledger/pkg/block"
	"github.com/Klingon-tech/powledger/pkg/tx"
)

// ChainResponse is returned by GET /chain.
type ChainResponse struct {
	Chain  []*block.Block `json:"chain"`
	Length int            `json:"length"`
}

// TransactionResponse is returned by POST /transactions/new.
type TransactionResponse struct {
	Message string `json:"message"`
	Index   uint64 `json:"index"`
}

// PendingResponse is returned by GET /transactions/pending.
type PendingResponse struct {
	PendingTransactions []*tx.Transaction `json:"pending_transactions"`
	Count               int               `json:"count"`
}

// JobResponse is returned by POST /mine/get-job. BlockString is the
// pre-image a miner appends decimal nonces to.
type JobResponse struct {
	JobID       string `json:"job_id"`
	Difficulty  int    `json:"difficulty"`
	BlockString string `json:"block_string"`
	Index       uint64 `json:"index"`
}

// SolutionResponse is returned by POST /mine/submit-solution.
type SolutionResponse struct {
	Message string `json:"message"`
	Hash    string `json:"hash,omitempty"`
	Index   uint64 `json:"index,omitempty"`
}
