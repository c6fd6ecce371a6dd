package rpc

import (
	"github.com/Klingon-tech/powledger/pkg/block"
	"github.com/Klingon-tech/powledger/pkg/tx"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
	CodeJobUnavailable = -32001 // No outstanding job, or the job was replaced.
	CodePoolFull       = -32002
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JobErrorData is the data member of a CodeJobUnavailable error. Reason is
// chain.ReasonNoJob or chain.ReasonStaleJob.
type JobErrorData struct {
	Reason string `json:"reason"`
}

// ── Param types ─────────────────────────────────────────────────────────

// HashParam is used by endpoints that take a single block hash.
type HashParam struct {
	Hash string `json:"hash"`
}

// IndexParam is used by endpoints that take a block index.
type IndexParam struct {
	Index uint64 `json:"index"`
}

// TxSubmitParam is used by tx_submit. Amount is a pointer so a missing
// field can be told apart from zero.
type TxSubmitParam struct {
	Sender    string   `json:"sender"`
	Recipient string   `json:"recipient"`
	Amount    *float64 `json:"amount"`
}

// MiningGetJobParam is used by mining_getJob.
type MiningGetJobParam struct {
	Address string `json:"address"`
}

// MiningSubmitParam is used by mining_submitSolution. When JobID is set the
// nonce is only checked against that job.
type MiningSubmitParam struct {
	Nonce *uint64 `json:"nonce"`
	JobID string  `json:"job_id,omitempty"`
}

// ArchiveBlockParam is used by archive_getBlock. Exactly one of Hash and
// Index must be given.
type ArchiveBlockParam struct {
	Hash  string  `json:"hash,omitempty"`
	Index *uint64 `json:"index,omitempty"`
}

// ── Result types ────────────────────────────────────────────────────────

// ChainInfoResult is returned by chain_getInfo.
type ChainInfoResult struct {
	Length      int     `json:"length"`
	Height      uint64  `json:"height"`
	LatestHash  string  `json:"latest_hash"`
	Difficulty  int     `json:"difficulty"`
	ClearPolicy string  `json:"clear_policy"`
	Pending     int     `json:"pending"`
	JobActive   bool    `json:"job_active"`
	Reward      float64 `json:"reward"`
}

// ChainResult is returned by chain_getChain.
type ChainResult struct {
	Chain  []*block.Block `json:"chain"`
	Length int            `json:"length"`
}

// VerifyResult is returned by chain_verify.
type VerifyResult struct {
	Valid  bool   `json:"valid"`
	Length int    `json:"length"`
	Error  string `json:"error,omitempty"`
}

// TxSubmitResult is returned by tx_submit.
type TxSubmitResult struct {
	Index   uint64 `json:"index"`
	TxID    string `json:"tx_id"`
	Message string `json:"message"`
}

// MempoolInfoResult is returned by mempool_getInfo.
type MempoolInfoResult struct {
	Count int `json:"count"`
}

// MempoolContentResult is returned by mempool_getContent.
type MempoolContentResult struct {
	Transactions []*tx.Transaction `json:"transactions"`
	Count        int               `json:"count"`
}

// ArchiveInfoResult is returned by archive_getInfo.
// Backlog counts sealed blocks whose write failed and is being retried.
type ArchiveInfoResult struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace,omitempty"`
	Count     uint64 `json:"count"`
	Backlog   int    `json:"backlog"`
}
