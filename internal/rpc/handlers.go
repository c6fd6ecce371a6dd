package rpc

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Klingon-tech/powledger/internal/archive"
	"github.com/Klingon-tech/powledger/internal/chain"
	"github.com/Klingon-tech/powledger/internal/mempool"
	"github.com/Klingon-tech/powledger/internal/miner"
	"github.com/Klingon-tech/powledger/pkg/block"
	"github.com/Klingon-tech/powledger/pkg/tx"
)

// ── Chain endpoints ─────────────────────────────────────────────────────

func (s *Server) handleChainGetInfo(_ *Request) (interface{}, *Error) {
	latest, err := s.ledger.LatestBlock()
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	_, pending := s.ledger.PendingTransactions()
	return &ChainInfoResult{
		Length:      int(latest.Index) + 1,
		Height:      latest.Index,
		LatestHash:  latest.Hash,
		Difficulty:  s.ledger.Difficulty(),
		ClearPolicy: s.ledger.ClearPolicy().String(),
		Pending:     pending,
		JobActive:   s.ledger.ActiveCandidate() != nil,
		Reward:      s.ledger.Reward(),
	}, nil
}

func (s *Server) handleChainGetChain(_ *Request) (interface{}, *Error) {
	blocks := s.ledger.Blocks()
	return &ChainResult{Chain: blocks, Length: len(blocks)}, nil
}

func (s *Server) handleChainGetBlockByIndex(req *Request) (interface{}, *Error) {
	var params IndexParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}

	blk, err := s.ledger.BlockByIndex(params.Index)
	if err != nil {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("block not found: %v", err)}
	}
	return blk, nil
}

func (s *Server) handleChainGetBlockByHash(req *Request) (interface{}, *Error) {
	var params HashParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if rpcErr := checkHash(params.Hash); rpcErr != nil {
		return nil, rpcErr
	}

	blk, err := s.ledger.BlockByHash(params.Hash)
	if err != nil {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("block not found: %v", err)}
	}
	return blk, nil
}

func (s *Server) handleChainVerify(_ *Request) (interface{}, *Error) {
	res := &VerifyResult{Valid: true, Length: s.ledger.Length()}
	if err := s.ledger.Verify(); err != nil {
		res.Valid = false
		res.Error = err.Error()
		s.logger.Error().Err(err).Msg("Chain verification failed")
	}
	return res, nil
}

// ── Transaction endpoints ───────────────────────────────────────────────

func (s *Server) handleTxSubmit(req *Request) (interface{}, *Error) {
	var params TxSubmitParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Sender == "" || params.Recipient == "" || params.Amount == nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "sender, recipient and amount are required"}
	}

	index, err := s.ledger.SubmitTransaction(params.Sender, params.Recipient, *params.Amount)
	switch {
	case errors.Is(err, tx.ErrInvalidTransaction):
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	case errors.Is(err, mempool.ErrPoolFull):
		return nil, &Error{Code: CodePoolFull, Message: err.Error()}
	case err != nil:
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}

	t := &tx.Transaction{Sender: params.Sender, Recipient: params.Recipient, Amount: *params.Amount}
	return &TxSubmitResult{
		Index:   index,
		TxID:    t.ID().String(),
		Message: fmt.Sprintf("Transaction will be added to block %d", index),
	}, nil
}

// ── Mempool endpoints ───────────────────────────────────────────────────

func (s *Server) handleMempoolGetInfo(_ *Request) (interface{}, *Error) {
	_, count := s.ledger.PendingTransactions()
	return &MempoolInfoResult{Count: count}, nil
}

func (s *Server) handleMempoolGetContent(_ *Request) (interface{}, *Error) {
	list, count := s.ledger.PendingTransactions()
	if list == nil {
		list = []*tx.Transaction{}
	}
	return &MempoolContentResult{Transactions: list, Count: count}, nil
}

// ── Mining endpoints ────────────────────────────────────────────────────

// handleMiningGetJob issues a new job. Any job issued earlier, to this or
// another miner, can no longer be solved.
func (s *Server) handleMiningGetJob(req *Request) (interface{}, *Error) {
	var params MiningGetJobParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Address == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "address is required"}
	}

	job, err := s.coord.GetJob(params.Address)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	return job, nil
}

func (s *Server) handleMiningSubmitSolution(req *Request) (interface{}, *Error) {
	var params MiningSubmitParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Nonce == nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "nonce is required"}
	}

	var (
		res *miner.Result
		err error
	)
	if params.JobID != "" {
		id, parseErr := uuid.Parse(params.JobID)
		if parseErr != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: "invalid job_id: must be a UUID"}
		}
		res, err = s.coord.SubmitSolutionFor(id, *params.Nonce)
	} else {
		res, err = s.coord.SubmitSolution(*params.Nonce)
	}

	switch {
	case errors.Is(err, chain.ErrNoActiveJob):
		return nil, &Error{Code: CodeJobUnavailable, Message: err.Error(), Data: JobErrorData{Reason: chain.ReasonNoJob}}
	case errors.Is(err, chain.ErrStaleJob):
		return nil, &Error{Code: CodeJobUnavailable, Message: err.Error(), Data: JobErrorData{Reason: chain.ReasonStaleJob}}
	case err != nil:
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return res, nil
}

// ── Archive endpoints ───────────────────────────────────────────────────

func (s *Server) handleArchiveGetInfo(_ *Request) (interface{}, *Error) {
	if s.archive == nil {
		return &ArchiveInfoResult{Enabled: false}, nil
	}
	return &ArchiveInfoResult{
		Enabled:   true,
		Namespace: s.archive.CurrentNamespace(),
		Count:     s.archive.Count(),
		Backlog:   s.archive.Backlog(),
	}, nil
}

func (s *Server) handleArchiveGetBlock(req *Request) (interface{}, *Error) {
	if s.archive == nil {
		return nil, &Error{Code: CodeNotFound, Message: "archive not enabled"}
	}

	var params ArchiveBlockParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if (params.Hash == "") == (params.Index == nil) {
		return nil, &Error{Code: CodeInvalidParams, Message: "exactly one of hash or index is required"}
	}

	var (
		blk *block.Block
		err error
	)
	if params.Index != nil {
		blk, err = s.archive.BlockAt(*params.Index)
	} else {
		if rpcErr := checkHash(params.Hash); rpcErr != nil {
			return nil, rpcErr
		}
		blk, err = s.archive.Block(params.Hash)
	}
	if errors.Is(err, archive.ErrNotFound) || errors.Is(err, archive.ErrNoGenesis) {
		return nil, &Error{Code: CodeNotFound, Message: err.Error()}
	}
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return blk, nil
}

// ── Helpers ─────────────────────────────────────────────────────────────

func checkHash(hash string) *Error {
	if hash == "" {
		return &Error{Code: CodeInvalidParams, Message: "hash is required"}
	}
	if !block.IsHashHex(hash) {
		return &Error{Code: CodeInvalidParams, Message: "invalid hash: must be 64 lowercase hex characters"}
	}
	return nil
}
