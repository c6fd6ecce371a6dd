package chain

import (
	"errors"

	"github.com/Klingon-tech/powledger/pkg/tx"
)

// Ledger errors.
var (
	ErrInvalidTransaction = tx.ErrInvalidTransaction
	ErrInvalidMiner       = errors.New("miner address is empty")
	ErrNoActiveJob        = errors.New("no active mining job")
	ErrStaleJob           = errors.New("mining job is no longer current")
	ErrRejectedSolution   = errors.New("nonce does not meet difficulty target")
	ErrEmptyChain         = errors.New("chain is empty")
	ErrBlockNotFound      = errors.New("block not found")
	ErrChainCorrupt       = errors.New("chain integrity check failed")
)
