package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/Klingon-tech/powledger/internal/consensus"
	"github.com/Klingon-tech/powledger/pkg/block"
)

// CreateGenesisBlock builds and mines the genesis block.
// It has index 0, no transactions, previous hash "0" and the system miner.
// The nonce search starts at 0 and honours ctx.
func CreateGenesisBlock(ctx context.Context, engine consensus.Engine, now time.Time) (*block.Block, error) {
	blk, err := block.New(0, now, nil, block.GenesisPreviousHash, block.SystemMiner)
	if err != nil {
		return nil, fmt.Errorf("build genesis: %w", err)
	}
	if err := engine.SealWithCancel(ctx, blk); err != nil {
		return nil, fmt.Errorf("mine genesis: %w", err)
	}
	return blk, nil
}
