// Package consensus implements the proof-of-work rules shared by the ledger
// and external miners.
package consensus

import (
	"context"

	"github.com/Klingon-tech/powledger/pkg/block"
)

// Engine is the interface the ledger uses to check and produce work.
type Engine interface {
	Difficulty() int
	MeetsTarget(hash string) bool
	Verify(blk *block.Block) error
	SealWithCancel(ctx context.Context, blk *block.Block) error
}
