package chain

import (
	"fmt"

	"github.com/Klingon-tech/powledger/pkg/block"
)

// Verify re-checks every block: structure, proof of work, indices and
// hash linkage. It returns nil for a consistent chain.
func (l *Ledger) Verify() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.blocks) == 0 {
		return ErrEmptyChain
	}
	for i, blk := range l.blocks {
		if err := l.verifyBlock(uint64(i), blk); err != nil {
			return fmt.Errorf("%w: block %d: %v", ErrChainCorrupt, i, err)
		}
		if i == 0 {
			continue
		}
		if prev := l.blocks[i-1]; blk.PreviousHash != prev.Hash {
			return fmt.Errorf("%w: block %d previous hash %s, want %s",
				ErrChainCorrupt, i, blk.PreviousHash, prev.Hash)
		}
	}
	return nil
}

func (l *Ledger) verifyBlock(index uint64, blk *block.Block) error {
	if blk.Index != index {
		return fmt.Errorf("stored index %d", blk.Index)
	}
	if !blk.IsSealed() {
		return fmt.Errorf("not sealed")
	}
	if err := blk.Validate(); err != nil {
		return err
	}
	return l.engine.Verify(blk)
}
