package consensus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Klingon-tech/powledger/pkg/block"
)

// MaxDifficulty is the number of hex characters in a SHA-256 digest.
const MaxDifficulty = 64

// PoW errors.
var (
	ErrInsufficientWork = errors.New("hash does not meet difficulty target")
	ErrBadDifficulty    = errors.New("difficulty out of range")
	ErrHashMismatch     = errors.New("stored hash does not match block contents")
	ErrNonceExhausted   = errors.New("nonce space exhausted")
)

// PoW implements leading-zero proof-of-work.
// Difficulty is the number of leading '0' hex characters a block hash needs.
// It is fixed for the lifetime of the engine.
type PoW struct {
	difficulty int
	target     string

	// Threads controls the number of parallel search goroutines.
	// 0 or 1 = single-threaded. Each goroutine searches a strided
	// partition of the nonce space.
	Threads int
}

var _ Engine = (*PoW)(nil)

// NewPoW creates a new PoW engine. Difficulty 0 accepts every hash.
func NewPoW(difficulty int) (*PoW, error) {
	if difficulty < 0 || difficulty > MaxDifficulty {
		return nil, fmt.Errorf("%w: %d not in [0, %d]", ErrBadDifficulty, difficulty, MaxDifficulty)
	}
	return &PoW{
		difficulty: difficulty,
		target:     strings.Repeat("0", difficulty),
	}, nil
}

// Difficulty returns the required number of leading zero hex digits.
func (p *PoW) Difficulty() int {
	return p.difficulty
}

// Target returns the required hash prefix.
func (p *PoW) Target() string {
	return p.target
}

// MeetsTarget reports whether hash starts with the required zero prefix.
func (p *PoW) MeetsTarget(hash string) bool {
	return MeetsTarget(hash, p.difficulty)
}

// MeetsTarget reports whether hash has at least difficulty leading '0' characters.
func MeetsTarget(hash string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if len(hash) < difficulty {
		return false
	}
	for i := 0; i < difficulty; i++ {
		if hash[i] != '0' {
			return false
		}
	}
	return true
}

// Verify recomputes the block hash and checks it against the target.
// A sealed block must also carry the recomputed hash.
func (p *PoW) Verify(blk *block.Block) error {
	if blk == nil {
		return fmt.Errorf("nil block")
	}
	hash := blk.ComputeHash()
	if blk.IsSealed() && blk.Hash != hash {
		return fmt.Errorf("%w: block %d has %s, computed %s", ErrHashMismatch, blk.Index, blk.Hash, hash)
	}
	if !p.MeetsTarget(hash) {
		return fmt.Errorf("%w: block %d hash %s", ErrInsufficientWork, blk.Index, hash)
	}
	return nil
}

// Seal mines the block from nonce 0 upward and records the resulting hash.
func (p *PoW) Seal(blk *block.Block) error {
	return p.SealWithCancel(context.Background(), blk)
}

// SealWithCancel mines the block with cancellation support.
// When the context is cancelled, mining stops and ctx.Err() is returned.
func (p *PoW) SealWithCancel(ctx context.Context, blk *block.Block) error {
	if blk == nil {
		return fmt.Errorf("nil block")
	}
	nonce, hash, err := p.Search(ctx, blk.Preimage(), 0)
	if err != nil {
		return err
	}
	blk.Nonce = nonce
	blk.Seal(hash)
	return nil
}

// Search looks for a nonce whose hash over preimage meets the target,
// starting at start. This is the work an external miner performs on a job.
// Single-threaded search always returns the smallest qualifying nonce >= start.
func (p *PoW) Search(ctx context.Context, preimage string, start uint64) (uint64, string, error) {
	if p.Threads <= 1 {
		return p.searchSingle(ctx, preimage, start)
	}
	return p.searchParallel(ctx, preimage, start, p.Threads)
}

// searchSingle scans nonces sequentially.
func (p *PoW) searchSingle(ctx context.Context, preimage string, start uint64) (uint64, string, error) {
	for nonce := start; ; nonce++ {
		// Check cancellation every 65536 iterations.
		if (nonce-start)&0xFFFF == 0 {
			select {
			case <-ctx.Done():
				return 0, "", ctx.Err()
			default:
			}
		}

		hash := block.HashPreimage(preimage, nonce)
		if p.MeetsTarget(hash) {
			return nonce, hash, nil
		}
		if nonce == ^uint64(0) {
			return 0, "", ErrNonceExhausted
		}
	}
}

// searchParallel runs threads goroutines, goroutine i scanning
// start+i, start+i+threads, ...
func (p *PoW) searchParallel(ctx context.Context, preimage string, start uint64, threads int) (uint64, string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		nonce uint64
		hash  string
		err   error
	}
	found := make(chan result, 1)

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		first := start + uint64(i)
		stride := uint64(threads)
		go func() {
			defer wg.Done()
			for nonce, n := first, uint64(0); ; nonce, n = nonce+stride, n+1 {
				if n&0xFFFF == 0 {
					select {
					case <-ctx.Done():
						return
					default:
					}
				}

				hash := block.HashPreimage(preimage, nonce)
				if p.MeetsTarget(hash) {
					select {
					case found <- result{nonce: nonce, hash: hash}:
					default:
					}
					cancel()
					return
				}

				// Overflow: would wrap around past max uint64.
				if nonce > ^uint64(0)-stride {
					select {
					case found <- result{err: ErrNonceExhausted}:
					default:
					}
					return
				}
			}
		}()
	}

	// Wait in background so goroutines are cleaned up.
	go func() {
		wg.Wait()
		close(found)
	}()

	select {
	case r, ok := <-found:
		if !ok {
			return 0, "", ErrNonceExhausted
		}
		return r.nonce, r.hash, r.err
	case <-ctx.Done():
		// A winner cancels ctx after queueing its result; prefer the result.
		select {
		case r, ok := <-found:
			if ok && r.err == nil {
				return r.nonce, r.hash, nil
			}
		default:
		}
		return 0, "", ctx.Err()
	}
}
