// Package chain implements the ledger: the sealed block sequence, the pending
// transaction pool and the single outstanding mining candidate.
package chain

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Klingon-tech/powledger/internal/consensus"
	"github.com/Klingon-tech/powledger/internal/log"
	"github.com/Klingon-tech/powledger/internal/mempool"
	"github.com/Klingon-tech/powledger/pkg/block"
	"github.com/Klingon-tech/powledger/pkg/tx"
)

// Ledger owns the chain, the pending pool and the candidate slot.
// Every mutation takes the write lock, so candidate preparation, solution
// validation and transaction submission are linearizable.
type Ledger struct {
	mu     sync.RWMutex // Protects blocks, byHash and candidate. pool is only mutated under mu.
	blocks []*block.Block
	byHash map[string]uint64

	pool      *mempool.Pool
	engine    consensus.Engine
	reward    float64
	policy    ClearPolicy
	now       func() time.Time
	candidate *Candidate // nil = no outstanding job.

	sink     BlockSink
	outbox   []*block.Block // Sealed blocks not yet handed to sink. Guarded by mu.
	sinkMu   sync.Mutex     // Serializes sink writes so they stay in index order.
	observer Observer
}

// New creates a ledger and mines its genesis block.
func New(cfg Config, opts ...Option) (*Ledger, error) {
	return NewWithContext(context.Background(), cfg, opts...)
}

// NewWithContext is New with a cancellable genesis search.
func NewWithContext(ctx context.Context, cfg Config, opts ...Option) (*Ledger, error) {
	engine, err := consensus.NewPoW(cfg.Difficulty)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(cfg.Reward) || math.IsInf(cfg.Reward, 0) {
		return nil, fmt.Errorf("block reward must be a finite number")
	}
	if cfg.ClearPolicy != ClearIncluded && cfg.ClearPolicy != ClearAll {
		return nil, fmt.Errorf("invalid clear policy %s", cfg.ClearPolicy)
	}

	l := &Ledger{
		byHash:   make(map[string]uint64),
		pool:     mempool.New(cfg.PoolSize),
		engine:   engine,
		reward:   cfg.Reward,
		policy:   cfg.ClearPolicy,
		now:      cfg.Now,
		observer: nopObserver{},
	}
	if l.now == nil {
		l.now = time.Now
	}
	for _, opt := range opts {
		opt(l)
	}

	start := time.Now()
	genesis, err := CreateGenesisBlock(ctx, engine, l.now())
	if err != nil {
		return nil, err
	}
	l.appendBlock(genesis)
	l.flushSink()

	log.Ledger.Info().
		Str("hash", genesis.Hash).
		Uint64("nonce", genesis.Nonce).
		Int("difficulty", cfg.Difficulty).
		Dur("elapsed", time.Since(start)).
		Msg("Genesis block mined")

	return l, nil
}

// appendBlock adds a sealed block to the chain and queues it for the sink.
// Caller must hold mu (or be the constructor) and call flushSink after
// releasing it.
func (l *Ledger) appendBlock(blk *block.Block) {
	l.blocks = append(l.blocks, blk)
	l.byHash[blk.Hash] = blk.Index
	if l.sink != nil {
		l.outbox = append(l.outbox, blk.Clone())
	}
}

// flushSink hands queued blocks to the sink outside mu, so a slow sink
// never stalls readers or transaction submission. Blocks are taken from
// the outbox under mu and written under sinkMu, which keeps index order
// when several seals race. On return every block queued before the call
// has been written.
func (l *Ledger) flushSink() {
	if l.sink == nil {
		return
	}
	l.sinkMu.Lock()
	defer l.sinkMu.Unlock()

	for {
		l.mu.Lock()
		queued := l.outbox
		l.outbox = nil
		l.mu.Unlock()
		if len(queued) == 0 {
			return
		}
		for _, blk := range queued {
			if err := l.sink.PutBlock(blk); err != nil {
				log.Ledger.Warn().Err(err).Uint64("index", blk.Index).Msg("Block sink write failed")
			}
		}
	}
}

// Difficulty returns the configured difficulty.
func (l *Ledger) Difficulty() int {
	return l.engine.Difficulty()
}

// Reward returns the amount credited to each block's miner.
func (l *Ledger) Reward() float64 {
	return l.reward
}

// ClearPolicy returns how the pool is retired when a block seals.
func (l *Ledger) ClearPolicy() ClearPolicy {
	return l.policy
}

// LatestBlock returns the most recently sealed block.
func (l *Ledger) LatestBlock() (*block.Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.blocks) == 0 {
		return nil, ErrEmptyChain
	}
	return l.blocks[len(l.blocks)-1].Clone(), nil
}

// Blocks returns copies of every sealed block in chain order.
func (l *Ledger) Blocks() []*block.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*block.Block, len(l.blocks))
	for i, b := range l.blocks {
		out[i] = b.Clone()
	}
	return out
}

// Length returns the number of sealed blocks, genesis included.
func (l *Ledger) Length() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blocks)
}

// Height returns the index of the latest block.
func (l *Ledger) Height() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.blocks) - 1)
}

// BlockByIndex returns the sealed block at index i.
func (l *Ledger) BlockByIndex(i uint64) (*block.Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i >= uint64(len(l.blocks)) {
		return nil, fmt.Errorf("%w: index %d, height %d", ErrBlockNotFound, i, len(l.blocks)-1)
	}
	return l.blocks[i].Clone(), nil
}

// BlockByHash returns the sealed block with the given hash.
func (l *Ledger) BlockByHash(hash string) (*block.Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.byHash[hash]
	if !ok {
		return nil, fmt.Errorf("%w: hash %s", ErrBlockNotFound, hash)
	}
	return l.blocks[i].Clone(), nil
}

// SubmitTransaction validates a transaction and appends it to the pool.
// The returned index is the block the transaction is expected to land in.
// It is advisory: a job issued earlier may seal without it.
func (l *Ledger) SubmitTransaction(sender, recipient string, amount float64) (uint64, error) {
	t, err := tx.New(sender, recipient, amount)
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.pool.Add(t); err != nil {
		return 0, err
	}
	pending := l.pool.Count()
	next := l.blocks[len(l.blocks)-1].Index + 1

	log.Mempool.Debug().
		Str("tx", t.ID().Short()).
		Str("sender", sender).
		Str("recipient", recipient).
		Float64("amount", amount).
		Int("pending", pending).
		Msg("Transaction accepted")
	l.observer.TransactionAccepted(pending)

	return next, nil
}

// PendingTransactions returns the pool in arrival order and its size.
func (l *Ledger) PendingTransactions() ([]*tx.Transaction, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	list := l.pool.List()
	return list, len(list)
}
