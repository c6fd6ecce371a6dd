// Package mempool holds transactions waiting for inclusion in a sealed block.
package mempool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gammazero/deque"

	"github.com/Klingon-tech/powledger/pkg/tx"
)

// ErrPoolFull is returned by Add when the pool is at capacity.
var ErrPoolFull = errors.New("mempool is full")

// Pool is a FIFO queue of pending transactions.
// Order of arrival is the order transactions are offered to miners.
type Pool struct {
	mu      sync.RWMutex
	queue   *deque.Deque[any]
	maxSize int // 0 = unbounded.
}

// New creates a pool. maxSize <= 0 disables the capacity limit.
func New(maxSize int) *Pool {
	if maxSize < 0 {
		maxSize = 0
	}
	return &Pool{
		queue:   deque.New[any](),
		maxSize: maxSize,
	}
}

// Add appends a validated transaction to the back of the queue.
func (p *Pool) Add(t *tx.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.maxSize > 0 && p.queue.Len() >= p.maxSize {
		return fmt.Errorf("%w: %d transactions", ErrPoolFull, p.maxSize)
	}
	p.queue.PushBack(t)
	return nil
}

// Count returns the number of pending transactions.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.queue.Len()
}

// List returns the pending transactions in arrival order.
// The returned slice is a copy; the transactions themselves are immutable.
func (p *Pool) List() []*tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.list()
}

// Snapshot returns the transactions a candidate block should include.
// The pool is left untouched.
func (p *Pool) Snapshot() []*tx.Transaction {
	return p.List()
}

func (p *Pool) list() []*tx.Transaction {
	out := make([]*tx.Transaction, p.queue.Len())
	for i := range out {
		out[i] = p.queue.At(i).(*tx.Transaction)
	}
	return out
}

// DropFront removes the n oldest transactions and returns how many were removed.
// Used to retire exactly the prefix a sealed block snapshotted.
func (p *Pool) DropFront(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for removed < n && p.queue.Len() > 0 {
		p.queue.PopFront()
		removed++
	}
	return removed
}

// Clear removes every pending transaction and returns how many were removed.
func (p *Pool) Clear() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.queue.Len()
	p.queue = deque.New[any]()
	return n
}
