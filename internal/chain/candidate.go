package chain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Klingon-tech/powledger/internal/log"
	"github.com/Klingon-tech/powledger/pkg/block"
	"github.com/Klingon-tech/powledger/pkg/tx"
)

// Candidate is an unsealed block handed out to a miner.
// At most one candidate is outstanding; preparing a new one invalidates the old.
type Candidate struct {
	id         uuid.UUID
	blk        *block.Block
	preimage   string
	difficulty int
	snapshot   int // Pool prefix length included in blk.
	issuedAt   time.Time
}

// ID returns the job identifier.
func (c *Candidate) ID() uuid.UUID { return c.id }

// Preimage returns the string a miner hashes with each nonce.
func (c *Candidate) Preimage() string { return c.preimage }

// Difficulty returns the number of leading zeros a solution needs.
func (c *Candidate) Difficulty() int { return c.difficulty }

// Index returns the index the block will have once sealed.
func (c *Candidate) Index() uint64 { return c.blk.Index }

// PreviousHash returns the hash of the block this candidate extends.
func (c *Candidate) PreviousHash() string { return c.blk.PreviousHash }

// Miner returns the address credited with the reward.
func (c *Candidate) Miner() string { return c.blk.Miner }

// SnapshotSize returns how many pending transactions the candidate includes,
// not counting the reward.
func (c *Candidate) SnapshotSize() int { return c.snapshot }

// IssuedAt returns when the candidate was prepared.
func (c *Candidate) IssuedAt() time.Time { return c.issuedAt }

// Block returns a copy of the unsealed block.
func (c *Candidate) Block() *block.Block { return c.blk.Clone() }

// PrepareCandidate builds the next block for minerAddress and makes it the
// outstanding job, replacing any previous one. The pool is snapshotted,
// not drained.
func (l *Ledger) PrepareCandidate(minerAddress string) (*Candidate, error) {
	if minerAddress == "" {
		return nil, ErrInvalidMiner
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pending := l.pool.Snapshot()
	txs := make([]*tx.Transaction, 0, len(pending)+1)
	txs = append(txs, pending...)
	txs = append(txs, tx.Reward(minerAddress, l.reward))

	latest := l.blocks[len(l.blocks)-1]
	now := l.now()
	blk, err := block.New(uint64(len(l.blocks)), now, txs, latest.Hash, minerAddress)
	if err != nil {
		return nil, fmt.Errorf("build candidate: %w", err)
	}

	if l.candidate != nil {
		log.Mining.Debug().
			Str("job", l.candidate.id.String()).
			Msg("Outstanding job replaced")
	}

	c := &Candidate{
		id:         uuid.New(),
		blk:        blk,
		preimage:   blk.Preimage(),
		difficulty: l.engine.Difficulty(),
		snapshot:   len(pending),
		issuedAt:   now,
	}
	l.candidate = c

	log.Mining.Info().
		Str("job", c.id.String()).
		Uint64("index", blk.Index).
		Str("miner", minerAddress).
		Int("txs", len(txs)).
		Msg("Mining job issued")
	l.observer.JobIssued(blk.Index, c.difficulty)

	return c, nil
}

// ActiveCandidate returns the outstanding candidate, or nil if there is none.
func (l *Ledger) ActiveCandidate() *Candidate {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.candidate
}

// SubmitNonce validates nonce against whatever candidate is outstanding.
func (l *Ledger) SubmitNonce(nonce uint64) (string, error) {
	return l.ValidateSolution(nil, nonce)
}

// ValidateSolution checks nonce against candidate c and, on success, seals
// and appends the block.
//
// A nil c means the outstanding candidate. A non-nil c that is no longer
// outstanding fails with ErrStaleJob and leaves the slot untouched.
// A nonce that misses the target clears the slot and fails with
// ErrRejectedSolution.
//
// The sealed block reaches the BlockSink before ValidateSolution returns,
// but the write happens after the ledger lock is released.
func (l *Ledger) ValidateSolution(c *Candidate, nonce uint64) (string, error) {
	hash, err := l.validateSolution(c, nonce)
	if err == nil {
		l.flushSink()
	}
	return hash, err
}

func (l *Ledger) validateSolution(c *Candidate, nonce uint64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.candidate == nil {
		l.observer.SolutionRejected(ReasonNoJob)
		return "", ErrNoActiveJob
	}
	if c != nil && c != l.candidate {
		l.observer.SolutionRejected(ReasonStaleJob)
		return "", fmt.Errorf("%w: job %s", ErrStaleJob, c.id)
	}
	c = l.candidate
	jobLog := log.WithJobID(c.id.String())

	hash := c.blk.HashWithNonce(nonce)
	if !l.engine.MeetsTarget(hash) {
		l.candidate = nil
		jobLog.Info().
			Uint64("nonce", nonce).
			Str("hash", hash).
			Msg("Solution rejected")
		l.observer.SolutionRejected(ReasonInvalidNonce)
		return "", fmt.Errorf("%w: nonce %d gives %s", ErrRejectedSolution, nonce, hash)
	}

	blk := c.blk.Clone()
	blk.Nonce = nonce
	blk.Seal(hash)
	l.candidate = nil
	l.appendBlock(blk)

	var retired int
	switch l.policy {
	case ClearAll:
		retired = l.pool.Clear()
	default:
		retired = l.pool.DropFront(c.snapshot)
	}
	pending := l.pool.Count()

	jobLog.Info().
		Uint64("index", blk.Index).
		Str("hash", hash).
		Uint64("nonce", nonce).
		Int("retired", retired).
		Int("pending", pending).
		Msg("Block sealed")
	l.observer.SolutionAccepted(blk.Clone(), pending)

	return hash, nil
}
