// Package miner coordinates proof-of-work jobs between the ledger and
// external miners, and provides a worker loop that solves them.
package miner

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Klingon-tech/powledger/internal/chain"
)

// Job is the work handed to an external miner.
//
// Only the most recently issued job can be solved. Requesting a job replaces
// the outstanding one, so two miners racing on GetJob invalidate each other
// (last job wins).
type Job struct {
	ID           uuid.UUID `json:"id"`
	Difficulty   int       `json:"difficulty"`
	Preimage     string    `json:"preimage"`
	Index        uint64    `json:"index"`
	PreviousHash string    `json:"previous_hash"`
	Miner        string    `json:"miner"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Result reports the outcome of a submitted nonce.
type Result struct {
	Accepted bool   `json:"accepted"`
	Hash     string `json:"hash,omitempty"`
	Index    uint64 `json:"index,omitempty"`
}

// Coordinator issues jobs from the ledger's candidate slot and validates
// solutions against it.
type Coordinator struct {
	ledger *chain.Ledger
}

// New creates a coordinator over ledger.
func New(ledger *chain.Ledger) *Coordinator {
	return &Coordinator{ledger: ledger}
}

// GetJob prepares a new candidate for minerAddress and returns it as a job.
// Any outstanding job is invalidated.
func (c *Coordinator) GetJob(minerAddress string) (*Job, error) {
	cand, err := c.ledger.PrepareCandidate(minerAddress)
	if err != nil {
		return nil, err
	}
	return jobFromCandidate(cand), nil
}

// CurrentJob returns the outstanding job, or nil if there is none.
func (c *Coordinator) CurrentJob() *Job {
	cand := c.ledger.ActiveCandidate()
	if cand == nil {
		return nil
	}
	return jobFromCandidate(cand)
}

// SubmitSolution validates nonce against the outstanding job.
// A nonce that misses the target yields Accepted=false and a nil error;
// the job is discarded either way.
func (c *Coordinator) SubmitSolution(nonce uint64) (*Result, error) {
	hash, err := c.ledger.SubmitNonce(nonce)
	return c.result(hash, err)
}

// SubmitSolutionFor is SubmitSolution for a specific job. It fails with
// chain.ErrStaleJob, leaving the outstanding job intact, when jobID has been
// replaced.
func (c *Coordinator) SubmitSolutionFor(jobID uuid.UUID, nonce uint64) (*Result, error) {
	cand := c.ledger.ActiveCandidate()
	if cand == nil {
		return nil, chain.ErrNoActiveJob
	}
	if cand.ID() != jobID {
		return nil, chain.ErrStaleJob
	}
	hash, err := c.ledger.ValidateSolution(cand, nonce)
	return c.result(hash, err)
}

func (c *Coordinator) result(hash string, err error) (*Result, error) {
	if errors.Is(err, chain.ErrRejectedSolution) {
		return &Result{Accepted: false}, nil
	}
	if err != nil {
		return nil, err
	}
	res := &Result{Accepted: true, Hash: hash}
	if blk, err := c.ledger.BlockByHash(hash); err == nil {
		res.Index = blk.Index
	}
	return res, nil
}

func jobFromCandidate(cand *chain.Candidate) *Job {
	return &Job{
		ID:           cand.ID(),
		Difficulty:   cand.Difficulty(),
		Preimage:     cand.Preimage(),
		Index:        cand.Index(),
		PreviousHash: cand.PreviousHash(),
		Miner:        cand.Miner(),
		IssuedAt:     cand.IssuedAt(),
	}
}
