package miner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Klingon-tech/powledger/internal/chain"
	"github.com/Klingon-tech/powledger/internal/consensus"
	"github.com/Klingon-tech/powledger/internal/log"
)

// JobSource hands out jobs and accepts solutions.
// Coordinator implements it directly; remote sources wrap an RPC client.
type JobSource interface {
	GetJob(minerAddress string) (*Job, error)
	SubmitSolutionFor(jobID uuid.UUID, nonce uint64) (*Result, error)
}

// Worker repeatedly fetches a job, searches for a nonce and submits it.
type Worker struct {
	source  JobSource
	address string
	threads int

	// OnBlock is called after every accepted solution.
	OnBlock func(job *Job, res *Result, elapsed time.Duration)
}

// NewWorker creates a worker mining for address with the given number of
// search goroutines.
func NewWorker(source JobSource, address string, threads int) *Worker {
	if threads < 1 {
		threads = 1
	}
	return &Worker{source: source, address: address, threads: threads}
}

// MineOne solves a single job. A stale or rejected submission returns a nil
// result and a nil error so the caller can simply retry.
func (w *Worker) MineOne(ctx context.Context) (*Result, error) {
	job, err := w.source.GetJob(w.address)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	pow, err := consensus.NewPoW(job.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	pow.Threads = w.threads

	start := time.Now()
	nonce, hash, err := pow.Search(ctx, job.Preimage, 0)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	res, err := w.source.SubmitSolutionFor(job.ID, nonce)
	if errors.Is(err, chain.ErrStaleJob) || errors.Is(err, chain.ErrNoActiveJob) {
		log.Mining.Warn().Str("job", job.ID.String()).Err(err).Msg("Job replaced before submission")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("submit solution: %w", err)
	}
	if !res.Accepted {
		log.Mining.Warn().
			Str("job", job.ID.String()).
			Uint64("nonce", nonce).
			Str("hash", hash).
			Msg("Solution rejected")
		return nil, nil
	}

	if w.OnBlock != nil {
		w.OnBlock(job, res, elapsed)
	}
	return res, nil
}

// Run mines until blocks solutions have been accepted (0 = until ctx is done).
// It returns the number of accepted blocks.
func (w *Worker) Run(ctx context.Context, blocks int) (int, error) {
	mined := 0
	for blocks <= 0 || mined < blocks {
		if err := ctx.Err(); err != nil {
			return mined, err
		}
		res, err := w.MineOne(ctx)
		if err != nil {
			return mined, err
		}
		if res != nil {
			mined++
		}
	}
	return mined, nil
}
