package chain

import (
	"fmt"
	"strings"
	"time"

	"github.com/Klingon-tech/powledger/pkg/block"
)

// ClearPolicy decides which pending transactions are retired when a block seals.
type ClearPolicy int

const (
	// ClearIncluded removes only the transactions the sealed block snapshotted.
	// Transactions submitted while the job was outstanding stay pending.
	ClearIncluded ClearPolicy = iota
	// ClearAll empties the whole pool, including late arrivals that were never
	// mined.
	ClearAll
)

// String returns the config spelling of the policy.
func (p ClearPolicy) String() string {
	switch p {
	case ClearIncluded:
		return "included"
	case ClearAll:
		return "all"
	default:
		return fmt.Sprintf("ClearPolicy(%d)", int(p))
	}
}

// ParseClearPolicy parses "included" or "all".
func ParseClearPolicy(s string) (ClearPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "included":
		return ClearIncluded, nil
	case "all":
		return ClearAll, nil
	default:
		return 0, fmt.Errorf("unknown clear policy %q (want included or all)", s)
	}
}

// Config holds the ledger parameters.
type Config struct {
	Difficulty  int              // Leading hex zeros required of every block hash.
	Reward      float64          // Amount credited to the miner of each block.
	PoolSize    int              // Max pending transactions, 0 = unbounded.
	ClearPolicy ClearPolicy      // Pool retirement on seal.
	Now         func() time.Time // Clock, defaults to time.Now.
}

// DefaultReward is the block reward used when none is configured.
const DefaultReward = 1

// BlockSink receives every block after it has been appended to the chain.
type BlockSink interface {
	PutBlock(blk *block.Block) error
}

// Observer is notified of ledger events. Implementations must be fast and
// must not call back into the ledger.
type Observer interface {
	TransactionAccepted(pending int)
	JobIssued(index uint64, difficulty int)
	SolutionAccepted(blk *block.Block, pending int)
	SolutionRejected(reason string)
}

// Rejection reasons passed to Observer.SolutionRejected.
const (
	ReasonInvalidNonce = "invalid_nonce"
	ReasonStaleJob     = "stale_job"
	ReasonNoJob        = "no_job"
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithSink hands every sealed block to sink. Sink errors are logged only.
func WithSink(sink BlockSink) Option {
	return func(l *Ledger) { l.sink = sink }
}

// WithObserver registers an event observer.
func WithObserver(obs Observer) Option {
	return func(l *Ledger) { l.observer = obs }
}

type nopObserver struct{}

func (nopObserver) TransactionAccepted(int)            {}
func (nopObserver) JobIssued(uint64, int)              {}
func (nopObserver) SolutionAccepted(*block.Block, int) {}
func (nopObserver) SolutionRejected(string)            {}
