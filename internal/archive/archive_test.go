package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Klingon-tech/powledger/internal/chain"
	"github.com/Klingon-tech/powledger/internal/miner"
	"github.com/Klingon-tech/powledger/internal/storage"
	"github.com/Klingon-tech/powledger/pkg/block"
)

func newTestArchive(t *testing.T, db storage.DB) *Archive {
	t.Helper()
	a, err := New(db, 1<<20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

// clock hands out strictly increasing timestamps so two ledgers never mine
// the same genesis.
var clock atomic.Int64

func testNow() time.Time {
	return time.UnixMilli(1700000000000 + clock.Add(1000))
}

// mineChain builds a ledger that writes into a and seals n blocks after genesis.
func mineChain(t *testing.T, a *Archive, n int) *chain.Ledger {
	t.Helper()
	l, err := chain.New(chain.Config{Difficulty: 1, Reward: 1, Now: testNow}, chain.WithSink(a))
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	w := miner.NewWorker(miner.New(l), "archiver", 1)
	for i := 0; i < n; i++ {
		l.SubmitTransaction("alice", "bob", float64(i))
		if res, err := w.MineOne(context.Background()); err != nil || res == nil {
			t.Fatalf("MineOne: %v, %v", res, err)
		}
	}
	return l
}

func TestArchive_SinkRoundtrip(t *testing.T) {
	tests := []struct {
		name string
		open func(t *testing.T) storage.DB
	}{
		{"memory", func(t *testing.T) storage.DB { return storage.NewMemory() }},
		{"badger", func(t *testing.T) storage.DB {
			db, err := storage.NewBadger(t.TempDir())
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { db.Close() })
			return db
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestArchive(t, tt.open(t))
			l := mineChain(t, a, 3)

			if a.Count() != 4 {
				t.Fatalf("Count = %d, want 4", a.Count())
			}
			for _, want := range l.Blocks() {
				byIdx, err := a.BlockAt(want.Index)
				if err != nil {
					t.Fatalf("BlockAt(%d): %v", want.Index, err)
				}
				byHash, err := a.Block(want.Hash)
				if err != nil {
					t.Fatalf("Block(%s): %v", want.Hash, err)
				}
				for _, got := range []*block.Block{byIdx, byHash} {
					if got.Hash != want.Hash || got.Nonce != want.Nonce || got.Preimage() != want.Preimage() {
						t.Errorf("archived block %d differs", want.Index)
					}
				}
			}
		})
	}
}

func TestArchive_NotFound(t *testing.T) {
	a := newTestArchive(t, storage.NewMemory())

	if _, err := a.BlockAt(0); !errors.Is(err, ErrNoGenesis) {
		t.Errorf("before genesis err = %v, want ErrNoGenesis", err)
	}

	mineChain(t, a, 0)
	if _, err := a.BlockAt(5); !errors.Is(err, ErrNotFound) {
		t.Errorf("BlockAt(5) err = %v, want ErrNotFound", err)
	}
	if _, err := a.Block(strings.Repeat("f", 64)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Block(fff..) err = %v, want ErrNotFound", err)
	}
}

func TestArchive_Ordering(t *testing.T) {
	a := newTestArchive(t, storage.NewMemory())

	orphan := &block.Block{Index: 1, Hash: strings.Repeat("0", 64), Miner: "m"}
	if err := a.PutBlock(orphan); !errors.Is(err, ErrNoGenesis) {
		t.Fatalf("orphan err = %v, want ErrNoGenesis", err)
	}

	mineChain(t, a, 1)
	skip := &block.Block{Index: 5, Hash: strings.Repeat("1", 64), Miner: "m"}
	if err := a.PutBlock(skip); !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("gap err = %v, want ErrOutOfOrder", err)
	}
	if err := a.PutBlock(&block.Block{Index: 2}); err == nil {
		t.Fatal("unsealed block accepted")
	}
}

func TestArchive_RunsAreIsolated(t *testing.T) {
	db := storage.NewMemory()
	a := newTestArchive(t, db)

	first := mineChain(t, a, 2)
	firstNS := a.CurrentNamespace()
	firstTip, _ := first.LatestBlock()

	// A restart mines a new genesis into the same database.
	b := newTestArchive(t, db)
	second := mineChain(t, b, 1)
	gen, _ := second.BlockByIndex(0)

	if b.CurrentNamespace() != Namespace(gen.Hash) {
		t.Errorf("namespace = %s, want %s", b.CurrentNamespace(), Namespace(gen.Hash))
	}
	if firstNS == b.CurrentNamespace() {
		t.Fatal("two runs share a namespace")
	}
	if b.Count() != 2 {
		t.Errorf("second run Count = %d, want 2", b.Count())
	}
	if _, err := b.Block(firstTip.Hash); !errors.Is(err, ErrNotFound) {
		t.Errorf("second run sees first run's block: %v", err)
	}

	// The first run's data is still on disk under its own prefix.
	old := storage.NewNamespace(db, []byte(firstNS))
	if ok, _ := old.Has(blockKey(firstTip.Hash)); !ok {
		t.Error("first run data was removed")
	}
}

// flakyDB fails Put while down is set, and once more for every failNext.
// It hides the inner Batcher so writes go through Put.
type flakyDB struct {
	storage.DB
	down     atomic.Bool
	failNext atomic.Int32
	failed   atomic.Int32
}

var errDiskFull = errors.New("disk full")

func (f *flakyDB) Put(key, value []byte) error {
	if f.down.Load() || f.failNext.Add(-1) >= 0 {
		f.failed.Add(1)
		return errDiskFull
	}
	return f.DB.Put(key, value)
}

func TestArchive_RecoversAfterFailedWrite(t *testing.T) {
	db := &flakyDB{DB: storage.NewMemory()}
	a := newTestArchive(t, db)
	l := mineChain(t, a, 1)

	// Block 2 loses one write; block 3 carries it through.
	db.failNext.Store(1)
	w := miner.NewWorker(miner.New(l), "archiver", 1)
	for i := 0; i < 3; i++ {
		if _, err := w.MineOne(context.Background()); err != nil {
			t.Fatalf("MineOne: %v", err)
		}
	}

	if db.failed.Load() != 1 {
		t.Fatalf("failed puts = %d, want 1", db.failed.Load())
	}
	if a.Count() != 5 || a.Backlog() != 0 {
		t.Fatalf("Count = %d, Backlog = %d, want 5 and 0", a.Count(), a.Backlog())
	}
	for _, want := range l.Blocks() {
		got, err := a.BlockAt(want.Index)
		if err != nil {
			t.Fatalf("BlockAt(%d): %v", want.Index, err)
		}
		if got.Hash != want.Hash {
			t.Errorf("block %d hash = %s, want %s", want.Index, got.Hash, want.Hash)
		}
	}
}

func TestArchive_Retry(t *testing.T) {
	db := &flakyDB{DB: storage.NewMemory()}
	a := newTestArchive(t, db)
	l := mineChain(t, a, 1)

	db.down.Store(true)
	w := miner.NewWorker(miner.New(l), "archiver", 1)
	for i := 0; i < 2; i++ {
		if _, err := w.MineOne(context.Background()); err != nil {
			t.Fatalf("MineOne: %v", err)
		}
	}
	if a.Count() != 2 || a.Backlog() != 2 {
		t.Fatalf("while down: Count = %d, Backlog = %d, want 2 and 2", a.Count(), a.Backlog())
	}
	if err := a.Retry(); !errors.Is(err, errDiskFull) {
		t.Fatalf("Retry while down = %v, want errDiskFull", err)
	}

	db.down.Store(false)
	if err := a.Retry(); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if a.Count() != 4 || a.Backlog() != 0 {
		t.Fatalf("after retry: Count = %d, Backlog = %d, want 4 and 0", a.Count(), a.Backlog())
	}
	tip, _ := l.LatestBlock()
	if _, err := a.Block(tip.Hash); err != nil {
		t.Errorf("tip not archived: %v", err)
	}
}

func TestArchive_RetryBeforeGenesis(t *testing.T) {
	a := newTestArchive(t, storage.NewMemory())
	if err := a.Retry(); err != nil {
		t.Errorf("Retry = %v, want nil", err)
	}
}

func TestArchive_BacklogFull(t *testing.T) {
	db := &flakyDB{DB: storage.NewMemory()}
	a := newTestArchive(t, db)
	mineChain(t, a, 0)

	db.down.Store(true)
	for i := uint64(1); i <= maxBacklog; i++ {
		b := &block.Block{Index: i, Hash: fmt.Sprintf("%064x", i), Miner: "m"}
		if err := a.PutBlock(b); !errors.Is(err, errDiskFull) {
			t.Fatalf("PutBlock(%d) = %v, want errDiskFull", i, err)
		}
	}
	over := &block.Block{Index: maxBacklog + 1, Hash: strings.Repeat("f", 64), Miner: "m"}
	if err := a.PutBlock(over); !errors.Is(err, ErrBacklogFull) {
		t.Fatalf("PutBlock past limit = %v, want ErrBacklogFull", err)
	}
	if a.Backlog() != maxBacklog {
		t.Errorf("Backlog = %d, want %d", a.Backlog(), maxBacklog)
	}
}

func TestNamespace(t *testing.T) {
	if got := Namespace("00abcdef0123456789ffff"); got != "run/00abcdef01234567/" {
		t.Errorf("Namespace = %s", got)
	}
	if got := Namespace("short"); got != "run/short/" {
		t.Errorf("Namespace(short) = %s", got)
	}
}

func TestIndexKeyOrder(t *testing.T) {
	if string(indexKey(9)) >= string(indexKey(10)) {
		t.Error("index keys do not sort numerically")
	}
}
