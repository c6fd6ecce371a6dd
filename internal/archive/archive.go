// Package archive stores sealed blocks for later lookup.
//
// Every ledger run writes under its own namespace, run/<genesis hash prefix>/,
// so a restarted node never mixes its new chain with blocks from an earlier
// run. Nothing is read back into the ledger on startup.
package archive

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Klingon-tech/powledger/internal/log"
	"github.com/Klingon-tech/powledger/internal/storage"
	"github.com/Klingon-tech/powledger/pkg/block"
)

// Errors.
var (
	ErrNotFound    = errors.New("block not archived")
	ErrNoGenesis   = errors.New("archive has not received a genesis block")
	ErrOutOfOrder  = errors.New("block archived out of order")
	ErrBacklogFull = errors.New("archive backlog full")
)

// Key layout within a run namespace.
var (
	prefixBlock = []byte("b/") // b/<hash> -> encoded block
	prefixIndex = []byte("i/") // i/<index %020d> -> hash
)

// namespaceLen is how many hash characters identify a run.
const namespaceLen = 16

// DefaultCacheSize is the read cache budget in bytes.
const DefaultCacheSize = 16 << 20

// maxBacklog bounds how many blocks wait for a failing store to recover.
const maxBacklog = 4096

// Archive is a block sink backed by a storage.DB with a read cache.
type Archive struct {
	mu    sync.RWMutex
	root  storage.DB
	db    *storage.Namespace // nil until genesis arrives.
	codec *Codec
	cache *ristretto.Cache[string, *block.Block]
	count uint64         // Blocks durably written in this run.
	queue []*block.Block // Accepted but unwritten blocks, from index count on.
}

// New creates an archive over db. cacheSize is the read cache budget in
// bytes; values <= 0 select DefaultCacheSize.
func New(db storage.DB, cacheSize int64) (*Archive, error) {
	if db == nil {
		return nil, fmt.Errorf("storage db is nil")
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	codec, err := NewCodec()
	if err != nil {
		return nil, err
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *block.Block]{
		NumCounters: cacheSize / 1000 * 10,
		MaxCost:     cacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("could not initialize cache: %w", err)
	}

	return &Archive{root: db, codec: codec, cache: cache}, nil
}

// Namespace returns the key prefix for the run started by genesis.
func Namespace(genesisHash string) string {
	id := genesisHash
	if len(id) > namespaceLen {
		id = id[:namespaceLen]
	}
	return "run/" + id + "/"
}

// PutBlock archives a sealed block. The genesis block opens a new run
// namespace; later blocks must arrive in index order.
//
// A block whose write fails is kept and retried, in order, before the next
// block is written, so a transient storage error delays archiving instead
// of ending it. The error of the failed write is still returned.
func (a *Archive) PutBlock(b *block.Block) error {
	if b == nil || !b.IsSealed() {
		return fmt.Errorf("archive: block is not sealed")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if b.Index == 0 {
		a.db = storage.NewNamespace(a.root, []byte(Namespace(b.Hash)))
		a.count = 0
		a.queue = nil
		a.cache.Clear()
		log.Archive.Info().Str("namespace", string(a.db.Prefix())).Msg("Archive run started")
	}
	if a.db == nil {
		return ErrNoGenesis
	}
	if want := a.count + uint64(len(a.queue)); b.Index != want {
		return fmt.Errorf("%w: got %d, want %d", ErrOutOfOrder, b.Index, want)
	}
	if len(a.queue) >= maxBacklog {
		return fmt.Errorf("%w: %d blocks waiting since index %d", ErrBacklogFull, len(a.queue), a.count)
	}

	a.queue = append(a.queue, b.Clone())
	return a.flush()
}

// flush writes queued blocks in order and stops at the first failure.
// Caller must hold mu.
func (a *Archive) flush() error {
	for len(a.queue) > 0 {
		b := a.queue[0]
		if err := a.write(b); err != nil {
			log.Archive.Warn().
				Err(err).
				Uint64("index", b.Index).
				Int("backlog", len(a.queue)).
				Msg("Archive write failed, will retry")
			return err
		}
		a.queue[0] = nil
		a.queue = a.queue[1:]
		a.count++
	}
	a.queue = nil
	return nil
}

// write stores b and its index entry. Rewriting a block after a partial
// commit is harmless: both keys get the same values again.
func (a *Archive) write(b *block.Block) error {
	data, err := a.codec.EncodeBlock(b)
	if err != nil {
		return fmt.Errorf("encode block %d: %w", b.Index, err)
	}

	batch := a.db.NewBatch()
	if err := batch.Put(blockKey(b.Hash), data); err != nil {
		return err
	}
	if err := batch.Put(indexKey(b.Index), []byte(b.Hash)); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("write block %d: %w", b.Index, err)
	}
	a.cache.Set(b.Hash, b.Clone(), int64(len(data)))

	log.Archive.Debug().
		Uint64("index", b.Index).
		Str("hash", b.Hash).
		Int("bytes", len(data)).
		Msg("Block archived")
	return nil
}

// Retry writes any blocks left over from failed writes.
func (a *Archive) Retry() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	return a.flush()
}

// Block returns the archived block with the given hash.
func (a *Archive) Block(hash string) (*block.Block, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.block(hash)
}

func (a *Archive) block(hash string) (*block.Block, error) {
	if a.db == nil {
		return nil, ErrNoGenesis
	}
	if b, ok := a.cache.Get(hash); ok {
		return b.Clone(), nil
	}

	data, err := a.db.Get(blockKey(hash))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: hash %s", ErrNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("read block %s: %w", hash, err)
	}
	b, err := a.codec.DecodeBlock(data)
	if err != nil {
		return nil, fmt.Errorf("decode block %s: %w", hash, err)
	}
	a.cache.Set(hash, b, int64(len(data)))
	return b.Clone(), nil
}

// BlockAt returns the archived block at index i.
func (a *Archive) BlockAt(i uint64) (*block.Block, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.db == nil {
		return nil, ErrNoGenesis
	}
	hash, err := a.db.Get(indexKey(i))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: index %d", ErrNotFound, i)
	}
	if err != nil {
		return nil, fmt.Errorf("read index %d: %w", i, err)
	}
	return a.block(string(hash))
}

// Count returns the number of blocks archived in the current run.
func (a *Archive) Count() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.count
}

// Backlog returns how many accepted blocks are still waiting to be written.
func (a *Archive) Backlog() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.queue)
}

// CurrentNamespace returns the key prefix of the current run, or "" before
// genesis.
func (a *Archive) CurrentNamespace() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return ""
	}
	return string(a.db.Prefix())
}

// Close releases the cache. The underlying DB is owned by the caller.
func (a *Archive) Close() {
	a.cache.Close()
}

func blockKey(hash string) []byte {
	return append(append([]byte{}, prefixBlock...), hash...)
}

func indexKey(i uint64) []byte {
	return append(append([]byte{}, prefixIndex...), fmt.Sprintf("%020d", i)...)
}
