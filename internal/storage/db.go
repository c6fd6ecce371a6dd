// Package storage provides key-value database abstractions.
package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when a key does not exist.
var ErrNotFound = errors.New("key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix in key order.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch collects writes that are applied together on Commit.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by databases that support atomic batches.
type Batcher interface {
	NewBatch() Batch
}

// NewBatch returns db's own batch when it has one. Otherwise writes are
// buffered and replayed one by one on Commit, which is not atomic.
func NewBatch(db DB) Batch {
	if b, ok := db.(Batcher); ok {
		return b.NewBatch()
	}
	return &replayBatch{db: db}
}

// op is a buffered write. A nil value means delete.
type op struct {
	key   string
	value []byte
}

func putOp(key, value []byte) op {
	v := clone(value)
	if v == nil {
		v = []byte{}
	}
	return op{key: string(key), value: v}
}

type replayBatch struct {
	db  DB
	ops []op
}

func (b *replayBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, putOp(key, value))
	return nil
}

func (b *replayBatch) Delete(key []byte) error {
	b.ops = append(b.ops, op{key: string(key)})
	return nil
}

func (b *replayBatch) Commit() error {
	for _, o := range b.ops {
		var err error
		if o.value == nil {
			err = b.db.Delete([]byte(o.key))
		} else {
			err = b.db.Put([]byte(o.key), o.value)
		}
		if err != nil {
			return fmt.Errorf("batch %q: %w", o.key, err)
		}
	}
	b.ops = nil
	return nil
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Open opens a database of the named backend. path is ignored for memory.
func Open(backend, path string) (DB, error) {
	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendBadger:
		return NewBadger(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
