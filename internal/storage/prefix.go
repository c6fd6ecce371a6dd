package storage

// Namespace is a view of a DB in which every key carries a fixed prefix.
// The archive gives each ledger run its own Namespace so runs sharing one
// database never see each other's keys.
type Namespace struct {
	inner  DB
	prefix []byte
}

// NewNamespace returns the view of inner under prefix.
func NewNamespace(inner DB, prefix []byte) *Namespace {
	return &Namespace{inner: inner, prefix: clone(prefix)}
}

// Prefix returns a copy of the namespace prefix.
func (n *Namespace) Prefix() []byte {
	return clone(n.prefix)
}

func (n *Namespace) key(k []byte) []byte {
	return append(clone(n.prefix), k...)
}

func (n *Namespace) Get(key []byte) ([]byte, error) { return n.inner.Get(n.key(key)) }
func (n *Namespace) Put(key, value []byte) error    { return n.inner.Put(n.key(key), value) }
func (n *Namespace) Delete(key []byte) error        { return n.inner.Delete(n.key(key)) }
func (n *Namespace) Has(key []byte) (bool, error)   { return n.inner.Has(n.key(key)) }

// ForEach visits keys under prefix within the namespace. Keys handed to fn
// have the namespace prefix removed.
func (n *Namespace) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	skip := len(n.prefix)
	return n.inner.ForEach(n.key(prefix), func(key, value []byte) error {
		return fn(key[skip:], value)
	})
}

// Close does nothing; the owner of the inner DB closes it.
func (n *Namespace) Close() error {
	return nil
}

// NewBatch returns a batch whose keys land in the namespace. It is atomic
// when the inner DB is a Batcher.
func (n *Namespace) NewBatch() Batch {
	return namespaceBatch{inner: NewBatch(n.inner), ns: n}
}

type namespaceBatch struct {
	inner Batch
	ns    *Namespace
}

func (b namespaceBatch) Put(key, value []byte) error { return b.inner.Put(b.ns.key(key), value) }
func (b namespaceBatch) Delete(key []byte) error     { return b.inner.Delete(b.ns.key(key)) }
func (b namespaceBatch) Commit() error               { return b.inner.Commit() }
