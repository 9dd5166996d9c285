package storage

// PrefixDB wraps a DB and prepends a fixed prefix to all keys.
// This isolates per-network ledger data within a single underlying database.
type PrefixDB struct {
	inner  DB
	prefix []byte
}

// NewPrefixDB creates a new PrefixDB wrapping inner with the given prefix.
func NewPrefixDB(inner DB, prefix []byte) *PrefixDB {
	p := make([]byte, len(prefix))
	copy(p, prefix)
	return &PrefixDB{inner: inner, prefix: p}
}

// Prefix returns a copy of the namespace prefix.
func (p *PrefixDB) Prefix() []byte {
	return cloneBytes(p.prefix)
}

// Get retrieves a value by key.
func (p *PrefixDB) Get(key []byte) ([]byte, error) {
	return p.wrap(p.inner).Get(key)
}

// Put stores a key-value pair.
func (p *PrefixDB) Put(key, value []byte) error {
	return p.wrap(p.inner).Put(key, value)
}

// Delete removes a key.
func (p *PrefixDB) Delete(key []byte) error {
	return p.wrap(p.inner).Delete(key)
}

// Has checks if a key exists.
func (p *PrefixDB) Has(key []byte) (bool, error) {
	return p.wrap(p.inner).Has(key)
}

// ForEach iterates over all keys with the given prefix (within the PrefixDB namespace).
// The callback receives keys with the PrefixDB prefix stripped, so callers see only
// their logical keyspace.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return p.wrap(p.inner).ForEach(prefix, fn)
}

// Update runs fn in a transaction of the inner DB, scoped to the namespace.
func (p *PrefixDB) Update(fn func(KV) error) error {
	return p.inner.Update(func(kv KV) error {
		return fn(p.wrap(kv))
	})
}

// View runs fn in a read-only transaction of the inner DB.
func (p *PrefixDB) View(fn func(KV) error) error {
	return p.inner.View(func(kv KV) error {
		return fn(p.wrap(kv))
	})
}

// DeleteAll removes all keys under this PrefixDB's namespace in one
// transaction.
func (p *PrefixDB) DeleteAll() error {
	return p.inner.Update(func(kv KV) error {
		// Collect all keys first to avoid modifying during iteration.
		var keys [][]byte
		err := kv.ForEach(p.prefix, func(key, _ []byte) error {
			keys = append(keys, cloneBytes(key))
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := kv.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close is a no-op. The outer DB owns the lifecycle.
func (p *PrefixDB) Close() error {
	return nil
}

func (p *PrefixDB) wrap(kv KV) *prefixKV {
	return &prefixKV{inner: kv, prefix: p.prefix}
}

type prefixKV struct {
	inner  KV
	prefix []byte
}

// prefixed returns key with the prefix prepended.
func (pk *prefixKV) prefixed(key []byte) []byte {
	out := make([]byte, len(pk.prefix)+len(key))
	copy(out, pk.prefix)
	copy(out[len(pk.prefix):], key)
	return out
}

func (pk *prefixKV) Get(key []byte) ([]byte, error) {
	return pk.inner.Get(pk.prefixed(key))
}

func (pk *prefixKV) Put(key, value []byte) error {
	return pk.inner.Put(pk.prefixed(key), value)
}

func (pk *prefixKV) Delete(key []byte) error {
	return pk.inner.Delete(pk.prefixed(key))
}

func (pk *prefixKV) Has(key []byte) (bool, error) {
	return pk.inner.Has(pk.prefixed(key))
}

func (pk *prefixKV) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return pk.inner.ForEach(pk.prefixed(prefix), func(key, value []byte) error {
		// Strip the PrefixDB prefix so the caller sees only its logical key.
		return fn(key[len(pk.prefix):], value)
	})
}
