package storage

import (
	"sort"
	"strings"
	"sync"
)

// MemoryDB implements DB using an in-memory map.
type MemoryDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates a new in-memory database.
func NewMemory() *MemoryDB {
	return &MemoryDB{
		data: make(map[string][]byte),
	}
}

// Get retrieves a value by key.
func (m *MemoryDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memGet(m.data, key)
}

// Put stores a key-value pair.
func (m *MemoryDB) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = cloneBytes(value)
	return nil
}

// Delete removes a key.
func (m *MemoryDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

// Has checks if a key exists.
func (m *MemoryDB) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

// ForEach iterates over all keys with the given prefix in key order.
func (m *MemoryDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	m.mu.RLock()
	snapshot := memScan(m.data, prefix)
	m.mu.RUnlock()

	for _, kv := range snapshot {
		if err := fn(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

// Update runs fn in a buffered transaction. Writes become visible only if
// fn returns nil.
func (m *MemoryDB) Update(fn func(KV) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txn := &memTxn{base: m.data, writes: make(map[string][]byte)}
	if err := fn(txn); err != nil {
		return err
	}
	for k, v := range txn.writes {
		if v == nil {
			delete(m.data, k)
		} else {
			m.data[k] = v
		}
	}
	return nil
}

// View runs fn against the current contents. Writes through the handle
// are discarded.
func (m *MemoryDB) View(fn func(KV) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memTxn{base: m.data, writes: make(map[string][]byte), readOnly: true})
}

// Close closes the database.
func (m *MemoryDB) Close() error {
	return nil
}

// memTxn overlays pending writes on the base map. A nil value in writes
// marks a deletion.
type memTxn struct {
	base     map[string][]byte
	writes   map[string][]byte
	readOnly bool
}

func (t *memTxn) Get(key []byte) ([]byte, error) {
	if v, ok := t.writes[string(key)]; ok {
		if v == nil {
			return nil, ErrNotFound
		}
		return cloneBytes(v), nil
	}
	return memGet(t.base, key)
}

func (t *memTxn) Put(key, value []byte) error {
	if t.readOnly {
		return errReadOnly
	}
	v := cloneBytes(value)
	if v == nil {
		v = []byte{}
	}
	t.writes[string(key)] = v
	return nil
}

func (t *memTxn) Delete(key []byte) error {
	if t.readOnly {
		return errReadOnly
	}
	t.writes[string(key)] = nil
	return nil
}

func (t *memTxn) Has(key []byte) (bool, error) {
	_, err := t.Get(key)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (t *memTxn) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	merged := make(map[string][]byte)
	p := string(prefix)
	for k, v := range t.base {
		if strings.HasPrefix(k, p) {
			merged[k] = v
		}
	}
	for k, v := range t.writes {
		if !strings.HasPrefix(k, p) {
			continue
		}
		if v == nil {
			delete(merged, k)
		} else {
			merged[k] = v
		}
	}
	for _, kv := range memScan(merged, prefix) {
		if err := fn(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

func memGet(data map[string][]byte, key []byte) ([]byte, error) {
	v, ok := data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(v), nil
}

// memScan returns copies of every entry under prefix, sorted by key.
func memScan(data map[string][]byte, prefix []byte) [][2][]byte {
	p := string(prefix)
	keys := make([]string, 0)
	for k := range data {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([][2][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, [2][]byte{[]byte(k), cloneBytes(data[k])})
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
