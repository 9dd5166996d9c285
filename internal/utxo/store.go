package utxo

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Klingon-tech/orbital-wallet/internal/storage"
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// Key prefixes for the UTXO store.
var (
	prefixUTXO   = []byte("u/") // u/<txid><index> -> UTXO JSON
	prefixLookup = []byte("l/") // l/<lookupKey>/<txid><index> -> empty
	prefixRef    = []byte("r/") // r/<ref36><txid><index> -> empty
)

// Store keeps UTXOs on a key-value handle. The handle may be a database
// or a transaction, so a Store can run inside storage.DB.Update.
type Store struct {
	db storage.KV
}

// NewStore creates a new UTXO store backed by the given key-value handle.
func NewStore(db storage.KV) *Store {
	return &Store{db: db}
}

// utxoKey builds a storage key for an outpoint: "u/" + txid(32) + index(4).
func utxoKey(op types.Outpoint) []byte {
	return append(append([]byte{}, prefixUTXO...), op.Key()...)
}

// lookupPrefix builds "l/" + lookupKey + "/".
func lookupPrefix(lookupKey string) []byte {
	k := append([]byte{}, prefixLookup...)
	k = append(k, lookupKey...)
	return append(k, '/')
}

func lookupIndexKey(lookupKey string, op types.Outpoint) []byte {
	return append(lookupPrefix(lookupKey), op.Key()...)
}

// refPrefix builds "r/" + ref(36).
func refPrefix(ref types.Ref) []byte {
	return append(append([]byte{}, prefixRef...), ref[:]...)
}

func refIndexKey(ref types.Ref, op types.Outpoint) []byte {
	return append(refPrefix(ref), op.Key()...)
}

// Get retrieves a UTXO by its outpoint.
func (s *Store) Get(outpoint types.Outpoint) (*UTXO, error) {
	data, err := s.db.Get(utxoKey(outpoint))
	if err != nil {
		return nil, fmt.Errorf("utxo get: %w", err)
	}
	var u UTXO
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("utxo unmarshal: %w", err)
	}
	return &u, nil
}

// Put stores a UTXO and updates the lookup-key and token-ref indexes.
func (s *Store) Put(u *UTXO) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("utxo marshal: %w", err)
	}
	if err := s.db.Put(utxoKey(u.Outpoint), data); err != nil {
		return fmt.Errorf("utxo put: %w", err)
	}
	if u.LookupKey != "" {
		if err := s.db.Put(lookupIndexKey(u.LookupKey, u.Outpoint), []byte{}); err != nil {
			return fmt.Errorf("utxo index put: %w", err)
		}
	}
	if u.TokenRef != nil {
		if err := s.db.Put(refIndexKey(*u.TokenRef, u.Outpoint), []byte{}); err != nil {
			return fmt.Errorf("ref index put: %w", err)
		}
	}
	return nil
}

// Delete removes a UTXO and its index entries.
func (s *Store) Delete(outpoint types.Outpoint) error {
	// Read first to clean up secondary indexes.
	u, err := s.Get(outpoint)
	if err == nil {
		if u.LookupKey != "" {
			if err := s.db.Delete(lookupIndexKey(u.LookupKey, outpoint)); err != nil {
				return fmt.Errorf("utxo index delete: %w", err)
			}
		}
		if u.TokenRef != nil {
			if err := s.db.Delete(refIndexKey(*u.TokenRef, outpoint)); err != nil {
				return fmt.Errorf("ref index delete: %w", err)
			}
		}
	}

	if err := s.db.Delete(utxoKey(outpoint)); err != nil {
		return fmt.Errorf("utxo delete: %w", err)
	}
	return nil
}

// Has checks if a UTXO exists for the given outpoint.
func (s *Store) Has(outpoint types.Outpoint) (bool, error) {
	return s.db.Has(utxoKey(outpoint))
}

// ForEach iterates over all UTXOs in the store.
func (s *Store) ForEach(fn func(*UTXO) error) error {
	return s.db.ForEach(prefixUTXO, func(key, value []byte) error {
		var u UTXO
		if err := json.Unmarshal(value, &u); err != nil {
			return fmt.Errorf("utxo unmarshal: %w", err)
		}
		return fn(&u)
	})
}

// ByLookupKey returns the UTXOs recorded under a lookup key.
func (s *Store) ByLookupKey(lookupKey string) ([]*UTXO, error) {
	utxos, err := s.scanIndex(lookupPrefix(lookupKey))
	if err != nil {
		return nil, fmt.Errorf("scan lookup index: %w", err)
	}
	return utxos, nil
}

// ByRef returns the UTXOs carrying the given token ref.
func (s *Store) ByRef(ref types.Ref) ([]*UTXO, error) {
	utxos, err := s.scanIndex(refPrefix(ref))
	if err != nil {
		return nil, fmt.Errorf("scan ref index: %w", err)
	}
	return utxos, nil
}

// ByKind returns every UTXO of the given kind.
func (s *Store) ByKind(kind Kind) ([]*UTXO, error) {
	var out []*UTXO
	err := s.ForEach(func(u *UTXO) error {
		if u.Kind == kind {
			out = append(out, u)
		}
		return nil
	})
	return out, err
}

// scanIndex loads the UTXOs named by index keys under prefix. Each index
// key ends with txid(32) + index(4).
func (s *Store) scanIndex(prefix []byte) ([]*UTXO, error) {
	var ops []types.Outpoint
	err := s.db.ForEach(prefix, func(key, _ []byte) error {
		if len(key) < len(prefix)+types.HashSize+4 {
			return nil // Malformed key, skip.
		}
		tail := key[len(key)-types.HashSize-4:]
		var op types.Outpoint
		copy(op.TxID[:], tail[:types.HashSize])
		op.Index = binary.BigEndian.Uint32(tail[types.HashSize:])
		ops = append(ops, op)
		return nil
	})
	if err != nil {
		return nil, err
	}

	utxos := make([]*UTXO, 0, len(ops))
	for _, op := range ops {
		u, err := s.Get(op)
		if err != nil {
			continue // Index entry without a record, skip.
		}
		utxos = append(utxos, u)
	}
	return utxos, nil
}

// ClearAll removes all UTXOs and their secondary indexes.
func (s *Store) ClearAll() error {
	var keys [][]byte
	for _, prefix := range [][]byte{prefixUTXO, prefixLookup, prefixRef} {
		if err := s.db.ForEach(prefix, func(key, _ []byte) error {
			keys = append(keys, key)
			return nil
		}); err != nil {
			return fmt.Errorf("scan prefix %s: %w", prefix, err)
		}
	}
	for _, key := range keys {
		if err := s.db.Delete(key); err != nil {
			return fmt.Errorf("delete utxo key: %w", err)
		}
	}
	return nil
}

// SortCandidates orders UTXOs by ascending height, then txid, then vout.
// Unconfirmed outputs (height 0) sort last.
func SortCandidates(utxos []*UTXO) {
	sort.SliceStable(utxos, func(i, j int) bool {
		a, b := utxos[i], utxos[j]
		ha, hb := effectiveHeight(a.Height), effectiveHeight(b.Height)
		if ha != hb {
			return ha < hb
		}
		if c := compareHash(a.Outpoint.TxID, b.Outpoint.TxID); c != 0 {
			return c < 0
		}
		return a.Outpoint.Index < b.Outpoint.Index
	})
}

func effectiveHeight(h uint64) uint64 {
	if h == 0 {
		return ^uint64(0)
	}
	return h
}

// compareHash compares hashes in display order.
func compareHash(a, b types.Hash) int {
	for i := types.HashSize - 1; i >= 0; i-- {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
