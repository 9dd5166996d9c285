package utxo

import (
	"fmt"

	klog "github.com/Klingon-tech/orbital-wallet/internal/log"
	"github.com/Klingon-tech/orbital-wallet/internal/storage"
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// Diff is the outcome of a reconciliation.
type Diff struct {
	Added   []*UTXO
	Removed []*UTXO
}

// Empty reports whether the reconciliation changed nothing.
func (d *Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Ledger is the wallet's UTXO cache. Every mutation runs inside a single
// storage transaction.
type Ledger struct {
	db storage.DB
}

// NewLedger creates a ledger on db. db is usually a per-network PrefixDB.
func NewLedger(db storage.DB) *Ledger {
	return &Ledger{db: db}
}

// DB returns the underlying database so other ledgers can share a
// transaction with this one.
func (l *Ledger) DB() storage.DB {
	return l.db
}

// Reconcile replaces the UTXOs recorded under lookupKey with remote.
func (l *Ledger) Reconcile(lookupKey string, remote []*UTXO) (*Diff, error) {
	var diff *Diff
	err := l.db.Update(func(kv storage.KV) error {
		d, err := ReconcileIn(NewStore(kv), lookupKey, remote)
		diff = d
		return err
	})
	if err != nil {
		return nil, err
	}
	if !diff.Empty() {
		klog.Ledger.Debug().
			Str("lookup_key", lookupKey).
			Int("added", len(diff.Added)).
			Int("removed", len(diff.Removed)).
			Msg("Reconciled unspent outputs")
	}
	return diff, nil
}

// ReconcileIn performs a full-replace diff by outpoint against the UTXOs of
// lookupKey in s. Outputs already cached only take the remote height.
func ReconcileIn(s *Store, lookupKey string, remote []*UTXO) (*Diff, error) {
	local, err := s.ByLookupKey(lookupKey)
	if err != nil {
		return nil, err
	}

	remoteSet := make(map[types.Outpoint]*UTXO, len(remote))
	for _, u := range remote {
		u.LookupKey = lookupKey
		remoteSet[u.Outpoint] = u
	}
	localSet := make(map[types.Outpoint]*UTXO, len(local))
	for _, u := range local {
		localSet[u.Outpoint] = u
	}

	diff := &Diff{}
	for _, u := range local {
		if _, ok := remoteSet[u.Outpoint]; !ok {
			if err := s.Delete(u.Outpoint); err != nil {
				return nil, err
			}
			diff.Removed = append(diff.Removed, u)
		}
	}
	seen := make(map[types.Outpoint]struct{}, len(remote))
	for _, u := range remote {
		if _, ok := seen[u.Outpoint]; ok {
			continue
		}
		seen[u.Outpoint] = struct{}{}
		if cached, ok := localSet[u.Outpoint]; ok {
			if cached.Height != u.Height {
				cached.Height = u.Height
				if err := s.Put(cached); err != nil {
					return nil, err
				}
			}
			continue
		}
		// An output may move between lookup keys, e.g. after a local
		// insert with a different key.
		if err := s.Delete(u.Outpoint); err != nil {
			return nil, err
		}
		if err := s.Put(u); err != nil {
			return nil, err
		}
		diff.Added = append(diff.Added, u)
	}
	return diff, nil
}

// Apply removes spent outpoints and inserts created outputs atomically.
// It is used after a successful broadcast.
func (l *Ledger) Apply(spent []types.Outpoint, created []*UTXO) error {
	return l.db.Update(func(kv storage.KV) error {
		return ApplyIn(NewStore(kv), spent, created)
	})
}

// ApplyIn is Apply against an open transaction.
func ApplyIn(s *Store, spent []types.Outpoint, created []*UTXO) error {
	for _, op := range spent {
		if err := s.Delete(op); err != nil {
			return fmt.Errorf("remove spent %s: %w", op, err)
		}
	}
	for _, u := range created {
		if err := s.Put(u); err != nil {
			return fmt.Errorf("insert %s: %w", u.Outpoint, err)
		}
	}
	return nil
}

// Get returns a cached UTXO.
func (l *Ledger) Get(op types.Outpoint) (*UTXO, error) {
	var u *UTXO
	err := l.db.View(func(kv storage.KV) error {
		var err error
		u, err = NewStore(kv).Get(op)
		return err
	})
	return u, err
}

// ByLookupKey returns the cached UTXOs of a lookup key.
func (l *Ledger) ByLookupKey(lookupKey string) ([]*UTXO, error) {
	var out []*UTXO
	err := l.db.View(func(kv storage.KV) error {
		var err error
		out, err = NewStore(kv).ByLookupKey(lookupKey)
		return err
	})
	return out, err
}

// Coins returns the spendable coin UTXOs in candidate order. Token and NFT
// outputs are never returned.
func (l *Ledger) Coins() ([]*UTXO, error) {
	return l.byKind(KindCoin)
}

// Tokens returns the token UTXOs of ref in candidate order.
func (l *Ledger) Tokens(ref types.Ref) ([]*UTXO, error) {
	var out []*UTXO
	err := l.db.View(func(kv storage.KV) error {
		var err error
		out, err = NewStore(kv).ByRef(ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	SortCandidates(out)
	return out, nil
}

func (l *Ledger) byKind(kind Kind) ([]*UTXO, error) {
	var out []*UTXO
	err := l.db.View(func(kv storage.KV) error {
		var err error
		out, err = NewStore(kv).ByKind(kind)
		return err
	})
	if err != nil {
		return nil, err
	}
	SortCandidates(out)
	return out, nil
}

// Balance returns the summed value of coin UTXOs.
func (l *Ledger) Balance() (uint64, error) {
	coins, err := l.Coins()
	if err != nil {
		return 0, err
	}
	return totalValue(coins), nil
}

// Clear drops every cached UTXO.
func (l *Ledger) Clear() error {
	return l.db.Update(func(kv storage.KV) error {
		return NewStore(kv).ClearAll()
	})
}
