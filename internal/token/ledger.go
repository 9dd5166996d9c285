package token

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Klingon-tech/orbital-wallet/internal/electrum"
	klog "github.com/Klingon-tech/orbital-wallet/internal/log"
	"github.com/Klingon-tech/orbital-wallet/internal/storage"
	"github.com/Klingon-tech/orbital-wallet/internal/utxo"
	"github.com/Klingon-tech/orbital-wallet/pkg/script"
	"github.com/Klingon-tech/orbital-wallet/pkg/tx"
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// genesisConcurrency bounds in-flight indexer requests during discovery.
const genesisConcurrency = 3

// Ledger discovers tokens and keeps their balances in step with the cached
// token UTXOs.
type Ledger struct {
	mu    sync.Mutex // serializes Sync
	db    storage.DB
	chain electrum.Chain
	icons *IconStore
}

// NewLedger creates a token ledger. db must be the database the UTXO
// ledger uses so both stores change in one transaction. icons may be nil.
func NewLedger(db storage.DB, chain electrum.Chain, icons *IconStore) *Ledger {
	return &Ledger{db: db, chain: chain, icons: icons}
}

// LookupKey returns the indexer key that matches every FT output of addr.
func LookupKey(addr types.Address) string {
	return script.LookupKey(script.FT(addr, types.ZeroRef))
}

// Sync reconciles the FT outputs of addr, resolves tokens not seen before
// and recomputes balances.
func (l *Ledger) Sync(ctx context.Context, addr types.Address) (*utxo.Diff, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lookupKey := LookupKey(addr)
	unspent, err := l.chain.ListUnspent(ctx, lookupKey)
	if err != nil {
		return nil, fmt.Errorf("list token unspent: %w", err)
	}

	remote := make([]*utxo.UTXO, 0, len(unspent))
	refs := make(map[types.Ref]struct{})
	for i := range unspent {
		ref, ok := unspent[i].FirstNormalRef()
		if !ok {
			klog.Token.Debug().Str("tx", unspent[i].TxHash).Uint32("vout", unspent[i].TxPos).
				Msg("Skipping output without a fungible ref")
			continue
		}
		u, err := utxo.FromUnspent(&unspent[i], utxo.KindToken, script.FT(addr, ref))
		if err != nil {
			klog.Token.Debug().Err(err).Msg("Skipping malformed unspent entry")
			continue
		}
		u.TokenRef = &ref
		remote = append(remote, u)
		refs[ref] = struct{}{}
	}

	unknown, err := l.unknownRefs(refs)
	if err != nil {
		return nil, err
	}
	discovered, err := l.resolve(ctx, unknown)
	if err != nil {
		return nil, err
	}

	var diff *utxo.Diff
	err = l.db.Update(func(kv storage.KV) error {
		tokens := NewStore(kv)
		for _, tok := range discovered {
			if err := tokens.Put(tok); err != nil {
				return err
			}
		}
		// Only outputs of a known token are cached. The rest wait for
		// their genesis to resolve on a later sync.
		known, err := knownOnly(tokens, remote)
		if err != nil {
			return err
		}
		d, err := utxo.ReconcileIn(utxo.NewStore(kv), lookupKey, known)
		if err != nil {
			return err
		}
		diff = d
		return RecomputeIn(kv)
	})
	if err != nil {
		return nil, fmt.Errorf("apply token sync: %w", err)
	}

	klog.Token.Debug().
		Int("utxos", len(remote)).
		Int("new_tokens", len(discovered)).
		Msg("Token sync complete")
	return diff, nil
}

// knownOnly filters utxos to those whose token is stored.
func knownOnly(tokens *Store, utxos []*utxo.UTXO) ([]*utxo.UTXO, error) {
	has := make(map[types.Ref]bool)
	out := make([]*utxo.UTXO, 0, len(utxos))
	for _, u := range utxos {
		ref := *u.TokenRef
		ok, seen := has[ref]
		if !seen {
			var err error
			if ok, err = tokens.Has(ref); err != nil {
				return nil, err
			}
			has[ref] = ok
		}
		if ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// unknownRefs returns the refs that have no token record yet.
func (l *Ledger) unknownRefs(refs map[types.Ref]struct{}) ([]types.Ref, error) {
	var out []types.Ref
	err := l.db.View(func(kv storage.KV) error {
		store := NewStore(kv)
		for ref := range refs {
			has, err := store.Has(ref)
			if err != nil {
				return err
			}
			if !has {
				out = append(out, ref)
			}
		}
		return nil
	})
	return out, err
}

// resolve fetches and decodes the genesis of each ref. Refs whose metadata
// cannot be read are logged and left unresolved for the next sync.
func (l *Ledger) resolve(ctx context.Context, refs []types.Ref) ([]*Token, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	defer klog.Benchmark("token genesis resolve")()

	// Genesis txids first, then the deduplicated reveal transactions.
	revealOf := make([]string, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(genesisConcurrency)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			locs, err := l.chain.GetRef(gctx, ref)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				klog.Token.Debug().Err(err).Str("ref", ref.String()).Msg("Ref lookup failed")
				return nil
			}
			if len(locs) > 0 {
				revealOf[i] = locs[0].TxHash
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		txMu sync.Mutex
		txs  = make(map[string]string)
	)
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(genesisConcurrency)
	seen := make(map[string]struct{})
	for _, txid := range revealOf {
		if txid == "" {
			continue
		}
		if _, ok := seen[txid]; ok {
			continue
		}
		seen[txid] = struct{}{}
		txid := txid
		g.Go(func() error {
			raw, err := l.chain.GetTransaction(gctx, txid)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				klog.Token.Debug().Err(err).Str("tx", txid).Msg("Reveal fetch failed")
				return nil
			}
			txMu.Lock()
			txs[txid] = raw
			txMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var tokens []*Token
	for i, ref := range refs {
		raw, ok := txs[revealOf[i]]
		if !ok {
			continue
		}
		tok, err := l.decodeGenesis(ref, raw)
		if err != nil {
			klog.Token.Debug().Err(err).Str("ref", ref.String()).Msg("Skipping token with unreadable metadata")
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// decodeGenesis reads the payload from the reveal input numbered by the
// ref's output index and stores its icon.
func (l *Ledger) decodeGenesis(ref types.Ref, rawHex string) (*Token, error) {
	reveal, err := tx.DecodeHex(rawHex)
	if err != nil {
		return nil, err
	}
	idx := int(int32(ref.Outpoint().Index))
	if idx < 0 || idx >= len(reveal.TxIn) {
		return nil, ErrNoReveal
	}
	payload, err := ParseReveal(reveal.TxIn[idx].SignatureScript)
	if err != nil {
		return nil, err
	}

	tok := &Token{Ref: ref, Ticker: payload.Ticker, Name: payload.Name}
	if payload.Icon != nil {
		ext, _ := IconExtension(payload.Icon.Type)
		if l.icons != nil {
			if err := l.icons.Put(ref, ext, payload.Icon.Data); err != nil {
				klog.Token.Warn().Err(err).Str("ref", ref.String()).Msg("Failed to store token icon")
			} else {
				tok.IconExt = ext
			}
		} else {
			tok.IconExt = ext
		}
	}
	klog.Token.Info().Str("ref", ref.String()).Str("ticker", tok.Ticker).Msg("Discovered token")
	return tok, nil
}

// RecomputeBalances sets every token balance to the sum of its cached
// UTXOs and deletes tokens with nothing left.
func (l *Ledger) RecomputeBalances() error {
	return l.db.Update(RecomputeIn)
}

// RecomputeIn is RecomputeBalances against an open transaction.
func RecomputeIn(kv storage.KV) error {
	utxos, err := utxo.NewStore(kv).ByKind(utxo.KindToken)
	if err != nil {
		return err
	}
	sums := make(map[types.Ref]uint64)
	for _, u := range utxos {
		if u.TokenRef != nil {
			sums[*u.TokenRef] += u.Value
		}
	}

	store := NewStore(kv)
	tokens, err := store.List()
	if err != nil {
		return err
	}
	for _, tok := range tokens {
		sum := sums[tok.Ref]
		if sum == 0 {
			if err := store.Delete(tok.Ref); err != nil {
				return err
			}
			continue
		}
		if tok.Balance != sum {
			tok.Balance = sum
			if err := store.Put(tok); err != nil {
				return err
			}
		}
	}
	return nil
}

// Get returns a known token.
func (l *Ledger) Get(ref types.Ref) (*Token, error) {
	var tok *Token
	err := l.db.View(func(kv storage.KV) error {
		var err error
		tok, err = NewStore(kv).Get(ref)
		return err
	})
	return tok, err
}

// List returns every known token.
func (l *Ledger) List() ([]*Token, error) {
	var out []*Token
	err := l.db.View(func(kv storage.KV) error {
		var err error
		out, err = NewStore(kv).List()
		return err
	})
	return out, err
}

// Clear drops every token record.
func (l *Ledger) Clear() error {
	return l.db.Update(func(kv storage.KV) error {
		return NewStore(kv).ClearAll()
	})
}
