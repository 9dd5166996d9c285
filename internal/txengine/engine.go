// Package txengine builds, signs and broadcasts the wallet's transactions
// and performs the other key-holding operations external callers request.
package txengine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"

	"github.com/Klingon-tech/orbital-wallet/internal/electrum"
	klog "github.com/Klingon-tech/orbital-wallet/internal/log"
	"github.com/Klingon-tech/orbital-wallet/internal/metrics"
	"github.com/Klingon-tech/orbital-wallet/internal/storage"
	"github.com/Klingon-tech/orbital-wallet/internal/token"
	"github.com/Klingon-tech/orbital-wallet/internal/utxo"
	"github.com/Klingon-tech/orbital-wallet/internal/wallet"
	"github.com/Klingon-tech/orbital-wallet/pkg/tx"
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// DustLimit is the smallest change output worth creating, in photons.
// Smaller change is left to the fee.
const DustLimit = 10

// Engine errors.
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInsufficientFunds = utxo.ErrInsufficientFunds
	ErrUnauthorized      = wallet.ErrUnauthorized
	ErrFeeTooHigh        = errors.New("fee too high")
	ErrTxTooLarge        = errors.New("transaction too large")
	ErrBroadcast         = errors.New("broadcast failed")
)

// Keyring gives access to the unlocked wallet keys.
type Keyring interface {
	Verify(password string) bool
	Keys() (*wallet.Keys, error)
	Unlock(password string) (*wallet.Keys, error)
}

// Policy holds the user's approval preferences.
type Policy interface {
	NoApprovalLimit() (uint64, error)
	SpendApproval(amount uint64) error
	PasswordRequired() (bool, error)
}

// Config holds fee and size policy.
type Config struct {
	FeePerByte uint64
	MaxTxBytes uint64
	Params     *chaincfg.Params
}

// Engine performs privileged wallet operations.
type Engine struct {
	mu     sync.Mutex // one spend at a time
	cfg    Config
	keys   Keyring
	policy Policy
	chain  electrum.Chain
	coins  *utxo.Ledger
}

// New creates an engine. The UTXO ledger and token balances must share a
// database so spends update both atomically.
func New(cfg Config, keys Keyring, policy Policy, chain electrum.Chain, coins *utxo.Ledger) *Engine {
	if cfg.Params == nil {
		cfg.Params = types.MainnetParams
	}
	return &Engine{cfg: cfg, keys: keys, policy: policy, chain: chain, coins: coins}
}

// Reconfigure points the engine at another network's address encoding and
// ledger. Spends in flight finish first.
func (e *Engine) Reconfigure(params *chaincfg.Params, coins *utxo.Ledger) {
	e.mu.Lock()
	e.cfg.Params = params
	e.coins = coins
	e.mu.Unlock()
}

// authorize checks password unless the policy turns approvals off.
func (e *Engine) authorize(password string) error {
	required, err := e.policy.PasswordRequired()
	if err != nil {
		return err
	}
	if required && !e.keys.Verify(password) {
		return ErrUnauthorized
	}
	return nil
}

// signingKeys returns the session keys, unlocking with password when the
// session has lapsed.
func (e *Engine) signingKeys(password string) (*wallet.Keys, error) {
	keys, err := e.keys.Keys()
	if err == nil {
		return keys, nil
	}
	if !errors.Is(err, wallet.ErrLocked) || password == "" {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return e.keys.Unlock(password)
}

// finalize enforces the size ceiling, then the fee ceiling, and broadcasts.
func (e *Engine) finalize(ctx context.Context, b *tx.Builder) (string, string, error) {
	msg := b.Build()
	raw := tx.Serialize(msg)
	if uint64(len(raw)) > e.cfg.MaxTxBytes {
		return "", "", fmt.Errorf("%w: %d bytes", ErrTxTooLarge, len(raw))
	}
	if fee, max := b.Fee(), tx.MaxFee(e.cfg.MaxTxBytes, e.cfg.FeePerByte); fee > max {
		return "", "", fmt.Errorf("%w: %d > %d", ErrFeeTooHigh, fee, max)
	}

	rawHex := tx.Hex(msg)
	_, err := e.chain.Broadcast(ctx, rawHex)
	metrics.Default().RecordBroadcast(err)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrBroadcast, err)
	}
	txid := tx.TxID(msg).String()
	klog.TxEngine.Info().
		Str("txid", txid).
		Int("size", len(raw)).
		Uint64("fee", b.Fee()).
		Msg("Transaction broadcast")
	return txid, rawHex, nil
}

// Broadcast submits a caller-built transaction and drops the wallet
// outputs it spends from the ledger.
func (e *Engine) Broadcast(ctx context.Context, rawHex string, fund bool) (string, error) {
	if fund {
		return "", fmt.Errorf("%w: funding is not supported", ErrInvalidRequest)
	}
	msg, err := tx.DecodeHex(rawHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	_, err = e.chain.Broadcast(ctx, rawHex)
	metrics.Default().RecordBroadcast(err)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBroadcast, err)
	}

	spent := make([]types.Outpoint, 0, len(msg.TxIn))
	for _, in := range msg.TxIn {
		spent = append(spent, tx.Outpoint(in.PreviousOutPoint))
	}
	if err := e.applySpend(spent, nil); err != nil {
		return "", err
	}
	txid := tx.TxID(msg).String()
	klog.TxEngine.Info().Str("txid", txid).Msg("External transaction broadcast")
	return txid, nil
}

// applySpend removes spent outputs and inserts created ones, then
// recomputes token balances, in one transaction. Outpoints the wallet
// does not own are ignored.
func (e *Engine) applySpend(spent []types.Outpoint, created []*utxo.UTXO) error {
	err := e.coins.DB().Update(func(kv storage.KV) error {
		if err := utxo.ApplyIn(utxo.NewStore(kv), spent, created); err != nil {
			return err
		}
		return token.RecomputeIn(kv)
	})
	if err != nil {
		// The transaction is already on the network; the next sync repairs
		// the cache.
		klog.TxEngine.Error().Err(err).Msg("Failed to apply spend to ledger")
		return fmt.Errorf("apply spend: %w", err)
	}
	return nil
}

// ownOutputs returns the outputs of msg at the given indexes as UTXOs.
func ownOutputs(msg *wire.MsgTx, kinds map[int]utxo.Kind, refs map[int]types.Ref, keys map[int]string) []*utxo.UTXO {
	txid := tx.TxID(msg)
	var out []*utxo.UTXO
	for i, txOut := range msg.TxOut {
		kind, ok := kinds[i]
		if !ok {
			continue
		}
		u := &utxo.UTXO{
			Kind:      kind,
			Outpoint:  types.Outpoint{TxID: txid, Index: uint32(i)},
			Value:     uint64(txOut.Value),
			Script:    txOut.PkScript,
			LookupKey: keys[i],
		}
		if ref, ok := refs[i]; ok {
			r := ref
			u.TokenRef = &r
		}
		out = append(out, u)
	}
	return out
}
