package electrum

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// Ref types reported by the indexer.
const (
	RefNormal    = "normal"
	RefSingleton = "singleton"
)

// RefInfo is one ref carried by an unspent output, in "txid_vout" form.
type RefInfo struct {
	Ref  string `json:"ref"`
	Type string `json:"type"`
}

// Parse converts the indexer's ref string into a Ref.
func (r RefInfo) Parse() (types.Ref, error) {
	return types.ParseRefOutpoint(r.Ref)
}

// Unspent is an entry of blockchain.scripthash.listunspent.
type Unspent struct {
	Height int64     `json:"height"`
	TxHash string    `json:"tx_hash"`
	TxPos  uint32    `json:"tx_pos"`
	Value  uint64    `json:"value"`
	Refs   []RefInfo `json:"refs,omitempty"`
}

// Outpoint returns the outpoint of the unspent output.
func (u *Unspent) Outpoint() (types.Outpoint, error) {
	h, err := types.HexToHash(u.TxHash)
	if err != nil {
		return types.Outpoint{}, err
	}
	return types.Outpoint{TxID: h, Index: u.TxPos}, nil
}

// FirstNormalRef returns the first ref of the output if it is a normal
// (fungible) ref.
func (u *Unspent) FirstNormalRef() (types.Ref, bool) {
	if len(u.Refs) == 0 || u.Refs[0].Type != RefNormal {
		return types.Ref{}, false
	}
	ref, err := u.Refs[0].Parse()
	if err != nil {
		return types.Ref{}, false
	}
	return ref, true
}

// RefLocation is an entry of blockchain.ref.get.
type RefLocation struct {
	TxHash string `json:"tx_hash"`
	Height int64  `json:"height"`
}

// Chain is the subset of the indexer API the wallet consumes.
type Chain interface {
	GetTransaction(ctx context.Context, txid string) (string, error)
	ListUnspent(ctx context.Context, lookupKey string) ([]Unspent, error)
	GetRef(ctx context.Context, ref types.Ref) ([]RefLocation, error)
	Broadcast(ctx context.Context, rawHex string) (string, error)
}

var _ Chain = (*Client)(nil)

// GetTransaction returns the raw hex of a transaction.
func (c *Client) GetTransaction(ctx context.Context, txid string) (string, error) {
	var raw string
	if err := c.Call(ctx, "blockchain.transaction.get", []any{txid}, &raw); err != nil {
		return "", err
	}
	return raw, nil
}

// ListUnspent returns the unspent outputs of a lookup key.
func (c *Client) ListUnspent(ctx context.Context, lookupKey string) ([]Unspent, error) {
	var out []Unspent
	if err := c.Call(ctx, "blockchain.scripthash.listunspent", []any{lookupKey}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRef returns the locations of a ref. The first entry is the genesis.
func (c *Client) GetRef(ctx context.Context, ref types.Ref) ([]RefLocation, error) {
	var out []RefLocation
	if err := c.Call(ctx, "blockchain.ref.get", []any{ref.BigEndian()}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Broadcast submits a raw transaction and returns its txid.
func (c *Client) Broadcast(ctx context.Context, rawHex string) (string, error) {
	var txid string
	if err := c.Call(ctx, "blockchain.transaction.broadcast", []any{rawHex}, &txid); err != nil {
		return "", err
	}
	return txid, nil
}

// Subscribe registers for status changes of a lookup key and returns the
// current status. The subscription is re-registered after reconnects.
func (c *Client) Subscribe(ctx context.Context, lookupKey string) (string, error) {
	c.mu.Lock()
	c.subs[lookupKey] = struct{}{}
	c.mu.Unlock()

	var status *string
	if err := c.Call(ctx, methodSubscribe, []any{lookupKey}, &status); err != nil {
		return "", fmt.Errorf("subscribe %s: %w", lookupKey, err)
	}
	if status == nil {
		return "", nil
	}
	return *status, nil
}

// ClearSubscriptions forgets every lookup key.
func (c *Client) ClearSubscriptions() {
	c.mu.Lock()
	c.subs = make(map[string]struct{})
	c.mu.Unlock()
}
