// Package types defines the primitive value types shared by the Orbital
// wallet: transaction ids, outpoints, token refs and P2PKH addresses.
package types

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// HashSize is the length of a transaction id in bytes.
const HashSize = chainhash.HashSize

// Hash is a transaction id in internal (wire) byte order. Its String form is
// the conventional reversed hex used by block explorers and ElectrumX.
type Hash = chainhash.Hash

// HexToHash parses a display-order (reversed) txid hex string.
func HexToHash(s string) (Hash, error) {
	if len(s) != HashSize*2 {
		return Hash{}, fmt.Errorf("txid must be %d hex chars, got %d", HashSize*2, len(s))
	}
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid txid: %w", err)
	}
	return *h, nil
}

// ReverseBytes returns a reversed copy of b.
func ReverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

// ReverseHex decodes s, reverses its bytes and re-encodes it.
func ReverseHex(s string) (string, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(ReverseBytes(b)), nil
}
