// Package tx builds, signs and serializes Radiant transactions.
//
// Transactions use the legacy Bitcoin wire format, so they are represented
// with btcd's wire.MsgTx. What differs is the signature hash, which commits
// to each output's pushed token refs (see SignatureHash).
package tx

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// Version is the transaction version the wallet produces.
const Version = 1

// Prevout describes the output an input spends. Its script and value are
// part of the signature hash.
type Prevout struct {
	Value  uint64 `json:"value"`
	Script []byte `json:"script"`
}

// New returns an empty transaction with the wallet's version and no lock time.
func New() *wire.MsgTx {
	return wire.NewMsgTx(Version)
}

// Serialize returns the wire encoding of msg.
func Serialize(msg *wire.MsgTx) []byte {
	var buf bytes.Buffer
	buf.Grow(msg.SerializeSizeStripped())
	// Writing to a bytes.Buffer cannot fail.
	_ = msg.SerializeNoWitness(&buf)
	return buf.Bytes()
}

// Hex returns the hex wire encoding of msg.
func Hex(msg *wire.MsgTx) string {
	return hex.EncodeToString(Serialize(msg))
}

// Decode parses a raw transaction.
func Decode(raw []byte) (*wire.MsgTx, error) {
	msg := &wire.MsgTx{}
	if err := msg.DeserializeNoWitness(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("decode tx: %w", err)
	}
	return msg, nil
}

// DecodeHex parses a hex raw transaction.
func DecodeHex(s string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode tx hex: %w", err)
	}
	return Decode(raw)
}

// TxID returns the transaction id.
func TxID(msg *wire.MsgTx) types.Hash {
	return msg.TxHash()
}

// Outpoint converts a wire outpoint.
func Outpoint(op wire.OutPoint) types.Outpoint {
	return types.Outpoint{TxID: op.Hash, Index: op.Index}
}

// OutputTotal sums the output values of msg.
func OutputTotal(msg *wire.MsgTx) uint64 {
	var total uint64
	for _, out := range msg.TxOut {
		total += uint64(out.Value)
	}
	return total
}
