package tx

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Klingon-tech/orbital-wallet/pkg/crypto"
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// Builder constructs transactions incrementally. It remembers the prevout
// of every input so inputs can be signed with their own script and value.
type Builder struct {
	tx       *wire.MsgTx
	prevouts []Prevout
}

// NewBuilder creates a new transaction builder.
func NewBuilder() *Builder {
	return &Builder{tx: New()}
}

// AddInput adds an input spending prevOut.
func (b *Builder) AddInput(prevOut types.Outpoint, prev Prevout) *Builder {
	op := wire.NewOutPoint(&prevOut.TxID, prevOut.Index)
	b.tx.AddTxIn(wire.NewTxIn(op, nil, nil))
	b.prevouts = append(b.prevouts, prev)
	return b
}

// AddOutput adds an output with a value and script.
func (b *Builder) AddOutput(value uint64, pkScript []byte) *Builder {
	b.tx.AddTxOut(wire.NewTxOut(int64(value), pkScript))
	return b
}

// SignInput signs input idx with key as a P2PKH-style spend: the
// unlocking script is <sig|hashType> <pubkey>. FT inputs unlock the same
// way because their spending condition is the embedded P2PKH prefix.
func (b *Builder) SignInput(idx int, key crypto.Signer) error {
	if idx < 0 || idx >= len(b.prevouts) {
		return fmt.Errorf("input index %d out of range", idx)
	}
	prev := b.prevouts[idx]
	sig, err := SignRaw(b.tx, idx, prev, key, SigHashAllForkID)
	if err != nil {
		return fmt.Errorf("sign input %d: %w", idx, err)
	}
	unlock, err := txscript.NewScriptBuilder().
		AddData(sig).
		AddData(key.PublicKey()).
		Script()
	if err != nil {
		return fmt.Errorf("unlocking script %d: %w", idx, err)
	}
	b.tx.TxIn[idx].SignatureScript = unlock
	return nil
}

// SignAll signs every input with key.
func (b *Builder) SignAll(key crypto.Signer) error {
	for i := range b.tx.TxIn {
		if err := b.SignInput(i, key); err != nil {
			return err
		}
	}
	return nil
}

// InputTotal sums the prevout values.
func (b *Builder) InputTotal() uint64 {
	var total uint64
	for _, p := range b.prevouts {
		total += p.Value
	}
	return total
}

// Fee returns inputs minus outputs. It is zero when outputs exceed inputs.
func (b *Builder) Fee() uint64 {
	in, out := b.InputTotal(), OutputTotal(b.tx)
	if out > in {
		return 0
	}
	return in - out
}

// Build returns the constructed transaction.
func (b *Builder) Build() *wire.MsgTx {
	return b.tx
}

// SignRaw returns a DER signature with the hash type byte appended, over
// input idx of msg.
func SignRaw(msg *wire.MsgTx, idx int, prev Prevout, key crypto.Signer, hashType uint32) ([]byte, error) {
	h, err := SignatureHash(msg, idx, prev.Script, prev.Value, hashType)
	if err != nil {
		return nil, err
	}
	sig, err := key.Sign(h[:])
	if err != nil {
		return nil, err
	}
	return append(sig, byte(hashType)), nil
}
