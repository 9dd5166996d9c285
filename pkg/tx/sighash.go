package tx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/Klingon-tech/orbital-wallet/pkg/script"
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// Signature hash types.
const (
	SigHashAll          uint32 = 0x01
	SigHashNone         uint32 = 0x02
	SigHashSingle       uint32 = 0x03
	SigHashForkID       uint32 = 0x40
	SigHashAnyoneCanPay uint32 = 0x80

	// SigHashAllForkID is what the wallet signs with.
	SigHashAllForkID = SigHashAll | SigHashForkID
)

const sigHashBaseMask = 0x1f

// SignatureHash computes the digest an input signature commits to.
//
// The layout follows the BIP143-style FORKID scheme with one addition:
// hashOutputHashes, inserted before hashOutputs, commits to a summary of
// every output (value, script hash and its pushed refs).
//
//	version | hashPrevouts | hashSequence | outpoint | scriptCode |
//	amount | sequence | hashOutputHashes | hashOutputs | locktime | hashType
func SignatureHash(msg *wire.MsgTx, idx int, prevScript []byte, value uint64, hashType uint32) (types.Hash, error) {
	if idx < 0 || idx >= len(msg.TxIn) {
		return types.Hash{}, fmt.Errorf("input index %d out of range (%d inputs)", idx, len(msg.TxIn))
	}
	if hashType&SigHashForkID == 0 {
		return types.Hash{}, fmt.Errorf("sighash type %#x lacks FORKID", hashType)
	}

	base := hashType & sigHashBaseMask
	anyoneCanPay := hashType&SigHashAnyoneCanPay != 0

	var zero chainhash.Hash
	hashPrevouts, hashSequence := zero, zero
	hashOutputHashes, hashOutputs := zero, zero

	if !anyoneCanPay {
		var buf bytes.Buffer
		for _, in := range msg.TxIn {
			buf.Write(in.PreviousOutPoint.Hash[:])
			writeUint32(&buf, in.PreviousOutPoint.Index)
		}
		hashPrevouts = chainhash.DoubleHashH(buf.Bytes())
	}

	if !anyoneCanPay && base != SigHashSingle && base != SigHashNone {
		var buf bytes.Buffer
		for _, in := range msg.TxIn {
			writeUint32(&buf, in.Sequence)
		}
		hashSequence = chainhash.DoubleHashH(buf.Bytes())
	}

	switch {
	case base != SigHashSingle && base != SigHashNone:
		h1, h2, err := hashOutputs2(msg.TxOut)
		if err != nil {
			return types.Hash{}, err
		}
		hashOutputHashes, hashOutputs = h1, h2
	case base == SigHashSingle && idx < len(msg.TxOut):
		h1, h2, err := hashOutputs2(msg.TxOut[idx : idx+1])
		if err != nil {
			return types.Hash{}, err
		}
		hashOutputHashes, hashOutputs = h1, h2
	}

	in := msg.TxIn[idx]
	var buf bytes.Buffer
	writeUint32(&buf, uint32(msg.Version))
	buf.Write(hashPrevouts[:])
	buf.Write(hashSequence[:])
	buf.Write(in.PreviousOutPoint.Hash[:])
	writeUint32(&buf, in.PreviousOutPoint.Index)
	if err := wire.WriteVarBytes(&buf, 0, prevScript); err != nil {
		return types.Hash{}, err
	}
	writeUint64(&buf, value)
	writeUint32(&buf, in.Sequence)
	buf.Write(hashOutputHashes[:])
	buf.Write(hashOutputs[:])
	writeUint32(&buf, msg.LockTime)
	writeUint32(&buf, hashType)

	return chainhash.DoubleHashH(buf.Bytes()), nil
}

// hashOutputs2 returns (hashOutputHashes, hashOutputs) over outs.
func hashOutputs2(outs []*wire.TxOut) (chainhash.Hash, chainhash.Hash, error) {
	var summary, serialized bytes.Buffer
	for i, out := range outs {
		refs, err := script.PushRefs(out.PkScript)
		if err != nil {
			return chainhash.Hash{}, chainhash.Hash{}, fmt.Errorf("output %d: %w", i, err)
		}
		refs = uniqueSorted(refs)

		writeUint64(&summary, uint64(out.Value))
		scriptHash := chainhash.DoubleHashH(out.PkScript)
		summary.Write(scriptHash[:])
		writeUint32(&summary, uint32(len(refs)))
		if len(refs) == 0 {
			summary.Write(make([]byte, chainhash.HashSize))
		} else {
			var cat bytes.Buffer
			for _, r := range refs {
				cat.Write(r[:])
			}
			refsHash := chainhash.DoubleHashH(cat.Bytes())
			summary.Write(refsHash[:])
		}

		if err := wire.WriteTxOut(&serialized, 0, 0, out); err != nil {
			return chainhash.Hash{}, chainhash.Hash{}, err
		}
	}
	return chainhash.DoubleHashH(summary.Bytes()), chainhash.DoubleHashH(serialized.Bytes()), nil
}

func uniqueSorted(refs []types.Ref) []types.Ref {
	if len(refs) < 2 {
		return refs
	}
	sort.Slice(refs, func(i, j int) bool {
		return bytes.Compare(refs[i][:], refs[j][:]) < 0
	})
	out := refs[:1]
	for _, r := range refs[1:] {
		if r != out[len(out)-1] {
			out = append(out, r)
		}
	}
	return out
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
