// Package script builds and recognises the locking scripts the wallet uses:
// plain P2PKH, Glyph fungible-token (FT) outputs, singleton NFT outputs and
// OP_RETURN data carriers.
package script

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/txscript"

	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// Radiant opcodes that btcd does not know about.
const (
	OpStateSeparator         = 0xbd
	OpPushInputRef           = 0xd0
	OpRequireInputRef        = 0xd1
	OpDisallowPushInputRef   = 0xd2
	OpDisallowPushInputRefSb = 0xd3
	OpPushInputRefSingleton  = 0xd8
)

// Script sizes, not including the length varint.
const (
	P2PKHScriptSize    = 25
	FTScriptSize       = 75
	NFTScriptSize      = 63
	P2PKHScriptSigSize = 107
)

// ftEpilogue is the FT conservation check that follows the ref push:
// OP_REFOUTPUTCOUNT_OUTPUTS OP_INPUTINDEX OP_CODESCRIPTBYTECODE_UTXO
// OP_HASH256 OP_DUP OP_CODESCRIPTHASHVALUESUM_UTXOS OP_OVER
// OP_CODESCRIPTHASHVALUESUM_OUTPUTS OP_GREATERTHANOREQUAL OP_VERIFY
// OP_CODESCRIPTHASHOUTPUTCOUNT_OUTPUTS OP_NUMEQUALVERIFY.
var ftEpilogue = []byte{0xde, 0xc0, 0xe9, 0xaa, 0x76, 0xe3, 0x78, 0xe4, 0xa2, 0x69, 0xe6, 0x9d}

// ErrUnknownScript is returned when a script matches no known template.
var ErrUnknownScript = errors.New("unknown script template")

// Kind classifies a locking script.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindP2PKH
	KindFT
	KindNFT
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindP2PKH:
		return "p2pkh"
	case KindFT:
		return "ft"
	case KindNFT:
		return "nft"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// P2PKH returns OP_DUP OP_HASH160 <addr> OP_EQUALVERIFY OP_CHECKSIG.
func P2PKH(addr types.Address) []byte {
	s, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(addr[:]).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	return s
}

// FT returns the fungible-token script paying addr for token ref:
// P2PKH OP_STATESEPARATOR OP_PUSHINPUTREF <ref> <conservation check>.
func FT(addr types.Address, ref types.Ref) []byte {
	out := make([]byte, 0, FTScriptSize)
	out = append(out, P2PKH(addr)...)
	out = append(out, OpStateSeparator, OpPushInputRef)
	out = append(out, ref[:]...)
	out = append(out, ftEpilogue...)
	return out
}

// NFT returns OP_PUSHINPUTREFSINGLETON <ref> OP_DROP P2PKH.
func NFT(addr types.Address, ref types.Ref) []byte {
	out := make([]byte, 0, NFTScriptSize)
	out = append(out, OpPushInputRefSingleton)
	out = append(out, ref[:]...)
	out = append(out, txscript.OP_DROP)
	out = append(out, P2PKH(addr)...)
	return out
}

// Data returns OP_0 OP_RETURN followed by one push per chunk.
func Data(chunks [][]byte) ([]byte, error) {
	b := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddOp(txscript.OP_RETURN)
	for _, c := range chunks {
		b.AddFullData(c)
	}
	return b.Script()
}

// DataHex is Data for hex-encoded chunks.
func DataHex(chunks []string) ([]byte, error) {
	raw := make([][]byte, len(chunks))
	for i, c := range chunks {
		b, err := hex.DecodeString(c)
		if err != nil {
			return nil, fmt.Errorf("data chunk %d: %w", i, err)
		}
		raw[i] = b
	}
	return Data(raw)
}

// ParseP2PKH returns the address paid by a P2PKH script.
func ParseP2PKH(s []byte) (types.Address, bool) {
	if len(s) != P2PKHScriptSize ||
		s[0] != txscript.OP_DUP || s[1] != txscript.OP_HASH160 || s[2] != txscript.OP_DATA_20 ||
		s[23] != txscript.OP_EQUALVERIFY || s[24] != txscript.OP_CHECKSIG {
		return types.Address{}, false
	}
	var a types.Address
	copy(a[:], s[3:23])
	return a, true
}

// ParseFT returns the owner and token ref of an FT script.
func ParseFT(s []byte) (types.Address, types.Ref, bool) {
	if len(s) != FTScriptSize {
		return types.Address{}, types.Ref{}, false
	}
	addr, ok := ParseP2PKH(s[:P2PKHScriptSize])
	if !ok || s[25] != OpStateSeparator || s[26] != OpPushInputRef {
		return types.Address{}, types.Ref{}, false
	}
	if !bytes.Equal(s[27+types.RefSize:], ftEpilogue) {
		return types.Address{}, types.Ref{}, false
	}
	var ref types.Ref
	copy(ref[:], s[27:27+types.RefSize])
	return addr, ref, true
}

// ParseNFT returns the owner and singleton ref of an NFT script.
func ParseNFT(s []byte) (types.Address, types.Ref, bool) {
	if len(s) != NFTScriptSize || s[0] != OpPushInputRefSingleton || s[1+types.RefSize] != txscript.OP_DROP {
		return types.Address{}, types.Ref{}, false
	}
	addr, ok := ParseP2PKH(s[2+types.RefSize:])
	if !ok {
		return types.Address{}, types.Ref{}, false
	}
	var ref types.Ref
	copy(ref[:], s[1:1+types.RefSize])
	return addr, ref, true
}

// Classify reports which template s matches.
func Classify(s []byte) Kind {
	if _, ok := ParseP2PKH(s); ok {
		return KindP2PKH
	}
	if _, _, ok := ParseFT(s); ok {
		return KindFT
	}
	if _, _, ok := ParseNFT(s); ok {
		return KindNFT
	}
	if len(s) >= 2 && s[0] == txscript.OP_0 && s[1] == txscript.OP_RETURN {
		return KindData
	}
	return KindUnknown
}

// LookupKey returns the ElectrumX scripthash for a locking script: the hex of
// the byte-reversed SHA-256 digest.
func LookupKey(s []byte) string {
	sum := sha256.Sum256(s)
	return hex.EncodeToString(types.ReverseBytes(sum[:]))
}

// PushRefs returns the refs pushed by OP_PUSHINPUTREF and
// OP_PUSHINPUTREFSINGLETON in s, in script order.
//
// Radiant's ref opcodes carry a raw 36-byte operand rather than a data
// push, so the walk cannot use txscript's tokenizer.
func PushRefs(s []byte) ([]types.Ref, error) {
	var refs []types.Ref
	for i := 0; i < len(s); {
		op := s[i]
		i++
		switch {
		case op == OpPushInputRef || op == OpPushInputRefSingleton ||
			op == OpRequireInputRef || op == OpDisallowPushInputRef || op == OpDisallowPushInputRefSb:
			if i+types.RefSize > len(s) {
				return nil, fmt.Errorf("truncated ref operand at offset %d", i-1)
			}
			if op == OpPushInputRef || op == OpPushInputRefSingleton {
				var r types.Ref
				copy(r[:], s[i:i+types.RefSize])
				refs = append(refs, r)
			}
			i += types.RefSize
		case op >= txscript.OP_DATA_1 && op <= txscript.OP_DATA_75:
			i += int(op)
		case op == txscript.OP_PUSHDATA1:
			if i+1 > len(s) {
				return nil, fmt.Errorf("truncated PUSHDATA1 at offset %d", i-1)
			}
			i += 1 + int(s[i])
		case op == txscript.OP_PUSHDATA2:
			if i+2 > len(s) {
				return nil, fmt.Errorf("truncated PUSHDATA2 at offset %d", i-1)
			}
			i += 2 + int(binary.LittleEndian.Uint16(s[i:]))
		case op == txscript.OP_PUSHDATA4:
			if i+4 > len(s) {
				return nil, fmt.Errorf("truncated PUSHDATA4 at offset %d", i-1)
			}
			i += 4 + int(binary.LittleEndian.Uint32(s[i:]))
		}
		if i > len(s) {
			return nil, fmt.Errorf("push overruns script end")
		}
	}
	return refs, nil
}
