package script

import "github.com/btcsuite/btcd/wire"

// Worst-case per-input size for a signed P2PKH spend: outpoint (32+4),
// sequence (4), scriptSig length varint (1) and the scriptSig itself.
const P2PKHInputSize = 32 + 4 + 4 + 1 + P2PKHScriptSigSize

// VarIntSize returns the serialized size of a Bitcoin-style varint.
func VarIntSize(n uint64) int {
	return wire.VarIntSerializeSize(n)
}

// BaseTxSize returns the size of a transaction without any script bytes or
// script length prefixes:
//
//	version(4) + varint(nIn) + nIn*(txid 32 + vout 4 + sequence 4)
//	+ varint(nOut) + nOut*value(8) + locktime(4)
func BaseTxSize(numInputs, numOutputs int) int {
	return 4 +
		VarIntSize(uint64(numInputs)) + 40*numInputs +
		VarIntSize(uint64(numOutputs)) + 8*numOutputs +
		4
}

// TxSize returns the exact serialized size of a transaction whose input and
// output scripts have the given lengths.
func TxSize(inputScriptSizes, outputScriptSizes []int) int {
	size := BaseTxSize(len(inputScriptSizes), len(outputScriptSizes))
	for _, s := range inputScriptSizes {
		size += VarIntSize(uint64(s)) + s
	}
	for _, s := range outputScriptSizes {
		size += VarIntSize(uint64(s)) + s
	}
	return size
}

// Repeat returns n copies of size, for building TxSize arguments.
func Repeat(size, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = size
	}
	return out
}
