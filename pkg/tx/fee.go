package tx

import "github.com/Klingon-tech/orbital-wallet/pkg/script"

// FeeForSize returns the fee for size bytes at feeRate photons per byte.
func FeeForSize(size int, feeRate uint64) uint64 {
	return uint64(size) * feeRate
}

// EstimateP2PKHFee returns the fee for a transaction spending nIn P2PKH
// (or FT) inputs into outputs with the given script sizes.
func EstimateP2PKHFee(nIn int, outputScriptSizes []int, feeRate uint64) uint64 {
	size := script.TxSize(script.Repeat(script.P2PKHScriptSigSize, nIn), outputScriptSizes)
	return FeeForSize(size, feeRate)
}

// MaxFee is the hard fee ceiling: a transaction of the largest allowed size
// at the configured rate.
func MaxFee(maxBytes, feeRate uint64) uint64 {
	return maxBytes * feeRate
}
