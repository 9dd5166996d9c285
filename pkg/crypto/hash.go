// Package crypto provides the signing, hashing and message-encryption
// primitives the wallet builds on.
package crypto

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/zeebo/blake3"

	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// Sha256 computes a single SHA-256 digest.
func Sha256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// DoubleSha256 computes SHA-256(SHA-256(data)), the ledger's transaction
// and signature hash.
func DoubleSha256(data []byte) types.Hash {
	return chainhash.DoubleHashH(data)
}

// Digest computes a BLAKE3-256 content digest. It identifies blobs such as
// token icons; it is not used for anything consensus-related.
func Digest(data []byte) [32]byte {
	return blake3.Sum256(data)
}
