package types

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// AddressSize is the length of an address hash in bytes.
const AddressSize = 20

// Radiant shares Bitcoin's base58 version bytes: 0x00 on mainnet and 0x6f
// on testnet.
var (
	MainnetParams = &chaincfg.MainNetParams
	TestnetParams = &chaincfg.TestNet3Params
)

// NetParams returns the address parameters for a network name.
func NetParams(network string) *chaincfg.Params {
	if network == "testnet" {
		return TestnetParams
	}
	return MainnetParams
}

// Address is a P2PKH public key hash.
type Address [AddressSize]byte

// AddressFromPubKey hashes a serialized public key into an address.
func AddressFromPubKey(pubKey []byte) Address {
	var a Address
	copy(a[:], btcutil.Hash160(pubKey))
	return a
}

// IsZero returns true if the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Encode returns the base58check form for the given network.
func (a Address) Encode(params *chaincfg.Params) string {
	addr, err := btcutil.NewAddressPubKeyHash(a[:], params)
	if err != nil {
		// Only fails on a wrong-length hash, which Address rules out.
		return hex.EncodeToString(a[:])
	}
	return addr.EncodeAddress()
}

// Hex returns the raw hex-encoded hash.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// Bytes returns a copy of the address as a byte slice.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressSize)
	copy(b, a[:])
	return b
}

// ParseAddress decodes a base58check P2PKH address and checks that it
// belongs to the given network.
func ParseAddress(s string, params *chaincfg.Params) (Address, error) {
	if s == "" {
		return Address{}, fmt.Errorf("empty address")
	}
	decoded, err := btcutil.DecodeAddress(s, params)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address: %w", err)
	}
	pkh, ok := decoded.(*btcutil.AddressPubKeyHash)
	if !ok {
		return Address{}, fmt.Errorf("address %s is not pay-to-pubkey-hash", s)
	}
	if !pkh.IsForNet(params) {
		return Address{}, fmt.Errorf("address %s is for a different network", s)
	}
	var a Address
	copy(a[:], pkh.Hash160()[:])
	return a, nil
}
