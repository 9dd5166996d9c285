package crypto

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// MessageMagic prefixes every signed message.
const MessageMagic = "Bitcoin Signed Message:\n"

// MessageHash returns the double SHA-256 of the magic-prefixed message, each
// part preceded by its varint length.
func MessageHash(message []byte) types.Hash {
	var buf bytes.Buffer
	_ = wire.WriteVarString(&buf, 0, MessageMagic)
	_ = wire.WriteVarBytes(&buf, 0, message)
	return DoubleSha256(buf.Bytes())
}

// SignMessage signs message and returns the base64 compact signature.
func SignMessage(key *PrivateKey, message []byte) (string, error) {
	h := MessageHash(message)
	sig, err := key.SignCompact(h[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyMessage checks a base64 compact signature against the expected
// signer address.
func VerifyMessage(addr types.Address, message []byte, sigBase64 string) error {
	sig, err := base64.StdEncoding.DecodeString(sigBase64)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	h := MessageHash(message)
	pub, err := RecoverCompact(sig, h[:])
	if err != nil {
		return err
	}
	if types.AddressFromPubKey(pub) != addr {
		return fmt.Errorf("signature does not match address")
	}
	return nil
}
