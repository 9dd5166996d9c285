package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Electrum-style ECIES ("BIE1"):
//
//	shared = compressed(priv * pub)
//	iv | kE | kM = SHA-512(shared)          (16 | 16 | 32 bytes)
//	payload = "BIE1" | senderPub(33) | AES-128-CBC(kE, iv, msg)
//	out = payload | HMAC-SHA256(kM, payload)
var eciesMagic = []byte("BIE1")

const (
	eciesPubLen = 33
	eciesMacLen = sha256.Size
)

// ErrDecrypt is returned for any malformed or unauthenticated ciphertext.
var ErrDecrypt = errors.New("ecies: decryption failed")

// Encrypt encrypts msg from sender to the recipient public key. The sender
// public key travels in the ciphertext so the recipient can derive the
// same shared secret.
func Encrypt(sender *PrivateKey, recipientPub, msg []byte) ([]byte, error) {
	pub, err := secp256k1.ParsePubKey(recipientPub)
	if err != nil {
		return nil, fmt.Errorf("ecies: recipient key: %w", err)
	}
	iv, kE, kM := eciesKeys(sender.key, pub)

	block, err := aes.NewCipher(kE)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(msg, aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	out := make([]byte, 0, len(eciesMagic)+eciesPubLen+len(ct)+eciesMacLen)
	out = append(out, eciesMagic...)
	out = append(out, sender.PublicKey()...)
	out = append(out, ct...)
	mac := hmac.New(sha256.New, kM)
	mac.Write(out)
	return mac.Sum(out), nil
}

// Decrypt reverses Encrypt using the recipient's private key.
func Decrypt(recipient *PrivateKey, data []byte) ([]byte, error) {
	minLen := len(eciesMagic) + eciesPubLen + aes.BlockSize + eciesMacLen
	if len(data) < minLen || !bytes.Equal(data[:len(eciesMagic)], eciesMagic) {
		return nil, ErrDecrypt
	}
	body, tag := data[:len(data)-eciesMacLen], data[len(data)-eciesMacLen:]
	pub, err := secp256k1.ParsePubKey(body[len(eciesMagic) : len(eciesMagic)+eciesPubLen])
	if err != nil {
		return nil, ErrDecrypt
	}
	iv, kE, kM := eciesKeys(recipient.key, pub)

	mac := hmac.New(sha256.New, kM)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), tag) {
		return nil, ErrDecrypt
	}

	ct := body[len(eciesMagic)+eciesPubLen:]
	if len(ct)%aes.BlockSize != 0 {
		return nil, ErrDecrypt
	}
	block, err := aes.NewCipher(kE)
	if err != nil {
		return nil, err
	}
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)
	return pkcs7Unpad(pt, aes.BlockSize)
}

func eciesKeys(priv *secp256k1.PrivateKey, pub *secp256k1.PublicKey) (iv, kE, kM []byte) {
	var point, result secp256k1.JacobianPoint
	pub.AsJacobian(&point)
	secp256k1.ScalarMultNonConst(&priv.Key, &point, &result)
	result.ToAffine()
	shared := secp256k1.NewPublicKey(&result.X, &result.Y).SerializeCompressed()

	k := sha512.Sum512(shared)
	return k[0:16], k[16:32], k[32:64]
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append([]byte{}, b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrDecrypt
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, ErrDecrypt
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrDecrypt
		}
	}
	return b[:len(b)-n], nil
}
